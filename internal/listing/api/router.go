// Package api exposes the listing watcher over HTTP.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RouterOptions struct {
	Handler *Handler
	Events  http.Handler // websocket endpoint, optional
	Metrics http.Handler // prometheus endpoint, optional
	Logger  *zap.Logger
}

func NewRouter(opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(Logging(opts.Logger), Recovery(opts.Logger), Error())

	hd := opts.Handler
	r.GET("/health", hd.Health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/symbols", hd.ListSymbols)
		v1.POST("/symbols", hd.CreateSymbol)
		v1.POST("/symbols/:name/buy", hd.BuySymbol)
		v1.POST("/orders/:id/sell", hd.SellOrder)
		v1.POST("/restart", hd.Restart)
		v1.GET("/statistics", hd.Statistics)
	}

	if opts.Events != nil {
		r.GET("/ws", gin.WrapH(opts.Events))
	}
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics))
	}
	return r
}
