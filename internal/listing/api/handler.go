package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"listingwatcher/internal/listing/lifecycle"
	"listingwatcher/pkg/storage/postgres"

	"github.com/gin-gonic/gin"
)

type Service interface {
	CreateSymbolAt(ctx context.Context, name, listingDate string) (*postgres.SymbolRecord, error)
	Overview(ctx context.Context) (*lifecycle.Overview, error)
	BuyNow(ctx context.Context, name, quote string) (*postgres.OrderRecord, error)
	SellNow(ctx context.Context, id uint) (*postgres.OrderRecord, error)
	RestartAll(ctx context.Context) (lifecycle.RestartReport, error)
	Statistics(ctx context.Context) ([]lifecycle.StatisticsRow, error)
}

type HealthChecker interface {
	IsHealthy(ctx context.Context) bool
}

type TimerCounter interface {
	Len() int
}

type Handler struct {
	svc    Service
	health HealthChecker
	timers TimerCounter
}

func NewHandler(svc Service, health HealthChecker, timers TimerCounter) *Handler {
	return &Handler{svc: svc, health: health, timers: timers}
}

func (hd *Handler) Health(ctx *gin.Context) {
	res := HealthRes{Status: "ok", Database: true}
	if hd.health != nil {
		dbCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
		res.Database = hd.health.IsHealthy(dbCtx)
		cancel()
	}
	if hd.timers != nil {
		res.Timers = hd.timers.Len()
	}

	status := http.StatusOK
	if !res.Database {
		res.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	ctx.JSON(status, Res{Success: res.Database, Data: res})
}

func (hd *Handler) ListSymbols(ctx *gin.Context) {
	overview, err := hd.svc.Overview(ctx.Request.Context())
	if err != nil {
		ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, Res{Success: true, Data: overview})
}

func (hd *Handler) CreateSymbol(ctx *gin.Context) {
	var req CreateSymbolReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.Error(err)
		return
	}

	symbol, err := hd.svc.CreateSymbolAt(ctx.Request.Context(), req.Name, req.ListingDate)
	if err != nil {
		ctx.Error(toCustomError(err))
		return
	}
	ctx.JSON(http.StatusCreated, Res{Success: true, Data: SymbolRes{
		ID:          symbol.ID,
		Name:        symbol.Name,
		ListingDate: symbol.ListingDate,
		IsListed:    symbol.IsListed,
	}})
}

func (hd *Handler) BuySymbol(ctx *gin.Context) {
	var req BuyReq
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			ctx.Error(err)
			return
		}
	}

	// an accepted order must be recorded even if the client goes away
	order, err := hd.svc.BuyNow(context.WithoutCancel(ctx.Request.Context()), ctx.Param("name"), req.QuoteOrderQty)
	if err != nil {
		ctx.Error(toCustomError(err))
		return
	}
	ctx.JSON(http.StatusCreated, Res{Success: true, Data: orderRes(order)})
}

func (hd *Handler) SellOrder(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil || id == 0 {
		ctx.Error(ErrBadOrderID)
		return
	}

	order, err := hd.svc.SellNow(context.WithoutCancel(ctx.Request.Context()), uint(id))
	if err != nil {
		ctx.Error(toCustomError(err))
		return
	}
	ctx.JSON(http.StatusCreated, Res{Success: true, Data: orderRes(order)})
}

func (hd *Handler) Restart(ctx *gin.Context) {
	report, err := hd.svc.RestartAll(ctx.Request.Context())
	if err != nil {
		ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, Res{Success: true, Data: report})
}

func (hd *Handler) Statistics(ctx *gin.Context) {
	rows, err := hd.svc.Statistics(ctx.Request.Context())
	if err != nil {
		ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, Res{Success: true, Data: rows})
}

func orderRes(o *postgres.OrderRecord) OrderRes {
	return OrderRes{
		ID:       o.ID,
		OrderID:  o.OrderID,
		Side:     string(o.Side),
		Price:    o.Price,
		OrigQty:  o.OrigQty,
		ParentID: o.ParentID,
	}
}
