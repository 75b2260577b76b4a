package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	RequestIDKey    = "request_id"
	RequestIDHeader = "X-Request-ID"
)

// Error renders the first error attached to the context.
func Error() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors[0].Err

		// - Validation error from request binding
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			validationErrors := make([]ErrorType, 0, len(ve))
			for _, fe := range ve {
				validationErrors = append(validationErrors, ErrorType{
					Field:   fe.Field(),
					Message: fe.Error(),
				})
			}
			c.AbortWithStatusJSON(http.StatusBadRequest, Res{Success: false, Error: validationErrors})
			return
		}

		// - Mapped domain error
		var ce CustomError
		if errors.As(err, &ce) {
			c.AbortWithStatusJSON(ce.StatusCode, Res{Success: false, Error: ce.Error()})
			return
		}

		// - Unknown error
		c.AbortWithStatusJSON(http.StatusInternalServerError, Res{Success: false, Error: err.Error()})
	}
}

// Logging tags each request with an id and logs its outcome.
func Logging(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(RequestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)

		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("error", c.Errors.String()))
		}

		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Error("request failed", fields...)
		} else {
			logger.Info("request completed", fields...)
		}
	}
}

// Recovery turns a handler panic into a 500 envelope.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				requestID, _ := c.Get(RequestIDKey)
				logger.Error("request panicked", zap.Any("request_id", requestID), zap.Any("panic", r))
				c.AbortWithStatusJSON(http.StatusInternalServerError, Res{Success: false, Error: "internal server error"})
			}
		}()
		c.Next()
	}
}
