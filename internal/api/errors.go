package api

import (
	"errors"
	"net/http"

	"food-order-service/internal/apperr"
	"food-order-service/internal/coupon"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError maps service errors to HTTP responses
func (h *Handler) respondError(c *gin.Context, err error) {
	var couponErr *coupon.Error
	if errors.As(err, &couponErr) {
		status := http.StatusUnprocessableEntity
		if couponErr.Reason == coupon.UsageLimitReached {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{
			"error":     couponErr.Error(),
			"errorCode": string(couponErr.Reason),
		})
		return
	}

	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		h.logger.Error("Unhandled error",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	switch appErr.Kind {
	case apperr.KindValidation:
		c.JSON(http.StatusBadRequest, gin.H{"error": appErr.Message})
	case apperr.KindNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": appErr.Message})
	case apperr.KindAuth:
		c.JSON(http.StatusUnauthorized, gin.H{"error": appErr.Message})
	case apperr.KindConflict:
		c.JSON(http.StatusConflict, gin.H{"error": appErr.Message})
	case apperr.KindGateway:
		if appErr.Err != nil {
			h.logger.Error("Gateway failure", zap.String("error_code", appErr.Code), zap.Error(appErr.Err))
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     appErr.Message,
			"errorCode": appErr.Code,
		})
	case apperr.KindTamper:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
	default:
		h.logger.Error("Internal error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
