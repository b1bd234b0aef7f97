package api

import (
	"net/http"

	"food-order-service/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// initializePayment starts a card payment
func (h *Handler) initializePayment(c *gin.Context) {
	var req service.InitializeRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}
	if req.ClientIP == "" {
		req.ClientIP = c.ClientIP()
	}

	resp, err := h.paymentService.Initialize(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// paymentCallback receives the bank's ACS redirect. It always answers with a
// redirect so the browser lands on the storefront.
func (h *Handler) paymentCallback(c *gin.Context) {
	var cb service.CallbackParams
	if err := c.ShouldBind(&cb); err != nil {
		h.logger.Warn("Malformed payment callback", zap.Error(err))
	}
	cb.ClientIP = c.ClientIP()

	c.Redirect(http.StatusFound, h.paymentService.HandleCallback(c.Request.Context(), cb))
}

// paymentStatus looks a payment up by transaction or order id
func (h *Handler) paymentStatus(c *gin.Context) {
	resp, err := h.paymentService.GetPaymentStatus(c.Request.Context(), c.Param("transactionId"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// offlinePayment settles an order as cash/card on delivery or pickup
func (h *Handler) offlinePayment(c *gin.Context) {
	var req service.OfflinePaymentRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	resp, err := h.paymentService.OfflinePayment(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
