package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/sims-api/internal/service"
	"github.com/noah-isme/sims-api/pkg/payment"
	"github.com/noah-isme/sims-api/pkg/response"
)

// PaymentWebhookHandler receives gateway notifications. The route is unauthenticated;
// notifications are trusted only after signature verification.
type PaymentWebhookHandler struct {
	online *service.OnlinePaymentService
	logger *zap.Logger
}

// NewPaymentWebhookHandler constructs the handler.
func NewPaymentWebhookHandler(online *service.OnlinePaymentService, logger *zap.Logger) *PaymentWebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentWebhookHandler{online: online, logger: logger}
}

// Notify godoc
// @Summary Payment gateway notification
// @Tags Payments
// @Accept json
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope "Bad signature"
// @Router /payments/notifications [post]
func (h *PaymentWebhookHandler) Notify(c *gin.Context) {
	var n payment.Notification
	if !bindJSON(c, &n) {
		return
	}
	if err := h.online.HandleNotification(c.Request.Context(), n); err != nil {
		h.logger.Warn("payment notification rejected", zap.String("order_id", n.OrderID), zap.Error(err))
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"order_id": n.OrderID, "status": n.TransactionStatus}, nil)
}
