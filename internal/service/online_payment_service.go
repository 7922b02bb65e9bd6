package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sims-api/internal/models"
	"github.com/noah-isme/sims-api/internal/repository"
	appErrors "github.com/noah-isme/sims-api/pkg/errors"
	"github.com/noah-isme/sims-api/pkg/payment"
)

type paymentOrderRepository interface {
	Create(ctx context.Context, order *models.PaymentOrder) error
	FindByOrderID(ctx context.Context, orderID string) (*models.PaymentOrder, error)
	ListByFee(ctx context.Context, feeID string) ([]models.PaymentOrder, error)
	Resolve(ctx context.Context, orderID, status string) error
}

// CheckoutGateway opens hosted checkouts and authenticates their notifications.
type CheckoutGateway interface {
	CreateCheckout(ctx context.Context, req payment.CheckoutRequest) (*payment.Checkout, error)
	VerifySignature(n payment.Notification) bool
}

type feeCollector interface {
	Get(ctx context.Context, id string) (*models.FeeDetail, error)
	RecordPayment(ctx context.Context, feeID string, req PaymentRequest, actor models.Actor) (*models.FeePayment, error)
}

// OnlinePaymentService lets students and guardians pay fees through the payment gateway.
type OnlinePaymentService struct {
	orders  paymentOrderRepository
	fees    feeCollector
	gateway CheckoutGateway
	logger  *zap.Logger
	now     func() time.Time
}

// NewOnlinePaymentService constructs OnlinePaymentService.
func NewOnlinePaymentService(orders paymentOrderRepository, fees feeCollector, gateway CheckoutGateway, logger *zap.Logger) *OnlinePaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OnlinePaymentService{orders: orders, fees: fees, gateway: gateway, logger: logger, now: time.Now}
}

// Checkout opens a gateway transaction for the whole pending amount of a fee, rounded up to a whole unit.
func (s *OnlinePaymentService) Checkout(ctx context.Context, feeID string, actor models.Actor) (*models.PaymentOrder, error) {
	if s.gateway == nil {
		return nil, appErrors.Clone(appErrors.ErrServiceUnavailable, "online payments are not configured")
	}
	fee, err := s.fees.Get(ctx, feeID)
	if err != nil {
		return nil, err
	}
	gross := int64(math.Ceil(fee.PendingAmount))
	if gross <= 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "fee has nothing pending")
	}

	compact := strings.ReplaceAll(fee.ID, "-", "")
	if len(compact) > 12 {
		compact = compact[:12]
	}
	orderID := fmt.Sprintf("FEE-%s-%d", compact, s.now().Unix())
	checkout, err := s.gateway.CreateCheckout(ctx, payment.CheckoutRequest{
		OrderID:      orderID,
		Amount:       gross,
		ItemID:       fee.ID,
		ItemName:     fee.FeeType,
		CustomerName: fee.StudentName,
	})
	if err != nil {
		s.logger.Error("checkout failed", zap.String("fee_id", fee.ID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrServiceUnavailable.Code, appErrors.ErrServiceUnavailable.Status, "payment gateway unavailable")
	}

	order := &models.PaymentOrder{
		FeeID:       fee.ID,
		OrderID:     orderID,
		GrossAmount: float64(gross),
		Status:      models.OrderPending,
		SnapToken:   strPtr(checkout.Token),
		RedirectURL: strPtr(checkout.RedirectURL),
		CreatedBy:   strPtr(actor.UserID),
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, writeError(err, "failed to store payment order", "payment order already exists")
	}
	return order, nil
}

// Orders lists the checkouts opened for a fee.
func (s *OnlinePaymentService) Orders(ctx context.Context, feeID string) ([]models.PaymentOrder, error) {
	orders, err := s.orders.ListByFee(ctx, feeID)
	if err != nil {
		return nil, internalError(err, "failed to list payment orders")
	}
	return orders, nil
}

// HandleNotification applies a signed gateway notification. Orders resolve once; replays are ignored.
func (s *OnlinePaymentService) HandleNotification(ctx context.Context, n payment.Notification) error {
	if s.gateway == nil || !s.gateway.VerifySignature(n) {
		return appErrors.Clone(appErrors.ErrUnauthorized, "invalid notification signature")
	}
	order, err := s.orders.FindByOrderID(ctx, n.OrderID)
	if err != nil {
		return lookupError(err, "payment order")
	}

	var status string
	switch {
	case n.Settled():
		status = models.OrderSettled
	case n.Failed():
		status = models.OrderFailed
	default:
		return nil
	}
	if err := s.orders.Resolve(ctx, order.OrderID, status); err != nil {
		if errors.Is(err, repository.ErrStaleWrite) {
			s.logger.Info("duplicate payment notification", zap.String("order_id", order.OrderID))
			return nil
		}
		return internalError(err, "failed to resolve payment order")
	}
	if status != models.OrderSettled {
		return nil
	}

	fee, err := s.fees.Get(ctx, order.FeeID)
	if err != nil {
		return err
	}
	amount := math.Min(order.GrossAmount, fee.PendingAmount)
	if amount <= 0 {
		s.logger.Warn("settled order for a fee with nothing pending", zap.String("order_id", order.OrderID))
		return nil
	}
	actor := models.Actor{}
	if order.CreatedBy != nil {
		actor.UserID = *order.CreatedBy
	}
	reference := n.TransactionID
	if reference == "" {
		reference = order.OrderID
	}
	if _, err := s.fees.RecordPayment(ctx, order.FeeID, PaymentRequest{Amount: amount, Method: models.PaymentOnline, Reference: reference}, actor); err != nil {
		s.logger.Error("settled order could not be recorded", zap.String("order_id", order.OrderID), zap.Error(err))
		return err
	}
	return nil
}
