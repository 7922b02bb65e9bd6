package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sims-api/internal/models"
	"github.com/noah-isme/sims-api/internal/repository"
	appErrors "github.com/noah-isme/sims-api/pkg/errors"
	"github.com/noah-isme/sims-api/pkg/payment"
)

type memOrderRepo struct {
	orders map[string]models.PaymentOrder
}

func (m *memOrderRepo) Create(ctx context.Context, order *models.PaymentOrder) error {
	order.ID = "ord-" + order.OrderID
	m.orders[order.OrderID] = *order
	return nil
}

func (m *memOrderRepo) FindByOrderID(ctx context.Context, orderID string) (*models.PaymentOrder, error) {
	if o, ok := m.orders[orderID]; ok {
		return &o, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memOrderRepo) ListByFee(ctx context.Context, feeID string) ([]models.PaymentOrder, error) {
	return nil, nil
}

func (m *memOrderRepo) Resolve(ctx context.Context, orderID, status string) error {
	o := m.orders[orderID]
	if o.Status != models.OrderPending {
		return fmt.Errorf("resolve payment order: %w", repository.ErrStaleWrite)
	}
	o.Status = status
	m.orders[orderID] = o
	return nil
}

type fakeGateway struct {
	requests []payment.CheckoutRequest
	validSig bool
}

func (g *fakeGateway) CreateCheckout(ctx context.Context, req payment.CheckoutRequest) (*payment.Checkout, error) {
	g.requests = append(g.requests, req)
	return &payment.Checkout{Token: "snap-token", RedirectURL: "https://pay.example/" + req.OrderID}, nil
}

func (g *fakeGateway) VerifySignature(n payment.Notification) bool {
	return g.validSig
}

func TestOnlinePaymentCheckoutAndSettle(t *testing.T) {
	fee := tuitionFee()
	fee.ID = "8f14e45f-ceea-467f-a0e6-7a1bde1b6c01"
	fee.PaidAmount = 499.6
	fees, feeRepo, bus, _ := newFeeFixture(fee)
	orders := &memOrderRepo{orders: map[string]models.PaymentOrder{}}
	gateway := &fakeGateway{validSig: true}
	svc := NewOnlinePaymentService(orders, fees, gateway, nil)
	svc.now = func() time.Time { return ledgerNow }
	ctx := context.Background()

	order, err := svc.Checkout(ctx, fee.ID, models.Actor{UserID: "guardian-user", Role: models.RoleGuardian})
	require.NoError(t, err)
	assert.Equal(t, "FEE-8f14e45fceea-1738404000", order.OrderID)
	assert.Equal(t, 501.0, order.GrossAmount)
	assert.Equal(t, int64(501), gateway.requests[0].Amount)

	notification := payment.Notification{OrderID: order.OrderID, TransactionStatus: "settlement", TransactionID: "mid-1"}
	require.NoError(t, svc.HandleNotification(ctx, notification))
	assert.Equal(t, models.FeePaid, feeRepo.fees[fee.ID].Status)
	require.Len(t, feeRepo.payments, 1)
	assert.Equal(t, 500.4, feeRepo.payments[0].Amount)
	assert.Equal(t, models.PaymentOnline, feeRepo.payments[0].Method)
	assert.Equal(t, "guardian-user", *feeRepo.payments[0].ReceivedBy)

	require.NoError(t, svc.HandleNotification(ctx, notification))
	assert.Len(t, feeRepo.payments, 1)
	assert.Len(t, bus.events, 1)
}

func TestOnlinePaymentRejectsBadSignature(t *testing.T) {
	fees, _, _, _ := newFeeFixture(tuitionFee())
	svc := NewOnlinePaymentService(&memOrderRepo{orders: map[string]models.PaymentOrder{}}, fees, &fakeGateway{}, nil)

	err := svc.HandleNotification(context.Background(), payment.Notification{OrderID: "x", TransactionStatus: "settlement"})
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestOnlinePaymentFailedOrder(t *testing.T) {
	fees, feeRepo, _, _ := newFeeFixture(tuitionFee())
	orders := &memOrderRepo{orders: map[string]models.PaymentOrder{
		"FEE-1": {OrderID: "FEE-1", FeeID: "fee-1", GrossAmount: 1000, Status: models.OrderPending},
	}}
	svc := NewOnlinePaymentService(orders, fees, &fakeGateway{validSig: true}, nil)

	require.NoError(t, svc.HandleNotification(context.Background(), payment.Notification{OrderID: "FEE-1", TransactionStatus: "pending"}))
	assert.Equal(t, models.OrderPending, orders.orders["FEE-1"].Status)

	require.NoError(t, svc.HandleNotification(context.Background(), payment.Notification{OrderID: "FEE-1", TransactionStatus: "expire"}))
	assert.Equal(t, models.OrderFailed, orders.orders["FEE-1"].Status)
	assert.Empty(t, feeRepo.payments)

	_, err := NewOnlinePaymentService(orders, fees, nil, nil).Checkout(context.Background(), "fee-1", models.Actor{})
	assert.True(t, errors.Is(err, appErrors.ErrServiceUnavailable))
}
