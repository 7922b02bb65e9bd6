package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sims-api/internal/models"
)

const orderColumns = `id, fee_id, order_id, gross_amount, status, snap_token, redirect_url, created_by, created_at, updated_at`

// PaymentOrderRepository persists online checkout orders.
type PaymentOrderRepository struct {
	db *sqlx.DB
}

// NewPaymentOrderRepository constructs a PaymentOrderRepository.
func NewPaymentOrderRepository(db *sqlx.DB) *PaymentOrderRepository {
	return &PaymentOrderRepository{db: db}
}

// Create inserts a pending order.
func (r *PaymentOrderRepository) Create(ctx context.Context, order *models.PaymentOrder) error {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	order.CreatedAt = now
	order.UpdatedAt = now
	const query = `INSERT INTO payment_orders (` + orderColumns + `)
VALUES (:id, :fee_id, :order_id, :gross_amount, :status, :snap_token, :redirect_url, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, order); err != nil {
		return wrapWrite("create payment order", err)
	}
	return nil
}

// FindByOrderID looks up an order by the gateway order id.
func (r *PaymentOrderRepository) FindByOrderID(ctx context.Context, orderID string) (*models.PaymentOrder, error) {
	var order models.PaymentOrder
	if err := r.db.GetContext(ctx, &order, "SELECT "+orderColumns+" FROM payment_orders WHERE order_id = $1", orderID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find payment order: %w", err)
	}
	return &order, nil
}

// ListByFee returns the orders opened for a fee.
func (r *PaymentOrderRepository) ListByFee(ctx context.Context, feeID string) ([]models.PaymentOrder, error) {
	var orders []models.PaymentOrder
	if err := r.db.SelectContext(ctx, &orders, "SELECT "+orderColumns+" FROM payment_orders WHERE fee_id = $1 ORDER BY created_at DESC", feeID); err != nil {
		return nil, fmt.Errorf("list payment orders: %w", err)
	}
	return orders, nil
}

// Resolve moves a pending order to a final status. A second notification for the same order is a stale write.
func (r *PaymentOrderRepository) Resolve(ctx context.Context, orderID, status string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE payment_orders SET status = $2, updated_at = $3 WHERE order_id = $1 AND status = 'pending'`,
		orderID, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("resolve payment order: %w", err)
	}
	return expectOneRow(res, "resolve payment order")
}
