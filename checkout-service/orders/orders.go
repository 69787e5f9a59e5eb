// Package orders tracks the local orders that checkout sessions are created
// for. Orders are created as unpaid when a checkout session is created and
// moved to paid when Stripe reports a completed, paid checkout session.
package orders

import (
	"context"
	"errors"
	"time"
)

// Status is the payment status of an order.
type Status string

const (
	StatusUnpaid Status = "unpaid"
	StatusPaid   Status = "paid"
)

// ErrOrderNotFound is returned by Get when no order has the requested id.
var ErrOrderNotFound = errors.New("order not found")

// Order is a single purchase of a product.
type Order struct {
	ID          int64  `gorm:"primaryKey;autoIncrement:false"`
	ProductID   int64  // The product being purchased
	SessionID   string // The id of the Stripe checkout session for this order
	Status      Status `gorm:"index"`
	AmountTotal int64  // Total charged in minor currency units, set once paid
	Currency    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	PaidAt      *time.Time
}

// TableName sets the table used by gorm.
func (Order) TableName() string {
	return "orders"
}

// Payment records a checkout session that has been paid. Order ids can be
// reused by later checkouts, so payments are deduplicated by session.
type Payment struct {
	SessionID   string `gorm:"primaryKey"`
	OrderID     int64  `gorm:"index"`
	AmountTotal int64
	Currency    string
	PaidAt      time.Time
}

// TableName sets the table used by gorm.
func (Payment) TableName() string {
	return "payments"
}

// PaymentDetails are the values reported by Stripe when a checkout session
// for an order has been paid.
type PaymentDetails struct {
	ProductID   int64 // Zero when unknown, in which case the recorded product is kept
	SessionID   string
	AmountTotal int64
	Currency    string
}

// Store is the persistence capability used by the checkout and webhook
// handlers. Implementations must be safe for concurrent use.
type Store interface {
	// Create records a new unpaid order. If an order with the same id exists
	// and is still unpaid it is overwritten. A paid order is never modified.
	Create(ctx context.Context, order Order) error

	// MarkPaid records the payment of details.SessionID and moves the order
	// to paid, creating it if it does not exist. It returns true the first
	// time a session is reported paid; repeated calls for the same session are
	// no-ops that return false. A different session paying a reused order id
	// is a new payment: it returns true and the order takes its details.
	MarkPaid(ctx context.Context, id int64, details PaymentDetails) (bool, error)

	// Get returns the order with the given id, or ErrOrderNotFound.
	Get(ctx context.Context, id int64) (Order, error)

	// DeleteStaleUnpaid removes unpaid orders created before the given time
	// and returns how many were removed.
	DeleteStaleUnpaid(ctx context.Context, createdBefore time.Time) (int, error)
}
