package orders

import (
	"context"
	"errors"
	"time"

	"github.com/whisthq/whist/backend/checkout/utils"
	logger "github.com/whisthq/whist/backend/checkout/whistlogger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// PostgresStore is a Store backed by a Postgres database through gorm.
type PostgresStore struct {
	db *gorm.DB
}

// NewPostgresStore connects to the database at dsn and migrates the orders
// table.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, utils.MakeError("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&Order{}, &Payment{}); err != nil {
		return nil, utils.MakeError("failed to migrate orders tables: %w", err)
	}

	logger.Infof("Connected to orders database.")
	return &PostgresStore{db: db}, nil
}

// unpaidOnly restricts Create so that it never touches a paid order.
var unpaidOnly = clause.Where{Exprs: []clause.Expression{
	clause.Neq{Column: clause.Column{Table: Order{}.TableName(), Name: "status"}, Value: string(StatusPaid)},
}}

func (s *PostgresStore) Create(ctx context.Context, order Order) error {
	now := time.Now()
	order.Status = StatusUnpaid
	order.CreatedAt = now
	order.UpdatedAt = now
	order.PaidAt = nil

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"product_id": order.ProductID,
			"session_id": order.SessionID,
			"status":     string(StatusUnpaid),
			"created_at": now,
			"updated_at": now,
		}),
		Where: unpaidOnly,
	}).Create(&order).Error
	if err != nil {
		return utils.MakeError("failed to create order %d: %w", order.ID, err)
	}

	return nil
}

func (s *PostgresStore) MarkPaid(ctx context.Context, id int64, details PaymentDetails) (bool, error) {
	now := time.Now()
	payment := Payment{
		SessionID:   details.SessionID,
		OrderID:     id,
		AmountTotal: details.AmountTotal,
		Currency:    details.Currency,
		PaidAt:      now,
	}
	order := Order{
		ID:          id,
		ProductID:   details.ProductID,
		SessionID:   details.SessionID,
		Status:      StatusPaid,
		AmountTotal: details.AmountTotal,
		Currency:    details.Currency,
		CreatedAt:   now,
		UpdatedAt:   now,
		PaidAt:      &now,
	}

	updates := map[string]interface{}{
		"session_id":   details.SessionID,
		"status":       string(StatusPaid),
		"amount_total": details.AmountTotal,
		"currency":     details.Currency,
		"updated_at":   now,
		"paid_at":      now,
	}
	if details.ProductID != 0 {
		updates["product_id"] = details.ProductID
	}

	var transitioned bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// A session that was already recorded affects no rows.
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&payment)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.Assignments(updates),
		}).Create(&order).Error
		if err != nil {
			return err
		}

		transitioned = true
		return nil
	})
	if err != nil {
		return false, utils.MakeError("failed to mark order %d as paid by session %s: %w", id, details.SessionID, err)
	}

	return transitioned, nil
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (Order, error) {
	var order Order
	err := s.db.WithContext(ctx).First(&order, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Order{}, ErrOrderNotFound
	} else if err != nil {
		return Order{}, utils.MakeError("failed to query order %d: %w", id, err)
	}

	return order, nil
}

func (s *PostgresStore) DeleteStaleUnpaid(ctx context.Context, createdBefore time.Time) (int, error) {
	res := s.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", string(StatusUnpaid), createdBefore).
		Delete(&Order{})
	if res.Error != nil {
		return 0, utils.MakeError("failed to delete stale unpaid orders: %w", res.Error)
	}

	return int(res.RowsAffected), nil
}

// Close closes the underlying database connection pool.
func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
