package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository persists payments. Callers pass the db or transaction handle so
// the service controls transaction boundaries.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, payment *Payment) error
	Save(ctx context.Context, db *gorm.DB, payment *Payment) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Payment, error)

	// FindForUpdate locks the payment row for the caller's transaction.
	FindForUpdate(ctx context.Context, tx *gorm.DB, orgID, id snowflake.ID) (*Payment, error)

	List(ctx context.Context, db *gorm.DB, req ListPaymentRequest) ([]Payment, error)
}
