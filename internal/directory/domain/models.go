// Package domain contains read models for the organization directory. The
// billing core validates cross-entity ownership against these rows and never
// writes to them.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

var (
	ErrOrganizationNotFound = errors.New("organization_not_found")
	ErrTenantNotFound       = errors.New("tenant_not_found")
	ErrLeaseNotFound        = errors.New("lease_not_found")
	ErrUnitNotFound         = errors.New("unit_not_found")
	ErrBuildingNotFound     = errors.New("building_not_found")
)

type Organization struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	Name      string       `gorm:"type:text;not null"`
	Currency  string       `gorm:"type:text;not null"`
	CreatedAt time.Time    `gorm:"not null"`
}

func (Organization) TableName() string { return "organizations" }

type Tenant struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	OrgID     snowflake.ID `gorm:"not null;index"`
	Name      string       `gorm:"type:text;not null"`
	Phone     string       `gorm:"type:text"`
	Email     string       `gorm:"type:text"`
	CreatedAt time.Time    `gorm:"not null"`
}

func (Tenant) TableName() string { return "tenants" }

type Building struct {
	ID    snowflake.ID `gorm:"primaryKey"`
	OrgID snowflake.ID `gorm:"not null;index"`
	Name  string       `gorm:"type:text;not null"`

	// Rent policy. FloorOverrides maps floor number to an override rate.
	BaseRate          int64             `gorm:"not null;default:0"`
	DecrementPerFloor int64             `gorm:"not null;default:0"`
	GroundMultiplier  float64           `gorm:"not null;default:1"`
	MinRate           int64             `gorm:"not null;default:0"`
	FloorOverrides    datatypes.JSONMap `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"not null"`
}

func (Building) TableName() string { return "buildings" }

type Unit struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	OrgID      snowflake.ID `gorm:"not null;index"`
	BuildingID snowflake.ID `gorm:"not null;index"`
	UnitNumber string       `gorm:"type:text;not null"`
	Floor      int          `gorm:"not null;default:0"`
	Area       float64      `gorm:"not null;default:0"`

	// Per-unit rent overrides. FlatRent wins over RatePerArea.
	FlatRent    *int64 `gorm:""`
	RatePerArea *int64 `gorm:""`

	CreatedAt time.Time `gorm:"not null"`
}

func (Unit) TableName() string { return "units" }

type LeaseStatus string

const (
	LeaseStatusActive     LeaseStatus = "active"
	LeaseStatusTerminated LeaseStatus = "terminated"
)

type Lease struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	OrgID      snowflake.ID `gorm:"not null;index"`
	TenantID   snowflake.ID `gorm:"not null;index"`
	UnitID     snowflake.ID `gorm:"not null;index"`
	RentAmount int64        `gorm:"not null"`
	Status     LeaseStatus  `gorm:"type:text;not null;default:'active'"`
	StartDate  time.Time    `gorm:"not null"`
	EndDate    *time.Time   `gorm:""`
	CreatedAt  time.Time    `gorm:"not null"`
}

func (Lease) TableName() string { return "leases" }

// Store supplies org-scoped lookups. A lookup that matches a row in another
// organization reports not-found, never the foreign row.
type Store interface {
	FindOrganization(ctx context.Context, id snowflake.ID) (*Organization, error)
	FindTenant(ctx context.Context, id, orgID snowflake.ID) (*Tenant, error)
	FindLease(ctx context.Context, id, orgID snowflake.ID) (*Lease, error)
	FindUnit(ctx context.Context, id, orgID snowflake.ID) (*Unit, error)
	FindBuilding(ctx context.Context, id, orgID snowflake.ID) (*Building, error)
}
