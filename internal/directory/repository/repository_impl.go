package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tenancy/internal/directory/domain"
	"gorm.io/gorm"
)

type store struct {
	db *gorm.DB
}

func Provide(db *gorm.DB) domain.Store {
	return &store{db: db}
}

func (s *store) FindOrganization(ctx context.Context, id snowflake.ID) (*domain.Organization, error) {
	var org domain.Organization
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&org).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrganizationNotFound
		}
		return nil, err
	}
	return &org, nil
}

func (s *store) FindTenant(ctx context.Context, id, orgID snowflake.ID) (*domain.Tenant, error) {
	var tenant domain.Tenant
	err := s.db.WithContext(ctx).Where("id = ? AND org_id = ?", id, orgID).First(&tenant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTenantNotFound
		}
		return nil, err
	}
	return &tenant, nil
}

func (s *store) FindLease(ctx context.Context, id, orgID snowflake.ID) (*domain.Lease, error) {
	var lease domain.Lease
	err := s.db.WithContext(ctx).Where("id = ? AND org_id = ?", id, orgID).First(&lease).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrLeaseNotFound
		}
		return nil, err
	}
	return &lease, nil
}

func (s *store) FindUnit(ctx context.Context, id, orgID snowflake.ID) (*domain.Unit, error) {
	var unit domain.Unit
	err := s.db.WithContext(ctx).Where("id = ? AND org_id = ?", id, orgID).First(&unit).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUnitNotFound
		}
		return nil, err
	}
	return &unit, nil
}

func (s *store) FindBuilding(ctx context.Context, id, orgID snowflake.ID) (*domain.Building, error) {
	var building domain.Building
	err := s.db.WithContext(ctx).Where("id = ? AND org_id = ?", id, orgID).First(&building).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrBuildingNotFound
		}
		return nil, err
	}
	return &building, nil
}
