package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/tenancy/internal/clock"
	"github.com/smallbiznis/tenancy/internal/config"
	directorydomain "github.com/smallbiznis/tenancy/internal/directory/domain"
	directoryrepo "github.com/smallbiznis/tenancy/internal/directory/repository"
	invoicedomain "github.com/smallbiznis/tenancy/internal/invoice/domain"
	invoiceservice "github.com/smallbiznis/tenancy/internal/invoice/service"
	"github.com/smallbiznis/tenancy/internal/payment/adapters"
	paymentdomain "github.com/smallbiznis/tenancy/internal/payment/domain"
	intentdomain "github.com/smallbiznis/tenancy/internal/paymentintent/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// fakeAdapter records initiate calls and can be told to fail.
type fakeAdapter struct {
	initiateCalls int
	fail          bool
}

func (a *fakeAdapter) Provider() string { return "fake" }

func (a *fakeAdapter) Initiate(ctx context.Context, req paymentdomain.InitiateRequest) (*paymentdomain.InitiateResult, error) {
	a.initiateCalls++
	if a.fail {
		return nil, errors.New("connection refused")
	}
	return &paymentdomain.InitiateResult{
		RedirectURL:   "https://pay.example.com/checkout/" + req.Reference,
		ProviderRef:   "prov-" + req.Reference,
		ProviderExtra: map[string]any{"session": "abc"},
	}, nil
}

func (a *fakeAdapter) ExtractReference(payload []byte) (string, error) {
	return "", paymentdomain.ErrMissingReference
}

func (a *fakeAdapter) Verify(ctx context.Context, reference string, payload []byte) (*paymentdomain.VerifyResult, error) {
	return &paymentdomain.VerifyResult{Success: true}, nil
}

type intentFixture struct {
	db         *gorm.DB
	node       *snowflake.Node
	clock      *clock.FakeClock
	svc        intentdomain.Service
	invoiceSvc invoicedomain.Service
	adapter    *fakeAdapter
	orgID      snowflake.ID
	tenantID   snowflake.ID
	leaseID    snowflake.ID
}

func newIntentFixture(t *testing.T) *intentFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&directorydomain.Organization{},
		&directorydomain.Tenant{},
		&directorydomain.Building{},
		&directorydomain.Unit{},
		&directorydomain.Lease{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceItem{},
		&intentdomain.PaymentIntent{},
	))

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	fc := clock.NewFakeClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	directory := directoryrepo.Provide(db)

	invoiceSvc := invoiceservice.NewService(invoiceservice.Params{
		DB: db, Log: zap.NewNop(), GenID: node, Directory: directory, Clock: fc,
	})

	adapter := &fakeAdapter{}
	svc := NewService(Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Directory:  directory,
		InvoiceSvc: invoiceSvc,
		Adapters:   adapters.NewSet(adapter),
		Clock:      fc,
		Cfg: config.Config{
			DefaultCurrency: "KES",
			IntentTTL:       30 * time.Minute,
			ProviderTimeout: 5 * time.Second,
		},
	})

	f := &intentFixture{
		db:         db,
		node:       node,
		clock:      fc,
		svc:        svc,
		invoiceSvc: invoiceSvc,
		adapter:    adapter,
		orgID:      node.Generate(),
		tenantID:   node.Generate(),
		leaseID:    node.Generate(),
	}

	buildingID := node.Generate()
	unitID := node.Generate()
	require.NoError(t, db.Create(&directorydomain.Organization{
		ID: f.orgID, Name: "Acme Estates", Currency: "KES", CreatedAt: fc.Now(),
	}).Error)
	require.NoError(t, db.Create(&directorydomain.Tenant{
		ID: f.tenantID, OrgID: f.orgID, Name: "Jane Wanjiku", CreatedAt: fc.Now(),
	}).Error)
	require.NoError(t, db.Create(&directorydomain.Building{
		ID: buildingID, OrgID: f.orgID, Name: "Block A", BaseRate: 500,
		GroundMultiplier: 1, CreatedAt: fc.Now(),
	}).Error)
	require.NoError(t, db.Create(&directorydomain.Unit{
		ID: unitID, OrgID: f.orgID, BuildingID: buildingID,
		UnitNumber: "A-101", Floor: 1, Area: 21, CreatedAt: fc.Now(),
	}).Error)
	require.NoError(t, db.Create(&directorydomain.Lease{
		ID: f.leaseID, OrgID: f.orgID, TenantID: f.tenantID, UnitID: unitID,
		RentAmount: 10500, Status: directorydomain.LeaseStatusActive,
		StartDate: fc.Now(), CreatedAt: fc.Now(),
	}).Error)
	return f
}

func (f *intentFixture) invoice(t *testing.T, status invoicedomain.InvoiceStatus) *invoicedomain.Invoice {
	t.Helper()
	ctx := context.Background()
	issue := f.clock.Now()
	invoice, err := f.invoiceSvc.Create(ctx, invoicedomain.CreateInvoiceInput{
		OrgID:       f.orgID,
		LeaseID:     f.leaseID,
		IssueDate:   issue,
		DueDate:     issue.AddDate(0, 0, 14),
		PeriodStart: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		Items: []invoicedomain.LineItemInput{
			{Description: "March rent", Kind: invoicedomain.ItemKindRent, Amount: 10500},
		},
	})
	require.NoError(t, err)
	if status != invoicedomain.InvoiceStatusDraft {
		_, err = f.invoiceSvc.UpdateStatus(ctx, f.orgID, invoice.ID, status, nil)
		require.NoError(t, err)
	}
	return invoice
}

func TestCreateAndInitiate_Succeeds(t *testing.T) {
	f := newIntentFixture(t)
	ctx := context.Background()
	invoice := f.invoice(t, invoicedomain.InvoiceStatusSent)

	intent, err := f.svc.CreateAndInitiate(ctx, intentdomain.CreateIntentInput{
		OrgID:     f.orgID,
		TenantID:  f.tenantID,
		InvoiceID: &invoice.ID,
		Amount:    10500,
		Provider:  "fake",
	})
	require.NoError(t, err)
	assert.Equal(t, intentdomain.IntentStatusPending, intent.Status)
	assert.True(t, strings.HasPrefix(intent.Reference, "PMT-"))
	assert.Equal(t, "KES", intent.Currency)
	assert.Equal(t, f.clock.Now().Add(30*time.Minute), intent.ExpiresAt)
	assert.Contains(t, intent.RedirectURL, intent.Reference)
	assert.Equal(t, "prov-"+intent.Reference, intent.ProviderRef)
	assert.Equal(t, "abc", intent.Metadata["session"])
	assert.Equal(t, 1, f.adapter.initiateCalls)
}

func TestCreateAndInitiate_PaidInvoiceRejectedBeforeProviderCall(t *testing.T) {
	f := newIntentFixture(t)
	ctx := context.Background()
	invoice := f.invoice(t, invoicedomain.InvoiceStatusPaid)

	_, err := f.svc.CreateAndInitiate(ctx, intentdomain.CreateIntentInput{
		OrgID:     f.orgID,
		TenantID:  f.tenantID,
		InvoiceID: &invoice.ID,
		Amount:    10500,
		Provider:  "fake",
	})
	assert.ErrorIs(t, err, intentdomain.ErrNothingToCollect)
	assert.Equal(t, 0, f.adapter.initiateCalls)

	var count int64
	require.NoError(t, f.db.Model(&intentdomain.PaymentIntent{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestCreateAndInitiate_AdapterFailurePersistsFailedIntent(t *testing.T) {
	f := newIntentFixture(t)
	ctx := context.Background()
	f.adapter.fail = true

	intent, err := f.svc.CreateAndInitiate(ctx, intentdomain.CreateIntentInput{
		OrgID:    f.orgID,
		TenantID: f.tenantID,
		Amount:   500,
		Provider: "fake",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, paymentdomain.ErrProviderCallFailed)
	require.NotNil(t, intent)

	reloaded, lookupErr := f.svc.GetByID(ctx, f.orgID, intent.ID)
	require.NoError(t, lookupErr)
	assert.Equal(t, intentdomain.IntentStatusFailed, reloaded.Status)
	assert.Contains(t, reloaded.Metadata["error"], "connection refused")
}

func TestCreateAndInitiate_Validation(t *testing.T) {
	f := newIntentFixture(t)
	ctx := context.Background()
	invoice := f.invoice(t, invoicedomain.InvoiceStatusSent)

	_, err := f.svc.CreateAndInitiate(ctx, intentdomain.CreateIntentInput{
		OrgID: f.orgID, TenantID: f.tenantID, Amount: 0, Provider: "fake",
	})
	assert.ErrorIs(t, err, intentdomain.ErrInvalidAmount)

	_, err = f.svc.CreateAndInitiate(ctx, intentdomain.CreateIntentInput{
		OrgID: f.orgID, TenantID: f.tenantID, Amount: 100, Provider: "unknown",
	})
	assert.ErrorIs(t, err, paymentdomain.ErrProviderNotFound)

	otherTenant := f.node.Generate()
	require.NoError(t, f.db.Create(&directorydomain.Tenant{
		ID: otherTenant, OrgID: f.orgID, Name: "Other", CreatedAt: f.clock.Now(),
	}).Error)
	_, err = f.svc.CreateAndInitiate(ctx, intentdomain.CreateIntentInput{
		OrgID: f.orgID, TenantID: otherTenant, InvoiceID: &invoice.ID,
		Amount: 100, Provider: "fake",
	})
	assert.ErrorIs(t, err, paymentdomain.ErrInvoiceMismatch)
	assert.Equal(t, 0, f.adapter.initiateCalls)
}

func TestExpirePending(t *testing.T) {
	f := newIntentFixture(t)
	ctx := context.Background()

	intent, err := f.svc.CreateAndInitiate(ctx, intentdomain.CreateIntentInput{
		OrgID: f.orgID, TenantID: f.tenantID, Amount: 500, Provider: "fake",
	})
	require.NoError(t, err)

	// Not yet expired.
	count, err := f.svc.ExpirePending(ctx, f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	f.clock.Advance(31 * time.Minute)
	count, err = f.svc.ExpirePending(ctx, f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	reloaded, err := f.svc.GetByID(ctx, f.orgID, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, intentdomain.IntentStatusExpired, reloaded.Status)
}
