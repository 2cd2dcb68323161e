package scheduler

import (
	"context"
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
	intentservice "github.com/smallbiznis/tenancy/internal/paymentintent/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type sweepAdapter struct{}

func (sweepAdapter) Provider() string { return "fake" }
func (sweepAdapter) Initiate(ctx context.Context, req paymentdomain.InitiateRequest) (*paymentdomain.InitiateResult, error) {
	return &paymentdomain.InitiateResult{Instructions: "pay"}, nil
}
func (sweepAdapter) ExtractReference(payload []byte) (string, error) {
	return "", paymentdomain.ErrMissingReference
}
func (sweepAdapter) Verify(ctx context.Context, reference string, payload []byte) (*paymentdomain.VerifyResult, error) {
	return &paymentdomain.VerifyResult{Success: true}, nil
}

func TestRunOnce_SweepsOverdueInvoicesAndExpiredIntents(t *testing.T) {
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

	node, err := snowflake.NewNode(4)
	require.NoError(t, err)
	fc := clock.NewFakeClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	directory := directoryrepo.Provide(db)
	cfg := config.Config{
		DefaultCurrency:   "KES",
		IntentTTL:         30 * time.Minute,
		SchedulerInterval: time.Minute,
	}

	invoiceSvc := invoiceservice.NewService(invoiceservice.Params{
		DB: db, Log: zap.NewNop(), GenID: node, Directory: directory, Clock: fc,
	})
	intentSvc := intentservice.NewService(intentservice.Params{
		DB: db, Log: zap.NewNop(), GenID: node, Directory: directory,
		InvoiceSvc: invoiceSvc, Adapters: adapters.NewSet(sweepAdapter{}),
		Clock: fc, Cfg: cfg,
	})
	sched := New(Params{
		Log: zap.NewNop(), InvoiceSvc: invoiceSvc, IntentSvc: intentSvc,
		Clock: fc, Cfg: cfg,
	})

	orgID := node.Generate()
	tenantID := node.Generate()
	buildingID := node.Generate()
	unitID := node.Generate()
	leaseID := node.Generate()
	require.NoError(t, db.Create(&directorydomain.Organization{
		ID: orgID, Name: "Acme", Currency: "KES", CreatedAt: fc.Now(),
	}).Error)
	require.NoError(t, db.Create(&directorydomain.Tenant{
		ID: tenantID, OrgID: orgID, Name: "Jane", CreatedAt: fc.Now(),
	}).Error)
	require.NoError(t, db.Create(&directorydomain.Building{
		ID: buildingID, OrgID: orgID, Name: "A", BaseRate: 1, GroundMultiplier: 1, CreatedAt: fc.Now(),
	}).Error)
	require.NoError(t, db.Create(&directorydomain.Unit{
		ID: unitID, OrgID: orgID, BuildingID: buildingID, UnitNumber: "A-1",
		Floor: 1, Area: 1, CreatedAt: fc.Now(),
	}).Error)
	require.NoError(t, db.Create(&directorydomain.Lease{
		ID: leaseID, OrgID: orgID, TenantID: tenantID, UnitID: unitID,
		RentAmount: 100, Status: directorydomain.LeaseStatusActive,
		StartDate: fc.Now(), CreatedAt: fc.Now(),
	}).Error)

	ctx := context.Background()
	invoice, err := invoiceSvc.Create(ctx, invoicedomain.CreateInvoiceInput{
		OrgID:       orgID,
		LeaseID:     leaseID,
		IssueDate:   fc.Now(),
		DueDate:     fc.Now().AddDate(0, 0, 7),
		PeriodStart: fc.Now(),
		PeriodEnd:   fc.Now().AddDate(0, 1, 0),
		Items: []invoicedomain.LineItemInput{
			{Description: "Rent", Kind: invoicedomain.ItemKindRent, Amount: 100},
		},
	})
	require.NoError(t, err)
	_, err = invoiceSvc.UpdateStatus(ctx, orgID, invoice.ID, invoicedomain.InvoiceStatusSent, nil)
	require.NoError(t, err)

	intent, err := intentSvc.CreateAndInitiate(ctx, intentdomain.CreateIntentInput{
		OrgID: orgID, TenantID: tenantID, Amount: 100, Provider: "fake",
	})
	require.NoError(t, err)

	// Nothing due yet.
	require.NoError(t, sched.RunOnce(ctx))
	got, err := invoiceSvc.GetByID(ctx, orgID, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusSent, got.Status)

	fc.Advance(8 * 24 * time.Hour)
	require.NoError(t, sched.RunOnce(ctx))

	got, err = invoiceSvc.GetByID(ctx, orgID, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusOverdue, got.Status)

	reloaded, err := intentSvc.GetByID(ctx, orgID, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, intentdomain.IntentStatusExpired, reloaded.Status)
}
