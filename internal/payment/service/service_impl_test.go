package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/tenancy/internal/clock"
	directorydomain "github.com/smallbiznis/tenancy/internal/directory/domain"
	directoryrepo "github.com/smallbiznis/tenancy/internal/directory/repository"
	invoicedomain "github.com/smallbiznis/tenancy/internal/invoice/domain"
	invoiceservice "github.com/smallbiznis/tenancy/internal/invoice/service"
	paymentdomain "github.com/smallbiznis/tenancy/internal/payment/domain"
	"github.com/smallbiznis/tenancy/internal/payment/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type paymentFixture struct {
	db         *gorm.DB
	node       *snowflake.Node
	clock      *clock.FakeClock
	svc        paymentdomain.Service
	invoiceSvc invoicedomain.Service
	orgID      snowflake.ID
	tenantID   snowflake.ID
	leaseID    snowflake.ID
}

func newPaymentFixture(t *testing.T) *paymentFixture {
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
		&paymentdomain.Payment{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fc := clock.NewFakeClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	directory := directoryrepo.Provide(db)

	invoiceSvc := invoiceservice.NewService(invoiceservice.Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Directory: directory,
		Clock:     fc,
	})
	svc := NewService(Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Repo:       repository.Provide(),
		Directory:  directory,
		InvoiceSvc: invoiceSvc,
		Clock:      fc,
	})

	f := &paymentFixture{
		db:         db,
		node:       node,
		clock:      fc,
		svc:        svc,
		invoiceSvc: invoiceSvc,
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

// sentInvoice creates the scenario invoice: rent 10000 + charge 500, tax 0.
func (f *paymentFixture) sentInvoice(t *testing.T) *invoicedomain.Invoice {
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
			{Description: "March rent", Kind: invoicedomain.ItemKindRent, Amount: 10000},
			{Description: "Water", Kind: invoicedomain.ItemKindCharge, Amount: 500},
		},
	})
	require.NoError(t, err)
	require.Equal(t, int64(10500), invoice.TotalAmount)
	_, err = f.invoiceSvc.UpdateStatus(ctx, f.orgID, invoice.ID, invoicedomain.InvoiceStatusSent, nil)
	require.NoError(t, err)
	return invoice
}

func (f *paymentFixture) completed(invoiceID *snowflake.ID, amount int64, reference string) paymentdomain.CreatePaymentInput {
	return paymentdomain.CreatePaymentInput{
		OrgID:           f.orgID,
		TenantID:        f.tenantID,
		InvoiceID:       invoiceID,
		Amount:          amount,
		Method:          paymentdomain.MethodMpesa,
		Status:          paymentdomain.PaymentStatusCompleted,
		ReferenceNumber: reference,
	}
}

func TestCreatePayment_PartialThenFullSettlesInvoice(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	invoice := f.sentInvoice(t)

	_, err := f.svc.Create(ctx, f.completed(&invoice.ID, 6000, "REF-001"))
	require.NoError(t, err)

	got, err := f.invoiceSvc.GetByID(ctx, f.orgID, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusSent, got.Status)
	assert.Nil(t, got.PaidAt)

	_, err = f.svc.Create(ctx, f.completed(&invoice.ID, 4500, "REF-002"))
	require.NoError(t, err)

	got, err = f.invoiceSvc.GetByID(ctx, f.orgID, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusPaid, got.Status)
	require.NotNil(t, got.PaidAt)
}

func TestCreatePayment_DuplicateReference(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.completed(nil, 10500, "REF-DUP"))
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, f.completed(nil, 10500, "REF-DUP"))
	assert.ErrorIs(t, err, paymentdomain.ErrDuplicateReference)

	var count int64
	require.NoError(t, f.db.Model(&paymentdomain.Payment{}).
		Where("org_id = ? AND reference_number = ?", f.orgID, "REF-DUP").
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCreatePayment_EmptyReferencesDoNotCollide(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.completed(nil, 100, ""))
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, f.completed(nil, 200, ""))
	require.NoError(t, err)
}

func TestCreatePayment_Validation(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	invoice := f.sentInvoice(t)

	bad := f.completed(&invoice.ID, 0, "")
	_, err := f.svc.Create(ctx, bad)
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidAmount)

	bad = f.completed(&invoice.ID, 100, "")
	bad.Method = "crypto"
	_, err = f.svc.Create(ctx, bad)
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidMethod)

	bad = f.completed(&invoice.ID, 100, "")
	bad.TenantID = f.node.Generate()
	_, err = f.svc.Create(ctx, bad)
	assert.ErrorIs(t, err, directorydomain.ErrTenantNotFound)

	foreign := f.node.Generate()
	bad = f.completed(&foreign, 100, "")
	_, err = f.svc.Create(ctx, bad)
	assert.ErrorIs(t, err, invoicedomain.ErrInvoiceNotFound)

	bad = f.completed(&invoice.ID, 100, "")
	bad.Status = paymentdomain.PaymentStatusRefunded
	_, err = f.svc.Create(ctx, bad)
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidPaymentState)
}

func TestUpdatePayment_PendingOnlyExceptFinalize(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	invoice := f.sentInvoice(t)

	input := f.completed(&invoice.ID, 10500, "REF-PEND")
	input.Status = paymentdomain.PaymentStatusPending
	payment, err := f.svc.Create(ctx, input)
	require.NoError(t, err)

	// Pending payment never settles the invoice.
	got, err := f.invoiceSvc.GetByID(ctx, f.orgID, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusSent, got.Status)

	amount := int64(9000)
	_, err = f.svc.Update(ctx, f.orgID, payment.ID, paymentdomain.UpdatePaymentInput{Amount: &amount})
	require.NoError(t, err)

	// Finalizing to completed triggers settlement of what was paid.
	amount = 10500
	completed := paymentdomain.PaymentStatusCompleted
	updated, err := f.svc.Update(ctx, f.orgID, payment.ID, paymentdomain.UpdatePaymentInput{
		Amount: &amount,
		Status: &completed,
	})
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.PaymentStatusCompleted, updated.Status)
	assert.Equal(t, paymentdomain.ReconciliationReconciled, updated.ReconciliationStatus)

	got, err = f.invoiceSvc.GetByID(ctx, f.orgID, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusPaid, got.Status)

	// Completed payment rejects field mutation.
	amount = 1
	_, err = f.svc.Update(ctx, f.orgID, payment.ID, paymentdomain.UpdatePaymentInput{Amount: &amount})
	assert.ErrorIs(t, err, paymentdomain.ErrPaymentImmutable)

	// But a failed finalization is still a legal transition.
	failed := paymentdomain.PaymentStatusFailed
	reason := "chargeback"
	updated, err = f.svc.Update(ctx, f.orgID, payment.ID, paymentdomain.UpdatePaymentInput{
		Status:        &failed,
		FailureReason: &reason,
	})
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.PaymentStatusFailed, updated.Status)
	assert.Equal(t, 1, updated.RetryCount)

	// Refunds never go through Update.
	refunded := paymentdomain.PaymentStatusRefunded
	_, err = f.svc.Update(ctx, f.orgID, payment.ID, paymentdomain.UpdatePaymentInput{Status: &refunded})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidPaymentState)
}

func TestRefundPayment_RevertsInvoiceToSent(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	invoice := f.sentInvoice(t)

	payment, err := f.svc.Create(ctx, f.completed(&invoice.ID, 10500, "REF-FULL"))
	require.NoError(t, err)

	got, err := f.invoiceSvc.GetByID(ctx, f.orgID, invoice.ID)
	require.NoError(t, err)
	require.Equal(t, invoicedomain.InvoiceStatusPaid, got.Status)

	refunded, err := f.svc.Refund(ctx, f.orgID, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.PaymentStatusRefunded, refunded.Status)

	got, err = f.invoiceSvc.GetByID(ctx, f.orgID, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusSent, got.Status)
	assert.Nil(t, got.PaidAt)

	// Never un-refund.
	_, err = f.svc.Refund(ctx, f.orgID, payment.ID)
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidPaymentState)
}

func TestRefundPayment_OnlyFromCompleted(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	input := f.completed(nil, 500, "")
	input.Status = paymentdomain.PaymentStatusPending
	payment, err := f.svc.Create(ctx, input)
	require.NoError(t, err)

	_, err = f.svc.Refund(ctx, f.orgID, payment.ID)
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidPaymentState)
}

func TestGetAndListPayments_OrgScoping(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	payment, err := f.svc.Create(ctx, f.completed(nil, 500, "REF-LIST"))
	require.NoError(t, err)

	_, err = f.svc.GetByID(ctx, f.node.Generate(), payment.ID)
	assert.ErrorIs(t, err, paymentdomain.ErrPaymentNotFound)

	status := paymentdomain.PaymentStatusCompleted
	list, err := f.svc.List(ctx, paymentdomain.ListPaymentRequest{
		OrgID:    f.orgID,
		TenantID: &f.tenantID,
		Status:   &status,
	})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
