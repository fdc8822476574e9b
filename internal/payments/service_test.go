package payments

import (
	"context"
	"testing"

	"github.com/angelmondragon/openshelf-backend/internal/checkout"
	"github.com/angelmondragon/openshelf-backend/pkg/db/models"
	"github.com/angelmondragon/openshelf-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/openshelf-backend/pkg/errors"
	"github.com/angelmondragon/openshelf-backend/pkg/logger"
	paginationpkg "github.com/angelmondragon/openshelf-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type fakeRepository struct {
	getFn       func(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	listFn      func(ctx context.Context, params ListPaymentsParams) ([]models.Payment, *paginationpkg.Cursor, error)
	markPaidFn  func(ctx context.Context, id uuid.UUID) (int64, error)
	renewFn     func(ctx context.Context, id uuid.UUID, sessionID, sessionURL string) (int64, error)
	markPaidIDs []uuid.UUID
	renewedIDs  []uuid.UUID
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) Create(ctx context.Context, payment *models.Payment) error { return nil }

func (f *fakeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) List(ctx context.Context, params ListPaymentsParams) ([]models.Payment, *paginationpkg.Cursor, error) {
	if f.listFn != nil {
		return f.listFn(ctx, params)
	}
	return nil, nil, nil
}

func (f *fakeRepository) CountPendingByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	return 0, nil
}

func (f *fakeRepository) ListPendingWithSession(ctx context.Context) ([]models.Payment, error) {
	return nil, nil
}

func (f *fakeRepository) MarkPaid(ctx context.Context, id uuid.UUID) (int64, error) {
	f.markPaidIDs = append(f.markPaidIDs, id)
	if f.markPaidFn != nil {
		return f.markPaidFn(ctx, id)
	}
	return 1, nil
}

func (f *fakeRepository) MarkExpired(ctx context.Context, id uuid.UUID) (int64, error) {
	return 0, nil
}

func (f *fakeRepository) AttachSession(ctx context.Context, id uuid.UUID, sessionID, sessionURL string) error {
	return nil
}

func (f *fakeRepository) RenewSession(ctx context.Context, id uuid.UUID, sessionID, sessionURL string) (int64, error) {
	f.renewedIDs = append(f.renewedIDs, id)
	if f.renewFn != nil {
		return f.renewFn(ctx, id, sessionID, sessionURL)
	}
	return 1, nil
}

type fakeGateway struct {
	createFn   func(ctx context.Context, req checkout.SessionRequest) (*checkout.Session, error)
	retrieveFn func(ctx context.Context, sessionID string) (*checkout.Session, error)
}

func (f *fakeGateway) CreateSession(ctx context.Context, req checkout.SessionRequest) (*checkout.Session, error) {
	if f.createFn != nil {
		return f.createFn(ctx, req)
	}
	return &checkout.Session{ID: "cs_renewed", URL: "https://checkout.test/cs_renewed"}, nil
}

func (f *fakeGateway) RetrieveSession(ctx context.Context, sessionID string) (*checkout.Session, error) {
	if f.retrieveFn != nil {
		return f.retrieveFn(ctx, sessionID)
	}
	return &checkout.Session{ID: sessionID, Status: "open"}, nil
}

func newService(t *testing.T, repo *fakeRepository, gateway *fakeGateway) Service {
	t.Helper()
	svc, err := NewService(repo, gateway, logger.New(logger.Options{ServiceName: "payments-test"}))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func pendingPayment(userID uuid.UUID, sessionID *string, status enums.PaymentStatus) *models.Payment {
	borrowingID := uuid.New()
	return &models.Payment{
		ID:          uuid.New(),
		Status:      status,
		Type:        enums.PaymentTypePayment,
		BorrowingID: borrowingID,
		SessionID:   sessionID,
		MoneyToPay:  decimal.RequireFromString("10.00"),
		Borrowing: &models.Borrowing{
			ID:     borrowingID,
			UserID: userID,
			Book:   &models.Book{Title: "Clean Architecture"},
		},
	}
}

func TestService_GetHidesForeignRows(t *testing.T) {
	owner := uuid.New()
	payment := pendingPayment(owner, nil, enums.PaymentStatusPending)
	repo := &fakeRepository{getFn: func(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
		return payment, nil
	}}
	svc := newService(t, repo, &fakeGateway{})

	_, err := svc.Get(context.Background(), GetParams{PaymentID: payment.ID, ActorUserID: uuid.New()})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}

	got, err := svc.Get(context.Background(), GetParams{PaymentID: payment.ID, ActorUserID: owner})
	if err != nil {
		t.Fatalf("owner read should succeed: %v", err)
	}
	if got.ID != payment.ID {
		t.Fatal("unexpected payment returned")
	}

	// staff see everything
	if _, err := svc.Get(context.Background(), GetParams{
		PaymentID:   payment.ID,
		ActorUserID: uuid.New(),
		ActorStaff:  true,
	}); err != nil {
		t.Fatalf("staff read should succeed: %v", err)
	}
}

func TestService_ListScopesNonStaffToOwnRows(t *testing.T) {
	actorID := uuid.New()
	var captured ListPaymentsParams
	repo := &fakeRepository{listFn: func(ctx context.Context, params ListPaymentsParams) ([]models.Payment, *paginationpkg.Cursor, error) {
		captured = params
		return nil, nil, nil
	}}
	svc := newService(t, repo, &fakeGateway{})

	if _, err := svc.List(context.Background(), ListParams{ActorUserID: actorID}); err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if captured.UserID == nil || *captured.UserID != actorID {
		t.Fatal("non-staff list must be scoped to the actor")
	}

	otherID := uuid.New()
	_, err := svc.List(context.Background(), ListParams{ActorUserID: actorID, UserID: &otherID})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestService_RenewExpiredPayment(t *testing.T) {
	owner := uuid.New()
	stale := "cs_stale"
	payment := pendingPayment(owner, &stale, enums.PaymentStatusExpired)
	repo := &fakeRepository{getFn: func(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
		return payment, nil
	}}
	gateway := &fakeGateway{}
	svc := newService(t, repo, gateway)

	renewed, err := svc.Renew(context.Background(), RenewParams{PaymentID: payment.ID, ActorUserID: owner})
	if err != nil {
		t.Fatalf("unexpected renew error: %v", err)
	}
	if renewed.Status != enums.PaymentStatusPending {
		t.Fatalf("expected PENDING after renew, got %s", renewed.Status)
	}
	if renewed.SessionID == nil || *renewed.SessionID != "cs_renewed" {
		t.Fatal("expected fresh session attached")
	}
	// the amount survives renewal untouched
	if !renewed.MoneyToPay.Equal(decimal.RequireFromString("10.00")) {
		t.Fatalf("renewal must not change the amount, got %s", renewed.MoneyToPay)
	}
	if len(repo.renewedIDs) != 1 {
		t.Fatal("expected one renew write")
	}
}

func TestService_RenewRejectsActiveStates(t *testing.T) {
	owner := uuid.New()
	active := "cs_active"

	cases := []struct {
		name    string
		payment *models.Payment
	}{
		{"already paid", pendingPayment(owner, &active, enums.PaymentStatusPaid)},
		{"pending with live session", pendingPayment(owner, &active, enums.PaymentStatusPending)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &fakeRepository{getFn: func(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
				return tc.payment, nil
			}}
			svc := newService(t, repo, &fakeGateway{})

			_, err := svc.Renew(context.Background(), RenewParams{PaymentID: tc.payment.ID, ActorUserID: owner})
			if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
				t.Fatalf("expected state conflict, got %v", err)
			}
		})
	}
}

func TestService_RenewSessionlessPending(t *testing.T) {
	owner := uuid.New()
	payment := pendingPayment(owner, nil, enums.PaymentStatusPending)
	repo := &fakeRepository{getFn: func(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
		return payment, nil
	}}
	svc := newService(t, repo, &fakeGateway{})

	renewed, err := svc.Renew(context.Background(), RenewParams{PaymentID: payment.ID, ActorUserID: owner})
	if err != nil {
		t.Fatalf("session-less pending payment must be renewable: %v", err)
	}
	if renewed.SessionID == nil {
		t.Fatal("expected session attached")
	}
}

func TestService_RenewLosesRace(t *testing.T) {
	owner := uuid.New()
	payment := pendingPayment(owner, nil, enums.PaymentStatusPending)
	repo := &fakeRepository{
		getFn: func(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
			return payment, nil
		},
		renewFn: func(ctx context.Context, id uuid.UUID, sessionID, sessionURL string) (int64, error) {
			return 0, nil
		},
	}
	svc := newService(t, repo, &fakeGateway{})

	_, err := svc.Renew(context.Background(), RenewParams{PaymentID: payment.ID, ActorUserID: owner})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestService_CheckSuccessMarksPaid(t *testing.T) {
	owner := uuid.New()
	sessionID := "cs_open"
	payment := pendingPayment(owner, &sessionID, enums.PaymentStatusPending)
	repo := &fakeRepository{getFn: func(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
		return payment, nil
	}}
	gateway := &fakeGateway{retrieveFn: func(ctx context.Context, sid string) (*checkout.Session, error) {
		return &checkout.Session{ID: sid, Status: "complete", Paid: true}, nil
	}}
	svc := newService(t, repo, gateway)

	result, err := svc.CheckSuccess(context.Background(), CheckSuccessParams{PaymentID: payment.ID, ActorUserID: owner})
	if err != nil {
		t.Fatalf("unexpected check error: %v", err)
	}
	if !result.Paid {
		t.Fatal("expected paid result")
	}
	if result.Payment.Status != enums.PaymentStatusPaid {
		t.Fatalf("expected PAID status, got %s", result.Payment.Status)
	}
	if len(repo.markPaidIDs) != 1 {
		t.Fatal("expected one mark-paid write")
	}
}

func TestService_CheckSuccessUnpaidSession(t *testing.T) {
	owner := uuid.New()
	sessionID := "cs_open"
	payment := pendingPayment(owner, &sessionID, enums.PaymentStatusPending)
	repo := &fakeRepository{getFn: func(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
		return payment, nil
	}}
	svc := newService(t, repo, &fakeGateway{})

	result, err := svc.CheckSuccess(context.Background(), CheckSuccessParams{PaymentID: payment.ID, ActorUserID: owner})
	if err != nil {
		t.Fatalf("unexpected check error: %v", err)
	}
	if result.Paid {
		t.Fatal("open session must not read as paid")
	}
	if len(repo.markPaidIDs) != 0 {
		t.Fatal("unpaid session must not be marked paid")
	}
}

func TestService_CheckSuccessAlreadyPaidSkipsGateway(t *testing.T) {
	owner := uuid.New()
	sessionID := "cs_done"
	payment := pendingPayment(owner, &sessionID, enums.PaymentStatusPaid)
	repo := &fakeRepository{getFn: func(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
		return payment, nil
	}}
	gateway := &fakeGateway{retrieveFn: func(ctx context.Context, sid string) (*checkout.Session, error) {
		t.Fatal("gateway must not be called for an already paid payment")
		return nil, nil
	}}
	svc := newService(t, repo, gateway)

	result, err := svc.CheckSuccess(context.Background(), CheckSuccessParams{PaymentID: payment.ID, ActorUserID: owner})
	if err != nil {
		t.Fatalf("unexpected check error: %v", err)
	}
	if !result.Paid {
		t.Fatal("expected paid result")
	}
}

func TestService_CancelMessage(t *testing.T) {
	svc := newService(t, &fakeRepository{}, &fakeGateway{})
	if got := svc.Cancel(context.Background()); got != CancelMessage {
		t.Fatalf("unexpected cancel message: %q", got)
	}
}
