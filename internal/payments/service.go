package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/openshelf-backend/internal/checkout"
	"github.com/angelmondragon/openshelf-backend/pkg/db/models"
	"github.com/angelmondragon/openshelf-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/openshelf-backend/pkg/errors"
	"github.com/angelmondragon/openshelf-backend/pkg/logger"
	"github.com/angelmondragon/openshelf-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CancelMessage is shown when the user backs out of a checkout session.
// Stripe keeps the session alive for 24 hours, so the link still works.
const CancelMessage = "You can finish your payment later during 24 hours"

// Service defines ledger reads plus the checkout session lifecycle.
type Service interface {
	Get(ctx context.Context, params GetParams) (*models.Payment, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Renew(ctx context.Context, params RenewParams) (*models.Payment, error)
	CheckSuccess(ctx context.Context, params CheckSuccessParams) (*CheckSuccessResult, error)
	Cancel(ctx context.Context) string
}

type service struct {
	repo    Repository
	gateway checkout.Gateway
	logg    *logger.Logger
}

// GetParams scopes a single-payment read to the acting user.
type GetParams struct {
	PaymentID   uuid.UUID
	ActorUserID uuid.UUID
	ActorStaff  bool
}

// ListParams configures filtering and pagination over payments.
type ListParams struct {
	ActorUserID uuid.UUID
	ActorStaff  bool
	UserID      *uuid.UUID
	Status      *enums.PaymentStatus
	Limit       int
	Cursor      string
}

// ListResult wraps returned payments and the cursor for the next page.
type ListResult struct {
	Items  []models.Payment `json:"items"`
	Cursor string           `json:"cursor"`
}

// RenewParams identifies the payment that needs a fresh checkout session.
type RenewParams struct {
	PaymentID   uuid.UUID
	ActorUserID uuid.UUID
	ActorStaff  bool
}

// CheckSuccessParams identifies the payment whose session to verify.
type CheckSuccessParams struct {
	PaymentID   uuid.UUID
	ActorUserID uuid.UUID
	ActorStaff  bool
}

// CheckSuccessResult reports the outcome of a provider-side status check.
type CheckSuccessResult struct {
	Payment *models.Payment `json:"payment"`
	Paid    bool            `json:"paid"`
	Message string          `json:"message"`
}

// NewService wires payment ledger dependencies.
func NewService(repo Repository, gateway checkout.Gateway, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payments repository required")
	}
	if gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "checkout gateway required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &service{repo: repo, gateway: gateway, logg: logg}, nil
}

func (s *service) Get(ctx context.Context, params GetParams) (*models.Payment, error) {
	return s.loadVisible(ctx, params.PaymentID, params.ActorUserID, params.ActorStaff)
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	query := ListPaymentsParams{
		Status: params.Status,
		Limit:  params.Limit,
	}

	if params.ActorStaff {
		query.UserID = params.UserID
	} else {
		if params.UserID != nil {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "filtering by user_id is allowed for staff only")
		}
		actorID := params.ActorUserID
		query.UserID = &actorID
	}

	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payments")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

// Renew opens a fresh checkout session for an expired payment, or for a
// pending payment whose session was never created. The amount never changes
// on renewal.
func (s *service) Renew(ctx context.Context, params RenewParams) (*models.Payment, error) {
	payment, err := s.loadVisible(ctx, params.PaymentID, params.ActorUserID, params.ActorStaff)
	if err != nil {
		return nil, err
	}

	if payment.Status == enums.PaymentStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "this payment has already been completed")
	}
	if payment.Status == enums.PaymentStatusPending && payment.SessionID != nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "this payment already has an active checkout session")
	}

	session, err := s.gateway.CreateSession(ctx, checkout.SessionRequest{
		ProductName: s.productName(payment),
		AmountCents: checkout.AmountCents(payment.MoneyToPay),
		Reference:   payment.ID.String(),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}

	affected, err := s.repo.RenewSession(ctx, payment.ID, session.ID, session.URL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "renew checkout session")
	}
	if affected == 0 {
		// a concurrent renewal or success check won the race
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment state changed, reload and retry")
	}

	payment.Status = enums.PaymentStatusPending
	payment.SessionID = &session.ID
	payment.SessionURL = &session.URL
	return payment, nil
}

// CheckSuccess asks the provider whether the session was paid. Marking a
// paid payment twice is a no-op, so clients may call this freely.
func (s *service) CheckSuccess(ctx context.Context, params CheckSuccessParams) (*CheckSuccessResult, error) {
	payment, err := s.loadVisible(ctx, params.PaymentID, params.ActorUserID, params.ActorStaff)
	if err != nil {
		return nil, err
	}

	if payment.Status == enums.PaymentStatusPaid {
		return &CheckSuccessResult{Payment: payment, Paid: true, Message: "Payment completed"}, nil
	}
	if payment.SessionID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment has no checkout session to verify")
	}

	session, err := s.gateway.RetrieveSession(ctx, *payment.SessionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retrieve checkout session")
	}
	if !session.Paid {
		return &CheckSuccessResult{Payment: payment, Paid: false, Message: "Payment has not been completed yet"}, nil
	}

	if _, err := s.repo.MarkPaid(ctx, payment.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment paid")
	}
	payment.Status = enums.PaymentStatusPaid
	return &CheckSuccessResult{Payment: payment, Paid: true, Message: "Payment completed"}, nil
}

func (s *service) Cancel(ctx context.Context) string {
	return CancelMessage
}

// loadVisible reads a payment and hides rows the actor may not see.
func (s *service) loadVisible(ctx context.Context, id, actorID uuid.UUID, staff bool) (*models.Payment, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}

	payment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "get payment")
	}
	if !staff && (payment.Borrowing == nil || payment.Borrowing.UserID != actorID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	}
	return payment, nil
}

func (s *service) productName(payment *models.Payment) string {
	title := "borrowed book"
	if payment.Borrowing != nil && payment.Borrowing.Book != nil {
		title = payment.Borrowing.Book.Title
	}
	if payment.Type == enums.PaymentTypeFine {
		return fmt.Sprintf("Fine for borrowing %s - %s", payment.BorrowingID, title)
	}
	return fmt.Sprintf("Payment for borrowing %s - %s", payment.BorrowingID, title)
}
