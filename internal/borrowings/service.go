package borrowings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/openshelf-backend/internal/books"
	"github.com/angelmondragon/openshelf-backend/internal/checkout"
	"github.com/angelmondragon/openshelf-backend/internal/notifier"
	"github.com/angelmondragon/openshelf-backend/internal/payments"
	"github.com/angelmondragon/openshelf-backend/pkg/db/models"
	"github.com/angelmondragon/openshelf-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/openshelf-backend/pkg/errors"
	"github.com/angelmondragon/openshelf-backend/pkg/logger"
	"github.com/angelmondragon/openshelf-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// FineMultiplier doubles the daily rate for every overdue day.
var FineMultiplier = decimal.NewFromInt(2)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type userLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Service defines borrow-cycle operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*CreateResult, error)
	Get(ctx context.Context, params GetParams) (*models.Borrowing, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Return(ctx context.Context, input ReturnInput) (*ReturnResult, error)
}

type service struct {
	repo     Repository
	books    books.Repository
	payments payments.Repository
	users    userLookup
	tx       txRunner
	gateway  checkout.Gateway
	sink     notifier.Sink
	logg     *logger.Logger
	now      func() time.Time
}

// CreateInput captures a borrow request from the authenticated user.
type CreateInput struct {
	UserID             uuid.UUID
	BookID             uuid.UUID
	ExpectedReturnDate time.Time
}

// CreateResult returns the borrowing plus the up-front payment.
type CreateResult struct {
	Borrowing *models.Borrowing `json:"borrowing"`
	Payment   *models.Payment   `json:"payment"`
}

// GetParams scopes a single-borrowing read to the acting user.
type GetParams struct {
	BorrowingID uuid.UUID
	ActorUserID uuid.UUID
	ActorStaff  bool
}

// ListParams configures filtering and pagination over borrowings.
type ListParams struct {
	ActorUserID uuid.UUID
	ActorStaff  bool
	UserID      *uuid.UUID
	IsActive    *bool
	Limit       int
	Cursor      string
}

// ListResult wraps returned borrowings and the cursor for the next page.
type ListResult struct {
	Items  []models.Borrowing `json:"items"`
	Cursor string             `json:"cursor"`
}

// ReturnInput identifies the borrowing being closed and who is closing it.
type ReturnInput struct {
	BorrowingID uuid.UUID
	ActorUserID uuid.UUID
	ActorStaff  bool
}

// ReturnResult reports the closed borrowing and, when late, the fine payment.
type ReturnResult struct {
	Borrowing   *models.Borrowing `json:"borrowing"`
	FinePayment *models.Payment   `json:"fine_payment,omitempty"`
}

// NewService wires borrow-cycle dependencies.
func NewService(
	repo Repository,
	booksRepo books.Repository,
	paymentsRepo payments.Repository,
	usersRepo userLookup,
	tx txRunner,
	gateway checkout.Gateway,
	sink notifier.Sink,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "borrowings repository required")
	}
	if booksRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "books repository required")
	}
	if paymentsRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payments repository required")
	}
	if usersRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "users repository required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "checkout gateway required")
	}
	if sink == nil {
		sink = notifier.NopSink{}
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &service{
		repo:     repo,
		books:    booksRepo,
		payments: paymentsRepo,
		users:    usersRepo,
		tx:       tx,
		gateway:  gateway,
		sink:     sink,
		logg:     logg,
		now:      time.Now,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*CreateResult, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if input.BookID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "book id required")
	}

	today := dateOnly(s.now().UTC())
	expected := dateOnly(input.ExpectedReturnDate)
	if !expected.After(today) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "expected return date must be after today")
	}

	pending, err := s.payments.CountPendingByUser(ctx, input.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count pending payments")
	}
	if pending > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConflict,
			"you have pending payments, complete them before borrowing new books")
	}

	var (
		borrowing *models.Borrowing
		payment   *models.Payment
		book      *models.Book
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		bookRepo := s.books.WithTx(tx)

		var terr error
		book, terr = bookRepo.GetByID(ctx, input.BookID)
		if terr != nil {
			if errors.Is(terr, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
			}
			return terr
		}

		decremented, terr := bookRepo.DecrementInventory(ctx, input.BookID)
		if terr != nil {
			return terr
		}
		if !decremented {
			return pkgerrors.New(pkgerrors.CodeValidation, "book is out of stock")
		}

		borrowing = &models.Borrowing{
			BorrowDate:         today,
			ExpectedReturnDate: expected,
			BookID:             input.BookID,
			UserID:             input.UserID,
		}
		if terr := s.repo.WithTx(tx).Create(ctx, borrowing); terr != nil {
			return terr
		}

		amount := book.DailyFee.Mul(decimal.NewFromInt(int64(daysBetween(today, expected))))
		payment = &models.Payment{
			Status:      enums.PaymentStatusPending,
			Type:        enums.PaymentTypePayment,
			BorrowingID: borrowing.ID,
			MoneyToPay:  amount,
		}
		return s.payments.WithTx(tx).Create(ctx, payment)
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create borrowing")
	}

	s.attachCheckoutSession(ctx, payment,
		fmt.Sprintf("Payment for borrowing %s - %s", borrowing.ID, book.Title))
	s.notifyNewBorrowing(ctx, borrowing, book)

	borrowing.Book = book
	return &CreateResult{Borrowing: borrowing, Payment: payment}, nil
}

func (s *service) Get(ctx context.Context, params GetParams) (*models.Borrowing, error) {
	if params.BorrowingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "borrowing id required")
	}

	borrowing, err := s.repo.GetByID(ctx, params.BorrowingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "borrowing not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "get borrowing")
	}
	if !params.ActorStaff && borrowing.UserID != params.ActorUserID {
		// scope leaks nothing: unauthorized rows read as absent
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "borrowing not found")
	}
	return borrowing, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	query := ListBorrowingsParams{
		IsActive: params.IsActive,
		Limit:    params.Limit,
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
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list borrowings")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

func (s *service) Return(ctx context.Context, input ReturnInput) (*ReturnResult, error) {
	if input.BorrowingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "borrowing id required")
	}

	borrowing, err := s.repo.GetByID(ctx, input.BorrowingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "borrowing not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "get borrowing")
	}
	if !input.ActorStaff && borrowing.UserID != input.ActorUserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "you cannot return someone else's borrowing")
	}
	if borrowing.IsReturned() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "this borrowing has already been returned")
	}

	returnDate := dateOnly(s.now().UTC())
	overdueDays := 0
	if returnDate.After(dateOnly(borrowing.ExpectedReturnDate)) {
		overdueDays = daysBetween(dateOnly(borrowing.ExpectedReturnDate), returnDate)
	}

	var fine *models.Payment
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		affected, terr := s.repo.WithTx(tx).MarkReturned(ctx, borrowing.ID, returnDate)
		if terr != nil {
			return terr
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "this borrowing has already been returned")
		}

		if terr := s.books.WithTx(tx).IncrementInventory(ctx, borrowing.BookID); terr != nil {
			return terr
		}

		if overdueDays > 0 && borrowing.Book != nil {
			amount := borrowing.Book.DailyFee.
				Mul(decimal.NewFromInt(int64(overdueDays))).
				Mul(FineMultiplier)
			fine = &models.Payment{
				Status:      enums.PaymentStatusPending,
				Type:        enums.PaymentTypeFine,
				BorrowingID: borrowing.ID,
				MoneyToPay:  amount,
			}
			return s.payments.WithTx(tx).Create(ctx, fine)
		}
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "return borrowing")
	}

	borrowing.ActualReturnDate = &returnDate
	if fine != nil && borrowing.Book != nil {
		s.attachCheckoutSession(ctx, fine,
			fmt.Sprintf("Fine for borrowing %s - %s", borrowing.ID, borrowing.Book.Title))
	}
	s.notifyReturn(ctx, borrowing, fine)

	return &ReturnResult{Borrowing: borrowing, FinePayment: fine}, nil
}

// attachCheckoutSession opens a provider session for the freshly committed
// payment. A gateway failure leaves the payment without a session; renewal
// can attach one later.
func (s *service) attachCheckoutSession(ctx context.Context, payment *models.Payment, productName string) {
	session, err := s.gateway.CreateSession(ctx, checkout.SessionRequest{
		ProductName: productName,
		AmountCents: checkout.AmountCents(payment.MoneyToPay),
		Reference:   payment.ID.String(),
	})
	if err != nil {
		s.logg.Error(s.logg.WithField(ctx, "payment_id", payment.ID.String()),
			"creating checkout session", err)
		return
	}

	if err := s.payments.AttachSession(ctx, payment.ID, session.ID, session.URL); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "payment_id", payment.ID.String()),
			"attaching checkout session", err)
		return
	}
	payment.SessionID = &session.ID
	payment.SessionURL = &session.URL
}

func (s *service) notifyNewBorrowing(ctx context.Context, borrowing *models.Borrowing, book *models.Book) {
	email := "unknown"
	if user, err := s.users.GetByID(ctx, borrowing.UserID); err == nil {
		email = user.Email
	}

	message := fmt.Sprintf(
		"📚 New borrowing created!\n\n👤 User: %s\n📖 Book: %s\n📅 Expected return: %s",
		email, book.Title, borrowing.ExpectedReturnDate.Format("2006-01-02"),
	)
	if err := s.sink.Send(ctx, message); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "borrowing_id", borrowing.ID.String()),
			"sending new borrowing notification: "+err.Error())
	}
}

func (s *service) notifyReturn(ctx context.Context, borrowing *models.Borrowing, fine *models.Payment) {
	email := "unknown"
	if user, err := s.users.GetByID(ctx, borrowing.UserID); err == nil {
		email = user.Email
	}
	title := "unknown"
	if borrowing.Book != nil {
		title = borrowing.Book.Title
	}

	message := fmt.Sprintf("📗 Book returned!\n\n👤 User: %s\n📖 Book: %s", email, title)
	if fine != nil {
		message += fmt.Sprintf("\n💸 Fine to pay: %s", fine.MoneyToPay.StringFixed(2))
	}
	if err := s.sink.Send(ctx, message); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "borrowing_id", borrowing.ID.String()),
			"sending return notification: "+err.Error())
	}
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
