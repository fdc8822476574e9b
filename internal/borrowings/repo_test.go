package borrowings

import (
	"context"
	"testing"
	"time"

	"github.com/angelmondragon/openshelf-backend/pkg/db/models"
	"github.com/angelmondragon/openshelf-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:borrowings_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Book{}, &models.Borrowing{}, &models.Payment{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	user := &models.User{
		Email:        email,
		PasswordHash: "x",
		Role:         enums.UserRoleMember,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func seedBook(t *testing.T, db *gorm.DB, title string) *models.Book {
	t.Helper()
	book := &models.Book{
		Title:     title,
		Author:    "Test Author",
		Cover:     enums.BookCoverSoft,
		Inventory: 3,
		DailyFee:  decimal.RequireFromString("2.00"),
	}
	if err := db.Create(book).Error; err != nil {
		t.Fatalf("seed book: %v", err)
	}
	return book
}

func seedBorrowing(t *testing.T, db *gorm.DB, userID, bookID uuid.UUID, expected time.Time, returned *time.Time) *models.Borrowing {
	t.Helper()
	borrowing := &models.Borrowing{
		BorrowDate:         expected.AddDate(0, 0, -7),
		ExpectedReturnDate: expected,
		ActualReturnDate:   returned,
		BookID:             bookID,
		UserID:             userID,
	}
	if err := db.Create(borrowing).Error; err != nil {
		t.Fatalf("seed borrowing: %v", err)
	}
	return borrowing
}

func TestRepository_MarkReturnedOnce(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	user := seedUser(t, db, "mark@example.com")
	book := seedBook(t, db, "Domain-Driven Design")
	borrowing := seedBorrowing(t, db, user.ID, book.ID,
		time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC), nil)

	returnDate := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	affected, err := repo.MarkReturned(ctx, borrowing.ID, returnDate)
	if err != nil {
		t.Fatalf("mark returned: %v", err)
	}
	if affected != 1 {
		t.Fatalf("expected 1 row affected, got %d", affected)
	}

	// the second writer loses the race
	affected, err = repo.MarkReturned(ctx, borrowing.ID, returnDate)
	if err != nil {
		t.Fatalf("repeat mark returned: %v", err)
	}
	if affected != 0 {
		t.Fatalf("expected 0 rows on repeat, got %d", affected)
	}

	fresh, err := repo.GetByID(ctx, borrowing.ID)
	if err != nil {
		t.Fatalf("reload borrowing: %v", err)
	}
	if fresh.ActualReturnDate == nil {
		t.Fatal("expected actual return date set")
	}
}

func TestRepository_ListFilters(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	alice := seedUser(t, db, "alice@example.com")
	bob := seedUser(t, db, "bob@example.com")
	book := seedBook(t, db, "The Go Programming Language")

	expected := time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC)
	returned := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	seedBorrowing(t, db, alice.ID, book.ID, expected, nil)
	seedBorrowing(t, db, alice.ID, book.ID, expected, &returned)
	seedBorrowing(t, db, bob.ID, book.ID, expected, nil)

	rows, _, err := repo.List(ctx, ListBorrowingsParams{UserID: &alice.ID})
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows for alice, got %d", len(rows))
	}
	for _, row := range rows {
		if row.UserID != alice.ID {
			t.Fatalf("unexpected user %s in alice's list", row.UserID)
		}
		if row.Book == nil {
			t.Fatal("expected book preloaded")
		}
	}

	active := true
	rows, _, err = repo.List(ctx, ListBorrowingsParams{UserID: &alice.ID, IsActive: &active})
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 active row for alice, got %d", len(rows))
	}
	if rows[0].ActualReturnDate != nil {
		t.Fatal("active filter returned a closed borrowing")
	}

	inactive := false
	rows, _, err = repo.List(ctx, ListBorrowingsParams{IsActive: &inactive})
	if err != nil {
		t.Fatalf("list returned: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 returned row, got %d", len(rows))
	}
}

func TestRepository_ListOverdue(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	user := seedUser(t, db, "overdue@example.com")
	book := seedBook(t, db, "Release It!")

	asOf := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	returned := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	late := seedBorrowing(t, db, user.ID, book.ID, asOf.AddDate(0, 0, -3), nil)
	seedBorrowing(t, db, user.ID, book.ID, asOf.AddDate(0, 0, -3), &returned)
	seedBorrowing(t, db, user.ID, book.ID, asOf.AddDate(0, 0, 2), nil)

	rows, err := repo.ListOverdue(ctx, asOf)
	if err != nil {
		t.Fatalf("list overdue: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 overdue row, got %d", len(rows))
	}
	if rows[0].ID != late.ID {
		t.Fatal("unexpected overdue borrowing")
	}
	if rows[0].User == nil || rows[0].User.Email != "overdue@example.com" {
		t.Fatal("expected user preloaded for the report")
	}
	if rows[0].Book == nil {
		t.Fatal("expected book preloaded for the report")
	}
}
