package users

import (
	"context"
	"testing"
	"time"

	"github.com/angelmondragon/openshelf-backend/pkg/db/models"
	"github.com/angelmondragon/openshelf-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:users_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}); err != nil {
		t.Fatalf("migrate users: %v", err)
	}
	return db
}

func TestRepository_GetByEmailNormalizes(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	user := &models.User{
		Email:        "reader@example.com",
		PasswordHash: "x",
		Role:         enums.UserRoleMember,
		IsActive:     true,
	}
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}

	got, err := repo.GetByEmail(ctx, "  Reader@EXAMPLE.com ")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if got.ID != user.ID {
		t.Fatal("unexpected user returned")
	}
}

func TestRepository_CreateDuplicateEmail(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	first := &models.User{Email: "dup@example.com", PasswordHash: "x", Role: enums.UserRoleMember}
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("create first: %v", err)
	}

	second := &models.User{Email: "dup@example.com", PasswordHash: "y", Role: enums.UserRoleMember}
	if err := repo.Create(ctx, second); err == nil {
		t.Fatal("expected unique violation on duplicate email")
	}
}

func TestRepository_TouchLastLogin(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	user := &models.User{Email: "touch@example.com", PasswordHash: "x", Role: enums.UserRoleMember}
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := repo.TouchLastLogin(ctx, user.ID, at); err != nil {
		t.Fatalf("touch last login: %v", err)
	}

	fresh, err := repo.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if fresh.LastLoginAt == nil || !fresh.LastLoginAt.Equal(at) {
		t.Fatal("expected last login persisted")
	}
}
