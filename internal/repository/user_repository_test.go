package repository

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/makersmarket/session-auth-service/internal/domain"
)

func newUserRepoForTest(t *testing.T) UserRepository {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.User{}); err != nil {
		t.Fatalf("migrate user: %v", err)
	}
	return NewUserRepository(db)
}

func TestCreateAndFindUser(t *testing.T) {
	repo := newUserRepoForTest(t)

	u := &domain.User{Email: "ana@example.com", Name: "Ana", PasswordHash: "digest"}
	if err := repo.Create(u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.ID == 0 {
		t.Fatal("expected assigned ID")
	}

	byEmail, err := repo.FindByEmail("ana@example.com")
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if byEmail.ID != u.ID || byEmail.Name != "Ana" {
		t.Fatalf("unexpected user %+v", byEmail)
	}

	byID, err := repo.FindByID(u.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if byID.Email != "ana@example.com" {
		t.Fatalf("unexpected email %q", byID.Email)
	}
}

func TestCreateDuplicateEmail(t *testing.T) {
	repo := newUserRepoForTest(t)

	if err := repo.Create(&domain.User{Email: "ana@example.com", Name: "Ana", PasswordHash: "d1"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	err := repo.Create(&domain.User{Email: "ana@example.com", Name: "Imposter", PasswordHash: "d2"})
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("err=%v want ErrEmailTaken", err)
	}
}

func TestFindUserNotFound(t *testing.T) {
	repo := newUserRepoForTest(t)

	if _, err := repo.FindByEmail("ghost@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("find by email err=%v want ErrUserNotFound", err)
	}
	if _, err := repo.FindByID(4242); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("find by id err=%v want ErrUserNotFound", err)
	}
}
