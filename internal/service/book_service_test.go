package service

import (
	"errors"
	"testing"
	"time"

	"github.com/coupon-next/internal/constants"
	"github.com/coupon-next/internal/repository"

	"gorm.io/gorm"
)

func setupBookServiceTest(t *testing.T) (*BookService, *gorm.DB) {
	t.Helper()
	db := openCouponTestDB(t, "book_service_test")
	bookRepo := repository.NewCouponBookRepository(db)
	codeRepo := repository.NewCouponCodeRepository(db)
	return NewBookService(bookRepo, codeRepo), db
}

func strPtr(v string) *string {
	return &v
}

func TestCreateBookDefaults(t *testing.T) {
	svc, _ := setupBookServiceTest(t)

	book, err := svc.CreateBook(CreateBookInput{
		BusinessID: "biz-1",
		Name:       "  welcome pack  ",
	})
	if err != nil {
		t.Fatalf("create book failed: %v", err)
	}
	if book.Status != constants.BookStatusDraft {
		t.Fatalf("new book status want DRAFT got %s", book.Status)
	}
	if book.Name != "welcome pack" {
		t.Fatalf("name should be trimmed, got %q", book.Name)
	}
	if book.ID == "" {
		t.Fatalf("book id should be generated")
	}
}

func TestCreateBookValidation(t *testing.T) {
	svc, _ := setupBookServiceTest(t)

	if _, err := svc.CreateBook(CreateBookInput{Name: "no biz"}); !errors.Is(err, ErrInvalidBookInput) {
		t.Fatalf("missing business id want ErrInvalidBookInput got %v", err)
	}
	if _, err := svc.CreateBook(CreateBookInput{
		BusinessID:        "biz-1",
		Name:              "bad quota",
		MaxRedeemsPerUser: intPtr(0),
	}); !errors.Is(err, ErrInvalidBookInput) {
		t.Fatalf("zero quota want ErrInvalidBookInput got %v", err)
	}
}

func TestUpdateBookTransitions(t *testing.T) {
	svc, _ := setupBookServiceTest(t)
	book, err := svc.CreateBook(CreateBookInput{BusinessID: "biz-1", Name: "lifecycle"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	updated, err := svc.UpdateBook(book.ID, UpdateBookInput{Status: strPtr("active")})
	if err != nil {
		t.Fatalf("activate failed: %v", err)
	}
	if updated.Status != constants.BookStatusActive {
		t.Fatalf("status want ACTIVE got %s", updated.Status)
	}

	if _, err := svc.UpdateBook(book.ID, UpdateBookInput{Status: strPtr(constants.BookStatusDraft)}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("active back to draft want ErrInvalidTransition got %v", err)
	}

	closed, err := svc.UpdateBook(book.ID, UpdateBookInput{Status: strPtr(constants.BookStatusClosed)})
	if err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if closed.Status != constants.BookStatusClosed {
		t.Fatalf("status want CLOSED got %s", closed.Status)
	}

	if _, err := svc.UpdateBook(book.ID, UpdateBookInput{Status: strPtr(constants.BookStatusActive)}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("closed is terminal, got %v", err)
	}
}

func TestUpdateBookExpiry(t *testing.T) {
	svc, _ := setupBookServiceTest(t)
	book, err := svc.CreateBook(CreateBookInput{BusinessID: "biz-1", Name: "expiring"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	future := time.Now().Add(24 * time.Hour)
	updated, err := svc.UpdateBook(book.ID, UpdateBookInput{ExpiresAt: &future})
	if err != nil {
		t.Fatalf("set expiry failed: %v", err)
	}
	if updated.ExpiresAt == nil {
		t.Fatalf("expires_at should be set")
	}

	cleared, err := svc.UpdateBook(book.ID, UpdateBookInput{ClearExpiresAt: true})
	if err != nil {
		t.Fatalf("clear expiry failed: %v", err)
	}
	if cleared.ExpiresAt != nil {
		t.Fatalf("expires_at should be cleared")
	}
}

func TestBookStatistics(t *testing.T) {
	svc, db := setupBookServiceTest(t)
	book := createTestBook(t, db, nil)
	createTestCode(t, db, book.ID, "STAT0001")
	createTestCode(t, db, book.ID, "STAT0002")
	assigned := createTestCode(t, db, book.ID, "STAT0003")
	if err := db.Model(assigned).Update("status", constants.CodeStatusAssigned).Error; err != nil {
		t.Fatalf("mark assigned failed: %v", err)
	}

	stats, err := svc.Statistics(book.ID)
	if err != nil {
		t.Fatalf("statistics failed: %v", err)
	}
	if stats.TotalCodes != 3 {
		t.Fatalf("total codes want 3 got %d", stats.TotalCodes)
	}
	if stats.StatusCounts[constants.CodeStatusAvailable] != 2 {
		t.Fatalf("available want 2 got %d", stats.StatusCounts[constants.CodeStatusAvailable])
	}
	if stats.StatusCounts[constants.CodeStatusAssigned] != 1 {
		t.Fatalf("assigned want 1 got %d", stats.StatusCounts[constants.CodeStatusAssigned])
	}

	if _, err := svc.Statistics("missing"); !errors.Is(err, ErrBookNotFound) {
		t.Fatalf("want ErrBookNotFound got %v", err)
	}
}

func TestDeleteBook(t *testing.T) {
	svc, db := setupBookServiceTest(t)

	empty, err := svc.CreateBook(CreateBookInput{BusinessID: "biz-1", Name: "throwaway"})
	if err != nil {
		t.Fatalf("create book failed: %v", err)
	}
	if err := svc.DeleteBook(empty.ID); err != nil {
		t.Fatalf("delete empty book failed: %v", err)
	}
	if _, err := svc.GetBook(empty.ID); !errors.Is(err, ErrBookNotFound) {
		t.Fatalf("deleted book want ErrBookNotFound got %v", err)
	}

	populated := createTestBook(t, db, nil)
	createTestCode(t, db, populated.ID, "KEEP0001")
	if err := svc.DeleteBook(populated.ID); !errors.Is(err, ErrBookHasCodes) {
		t.Fatalf("book with codes want ErrBookHasCodes got %v", err)
	}
	if _, err := svc.GetBook(populated.ID); err != nil {
		t.Fatalf("refused delete must keep the book: %v", err)
	}

	if err := svc.DeleteBook("missing-id"); !errors.Is(err, ErrBookNotFound) {
		t.Fatalf("missing book want ErrBookNotFound got %v", err)
	}
}
