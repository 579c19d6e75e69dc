package service

import (
	"errors"
	"strings"
	"testing"

	"github.com/coupon-next/internal/constants"
	"github.com/coupon-next/internal/models"
	"github.com/coupon-next/internal/repository"

	"gorm.io/gorm"
)

func setupCodeServiceTest(t *testing.T) (*CodeService, *gorm.DB) {
	t.Helper()
	db := openCouponTestDB(t, "code_service_test")
	bookRepo := repository.NewCouponBookRepository(db)
	codeRepo := repository.NewCouponCodeRepository(db)
	return NewCodeService(bookRepo, codeRepo), db
}

func TestGenerateCodes(t *testing.T) {
	svc, db := setupCodeServiceTest(t)
	book := createTestBook(t, db, nil)

	codes, err := svc.GenerateCodes(GenerateCodesInput{
		BookID:   book.ID,
		Quantity: 20,
		Prefix:   "sum-",
	})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if len(codes) != 20 {
		t.Fatalf("want 20 codes got %d", len(codes))
	}
	seen := make(map[string]bool, len(codes))
	for _, code := range codes {
		if !strings.HasPrefix(code.Code, "SUM-") {
			t.Fatalf("code should carry uppercased prefix, got %s", code.Code)
		}
		if len(code.Code) != len("SUM-")+constants.CodeDefaultLength {
			t.Fatalf("code length mismatch: %s", code.Code)
		}
		if seen[code.Code] {
			t.Fatalf("duplicate code generated: %s", code.Code)
		}
		seen[code.Code] = true
		if code.Status != constants.CodeStatusAvailable {
			t.Fatalf("new code status want AVAILABLE got %s", code.Status)
		}
	}

	var fresh models.CouponBook
	if err := db.First(&fresh, "id = ?", book.ID).Error; err != nil {
		t.Fatalf("load book failed: %v", err)
	}
	if fresh.GeneratedCount != 20 {
		t.Fatalf("generated count want 20 got %d", fresh.GeneratedCount)
	}
}

func TestGenerateCodesValidation(t *testing.T) {
	svc, db := setupCodeServiceTest(t)
	book := createTestBook(t, db, nil)

	if _, err := svc.GenerateCodes(GenerateCodesInput{BookID: book.ID, Quantity: 0}); !errors.Is(err, ErrInvalidCodeBatch) {
		t.Fatalf("zero quantity want ErrInvalidCodeBatch got %v", err)
	}
	if _, err := svc.GenerateCodes(GenerateCodesInput{BookID: "missing", Quantity: 1}); !errors.Is(err, ErrBookNotFound) {
		t.Fatalf("unknown book want ErrBookNotFound got %v", err)
	}

	closed := createTestBook(t, db, func(b *models.CouponBook) {
		b.Status = constants.BookStatusClosed
	})
	if _, err := svc.GenerateCodes(GenerateCodesInput{BookID: closed.ID, Quantity: 1}); !errors.Is(err, ErrBookInactive) {
		t.Fatalf("closed book want ErrBookInactive got %v", err)
	}
}

func TestUploadCodes(t *testing.T) {
	svc, db := setupCodeServiceTest(t)
	book := createTestBook(t, db, nil)
	createTestCode(t, db, book.ID, "TAKEN001")

	result, err := svc.UploadCodes(book.ID, []string{
		"fresh001",
		"FRESH001", // 输入内重复
		"taken001", // 库内已存在
		"  fresh002  ",
		"",
	})
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if result.Imported != 2 {
		t.Fatalf("imported want 2 got %d", result.Imported)
	}
	if len(result.Skipped) != 2 {
		t.Fatalf("skipped want 2 got %v", result.Skipped)
	}

	var count int64
	if err := db.Model(&models.CouponCode{}).
		Where("book_id = ?", book.ID).
		Count(&count).Error; err != nil {
		t.Fatalf("count codes failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("book codes want 3 got %d", count)
	}

	var fresh models.CouponCode
	if err := db.First(&fresh, "code = ?", "FRESH002").Error; err != nil {
		t.Fatalf("uploaded code should be uppercased: %v", err)
	}
}

func TestUploadCodesEmptyBatch(t *testing.T) {
	svc, db := setupCodeServiceTest(t)
	book := createTestBook(t, db, nil)

	if _, err := svc.UploadCodes(book.ID, []string{"", "   "}); !errors.Is(err, ErrInvalidCodeBatch) {
		t.Fatalf("empty batch want ErrInvalidCodeBatch got %v", err)
	}
}

func TestRandomCodeCharset(t *testing.T) {
	code, err := randomCode(16)
	if err != nil {
		t.Fatalf("random code failed: %v", err)
	}
	if len(code) != 16 {
		t.Fatalf("length want 16 got %d", len(code))
	}
	for _, ch := range code {
		if !strings.ContainsRune(constants.CodeCharset, ch) {
			t.Fatalf("unexpected character %q in %s", ch, code)
		}
	}
}

func TestGenerateUniqueCodesAvoidsExisting(t *testing.T) {
	existing := map[string]struct{}{}
	first, err := generateUniqueCodes(50, 6, "", existing)
	if err != nil {
		t.Fatalf("first batch failed: %v", err)
	}
	second, err := generateUniqueCodes(50, 6, "", existing)
	if err != nil {
		t.Fatalf("second batch failed: %v", err)
	}
	seen := make(map[string]bool, 100)
	for _, code := range append(first, second...) {
		if seen[code] {
			t.Fatalf("duplicate across batches: %s", code)
		}
		seen[code] = true
	}
}
