package service

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/coupon-next/internal/constants"
	"github.com/coupon-next/internal/models"
	"github.com/coupon-next/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openCouponTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.CouponBook{},
		&models.CouponCode{},
		&models.CouponAssignment{},
		&models.RedemptionAudit{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db
	return db
}

func setupAssignmentTest(t *testing.T) (*AssignmentService, *gorm.DB) {
	t.Helper()
	db := openCouponTestDB(t, "assignment_service_test")
	bookRepo := repository.NewCouponBookRepository(db)
	codeRepo := repository.NewCouponCodeRepository(db)
	assignRepo := repository.NewCouponAssignmentRepository(db)
	audit := NewAuditRecorder(repository.NewRedemptionAuditRepository(db), true)
	return NewAssignmentService(bookRepo, codeRepo, assignRepo, audit), db
}

func createTestBook(t *testing.T, db *gorm.DB, mutate func(*models.CouponBook)) *models.CouponBook {
	t.Helper()
	book := &models.CouponBook{
		BusinessID: "biz-1",
		Name:       "summer promo",
		Status:     constants.BookStatusActive,
	}
	if mutate != nil {
		mutate(book)
	}
	if err := db.Create(book).Error; err != nil {
		t.Fatalf("create book failed: %v", err)
	}
	return book
}

func createTestCode(t *testing.T, db *gorm.DB, bookID, code string) *models.CouponCode {
	t.Helper()
	record := &models.CouponCode{
		BookID: bookID,
		Code:   code,
		Status: constants.CodeStatusAvailable,
	}
	if err := db.Create(record).Error; err != nil {
		t.Fatalf("create code failed: %v", err)
	}
	return record
}

func countAudits(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	if err := db.Model(&models.RedemptionAudit{}).Count(&count).Error; err != nil {
		t.Fatalf("count audits failed: %v", err)
	}
	return count
}

func intPtr(v int) *int {
	return &v
}

func TestAssignRandomSuccess(t *testing.T) {
	svc, db := setupAssignmentTest(t)
	book := createTestBook(t, db, nil)
	createTestCode(t, db, book.ID, "SUMMER01")

	assignment, err := svc.AssignRandom("user-1", book.ID, ActorContext{IP: "10.0.0.1"})
	if err != nil {
		t.Fatalf("assign random failed: %v", err)
	}
	if assignment.UserID != "user-1" || assignment.BookID != book.ID {
		t.Fatalf("assignment fields mismatch: %+v", assignment)
	}

	var code models.CouponCode
	if err := db.First(&code, "id = ?", assignment.CodeID).Error; err != nil {
		t.Fatalf("load code failed: %v", err)
	}
	if code.Status != constants.CodeStatusAssigned {
		t.Fatalf("code status want ASSIGNED got %s", code.Status)
	}

	var audit models.RedemptionAudit
	if err := db.First(&audit, "code_id = ?", code.ID).Error; err != nil {
		t.Fatalf("load audit failed: %v", err)
	}
	if audit.Action != constants.AuditActionAssign ||
		audit.StatusBefore != constants.CodeStatusAvailable ||
		audit.StatusAfter != constants.CodeStatusAssigned {
		t.Fatalf("audit mismatch: %+v", audit)
	}
}

func TestAssignRandomBookNotFound(t *testing.T) {
	svc, _ := setupAssignmentTest(t)
	if _, err := svc.AssignRandom("user-1", "missing", ActorContext{}); !errors.Is(err, ErrBookNotFound) {
		t.Fatalf("want ErrBookNotFound got %v", err)
	}
}

func TestAssignRandomBookNotUsable(t *testing.T) {
	svc, db := setupAssignmentTest(t)

	draft := createTestBook(t, db, func(b *models.CouponBook) {
		b.Status = constants.BookStatusDraft
	})
	if _, err := svc.AssignRandom("user-1", draft.ID, ActorContext{}); !errors.Is(err, ErrBookInactive) {
		t.Fatalf("draft book want ErrBookInactive got %v", err)
	}

	past := time.Now().Add(-time.Hour)
	expired := createTestBook(t, db, func(b *models.CouponBook) {
		b.ExpiresAt = &past
	})
	if _, err := svc.AssignRandom("user-1", expired.ID, ActorContext{}); !errors.Is(err, ErrBookExpired) {
		t.Fatalf("expired book want ErrBookExpired got %v", err)
	}
}

func TestAssignRandomPoolExhaustion(t *testing.T) {
	svc, db := setupAssignmentTest(t)
	book := createTestBook(t, db, nil)
	for i := 0; i < 3; i++ {
		createTestCode(t, db, book.ID, fmt.Sprintf("POOL%04d", i))
	}

	succeeded := 0
	exhausted := 0
	for i := 0; i < 5; i++ {
		_, err := svc.AssignRandom(fmt.Sprintf("user-%d", i), book.ID, ActorContext{})
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrCodePoolExhausted):
			exhausted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 3 || exhausted != 2 {
		t.Fatalf("want 3 success 2 exhausted, got %d/%d", succeeded, exhausted)
	}

	var assignedCount int64
	if err := db.Model(&models.CouponCode{}).
		Where("status = ?", constants.CodeStatusAssigned).
		Count(&assignedCount).Error; err != nil {
		t.Fatalf("count assigned failed: %v", err)
	}
	if assignedCount != 3 {
		t.Fatalf("assigned codes want 3 got %d", assignedCount)
	}

	var claims []models.CouponAssignment
	if err := db.Find(&claims).Error; err != nil {
		t.Fatalf("load assignments failed: %v", err)
	}
	seen := make(map[string]bool, len(claims))
	for _, claim := range claims {
		if seen[claim.CodeID] {
			t.Fatalf("code %s assigned twice", claim.CodeID)
		}
		seen[claim.CodeID] = true
	}
}

func TestAssignRandomCodeQuota(t *testing.T) {
	svc, db := setupAssignmentTest(t)
	book := createTestBook(t, db, func(b *models.CouponBook) {
		b.MaxCodesPerUser = intPtr(1)
	})
	createTestCode(t, db, book.ID, "QUOTA001")
	createTestCode(t, db, book.ID, "QUOTA002")

	if _, err := svc.AssignRandom("user-a", book.ID, ActorContext{}); err != nil {
		t.Fatalf("first assign for user-a failed: %v", err)
	}
	if _, err := svc.AssignRandom("user-a", book.ID, ActorContext{}); !errors.Is(err, ErrCodeQuotaExceeded) {
		t.Fatalf("second assign for user-a want ErrCodeQuotaExceeded got %v", err)
	}
	if _, err := svc.AssignRandom("user-b", book.ID, ActorContext{}); err != nil {
		t.Fatalf("assign for user-b failed: %v", err)
	}
}

func TestAssignSpecific(t *testing.T) {
	svc, db := setupAssignmentTest(t)
	book := createTestBook(t, db, nil)
	createTestCode(t, db, book.ID, "EXACT001")

	assignment, err := svc.AssignSpecific("exact001", "user-1", ActorContext{})
	if err != nil {
		t.Fatalf("assign specific failed: %v", err)
	}
	if assignment.UserID != "user-1" {
		t.Fatalf("assignment user mismatch: %+v", assignment)
	}

	// 已被占用的券码不能再次指派
	if _, err := svc.AssignSpecific("EXACT001", "user-2", ActorContext{}); !errors.Is(err, ErrCodeNotAvailable) {
		t.Fatalf("want ErrCodeNotAvailable got %v", err)
	}

	if _, err := svc.AssignSpecific("MISSING9", "user-1", ActorContext{}); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("want ErrCodeNotFound got %v", err)
	}
}

func TestAssignFailureWritesNoAudit(t *testing.T) {
	svc, db := setupAssignmentTest(t)
	book := createTestBook(t, db, nil)
	createTestCode(t, db, book.ID, "ONCE0001")

	if _, err := svc.AssignRandom("user-1", book.ID, ActorContext{}); err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	before := countAudits(t, db)

	if _, err := svc.AssignRandom("user-2", book.ID, ActorContext{}); !errors.Is(err, ErrCodePoolExhausted) {
		t.Fatalf("want ErrCodePoolExhausted got %v", err)
	}
	if after := countAudits(t, db); after != before {
		t.Fatalf("failed assign must not write audits, before %d after %d", before, after)
	}
}

func TestListUserAssignments(t *testing.T) {
	svc, db := setupAssignmentTest(t)
	book := createTestBook(t, db, nil)
	createTestCode(t, db, book.ID, "LIST0001")
	createTestCode(t, db, book.ID, "LIST0002")

	if _, err := svc.AssignRandom("user-1", book.ID, ActorContext{}); err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if _, err := svc.AssignRandom("user-1", book.ID, ActorContext{}); err != nil {
		t.Fatalf("assign failed: %v", err)
	}

	assignments, total, err := svc.ListUserAssignments("user-1", 1, 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 2 || len(assignments) != 2 {
		t.Fatalf("want 2 assignments got total %d len %d", total, len(assignments))
	}
	for _, assignment := range assignments {
		if assignment.Code == nil {
			t.Fatalf("assignment should preload code: %+v", assignment)
		}
	}
}

func TestAssignRandomConcurrentDrain(t *testing.T) {
	svc, db := setupAssignmentTest(t)
	book := createTestBook(t, db, nil)
	createTestCode(t, db, book.ID, "DRAIN001")
	createTestCode(t, db, book.ID, "DRAIN002")

	const workers = 5
	start := make(chan struct{})
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = svc.AssignRandom(fmt.Sprintf("user-%d", i), book.ID, ActorContext{})
		}(i)
	}
	close(start)
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		if !errors.Is(err, ErrCodePoolExhausted) {
			t.Fatalf("unexpected concurrent assign error: %v", err)
		}
	}
	if successes != 2 {
		t.Fatalf("2 codes for %d users: want 2 winners got %d", workers, successes)
	}

	var assignments int64
	if err := db.Model(&models.CouponAssignment{}).
		Where("book_id = ?", book.ID).
		Count(&assignments).Error; err != nil {
		t.Fatalf("count assignments failed: %v", err)
	}
	if assignments != 2 {
		t.Fatalf("want 2 assignment rows got %d", assignments)
	}
	var available int64
	if err := db.Model(&models.CouponCode{}).
		Where("book_id = ? AND status = ?", book.ID, constants.CodeStatusAvailable).
		Count(&available).Error; err != nil {
		t.Fatalf("count available failed: %v", err)
	}
	if available != 0 {
		t.Fatalf("pool should be drained, %d codes still AVAILABLE", available)
	}

	if _, err := svc.AssignRandom("user-late", book.ID, ActorContext{}); !errors.Is(err, ErrCodePoolExhausted) {
		t.Fatalf("drained pool want ErrCodePoolExhausted got %v", err)
	}
}
