package service

import (
	"context"
	"testing"
	"time"

	"github.com/coupon-next/internal/constants"
	"github.com/coupon-next/internal/models"
	"github.com/coupon-next/internal/repository"

	"gorm.io/gorm"
)

func setupExpiryTest(t *testing.T) (*AssignmentService, *RedemptionService, *ExpiryService, *gorm.DB) {
	t.Helper()
	db := openCouponTestDB(t, "expiry_service_test")
	bookRepo := repository.NewCouponBookRepository(db)
	codeRepo := repository.NewCouponCodeRepository(db)
	assignRepo := repository.NewCouponAssignmentRepository(db)
	audit := NewAuditRecorder(repository.NewRedemptionAuditRepository(db), true)
	assignSvc := NewAssignmentService(bookRepo, codeRepo, assignRepo, audit)
	redeemSvc := NewRedemptionService(codeRepo, assignRepo, audit, 5*time.Minute, false, nil)
	expirySvc := NewExpiryService(bookRepo, codeRepo, assignRepo, audit)
	return assignSvc, redeemSvc, expirySvc, db
}

// backdateLock 将锁定窗口改写到过去，模拟锁定超时
func backdateLock(t *testing.T, db *gorm.DB, codeID string) {
	t.Helper()
	past := time.Now().Add(-time.Minute)
	earlier := past.Add(-5 * time.Minute)
	if err := db.Model(&models.CouponAssignment{}).
		Where("code_id = ?", codeID).
		Updates(map[string]interface{}{
			"locked_at":    earlier,
			"locked_until": past,
		}).Error; err != nil {
		t.Fatalf("backdate lock failed: %v", err)
	}
}

func TestReleaseExpiredLocks(t *testing.T) {
	assignSvc, redeemSvc, expirySvc, db := setupExpiryTest(t)
	ctx := context.Background()
	book := createTestBook(t, db, nil)
	createTestCode(t, db, book.ID, "SWEEP001")
	assignCode(t, assignSvc, "SWEEP001", "user-1")

	lock, err := redeemSvc.Lock(ctx, "SWEEP001", "user-1", nil, ActorContext{})
	if err != nil {
		t.Fatalf("lock failed: %v", err)
	}
	backdateLock(t, db, lock.CodeID)

	released, err := expirySvc.ReleaseExpiredLocks(ctx)
	if err != nil {
		t.Fatalf("release expired locks failed: %v", err)
	}
	if released != 1 {
		t.Fatalf("released want 1 got %d", released)
	}
	if got := codeStatus(t, db, "SWEEP001"); got != constants.CodeStatusAssigned {
		t.Fatalf("swept code status want ASSIGNED got %s", got)
	}

	var assignment models.CouponAssignment
	if err := db.First(&assignment, "code_id = ?", lock.CodeID).Error; err != nil {
		t.Fatalf("load assignment failed: %v", err)
	}
	if assignment.LockedAt != nil || assignment.LockedUntil != nil {
		t.Fatalf("lock window should be cleared: %+v", assignment)
	}

	var audit models.RedemptionAudit
	if err := db.Order("created_at desc").First(&audit, "code_id = ?", lock.CodeID).Error; err != nil {
		t.Fatalf("load audit failed: %v", err)
	}
	if audit.Action != constants.AuditActionUnlock {
		t.Fatalf("sweep audit action want UNLOCK got %s", audit.Action)
	}
}

func TestReleaseSkipsLiveLocks(t *testing.T) {
	assignSvc, redeemSvc, expirySvc, db := setupExpiryTest(t)
	ctx := context.Background()
	book := createTestBook(t, db, nil)
	createTestCode(t, db, book.ID, "LIVE0001")
	assignCode(t, assignSvc, "LIVE0001", "user-1")
	if _, err := redeemSvc.Lock(ctx, "LIVE0001", "user-1", nil, ActorContext{}); err != nil {
		t.Fatalf("lock failed: %v", err)
	}

	released, err := expirySvc.ReleaseExpiredLocks(ctx)
	if err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if released != 0 {
		t.Fatalf("live lock must not be released, got %d", released)
	}
	if got := codeStatus(t, db, "LIVE0001"); got != constants.CodeStatusLocked {
		t.Fatalf("status want LOCKED got %s", got)
	}
}

func TestReleaseLockIfExpiredAlreadyUnlocked(t *testing.T) {
	assignSvc, redeemSvc, expirySvc, db := setupExpiryTest(t)
	ctx := context.Background()
	book := createTestBook(t, db, nil)
	createTestCode(t, db, book.ID, "GONE0001")
	assignCode(t, assignSvc, "GONE0001", "user-1")

	lock, err := redeemSvc.Lock(ctx, "GONE0001", "user-1", nil, ActorContext{})
	if err != nil {
		t.Fatalf("lock failed: %v", err)
	}
	if _, err := redeemSvc.Unlock(ctx, "GONE0001", "user-1", nil, ActorContext{}); err != nil {
		t.Fatalf("unlock failed: %v", err)
	}

	released, err := expirySvc.ReleaseLockIfExpired(ctx, lock.CodeID)
	if err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if released {
		t.Fatalf("already unlocked code must not be released again")
	}
}

func TestExpireBookCodes(t *testing.T) {
	assignSvc, _, expirySvc, db := setupExpiryTest(t)
	ctx := context.Background()
	book := createTestBook(t, db, nil)
	createTestCode(t, db, book.ID, "EXPB0001")
	createTestCode(t, db, book.ID, "EXPB0002")
	assignCode(t, assignSvc, "EXPB0001", "user-1")

	// 核销后到达终态的券码不受过期清理影响
	redeemed := createTestCode(t, db, book.ID, "EXPB0003")
	if err := db.Model(&models.CouponCode{}).
		Where("id = ?", redeemed.ID).
		Update("status", constants.CodeStatusRedeemed).Error; err != nil {
		t.Fatalf("mark redeemed failed: %v", err)
	}

	past := time.Now().Add(-time.Hour)
	if err := db.Model(&models.CouponBook{}).
		Where("id = ?", book.ID).
		Update("expires_at", past).Error; err != nil {
		t.Fatalf("expire book failed: %v", err)
	}

	expired, err := expirySvc.ExpireBookCodes(ctx)
	if err != nil {
		t.Fatalf("expire book codes failed: %v", err)
	}
	if expired != 2 {
		t.Fatalf("expired count want 2 got %d", expired)
	}
	if got := codeStatus(t, db, "EXPB0001"); got != constants.CodeStatusExpired {
		t.Fatalf("assigned code want EXPIRED got %s", got)
	}
	if got := codeStatus(t, db, "EXPB0002"); got != constants.CodeStatusExpired {
		t.Fatalf("available code want EXPIRED got %s", got)
	}
	if got := codeStatus(t, db, "EXPB0003"); got != constants.CodeStatusRedeemed {
		t.Fatalf("redeemed code must stay REDEEMED, got %s", got)
	}

	var expireAudits int64
	if err := db.Model(&models.RedemptionAudit{}).
		Where("action = ?", constants.AuditActionExpire).
		Count(&expireAudits).Error; err != nil {
		t.Fatalf("count expire audits failed: %v", err)
	}
	if expireAudits != 2 {
		t.Fatalf("expire audits want 2 got %d", expireAudits)
	}
}
