package service

import (
	"context"
	"time"

	"github.com/coupon-next/internal/constants"
	"github.com/coupon-next/internal/logger"
	"github.com/coupon-next/internal/repository"

	"gorm.io/gorm"
)

// 单轮清理处理的分配记录上限
const lockSweepBatchSize = 200

// ExpiryService 过期清理服务，由 worker 周期驱动
type ExpiryService struct {
	bookRepo   repository.CouponBookRepository
	codeRepo   repository.CouponCodeRepository
	assignRepo repository.CouponAssignmentRepository
	audit      *AuditRecorder
}

// NewExpiryService 创建过期清理服务
func NewExpiryService(
	bookRepo repository.CouponBookRepository,
	codeRepo repository.CouponCodeRepository,
	assignRepo repository.CouponAssignmentRepository,
	audit *AuditRecorder,
) *ExpiryService {
	return &ExpiryService{
		bookRepo:   bookRepo,
		codeRepo:   codeRepo,
		assignRepo: assignRepo,
		audit:      audit,
	}
}

// ReleaseExpiredLocks 释放锁定窗口已过期的券码，返回释放数量
func (s *ExpiryService) ReleaseExpiredLocks(ctx context.Context) (int, error) {
	expired, err := s.assignRepo.ListExpiredLocks(time.Now(), lockSweepBatchSize)
	if err != nil {
		return 0, err
	}

	released := 0
	for _, assignment := range expired {
		ok, err := s.ReleaseLockIfExpired(ctx, assignment.CodeID)
		if err != nil {
			logger.Warnw("expiry_release_lock_failed", "code_id", assignment.CodeID, "error", err)
			continue
		}
		if ok {
			released++
		}
	}
	return released, nil
}

// ReleaseLockIfExpired 若指定券码仍处于过期锁定状态则释放
// 行锁内复核，已被解锁或核销的直接跳过
func (s *ExpiryService) ReleaseLockIfExpired(ctx context.Context, codeID string) (bool, error) {
	assignment, err := s.assignRepo.GetByCodeID(codeID)
	if err != nil {
		return false, err
	}
	if assignment == nil {
		return false, nil
	}

	now := time.Now()
	if assignment.LockedUntil == nil || assignment.LockedUntil.After(now) {
		return false, nil
	}

	released := false
	err = s.codeRepo.Transaction(func(tx *gorm.DB) error {
		locked, err := s.codeRepo.LockByID(tx, codeID)
		if err != nil {
			return err
		}
		if locked == nil || locked.Status != constants.CodeStatusLocked {
			return nil
		}

		if err := s.codeRepo.WithTx(tx).UpdateStatus(locked.ID, constants.CodeStatusAssigned); err != nil {
			return err
		}
		if err := s.assignRepo.WithTx(tx).ClearLockWindow(assignment.ID); err != nil {
			return err
		}
		released = true

		return s.audit.Record(tx, AuditEntry{
			CodeID:       locked.ID,
			UserID:       assignment.UserID,
			Action:       constants.AuditActionUnlock,
			StatusBefore: constants.CodeStatusLocked,
			StatusAfter:  constants.CodeStatusAssigned,
			Metadata: map[string]interface{}{
				"lock_expired": true,
			},
		})
	})
	if err != nil {
		return false, err
	}
	return released, nil
}

// ExpireBookCodes 将过期券册下的非终态券码迁移到过期态，返回迁移数量
func (s *ExpiryService) ExpireBookCodes(ctx context.Context) (int64, error) {
	books, err := s.bookRepo.ListExpired(time.Now())
	if err != nil {
		return 0, err
	}

	var total int64
	fromStatuses := []string{
		constants.CodeStatusAvailable,
		constants.CodeStatusAssigned,
		constants.CodeStatusLocked,
	}
	for _, book := range books {
		affected, err := s.expireOneBook(book.ID, fromStatuses)
		if err != nil {
			logger.Warnw("expiry_book_codes_failed", "book_id", book.ID, "error", err)
			continue
		}
		total += affected
	}
	return total, nil
}

// expireOneBook 在单个事务内迁移一本券册的全部非终态券码并写审计
func (s *ExpiryService) expireOneBook(bookID string, fromStatuses []string) (int64, error) {
	var affected int64
	err := s.codeRepo.Transaction(func(tx *gorm.DB) error {
		codes, _, err := s.codeRepo.WithTx(tx).ListByBook(bookID, repository.CouponCodeListFilter{})
		if err != nil {
			return err
		}
		for _, code := range codes {
			expirable := false
			for _, status := range fromStatuses {
				if code.Status == status {
					expirable = true
					break
				}
			}
			if !expirable {
				continue
			}
			if err := s.codeRepo.WithTx(tx).UpdateStatus(code.ID, constants.CodeStatusExpired); err != nil {
				return err
			}
			if err := s.audit.Record(tx, AuditEntry{
				CodeID:       code.ID,
				Action:       constants.AuditActionExpire,
				StatusBefore: code.Status,
				StatusAfter:  constants.CodeStatusExpired,
				Metadata: map[string]interface{}{
					"book_expired": true,
				},
			}); err != nil {
				return err
			}
			affected++
		}
		return nil
	})
	return affected, err
}
