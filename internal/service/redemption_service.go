package service

import (
	"context"
	"strings"
	"time"

	"github.com/coupon-next/internal/cache"
	"github.com/coupon-next/internal/constants"
	"github.com/coupon-next/internal/logger"
	"github.com/coupon-next/internal/models"
	"github.com/coupon-next/internal/repository"

	"gorm.io/gorm"
)

// LockSweepEnqueuer 锁定超时清理任务入队接口
type LockSweepEnqueuer interface {
	EnqueueLockSweep(codeID string, delay time.Duration) error
}

// RedemptionService 核销状态机服务
// 所有状态迁移都在行锁事务内完成，缓存仅作加速层
type RedemptionService struct {
	codeRepo     repository.CouponCodeRepository
	assignRepo   repository.CouponAssignmentRepository
	audit        *AuditRecorder
	lockTTL      time.Duration
	cacheEnabled bool
	sweeper      LockSweepEnqueuer
}

// NewRedemptionService 创建核销服务
func NewRedemptionService(
	codeRepo repository.CouponCodeRepository,
	assignRepo repository.CouponAssignmentRepository,
	audit *AuditRecorder,
	lockTTL time.Duration,
	cacheEnabled bool,
	sweeper LockSweepEnqueuer,
) *RedemptionService {
	if lockTTL <= 0 {
		lockTTL = 5 * time.Minute
	}
	return &RedemptionService{
		codeRepo:     codeRepo,
		assignRepo:   assignRepo,
		audit:        audit,
		lockTTL:      lockTTL,
		cacheEnabled: cacheEnabled,
		sweeper:      sweeper,
	}
}

// LockResult 锁定结果
type LockResult struct {
	CodeID         string    `json:"code_id"`
	Code           string    `json:"code"`
	UserID         string    `json:"user_id"`
	Status         string    `json:"status"`
	LockedUntil    time.Time `json:"locked_until"`
	LockTTLSeconds int       `json:"lock_ttl_seconds"`
}

// UnlockResult 解锁结果
type UnlockResult struct {
	CodeID     string    `json:"code_id"`
	Code       string    `json:"code"`
	UserID     string    `json:"user_id"`
	Status     string    `json:"status"`
	UnlockedAt time.Time `json:"unlocked_at"`
}

// RedeemResult 核销结果
type RedeemResult struct {
	CodeID        string     `json:"code_id"`
	Code          string     `json:"code"`
	UserID        string     `json:"user_id"`
	Status        string     `json:"status"`
	RedeemCount   int        `json:"redeem_count"`
	MaxRedeems    *int       `json:"max_redeems"`
	IsFinalRedeem bool       `json:"is_final_redeem"`
	RedeemedAt    *time.Time `json:"redeemed_at,omitempty"`
}

// Lock 锁定券码，同一持有人重复锁定幂等返回现有窗口
func (s *RedemptionService) Lock(ctx context.Context, code, userID string, metadata map[string]interface{}, actor ActorContext) (*LockResult, error) {
	record, assignment, book, err := s.resolve(ctx, code)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.checkForeignLock(ctx, record.ID, assignment, userID, now); err != nil {
		return nil, err
	}
	if assignment.UserID != userID {
		return nil, ErrNotCodeHolder
	}
	if err := checkBookUsable(book); err != nil {
		return nil, err
	}
	if err := checkLockableStatus(record.Status, assignment); err != nil {
		return nil, err
	}

	// 同一持有人且窗口仍有效：幂等返回，不产生新的迁移
	if record.Status == constants.CodeStatusLocked && assignment.IsLocked(now) {
		return &LockResult{
			CodeID:         record.ID,
			Code:           record.Code,
			UserID:         userID,
			Status:         constants.CodeStatusLocked,
			LockedUntil:    *assignment.LockedUntil,
			LockTTLSeconds: int(s.lockTTL / time.Second),
		}, nil
	}

	expiresAt := now.Add(s.lockTTL)
	err = s.codeRepo.Transaction(func(tx *gorm.DB) error {
		locked, err := s.codeRepo.LockByID(tx, record.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			return ErrCodeNoLongerAvailable
		}
		if locked.Status != constants.CodeStatusAssigned && locked.Status != constants.CodeStatusLocked {
			return lostRaceError(locked.Status, assignment)
		}

		if err := s.codeRepo.WithTx(tx).UpdateStatus(locked.ID, constants.CodeStatusLocked); err != nil {
			return err
		}
		if err := s.assignRepo.WithTx(tx).SetLockWindow(assignment.ID, now, expiresAt); err != nil {
			return err
		}

		return s.audit.Record(tx, AuditEntry{
			CodeID:       locked.ID,
			UserID:       userID,
			Action:       constants.AuditActionLock,
			StatusBefore: locked.Status,
			StatusAfter:  constants.CodeStatusLocked,
			Actor:        actor,
			Metadata:     metadata,
		})
	})
	if err != nil {
		return nil, err
	}

	s.syncLockCache(ctx, cache.BuildCouponLock(record.ID, userID, now, expiresAt))
	if s.sweeper != nil {
		if err := s.sweeper.EnqueueLockSweep(record.ID, s.lockTTL); err != nil {
			logger.Warnw("redemption_enqueue_lock_sweep_failed", "code_id", record.ID, "error", err)
		}
	}

	return &LockResult{
		CodeID:         record.ID,
		Code:           record.Code,
		UserID:         userID,
		Status:         constants.CodeStatusLocked,
		LockedUntil:    expiresAt,
		LockTTLSeconds: int(s.lockTTL / time.Second),
	}, nil
}

// Unlock 解除锁定，未锁定的已分配券码视为幂等成功
func (s *RedemptionService) Unlock(ctx context.Context, code, userID string, metadata map[string]interface{}, actor ActorContext) (*UnlockResult, error) {
	record, assignment, _, err := s.resolve(ctx, code)
	if err != nil {
		return nil, err
	}
	if assignment.UserID != userID {
		return nil, ErrNotCodeHolder
	}

	switch record.Status {
	case constants.CodeStatusRedeemed:
		return nil, &RedeemedConflictError{
			CodeID:      record.ID,
			RedeemedAt:  assignment.RedeemedAt,
			RedeemCount: assignment.RedeemCount,
		}
	case constants.CodeStatusExpired:
		return nil, ErrCodeExpiredStatus
	case constants.CodeStatusAvailable:
		return nil, ErrCodeNotAssigned
	}

	now := time.Now()
	if record.Status == constants.CodeStatusAssigned {
		// 没有活跃锁，清掉可能残留的缓存条目即可
		s.dropLockCache(ctx, record.ID)
		return &UnlockResult{
			CodeID:     record.ID,
			Code:       record.Code,
			UserID:     userID,
			Status:     constants.CodeStatusAssigned,
			UnlockedAt: now,
		}, nil
	}

	err = s.codeRepo.Transaction(func(tx *gorm.DB) error {
		locked, err := s.codeRepo.LockByID(tx, record.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			return ErrCodeNoLongerAvailable
		}
		if locked.Status != constants.CodeStatusLocked {
			return lostRaceError(locked.Status, assignment)
		}

		if err := s.codeRepo.WithTx(tx).UpdateStatus(locked.ID, constants.CodeStatusAssigned); err != nil {
			return err
		}
		if err := s.assignRepo.WithTx(tx).ClearLockWindow(assignment.ID); err != nil {
			return err
		}

		return s.audit.Record(tx, AuditEntry{
			CodeID:       locked.ID,
			UserID:       userID,
			Action:       constants.AuditActionUnlock,
			StatusBefore: constants.CodeStatusLocked,
			StatusAfter:  constants.CodeStatusAssigned,
			Actor:        actor,
			Metadata:     metadata,
		})
	})
	if err != nil {
		return nil, err
	}

	s.dropLockCache(ctx, record.ID)

	return &UnlockResult{
		CodeID:     record.ID,
		Code:       record.Code,
		UserID:     userID,
		Status:     constants.CodeStatusAssigned,
		UnlockedAt: now,
	}, nil
}

// Redeem 核销券码，配额用尽时迁移到终态
func (s *RedemptionService) Redeem(ctx context.Context, code, userID string, metadata map[string]interface{}, actor ActorContext) (*RedeemResult, error) {
	record, assignment, book, err := s.resolve(ctx, code)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.checkForeignLock(ctx, record.ID, assignment, userID, now); err != nil {
		return nil, err
	}
	if assignment.UserID != userID {
		return nil, ErrNotCodeHolder
	}
	if err := checkBookUsable(book); err != nil {
		return nil, err
	}

	switch record.Status {
	case constants.CodeStatusRedeemed:
		return nil, &RedeemedConflictError{
			CodeID:      record.ID,
			RedeemedAt:  assignment.RedeemedAt,
			RedeemCount: assignment.RedeemCount,
		}
	case constants.CodeStatusExpired:
		return nil, ErrCodeExpiredStatus
	case constants.CodeStatusAvailable:
		return nil, ErrCodeNotAssigned
	}

	maxRedeems := book.MaxRedeemsPerUser
	if maxRedeems != nil && assignment.RedeemCount >= *maxRedeems {
		return nil, &RedeemLimitError{
			CodeID:  record.ID,
			Current: assignment.RedeemCount,
			Max:     *maxRedeems,
		}
	}

	var (
		newCount    int
		isFinal     bool
		statusAfter string
		redeemedAt  *time.Time
	)
	err = s.codeRepo.Transaction(func(tx *gorm.DB) error {
		locked, err := s.codeRepo.LockByID(tx, record.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			return ErrCodeNoLongerAvailable
		}

		// 持锁后重读台账，计数与配额判定不信任锁前快照
		current, err := s.assignRepo.WithTx(tx).GetByCodeID(locked.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrCodeNotAssigned
		}
		if current.UserID != userID {
			return ErrNotCodeHolder
		}
		if locked.Status != constants.CodeStatusAssigned && locked.Status != constants.CodeStatusLocked {
			return lostRaceError(locked.Status, current)
		}
		if maxRedeems != nil && current.RedeemCount >= *maxRedeems {
			return &RedeemLimitError{
				CodeID:  locked.ID,
				Current: current.RedeemCount,
				Max:     *maxRedeems,
			}
		}

		newCount = current.RedeemCount + 1
		isFinal = maxRedeems == nil || newCount >= *maxRedeems
		statusAfter = locked.Status
		if isFinal {
			statusAfter = constants.CodeStatusRedeemed
			redeemedAt = &now
		}

		if isFinal {
			if err := s.codeRepo.WithTx(tx).UpdateStatus(locked.ID, constants.CodeStatusRedeemed); err != nil {
				return err
			}
		}
		if err := s.assignRepo.WithTx(tx).ApplyRedeem(current.ID, newCount, redeemedAt); err != nil {
			return err
		}

		auditMeta := make(map[string]interface{}, len(metadata)+3)
		for key, value := range metadata {
			auditMeta[key] = value
		}
		auditMeta["redeem_count"] = newCount
		auditMeta["is_final_redeem"] = isFinal
		if maxRedeems != nil {
			auditMeta["max_redeems"] = *maxRedeems
		}

		return s.audit.Record(tx, AuditEntry{
			CodeID:       locked.ID,
			UserID:       userID,
			Action:       constants.AuditActionRedeem,
			StatusBefore: locked.Status,
			StatusAfter:  statusAfter,
			Actor:        actor,
			Metadata:     auditMeta,
		})
	})
	if err != nil {
		return nil, err
	}

	s.dropLockCache(ctx, record.ID)

	return &RedeemResult{
		CodeID:        record.ID,
		Code:          record.Code,
		UserID:        userID,
		Status:        statusAfter,
		RedeemCount:   newCount,
		MaxRedeems:    maxRedeems,
		IsFinalRedeem: isFinal,
		RedeemedAt:    redeemedAt,
	}, nil
}

// resolve 解析券码及其分配与券册
func (s *RedemptionService) resolve(_ context.Context, code string) (*models.CouponCode, *models.CouponAssignment, *models.CouponBook, error) {
	record, err := s.codeRepo.GetByCode(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, nil, nil, err
	}
	if record == nil {
		return nil, nil, nil, ErrCodeNotFound
	}

	assignment, err := s.assignRepo.GetByCodeID(record.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	if assignment == nil {
		return nil, nil, nil, ErrCodeNotAssigned
	}

	book := record.Book
	if book == nil && assignment.Code != nil {
		book = assignment.Code.Book
	}
	if book == nil {
		return nil, nil, nil, ErrBookNotFound
	}
	return record, assignment, book, nil
}

// checkForeignLock 他人持有有效锁时返回冲突与剩余等待秒数
// 优先查缓存短路，缓存未命中回退到持久化锁定窗口
func (s *RedemptionService) checkForeignLock(ctx context.Context, codeID string, assignment *models.CouponAssignment, userID string, now time.Time) error {
	if s.cacheEnabled && cache.Enabled() {
		lock, hit, err := cache.GetCouponLock(ctx, codeID)
		if err != nil {
			logger.Warnw("redemption_lock_cache_read_failed", "code_id", codeID, "error", err)
		} else if hit && lock.UserID != userID && now.Unix() < lock.ExpiresAt {
			return &LockConflictError{
				CodeID:            codeID,
				LockedUntil:       time.Unix(lock.ExpiresAt, 0),
				RetryAfterSeconds: lock.RetryAfterSeconds(now),
			}
		}
	}
	if assignment.IsLocked(now) && assignment.UserID != userID {
		retry := int(time.Until(*assignment.LockedUntil) / time.Second)
		if retry < 1 {
			retry = 1
		}
		return &LockConflictError{
			CodeID:            codeID,
			LockedUntil:       *assignment.LockedUntil,
			RetryAfterSeconds: retry,
		}
	}
	return nil
}

// checkLockableStatus 锁定前的状态校验
func checkLockableStatus(status string, assignment *models.CouponAssignment) error {
	switch status {
	case constants.CodeStatusRedeemed:
		return &RedeemedConflictError{
			CodeID:      assignment.CodeID,
			RedeemedAt:  assignment.RedeemedAt,
			RedeemCount: assignment.RedeemCount,
		}
	case constants.CodeStatusExpired:
		return ErrCodeExpiredStatus
	case constants.CodeStatusAvailable:
		return ErrCodeNotAssigned
	default:
		return nil
	}
}

// lostRaceError 行锁内复核失败时按最新状态给出错误
func lostRaceError(status string, assignment *models.CouponAssignment) error {
	switch status {
	case constants.CodeStatusRedeemed:
		return &RedeemedConflictError{
			CodeID:      assignment.CodeID,
			RedeemedAt:  assignment.RedeemedAt,
			RedeemCount: assignment.RedeemCount,
		}
	case constants.CodeStatusExpired:
		return ErrCodeExpiredStatus
	default:
		return ErrInvalidTransition
	}
}

func (s *RedemptionService) syncLockCache(ctx context.Context, lock *cache.CouponLock) {
	if !s.cacheEnabled || !cache.Enabled() {
		return
	}
	if err := cache.SetCouponLock(ctx, lock); err != nil {
		logger.Warnw("redemption_lock_cache_write_failed", "code_id", lock.CodeID, "error", err)
	}
}

func (s *RedemptionService) dropLockCache(ctx context.Context, codeID string) {
	if !s.cacheEnabled || !cache.Enabled() {
		return
	}
	if err := cache.DelCouponLock(ctx, codeID); err != nil {
		logger.Warnw("redemption_lock_cache_delete_failed", "code_id", codeID, "error", err)
	}
}
