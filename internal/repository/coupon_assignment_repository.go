package repository

import (
	"errors"
	"time"

	"github.com/coupon-next/internal/models"

	"gorm.io/gorm"
)

// CouponAssignmentRepository 券码分配数据访问接口
type CouponAssignmentRepository interface {
	Create(assignment *models.CouponAssignment) error
	GetByCodeID(codeID string) (*models.CouponAssignment, error)
	CountByUserAndBook(userID, bookID string) (int64, error)
	ListByUser(userID string, page, pageSize int) ([]models.CouponAssignment, int64, error)
	SetLockWindow(id string, lockedAt, lockedUntil time.Time) error
	ClearLockWindow(id string) error
	ApplyRedeem(id string, redeemCount int, redeemedAt *time.Time) error
	ListExpiredLocks(now time.Time, limit int) ([]models.CouponAssignment, error)
	WithTx(tx *gorm.DB) *GormCouponAssignmentRepository
}

// GormCouponAssignmentRepository GORM 实现
type GormCouponAssignmentRepository struct {
	db *gorm.DB
}

// NewCouponAssignmentRepository 创建分配仓库
func NewCouponAssignmentRepository(db *gorm.DB) *GormCouponAssignmentRepository {
	return &GormCouponAssignmentRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCouponAssignmentRepository) WithTx(tx *gorm.DB) *GormCouponAssignmentRepository {
	if tx == nil {
		return r
	}
	return &GormCouponAssignmentRepository{db: tx}
}

// Create 创建分配记录
func (r *GormCouponAssignmentRepository) Create(assignment *models.CouponAssignment) error {
	return r.db.Create(assignment).Error
}

// GetByCodeID 根据券码ID获取分配记录
func (r *GormCouponAssignmentRepository) GetByCodeID(codeID string) (*models.CouponAssignment, error) {
	if codeID == "" {
		return nil, nil
	}
	var assignment models.CouponAssignment
	if err := r.db.Preload("Code").Preload("Code.Book").
		Where("code_id = ?", codeID).First(&assignment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &assignment, nil
}

// CountByUserAndBook 统计用户在券册下的分配数量
func (r *GormCouponAssignmentRepository) CountByUserAndBook(userID, bookID string) (int64, error) {
	var count int64
	if err := r.db.Model(&models.CouponAssignment{}).
		Where("user_id = ? AND book_id = ?", userID, bookID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ListByUser 获取用户的分配列表
func (r *GormCouponAssignmentRepository) ListByUser(userID string, page, pageSize int) ([]models.CouponAssignment, int64, error) {
	query := r.db.Model(&models.CouponAssignment{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, page, pageSize)

	var assignments []models.CouponAssignment
	if err := query.Preload("Code").Order("assigned_at desc").
		Find(&assignments).Error; err != nil {
		return nil, 0, err
	}
	return assignments, total, nil
}

// SetLockWindow 设置锁定窗口
func (r *GormCouponAssignmentRepository) SetLockWindow(id string, lockedAt, lockedUntil time.Time) error {
	return r.db.Model(&models.CouponAssignment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"locked_at":    lockedAt,
			"locked_until": lockedUntil,
		}).Error
}

// ClearLockWindow 清除锁定窗口
func (r *GormCouponAssignmentRepository) ClearLockWindow(id string) error {
	return r.db.Model(&models.CouponAssignment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"locked_at":    nil,
			"locked_until": nil,
		}).Error
}

// ApplyRedeem 应用核销结果并清除锁定窗口
func (r *GormCouponAssignmentRepository) ApplyRedeem(id string, redeemCount int, redeemedAt *time.Time) error {
	return r.db.Model(&models.CouponAssignment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"redeem_count": redeemCount,
			"redeemed_at":  redeemedAt,
			"locked_at":    nil,
			"locked_until": nil,
		}).Error
}

// ListExpiredLocks 获取锁定已超时的分配记录
func (r *GormCouponAssignmentRepository) ListExpiredLocks(now time.Time, limit int) ([]models.CouponAssignment, error) {
	query := r.db.Where("locked_until IS NOT NULL AND locked_until < ?", now)
	if limit > 0 {
		query = query.Limit(limit)
	}
	var assignments []models.CouponAssignment
	if err := query.Order("locked_until asc").Find(&assignments).Error; err != nil {
		return nil, err
	}
	return assignments, nil
}
