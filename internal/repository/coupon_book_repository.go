package repository

import (
	"errors"
	"time"

	"github.com/coupon-next/internal/models"

	"gorm.io/gorm"
)

// CouponBookRepository 券册数据访问接口
type CouponBookRepository interface {
	Create(book *models.CouponBook) error
	GetByID(id string) (*models.CouponBook, error)
	List(filter CouponBookListFilter) ([]models.CouponBook, int64, error)
	Update(book *models.CouponBook) error
	Delete(id string) error
	IncrementGeneratedCount(id string, delta int) error
	ListExpired(now time.Time) ([]models.CouponBook, error)
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) *GormCouponBookRepository
}

// CouponBookListFilter 券册列表筛选
type CouponBookListFilter struct {
	BusinessID string
	Status     string
	Page       int
	PageSize   int
}

// GormCouponBookRepository GORM 实现
type GormCouponBookRepository struct {
	db *gorm.DB
}

// NewCouponBookRepository 创建券册仓库
func NewCouponBookRepository(db *gorm.DB) *GormCouponBookRepository {
	return &GormCouponBookRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCouponBookRepository) WithTx(tx *gorm.DB) *GormCouponBookRepository {
	if tx == nil {
		return r
	}
	return &GormCouponBookRepository{db: tx}
}

// Transaction 在事务中执行回调
func (r *GormCouponBookRepository) Transaction(fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

// Create 创建券册
func (r *GormCouponBookRepository) Create(book *models.CouponBook) error {
	return r.db.Create(book).Error
}

// GetByID 根据ID获取券册
func (r *GormCouponBookRepository) GetByID(id string) (*models.CouponBook, error) {
	if id == "" {
		return nil, nil
	}
	var book models.CouponBook
	if err := r.db.Where("id = ?", id).First(&book).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &book, nil
}

// List 获取券册列表
func (r *GormCouponBookRepository) List(filter CouponBookListFilter) ([]models.CouponBook, int64, error) {
	query := r.db.Model(&models.CouponBook{})
	if filter.BusinessID != "" {
		query = query.Where("business_id = ?", filter.BusinessID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var books []models.CouponBook
	if err := query.Order("created_at desc").Find(&books).Error; err != nil {
		return nil, 0, err
	}
	return books, total, nil
}

// Update 更新券册
func (r *GormCouponBookRepository) Update(book *models.CouponBook) error {
	return r.db.Save(book).Error
}

// Delete 删除券册
func (r *GormCouponBookRepository) Delete(id string) error {
	return r.db.Delete(&models.CouponBook{}, "id = ?", id).Error
}

// IncrementGeneratedCount 增加已生成券码计数
func (r *GormCouponBookRepository) IncrementGeneratedCount(id string, delta int) error {
	if delta <= 0 {
		return nil
	}
	return r.db.Model(&models.CouponBook{}).
		Where("id = ?", id).
		UpdateColumn("generated_count", gorm.Expr("generated_count + ?", delta)).Error
}

// ListExpired 获取已过期的券册
func (r *GormCouponBookRepository) ListExpired(now time.Time) ([]models.CouponBook, error) {
	var books []models.CouponBook
	if err := r.db.Where("expires_at IS NOT NULL AND expires_at < ?", now).
		Find(&books).Error; err != nil {
		return nil, err
	}
	return books, nil
}
