package repository

import (
	"errors"

	"github.com/coupon-next/internal/constants"
	"github.com/coupon-next/internal/models"

	"gorm.io/gorm"
)

// CouponCodeRepository 券码数据访问接口
type CouponCodeRepository interface {
	BulkCreate(codes []models.CouponCode) error
	GetByID(id string) (*models.CouponCode, error)
	GetByCode(code string) (*models.CouponCode, error)
	ListByBook(bookID string, filter CouponCodeListFilter) ([]models.CouponCode, int64, error)
	ListAvailableIDs(bookID string, limit int) ([]string, error)
	ListExistingCodes(codes []string) ([]string, error)
	StatusCounts(bookID string) (map[string]int64, error)
	UpdateStatus(id, status string) error
	LockByID(tx *gorm.DB, id string) (*models.CouponCode, error)
	PickAvailableForUpdate(tx *gorm.DB, bookID string) (*models.CouponCode, error)
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) *GormCouponCodeRepository
}

// CouponCodeListFilter 券码列表筛选
type CouponCodeListFilter struct {
	Status   string
	Page     int
	PageSize int
}

// GormCouponCodeRepository GORM 实现
type GormCouponCodeRepository struct {
	db *gorm.DB
}

// NewCouponCodeRepository 创建券码仓库
func NewCouponCodeRepository(db *gorm.DB) *GormCouponCodeRepository {
	return &GormCouponCodeRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCouponCodeRepository) WithTx(tx *gorm.DB) *GormCouponCodeRepository {
	if tx == nil {
		return r
	}
	return &GormCouponCodeRepository{db: tx}
}

// Transaction 在事务中执行回调
func (r *GormCouponCodeRepository) Transaction(fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

// BulkCreate 批量创建券码
func (r *GormCouponCodeRepository) BulkCreate(codes []models.CouponCode) error {
	if len(codes) == 0 {
		return nil
	}
	return r.db.CreateInBatches(codes, 500).Error
}

// GetByID 根据ID获取券码
func (r *GormCouponCodeRepository) GetByID(id string) (*models.CouponCode, error) {
	if id == "" {
		return nil, nil
	}
	var code models.CouponCode
	if err := r.db.Where("id = ?", id).First(&code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &code, nil
}

// GetByCode 根据券码文本获取券码
func (r *GormCouponCodeRepository) GetByCode(code string) (*models.CouponCode, error) {
	if code == "" {
		return nil, nil
	}
	var record models.CouponCode
	if err := r.db.Preload("Book").Where("code = ?", code).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// ListByBook 获取券册下的券码列表
func (r *GormCouponCodeRepository) ListByBook(bookID string, filter CouponCodeListFilter) ([]models.CouponCode, int64, error) {
	query := r.db.Model(&models.CouponCode{}).Where("book_id = ?", bookID)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var codes []models.CouponCode
	if err := query.Order("created_at desc").Find(&codes).Error; err != nil {
		return nil, 0, err
	}
	return codes, total, nil
}

// ListAvailableIDs 获取券册下可用券码的ID列表
func (r *GormCouponCodeRepository) ListAvailableIDs(bookID string, limit int) ([]string, error) {
	query := r.db.Model(&models.CouponCode{}).
		Where("book_id = ? AND status = ?", bookID, constants.CodeStatusAvailable)
	if limit > 0 {
		query = query.Limit(limit)
	}
	var ids []string
	if err := query.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// ListExistingCodes 查询已存在的券码文本
func (r *GormCouponCodeRepository) ListExistingCodes(codes []string) ([]string, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	var existing []string
	if err := r.db.Model(&models.CouponCode{}).
		Where("code IN ?", codes).
		Pluck("code", &existing).Error; err != nil {
		return nil, err
	}
	return existing, nil
}

// StatusCounts 按状态统计券册下的券码数量
func (r *GormCouponCodeRepository) StatusCounts(bookID string) (map[string]int64, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	if err := r.db.Model(&models.CouponCode{}).
		Select("status, count(*) as count").
		Where("book_id = ?", bookID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, item := range rows {
		counts[item.Status] = item.Count
	}
	return counts, nil
}

// UpdateStatus 更新券码状态
func (r *GormCouponCodeRepository) UpdateStatus(id, status string) error {
	return r.db.Model(&models.CouponCode{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// LockByID 在事务中锁定指定券码行
func (r *GormCouponCodeRepository) LockByID(tx *gorm.DB, id string) (*models.CouponCode, error) {
	var code models.CouponCode
	query := applyRowLock(tx.Where("id = ?", id))
	if err := query.First(&code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &code, nil
}

// PickAvailableForUpdate 在事务中锁定券册下任意一个可用券码
func (r *GormCouponCodeRepository) PickAvailableForUpdate(tx *gorm.DB, bookID string) (*models.CouponCode, error) {
	var code models.CouponCode
	query := applyRowLock(tx.Where("book_id = ? AND status = ?", bookID, constants.CodeStatusAvailable))
	if err := query.Order("created_at asc").First(&code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &code, nil
}
