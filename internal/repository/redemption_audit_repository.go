package repository

import (
	"github.com/coupon-next/internal/models"

	"gorm.io/gorm"
)

// RedemptionAuditRepository 核销审计数据访问接口
type RedemptionAuditRepository interface {
	Create(audit *models.RedemptionAudit) error
	ListByCode(codeID string, page, pageSize int) ([]models.RedemptionAudit, int64, error)
	ListByUser(userID string, page, pageSize int) ([]models.RedemptionAudit, int64, error)
	WithTx(tx *gorm.DB) *GormRedemptionAuditRepository
}

// GormRedemptionAuditRepository GORM 实现
type GormRedemptionAuditRepository struct {
	db *gorm.DB
}

// NewRedemptionAuditRepository 创建审计仓库
func NewRedemptionAuditRepository(db *gorm.DB) *GormRedemptionAuditRepository {
	return &GormRedemptionAuditRepository{db: db}
}

// WithTx 绑定事务
func (r *GormRedemptionAuditRepository) WithTx(tx *gorm.DB) *GormRedemptionAuditRepository {
	if tx == nil {
		return r
	}
	return &GormRedemptionAuditRepository{db: tx}
}

// Create 创建审计记录
func (r *GormRedemptionAuditRepository) Create(audit *models.RedemptionAudit) error {
	return r.db.Create(audit).Error
}

// ListByCode 按券码查询审计记录
func (r *GormRedemptionAuditRepository) ListByCode(codeID string, page, pageSize int) ([]models.RedemptionAudit, int64, error) {
	return r.list(r.db.Model(&models.RedemptionAudit{}).Where("code_id = ?", codeID), page, pageSize)
}

// ListByUser 按用户查询审计记录
func (r *GormRedemptionAuditRepository) ListByUser(userID string, page, pageSize int) ([]models.RedemptionAudit, int64, error) {
	return r.list(r.db.Model(&models.RedemptionAudit{}).Where("user_id = ?", userID), page, pageSize)
}

func (r *GormRedemptionAuditRepository) list(query *gorm.DB, page, pageSize int) ([]models.RedemptionAudit, int64, error) {
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, page, pageSize)

	var audits []models.RedemptionAudit
	if err := query.Order("created_at desc").Find(&audits).Error; err != nil {
		return nil, 0, err
	}
	return audits, total, nil
}
