package models

import (
	"time"

	"github.com/coupon-next/internal/constants"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CouponBook 券册（配额与生命周期策略容器）
type CouponBook struct {
	ID                 string     `gorm:"type:varchar(36);primarykey" json:"id"`              // 主键（UUID）
	BusinessID         string     `gorm:"type:varchar(36);index;not null" json:"business_id"` // 所属商户ID
	Name               string     `gorm:"type:varchar(255);not null" json:"name"`             // 名称
	Description        string     `gorm:"type:text" json:"description"`                       // 描述
	MaxRedeemsPerUser  *int       `json:"max_redeems_per_user"`                               // 单用户最大核销次数（null 不限）
	MaxCodesPerUser    *int       `json:"max_codes_per_user"`                                 // 单用户最大领取数（null 不限）
	Status             string     `gorm:"type:varchar(20);index;not null" json:"status"`      // 状态（DRAFT/ACTIVE/CLOSED）
	TotalCodesExpected *int       `json:"total_codes_expected"`                               // 预期券码总量
	GeneratedCount     int        `gorm:"not null;default:0" json:"generated_count"`          // 已生成券码数
	ExpiresAt          *time.Time `gorm:"index" json:"expires_at"`                            // 过期时间
	CreatedAt          time.Time  `gorm:"index" json:"created_at"`                            // 创建时间
	UpdatedAt          time.Time  `gorm:"index" json:"updated_at"`                            // 更新时间
}

// TableName 指定表名
func (CouponBook) TableName() string {
	return "coupon_books"
}

// BeforeCreate 生成 UUID 主键
func (b *CouponBook) BeforeCreate(_ *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// IsExpired 判断券册是否已过期
func (b *CouponBook) IsExpired(now time.Time) bool {
	return b.ExpiresAt != nil && now.After(*b.ExpiresAt)
}

// IsUsable 判断券册是否处于可用状态（已激活且未过期）
func (b *CouponBook) IsUsable(now time.Time) bool {
	return b.Status == constants.BookStatusActive && !b.IsExpired(now)
}
