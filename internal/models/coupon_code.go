package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CouponCode 券码（一行对应一个物理码串）
type CouponCode struct {
	ID        string    `gorm:"type:varchar(36);primarykey" json:"id"`                                     // 主键（UUID）
	BookID    string    `gorm:"type:varchar(36);index:idx_codes_book_status;not null" json:"book_id"`      // 所属券册ID
	Code      string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`                         // 码串（全局唯一，大写）
	Status    string    `gorm:"type:varchar(20);index:idx_codes_book_status;index;not null" json:"status"` // 状态（AVAILABLE/ASSIGNED/LOCKED/REDEEMED/EXPIRED）
	CreatedAt time.Time `gorm:"index" json:"created_at"`                                                   // 创建时间
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`                                                   // 更新时间

	Book *CouponBook `gorm:"foreignKey:BookID" json:"book,omitempty"` // 券册信息
}

// TableName 指定表名
func (CouponCode) TableName() string {
	return "coupon_codes"
}

// BeforeCreate 生成 UUID 主键
func (c *CouponCode) BeforeCreate(_ *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
