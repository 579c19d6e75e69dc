package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CouponAssignment 券码领取记录（一码同一时间至多一条有效领取）
type CouponAssignment struct {
	ID          string     `gorm:"type:varchar(36);primarykey" json:"id"`                                    // 主键（UUID）
	CodeID      string     `gorm:"type:varchar(36);uniqueIndex;not null" json:"code_id"`                     // 券码ID（唯一约束保证一码一claim）
	UserID      string     `gorm:"type:varchar(36);index:idx_assignments_user_book;not null" json:"user_id"` // 用户ID
	BookID      string     `gorm:"type:varchar(36);index:idx_assignments_user_book;not null" json:"book_id"` // 券册ID（冗余用于配额查询）
	AssignedAt  time.Time  `gorm:"not null" json:"assigned_at"`                                              // 领取时间
	LockedAt    *time.Time `json:"locked_at"`                                                                // 锁定时间（仅锁定期间有值）
	LockedUntil *time.Time `gorm:"index" json:"locked_until"`                                                // 锁定截止（供过期清理扫描）
	RedeemedAt  *time.Time `json:"redeemed_at"`                                                              // 终核销时间（配额耗尽时写入）
	RedeemCount int        `gorm:"not null;default:0" json:"redeem_count"`                                   // 已核销次数（单调递增）
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`                                                  // 创建时间
	UpdatedAt   time.Time  `gorm:"index" json:"updated_at"`                                                  // 更新时间

	Code *CouponCode `gorm:"foreignKey:CodeID" json:"code,omitempty"` // 券码信息
}

// TableName 指定表名
func (CouponAssignment) TableName() string {
	return "coupon_assignments"
}

// BeforeCreate 生成 UUID 主键
func (a *CouponAssignment) BeforeCreate(_ *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// IsLocked 判断锁定窗口是否仍然有效
func (a *CouponAssignment) IsLocked(now time.Time) bool {
	return a.LockedAt != nil && a.LockedUntil != nil && now.Before(*a.LockedUntil)
}

// IsRedeemed 判断是否已完成终核销
func (a *CouponAssignment) IsRedeemed() bool {
	return a.RedeemedAt != nil
}
