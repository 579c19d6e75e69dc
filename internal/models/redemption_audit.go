package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RedemptionAudit 核销审计记录（只增不改）
type RedemptionAudit struct {
	ID           string    `gorm:"type:varchar(36);primarykey" json:"id"`                                         // 主键（UUID）
	CodeID       string    `gorm:"type:varchar(36);index:idx_audits_code_created;not null" json:"code_id"`        // 券码ID
	UserID       string    `gorm:"type:varchar(36);index:idx_audits_user_created" json:"user_id"`                 // 用户ID（系统清理可为空）
	Action       string    `gorm:"type:varchar(20);not null" json:"action"`                                       // 动作（ASSIGN/LOCK/UNLOCK/REDEEM/EXPIRE）
	StatusBefore string    `gorm:"type:varchar(20)" json:"status_before"`                                         // 迁移前状态
	StatusAfter  string    `gorm:"type:varchar(20);not null" json:"status_after"`                                 // 迁移后状态
	IPAddress    string    `gorm:"type:varchar(45)" json:"ip_address"`                                            // 调用方IP
	UserAgent    string    `gorm:"type:text" json:"user_agent"`                                                   // 调用方UA
	Metadata     string    `gorm:"type:text" json:"metadata"`                                                     // 业务上下文（JSON 文本）
	CreatedAt    time.Time `gorm:"index:idx_audits_code_created;index:idx_audits_user_created" json:"created_at"` // 记录时间
}

// TableName 指定表名
func (RedemptionAudit) TableName() string {
	return "redemption_audits"
}

// BeforeCreate 生成 UUID 主键
func (r *RedemptionAudit) BeforeCreate(_ *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
