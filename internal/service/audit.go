package service

import (
	"encoding/json"

	"github.com/coupon-next/internal/models"
	"github.com/coupon-next/internal/repository"

	"gorm.io/gorm"
)

// ActorContext 调用方上下文，写入审计记录
type ActorContext struct {
	IP        string
	UserAgent string
}

// AuditEntry 单条审计内容
type AuditEntry struct {
	CodeID       string
	UserID       string
	Action       string
	StatusBefore string
	StatusAfter  string
	Actor        ActorContext
	Metadata     map[string]interface{}
}

// AuditRecorder 审计写入器，随业务事务一起提交
type AuditRecorder struct {
	auditRepo repository.RedemptionAuditRepository
	enabled   bool
}

// NewAuditRecorder 创建审计写入器
func NewAuditRecorder(auditRepo repository.RedemptionAuditRepository, enabled bool) *AuditRecorder {
	return &AuditRecorder{auditRepo: auditRepo, enabled: enabled}
}

// Enabled 判断审计是否启用
func (a *AuditRecorder) Enabled() bool {
	return a != nil && a.enabled && a.auditRepo != nil
}

// Record 在事务内写入一条审计记录
func (a *AuditRecorder) Record(tx *gorm.DB, entry AuditEntry) error {
	if !a.Enabled() {
		return nil
	}
	audit := &models.RedemptionAudit{
		CodeID:       entry.CodeID,
		UserID:       entry.UserID,
		Action:       entry.Action,
		StatusBefore: entry.StatusBefore,
		StatusAfter:  entry.StatusAfter,
		IPAddress:    entry.Actor.IP,
		UserAgent:    entry.Actor.UserAgent,
	}
	if len(entry.Metadata) > 0 {
		payload, err := json.Marshal(entry.Metadata)
		if err != nil {
			return err
		}
		audit.Metadata = string(payload)
	}
	return a.auditRepo.WithTx(tx).Create(audit)
}

// ListByCode 按券码查询审计记录
func (a *AuditRecorder) ListByCode(codeID string, page, pageSize int) ([]models.RedemptionAudit, int64, error) {
	return a.auditRepo.ListByCode(codeID, page, pageSize)
}

// ListByUser 按用户查询审计记录
func (a *AuditRecorder) ListByUser(userID string, page, pageSize int) ([]models.RedemptionAudit, int64, error) {
	return a.auditRepo.ListByUser(userID, page, pageSize)
}
