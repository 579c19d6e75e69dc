package constants

// 券码状态常量
const (
	CodeStatusAvailable = "AVAILABLE"
	CodeStatusAssigned  = "ASSIGNED"
	CodeStatusLocked    = "LOCKED"
	CodeStatusRedeemed  = "REDEEMED"
	CodeStatusExpired   = "EXPIRED"
)

// 券册状态常量
const (
	BookStatusDraft  = "DRAFT"
	BookStatusActive = "ACTIVE"
	BookStatusClosed = "CLOSED"
)

// 审计动作常量
const (
	AuditActionAssign = "ASSIGN"
	AuditActionLock   = "LOCK"
	AuditActionUnlock = "UNLOCK"
	AuditActionRedeem = "REDEEM"
	AuditActionExpire = "EXPIRE"
)

// 队列与任务常量
const (
	QueueDefault        = "default"
	TaskLockSweep       = "coupon:lock_sweep"
	TaskBookExpireSweep = "coupon:book_expire_sweep"
)

// 券码生成默认参数
const (
	CodeDefaultLength = 8
	CodeMaxBatchSize  = 10000
	CodeCharset       = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)
