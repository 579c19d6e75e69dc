package provider

import (
	"github.com/coupon-next/internal/cache"
	"github.com/coupon-next/internal/config"
	"github.com/coupon-next/internal/logger"
	"github.com/coupon-next/internal/models"
	"github.com/coupon-next/internal/queue"
	"github.com/coupon-next/internal/repository"
	"github.com/coupon-next/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	BookRepo       repository.CouponBookRepository
	CodeRepo       repository.CouponCodeRepository
	AssignmentRepo repository.CouponAssignmentRepository
	AuditRepo      repository.RedemptionAuditRepository

	// Services
	AuditRecorder     *service.AuditRecorder
	BookService       *service.BookService
	CodeService       *service.CodeService
	AssignmentService *service.AssignmentService
	RedemptionService *service.RedemptionService
	ExpiryService     *service.ExpiryService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.BookRepo = repository.NewCouponBookRepository(db)
	c.CodeRepo = repository.NewCouponCodeRepository(db)
	c.AssignmentRepo = repository.NewCouponAssignmentRepository(db)
	c.AuditRepo = repository.NewRedemptionAuditRepository(db)
}

func (c *Container) initServices() {
	cfg := c.Config
	c.AuditRecorder = service.NewAuditRecorder(c.AuditRepo, cfg.Features.AuditLogging)
	c.BookService = service.NewBookService(c.BookRepo, c.CodeRepo)
	c.CodeService = service.NewCodeService(c.BookRepo, c.CodeRepo)
	c.AssignmentService = service.NewAssignmentService(c.BookRepo, c.CodeRepo, c.AssignmentRepo, c.AuditRecorder)

	var sweeper service.LockSweepEnqueuer
	if c.QueueClient != nil && c.QueueClient.Enabled() {
		sweeper = c.QueueClient
	}
	c.RedemptionService = service.NewRedemptionService(
		c.CodeRepo,
		c.AssignmentRepo,
		c.AuditRecorder,
		cfg.Coupon.LockTTL(),
		cfg.Features.RedisCache,
		sweeper,
	)
	c.ExpiryService = service.NewExpiryService(c.BookRepo, c.CodeRepo, c.AssignmentRepo, c.AuditRecorder)
}
