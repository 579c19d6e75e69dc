package service

import (
	"math/rand"
	"strings"
	"time"

	"github.com/coupon-next/internal/constants"
	"github.com/coupon-next/internal/models"
	"github.com/coupon-next/internal/repository"

	"gorm.io/gorm"
)

// 随机指派单次读取的候选池上限
const assignCandidatePoolSize = 256

// AssignmentService 券码分配服务
type AssignmentService struct {
	bookRepo   repository.CouponBookRepository
	codeRepo   repository.CouponCodeRepository
	assignRepo repository.CouponAssignmentRepository
	audit      *AuditRecorder
}

// NewAssignmentService 创建分配服务
func NewAssignmentService(
	bookRepo repository.CouponBookRepository,
	codeRepo repository.CouponCodeRepository,
	assignRepo repository.CouponAssignmentRepository,
	audit *AuditRecorder,
) *AssignmentService {
	return &AssignmentService{
		bookRepo:   bookRepo,
		codeRepo:   codeRepo,
		assignRepo: assignRepo,
		audit:      audit,
	}
}

// AssignRandom 从券册可用池中随机指派一张券码给用户
func (s *AssignmentService) AssignRandom(userID, bookID string, actor ActorContext) (*models.CouponAssignment, error) {
	userID = strings.TrimSpace(userID)
	bookID = strings.TrimSpace(bookID)
	if userID == "" || bookID == "" {
		return nil, ErrInvalidBookInput
	}

	book, err := s.loadUsableBook(bookID)
	if err != nil {
		return nil, err
	}
	if err := s.checkCodeQuota(userID, book); err != nil {
		return nil, err
	}

	candidates, err := s.codeRepo.ListAvailableIDs(book.ID, assignCandidatePoolSize)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, ErrCodePoolExhausted
	}
	codeID := candidates[rand.Intn(len(candidates))]

	return s.assignRandomLocked(codeID, userID, book, actor)
}

// AssignSpecific 将指定券码指派给用户
func (s *AssignmentService) AssignSpecific(code, userID string, actor ActorContext) (*models.CouponAssignment, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrInvalidBookInput
	}

	record, err := s.codeRepo.GetByCode(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrCodeNotFound
	}
	if record.Status != constants.CodeStatusAvailable {
		return nil, ErrCodeNotAvailable
	}

	book := record.Book
	if book == nil {
		book, err = s.bookRepo.GetByID(record.BookID)
		if err != nil {
			return nil, err
		}
	}
	if book == nil {
		return nil, ErrBookNotFound
	}
	if err := checkBookUsable(book); err != nil {
		return nil, err
	}
	if err := s.checkCodeQuota(userID, book); err != nil {
		return nil, err
	}

	return s.assignLocked(record.ID, userID, book, actor, ErrCodeNotAvailable)
}

// ListUserAssignments 获取用户的分配列表
func (s *AssignmentService) ListUserAssignments(userID string, page, pageSize int) ([]models.CouponAssignment, int64, error) {
	return s.assignRepo.ListByUser(strings.TrimSpace(userID), page, pageSize)
}

// GetAssignmentByCode 根据券码文本获取分配记录
func (s *AssignmentService) GetAssignmentByCode(code string) (*models.CouponAssignment, error) {
	record, err := s.codeRepo.GetByCode(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrCodeNotFound
	}
	assignment, err := s.assignRepo.GetByCodeID(record.ID)
	if err != nil {
		return nil, err
	}
	if assignment == nil {
		return nil, ErrAssignmentNotFound
	}
	return assignment, nil
}

// assignLocked 在事务中锁定券码行并完成指派
// 锁到行后重新校验状态，并发竞争输掉时返回 raceErr 并整体回滚
func (s *AssignmentService) assignLocked(codeID, userID string, book *models.CouponBook, actor ActorContext, raceErr error) (*models.CouponAssignment, error) {
	var assignment *models.CouponAssignment
	err := s.codeRepo.Transaction(func(tx *gorm.DB) error {
		locked, err := s.codeRepo.LockByID(tx, codeID)
		if err != nil {
			return err
		}
		if locked == nil {
			return ErrCodeNotFound
		}
		if locked.Status != constants.CodeStatusAvailable {
			return raceErr
		}

		assignment, err = s.assignOnLockedRow(tx, locked, userID, book, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	return assignment, nil
}

// assignRandomLocked 随机路径的事务体
// 选中的券码输掉竞争时在事务内改锁池中另一张可用券码，池彻底耗尽才报错
func (s *AssignmentService) assignRandomLocked(codeID, userID string, book *models.CouponBook, actor ActorContext) (*models.CouponAssignment, error) {
	var assignment *models.CouponAssignment
	err := s.codeRepo.Transaction(func(tx *gorm.DB) error {
		locked, err := s.codeRepo.LockByID(tx, codeID)
		if err != nil {
			return err
		}
		if locked == nil || locked.Status != constants.CodeStatusAvailable {
			locked, err = s.codeRepo.PickAvailableForUpdate(tx, book.ID)
			if err != nil {
				return err
			}
			if locked == nil {
				return ErrCodePoolExhausted
			}
		}

		assignment, err = s.assignOnLockedRow(tx, locked, userID, book, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	return assignment, nil
}

// assignOnLockedRow 对已持行锁的可用券码执行指派写入
func (s *AssignmentService) assignOnLockedRow(tx *gorm.DB, locked *models.CouponCode, userID string, book *models.CouponBook, actor ActorContext) (*models.CouponAssignment, error) {
	if err := s.codeRepo.WithTx(tx).UpdateStatus(locked.ID, constants.CodeStatusAssigned); err != nil {
		return nil, err
	}

	now := time.Now()
	assignment := &models.CouponAssignment{
		CodeID:     locked.ID,
		UserID:     userID,
		BookID:     book.ID,
		AssignedAt: now,
	}
	if err := s.assignRepo.WithTx(tx).Create(assignment); err != nil {
		return nil, err
	}

	if err := s.audit.Record(tx, AuditEntry{
		CodeID:       locked.ID,
		UserID:       userID,
		Action:       constants.AuditActionAssign,
		StatusBefore: constants.CodeStatusAvailable,
		StatusAfter:  constants.CodeStatusAssigned,
		Actor:        actor,
	}); err != nil {
		return nil, err
	}
	return assignment, nil
}

func (s *AssignmentService) loadUsableBook(bookID string) (*models.CouponBook, error) {
	book, err := s.bookRepo.GetByID(bookID)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, ErrBookNotFound
	}
	if err := checkBookUsable(book); err != nil {
		return nil, err
	}
	return book, nil
}

func (s *AssignmentService) checkCodeQuota(userID string, book *models.CouponBook) error {
	if book.MaxCodesPerUser == nil {
		return nil
	}
	count, err := s.assignRepo.CountByUserAndBook(userID, book.ID)
	if err != nil {
		return err
	}
	if count >= int64(*book.MaxCodesPerUser) {
		return ErrCodeQuotaExceeded
	}
	return nil
}

// checkBookUsable 校验券册可用于指派与核销
func checkBookUsable(book *models.CouponBook) error {
	if book.IsExpired(time.Now()) {
		return ErrBookExpired
	}
	if book.Status != constants.BookStatusActive {
		return ErrBookInactive
	}
	return nil
}
