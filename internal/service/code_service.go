package service

import (
	"strings"

	"github.com/coupon-next/internal/constants"
	"github.com/coupon-next/internal/models"
	"github.com/coupon-next/internal/repository"
)

// CodeService 券码管理服务
type CodeService struct {
	bookRepo repository.CouponBookRepository
	codeRepo repository.CouponCodeRepository
}

// NewCodeService 创建券码管理服务
func NewCodeService(bookRepo repository.CouponBookRepository, codeRepo repository.CouponCodeRepository) *CodeService {
	return &CodeService{
		bookRepo: bookRepo,
		codeRepo: codeRepo,
	}
}

// GenerateCodesInput 批量生成参数
type GenerateCodesInput struct {
	BookID   string
	Quantity int
	Prefix   string
	Length   int
}

// UploadCodesResult 导入结果
type UploadCodesResult struct {
	Imported int      `json:"imported"`
	Skipped  []string `json:"skipped"`
}

// GenerateCodes 为券册批量生成券码
func (s *CodeService) GenerateCodes(input GenerateCodesInput) ([]models.CouponCode, error) {
	if input.Quantity <= 0 || input.Quantity > constants.CodeMaxBatchSize {
		return nil, ErrInvalidCodeBatch
	}
	book, err := s.bookRepo.GetByID(strings.TrimSpace(input.BookID))
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, ErrBookNotFound
	}
	if book.Status == constants.BookStatusClosed {
		return nil, ErrBookInactive
	}

	length := input.Length
	if length <= 0 {
		length = constants.CodeDefaultLength
	}

	codes, err := generateUniqueCodes(input.Quantity, length, input.Prefix, nil)
	if err != nil {
		return nil, err
	}

	// 生成结果可能与库内已有券码撞车，预查一次后补齐
	existing, err := s.codeRepo.ListExistingCodes(codes)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		taken := make(map[string]struct{}, len(codes))
		for _, code := range codes {
			taken[code] = struct{}{}
		}
		kept := codes[:0]
		for _, code := range codes {
			conflict := false
			for _, used := range existing {
				if code == used {
					conflict = true
					break
				}
			}
			if !conflict {
				kept = append(kept, code)
			}
		}
		refill, err := generateUniqueCodes(input.Quantity-len(kept), length, input.Prefix, taken)
		if err != nil {
			return nil, err
		}
		codes = append(kept, refill...)
	}

	records := make([]models.CouponCode, 0, len(codes))
	for _, code := range codes {
		records = append(records, models.CouponCode{
			BookID: book.ID,
			Code:   code,
			Status: constants.CodeStatusAvailable,
		})
	}
	if err := s.codeRepo.BulkCreate(records); err != nil {
		return nil, err
	}
	if err := s.bookRepo.IncrementGeneratedCount(book.ID, len(records)); err != nil {
		return nil, err
	}
	return records, nil
}

// UploadCodes 批量导入券码，输入去重并跳过库内已存在的
func (s *CodeService) UploadCodes(bookID string, rawCodes []string) (*UploadCodesResult, error) {
	book, err := s.bookRepo.GetByID(strings.TrimSpace(bookID))
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, ErrBookNotFound
	}
	if book.Status == constants.BookStatusClosed {
		return nil, ErrBookInactive
	}

	seen := make(map[string]struct{}, len(rawCodes))
	normalized := make([]string, 0, len(rawCodes))
	skipped := make([]string, 0)
	for _, raw := range rawCodes {
		code := strings.ToUpper(strings.TrimSpace(raw))
		if code == "" {
			continue
		}
		if _, dup := seen[code]; dup {
			skipped = append(skipped, code)
			continue
		}
		seen[code] = struct{}{}
		normalized = append(normalized, code)
	}
	if len(normalized) == 0 {
		return nil, ErrInvalidCodeBatch
	}
	if len(normalized) > constants.CodeMaxBatchSize {
		return nil, ErrInvalidCodeBatch
	}

	existing, err := s.codeRepo.ListExistingCodes(normalized)
	if err != nil {
		return nil, err
	}
	existingSet := make(map[string]struct{}, len(existing))
	for _, code := range existing {
		existingSet[code] = struct{}{}
	}

	records := make([]models.CouponCode, 0, len(normalized))
	for _, code := range normalized {
		if _, ok := existingSet[code]; ok {
			skipped = append(skipped, code)
			continue
		}
		records = append(records, models.CouponCode{
			BookID: book.ID,
			Code:   code,
			Status: constants.CodeStatusAvailable,
		})
	}
	if len(records) > 0 {
		if err := s.codeRepo.BulkCreate(records); err != nil {
			return nil, err
		}
		if err := s.bookRepo.IncrementGeneratedCount(book.ID, len(records)); err != nil {
			return nil, err
		}
	}
	return &UploadCodesResult{Imported: len(records), Skipped: skipped}, nil
}

// ListByBook 获取券册下的券码列表
func (s *CodeService) ListByBook(bookID string, filter repository.CouponCodeListFilter) ([]models.CouponCode, int64, error) {
	book, err := s.bookRepo.GetByID(strings.TrimSpace(bookID))
	if err != nil {
		return nil, 0, err
	}
	if book == nil {
		return nil, 0, ErrBookNotFound
	}
	return s.codeRepo.ListByBook(book.ID, filter)
}
