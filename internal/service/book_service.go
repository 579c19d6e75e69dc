package service

import (
	"strings"
	"time"

	"github.com/coupon-next/internal/constants"
	"github.com/coupon-next/internal/models"
	"github.com/coupon-next/internal/repository"
)

// BookService 券册服务
type BookService struct {
	bookRepo repository.CouponBookRepository
	codeRepo repository.CouponCodeRepository
}

// NewBookService 创建券册服务
func NewBookService(bookRepo repository.CouponBookRepository, codeRepo repository.CouponCodeRepository) *BookService {
	return &BookService{
		bookRepo: bookRepo,
		codeRepo: codeRepo,
	}
}

// CreateBookInput 创建券册参数
type CreateBookInput struct {
	BusinessID         string
	Name               string
	Description        string
	MaxRedeemsPerUser  *int
	MaxCodesPerUser    *int
	TotalCodesExpected *int
	ExpiresAt          *time.Time
}

// UpdateBookInput 更新券册参数，nil 字段保持原值
type UpdateBookInput struct {
	Name              *string
	Description       *string
	Status            *string
	MaxRedeemsPerUser *int
	MaxCodesPerUser   *int
	ExpiresAt         *time.Time
	ClearExpiresAt    bool
}

// BookStatistics 券册统计
type BookStatistics struct {
	BookID         string           `json:"book_id"`
	GeneratedCount int              `json:"generated_count"`
	StatusCounts   map[string]int64 `json:"status_counts"`
	TotalCodes     int64            `json:"total_codes"`
}

// CreateBook 创建券册，初始状态为草稿
func (s *BookService) CreateBook(input CreateBookInput) (*models.CouponBook, error) {
	name := strings.TrimSpace(input.Name)
	businessID := strings.TrimSpace(input.BusinessID)
	if name == "" || businessID == "" {
		return nil, ErrInvalidBookInput
	}
	if input.MaxRedeemsPerUser != nil && *input.MaxRedeemsPerUser <= 0 {
		return nil, ErrInvalidBookInput
	}
	if input.MaxCodesPerUser != nil && *input.MaxCodesPerUser <= 0 {
		return nil, ErrInvalidBookInput
	}
	if input.TotalCodesExpected != nil && *input.TotalCodesExpected <= 0 {
		return nil, ErrInvalidBookInput
	}

	book := &models.CouponBook{
		BusinessID:         businessID,
		Name:               name,
		Description:        strings.TrimSpace(input.Description),
		MaxRedeemsPerUser:  input.MaxRedeemsPerUser,
		MaxCodesPerUser:    input.MaxCodesPerUser,
		TotalCodesExpected: input.TotalCodesExpected,
		Status:             constants.BookStatusDraft,
		ExpiresAt:          input.ExpiresAt,
	}
	if err := s.bookRepo.Create(book); err != nil {
		return nil, err
	}
	return book, nil
}

// GetBook 获取券册
func (s *BookService) GetBook(id string) (*models.CouponBook, error) {
	book, err := s.bookRepo.GetByID(strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, ErrBookNotFound
	}
	return book, nil
}

// ListBooks 获取券册列表
func (s *BookService) ListBooks(filter repository.CouponBookListFilter) ([]models.CouponBook, int64, error) {
	return s.bookRepo.List(filter)
}

// UpdateBook 更新券册
func (s *BookService) UpdateBook(id string, input UpdateBookInput) (*models.CouponBook, error) {
	book, err := s.GetBook(id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, ErrInvalidBookInput
		}
		book.Name = name
	}
	if input.Description != nil {
		book.Description = strings.TrimSpace(*input.Description)
	}
	if input.Status != nil {
		status := strings.ToUpper(strings.TrimSpace(*input.Status))
		if !validBookTransition(book.Status, status) {
			return nil, ErrInvalidTransition
		}
		book.Status = status
	}
	if input.MaxRedeemsPerUser != nil {
		if *input.MaxRedeemsPerUser <= 0 {
			return nil, ErrInvalidBookInput
		}
		book.MaxRedeemsPerUser = input.MaxRedeemsPerUser
	}
	if input.MaxCodesPerUser != nil {
		if *input.MaxCodesPerUser <= 0 {
			return nil, ErrInvalidBookInput
		}
		book.MaxCodesPerUser = input.MaxCodesPerUser
	}
	if input.ClearExpiresAt {
		book.ExpiresAt = nil
	} else if input.ExpiresAt != nil {
		book.ExpiresAt = input.ExpiresAt
	}

	if err := s.bookRepo.Update(book); err != nil {
		return nil, err
	}
	return book, nil
}

// DeleteBook 删除券册，已生成过券码的券册不允许删除
func (s *BookService) DeleteBook(id string) error {
	book, err := s.GetBook(id)
	if err != nil {
		return err
	}
	counts, err := s.codeRepo.StatusCounts(book.ID)
	if err != nil {
		return err
	}
	var total int64
	for _, count := range counts {
		total += count
	}
	if total > 0 || book.GeneratedCount > 0 {
		return ErrBookHasCodes
	}
	return s.bookRepo.Delete(book.ID)
}

// Statistics 按状态统计券册下的券码
func (s *BookService) Statistics(id string) (*BookStatistics, error) {
	book, err := s.GetBook(id)
	if err != nil {
		return nil, err
	}
	counts, err := s.codeRepo.StatusCounts(book.ID)
	if err != nil {
		return nil, err
	}
	var total int64
	for _, count := range counts {
		total += count
	}
	return &BookStatistics{
		BookID:         book.ID,
		GeneratedCount: book.GeneratedCount,
		StatusCounts:   counts,
		TotalCodes:     total,
	}, nil
}

// validBookTransition 校验券册状态迁移
// DRAFT -> ACTIVE -> CLOSED，CLOSED 为终态
func validBookTransition(from, to string) bool {
	if from == to {
		return true
	}
	switch from {
	case constants.BookStatusDraft:
		return to == constants.BookStatusActive || to == constants.BookStatusClosed
	case constants.BookStatusActive:
		return to == constants.BookStatusClosed
	default:
		return false
	}
}
