package main

import (
	"github.com/coupon-next/internal/config"
	"github.com/coupon-next/internal/constants"
	"github.com/coupon-next/internal/logger"
	"github.com/coupon-next/internal/models"
	"github.com/coupon-next/internal/repository"
	"github.com/coupon-next/internal/service"
)

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	bookRepo := repository.NewCouponBookRepository(models.DB)
	codeRepo := repository.NewCouponCodeRepository(models.DB)
	bookService := service.NewBookService(bookRepo, codeRepo)
	codeService := service.NewCodeService(bookRepo, codeRepo)

	// 添加演示券册
	const demoBusinessID = "demo-business"
	books, _, err := bookRepo.List(repository.CouponBookListFilter{BusinessID: demoBusinessID})
	if err != nil {
		stdLog.Fatalf("Failed to load coupon books: %v", err)
	}
	if len(books) > 0 {
		stdLog.Printf("Demo coupon book already exists: %s", books[0].ID)
		return
	}

	maxRedeems := 1
	maxCodes := 3
	book, err := bookService.CreateBook(service.CreateBookInput{
		BusinessID:        demoBusinessID,
		Name:              "Welcome Coupons",
		Description:       "Single-use welcome discount, up to 3 coupons per user",
		MaxRedeemsPerUser: &maxRedeems,
		MaxCodesPerUser:   &maxCodes,
	})
	if err != nil {
		stdLog.Fatalf("Failed to create demo coupon book: %v", err)
	}
	stdLog.Printf("Created demo coupon book: %s", book.ID)

	// 生成演示券码
	codes, err := codeService.GenerateCodes(service.GenerateCodesInput{
		BookID:   book.ID,
		Quantity: 100,
		Prefix:   "WEL-",
		Length:   constants.CodeDefaultLength,
	})
	if err != nil {
		stdLog.Fatalf("Failed to generate demo codes: %v", err)
	}
	stdLog.Printf("Generated %d demo codes", len(codes))

	// 激活券册后才能被领取
	activeStatus := constants.BookStatusActive
	if _, err := bookService.UpdateBook(book.ID, service.UpdateBookInput{Status: &activeStatus}); err != nil {
		stdLog.Fatalf("Failed to activate demo coupon book: %v", err)
	}
	stdLog.Printf("Activated demo coupon book: %s", book.ID)
}
