package service

import (
	crand "crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/coupon-next/internal/constants"
)

// randomCode 生成指定长度的随机券码，字符集为大写字母与数字
func randomCode(length int) (string, error) {
	if length <= 0 {
		length = constants.CodeDefaultLength
	}
	charset := constants.CodeCharset
	max := big.NewInt(int64(len(charset)))
	var builder strings.Builder
	builder.Grow(length)
	for i := 0; i < length; i++ {
		idx, err := crand.Int(crand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate random code: %w", err)
		}
		builder.WriteByte(charset[idx.Int64()])
	}
	return builder.String(), nil
}

// generateUniqueCodes 生成一批彼此不重复且不与 existing 冲突的券码
func generateUniqueCodes(count, length int, prefix string, existing map[string]struct{}) ([]string, error) {
	if count <= 0 {
		return nil, nil
	}
	if existing == nil {
		existing = make(map[string]struct{})
	}
	codes := make([]string, 0, count)
	// 冲突重试上限，避免字符空间耗尽时死循环
	maxAttempts := count * 20
	attempts := 0
	for len(codes) < count {
		attempts++
		if attempts > maxAttempts {
			return nil, fmt.Errorf("generate unique codes: namespace exhausted after %d attempts", attempts)
		}
		raw, err := randomCode(length)
		if err != nil {
			return nil, err
		}
		code := strings.ToUpper(strings.TrimSpace(prefix)) + raw
		if _, ok := existing[code]; ok {
			continue
		}
		existing[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes, nil
}
