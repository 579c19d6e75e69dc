package repository

import (
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// dbDialectName 获取数据库方言名称，默认按 sqlite 处理。
func dbDialectName(db *gorm.DB) string {
	if db == nil || db.Dialector == nil {
		return "sqlite"
	}
	name := strings.ToLower(strings.TrimSpace(db.Dialector.Name()))
	if name == "" {
		return "sqlite"
	}
	return name
}

// dialectSupportsRowLock 判断方言是否支持 SELECT ... FOR UPDATE。
// sqlite 写事务整库串行，天然满足同等互斥语义。
func dialectSupportsRowLock(dialect string) bool {
	switch strings.ToLower(strings.TrimSpace(dialect)) {
	case "postgres", "postgresql", "mysql":
		return true
	default:
		return false
	}
}

// applyRowLock 在事务查询上附加行级排他锁子句。
func applyRowLock(query *gorm.DB) *gorm.DB {
	if query == nil {
		return query
	}
	if dialectSupportsRowLock(dbDialectName(query)) {
		return query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return query
}
