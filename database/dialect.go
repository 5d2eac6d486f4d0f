package database

import (
	"strings"

	"gorm.io/gorm"
)

// Dialect SQL 方言
type Dialect int

const (
	Unknown Dialect = iota
	SQLite
	MySQL
	Postgres
	SQLServer
	ClickHouse
)

func (d Dialect) String() string {
	switch d {
	case SQLite:
		return "sqlite"
	case MySQL:
		return "mysql"
	case Postgres:
		return "postgres"
	case SQLServer:
		return "sqlserver"
	case ClickHouse:
		return "clickhouse"
	default:
		return "unknown"
	}
}

// 按顺序匹配，第一个命中的关键字决定方言
var dialectKeywords = []struct {
	keyword string
	dialect Dialect
}{
	{"clickhouse", ClickHouse},
	{"sqlite", SQLite},
	{"mariadb", MySQL},
	{"mysql", MySQL},
	{"postgres", Postgres},
	{"pgx", Postgres},
	{"sqlserver", SQLServer},
	{"sql server", SQLServer},
	{"mssql", SQLServer},
}

// DetectDialect 根据驱动名或数据库产品名识别方言，不区分大小写
func DetectDialect(name string) Dialect {
	name = strings.ToLower(name)
	for _, k := range dialectKeywords {
		if strings.Contains(name, k.keyword) {
			return k.dialect
		}
	}
	return Unknown
}

// DialectOf 返回 db 所用驱动的方言
func DialectOf(db *gorm.DB) Dialect {
	if db == nil || db.Config == nil || db.Dialector == nil {
		return Unknown
	}
	return DetectDialect(db.Dialector.Name())
}
