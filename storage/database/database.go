// Package database 定义仓储层使用的最小数据库抽象
package database

import (
	"context"
	"database/sql"
	"time"

	"railkit/storage/database/dialect"
)

// IExecutor 查询与执行，数据库与事务共用
type IExecutor interface {
	Query(ctx context.Context, query string, args ...any) (IRows, error)
	QueryRow(ctx context.Context, query string, args ...any) IRow
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// IDatabase 数据库连接
type IDatabase interface {
	IExecutor

	Begin(ctx context.Context) (ITransaction, error)
	Ping(ctx context.Context) error
	Close() error
	Dialect() dialect.Dialect
}

// ITransaction 事务
type ITransaction interface {
	IExecutor

	Commit() error
	Rollback() error
}

// IRows 查询结果集
type IRows interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
	Err() error
}

// IRow 单行结果
type IRow interface {
	Scan(dest ...any) error
}

// DBConfig 连接配置
type DBConfig struct {
	Driver string // sqlite | pgx
	DSN    string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
}
