// Package db context 事务传播与 upsert 助手
// 连接的创建与治理由 wyfcoding/pkg/databases 负责，这里只处理事务在调用链上的传递
package db

import (
	"context"
	"net/http"

	"github.com/wyfcoding/pkg/databases"
	"github.com/wyfcoding/storefront/pkg/apperr"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Transactor 以 context 传播事务的执行器
// fn 内通过 Conn(ctx, ...) 取到的连接都属于同一个事务，fn 返回错误时整体回滚
type Transactor interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

// WithTx 将事务句柄放入 context
func WithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFrom 取出 context 中的事务句柄
func TxFrom(ctx context.Context) (*gorm.DB, bool) {
	tx, ok := ctx.Value(txKey{}).(*gorm.DB)
	return tx, ok && tx != nil
}

// Conn 优先返回 context 中的事务，否则返回 fallback
func Conn(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	if tx, ok := TxFrom(ctx); ok {
		return tx
	}
	return fallback.WithContext(ctx)
}

// RunInTx 在 gdb 上开启事务执行 fn，已处于事务中时直接复用外层事务
func RunInTx(ctx context.Context, gdb *gorm.DB, fn func(ctx context.Context) error) error {
	if _, ok := TxFrom(ctx); ok {
		return fn(ctx)
	}
	return gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(WithTx(ctx, tx))
	})
}

// GormTransactor 适配裸 *gorm.DB 的 Transactor
type GormTransactor struct {
	DB *gorm.DB
}

// Transaction 实现 Transactor
func (t GormTransactor) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return RunInTx(ctx, t.DB, fn)
}

// TxRunner 在熔断保护下执行 gorm 事务，由 *databases.DB 实现
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

var _ TxRunner = (*databases.DB)(nil)

const bizSavepoint = "sf_biz"

// BreakerTransactor 经熔断器开启事务
type BreakerTransactor struct {
	DB TxRunner
}

// Transaction 实现 Transactor，嵌套调用复用外层事务且不重复计入熔断
// 业务错误（4xx）回滚到保存点后提交空事务，只有存储故障计入熔断失败
func (t BreakerTransactor) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := TxFrom(ctx); ok {
		return fn(ctx)
	}
	var bizErr error
	err := t.DB.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.SavePoint(bizSavepoint).Error; err != nil {
			return err
		}
		err := fn(WithTx(ctx, tx))
		if err != nil && apperr.HTTPStatus(err) < http.StatusInternalServerError {
			bizErr = err
			return tx.RollbackTo(bizSavepoint).Error
		}
		return err
	})
	if err != nil {
		return err
	}
	return bizErr
}

// UpsertWithConflict 插入或更新（冲突时按 updates 赋值）
func UpsertWithConflict(conn *gorm.DB, record any, uniqueFields []string, updates clause.Set) error {
	return conn.Clauses(clause.OnConflict{
		Columns:   convertStringsToColumns(uniqueFields),
		DoUpdates: updates,
	}).Create(record).Error
}

func convertStringsToColumns(names []string) []clause.Column {
	columns := make([]clause.Column, len(names))
	for i, name := range names {
		columns[i] = clause.Column{Name: name}
	}
	return columns
}
