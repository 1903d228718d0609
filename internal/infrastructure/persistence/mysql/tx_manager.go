package mysql

import (
	"context"

	"gorm.io/gorm"
)

type txKey struct{}

// TxManager 事务管理器
// 1. 封装GORM的Transaction方法
// 2. 通过context传递事务DB
// 3. 支持嵌套事务(GORM自动使用Savepoint)
type TxManager struct {
	db *gorm.DB
}

// NewTxManager 创建事务管理器
func NewTxManager(db *gorm.DB) *TxManager {
	return &TxManager{db: db}
}

// Transaction 执行事务
// fn内通过ctx调用的Repository操作都在同一事务中执行，fn返回error时ROLLBACK
//
//	err := txManager.Transaction(ctx, func(ctx context.Context) error {
//	    if err := sessionRepo.Update(ctx, session); err != nil {
//	        return err
//	    }
//	    return productRepo.Update(ctx, product)
//	})
func (m *TxManager) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx.Transaction(func(nested *gorm.DB) error {
			return fn(context.WithValue(ctx, txKey{}, nested))
		})
	}
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// conn 从context获取事务DB，没有则使用默认DB
// 仓储的每个方法都必须经过这里，否则会脱离调用方的事务
func conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return db.WithContext(ctx)
}
