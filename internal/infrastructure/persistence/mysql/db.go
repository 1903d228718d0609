package mysql

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/xiebiao/seckill/internal/infrastructure/config"
	"github.com/xiebiao/seckill/pkg/logger"
)

// NewDB 创建数据库连接
// 设计说明：
// 1. 使用GORM v2作为ORM框架
// 2. 配置连接池参数（MaxOpenConns、MaxIdleConns、ConnMaxLifetime）
// 3. 开发环境开启SQL日志，生产环境关闭
func NewDB(cfg *config.Config) (*gorm.DB, error) {
	logLevel := gormlogger.Silent
	if cfg.Server.Mode == "debug" {
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(mysql.Open(cfg.Database.DSN()), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取SQL DB失败: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("数据库连接测试失败: %w", err)
	}
	logger.Info("数据库连接成功", zap.String("db", cfg.Database.DBName))

	// 生产环境应使用版本化的迁移脚本
	if cfg.Database.AutoMigrate {
		if err := Migrate(db); err != nil {
			return nil, fmt.Errorf("数据库迁移失败: %w", err)
		}
	}

	return db, nil
}

// Migrate 自动迁移秒杀相关表结构
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&ActivityModel{},
		&SessionModel{},
		&ProductModel{},
		&PurchaseModel{},
	)
}

// ActivityModel GORM秒杀活动模型
type ActivityModel struct {
	ID          uint      `gorm:"primaryKey"`
	Title       string    `gorm:"size:200;not null;comment:活动标题"`
	Description string    `gorm:"type:text;comment:活动描述"`
	Status      string    `gorm:"index;size:20;not null;default:pending;comment:活动状态"`
	IsEnabled   bool      `gorm:"not null;default:false;comment:是否启用"`
	Rules       string    `gorm:"type:text;comment:活动策略(JSON)"`
	Remark      string    `gorm:"size:500;comment:备注"`
	CreatedAt   time.Time `gorm:"index;comment:创建时间"`
	UpdatedAt   time.Time `gorm:"comment:更新时间"`
}

// TableName 指定表名
func (ActivityModel) TableName() string {
	return "seckill_activities"
}

// SessionModel GORM秒杀场次模型
// 设计说明:
// 1. quantity/sold是场次级库存，扣减使用条件UPDATE保证不超卖
// 2. (is_enabled, status, start_time)索引服务于预热任务的扫描
type SessionModel struct {
	ID                 uint      `gorm:"primaryKey"`
	ActivityID         uint      `gorm:"index;not null;comment:活动ID"`
	StartTime          time.Time `gorm:"index:idx_scan,priority:3;not null;comment:开始时间"`
	EndTime            time.Time `gorm:"not null;comment:结束时间"`
	Status             string    `gorm:"index:idx_scan,priority:2;size:20;not null;default:pending;comment:场次状态"`
	MaxQuantityPerUser int       `gorm:"not null;comment:每人限购"`
	TotalQuantity      int       `gorm:"not null;comment:场次总库存"`
	Quantity           int       `gorm:"not null;comment:库存上限"`
	Sold               int       `gorm:"not null;default:0;comment:已售数量"`
	SortOrder          int       `gorm:"not null;default:0;comment:排序"`
	IsEnabled          bool      `gorm:"index:idx_scan,priority:1;not null;default:false;comment:是否启用"`
	Remark             string    `gorm:"size:500;comment:备注"`
	CreatedAt          time.Time `gorm:"comment:创建时间"`
	UpdatedAt          time.Time `gorm:"comment:更新时间"`
}

// TableName 指定表名
func (SessionModel) TableName() string {
	return "seckill_sessions"
}

// ProductModel GORM秒杀商品模型
// 同一场次内SKU唯一（uk_session_sku）
type ProductModel struct {
	ID                 uint      `gorm:"primaryKey"`
	ActivityID         uint      `gorm:"index;not null;comment:活动ID"`
	SessionID          uint      `gorm:"uniqueIndex:uk_session_sku,priority:1;not null;comment:场次ID"`
	ProductID          uint      `gorm:"not null;comment:商品ID"`
	SkuID              uint      `gorm:"column:product_sku_id;uniqueIndex:uk_session_sku,priority:2;not null;comment:SKU ID"`
	OriginalPrice      int64     `gorm:"not null;comment:原价(分)"`
	SeckillPrice       int64     `gorm:"not null;comment:秒杀价(分)"`
	Quantity           int       `gorm:"not null;comment:秒杀库存"`
	Sold               int       `gorm:"not null;default:0;comment:已售数量"`
	MaxQuantityPerUser int       `gorm:"not null;comment:每人限购"`
	SortOrder          int       `gorm:"not null;default:0;comment:排序"`
	IsEnabled          bool      `gorm:"not null;default:false;comment:是否启用"`
	CreatedAt          time.Time `gorm:"comment:创建时间"`
	UpdatedAt          time.Time `gorm:"comment:更新时间"`
}

// TableName 指定表名
func (ProductModel) TableName() string {
	return "seckill_products"
}

// PurchaseModel 用户购买记录
// 限购校验和库存扣减在同一事务内完成，(session, sku, user)唯一
type PurchaseModel struct {
	ID        uint      `gorm:"primaryKey"`
	SessionID uint      `gorm:"uniqueIndex:uk_session_sku_user,priority:1;not null;comment:场次ID"`
	SkuID     uint      `gorm:"column:product_sku_id;uniqueIndex:uk_session_sku_user,priority:2;not null;comment:SKU ID"`
	UserID    uint      `gorm:"uniqueIndex:uk_session_sku_user,priority:3;not null;comment:用户ID"`
	Quantity  int       `gorm:"not null;default:0;comment:已购数量"`
	CreatedAt time.Time `gorm:"comment:创建时间"`
	UpdatedAt time.Time `gorm:"comment:更新时间"`
}

// TableName 指定表名
func (PurchaseModel) TableName() string {
	return "seckill_purchases"
}
