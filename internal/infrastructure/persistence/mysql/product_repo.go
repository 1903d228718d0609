package mysql

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xiebiao/seckill/internal/domain/seckill"
	apperrors "github.com/xiebiao/seckill/pkg/errors"
)

// productRepository 秒杀商品仓储实现(MySQL)
// 设计说明:
// 1. 库存扣减和限购校验在同一事务内，用条件UPDATE代替SELECT FOR UPDATE
// 2. 条件不满足时影响行数为0，再查一次确定失败原因
type productRepository struct {
	db *gorm.DB
}

// NewProductRepository 创建秒杀商品仓储
func NewProductRepository(db *gorm.DB) seckill.ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) Create(ctx context.Context, p *seckill.Product) error {
	model := toProductModel(p)
	if err := conn(ctx, r.db).Create(model).Error; err != nil {
		if isDuplicateError(err) {
			return seckill.ErrSkuDuplicate
		}
		return apperrors.Wrap(err, "创建秒杀商品失败")
	}
	p.AssignID(model.ID)
	return nil
}

func (r *productRepository) FindByID(ctx context.Context, id uint) (*seckill.Product, error) {
	var model ProductModel
	if err := conn(ctx, r.db).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, seckill.ErrProductNotFound
		}
		return nil, apperrors.Wrap(err, "查询秒杀商品失败")
	}
	return toProductEntity(&model), nil
}

func (r *productRepository) FindBySku(ctx context.Context, sessionID, skuID uint) (*seckill.Product, error) {
	model, err := findProductBySku(conn(ctx, r.db), sessionID, skuID)
	if err != nil {
		return nil, err
	}
	return toProductEntity(model), nil
}

// Update 不覆盖sold，已售数量只由Sell修改
func (r *productRepository) Update(ctx context.Context, p *seckill.Product) error {
	model := toProductModel(p)
	err := conn(ctx, r.db).Model(&ProductModel{ID: model.ID}).
		Select("original_price", "seckill_price", "quantity", "max_quantity_per_user",
			"sort_order", "is_enabled", "updated_at").
		Updates(model).Error
	if err != nil {
		return apperrors.Wrap(err, "更新秒杀商品失败")
	}
	return nil
}

func (r *productRepository) Delete(ctx context.Context, id uint) error {
	result := conn(ctx, r.db).Delete(&ProductModel{}, id)
	if result.Error != nil {
		return apperrors.Wrap(result.Error, "删除秒杀商品失败")
	}
	if result.RowsAffected == 0 {
		return seckill.ErrProductNotFound
	}
	return nil
}

func (r *productRepository) ListBySession(ctx context.Context, sessionID uint) ([]*seckill.Product, error) {
	var models []ProductModel
	err := conn(ctx, r.db).
		Where("session_id = ?", sessionID).
		Order("sort_order ASC").Order("id ASC").
		Find(&models).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "查询场次商品失败")
	}

	products := make([]*seckill.Product, len(models))
	for i := range models {
		products[i] = toProductEntity(&models[i])
	}
	return products, nil
}

// Sell 原子扣减
// 1. 商品: UPDATE ... SET sold = sold + q WHERE is_enabled AND sold + q <= quantity
// 2. 限购: INSERT IGNORE购买记录，UPDATE ... SET quantity = quantity + q WHERE quantity + q <= max
// 3. 场次: UPDATE ... SET sold = sold + q WHERE sold + q <= quantity
// 4. 商品售罄则禁用；场次库存耗尽或没有可售商品时置为sold_out
// 任一步失败整个事务回滚
func (r *productRepository) Sell(ctx context.Context, cmd seckill.SellCommand) (*seckill.SellResult, error) {
	if cmd.Quantity <= 0 {
		return nil, seckill.ErrInvalidQuantity
	}

	var result *seckill.SellResult
	err := conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		// 1. 商品库存
		res := tx.Model(&ProductModel{}).
			Where("session_id = ? AND product_sku_id = ?", cmd.SessionID, cmd.SkuID).
			Where("is_enabled = ?", true).
			Where("sold + ? <= quantity", cmd.Quantity).
			Update("sold", gorm.Expr("sold + ?", cmd.Quantity))
		if res.Error != nil {
			return apperrors.Wrap(res.Error, "扣减商品库存失败")
		}
		if res.RowsAffected == 0 {
			return sellFailure(tx, cmd)
		}

		model, err := findProductBySku(tx, cmd.SessionID, cmd.SkuID)
		if err != nil {
			return err
		}
		now := time.Now()
		product, err := replaySell(model, cmd.Quantity, now)
		if err != nil {
			return err
		}

		// 2. 每人限购
		purchased, err := addPurchase(tx, cmd, product.MaxQuantityPerUser())
		if err != nil {
			return err
		}

		// 3. 场次库存
		res = tx.Model(&SessionModel{}).
			Where("id = ? AND sold + ? <= quantity", cmd.SessionID, cmd.Quantity).
			Update("sold", gorm.Expr("sold + ?", cmd.Quantity))
		if res.Error != nil {
			return apperrors.Wrap(res.Error, "扣减场次库存失败")
		}
		if res.RowsAffected == 0 {
			return seckill.ErrInsufficientStock
		}

		// 4. 售罄处理
		productSoldOut := product.Stock().IsSoldOut()
		if productSoldOut && model.IsEnabled {
			if err := tx.Model(&ProductModel{ID: model.ID}).Update("is_enabled", false).Error; err != nil {
				return apperrors.Wrap(err, "禁用售罄商品失败")
			}
		}

		sessionSoldOut, err := markSessionSoldOut(tx, cmd.SessionID, cmd.Quantity, now)
		if err != nil {
			return err
		}

		result = &seckill.SellResult{
			Product:        product,
			Purchased:      purchased,
			ProductSoldOut: productSoldOut,
			SessionSoldOut: sessionSoldOut,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *productRepository) PurchasedQuantity(ctx context.Context, sessionID, skuID, userID uint) (int, error) {
	var model PurchaseModel
	err := conn(ctx, r.db).
		Where("session_id = ? AND product_sku_id = ? AND user_id = ?", sessionID, skuID, userID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, apperrors.Wrap(err, "查询购买记录失败")
	}
	return model.Quantity, nil
}

// sellFailure 条件UPDATE未命中时判断原因
func sellFailure(tx *gorm.DB, cmd seckill.SellCommand) error {
	model, err := findProductBySku(tx, cmd.SessionID, cmd.SkuID)
	if err != nil {
		return err
	}
	if model.Quantity-model.Sold < cmd.Quantity {
		return seckill.ErrInsufficientStock
	}
	return seckill.ErrProductNotOnSale
}

// addPurchase 登记购买数量，超过限购返回ErrPurchaseLimitExceeded
func addPurchase(tx *gorm.DB, cmd seckill.SellCommand, max int) (int, error) {
	row := &PurchaseModel{SessionID: cmd.SessionID, SkuID: cmd.SkuID, UserID: cmd.UserID}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error; err != nil {
		return 0, apperrors.Wrap(err, "创建购买记录失败")
	}

	res := tx.Model(&PurchaseModel{}).
		Where("session_id = ? AND product_sku_id = ? AND user_id = ?", cmd.SessionID, cmd.SkuID, cmd.UserID).
		Where("quantity + ? <= ?", cmd.Quantity, max).
		Update("quantity", gorm.Expr("quantity + ?", cmd.Quantity))
	if res.Error != nil {
		return 0, apperrors.Wrap(res.Error, "更新购买记录失败")
	}
	if res.RowsAffected == 0 {
		return 0, seckill.ErrPurchaseLimitExceeded
	}

	var purchase PurchaseModel
	err := tx.Where("session_id = ? AND product_sku_id = ? AND user_id = ?", cmd.SessionID, cmd.SkuID, cmd.UserID).
		First(&purchase).Error
	if err != nil {
		return 0, apperrors.Wrap(err, "查询购买记录失败")
	}
	return purchase.Quantity, nil
}

// replaySell 条件UPDATE之后读到的行减去本次数量即为本事务扣减前的状态，
// 在实体上重放这次售卖，得到扣减后的商品（售罄时自动禁用）
func replaySell(model *ProductModel, qty int, now time.Time) (*seckill.Product, error) {
	state := toProductEntity(model).State()
	state.Sold -= qty
	product := seckill.RestoreProduct(state)
	if err := product.Sell(qty, now); err != nil {
		return nil, err
	}
	return product, nil
}

// markSessionSoldOut 场次库存耗尽或没有可售商品时置为sold_out，返回是否发生了状态变化
func markSessionSoldOut(tx *gorm.DB, sessionID uint, qty int, now time.Time) (bool, error) {
	var model SessionModel
	if err := tx.First(&model, sessionID).Error; err != nil {
		return false, apperrors.Wrap(err, "查询秒杀场次失败")
	}
	if model.Status == string(seckill.SessionSoldOut) {
		return false, nil
	}

	// 同商品一样在实体上重放，库存耗尽时实体状态变为sold_out
	state := toSessionEntity(&model).State()
	state.Sold -= qty
	session := seckill.RestoreSession(state)
	if err := session.Sell(qty, now); err != nil {
		return false, err
	}

	exhausted := session.Status() == seckill.SessionSoldOut
	if !exhausted {
		var onSale int64
		err := tx.Model(&ProductModel{}).
			Where("session_id = ? AND is_enabled = ? AND sold < quantity", sessionID, true).
			Count(&onSale).Error
		if err != nil {
			return false, apperrors.Wrap(err, "统计可售商品失败")
		}
		exhausted = onSale == 0
	}
	if !exhausted {
		return false, nil
	}

	err := tx.Model(&SessionModel{ID: sessionID}).Update("status", string(seckill.SessionSoldOut)).Error
	if err != nil {
		return false, apperrors.Wrap(err, "更新场次状态失败")
	}
	return true, nil
}

func findProductBySku(db *gorm.DB, sessionID, skuID uint) (*ProductModel, error) {
	var model ProductModel
	err := db.Where("session_id = ? AND product_sku_id = ?", sessionID, skuID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, seckill.ErrProductNotFound
		}
		return nil, apperrors.Wrap(err, "查询秒杀商品失败")
	}
	return &model, nil
}

func toProductModel(p *seckill.Product) *ProductModel {
	s := p.State()
	return &ProductModel{
		ID:                 s.ID,
		ActivityID:         s.ActivityID,
		SessionID:          s.SessionID,
		ProductID:          s.ProductID,
		SkuID:              s.SkuID,
		OriginalPrice:      s.OriginalPrice,
		SeckillPrice:       s.SeckillPrice,
		Quantity:           s.Quantity,
		Sold:               s.Sold,
		MaxQuantityPerUser: s.MaxQuantityPerUser,
		SortOrder:          s.SortOrder,
		IsEnabled:          s.Enabled,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}
}

func toProductEntity(m *ProductModel) *seckill.Product {
	return seckill.RestoreProduct(seckill.ProductState{
		ID:                 m.ID,
		ActivityID:         m.ActivityID,
		SessionID:          m.SessionID,
		ProductID:          m.ProductID,
		SkuID:              m.SkuID,
		OriginalPrice:      m.OriginalPrice,
		SeckillPrice:       m.SeckillPrice,
		Quantity:           m.Quantity,
		Sold:               m.Sold,
		MaxQuantityPerUser: m.MaxQuantityPerUser,
		SortOrder:          m.SortOrder,
		Enabled:            m.IsEnabled,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	})
}
