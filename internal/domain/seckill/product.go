package seckill

import "time"

// Product 场次内的秒杀商品（单个SKU的秒杀条款）
// 业务规则:
// 1. 同一场次内SKU唯一
// 2. 售罄时自动禁用
// 3. 有销售记录后不能删除
type Product struct {
	id                 uint
	activityID         uint
	sessionID          uint
	productID          uint
	skuID              uint
	price              Price
	stock              StockLedger
	maxQuantityPerUser int
	sortOrder          int
	enabled            bool
	createdAt          time.Time
	updatedAt          time.Time
}

// ProductParams 创建/编辑秒杀商品的参数
// MaxQuantityPerUser为0时沿用场次限购
type ProductParams struct {
	ProductID          uint
	SkuID              uint
	OriginalPrice      int64
	SeckillPrice       int64
	Quantity           int
	MaxQuantityPerUser int
	SortOrder          int
	Enabled            bool
}

// ProductState 秒杀商品快照（存储行与缓存JSON共用）
type ProductState struct {
	ID                 uint      `json:"id"`
	ActivityID         uint      `json:"activity_id"`
	SessionID          uint      `json:"session_id"`
	ProductID          uint      `json:"product_id"`
	SkuID              uint      `json:"product_sku_id"`
	OriginalPrice      int64     `json:"original_price"`
	SeckillPrice       int64     `json:"seckill_price"`
	Quantity           int       `json:"quantity"`
	Sold               int       `json:"sold"`
	MaxQuantityPerUser int       `json:"max_quantity_per_user"`
	SortOrder          int       `json:"sort_order"`
	Enabled            bool      `json:"is_enabled"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// NewProduct 在场次下创建秒杀商品
func NewProduct(session *Session, params ProductParams, now time.Time) (*Product, error) {
	price, err := NewPrice(params.OriginalPrice, params.SeckillPrice)
	if err != nil {
		return nil, err
	}
	if params.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	stock, err := NewStockLedger(params.Quantity)
	if err != nil {
		return nil, err
	}
	limit, err := resolveLimit(session, params.MaxQuantityPerUser)
	if err != nil {
		return nil, err
	}
	return &Product{
		activityID:         session.ActivityID(),
		sessionID:          session.ID(),
		productID:          params.ProductID,
		skuID:              params.SkuID,
		price:              price,
		stock:              stock,
		maxQuantityPerUser: limit,
		sortOrder:          params.SortOrder,
		enabled:            params.Enabled,
		createdAt:          now,
		updatedAt:          now,
	}, nil
}

// resolveLimit 商品限购不能超过场次限购
func resolveLimit(session *Session, limit int) (int, error) {
	max := session.Rules().MaxQuantityPerUser()
	if limit == 0 {
		return max, nil
	}
	if limit < 0 || limit > max {
		return 0, ErrInvalidLimit
	}
	return limit, nil
}

// RestoreProduct 从存储或缓存重建秒杀商品，不做业务校验
func RestoreProduct(s ProductState) *Product {
	return &Product{
		id:                 s.ID,
		activityID:         s.ActivityID,
		sessionID:          s.SessionID,
		productID:          s.ProductID,
		skuID:              s.SkuID,
		price:              Price{original: s.OriginalPrice, seckill: s.SeckillPrice},
		stock:              StockLedger{quantity: s.Quantity, sold: s.Sold},
		maxQuantityPerUser: s.MaxQuantityPerUser,
		sortOrder:          s.SortOrder,
		enabled:            s.Enabled,
		createdAt:          s.CreatedAt,
		updatedAt:          s.UpdatedAt,
	}
}

// State 导出快照
func (p *Product) State() ProductState {
	return ProductState{
		ID:                 p.id,
		ActivityID:         p.activityID,
		SessionID:          p.sessionID,
		ProductID:          p.productID,
		SkuID:              p.skuID,
		OriginalPrice:      p.price.Original(),
		SeckillPrice:       p.price.Seckill(),
		Quantity:           p.stock.Quantity(),
		Sold:               p.stock.Sold(),
		MaxQuantityPerUser: p.maxQuantityPerUser,
		SortOrder:          p.sortOrder,
		Enabled:            p.enabled,
		CreatedAt:          p.createdAt,
		UpdatedAt:          p.updatedAt,
	}
}

func (p *Product) ID() uint                { return p.id }
func (p *Product) ActivityID() uint        { return p.activityID }
func (p *Product) SessionID() uint         { return p.sessionID }
func (p *Product) ProductID() uint         { return p.productID }
func (p *Product) SkuID() uint             { return p.skuID }
func (p *Product) Price() Price            { return p.price }
func (p *Product) Stock() StockLedger      { return p.stock }
func (p *Product) MaxQuantityPerUser() int { return p.maxQuantityPerUser }
func (p *Product) SortOrder() int          { return p.sortOrder }
func (p *Product) IsEnabled() bool         { return p.enabled }
func (p *Product) CreatedAt() time.Time    { return p.createdAt }
func (p *Product) UpdatedAt() time.Time    { return p.updatedAt }

// AssignID 持久化后回填自增ID
func (p *Product) AssignID(id uint) { p.id = id }

// CanSell 已启用、未售罄且剩余库存足够
func (p *Product) CanSell(qty int) bool {
	return p.enabled && !p.stock.IsSoldOut() && p.stock.CanSell(qty)
}

// CanUserPurchase 用户已购数量加上本次数量不超过限购
func (p *Product) CanUserPurchase(qty, alreadyPurchased int) bool {
	return alreadyPurchased+qty <= p.maxQuantityPerUser
}

// CanBeDeleted 有销售记录的商品不能删除
func (p *Product) CanBeDeleted() bool {
	return p.stock.Sold() == 0
}

// Sell 扣减库存，售罄时自动禁用
func (p *Product) Sell(qty int, now time.Time) error {
	stock, err := p.stock.Sell(qty)
	if err != nil {
		return err
	}
	p.stock = stock
	if p.stock.IsSoldOut() {
		p.enabled = false
	}
	p.updatedAt = now
	return nil
}

// Update 编辑价格、库存和限购；库存不能低于已售数量
func (p *Product) Update(session *Session, params ProductParams, now time.Time) error {
	price, err := NewPrice(params.OriginalPrice, params.SeckillPrice)
	if err != nil {
		return err
	}
	if params.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	stock, err := p.stock.Resize(params.Quantity)
	if err != nil {
		return err
	}
	limit, err := resolveLimit(session, params.MaxQuantityPerUser)
	if err != nil {
		return err
	}
	p.price = price
	p.stock = stock
	p.maxQuantityPerUser = limit
	p.sortOrder = params.SortOrder
	p.updatedAt = now
	return nil
}

// SetEnabled 启用/禁用，售罄的商品不能启用
func (p *Product) SetEnabled(enabled bool, now time.Time) error {
	if enabled && p.stock.IsSoldOut() {
		return ErrProductSoldOut
	}
	p.enabled = enabled
	p.updatedAt = now
	return nil
}

// ToggleEnabled 切换启用状态
func (p *Product) ToggleEnabled(now time.Time) error {
	return p.SetEnabled(!p.enabled, now)
}
