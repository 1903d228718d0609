package seckill

// StockLedger 库存账本（值对象）
// 设计说明:
// 1. quantity是库存上限，sold只增不减
// 2. Sell返回新的账本，不修改原值（并发下推理简单）
// 3. 实体方法本身不是原子的，原子性由持久层的条件更新保证
type StockLedger struct {
	quantity int
	sold     int
}

// NewStockLedger 创建新的库存账本（未售出）
func NewStockLedger(quantity int) (StockLedger, error) {
	if quantity < 0 {
		return StockLedger{}, ErrInvalidStock
	}
	return StockLedger{quantity: quantity}, nil
}

// RestoreStockLedger 从存储恢复库存账本
func RestoreStockLedger(quantity, sold int) (StockLedger, error) {
	if quantity < 0 || sold < 0 || sold > quantity {
		return StockLedger{}, ErrInvalidStock
	}
	return StockLedger{quantity: quantity, sold: sold}, nil
}

// Quantity 库存上限
func (l StockLedger) Quantity() int { return l.quantity }

// Sold 已售数量
func (l StockLedger) Sold() int { return l.sold }

// Remaining 剩余库存
func (l StockLedger) Remaining() int { return l.quantity - l.sold }

// IsSoldOut 是否售罄
func (l StockLedger) IsSoldOut() bool { return l.Remaining() <= 0 }

// CanSell 能否卖出qty件
func (l StockLedger) CanSell(qty int) bool {
	return qty > 0 && l.sold+qty <= l.quantity
}

// Sell 卖出qty件，返回新的账本
func (l StockLedger) Sell(qty int) (StockLedger, error) {
	if qty <= 0 {
		return l, ErrInvalidQuantity
	}
	if l.sold+qty > l.quantity {
		return l, ErrInsufficientStock
	}
	return StockLedger{quantity: l.quantity, sold: l.sold + qty}, nil
}

// Resize 调整库存上限（后台编辑），不能低于已售数量
func (l StockLedger) Resize(quantity int) (StockLedger, error) {
	if quantity < 0 || quantity < l.sold {
		return l, ErrInvalidStock
	}
	return StockLedger{quantity: quantity, sold: l.sold}, nil
}
