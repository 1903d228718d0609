package seckill

// Price 秒杀价格（单位:分）
type Price struct {
	original int64
	seckill  int64
}

// NewPrice 创建价格，秒杀价不能高于原价
func NewPrice(original, seckill int64) (Price, error) {
	if original <= 0 || seckill <= 0 || seckill > original {
		return Price{}, ErrInvalidPrice
	}
	return Price{original: original, seckill: seckill}, nil
}

// Original 原价
func (p Price) Original() int64 { return p.original }

// Seckill 秒杀价
func (p Price) Seckill() int64 { return p.seckill }

// Discount 优惠金额
func (p Price) Discount() int64 { return p.original - p.seckill }
