package seckill

// ReserveResult 缓存预扣结果
type ReserveResult int

const (
	ReserveNotWarmed     ReserveResult = -1 // 缓存中没有该商品库存，需要回源数据库
	ReserveSoldOut       ReserveResult = 0
	ReserveOK            ReserveResult = 1
	ReserveLimitExceeded ReserveResult = 2
)

func (r ReserveResult) String() string {
	switch r {
	case ReserveNotWarmed:
		return "not_warmed"
	case ReserveSoldOut:
		return "sold_out"
	case ReserveOK:
		return "ok"
	case ReserveLimitExceeded:
		return "limit_exceeded"
	default:
		return "unknown"
	}
}
