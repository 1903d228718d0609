package seckill

// SessionRules 场次规则
type SessionRules struct {
	maxQuantityPerUser int
	totalQuantity      int
}

// NewSessionRules 创建场次规则，两个数量都必须大于0
func NewSessionRules(maxQuantityPerUser, totalQuantity int) (SessionRules, error) {
	if maxQuantityPerUser <= 0 || totalQuantity <= 0 {
		return SessionRules{}, ErrInvalidRules
	}
	return SessionRules{
		maxQuantityPerUser: maxQuantityPerUser,
		totalQuantity:      totalQuantity,
	}, nil
}

func (r SessionRules) MaxQuantityPerUser() int { return r.maxQuantityPerUser }

func (r SessionRules) TotalQuantity() int { return r.totalQuantity }
