package dto

import (
	"fmt"
	"time"

	domain "github.com/xiebiao/seckill/internal/domain/seckill"
)

const timeLayout = "2006-01-02 15:04:05"

// =========================================
// 活动
// =========================================

// ActivityRequest 创建/编辑活动
type ActivityRequest struct {
	Title       string `json:"title" binding:"required,max=100" example:"五一秒杀"`
	Description string `json:"description" binding:"max=1000" example:"五一假期限时秒杀"`
	Rules       string `json:"rules" binding:"max=2000" example:"每人每场限购2件"`
	Remark      string `json:"remark" binding:"max=500"`
	Enabled     bool   `json:"is_enabled" example:"true"`
}

func (r ActivityRequest) ToParams() domain.ActivityParams {
	return domain.ActivityParams{
		Title:       r.Title,
		Description: r.Description,
		Rules:       r.Rules,
		Remark:      r.Remark,
		Enabled:     r.Enabled,
	}
}

// ListActivitiesRequest 活动分页查询
type ListActivitiesRequest struct {
	Page     int    `form:"page" binding:"omitempty,min=1" example:"1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100" example:"20"`
	Status   string `form:"status" binding:"omitempty,oneof=pending active ended cancelled" example:"pending"`
}

// ActivityResponse 活动
type ActivityResponse struct {
	ID          uint   `json:"id" example:"1"`
	Title       string `json:"title" example:"五一秒杀"`
	Description string `json:"description"`
	Status      string `json:"status" example:"pending"`
	Enabled     bool   `json:"is_enabled" example:"true"`
	Rules       string `json:"rules"`
	Remark      string `json:"remark"`
	CreatedAt   string `json:"created_at" example:"2026-04-20 10:30:00"`
	UpdatedAt   string `json:"updated_at" example:"2026-04-20 10:30:00"`
}

func NewActivityResponse(a *domain.Activity) *ActivityResponse {
	return &ActivityResponse{
		ID:          a.ID(),
		Title:       a.Title(),
		Description: a.Description(),
		Status:      string(a.Status()),
		Enabled:     a.IsEnabled(),
		Rules:       a.Rules(),
		Remark:      a.Remark(),
		CreatedAt:   formatTime(a.CreatedAt()),
		UpdatedAt:   formatTime(a.UpdatedAt()),
	}
}

func NewActivityList(activities []*domain.Activity) []*ActivityResponse {
	list := make([]*ActivityResponse, 0, len(activities))
	for _, a := range activities {
		list = append(list, NewActivityResponse(a))
	}
	return list
}

// =========================================
// 场次
// =========================================

// SessionRequest 创建/编辑场次，时间为RFC3339
type SessionRequest struct {
	StartTime          time.Time `json:"start_time" binding:"required" example:"2026-05-01T10:00:00+08:00"`
	EndTime            time.Time `json:"end_time" binding:"required" example:"2026-05-01T12:00:00+08:00"`
	MaxQuantityPerUser int       `json:"max_quantity_per_user" binding:"required,min=1" example:"2"`
	TotalQuantity      int       `json:"total_quantity" binding:"required,min=1" example:"100"`
	SortOrder          int       `json:"sort_order" example:"0"`
	Enabled            bool      `json:"is_enabled" example:"true"`
	Remark             string    `json:"remark" binding:"max=500"`
}

func (r SessionRequest) ToParams() domain.SessionParams {
	return domain.SessionParams{
		StartTime:          r.StartTime,
		EndTime:            r.EndTime,
		MaxQuantityPerUser: r.MaxQuantityPerUser,
		TotalQuantity:      r.TotalQuantity,
		SortOrder:          r.SortOrder,
		Enabled:            r.Enabled,
		Remark:             r.Remark,
	}
}

// SessionResponse 场次，status为存储状态，current_status为按当前时间推导的状态
type SessionResponse struct {
	ID                 uint   `json:"id" example:"1"`
	ActivityID         uint   `json:"activity_id" example:"1"`
	StartTime          string `json:"start_time" example:"2026-05-01 10:00:00"`
	EndTime            string `json:"end_time" example:"2026-05-01 12:00:00"`
	Status             string `json:"status" example:"pending"`
	CurrentStatus      string `json:"current_status" example:"active"`
	MaxQuantityPerUser int    `json:"max_quantity_per_user" example:"2"`
	TotalQuantity      int    `json:"total_quantity" example:"100"`
	Sold               int    `json:"sold" example:"0"`
	Remaining          int    `json:"remaining" example:"100"`
	SortOrder          int    `json:"sort_order" example:"0"`
	Enabled            bool   `json:"is_enabled" example:"true"`
	Remark             string `json:"remark"`
}

func NewSessionResponse(s *domain.Session, now time.Time) *SessionResponse {
	return &SessionResponse{
		ID:                 s.ID(),
		ActivityID:         s.ActivityID(),
		StartTime:          formatTime(s.Period().Start()),
		EndTime:            formatTime(s.Period().End()),
		Status:             string(s.Status()),
		CurrentStatus:      string(s.CalculateDynamicStatus(now)),
		MaxQuantityPerUser: s.Rules().MaxQuantityPerUser(),
		TotalQuantity:      s.Rules().TotalQuantity(),
		Sold:               s.Stock().Sold(),
		Remaining:          s.Stock().Remaining(),
		SortOrder:          s.SortOrder(),
		Enabled:            s.IsEnabled(),
		Remark:             s.Remark(),
	}
}

func NewSessionList(sessions []*domain.Session, now time.Time) []*SessionResponse {
	list := make([]*SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		list = append(list, NewSessionResponse(s, now))
	}
	return list
}

// =========================================
// 秒杀商品
// =========================================

// ProductRequest 创建/编辑秒杀商品，价格单位为分
// max_quantity_per_user为0时使用场次限购
type ProductRequest struct {
	ProductID          uint  `json:"product_id" binding:"required" example:"100"`
	SkuID              uint  `json:"product_sku_id" binding:"required" example:"1001"`
	OriginalPrice      int64 `json:"original_price" binding:"required,min=1" example:"9900"`
	SeckillPrice       int64 `json:"seckill_price" binding:"required,min=1" example:"5900"`
	Quantity           int   `json:"quantity" binding:"required,min=1" example:"10"`
	MaxQuantityPerUser int   `json:"max_quantity_per_user" binding:"min=0" example:"0"`
	SortOrder          int   `json:"sort_order" example:"0"`
	Enabled            bool  `json:"is_enabled" example:"true"`
}

func (r ProductRequest) ToParams() domain.ProductParams {
	return domain.ProductParams{
		ProductID:          r.ProductID,
		SkuID:              r.SkuID,
		OriginalPrice:      r.OriginalPrice,
		SeckillPrice:       r.SeckillPrice,
		Quantity:           r.Quantity,
		MaxQuantityPerUser: r.MaxQuantityPerUser,
		SortOrder:          r.SortOrder,
		Enabled:            r.Enabled,
	}
}

// ProductResponse 秒杀商品
type ProductResponse struct {
	ID                 uint   `json:"id" example:"1"`
	ActivityID         uint   `json:"activity_id" example:"1"`
	SessionID          uint   `json:"session_id" example:"1"`
	ProductID          uint   `json:"product_id" example:"100"`
	SkuID              uint   `json:"product_sku_id" example:"1001"`
	OriginalPrice      int64  `json:"original_price" example:"9900"`
	SeckillPrice       int64  `json:"seckill_price" example:"5900"`
	SeckillPriceYuan   string `json:"seckill_price_yuan" example:"59.00"`
	Quantity           int    `json:"quantity" example:"10"`
	Sold               int    `json:"sold" example:"0"`
	Remaining          int    `json:"remaining" example:"10"`
	MaxQuantityPerUser int    `json:"max_quantity_per_user" example:"2"`
	SortOrder          int    `json:"sort_order" example:"0"`
	Enabled            bool   `json:"is_enabled" example:"true"`
}

func NewProductResponse(p *domain.Product) *ProductResponse {
	return &ProductResponse{
		ID:                 p.ID(),
		ActivityID:         p.ActivityID(),
		SessionID:          p.SessionID(),
		ProductID:          p.ProductID(),
		SkuID:              p.SkuID(),
		OriginalPrice:      p.Price().Original(),
		SeckillPrice:       p.Price().Seckill(),
		SeckillPriceYuan:   FormatPriceYuan(p.Price().Seckill()),
		Quantity:           p.Stock().Quantity(),
		Sold:               p.Stock().Sold(),
		Remaining:          p.Stock().Remaining(),
		MaxQuantityPerUser: p.MaxQuantityPerUser(),
		SortOrder:          p.SortOrder(),
		Enabled:            p.IsEnabled(),
	}
}

func NewProductList(products []*domain.Product) []*ProductResponse {
	list := make([]*ProductResponse, 0, len(products))
	for _, p := range products {
		list = append(list, NewProductResponse(p))
	}
	return list
}

// =========================================
// 抢购
// =========================================

// PurchaseRequest 抢购请求，用户ID取自Token
type PurchaseRequest struct {
	SessionID uint `json:"session_id" binding:"required" example:"1"`
	SkuID     uint `json:"product_sku_id" binding:"required" example:"1001"`
	Quantity  int  `json:"quantity" binding:"required,min=1,max=99" example:"1"`
}

// FormatPriceYuan 分 → 元，例如5900 → "59.00"
func FormatPriceYuan(priceFen int64) string {
	return fmt.Sprintf("%d.%02d", priceFen/100, priceFen%100)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(timeLayout)
}
