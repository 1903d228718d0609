package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	appseckill "github.com/xiebiao/seckill/internal/application/seckill"
	"github.com/xiebiao/seckill/internal/interface/http/dto"
	"github.com/xiebiao/seckill/internal/interface/http/middleware"
	apperrors "github.com/xiebiao/seckill/pkg/errors"
	"github.com/xiebiao/seckill/pkg/response"
)

// SeckillHandler 面向用户的场次读取与抢购，读取走缓存
type SeckillHandler struct {
	warm     *appseckill.CacheWarmService
	purchase *appseckill.PurchaseUseCase
	now      func() time.Time
}

func NewSeckillHandler(warm *appseckill.CacheWarmService, purchase *appseckill.PurchaseUseCase) *SeckillHandler {
	return &SeckillHandler{warm: warm, purchase: purchase, now: time.Now}
}

// GetSession 场次信息
// @Summary      获取秒杀场次
// @Tags         秒杀
// @Produce      json
// @Param        id path int true "场次ID"
// @Success      200 {object} response.Response{data=dto.SessionResponse}
// @Failure      404 {object} response.Response "场次不存在"
// @Router       /api/v1/seckill/sessions/{id} [get]
func (h *SeckillHandler) GetSession(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	session, err := h.warm.GetSession(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.NewSessionResponse(session, h.now()))
}

// GetProducts 场次全部秒杀商品
// @Summary      获取场次秒杀商品列表
// @Tags         秒杀
// @Produce      json
// @Param        id path int true "场次ID"
// @Success      200 {object} response.Response{data=[]dto.ProductResponse}
// @Router       /api/v1/seckill/sessions/{id}/products [get]
func (h *SeckillHandler) GetProducts(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	products, err := h.warm.GetProducts(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.NewProductList(products))
}

// GetProduct 按SKU获取秒杀商品，remaining取缓存中的实时库存
// @Summary      按SKU获取秒杀商品
// @Tags         秒杀
// @Produce      json
// @Param        id  path int true "场次ID"
// @Param        sku path int true "SKU ID"
// @Success      200 {object} response.Response{data=dto.ProductResponse}
// @Failure      404 {object} response.Response "秒杀商品不存在"
// @Router       /api/v1/seckill/sessions/{id}/products/{sku} [get]
func (h *SeckillHandler) GetProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	sku, ok := pathID(c, "sku")
	if !ok {
		return
	}
	product, err := h.warm.GetProductBySkuID(c.Request.Context(), id, sku)
	if err != nil {
		response.Error(c, err)
		return
	}
	resp := dto.NewProductResponse(product)
	if remaining, ok := h.warm.Remaining(c.Request.Context(), id, sku); ok {
		resp.Remaining = remaining
	}
	response.Success(c, resp)
}

// Purchase 抢购
// @Summary      秒杀抢购
// @Description  成功code=0；售罄code=40001；超过限购code=40006，两者data中都带有结果
// @Tags         秒杀
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body dto.PurchaseRequest true "抢购信息"
// @Success      200 {object} response.Response{data=appseckill.PurchaseResult}
// @Failure      200 {object} response.Response "40010 场次不在售卖中"
// @Failure      401 {object} response.Response "未登录"
// @Router       /api/v1/seckill/purchases [post]
func (h *SeckillHandler) Purchase(c *gin.Context) {
	var req dto.PurchaseRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.purchase.Execute(c.Request.Context(), appseckill.PurchaseCommand{
		SessionID: req.SessionID,
		SkuID:     req.SkuID,
		UserID:    middleware.MustGetUserID(c),
		Quantity:  req.Quantity,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	switch result.Outcome {
	case appseckill.OutcomeSoldOut:
		response.Outcome(c, apperrors.ErrCodeInsufficientStock, "已售罄", result)
	case appseckill.OutcomeLimitExceeded:
		response.Outcome(c, apperrors.ErrCodePurchaseLimitExceeded, "超过每人限购数量", result)
	default:
		response.Success(c, result)
	}
}
