package handler

import (
	"github.com/gin-gonic/gin"

	appseckill "github.com/xiebiao/seckill/internal/application/seckill"
	domain "github.com/xiebiao/seckill/internal/domain/seckill"
	"github.com/xiebiao/seckill/internal/interface/http/dto"
	"github.com/xiebiao/seckill/pkg/response"
)

// ProductHandler 秒杀商品管理
type ProductHandler struct {
	products *appseckill.ProductUseCase
}

func NewProductHandler(products *appseckill.ProductUseCase) *ProductHandler {
	return &ProductHandler{products: products}
}

// Create 在场次下添加秒杀商品
// @Summary      添加秒杀商品
// @Tags         秒杀管理
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id      path int                true "场次ID"
// @Param        request body dto.ProductRequest true "商品信息"
// @Success      200 {object} response.Response{data=dto.ProductResponse}
// @Failure      200 {object} response.Response "40009 SKU重复 / 40007 超出场次库存"
// @Router       /api/v1/admin/sessions/{id}/products [post]
func (h *ProductHandler) Create(c *gin.Context) {
	sessionID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.ProductRequest
	if !bindJSON(c, &req) {
		return
	}
	replyProduct(c)(h.products.Create(c.Request.Context(), sessionID, req.ToParams()))
}

// ListBySession 场次下的秒杀商品（读数据库）
// @Summary      场次商品列表
// @Tags         秒杀管理
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "场次ID"
// @Success      200 {object} response.Response{data=[]dto.ProductResponse}
// @Router       /api/v1/admin/sessions/{id}/products [get]
func (h *ProductHandler) ListBySession(c *gin.Context) {
	sessionID, ok := pathID(c, "id")
	if !ok {
		return
	}
	products, err := h.products.ListBySession(c.Request.Context(), sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.NewProductList(products))
}

// Get 秒杀商品详情
// @Summary      秒杀商品详情
// @Tags         秒杀管理
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "秒杀商品ID"
// @Success      200 {object} response.Response{data=dto.ProductResponse}
// @Router       /api/v1/admin/products/{id} [get]
func (h *ProductHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	replyProduct(c)(h.products.Get(c.Request.Context(), id))
}

// Update 编辑秒杀商品
// @Summary      编辑秒杀商品
// @Tags         秒杀管理
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id      path int                true "秒杀商品ID"
// @Param        request body dto.ProductRequest true "商品信息"
// @Success      200 {object} response.Response{data=dto.ProductResponse}
// @Router       /api/v1/admin/products/{id} [put]
func (h *ProductHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.ProductRequest
	if !bindJSON(c, &req) {
		return
	}
	replyProduct(c)(h.products.Update(c.Request.Context(), id, req.ToParams()))
}

// Delete 删除秒杀商品
// @Summary      删除秒杀商品
// @Tags         秒杀管理
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "秒杀商品ID"
// @Success      200 {object} response.Response
// @Router       /api/v1/admin/products/{id} [delete]
func (h *ProductHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.products.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"id": id})
}

// ToggleEnabled 启用/禁用秒杀商品
// @Summary      启用/禁用秒杀商品
// @Tags         秒杀管理
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "秒杀商品ID"
// @Success      200 {object} response.Response{data=dto.ProductResponse}
// @Router       /api/v1/admin/products/{id}/toggle [post]
func (h *ProductHandler) ToggleEnabled(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	replyProduct(c)(h.products.ToggleEnabled(c.Request.Context(), id))
}

func replyProduct(c *gin.Context) func(*domain.Product, error) {
	return func(product *domain.Product, err error) {
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, dto.NewProductResponse(product))
	}
}
