package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	appseckill "github.com/xiebiao/seckill/internal/application/seckill"
	domain "github.com/xiebiao/seckill/internal/domain/seckill"
	"github.com/xiebiao/seckill/internal/interface/http/dto"
	apperrors "github.com/xiebiao/seckill/pkg/errors"
	"github.com/xiebiao/seckill/pkg/response"
)

// ActivityHandler 秒杀活动管理
type ActivityHandler struct {
	activities *appseckill.ActivityUseCase
}

func NewActivityHandler(activities *appseckill.ActivityUseCase) *ActivityHandler {
	return &ActivityHandler{activities: activities}
}

// Create 创建活动
// @Summary      创建秒杀活动
// @Tags         秒杀管理
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body dto.ActivityRequest true "活动信息"
// @Success      200 {object} response.Response{data=dto.ActivityResponse}
// @Failure      400 {object} response.Response "参数错误"
// @Failure      403 {object} response.Response "非管理员"
// @Router       /api/v1/admin/activities [post]
func (h *ActivityHandler) Create(c *gin.Context) {
	var req dto.ActivityRequest
	if !bindJSON(c, &req) {
		return
	}
	activity, err := h.activities.Create(c.Request.Context(), req.ToParams())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.NewActivityResponse(activity))
}

// List 活动分页列表
// @Summary      秒杀活动列表
// @Tags         秒杀管理
// @Produce      json
// @Security     BearerAuth
// @Param        page      query int    false "页码"
// @Param        page_size query int    false "每页数量"
// @Param        status    query string false "状态"
// @Success      200 {object} response.Response{data=response.PageData{list=[]dto.ActivityResponse}}
// @Router       /api/v1/admin/activities [get]
func (h *ActivityHandler) List(c *gin.Context) {
	var req dto.ListActivitiesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrCodeInvalidParams, "参数错误: "+err.Error())
		return
	}
	params := domain.ActivityListParams{Page: req.Page, PageSize: req.PageSize, Status: domain.ActivityStatus(req.Status)}
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 {
		params.PageSize = 20
	}

	activities, total, err := h.activities.List(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithPage(c, dto.NewActivityList(activities), total, params.Page, params.PageSize)
}

// Get 活动详情
// @Summary      秒杀活动详情
// @Tags         秒杀管理
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "活动ID"
// @Success      200 {object} response.Response{data=dto.ActivityResponse}
// @Failure      404 {object} response.Response "活动不存在"
// @Router       /api/v1/admin/activities/{id} [get]
func (h *ActivityHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	h.reply(c)(h.activities.Get(c.Request.Context(), id))
}

// Update 编辑活动
// @Summary      编辑秒杀活动
// @Tags         秒杀管理
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id      path int                 true "活动ID"
// @Param        request body dto.ActivityRequest true "活动信息"
// @Success      200 {object} response.Response{data=dto.ActivityResponse}
// @Router       /api/v1/admin/activities/{id} [put]
func (h *ActivityHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.ActivityRequest
	if !bindJSON(c, &req) {
		return
	}
	h.reply(c)(h.activities.Update(c.Request.Context(), id, req.ToParams()))
}

// Delete 删除活动
// @Summary      删除秒杀活动
// @Tags         秒杀管理
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "活动ID"
// @Success      200 {object} response.Response
// @Router       /api/v1/admin/activities/{id} [delete]
func (h *ActivityHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.activities.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"id": id})
}

// ToggleEnabled 切换启用状态
// @Summary      启用/禁用秒杀活动
// @Tags         秒杀管理
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "活动ID"
// @Success      200 {object} response.Response{data=dto.ActivityResponse}
// @Router       /api/v1/admin/activities/{id}/toggle [post]
func (h *ActivityHandler) ToggleEnabled(c *gin.Context) {
	h.transition(c, h.activities.ToggleEnabled)
}

// Cancel 取消活动
// @Summary      取消秒杀活动
// @Tags         秒杀管理
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "活动ID"
// @Success      200 {object} response.Response{data=dto.ActivityResponse}
// @Router       /api/v1/admin/activities/{id}/cancel [post]
func (h *ActivityHandler) Cancel(c *gin.Context) {
	h.transition(c, h.activities.Cancel)
}

// Start 开始活动
// @Summary      开始秒杀活动
// @Tags         秒杀管理
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "活动ID"
// @Success      200 {object} response.Response{data=dto.ActivityResponse}
// @Router       /api/v1/admin/activities/{id}/start [post]
func (h *ActivityHandler) Start(c *gin.Context) {
	h.transition(c, h.activities.Start)
}

// End 结束活动
// @Summary      结束秒杀活动
// @Tags         秒杀管理
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "活动ID"
// @Success      200 {object} response.Response{data=dto.ActivityResponse}
// @Router       /api/v1/admin/activities/{id}/end [post]
func (h *ActivityHandler) End(c *gin.Context) {
	h.transition(c, h.activities.End)
}

// Warm 预热活动下全部场次
// @Summary      预热秒杀活动缓存
// @Tags         秒杀管理
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "活动ID"
// @Success      200 {object} response.Response
// @Router       /api/v1/admin/activities/{id}/warm [post]
func (h *ActivityHandler) Warm(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.activities.Warm(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"activity_id": id, "warmed": true})
}

// Evict 清理活动下全部场次缓存
// @Summary      清理秒杀活动缓存
// @Tags         秒杀管理
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "活动ID"
// @Success      200 {object} response.Response
// @Router       /api/v1/admin/activities/{id}/cache [delete]
func (h *ActivityHandler) Evict(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.activities.Evict(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"activity_id": id, "evicted": true})
}

func (h *ActivityHandler) transition(c *gin.Context, fn func(context.Context, uint) (*domain.Activity, error)) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	h.reply(c)(fn(c.Request.Context(), id))
}

func (h *ActivityHandler) reply(c *gin.Context) func(*domain.Activity, error) {
	return func(activity *domain.Activity, err error) {
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, dto.NewActivityResponse(activity))
	}
}

// pathID 解析路径中的正整数ID，失败时已写响应
func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		response.ErrorWithCode(c, apperrors.ErrCodeInvalidParams, "无效的"+name)
		return 0, false
	}
	return uint(id), true
}

// bindJSON 绑定并校验JSON请求体，失败时已写响应
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrCodeInvalidParams, "参数错误: "+err.Error())
		return false
	}
	return true
}
