package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	appseckill "github.com/xiebiao/seckill/internal/application/seckill"
	domain "github.com/xiebiao/seckill/internal/domain/seckill"
	"github.com/xiebiao/seckill/internal/interface/http/dto"
	"github.com/xiebiao/seckill/pkg/response"
)

// SessionHandler 秒杀场次管理
type SessionHandler struct {
	sessions *appseckill.SessionUseCase
	now      func() time.Time
}

func NewSessionHandler(sessions *appseckill.SessionUseCase) *SessionHandler {
	return &SessionHandler{sessions: sessions, now: time.Now}
}

// Create 在活动下创建场次
// @Summary      创建秒杀场次
// @Description  开始时间必须在锁定窗口（默认30分钟）之外
// @Tags         秒杀管理
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id      path int                true "活动ID"
// @Param        request body dto.SessionRequest true "场次信息"
// @Success      200 {object} response.Response{data=dto.SessionResponse}
// @Failure      200 {object} response.Response "40008 场次处于锁定窗口"
// @Router       /api/v1/admin/activities/{id}/sessions [post]
func (h *SessionHandler) Create(c *gin.Context) {
	activityID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.SessionRequest
	if !bindJSON(c, &req) {
		return
	}
	h.reply(c)(h.sessions.Create(c.Request.Context(), activityID, req.ToParams()))
}

// ListByActivity 活动下的场次
// @Summary      活动场次列表
// @Tags         秒杀管理
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "活动ID"
// @Success      200 {object} response.Response{data=[]dto.SessionResponse}
// @Router       /api/v1/admin/activities/{id}/sessions [get]
func (h *SessionHandler) ListByActivity(c *gin.Context) {
	activityID, ok := pathID(c, "id")
	if !ok {
		return
	}
	sessions, err := h.sessions.ListByActivity(c.Request.Context(), activityID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.NewSessionList(sessions, h.now()))
}

// Get 场次详情（读数据库）
// @Summary      秒杀场次详情
// @Tags         秒杀管理
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "场次ID"
// @Success      200 {object} response.Response{data=dto.SessionResponse}
// @Router       /api/v1/admin/sessions/{id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	h.transition(c, h.sessions.Get)
}

// Update 编辑场次
// @Summary      编辑秒杀场次
// @Tags         秒杀管理
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id      path int                true "场次ID"
// @Param        request body dto.SessionRequest true "场次信息"
// @Success      200 {object} response.Response{data=dto.SessionResponse}
// @Router       /api/v1/admin/sessions/{id} [put]
func (h *SessionHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.SessionRequest
	if !bindJSON(c, &req) {
		return
	}
	h.reply(c)(h.sessions.Update(c.Request.Context(), id, req.ToParams()))
}

// Delete 删除场次
// @Summary      删除秒杀场次
// @Tags         秒杀管理
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "场次ID"
// @Success      200 {object} response.Response
// @Router       /api/v1/admin/sessions/{id} [delete]
func (h *SessionHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.sessions.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"id": id})
}

// ToggleEnabled 启用/禁用场次
// @Summary      启用/禁用秒杀场次
// @Tags         秒杀管理
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "场次ID"
// @Success      200 {object} response.Response{data=dto.SessionResponse}
// @Router       /api/v1/admin/sessions/{id}/toggle [post]
func (h *SessionHandler) ToggleEnabled(c *gin.Context) {
	h.transition(c, h.sessions.ToggleEnabled)
}

// Cancel 取消场次
// @Summary      取消秒杀场次
// @Tags         秒杀管理
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "场次ID"
// @Success      200 {object} response.Response{data=dto.SessionResponse}
// @Router       /api/v1/admin/sessions/{id}/cancel [post]
func (h *SessionHandler) Cancel(c *gin.Context) {
	h.transition(c, h.sessions.Cancel)
}

// Start 手动开始场次
// @Summary      开始秒杀场次
// @Tags         秒杀管理
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "场次ID"
// @Success      200 {object} response.Response{data=dto.SessionResponse}
// @Router       /api/v1/admin/sessions/{id}/start [post]
func (h *SessionHandler) Start(c *gin.Context) {
	h.transition(c, h.sessions.Start)
}

// End 手动结束场次
// @Summary      结束秒杀场次
// @Tags         秒杀管理
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "场次ID"
// @Success      200 {object} response.Response{data=dto.SessionResponse}
// @Router       /api/v1/admin/sessions/{id}/end [post]
func (h *SessionHandler) End(c *gin.Context) {
	h.transition(c, h.sessions.End)
}

// Warm 重建场次缓存
// @Summary      预热秒杀场次缓存
// @Description  覆盖写入session、商品、库存三个Key
// @Tags         秒杀管理
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "场次ID"
// @Success      200 {object} response.Response
// @Router       /api/v1/admin/sessions/{id}/warm [post]
func (h *SessionHandler) Warm(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.sessions.Warm(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"session_id": id, "warmed": true})
}

// Evict 清理场次缓存
// @Summary      清理秒杀场次缓存
// @Tags         秒杀管理
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "场次ID"
// @Success      200 {object} response.Response
// @Router       /api/v1/admin/sessions/{id}/cache [delete]
func (h *SessionHandler) Evict(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.sessions.Evict(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"session_id": id, "evicted": true})
}

func (h *SessionHandler) transition(c *gin.Context, fn func(context.Context, uint) (*domain.Session, error)) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	h.reply(c)(fn(c.Request.Context(), id))
}

func (h *SessionHandler) reply(c *gin.Context) func(*domain.Session, error) {
	return func(session *domain.Session, err error) {
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, dto.NewSessionResponse(session, h.now()))
	}
}
