package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"chat-relay/internal/middleware"
	"chat-relay/internal/services"
	"chat-relay/internal/transport/httpdto"
	relay_errors "chat-relay/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
)

type UserHandler struct {
	service *services.UserService
}

func NewUserHandler(service *services.UserService) *UserHandler {
	return &UserHandler{service: service}
}

// List handles GET /v1/users?page=&limit=
func (h *UserHandler) List(c *gin.Context) {
	var req httpdto.ListUsersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		_ = c.Error(fmt.Errorf("query: %w", relay_errors.ErrInvalidInput))
		return
	}

	items, total, err := h.service.List(c.Request.Context(), req.Page, req.Limit)
	if err != nil {
		_ = c.Error(err)
		return
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ListUsersResponse{
		Users: httpdto.FromUserSlice(items),
		Total: total,
		Page:  page,
	}))
}

// Get handles GET /v1/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	userID, ok := pathID(c)
	if !ok {
		return
	}

	u, err := h.service.GetByID(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromUser(u)))
}

// Presence handles GET /v1/users/:id/presence
func (h *UserHandler) Presence(c *gin.Context) {
	userID, ok := pathID(c)
	if !ok {
		return
	}

	p, err := h.service.Presence(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	dto := httpdto.PresenceDTO{
		UserID: p.UserID.String(),
		Online: p.Online,
		Status: string(p.Status),
	}
	if p.LastSeen != nil {
		dto.LastSeen = p.LastSeen.Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(dto))
}

// UpdateMe handles PATCH /v1/users/me
func (h *UserHandler) UpdateMe(c *gin.Context) {
	userID, ok := middleware.UserIDFrom(c)
	if !ok {
		_ = c.Error(relay_errors.ErrUnauthorized)
		return
	}

	var raw map[string]json.RawMessage
	if err := c.ShouldBindBodyWith(&raw, binding.JSON); err != nil {
		_ = c.Error(fmt.Errorf("body: %w", relay_errors.ErrInvalidInput))
		return
	}
	for _, field := range httpdto.ForbiddenProfileFields {
		if _, found := raw[field]; found {
			_ = c.Error(fmt.Errorf("%s cannot be changed here: %w", field, relay_errors.ErrInvalidInput))
			return
		}
	}

	var req httpdto.UpdateProfileRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		_ = c.Error(fmt.Errorf("body: %w", relay_errors.ErrInvalidInput))
		return
	}

	u, err := h.service.UpdateProfile(c.Request.Context(), userID, req.ToDomain())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromUser(u)))
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		_ = c.Error(fmt.Errorf("user id: %w", relay_errors.ErrInvalidInput))
		return uuid.Nil, false
	}
	return id, true
}
