package handler

import (
	"net/http"

	"anoa.com/realmkeeper/internal/entity"
	"anoa.com/realmkeeper/internal/modules/permission/dto"
	"anoa.com/realmkeeper/internal/modules/permission/service"
	"anoa.com/realmkeeper/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type PermissionHandler struct {
	service service.PermissionService
}

func NewPermissionHandler(service service.PermissionService) *PermissionHandler {
	return &PermissionHandler{service: service}
}

func actorAndCharacter(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return uuid.Nil, uuid.Nil, false
	}
	characterID, err := response.ParamUUID(c, "character_id")
	if err != nil {
		response.ResponseError(c, err)
		return uuid.Nil, uuid.Nil, false
	}
	return userID, characterID, true
}

func (h *PermissionHandler) ListPermissions(c *gin.Context) {
	userID, characterID, ok := actorAndCharacter(c)
	if !ok {
		return
	}

	grants, err := h.service.List(c.Request.Context(), userID, characterID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": grants})
}

func (h *PermissionHandler) GrantPermission(c *gin.Context) {
	userID, characterID, ok := actorAndCharacter(c)
	if !ok {
		return
	}

	var req dto.GrantPermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	if err := h.service.Grant(c.Request.Context(), userID, characterID, uuid.MustParse(req.UserID), req.Scope); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "permission granted successfully"})
}

func (h *PermissionHandler) RevokePermission(c *gin.Context) {
	userID, characterID, ok := actorAndCharacter(c)
	if !ok {
		return
	}
	granteeID, err := response.ParamUUID(c, "user_id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	scope := entity.PermissionScope(c.Param("scope"))
	if err := h.service.Revoke(c.Request.Context(), userID, characterID, granteeID, scope); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "permission revoked successfully"})
}

func (h *PermissionHandler) GetAccess(c *gin.Context) {
	userID, characterID, ok := actorAndCharacter(c)
	if !ok {
		return
	}

	access, err := h.service.Access(c.Request.Context(), userID, characterID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": access})
}
