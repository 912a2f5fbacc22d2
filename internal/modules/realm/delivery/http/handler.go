package handler

import (
	"net/http"

	imageDto "anoa.com/realmkeeper/internal/modules/image/dto"
	imageService "anoa.com/realmkeeper/internal/modules/image/service"
	"anoa.com/realmkeeper/internal/modules/realm/dto"
	"anoa.com/realmkeeper/internal/modules/realm/service"
	"anoa.com/realmkeeper/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type RealmHandler struct {
	service service.RealmService
}

func NewRealmHandler(service service.RealmService) *RealmHandler {
	return &RealmHandler{service: service}
}

// actorAndRealm resolves the caller and the :realm_id path parameter.
func actorAndRealm(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return uuid.Nil, uuid.Nil, false
	}
	realmID, err := response.ParamUUID(c, "realm_id")
	if err != nil {
		response.ResponseError(c, err)
		return uuid.Nil, uuid.Nil, false
	}
	return userID, realmID, true
}

func (h *RealmHandler) CreateRealm(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req dto.CreateRealmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	realm, err := h.service.CreateRealm(c.Request.Context(), userID, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": realm})
}

func (h *RealmHandler) ListMyRealms(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	realms, err := h.service.ListMyRealms(c.Request.Context(), userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": realms})
}

func (h *RealmHandler) GetRealm(c *gin.Context) {
	userID, realmID, ok := actorAndRealm(c)
	if !ok {
		return
	}

	realm, err := h.service.GetRealm(c.Request.Context(), userID, realmID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": realm})
}

func (h *RealmHandler) UpdateRealm(c *gin.Context) {
	userID, realmID, ok := actorAndRealm(c)
	if !ok {
		return
	}

	var req dto.UpdateRealmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	realm, err := h.service.UpdateRealm(c.Request.Context(), userID, realmID, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": realm})
}

func (h *RealmHandler) DeleteRealm(c *gin.Context) {
	userID, realmID, ok := actorAndRealm(c)
	if !ok {
		return
	}

	if err := h.service.DeleteRealm(c.Request.Context(), userID, realmID); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "realm deleted successfully"})
}

func (h *RealmHandler) Join(c *gin.Context) {
	userID, realmID, ok := actorAndRealm(c)
	if !ok {
		return
	}

	var req dto.JoinRealmRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BindError(c, err)
			return
		}
	}

	realm, err := h.service.Join(c.Request.Context(), userID, realmID, req.Password)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": realm})
}

func (h *RealmHandler) Leave(c *gin.Context) {
	userID, realmID, ok := actorAndRealm(c)
	if !ok {
		return
	}

	if err := h.service.Leave(c.Request.Context(), userID, realmID); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "left realm successfully"})
}

func (h *RealmHandler) TransferOwnership(c *gin.Context) {
	userID, realmID, ok := actorAndRealm(c)
	if !ok {
		return
	}

	var req dto.TransferOwnershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	if err := h.service.TransferOwnership(c.Request.Context(), userID, realmID, uuid.MustParse(req.NewOwnerID)); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "ownership transferred successfully"})
}

func (h *RealmHandler) ListMembers(c *gin.Context) {
	userID, realmID, ok := actorAndRealm(c)
	if !ok {
		return
	}

	members, err := h.service.ListMembers(c.Request.Context(), userID, realmID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": members})
}

func (h *RealmHandler) UpdateMemberRole(c *gin.Context) {
	userID, realmID, ok := actorAndRealm(c)
	if !ok {
		return
	}
	targetID, err := response.ParamUUID(c, "user_id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req dto.UpdateMemberRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	if err := h.service.UpdateMemberRole(c.Request.Context(), userID, realmID, targetID, req.Role); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "member role updated successfully"})
}

func (h *RealmHandler) KickMember(c *gin.Context) {
	userID, realmID, ok := actorAndRealm(c)
	if !ok {
		return
	}
	targetID, err := response.ParamUUID(c, "user_id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	if err := h.service.KickMember(c.Request.Context(), userID, realmID, targetID); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "member removed successfully"})
}

func (h *RealmHandler) SetIcon(c *gin.Context) {
	userID, realmID, ok := actorAndRealm(c)
	if !ok {
		return
	}

	var form imageDto.UploadImageForm
	if err := c.ShouldBind(&form); err != nil {
		response.BindError(c, err)
		return
	}
	crop, err := form.CropRegion()
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	file, err := form.Open(imageService.MaxUploadBytes)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	defer file.Close()

	realm, err := h.service.SetIcon(c.Request.Context(), userID, realmID, service.IconInput{
		File:     file,
		FileName: form.File.Filename,
		Crop:     crop,
		Format:   form.Format,
	})
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": realm})
}

func (h *RealmHandler) RemoveIcon(c *gin.Context) {
	userID, realmID, ok := actorAndRealm(c)
	if !ok {
		return
	}

	realm, err := h.service.RemoveIcon(c.Request.Context(), userID, realmID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": realm})
}
