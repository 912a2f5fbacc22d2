package handler

import (
	"net/http"

	"anoa.com/realmkeeper/internal/modules/trait/dto"
	"anoa.com/realmkeeper/internal/modules/trait/service"
	"anoa.com/realmkeeper/pkg/response"
	"github.com/gin-gonic/gin"
)

type TraitHandler struct {
	service service.TraitService
}

func NewTraitHandler(service service.TraitService) *TraitHandler {
	return &TraitHandler{service: service}
}

func (h *TraitHandler) ListTraits(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	realmID, err := response.ParamUUID(c, "realm_id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	traits, err := h.service.ListTraits(c.Request.Context(), userID, realmID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": traits})
}

func (h *TraitHandler) CreateTrait(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	realmID, err := response.ParamUUID(c, "realm_id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req dto.CreateTraitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	trait, err := h.service.CreateTrait(c.Request.Context(), userID, realmID, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": trait})
}

func (h *TraitHandler) UpdateTrait(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	traitID, err := response.ParamUUID(c, "trait_id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req dto.UpdateTraitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	trait, err := h.service.UpdateTrait(c.Request.Context(), userID, traitID, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": trait})
}

func (h *TraitHandler) DeleteTrait(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	traitID, err := response.ParamUUID(c, "trait_id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	if err := h.service.DeleteTrait(c.Request.Context(), userID, traitID); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "trait deleted successfully"})
}
