package handler

import (
	"net/http"

	"anoa.com/realmkeeper/internal/modules/rating/dto"
	"anoa.com/realmkeeper/internal/modules/rating/service"
	"anoa.com/realmkeeper/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type RatingHandler struct {
	service service.RatingService
}

func NewRatingHandler(service service.RatingService) *RatingHandler {
	return &RatingHandler{service: service}
}

// ids resolves the caller, :character_id and, when withTrait, :trait_id.
func ids(c *gin.Context, withTrait bool) (userID, characterID, traitID uuid.UUID, ok bool) {
	var err error
	if userID, err = response.GetUserID(c); err != nil {
		response.ResponseError(c, err)
		return
	}
	if characterID, err = response.ParamUUID(c, "character_id"); err != nil {
		response.ResponseError(c, err)
		return
	}
	if withTrait {
		if traitID, err = response.ParamUUID(c, "trait_id"); err != nil {
			response.ResponseError(c, err)
			return
		}
	}
	return userID, characterID, traitID, true
}

func (h *RatingHandler) ListRatings(c *gin.Context) {
	userID, characterID, _, ok := ids(c, false)
	if !ok {
		return
	}

	ratings, err := h.service.ListByCharacter(c.Request.Context(), userID, characterID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": ratings})
}

func (h *RatingHandler) UpsertRating(c *gin.Context) {
	userID, characterID, traitID, ok := ids(c, true)
	if !ok {
		return
	}

	var req dto.UpsertRatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	rating, err := h.service.UpsertRating(c.Request.Context(), userID, characterID, traitID, req.Value)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": rating})
}

func (h *RatingHandler) DeleteRating(c *gin.Context) {
	userID, characterID, traitID, ok := ids(c, true)
	if !ok {
		return
	}

	if err := h.service.DeleteRating(c.Request.Context(), userID, characterID, traitID); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "rating deleted successfully"})
}
