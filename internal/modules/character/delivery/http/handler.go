package handler

import (
	"net/http"

	"anoa.com/realmkeeper/internal/modules/character/dto"
	"anoa.com/realmkeeper/internal/modules/character/service"
	imageDto "anoa.com/realmkeeper/internal/modules/image/dto"
	imageService "anoa.com/realmkeeper/internal/modules/image/service"
	"anoa.com/realmkeeper/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CharacterHandler struct {
	service service.CharacterService
}

func NewCharacterHandler(service service.CharacterService) *CharacterHandler {
	return &CharacterHandler{service: service}
}

// actorAnd resolves the caller and the named path id.
func actorAnd(c *gin.Context, param string) (uuid.UUID, uuid.UUID, bool) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return uuid.Nil, uuid.Nil, false
	}
	id, err := response.ParamUUID(c, param)
	if err != nil {
		response.ResponseError(c, err)
		return uuid.Nil, uuid.Nil, false
	}
	return userID, id, true
}

func (h *CharacterHandler) ListCharacters(c *gin.Context) {
	userID, realmID, ok := actorAnd(c, "realm_id")
	if !ok {
		return
	}

	var query dto.ListCharactersQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BindError(c, err)
		return
	}

	characters, err := h.service.ListCharacters(c.Request.Context(), userID, realmID, query.IncludeNSFW)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": characters})
}

func (h *CharacterHandler) SearchCharacters(c *gin.Context) {
	userID, realmID, ok := actorAnd(c, "realm_id")
	if !ok {
		return
	}

	var query dto.SearchCharactersQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BindError(c, err)
		return
	}

	characters, err := h.service.SearchCharacters(c.Request.Context(), userID, realmID, query)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": characters})
}

func (h *CharacterHandler) CreateCharacter(c *gin.Context) {
	userID, realmID, ok := actorAnd(c, "realm_id")
	if !ok {
		return
	}

	var req dto.CreateCharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	character, err := h.service.CreateCharacter(c.Request.Context(), userID, realmID, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": character})
}

func (h *CharacterHandler) GetCharacter(c *gin.Context) {
	userID, characterID, ok := actorAnd(c, "character_id")
	if !ok {
		return
	}

	character, err := h.service.GetCharacter(c.Request.Context(), userID, characterID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": character})
}

func (h *CharacterHandler) UpdateCharacter(c *gin.Context) {
	userID, characterID, ok := actorAnd(c, "character_id")
	if !ok {
		return
	}

	var req dto.UpdateCharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	character, err := h.service.UpdateCharacter(c.Request.Context(), userID, characterID, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": character})
}

func (h *CharacterHandler) DeleteCharacter(c *gin.Context) {
	userID, characterID, ok := actorAnd(c, "character_id")
	if !ok {
		return
	}

	if err := h.service.DeleteCharacter(c.Request.Context(), userID, characterID); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "character deleted successfully"})
}

func (h *CharacterHandler) SetImage(c *gin.Context) {
	userID, characterID, ok := actorAnd(c, "character_id")
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

	character, err := h.service.SetImage(c.Request.Context(), userID, characterID, service.ImageInput{
		File:     file,
		FileName: form.File.Filename,
		Crop:     crop,
		Format:   form.Format,
	})
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": character})
}

func (h *CharacterHandler) RemoveImage(c *gin.Context) {
	userID, characterID, ok := actorAnd(c, "character_id")
	if !ok {
		return
	}

	character, err := h.service.RemoveImage(c.Request.Context(), userID, characterID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": character})
}
