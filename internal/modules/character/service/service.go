package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"anoa.com/realmkeeper/internal/entity"
	"anoa.com/realmkeeper/internal/modules/character/dto"
	"anoa.com/realmkeeper/internal/modules/character/repository"
	imageService "anoa.com/realmkeeper/internal/modules/image/service"
	permissionService "anoa.com/realmkeeper/internal/modules/permission/service"
	realmService "anoa.com/realmkeeper/internal/modules/realm/service"
	realtime "anoa.com/realmkeeper/internal/modules/realtime/service"
	searchService "anoa.com/realmkeeper/internal/modules/search/service"
	"anoa.com/realmkeeper/pkg/apperror"
	"anoa.com/realmkeeper/pkg/storage"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ImageInput struct {
	File     io.Reader
	FileName string
	Crop     *storage.CropRegion
	Format   string
}

type CharacterService interface {
	ListCharacters(ctx context.Context, userID, realmID uuid.UUID, includeNSFW bool) ([]entity.Character, error)
	SearchCharacters(ctx context.Context, userID, realmID uuid.UUID, query dto.SearchCharactersQuery) ([]entity.Character, error)
	GetCharacter(ctx context.Context, userID, characterID uuid.UUID) (*entity.Character, error)
	CreateCharacter(ctx context.Context, userID, realmID uuid.UUID, req dto.CreateCharacterRequest) (*entity.Character, error)
	UpdateCharacter(ctx context.Context, userID, characterID uuid.UUID, req dto.UpdateCharacterRequest) (*entity.Character, error)
	DeleteCharacter(ctx context.Context, userID, characterID uuid.UUID) error
	SetImage(ctx context.Context, userID, characterID uuid.UUID, input ImageInput) (*entity.Character, error)
	RemoveImage(ctx context.Context, userID, characterID uuid.UUID) (*entity.Character, error)
}

type characterService struct {
	repo       repository.CharacterRepository
	membership realmService.Membership
	evaluator  permissionService.Evaluator
	images     imageService.ImageService
	index      searchService.CharacterIndex
	publisher  realtime.Publisher
	sanitizer  *bluemonday.Policy
}

func NewCharacterService(
	repo repository.CharacterRepository,
	membership realmService.Membership,
	evaluator permissionService.Evaluator,
	images imageService.ImageService,
	index searchService.CharacterIndex,
	publisher realtime.Publisher,
) CharacterService {
	return &characterService{
		repo:       repo,
		membership: membership,
		evaluator:  evaluator,
		images:     images,
		index:      index,
		publisher:  publisher,
		sanitizer:  bluemonday.UGCPolicy(),
	}
}

func (s *characterService) ListCharacters(ctx context.Context, userID, realmID uuid.UUID, includeNSFW bool) ([]entity.Character, error) {
	if _, err := s.membership.RequireMember(ctx, realmID, userID); err != nil {
		return nil, err
	}
	return s.repo.FindByRealm(ctx, realmID, includeNSFW)
}

func (s *characterService) SearchCharacters(ctx context.Context, userID, realmID uuid.UUID, query dto.SearchCharactersQuery) ([]entity.Character, error) {
	if _, err := s.membership.RequireMember(ctx, realmID, userID); err != nil {
		return nil, err
	}

	ids, err := s.index.Search(realmID, strings.TrimSpace(query.Query), query.Limit)
	if err != nil {
		return nil, fmt.Errorf("character search failed: %w", err)
	}

	found, err := s.repo.FindByIDs(ctx, realmID, ids)
	if err != nil {
		return nil, err
	}

	// Keep the index's relevance order; drop hits deleted since indexing.
	byID := make(map[uuid.UUID]entity.Character, len(found))
	for _, c := range found {
		byID[c.ID] = c
	}
	characters := make([]entity.Character, 0, len(found))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			characters = append(characters, c)
		}
	}
	return characters, nil
}

func (s *characterService) GetCharacter(ctx context.Context, userID, characterID uuid.UUID) (*entity.Character, error) {
	return s.evaluator.Require(ctx, characterID, userID, entity.ScopeProfile, permissionService.ActionView)
}

func (s *characterService) CreateCharacter(ctx context.Context, userID, realmID uuid.UUID, req dto.CreateCharacterRequest) (*entity.Character, error) {
	if _, err := s.membership.RequireMember(ctx, realmID, userID); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperror.Validation("character name is required")
	}

	character := &entity.Character{
		RealmID: realmID,
		UserID:  userID,
		Name:    name,
		Gender:  trimmed(req.Gender),
		Notes:   s.sanitizeNotes(req.Notes),
		NSFW:    req.NSFW,
	}
	if err := s.repo.Create(ctx, character); err != nil {
		return nil, fmt.Errorf("failed to create character: %w", err)
	}

	s.reindex(character)
	s.publisher.Publish(ctx, realtime.CharacterEvent(realtime.CharacterCreated, realmID, character.ID))
	return character, nil
}

func (s *characterService) UpdateCharacter(ctx context.Context, userID, characterID uuid.UUID, req dto.UpdateCharacterRequest) (*entity.Character, error) {
	character, err := s.evaluator.Require(ctx, characterID, userID, entity.ScopeProfile, permissionService.ActionEdit)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, apperror.Validation("character name is required")
		}
		character.Name = name
	}
	if req.Gender != nil {
		character.Gender = trimmed(req.Gender)
	}
	if req.Notes != nil {
		character.Notes = s.sanitizeNotes(req.Notes)
	}
	if req.NSFW != nil {
		character.NSFW = *req.NSFW
	}

	if err := s.repo.Update(ctx, character); err != nil {
		return nil, fmt.Errorf("failed to update character: %w", err)
	}

	s.reindex(character)
	s.publisher.Publish(ctx, realtime.CharacterEvent(realtime.CharacterUpdated, character.RealmID, character.ID))
	return character, nil
}

func (s *characterService) DeleteCharacter(ctx context.Context, userID, characterID uuid.UUID) error {
	decision, err := s.evaluator.Check(ctx, characterID, userID, entity.ScopeProfile, permissionService.ActionEdit)
	if err != nil {
		return err
	}
	// A profile grant allows editing, not deleting.
	if decision.Reason != permissionService.ReasonCreator && decision.Reason != permissionService.ReasonRealmRole {
		return fmt.Errorf("only the creator or a realm admin can delete a character: %w", apperror.ErrPermissionDenied)
	}

	character, err := s.repo.FindByID(ctx, characterID)
	if err != nil {
		return notFound(err)
	}
	if err := s.repo.DeleteCascade(ctx, characterID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound(err)
		}
		return fmt.Errorf("failed to delete character: %w", err)
	}

	if err := s.index.DeleteCharacter(characterID); err != nil {
		slog.Warn("failed to remove character from search index", "character_id", characterID, "error", err)
	}
	s.publisher.Publish(ctx, realtime.CharacterEvent(realtime.CharacterDeleted, character.RealmID, characterID))
	return nil
}

func (s *characterService) SetImage(ctx context.Context, userID, characterID uuid.UUID, input ImageInput) (*entity.Character, error) {
	character, err := s.evaluator.Require(ctx, characterID, userID, entity.ScopeImage, permissionService.ActionEdit)
	if err != nil {
		return nil, err
	}

	uploaded, err := s.images.Upload(ctx, imageService.UploadInput{
		UserID:      userID,
		CharacterID: &characterID,
		File:        input.File,
		FileName:    input.FileName,
		Crop:        input.Crop,
		Format:      input.Format,
	})
	if err != nil {
		return nil, err
	}

	oldKey := character.ImageKey
	character.ImageKey = &uploaded.Key
	character.ImageURL = &uploaded.URL
	character.Crop = nil
	if input.Crop != nil {
		crop := datatypes.NewJSONType(*input.Crop)
		character.Crop = &crop
	}

	if err := s.repo.Update(ctx, character); err != nil {
		s.release(ctx, &uploaded.Key)
		return nil, fmt.Errorf("failed to update character image: %w", err)
	}
	s.release(ctx, oldKey)

	s.publisher.Publish(ctx, realtime.CharacterEvent(realtime.CharacterImageUpdated, character.RealmID, character.ID))
	return character, nil
}

func (s *characterService) RemoveImage(ctx context.Context, userID, characterID uuid.UUID) (*entity.Character, error) {
	character, err := s.evaluator.Require(ctx, characterID, userID, entity.ScopeImage, permissionService.ActionEdit)
	if err != nil {
		return nil, err
	}
	if character.ImageKey == nil {
		return character, nil
	}

	oldKey := character.ImageKey
	character.ImageKey = nil
	character.ImageURL = nil
	character.Crop = nil
	if err := s.repo.Update(ctx, character); err != nil {
		return nil, fmt.Errorf("failed to remove character image: %w", err)
	}
	s.release(ctx, oldKey)

	s.publisher.Publish(ctx, realtime.CharacterEvent(realtime.CharacterImageDeleted, character.RealmID, character.ID))
	return character, nil
}

func (s *characterService) sanitizeNotes(notes *string) *string {
	if notes == nil {
		return nil
	}
	clean := strings.TrimSpace(s.sanitizer.Sanitize(*notes))
	if clean == "" {
		return nil
	}
	return &clean
}

func (s *characterService) reindex(character *entity.Character) {
	if err := s.index.IndexCharacter(character); err != nil {
		slog.Warn("failed to index character", "character_id", character.ID, "error", err)
	}
}

func (s *characterService) release(ctx context.Context, key *string) {
	if key == nil {
		return
	}
	if err := s.images.Release(ctx, *key); err != nil {
		slog.Warn("failed to release image", "key", *key, "error", err)
	}
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("character not found: %w", apperror.ErrNotFound)
	}
	return err
}
