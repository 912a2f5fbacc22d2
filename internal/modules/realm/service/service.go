package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"anoa.com/realmkeeper/internal/entity"
	imageService "anoa.com/realmkeeper/internal/modules/image/service"
	"anoa.com/realmkeeper/internal/modules/realm/dto"
	"anoa.com/realmkeeper/internal/modules/realm/repository"
	realtime "anoa.com/realmkeeper/internal/modules/realtime/service"
	"anoa.com/realmkeeper/pkg/apperror"
	"anoa.com/realmkeeper/pkg/ratelimiter"
	"anoa.com/realmkeeper/pkg/storage"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Membership answers realm-level authorization questions for other modules.
type Membership interface {
	// RequireMember fails with NotFound for an unknown realm and
	// PermissionDenied when the user is not a member.
	RequireMember(ctx context.Context, realmID, userID uuid.UUID) (*entity.RealmMember, error)
	// RequireManager additionally requires the owner or admin role.
	RequireManager(ctx context.Context, realmID, userID uuid.UUID) (*entity.RealmMember, error)
}

type IconInput struct {
	File     io.Reader
	FileName string
	Crop     *storage.CropRegion
	Format   string
}

type RealmService interface {
	Membership

	CreateRealm(ctx context.Context, userID uuid.UUID, req dto.CreateRealmRequest) (*dto.RealmResponse, error)
	GetRealm(ctx context.Context, userID, realmID uuid.UUID) (*dto.RealmResponse, error)
	ListMyRealms(ctx context.Context, userID uuid.UUID) ([]dto.RealmResponse, error)
	UpdateRealm(ctx context.Context, userID, realmID uuid.UUID, req dto.UpdateRealmRequest) (*dto.RealmResponse, error)
	DeleteRealm(ctx context.Context, userID, realmID uuid.UUID) error

	Join(ctx context.Context, userID, realmID uuid.UUID, password string) (*dto.RealmResponse, error)
	Leave(ctx context.Context, userID, realmID uuid.UUID) error
	TransferOwnership(ctx context.Context, userID, realmID, newOwnerID uuid.UUID) error

	ListMembers(ctx context.Context, userID, realmID uuid.UUID) ([]dto.MemberResponse, error)
	UpdateMemberRole(ctx context.Context, userID, realmID, targetID uuid.UUID, role entity.MemberRole) error
	KickMember(ctx context.Context, userID, realmID, targetID uuid.UUID) error

	SetIcon(ctx context.Context, userID, realmID uuid.UUID, input IconInput) (*dto.RealmResponse, error)
	RemoveIcon(ctx context.Context, userID, realmID uuid.UUID) (*dto.RealmResponse, error)
}

type realmService struct {
	repo          repository.RealmRepository
	images        imageService.ImageService
	publisher     realtime.Publisher
	redisClient   *redis.Client
	joinRateLimit time.Duration
}

func NewRealmService(
	repo repository.RealmRepository,
	images imageService.ImageService,
	publisher realtime.Publisher,
	redisClient *redis.Client,
	joinRateLimit time.Duration,
) RealmService {
	return &realmService{
		repo:          repo,
		images:        images,
		publisher:     publisher,
		redisClient:   redisClient,
		joinRateLimit: joinRateLimit,
	}
}

func (s *realmService) findRealm(ctx context.Context, realmID uuid.UUID) (*entity.Realm, error) {
	realm, err := s.repo.FindByID(ctx, realmID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("realm not found: %w", apperror.ErrNotFound)
	}
	return realm, err
}

// memberRole returns the user's role, or "" for non-members.
func (s *realmService) memberRole(ctx context.Context, realmID, userID uuid.UUID) (entity.MemberRole, error) {
	member, err := s.repo.FindMember(ctx, realmID, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return member.Role, nil
}

func (s *realmService) RequireMember(ctx context.Context, realmID, userID uuid.UUID) (*entity.RealmMember, error) {
	if _, err := s.findRealm(ctx, realmID); err != nil {
		return nil, err
	}
	member, err := s.repo.FindMember(ctx, realmID, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("not a member of this realm: %w", apperror.ErrPermissionDenied)
	}
	return member, err
}

func (s *realmService) RequireManager(ctx context.Context, realmID, userID uuid.UUID) (*entity.RealmMember, error) {
	member, err := s.RequireMember(ctx, realmID, userID)
	if err != nil {
		return nil, err
	}
	if !member.Role.CanManage() {
		return nil, fmt.Errorf("realm owner or admin required: %w", apperror.ErrPermissionDenied)
	}
	return member, nil
}

func (s *realmService) requireOwner(ctx context.Context, realmID, userID uuid.UUID) (*entity.Realm, error) {
	realm, err := s.findRealm(ctx, realmID)
	if err != nil {
		return nil, err
	}
	if realm.OwnerID != userID {
		return nil, fmt.Errorf("only the realm owner can do this: %w", apperror.ErrPermissionDenied)
	}
	return realm, nil
}

func (s *realmService) CreateRealm(ctx context.Context, userID uuid.UUID, req dto.CreateRealmRequest) (*dto.RealmResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperror.Validation("realm name is required")
	}

	realm := &entity.Realm{
		Name:        name,
		Description: req.Description,
		OwnerID:     userID,
	}
	if req.Password != nil && *req.Password != "" {
		hash, err := hashPassword(*req.Password)
		if err != nil {
			return nil, err
		}
		realm.PasswordHash = &hash
	}

	if err := s.repo.CreateWithOwner(ctx, realm); err != nil {
		return nil, fmt.Errorf("failed to create realm: %w", err)
	}

	slog.Info("realm created", "realm_id", realm.ID, "owner_id", userID)
	resp := dto.NewRealmResponse(realm, entity.RoleOwner)
	return &resp, nil
}

func (s *realmService) GetRealm(ctx context.Context, userID, realmID uuid.UUID) (*dto.RealmResponse, error) {
	realm, err := s.findRealm(ctx, realmID)
	if err != nil {
		return nil, err
	}
	role, err := s.memberRole(ctx, realmID, userID)
	if err != nil {
		return nil, err
	}

	resp := dto.NewRealmResponse(realm, role)
	if role == "" {
		// Non-members only see what they need to decide whether to join.
		resp.Description = nil
	}
	return &resp, nil
}

func (s *realmService) ListMyRealms(ctx context.Context, userID uuid.UUID) ([]dto.RealmResponse, error) {
	realms, err := s.repo.FindByMember(ctx, userID)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.RealmResponse, 0, len(realms))
	for i := range realms {
		responses = append(responses, dto.NewRealmResponse(&realms[i].Realm, realms[i].Role))
	}
	return responses, nil
}

func (s *realmService) UpdateRealm(ctx context.Context, userID, realmID uuid.UUID, req dto.UpdateRealmRequest) (*dto.RealmResponse, error) {
	member, err := s.RequireManager(ctx, realmID, userID)
	if err != nil {
		return nil, err
	}
	realm, err := s.findRealm(ctx, realmID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, apperror.Validation("realm name is required")
		}
		realm.Name = name
	}
	if req.Description != nil {
		realm.Description = req.Description
	}
	if req.Password != nil {
		if member.Role != entity.RoleOwner {
			return nil, fmt.Errorf("only the realm owner can change the password: %w", apperror.ErrPermissionDenied)
		}
		if *req.Password == "" {
			realm.PasswordHash = nil
		} else {
			hash, err := hashPassword(*req.Password)
			if err != nil {
				return nil, err
			}
			realm.PasswordHash = &hash
		}
	}

	if err := s.repo.Update(ctx, realm); err != nil {
		return nil, fmt.Errorf("failed to update realm: %w", err)
	}

	s.publisher.Publish(ctx, realtime.RealmEvent(realtime.RealmUpdated, realm.ID))
	resp := dto.NewRealmResponse(realm, member.Role)
	return &resp, nil
}

func (s *realmService) DeleteRealm(ctx context.Context, userID, realmID uuid.UUID) error {
	if _, err := s.requireOwner(ctx, realmID, userID); err != nil {
		return err
	}

	if err := s.repo.DeleteCascade(ctx, realmID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("realm not found: %w", apperror.ErrNotFound)
		}
		return fmt.Errorf("failed to delete realm: %w", err)
	}

	slog.Info("realm deleted", "realm_id", realmID, "by", userID)
	s.publisher.Publish(ctx, realtime.RealmEvent(realtime.RealmDeleted, realmID))
	return nil
}

func (s *realmService) Join(ctx context.Context, userID, realmID uuid.UUID, password string) (*dto.RealmResponse, error) {
	realm, err := s.findRealm(ctx, realmID)
	if err != nil {
		return nil, err
	}

	role, err := s.memberRole(ctx, realmID, userID)
	if err != nil {
		return nil, err
	}
	if role != "" {
		resp := dto.NewRealmResponse(realm, role)
		return &resp, nil
	}

	if realm.HasPassword() {
		action := "join:" + realmID.String()
		allowed, err := ratelimiter.CheckAndSet(ctx, s.redisClient, userID, action, s.joinRateLimit)
		if err != nil {
			slog.Warn("join rate limit check failed", "error", err)
		} else if !allowed {
			return nil, ratelimiter.Limited(ctx, s.redisClient, userID, action, "join attempts")
		}

		if !checkPassword(*realm.PasswordHash, password) {
			return nil, fmt.Errorf("incorrect realm password: %w", apperror.ErrUnauthorized)
		}
		if err := ratelimiter.Clear(ctx, s.redisClient, userID, action); err != nil {
			slog.Warn("failed to clear join rate limit", "realm_id", realmID, "user_id", userID, "error", err)
		}
	}

	added, err := s.repo.AddMember(ctx, &entity.RealmMember{RealmID: realmID, UserID: userID, Role: entity.RoleMember})
	if err != nil {
		return nil, fmt.Errorf("failed to join realm: %w", err)
	}
	if added {
		s.publisher.Publish(ctx, realtime.RealmEvent(realtime.RealmUpdated, realmID))
	}

	resp := dto.NewRealmResponse(realm, entity.RoleMember)
	return &resp, nil
}

func (s *realmService) Leave(ctx context.Context, userID, realmID uuid.UUID) error {
	realm, err := s.findRealm(ctx, realmID)
	if err != nil {
		return err
	}
	if realm.OwnerID == userID {
		return apperror.Conflict("the realm owner cannot leave; transfer ownership first")
	}

	removed, err := s.repo.RemoveMember(ctx, realmID, userID)
	if err != nil {
		return fmt.Errorf("failed to leave realm: %w", err)
	}
	if !removed {
		return fmt.Errorf("not a member of this realm: %w", apperror.ErrNotFound)
	}

	s.publisher.Publish(ctx, realtime.RealmEvent(realtime.RealmUpdated, realmID))
	return nil
}

func (s *realmService) TransferOwnership(ctx context.Context, userID, realmID, newOwnerID uuid.UUID) error {
	if _, err := s.requireOwner(ctx, realmID, userID); err != nil {
		return err
	}
	if newOwnerID == userID {
		return apperror.Validation("you already own this realm")
	}

	if err := s.repo.TransferOwnership(ctx, realmID, userID, newOwnerID); err != nil {
		if errors.Is(err, repository.ErrNotMember) {
			return apperror.Validation("new owner must already be a member of the realm")
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("realm not found: %w", apperror.ErrNotFound)
		}
		return fmt.Errorf("failed to transfer ownership: %w", err)
	}

	slog.Info("realm ownership transferred", "realm_id", realmID, "from", userID, "to", newOwnerID)
	s.publisher.Publish(ctx, realtime.RealmEvent(realtime.RealmUpdated, realmID))
	return nil
}

func (s *realmService) ListMembers(ctx context.Context, userID, realmID uuid.UUID) ([]dto.MemberResponse, error) {
	if _, err := s.RequireMember(ctx, realmID, userID); err != nil {
		return nil, err
	}

	members, err := s.repo.ListMembers(ctx, realmID)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.MemberResponse, 0, len(members))
	for _, m := range members {
		resp := dto.MemberResponse{UserID: m.UserID, Role: m.Role, JoinedAt: m.CreatedAt}
		if m.User != nil {
			resp.DisplayName = m.User.DisplayName
			resp.AvatarURL = m.User.AvatarURL
		}
		responses = append(responses, resp)
	}
	return responses, nil
}

func (s *realmService) UpdateMemberRole(ctx context.Context, userID, realmID, targetID uuid.UUID, role entity.MemberRole) error {
	if _, err := s.requireOwner(ctx, realmID, userID); err != nil {
		return err
	}
	if role != entity.RoleAdmin && role != entity.RoleMember {
		return apperror.Validation("role must be admin or member; use transfer to change the owner")
	}
	if targetID == userID {
		return apperror.Validation("the owner's role changes only through ownership transfer")
	}

	if err := s.repo.UpdateMemberRole(ctx, realmID, targetID, role); err != nil {
		if errors.Is(err, repository.ErrNotMember) {
			return fmt.Errorf("member not found: %w", apperror.ErrNotFound)
		}
		return err
	}

	s.publisher.Publish(ctx, realtime.RealmEvent(realtime.RealmUpdated, realmID))
	return nil
}

func (s *realmService) KickMember(ctx context.Context, userID, realmID, targetID uuid.UUID) error {
	actor, err := s.RequireManager(ctx, realmID, userID)
	if err != nil {
		return err
	}
	if targetID == userID {
		return apperror.Validation("use leave to remove yourself")
	}

	target, err := s.repo.FindMember(ctx, realmID, targetID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("member not found: %w", apperror.ErrNotFound)
	}
	if err != nil {
		return err
	}

	switch {
	case target.Role == entity.RoleOwner:
		return apperror.Conflict("the realm owner cannot be removed")
	case target.Role == entity.RoleAdmin && actor.Role != entity.RoleOwner:
		return fmt.Errorf("only the owner can remove an admin: %w", apperror.ErrPermissionDenied)
	}

	if _, err := s.repo.RemoveMember(ctx, realmID, targetID); err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}

	s.publisher.Publish(ctx, realtime.RealmEvent(realtime.RealmUpdated, realmID))
	return nil
}

func (s *realmService) SetIcon(ctx context.Context, userID, realmID uuid.UUID, input IconInput) (*dto.RealmResponse, error) {
	member, err := s.RequireManager(ctx, realmID, userID)
	if err != nil {
		return nil, err
	}
	realm, err := s.findRealm(ctx, realmID)
	if err != nil {
		return nil, err
	}

	uploaded, err := s.images.Upload(ctx, imageService.UploadInput{
		UserID:   userID,
		RealmID:  &realmID,
		File:     input.File,
		FileName: input.FileName,
		Crop:     input.Crop,
		Format:   input.Format,
	})
	if err != nil {
		return nil, err
	}

	oldKey := realm.IconKey
	realm.IconKey = &uploaded.Key
	realm.IconURL = &uploaded.URL
	if err := s.repo.Update(ctx, realm); err != nil {
		s.release(ctx, &uploaded.Key)
		return nil, fmt.Errorf("failed to update realm icon: %w", err)
	}
	s.release(ctx, oldKey)

	s.publisher.Publish(ctx, realtime.RealmEvent(realtime.RealmUpdated, realmID))
	resp := dto.NewRealmResponse(realm, member.Role)
	return &resp, nil
}

func (s *realmService) RemoveIcon(ctx context.Context, userID, realmID uuid.UUID) (*dto.RealmResponse, error) {
	member, err := s.RequireManager(ctx, realmID, userID)
	if err != nil {
		return nil, err
	}
	realm, err := s.findRealm(ctx, realmID)
	if err != nil {
		return nil, err
	}

	resp := dto.NewRealmResponse(realm, member.Role)
	if realm.IconKey == nil {
		return &resp, nil
	}

	oldKey := realm.IconKey
	realm.IconKey = nil
	realm.IconURL = nil
	if err := s.repo.Update(ctx, realm); err != nil {
		return nil, fmt.Errorf("failed to remove realm icon: %w", err)
	}
	s.release(ctx, oldKey)

	s.publisher.Publish(ctx, realtime.RealmEvent(realtime.RealmUpdated, realmID))
	resp = dto.NewRealmResponse(realm, member.Role)
	return &resp, nil
}

func (s *realmService) release(ctx context.Context, key *string) {
	if key == nil || s.images == nil {
		return
	}
	if err := s.images.Release(ctx, *key); err != nil {
		slog.Warn("failed to release image", "key", *key, "error", err)
	}
}

func hashPassword(password string) (string, error) {
	if len(password) > 72 {
		return "", apperror.Validation("realm password must be at most 72 bytes")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
