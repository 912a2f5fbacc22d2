package service

import (
	"context"
	"errors"
	"testing"

	"anoa.com/realmkeeper/internal/entity"
	realmDto "anoa.com/realmkeeper/internal/modules/realm/dto"
	realmRepo "anoa.com/realmkeeper/internal/modules/realm/repository"
	realmService "anoa.com/realmkeeper/internal/modules/realm/service"
	realtime "anoa.com/realmkeeper/internal/modules/realtime/service"
	"anoa.com/realmkeeper/internal/modules/trait/dto"
	"anoa.com/realmkeeper/internal/modules/trait/repository"
	"anoa.com/realmkeeper/internal/testutil"
	"anoa.com/realmkeeper/pkg/apperror"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraitLifecycle(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	events := &testutil.Recorder{}
	realms := realmService.NewRealmService(realmRepo.NewRealmRepository(db), nil, events, nil, 0)
	svc := NewTraitService(repository.NewTraitRepository(db), realms, events)

	owner := testutil.CreateUser(t, db, "owner")
	member := testutil.CreateUser(t, db, "member")
	stranger := testutil.CreateUser(t, db, "stranger")
	realm, err := realms.CreateRealm(ctx, owner.ID, realmDto.CreateRealmRequest{Name: "R"})
	require.NoError(t, err)
	_, err = realms.Join(ctx, member.ID, realm.ID, "")
	require.NoError(t, err)
	events.Reset()

	_, err = svc.CreateTrait(ctx, member.ID, realm.ID, dto.CreateTraitRequest{Name: "Wit"})
	assert.True(t, errors.Is(err, apperror.ErrPermissionDenied))

	strength, err := svc.CreateTrait(ctx, owner.ID, realm.ID, dto.CreateTraitRequest{Name: " Strength "})
	require.NoError(t, err)
	assert.Equal(t, "Strength", strength.Name)
	assert.Equal(t, entity.DisplayNumber, strength.DisplayMode)

	wit, err := svc.CreateTrait(ctx, owner.ID, realm.ID, dto.CreateTraitRequest{Name: "Wit", DisplayMode: entity.DisplayGrade})
	require.NoError(t, err)

	traits, err := svc.ListTraits(ctx, member.ID, realm.ID)
	require.NoError(t, err)
	require.Len(t, traits, 2)
	assert.Equal(t, strength.ID, traits[0].ID)
	assert.Equal(t, wit.ID, traits[1].ID)

	_, err = svc.ListTraits(ctx, stranger.ID, realm.ID)
	assert.True(t, errors.Is(err, apperror.ErrPermissionDenied))

	mode := entity.DisplayGrade
	updated, err := svc.UpdateTrait(ctx, owner.ID, strength.ID, dto.UpdateTraitRequest{DisplayMode: &mode})
	require.NoError(t, err)
	assert.Equal(t, entity.DisplayGrade, updated.DisplayMode)

	char := &entity.Character{RealmID: realm.ID, UserID: member.ID, Name: "Kael"}
	require.NoError(t, db.Create(char).Error)
	require.NoError(t, db.Create(&entity.CharacterRating{CharacterID: char.ID, TraitID: wit.ID, Value: 3}).Error)
	require.NoError(t, db.Create(&entity.CharacterRating{CharacterID: char.ID, TraitID: strength.ID, Value: 9}).Error)

	require.NoError(t, svc.DeleteTrait(ctx, owner.ID, wit.ID))
	var ratings []entity.CharacterRating
	require.NoError(t, db.Find(&ratings).Error)
	require.Len(t, ratings, 1)
	assert.Equal(t, strength.ID, ratings[0].TraitID)

	err = svc.DeleteTrait(ctx, owner.ID, wit.ID)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
	err = svc.DeleteTrait(ctx, owner.ID, uuid.New())
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	assert.Equal(t, []realtime.EventType{
		realtime.TraitCreated, realtime.TraitCreated, realtime.TraitUpdated, realtime.TraitDeleted,
	}, events.Types())
	for _, e := range events.Events() {
		assert.Equal(t, realm.ID, e.RealmID)
		assert.Nil(t, e.CharacterID)
	}
}
