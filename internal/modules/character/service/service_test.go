package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"anoa.com/realmkeeper/internal/entity"
	"anoa.com/realmkeeper/internal/modules/character/dto"
	"anoa.com/realmkeeper/internal/modules/character/repository"
	imageRepo "anoa.com/realmkeeper/internal/modules/image/repository"
	imageService "anoa.com/realmkeeper/internal/modules/image/service"
	permissionRepo "anoa.com/realmkeeper/internal/modules/permission/repository"
	permissionService "anoa.com/realmkeeper/internal/modules/permission/service"
	realmDto "anoa.com/realmkeeper/internal/modules/realm/dto"
	realmRepo "anoa.com/realmkeeper/internal/modules/realm/repository"
	realmService "anoa.com/realmkeeper/internal/modules/realm/service"
	realtime "anoa.com/realmkeeper/internal/modules/realtime/service"
	"anoa.com/realmkeeper/internal/testutil"
	"anoa.com/realmkeeper/pkg/apperror"
	"anoa.com/realmkeeper/pkg/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// memoryIndex matches characters whose name contains the query.
type memoryIndex struct {
	docs map[uuid.UUID]entity.Character
}

func (m *memoryIndex) IndexCharacter(c *entity.Character) error {
	m.docs[c.ID] = *c
	return nil
}

func (m *memoryIndex) DeleteCharacter(id uuid.UUID) error {
	delete(m.docs, id)
	return nil
}

func (m *memoryIndex) Search(realmID uuid.UUID, query string, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for id, c := range m.docs {
		if c.RealmID == realmID && strings.Contains(strings.ToLower(c.Name), strings.ToLower(query)) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type fixture struct {
	db      *gorm.DB
	svc     CharacterService
	perms   permissionService.PermissionService
	events  *testutil.Recorder
	index   *memoryIndex
	realmID uuid.UUID
	owner   *entity.User
	creator *entity.User
	member  *entity.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db := testutil.NewDB(t)
	events := &testutil.Recorder{}
	images := imageService.NewImageService(imageRepo.NewImageRepository(db), testutil.NewFakeStorage(), "rk", time.Hour)

	realmRepository := realmRepo.NewRealmRepository(db)
	realms := realmService.NewRealmService(realmRepository, images, events, nil, 0)
	characters := repository.NewCharacterRepository(db)
	perms := permissionRepo.NewPermissionRepository(db)
	evaluator := permissionService.NewEvaluator(characters, realmRepository, perms)
	index := &memoryIndex{docs: map[uuid.UUID]entity.Character{}}

	f := &fixture{
		db:      db,
		svc:     NewCharacterService(characters, realms, evaluator, images, index, events),
		perms:   permissionService.NewPermissionService(perms, characters, realmRepository, evaluator, events),
		events:  events,
		index:   index,
		owner:   testutil.CreateUser(t, db, "owner"),
		creator: testutil.CreateUser(t, db, "creator"),
		member:  testutil.CreateUser(t, db, "member"),
	}

	realm, err := realms.CreateRealm(ctx, f.owner.ID, realmDto.CreateRealmRequest{Name: "R"})
	require.NoError(t, err)
	f.realmID = realm.ID
	for _, u := range []uuid.UUID{f.creator.ID, f.member.ID} {
		_, err := realms.Join(ctx, u, realm.ID, "")
		require.NoError(t, err)
	}
	events.Reset()
	return f
}

func (f *fixture) create(t *testing.T, name string) *entity.Character {
	t.Helper()
	c, err := f.svc.CreateCharacter(context.Background(), f.creator.ID, f.realmID, dto.CreateCharacterRequest{Name: name})
	require.NoError(t, err)
	return c
}

func TestCreateCharacterSanitizesNotes(t *testing.T) {
	f := newFixture(t)
	notes := `<p onclick="x()">Scar on <b>left</b> cheek</p><script>alert(1)</script>`
	gender := "  "

	c, err := f.svc.CreateCharacter(context.Background(), f.creator.ID, f.realmID, dto.CreateCharacterRequest{
		Name: "Kael", Notes: &notes, Gender: &gender,
	})
	require.NoError(t, err)
	require.NotNil(t, c.Notes)
	assert.Equal(t, "<p>Scar on <b>left</b> cheek</p>", *c.Notes)
	assert.Nil(t, c.Gender)
	assert.Equal(t, f.creator.ID, c.UserID)
	assert.Equal(t, []realtime.Event{realtime.CharacterEvent(realtime.CharacterCreated, f.realmID, c.ID)}, f.events.Events())
	assert.Contains(t, f.index.docs, c.ID)
}

func TestCreateCharacterRequiresMembership(t *testing.T) {
	f := newFixture(t)
	stranger := testutil.CreateUser(t, f.db, "stranger")

	_, err := f.svc.CreateCharacter(context.Background(), stranger.ID, f.realmID, dto.CreateCharacterRequest{Name: "X"})
	assert.True(t, errors.Is(err, apperror.ErrPermissionDenied))

	_, err = f.svc.CreateCharacter(context.Background(), f.member.ID, uuid.New(), dto.CreateCharacterRequest{Name: "X"})
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestUpdateCharacterHonoursProfileScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.create(t, "Kael")
	name := "Kael the Bold"

	_, err := f.svc.UpdateCharacter(ctx, f.member.ID, c.ID, dto.UpdateCharacterRequest{Name: &name})
	assert.True(t, errors.Is(err, apperror.ErrPermissionDenied))

	require.NoError(t, f.perms.Grant(ctx, f.creator.ID, c.ID, f.member.ID, entity.ScopeProfile))
	f.events.Reset()

	nsfw := true
	updated, err := f.svc.UpdateCharacter(ctx, f.member.ID, c.ID, dto.UpdateCharacterRequest{Name: &name, NSFW: &nsfw})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)
	assert.True(t, updated.NSFW)
	assert.Equal(t, []realtime.EventType{realtime.CharacterUpdated}, f.events.Types())

	// The profile grant does not extend to deletion.
	err = f.svc.DeleteCharacter(ctx, f.member.ID, c.ID)
	assert.True(t, errors.Is(err, apperror.ErrPermissionDenied))
}

func TestListCharactersHidesNSFWByDefault(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, "Brann")
	hidden := f.create(t, "Alys")
	nsfw := true
	_, err := f.svc.UpdateCharacter(ctx, f.creator.ID, hidden.ID, dto.UpdateCharacterRequest{NSFW: &nsfw})
	require.NoError(t, err)

	list, err := f.svc.ListCharacters(ctx, f.member.ID, f.realmID, false)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Brann", list[0].Name)

	list, err = f.svc.ListCharacters(ctx, f.member.ID, f.realmID, true)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Alys", list[0].Name)
}

func TestDeleteCharacterCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.create(t, "Kael")
	trait := &entity.Trait{RealmID: f.realmID, Name: "Str", DisplayMode: entity.DisplayNumber}
	require.NoError(t, f.db.Create(trait).Error)
	require.NoError(t, f.db.Create(&entity.CharacterRating{CharacterID: c.ID, TraitID: trait.ID, Value: 4}).Error)
	require.NoError(t, f.perms.Grant(ctx, f.creator.ID, c.ID, f.member.ID, entity.ScopeRatings))
	_, err := f.svc.SetImage(ctx, f.creator.ID, c.ID, ImageInput{File: strings.NewReader("img"), FileName: "k.png"})
	require.NoError(t, err)
	f.events.Reset()

	require.NoError(t, f.svc.DeleteCharacter(ctx, f.owner.ID, c.ID))
	assert.Equal(t, []realtime.Event{realtime.CharacterEvent(realtime.CharacterDeleted, f.realmID, c.ID)}, f.events.Events())
	assert.NotContains(t, f.index.docs, c.ID)

	for _, model := range []any{&entity.Character{}, &entity.CharacterRating{}, &entity.CharacterPermission{}} {
		var n int64
		require.NoError(t, f.db.Model(model).Count(&n).Error)
		assert.Zero(t, n, "%T rows left", model)
	}
	var attached int64
	require.NoError(t, f.db.Model(&entity.ImageAsset{}).Where("character_id IS NOT NULL").Count(&attached).Error)
	assert.Zero(t, attached)

	_, err = f.svc.GetCharacter(ctx, f.owner.ID, c.ID)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestCharacterImage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.create(t, "Kael")

	_, err := f.svc.SetImage(ctx, f.member.ID, c.ID, ImageInput{File: strings.NewReader("x"), FileName: "x.png"})
	assert.True(t, errors.Is(err, apperror.ErrPermissionDenied))

	require.NoError(t, f.perms.Grant(ctx, f.creator.ID, c.ID, f.member.ID, entity.ScopeImage))
	f.events.Reset()

	crop := &storage.CropRegion{X: 0, Y: 0, Width: 50, Height: 100}
	updated, err := f.svc.SetImage(ctx, f.member.ID, c.ID, ImageInput{File: strings.NewReader("x"), FileName: "x.png", Crop: crop, Format: "png"})
	require.NoError(t, err)
	require.NotNil(t, updated.ImageURL)
	assert.Contains(t, *updated.ImageURL, "c_crop,x_0,y_0,w_500,h_500/f_png")
	require.NotNil(t, updated.Crop)
	assert.Equal(t, *crop, updated.Crop.Data())

	// The image grant does not reveal the profile.
	_, err = f.svc.GetCharacter(ctx, f.member.ID, c.ID)
	assert.True(t, errors.Is(err, apperror.ErrPermissionDenied))

	stored, err := f.svc.GetCharacter(ctx, f.creator.ID, c.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Crop)
	assert.Equal(t, 50.0, stored.Crop.Data().Width)

	removed, err := f.svc.RemoveImage(ctx, f.member.ID, c.ID)
	require.NoError(t, err)
	assert.Nil(t, removed.ImageURL)
	assert.Nil(t, removed.Crop)

	// Removing again changes nothing and publishes nothing.
	_, err = f.svc.RemoveImage(ctx, f.member.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []realtime.EventType{realtime.CharacterImageUpdated, realtime.CharacterImageDeleted}, f.events.Types())
}

func TestSearchCharacters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	kael := f.create(t, "Kael")
	f.create(t, "Brann")

	found, err := f.svc.SearchCharacters(ctx, f.member.ID, f.realmID, dto.SearchCharactersQuery{Query: "kae"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, kael.ID, found[0].ID)

	stranger := testutil.CreateUser(t, f.db, "stranger")
	_, err = f.svc.SearchCharacters(ctx, stranger.ID, f.realmID, dto.SearchCharactersQuery{Query: "kae"})
	assert.True(t, errors.Is(err, apperror.ErrPermissionDenied))
}
