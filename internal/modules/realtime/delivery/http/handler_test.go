package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"anoa.com/realmkeeper/internal/modules/realm/dto"
	realmRepo "anoa.com/realmkeeper/internal/modules/realm/repository"
	realmService "anoa.com/realmkeeper/internal/modules/realm/service"
	realtime "anoa.com/realmkeeper/internal/modules/realtime/service"
	"anoa.com/realmkeeper/internal/testutil"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	server  *httptest.Server
	bus     *realtime.Bus
	realms  realmService.RealmService
	realmID uuid.UUID
	owner   uuid.UUID
	member  uuid.UUID
	outside uuid.UUID
}

func setup(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	bus := realtime.NewBus(nil, 8)
	realms := realmService.NewRealmService(realmRepo.NewRealmRepository(db), nil, bus, nil, 0)

	owner := testutil.CreateUser(t, db, "owner")
	member := testutil.CreateUser(t, db, "member")
	outside := testutil.CreateUser(t, db, "outside")

	ctx := context.Background()
	realm, err := realms.CreateRealm(ctx, owner.ID, dto.CreateRealmRequest{Name: "Aetheria"})
	require.NoError(t, err)
	_, err = realms.Join(ctx, member.ID, realm.ID, "")
	require.NoError(t, err)

	h := NewEventsHandler(bus, realms, time.Hour, func(*http.Request) bool { return true })
	r := gin.New()
	api := r.Group("/api", func(c *gin.Context) {
		c.Set("user_id", c.GetHeader("X-Test-User"))
		c.Next()
	})
	api.GET("/realms/:realm_id/events", h.Stream)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &fixture{server: srv, bus: bus, realms: realms, realmID: realm.ID, owner: owner.ID, member: member.ID, outside: outside.ID}
}

func (f *fixture) open(t *testing.T, ctx context.Context, user uuid.UUID) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.server.URL+"/api/realms/"+f.realmID.String()+"/events", nil)
	require.NoError(t, err)
	req.Header.Set("X-Test-User", user.String())
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// nextMessage returns the data of the next "message" event on the stream.
func nextMessage(t *testing.T, reader *bufio.Reader) (Payload, bool) {
	t.Helper()
	var event string
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return Payload{}, false
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimPrefix(line, "event:")
		case strings.HasPrefix(line, "data:") && event == "message":
			var p Payload
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data:")), &p))
			return p, true
		}
	}
}

func TestStreamDeliversEventsWithInvalidations(t *testing.T) {
	f := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resp := f.open(t, ctx, f.member)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return f.bus.SubscriberCount(f.realmID) == 1 }, time.Second, 10*time.Millisecond)

	charID := uuid.New()
	f.bus.Publish(ctx, realtime.CharacterEvent(realtime.RatingUpdated, f.realmID, charID))

	reader := bufio.NewReader(resp.Body)
	p, ok := nextMessage(t, reader)
	require.True(t, ok)
	assert.Equal(t, realtime.RatingUpdated, p.Type)
	assert.Equal(t, f.realmID, p.RealmID)
	require.NotNil(t, p.CharacterID)
	assert.Equal(t, charID, *p.CharacterID)
	assert.Equal(t, realtime.Invalidations(p.Event), p.Invalidate)

	cancel()
	assert.Eventually(t, func() bool { return f.bus.SubscriberCount(f.realmID) == 0 }, time.Second, 10*time.Millisecond)
}

func TestStreamRejectsNonMembers(t *testing.T) {
	f := setup(t)

	resp := f.open(t, context.Background(), f.outside)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, f.bus.SubscriberCount(f.realmID))
}

func TestStreamUnknownRealm(t *testing.T) {
	f := setup(t)
	f.realmID = uuid.New()

	resp := f.open(t, context.Background(), f.owner)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStreamEndsWhenMemberIsKicked(t *testing.T) {
	f := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resp := f.open(t, ctx, f.member)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Eventually(t, func() bool { return f.bus.SubscriberCount(f.realmID) == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, f.realms.KickMember(ctx, f.owner, f.realmID, f.member))

	reader := bufio.NewReader(resp.Body)
	p, ok := nextMessage(t, reader)
	require.True(t, ok)
	assert.Equal(t, realtime.RealmUpdated, p.Type)

	_, ok = nextMessage(t, reader)
	assert.False(t, ok)
	assert.Eventually(t, func() bool { return f.bus.SubscriberCount(f.realmID) == 0 }, time.Second, 10*time.Millisecond)
}

func TestStreamEndsOnRealmDeleted(t *testing.T) {
	f := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resp := f.open(t, ctx, f.member)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Eventually(t, func() bool { return f.bus.SubscriberCount(f.realmID) == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, f.realms.DeleteRealm(ctx, f.owner, f.realmID))

	reader := bufio.NewReader(resp.Body)
	p, ok := nextMessage(t, reader)
	require.True(t, ok)
	assert.Equal(t, realtime.RealmDeleted, p.Type)

	_, ok = nextMessage(t, reader)
	assert.False(t, ok)
}
