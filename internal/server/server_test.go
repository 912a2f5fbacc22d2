package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"anoa.com/realmkeeper/internal/config"
	"anoa.com/realmkeeper/internal/entity"
	"anoa.com/realmkeeper/internal/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(env string) *config.Config {
	return &config.Config{
		AppEnv:                 env,
		AllowedOrigins:         []string{"http://localhost:3000"},
		CloudinaryUploadFolder: "rk",
		JWTSecret:              "test-secret",
		JWTTTL:                 time.Hour,
		EventBufferSize:        8,
		EventHeartbeat:         time.Minute,
		OrphanCleanupSchedule:  "@every 12h",
		OrphanMaxAge:           24 * time.Hour,
	}
}

func newTestServer(t *testing.T, env string) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srv, err := NewServer(testConfig(env), testutil.NewDB(t), nil)
	require.NoError(t, err)
	return srv.Handler()
}

type client struct {
	t       *testing.T
	handler http.Handler
	token   string
	userID  string
}

func (c *client) do(method, path string, body any, out any) int {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	if out != nil && rec.Code < 300 {
		require.NoError(c.t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

func login(t *testing.T, h http.Handler, externalID string) *client {
	t.Helper()
	c := &client{t: t, handler: h}
	var resp struct {
		AccessToken string `json:"access_token"`
		User        struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	code := c.do(http.MethodPost, "/api/auth/dev-login", gin.H{"external_id": externalID, "display_name": externalID}, &resp)
	require.Equal(t, http.StatusOK, code)
	require.NotEmpty(t, resp.AccessToken)
	c.token = resp.AccessToken
	c.userID = resp.User.ID
	return c
}

type idData struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

func TestHealthAndMetrics(t *testing.T) {
	h := newTestServer(t, "development")
	c := &client{t: t, handler: h}

	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/healthz", nil, nil))
	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/metrics", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, "/api/realms", nil, nil))
}

func TestDevLoginOnlyInDevelopment(t *testing.T) {
	h := newTestServer(t, "production")
	c := &client{t: t, handler: h}

	code := c.do(http.MethodPost, "/api/auth/dev-login", gin.H{"external_id": "x", "display_name": "x"}, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestRatingFlowThroughRouter(t *testing.T) {
	h := newTestServer(t, "development")
	owner := login(t, h, "dev:owner")
	guest := login(t, h, "dev:guest")

	var realm idData
	require.Equal(t, http.StatusCreated, owner.do(http.MethodPost, "/api/realms", gin.H{"name": "Aetheria"}, &realm))
	realmPath := "/api/realms/" + realm.Data.ID

	var trait idData
	require.Equal(t, http.StatusCreated, owner.do(http.MethodPost, realmPath+"/traits", gin.H{"name": "Strength", "display_mode": "grade"}, &trait))

	var character idData
	require.Equal(t, http.StatusCreated, owner.do(http.MethodPost, realmPath+"/characters", gin.H{"name": "Lyra"}, &character))
	charPath := "/api/characters/" + character.Data.ID

	require.Equal(t, http.StatusOK, owner.do(http.MethodPut, charPath+"/ratings/"+trait.Data.ID, gin.H{"value": 15}, nil))
	assert.Equal(t, http.StatusBadRequest, owner.do(http.MethodPut, charPath+"/ratings/"+trait.Data.ID, gin.H{"value": 21}, nil))

	var ratings struct {
		Data []struct {
			Value   int    `json:"value"`
			Display string `json:"display"`
		} `json:"data"`
	}
	require.Equal(t, http.StatusOK, owner.do(http.MethodGet, charPath+"/ratings", nil, &ratings))
	require.Len(t, ratings.Data, 1)
	assert.Equal(t, 15, ratings.Data[0].Value)
	assert.Equal(t, "A", ratings.Data[0].Display)

	// Outsiders are denied until they join.
	assert.Equal(t, http.StatusForbidden, guest.do(http.MethodGet, charPath+"/ratings", nil, nil))
	require.Equal(t, http.StatusOK, guest.do(http.MethodPost, realmPath+"/join", nil, nil))
	assert.Equal(t, http.StatusForbidden, guest.do(http.MethodGet, charPath+"/ratings", nil, nil))
	assert.Equal(t, http.StatusForbidden, guest.do(http.MethodPut, charPath+"/ratings/"+trait.Data.ID, gin.H{"value": 3}, nil))

	require.Equal(t, http.StatusCreated, owner.do(http.MethodPost, charPath+"/permissions", gin.H{"user_id": guest.userID, "scope": "ratings"}, nil))
	assert.Equal(t, http.StatusOK, guest.do(http.MethodGet, charPath+"/ratings", nil, nil))
	assert.Equal(t, http.StatusOK, guest.do(http.MethodPut, charPath+"/ratings/"+trait.Data.ID, gin.H{"value": 3}, nil))

	require.Equal(t, http.StatusOK, owner.do(http.MethodDelete, realmPath, nil, nil))
	assert.Equal(t, http.StatusNotFound, owner.do(http.MethodGet, charPath+"/ratings", nil, nil))
}

func TestRunJob(t *testing.T) {
	db := testutil.NewDB(t)
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, db.Create(&entity.ImageAsset{Key: "rk/characters/stale", URL: "https://img.test/stale", CreatedAt: old}).Error)
	require.NoError(t, db.Create(&entity.ImageAsset{Key: "rk/characters/fresh", URL: "https://img.test/fresh"}).Error)

	require.NoError(t, RunJob(context.Background(), testConfig("development"), db, "orphan-image-cleanup"))

	var keys []string
	require.NoError(t, db.Model(&entity.ImageAsset{}).Pluck("key", &keys).Error)
	assert.Equal(t, []string{"rk/characters/fresh"}, keys)

	assert.Error(t, RunJob(context.Background(), testConfig("development"), db, "reindex"))
}
