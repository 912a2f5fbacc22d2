// Package testutil holds fixtures shared by the service tests.
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"anoa.com/realmkeeper/internal/bootstrap"
	"anoa.com/realmkeeper/internal/entity"
	realtime "anoa.com/realmkeeper/internal/modules/realtime/service"
	"anoa.com/realmkeeper/pkg/database"
	"anoa.com/realmkeeper/pkg/storage"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// NewDB opens a migrated sqlite database in a temp dir.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "test.db"), true)
	require.NoError(t, err)
	require.NoError(t, bootstrap.Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func CreateUser(t *testing.T, db *gorm.DB, name string) *entity.User {
	t.Helper()
	user := &entity.User{ExternalID: "test:" + name, DisplayName: name}
	require.NoError(t, db.Create(user).Error)
	return user
}

// Recorder is a Publisher that keeps every event it receives.
type Recorder struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (r *Recorder) Publish(_ context.Context, evt realtime.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *Recorder) Events() []realtime.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]realtime.Event(nil), r.events...)
}

func (r *Recorder) Types() []realtime.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]realtime.EventType, len(r.events))
	for i, e := range r.events {
		types[i] = e.Type
	}
	return types
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// FakeStorage is an in-memory ImageStorage. Every upload reports the
// configured dimensions.
type FakeStorage struct {
	mu      sync.Mutex
	Width   int
	Height  int
	Objects map[string][]byte
	Deleted []string
	seq     int
}

func NewFakeStorage() *FakeStorage {
	return &FakeStorage{Width: 1000, Height: 500, Objects: map[string][]byte{}}
}

func (s *FakeStorage) UploadImage(_ context.Context, r io.Reader, folder, fileName string) (*storage.UploadedImage, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	key := fmt.Sprintf("%s/%d-%s", folder, s.seq, strings.TrimSuffix(fileName, filepath.Ext(fileName)))
	s.Objects[key] = buf.Bytes()
	return &storage.UploadedImage{
		Key:    key,
		URL:    "https://img.test/" + key,
		Width:  s.Width,
		Height: s.Height,
		Format: strings.TrimPrefix(filepath.Ext(fileName), "."),
	}, nil
}

func (s *FakeStorage) TransformURL(key string, t storage.Transform) (string, error) {
	return "https://img.test/" + t.String() + "/" + key, nil
}

func (s *FakeStorage) DeleteImage(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.Objects, key)
	s.Deleted = append(s.Deleted, key)
	return nil
}

func (s *FakeStorage) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.Objects[key]
	return ok
}
