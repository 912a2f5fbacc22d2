package service

import (
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"anoa.com/realmkeeper/internal/entity"
	"github.com/google/uuid"
	"github.com/meilisearch/meilisearch-go"
	"github.com/microcosm-cc/bluemonday"
)

const characterIndex = "characters"

// CharacterIndex keeps a full-text index of characters per realm.
type CharacterIndex interface {
	IndexCharacter(character *entity.Character) error
	DeleteCharacter(id uuid.UUID) error
	// Search returns matching character ids in relevance order.
	Search(realmID uuid.UUID, query string, limit int) ([]uuid.UUID, error)
}

type meiliCharacterIndex struct {
	client    meilisearch.ServiceManager
	sanitizer *bluemonday.Policy
}

// NewCharacterIndex returns a Meilisearch-backed index, or a no-op index when
// host is empty.
func NewCharacterIndex(host, apiKey string) CharacterIndex {
	if host == "" {
		slog.Info("meilisearch host not set, character search disabled")
		return noopIndex{}
	}
	if !strings.HasPrefix(host, "http") {
		host = "http://" + host + ":7700"
	}
	return NewMeiliCharacterIndex(meilisearch.New(host, meilisearch.WithAPIKey(apiKey)))
}

func NewMeiliCharacterIndex(client meilisearch.ServiceManager) CharacterIndex {
	s := &meiliCharacterIndex{
		client:    client,
		sanitizer: bluemonday.StrictPolicy(),
	}
	s.initIndex()
	return s
}

func (s *meiliCharacterIndex) initIndex() {
	filterable := []any{"realm_id", "nsfw"}
	if _, err := s.client.Index(characterIndex).UpdateFilterableAttributes(&filterable); err != nil {
		slog.Warn("failed to update characters filterable attributes", "error", err)
	}

	searchable := []string{"name", "gender", "notes"}
	if _, err := s.client.Index(characterIndex).UpdateSearchableAttributes(&searchable); err != nil {
		slog.Warn("failed to update characters searchable attributes", "error", err)
	}
}

type characterDoc struct {
	ID      string `json:"id"`
	RealmID string `json:"realm_id"`
	Name    string `json:"name"`
	Gender  string `json:"gender,omitempty"`
	Notes   string `json:"notes,omitempty"`
	NSFW    bool   `json:"nsfw"`
}

// cleanText turns stored note HTML into plain searchable text.
func (s *meiliCharacterIndex) cleanText(content string) string {
	content = strings.ReplaceAll(content, "</p>", " ")
	content = strings.ReplaceAll(content, "<br>", " ")
	content = strings.ReplaceAll(content, "</div>", " ")

	clean := html.UnescapeString(s.sanitizer.Sanitize(content))
	return strings.Join(strings.Fields(clean), " ")
}

func (s *meiliCharacterIndex) IndexCharacter(character *entity.Character) error {
	doc := characterDoc{
		ID:      character.ID.String(),
		RealmID: character.RealmID.String(),
		Name:    character.Name,
		NSFW:    character.NSFW,
	}
	if character.Gender != nil {
		doc.Gender = *character.Gender
	}
	if character.Notes != nil {
		doc.Notes = s.cleanText(*character.Notes)
	}

	pk := "id"
	task, err := s.client.Index(characterIndex).AddDocuments([]characterDoc{doc}, &pk)
	if err != nil {
		return err
	}
	slog.Debug("indexed character", "character_id", character.ID, "task_uid", task.TaskUID)
	return nil
}

func (s *meiliCharacterIndex) DeleteCharacter(id uuid.UUID) error {
	_, err := s.client.Index(characterIndex).DeleteDocument(id.String())
	return err
}

func (s *meiliCharacterIndex) Search(realmID uuid.UUID, query string, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = 20
	}

	raw, err := s.client.Index(characterIndex).SearchRaw(query, &meilisearch.SearchRequest{
		Filter:               fmt.Sprintf("realm_id = %q", realmID.String()),
		Limit:                int64(limit),
		AttributesToRetrieve: []string{"id"},
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Hits []struct {
			ID string `json:"id"`
		} `json:"hits"`
	}
	if err := json.Unmarshal(*raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		if id, err := uuid.Parse(hit.ID); err == nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type noopIndex struct{}

func (noopIndex) IndexCharacter(*entity.Character) error { return nil }

func (noopIndex) DeleteCharacter(uuid.UUID) error { return nil }

func (noopIndex) Search(uuid.UUID, string, int) ([]uuid.UUID, error) { return nil, nil }
