package service

import (
	"testing"

	"anoa.com/realmkeeper/internal/entity"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanText(t *testing.T) {
	s := &meiliCharacterIndex{sanitizer: bluemonday.StrictPolicy()}

	got := s.cleanText("<p>Born in <b>Veyl</b></p><p>Fears &amp; hates fire</p><script>x()</script>")
	assert.Equal(t, "Born in Veyl Fears & hates fire", got)
}

func TestNoopIndex(t *testing.T) {
	idx := NewCharacterIndex("", "")

	require.NoError(t, idx.IndexCharacter(&entity.Character{ID: uuid.New()}))
	require.NoError(t, idx.DeleteCharacter(uuid.New()))
	ids, err := idx.Search(uuid.New(), "kael", 10)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
