package service

import (
	"strings"

	"github.com/google/uuid"
)

// QueryKey identifies a cached client view, e.g. ["ratings", "<character id>"].
type QueryKey []string

func (k QueryKey) String() string {
	return strings.Join(k, ":")
}

func RealmListKey() QueryKey                  { return QueryKey{"realms"} }
func RealmKey(id uuid.UUID) QueryKey          { return QueryKey{"realm", id.String()} }
func TraitListKey(realmID uuid.UUID) QueryKey { return QueryKey{"traits", realmID.String()} }
func CharacterListKey(realmID uuid.UUID) QueryKey {
	return QueryKey{"characters", realmID.String()}
}
func CharacterKey(id uuid.UUID) QueryKey  { return QueryKey{"character", id.String()} }
func RatingListKey(id uuid.UUID) QueryKey { return QueryKey{"ratings", id.String()} }

// Invalidations returns the cached views an event makes stale. Client caches
// depend on this exact mapping.
func Invalidations(evt Event) []QueryKey {
	switch evt.Type {
	case RealmUpdated:
		return []QueryKey{RealmKey(evt.RealmID)}
	case RealmDeleted:
		return []QueryKey{RealmListKey()}
	case TraitCreated, TraitUpdated, TraitDeleted:
		return []QueryKey{TraitListKey(evt.RealmID)}
	case CharacterCreated, CharacterDeleted:
		return []QueryKey{CharacterListKey(evt.RealmID)}
	case CharacterUpdated, CharacterImageUpdated, CharacterImageDeleted:
		if evt.CharacterID == nil {
			return []QueryKey{CharacterListKey(evt.RealmID)}
		}
		return []QueryKey{CharacterKey(*evt.CharacterID), CharacterListKey(evt.RealmID)}
	case RatingUpdated, RatingDeleted:
		if evt.CharacterID == nil {
			return nil
		}
		return []QueryKey{RatingListKey(*evt.CharacterID), CharacterKey(*evt.CharacterID)}
	default:
		return nil
	}
}

// QueryCache models a client-side query cache driven by the event stream.
type QueryCache struct {
	stale map[string]bool
}

func NewQueryCache() *QueryCache {
	return &QueryCache{stale: make(map[string]bool)}
}

// Apply marks every view invalidated by evt as stale.
func (c *QueryCache) Apply(evt Event) {
	for _, k := range Invalidations(evt) {
		c.stale[k.String()] = true
	}
}

func (c *QueryCache) IsStale(k QueryKey) bool {
	return c.stale[k.String()]
}

// Stale returns the stale keys in no particular order.
func (c *QueryCache) Stale() []string {
	out := make([]string, 0, len(c.stale))
	for k := range c.stale {
		out = append(out, k)
	}
	return out
}

// Refetched clears the stale mark once the view has been reloaded.
func (c *QueryCache) Refetched(k QueryKey) {
	delete(c.stale, k.String())
}
