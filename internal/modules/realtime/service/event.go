package service

import (
	"context"
	"slices"

	"github.com/google/uuid"
)

type EventType string

const (
	RealmUpdated          EventType = "realm.updated"
	RealmDeleted          EventType = "realm.deleted"
	TraitCreated          EventType = "trait.created"
	TraitUpdated          EventType = "trait.updated"
	TraitDeleted          EventType = "trait.deleted"
	CharacterCreated      EventType = "character.created"
	CharacterUpdated      EventType = "character.updated"
	CharacterDeleted      EventType = "character.deleted"
	CharacterImageUpdated EventType = "character.image.updated"
	CharacterImageDeleted EventType = "character.image.deleted"
	RatingUpdated         EventType = "rating.updated"
	RatingDeleted         EventType = "rating.deleted"
)

// EventTypes lists every event type the bus carries.
var EventTypes = []EventType{
	RealmUpdated, RealmDeleted,
	TraitCreated, TraitUpdated, TraitDeleted,
	CharacterCreated, CharacterUpdated, CharacterDeleted,
	CharacterImageUpdated, CharacterImageDeleted,
	RatingUpdated, RatingDeleted,
}

// Event is a domain change notification. Field names are part of the
// client wire contract.
type Event struct {
	Type        EventType  `json:"type"`
	RealmID     uuid.UUID  `json:"realmId"`
	CharacterID *uuid.UUID `json:"characterId,omitempty"`
}

// IsCharacterScoped reports whether events of this type carry a character id.
func (t EventType) IsCharacterScoped() bool {
	switch t {
	case CharacterCreated, CharacterUpdated, CharacterDeleted,
		CharacterImageUpdated, CharacterImageDeleted,
		RatingUpdated, RatingDeleted:
		return true
	}
	return false
}

// Valid reports whether e has a known type and carries a character id
// exactly when its type is character-scoped.
func (e Event) Valid() bool {
	if !slices.Contains(EventTypes, e.Type) || e.RealmID == uuid.Nil {
		return false
	}
	return e.Type.IsCharacterScoped() == (e.CharacterID != nil)
}

func RealmEvent(t EventType, realmID uuid.UUID) Event {
	return Event{Type: t, RealmID: realmID}
}

func CharacterEvent(t EventType, realmID, characterID uuid.UUID) Event {
	return Event{Type: t, RealmID: realmID, CharacterID: &characterID}
}

// Publisher is what mutating services depend on.
type Publisher interface {
	Publish(ctx context.Context, evt Event)
}
