package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(sub *Subscription) []Event {
	var out []Event
	for {
		select {
		case evt, ok := <-sub.C:
			if !ok {
				return out
			}
			out = append(out, evt)
		default:
			return out
		}
	}
}

func TestBusDeliversInPublicationOrderPerRealm(t *testing.T) {
	bus := NewBus(nil, 16)
	realm := uuid.New()
	char := uuid.New()

	sub := bus.Subscribe(realm)
	defer bus.Unsubscribe(sub)

	ctx := context.Background()
	bus.Publish(ctx, CharacterEvent(CharacterCreated, realm, char))
	bus.Publish(ctx, CharacterEvent(RatingUpdated, realm, char))
	bus.Publish(ctx, CharacterEvent(RatingDeleted, realm, char))

	got := drain(sub)
	require.Len(t, got, 3)
	assert.Equal(t, CharacterCreated, got[0].Type)
	assert.Equal(t, RatingUpdated, got[1].Type)
	assert.Equal(t, RatingDeleted, got[2].Type)
}

func TestBusScopesSubscribersToTheirRealm(t *testing.T) {
	bus := NewBus(nil, 16)
	realmA, realmB := uuid.New(), uuid.New()

	subA := bus.Subscribe(realmA)
	subB := bus.Subscribe(realmB)
	defer bus.Unsubscribe(subA)
	defer bus.Unsubscribe(subB)

	bus.Publish(context.Background(), RealmEvent(RealmUpdated, realmA))

	assert.Len(t, drain(subA), 1)
	assert.Empty(t, drain(subB))
}

func TestBusHasNoReplayForLateSubscribers(t *testing.T) {
	bus := NewBus(nil, 16)
	realm := uuid.New()

	bus.Publish(context.Background(), RealmEvent(RealmUpdated, realm))

	sub := bus.Subscribe(realm)
	defer bus.Unsubscribe(sub)
	assert.Empty(t, drain(sub))
}

func TestBusUnsubscribeClosesChannelAndIsIdempotent(t *testing.T) {
	bus := NewBus(nil, 4)
	realm := uuid.New()

	sub := bus.Subscribe(realm)
	assert.Equal(t, 1, bus.SubscriberCount(realm))

	bus.Unsubscribe(sub)
	bus.Unsubscribe(sub)

	_, ok := <-sub.C
	assert.False(t, ok)
	assert.Equal(t, 0, bus.SubscriberCount(realm))

	// publishing to a realm with no listeners is a no-op
	bus.Publish(context.Background(), RealmEvent(RealmUpdated, realm))
}

func TestBusDropsStalledSubscriber(t *testing.T) {
	bus := NewBus(nil, 2)
	realm := uuid.New()

	stalled := bus.Subscribe(realm)
	healthy := bus.Subscribe(realm)
	defer bus.Unsubscribe(healthy)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		bus.Publish(ctx, RealmEvent(RealmUpdated, realm))
		drain(healthy)
	}
	// stalled buffer is full now; the next publish removes it
	bus.Publish(ctx, RealmEvent(RealmUpdated, realm))

	assert.Equal(t, 1, bus.SubscriberCount(realm))
	assert.Len(t, drain(stalled), 2)
	_, ok := <-stalled.C
	assert.False(t, ok)
	assert.Len(t, drain(healthy), 1)
}

func TestBusCloseEndsSubscriptions(t *testing.T) {
	bus := NewBus(nil, 4)
	realm := uuid.New()
	sub := bus.Subscribe(realm)

	bus.Close()

	_, ok := <-sub.C
	assert.False(t, ok)

	late := bus.Subscribe(realm)
	_, ok = <-late.C
	assert.False(t, ok)
}

func TestBusHandleRelayedSkipsOwnOrigin(t *testing.T) {
	bus := NewBus(nil, 4)
	realm := uuid.New()
	sub := bus.Subscribe(realm)
	defer bus.Unsubscribe(sub)

	own, err := json.Marshal(envelope{Origin: bus.instanceID, Event: RealmEvent(RealmUpdated, realm)})
	require.NoError(t, err)
	bus.handleRelayed(channelPrefix+realm.String(), string(own))
	assert.Empty(t, drain(sub))

	foreign, err := json.Marshal(envelope{Origin: "other", Event: RealmEvent(TraitCreated, realm)})
	require.NoError(t, err)
	bus.handleRelayed(channelPrefix+realm.String(), string(foreign))

	got := drain(sub)
	require.Len(t, got, 1)
	assert.Equal(t, TraitCreated, got[0].Type)

	bus.handleRelayed(channelPrefix+uuid.NewString(), string(foreign))
	bus.handleRelayed(channelPrefix+realm.String(), "{not json")
	assert.Empty(t, drain(sub))

	for _, evt := range []Event{
		{Type: "realm.created", RealmID: realm},
		RealmEvent(RatingUpdated, realm),
		CharacterEvent(TraitDeleted, realm, uuid.New()),
	} {
		bad, err := json.Marshal(envelope{Origin: "other", Event: evt})
		require.NoError(t, err)
		bus.handleRelayed(channelPrefix+realm.String(), string(bad))
	}
	assert.Empty(t, drain(sub))
}

func TestEventValid(t *testing.T) {
	realm, char := uuid.New(), uuid.New()

	assert.True(t, RealmEvent(RealmDeleted, realm).Valid())
	assert.True(t, CharacterEvent(CharacterImageUpdated, realm, char).Valid())
	assert.False(t, RealmEvent(CharacterDeleted, realm).Valid())
	assert.False(t, CharacterEvent(RealmUpdated, realm, char).Valid())
	assert.False(t, RealmEvent(RealmUpdated, uuid.Nil).Valid())
	assert.False(t, Event{Type: "realm.renamed", RealmID: realm}.Valid())
}

func TestRelayWithoutRedisReturnsImmediately(t *testing.T) {
	assert.NoError(t, NewBus(nil, 1).Relay(context.Background()))
}

func TestEventJSONShape(t *testing.T) {
	realm := uuid.MustParse("0190a6d4-0000-7000-8000-000000000001")
	char := uuid.MustParse("0190a6d4-0000-7000-8000-000000000002")

	b, err := json.Marshal(CharacterEvent(RatingUpdated, realm, char))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"rating.updated","realmId":"`+realm.String()+`","characterId":"`+char.String()+`"}`, string(b))

	b, err = json.Marshal(RealmEvent(RealmDeleted, realm))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"realm.deleted","realmId":"`+realm.String()+`"}`, string(b))
}
