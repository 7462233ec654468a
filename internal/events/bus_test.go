package events

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/vmunix/animarr/internal/migrations"
)

func hashedEvent(videoID int64) *FileHashed {
	return &FileHashed{
		BaseEvent: NewBaseEvent(EventFileHashed, EntityVideo, videoID),
		VideoID:   videoID,
		ED2K:      "aaaa",
		SizeBytes: 1000,
	}
}

func TestBus_PublishToTypedSubscriber(t *testing.T) {
	bus := NewBus(nil, nil)
	defer func() { _ = bus.Close() }()

	ch := bus.Subscribe(EventFileHashed, 4)
	require.NoError(t, bus.Publish(context.Background(), hashedEvent(1)))

	select {
	case e := <-ch:
		assert.Equal(t, EventFileHashed, e.EventType())
		assert.Equal(t, int64(1), e.EntityID())
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestBus_TypedSubscriberIgnoresOtherTypes(t *testing.T) {
	bus := NewBus(nil, nil)
	defer func() { _ = bus.Close() }()

	ch := bus.Subscribe(EventReleaseSaved, 4)
	require.NoError(t, bus.Publish(context.Background(), hashedEvent(1)))

	select {
	case e := <-ch:
		t.Fatalf("unexpected event %s", e.EventType())
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBus_SubscribeAllSeesEverything(t *testing.T) {
	bus := NewBus(nil, nil)
	defer func() { _ = bus.Close() }()

	ch := bus.SubscribeAll(4)
	require.NoError(t, bus.Publish(context.Background(), hashedEvent(1)))
	require.NoError(t, bus.Publish(context.Background(), &ReleaseSaved{
		BaseEvent: NewBaseEvent(EventReleaseSaved, EntityVideo, 1),
	}))

	types := []string{(<-ch).EventType(), (<-ch).EventType()}
	assert.Equal(t, []string{EventFileHashed, EventReleaseSaved}, types)
}

func TestBus_FullSubscriberDropsInsteadOfBlocking(t *testing.T) {
	bus := NewBus(nil, nil)
	defer func() { _ = bus.Close() }()

	ch := bus.Subscribe(EventFileHashed, 1)
	require.NoError(t, bus.Publish(context.Background(), hashedEvent(1)))

	done := make(chan struct{})
	go func() {
		_ = bus.Publish(context.Background(), hashedEvent(2)) // buffer full, dropped
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}

	e := <-ch
	assert.Equal(t, int64(1), e.EntityID())
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(nil, nil)
	defer func() { _ = bus.Close() }()

	ch := bus.Subscribe(EventFileHashed, 4)
	bus.Unsubscribe(ch)

	_, open := <-ch
	assert.False(t, open, "unsubscribed channel closed")
	require.NoError(t, bus.Publish(context.Background(), hashedEvent(1)))
}

func TestBus_CloseIsIdempotent(t *testing.T) {
	bus := NewBus(nil, nil)
	ch := bus.SubscribeAll(1)

	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	_, open := <-ch
	assert.False(t, open)
	assert.NoError(t, bus.Publish(context.Background(), hashedEvent(1)), "publish after close is a no-op")
}

func TestEventLog_AppendAndReplay(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:?_foreign_keys=on")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(migrations.InitialSQL)
	require.NoError(t, err)

	log := NewEventLog(db)
	bus := NewBus(log, nil)
	defer func() { _ = bus.Close() }()

	require.NoError(t, bus.Publish(context.Background(), hashedEvent(7)))
	require.NoError(t, bus.Publish(context.Background(), &FileRelocated{
		BaseEvent: NewBaseEvent(EventFileRelocated, EntityVideo, 7),
		VideoID:   7,
		NewPath:   "Show/ep.mkv",
	}))
	require.NoError(t, bus.Publish(context.Background(), hashedEvent(8)))

	got, err := log.ForEntity(EntityVideo, 7)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, EventFileHashed, got[0].EventType)
	assert.Equal(t, EventFileRelocated, got[1].EventType)
	assert.Contains(t, got[1].Payload, `"new_path":"Show/ep.mkv"`)

	other, err := log.ForEntity(EntityVideo, 99)
	require.NoError(t, err)
	assert.Empty(t, other)
}
