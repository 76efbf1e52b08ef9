package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"room_relay_service/internal/relay/domain"
)

func TestRoomUseCase_Join(t *testing.T) {
	ctx := context.Background()
	roomCode := "5821"

	mockStore := new(MockMessageStore)
	mockChannel := new(MockRoomChannel)

	var (
		mu    sync.Mutex
		calls []string
	)
	record := func(name string) func(mock.Arguments) {
		return func(mock.Arguments) {
			mu.Lock()
			calls = append(calls, name)
			mu.Unlock()
		}
	}

	mockChannel.On("Subscribe", mock.Anything, roomCode, mock.Anything).
		Run(record("subscribe")).Return(nil)
	mockChannel.On("Track", ctx, roomCode, mock.Anything).
		Run(record("track")).Return(nil)

	active := []domain.Message{{ID: "2", RoomCode: roomCode, Kind: domain.KindText, Content: "hi"}}
	mockStore.On("ListActive", ctx, roomCode, domain.DefaultListLimit).Return(active, nil)
	mockStore.On("DeleteExpired", mock.Anything, roomCode, mock.Anything).Return(nil).Maybe()

	uc := NewRoomUseCase(mockStore, mockChannel)
	session, msgs, err := uc.Join(ctx, roomCode, func(domain.Event) {})

	assert.NoError(t, err)
	assert.NotNil(t, session)
	assert.Equal(t, roomCode, session.RoomCode)
	assert.NotEmpty(t, session.PresenceID)
	assert.Equal(t, active, msgs)

	// Presence is tracked only after the subscription is confirmed.
	mu.Lock()
	assert.Equal(t, []string{"subscribe", "track"}, calls)
	mu.Unlock()

	mockChannel.AssertExpectations(t)
	mockStore.AssertExpectations(t)
}

func TestRoomUseCase_Join_ShareURLAndBareCodeAreSameRoom(t *testing.T) {
	ctx := context.Background()

	for _, input := range []string{"5821", "https://host/room/5821/"} {
		mockStore := new(MockMessageStore)
		mockChannel := new(MockRoomChannel)

		mockChannel.On("Subscribe", mock.Anything, "5821", mock.Anything).Return(nil)
		mockChannel.On("Track", ctx, "5821", mock.Anything).Return(nil)
		mockStore.On("ListActive", ctx, "5821", domain.DefaultListLimit).Return([]domain.Message{}, nil)
		mockStore.On("DeleteExpired", mock.Anything, "5821", mock.Anything).Return(nil).Maybe()

		uc := NewRoomUseCase(mockStore, mockChannel)
		session, _, err := uc.Join(ctx, input, func(domain.Event) {})

		assert.NoError(t, err, input)
		assert.Equal(t, "5821", session.RoomCode, input)
		mockChannel.AssertExpectations(t)
	}
}

func TestRoomUseCase_Join_SubscribeFailureLeavesNoPresence(t *testing.T) {
	ctx := context.Background()

	mockStore := new(MockMessageStore)
	mockChannel := new(MockRoomChannel)

	mockChannel.On("Subscribe", mock.Anything, "5821", mock.Anything).Return(assert.AnError)

	uc := NewRoomUseCase(mockStore, mockChannel)
	session, _, err := uc.Join(ctx, "5821", func(domain.Event) {})

	assert.Error(t, err)
	assert.Nil(t, session)
	mockChannel.AssertNotCalled(t, "Track", mock.Anything, mock.Anything, mock.Anything)
	mockStore.AssertNotCalled(t, "ListActive", mock.Anything, mock.Anything, mock.Anything)
}

func TestRoomUseCase_Join_TrackFailure(t *testing.T) {
	ctx := context.Background()

	mockStore := new(MockMessageStore)
	mockChannel := new(MockRoomChannel)

	mockChannel.On("Subscribe", mock.Anything, "5821", mock.Anything).Return(nil)
	mockChannel.On("Track", ctx, "5821", mock.Anything).Return(assert.AnError)

	uc := NewRoomUseCase(mockStore, mockChannel)
	session, _, err := uc.Join(ctx, "5821", func(domain.Event) {})

	assert.Error(t, err)
	assert.Nil(t, session)
	mockStore.AssertNotCalled(t, "ListActive", mock.Anything, mock.Anything, mock.Anything)
}

func TestRoomSession_CloseReleasesOnce(t *testing.T) {
	ctx := context.Background()

	mockChannel := new(MockRoomChannel)
	mockChannel.On("Untrack", ctx, "5821", "entry-1").Return(nil).Once()

	session := &RoomSession{
		RoomCode:   "5821",
		PresenceID: "entry-1",
		channel:    mockChannel,
		cancel:     func() {},
	}

	session.Close(ctx)
	session.Close(ctx)

	mockChannel.AssertExpectations(t)
}

func TestRoomUseCase_Destroy_BroadcastBeforeWipe(t *testing.T) {
	ctx := context.Background()
	roomCode := "4242"

	mockStore := new(MockMessageStore)
	mockChannel := new(MockRoomChannel)

	var (
		mu    sync.Mutex
		calls []string
	)
	record := func(name string) func(mock.Arguments) {
		return func(mock.Arguments) {
			mu.Lock()
			calls = append(calls, name)
			mu.Unlock()
		}
	}

	mockChannel.On("Publish", ctx, mock.MatchedBy(func(e domain.Event) bool {
		return e.Kind == domain.EventRoomDestroyed && e.RoomCode == roomCode
	})).Run(record("broadcast")).Return(nil)
	mockStore.On("DeleteAll", ctx, roomCode).Run(record("wipe")).Return(nil)
	mockChannel.On("ClearPresence", ctx, roomCode).Return(nil)

	uc := NewRoomUseCase(mockStore, mockChannel)
	err := uc.Destroy(ctx, roomCode)

	assert.NoError(t, err)
	mu.Lock()
	assert.Equal(t, []string{"broadcast", "wipe"}, calls)
	mu.Unlock()
	mockChannel.AssertExpectations(t)
	mockStore.AssertExpectations(t)
}

func TestRoomUseCase_Destroy_WipeFailureAfterBroadcast(t *testing.T) {
	ctx := context.Background()

	mockStore := new(MockMessageStore)
	mockChannel := new(MockRoomChannel)

	mockChannel.On("Publish", ctx, mock.Anything).Return(nil)
	mockStore.On("DeleteAll", ctx, "4242").Return(assert.AnError)

	uc := NewRoomUseCase(mockStore, mockChannel)
	err := uc.Destroy(ctx, "4242")

	// The room is announced dead even though the wipe failed.
	assert.Error(t, err)
	mockChannel.AssertExpectations(t)
}

func TestRoomUseCase_Leave_LastOccupantDestroys(t *testing.T) {
	ctx := context.Background()
	roomCode := "4242"

	mockStore := new(MockMessageStore)
	mockChannel := new(MockRoomChannel)

	mockChannel.On("Untrack", ctx, roomCode, "entry-1").Return(nil)
	mockChannel.On("Occupancy", ctx, roomCode).Return(0, nil)
	mockChannel.On("Publish", ctx, mock.MatchedBy(func(e domain.Event) bool {
		return e.Kind == domain.EventRoomDestroyed
	})).Return(nil)
	mockStore.On("DeleteAll", ctx, roomCode).Return(nil)
	mockChannel.On("ClearPresence", ctx, roomCode).Return(nil)

	uc := NewRoomUseCase(mockStore, mockChannel)
	session := &RoomSession{RoomCode: roomCode, PresenceID: "entry-1", channel: mockChannel, cancel: func() {}}

	uc.Leave(ctx, session)

	mockChannel.AssertExpectations(t)
	mockStore.AssertExpectations(t)
}

func TestRoomUseCase_Leave_OthersRemain(t *testing.T) {
	ctx := context.Background()
	roomCode := "4242"

	mockStore := new(MockMessageStore)
	mockChannel := new(MockRoomChannel)

	mockChannel.On("Untrack", ctx, roomCode, "entry-1").Return(nil)
	mockChannel.On("Occupancy", ctx, roomCode).Return(2, nil)

	uc := NewRoomUseCase(mockStore, mockChannel)
	session := &RoomSession{RoomCode: roomCode, PresenceID: "entry-1", channel: mockChannel, cancel: func() {}}

	uc.Leave(ctx, session)

	mockChannel.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	mockStore.AssertNotCalled(t, "DeleteAll", mock.Anything, mock.Anything)
}

func TestRetention_ReadFilterIndependentOfSweep(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	roomCode := "7301"

	expired := store.seed(roomCode, domain.KindText, "stale", time.Now().Add(-25*time.Hour))
	fresh := store.seed(roomCode, domain.KindText, "fresh", time.Now().Add(-time.Hour))

	// No sweep has run yet; the expired row must still be invisible.
	msgs, err := store.ListActive(ctx, roomCode, domain.DefaultListLimit)
	assert.NoError(t, err)
	assert.Len(t, msgs, 1)
	assert.Equal(t, fresh.ID, msgs[0].ID)
	for _, m := range msgs {
		assert.NotEqual(t, expired.ID, m.ID)
	}
}

func TestSweep_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	roomCode := "7301"

	store.seed(roomCode, domain.KindText, "stale", time.Now().Add(-25*time.Hour))
	store.seed(roomCode, domain.KindText, "fresh", time.Now().Add(-time.Hour))

	uc := NewRoomUseCase(store, newFakeChannel())

	uc.Sweep(ctx, roomCode)
	afterFirst, err := store.ListActive(ctx, roomCode, domain.DefaultListLimit)
	assert.NoError(t, err)

	uc.Sweep(ctx, roomCode)
	afterSecond, err := store.ListActive(ctx, roomCode, domain.DefaultListLimit)
	assert.NoError(t, err)

	assert.Equal(t, afterFirst, afterSecond)
	assert.Equal(t, 1, store.count(roomCode))
}

func TestPresenceSync_Occupancy(t *testing.T) {
	ctx := context.Background()
	channel := newFakeChannel()
	roomCode := "9014"

	var (
		mu    sync.Mutex
		seen  []domain.Event
		track = func(e domain.Event) {
			mu.Lock()
			seen = append(seen, e)
			mu.Unlock()
		}
	)
	assert.NoError(t, channel.Subscribe(ctx, roomCode, track))

	for _, id := range []string{"a", "b", "c"} {
		assert.NoError(t, channel.Track(ctx, roomCode, domain.PresenceEntry{ID: id, OnlineAt: time.Now()}))
	}
	n, err := channel.Occupancy(ctx, roomCode)
	assert.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.NoError(t, channel.Untrack(ctx, roomCode, "b"))
	n, err = channel.Occupancy(ctx, roomCode)
	assert.NoError(t, err)
	assert.Equal(t, 2, n)

	// Every registry mutation published a full-set presence_sync; the
	// last one carries the post-departure set.
	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, seen, 4)
	last := seen[len(seen)-1]
	assert.Equal(t, domain.EventPresenceSync, last.Kind)
	assert.Equal(t, 2, last.Occupancy())
}

func TestAutoTeardown_LastOccupantExit(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	channel := newFakeChannel()
	roomCode := "3137"

	// A bystander that stays subscribed after the occupant leaves.
	var (
		mu       sync.Mutex
		observed []domain.EventKind
	)
	assert.NoError(t, channel.Subscribe(ctx, roomCode, func(e domain.Event) {
		mu.Lock()
		observed = append(observed, e.Kind)
		mu.Unlock()
	}))

	uc := NewRoomUseCase(store, channel)
	session, _, err := uc.Join(ctx, roomCode, func(domain.Event) {})
	assert.NoError(t, err)

	_, err = store.Append(ctx, roomCode, domain.KindText, "note")
	assert.NoError(t, err)

	uc.Leave(ctx, session)

	// The sole occupant left: broadcast went out and the room was wiped
	// before the exit completed.
	mu.Lock()
	assert.Contains(t, observed, domain.EventRoomDestroyed)
	mu.Unlock()

	msgs, err := store.ListActive(ctx, roomCode, domain.DefaultListLimit)
	assert.NoError(t, err)
	assert.Empty(t, msgs)

	n, err := channel.Occupancy(ctx, roomCode)
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
}
