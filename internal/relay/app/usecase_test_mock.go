package app

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"room_relay_service/internal/relay/domain"
)

// MockMessageStore Mock MessageStore
type MockMessageStore struct {
	mock.Mock
}

// Append mock append message
func (m *MockMessageStore) Append(ctx context.Context, roomCode string, kind domain.Kind, content string) (*domain.Message, error) {
	args := m.Called(ctx, roomCode, kind, content)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// ListActive mock list active messages
func (m *MockMessageStore) ListActive(ctx context.Context, roomCode string, limit int) ([]domain.Message, error) {
	args := m.Called(ctx, roomCode, limit)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// DeleteExpired mock delete expired messages
func (m *MockMessageStore) DeleteExpired(ctx context.Context, roomCode string, cutoff time.Time) error {
	args := m.Called(ctx, roomCode, cutoff)
	return args.Error(0)
}

// DeleteAll mock wipe room
func (m *MockMessageStore) DeleteAll(ctx context.Context, roomCode string) error {
	args := m.Called(ctx, roomCode)
	return args.Error(0)
}

// MockRoomChannel Mock RoomChannel
type MockRoomChannel struct {
	mock.Mock
}

// Publish mock publish event
func (m *MockRoomChannel) Publish(ctx context.Context, event domain.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// Subscribe mock subscribe room topic
func (m *MockRoomChannel) Subscribe(ctx context.Context, roomCode string, handler func(event domain.Event)) error {
	args := m.Called(ctx, roomCode, handler)
	return args.Error(0)
}

// Track mock track presence
func (m *MockRoomChannel) Track(ctx context.Context, roomCode string, entry domain.PresenceEntry) error {
	args := m.Called(ctx, roomCode, entry)
	return args.Error(0)
}

// Untrack mock untrack presence
func (m *MockRoomChannel) Untrack(ctx context.Context, roomCode, entryID string) error {
	args := m.Called(ctx, roomCode, entryID)
	return args.Error(0)
}

// Presence mock read presence set
func (m *MockRoomChannel) Presence(ctx context.Context, roomCode string) ([]domain.PresenceEntry, error) {
	args := m.Called(ctx, roomCode)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.PresenceEntry), args.Error(1)
	}
	return nil, args.Error(1)
}

// Occupancy mock occupancy count
func (m *MockRoomChannel) Occupancy(ctx context.Context, roomCode string) (int, error) {
	args := m.Called(ctx, roomCode)
	return args.Int(0), args.Error(1)
}

// ClearPresence mock wipe presence registry
func (m *MockRoomChannel) ClearPresence(ctx context.Context, roomCode string) error {
	args := m.Called(ctx, roomCode)
	return args.Error(0)
}

// memStore in-memory MessageStore with the contract's read-time retention
// filter. Used for retention and sweep-idempotency tests.
type memStore struct {
	mu   sync.Mutex
	seq  int
	msgs map[string][]domain.Message
}

func newMemStore() *memStore {
	return &memStore{msgs: make(map[string][]domain.Message)}
}

// seed insert a message with a caller-chosen timestamp.
func (s *memStore) seed(roomCode string, kind domain.Kind, content string, createdAt time.Time) domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	msg := domain.Message{
		ID:        strconv.Itoa(s.seq),
		RoomCode:  roomCode,
		Kind:      kind,
		Content:   content,
		CreatedAt: createdAt,
	}
	s.msgs[roomCode] = append(s.msgs[roomCode], msg)
	return msg
}

func (s *memStore) Append(ctx context.Context, roomCode string, kind domain.Kind, content string) (*domain.Message, error) {
	msg := s.seed(roomCode, kind, content, time.Now().UTC())
	return &msg, nil
}

func (s *memStore) ListActive(ctx context.Context, roomCode string, limit int) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-domain.RetentionWindow)
	var out []domain.Message
	for _, m := range s.msgs[roomCode] {
		if m.CreatedAt.After(cutoff) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) DeleteExpired(ctx context.Context, roomCode string, cutoff time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []domain.Message
	for _, m := range s.msgs[roomCode] {
		if !m.CreatedAt.Before(cutoff) {
			kept = append(kept, m)
		}
	}
	s.msgs[roomCode] = kept
	return nil
}

func (s *memStore) DeleteAll(ctx context.Context, roomCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.msgs, roomCode)
	return nil
}

func (s *memStore) count(roomCode string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs[roomCode])
}

// fakeChannel in-memory RoomChannel mirroring the redis implementation's
// semantics: full-set presence_sync on every registry mutation, fan-out to
// all registered handlers.
type fakeChannel struct {
	mu       sync.Mutex
	handlers map[string][]func(domain.Event)
	presence map[string]map[string]domain.PresenceEntry
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		handlers: make(map[string][]func(domain.Event)),
		presence: make(map[string]map[string]domain.PresenceEntry),
	}
}

func (f *fakeChannel) Publish(ctx context.Context, event domain.Event) error {
	f.mu.Lock()
	hs := append([]func(domain.Event){}, f.handlers[event.RoomCode]...)
	f.mu.Unlock()
	for _, h := range hs {
		h(event)
	}
	return nil
}

func (f *fakeChannel) Subscribe(ctx context.Context, roomCode string, handler func(event domain.Event)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[roomCode] = append(f.handlers[roomCode], handler)
	return nil
}

func (f *fakeChannel) Track(ctx context.Context, roomCode string, entry domain.PresenceEntry) error {
	f.mu.Lock()
	if f.presence[roomCode] == nil {
		f.presence[roomCode] = make(map[string]domain.PresenceEntry)
	}
	f.presence[roomCode][entry.ID] = entry
	f.mu.Unlock()
	return f.syncPresence(ctx, roomCode)
}

func (f *fakeChannel) Untrack(ctx context.Context, roomCode, entryID string) error {
	f.mu.Lock()
	delete(f.presence[roomCode], entryID)
	f.mu.Unlock()
	return f.syncPresence(ctx, roomCode)
}

func (f *fakeChannel) Presence(ctx context.Context, roomCode string) ([]domain.PresenceEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries := make([]domain.PresenceEntry, 0, len(f.presence[roomCode]))
	for _, e := range f.presence[roomCode] {
		entries = append(entries, e)
	}
	return entries, nil
}

func (f *fakeChannel) Occupancy(ctx context.Context, roomCode string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.presence[roomCode]), nil
}

func (f *fakeChannel) ClearPresence(ctx context.Context, roomCode string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.presence, roomCode)
	return nil
}

func (f *fakeChannel) syncPresence(ctx context.Context, roomCode string) error {
	entries, _ := f.Presence(ctx, roomCode)
	return f.Publish(ctx, domain.Event{
		Kind:     domain.EventPresenceSync,
		RoomCode: roomCode,
		Presence: entries,
	})
}
