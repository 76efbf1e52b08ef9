package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"room_relay_service/internal/relay/domain"
	"room_relay_service/internal/relay/repository"
	"room_relay_service/pkg/logger"
)

// sweepTimeout budget for a fire-and-forget expiry pass.
const sweepTimeout = 10 * time.Second

// RoomChannel port over the room fan-out channel + presence registry.
// Satisfied by repository.RoomChannel.
type RoomChannel interface {
	Publish(ctx context.Context, event domain.Event) error
	Subscribe(ctx context.Context, roomCode string, handler func(event domain.Event)) error
	Track(ctx context.Context, roomCode string, entry domain.PresenceEntry) error
	Untrack(ctx context.Context, roomCode, entryID string) error
	Presence(ctx context.Context, roomCode string) ([]domain.PresenceEntry, error)
	Occupancy(ctx context.Context, roomCode string) (int, error)
	ClearPresence(ctx context.Context, roomCode string) error
}

// RoomSession live membership of one connection in one room: a confirmed
// channel subscription plus a presence entry. Close releases both and is
// safe to call from every exit path; only the first call does work.
type RoomSession struct {
	RoomCode   string
	PresenceID string

	channel RoomChannel
	cancel  context.CancelFunc
	once    sync.Once
}

// Close release the subscription and the presence entry.
func (s *RoomSession) Close(ctx context.Context) {
	s.once.Do(func() {
		s.cancel()
		if err := s.channel.Untrack(ctx, s.RoomCode, s.PresenceID); err != nil {
			logger.Log.Warn("untrack presence failed",
				zap.String("room_code", s.RoomCode),
				zap.String("presence_id", s.PresenceID),
				zap.Error(err))
		}
	})
}

// RoomUseCase room lifecycle controller: join, leave, destroy, sweep.
type RoomUseCase struct {
	store   repository.MessageStore
	channel RoomChannel
}

// NewRoomUseCase init room use case
func NewRoomUseCase(store repository.MessageStore, channel RoomChannel) *RoomUseCase {
	return &RoomUseCase{
		store:   store,
		channel: channel,
	}
}

// Join enter a room: subscribe, await confirmation, track presence, then
// read the active messages. The expiry sweep is fired as a side effect of
// the read. Track runs only after the subscription is confirmed so a
// channel that never connects cannot leave phantom presence behind.
func (uc *RoomUseCase) Join(ctx context.Context, rawCode string, handler func(event domain.Event)) (*RoomSession, []domain.Message, error) {
	code, err := domain.NormalizeRoomCode(rawCode)
	if err != nil {
		return nil, nil, err
	}

	// Subscription lifetime is owned by the session, not the join call.
	subCtx, cancel := context.WithCancel(context.Background())
	if err := uc.channel.Subscribe(subCtx, code, handler); err != nil {
		cancel()
		return nil, nil, err
	}

	entry := domain.PresenceEntry{
		ID:       uuid.New().String(),
		OnlineAt: time.Now().UTC(),
	}
	if err := uc.channel.Track(ctx, code, entry); err != nil {
		cancel()
		return nil, nil, err
	}

	session := &RoomSession{
		RoomCode:   code,
		PresenceID: entry.ID,
		channel:    uc.channel,
		cancel:     cancel,
	}

	msgs, err := uc.ListActive(ctx, code)
	if err != nil {
		session.Close(ctx)
		return nil, nil, err
	}

	return session, msgs, nil
}

// ListActive read the room's non-expired messages, newest first, and fire
// the retention sweeper in the background.
func (uc *RoomUseCase) ListActive(ctx context.Context, rawCode string) ([]domain.Message, error) {
	code, err := domain.NormalizeRoomCode(rawCode)
	if err != nil {
		return nil, err
	}
	msgs, err := uc.store.ListActive(ctx, code, domain.DefaultListLimit)
	if err != nil {
		return nil, err
	}
	go uc.sweep(code)
	return msgs, nil
}

// Sweep delete expired messages for the room. Best effort: failures are
// logged and swallowed, the next access catches up. Repeated sweeps with
// the same or later cutoff are no-ops beyond the first.
func (uc *RoomUseCase) Sweep(ctx context.Context, roomCode string) {
	cutoff := time.Now().Add(-domain.RetentionWindow)
	if err := uc.store.DeleteExpired(ctx, roomCode, cutoff); err != nil {
		logger.Log.Warn("expiry sweep failed",
			zap.String("room_code", roomCode), zap.Error(err))
	}
}

func (uc *RoomUseCase) sweep(roomCode string) {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()
	uc.Sweep(ctx, roomCode)
}

// Destroy irreversibly tear the room down. Broadcast first so active
// viewers are warned even if the wipe is slow or fails; a failed delete
// after a successful broadcast leaves the room announced-dead, which the
// sweeper eventually cleans up. Safe to repeat.
func (uc *RoomUseCase) Destroy(ctx context.Context, rawCode string) error {
	code, err := domain.NormalizeRoomCode(rawCode)
	if err != nil {
		return err
	}

	if err := uc.channel.Publish(ctx, domain.Event{
		Kind:     domain.EventRoomDestroyed,
		RoomCode: code,
	}); err != nil {
		return err
	}

	if err := uc.store.DeleteAll(ctx, code); err != nil {
		logger.Log.Error("room wipe failed after destroy broadcast",
			zap.String("room_code", code), zap.Error(err))
		return err
	}

	if err := uc.channel.ClearPresence(ctx, code); err != nil {
		logger.Log.Warn("presence wipe failed on destroy",
			zap.String("room_code", code), zap.Error(err))
	}
	return nil
}

// Leave voluntary exit. Releases the session, then destroys the room if
// the leaver was the last occupant, before the exit completes. Two
// occupants leaving at once can both observe an empty room and both
// destroy; that race is accepted because Destroy is idempotent.
func (uc *RoomUseCase) Leave(ctx context.Context, session *RoomSession) {
	session.Close(ctx)

	n, err := uc.channel.Occupancy(ctx, session.RoomCode)
	if err != nil {
		logger.Log.Warn("occupancy check failed on exit, skipping auto-destroy",
			zap.String("room_code", session.RoomCode), zap.Error(err))
		return
	}
	if n == 0 {
		logger.Log.Info("last occupant left, destroying room",
			zap.String("room_code", session.RoomCode))
		if err := uc.Destroy(ctx, session.RoomCode); err != nil {
			logger.Log.Error("auto-destroy failed",
				zap.String("room_code", session.RoomCode), zap.Error(err))
		}
	}
}

// Occupancy count of live presence entries for a room.
func (uc *RoomUseCase) Occupancy(ctx context.Context, rawCode string) (int, error) {
	code, err := domain.NormalizeRoomCode(rawCode)
	if err != nil {
		return 0, err
	}
	return uc.channel.Occupancy(ctx, code)
}
