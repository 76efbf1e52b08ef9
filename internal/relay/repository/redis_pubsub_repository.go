package repository

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"room_relay_service/internal/relay/domain"
	"room_relay_service/pkg/logger"
)

// ChannelName deterministic pub/sub topic for a room code.
func ChannelName(roomCode string) string {
	return "room:" + roomCode
}

// presenceKey redis hash holding the live presence registry of a room.
func presenceKey(roomCode string) string {
	return ChannelName(roomCode) + ":presence"
}

// RoomChannel redis fan-out channel plus presence registry for rooms.
// Delivery is at-most-once to currently connected subscribers; nothing is
// queued for a client that is not subscribed when an event fires.
type RoomChannel struct {
	client *redis.Client
}

// NewRoomChannel create RoomChannel
func NewRoomChannel(client *redis.Client) *RoomChannel {
	return &RoomChannel{client: client}
}

// Publish serialize the event and broadcast it on the room topic.
func (r *RoomChannel) Publish(ctx context.Context, event domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, ChannelName(event.RoomCode), data).Err()
}

// Subscribe attach handler to the room topic. Returns only after the
// subscription is confirmed, so callers can safely track presence next.
// Cancelling ctx closes the subscription.
func (r *RoomChannel) Subscribe(ctx context.Context, roomCode string, handler func(event domain.Event)) error {
	sub := r.client.Subscribe(ctx, ChannelName(roomCode))

	// Wait for the subscription confirmation before reporting success.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return err
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case m, ok := <-ch:
				if !ok {
					return
				}
				var event domain.Event
				if err := json.Unmarshal([]byte(m.Payload), &event); err != nil {
					logger.Log.Error("drop malformed room event",
						zap.String("room_code", roomCode), zap.Error(err))
					continue
				}
				handler(event)
			case <-ctx.Done():
				logger.Log.Debug("room subscription closed", zap.String("room_code", roomCode))
				sub.Close()
				return
			}
		}
	}()
	return nil
}

// Track register a presence entry and sync the full set to subscribers.
// Call only after Subscribe has confirmed, otherwise a channel that never
// connected would report phantom presence.
func (r *RoomChannel) Track(ctx context.Context, roomCode string, entry domain.PresenceEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if err := r.client.HSet(ctx, presenceKey(roomCode), entry.ID, data).Err(); err != nil {
		return err
	}
	return r.syncPresence(ctx, roomCode)
}

// Untrack drop a presence entry and sync the remaining set.
func (r *RoomChannel) Untrack(ctx context.Context, roomCode, entryID string) error {
	if err := r.client.HDel(ctx, presenceKey(roomCode), entryID).Err(); err != nil {
		return err
	}
	return r.syncPresence(ctx, roomCode)
}

// Presence return the full live presence set of a room.
func (r *RoomChannel) Presence(ctx context.Context, roomCode string) ([]domain.PresenceEntry, error) {
	raw, err := r.client.HGetAll(ctx, presenceKey(roomCode)).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]domain.PresenceEntry, 0, len(raw))
	for id, data := range raw {
		var entry domain.PresenceEntry
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			logger.Log.Warn("drop malformed presence entry",
				zap.String("room_code", roomCode), zap.String("entry_id", id))
			continue
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].OnlineAt.Equal(entries[j].OnlineAt) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].OnlineAt.Before(entries[j].OnlineAt)
	})
	return entries, nil
}

// Occupancy count of live presence entries for a room.
func (r *RoomChannel) Occupancy(ctx context.Context, roomCode string) (int, error) {
	n, err := r.client.HLen(ctx, presenceKey(roomCode)).Result()
	return int(n), err
}

// ClearPresence wipe the presence registry of a room. Used by destroy so
// leaked entries cannot keep a dead room occupied.
func (r *RoomChannel) ClearPresence(ctx context.Context, roomCode string) error {
	return r.client.Del(ctx, presenceKey(roomCode)).Err()
}

// syncPresence broadcast the full current set, not a delta; receivers
// recompute occupancy as its cardinality.
func (r *RoomChannel) syncPresence(ctx context.Context, roomCode string) error {
	entries, err := r.Presence(ctx, roomCode)
	if err != nil {
		return err
	}
	return r.Publish(ctx, domain.Event{
		Kind:     domain.EventPresenceSync,
		RoomCode: roomCode,
		Presence: entries,
	})
}
