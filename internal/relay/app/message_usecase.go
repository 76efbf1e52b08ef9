package app

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"room_relay_service/internal/relay/domain"
	"room_relay_service/internal/relay/repository"
	"room_relay_service/pkg/logger"
)

// SendMessageUseCase submission path: classify, validate, persist, echo.
type SendMessageUseCase struct {
	store   repository.MessageStore
	channel RoomChannel
}

// NewSendMessageUseCase init send message use case
func NewSendMessageUseCase(store repository.MessageStore, channel RoomChannel) *SendMessageUseCase {
	return &SendMessageUseCase{
		store:   store,
		channel: channel,
	}
}

// Execute submit a message to a room. Text that is exactly one URL is
// reclassified as a link. Size bounds are checked here, before any store
// write; a rejected submission leaves no partial state. The committed row
// is echoed to subscribers as a message_inserted event, which is the only
// delivery path for messages.
func (uc *SendMessageUseCase) Execute(ctx context.Context, rawCode string, kind domain.Kind, content string) (*domain.Message, error) {
	code, err := domain.NormalizeRoomCode(rawCode)
	if err != nil {
		return nil, err
	}

	if kind == "" {
		kind = domain.KindText
	}
	if kind == domain.KindText {
		content = strings.TrimSpace(content)
	}
	kind = domain.DetectKind(kind, content)

	if err := domain.ValidateContent(kind, content); err != nil {
		return nil, err
	}

	msg, err := uc.store.Append(ctx, code, kind, content)
	if err != nil {
		return nil, err
	}

	// Change feed of the store commit. Delivery is best effort: the row
	// is durable either way and readers converge on the next full list.
	if err := uc.channel.Publish(ctx, domain.Event{
		Kind:     domain.EventMessageInserted,
		RoomCode: code,
		Message:  msg,
	}); err != nil {
		logger.Log.Warn("message fan-out failed",
			zap.String("room_code", code),
			zap.String("message_id", msg.ID),
			zap.Error(err))
	}

	return msg, nil
}
