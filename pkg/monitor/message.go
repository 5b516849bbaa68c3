package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/minerwatch/minerwatch/pkg/database"
	"github.com/minerwatch/minerwatch/pkg/telegram"
)

// MessageManager keeps exactly one pinned summary message alive in the chat.
// While the live message stays editable it is updated in place; once it ages
// past the edit limit it is retired and replaced by a fresh pinned message.
type MessageManager struct {
	cfg *Config
	tg  telegram.Client
	log logrus.FieldLogger
}

func NewMessageManager(cfg *Config, tg telegram.Client, log logrus.FieldLogger) *MessageManager {
	return &MessageManager{cfg: cfg, tg: tg, log: log}
}

// Publish updates the live summary message with body, retiring and replacing
// it when it is too old to edit or when the edit is rejected.
func (m *MessageManager) Publish(ctx context.Context, store *database.Store, body string, now time.Time) error {
	pinned, err := store.PinnedMessage(ctx)
	if err != nil {
		return err
	}

	if pinned != nil && now.Sub(pinned.CreatedAt) <= m.cfg.MessageEditLimit {
		err := m.tg.EditMessage(ctx, pinned.MessageID, body)
		if err == nil {
			return store.TouchPinnedMessage(ctx, now)
		}
		// Telegram rejected the edit (message deleted by an admin, chat
		// migrated, ...). Replace instead of giving up.
		m.log.WithError(err).WithField("message_id", pinned.MessageID).
			Warn("could not edit summary message, sending a new one")
	}

	if pinned != nil {
		if err := m.tg.UnpinMessage(ctx, pinned.MessageID); err != nil {
			m.log.WithError(err).WithField("message_id", pinned.MessageID).
				Warn("could not unpin old summary message")
		}
		if err := m.tg.DeleteMessage(ctx, pinned.MessageID); err != nil {
			m.log.WithError(err).WithField("message_id", pinned.MessageID).
				Warn("could not delete old summary message")
		}
	}

	messageID, err := m.tg.SendMessage(ctx, body)
	if err != nil {
		return fmt.Errorf("sending summary message: %w", err)
	}
	if err := m.tg.PinMessage(ctx, messageID); err != nil {
		m.log.WithError(err).WithField("message_id", messageID).
			Warn("could not pin summary message")
	}
	return store.SavePinnedMessage(ctx, messageID, now)
}
