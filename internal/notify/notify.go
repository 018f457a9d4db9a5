// Package notify tells operators how an assignment run went.
package notify

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/Freeeeeet/training_scheduler/internal/assigner"
	"github.com/Freeeeeet/training_scheduler/internal/model"
)

// Notifier publishes a finished assignment run.
type Notifier interface {
	RunFinished(ctx context.Context, course model.Course, report *assigner.Report) error
}

// Nop discards every notification.
type Nop struct{}

func (Nop) RunFinished(context.Context, model.Course, *assigner.Report) error { return nil }

type messageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// Telegram posts run reports to one chat.
type Telegram struct {
	sender messageSender
	chatID int64
	logger *zap.Logger
}

// NewTelegram creates a send-only bot client. It does not poll for updates.
func NewTelegram(token string, chatID int64, logger *zap.Logger) (*Telegram, error) {
	b, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return newTelegram(b, chatID, logger), nil
}

func newTelegram(sender messageSender, chatID int64, logger *zap.Logger) *Telegram {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Telegram{sender: sender, chatID: chatID, logger: logger}
}

func (t *Telegram) RunFinished(ctx context.Context, course model.Course, report *assigner.Report) error {
	_, err := t.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    t.chatID,
		Text:      FormatReport(course, report),
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		t.logger.Error("Failed to send run report",
			zap.Int64("course_id", course.ID),
			zap.String("run_id", report.RunID.String()),
			zap.Error(err))
		return fmt.Errorf("send run report: %w", err)
	}
	t.logger.Info("Run report sent",
		zap.Int64("course_id", course.ID),
		zap.Int64("chat_id", t.chatID))
	return nil
}
