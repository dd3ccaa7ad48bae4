package notify

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"graphreview/api/internal/email"
)

// Mailer sends one mention email.
type Mailer interface {
	SendMentionEmail(m email.Mention) error
}

// Worker consumes the mention stream as one member of a consumer group and
// emails every mentioned user. A message is acknowledged once every
// recipient was attempted; per-recipient failures are logged, not retried.
type Worker struct {
	client   *redis.Client
	stream   string
	group    string
	consumer string
	mailer   Mailer
	logger   zerolog.Logger

	// Block is how long one read waits for new messages. Negative means
	// return immediately.
	Block time.Duration
	Count int64
}

func NewWorker(client *redis.Client, stream, group, consumer string, mailer Mailer, logger zerolog.Logger) *Worker {
	return &Worker{
		client:   client,
		stream:   stream,
		group:    group,
		consumer: consumer,
		mailer:   mailer,
		logger:   logger,
		Block:    5 * time.Second,
		Count:    16,
	}
}

// Run processes messages until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}
	if err := ensureGroup(ctx, w.client, w.stream, w.group); err != nil {
		return err
	}
	w.logger.Info().Str("stream", w.stream).Str("group", w.group).Msg("mention worker started")

	for {
		if ctx.Err() != nil {
			return nil
		}
		if _, err := w.ProcessOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Error().Err(err).Msg("mention worker read failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
		}
	}
}

// ProcessOnce reads one batch and handles it, returning how many messages
// were acknowledged.
func (w *Worker) ProcessOnce(ctx context.Context) (int, error) {
	if err := ensureGroup(ctx, w.client, w.stream, w.group); err != nil {
		return 0, err
	}

	streams, err := w.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    w.group,
		Consumer: w.consumer,
		Streams:  []string{w.stream, ">"},
		Count:    w.Count,
		Block:    w.Block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	acked := 0
	for _, s := range streams {
		for _, msg := range s.Messages {
			w.handle(msg)
			if err := w.client.XAck(ctx, w.stream, w.group, msg.ID).Err(); err != nil {
				w.logger.Error().Err(err).Str("message_id", msg.ID).Msg("ack mention message")
				continue
			}
			acked++
		}
	}
	return acked, nil
}

func (w *Worker) handle(msg redis.XMessage) {
	payload, err := decodeMessage(msg)
	if err != nil {
		w.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("dropping malformed mention message")
		return
	}

	for _, user := range payload.MentionedUsers {
		err := w.mailer.SendMentionEmail(email.Mention{
			To:            user,
			CommenterName: payload.CommenterName,
			ReviewID:      payload.ReviewID,
			CommentID:     payload.CommentID,
			Content:       payload.CommentContent,
			Known:         payload.MentionedUsers,
		})
		if err != nil {
			w.logger.Warn().Err(err).
				Str("user_id", user.ID).
				Str("comment_id", payload.CommentID).
				Msg("mention email failed")
			continue
		}
		w.logger.Debug().Str("user_id", user.ID).Str("comment_id", payload.CommentID).Msg("mention email sent")
	}
}
