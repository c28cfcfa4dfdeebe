package audit

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/serroba/page-votes/internal/messaging"
	"go.uber.org/zap"
)

// Sink records vote events.
type Sink interface {
	RecordVote(ctx context.Context, event *VoteRecordedEvent) error
}

// LogSink writes every vote event to a structured log.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a sink that logs to logger.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) RecordVote(_ context.Context, event *VoteRecordedEvent) error {
	s.logger.Info("vote recorded",
		zap.String("url", event.URL),
		zap.String("hash", event.Hash),
		zap.String("shard", event.ShardKey),
		zap.String("direction", event.Direction),
		zap.Int64("likes", event.Likes),
		zap.Int64("dislikes", event.Dislikes),
		zap.Time("recordedAt", event.RecordedAt),
		zap.String("requestId", event.RequestID),
	)

	return nil
}

// NewVoteConsumer subscribes sink to vote events.
func NewVoteConsumer(subscriber message.Subscriber, sink Sink, logger *zap.Logger) *messaging.Consumer[VoteRecordedEvent] {
	return messaging.NewConsumer(subscriber, TopicVoteRecorded, sink.RecordVote, logger)
}
