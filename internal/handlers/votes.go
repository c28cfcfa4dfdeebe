package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/serroba/page-votes/internal/audit"
	"github.com/serroba/page-votes/internal/messaging"
	"github.com/serroba/page-votes/internal/pow"
	"github.com/serroba/page-votes/internal/votes"
	"go.uber.org/zap"
)

// ChallengeIssuer issues proof-of-work challenges.
type ChallengeIssuer interface {
	Issue(rawURL string) (*pow.Challenge, error)
}

// VoteService reads and records votes.
type VoteService interface {
	Counts(ctx context.Context, rawURL string) (*votes.Tally, error)
	Record(ctx context.Context, ballot *votes.Ballot) (*votes.Tally, error)
}

// VoteHandler serves the challenge, read and vote endpoints.
type VoteHandler struct {
	issuer      ChallengeIssuer
	service     VoteService
	publishVote messaging.Publish[audit.VoteRecordedEvent]
	logger      *zap.Logger
	now         func() time.Time
}

// NewVoteHandler creates a new vote handler.
func NewVoteHandler(
	issuer ChallengeIssuer,
	service VoteService,
	publishVote messaging.Publish[audit.VoteRecordedEvent],
	logger *zap.Logger,
) *VoteHandler {
	return &VoteHandler{
		issuer:      issuer,
		service:     service,
		publishVote: publishVote,
		logger:      logger,
		now:         time.Now,
	}
}

func (h *VoteHandler) Challenge(ctx context.Context, req *URLQuery) (*ChallengeResponse, error) {
	challenge, err := h.issuer.Issue(req.URL)
	if err != nil {
		return nil, h.fail(ctx, "issue challenge", err)
	}

	resp := &ChallengeResponse{}
	resp.Body.URL = challenge.URL
	resp.Body.Token = challenge.Token
	resp.Body.Difficulty = challenge.Difficulty

	return resp, nil
}

func (h *VoteHandler) Votes(ctx context.Context, req *URLQuery) (*CountsResponse, error) {
	tally, err := h.service.Counts(ctx, req.URL)
	if err != nil {
		return nil, h.fail(ctx, "read votes", err)
	}

	return countsResponse(tally), nil
}

func (h *VoteHandler) Vote(ctx context.Context, req *VoteRequest) (*CountsResponse, error) {
	tally, err := h.service.Record(ctx, &votes.Ballot{
		URL:     req.Body.URL,
		Like:    req.Body.Like,
		Dislike: req.Body.Dislike,
		Token:   req.Body.Token,
		Nonce:   req.Body.Nonce,
	})
	if err != nil {
		return nil, h.fail(ctx, "record vote", err)
	}

	meta := RequestMetaFromContext(ctx)
	event := &audit.VoteRecordedEvent{
		URL:        tally.Key.URL,
		Hash:       strconv.FormatUint(tally.Key.URLHash, 10),
		ShardKey:   tally.Key.ShardKey,
		Direction:  tally.Delta.String(),
		Likes:      tally.Counts.Likes,
		Dislikes:   tally.Counts.Dislikes,
		RecordedAt: h.now().UTC(),
		RequestID:  meta.RequestID,
		ClientIP:   meta.ClientIP,
		UserAgent:  meta.UserAgent,
	}

	// Publication is best effort once the vote is counted.
	if err := h.publishVote(ctx, event); err != nil {
		h.logger.Error("failed to publish vote event",
			zap.String("url", event.URL),
			zap.String("request_id", meta.RequestID),
			zap.Error(err),
		)
	}

	return countsResponse(tally), nil
}

// fail logs err at a level matching its cause and converts it to a client response.
func (h *VoteHandler) fail(ctx context.Context, op string, err error) error {
	resp := statusError(err)
	fields := []zap.Field{
		zap.String("op", op),
		zap.String("request_id", RequestMetaFromContext(ctx).RequestID),
		zap.Error(err),
	}

	switch {
	case resp.GetStatus() < http.StatusInternalServerError:
		h.logger.Debug("request rejected", fields...)
	case errors.Is(err, votes.ErrStorage):
		h.logger.Warn("storage failure", fields...)
	default:
		h.logger.Error("unexpected failure", fields...)
	}

	return resp
}

func countsResponse(tally *votes.Tally) *CountsResponse {
	return &CountsResponse{Body: VoteCounts{
		URL:      tally.Key.URL,
		Hash:     strconv.FormatUint(tally.Key.URLHash, 10),
		Likes:    tally.Counts.Likes,
		Dislikes: tally.Counts.Dislikes,
	}}
}
