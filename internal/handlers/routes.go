package handlers

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/page-votes/internal/ratelimit"
)

// NewAPIConfig returns the huma configuration of the vote API. Responses carry no
// $schema link so bodies hold exactly the documented fields.
func NewAPIConfig() huma.Config {
	config := huma.DefaultConfig("Page Votes", "1.0.0")
	config.CreateHooks = nil

	return config
}

// RegisterRoutes registers the vote routes with their rate limit scopes.
func RegisterRoutes(api huma.API, h *VoteHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "get-challenge",
		Method:      http.MethodGet,
		Path:        "/challenge",
		Summary:     "Get a proof-of-work challenge",
		Description: "Returns a signed, short-lived token bound to the URL and the difficulty a vote must meet.",
		Tags:        []string{"Votes"},
		Metadata: map[string]any{
			ratelimit.MetadataKey: ratelimit.EndpointConfig{Scope: ratelimit.ScopeChallenge},
		},
	}, h.Challenge)

	huma.Register(api, huma.Operation{
		OperationID: "get-votes",
		Method:      http.MethodGet,
		Path:        "/votes",
		Summary:     "Get vote counts",
		Description: "Returns like and dislike totals for the URL. Unseen URLs have zero counts.",
		Tags:        []string{"Votes"},
	}, h.Votes)

	huma.Register(api, huma.Operation{
		OperationID:   "post-vote",
		Method:        http.MethodPost,
		Path:          "/vote",
		Summary:       "Submit a vote",
		Description:   "Records a like or dislike once the challenge token and nonce verify.",
		Tags:          []string{"Votes"},
		DefaultStatus: http.StatusOK,
	}, h.Vote)
}
