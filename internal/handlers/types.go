package handlers

// URLQuery selects the page a request is about.
type URLQuery struct {
	URL string `doc:"Absolute URL of the page" example:"https://example.com/article" query:"url" required:"true"`
}

// ChallengeResponse carries a proof-of-work challenge bound to one URL.
type ChallengeResponse struct {
	Body struct {
		URL        string `doc:"Canonical form of the requested URL"          example:"https://example.com/article" json:"url"`
		Token      string `doc:"Signed challenge token"                                                             json:"token"`
		Difficulty int    `doc:"Leading zero hex digits the digest must have" example:"5"                           json:"difficulty"`
	}
}

// VoteCounts are the totals of one page.
type VoteCounts struct {
	URL      string `doc:"Canonical URL"                    example:"https://example.com/article" json:"url"`
	Hash     string `doc:"64-bit URL hash, decimal encoded" example:"3300586899789585404"         json:"hash"`
	Likes    int64  `doc:"Total likes"                      example:"42"                          json:"likes"`
	Dislikes int64  `doc:"Total dislikes"                   example:"3"                           json:"dislikes"`
}

// CountsResponse returns the totals of one page.
type CountsResponse struct {
	Body VoteCounts
}

// VoteRequest submits a vote together with a solved challenge.
type VoteRequest struct {
	Body struct {
		_ struct{} `additionalProperties:"true" json:"-"`

		URL     string `doc:"Absolute URL of the page"            json:"url"`
		Like    bool   `doc:"Set to vote like"                    json:"like,omitempty"`
		Dislike bool   `doc:"Set to vote dislike; wins over like" json:"dislike,omitempty"`
		Token   string `doc:"Token from GET /challenge"           json:"token"`
		Nonce   int64  `doc:"Nonce solving the challenge"         json:"nonce"`
	}
}
