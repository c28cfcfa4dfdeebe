package audit

import "time"

// TopicVoteRecorded is the topic accepted votes are published on.
const TopicVoteRecorded = "vote.recorded"

// VoteRecordedEvent is emitted after a vote has been applied to the store.
type VoteRecordedEvent struct {
	URL        string    `json:"url"`
	Hash       string    `json:"hash"`
	ShardKey   string    `json:"shardKey"`
	Direction  string    `json:"direction"`
	Likes      int64     `json:"likes"`
	Dislikes   int64     `json:"dislikes"`
	RecordedAt time.Time `json:"recordedAt"`
	RequestID  string    `json:"requestId,omitempty"`
	ClientIP   string    `json:"clientIp,omitempty"`
	UserAgent  string    `json:"userAgent,omitempty"`
}

// CorrelationID ties the event to the request that produced it.
func (e *VoteRecordedEvent) CorrelationID() string {
	return e.RequestID
}
