package domain

import (
	"encoding/json"
	"time"
)

// IdempotencyRecord deduplicates retried operations, keyed uniquely by
// (OperationKey, UserID). Completed records carry the serialized response
// body returned verbatim on replay.
type IdempotencyRecord struct {
	OperationKey string
	UserID       string
	Path         string // operation path identifier, e.g. "deposit", "transfer"
	Completed    bool
	ResponseBody json.RawMessage
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
