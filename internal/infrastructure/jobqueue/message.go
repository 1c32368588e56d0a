// Package jobqueue moves order sync jobs through an external lmstfy queue so
// that other systems can request syncs without calling the HTTP API.
package jobqueue

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidMessage is returned for payloads that can never be processed
var ErrInvalidMessage = errors.New("jobqueue: invalid sync job message")

// Message is one job taken from the queue
type Message struct {
	ID    string
	Queue string
	Data  []byte
}

// SyncJobMessage is the JSON payload of a queued sync request
type SyncJobMessage struct {
	ShopID    int64 `json:"shopId"`
	RangeDays int   `json:"rangeDays,omitempty"`
}

// DecodeSyncJob parses and validates a payload
func DecodeSyncJob(data []byte) (SyncJobMessage, error) {
	var msg SyncJobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return SyncJobMessage{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if msg.ShopID <= 0 {
		return SyncJobMessage{}, fmt.Errorf("%w: shopId must be positive", ErrInvalidMessage)
	}
	if msg.RangeDays < 0 {
		return SyncJobMessage{}, fmt.Errorf("%w: rangeDays cannot be negative", ErrInvalidMessage)
	}
	return msg, nil
}
