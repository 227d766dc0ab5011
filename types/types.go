// Package types defines shared types used across the application.
package types

import "time"

// ReelRecord is one detected reel attachment inside a DM conversation.
// The id is derived (extracted from a URL, hashed from content or random)
// and is not guaranteed stable across re-scans; consumers must treat id
// reconciliation as best effort. A record never holds DOM references, so
// it can be persisted and read back unchanged.
type ReelRecord struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	HasReaction    bool      `json:"hasReaction"`
	ReactionType   string    `json:"reactionType,omitempty"`
	ReelURL        string    `json:"reelUrl,omitempty"`
	DOMPath        string    `json:"domPath"`
	MessageID      string    `json:"messageId"`
	ConversationID string    `json:"conversationId"`
	DetectedAt     time.Time `json:"detectedAt"`
}

// NavigationStatus is what the control API reports for getStatus and
// getCurrentState.
type NavigationStatus struct {
	Enabled      bool       `json:"enabled"`
	Scrolling    bool       `json:"scrolling"`
	ScrollState  string     `json:"scrollState"`
	ScrollCount  int        `json:"scrollCount"`
	DateFilter   *time.Time `json:"dateFilter,omitempty"`
	LastSync     *time.Time `json:"lastSync,omitempty"`
	Conversation string     `json:"conversation,omitempty"`
	ReelCount    int        `json:"reelCount"`
}
