package model

import "time"

// Conversation is a derived view, never persisted: one entry per distinct
// partner the viewer has exchanged at least one message with, carrying the
// most recent message between the pair.
type Conversation struct {
	PartnerUID  string    `json:"partnerUid"`
	LastMessage Message   `json:"lastMessage"`
	LastAt      time.Time `json:"lastAt"`
	UnreadCount int64     `json:"unreadCount"`
	ListingID   *uint64   `json:"listingId,omitempty"`
}
