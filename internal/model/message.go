package model

import "time"

// Message is a single row in the flat message log. Everything except
// Read is immutable after insert; Read only ever flips false -> true.
type Message struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	SenderUID   string    `gorm:"column:sender_uid;size:128;not null;index" json:"senderUid"`
	ReceiverUID string    `gorm:"column:receiver_uid;size:128;not null;index" json:"receiverUid"`
	ListingID   *uint64   `gorm:"column:listing_id;index" json:"listingId,omitempty"`
	Content     string    `gorm:"type:text;not null" json:"content"`
	Read        bool      `gorm:"not null;default:false;index" json:"read"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (Message) TableName() string {
	return "messages"
}

// PartnerOf returns the other participant from the viewer's perspective.
func (m Message) PartnerOf(viewerUID string) string {
	if m.SenderUID == viewerUID {
		return m.ReceiverUID
	}
	return m.SenderUID
}
