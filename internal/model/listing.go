package model

import "time"

const (
	ListingStatusAvailable = "available"
	ListingStatusReserved  = "reserved"
	ListingStatusSold      = "sold"
)

type Listing struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerUID  string    `gorm:"column:owner_uid;size:128;not null;index" json:"ownerUid"`
	Title     string    `gorm:"size:120;not null" json:"title"`
	Author    string    `gorm:"size:120" json:"author"`
	Price     uint      `gorm:"not null" json:"price"`
	Status    string    `gorm:"size:16;not null;default:available" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Listing) TableName() string {
	return "listings"
}
