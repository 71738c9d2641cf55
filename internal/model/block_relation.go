package model

import "time"

// BlockRelation is directional: blocker blocking blocked says nothing
// about the reverse pair. The composite unique index rejects duplicates.
type BlockRelation struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	BlockerUID string    `gorm:"column:blocker_uid;size:128;not null;uniqueIndex:uniq_blocker_blocked" json:"blockerUid"`
	BlockedUID string    `gorm:"column:blocked_uid;size:128;not null;uniqueIndex:uniq_blocker_blocked" json:"blockedUid"`
	Reason     string    `gorm:"type:text" json:"reason"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (BlockRelation) TableName() string {
	return "blocked_users"
}
