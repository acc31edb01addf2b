// Package models defines shared data types for the application.
package models

import "time"

// Group is a public channel or supergroup tracked by the bot.
type Group struct {
	ID       int64  `json:"id" gorm:"column:id;primaryKey"`
	Name     string `json:"name" gorm:"column:name"`
	Username string `json:"username" gorm:"column:username"`

	// telegram specific, filled once the group was resolved
	TGChannelID  int64 `json:"tg_channel_id,omitempty" gorm:"column:tg_channel_id"`
	TGAccessHash int64 `json:"-" gorm:"column:tg_access_hash"`

	AddedBy   int64     `json:"added_by" gorm:"column:added_by"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
}

func (Group) TableName() string { return "groups" }

// Link returns the public t.me link of the group.
func (g Group) Link() string {
	return "https://t.me/" + g.Username
}

// GroupStats is a group with its scrape and invite counters.
type GroupStats struct {
	Group
	Contacts     int64 `json:"contacts" gorm:"column:contacts"`
	Invited      int64 `json:"invited" gorm:"column:invited"`
	Declined     int64 `json:"declined" gorm:"column:declined"`
	Pending      int64 `json:"pending" gorm:"column:pending"`
	InvitedToday int64 `json:"invited_today" gorm:"column:invited_today"`
}

// Contact is a scraped member username attached to a group.
type Contact struct {
	ID        int64     `json:"id" gorm:"column:id;primaryKey"`
	GroupID   int64     `json:"group_id" gorm:"column:group_id"`
	Username  string    `json:"username" gorm:"column:username"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
}

func (Contact) TableName() string { return "contacts" }
