package models

import "time"

// User is a person talking to the bot.
type User struct {
	UserID      int64  `json:"user_id" gorm:"column:user_id;primaryKey;autoIncrement:false"`
	Username    string `json:"username" gorm:"column:username"`
	Phone       string `json:"phone,omitempty" gorm:"column:phone"`
	SessionFile string `json:"session_file,omitempty" gorm:"column:session_file"`
	IsPremium   bool   `json:"is_premium" gorm:"column:is_premium"`

	// self-imposed limits below the tier limits; 0 means the tier limit
	ParseLimit  int `json:"parse_limit" gorm:"column:parse_limit"`
	InviteLimit int `json:"invite_limit" gorm:"column:invite_limit"`

	CreatedAt  time.Time `json:"created_at" gorm:"column:created_at"`
	LastSeenAt time.Time `json:"last_seen_at" gorm:"column:last_seen_at"`
}

func (User) TableName() string { return "users" }

// AdminStats is shown in the admin panel.
type AdminStats struct {
	TotalUsers   int64 `json:"total_users"`
	PremiumUsers int64 `json:"premium_users"`
	ActiveToday  int64 `json:"active_today"`
}
