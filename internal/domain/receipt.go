package domain

import "time"

// UpdateReceipt records that a Telegram update was already dispatched. The
// platform redelivers updates that were not acknowledged in time; a live
// receipt lets the relay acknowledge the retry without forwarding it again.
type UpdateReceipt struct {
	UpdateID  int64     `gorm:"column:update_id;primaryKey;autoIncrement:false"`
	ChatID    string    `gorm:"column:chat_id;type:varchar(64);not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null;index"`
}

// Live reports whether the receipt still suppresses redelivery at now.
func (r UpdateReceipt) Live(now time.Time) bool {
	return r.ExpiresAt.After(now)
}
