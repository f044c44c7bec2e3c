// Package models defines the GORM record types persisted by Acorn.
package models

// Message direction values.
const (
	DirectionReceived = "received"
	DirectionSent     = "sent"
)

// ChatMessage is one observed chat message. A record is created for every
// extracted inbound message and updated at most once, when a reply is
// computed for it.
type ChatMessage struct {
	ID           uint    `gorm:"primaryKey;autoIncrement"`
	Sender       string  `gorm:"size:128;not null;index"`
	Content      string  `gorm:"type:text"`
	Direction    string  `gorm:"size:16;default:received"`
	Replied      bool    `gorm:"default:false;index"`
	ReplyContent *string `gorm:"type:text"`
	RuleID       *uint
	Timestamp    int64 `gorm:"autoCreateTime:milli;index"`
}
