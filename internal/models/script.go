package models

import "time"

// ScriptInfo is the stored source of a reply script. The key is a
// caller-assigned string; the compiled form is owned by the script
// evaluator and is never persisted.
type ScriptInfo struct {
	ID          string `gorm:"primaryKey;size:64"`
	Name        string `gorm:"size:128;not null"`
	Content     string `gorm:"type:text"`
	Description string `gorm:"size:512"`
	Author      string `gorm:"size:128"`
	Enabled     bool   `gorm:"default:true;index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
