package models

import "time"

// Rule match types. MatchScript is accepted as a stored value but never
// evaluates to true. It is a reserved extension point.
const (
	MatchExact    = "exact"
	MatchContains = "contains"
	MatchRegex    = "regex"
	MatchScript   = "script"
)

// Rule response types.
const (
	ResponseFixed  = "fixed"
	ResponseRandom = "random"
	ResponseScript = "script"
)

// RandomDelimiter separates alternatives in a random response's content.
const RandomDelimiter = "|"

// MessageRule defines a trigger condition and the response it produces.
// Rules are matched in (priority desc, id asc) order; higher priority wins,
// and among equal priorities the older rule wins.
type MessageRule struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	Name            string `gorm:"size:128;not null"`
	MatchType       string `gorm:"size:16;not null"`
	MatchPattern    string `gorm:"type:text"`
	ResponseType    string `gorm:"size:16;not null"`
	ResponseContent string `gorm:"type:text"`
	Enabled         bool   `gorm:"default:true;index"`
	Priority        int    `gorm:"default:0;index"`
	DelayMs         int64  `gorm:"default:0"`
	Description     string `gorm:"size:512"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ValidMatchType reports whether t is a recognized match type.
func ValidMatchType(t string) bool {
	switch t {
	case MatchExact, MatchContains, MatchRegex, MatchScript:
		return true
	}
	return false
}

// ValidResponseType reports whether t is a recognized response type.
func ValidResponseType(t string) bool {
	switch t {
	case ResponseFixed, ResponseRandom, ResponseScript:
		return true
	}
	return false
}
