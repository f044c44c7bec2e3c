package store

import (
	"fmt"

	"github.com/acornrpa/acorn/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store wraps a GORM connection with the record operations Acorn needs.
// The database provides its own transaction guarantees; methods here are
// individually consistent and safe for concurrent use.
type Store struct {
	db *gorm.DB
}

// New creates a Store over an open connection.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// --- chat messages ---

// SaveMessage inserts a new chat message and fills in its generated ID.
func (s *Store) SaveMessage(m *models.ChatMessage) error {
	if err := s.db.Create(m).Error; err != nil {
		return fmt.Errorf("store: save message: %w", err)
	}
	return nil
}

// MarkReplied records the computed reply on an existing message. Point
// update only; the rest of the record is untouched.
func (s *Store) MarkReplied(messageID uint, reply string, ruleID uint) error {
	err := s.db.Model(&models.ChatMessage{}).
		Where("id = ?", messageID).
		Updates(map[string]any{
			"replied":       true,
			"reply_content": reply,
			"rule_id":       ruleID,
		}).Error
	if err != nil {
		return fmt.Errorf("store: mark replied %d: %w", messageID, err)
	}
	return nil
}

// MessageByID fetches one message, or nil if it does not exist.
func (s *Store) MessageByID(id uint) (*models.ChatMessage, error) {
	var m models.ChatMessage
	err := s.db.First(&m, id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: message %d: %w", id, err)
	}
	return &m, nil
}

// RecentMessages returns up to limit messages, newest first, skipping offset.
func (s *Store) RecentMessages(limit, offset int) ([]models.ChatMessage, error) {
	var msgs []models.ChatMessage
	err := s.db.Order("timestamp DESC").Limit(limit).Offset(offset).Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("store: recent messages: %w", err)
	}
	return msgs, nil
}

// MessagesBySender returns a sender's messages, newest first.
func (s *Store) MessagesBySender(sender string, limit, offset int) ([]models.ChatMessage, error) {
	var msgs []models.ChatMessage
	err := s.db.Where("sender = ?", sender).
		Order("timestamp DESC").Limit(limit).Offset(offset).Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("store: messages by sender %s: %w", sender, err)
	}
	return msgs, nil
}

// UnrepliedMessages returns received messages with no reply, oldest first.
func (s *Store) UnrepliedMessages() ([]models.ChatMessage, error) {
	var msgs []models.ChatMessage
	err := s.db.Where("direction = ? AND replied = ?", models.DirectionReceived, false).
		Order("timestamp ASC").Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("store: unreplied messages: %w", err)
	}
	return msgs, nil
}

// MessageCount returns the total number of stored messages.
func (s *Store) MessageCount() (int64, error) {
	var n int64
	if err := s.db.Model(&models.ChatMessage{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("store: message count: %w", err)
	}
	return n, nil
}

// DeleteMessagesBefore removes messages older than the cutoff timestamp
// (unix milliseconds). Returns the number of rows deleted.
func (s *Store) DeleteMessagesBefore(cutoff int64) (int64, error) {
	res := s.db.Where("timestamp < ?", cutoff).Delete(&models.ChatMessage{})
	if res.Error != nil {
		return 0, fmt.Errorf("store: delete messages before %d: %w", cutoff, res.Error)
	}
	return res.RowsAffected, nil
}

// --- message rules ---

// EnabledRules returns enabled rules in match order: priority descending,
// then id ascending. The rule engine's cache mirrors this ordering.
func (s *Store) EnabledRules() ([]models.MessageRule, error) {
	var rules []models.MessageRule
	err := s.db.Where("enabled = ?", true).
		Order("priority DESC, id ASC").Find(&rules).Error
	if err != nil {
		return nil, fmt.Errorf("store: enabled rules: %w", err)
	}
	return rules, nil
}

// Rules returns all rules in match order.
func (s *Store) Rules() ([]models.MessageRule, error) {
	var rules []models.MessageRule
	err := s.db.Order("priority DESC, id ASC").Find(&rules).Error
	if err != nil {
		return nil, fmt.Errorf("store: rules: %w", err)
	}
	return rules, nil
}

// RuleByID fetches one rule, or nil if it does not exist.
func (s *Store) RuleByID(id uint) (*models.MessageRule, error) {
	var r models.MessageRule
	err := s.db.First(&r, id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: rule %d: %w", id, err)
	}
	return &r, nil
}

// SaveRule inserts or fully replaces a rule (upsert on id conflict).
func (s *Store) SaveRule(r *models.MessageRule) error {
	err := s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(r).Error
	if err != nil {
		return fmt.Errorf("store: save rule: %w", err)
	}
	return nil
}

// DeleteRule removes a rule by id.
func (s *Store) DeleteRule(id uint) error {
	if err := s.db.Delete(&models.MessageRule{}, id).Error; err != nil {
		return fmt.Errorf("store: delete rule %d: %w", id, err)
	}
	return nil
}

// SetRuleEnabled flips a rule's enabled flag without rewriting the record.
func (s *Store) SetRuleEnabled(id uint, enabled bool) error {
	err := s.db.Model(&models.MessageRule{}).
		Where("id = ?", id).Update("enabled", enabled).Error
	if err != nil {
		return fmt.Errorf("store: set rule %d enabled=%v: %w", id, enabled, err)
	}
	return nil
}

// SetRulePriority updates a rule's priority without rewriting the record.
func (s *Store) SetRulePriority(id uint, priority int) error {
	err := s.db.Model(&models.MessageRule{}).
		Where("id = ?", id).Update("priority", priority).Error
	if err != nil {
		return fmt.Errorf("store: set rule %d priority=%d: %w", id, priority, err)
	}
	return nil
}

// --- scripts ---

// Scripts returns all scripts ordered by name.
func (s *Store) Scripts() ([]models.ScriptInfo, error) {
	var scripts []models.ScriptInfo
	if err := s.db.Order("name ASC").Find(&scripts).Error; err != nil {
		return nil, fmt.Errorf("store: scripts: %w", err)
	}
	return scripts, nil
}

// EnabledScripts returns enabled scripts ordered by name.
func (s *Store) EnabledScripts() ([]models.ScriptInfo, error) {
	var scripts []models.ScriptInfo
	err := s.db.Where("enabled = ?", true).Order("name ASC").Find(&scripts).Error
	if err != nil {
		return nil, fmt.Errorf("store: enabled scripts: %w", err)
	}
	return scripts, nil
}

// ScriptByID fetches one script, or nil if it does not exist.
func (s *Store) ScriptByID(id string) (*models.ScriptInfo, error) {
	var sc models.ScriptInfo
	err := s.db.Where("id = ?", id).First(&sc).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: script %s: %w", id, err)
	}
	return &sc, nil
}

// SaveScript inserts or fully replaces a script (upsert on id conflict).
func (s *Store) SaveScript(sc *models.ScriptInfo) error {
	err := s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(sc).Error
	if err != nil {
		return fmt.Errorf("store: save script %s: %w", sc.ID, err)
	}
	return nil
}

// DeleteScript removes a script by id.
func (s *Store) DeleteScript(id string) error {
	err := s.db.Where("id = ?", id).Delete(&models.ScriptInfo{}).Error
	if err != nil {
		return fmt.Errorf("store: delete script %s: %w", id, err)
	}
	return nil
}

// SetScriptEnabled flips a script's enabled flag.
func (s *Store) SetScriptEnabled(id string, enabled bool) error {
	err := s.db.Model(&models.ScriptInfo{}).
		Where("id = ?", id).Update("enabled", enabled).Error
	if err != nil {
		return fmt.Errorf("store: set script %s enabled=%v: %w", id, enabled, err)
	}
	return nil
}
