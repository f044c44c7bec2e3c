// Package rules decides whether and how to reply to an inbound message.
package rules

import (
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/acornrpa/acorn/internal/models"
)

// Store is the slice of the persistent store the engine needs.
type Store interface {
	// EnabledRules returns enabled rules in (priority desc, id asc) order.
	EnabledRules() ([]models.MessageRule, error)
	SaveMessage(m *models.ChatMessage) error
	MarkReplied(messageID uint, reply string, ruleID uint) error
}

// Evaluator computes script-driven replies. An empty reply means none.
type Evaluator interface {
	ProcessChatMessage(id, message, sender string) (string, error)
}

// Decision is the outcome of processing a message that matched a rule.
type Decision struct {
	Reply string
	Rule  models.MessageRule
	Delay time.Duration
}

// Engine holds a refreshable snapshot of enabled rules and matches inbound
// messages against it. The cached slice is swapped wholesale under the
// mutex; readers never see a partially refreshed cache.
type Engine struct {
	store Store
	eval  Evaluator
	pick  func(n int) int
	out   io.Writer

	mu     sync.RWMutex
	cached []models.MessageRule
}

// EngineOpts holds parameters for creating an Engine.
type EngineOpts struct {
	Store     Store
	Evaluator Evaluator       // optional; script responses fail soft without it
	Pick      func(n int) int // optional; uniform selection for random responses
	Out       io.Writer       // defaults to os.Stdout
}

// New creates an Engine with an empty cache. Call RefreshCache (or let the
// first Process do it) to load rules.
func New(opts EngineOpts) (*Engine, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("rules: store is required")
	}
	pick := opts.Pick
	if pick == nil {
		pick = rand.Intn
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Engine{
		store: opts.Store,
		eval:  opts.Evaluator,
		pick:  pick,
		out:   out,
	}, nil
}

// RefreshCache reloads the enabled-rules snapshot from the store. On
// failure the previous cache stays intact, since a transient read error must
// not silence a working rule set.
func (e *Engine) RefreshCache() error {
	rules, err := e.store.EnabledRules()
	if err != nil {
		return fmt.Errorf("rules: refresh cache: %w", err)
	}
	e.mu.Lock()
	e.cached = rules
	e.mu.Unlock()
	fmt.Fprintf(e.out, "rules: cache refreshed, %d rules\n", len(rules))
	return nil
}

// CachedRules returns the current snapshot, in match order.
func (e *Engine) CachedRules() []models.MessageRule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cached
}

// Process records the inbound message and computes a reply decision, or
// nil when no enabled rule produces one. The message is persisted before
// matching so every inbound message is recorded regardless of outcome;
// store errors on that path are logged, not fatal. An unexpected panic
// anywhere in processing triggers a cache refresh as self-healing and
// yields nil.
func (e *Engine) Process(message, sender string) (decision *Decision) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("rules: process panic: %v, refreshing cache", r)
			if err := e.RefreshCache(); err != nil {
				log.Printf("rules: self-heal refresh: %v", err)
			}
			decision = nil
		}
	}()

	rules := e.CachedRules()
	if len(rules) == 0 {
		if err := e.RefreshCache(); err != nil {
			log.Printf("rules: %v", err)
		}
		rules = e.CachedRules()
		if len(rules) == 0 {
			fmt.Fprintf(e.out, "rules: no enabled rules, message not processed\n")
			return nil
		}
	}

	record := &models.ChatMessage{
		Sender:    sender,
		Content:   message,
		Direction: models.DirectionReceived,
	}
	if err := e.store.SaveMessage(record); err != nil {
		log.Printf("rules: %v", err)
	}

	matched := e.findMatching(rules, message)
	if matched == nil {
		return nil
	}
	fmt.Fprintf(e.out, "rules: matched rule %d (%s)\n", matched.ID, matched.Name)

	reply := e.generateReply(matched, message, sender)
	if reply == "" {
		fmt.Fprintf(e.out, "rules: rule %d produced no reply\n", matched.ID)
		return nil
	}

	if record.ID != 0 {
		if err := e.store.MarkReplied(record.ID, reply, matched.ID); err != nil {
			log.Printf("rules: %v", err)
		}
	}

	return &Decision{
		Reply: reply,
		Rule:  *matched,
		Delay: time.Duration(matched.DelayMs) * time.Millisecond,
	}
}

// findMatching returns the first rule whose predicate matches, honoring
// the snapshot's (priority desc, id asc) order.
func (e *Engine) findMatching(rules []models.MessageRule, message string) *models.MessageRule {
	if strings.TrimSpace(message) == "" {
		return nil
	}
	for i := range rules {
		if e.matchRule(&rules[i], message) {
			return &rules[i]
		}
	}
	return nil
}

// matchRule evaluates one rule's predicate. A malformed regex pattern is
// logged and treated as non-matching; the scan continues with the next
// rule. The script match type is a reserved extension point and never
// matches.
func (e *Engine) matchRule(r *models.MessageRule, message string) bool {
	switch r.MatchType {
	case models.MatchExact:
		return message == r.MatchPattern
	case models.MatchContains:
		return strings.Contains(message, r.MatchPattern)
	case models.MatchRegex:
		re, err := regexp.Compile(r.MatchPattern)
		if err != nil {
			log.Printf("rules: rule %d regex %q: %v", r.ID, r.MatchPattern, err)
			return false
		}
		return re.MatchString(message)
	case models.MatchScript:
		return false
	default:
		return false
	}
}

// generateReply computes a rule's reply text. Empty means no reply; a
// failed script evaluation is a no-reply, not an error, and the match does
// not fall through to lower-priority rules.
func (e *Engine) generateReply(r *models.MessageRule, message, sender string) string {
	switch r.ResponseType {
	case models.ResponseFixed:
		return r.ResponseContent
	case models.ResponseRandom:
		options := splitAlternatives(r.ResponseContent)
		if len(options) == 0 {
			return ""
		}
		return options[e.pick(len(options))]
	case models.ResponseScript:
		if e.eval == nil {
			log.Printf("rules: rule %d wants script %q but no evaluator is configured", r.ID, r.ResponseContent)
			return ""
		}
		reply, err := e.eval.ProcessChatMessage(r.ResponseContent, message, sender)
		if err != nil {
			log.Printf("rules: rule %d script %q: %v", r.ID, r.ResponseContent, err)
			return ""
		}
		return reply
	default:
		return ""
	}
}

// splitAlternatives splits a random response's content and drops empty
// entries, so a degenerate list yields no reply rather than an empty one.
func splitAlternatives(content string) []string {
	var out []string
	for _, opt := range strings.Split(content, models.RandomDelimiter) {
		if opt != "" {
			out = append(out, opt)
		}
	}
	return out
}
