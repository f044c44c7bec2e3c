package store

import (
	"testing"
	"time"

	"github.com/acornrpa/acorn/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return New(db)
}

func TestSaveMessageAndMarkReplied(t *testing.T) {
	s := openTestStore(t)

	m := &models.ChatMessage{
		Sender:    "bob",
		Content:   "hello",
		Direction: models.DirectionReceived,
	}
	if err := s.SaveMessage(m); err != nil {
		t.Fatalf("save message: %v", err)
	}
	if m.ID == 0 {
		t.Fatal("expected generated message id")
	}

	if err := s.MarkReplied(m.ID, "hi there", 7); err != nil {
		t.Fatalf("mark replied: %v", err)
	}
	got, err := s.MessageByID(m.ID)
	if err != nil {
		t.Fatalf("message by id: %v", err)
	}
	if got == nil || !got.Replied {
		t.Fatal("expected message marked replied")
	}
	if got.ReplyContent == nil || *got.ReplyContent != "hi there" {
		t.Errorf("reply content = %v, want hi there", got.ReplyContent)
	}
	if got.RuleID == nil || *got.RuleID != 7 {
		t.Errorf("rule id = %v, want 7", got.RuleID)
	}
}

func TestEnabledRulesOrdering(t *testing.T) {
	s := openTestStore(t)

	rules := []models.MessageRule{
		{Name: "low", MatchType: models.MatchContains, MatchPattern: "a", ResponseType: models.ResponseFixed, ResponseContent: "x", Enabled: true, Priority: 1},
		{Name: "high", MatchType: models.MatchContains, MatchPattern: "b", ResponseType: models.ResponseFixed, ResponseContent: "y", Enabled: true, Priority: 10},
		{Name: "tie-late", MatchType: models.MatchContains, MatchPattern: "c", ResponseType: models.ResponseFixed, ResponseContent: "z", Enabled: true, Priority: 10},
		{Name: "disabled", MatchType: models.MatchContains, MatchPattern: "d", ResponseType: models.ResponseFixed, ResponseContent: "w", Enabled: false, Priority: 99},
	}
	for i := range rules {
		if err := s.SaveRule(&rules[i]); err != nil {
			t.Fatalf("save rule %d: %v", i, err)
		}
	}

	got, err := s.EnabledRules()
	if err != nil {
		t.Fatalf("enabled rules: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d rules, want 3", len(got))
	}
	// Priority desc, then id asc: "high" was inserted before "tie-late" so
	// it wins the tie.
	if got[0].Name != "high" || got[1].Name != "tie-late" || got[2].Name != "low" {
		t.Errorf("order = [%s %s %s], want [high tie-late low]",
			got[0].Name, got[1].Name, got[2].Name)
	}
}

func TestSaveRuleUpsert(t *testing.T) {
	s := openTestStore(t)

	r := &models.MessageRule{Name: "greet", MatchType: models.MatchExact, MatchPattern: "hi", ResponseType: models.ResponseFixed, ResponseContent: "hello", Enabled: true}
	if err := s.SaveRule(r); err != nil {
		t.Fatalf("save rule: %v", err)
	}

	r.ResponseContent = "hello again"
	if err := s.SaveRule(r); err != nil {
		t.Fatalf("upsert rule: %v", err)
	}

	got, err := s.RuleByID(r.ID)
	if err != nil {
		t.Fatalf("rule by id: %v", err)
	}
	if got.ResponseContent != "hello again" {
		t.Errorf("response content = %q, want updated value", got.ResponseContent)
	}

	all, err := s.Rules()
	if err != nil {
		t.Fatalf("rules: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("got %d rules after upsert, want 1", len(all))
	}
}

func TestSetRuleEnabledAndPriority(t *testing.T) {
	s := openTestStore(t)

	r := &models.MessageRule{Name: "r", MatchType: models.MatchExact, MatchPattern: "x", ResponseType: models.ResponseFixed, ResponseContent: "y", Enabled: true}
	if err := s.SaveRule(r); err != nil {
		t.Fatalf("save rule: %v", err)
	}
	if err := s.SetRuleEnabled(r.ID, false); err != nil {
		t.Fatalf("set enabled: %v", err)
	}
	if err := s.SetRulePriority(r.ID, 42); err != nil {
		t.Fatalf("set priority: %v", err)
	}
	got, err := s.RuleByID(r.ID)
	if err != nil {
		t.Fatalf("rule by id: %v", err)
	}
	if got.Enabled {
		t.Error("expected rule disabled")
	}
	if got.Priority != 42 {
		t.Errorf("priority = %d, want 42", got.Priority)
	}
}

func TestUnrepliedAndRetention(t *testing.T) {
	s := openTestStore(t)

	old := &models.ChatMessage{Sender: "a", Content: "old", Direction: models.DirectionReceived}
	if err := s.SaveMessage(old); err != nil {
		t.Fatalf("save: %v", err)
	}
	// Backdate below any cutoff we will use.
	if err := s.db.Model(old).Update("timestamp", int64(1000)).Error; err != nil {
		t.Fatalf("backdate: %v", err)
	}
	fresh := &models.ChatMessage{Sender: "a", Content: "new", Direction: models.DirectionReceived}
	if err := s.SaveMessage(fresh); err != nil {
		t.Fatalf("save: %v", err)
	}

	un, err := s.UnrepliedMessages()
	if err != nil {
		t.Fatalf("unreplied: %v", err)
	}
	if len(un) != 2 {
		t.Fatalf("unreplied = %d, want 2", len(un))
	}
	if un[0].Content != "old" {
		t.Errorf("unreplied not oldest-first: %q", un[0].Content)
	}

	cutoff := time.Now().Add(-time.Hour).UnixMilli()
	deleted, err := s.DeleteMessagesBefore(cutoff)
	if err != nil {
		t.Fatalf("delete before: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
	n, err := s.MessageCount()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

func TestScriptCRUD(t *testing.T) {
	s := openTestStore(t)

	sc := &models.ScriptInfo{ID: "echo", Name: "Echo", Content: "function processMessage(m, s) { return m; }", Enabled: true}
	if err := s.SaveScript(sc); err != nil {
		t.Fatalf("save script: %v", err)
	}

	sc.Content = "function processMessage(m, s) { return 'v2:' + m; }"
	if err := s.SaveScript(sc); err != nil {
		t.Fatalf("upsert script: %v", err)
	}

	got, err := s.ScriptByID("echo")
	if err != nil {
		t.Fatalf("script by id: %v", err)
	}
	if got == nil || got.Content != sc.Content {
		t.Error("expected upserted script content")
	}

	if err := s.SetScriptEnabled("echo", false); err != nil {
		t.Fatalf("set enabled: %v", err)
	}
	enabled, err := s.EnabledScripts()
	if err != nil {
		t.Fatalf("enabled scripts: %v", err)
	}
	if len(enabled) != 0 {
		t.Errorf("enabled = %d, want 0", len(enabled))
	}

	if err := s.DeleteScript("echo"); err != nil {
		t.Fatalf("delete script: %v", err)
	}
	got, err = s.ScriptByID("echo")
	if err != nil {
		t.Fatalf("script by id after delete: %v", err)
	}
	if got != nil {
		t.Error("expected script gone after delete")
	}
}

func TestRuleByIDMissing(t *testing.T) {
	s := openTestStore(t)
	got, err := s.RuleByID(12345)
	if err != nil {
		t.Fatalf("rule by id: %v", err)
	}
	if got != nil {
		t.Error("expected nil for missing rule")
	}
}
