package automation

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/acornrpa/acorn/internal/config"
	"github.com/acornrpa/acorn/internal/models"
	"github.com/acornrpa/acorn/internal/script"
	"github.com/acornrpa/acorn/internal/store"
	"github.com/acornrpa/acorn/internal/tracker"
	"github.com/acornrpa/acorn/internal/uitree"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// mockUI serves a settable mock tree and records device interactions.
type mockUI struct {
	root      *uitree.MockNode
	taps      [][2]int
	keptAlive int
}

func (m *mockUI) Root() uitree.Node {
	if m.root == nil {
		return nil
	}
	return m.root
}

func (m *mockUI) Tap(x, y int) error {
	m.taps = append(m.taps, [2]int{x, y})
	return nil
}

func (m *mockUI) KeepAlive() error {
	m.keptAlive++
	return nil
}

// setChatScreen installs a tree with the given messages plus input and
// send elements, using the test selector ids.
func (m *mockUI) setChatScreen(messages ...string) (input, send *uitree.MockNode) {
	root := uitree.NewMockNode("")
	for _, msg := range messages {
		c := uitree.NewMockNode("")
		c.AddChild("text-id", uitree.NewMockNode(msg))
		root.AddChild("list-id", c)
	}
	input = uitree.NewMockNode("")
	send = uitree.NewMockNode("")
	root.AddChild("input-id", input)
	root.AddChild("send-id", send)
	m.root = root
	return input, send
}

type recordedReply struct {
	Sender, Message, Reply, Rule string
}

type mockNotifier struct {
	replies []recordedReply
}

func (m *mockNotifier) ReplySent(ctx context.Context, sender, message, reply, ruleName string) {
	m.replies = append(m.replies, recordedReply{sender, message, reply, ruleName})
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Target.Package = "com.example.chat"
	cfg.Target.ChatClasses = []string{"ChattingUI"}
	cfg.Target.ChatTitlePattern = `^(.*) — chat$`
	cfg.Selectors.MessageList = []string{"list-id"}
	cfg.Selectors.MessageText = []string{"text-id"}
	cfg.Selectors.InputBox = []string{"input-id"}
	cfg.Selectors.SendButton = []string{"send-id"}
	cfg.Dispatcher.TickMs = 5
	return cfg
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := store.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store.New(db)
}

func newTestPipeline(t *testing.T, s *store.Store, ui *mockUI, n Notifier) *Pipeline {
	t.Helper()
	p, err := New(PipelineOpts{
		Config:   testConfig(),
		Store:    s,
		Eval:     script.NewEvaluator(script.EvaluatorOpts{Out: &bytes.Buffer{}}),
		UI:       ui,
		Notifier: n,
		Out:      &bytes.Buffer{},
	})
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	return p
}

func enterChat(p *Pipeline, name string) {
	p.tracker.Handle(tracker.Notification{
		Type:      tracker.WindowStateChanged,
		Package:   "com.example.chat",
		ClassName: "com.example.chat.ui.ChattingUI",
		Texts:     []string{name + " — chat"},
	})
}

func contentChanged(p *Pipeline) {
	p.tracker.Handle(tracker.Notification{
		Type:    tracker.ContentChanged,
		Package: "com.example.chat",
	})
}

func TestPipelineEndToEnd(t *testing.T) {
	s := openTestStore(t)
	if err := s.SaveRule(&models.MessageRule{
		Name: "greet", MatchType: models.MatchContains, MatchPattern: "hello",
		ResponseType: models.ResponseFixed, ResponseContent: "hi there", Enabled: true,
	}); err != nil {
		t.Fatalf("save rule: %v", err)
	}

	ui := &mockUI{}
	notifier := &mockNotifier{}
	p := newTestPipeline(t, s, ui, notifier)

	if err := p.engine.RefreshCache(); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	enterChat(p, "bob")
	ui.setChatScreen("say hello please")
	contentChanged(p)

	select {
	case ev := <-p.events:
		p.handleMessage(context.Background(), ev)
	case <-time.After(time.Second):
		t.Fatal("no message event emitted")
	}

	if p.dispatcher.Pending() != 1 {
		t.Fatalf("pending actions = %d, want 1", p.dispatcher.Pending())
	}

	// Drain the queue through the real consumer loop. Pending is safe to
	// poll; the mocks are only inspected after Run has returned.
	input, send := ui.setChatScreen()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.dispatcher.Run(ctx)
		close(done)
	}()
	deadline := time.Now().Add(2 * time.Second)
	for p.dispatcher.Pending() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if len(input.TextSet) != 1 || input.TextSet[0] != "hi there" {
		t.Errorf("input text = %v, want [hi there]", input.TextSet)
	}
	if send.Clicks != 1 {
		t.Errorf("send clicks = %d, want 1", send.Clicks)
	}

	// The inbound message was recorded and marked replied.
	msgs, err := s.RecentMessages(10, 0)
	if err != nil {
		t.Fatalf("recent messages: %v", err)
	}
	if len(msgs) != 1 || !msgs[0].Replied {
		t.Fatalf("messages = %+v, want one replied record", msgs)
	}

	if len(notifier.replies) != 1 || notifier.replies[0].Rule != "greet" {
		t.Errorf("notifier replies = %+v", notifier.replies)
	}
}

func TestPipelineScriptReply(t *testing.T) {
	s := openTestStore(t)
	if err := s.SaveScript(&models.ScriptInfo{
		ID: "echo", Name: "Echo", Enabled: true,
		Content: `function processMessage(message, sender) { return "echo:" + message; }`,
	}); err != nil {
		t.Fatalf("save script: %v", err)
	}
	if err := s.SaveRule(&models.MessageRule{
		Name: "echo-all", MatchType: models.MatchContains, MatchPattern: "",
		ResponseType: models.ResponseScript, ResponseContent: "echo", Enabled: true,
	}); err != nil {
		t.Fatalf("save rule: %v", err)
	}

	ui := &mockUI{}
	p := newTestPipeline(t, s, ui, nil)
	p.bootstrapScripts()
	if err := p.engine.RefreshCache(); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	enterChat(p, "alice")
	ui.setChatScreen("hi")
	contentChanged(p)

	select {
	case ev := <-p.events:
		p.handleMessage(context.Background(), ev)
	case <-time.After(time.Second):
		t.Fatal("no message event emitted")
	}
	if p.dispatcher.Pending() != 1 {
		t.Fatalf("pending = %d, want 1 queued script reply", p.dispatcher.Pending())
	}
}

func TestPipelineRunStartsKeepAlive(t *testing.T) {
	s := openTestStore(t)
	ui := &mockUI{}
	p := newTestPipeline(t, s, ui, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	// Run blocks until cancelled; give it a moment to start.
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if ui.keptAlive != 1 {
		t.Errorf("keep-alive invocations = %d, want 1", ui.keptAlive)
	}
}

func TestHandleNotificationNeverBlocks(t *testing.T) {
	s := openTestStore(t)
	ui := &mockUI{}
	p := newTestPipeline(t, s, ui, nil)

	// No worker is draining; far more than the backlog capacity must
	// still return promptly.
	doneCh := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			p.HandleNotification(tracker.Notification{
				Type:    tracker.ContentChanged,
				Package: "com.example.chat",
			})
		}
		close(doneCh)
	}()
	select {
	case <-doneCh:
	case <-time.After(time.Second):
		t.Fatal("HandleNotification blocked")
	}
}

func TestSeedSampleScripts(t *testing.T) {
	s := openTestStore(t)
	var out bytes.Buffer

	if err := SeedSampleScripts(s, &out); err != nil {
		t.Fatalf("seed: %v", err)
	}
	scripts, err := s.Scripts()
	if err != nil {
		t.Fatalf("scripts: %v", err)
	}
	if len(scripts) != 2 {
		t.Fatalf("seeded %d scripts, want 2", len(scripts))
	}

	// A populated store is left alone: seeding again changes nothing.
	if err := s.DeleteScript("time"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := SeedSampleScripts(s, &out); err != nil {
		t.Fatalf("re-seed: %v", err)
	}
	scripts, err = s.Scripts()
	if err != nil {
		t.Fatalf("scripts: %v", err)
	}
	if len(scripts) != 1 {
		t.Errorf("scripts after re-seed = %d, want 1 (no re-seeding)", len(scripts))
	}
}

func TestSeededScriptsCompileAndRun(t *testing.T) {
	s := openTestStore(t)
	if err := SeedSampleScripts(s, &bytes.Buffer{}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	eval := script.NewEvaluator(script.EvaluatorOpts{Out: &bytes.Buffer{}})
	scripts, err := s.EnabledScripts()
	if err != nil {
		t.Fatalf("enabled scripts: %v", err)
	}
	for _, sc := range scripts {
		if err := eval.Register(sc.ID, sc.Content); err != nil {
			t.Errorf("sample script %q does not compile: %v", sc.ID, err)
		}
	}
	got, err := eval.ProcessChatMessage("echo", "hi", "bob")
	if err != nil {
		t.Fatalf("echo sample: %v", err)
	}
	if got != "echo: hi" {
		t.Errorf("echo sample reply = %q", got)
	}
}

func TestNextCronDuration(t *testing.T) {
	if d := nextCronDuration("*/5 * * * *"); d <= 0 || d > 5*time.Minute {
		t.Errorf("next duration = %v, want within (0, 5m]", d)
	}
	if d := nextCronDuration("not a cron"); d != 0 {
		t.Errorf("invalid expression duration = %v, want 0", d)
	}
}

func TestNewValidatesOpts(t *testing.T) {
	if _, err := New(PipelineOpts{}); err == nil {
		t.Error("expected error for empty opts")
	}
}
