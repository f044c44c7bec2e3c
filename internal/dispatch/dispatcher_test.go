package dispatch

import (
	"bytes"
	"errors"
	"testing"

	"github.com/acornrpa/acorn/internal/uitree"
)

// mockUI serves a settable tree and records taps.
type mockUI struct {
	root   *uitree.MockNode
	taps   [][2]int
	tapErr error
}

func (m *mockUI) Root() uitree.Node {
	if m.root == nil {
		return nil
	}
	return m.root
}

func (m *mockUI) Tap(x, y int) error {
	if m.tapErr != nil {
		return m.tapErr
	}
	m.taps = append(m.taps, [2]int{x, y})
	return nil
}

func newSendTree() (*uitree.MockNode, *uitree.MockNode, *uitree.MockNode) {
	root := uitree.NewMockNode("")
	input := uitree.NewMockNode("")
	send := uitree.NewMockNode("")
	root.AddChild("input-id", input)
	root.AddChild("send-id", send)
	return root, input, send
}

func newTestDispatcher(t *testing.T, ui *mockUI) *Dispatcher {
	t.Helper()
	d, err := New(DispatcherOpts{
		UI:       ui,
		InputIDs: []string{"legacy-input", "input-id"},
		SendIDs:  []string{"legacy-send", "send-id"},
		Out:      &bytes.Buffer{},
	})
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	return d
}

func TestSendTextHappyPath(t *testing.T) {
	root, input, send := newSendTree()
	ui := &mockUI{root: root}
	d := newTestDispatcher(t, ui)

	if !d.SendText("hi there") {
		t.Fatal("expected enqueue to succeed")
	}
	if d.Pending() != 1 {
		t.Fatalf("pending = %d, want 1", d.Pending())
	}

	d.runNext()

	if len(input.TextSet) != 1 || input.TextSet[0] != "hi there" {
		t.Errorf("input text = %v", input.TextSet)
	}
	if send.Clicks != 1 {
		t.Errorf("send clicks = %d, want 1", send.Clicks)
	}
	if !root.Recycled || !input.Recycled || !send.Recycled {
		t.Error("all handles must be recycled")
	}
	if d.Pending() != 0 {
		t.Errorf("pending = %d after drain, want 0", d.Pending())
	}
}

func TestOneActionPerTick(t *testing.T) {
	root, input, _ := newSendTree()
	ui := &mockUI{root: root}
	d := newTestDispatcher(t, ui)

	d.SendText("first")
	d.SendText("second")

	d.runNext()
	if len(input.TextSet) != 1 {
		t.Fatalf("texts after one tick = %v, want just the first", input.TextSet)
	}
	if d.Pending() != 1 {
		t.Fatalf("pending = %d, want 1", d.Pending())
	}

	// Next tick needs a fresh tree: the previous one was recycled.
	root2, input2, _ := newSendTree()
	ui.root = root2
	d.runNext()
	if len(input2.TextSet) != 1 || input2.TextSet[0] != "second" {
		t.Errorf("second tick texts = %v, want FIFO order", input2.TextSet)
	}
}

func TestSendAbandonedWhenInputMissing(t *testing.T) {
	root := uitree.NewMockNode("")
	send := uitree.NewMockNode("")
	root.AddChild("send-id", send)
	ui := &mockUI{root: root}
	d := newTestDispatcher(t, ui)

	d.SendText("hello")
	d.runNext()

	if send.Clicks != 0 {
		t.Error("send must not be clicked when the input element is missing")
	}
	if !root.Recycled {
		t.Error("root must be recycled on the failure path")
	}
}

func TestSendAbandonedWhenSetTextFails(t *testing.T) {
	root, input, send := newSendTree()
	input.SetTextErr = errors.New("action rejected")
	ui := &mockUI{root: root}
	d := newTestDispatcher(t, ui)

	d.SendText("hello")
	d.runNext()

	if send.Clicks != 0 {
		t.Error("send must not be clicked after set-text failure")
	}
}

func TestSendAbandonedWhenNoWindow(t *testing.T) {
	ui := &mockUI{}
	d := newTestDispatcher(t, ui)

	if !d.SendText("hello") {
		t.Fatal("enqueue must succeed even when delivery will fail")
	}
	d.runNext() // no window: logged and dropped
	if d.Pending() != 0 {
		t.Errorf("pending = %d, want 0", d.Pending())
	}
}

func TestPanickingActionDoesNotStopConsumer(t *testing.T) {
	root, input, _ := newSendTree()
	ui := &mockUI{root: root}
	d := newTestDispatcher(t, ui)

	d.Enqueue(func() { panic("boom") })
	d.SendText("after")

	d.runNext() // must not propagate the panic
	d.runNext()

	if len(input.TextSet) != 1 || input.TextSet[0] != "after" {
		t.Errorf("texts = %v, want the action after the panic to run", input.TextSet)
	}
}

func TestClickAtBypassesQueue(t *testing.T) {
	ui := &mockUI{}
	d := newTestDispatcher(t, ui)

	if err := d.ClickAt(10, 20); err != nil {
		t.Fatalf("click at: %v", err)
	}
	if d.Pending() != 0 {
		t.Errorf("pending = %d, tap must not be queued", d.Pending())
	}
	if len(ui.taps) != 1 || ui.taps[0] != [2]int{10, 20} {
		t.Errorf("taps = %v", ui.taps)
	}

	ui.tapErr = errors.New("gesture rejected")
	if err := d.ClickAt(1, 2); err == nil {
		t.Error("expected tap error to surface")
	}
}

func TestEnqueueNil(t *testing.T) {
	ui := &mockUI{}
	d := newTestDispatcher(t, ui)
	if d.Enqueue(nil) {
		t.Error("nil task must not be enqueued")
	}
}

func TestNewValidatesOpts(t *testing.T) {
	if _, err := New(DispatcherOpts{}); err == nil {
		t.Error("expected error for missing ui")
	}
	if _, err := New(DispatcherOpts{UI: &mockUI{}}); err == nil {
		t.Error("expected error for missing candidate ids")
	}
}
