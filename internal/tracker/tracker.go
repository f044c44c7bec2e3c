// Package tracker turns raw UI-change notifications into discrete
// message-received events.
package tracker

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/acornrpa/acorn/internal/uitree"
)

// NotificationType classifies a raw UI-change notification.
type NotificationType string

const (
	WindowStateChanged NotificationType = "window_state_changed"
	ContentChanged     NotificationType = "content_changed"
)

// Notification is one raw UI-change event from the device event source.
type Notification struct {
	Type      NotificationType
	Package   string   // source application package
	ClassName string   // source view class
	Texts     []string // window title / text list, may be empty
}

// MessageEvent is emitted once per distinct newest message in the active
// conversation.
type MessageEvent struct {
	Content string
	Sender  string
}

// RootProvider supplies the UI node tree of the currently active screen.
// Root may return nil when no tree is available; the returned node is owned
// by the caller and must be recycled.
type RootProvider interface {
	Root() uitree.Node
}

// Tracker maintains the current-conversation state machine. It has two
// states: no active chat, or in a chat with a known target. Window-change
// notifications drive the transitions; content-change notifications while
// in a chat trigger re-extraction and deduplicated message emission.
type Tracker struct {
	targetPackage string
	chatClasses   []string
	titleRE       *regexp.Regexp
	roots         RootProvider
	extractor     *uitree.Extractor
	onMessage     func(MessageEvent)
	out           io.Writer

	mu          sync.Mutex
	target      string // current conversation, empty = no active chat
	lastMessage string // last processed newest-message text, for dedup
}

// TrackerOpts holds parameters for creating a Tracker.
type TrackerOpts struct {
	TargetPackage string
	ChatClasses   []string // view-class substrings that mark the chat surface
	TitlePattern  string   // regexp with the conversation name in group 1
	Roots         RootProvider
	Extractor     *uitree.Extractor
	OnMessage     func(MessageEvent)
	Out           io.Writer // defaults to os.Stdout
}

// New creates a Tracker.
func New(opts TrackerOpts) (*Tracker, error) {
	if opts.TargetPackage == "" {
		return nil, fmt.Errorf("tracker: target package is required")
	}
	if len(opts.ChatClasses) == 0 {
		return nil, fmt.Errorf("tracker: at least one chat class is required")
	}
	if opts.Roots == nil {
		return nil, fmt.Errorf("tracker: root provider is required")
	}
	if opts.Extractor == nil {
		return nil, fmt.Errorf("tracker: extractor is required")
	}
	if opts.OnMessage == nil {
		return nil, fmt.Errorf("tracker: message handler is required")
	}
	titleRE, err := regexp.Compile(opts.TitlePattern)
	if err != nil {
		return nil, fmt.Errorf("tracker: title pattern: %w", err)
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Tracker{
		targetPackage: opts.TargetPackage,
		chatClasses:   opts.ChatClasses,
		titleRE:       titleRE,
		roots:         opts.Roots,
		extractor:     opts.Extractor,
		onMessage:     opts.OnMessage,
		out:           out,
	}, nil
}

// Handle consumes one raw notification. Notifications from other packages
// are ignored. Content changes while no chat is active are ignored
// entirely; the state machine only extracts inside a known conversation.
func (t *Tracker) Handle(n Notification) {
	if n.Package != t.targetPackage {
		return
	}
	switch n.Type {
	case WindowStateChanged:
		t.handleWindowChanged(n)
	case ContentChanged:
		if t.Target() != "" {
			t.handleContentChanged()
		}
	}
}

// Target returns the current conversation target, empty when none.
func (t *Tracker) Target() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.target
}

// handleWindowChanged re-derives the active conversation from the window's
// view class and title. Anything that is not a chat surface with a
// parseable title leaves the tracker with no active chat.
func (t *Tracker) handleWindowChanged(n Notification) {
	next := ""
	if t.isChatSurface(n.ClassName) {
		title := ""
		if len(n.Texts) > 0 {
			title = n.Texts[0]
		}
		if m := t.titleRE.FindStringSubmatch(title); m != nil && len(m) > 1 {
			next = m[1]
		}
	}

	t.mu.Lock()
	prev := t.target
	t.target = next
	t.mu.Unlock()

	if next != "" && next != prev {
		fmt.Fprintf(t.out, "tracker: entered chat with %q\n", next)
	} else if next == "" && prev != "" {
		fmt.Fprintf(t.out, "tracker: left chat with %q\n", prev)
	}
}

// handleContentChanged re-extracts the visible messages and emits an event
// only when the newest message differs from the last processed one. The
// foreign UI fires many redundant content changes per visible update;
// this comparison is the dedup contract.
func (t *Tracker) handleContentChanged() {
	root := t.roots.Root()
	if root == nil {
		return
	}
	defer root.Recycle()

	messages := t.extractor.Extract(root)
	if len(messages) == 0 {
		return
	}
	newest := messages[len(messages)-1]

	t.mu.Lock()
	if t.target == "" || newest == t.lastMessage {
		t.mu.Unlock()
		return
	}
	t.lastMessage = newest
	sender := t.target
	t.mu.Unlock()

	fmt.Fprintf(t.out, "tracker: message from %q: %s\n", sender, truncate(newest, 80))
	t.onMessage(MessageEvent{Content: newest, Sender: sender})
}

// isChatSurface reports whether the view class belongs to the chat screen.
func (t *Tracker) isChatSurface(className string) bool {
	for _, c := range t.chatClasses {
		if strings.Contains(className, c) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
