package adbui

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/acornrpa/acorn/internal/tracker"
	"github.com/acornrpa/acorn/internal/uitree"
)

// focusSource reports the currently focused window. Satisfied by *UI and
// faked in tests.
type focusSource interface {
	FocusedWindow() (pkg, class string, err error)
	Root() uitree.Node
}

// Watcher polls the device's focused window and synthesizes the two
// notification kinds the tracker consumes: a window-state change when
// focus moves, and a content change on every later poll while the
// target app keeps focus. Without an accessibility feed this is the
// closest adb gets to event delivery.
type Watcher struct {
	src     focusSource
	target  string
	titles  []string
	poll    time.Duration
	handler func(tracker.Notification)
	out     io.Writer

	lastPkg   string
	lastClass string
}

// WatcherOpts holds parameters for creating a Watcher.
type WatcherOpts struct {
	Source   focusSource
	Target   string   // package to watch
	TitleIDs []string // candidate ids of the window title element
	Poll     time.Duration
	Handler  func(tracker.Notification)
	Out      io.Writer // defaults to os.Stdout
}

// NewWatcher creates a Watcher.
func NewWatcher(opts WatcherOpts) (*Watcher, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("adbui: watcher source is required")
	}
	if opts.Target == "" {
		return nil, fmt.Errorf("adbui: watcher target package is required")
	}
	if opts.Handler == nil {
		return nil, fmt.Errorf("adbui: watcher handler is required")
	}
	w := &Watcher{
		src:     opts.Source,
		target:  opts.Target,
		titles:  opts.TitleIDs,
		poll:    opts.Poll,
		handler: opts.Handler,
		out:     opts.Out,
	}
	if w.poll <= 0 {
		w.poll = time.Second
	}
	if w.out == nil {
		w.out = os.Stdout
	}
	return w, nil
}

// Run polls until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.pollOnce()
		}
	}
}

func (w *Watcher) pollOnce() {
	pkg, class, err := w.src.FocusedWindow()
	if err != nil {
		log.Printf("adbui: focus poll: %v", err)
		return
	}

	if pkg == w.target && w.lastPkg != w.target {
		fmt.Fprintf(w.out, "adbui: %s focused (%s)\n", pkg, class)
	}

	if pkg != w.lastPkg || class != w.lastClass {
		w.lastPkg, w.lastClass = pkg, class
		if pkg == w.target {
			w.handler(tracker.Notification{
				Type:      tracker.WindowStateChanged,
				Package:   pkg,
				ClassName: class,
				Texts:     w.windowTitles(),
			})
		}
		return
	}

	if pkg == w.target {
		w.handler(tracker.Notification{
			Type:    tracker.ContentChanged,
			Package: pkg,
		})
	}
}

// windowTitles reads the visible window title texts, used by the tracker
// to recover the conversation name.
func (w *Watcher) windowTitles() []string {
	root := w.src.Root()
	if root == nil {
		return nil
	}
	defer root.Recycle()
	nodes := uitree.Locate(root, w.titles)
	defer uitree.RecycleAll(nodes)
	texts := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if t := n.Text(); t != "" {
			texts = append(texts, t)
		}
	}
	return texts
}
