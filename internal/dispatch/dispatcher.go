// Package dispatch serializes UI-mutating actions against the foreign
// application.
package dispatch

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/acornrpa/acorn/internal/uitree"
)

// DefaultTick is how often the consumer loop polls for a pending action.
const DefaultTick = 100 * time.Millisecond

// UI is the device surface the dispatcher mutates. Root returns the active
// screen's node tree (nil when unavailable; the caller recycles it). Tap
// dispatches a coordinate gesture, a separate device channel from node
// actions, which is why ClickAt bypasses the queue.
type UI interface {
	Root() uitree.Node
	Tap(x, y int) error
}

// Dispatcher queues zero-argument UI actions and drains them one per tick
// from a single consumer, so mutations against the foreign UI never
// interleave. Producers enqueue without blocking; enqueue success says
// nothing about eventual delivery, which is observable only via logs.
type Dispatcher struct {
	ui       UI
	inputIDs []string
	sendIDs  []string
	tick     time.Duration
	out      io.Writer

	mu    sync.Mutex
	queue []func()
}

// DispatcherOpts holds parameters for creating a Dispatcher.
type DispatcherOpts struct {
	UI       UI
	InputIDs []string // candidate ids for the text input element
	SendIDs  []string // candidate ids for the send control
	Tick     time.Duration
	Out      io.Writer // defaults to os.Stdout
}

// New creates a Dispatcher.
func New(opts DispatcherOpts) (*Dispatcher, error) {
	if opts.UI == nil {
		return nil, fmt.Errorf("dispatch: ui is required")
	}
	if len(opts.InputIDs) == 0 || len(opts.SendIDs) == 0 {
		return nil, fmt.Errorf("dispatch: input and send candidate ids are required")
	}
	tick := opts.Tick
	if tick <= 0 {
		tick = DefaultTick
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Dispatcher{
		ui:       opts.UI,
		inputIDs: opts.InputIDs,
		sendIDs:  opts.SendIDs,
		tick:     tick,
		out:      out,
	}, nil
}

// Run drives the consumer loop until ctx is cancelled. At most one action
// executes per tick, and a failing or panicking action never stops the
// loop.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.runNext()
		}
	}
}

// runNext pops and executes at most one queued action.
func (d *Dispatcher) runNext() {
	d.mu.Lock()
	var task func()
	if len(d.queue) > 0 {
		task = d.queue[0]
		d.queue = d.queue[1:]
	}
	d.mu.Unlock()
	if task == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("dispatch: action panic: %v", r)
		}
	}()
	task()
}

// Enqueue adds an action to the queue. Never blocks.
func (d *Dispatcher) Enqueue(task func()) bool {
	if task == nil {
		return false
	}
	d.mu.Lock()
	d.queue = append(d.queue, task)
	d.mu.Unlock()
	return true
}

// Pending returns the number of queued actions.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// SendText enqueues a send action: locate the input element, set its text,
// locate the send control, click it. Each step that fails is logged and
// the rest of the action is abandoned without retry. The return value
// reflects successful enqueuing only.
func (d *Dispatcher) SendText(text string) bool {
	return d.Enqueue(func() { d.performSend(text) })
}

// ClickAt dispatches a coordinate tap immediately, bypassing the queue.
func (d *Dispatcher) ClickAt(x, y int) error {
	if err := d.ui.Tap(x, y); err != nil {
		return fmt.Errorf("dispatch: tap (%d,%d): %w", x, y, err)
	}
	return nil
}

func (d *Dispatcher) performSend(text string) {
	root := d.ui.Root()
	if root == nil {
		log.Printf("dispatch: send: no active window")
		return
	}
	defer root.Recycle()

	inputs := uitree.Locate(root, d.inputIDs)
	if len(inputs) == 0 {
		log.Printf("dispatch: send: input element not found")
		return
	}
	defer uitree.RecycleAll(inputs)

	if err := inputs[0].SetText(text); err != nil {
		log.Printf("dispatch: send: set text: %v", err)
		return
	}

	sends := uitree.Locate(root, d.sendIDs)
	if len(sends) == 0 {
		log.Printf("dispatch: send: send control not found")
		return
	}
	defer uitree.RecycleAll(sends)

	if err := sends[0].Click(); err != nil {
		log.Printf("dispatch: send: click: %v", err)
		return
	}
	fmt.Fprintf(d.out, "dispatch: sent %q\n", truncate(text, 80))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
