// Package automation wires the message pipeline: raw UI notifications in,
// serialized reply actions out.
package automation

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/acornrpa/acorn/internal/config"
	"github.com/acornrpa/acorn/internal/dispatch"
	"github.com/acornrpa/acorn/internal/models"
	"github.com/acornrpa/acorn/internal/rules"
	"github.com/acornrpa/acorn/internal/script"
	"github.com/acornrpa/acorn/internal/tracker"
	"github.com/acornrpa/acorn/internal/uitree"
)

// UI is the full device surface the pipeline needs: the active screen's
// node tree, the gesture channel, and a keep-alive hook invoked when
// automation starts so the device does not idle away under us.
type UI interface {
	dispatch.UI
	KeepAlive() error
}

// Store is the slice of the persistent store the pipeline needs beyond
// what the rule engine uses itself.
type Store interface {
	rules.Store
	Scripts() ([]models.ScriptInfo, error)
	EnabledScripts() ([]models.ScriptInfo, error)
	SaveScript(sc *models.ScriptInfo) error
	DeleteMessagesBefore(cutoff int64) (int64, error)
}

// Notifier reports pipeline activity to an operator. Optional.
type Notifier interface {
	ReplySent(ctx context.Context, sender, message, reply, ruleName string)
}

// Pipeline owns the background workers: a notification worker feeding the
// tracker, a message worker running the rule engine, the dispatcher's
// consumer loop, and the cron maintenance loops. The notification callback
// itself never blocks on store, script, or device work.
type Pipeline struct {
	cfg        *config.Config
	store      Store
	eval       *script.Evaluator
	engine     *rules.Engine
	tracker    *tracker.Tracker
	dispatcher *dispatch.Dispatcher
	ui         UI
	notifier   Notifier
	out        io.Writer

	notifs chan tracker.Notification
	events chan tracker.MessageEvent
}

// PipelineOpts holds parameters for creating a Pipeline.
type PipelineOpts struct {
	Config   *config.Config
	Store    Store
	Eval     *script.Evaluator
	UI       UI
	Notifier Notifier  // optional
	Out      io.Writer // defaults to os.Stdout
}

// New creates a Pipeline and its subsystems.
func New(opts PipelineOpts) (*Pipeline, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("automation: config is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("automation: store is required")
	}
	if opts.Eval == nil {
		return nil, fmt.Errorf("automation: script evaluator is required")
	}
	if opts.UI == nil {
		return nil, fmt.Errorf("automation: ui is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	p := &Pipeline{
		cfg:      opts.Config,
		store:    opts.Store,
		eval:     opts.Eval,
		ui:       opts.UI,
		notifier: opts.Notifier,
		out:      out,
		notifs:   make(chan tracker.Notification, 64),
		events:   make(chan tracker.MessageEvent, 64),
	}

	engine, err := rules.New(rules.EngineOpts{
		Store:     opts.Store,
		Evaluator: opts.Eval,
		Out:       out,
	})
	if err != nil {
		return nil, fmt.Errorf("automation: %w", err)
	}
	p.engine = engine

	sel := opts.Config.Selectors
	tr, err := tracker.New(tracker.TrackerOpts{
		TargetPackage: opts.Config.Target.Package,
		ChatClasses:   opts.Config.Target.ChatClasses,
		TitlePattern:  opts.Config.Target.ChatTitlePattern,
		Roots:         opts.UI,
		Extractor: &uitree.Extractor{
			ContainerIDs: sel.MessageList,
			TextIDs:      sel.MessageText,
		},
		OnMessage: func(ev tracker.MessageEvent) { p.events <- ev },
		Out:       out,
	})
	if err != nil {
		return nil, fmt.Errorf("automation: %w", err)
	}
	p.tracker = tr

	disp, err := dispatch.New(dispatch.DispatcherOpts{
		UI:       opts.UI,
		InputIDs: sel.InputBox,
		SendIDs:  sel.SendButton,
		Tick:     time.Duration(opts.Config.Dispatcher.TickMs) * time.Millisecond,
		Out:      out,
	})
	if err != nil {
		return nil, fmt.Errorf("automation: %w", err)
	}
	p.dispatcher = disp

	return p, nil
}

// Engine exposes the rule engine, for the management surface.
func (p *Pipeline) Engine() *rules.Engine { return p.engine }

// Dispatcher exposes the action dispatcher, for direct tap commands.
func (p *Pipeline) Dispatcher() *dispatch.Dispatcher { return p.dispatcher }

// HandleNotification accepts one raw UI-change notification. It is safe to
// call from the event source's callback thread: the notification is handed
// to a background worker and this method returns immediately. When the
// pipeline is saturated the notification is dropped; redundant content
// changes are the common case and the tracker deduplicates anyway.
func (p *Pipeline) HandleNotification(n tracker.Notification) {
	select {
	case p.notifs <- n:
	default:
		log.Printf("automation: notification backlog full, dropping %s", n.Type)
	}
}

// Run starts all workers and blocks until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	if err := p.ui.KeepAlive(); err != nil {
		log.Printf("automation: keep-alive: %v", err)
	}

	p.bootstrapScripts()
	if err := p.engine.RefreshCache(); err != nil {
		log.Printf("automation: initial rule load: %v", err)
	}

	go p.dispatcher.Run(ctx)
	go p.notificationWorker(ctx)
	go p.messageWorker(ctx)
	go p.scheduleLoop(ctx, p.cfg.Schedules.RulesRefresh, "rules refresh", func() {
		if err := p.engine.RefreshCache(); err != nil {
			log.Printf("automation: scheduled refresh: %v", err)
		}
	})
	go p.scheduleLoop(ctx, p.cfg.Schedules.Retention, "retention", p.runRetention)

	fmt.Fprintf(p.out, "automation: pipeline running (target %s)\n", p.cfg.Target.Package)
	<-ctx.Done()
	return nil
}

// notificationWorker drains raw notifications into the tracker, one at a
// time, preserving their arrival order.
func (p *Pipeline) notificationWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-p.notifs:
			p.tracker.Handle(n)
		}
	}
}

// messageWorker consumes MessageReceived events in emission order. The
// per-rule reply delay suspends this worker on purpose: replies for one
// conversation keep their order.
func (p *Pipeline) messageWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-p.events:
			p.handleMessage(ctx, ev)
		}
	}
}

func (p *Pipeline) handleMessage(ctx context.Context, ev tracker.MessageEvent) {
	d := p.engine.Process(ev.Content, ev.Sender)
	if d == nil {
		return
	}
	if d.Delay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.Delay):
		}
	}
	if !p.dispatcher.SendText(d.Reply) {
		log.Printf("automation: reply to %q not enqueued", ev.Sender)
		return
	}
	fmt.Fprintf(p.out, "automation: reply to %q queued: %s\n", ev.Sender, d.Reply)
	if p.notifier != nil {
		p.notifier.ReplySent(ctx, ev.Sender, ev.Content, d.Reply, d.Rule.Name)
	}
}

// bootstrapScripts seeds the sample scripts on an empty store and
// registers every enabled script with the evaluator.
func (p *Pipeline) bootstrapScripts() {
	if err := SeedSampleScripts(p.store, p.out); err != nil {
		log.Printf("automation: seed scripts: %v", err)
	}
	scripts, err := p.store.EnabledScripts()
	if err != nil {
		log.Printf("automation: load scripts: %v", err)
		return
	}
	for _, sc := range scripts {
		if err := p.eval.Register(sc.ID, sc.Content); err != nil {
			log.Printf("automation: register script %q: %v", sc.ID, err)
		}
	}
}

// runRetention deletes messages older than the configured retention window.
func (p *Pipeline) runRetention() {
	days := p.cfg.Schedules.RetentionDays
	cutoff := time.Now().AddDate(0, 0, -days).UnixMilli()
	deleted, err := p.store.DeleteMessagesBefore(cutoff)
	if err != nil {
		log.Printf("automation: retention: %v", err)
		return
	}
	if deleted > 0 {
		fmt.Fprintf(p.out, "automation: retention removed %d messages older than %d days\n", deleted, days)
	}
}
