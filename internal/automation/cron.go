package automation

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// nextCronDuration parses a 5-field cron expression and returns the duration
// until the next fire time. Returns 0 on parse error.
func nextCronDuration(expr string) time.Duration {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return 0
	}
	next := sched.Next(time.Now())
	d := time.Until(next)
	if d < 0 {
		return 0
	}
	return d
}

// scheduleLoop fires fn on the cron expression until ctx is cancelled. An
// empty expression disables the job; an unparseable one is logged once and
// disables it too.
func (p *Pipeline) scheduleLoop(ctx context.Context, expr, name string, fn func()) {
	if expr == "" {
		return
	}
	if _, err := cronParser.Parse(expr); err != nil {
		log.Printf("automation: %s schedule %q: %v", name, expr, err)
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(nextCronDuration(expr)):
			fn()
		}
	}
}
