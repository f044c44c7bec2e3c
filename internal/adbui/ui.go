package adbui

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/acornrpa/acorn/internal/uitree"
)

const (
	dumpFile       = "/data/local/tmp/acorn-view.xml"
	defaultTimeout = 30 * time.Second
	dumpRetries    = 3
)

// UI exposes the device screen to the automation pipeline. Root dumps
// the current view hierarchy, Tap and text entry go through the input
// service, and KeepAlive pins the screen on while automation runs.
type UI struct {
	client     *Client
	cmdTimeout time.Duration
	out        io.Writer
}

// UIOpts holds parameters for creating a UI.
type UIOpts struct {
	Client     *Client
	CmdTimeout time.Duration // defaults to 30s
	Out        io.Writer     // defaults to os.Stdout
}

// New creates a UI.
func New(opts UIOpts) (*UI, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("adbui: client is required")
	}
	u := &UI{
		client:     opts.Client,
		cmdTimeout: opts.CmdTimeout,
		out:        opts.Out,
	}
	if u.cmdTimeout <= 0 {
		u.cmdTimeout = defaultTimeout
	}
	if u.out == nil {
		u.out = os.Stdout
	}
	return u, nil
}

// Root dumps the current view hierarchy and returns its root node, or
// nil when no dump could be obtained. uiautomator is flaky under load,
// so the dump is retried with a process cleanup between attempts.
func (u *UI) Root() uitree.Node {
	ctx, cancel := u.cmdContext()
	defer cancel()

	for i := 0; i < dumpRetries; i++ {
		if i > 0 {
			u.client.Shell(ctx, "pkill", "uiautomator")
			time.Sleep(500 * time.Millisecond)
		}
		out, err := u.client.Shell(ctx, "uiautomator", "dump", dumpFile, "&&", "cat", dumpFile)
		if err != nil {
			fmt.Fprintf(u.out, "adbui: dump attempt %d: %v\n", i+1, err)
			continue
		}
		root, err := parseHierarchy(out)
		if err != nil {
			fmt.Fprintf(u.out, "adbui: dump attempt %d: %v\n", i+1, err)
			continue
		}
		return &node{x: root, ui: u}
	}
	return nil
}

// Tap injects a tap at screen coordinates.
func (u *UI) Tap(x, y int) error {
	ctx, cancel := u.cmdContext()
	defer cancel()
	_, err := u.client.Shell(ctx, "input", "tap", strconv.Itoa(x), strconv.Itoa(y))
	return err
}

// KeepAlive keeps the screen on while plugged in and wakes it up, so
// the foreign app keeps rendering the trees the pipeline reads.
func (u *UI) KeepAlive() error {
	ctx, cancel := u.cmdContext()
	defer cancel()
	if _, err := u.client.Shell(ctx, "svc", "power", "stayon", "true"); err != nil {
		return err
	}
	_, err := u.client.Shell(ctx, "input", "keyevent", "KEYCODE_WAKEUP")
	return err
}

// FocusedWindow returns the package and activity class of the window
// that currently holds input focus, parsed from dumpsys.
func (u *UI) FocusedWindow() (pkg, class string, err error) {
	ctx, cancel := u.cmdContext()
	defer cancel()
	out, err := u.client.Shell(ctx, "dumpsys", "window", "windows")
	if err != nil {
		return "", "", err
	}
	pkg, class, ok := parseFocusedWindow(out)
	if !ok {
		return "", "", fmt.Errorf("adbui: no focused window in dumpsys output")
	}
	return pkg, class, nil
}

// parseFocusedWindow extracts package/activity from a line like
//
//	mCurrentFocus=Window{8a2b6d1 u0 com.tencent.mm/com.tencent.mm.ui.LauncherUI}
func parseFocusedWindow(out string) (pkg, class string, ok bool) {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "mCurrentFocus=Window{") {
			continue
		}
		inner := strings.TrimPrefix(line, "mCurrentFocus=Window{")
		inner = strings.TrimSuffix(inner, "}")
		fields := strings.Fields(inner)
		if len(fields) == 0 {
			continue
		}
		name := fields[len(fields)-1]
		p, c, found := strings.Cut(name, "/")
		if !found {
			continue
		}
		return p, c, true
	}
	return "", "", false
}
