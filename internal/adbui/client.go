// Package adbui drives a real Android device over adb: it dumps the
// uiautomator view hierarchy into uitree nodes, injects taps and text,
// and polls the focused window for the notification watcher.
package adbui

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// runFunc executes the adb binary. Injectable for tests.
type runFunc func(ctx context.Context, path string, args ...string) ([]byte, error)

func execRun(ctx context.Context, path string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, path, args...).CombinedOutput()
}

// Client runs adb shell commands against one device.
type Client struct {
	path   string
	serial string
	run    runFunc
}

// ClientOpts holds parameters for creating a Client.
type ClientOpts struct {
	Path   string // adb binary, defaults to "adb" on PATH
	Serial string // optional device serial for -s
	Run    runFunc
}

// NewClient creates a Client.
func NewClient(opts ClientOpts) *Client {
	c := &Client{
		path:   opts.Path,
		serial: opts.Serial,
		run:    opts.Run,
	}
	if c.path == "" {
		c.path = "adb"
	}
	if c.run == nil {
		c.run = execRun
	}
	return c
}

// Shell runs "adb [-s serial] shell args..." and returns combined output.
func (c *Client) Shell(ctx context.Context, args ...string) (string, error) {
	full := make([]string, 0, len(args)+3)
	if c.serial != "" {
		full = append(full, "-s", c.serial)
	}
	full = append(full, "shell")
	full = append(full, args...)

	out, err := c.run(ctx, c.path, full...)
	if err != nil {
		return "", fmt.Errorf("adbui: shell %s: %w: %s",
			strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}
