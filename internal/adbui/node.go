package adbui

import (
	"context"
	"encoding/xml"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/acornrpa/acorn/internal/uitree"
)

// xmlNode mirrors one <node> element of a uiautomator dump.
type xmlNode struct {
	XMLName    xml.Name  `xml:"node"`
	Text       string    `xml:"text,attr"`
	ResourceID string    `xml:"resource-id,attr"`
	Class      string    `xml:"class,attr"`
	Package    string    `xml:"package,attr"`
	Bounds     string    `xml:"bounds,attr"`
	Nodes      []xmlNode `xml:"node"`
}

type hierarchy struct {
	XMLName xml.Name  `xml:"hierarchy"`
	Nodes   []xmlNode `xml:"node"`
}

// parseHierarchy parses a raw uiautomator dump. adb sometimes prepends
// the dump-file path or status chatter, so everything before the XML
// declaration and after the last closing bracket is discarded.
func parseHierarchy(raw string) (*xmlNode, error) {
	start := strings.Index(raw, "<?xml")
	if start < 0 {
		return nil, fmt.Errorf("adbui: no xml in dump output")
	}
	raw = raw[start:]
	if end := strings.LastIndex(raw, ">"); end >= 0 {
		raw = raw[:end+1]
	}

	var h hierarchy
	if err := xml.Unmarshal([]byte(raw), &h); err != nil {
		return nil, fmt.Errorf("adbui: parse dump: %w", err)
	}
	if len(h.Nodes) == 0 {
		return nil, fmt.Errorf("adbui: empty hierarchy")
	}
	if len(h.Nodes) == 1 {
		return &h.Nodes[0], nil
	}
	// Multiple top-level windows: wrap them under a synthetic root so
	// candidate lookups see the whole screen.
	return &xmlNode{Nodes: h.Nodes}, nil
}

var boundsRE = regexp.MustCompile(`\[(\d+),(\d+)\]\[(\d+),(\d+)\]`)

// center returns the midpoint of a bounds string like "[0,96][1080,230]".
func center(bounds string) (x, y int, ok bool) {
	m := boundsRE.FindStringSubmatch(bounds)
	if len(m) < 5 {
		return 0, 0, false
	}
	x1, _ := strconv.Atoi(m[1])
	y1, _ := strconv.Atoi(m[2])
	x2, _ := strconv.Atoi(m[3])
	y2, _ := strconv.Atoi(m[4])
	return (x1 + x2) / 2, (y1 + y2) / 2, true
}

// escapeInputText rewrites text for "input text": spaces become %s and
// shell metacharacters are stripped, since input text passes the string
// through the device shell unquoted.
func escapeInputText(text string) string {
	text = strings.ReplaceAll(text, " ", "%s")
	return strings.Map(func(r rune) rune {
		switch r {
		case '"', '\'', '`', '\\', '$', '&', '|', ';', '<', '>', '(', ')':
			return -1
		}
		return r
	}, text)
}

// node adapts one element of a parsed dump to uitree.Node. The dump is a
// snapshot: nodes stay valid until the next Root call, and Recycle is a
// no-op because nothing on the device side is held open.
type node struct {
	x  *xmlNode
	ui *UI
}

func (n *node) FindByID(id string) []uitree.Node {
	var found []uitree.Node
	var walk func(x *xmlNode)
	walk = func(x *xmlNode) {
		if x.ResourceID == id {
			found = append(found, &node{x: x, ui: n.ui})
		}
		for i := range x.Nodes {
			walk(&x.Nodes[i])
		}
	}
	walk(n.x)
	return found
}

func (n *node) Text() string { return n.x.Text }

// SetText taps the element to focus it, then types the text with the
// device's input service.
func (n *node) SetText(text string) error {
	x, y, ok := center(n.x.Bounds)
	if !ok {
		return fmt.Errorf("adbui: node %q has no bounds", n.x.ResourceID)
	}
	ctx, cancel := n.ui.cmdContext()
	defer cancel()
	if err := n.ui.Tap(x, y); err != nil {
		return err
	}
	_, err := n.ui.client.Shell(ctx, "input", "text", escapeInputText(text))
	return err
}

func (n *node) Click() error {
	x, y, ok := center(n.x.Bounds)
	if !ok {
		return fmt.Errorf("adbui: node %q has no bounds", n.x.ResourceID)
	}
	return n.ui.Tap(x, y)
}

func (n *node) Recycle() {}

var _ uitree.Node = (*node)(nil)

// cmdContext bounds a single shell command.
func (u *UI) cmdContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), u.cmdTimeout)
}
