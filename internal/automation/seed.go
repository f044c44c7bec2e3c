package automation

import (
	"fmt"
	"io"

	"github.com/acornrpa/acorn/internal/models"
)

// Sample scripts written into an empty store on first run, so a fresh
// installation has something to point a script-response rule at.
var sampleScripts = []models.ScriptInfo{
	{
		ID:          "echo",
		Name:        "Echo",
		Description: "Replies with the received message",
		Author:      "acorn",
		Enabled:     true,
		Content: `function processMessage(message, sender) {
    return "echo: " + message;
}
`,
	},
	{
		ID:          "time",
		Name:        "Time",
		Description: "Replies with the current time",
		Author:      "acorn",
		Enabled:     true,
		Content: `function processMessage(message, sender) {
    var now = new Date(timestamp);
    return sender + ", it is " + now.toUTCString();
}
`,
	},
}

// SeedSampleScripts writes the sample scripts when the store holds no
// scripts at all. An already-populated store is left alone.
func SeedSampleScripts(s Store, out io.Writer) error {
	existing, err := s.Scripts()
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	for i := range sampleScripts {
		sc := sampleScripts[i]
		if err := s.SaveScript(&sc); err != nil {
			return err
		}
	}
	fmt.Fprintf(out, "automation: seeded %d sample scripts\n", len(sampleScripts))
	return nil
}
