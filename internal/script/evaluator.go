// Package script evaluates user-authored reply scripts in an embedded
// JavaScript engine.
package script

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
)

// EntryFunction is the conventionally named function a script must define
// to produce replies: processMessage(message, sender) -> text.
const EntryFunction = "processMessage"

// ErrNotFound is returned by Run when no compiled script exists for the id.
var ErrNotFound = errors.New("script: not found")

// compiledScript pairs a compiled program with its source, kept for error
// excerpts. The program is immutable; every execution gets a fresh runtime.
type compiledScript struct {
	prog   *goja.Program
	source string
}

// Evaluator compiles and runs registered scripts. The registry supports
// concurrent readers and swap-style writes keyed by script id; a compiled
// entry is replaced atomically, so readers never observe a half-updated
// script. Each Run executes on its own interpreter runtime, so nothing
// mutable is shared between concurrent executions.
type Evaluator struct {
	out io.Writer

	mu      sync.RWMutex
	scripts map[string]*compiledScript
}

// EvaluatorOpts holds parameters for creating an Evaluator.
type EvaluatorOpts struct {
	Out io.Writer // defaults to os.Stdout
}

// NewEvaluator creates an Evaluator with an empty registry.
func NewEvaluator(opts EvaluatorOpts) *Evaluator {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Evaluator{
		out:     out,
		scripts: make(map[string]*compiledScript),
	}
}

// Register compiles source and stores it under id, replacing any previous
// entry. On compile failure the previous entry is left untouched (a bad
// edit must not disable a working script) and the error is returned with
// a source excerpt logged for diagnosis.
func (e *Evaluator) Register(id, source string) error {
	prog, err := goja.Compile(id, source, false)
	if err != nil {
		e.logCompileExcerpt(id, source, err)
		return fmt.Errorf("script: compile %s: %w", id, err)
	}

	e.mu.Lock()
	e.scripts[id] = &compiledScript{prog: prog, source: source}
	e.mu.Unlock()

	fmt.Fprintf(e.out, "script: registered %q\n", id)
	return nil
}

// Unregister drops the compiled entry for id. Subsequent runs referencing
// id are treated as not found.
func (e *Evaluator) Unregister(id string) {
	e.mu.Lock()
	delete(e.scripts, id)
	e.mu.Unlock()
	fmt.Fprintf(e.out, "script: unregistered %q\n", id)
}

// Has reports whether a compiled script exists for id.
func (e *Evaluator) Has(id string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.scripts[id]
	return ok
}

// IDs returns the registered script ids, sorted.
func (e *Evaluator) IDs() []string {
	e.mu.RLock()
	ids := make([]string, 0, len(e.scripts))
	for id := range e.scripts {
		ids = append(ids, id)
	}
	e.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Run executes the script registered under id on a fresh runtime. Params
// are bound into the script's scope, the top-level code executes, then the
// entry function is invoked with (message, sender). A missing entry
// function yields (nil, nil): no value, not an error. Execution errors
// are returned; callers treat them as "no reply".
func (e *Evaluator) Run(id string, params map[string]any) (any, error) {
	e.mu.RLock()
	cs, ok := e.scripts[id]
	e.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	vm := goja.New()
	e.installLog(vm, id)
	for k, v := range params {
		if err := vm.Set(k, v); err != nil {
			return nil, fmt.Errorf("script: bind %s.%s: %w", id, k, err)
		}
	}

	if _, err := vm.RunProgram(cs.prog); err != nil {
		return nil, fmt.Errorf("script: run %s: %w", id, err)
	}

	entry, ok := goja.AssertFunction(vm.Get(EntryFunction))
	if !ok {
		return nil, nil
	}
	res, err := entry(goja.Undefined(),
		vm.ToValue(params["message"]), vm.ToValue(params["sender"]))
	if err != nil {
		return nil, fmt.Errorf("script: %s.%s: %w", id, EntryFunction, err)
	}
	if res == nil || goja.IsUndefined(res) || goja.IsNull(res) {
		return nil, nil
	}
	return res.Export(), nil
}

// ProcessChatMessage runs the script with the standard parameter set and
// coerces the result to text. The empty string means no reply.
func (e *Evaluator) ProcessChatMessage(id, message, sender string) (string, error) {
	start := time.Now()
	v, err := e.Run(id, map[string]any{
		"message":   message,
		"sender":    sender,
		"timestamp": time.Now().UnixMilli(),
	})
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", nil
	}
	reply, ok := v.(string)
	if !ok {
		reply = fmt.Sprintf("%v", v)
	}
	fmt.Fprintf(e.out, "script: %q finished in %s\n", id, time.Since(start).Round(time.Millisecond))
	return reply, nil
}

// installLog injects the minimal logging capability scripts are allowed:
// log.debug / log.info / log.error.
func (e *Evaluator) installLog(vm *goja.Runtime, id string) {
	logObj := vm.NewObject()
	logObj.Set("debug", func(msg string) {
		fmt.Fprintf(e.out, "script[%s] debug: %s\n", id, msg)
	})
	logObj.Set("info", func(msg string) {
		fmt.Fprintf(e.out, "script[%s] info: %s\n", id, msg)
	})
	logObj.Set("error", func(msg string) {
		log.Printf("script[%s] error: %s", id, msg)
	})
	vm.Set("log", logObj)
}

var compileLineRE = regexp.MustCompile(`Line (\d+)`)

// logCompileExcerpt prints a small window of source lines around the
// reported compile error position.
func (e *Evaluator) logCompileExcerpt(id, source string, compileErr error) {
	log.Printf("script: compile %s failed: %v", id, compileErr)

	m := compileLineRE.FindStringSubmatch(compileErr.Error())
	if m == nil {
		return
	}
	lineNo, err := strconv.Atoi(m[1])
	if err != nil || lineNo <= 0 {
		return
	}

	lines := strings.Split(source, "\n")
	start := lineNo - 3
	if start < 0 {
		start = 0
	}
	end := lineNo + 2
	if end > len(lines) {
		end = len(lines)
	}
	for i := start; i < end; i++ {
		prefix := "    "
		if i+1 == lineNo {
			prefix = ">>> "
		}
		fmt.Fprintf(e.out, "script[%s] %s%d: %s\n", id, prefix, i+1, lines[i])
	}
}
