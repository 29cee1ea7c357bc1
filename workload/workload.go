// Package workload loads benchmark workload definitions and runs them against
// a session.
package workload

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// StepOp names the session operation a step performs.
type StepOp string

const (
	OpCreateBranch  StepOp = "create_branch"
	OpConnectBranch StepOp = "connect_branch"
	OpSQL           StepOp = "sql"
	OpCommit        StepOp = "commit"
)

// IndexPlaceholder is replaced by the zero-based repetition index in branch
// names, queries and string arguments.
const IndexPlaceholder = "{i}"

// Workload is a sequence of steps repeated a number of times.
type Workload struct {
	Name   string `yaml:"name"`
	Seed   int64  `yaml:"seed"`
	Table  Table  `yaml:"table"`
	Repeat int    `yaml:"repeat"`
	Steps  []Step `yaml:"steps"`
}

// Table describes the table the workload operates on. It only feeds the
// context columns of the recorded results.
type Table struct {
	Name string `yaml:"name"`
	// Schema is fetched from the database when empty
	Schema        string `yaml:"schema"`
	InitialDBSize int64  `yaml:"initial_db_size"`
}

type Step struct {
	Op     StepOp `yaml:"op"`
	Branch string `yaml:"branch"`
	// Parent is the parent branch id for create_branch
	Parent string `yaml:"parent"`
	// FromCurrent branches from the currently connected branch
	FromCurrent bool   `yaml:"from_current"`
	Timed       bool   `yaml:"timed"`
	Query       string `yaml:"query"`
	Args        []any  `yaml:"args"`
	KeysTouched int64  `yaml:"keys_touched"`
	Message     string `yaml:"message"`
}

// Load reads and validates a workload file.
func Load(path string) (*Workload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workload: %w", err)
	}
	w, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load workload %s: %w", path, err)
	}
	return w, nil
}

// Parse decodes and validates a workload definition. Unknown fields are
// rejected.
func Parse(data []byte) (*Workload, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var w Workload
	if err := dec.Decode(&w); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("workload is empty")
		}
		return nil, fmt.Errorf("failed to parse workload: %w", err)
	}
	if w.Repeat == 0 {
		w.Repeat = 1
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &w, nil
}

// Validate checks every step for a known op and its required fields.
func (w *Workload) Validate() error {
	if w.Name == "" {
		return fmt.Errorf("workload name is required")
	}
	if w.Repeat < 0 {
		return fmt.Errorf("repeat must not be negative, got %d", w.Repeat)
	}
	if len(w.Steps) == 0 {
		return fmt.Errorf("workload %s has no steps", w.Name)
	}

	for i, step := range w.Steps {
		if err := step.validate(); err != nil {
			return fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		}
	}
	return nil
}

func (s Step) validate() error {
	switch s.Op {
	case OpCreateBranch:
		if s.Branch == "" {
			return fmt.Errorf("branch is required")
		}
		if s.FromCurrent && s.Parent != "" {
			return fmt.Errorf("parent and from_current are mutually exclusive")
		}
	case OpConnectBranch:
		if s.Branch == "" {
			return fmt.Errorf("branch is required")
		}
	case OpSQL:
		if strings.TrimSpace(s.Query) == "" {
			return fmt.Errorf("query is required")
		}
		if s.KeysTouched < 0 {
			return fmt.Errorf("keys_touched must not be negative")
		}
	case OpCommit:
	case "":
		return fmt.Errorf("op is required")
	default:
		return fmt.Errorf("unknown op")
	}
	return nil
}

// Expand returns a copy of the step with the placeholder replaced by index.
func (s Step) Expand(index int) Step {
	idx := strconv.Itoa(index)
	out := s
	out.Branch = strings.ReplaceAll(s.Branch, IndexPlaceholder, idx)
	out.Parent = strings.ReplaceAll(s.Parent, IndexPlaceholder, idx)
	out.Query = strings.ReplaceAll(s.Query, IndexPlaceholder, idx)
	out.Message = strings.ReplaceAll(s.Message, IndexPlaceholder, idx)
	if s.Args != nil {
		out.Args = make([]any, len(s.Args))
		for i, arg := range s.Args {
			if str, ok := arg.(string); ok {
				arg = strings.ReplaceAll(str, IndexPlaceholder, idx)
			}
			out.Args[i] = arg
		}
	}
	return out
}
