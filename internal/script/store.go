// File: internal/script/store.go
//
// Package script persists recorded interaction scripts and repair backtraces
// as JSONL: one record per line, append-friendly, diffable, and readable
// with standard line tools.
package script

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/entropydec/gsrb/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Line types of the script JSONL format. The header line carries run-level
// metadata; every other line is one action.
const (
	lineHeader = "header"
	lineAction = "action"
)

type record struct {
	Type    string                  `json:"type"`
	Package string                  `json:"package,omitempty"`
	Action  *schemas.RecordedAction `json:"action,omitempty"`
}

// Load reads a script from its JSONL form. A leading header line is
// optional; files written by Save always carry one.
func Load(r io.Reader) (*schemas.Script, error) {
	s := &schemas.Script{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec record
		if err := json.UnmarshalFromString(line, &rec); err != nil {
			return nil, fmt.Errorf("script line %d: %w", lineNo, err)
		}
		switch rec.Type {
		case lineHeader:
			s.Package = rec.Package
		case lineAction:
			if rec.Action == nil {
				return nil, fmt.Errorf("script line %d: action record without action body", lineNo)
			}
			s.Actions = append(s.Actions, *rec.Action)
		default:
			return nil, fmt.Errorf("script line %d: unknown record type %q", lineNo, rec.Type)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading script: %w", err)
	}
	return s, nil
}

// LoadFile reads a script from the given path.
func LoadFile(path string) (*schemas.Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening script %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// Save writes the script as JSONL, header first.
func Save(w io.Writer, s *schemas.Script) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(record{Type: lineHeader, Package: s.Package}); err != nil {
		return fmt.Errorf("writing script header: %w", err)
	}
	for i := range s.Actions {
		if err := enc.Encode(record{Type: lineAction, Action: &s.Actions[i]}); err != nil {
			return fmt.Errorf("writing action %d: %w", i, err)
		}
	}
	return nil
}

// SaveFile writes the script to the given path, truncating any prior content.
func SaveFile(path string, s *schemas.Script) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating script %s: %w", path, err)
	}
	if err := Save(f, s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// SaveBacktrace writes a run's backtrace entries as JSONL, one attempt per
// line, in append order.
func SaveBacktrace(w io.Writer, entries []schemas.BacktraceEntry) error {
	enc := json.NewEncoder(w)
	for i := range entries {
		if err := enc.Encode(&entries[i]); err != nil {
			return fmt.Errorf("writing backtrace entry %d: %w", i, err)
		}
	}
	return nil
}

// LoadBacktrace reads backtrace entries back from their JSONL form.
func LoadBacktrace(r io.Reader) ([]schemas.BacktraceEntry, error) {
	var out []schemas.BacktraceEntry
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var e schemas.BacktraceEntry
		if err := json.UnmarshalFromString(line, &e); err != nil {
			return nil, fmt.Errorf("backtrace line %d: %w", lineNo, err)
		}
		out = append(out, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading backtrace: %w", err)
	}
	return out, nil
}
