// File: internal/script/bundle.go
package script

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/entropydec/gsrb/api/schemas"
	"github.com/entropydec/gsrb/internal/snapshot"
)

// Bundle layout on disk:
//
//	<dir>/script.jsonl   the recorded actions
//	<dir>/ui/0.xml       hierarchy dump captured before action 0 (optional)
//	<dir>/ui/1.xml       ...
//
// The per-step dumps let the repair loop detect steps whose screen never
// changed and give the aligner the recorded-time layout for context.
const (
	ScriptFileName = "script.jsonl"
	uiDirName      = "ui"
)

// Bundle is one loaded script together with its recorded-time snapshots.
// BeforeSnapshots is indexed by step; missing captures are nil.
type Bundle struct {
	Dir             string
	Script          *schemas.Script
	BeforeSnapshots []*schemas.Snapshot
}

// LoadBundle reads a script bundle from a directory, or a bare JSONL file
// when path is not a directory.
func LoadBundle(path string) (*Bundle, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	if !info.IsDir() {
		s, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		return &Bundle{Dir: filepath.Dir(path), Script: s, BeforeSnapshots: make([]*schemas.Snapshot, len(s.Actions))}, nil
	}

	s, err := LoadFile(filepath.Join(path, ScriptFileName))
	if err != nil {
		return nil, err
	}

	b := &Bundle{Dir: path, Script: s, BeforeSnapshots: make([]*schemas.Snapshot, len(s.Actions))}
	for i := range s.Actions {
		raw, err := os.ReadFile(filepath.Join(path, uiDirName, fmt.Sprintf("%d.xml", i)))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("reading snapshot for step %d: %w", i, err)
		}
		snap, err := snapshot.Parse(string(raw), "")
		if err != nil {
			return nil, fmt.Errorf("parsing snapshot for step %d: %w", i, err)
		}
		b.BeforeSnapshots[i] = snap
	}
	return b, nil
}

// SaveRepaired writes the repaired script next to the original as
// script.repaired.jsonl.
func (b *Bundle) SaveRepaired(repaired *schemas.Script) (string, error) {
	out := filepath.Join(b.Dir, "script.repaired.jsonl")
	if err := SaveFile(out, repaired); err != nil {
		return "", err
	}
	return out, nil
}
