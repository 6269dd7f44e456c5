// Package savejson reads and writes the save document: a single JSON object
// holding every map and queue of the game state.
package savejson

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"nebula4x.dev/internal/sim/digest"
	"nebula4x.dev/internal/sim/model"
)

// Marshal encodes st as an indented save document. Map keys come out sorted,
// so equal states always produce identical bytes.
func Marshal(st *model.GameState) ([]byte, error) {
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("save: %w", err)
	}
	return b, nil
}

// Unmarshal decodes a save document. Counters written as decimal strings are
// accepted, older save versions are upgraded and missing maps are created.
func Unmarshal(data []byte) (*model.GameState, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("save: %w", err)
	}
	if root == nil {
		return nil, fmt.Errorf("save: root is not an object")
	}
	if _, ok := root["date"]; !ok {
		return nil, fmt.Errorf("save: missing date")
	}
	for _, key := range []string{"next_id", "next_event_seq", "selected_system"} {
		fixed, err := unquoteCounter(root[key])
		if err != nil {
			return nil, fmt.Errorf("save: %s: %w", key, err)
		}
		if fixed != nil {
			root[key] = fixed
		}
	}
	normalized, err := json.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("save: %w", err)
	}

	st := &model.GameState{SaveVersion: 1, NextID: 1, NextEventSeq: 1}
	if err := json.Unmarshal(normalized, st); err != nil {
		return nil, fmt.Errorf("save: %w", err)
	}
	st.EnsureMaps()

	if st.SaveVersion < model.SaveVersion {
		st.SaveVersion = model.SaveVersion
	}
	st.HourOfDay = min(max(st.HourOfDay, 0), 23)
	if st.NextID == model.InvalidID {
		st.NextID = 1
	}
	if st.NextEventSeq == 0 {
		st.NextEventSeq = 1
	}
	for _, ev := range st.Events {
		if st.NextEventSeq <= ev.Seq {
			st.NextEventSeq = ev.Seq + 1
		}
	}
	return st, nil
}

// unquoteCounter turns a JSON string holding a decimal integer into a JSON
// number. It returns nil when raw needs no change.
func unquoteCounter(raw json.RawMessage) (json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("not a decimal counter: %q", s)
	}
	return json.RawMessage(strconv.FormatUint(v, 10)), nil
}

// Canonicalize round-trips a save document through decode and encode so
// that key order and defaults are stable before diffing.
func Canonicalize(data []byte) ([]byte, error) {
	st, err := Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return Marshal(st)
}

// StateDigestHex loads a save document and returns its state digest with
// default options, as 16 hex digits.
func StateDigestHex(data []byte) (string, error) {
	st, err := Unmarshal(data)
	if err != nil {
		return "", err
	}
	return digest.Hex(digest.GameState(st, digest.DefaultOptions())), nil
}

func ReadFile(path string) (*model.GameState, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	st, err := Unmarshal(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return st, nil
}

// WriteFile writes st to path through a temp file and rename.
func WriteFile(path string, st *model.GameState) error {
	b, err := Marshal(st)
	if err != nil {
		return err
	}
	return WriteBytes(path, b)
}

func WriteBytes(path string, b []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
