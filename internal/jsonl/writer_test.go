package jsonl

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestNew_BlankPathIsNil(t *testing.T) {
	if w := New("   "); w != nil {
		t.Fatalf("blank path should give a nil writer")
	}

	// A nil writer must be safe to use.
	var w *Writer
	if err := w.Append(map[string]int{"a": 1}); err != nil {
		t.Fatalf("nil append: %v", err)
	}
	if w.Records() != 0 {
		t.Fatalf("nil records = %d", w.Records())
	}
	if err := w.Close(); err != nil {
		t.Fatalf("nil close: %v", err)
	}
}

func TestAppend_OneObjectPerLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "events.jsonl")
	w := New(path)

	type rec struct {
		Event string `json:"event"`
		N     int    `json:"n"`
	}
	for i := 0; i < 3; i++ {
		if err := w.Append(rec{Event: "tick", N: i}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	if w.Records() != 3 {
		t.Fatalf("records = %d", w.Records())
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	n := 0
	for sc.Scan() {
		var r rec
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			t.Fatalf("line %d: %v", n, err)
		}
		if r.N != n {
			t.Fatalf("line %d: n = %d", n, r.N)
		}
		n++
	}
	if n != 3 {
		t.Fatalf("read %d lines", n)
	}
}

func TestAppend_AppendsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")

	w := New(path)
	if err := w.Append(map[string]int{"n": 1}); err != nil {
		t.Fatalf("append: %v", err)
	}
	w.Close()

	w = New(path)
	if err := w.Append(map[string]int{"n": 2}); err != nil {
		t.Fatalf("append after reopen: %v", err)
	}
	w.Close()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := 0
	for _, c := range b {
		if c == '\n' {
			lines++
		}
	}
	if lines != 2 {
		t.Fatalf("expected 2 records, got %d", lines)
	}
}

func TestAppend_NilRecordRejected(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "events.jsonl"))
	defer w.Close()
	if err := w.Append(nil); err == nil {
		t.Fatalf("nil record accepted")
	}
}
