// SPDX-License-Identifier: MIT

package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReassembler_HappyPath(t *testing.T) {
	r := NewReassembler(t.TempDir())

	if err := r.Init("u1", "movie.mkv", 3, []string{"anime"}); err != nil {
		t.Fatalf("Init() = %v", err)
	}

	// Out of order, with a retried chunk.
	for _, c := range []struct {
		index int
		data  string
	}{
		{1, "XX"}, // will be overwritten by the retry below
		{0, "AAA"},
		{2, "C"},
		{1, "BB"},
	} {
		if _, _, err := r.AcceptChunk("u1", "movie.mkv", c.index, strings.NewReader(c.data)); err != nil {
			t.Fatalf("AcceptChunk(%d) = %v", c.index, err)
		}
	}

	asm, err := r.Finalize("u1")
	if err != nil {
		t.Fatalf("Finalize() = %v", err)
	}
	if asm.FileName != "movie.mkv" {
		t.Fatalf("FileName = %q, want %q", asm.FileName, "movie.mkv")
	}
	got, err := os.ReadFile(asm.Path)
	if err != nil {
		t.Fatalf("read assembled file: %v", err)
	}
	if string(got) != "AAABBC" {
		t.Fatalf("assembled content = %q, want %q", got, "AAABBC")
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(asm.Path), "chunked-u1")); !os.IsNotExist(err) {
		t.Fatal("chunk dir should be removed after finalize")
	}
}

func TestAcceptChunk_ProtocolViolations(t *testing.T) {
	r := NewReassembler(t.TempDir())
	if err := r.Init("u1", "movie.mkv", 2, nil); err != nil {
		t.Fatalf("Init() = %v", err)
	}

	if _, _, err := r.AcceptChunk("u1", "movie.mkv", 2, strings.NewReader("x")); !errors.Is(err, ErrProtocolViolation) {
		t.Fatalf("out-of-range index: err = %v, want ErrProtocolViolation", err)
	}
	if _, _, err := r.AcceptChunk("u1", "other.mkv", 0, strings.NewReader("x")); !errors.Is(err, ErrProtocolViolation) {
		t.Fatalf("file name drift: err = %v, want ErrProtocolViolation", err)
	}
	if _, _, err := r.AcceptChunk("nope", "movie.mkv", 0, strings.NewReader("x")); !errors.Is(err, ErrUnknownUpload) {
		t.Fatalf("unknown upload: err = %v, want ErrUnknownUpload", err)
	}
}

func TestFinalize_Incomplete(t *testing.T) {
	r := NewReassembler(t.TempDir())
	if err := r.Init("u1", "movie.mkv", 2, nil); err != nil {
		t.Fatalf("Init() = %v", err)
	}
	if _, _, err := r.AcceptChunk("u1", "movie.mkv", 0, strings.NewReader("A")); err != nil {
		t.Fatalf("AcceptChunk() = %v", err)
	}

	if _, err := r.Finalize("u1"); !errors.Is(err, ErrIncompleteUpload) {
		t.Fatalf("Finalize() = %v, want ErrIncompleteUpload", err)
	}
}

func TestCancel_RemovesScratch(t *testing.T) {
	dir := t.TempDir()
	r := NewReassembler(dir)
	if err := r.Init("u1", "movie.mkv", 2, nil); err != nil {
		t.Fatalf("Init() = %v", err)
	}
	if _, _, err := r.AcceptChunk("u1", "movie.mkv", 0, strings.NewReader("A")); err != nil {
		t.Fatalf("AcceptChunk() = %v", err)
	}

	r.Cancel("u1")

	if _, err := os.Stat(filepath.Join(dir, "chunked-u1")); !os.IsNotExist(err) {
		t.Fatal("chunk dir should be removed on cancel")
	}
	if _, _, err := r.AcceptChunk("u1", "movie.mkv", 1, strings.NewReader("B")); !errors.Is(err, ErrUnknownUpload) {
		t.Fatalf("chunk after cancel: err = %v, want ErrUnknownUpload", err)
	}
}

func TestParseTags(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{`["a","b"]`, []string{"a", "b"}},
		{`[" a ", ""]`, []string{"a"}},
		{"a, b ,c", []string{"a", "b", "c"}},
		{"", nil},
		{"[]", nil},
		{"solo", []string{"solo"}},
	}
	for _, c := range cases {
		got := ParseTags(c.in)
		if len(got) != len(c.want) {
			t.Fatalf("ParseTags(%q) = %v, want %v", c.in, got, c.want)
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Fatalf("ParseTags(%q) = %v, want %v", c.in, got, c.want)
			}
		}
	}
}
