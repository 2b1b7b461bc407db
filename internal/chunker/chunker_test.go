package chunker

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestSplitOverlappingWindows(t *testing.T) {
	got, err := Split("ABCDEFGHIJ", 4, 2)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	want := []string{"ABCD", "CDEF", "EFGH", "GHIJ", "IJ"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSplitTrailingPartialWindowKept(t *testing.T) {
	got, err := Split("The quick brown fox jumps.", 10, 3)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	// len 26, stride 7: windows start at 0, 7, 14, 21
	if len(got) != 4 {
		t.Fatalf("expected 4 chunks, got %d: %v", len(got), got)
	}
	if got[len(got)-1] != "umps." {
		t.Fatalf("trailing partial window = %q, want %q", got[len(got)-1], "umps.")
	}
}

func TestSplitWindowCountBound(t *testing.T) {
	text := strings.Repeat("x", 950)
	got, err := Split(text, 100, 20)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	// ceil(950/80) = 12, within +-1
	if len(got) < 11 || len(got) > 13 {
		t.Fatalf("expected ~12 chunks, got %d", len(got))
	}
}

func TestSplitDropsWhitespaceOnlyWindows(t *testing.T) {
	got, err := Split("ab        cd", 4, 0)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	for _, c := range got {
		if strings.TrimSpace(c) == "" {
			t.Fatalf("whitespace-only chunk survived: %q", got)
		}
	}
	if got[0] != "ab" {
		t.Fatalf("first chunk = %q, want trimmed %q", got[0], "ab")
	}
}

func TestSplitEmptyText(t *testing.T) {
	got, err := Split("", 10, 2)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no chunks, got %v", got)
	}
}

func TestSplitInvalidWindow(t *testing.T) {
	cases := []struct{ size, overlap int }{
		{0, 0},
		{-1, 0},
		{4, 4},
		{4, 5},
		{4, -1},
	}
	for _, tc := range cases {
		if _, err := Split("abc", tc.size, tc.overlap); !errors.Is(err, ErrInvalidWindow) {
			t.Fatalf("Split(size=%d overlap=%d): expected ErrInvalidWindow, got %v", tc.size, tc.overlap, err)
		}
	}
}

func TestSplitDeterministic(t *testing.T) {
	text := "the rain in spain stays mainly on the plain"
	a, _ := Split(text, 12, 4)
	b, _ := Split(text, 12, 4)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("expected identical output for identical inputs")
	}
}

func TestSplitReconstructsText(t *testing.T) {
	text := "abcdefghijklmnopqrstuvwxyz"
	size, overlap := 8, 3
	got, err := Split(text, size, overlap)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	// drop each chunk's overlap with its predecessor and rebuild
	stride := size - overlap
	var b strings.Builder
	for i, c := range got {
		if i == 0 {
			b.WriteString(c)
			continue
		}
		keep := len(c) - (size - stride)
		if keep < 0 {
			keep = 0
		}
		b.WriteString(c[len(c)-keep:])
	}
	if b.String() != text {
		t.Fatalf("reconstructed %q, want %q", b.String(), text)
	}
}
