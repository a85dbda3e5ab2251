package mailmsg

import "testing"

func TestAppendTracksLenAndSize(t *testing.T) {
	b := NewBuilder()
	b.Append("hello")
	b.Append("world!")

	if b.Len() != 2 {
		t.Errorf("Len() = %d, want 2", b.Len())
	}
	want := int64(len("hello") + 2 + len("world!") + 2)
	if b.Size() != want {
		t.Errorf("Size() = %d, want %d", b.Size(), want)
	}
}

func TestLinesPreservesOrder(t *testing.T) {
	b := NewBuilder()
	b.Append("one")
	b.Append("two")
	b.Append("three")

	lines := b.Lines()
	if len(lines) != 3 {
		t.Fatalf("Lines() len = %d, want 3", len(lines))
	}
	for i, want := range []string{"one", "two", "three"} {
		if lines[i].Text != want {
			t.Errorf("Lines()[%d] = %q, want %q", i, lines[i].Text, want)
		}
		if lines[i].Len != len(want) {
			t.Errorf("Lines()[%d].Len = %d, want %d", i, lines[i].Len, len(want))
		}
	}
}

func TestConcatAppendsCRLF(t *testing.T) {
	b := NewBuilder()
	b.Append("line one")
	b.Append("line two")

	want := "line one\r\nline two\r\n"
	if got := b.Concat(); got != want {
		t.Errorf("Concat() = %q, want %q", got, want)
	}
}

func TestCopyIsIndependent(t *testing.T) {
	b := NewBuilder()
	b.Append("original")

	c := b.Copy()
	c.Append("only on the copy")

	if b.Len() != 1 {
		t.Errorf("original Len() = %d, want 1 (unaffected by copy mutation)", b.Len())
	}
	if c.Len() != 2 {
		t.Errorf("copy Len() = %d, want 2", c.Len())
	}
}

func TestPrependPlacesHeadersFirst(t *testing.T) {
	b := NewBuilder()
	b.Append("body line 1")
	b.Append("body line 2")

	out := b.Prepend("Header-One: x", "Header-Two: y", "")

	lines := out.Lines()
	if len(lines) != 5 {
		t.Fatalf("Prepend result has %d lines, want 5", len(lines))
	}
	wantOrder := []string{"Header-One: x", "Header-Two: y", "", "body line 1", "body line 2"}
	for i, want := range wantOrder {
		if lines[i].Text != want {
			t.Errorf("line %d = %q, want %q", i, lines[i].Text, want)
		}
	}

	// The original body must be untouched by Prepend.
	if b.Len() != 2 {
		t.Errorf("original body Len() = %d, want 2 (Prepend must not mutate)", b.Len())
	}
}

func TestPrependSizeIncludesHeaders(t *testing.T) {
	b := NewBuilder()
	b.Append("body")

	out := b.Prepend("header")
	want := int64(len("header")+2) + int64(len("body")+2)
	if out.Size() != want {
		t.Errorf("Prepend result Size() = %d, want %d", out.Size(), want)
	}
}
