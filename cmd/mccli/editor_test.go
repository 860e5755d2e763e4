package main

import "testing"

func typeString(e *lineEditor, s string) {
	for _, r := range s {
		e.insert(r)
	}
}

func TestLineEditorEditing(t *testing.T) {
	e := newLineEditor(10)
	typeString(e, "sy 你好")
	e.move(-10)
	e.move(1)
	e.insert('a')
	if got := e.String(); got != "say 你好" {
		t.Fatalf("buffer = %q", got)
	}

	e.move(100)
	e.backspace()
	if got := e.String(); got != "say 你" {
		t.Errorf("after backspace = %q", got)
	}

	e.move(-100)
	e.backspace()
	if got := e.String(); got != "say 你" {
		t.Errorf("backspace at start changed buffer to %q", got)
	}
}

func TestLineEditorHistory(t *testing.T) {
	e := newLineEditor(2)
	for _, cmd := range []string{"list", "list", "seed", "time query day"} {
		typeString(e, cmd)
		if got := e.commit(); got != cmd {
			t.Fatalf("commit() = %q; want %q", got, cmd)
		}
	}
	if len(e.history) != 2 || e.history[0] != "seed" {
		t.Fatalf("history = %q; want the last two distinct commands", e.history)
	}

	typeString(e, "draft")
	e.navigate(-1)
	if got := e.String(); got != "time query day" {
		t.Errorf("up = %q", got)
	}
	e.navigate(-1)
	e.navigate(-1)
	if got := e.String(); got != "seed" {
		t.Errorf("up twice past the oldest = %q", got)
	}
	e.navigate(1)
	e.navigate(1)
	if got := e.String(); got != "draft" {
		t.Errorf("down past the newest = %q; want the draft back", got)
	}
}

func TestLineEditorVisible(t *testing.T) {
	e := newLineEditor(0)
	typeString(e, "0123456789")

	text, col := e.visible(4)
	if text != "789" || col != 3 {
		t.Errorf("visible(4) at end = %q, %d", text, col)
	}

	e.move(-100)
	text, col = e.visible(4)
	if text != "0123" || col != 0 {
		t.Errorf("visible(4) at start = %q, %d", text, col)
	}
}
