package msgcat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRenderEmbedded(t *testing.T) {
	c := Default()
	got, err := c.Render("result.checkmate", map[string]string{"Winner": "White"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "Checkmate! White wins!" {
		t.Fatalf("got %q", got)
	}
	if got := c.Text("result.stalemate", nil); got != "Stalemate! Game is a draw." {
		t.Fatalf("stalemate = %q", got)
	}
}

func TestRenderMissingKeyFails(t *testing.T) {
	c := Default()
	if _, err := c.Render("result.resigned", map[string]string{}); err == nil {
		t.Fatalf("expected missing field error")
	}
	if _, err := c.Render("no.such.key", nil); err == nil {
		t.Fatalf("expected unknown key error")
	}
	if got := c.Text("no.such.key", nil); got != "no.such.key" {
		t.Fatalf("Text fallback = %q", got)
	}
}

func TestSystemPromptOmitsEmptyOpening(t *testing.T) {
	c := Default()
	got, err := c.Render("chat.system", map[string]string{"FEN": "startpos", "Opening": "", "Moves": ""})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if strings.Contains(got, "Focus on") {
		t.Fatalf("unexpected focus line: %q", got)
	}
	got, _ = c.Render("chat.system", map[string]string{"FEN": "x", "Opening": "Sicilian", "Moves": "e4, c5"})
	if !strings.Contains(got, "Focus on Sicilian opening.") || !strings.Contains(got, "Current game moves: e4, c5") {
		t.Fatalf("prompt = %q", got)
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("result:\n  stalemate: \"Pat.\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.Text("result.stalemate", nil); got != "Pat." {
		t.Fatalf("override = %q", got)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.yml"), []byte("result:\n  stalemate: \"Again.\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(dir); err == nil {
		t.Fatalf("expected duplicate key error")
	}
}
