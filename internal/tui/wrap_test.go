package tui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

var plainStyle = lipgloss.NewStyle()

func TestBuildStyledRunesCodeSpans(t *testing.T) {
	runes := buildStyledRunes("use `GROUP BY` here", questionStyle, codeStyle)
	if len(runes) != len("use GROUP BY here") {
		t.Fatalf("expected backticks to be dropped, got %d runes", len(runes))
	}
	if runes[0].s != questionStyle.Render("u") {
		t.Fatalf("expected question style outside code")
	}
	if runes[4].s != codeStyle.Render("G") {
		t.Fatalf("expected code style inside backticks")
	}
	if runes[9].isSpace {
		t.Fatalf("expected spaces inside code not to be break points")
	}
	if !runes[3].isSpace {
		t.Fatalf("expected plain space to be a break point")
	}
}

func TestBuildStyledRunesWideRunes(t *testing.T) {
	runes := buildStyledRunes("统计", plainStyle, plainStyle)
	if len(runes) != 2 || runes[0].width != 2 {
		t.Fatalf("expected double-width runes, got %+v", runes)
	}
}

func TestWrapStyledRunesBreaksAtSpaces(t *testing.T) {
	got := wrapPlain("one two three", 8)
	if got != "one two\nthree" {
		t.Fatalf("unexpected wrap: %q", got)
	}
}

func TestWrapStyledRunesBreaksLongWords(t *testing.T) {
	got := wrapPlain("abcdefghij", 4)
	if got != "abcd\nefgh\nij" {
		t.Fatalf("unexpected wrap: %q", got)
	}
}

func TestWrapStyledRunesKeepsNewlines(t *testing.T) {
	got := wrapPlain("first line\nsecond", 40)
	if got != "first line\nsecond" {
		t.Fatalf("unexpected wrap: %q", got)
	}
}

func TestWrapStyledRunesFitsWidth(t *testing.T) {
	text := "How would you compute 7-day retention from an events table with duplicated rows?"
	for _, line := range strings.Split(wrapPlain(text, 20), "\n") {
		if lipgloss.Width(line) > 20 {
			t.Fatalf("line %q exceeds width", line)
		}
	}
}
