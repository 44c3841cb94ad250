package dialogue

import (
	"strings"
	"testing"
)

func TestStripMarkup(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "We open at nine.", "We open at nine."},
		{"bold", "We open at **nine** sharp.", "We open at nine sharp."},
		{"italic", "That is _very_ important.", "That is very important."},
		{"link", "See [our site](https://example.com) for details.", "See our site for details."},
		{"inline code", "Type `help` to continue.", "Type help to continue."},
		{"heading", "# Hours\nWe open at nine.", "Hours We open at nine."},
		{"bullets", "- nine to five\n- closed Sunday", "nine to five closed Sunday"},
		{"code block", "Here:\n```\nrm -rf /\n```\ndone.", "Here: done."},
		{"collapsed whitespace", "too   many\n\nspaces", "too many spaces"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripMarkup(tt.in); got != tt.want {
				t.Errorf("stripMarkup(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCapWords(t *testing.T) {
	t.Run("under limit unchanged", func(t *testing.T) {
		in := "short reply"
		if got := capWords(in, 10); got != in {
			t.Errorf("got %q, want %q", got, in)
		}
	})

	t.Run("cuts at sentence boundary", func(t *testing.T) {
		in := "First sentence here. Second sentence is much longer and keeps going on"
		got := capWords(in, 6)
		if got != "First sentence here." {
			t.Errorf("got %q", got)
		}
	})

	t.Run("hard cut gains terminal period", func(t *testing.T) {
		in := "no punctuation at all just words and more words"
		got := capWords(in, 4)
		if got != "no punctuation at all." {
			t.Errorf("got %q", got)
		}
	})
}

func TestPolishResumePhrase(t *testing.T) {
	got := polish("the hours are nine to five", 200, true)
	if !strings.HasPrefix(got, resumePhrase) {
		t.Errorf("expected resume phrase prefix, got %q", got)
	}

	got = polish("the hours are nine to five", 200, false)
	if strings.HasPrefix(got, resumePhrase) {
		t.Errorf("unexpected resume phrase on normal turn: %q", got)
	}
}

func TestLooksLikeQuestion(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"what are your hours?", true},
		{"what are your hours", true},
		{"can I book for tomorrow", true},
		{"do you deliver", true},
		{"I'd like to book a table", false},
		{"thanks, goodbye", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := looksLikeQuestion(tt.in); got != tt.want {
			t.Errorf("looksLikeQuestion(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
