package knol

import (
	"strings"
	"testing"

	"github.com/conorfennell/drillbook/internal/domain"
	"github.com/conorfennell/drillbook/internal/parser"
)

func TestNormalize(t *testing.T) {
	card := parser.Card{
		Question: "  What is HTMX? \r\n",
		Answer:   "A library for AJAX.",
		Context:  "Web Development",
	}
	expected := "what is htmx?\na library for ajax.\nweb development"
	if got := Normalize(card); got != expected {
		t.Errorf("Expected normalized string %q, got %q", expected, got)
	}
}

func TestHash(t *testing.T) {
	t.Run("generates correct hash", func(t *testing.T) {
		// sha256 of "q\na\nc"
		expected := "eb2456c1ee4f36305069dd0f63a30e92d5443129f5e8fd9a5ec490fbc4d4d8a2"
		if got := Hash(parser.Card{Question: "Q", Answer: "A", Context: "C"}); got != expected {
			t.Errorf("Expected hash %q, got %q", expected, got)
		}
	})

	t.Run("normalization produces same hash", func(t *testing.T) {
		a := parser.Card{Question: "  what is go? ", Answer: "A programming language."}
		b := parser.Card{Question: "What Is Go?", Answer: "A programming language."}
		if Hash(a) != Hash(b) {
			t.Error("Expected hashes to match after normalization")
		}
	})

	t.Run("different cards have different hashes", func(t *testing.T) {
		if Hash(parser.Card{Question: "Card 1"}) == Hash(parser.Card{Question: "Card 2"}) {
			t.Error("Expected hashes for different cards to differ")
		}
	})
}

func TestItemID(t *testing.T) {
	card := parser.Card{Question: "Q", Answer: "A", Context: "C", Kind: domain.KindExercise}
	if got := ItemID(card); got != "exercise-eb2456c1ee4f" {
		t.Errorf("Unexpected id %q", got)
	}

	card.Kind = ""
	if got := ItemID(card); !strings.HasPrefix(got, "flashcard-") {
		t.Errorf("Expected flashcard prefix, got %q", got)
	}

	card.Kind = domain.KindIncident
	if ItemID(card)[len("incident-"):] != Hash(card)[:12] {
		t.Error("Expected the kind to change only the prefix")
	}
}
