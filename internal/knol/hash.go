// Package knol derives stable item ids from card content, so an edited card
// becomes a new item and an untouched card keeps its review history.
package knol

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/conorfennell/drillbook/internal/parser"
)

// idHexLen is how much of the digest goes into an item id.
const idHexLen = 12

// Normalize joins the card's question, answer and context after trimming,
// lowercasing and unifying line endings in each. Kind is not part of the
// content.
func Normalize(card parser.Card) string {
	part := func(s string) string {
		s = strings.ReplaceAll(s, "\r\n", "\n")
		return strings.ToLower(strings.TrimSpace(s))
	}
	return strings.Join([]string{part(card.Question), part(card.Answer), part(card.Context)}, "\n")
}

// Hash returns the hex SHA-256 of the normalized card.
func Hash(card parser.Card) string {
	sum := sha256.Sum256([]byte(Normalize(card)))
	return hex.EncodeToString(sum[:])
}

// ItemID returns "<kind>-<first 12 hex digits of Hash>".
func ItemID(card parser.Card) string {
	kind := string(card.Kind)
	if kind == "" {
		kind = "flashcard"
	}
	return kind + "-" + Hash(card)[:idHexLen]
}
