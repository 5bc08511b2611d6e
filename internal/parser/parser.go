// Package parser extracts flashcards from markdown decks.
//
// A card is a block of prefixed lines:
//
//	Q: question, may continue over several lines
//	A: answer
//	C: optional context
//	K: optional item kind (flashcard, exercise, incident)
//
// Cards are separated by a new Q: line or a "---" line. Text before the
// first Q: is ignored.
package parser

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/conorfennell/drillbook/internal/domain"
)

// Card is a parsed deck entry.
type Card struct {
	Question string
	Answer   string
	Context  string
	Kind     domain.ItemKind
	// Line is the 1-based line of the card's Q: prefix.
	Line int
}

// Error reports a card that could not be parsed. Parsing continues after it.
type Error struct {
	Line int
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

type field int

const (
	none field = iota
	question
	answer
	context
	kind
)

var prefixes = []struct {
	prefix string
	field  field
}{
	{"Q:", question},
	{"A:", answer},
	{"C:", context},
	{"K:", kind},
}

// ParseFile reads a deck file.
func ParseFile(path string) ([]Card, []error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads cards from r. Malformed cards are skipped and returned as
// *Error values; the final error is reserved for read failures.
func Parse(r io.Reader) ([]Card, []error, error) {
	p := &cardParser{}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		p.line(lineNo, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	p.finish()
	return p.cards, p.errs, nil
}

type cardParser struct {
	cards []Card
	errs  []error

	cur     Card
	kindRaw string
	open    bool
	field   field
	block   []string
}

func (p *cardParser) line(n int, text string) {
	if strings.TrimSpace(text) == "---" {
		p.finish()
		return
	}
	for _, pf := range prefixes {
		if !strings.HasPrefix(text, pf.prefix) {
			continue
		}
		p.flush()
		if pf.field == question {
			p.finish()
			p.open = true
			p.cur.Line = n
		}
		p.field = pf.field
		p.block = append(p.block, strings.TrimPrefix(text[len(pf.prefix):], " "))
		return
	}
	if p.field != none {
		p.block = append(p.block, text)
	}
}

// flush stores the lines collected for the current field.
func (p *cardParser) flush() {
	if p.field == none {
		return
	}
	content := strings.TrimRight(strings.Join(p.block, "\n"), "\n")
	switch p.field {
	case question:
		p.cur.Question = content
	case answer:
		p.cur.Answer = content
	case context:
		p.cur.Context = content
	case kind:
		p.kindRaw = strings.TrimSpace(content)
	}
	p.block = nil
	p.field = none
}

// finish closes the current card, keeping it if it is complete.
func (p *cardParser) finish() {
	p.flush()
	if p.open {
		switch k, err := domain.ParseItemKind(p.kindRaw); {
		case strings.TrimSpace(p.cur.Question) == "":
			p.errs = append(p.errs, &Error{Line: p.cur.Line, Msg: "empty question"})
		case strings.TrimSpace(p.cur.Answer) == "":
			p.errs = append(p.errs, &Error{Line: p.cur.Line, Msg: "question has no answer"})
		case err != nil:
			p.errs = append(p.errs, &Error{Line: p.cur.Line, Msg: err.Error()})
		default:
			p.cur.Kind = k
			p.cards = append(p.cards, p.cur)
		}
	}
	p.cur = Card{}
	p.kindRaw = ""
	p.open = false
}
