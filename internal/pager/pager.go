// Package pager splits a guild's ordered intake catalog into fixed-size
// pages and builds the input-collection descriptor for one page. It is pure:
// no persistence, no platform types.
package pager

import (
	"fmt"

	"github.com/gatewarden/gatewarden/internal/domain"
)

const (
	// DefaultPageSize is the number of questions per page, matching the
	// platform's five-input modal limit.
	DefaultPageSize = 5

	// InputMaxLen caps user input per answer, in runes. It matches the
	// storage cap so nothing is silently lost between modal and row.
	InputMaxLen = 1000

	// LabelMaxLen caps input labels; longer prompts are elided.
	LabelMaxLen = 45

	// PlaceholderMaxLen caps input placeholders; longer prompts are cut.
	PlaceholderMaxLen = 100
)

// Page is one fixed-size slice of the catalog, preserving original order.
type Page struct {
	Index     int
	Questions []domain.GuildQuestion
}

// Input describes a single text input of a page form.
type Input struct {
	QIndex      int
	Label       string
	Placeholder string
	Required    bool
	MaxLen      int
	Value       string // pre-filled from a saved answer, may be empty
}

// Form is the input-collection descriptor for one page, ready for the
// presentation layer to turn into a modal.
type Form struct {
	PageIndex int
	PageCount int
	Inputs    []Input
}

// Paginate groups questions into pages of at most pageSize, preserving
// order. A non-positive pageSize is a programming error and panics.
func Paginate(questions []domain.GuildQuestion, pageSize int) []Page {
	if pageSize <= 0 {
		panic(fmt.Sprintf("pager: pageSize must be positive, got %d", pageSize))
	}
	var pages []Page
	for i := 0; i < len(questions); i += pageSize {
		end := i + pageSize
		if end > len(questions) {
			end = len(questions)
		}
		pages = append(pages, Page{Index: len(pages), Questions: questions[i:end]})
	}
	return pages
}

// BuildForm produces the form descriptor for a page, pre-filling values from
// existing answers keyed by question index. Building a form from a page with
// zero questions is a programming error and panics.
func BuildForm(page Page, pageCount int, existing map[int]string) Form {
	if len(page.Questions) == 0 {
		panic("pager: cannot build a form without inputs")
	}
	form := Form{PageIndex: page.Index, PageCount: pageCount}
	for _, q := range page.Questions {
		label := q.Prompt
		if label == "" {
			label = fmt.Sprintf("Question %d", q.QIndex+1)
		} else if len([]rune(label)) > LabelMaxLen {
			label = string([]rune(label)[:LabelMaxLen-3]) + "..."
		}
		placeholder := q.Prompt
		if len([]rune(placeholder)) > PlaceholderMaxLen {
			placeholder = string([]rune(placeholder)[:PlaceholderMaxLen])
		}
		value := existing[q.QIndex]
		if len([]rune(value)) > InputMaxLen {
			value = string([]rune(value)[:InputMaxLen])
		}
		form.Inputs = append(form.Inputs, Input{
			QIndex:      q.QIndex,
			Label:       label,
			Placeholder: placeholder,
			Required:    q.Required,
			MaxLen:      InputMaxLen,
			Value:       value,
		})
	}
	return form
}

// PageOf returns the page containing the question with index qIndex, or -1.
func PageOf(pages []Page, qIndex int) int {
	for _, p := range pages {
		for _, q := range p.Questions {
			if q.QIndex == qIndex {
				return p.Index
			}
		}
	}
	return -1
}
