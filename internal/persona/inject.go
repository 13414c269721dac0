package persona

import (
	"context"
	"math/rand/v2"
	"strings"
)

// Store is what the engine needs from persona storage.
type Store interface {
	FindByUserAndCategories(ctx context.Context, userID uint64, categories []Category) ([]Record, error)
}

// Engine appends persona blocks to a prompt template. It only ever reads.
type Engine struct {
	store Store
	// pick returns an index in [0, n).
	pick func(n int) int
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store, pick: rand.IntN}
}

// WithPicker replaces the random choice used for random-policy categories.
func (e *Engine) WithPicker(pick func(n int) int) *Engine {
	cp := *e
	cp.pick = pick
	return &cp
}

// Injectable returns the selected categories that can contribute text:
// flagged true, known, and not ignored. Order follows the Categories list.
func Injectable(selection map[string]bool) []Category {
	var out []Category
	for _, c := range Categories {
		if selection[string(c)] && c.Policy() != PolicyIgnored {
			out = append(out, c)
		}
	}
	return out
}

// Render returns template with one block per selected category appended.
// With nothing injectable the template comes back unchanged and the store is not read.
func (e *Engine) Render(ctx context.Context, userID uint64, template string, selection map[string]bool) (string, error) {
	categories := Injectable(selection)
	if len(categories) == 0 {
		return template, nil
	}

	records, err := e.store.FindByUserAndCategories(ctx, userID, categories)
	if err != nil {
		return "", err
	}

	sections := make([]string, 0, len(records))
	for _, rec := range records {
		if len(rec.Details) == 0 {
			continue
		}
		var pairs []Pair
		switch rec.Category.Policy() {
		case PolicyRandom:
			pairs = []Pair{rec.Details[e.pick(len(rec.Details))]}
		case PolicyAll:
			pairs = rec.Details
		default:
			continue
		}
		sections = append(sections, FormatSection(rec.Category, pairs))
	}

	if len(sections) == 0 {
		return template, nil
	}
	return template + "\n\n" + strings.Join(sections, "\n\n"), nil
}

// FormatSection renders one category block:
//
//	### Customer Pain ###
//	Prompt: ...
//	Response: ...
//	### End Customer Pain ###
func FormatSection(category Category, pairs []Pair) string {
	var b strings.Builder
	b.WriteString("### Customer ")
	b.WriteString(string(category))
	b.WriteString(" ###\n")
	for _, p := range pairs {
		b.WriteString("Prompt: ")
		b.WriteString(p.Prompt)
		b.WriteString("\nResponse: ")
		b.WriteString(p.Response)
		b.WriteString("\n")
	}
	b.WriteString("### End Customer ")
	b.WriteString(string(category))
	b.WriteString(" ###")
	return b.String()
}
