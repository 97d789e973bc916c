package sequence

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
)

// Generator issues unique, monotonically increasing document numbers per
// (document type, period key) pair.
type Generator struct {
	repo     Repository
	patterns map[string]Template
	fallback Template
}

// NewGenerator builds a Generator. patterns maps a document type to its
// template; types without an entry use the fallback.
func NewGenerator(repo Repository, fallback Template, patterns map[string]Template) *Generator {
	if patterns == nil {
		patterns = map[string]Template{}
	}
	return &Generator{repo: repo, patterns: patterns, fallback: fallback}
}

func (g *Generator) template(docType string) Template {
	if t, ok := g.patterns[docType]; ok {
		return t
	}
	return g.fallback
}

// Next allocates and formats the next number for docType at occurredAt.
// The backing increment is a single atomic statement, so Next alone is safe
// for standalone use; inside larger units of work use NextTx.
func (g *Generator) Next(ctx context.Context, docType string, occurredAt time.Time) (string, error) {
	tmpl := g.template(docType)
	value, err := g.repo.Increment(ctx, docType, tmpl.PeriodKey(occurredAt))
	if err != nil {
		return "", err
	}
	return g.format(tmpl, docType, occurredAt, value)
}

// NextTx allocates inside the caller's transaction. A rollback returns the
// value, keeping numbers gap-free when posting fails after allocation.
func (g *Generator) NextTx(ctx context.Context, tx pgx.Tx, docType string, occurredAt time.Time) (string, error) {
	tmpl := g.template(docType)
	value, err := g.repo.IncrementTx(ctx, tx, docType, tmpl.PeriodKey(occurredAt))
	if err != nil {
		return "", err
	}
	return g.format(tmpl, docType, occurredAt, value)
}

func (g *Generator) format(tmpl Template, docType string, occurredAt time.Time, value int64) (string, error) {
	if value > tmpl.Max() {
		return "", fmt.Errorf("%w: %s/%s at %d", shared.ErrSequenceExhausted, docType, tmpl.PeriodKey(occurredAt), value)
	}
	return tmpl.Format(docType, occurredAt, value), nil
}
