// Package validate checks every document against the frontmatter schema and
// repairs missing required fields.
package validate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/brain/internal/apperr"
	"github.com/starford/brain/internal/docstore"
	"github.com/starford/brain/internal/document"
)

// Finding is one schema problem in one document.
type Finding struct {
	Path string `json:"path"`
	document.Violation
}

func (f Finding) String() string {
	if f.Field == "" {
		return fmt.Sprintf("%s: %s", f.Path, f.Message)
	}
	return fmt.Sprintf("%s: %s: %s", f.Path, f.Field, f.Message)
}

// Report collects every finding of a validation pass.
type Report struct {
	Checked  int       `json:"checked"`
	Errors   []Finding `json:"errors"`
	Warnings []Finding `json:"warnings"`
}

// OK reports whether no hard errors were found.
func (r Report) OK() bool {
	return len(r.Errors) == 0
}

// RepairResult lists the fields filled per document.
type RepairResult struct {
	Repaired map[string][]document.Field `json:"repaired"`
	Skipped  []string                    `json:"skipped,omitempty"`
}

// Validator operates directly on the store.
type Validator struct {
	store *docstore.Store
	log   *slog.Logger
}

// New creates a Validator.
func New(store *docstore.Store, log *slog.Logger) *Validator {
	if log == nil {
		log = slog.Default()
	}
	return &Validator{store: store, log: log}
}

// Repair fills every missing required field of the document at p with its
// default and persists it through the store, which bumps the version. A
// document with nothing missing is left untouched.
func (v *Validator) Repair(ctx context.Context, p string) ([]document.Field, error) {
	d, err := v.store.Read(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("validate: repair: %w", err)
	}
	meta := d.Meta
	filled := meta.FillMissing(document.Defaults(p, v.store.Now()))
	if len(filled) == 0 {
		return nil, nil
	}
	// Patch only the filled fields so stored values pass through untouched.
	patch := meta.Only(filled)
	if _, err := v.store.Update(ctx, p, nil, &patch); err != nil {
		return nil, fmt.Errorf("validate: repair: %w", err)
	}
	v.log.Info("validate: repaired", slog.String("path", p), slog.Int("fields", len(filled)))
	return filled, nil
}

// RepairAll repairs every readable document. Malformed documents are
// skipped and listed; out-of-range values stay for Validate to report.
func (v *Validator) RepairAll(ctx context.Context) (RepairResult, error) {
	docs, issues, err := v.store.Scan(ctx)
	if err != nil {
		return RepairResult{}, fmt.Errorf("validate: %w", err)
	}
	res := RepairResult{Repaired: make(map[string][]document.Field)}
	for _, is := range issues {
		res.Skipped = append(res.Skipped, is.Path)
	}
	for _, d := range docs {
		if len(d.Meta.Missing()) == 0 {
			continue
		}
		filled, err := v.Repair(ctx, d.Path)
		if errors.Is(err, apperr.ErrInvalidDocument) {
			v.log.Warn("validate: cannot repair", slog.String("path", d.Path), slog.String("error", err.Error()))
			res.Skipped = append(res.Skipped, d.Path)
			continue
		}
		if err != nil {
			return res, err
		}
		res.Repaired[d.Path] = filled
	}
	return res, nil
}

// Validate checks every document. Schema violations are collected, never
// returned as errors; malformed metadata is reported as a hard error.
func (v *Validator) Validate(ctx context.Context) (Report, error) {
	docs, issues, err := v.store.Scan(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("validate: %w", err)
	}
	rep := Report{Checked: len(docs) + len(issues)}
	for _, is := range issues {
		rep.Errors = append(rep.Errors, Finding{
			Path:      is.Path,
			Violation: document.Violation{Severity: document.SeverityError, Message: is.Err.Error()},
		})
	}
	for _, d := range docs {
		for _, viol := range document.Check(d.Meta) {
			f := Finding{Path: d.Path, Violation: viol}
			if viol.Severity == document.SeverityError {
				rep.Errors = append(rep.Errors, f)
			} else {
				rep.Warnings = append(rep.Warnings, f)
			}
		}
	}
	return rep, nil
}
