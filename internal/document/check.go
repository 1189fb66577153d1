package document

import (
	"fmt"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Severity grades a schema violation.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Violation is one schema problem found in a document's metadata.
type Violation struct {
	Field    Field    `json:"field"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Check returns every schema violation in m. Out-of-range numbers are errors;
// unknown types, incomplete deprecation markers and missing required fields
// are warnings.
func Check(m Metadata) []Violation {
	var out []Violation

	err := validation.ValidateStruct(&m,
		validation.Field(&m.ShipFactor, validation.By(intBetween(MinShipFactor, MaxShipFactor))),
		validation.Field(&m.Version, validation.By(intBetween(1, 0))),
	)
	if errs, ok := err.(validation.Errors); ok {
		keys := make([]string, 0, len(errs))
		for k := range errs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out = append(out, Violation{Field: Field(k), Severity: SeverityError, Message: errs[k].Error()})
		}
	} else if err != nil {
		out = append(out, Violation{Severity: SeverityError, Message: err.Error()})
	}

	if m.Type != nil && !m.Type.Known() {
		out = append(out, Violation{
			Field:    FieldType,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("unknown type %q", string(*m.Type)),
		})
	}
	if m.IsDeprecated() {
		if m.DeprecatedDate == nil {
			out = append(out, Violation{Field: FieldDeprecatedDate, Severity: SeverityWarning, Message: "deprecated without deprecated_date"})
		}
		if m.DeprecatedReason == nil {
			out = append(out, Violation{Field: FieldDeprecatedReason, Severity: SeverityWarning, Message: "deprecated without deprecated_reason"})
		}
	}
	for _, f := range m.Missing() {
		out = append(out, Violation{Field: f, Severity: SeverityWarning, Message: "missing required field"})
	}
	return out
}

// ValidateShipFactor returns an error when v is outside [MinShipFactor, MaxShipFactor].
func ValidateShipFactor(v int) error {
	return intBetween(MinShipFactor, MaxShipFactor)(&v)
}

// intBetween checks an optional integer against [lo, hi]; hi <= 0 means no
// upper bound. Absent values pass.
func intBetween(lo, hi int) validation.RuleFunc {
	return func(value any) error {
		p, _ := value.(*int)
		if p == nil {
			return nil
		}
		if *p < lo || (hi > 0 && *p > hi) {
			if hi > 0 {
				return fmt.Errorf("must be between %d and %d, got %d", lo, hi, *p)
			}
			return fmt.Errorf("must be at least %d, got %d", lo, *p)
		}
		return nil
	}
}
