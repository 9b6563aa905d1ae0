// Package validation decides whether an extracted bill is trustworthy enough
// to show for review. It reports problems and never corrects a field.
package validation

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Severity of an Issue
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Issue types reported by the pipeline
const (
	IssueMissing            = "missing"
	IssueInvalidValue       = "invalid_value"
	IssueEmpty              = "empty"
	IssueLowConfidence      = "low_confidence"
	IssueFutureDate         = "future_date"
	IssueSuspiciousDate     = "suspicious_date"
	IssueInconsistent       = "inconsistent"
	IssueSuspiciousValue    = "suspicious_value"
	IssuePotentialDuplicate = "potential_duplicate"
)

// Issue is a single finding about one field
type Issue struct {
	Field        string   `json:"field"`
	Type         string   `json:"issue_type"`
	Message      string   `json:"message"`
	Severity     Severity `json:"severity"`
	SuggestedFix string   `json:"suggested_fix,omitempty"`
}

// Result is produced once per extraction attempt
type Result struct {
	SchemaValid          bool     `json:"schema_valid"`
	SemanticValid        bool     `json:"semantic_valid"`
	IsValid              bool     `json:"is_valid"`
	CanProceedWithReview bool     `json:"can_proceed_with_review"`
	Issues               []Issue  `json:"issues"`
	Warnings             []string `json:"warnings"`
}

// HasErrors reports whether any issue has error severity
func (r Result) HasErrors() bool {
	return hasErrors(r.Issues)
}

// Config holds the thresholds used by the pipeline
type Config struct {
	// FutureDateToleranceDays is how far past today a bill date may be
	FutureDateToleranceDays int
	// MaxAmount is the ceiling above which a total is flagged as unusually high
	MaxAmount decimal.Decimal
	// MinConfidence is the extraction confidence below which a warning is raised
	MinConfidence float64
	// Today returns the current date
	Today func() civil.Date
}

// DefaultConfig returns the production thresholds
func DefaultConfig() Config {
	return Config{
		FutureDateToleranceDays: 7,
		MaxAmount:               decimal.NewFromInt(1_000_000),
		MinConfidence:           0.5,
		Today: func() civil.Date {
			return civil.DateOf(time.Now())
		},
	}
}

func hasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// builder accumulates issues across stages. Issues are only ever appended;
// build copies them out once.
type builder struct {
	issues []Issue
}

func (b *builder) add(field, issueType string, sev Severity, message, fix string) {
	b.issues = append(b.issues, Issue{
		Field:        field,
		Type:         issueType,
		Message:      message,
		Severity:     sev,
		SuggestedFix: fix,
	})
}

func (b *builder) errorf(field, issueType, message, fix string) {
	b.add(field, issueType, SeverityError, message, fix)
}

func (b *builder) warn(field, issueType, message, fix string) {
	b.add(field, issueType, SeverityWarning, message, fix)
}

func (b *builder) build(schemaValid, semanticValid, hasTotal bool) Result {
	issues := make([]Issue, len(b.issues))
	copy(issues, b.issues)

	warnings := make([]string, 0)
	canProceed := hasTotal
	for _, i := range issues {
		if i.Severity == SeverityWarning {
			warnings = append(warnings, i.Message)
		}
		// a missing vendor can be typed in by hand, anything else cannot
		if i.Severity == SeverityError && i.Field != "vendor" {
			canProceed = false
		}
	}

	return Result{
		SchemaValid:          schemaValid,
		SemanticValid:        semanticValid,
		IsValid:              schemaValid && semanticValid,
		CanProceedWithReview: canProceed,
		Issues:               issues,
		Warnings:             warnings,
	}
}
