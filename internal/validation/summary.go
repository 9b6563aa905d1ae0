package validation

import "strings"

// Summary renders r for a non-technical reader.
func Summary(r Result) string {
	if r.IsValid && len(r.Warnings) == 0 {
		return "All checks passed! Please review the details below."
	}

	var lines []string

	if !r.SchemaValid {
		lines = append(lines, "Some required information could not be extracted:")
		for _, i := range r.Issues {
			if i.Severity != SeverityError {
				continue
			}
			lines = append(lines, "  - "+i.Message)
			if i.SuggestedFix != "" {
				lines = append(lines, "    Tip: "+i.SuggestedFix)
			}
		}
	}

	if len(r.Warnings) > 0 {
		lines = append(lines, "", "Please verify the following:")
		for _, w := range r.Warnings {
			lines = append(lines, "  - "+w)
		}
	}

	if r.CanProceedWithReview {
		lines = append(lines, "", "You can still proceed, but please review carefully.")
	} else {
		lines = append(lines, "", "Please fix the issues above before continuing.")
	}

	return strings.TrimLeft(strings.Join(lines, "\n"), "\n")
}
