package cmd

import (
	"strings"

	"github.com/joescharf/bugboard/internal/models"
)

// classifySeverity guesses a severity from keywords in the title and
// description. Critical keywords win over high, high over low. Defaults to
// medium when nothing matches.
func classifySeverity(title, description string) models.Severity {
	text := strings.ToLower(title + " " + description)

	criticalKeywords := []string{
		"data loss", "security", "vulnerability", "production down", "outage",
		"cannot log in", "can't log in", "payment", "corrupt", "p0",
	}
	for _, kw := range criticalKeywords {
		if strings.Contains(text, kw) {
			return models.SeverityCritical
		}
	}

	highKeywords := []string{
		"crash", "null pointer", "panic", "exception", "leak",
		"broken", "not working", "fails", "failure", "regression", "p1",
	}
	for _, kw := range highKeywords {
		if strings.Contains(text, kw) {
			return models.SeverityHigh
		}
	}

	lowKeywords := []string{
		"typo", "cosmetic", "minor", "alignment", "spelling",
		"trivial", "nice to have", "wording",
	}
	for _, kw := range lowKeywords {
		if strings.Contains(text, kw) {
			return models.SeverityLow
		}
	}

	return models.SeverityMedium
}
