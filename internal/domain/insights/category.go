package insights

import "strings"

// NormalizeCategory builds the category key from the onboarding form values,
// e.g. ("tech", "Software Development") -> "tech-software-development".
func NormalizeCategory(industry, subIndustry string) string {
	industry = strings.ToLower(strings.TrimSpace(industry))
	sub := strings.ToLower(strings.TrimSpace(subIndustry))
	if sub == "" {
		return industry
	}
	return industry + "-" + strings.ReplaceAll(sub, " ", "-")
}
