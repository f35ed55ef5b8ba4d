package middleware

import (
	"fmt"
	"regexp"
	"strings"
)

// Input validation and sanitization utilities

const (
	maxExperienceYears = 50
	maxSkills          = 50
	maxSkillLength     = 64
	maxBioLength       = 2000
)

var (
	userIDPattern   = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
	categoryPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 &._-]{0,190}$`)
	industryPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 &._-]{0,99}$`)
)

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}
	return strings.TrimSpace(result.String())
}

// ValidateUserID validates user id format
func ValidateUserID(id string) error {
	if id == "" {
		return fmt.Errorf("user ID cannot be empty")
	}
	if !userIDPattern.MatchString(id) {
		return fmt.Errorf("invalid user ID format (alphanumeric, dash, underscore only, max 64 chars)")
	}
	return nil
}

// ValidateCategory validates a category key such as "tech-software-development"
func ValidateCategory(category string) error {
	if category == "" {
		return fmt.Errorf("category cannot be empty")
	}
	if !categoryPattern.MatchString(category) {
		return fmt.Errorf("invalid category format")
	}
	return nil
}

func ValidateIndustry(industry string) error {
	if industry == "" {
		return fmt.Errorf("industry is required")
	}
	if !industryPattern.MatchString(industry) {
		return fmt.Errorf("invalid industry format")
	}
	return nil
}

// ValidateExperience checks years of experience
func ValidateExperience(years int) error {
	if years < 0 || years > maxExperienceYears {
		return fmt.Errorf("experience must be between 0 and %d", maxExperienceYears)
	}
	return nil
}

func ValidateBio(bio string) error {
	if len(bio) > maxBioLength {
		return fmt.Errorf("bio is too long (max %d chars)", maxBioLength)
	}
	return nil
}

// ValidateSkills sanitizes every skill, drops blanks and enforces the limits.
func ValidateSkills(skills []string) ([]string, error) {
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		s = SanitizeString(s)
		if s == "" {
			continue
		}
		if len(s) > maxSkillLength {
			return nil, fmt.Errorf("skill %q is too long (max %d chars)", s, maxSkillLength)
		}
		out = append(out, s)
	}
	if len(out) > maxSkills {
		return nil, fmt.Errorf("too many skills (max %d)", maxSkills)
	}
	return out, nil
}
