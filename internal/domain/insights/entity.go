package insights

import (
	"fmt"
	"strings"
	"time"
)

// DefaultRefreshAfter is how long a report stays fresh after generation.
const DefaultRefreshAfter = 7 * 24 * time.Hour

// MarketOutlook enum
type MarketOutlook string

const (
	OutlookPositive MarketOutlook = "Positive"
	OutlookNeutral  MarketOutlook = "Neutral"
	OutlookNegative MarketOutlook = "Negative"
)

// ParseMarketOutlook menerima "positive", "POSITIVE", dst.
func ParseMarketOutlook(s string) (MarketOutlook, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "positive":
		return OutlookPositive, nil
	case "neutral":
		return OutlookNeutral, nil
	case "negative":
		return OutlookNegative, nil
	}
	return "", fmt.Errorf("invalid marketOutlook %q (allowed: Positive, Neutral, Negative)", s)
}

// DemandLevel enum
type DemandLevel string

const (
	DemandHigh   DemandLevel = "High"
	DemandMedium DemandLevel = "Medium"
	DemandLow    DemandLevel = "Low"
)

func ParseDemandLevel(s string) (DemandLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return DemandHigh, nil
	case "medium":
		return DemandMedium, nil
	case "low":
		return DemandLow, nil
	}
	return "", fmt.Errorf("invalid demandLevel %q (allowed: High, Medium, Low)", s)
}

// SalaryRange value object
type SalaryRange struct {
	Role     string `json:"role"`
	Min      int64  `json:"min"`
	Max      int64  `json:"max"`
	Median   int64  `json:"median"`
	Location string `json:"location"`
}

// Payload is the generated part of a report, everything except the key and timestamps.
type Payload struct {
	MarketOutlook     MarketOutlook `json:"marketOutlook"`
	GrowthRate        float64       `json:"growthRate"`
	DemandLevel       DemandLevel   `json:"demandLevel"`
	TopSkills         []string      `json:"topSkills"`
	KeyTrends         []string      `json:"keyTrends"`
	RecommendedSkills []string      `json:"recommendedSkills"`
	SalaryRanges      []SalaryRange `json:"salaryRanges"`
}

// Generation is a validated payload together with the raw model output it came from.
type Generation struct {
	Payload Payload
	Raw     string
}

// Aggregate Root: Report, satu baris per category
type Report struct {
	Category string `json:"category"`
	Payload
	LastUpdated    time.Time `json:"lastUpdated"`
	NextRefreshDue time.Time `json:"nextRefreshDue"`
}

// NewReport stamps a payload with its category and refresh window.
func NewReport(category string, p Payload, now time.Time, refreshAfter time.Duration) *Report {
	if refreshAfter <= 0 {
		refreshAfter = DefaultRefreshAfter
	}
	return &Report{
		Category:       category,
		Payload:        p.Clone(),
		LastUpdated:    now,
		NextRefreshDue: now.Add(refreshAfter),
	}
}

// Fresh reports whether the report can be served without regeneration.
func (r *Report) Fresh(now time.Time) bool {
	return now.Before(r.NextRefreshDue)
}

// Clone returns a deep copy so callers never share slices with a store.
func (r *Report) Clone() *Report {
	if r == nil {
		return nil
	}
	c := *r
	c.Payload = r.Payload.Clone()
	return &c
}

func (p Payload) Clone() Payload {
	c := p
	c.TopSkills = cloneStrings(p.TopSkills)
	c.KeyTrends = cloneStrings(p.KeyTrends)
	c.RecommendedSkills = cloneStrings(p.RecommendedSkills)
	if p.SalaryRanges != nil {
		c.SalaryRanges = append([]SalaryRange(nil), p.SalaryRanges...)
	}
	return c
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
