package generator

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/bryanwahyu/career-insight/internal/domain/insights"
)

// maxSalary bounds salary figures well below the int64 range; float64 can't
// hold MaxInt64 exactly.
const maxSalary = 1e12

type rawSalaryRange struct {
	Role     *string  `json:"role"`
	Min      *float64 `json:"min"`
	Max      *float64 `json:"max"`
	Median   *float64 `json:"median"`
	Location *string  `json:"location"`
}

type rawPayload struct {
	MarketOutlook     *string           `json:"marketOutlook"`
	GrowthRate        *float64          `json:"growthRate"`
	DemandLevel       *string           `json:"demandLevel"`
	TopSkills         *[]string         `json:"topSkills"`
	KeyTrends         *[]string         `json:"keyTrends"`
	RecommendedSkills *[]string         `json:"recommendedSkills"`
	SalaryRanges      *[]rawSalaryRange `json:"salaryRanges"`
}

// ParsePayload turns model output into a validated Payload. Every failure is a
// *insights.GenerationError; decoding errors never escape raw.
func ParsePayload(text string) (insights.Payload, error) {
	clean := CleanJSON(text)
	if clean == "" {
		return insights.Payload{}, &insights.GenerationError{Reason: "empty response"}
	}

	var raw rawPayload
	if err := json.Unmarshal([]byte(clean), &raw); err != nil {
		return insights.Payload{}, &insights.GenerationError{
			Reason:  "response is not a valid report object",
			Details: []string{err.Error()},
		}
	}

	var (
		out     insights.Payload
		details []string
	)
	missing := func(field string) { details = append(details, field+" is required") }

	if raw.MarketOutlook == nil {
		missing("marketOutlook")
	} else if v, err := insights.ParseMarketOutlook(*raw.MarketOutlook); err != nil {
		details = append(details, err.Error())
	} else {
		out.MarketOutlook = v
	}

	if raw.DemandLevel == nil {
		missing("demandLevel")
	} else if v, err := insights.ParseDemandLevel(*raw.DemandLevel); err != nil {
		details = append(details, err.Error())
	} else {
		out.DemandLevel = v
	}

	if raw.GrowthRate == nil {
		missing("growthRate")
	} else if math.IsNaN(*raw.GrowthRate) || math.IsInf(*raw.GrowthRate, 0) {
		details = append(details, "growthRate must be a finite number")
	} else {
		out.GrowthRate = *raw.GrowthRate
	}

	out.TopSkills = stringList("topSkills", raw.TopSkills, &details)
	out.KeyTrends = stringList("keyTrends", raw.KeyTrends, &details)
	out.RecommendedSkills = stringList("recommendedSkills", raw.RecommendedSkills, &details)

	if raw.SalaryRanges == nil {
		missing("salaryRanges")
	} else {
		out.SalaryRanges = make([]insights.SalaryRange, 0, len(*raw.SalaryRanges))
		for i, sr := range *raw.SalaryRanges {
			r, errs := salaryRange(i, sr)
			details = append(details, errs...)
			out.SalaryRanges = append(out.SalaryRanges, r)
		}
	}

	if len(details) > 0 {
		return insights.Payload{}, &insights.GenerationError{Reason: "schema mismatch", Details: details}
	}
	return out, nil
}

func stringList(field string, v *[]string, details *[]string) []string {
	if v == nil {
		*details = append(*details, field+" is required")
		return nil
	}
	out := make([]string, 0, len(*v))
	for _, s := range *v {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func salaryRange(i int, sr rawSalaryRange) (insights.SalaryRange, []string) {
	var errs []string
	prefix := fmt.Sprintf("salaryRanges[%d]", i)

	var r insights.SalaryRange
	if sr.Role == nil || strings.TrimSpace(*sr.Role) == "" {
		errs = append(errs, prefix+".role is required")
	} else {
		r.Role = strings.TrimSpace(*sr.Role)
	}
	if sr.Location != nil {
		r.Location = strings.TrimSpace(*sr.Location)
	} else {
		errs = append(errs, prefix+".location is required")
	}

	whole := func(name string, v *float64) int64 {
		switch {
		case v == nil:
			errs = append(errs, prefix+"."+name+" is required")
		case *v < 0 || *v != math.Trunc(*v):
			errs = append(errs, fmt.Sprintf("%s.%s must be a non-negative integer, got %v", prefix, name, *v))
		case *v > maxSalary:
			errs = append(errs, fmt.Sprintf("%s.%s exceeds %v, got %v", prefix, name, maxSalary, *v))
		default:
			return int64(*v)
		}
		return 0
	}
	r.Min = whole("min", sr.Min)
	r.Max = whole("max", sr.Max)
	r.Median = whole("median", sr.Median)

	if len(errs) == 0 {
		if r.Min > r.Max {
			errs = append(errs, fmt.Sprintf("%s.min (%d) is greater than max (%d)", prefix, r.Min, r.Max))
		} else if r.Median < r.Min || r.Median > r.Max {
			errs = append(errs, fmt.Sprintf("%s.median (%d) is outside [%d, %d]", prefix, r.Median, r.Min, r.Max))
		}
	}
	return r, errs
}
