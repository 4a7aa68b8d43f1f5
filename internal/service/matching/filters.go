package matching

import (
	"github.com/amoria/matchcore/internal/repository"
	"github.com/amoria/matchcore/internal/tier"
)

// Filters is the caller-supplied filter set for match browsing. Zero values
// mean "not filtered". Which fields take effect depends on the caller's
// tier; fields above the caller's tier are silently dropped, not rejected.
type Filters struct {
	// available to all tiers
	AgeMin        int
	AgeMax        int
	Location      string
	MaritalStatus string
	Religion      string

	// gold and platinum
	Education   string
	Employment  string
	IncomeRange string

	// platinum only
	HeightMin int
	HeightMax int
	Ethnicity string
	Smoking   string
	Drinking  string
	EliteOnly bool
}

// gateFilters reduces a filter set to what the tier is entitled to use.
func gateFilters(t tier.Tier, f Filters) repository.CandidateFilter {
	cf := repository.CandidateFilter{
		AgeMin:        f.AgeMin,
		AgeMax:        f.AgeMax,
		Location:      f.Location,
		MaritalStatus: f.MaritalStatus,
		Religion:      f.Religion,
	}

	if t == tier.Gold || t == tier.Platinum {
		cf.Education = f.Education
		cf.Employment = f.Employment
		cf.IncomeRange = f.IncomeRange
	}

	if t == tier.Platinum {
		cf.HeightMin = f.HeightMin
		cf.HeightMax = f.HeightMax
		cf.Ethnicity = f.Ethnicity
		cf.Smoking = f.Smoking
		cf.Drinking = f.Drinking
		cf.EliteOnly = f.EliteOnly
	}

	return cf
}
