package matching

import (
	"strings"
	"time"

	"github.com/amoria/matchcore/internal/db"
)

// Compatibility weights. The six factors sum to 1.0; the preference bonus
// is additive on top, capped, and the total is clamped to [0,100].
const (
	weightAge       = 0.25
	weightLocation  = 0.20
	weightReligion  = 0.20
	weightEducation = 0.15
	weightInterests = 0.10
	weightLifestyle = 0.10

	maxPreferenceBonus = 25.0

	neutralScore = 50.0
)

// Breakdown carries the per-factor sub-scores behind a compatibility score.
type Breakdown struct {
	Age             float64
	Location        float64
	Religion        float64
	Education       float64
	Interests       float64
	Lifestyle       float64
	PreferenceBonus float64
}

// Score computes the 0-100 compatibility between a requester and a candidate
// profile. Deterministic: identical inputs always produce the identical
// float; the only clock dependence is the reference year for age derivation.
func Score(requester, candidate *db.Profile, now time.Time) (float64, Breakdown) {
	if requester == nil {
		requester = &db.Profile{}
	}
	if candidate == nil {
		candidate = &db.Profile{}
	}

	b := Breakdown{
		Age:       ageScore(requester.DobYear, candidate.DobYear),
		Location:  locationScore(requester, candidate),
		Religion:  religionScore(requester.Religion, candidate.Religion),
		Education: educationScore(requester.Education, candidate.Education),
		Interests: interestsScore(requester, candidate),
		Lifestyle: lifestyleScore(requester, candidate),
	}
	b.PreferenceBonus = preferenceBonus(requester, candidate, now)

	total := b.Age*weightAge +
		b.Location*weightLocation +
		b.Religion*weightReligion +
		b.Education*weightEducation +
		b.Interests*weightInterests +
		b.Lifestyle*weightLifestyle +
		b.PreferenceBonus

	if total > 100 {
		total = 100
	}
	if total < 0 {
		total = 0
	}
	return total, b
}

func ageScore(dobYearA, dobYearB int) float64 {
	if dobYearA == 0 || dobYearB == 0 {
		return 0
	}
	diff := dobYearA - dobYearB
	if diff < 0 {
		diff = -diff
	}
	switch {
	case diff <= 3:
		return 100
	case diff <= 7:
		return 80
	case diff <= 12:
		return 60
	default:
		score := 60 - float64(diff-12)*5
		if score < 20 {
			return 20
		}
		return score
	}
}

func locationScore(a, b *db.Profile) float64 {
	switch {
	case sameField(a.City, b.City):
		return 100
	case sameField(a.State, b.State):
		return 80
	case sameField(a.Country, b.Country):
		return 60
	default:
		return 20
	}
}

func religionScore(a, b string) float64 {
	if a == "" || b == "" {
		return neutralScore
	}
	if strings.EqualFold(a, b) {
		return 100
	}
	// Sunni/Shia/Sufi/Other under the same Islam family
	if islamFamily(a) && islamFamily(b) {
		return 85
	}
	return 20
}

func islamFamily(religion string) bool {
	return strings.HasPrefix(strings.ToLower(religion), "islam")
}

// educationRank maps education values to an ordinal scale.
var educationRank = map[string]int{
	"high_school":  1,
	"vocational":   2,
	"diploma":      3,
	"bachelors":    4,
	"masters":      5,
	"professional": 6,
	"doctorate":    7,
}

func educationScore(a, b string) float64 {
	rankA, okA := educationRank[strings.ToLower(a)]
	rankB, okB := educationRank[strings.ToLower(b)]
	if !okA || !okB {
		return neutralScore
	}
	diff := rankA - rankB
	if diff < 0 {
		diff = -diff
	}
	switch diff {
	case 0:
		return 100
	case 1:
		return 85
	case 2:
		return 70
	case 3:
		return 55
	default:
		return 40
	}
}

func interestsScore(a, b *db.Profile) float64 {
	pairs := [][2]string{
		{a.InterestsEntertainment, b.InterestsEntertainment},
		{a.InterestsFood, b.InterestsFood},
		{a.InterestsMusic, b.InterestsMusic},
		{a.InterestsSports, b.InterestsSports},
	}

	var total float64
	var fields int
	for _, p := range pairs {
		if p[0] == "" || p[1] == "" {
			continue
		}
		total += textSimilarity(p[0], p[1])
		fields++
	}
	if fields == 0 {
		return neutralScore
	}

	avg := total / float64(fields)
	switch {
	case avg >= 70:
		return 100
	case avg >= 50:
		return 85
	case avg >= 30:
		return 70
	case avg >= 15:
		return 55
	default:
		return 40
	}
}

// textSimilarity grades two free-text interest values: exact match 100,
// substring containment 80, otherwise word-overlap ratio scaled to 0-100.
func textSimilarity(a, b string) float64 {
	la, lb := strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b))
	if la == lb {
		return 100
	}
	if strings.Contains(la, lb) || strings.Contains(lb, la) {
		return 80
	}

	wordsA := strings.Fields(la)
	wordsB := strings.Fields(lb)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}
	setA := make(map[string]struct{}, len(wordsA))
	for _, w := range wordsA {
		setA[w] = struct{}{}
	}
	setB := make(map[string]struct{}, len(wordsB))
	for _, w := range wordsB {
		setB[w] = struct{}{}
	}

	var common int
	for w := range setA {
		if _, ok := setB[w]; ok {
			common++
		}
	}
	union := len(setA) + len(setB) - common
	if union == 0 {
		return 0
	}
	return float64(common) / float64(union) * 100
}

// lifestyleRank orders each lifestyle field's categories so adjacency is the
// absolute rank difference.
var lifestyleRank = map[string]map[string]int{
	"smoking":  {"no": 0, "occasionally": 1, "yes": 2},
	"drinking": {"no": 0, "occasionally": 1, "yes": 2},
	"children": {"no": 0, "maybe": 1, "yes": 2},
}

// lifestylePairScore: exact match 100, adjacent categories 75, opposite
// extremes 35.
func lifestylePairScore(field, a, b string) (float64, bool) {
	ranks := lifestyleRank[field]
	rankA, okA := ranks[strings.ToLower(a)]
	rankB, okB := ranks[strings.ToLower(b)]
	if !okA || !okB {
		return 0, false
	}
	diff := rankA - rankB
	if diff < 0 {
		diff = -diff
	}
	switch diff {
	case 0:
		return 100, true
	case 1:
		return 75, true
	default:
		return 35, true
	}
}

func lifestyleScore(a, b *db.Profile) float64 {
	pairs := []struct {
		field string
		va    string
		vb    string
	}{
		{"smoking", a.Smoking, b.Smoking},
		{"drinking", a.Drinking, b.Drinking},
		{"children", a.WantsChildren, b.WantsChildren},
	}

	var total float64
	var fields int
	for _, p := range pairs {
		if score, ok := lifestylePairScore(p.field, p.va, p.vb); ok {
			total += score
			fields++
		}
	}
	if fields == 0 {
		return neutralScore
	}
	return total / float64(fields)
}

func preferenceBonus(requester, candidate *db.Profile, now time.Time) float64 {
	var bonus float64

	if requester.PrefAgeMin > 0 && requester.PrefAgeMax > 0 && candidate.DobYear > 0 {
		age := now.Year() - candidate.DobYear
		if age >= requester.PrefAgeMin && age <= requester.PrefAgeMax {
			bonus += 10
		}
	}
	if requester.PrefEducation != "" && strings.EqualFold(requester.PrefEducation, candidate.Education) {
		bonus += 8
	}
	// flat credit: practice data is too sparse to compare values
	if requester.PrefReligiousPractice != "" {
		bonus += 5
	}
	if requester.PrefMaritalStatus != "" && strings.EqualFold(requester.PrefMaritalStatus, candidate.MaritalStatus) {
		bonus += 7
	}

	if bonus > maxPreferenceBonus {
		return maxPreferenceBonus
	}
	return bonus
}

func sameField(a, b string) bool {
	return a != "" && b != "" && strings.EqualFold(a, b)
}
