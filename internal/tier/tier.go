package tier

import "strings"

// Tier is a subscription level. It is derived from a user's subscription
// fields at read time, never stored.
type Tier int

const (
	Free Tier = iota
	Basic
	Gold
	Platinum
)

func (t Tier) String() string {
	switch t {
	case Basic:
		return "basic"
	case Gold:
		return "gold"
	case Platinum:
		return "platinum"
	default:
		return "free"
	}
}

// FromPlan maps a stored subscription_plan value to a Tier.
// Unknown plans map to Free.
func FromPlan(plan string) Tier {
	switch strings.ToLower(strings.TrimSpace(plan)) {
	case "basic":
		return Basic
	case "gold":
		return Gold
	case "platinum":
		return Platinum
	default:
		return Free
	}
}

// Unlimited is the sentinel for quota fields without a daily cap.
const Unlimited = -1

// Limits is the per-tier entitlement table. Immutable at runtime.
type Limits struct {
	DailyProfileViews       int
	DailyMessages           int
	CanAccessContactDetails bool
	AdFrequency             int
	HasEliteAccess          bool
}

// LimitsFor returns the entitlement limits for a tier.
// Unknown tiers fall back to Free limits.
func LimitsFor(t Tier) Limits {
	switch t {
	case Basic:
		return Limits{
			DailyProfileViews: 50,
			DailyMessages:     30,
			AdFrequency:       10,
		}
	case Gold:
		return Limits{
			DailyProfileViews:       200,
			DailyMessages:           100,
			CanAccessContactDetails: true,
		}
	case Platinum:
		return Limits{
			DailyProfileViews:       Unlimited,
			DailyMessages:           Unlimited,
			CanAccessContactDetails: true,
			HasEliteAccess:          true,
		}
	default:
		return Limits{
			DailyProfileViews: 10,
			DailyMessages:     0,
			AdFrequency:       5,
		}
	}
}
