package tier

// Activity is a rate-limited action tracked in the daily counter ledger.
type Activity string

const (
	ActivityProfileViews   Activity = "profile_views"
	ActivityMessagesSent   Activity = "messages_sent"
	ActivityLikesSent      Activity = "likes_sent"
	ActivityMatchesCreated Activity = "matches_created"
	ActivityProfileUpdates Activity = "profile_updates"
)

// Valid reports whether a is one of the tracked activity types.
func (a Activity) Valid() bool {
	switch a {
	case ActivityProfileViews, ActivityMessagesSent, ActivityLikesSent,
		ActivityMatchesCreated, ActivityProfileUpdates:
		return true
	}
	return false
}

// All lists the tracked activity types in a stable order, for usage summaries.
func All() []Activity {
	return []Activity{
		ActivityProfileViews,
		ActivityMessagesSent,
		ActivityLikesSent,
		ActivityMatchesCreated,
		ActivityProfileUpdates,
	}
}
