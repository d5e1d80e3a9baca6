package billing

import (
	"strings"
	"time"
)

func isEntitlingStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case subscriptionStatusActive, subscriptionStatusTrialing:
		return true
	default:
		return false
	}
}

func isDelinquentStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "canceled", "unpaid", "past_due":
		return true
	default:
		return false
	}
}

// expiryFor returns the end of the paid period for a subscription, falling
// back to one billing cycle from eventAt.
func expiryFor(sub *Subscription, eventAt time.Time) time.Time {
	if sub != nil {
		if end, ok := sub.PeriodEnd(); ok && end.After(eventAt) {
			return end
		}
	}
	return eventAt.Add(ProPeriod)
}
