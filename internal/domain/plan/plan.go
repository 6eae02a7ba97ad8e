// Package plan maps subscription plans to rate-limit tiers.
package plan

import "time"

// Tier is a fixed-window request quota.
type Tier struct {
	Limit  int
	Window time.Duration
}

// The authoritative tier table. Unknown plans fall back to the free tier.
var tiers = map[string]Tier{
	"free":       {Limit: 60, Window: time.Minute},
	"pro":        {Limit: 300, Window: time.Minute},
	"enterprise": {Limit: 1000, Window: time.Minute},
}

// TierFor returns the rate-limit tier for a plan name.
func TierFor(plan string) Tier {
	if t, ok := tiers[plan]; ok {
		return t
	}
	return tiers["free"]
}
