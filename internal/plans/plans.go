// Package plans holds the subscription-tier quota table consulted by the
// scheduler. Quotas are read-only configuration; billing state sync lives
// outside this service.
package plans

import "github.com/citewatch-agent/internal/models"

// Quota caps how much query volume a plan tier may consume
type Quota struct {
	MonthlyQueries int // Total tracked-query volume per billing period
	DailyRuns      int // Queries submitted per scheduling cycle
}

var quotas = map[models.Plan]Quota{
	models.PlanFree:   {MonthlyQueries: 50, DailyRuns: 5},
	models.PlanPro:    {MonthlyQueries: 1000, DailyRuns: 50},
	models.PlanAgency: {MonthlyQueries: 10000, DailyRuns: 500},
}

// QuotaFor returns the quota for a plan. Unknown plans fall back to the free
// tier's limits.
func QuotaFor(plan models.Plan) Quota {
	if q, ok := quotas[plan]; ok {
		return q
	}
	return quotas[models.PlanFree]
}

// PriorityFor maps a plan tier onto an orchestration priority. Paying tiers
// get higher batch concurrency and therefore faster turnaround.
func PriorityFor(plan models.Plan) string {
	switch plan {
	case models.PlanAgency:
		return "high"
	case models.PlanPro:
		return "normal"
	default:
		return "low"
	}
}
