package models

import "strings"

// Billing plans.
const (
	PlanFree       = "free"
	PlanBasic      = "basic"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"
	PlanAdmin      = "admin"
)

// Plans lists every plan in ascending order.
var Plans = []string{PlanFree, PlanBasic, PlanPro, PlanEnterprise, PlanAdmin}

// NormalizePlan lowercases plan and reports whether it is a known plan.
func NormalizePlan(plan string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(plan))
	for _, p := range Plans {
		if p == normalized {
			return normalized, true
		}
	}
	return normalized, false
}
