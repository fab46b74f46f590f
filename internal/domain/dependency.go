package domain

import (
	"github.com/google/uuid"
)

type RuleType string

const (
	RuleRequiresPrerequisite RuleType = "REQUIRES_PREREQUISITE"
	RuleRequiresMinDays      RuleType = "REQUIRES_MIN_DAYS"
	RuleExcludesSameDay      RuleType = "EXCLUDES_SAME_DAY"
	RuleBundlesWith          RuleType = "BUNDLES_WITH"
)

func (r RuleType) Valid() bool {
	switch r {
	case RuleRequiresPrerequisite, RuleRequiresMinDays, RuleExcludesSameDay, RuleBundlesWith:
		return true
	}
	return false
}

// ServiceDependency is a directed edge: booking ServiceID is governed by
// DependentServiceID according to RuleType.
type ServiceDependency struct {
	ID                 uuid.UUID `json:"id"`
	ServiceID          uuid.UUID `json:"service_id"`
	DependentServiceID uuid.UUID `json:"dependent_service_id"`
	RuleType           RuleType  `json:"rule_type"`
	MinDaysApart       *int      `json:"min_days_apart,omitempty"`
	Note               string    `json:"note,omitempty"`
}

// Mirror returns the reverse edge used for symmetric exclusion lookups.
func (d ServiceDependency) Mirror() ServiceDependency {
	return ServiceDependency{
		ServiceID:          d.DependentServiceID,
		DependentServiceID: d.ServiceID,
		RuleType:           d.RuleType,
		MinDaysApart:       d.MinDaysApart,
		Note:               d.Note,
	}
}

// Validate enforces the edge invariants: known rule type, no self edge,
// and minDaysApart > 0 present exactly on REQUIRES_MIN_DAYS.
func (d ServiceDependency) Validate() error {
	if d.ServiceID == uuid.Nil || d.DependentServiceID == uuid.Nil {
		return InvalidInput("dependency_service_required", "service_id and dependent_service_id are required")
	}
	if d.ServiceID == d.DependentServiceID {
		return InvalidInput("dependency_self_edge", "a service cannot depend on itself")
	}
	if !d.RuleType.Valid() {
		return InvalidInput("dependency_rule_type", "unknown rule type %q", d.RuleType)
	}
	if d.RuleType == RuleRequiresMinDays {
		if d.MinDaysApart == nil || *d.MinDaysApart <= 0 {
			return InvalidInput("dependency_min_days", "REQUIRES_MIN_DAYS needs min_days_apart > 0")
		}
	} else if d.MinDaysApart != nil {
		return InvalidInput("dependency_min_days", "min_days_apart is only valid for REQUIRES_MIN_DAYS")
	}
	return nil
}
