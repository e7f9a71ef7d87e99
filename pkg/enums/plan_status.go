package enums

// PlanStatus maps to the plan_status enum in Postgres.
type PlanStatus string

const (
	PlanStatusActive   PlanStatus = "active"
	PlanStatusRetired  PlanStatus = "retired"
	PlanStatusDisabled PlanStatus = "disabled"
)

// IsValid reports whether the value is known.
func (s PlanStatus) IsValid() bool {
	switch s {
	case PlanStatusActive, PlanStatusRetired, PlanStatusDisabled:
		return true
	default:
		return false
	}
}
