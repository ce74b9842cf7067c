package engine

// Scenario classifies one (entity, currency, date) cell from three
// booleans: movements exist on the exact date, a prior baseline
// snapshot exists, and a snapshot already exists for the exact date.
// Each of the 8 combinations maps to exactly one action.
type Scenario int

const (
	// ScenarioComputeFresh (M, P, !E): fresh snapshot = previous
	// cumulative + today's delta.
	ScenarioComputeFresh Scenario = iota
	// ScenarioComputeFirst (M, !P, !E): first-ever snapshot, cumulative
	// fields start at the day's raw delta.
	ScenarioComputeFirst
	// ScenarioRecomputeExisting (M, P, E): recompute as ComputeFresh
	// but keep the existing row's identity.
	ScenarioRecomputeExisting
	// ScenarioExtendExisting (M, !P, E): no earlier baseline; the
	// existing row is the baseline and new movements add directly.
	ScenarioExtendExisting
	// ScenarioCarryForward (!M, P, !E): previous snapshot carried
	// forward unchanged except date and revalued unrealized P&L.
	ScenarioCarryForward
	// ScenarioSkip (!M, !P, !E): nothing to compute.
	ScenarioSkip
	// ScenarioRepairDrift (!M, P, E): validate existing == previous and
	// correct any drifted cumulative field to match the baseline.
	ScenarioRepairDrift
	// ScenarioResetExisting (!M, !P, E): reset the existing row to
	// all-zero defaults (data-integrity cleanup).
	ScenarioResetExisting
)

var scenarioNames = map[Scenario]string{
	ScenarioComputeFresh:      "compute_fresh",
	ScenarioComputeFirst:      "compute_first",
	ScenarioRecomputeExisting: "recompute_existing",
	ScenarioExtendExisting:    "extend_existing",
	ScenarioCarryForward:      "carry_forward",
	ScenarioSkip:              "skip",
	ScenarioRepairDrift:       "repair_drift",
	ScenarioResetExisting:     "reset_existing",
}

func (s Scenario) String() string {
	if name, ok := scenarioNames[s]; ok {
		return name
	}
	return "unknown"
}

// Classify maps the (movements, baseline, existing) triple to its
// scenario. Pure and total: every combination has exactly one answer.
func Classify(hasMovements, hasBaseline, hasExisting bool) Scenario {
	switch {
	case hasMovements && hasBaseline && !hasExisting:
		return ScenarioComputeFresh
	case hasMovements && !hasBaseline && !hasExisting:
		return ScenarioComputeFirst
	case hasMovements && hasBaseline && hasExisting:
		return ScenarioRecomputeExisting
	case hasMovements && !hasBaseline && hasExisting:
		return ScenarioExtendExisting
	case !hasMovements && hasBaseline && !hasExisting:
		return ScenarioCarryForward
	case !hasMovements && hasBaseline && hasExisting:
		return ScenarioRepairDrift
	case !hasMovements && !hasBaseline && hasExisting:
		return ScenarioResetExisting
	default:
		return ScenarioSkip
	}
}

// Action describes what a calculator did with a cell, for metrics.
type Action int

const (
	ActionNone Action = iota
	ActionCreated
	ActionUpdated
	ActionRepaired
	ActionSkipped
)

func (a Action) String() string {
	switch a {
	case ActionCreated:
		return "created"
	case ActionUpdated:
		return "updated"
	case ActionRepaired:
		return "repaired"
	case ActionSkipped:
		return "skipped"
	default:
		return "none"
	}
}
