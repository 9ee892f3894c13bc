package gate

import (
	"errors"
	"fmt"
)

// Result is the validator's verdict. The numeric values are the firmware
// return codes and are part of the wire contract.
type Result int8

const (
	Valid                     Result = 0
	InvalidMagic              Result = -1
	BudgetExceedsHardMax      Result = -2
	EpsilonExceedsMax         Result = -3
	ComputedCostExceedsBudget Result = -4
)

// Sentinel errors for the failing verdicts, for callers that thread the verdict
// through error returns.
var (
	ErrInvalidMagic              = errors.New("gate: invalid certificate magic")
	ErrBudgetExceedsHardMax      = errors.New("gate: certificate budget exceeds hard maximum")
	ErrEpsilonExceedsMax         = errors.New("gate: certificate epsilon exceeds maximum")
	ErrComputedCostExceedsBudget = errors.New("gate: patch cost exceeds certificate budget")
)

// OK reports whether r is Valid.
func (r Result) OK() bool { return r == Valid }

// Code returns the firmware return code.
func (r Result) Code() int { return int(r) }

// Err returns nil for Valid and the matching sentinel otherwise.
func (r Result) Err() error {
	switch r {
	case Valid:
		return nil
	case InvalidMagic:
		return ErrInvalidMagic
	case BudgetExceedsHardMax:
		return ErrBudgetExceedsHardMax
	case EpsilonExceedsMax:
		return ErrEpsilonExceedsMax
	case ComputedCostExceedsBudget:
		return ErrComputedCostExceedsBudget
	default:
		return fmt.Errorf("gate: unknown result code %d", int(r))
	}
}

func (r Result) String() string {
	switch r {
	case Valid:
		return "Valid"
	case InvalidMagic:
		return "InvalidMagic"
	case BudgetExceedsHardMax:
		return "BudgetExceedsHardMax"
	case EpsilonExceedsMax:
		return "EpsilonExceedsMax"
	case ComputedCostExceedsBudget:
		return "ComputedCostExceedsBudget"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// ResultFromCode maps a firmware return code back to a Result.
func ResultFromCode(code int) (Result, bool) {
	if code > 0 || code < int(ComputedCostExceedsBudget) {
		return 0, false
	}
	return Result(code), true
}
