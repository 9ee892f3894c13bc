package gate

// Validate checks a certificate and its patch against the budget limits.
//
// Checks run in a fixed order and the first failure wins:
//
//  1. magic must be "OGT1"                    (InvalidMagic)
//  2. Budget must not exceed BudgetHardMax     (BudgetExceedsHardMax)
//  3. Epsilon must not exceed EpsilonMax       (EpsilonExceedsMax)
//  4. ComputeCost(patch) must not exceed Budget (ComputedCostExceedsBudget)
//
// A cost equal to the budget passes. The certificate's own HardMax field is not
// consulted. A nil certificate is reported as InvalidMagic.
//
// Validate does not authenticate anything; see the package documentation.
func Validate(c *Certificate, patch []byte) Result {
	if c == nil || string(c.Magic[:]) != MagicTag {
		return InvalidMagic
	}
	if c.Budget > BudgetHardMax {
		return BudgetExceedsHardMax
	}
	if c.Epsilon > EpsilonMax {
		return EpsilonExceedsMax
	}
	if ComputeCost(patch) > uint64(c.Budget) {
		return ComputedCostExceedsBudget
	}
	return Valid
}

// Allowed is the host binding of Validate: true for Valid, false for any
// failure. The reason code is discarded.
func Allowed(c *Certificate, patch []byte) bool {
	return Validate(c, patch) == Valid
}
