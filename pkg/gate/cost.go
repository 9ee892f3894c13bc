package gate

// ComputeCost returns the Λ-cost of data.
//
// Bytes are summed in order. Once the running total exceeds BudgetHardMax the
// scan stops and the running total is returned: no certificate can grant that
// much, so the remainder of the buffer cannot change the verdict. The returned
// value is therefore exact up to BudgetHardMax and only guaranteed to be
// greater than BudgetHardMax beyond it.
//
// The accumulator is 64 bits wide. Because of the early exit it never holds
// more than BudgetHardMax+MaxByteCost, so it cannot wrap.
func ComputeCost(data []byte) uint64 {
	var total uint64
	for _, b := range data {
		total += uint64(lambdaTable[b])
		if total > uint64(BudgetHardMax) {
			return total
		}
	}
	return total
}

// TotalCost returns the exact Λ-cost of data with no early exit. It is for
// measurement; verdicts use ComputeCost.
func TotalCost(data []byte) uint64 {
	var total uint64
	for _, b := range data {
		total += uint64(lambdaTable[b])
	}
	return total
}
