package gate

// lambdaTable is the English orthographic entropy cost of each byte value in pJ.
// Extended ASCII (128-255) costs nothing.
var lambdaTable = [256]uint32{
	// control characters 0-31
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	// space and punctuation
	50, 100, 100, 150, 100, 100, 100, 50,
	150, 150, 100, 200, 50, 50, 50, 100,
	// digits 0-9, then : ; < = > ?
	200, 180, 170, 160, 150, 140, 130, 120,
	110, 100, 100, 100, 100, 100, 100, 100,
	// @, A-Z, [ \ ] ^ _
	150, 450, 420, 400, 380, 360, 350, 340,
	330, 320, 310, 300, 290, 280, 270, 260,
	250, 240, 230, 220, 210, 200, 190, 180,
	170, 160, 150, 100, 100, 100, 100, 100,
	// `, a-z, { | } ~ DEL
	150, 400, 380, 360, 340, 320, 300, 280,
	260, 240, 220, 200, 180, 160, 140, 120,
	100, 90, 80, 70, 60, 50, 40, 30,
	20, 10, 100, 100, 100, 100, 0, 0,
}

// Table returns a copy of the Λ-table. Mutating the copy has no effect on cost
// computation.
func Table() [256]uint32 {
	return lambdaTable
}

// CostOf returns the Λ-cost of a single byte.
func CostOf(b byte) uint32 {
	return lambdaTable[b]
}

// MaxByteCost is the largest entry in the table.
const MaxByteCost uint32 = 450
