package gate

// Budget limits shared by every component that consumes OGT1 certificates.
// All values are in picojoule-equivalent Λ units, the same unit as the table.
const (
	BudgetDefault uint32 = 300000  // default budget written by issuers
	BudgetHardMax uint32 = 1000000 // absolute ceiling no certificate may exceed
	EpsilonMax    uint32 = 50000   // side-channel tolerance ceiling
)

// MagicTag identifies the OGT1 certificate format.
const MagicTag = "OGT1"

// Magic returns MagicTag as the four bytes written at offset 0.
func Magic() [4]byte {
	return [4]byte{MagicTag[0], MagicTag[1], MagicTag[2], MagicTag[3]}
}
