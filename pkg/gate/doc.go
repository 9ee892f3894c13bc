// Package gate decides whether a model patch fits inside the Λ-budget granted by
// an OGT1 certificate.
//
// The package is the real-time core of OPEN GATE. It holds the Λ-table (the
// per-byte cost in picojoules), the cost accumulator and the certificate
// validator. Every function here is pure: no allocation on the validation path,
// no logging, no retained state. The table is a package-level array that is
// never written after initialisation, so any number of goroutines may call into
// the package concurrently.
//
// # Authenticity
//
// A Valid result means only that the patch conforms to the certificate's
// budget. The validator does not check the Ed25519 signature, the SHA-256
// patch hash or the parent-hash chain. Those checks live in package attest and
// are assembled with this package by package admission. Callers that use
// Validate directly must perform them separately before applying a patch.
package gate
