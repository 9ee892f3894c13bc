package admission

import (
	"github.com/deskiziarecords/OpenGate/pkg/gate"
)

// Deny reasons. Stable strings; they end up in receipts and metrics.
const (
	ReasonAdmitted           = "admitted"
	ReasonMalformed          = "malformed_certificate"
	ReasonCoreRejected       = "core_rejected"
	ReasonHardMaxExceeded    = "budget_exceeds_certificate_hard_max"
	ReasonPatchHashMismatch  = "patch_hash_mismatch"
	ReasonSignatureInvalid   = "signature_invalid"
	ReasonChainUnverified    = "chain_unverified"
	ReasonRuleDenied         = "rule_denied"
	ReasonLedgerUnavailable  = "ledger_unavailable"
	ReasonReceiptUnavailable = "receipt_unavailable"
)

// ResultMalformed is reported instead of a gate.Result name when the
// certificate could not be decoded. Its code is that of gate.InvalidMagic.
const ResultMalformed = "Malformed"

// Request is one certificate and the patch it covers. The certificate may be
// in either wire layout.
type Request struct {
	Certificate []byte
	Patch       []byte
}

// Decision is the outcome of the trust pipeline.
type Decision struct {
	Admitted          bool   `json:"admitted"`
	Result            string `json:"result"`
	Code              int    `json:"code"`
	Reason            string `json:"reason"`
	Detail            string `json:"detail,omitempty"`
	Cost              uint64 `json:"cost"`
	Budget            uint32 `json:"budget"`
	HardMax           uint32 `json:"hard_max"`
	Epsilon           uint32 `json:"epsilon"`
	PatchSize         int    `json:"patch_size"`
	Layout            string `json:"layout,omitempty"`
	CertificateDigest string `json:"certificate_digest,omitempty"`
	ReceiptID         string `json:"receipt_id,omitempty"`
}

func (d *Decision) deny(reason string, err error) *Decision {
	d.Admitted = false
	d.Reason = reason
	if err != nil {
		d.Detail = err.Error()
	}
	return d
}

func (d *Decision) setResult(r gate.Result) {
	d.Result = r.String()
	d.Code = r.Code()
}
