package observability

import (
	"go.opentelemetry.io/otel/attribute"
)

// Gate semantic convention attributes.
var (
	AttrResult     = attribute.Key("opengate.result")
	AttrReason     = attribute.Key("opengate.reason")
	AttrProfile    = attribute.Key("opengate.profile")
	AttrBudget     = attribute.Key("opengate.budget")
	AttrEpsilon    = attribute.Key("opengate.epsilon")
	AttrPatchSize  = attribute.Key("opengate.patch.size")
	AttrCertDigest = attribute.Key("opengate.certificate.digest")
	AttrReceiptID  = attribute.Key("opengate.receipt.id")
	AttrHTTPRoute  = attribute.Key("http.route")
	AttrHTTPStatus = attribute.Key("http.status_code")
)

// CertificateAttrs describes a certificate on a span.
func CertificateAttrs(digest string, budget, epsilon uint32, patchSize int) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrCertDigest.String(digest),
		AttrBudget.Int64(int64(budget)),
		AttrEpsilon.Int64(int64(epsilon)),
		AttrPatchSize.Int(patchSize),
	}
}
