// Package api serves the gate over HTTP.
//
//	GET  /healthz
//	GET  /v1/table
//	POST /v1/cost               raw patch body
//	POST /v1/validate           {"certificate": b64, "patch": b64}
//	POST /v1/admit              same body, full pipeline      (bearer)
//	GET  /v1/receipts?limit=n                                 (bearer)
//	GET  /v1/receipts/{id}                                    (bearer)
//	GET  /v1/certificates/{digest}                            (bearer)
//	GET  /v1/slo
//
// Errors are RFC 7807 problem documents.
package api

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/deskiziarecords/OpenGate/pkg/admission"
	"github.com/deskiziarecords/OpenGate/pkg/config"
	"github.com/deskiziarecords/OpenGate/pkg/gate"
	"github.com/deskiziarecords/OpenGate/pkg/issuance"
	"github.com/deskiziarecords/OpenGate/pkg/ledger"
	"github.com/deskiziarecords/OpenGate/pkg/observability"
	"github.com/deskiziarecords/OpenGate/pkg/receipts"
)

// DefaultMaxBodyBytes bounds request bodies.
const DefaultMaxBodyBytes int64 = 16 << 20

const defaultListLimit = 50

// Options configures the server.
type Options struct {
	Validator    *TokenValidator // nil disables bearer auth
	Limiter      *RateLimiter    // nil disables rate limiting
	MaxBodyBytes int64
}

// Server is the HTTP surface of a gate.
type Server struct {
	gate *admission.Gate
	opts Options
	mux  *http.ServeMux
}

// NewServer builds the handler for g.
func NewServer(g *admission.Gate, opts Options) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	s := &Server{gate: g, opts: opts, mux: http.NewServeMux()}

	authed := func(h http.HandlerFunc) http.Handler { return RequireBearer(opts.Validator, h) }

	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /v1/table", s.handleTable)
	s.mux.HandleFunc("POST /v1/cost", s.handleCost)
	s.mux.HandleFunc("POST /v1/validate", s.handleValidate)
	s.mux.Handle("POST /v1/admit", authed(s.handleAdmit))
	s.mux.Handle("GET /v1/receipts", authed(s.handleListReceipts))
	s.mux.Handle("GET /v1/receipts/{id}", authed(s.handleGetReceipt))
	s.mux.Handle("GET /v1/certificates/{digest}", authed(s.handleGetCertificate))
	s.mux.HandleFunc("GET /v1/slo", s.handleSLO)
	s.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		WriteProblem(w, r, http.StatusNotFound, "no such endpoint")
	})
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var h http.Handler = s.mux
	if s.opts.Limiter != nil {
		h = s.opts.Limiter.Middleware(h)
	}
	RequestIDMiddleware(h).ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"profile": s.gate.Profile().Name,
		"version": config.Version,
	})
}

type tableResponse struct {
	Table         [256]uint32 `json:"table"`
	BudgetDefault uint32      `json:"budget_default"`
	BudgetHardMax uint32      `json:"budget_hard_max"`
	EpsilonMax    uint32      `json:"epsilon_max"`
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, tableResponse{
		Table:         gate.Table(),
		BudgetDefault: gate.BudgetDefault,
		BudgetHardMax: gate.BudgetHardMax,
		EpsilonMax:    gate.EpsilonMax,
	})
}

// CostResponse is the body of POST /v1/cost.
type CostResponse struct {
	Cost           uint64 `json:"cost"`
	Bytes          int    `json:"bytes"`
	ExceedsHardMax bool   `json:"exceeds_hard_max"`
}

func (s *Server) handleCost(w http.ResponseWriter, r *http.Request) {
	patch, ok := s.readBody(w, r)
	if !ok {
		return
	}
	cost := gate.ComputeCost(patch)
	writeJSON(w, http.StatusOK, CostResponse{
		Cost:           cost,
		Bytes:          len(patch),
		ExceedsHardMax: cost > uint64(gate.BudgetHardMax),
	})
}

// CheckRequest is the body of POST /v1/validate and POST /v1/admit. Byte
// fields are base64 in JSON.
type CheckRequest struct {
	Certificate []byte `json:"certificate"`
	Patch       []byte `json:"patch"`
}

func (s *Server) decodeCheck(w http.ResponseWriter, r *http.Request) (admission.Request, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	var req CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteProblem(w, r, http.StatusRequestEntityTooLarge, "request body too large")
			return admission.Request{}, false
		}
		WriteProblem(w, r, http.StatusBadRequest, "invalid request body")
		return admission.Request{}, false
	}
	if len(req.Certificate) == 0 {
		WriteProblem(w, r, http.StatusBadRequest, "certificate is required")
		return admission.Request{}, false
	}
	return admission.Request{Certificate: req.Certificate, Patch: req.Patch}, true
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeCheck(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.gate.Validate(req))
}

func (s *Server) handleAdmit(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeCheck(w, r)
	if !ok {
		return
	}
	d, err := s.gate.Admit(r.Context(), req)
	if err != nil {
		WriteInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			WriteProblem(w, r, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}
	list, err := s.gate.Receipts().List(r.Context(), limit)
	if err != nil {
		WriteInternal(w, r, err)
		return
	}
	if list == nil {
		list = []*receipts.Receipt{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"receipts": list})
}

func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	rec, err := s.gate.Receipts().Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, receipts.ErrNotFound) {
		WriteProblem(w, r, http.StatusNotFound, "receipt not found")
		return
	}
	if err != nil {
		WriteInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// CertificateResponse describes an admitted certificate.
type CertificateResponse struct {
	Digest     string `json:"digest"`
	Budget     uint32 `json:"budget"`
	HardMax    uint32 `json:"hard_max"`
	Epsilon    uint32 `json:"epsilon"`
	ParentHash string `json:"parent_hash"`
	PatchHash  string `json:"patch_hash"`
	Signed     bool   `json:"signed"`
}

func (s *Server) handleGetCertificate(w http.ResponseWriter, r *http.Request) {
	digest, err := issuance.ParseHash(r.PathValue("digest"))
	if err != nil || digest == ([32]byte{}) {
		WriteProblem(w, r, http.StatusBadRequest, "digest must be 64 hex characters")
		return
	}
	c, err := s.gate.Ledger().Get(r.Context(), digest)
	if errors.Is(err, ledger.ErrNotFound) {
		WriteProblem(w, r, http.StatusNotFound, "certificate not admitted")
		return
	}
	if err != nil {
		WriteInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CertificateResponse{
		Digest:     hex.EncodeToString(digest[:]),
		Budget:     c.Budget,
		HardMax:    c.HardMax,
		Epsilon:    c.Epsilon,
		ParentHash: hex.EncodeToString(c.ParentHash[:]),
		PatchHash:  hex.EncodeToString(c.PatchHash[:]),
		Signed:     c.Signature != [64]byte{},
	})
}

func (s *Server) handleSLO(w http.ResponseWriter, r *http.Request) {
	t := s.gate.SLO()
	statuses := []*observability.SLOStatus{}
	if t != nil {
		for _, op := range t.Operations() {
			st, err := t.Status(op)
			if err != nil {
				WriteInternal(w, r, err)
				return
			}
			statuses = append(statuses, st)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"slo": statuses})
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	buf, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteProblem(w, r, http.StatusRequestEntityTooLarge, "request body too large")
			return nil, false
		}
		WriteProblem(w, r, http.StatusBadRequest, "could not read request body")
		return nil, false
	}
	return buf, true
}
