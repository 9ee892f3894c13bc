// Package ledger records the certificates a gate has admitted, keyed by their
// digest, so that later certificates can chain to them through ParentHash.
package ledger

import (
	"context"
	"errors"
	"sync"

	"github.com/deskiziarecords/OpenGate/pkg/gate"
)

// ErrNotFound is returned by Get for an unknown digest.
var ErrNotFound = errors.New("ledger: certificate not found")

// Ledger stores admitted certificates.
type Ledger interface {
	// Record stores c under digest. Recording the same digest twice is a no-op.
	Record(ctx context.Context, digest [32]byte, c *gate.Certificate) error
	Has(ctx context.Context, digest [32]byte) (bool, error)
	Get(ctx context.Context, digest [32]byte) (*gate.Certificate, error)
}

// MemoryLedger is an in-process Ledger.
type MemoryLedger struct {
	mu    sync.RWMutex
	certs map[[32]byte]gate.Certificate
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{certs: make(map[[32]byte]gate.Certificate)}
}

func (l *MemoryLedger) Record(_ context.Context, digest [32]byte, c *gate.Certificate) error {
	if c == nil {
		return errors.New("ledger: nil certificate")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.certs[digest]; !ok {
		l.certs[digest] = *c
	}
	return nil
}

func (l *MemoryLedger) Has(_ context.Context, digest [32]byte) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.certs[digest]
	return ok, nil
}

func (l *MemoryLedger) Get(_ context.Context, digest [32]byte) (*gate.Certificate, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	c, ok := l.certs[digest]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

// Len returns the number of recorded certificates.
func (l *MemoryLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.certs)
}
