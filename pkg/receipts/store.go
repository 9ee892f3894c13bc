package receipts

import (
	"context"
	"fmt"
	"sync"
)

// Store persists receipts in append order.
type Store interface {
	Append(ctx context.Context, r *Receipt) error
	Get(ctx context.Context, id string) (*Receipt, error)
	// List returns up to limit receipts, newest first.
	List(ctx context.Context, limit int) ([]*Receipt, error)
	// Last returns the newest receipt, or nil for an empty store.
	Last(ctx context.Context) (*Receipt, error)
}

// MemoryStore keeps receipts in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	order []*Receipt
	byID  map[string]*Receipt
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*Receipt)}
}

func (s *MemoryStore) Append(_ context.Context, r *Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[r.ID]; ok {
		return fmt.Errorf("receipt %s already stored", r.ID)
	}
	cp := *r
	s.order = append(s.order, &cp)
	s.byID[r.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryStore) List(_ context.Context, limit int) ([]*Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Receipt
	for i := len(s.order) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		cp := *s.order[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryStore) Last(_ context.Context) (*Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.order) == 0 {
		return nil, nil
	}
	cp := *s.order[len(s.order)-1]
	return &cp, nil
}

// Recorder links, signs and appends receipts. Emit calls are serialised so the
// hash chain has no forks.
type Recorder struct {
	mu     sync.Mutex
	store  Store
	signer ByteSigner
}

// NewRecorder creates a recorder. signer may be nil, in which case receipts
// are chained but unsigned.
func NewRecorder(store Store, signer ByteSigner) *Recorder {
	return &Recorder{store: store, signer: signer}
}

// Store returns the underlying store.
func (rc *Recorder) Store() Store {
	return rc.store
}

// Emit sets r.PrevHash, signs r and appends it.
func (rc *Recorder) Emit(ctx context.Context, r *Receipt) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	last, err := rc.store.Last(ctx)
	if err != nil {
		return fmt.Errorf("load chain head: %w", err)
	}
	r.PrevHash = ""
	if last != nil {
		if r.PrevHash, err = Hash(last); err != nil {
			return err
		}
	}
	if rc.signer != nil {
		if err := Sign(r, rc.signer); err != nil {
			return fmt.Errorf("sign receipt: %w", err)
		}
	}
	return rc.store.Append(ctx, r)
}
