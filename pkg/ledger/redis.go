package ledger

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/deskiziarecords/OpenGate/pkg/gate"
)

// RedisLedger shares admitted certificates between gate instances. Values are
// the 512-byte packed records.
type RedisLedger struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisLedger connects to a single Redis node.
func NewRedisLedger(addr, password string, db int) *RedisLedger {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisLedgerFromClient(rdb)
}

// NewRedisLedgerFromClient wraps an existing client.
func NewRedisLedgerFromClient(client redis.UniversalClient) *RedisLedger {
	return &RedisLedger{client: client, prefix: "opengate:cert:"}
}

func (l *RedisLedger) key(digest [32]byte) string {
	return l.prefix + hex.EncodeToString(digest[:])
}

func (l *RedisLedger) Record(ctx context.Context, digest [32]byte, c *gate.Certificate) error {
	if c == nil {
		return errors.New("ledger: nil certificate")
	}
	packed := c.MarshalPacked()
	// SETNX keeps the first record for a digest.
	if err := l.client.SetNX(ctx, l.key(digest), packed[:], 0).Err(); err != nil {
		return fmt.Errorf("redis ledger record: %w", err)
	}
	return nil
}

func (l *RedisLedger) Has(ctx context.Context, digest [32]byte) (bool, error) {
	n, err := l.client.Exists(ctx, l.key(digest)).Result()
	if err != nil {
		return false, fmt.Errorf("redis ledger lookup: %w", err)
	}
	return n > 0, nil
}

func (l *RedisLedger) Get(ctx context.Context, digest [32]byte) (*gate.Certificate, error) {
	raw, err := l.client.Get(ctx, l.key(digest)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis ledger get: %w", err)
	}
	c, err := gate.DecodePacked(raw)
	if err != nil {
		return nil, fmt.Errorf("redis ledger decode: %w", err)
	}
	return &c, nil
}

// Close releases the client.
func (l *RedisLedger) Close() error {
	return l.client.Close()
}
