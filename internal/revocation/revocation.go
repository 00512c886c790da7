// Package revocation keeps a Redis list of bearer tokens that must no longer
// be accepted even though their signature and expiry are still valid.
package revocation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultPrefix = "newsdesk:revoked:"

// Store is safe for concurrent use.
type Store struct {
	client *redis.Client
	prefix string
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client, prefix: DefaultPrefix}
}

// tokens are stored hashed so a Redis dump does not leak usable credentials
func (s *Store) key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return s.prefix + hex.EncodeToString(sum[:])
}

// Revoke blocks token for ttl. ttl should cover the token's remaining
// lifetime; afterwards the token is expired anyway.
func (s *Store) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	return s.client.Set(ctx, s.key(token), "1", ttl).Err()
}

func (s *Store) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(token)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
