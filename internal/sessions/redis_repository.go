package sessions

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRepository keeps each grant in a hash at <prefix><token> that expires
// together with the grant.
type RedisRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisRepository(client *redis.Client, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = "unlock:"
	}
	return &RedisRepository{client: client, prefix: prefix}
}

func (r *RedisRepository) Create(ctx context.Context, g *Grant) error {
	if !g.ExpiresAt.After(time.Now()) {
		return fmt.Errorf("grant for %s already expired", g.SignatureID)
	}
	k := r.prefix + g.Token
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, k,
			"signatureId", g.SignatureID,
			"createdAt", g.CreatedAt.UnixMilli(),
			"expiresAt", g.ExpiresAt.UnixMilli(),
		)
		p.PExpireAt(ctx, k, g.ExpiresAt)
		return nil
	})
	return err
}

// GetByToken returns nil, nil for unknown or expired tokens.
func (r *RedisRepository) GetByToken(ctx context.Context, token string) (*Grant, error) {
	var fields struct {
		SignatureID string `redis:"signatureId"`
		CreatedAt   int64  `redis:"createdAt"`
		ExpiresAt   int64  `redis:"expiresAt"`
	}
	res := r.client.HGetAll(ctx, r.prefix+token)
	if err := res.Err(); err != nil {
		return nil, err
	}
	if len(res.Val()) == 0 {
		return nil, nil
	}
	if err := res.Scan(&fields); err != nil {
		return nil, fmt.Errorf("decode grant: %w", err)
	}
	return &Grant{
		Token:       token,
		SignatureID: fields.SignatureID,
		CreatedAt:   time.UnixMilli(fields.CreatedAt).UTC(),
		ExpiresAt:   time.UnixMilli(fields.ExpiresAt).UTC(),
	}, nil
}

func (r *RedisRepository) DeleteByToken(ctx context.Context, token string) error {
	return r.client.Del(ctx, r.prefix+token).Err()
}
