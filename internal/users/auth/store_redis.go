// Copyright (c) 2026 Stokria. All rights reserved.

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// refreshKeyPrefix namespaces refresh grants in Redis. The suffix is always
// the SHA-256 hex of the raw token, never the token itself.
const refreshKeyPrefix = "auth:refresh_token:"

// RedisRefreshTokenStore implements RefreshTokenStore using Redis.
//
// # Atomicity
//
// Consume is built on GETDEL, a single Redis command: the grant is returned
// and destroyed in one round trip, so a replayed token can never win twice no
// matter how many callers race.
type RedisRefreshTokenStore struct {
	client *redis.Client
}

// NewRefreshTokenStore creates a new Redis-backed RefreshTokenStore.
func NewRefreshTokenStore(client *redis.Client) *RedisRefreshTokenStore {
	return &RedisRefreshTokenStore{client: client}
}

/*
Save stores a refresh grant under a token hash with a TTL.

Description: Redis expiry doubles as the refresh token's lifetime; no sweeper
job is needed.

Parameters:
  - context: context.Context
  - tokenHash: string
  - grant: RefreshGrant
  - ttl: time.Duration

Returns:
  - error: Marshal or execution errors
*/
func (store *RedisRefreshTokenStore) Save(context context.Context, tokenHash string, grant RefreshGrant, ttl time.Duration) error {

	// Serialize the grant payload
	payload, err := json.Marshal(grant)
	if err != nil {
		return fmt.Errorf("redis_refresh_store_marshal_failed: %w", err)
	}

	// Set the grant with TTL
	key := refreshKeyPrefix + tokenHash
	if err := store.client.Set(context, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis_refresh_store_save_failed: %w", err)
	}

	// Return nil on success
	return nil
}

/*
Consume atomically retrieves and deletes the grant for a token hash.

Description: Returns ErrRefreshNotFound for absent, expired, or already
consumed tokens; callers cannot distinguish these cases.

Parameters:
  - context: context.Context
  - tokenHash: string

Returns:
  - *RefreshGrant: The consumed grant
  - error: ErrRefreshNotFound or connectivity errors
*/
func (store *RedisRefreshTokenStore) Consume(context context.Context, tokenHash string) (*RefreshGrant, error) {

	// GETDEL returns the value and removes the key in one atomic command
	key := refreshKeyPrefix + tokenHash
	payload, err := store.client.GetDel(context, key).Result()

	// Handle errors
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrRefreshNotFound
		}
		return nil, fmt.Errorf("redis_refresh_store_consume_failed: %w", err)
	}

	// Deserialize the grant payload
	grant := &RefreshGrant{}
	if err := json.Unmarshal([]byte(payload), grant); err != nil {
		return nil, fmt.Errorf("redis_refresh_store_unmarshal_failed: %w", err)
	}

	// Return the grant
	return grant, nil
}

/*
Revoke removes the grant for a token hash.

Description: Deleting an absent key is a no-op, which keeps logout idempotent.

Parameters:
  - context: context.Context
  - tokenHash: string

Returns:
  - error: Deletion failures
*/
func (store *RedisRefreshTokenStore) Revoke(context context.Context, tokenHash string) error {

	// Delete the grant from Redis
	key := refreshKeyPrefix + tokenHash
	if err := store.client.Del(context, key).Err(); err != nil {
		return fmt.Errorf("redis_refresh_store_revoke_failed: %w", err)
	}

	// Return nil on success
	return nil
}
