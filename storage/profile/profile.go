// Package profile holds the session.ProfileCache backends.
package profile

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/session"
)

// key never stores the bearer token itself.
func key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Open returns the ProfileCache selected by conf.ProfileStore.
// The returned close func releases the backend's connections.
func Open(conf core.SessionConfig) (session.ProfileCache, func() error, error) {
	noop := func() error { return nil }
	switch conf.ProfileStore {
	case "", "memory":
		return NewMemory(conf.ProfileTTL), noop, nil
	case "redis":
		cache, err := OpenRedis(conf.RedisURL, conf.ProfileTTL)
		if err != nil {
			return nil, noop, err
		}
		return cache, cache.Close, nil
	case "postgres":
		cache, err := OpenPostgres(conf.DatabaseURL, conf.ProfileTTL)
		if err != nil {
			return nil, noop, err
		}
		return cache, cache.Close, nil
	}
	return nil, noop, errors.Errorf("unknown profile store %q", conf.ProfileStore)
}

func expiry(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}
