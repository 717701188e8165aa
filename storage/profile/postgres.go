package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core/session"
	"github.com/trezcool/masomo-portal/core/user"
)

// Postgres is a ProfileCache stored in the portal_profiles table.
type Postgres struct {
	db      *sqlx.DB
	ttl     time.Duration
	nowFunc func() time.Time
}

var _ session.ProfileCache = (*Postgres)(nil)

type profileRow struct {
	Profile   []byte       `db:"profile"`
	ExpiresAt sql.NullTime `db:"expires_at"`
}

// OpenPostgres connects to dsn and ensures the portal_profiles table exists.
func OpenPostgres(dsn string, ttl time.Duration) (*Postgres, error) {
	if dsn == "" {
		return nil, errors.New("postgres profile store needs session.databaseURL")
	}
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "opening postgres")
	}
	return NewPostgres(db, ttl)
}

func NewPostgres(db *sqlx.DB, ttl time.Duration) (*Postgres, error) {
	p := &Postgres{db: db, ttl: ttl, nowFunc: time.Now}
	if err := p.ensureSchema(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Postgres) ensureSchema() error {
	const q = `
CREATE TABLE IF NOT EXISTS portal_profiles (
	token_hash TEXT PRIMARY KEY,
	profile JSONB NOT NULL,
	expires_at TIMESTAMPTZ NULL
)`
	if _, err := p.db.Exec(q); err != nil {
		return errors.Wrap(err, "ensure portal_profiles schema")
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, token string) (user.User, error) {
	var row profileRow
	err := p.db.GetContext(ctx, &row, `SELECT profile, expires_at FROM portal_profiles WHERE token_hash = $1`, key(token))
	if err == sql.ErrNoRows {
		return user.User{}, session.ErrProfileNotFound
	}
	if err != nil {
		return user.User{}, errors.Wrap(err, "select profile")
	}
	if row.ExpiresAt.Valid && p.nowFunc().After(row.ExpiresAt.Time) {
		return user.User{}, session.ErrProfileNotFound
	}
	var usr user.User
	if err := json.Unmarshal(row.Profile, &usr); err != nil {
		return user.User{}, errors.Wrap(err, "decoding cached profile")
	}
	return usr, nil
}

func (p *Postgres) Set(ctx context.Context, token string, usr user.User) error {
	data, err := json.Marshal(usr)
	if err != nil {
		return errors.Wrap(err, "encoding profile")
	}
	var exp sql.NullTime
	if t := expiry(p.nowFunc(), p.ttl); !t.IsZero() {
		exp = sql.NullTime{Time: t, Valid: true}
	}
	const q = `
INSERT INTO portal_profiles (token_hash, profile, expires_at)
VALUES ($1, $2, $3)
ON CONFLICT (token_hash) DO UPDATE SET profile = EXCLUDED.profile, expires_at = EXCLUDED.expires_at`
	if _, err := p.db.ExecContext(ctx, q, key(token), data, exp); err != nil {
		return errors.Wrap(err, "upsert profile")
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, token string) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM portal_profiles WHERE token_hash = $1`, key(token)); err != nil {
		return errors.Wrap(err, "delete profile")
	}
	return nil
}

// Purge removes expired rows.
func (p *Postgres) Purge(ctx context.Context) (int64, error) {
	res, err := p.db.ExecContext(ctx, `DELETE FROM portal_profiles WHERE expires_at IS NOT NULL AND expires_at < $1`, p.nowFunc())
	if err != nil {
		return 0, errors.Wrap(err, "purge profiles")
	}
	return res.RowsAffected()
}

func (p *Postgres) Close() error {
	return p.db.Close()
}
