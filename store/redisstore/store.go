package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/accountcore/account"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const maxRetries = 8

// ErrRedisUnavailable wraps Redis failures and exhausted optimistic retries.
var ErrRedisUnavailable = errors.New("account redis unavailable")

// Options configures a Store.
type Options struct {
	// Prefix namespaces every key. Defaults to "acc".
	Prefix string
	// Now is used to compute revocation TTLs. Defaults to time.Now.
	Now func() time.Time
}

// Store keeps accounts and revoked tokens in Redis.
//
// Layout:
//
//	{prefix}:a:{id}       versioned binary account record
//	{prefix}:e:{email}    id by lower-cased email
//	{prefix}:d:{dni}      id by dni
//	{prefix}:ids          set of all ids (SCARD backs Count)
//	{prefix}:r:{digest}   revoked token marker, TTL = token expiry
type Store struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

var _ account.Store = (*Store)(nil)

// New returns a Store on redisClient.
func New(redisClient redis.UniversalClient, opts Options) *Store {
	if opts.Prefix == "" {
		opts.Prefix = "acc"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		redis:  redisClient,
		prefix: opts.Prefix,
		now:    opts.Now,
	}
}

func (s *Store) accountKey(id string) string  { return s.prefix + ":a:" + id }
func (s *Store) emailKey(email string) string { return s.prefix + ":e:" + normalizeEmail(email) }
func (s *Store) dniKey(dni int64) string      { return s.prefix + ":d:" + strconv.FormatInt(dni, 10) }
func (s *Store) idsKey() string               { return s.prefix + ":ids" }
func (s *Store) revokedKey(token string) string {
	return s.prefix + ":r:" + account.TokenDigest(token)
}

// FindByEmail resolves the email index and loads the record.
func (s *Store) FindByEmail(ctx context.Context, email string) (account.Account, error) {
	id, err := s.redis.Get(ctx, s.emailKey(email)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return account.Account{}, account.ErrNotFound
		}
		return account.Account{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return s.FindByID(ctx, id)
}

// FindByID loads the record for id.
func (s *Store) FindByID(ctx context.Context, id string) (account.Account, error) {
	if id == "" {
		return account.Account{}, account.ErrNotFound
	}
	data, err := s.redis.Get(ctx, s.accountKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return account.Account{}, account.ErrNotFound
		}
		return account.Account{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	acc, err := decodeAccount(data)
	if err != nil {
		return account.Account{}, err
	}
	return *acc, nil
}

// Create inserts acc. An empty ID is replaced with a random UUID. Email, dni
// and id collisions return account.ErrConflict.
func (s *Store) Create(ctx context.Context, acc account.Account) (account.Account, error) {
	if acc.ID == "" {
		acc.ID = uuid.NewString()
	}
	acc.Email = normalizeEmail(acc.Email)
	now := s.now().UTC()
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = now
	}
	acc.UpdatedAt = now

	encoded, err := encodeAccount(&acc)
	if err != nil {
		return account.Account{}, err
	}

	keys := []string{s.accountKey(acc.ID), s.emailKey(acc.Email)}
	if acc.DNI != 0 {
		keys = append(keys, s.dniKey(acc.DNI))
	}

	err = s.retry(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, keys...).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return account.ErrConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.accountKey(acc.ID), encoded, 0)
			pipe.Set(ctx, s.emailKey(acc.Email), acc.ID, 0)
			if acc.DNI != 0 {
				pipe.Set(ctx, s.dniKey(acc.DNI), acc.ID, 0)
			}
			pipe.SAdd(ctx, s.idsKey(), acc.ID)
			return nil
		})
		return err
	}, keys...)
	if err != nil {
		return account.Account{}, err
	}
	return acc, nil
}

// Update applies mutate to the record under WATCH and commits the new
// record, index moves and any returned revocations in one MULTI/EXEC.
func (s *Store) Update(ctx context.Context, id string, mutate account.Mutation) (account.Account, error) {
	if id == "" {
		return account.Account{}, account.ErrNotFound
	}
	key := s.accountKey(id)
	var result account.Account

	err := s.retry(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return account.ErrNotFound
			}
			return err
		}
		current, err := decodeAccount(data)
		if err != nil {
			return err
		}

		next := *current
		revocations, err := mutate(&next)
		if err != nil {
			return mutationError{err: err}
		}
		next.ID = current.ID
		next.Email = normalizeEmail(next.Email)
		next.CreatedAt = current.CreatedAt
		next.UpdatedAt = s.now().UTC()

		emailMoved := next.Email != current.Email
		dniMoved := next.DNI != current.DNI
		var claim []string
		if emailMoved {
			claim = append(claim, s.emailKey(next.Email))
		}
		if dniMoved && next.DNI != 0 {
			claim = append(claim, s.dniKey(next.DNI))
		}
		if len(claim) > 0 {
			if err := tx.Watch(ctx, claim...).Err(); err != nil {
				return err
			}
			n, err := tx.Exists(ctx, claim...).Result()
			if err != nil {
				return err
			}
			if n > 0 {
				return account.ErrConflict
			}
		}

		encoded, err := encodeAccount(&next)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, 0)
			if emailMoved {
				pipe.Del(ctx, s.emailKey(current.Email))
				pipe.Set(ctx, s.emailKey(next.Email), next.ID, 0)
			}
			if dniMoved {
				if current.DNI != 0 {
					pipe.Del(ctx, s.dniKey(current.DNI))
				}
				if next.DNI != 0 {
					pipe.Set(ctx, s.dniKey(next.DNI), next.ID, 0)
				}
			}
			s.queueRevocations(ctx, pipe, revocations)
			return nil
		})
		if err != nil {
			return err
		}

		result = next
		return nil
	}, key)
	if err != nil {
		return account.Account{}, err
	}
	return result, nil
}

// Count returns the number of stored accounts.
func (s *Store) Count(ctx context.Context) (int64, error) {
	n, err := s.redis.SCard(ctx, s.idsKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n, nil
}

// Destroy deletes the record and its indices and writes revocations in the
// same transaction.
func (s *Store) Destroy(ctx context.Context, id string, revocations ...account.Revocation) error {
	if id == "" {
		return account.ErrNotFound
	}
	key := s.accountKey(id)

	return s.retry(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return account.ErrNotFound
			}
			return err
		}
		current, err := decodeAccount(data)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key, s.emailKey(current.Email))
			if current.DNI != 0 {
				pipe.Del(ctx, s.dniKey(current.DNI))
			}
			pipe.SRem(ctx, s.idsKey(), current.ID)
			s.queueRevocations(ctx, pipe, revocations)
			return nil
		})
		return err
	}, key)
}

// Revoke marks tokens revoked until their own expiry. Revoking an already
// revoked token refreshes the marker and is not an error.
func (s *Store) Revoke(ctx context.Context, revocations ...account.Revocation) error {
	if len(revocations) == 0 {
		return nil
	}
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		s.queueRevocations(ctx, pipe, revocations)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// IsRevoked reports whether token has a live revocation marker.
func (s *Store) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.revokedKey(token)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}

func (s *Store) queueRevocations(ctx context.Context, pipe redis.Pipeliner, revocations []account.Revocation) {
	now := s.now()
	for _, r := range revocations {
		if r.Token == "" {
			continue
		}
		ttl := r.ExpiresAt.Sub(now)
		if r.ExpiresAt.IsZero() {
			ttl = 0
		} else if ttl < time.Second {
			ttl = time.Second
		}
		pipe.Set(ctx, s.revokedKey(r.Token), "1", ttl)
	}
}

func (s *Store) retry(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, fn, keys...)
		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			var me mutationError
			switch {
			case errors.As(err, &me):
				return me.err
			case errors.Is(err, account.ErrNotFound), errors.Is(err, account.ErrConflict), errors.Is(err, errCorruptRecord):
				return err
			default:
				return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
			}
		}
		return nil
	}
	return fmt.Errorf("%w: optimistic transaction retries exhausted", ErrRedisUnavailable)
}

// mutationError carries a Mutation's own error through retry unchanged.
type mutationError struct{ err error }

func (e mutationError) Error() string { return e.err.Error() }

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
