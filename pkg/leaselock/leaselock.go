// Package leaselock provides a PostgreSQL-backed expiring lease used to
// guarantee that at most one pipeline run writes to a project's graph at
// a time. A holder renews its lease in the background; if renewal fails
// the lease context is cancelled so the run stops writing.
package leaselock

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

var (
	// ErrBusy means another run currently holds the lease.
	ErrBusy = errors.New("run lease busy")
	// ErrLost means the lease expired or was taken over mid-run.
	ErrLost = errors.New("run lease lost")
)

type dbConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Client acquires run leases against a database.
type Client struct {
	db dbConn
}

// Options controls lease lifetime and acquisition behavior.
type Options struct {
	TTL        time.Duration
	RenewEvery time.Duration

	// Wait polls for the lease instead of failing with ErrBusy.
	Wait         bool
	WaitInterval time.Duration
	WaitJitter   time.Duration
}

// Lease is a held run lease. Context is cancelled when the lease is lost
// or released; all writes for the run should descend from it.
type Lease struct {
	Name   string
	Holder string

	Context context.Context

	client *Client
	cancel context.CancelCauseFunc

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New creates a lease client over a connection pool.
func New(pool *pgxpool.Pool) *Client {
	return &Client{db: pool}
}

// WithLease runs fn while holding the named lease, releasing it afterwards.
func (c *Client) WithLease(ctx context.Context, name string, opts Options, fn func(ctx context.Context) error) error {
	lease, err := c.Acquire(ctx, name, opts)
	if err != nil {
		return err
	}
	defer func() {
		_ = lease.Release(context.Background())
	}()
	return fn(lease.Context)
}

// Acquire takes the named lease, generating a unique holder token. An
// expired lease held by a crashed run is taken over immediately.
func (c *Client) Acquire(ctx context.Context, name string, opts Options) (*Lease, error) {
	if name == "" {
		return nil, errors.New("lease name is empty")
	}

	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	ttlMs := opts.TTL.Milliseconds()
	if opts.RenewEvery <= 0 || opts.RenewEvery >= opts.TTL {
		opts.RenewEvery = max(opts.TTL/2, time.Second)
	}
	if opts.WaitInterval <= 0 {
		opts.WaitInterval = 250 * time.Millisecond
	}
	if opts.WaitJitter < 0 {
		opts.WaitJitter = 0
	}

	holder, err := gonanoid.New()
	if err != nil {
		return nil, err
	}

	acquireOnce := func(ctx context.Context) (bool, error) {
		var returnedName string
		err := c.db.QueryRow(ctx, tryAcquireSQL, name, holder, ttlMs).Scan(&returnedName)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return false, nil
			}
			return false, err
		}
		return returnedName != "", nil
	}

	for {
		ok, err := acquireOnce(ctx)
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		if !opts.Wait {
			return nil, ErrBusy
		}
		if err := sleepWithJitter(ctx, opts.WaitInterval, opts.WaitJitter); err != nil {
			return nil, err
		}
	}

	leaseCtx, cancel := context.WithCancelCause(ctx)
	l := &Lease{
		Name:    name,
		Holder:  holder,
		Context: leaseCtx,
		client:  c,
		cancel:  cancel,
		stopCh:  make(chan struct{}),
	}

	go l.renewLoop(opts, ttlMs)

	return l, nil
}

// Release gives the lease back and cancels its context.
func (l *Lease) Release(ctx context.Context) error {
	l.stopOnce.Do(func() {
		close(l.stopCh)
		l.cancel(context.Canceled)
	})

	_, err := l.client.db.Exec(ctx, releaseSQL, l.Name, l.Holder)
	return err
}

func (l *Lease) renewLoop(opts Options, ttlMs int64) {
	t := time.NewTicker(opts.RenewEvery)
	defer t.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-l.Context.Done():
			return
		case <-t.C:
			if err := l.renewOnce(ttlMs); err != nil {
				l.cancel(err)
				return
			}
		}
	}
}

func (l *Lease) renewOnce(ttlMs int64) error {
	for attempt := range 3 {
		renewCtx, cancel := context.WithTimeout(l.Context, 15*time.Second)
		var returnedName string
		err := l.client.db.QueryRow(renewCtx, renewSQL, l.Name, l.Holder, ttlMs).Scan(&returnedName)
		cancel()
		if err == nil {
			return nil
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrLost
		}
		if attempt == 2 {
			return err
		}
		if err := sleepWithJitter(l.Context, 200*time.Millisecond, 0); err != nil {
			return err
		}
	}
	return ErrLost
}

func sleepWithJitter(ctx context.Context, base, jitter time.Duration) error {
	d := base
	if jitter > 0 {
		d += time.Duration(rand.Int64N(int64(jitter) + 1))
	}
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

const tryAcquireSQL = `
INSERT INTO run_locks (name, holder, expires_at)
VALUES ($1, $2, now() + ($3::bigint * interval '1 millisecond'))
ON CONFLICT (name) DO UPDATE
SET holder     = EXCLUDED.holder,
    expires_at = EXCLUDED.expires_at
WHERE run_locks.expires_at < now()
   OR run_locks.holder = EXCLUDED.holder
RETURNING name;
`

const renewSQL = `
UPDATE run_locks
SET expires_at = now() + ($3::bigint * interval '1 millisecond')
WHERE name = $1 AND holder = $2
RETURNING name;
`

const releaseSQL = `
DELETE FROM run_locks
WHERE name = $1 AND holder = $2;
`
