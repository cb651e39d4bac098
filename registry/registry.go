// Package registry implements the idempotent identity-registration lookup:
// a token is either confirmed as already known or registered as a new user.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Skryldev/identity-registry/db"
	"github.com/Skryldev/identity-registry/models"
	"github.com/Skryldev/identity-registry/repo"
)

// DefaultTimeout bounds a single RegisterOrConfirm call when Options.Timeout
// is zero.
const DefaultTimeout = 5 * time.Second

// Outcome is the result of a successful registration lookup.
type Outcome int

const (
	// OutcomeExisting means a record holding the token already existed.
	OutcomeExisting Outcome = iota + 1
	// OutcomeCreated means this call created the record.
	OutcomeCreated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeExisting:
		return "existing"
	case OutcomeCreated:
		return "created"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

var (
	// ErrInvalidToken is returned for an empty token value.
	ErrInvalidToken = errors.New("registry: empty token")
	// ErrUnknownKind is returned for a kind outside models.Kinds.
	ErrUnknownKind = errors.New("registry: unknown token kind")
	// ErrStorage matches every *StorageError.
	ErrStorage = errors.New("registry: storage failure")
)

// StorageError reports that the store could not complete the operation. The
// driver-level cause is available through errors.Is / errors.As.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("registry: storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Is(target error) bool { return target == ErrStorage }
func (e *StorageError) Unwrap() error        { return e.Err }

// Store is the persistence the registry needs. *repo.Store satisfies it.
type Store interface {
	Users() repo.UserRepository
	WithinTx(ctx context.Context, fn func(repo.UserRepository) error) error
}

// Recorder receives one call per finished registration lookup. outcome is
// "existing", "created" or "error".
type Recorder interface {
	RecordRegistration(kind, outcome string)
}

// Options configures a Registry.
type Options struct {
	// Timeout bounds each call, store round-trips included.
	Timeout time.Duration
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// Recorder is optional.
	Recorder Recorder
}

// Registry is safe for concurrent use.
type Registry struct {
	store    Store
	timeout  time.Duration
	logger   *slog.Logger
	recorder Recorder
}

// New returns a Registry backed by store.
func New(store Store, opts Options) *Registry {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Registry{
		store:    store,
		timeout:  opts.Timeout,
		logger:   opts.Logger,
		recorder: opts.Recorder,
	}
}

// RegisterOrConfirm returns OutcomeExisting when a record already holds value
// for kind, and otherwise creates one and returns OutcomeCreated. Concurrent
// calls with the same unseen value create exactly one record; the losers of
// the race observe OutcomeExisting.
//
// Invalid input is rejected with ErrUnknownKind or ErrInvalidToken before the
// store is touched. Every store failure is returned as a *StorageError.
func (r *Registry) RegisterOrConfirm(ctx context.Context, kind models.TokenKind, value string) (Outcome, error) {
	if !kind.Valid() {
		return 0, ErrUnknownKind
	}
	if value == "" {
		return 0, ErrInvalidToken
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	outcome, id, err := r.lookupOrInsert(ctx, kind, value)
	if err != nil && db.IsDuplicateKey(err) {
		outcome, id, err = r.confirmAfterRace(ctx, kind, value, err)
	} else if err != nil {
		err = &StorageError{Op: "register", Err: err}
	}

	if err != nil {
		r.record(kind, "error")
		return 0, err
	}

	r.record(kind, outcome.String())
	if outcome == OutcomeCreated {
		r.logger.InfoContext(ctx, "registry: user registered",
			slog.String("kind", kind.String()),
			slog.Int64("user_id", id),
		)
	} else {
		r.logger.DebugContext(ctx, "registry: user confirmed",
			slog.String("kind", kind.String()),
			slog.Int64("user_id", id),
		)
	}
	return outcome, nil
}

// lookupOrInsert runs find-then-insert inside one transaction.
func (r *Registry) lookupOrInsert(ctx context.Context, kind models.TokenKind, value string) (Outcome, int64, error) {
	var (
		outcome Outcome
		id      int64
	)
	err := r.store.WithinTx(ctx, func(users repo.UserRepository) error {
		u, err := users.FindByToken(ctx, kind, value)
		if err == nil {
			outcome, id = OutcomeExisting, u.ID
			return nil
		}
		if !db.IsNotFound(err) {
			return err
		}

		newID, err := users.InsertToken(ctx, kind, value)
		if err != nil {
			return err
		}
		outcome, id = OutcomeCreated, newID
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return outcome, id, nil
}

// confirmAfterRace handles a unique violation on insert: another writer
// committed the same value between our lookup and insert. The transaction is
// already rolled back; the record must now be visible.
func (r *Registry) confirmAfterRace(ctx context.Context, kind models.TokenKind, value string, dupErr error) (Outcome, int64, error) {
	u, err := r.store.Users().FindByToken(ctx, kind, value)
	switch {
	case err == nil:
		return OutcomeExisting, u.ID, nil
	case db.IsNotFound(err):
		return 0, 0, &StorageError{Op: "confirm", Err: dupErr}
	default:
		return 0, 0, &StorageError{Op: "confirm", Err: err}
	}
}

func (r *Registry) record(kind models.TokenKind, outcome string) {
	if r.recorder != nil {
		r.recorder.RecordRegistration(kind.String(), outcome)
	}
}
