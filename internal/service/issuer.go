package service

import (
	"context"
	"errors"
	"time"

	"github.com/keygatehq/keygate/internal/event"
	"github.com/keygatehq/keygate/internal/model"
)

// ErrMutatedToken is returned when a RecordMutator changes the token field of
// a candidate key. Token shape is owned by the TokenGenerator.
var ErrMutatedToken = errors.New("record mutator must not alter the token")

// RecordMutator customizes candidate key records before they are persisted,
// e.g. to stamp an expiry, notes, or metadata. It must leave Token untouched.
type RecordMutator interface {
	Mutate(key *model.APIKey) error
}

// RecordMutatorFunc adapts a function to the RecordMutator interface.
type RecordMutatorFunc func(key *model.APIKey) error

func (f RecordMutatorFunc) Mutate(key *model.APIKey) error {
	return f(key)
}

// KeyWriter is the slice of the store the issuer needs.
type KeyWriter interface {
	InsertKeys(ctx context.Context, keys []*model.APIKey) error
}

// IssuerConfig controls the shape of an issuance batch.
type IssuerConfig struct {
	// Environments and KeyTypes span the batch: one key is issued per
	// (environment, key type) pair, environments outermost.
	Environments []string
	KeyTypes     []string

	// SizeBytes is the entropy per token.
	SizeBytes int
}

// Issuer creates API-key batches for owner accounts. A batch covers the full
// cross product of configured environments and key types and is persisted
// atomically: a collision or storage failure on any key discards the whole
// batch.
type Issuer struct {
	store   KeyWriter
	cfg     IssuerConfig
	gen     TokenGenerator
	mutator RecordMutator

	now func() time.Time
}

// NewIssuer creates an Issuer. A nil gen falls back to Base62Generator; a nil
// mutator persists candidates unchanged.
func NewIssuer(st KeyWriter, cfg IssuerConfig, gen TokenGenerator, mutator RecordMutator) *Issuer {
	if gen == nil {
		gen = Base62Generator{}
	}
	return &Issuer{
		store:   st,
		cfg:     cfg,
		gen:     gen,
		mutator: mutator,
		now:     time.Now,
	}
}

// IssueFor generates and persists a fresh key batch for the given owner and
// returns the inserted keys, environments outermost, in configuration order.
func (i *Issuer) IssueFor(ctx context.Context, ownerID int64) ([]*model.APIKey, error) {
	now := i.now().UTC()

	keys := make([]*model.APIKey, 0, len(i.cfg.Environments)*len(i.cfg.KeyTypes))
	for _, env := range i.cfg.Environments {
		for _, keyType := range i.cfg.KeyTypes {
			token, err := i.gen.Generate(env, keyType, i.cfg.SizeBytes)
			if err != nil {
				return nil, err
			}

			key := &model.APIKey{
				OwnerID:     ownerID,
				Environment: env,
				KeyType:     keyType,
				Token:       token,
				CreatedAt:   now,
			}

			if i.mutator != nil {
				if err := i.mutator.Mutate(key); err != nil {
					return nil, err
				}
				if key.Token != token {
					return nil, ErrMutatedToken
				}
			}

			keys = append(keys, key)
		}
	}

	if err := i.store.InsertKeys(ctx, keys); err != nil {
		return nil, err
	}
	return keys, nil
}

// Subscribe wires the issuer to account registration: every new account
// receives its key batch as part of the registration that created it.
func (i *Issuer) Subscribe(bus *event.Bus) {
	bus.SubscribeAccountRegistered(func(ctx context.Context, ev event.AccountRegistered) error {
		_, err := i.IssueFor(ctx, ev.AccountID)
		return err
	})
}
