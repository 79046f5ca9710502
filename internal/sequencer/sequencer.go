// Package sequencer allocates per-guild case identifiers.
//
// Allocation and insertion form one unit per guild: the sequencer holds a
// per-guild lock while it reads the current maximum and inserts the case with
// maximum+1. The store's unique (guild, case) key backs this up; a collision
// is retried after re-reading the maximum, so a failed insert never reserves
// an identifier.
package sequencer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"guild-warden/internal/models"
	"guild-warden/internal/moderr"
)

// DefaultMaxAttempts bounds retries after a unique-key collision.
const DefaultMaxAttempts = 5

// CaseStore is the persistence needed by the sequencer.
type CaseStore interface {
	// MaxCaseID returns the highest case id of a guild, 0 when it has none.
	MaxCaseID(ctx context.Context, guildID string) (int64, error)
	// InsertCase stores c, returning moderr.ErrDuplicate when its
	// (GuildID, CaseID) pair is taken.
	InsertCase(ctx context.Context, c *models.ModerationCase) error
}

type Sequencer struct {
	store       CaseStore
	locks       *xsync.MapOf[string, *sync.Mutex]
	maxAttempts int
}

func New(store CaseStore) *Sequencer {
	return &Sequencer{
		store:       store,
		locks:       xsync.NewMapOf[string, *sync.Mutex](),
		maxAttempts: DefaultMaxAttempts,
	}
}

func (s *Sequencer) lock(guildID string) *sync.Mutex {
	mu, _ := s.locks.LoadOrCompute(guildID, func() *sync.Mutex {
		return &sync.Mutex{}
	})
	return mu
}

// NextCaseID returns the identifier the next case of guildID would receive.
// It is informational; Record is the only way to claim an identifier.
func (s *Sequencer) NextCaseID(ctx context.Context, guildID string) (int64, error) {
	max, err := s.store.MaxCaseID(ctx, guildID)
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}

// Record assigns the next case identifier of c.GuildID to c and inserts it.
func (s *Sequencer) Record(ctx context.Context, c *models.ModerationCase) (int64, error) {
	mu := s.lock(c.GuildID)
	mu.Lock()
	defer mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		next, err := s.NextCaseID(ctx, c.GuildID)
		if err != nil {
			return 0, fmt.Errorf("read max case id: %w", err)
		}

		c.CaseID = next
		err = s.store.InsertCase(ctx, c)
		if err == nil {
			return next, nil
		}
		c.CaseID = 0
		if !errors.Is(err, moderr.ErrDuplicate) {
			return 0, fmt.Errorf("insert case: %w", err)
		}
		lastErr = err
	}
	return 0, fmt.Errorf("case id allocation for guild %s gave up after %d attempts: %w", c.GuildID, s.maxAttempts, lastErr)
}
