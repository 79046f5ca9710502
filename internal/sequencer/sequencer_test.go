package sequencer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guild-warden/internal/models"
	"guild-warden/internal/moderr"
)

type memCaseStore struct {
	mu    sync.Mutex
	cases map[string]map[int64]*models.ModerationCase

	// failNext makes the next n inserts fail with failErr
	failNext int
	failErr  error
	// readDelay widens the read-then-insert gap to surface races
	readDelay time.Duration
}

func newMemCaseStore() *memCaseStore {
	return &memCaseStore{cases: make(map[string]map[int64]*models.ModerationCase)}
}

func (m *memCaseStore) MaxCaseID(ctx context.Context, guildID string) (int64, error) {
	m.mu.Lock()
	var max int64
	for id := range m.cases[guildID] {
		if id > max {
			max = id
		}
	}
	m.mu.Unlock()
	time.Sleep(m.readDelay)
	return max, nil
}

func (m *memCaseStore) InsertCase(ctx context.Context, c *models.ModerationCase) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failNext > 0 {
		m.failNext--
		return m.failErr
	}
	g, ok := m.cases[c.GuildID]
	if !ok {
		g = make(map[int64]*models.ModerationCase)
		m.cases[c.GuildID] = g
	}
	if _, taken := g[c.CaseID]; taken {
		return fmt.Errorf("case %d: %w", c.CaseID, moderr.ErrDuplicate)
	}
	cp := *c
	g[c.CaseID] = &cp
	return nil
}

func (m *memCaseStore) ids(guildID string) []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []int64
	for id := range m.cases[guildID] {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func TestFreshGuildStartsAtOne(t *testing.T) {
	seq := New(newMemCaseStore())

	next, err := seq.NextCaseID(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), next)

	id, err := seq.Record(context.Background(), &models.ModerationCase{GuildID: "g1", Action: models.ActionWarn})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	next, err = seq.NextCaseID(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), next)
}

func TestConcurrentRecordsAreGapFree(t *testing.T) {
	store := newMemCaseStore()
	store.readDelay = 100 * time.Microsecond
	seq := New(store)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := seq.Record(context.Background(), &models.ModerationCase{GuildID: "g1", Action: models.ActionBan})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := seq.Record(context.Background(), &models.ModerationCase{GuildID: "g2", Action: models.ActionKick})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	for _, guild := range []string{"g1", "g2"} {
		ids := store.ids(guild)
		require.Len(t, ids, n)
		for i, id := range ids {
			assert.Equal(t, int64(i+1), id)
		}
	}
}

func TestFailedInsertDoesNotReserveID(t *testing.T) {
	store := newMemCaseStore()
	seq := New(store)
	ctx := context.Background()

	_, err := seq.Record(ctx, &models.ModerationCase{GuildID: "g1"})
	require.NoError(t, err)

	store.failNext = 1
	store.failErr = errors.New("connection reset")
	c := &models.ModerationCase{GuildID: "g1"}
	_, err = seq.Record(ctx, c)
	require.Error(t, err)
	assert.Equal(t, int64(0), c.CaseID)

	// the retry re-reads the max and receives the identifier the failure did not keep
	id, err := seq.Record(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)
	assert.Equal(t, []int64{1, 2}, store.ids("g1"))
}

func TestDuplicateIsRetried(t *testing.T) {
	store := newMemCaseStore()
	seq := New(store)

	store.failNext = 2
	store.failErr = fmt.Errorf("insert: %w", moderr.ErrDuplicate)

	id, err := seq.Record(context.Background(), &models.ModerationCase{GuildID: "g1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

func TestDuplicateGivesUp(t *testing.T) {
	store := newMemCaseStore()
	seq := New(store)

	store.failNext = DefaultMaxAttempts
	store.failErr = moderr.ErrDuplicate

	_, err := seq.Record(context.Background(), &models.ModerationCase{GuildID: "g1"})
	assert.ErrorIs(t, err, moderr.ErrDuplicate)
	assert.Empty(t, store.ids("g1"))
}
