// Package leveling awards experience for chat activity.
package leveling

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"guild-warden/internal/metrics"
	"guild-warden/internal/models"
)

// UserStore is the persistence used by the engine.
type UserStore interface {
	GetOrCreate(ctx context.Context, userID, guildID string) (*models.UserRecord, error)
	SaveProgress(ctx context.Context, rec *models.UserRecord) error
}

// LevelUpEvent describes a level transition.
type LevelUpEvent struct {
	UserID   string
	GuildID  string
	NewLevel int
}

type Config struct {
	Cooldown time.Duration
	MinXP    int
	MaxXP    int
}

var DefaultConfig = Config{
	Cooldown: 60 * time.Second,
	MinXP:    10,
	MaxXP:    25,
}

// RequiredXP is the experience needed to leave level.
func RequiredXP(level int) int {
	return level*100 + 100
}

type Engine struct {
	store UserStore
	cfg   Config
	locks *xsync.MapOf[string, *sync.Mutex]

	randMu sync.Mutex
	rand   *rand.Rand
}

func New(store UserStore, cfg Config) *Engine {
	return NewWithRand(store, cfg, rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)))
}

// NewWithRand creates an engine drawing experience awards from r.
func NewWithRand(store UserStore, cfg Config, r *rand.Rand) *Engine {
	return &Engine{
		store: store,
		cfg:   cfg,
		locks: xsync.NewMapOf[string, *sync.Mutex](),
		rand:  r,
	}
}

func (e *Engine) award() int {
	e.randMu.Lock()
	defer e.randMu.Unlock()
	return e.cfg.MinXP + e.rand.IntN(e.cfg.MaxXP-e.cfg.MinXP+1)
}

// OnMessage accrues experience for a message of userID in the guild of
// policy. It returns nil without error when leveling is off, the user is
// still cooling down, or no level was gained. At most one level is gained
// per message, and experience restarts at zero after a level-up.
func (e *Engine) OnMessage(ctx context.Context, policy *models.GuildPolicy, userID string, now time.Time) (*LevelUpEvent, error) {
	if policy == nil || !policy.LevelingEnabled {
		return nil, nil
	}
	return e.accrue(ctx, userID, policy.GuildID, now, e.award)
}

func (e *Engine) accrue(ctx context.Context, userID, guildID string, now time.Time, award func() int) (*LevelUpEvent, error) {
	mu, _ := e.locks.LoadOrCompute(guildID+"/"+userID, func() *sync.Mutex {
		return &sync.Mutex{}
	})
	mu.Lock()
	defer mu.Unlock()

	rec, err := e.store.GetOrCreate(ctx, userID, guildID)
	if err != nil {
		return nil, fmt.Errorf("load user %s in guild %s: %w", userID, guildID, err)
	}
	if rec.LastMessageAt != nil && now.Sub(*rec.LastMessageAt) < e.cfg.Cooldown {
		return nil, nil
	}

	rec.Experience += award()
	rec.Messages++
	rec.LastMessageAt = &now

	var event *LevelUpEvent
	if rec.Experience >= RequiredXP(rec.Level) {
		rec.Level++
		rec.Experience = 0
		event = &LevelUpEvent{UserID: userID, GuildID: guildID, NewLevel: rec.Level}
	}

	if err := e.store.SaveProgress(ctx, rec); err != nil {
		return nil, fmt.Errorf("save progress of %s in guild %s: %w", userID, guildID, err)
	}
	if event != nil {
		metrics.LevelUps.Inc()
	}
	return event, nil
}
