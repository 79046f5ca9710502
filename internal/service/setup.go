package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"guild-warden/internal/automod"
	"guild-warden/internal/config"
	"guild-warden/internal/crash"
	"guild-warden/internal/leveling"
	"guild-warden/internal/logger"
	"guild-warden/internal/models"
	"guild-warden/internal/moderation"
	"guild-warden/internal/notify"
	"guild-warden/internal/platform"
	"guild-warden/internal/sequencer"
	"guild-warden/internal/storage"
)

// Services holds the platform independent engines and their storage.
type Services struct {
	Config    *config.Config
	Policies  *PolicyService
	Cases     *storage.CaseRepository
	Users     *storage.UserRepository
	Pending   *storage.PendingMsgRepository
	Sequencer *sequencer.Sequencer
	Pipeline  *automod.Pipeline
	Leveling  *leveling.Engine

	policyRepo   *storage.PolicyRepository
	memWindows   *automod.MemoryWindowStore
	redisWindows *automod.RedisWindowStore

	mu          sync.Mutex
	dispatchers []*notify.Dispatcher
}

// Engines are the services bound to one chat platform.
type Engines struct {
	Platform platform.Platform
	Notifier *notify.Dispatcher
	Executor *moderation.Executor
	Enforcer *automod.Enforcer
}

// Initialize wires every service on top of db.
func Initialize(ctx context.Context, cfg *config.Config, db *gorm.DB) (*Services, error) {
	s := &Services{Config: cfg}
	if err := s.InitRepositories(ctx, db); err != nil {
		return nil, err
	}

	windows, err := s.initWindows()
	if err != nil {
		return nil, err
	}

	s.Sequencer = sequencer.New(s.Cases)
	s.Pipeline = automod.New(automod.Config{
		SpamThreshold: cfg.AutoMod.SpamThreshold,
		SpamTimeframe: cfg.AutoMod.SpamTimeframe,
		SpamTimeout:   cfg.AutoMod.SpamTimeout,
	}, windows)
	s.Leveling = leveling.New(s.Users, leveling.Config{
		Cooldown: cfg.Leveling.Cooldown,
		MinXP:    cfg.Leveling.MinXP,
		MaxXP:    cfg.Leveling.MaxXP,
	})

	logger.Infof("Services initialized, automod rules: %v", s.Pipeline.Rules())
	return s, nil
}

// InitRepositories creates the repositories, migrates their tables and warms
// the policy cache.
func (s *Services) InitRepositories(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database is required")
	}

	s.policyRepo = storage.NewPolicyRepository(db)
	if err := s.policyRepo.MigrateTable(); err != nil {
		logger.Warningf("Error migrating GuildPolicy table: %v", err)
	}
	s.Cases = storage.NewCaseRepository(db)
	if err := s.Cases.MigrateTable(); err != nil {
		logger.Warningf("Error migrating ModerationCase table: %v", err)
	}
	s.Users = storage.NewUserRepository(db)
	if err := s.Users.MigrateTable(); err != nil {
		logger.Warningf("Error migrating UserRecord table: %v", err)
	}
	s.Pending = storage.NewPendingMsgRepository(db)
	if err := s.Pending.MigrateTable(); err != nil {
		logger.Warningf("Error migrating PendingMessage table: %v", err)
	}

	cache := models.NewPolicyCache()
	if n, err := storage.LoadPolicies(ctx, s.policyRepo, cache); err != nil {
		logger.Warningf("Error loading policies from database: %v", err)
	} else {
		logger.Infof("Loaded %d guild policies", n)
	}
	s.Policies = NewPolicyService(s.policyRepo, cache, s.Config)
	return nil
}

func (s *Services) initWindows() (automod.WindowStore, error) {
	// one stamp more than the threshold is all a window has to remember
	limit := s.Config.AutoMod.SpamThreshold + 1

	if s.Config.AutoMod.SpamStore == "redis" {
		store, err := automod.NewRedisWindowStore(s.Config.Redis.URL, limit)
		if err != nil {
			return nil, fmt.Errorf("failed to connect spam window store: %w", err)
		}
		s.redisWindows = store
		logger.Infof("Spam windows kept in redis")
		return store, nil
	}

	store, err := automod.NewMemoryWindowStore(s.Config.AutoMod.WindowCapacity, limit)
	if err != nil {
		return nil, err
	}
	s.memWindows = store
	return store, nil
}

// ForPlatform binds the engines to p.
func (s *Services) ForPlatform(p platform.Platform) *Engines {
	dispatcher := notify.NewDispatcher(p, p.Name(), s.Pending)

	s.mu.Lock()
	s.dispatchers = append(s.dispatchers, dispatcher)
	s.mu.Unlock()

	return &Engines{
		Platform: p,
		Notifier: dispatcher,
		Executor: moderation.NewExecutor(moderation.Deps{
			Platform:  p,
			Policies:  s.Policies,
			Sequencer: s.Sequencer,
			Cases:     s.Cases,
			Counters:  s.Users,
			Notifier:  dispatcher,
		}),
		Enforcer: automod.NewEnforcer(p, dispatcher, s.Config.AutoMod.NoticeTTL),
	}
}

func (s *Services) notifiers() []*notify.Dispatcher {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*notify.Dispatcher(nil), s.dispatchers...)
}

// RunMaintenance performs one maintenance round: stale spam windows are
// dropped and notices whose deletion time has passed are removed.
func (s *Services) RunMaintenance(ctx context.Context, now time.Time) {
	if s.memWindows != nil {
		if n := s.memWindows.Sweep(now, s.Config.AutoMod.SpamTimeframe); n > 0 {
			logger.Debugf("Swept %d idle spam windows", n)
		}
	}
	for _, d := range s.notifiers() {
		if n := d.FlushPending(ctx); n > 0 {
			logger.Infof("Deleted %d overdue notices", n)
		}
	}
}

// StartMaintenance runs RunMaintenance every interval until ctx is done.
func (s *Services) StartMaintenance(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)

	crash.SafeGoroutine("maintenance", func() {
		defer ticker.Stop()
		logger.Infof("Starting maintenance goroutine with interval: %v", interval)

		// leftovers of a previous run first
		s.RunMaintenance(ctx, time.Now())
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				s.RunMaintenance(ctx, now)
			}
		}
	})
}

// Close removes notices only tracked in memory and releases the spam window store.
func (s *Services) Close(ctx context.Context) {
	for _, d := range s.notifiers() {
		d.DeleteAllPending(ctx)
	}
	if s.redisWindows != nil {
		if err := s.redisWindows.Close(); err != nil {
			logger.Warningf("Error closing redis: %v", err)
		}
	}
}
