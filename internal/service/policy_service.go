package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"guild-warden/internal/config"
	"guild-warden/internal/logger"
	"guild-warden/internal/models"
	"guild-warden/internal/moderr"
	"guild-warden/internal/permission"
)

// PolicyStore persists guild policies.
type PolicyStore interface {
	GetPolicy(ctx context.Context, guildID string) (*models.GuildPolicy, error)
	CreateOrUpdatePolicy(ctx context.Context, policy *models.GuildPolicy) error
}

// PolicyService serves guild policies from the cache, falling back to the
// database, and is the only writer of policies.
type PolicyService struct {
	repo     PolicyStore
	cache    *models.PolicyCache
	automod  config.AutoModConfig
	leveling bool
	locks    *xsync.MapOf[string, *sync.Mutex]
}

func NewPolicyService(repo PolicyStore, cache *models.PolicyCache, cfg *config.Config) *PolicyService {
	return &PolicyService{
		repo:     repo,
		cache:    cache,
		automod:  cfg.AutoMod,
		leveling: cfg.Leveling.Enabled,
		locks:    xsync.NewMapOf[string, *sync.Mutex](),
	}
}

func (s *PolicyService) lock(guildID string) *sync.Mutex {
	mu, _ := s.locks.LoadOrCompute(guildID, func() *sync.Mutex {
		return &sync.Mutex{}
	})
	return mu
}

// Get returns the policy of a guild, nil when it has none.
func (s *PolicyService) Get(ctx context.Context, guildID string) (*models.GuildPolicy, error) {
	if policy := s.cache.Get(guildID); policy != nil {
		return policy, nil
	}

	policy, err := s.repo.GetPolicy(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if policy == nil {
		return nil, nil
	}
	logger.Debugf("Loaded policy of guild %s from database", guildID)
	s.cache.Put(policy)
	return policy, nil
}

// DefaultPolicy is the policy a guild starts with.
func (s *PolicyService) DefaultPolicy(guildID, guildName string) *models.GuildPolicy {
	return &models.GuildPolicy{
		GuildID:        guildID,
		GuildName:      guildName,
		Language:       models.LangEnglish,
		AutoModEnabled: s.automod.Enabled,
		AutoMod: models.AutoModSettings{
			AntiSpam:    s.automod.AntiSpam,
			AntiInvite:  s.automod.AntiInvite,
			AntiLink:    s.automod.AntiLink,
			AntiCaps:    s.automod.AntiCaps,
			MaxMentions: s.automod.MaxMentions,
			MaxEmojis:   s.automod.MaxEmojis,
		},
		LevelingEnabled: s.leveling,
		ModeratorRoles:  []string{},
		AdminRoles:      []string{},
		IgnoredChannels: []string{},
	}
}

// EnsurePolicy returns the guild's policy, creating the default one when the
// guild has none. A changed guild name is saved along the way.
func (s *PolicyService) EnsurePolicy(ctx context.Context, guildID, guildName string) (*models.GuildPolicy, error) {
	mu := s.lock(guildID)
	mu.Lock()
	defer mu.Unlock()

	policy, err := s.Get(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if policy != nil {
		if guildName == "" || policy.GuildName == guildName {
			return policy, nil
		}
		policy.GuildName = guildName
	} else {
		logger.Infof("Creating default policy for guild %s (%s)", guildID, guildName)
		policy = s.DefaultPolicy(guildID, guildName)
	}

	if err := s.repo.CreateOrUpdatePolicy(ctx, policy); err != nil {
		return nil, fmt.Errorf("failed to save policy of guild %s: %w", guildID, err)
	}
	s.cache.Put(policy)
	return policy, nil
}

// Update applies mutate to the guild's policy on behalf of actor, who must be
// a guild admin. Identity fields survive whatever mutate does.
func (s *PolicyService) Update(ctx context.Context, guildID string, actor permission.Actor, mutate func(*models.GuildPolicy)) (*models.GuildPolicy, error) {
	mu := s.lock(guildID)
	mu.Lock()
	defer mu.Unlock()

	current, err := s.Get(ctx, guildID)
	if err != nil {
		return nil, moderr.Transient("load policy", err)
	}
	if !permission.IsAdmin(actor, current) {
		return nil, fmt.Errorf("user %s may not configure guild %s: %w", actor.UserID, guildID, moderr.ErrUnauthorized)
	}
	if current == nil {
		current = s.DefaultPolicy(guildID, "")
	}

	updated := current.Clone()
	mutate(updated)
	updated.ID = current.ID
	updated.GuildID = current.GuildID
	updated.CreatedAt = current.CreatedAt

	if err := s.repo.CreateOrUpdatePolicy(ctx, updated); err != nil {
		return nil, moderr.Transient("save policy", err)
	}
	s.cache.Put(updated)
	logger.Infof("Policy of guild %s updated by %s", guildID, actor.UserID)
	return updated, nil
}
