package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"guild-warden/internal/models"
	"guild-warden/internal/moderr"

	"gorm.io/gorm"
)

// PolicyRepository handles database operations for GuildPolicy
type PolicyRepository struct {
	db *gorm.DB
}

// NewPolicyRepository creates a new PolicyRepository
func NewPolicyRepository(db *gorm.DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

// MigrateTable ensures the GuildPolicy table exists
func (r *PolicyRepository) MigrateTable() error {
	return r.db.AutoMigrate(&models.GuildPolicy{})
}

// GetPolicy retrieves a guild policy, nil if the guild has none
func (r *PolicyRepository) GetPolicy(ctx context.Context, guildID string) (*models.GuildPolicy, error) {
	var policy models.GuildPolicy
	result := r.db.WithContext(ctx).Where("guild_id = ?", guildID).First(&policy)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &policy, nil
}

// CreateOrUpdatePolicy creates a new policy or updates the existing one of the same guild
func (r *PolicyRepository) CreateOrUpdatePolicy(ctx context.Context, policy *models.GuildPolicy) error {
	db := r.db.WithContext(ctx)

	var existing models.GuildPolicy
	result := db.Where("guild_id = ?", policy.GuildID).First(&existing)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			policy.CreatedAt = time.Now()
			policy.UpdatedAt = time.Now()
			err := db.Create(policy).Error
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("guild %s: %w", policy.GuildID, moderr.ErrDuplicate)
			}
			return err
		}
		return result.Error
	}

	policy.ID = existing.ID
	policy.CreatedAt = existing.CreatedAt
	policy.UpdatedAt = time.Now()

	return db.Save(policy).Error
}

// GetAllPolicies retrieves every guild policy
func (r *PolicyRepository) GetAllPolicies(ctx context.Context) ([]*models.GuildPolicy, error) {
	var policies []*models.GuildPolicy
	result := r.db.WithContext(ctx).Find(&policies)
	if result.Error != nil {
		return nil, result.Error
	}
	return policies, nil
}

// LoadPolicies loads all policies from the database into the cache
func LoadPolicies(ctx context.Context, repo *PolicyRepository, cache *models.PolicyCache) (int, error) {
	policies, err := repo.GetAllPolicies(ctx)
	if err != nil {
		return 0, err
	}

	for _, policy := range policies {
		cache.Put(policy)
	}
	return len(policies), nil
}
