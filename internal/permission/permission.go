// Package permission decides who may moderate whom.
//
// Both decisions are pure functions over snapshots supplied by the platform
// adapter for a single check. Callers fetch fresh data before each decision
// so a role change never affects a decision already in flight.
package permission

import (
	"slices"

	"guild-warden/internal/models"
)

// Capabilities are the platform's built-in permission bits relevant to moderation.
type Capabilities struct {
	Administrator   bool
	ModerateMembers bool
}

// Actor is the member invoking a moderation command.
type Actor struct {
	UserID       string
	Capabilities Capabilities
	RoleIDs      []string
}

// HierarchyView is a read-only snapshot of one member's position in a guild.
type HierarchyView struct {
	UserID      string
	IsOwner     bool
	HighestRank int // ordinal position of the highest role, higher is more senior
	RoleIDs     []string
}

// IsModerator reports whether actor may use moderation commands. Built-in
// capabilities always count; configured roles only when a policy exists.
func IsModerator(actor Actor, policy *models.GuildPolicy) bool {
	if actor.Capabilities.Administrator || actor.Capabilities.ModerateMembers {
		return true
	}
	if policy == nil {
		return false
	}
	return hasAnyRole(actor.RoleIDs, policy.ModeratorRoles) || hasAnyRole(actor.RoleIDs, policy.AdminRoles)
}

// IsAdmin reports whether actor may change the guild policy.
func IsAdmin(actor Actor, policy *models.GuildPolicy) bool {
	if actor.Capabilities.Administrator {
		return true
	}
	if policy == nil {
		return false
	}
	return hasAnyRole(actor.RoleIDs, policy.AdminRoles)
}

// CanModerate reports whether actor may act on target. Only strictly
// subordinate members can be targeted; the owner bypasses the rank comparison
// but can never be targeted, and nobody can target themselves.
func CanModerate(actor, target HierarchyView) bool {
	if actor.UserID == target.UserID {
		return false
	}
	if target.IsOwner {
		return false
	}
	if !actor.IsOwner && actor.HighestRank <= target.HighestRank {
		return false
	}
	return true
}

func hasAnyRole(held, allowed []string) bool {
	for _, id := range held {
		if slices.Contains(allowed, id) {
			return true
		}
	}
	return false
}
