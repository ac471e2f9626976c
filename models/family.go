package models

import (
	"time"

	"github.com/google/uuid"
)

// Member roles within a family group.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Member permissions. Admins hold all of them; plain members start with view.
const (
	PermissionView   = "view"
	PermissionEdit   = "edit"
	PermissionDelete = "delete"
	PermissionInvite = "invite"
)

// Invitation statuses. Accepted and declined are terminal.
const (
	InvitationPending  = "pending"
	InvitationAccepted = "accepted"
	InvitationDeclined = "declined"
)

// AdminPermissions returns the full permission set implied by the admin role.
func AdminPermissions() []string {
	return []string{PermissionView, PermissionEdit, PermissionDelete, PermissionInvite}
}

// MemberPermissions returns the default permission set for a plain member.
func MemberPermissions() []string {
	return []string{PermissionView}
}

// Member is a user's membership record within a FamilyGroup. Name and email
// are denormalized snapshots taken when the member joined.
type Member struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

// HasPermission reports whether the member holds the given permission.
func (m Member) HasPermission(permission string) bool {
	for _, p := range m.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// SharedSubscriptionRef points at a SharedSubscription document from the
// group that owns the sharing relationship.
type SharedSubscriptionRef struct {
	SubscriptionID uuid.UUID `json:"subscriptionId"`
}

// FamilyGroup is a named collection of users who share subscription costs.
// MemberIDs mirrors the IDs in Members and exists only so the store can
// filter groups with an array-membership predicate.
type FamilyGroup struct {
	ID                  uuid.UUID               `json:"id"`
	Name                string                  `json:"name"`
	CreatedBy           string                  `json:"createdBy"`
	CreatedAt           time.Time               `json:"createdAt"`
	Members             []Member                `json:"members"`
	MemberIDs           []string                `json:"memberIds"`
	SharedSubscriptions []SharedSubscriptionRef `json:"sharedSubscriptions"`

	// Revision is the store's optimistic-concurrency token, not part of the
	// document body.
	Revision int64 `json:"-"`
}

// MemberByID returns the membership record for the given user, if present.
func (g *FamilyGroup) MemberByID(userID string) (Member, bool) {
	for _, m := range g.Members {
		if m.ID == userID {
			return m, true
		}
	}
	return Member{}, false
}

// AdminCount returns how many members hold the admin role.
func (g *FamilyGroup) AdminCount() int {
	count := 0
	for _, m := range g.Members {
		if m.Role == RoleAdmin {
			count++
		}
	}
	return count
}

// SyncMemberIDs rebuilds the MemberIDs index from Members. Every roster
// mutation must call this before the group is written back.
func (g *FamilyGroup) SyncMemberIDs() {
	ids := make([]string, len(g.Members))
	for i, m := range g.Members {
		ids[i] = m.ID
	}
	g.MemberIDs = ids
}

// Invitation is a pending offer for a user, identified by email, to join a
// family group. InvitedEmail is always stored lower-cased so matching against
// the responder's email is case-insensitive.
type Invitation struct {
	ID              uuid.UUID `json:"id"`
	FamilyGroupID   uuid.UUID `json:"familyGroupId"`
	FamilyGroupName string    `json:"familyGroupName"`
	InvitedEmail    string    `json:"invitedEmail"`
	InvitedBy       string    `json:"invitedBy"`
	InvitedByName   string    `json:"invitedByName"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"createdAt"`

	Revision int64 `json:"-"`
}
