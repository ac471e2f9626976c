package family

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/subtrack/family-services/ledger"
	"github.com/subtrack/family-services/models"
)

// MembershipManager owns the FamilyGroup lifecycle: creation, the invitation
// workflow, member removal and role changes. It never partially applies a
// mutation; all preconditions are checked against the freshly loaded group
// before the single document write.
type MembershipManager struct {
	store ledger.Store
}

// NewMembershipManager creates a MembershipManager backed by the given store.
func NewMembershipManager(store ledger.Store) *MembershipManager {
	return &MembershipManager{store: store}
}

// CreateGroup persists a new family group with the creator as its sole admin.
func (m *MembershipManager) CreateGroup(ctx context.Context, creator Identity, name string) (*models.FamilyGroup, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &ValidationError{Field: "name", Detail: "group name must not be empty"}
	}

	group := models.FamilyGroup{
		Name:      name,
		CreatedBy: creator.ID,
		CreatedAt: time.Now().UTC(),
		Members: []models.Member{{
			ID:          creator.ID,
			Name:        creator.Name,
			Email:       strings.ToLower(creator.Email),
			Role:        models.RoleAdmin,
			Permissions: models.AdminPermissions(),
		}},
		SharedSubscriptions: []models.SharedSubscriptionRef{},
	}
	group.SyncMemberIDs()

	id, err := m.store.Create(ctx, ledger.CollectionFamilyGroups, group)
	if err != nil {
		return nil, fmt.Errorf("error creating family group: %w", err)
	}
	group.ID = id
	group.Revision = 1

	zerolog.Ctx(ctx).Info().
		Str("group_id", id.String()).
		Str("created_by", creator.ID).
		Msg("family group created")

	return &group, nil
}

// GetGroup loads a group by ID.
func (m *MembershipManager) GetGroup(ctx context.Context, groupID uuid.UUID) (*models.FamilyGroup, error) {
	return loadGroup(ctx, m.store, groupID)
}

// GroupForUser returns the group the user belongs to, or a NotFoundError.
// The memberIds index makes this a single array-membership query.
func (m *MembershipManager) GroupForUser(ctx context.Context, userID string) (*models.FamilyGroup, error) {
	docs, err := m.store.Query(ctx, ledger.CollectionFamilyGroups, ledger.Contains("memberIds", userID))
	if err != nil {
		return nil, fmt.Errorf("error querying family groups: %w", err)
	}
	if len(docs) == 0 {
		return nil, &NotFoundError{Resource: "family group for user", ID: userID}
	}

	var group models.FamilyGroup
	if err := docs[0].Decode(&group); err != nil {
		return nil, fmt.Errorf("error decoding family group: %w", err)
	}
	group.ID = docs[0].ID
	group.Revision = docs[0].Revision
	return &group, nil
}

// InviteMember issues a pending invitation for the given email address. The
// inviter must hold the invite permission and no pending invitation may
// already exist for the same group and email.
func (m *MembershipManager) InviteMember(ctx context.Context, groupID uuid.UUID, inviter Identity, email string) (*models.Invitation, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, &ValidationError{Field: "email", Detail: "a valid email address is required"}
	}

	group, err := loadGroup(ctx, m.store, groupID)
	if err != nil {
		return nil, err
	}

	member, ok := group.MemberByID(inviter.ID)
	if !ok || !member.HasPermission(models.PermissionInvite) {
		return nil, &PermissionError{UserID: inviter.ID, Permission: models.PermissionInvite}
	}

	// Duplicate-invite guard: one pending invitation per (group, email).
	pending, err := m.store.Query(ctx, ledger.CollectionInvitations,
		ledger.Eq("familyGroupId", group.ID.String()),
		ledger.Eq("invitedEmail", email),
		ledger.Eq("status", models.InvitationPending),
	)
	if err != nil {
		return nil, fmt.Errorf("error checking pending invitations: %w", err)
	}
	if len(pending) > 0 {
		return nil, &ConflictError{Detail: fmt.Sprintf("a pending invitation for %s already exists", email)}
	}

	invitation := models.Invitation{
		FamilyGroupID:   group.ID,
		FamilyGroupName: group.Name,
		InvitedEmail:    email,
		InvitedBy:       inviter.ID,
		InvitedByName:   inviter.Name,
		Status:          models.InvitationPending,
		CreatedAt:       time.Now().UTC(),
	}

	id, err := m.store.Create(ctx, ledger.CollectionInvitations, invitation)
	if err != nil {
		return nil, fmt.Errorf("error creating invitation: %w", err)
	}
	invitation.ID = id
	invitation.Revision = 1

	zerolog.Ctx(ctx).Info().
		Str("group_id", group.ID.String()).
		Str("invitation_id", id.String()).
		Msg("invitation created")

	return &invitation, nil
}

// PendingInvitations lists the pending invitations addressed to the given
// email.
func (m *MembershipManager) PendingInvitations(ctx context.Context, email string) ([]models.Invitation, error) {
	docs, err := m.store.Query(ctx, ledger.CollectionInvitations,
		ledger.Eq("invitedEmail", strings.ToLower(strings.TrimSpace(email))),
		ledger.Eq("status", models.InvitationPending),
	)
	if err != nil {
		return nil, fmt.Errorf("error querying invitations: %w", err)
	}

	invitations := make([]models.Invitation, 0, len(docs))
	for _, doc := range docs {
		var inv models.Invitation
		if err := doc.Decode(&inv); err != nil {
			return nil, fmt.Errorf("error decoding invitation: %w", err)
		}
		inv.ID = doc.ID
		inv.Revision = doc.Revision
		invitations = append(invitations, inv)
	}
	return invitations, nil
}

// RespondToInvitation accepts or declines a pending invitation. Only the
// invited email's owner may respond; the match is case-insensitive. Accepting
// when already a member is a no-op for the roster but still marks the
// invitation accepted. Terminal invitations reject any further response.
func (m *MembershipManager) RespondToInvitation(ctx context.Context, invitationID uuid.UUID, responder Identity, accept bool) (*models.FamilyGroup, error) {
	doc, err := m.store.Get(ctx, ledger.CollectionInvitations, invitationID)
	if err != nil {
		return nil, &NotFoundError{Resource: "invitation", ID: invitationID.String()}
	}

	var invitation models.Invitation
	if err := doc.Decode(&invitation); err != nil {
		return nil, fmt.Errorf("error decoding invitation: %w", err)
	}
	invitation.ID = doc.ID
	invitation.Revision = doc.Revision

	if invitation.Status != models.InvitationPending {
		return nil, &ConflictError{Detail: fmt.Sprintf("invitation is already %s", invitation.Status)}
	}
	if !strings.EqualFold(invitation.InvitedEmail, strings.TrimSpace(responder.Email)) {
		return nil, &AuthorizationError{Detail: "invitation is addressed to a different email"}
	}

	if !accept {
		invitation.Status = models.InvitationDeclined
		if err := m.store.Update(ctx, ledger.CollectionInvitations, invitation.ID, invitation.Revision, invitation); err != nil {
			return nil, storeConflict(err, "invitation")
		}
		zerolog.Ctx(ctx).Info().Str("invitation_id", invitationID.String()).Msg("invitation declined")
		return nil, nil
	}

	group, err := loadGroup(ctx, m.store, invitation.FamilyGroupID)
	if err != nil {
		return nil, err
	}

	if _, already := group.MemberByID(responder.ID); !already {
		group.Members = append(group.Members, models.Member{
			ID:          responder.ID,
			Name:        responder.Name,
			Email:       strings.ToLower(responder.Email),
			Role:        models.RoleMember,
			Permissions: models.MemberPermissions(),
		})
		group.SyncMemberIDs()
		if err := m.store.Update(ctx, ledger.CollectionFamilyGroups, group.ID, group.Revision, group); err != nil {
			return nil, storeConflict(err, "family group")
		}
		group.Revision++
	}

	invitation.Status = models.InvitationAccepted
	if err := m.store.Update(ctx, ledger.CollectionInvitations, invitation.ID, invitation.Revision, invitation); err != nil {
		return nil, storeConflict(err, "invitation")
	}

	zerolog.Ctx(ctx).Info().
		Str("invitation_id", invitationID.String()).
		Str("group_id", group.ID.String()).
		Str("member_id", responder.ID).
		Msg("invitation accepted")

	return group, nil
}

// RemoveMember removes target from the group. The actor must hold the delete
// permission and the removal must not leave the group without an admin.
// Shared subscriptions holding a split for the removed member are flagged for
// re-split, never silently dropped.
func (m *MembershipManager) RemoveMember(ctx context.Context, groupID uuid.UUID, actor, target string) (*models.FamilyGroup, error) {
	group, err := loadGroup(ctx, m.store, groupID)
	if err != nil {
		return nil, err
	}

	actorMember, ok := group.MemberByID(actor)
	if !ok || !actorMember.HasPermission(models.PermissionDelete) {
		return nil, &PermissionError{UserID: actor, Permission: models.PermissionDelete}
	}

	targetMember, ok := group.MemberByID(target)
	if !ok {
		return nil, &NotFoundError{Resource: "member", ID: target}
	}
	if targetMember.Role == models.RoleAdmin && group.AdminCount() == 1 {
		return nil, &InvariantViolation{Detail: "cannot remove the last admin of a family group"}
	}

	members := make([]models.Member, 0, len(group.Members)-1)
	for _, member := range group.Members {
		if member.ID != target {
			members = append(members, member)
		}
	}
	group.Members = members
	group.SyncMemberIDs()

	if err := m.store.Update(ctx, ledger.CollectionFamilyGroups, group.ID, group.Revision, group); err != nil {
		return nil, storeConflict(err, "family group")
	}
	group.Revision++

	m.flagOrphanedSplits(ctx, group.ID, target)

	zerolog.Ctx(ctx).Info().
		Str("group_id", group.ID.String()).
		Str("member_id", target).
		Msg("member removed from family group")

	return group, nil
}

// ChangeRole promotes or demotes a member. Only admins may change roles, and
// the sole admin cannot be demoted. Permissions follow the role: admins get
// the full set, demoted members drop to view.
func (m *MembershipManager) ChangeRole(ctx context.Context, groupID uuid.UUID, actor, target, newRole string) (*models.FamilyGroup, error) {
	if newRole != models.RoleAdmin && newRole != models.RoleMember {
		return nil, &ValidationError{Field: "role", Detail: fmt.Sprintf("unknown role %q", newRole)}
	}

	group, err := loadGroup(ctx, m.store, groupID)
	if err != nil {
		return nil, err
	}

	actorMember, ok := group.MemberByID(actor)
	if !ok || actorMember.Role != models.RoleAdmin {
		return nil, &PermissionError{UserID: actor, Permission: "admin"}
	}

	idx := -1
	for i, member := range group.Members {
		if member.ID == target {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, &NotFoundError{Resource: "member", ID: target}
	}

	current := group.Members[idx]
	if current.Role == models.RoleAdmin && newRole == models.RoleMember && group.AdminCount() == 1 {
		return nil, &InvariantViolation{Detail: "cannot demote the last admin of a family group"}
	}
	if current.Role == newRole {
		return group, nil
	}

	group.Members[idx].Role = newRole
	if newRole == models.RoleAdmin {
		group.Members[idx].Permissions = models.AdminPermissions()
	} else {
		group.Members[idx].Permissions = models.MemberPermissions()
	}

	if err := m.store.Update(ctx, ledger.CollectionFamilyGroups, group.ID, group.Revision, group); err != nil {
		return nil, storeConflict(err, "family group")
	}
	group.Revision++

	zerolog.Ctx(ctx).Info().
		Str("group_id", group.ID.String()).
		Str("member_id", target).
		Str("role", newRole).
		Msg("member role changed")

	return group, nil
}

// flagOrphanedSplits marks shared subscriptions that still carry a split for
// the removed member. These writes are per-document and best effort; a failed
// flag is logged and picked up on the next read since the split itself still
// names a non-member.
func (m *MembershipManager) flagOrphanedSplits(ctx context.Context, groupID uuid.UUID, removed string) {
	logger := zerolog.Ctx(ctx)

	docs, err := m.store.Query(ctx, ledger.CollectionSharedSubscriptions, ledger.Eq("familyGroupId", groupID.String()))
	if err != nil {
		logger.Error().Err(err).Str("group_id", groupID.String()).Msg("error querying shared subscriptions for orphaned splits")
		return
	}

	for _, doc := range docs {
		var shared models.SharedSubscription
		if err := doc.Decode(&shared); err != nil {
			logger.Error().Err(err).Str("shared_id", doc.ID.String()).Msg("error decoding shared subscription")
			continue
		}
		if _, ok := shared.SplitFor(removed); !ok || shared.NeedsResplit {
			continue
		}
		shared.NeedsResplit = true
		if err := m.store.Update(ctx, ledger.CollectionSharedSubscriptions, doc.ID, doc.Revision, shared); err != nil {
			logger.Warn().Err(err).Str("shared_id", doc.ID.String()).Msg("error flagging shared subscription for re-split")
		}
	}
}
