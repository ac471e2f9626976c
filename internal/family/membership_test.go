package family

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/subtrack/family-services/ledger/memory"
	"github.com/subtrack/family-services/models"
)

var (
	alice = Identity{ID: "user-alice", Name: "Alice Smith", Email: "alice@example.com"}
	bob   = Identity{ID: "user-bob", Name: "Bob Smith", Email: "bob@example.com"}
	carol = Identity{ID: "user-carol", Name: "Carol Jones", Email: "carol@example.com"}
)

func newTestManager() (*MembershipManager, *memory.Store) {
	store := memory.NewStore()
	return NewMembershipManager(store), store
}

// joinGroup runs the full invite/accept flow for a user.
func joinGroup(t *testing.T, m *MembershipManager, groupID uuid.UUID, inviter, joiner Identity) *models.FamilyGroup {
	t.Helper()
	invitation, err := m.InviteMember(context.Background(), groupID, inviter, joiner.Email)
	assert.NoError(t, err, "should create invitation without error")
	group, err := m.RespondToInvitation(context.Background(), invitation.ID, joiner, true)
	assert.NoError(t, err, "should accept invitation without error")
	return group
}

func TestCreateGroup(t *testing.T) {
	m, _ := newTestManager()

	group, err := m.CreateGroup(context.Background(), alice, "  Smiths  ")
	assert.NoError(t, err)
	assert.Equal(t, "Smiths", group.Name, "group name should be trimmed")
	assert.Equal(t, alice.ID, group.CreatedBy)
	assert.Len(t, group.Members, 1)
	assert.Equal(t, models.RoleAdmin, group.Members[0].Role, "creator should be admin")
	assert.ElementsMatch(t, models.AdminPermissions(), group.Members[0].Permissions)
	assert.Equal(t, []string{alice.ID}, group.MemberIDs)

	// Persisted copy matches.
	stored, err := m.GetGroup(context.Background(), group.ID)
	assert.NoError(t, err)
	assert.Equal(t, group.Name, stored.Name)
	assert.Equal(t, group.MemberIDs, stored.MemberIDs)
}

func TestCreateGroupEmptyName(t *testing.T) {
	m, _ := newTestManager()

	_, err := m.CreateGroup(context.Background(), alice, "   ")
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "name", validationErr.Field)
}

func TestInviteMember(t *testing.T) {
	m, _ := newTestManager()
	group, _ := m.CreateGroup(context.Background(), alice, "Smiths")

	invitation, err := m.InviteMember(context.Background(), group.ID, alice, "Bob@Example.COM")
	assert.NoError(t, err)
	assert.Equal(t, "bob@example.com", invitation.InvitedEmail, "invited email should be lower-cased")
	assert.Equal(t, models.InvitationPending, invitation.Status)
	assert.Equal(t, group.Name, invitation.FamilyGroupName)
	assert.Equal(t, alice.ID, invitation.InvitedBy)

	// Duplicate pending invitation for the same email is rejected.
	_, err = m.InviteMember(context.Background(), group.ID, alice, "bob@example.com")
	var conflictErr *ConflictError
	assert.ErrorAs(t, err, &conflictErr)

	// Visible to the invitee by email lookup.
	pending, err := m.PendingInvitations(context.Background(), "BOB@example.com")
	assert.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestInviteMemberRequiresInvitePermission(t *testing.T) {
	m, _ := newTestManager()
	group, _ := m.CreateGroup(context.Background(), alice, "Smiths")
	joinGroup(t, m, group.ID, alice, bob)

	// Bob is a plain member with view only.
	_, err := m.InviteMember(context.Background(), group.ID, bob, "carol@example.com")
	var permErr *PermissionError
	assert.ErrorAs(t, err, &permErr)
	assert.Equal(t, models.PermissionInvite, permErr.Permission)
}

func TestInviteMemberRejectsBadEmail(t *testing.T) {
	m, _ := newTestManager()
	group, _ := m.CreateGroup(context.Background(), alice, "Smiths")

	_, err := m.InviteMember(context.Background(), group.ID, alice, "not-an-email")
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestRespondToInvitationAccept(t *testing.T) {
	m, _ := newTestManager()
	group, _ := m.CreateGroup(context.Background(), alice, "Smiths")

	invitation, _ := m.InviteMember(context.Background(), group.ID, alice, bob.Email)
	updated, err := m.RespondToInvitation(context.Background(), invitation.ID, bob, true)
	assert.NoError(t, err)
	assert.Len(t, updated.Members, 2)

	member, ok := updated.MemberByID(bob.ID)
	assert.True(t, ok)
	assert.Equal(t, models.RoleMember, member.Role)
	assert.Equal(t, models.MemberPermissions(), member.Permissions)
	assert.ElementsMatch(t, []string{alice.ID, bob.ID}, updated.MemberIDs,
		"memberIds index should stay in sync with members")
}

func TestRespondToInvitationEmailMismatch(t *testing.T) {
	m, _ := newTestManager()
	group, _ := m.CreateGroup(context.Background(), alice, "Smiths")

	invitation, _ := m.InviteMember(context.Background(), group.ID, alice, bob.Email)
	_, err := m.RespondToInvitation(context.Background(), invitation.ID, carol, true)
	var authErr *AuthorizationError
	assert.ErrorAs(t, err, &authErr)
}

func TestRespondToInvitationTerminal(t *testing.T) {
	m, _ := newTestManager()
	group, _ := m.CreateGroup(context.Background(), alice, "Smiths")

	invitation, _ := m.InviteMember(context.Background(), group.ID, alice, bob.Email)
	_, err := m.RespondToInvitation(context.Background(), invitation.ID, bob, true)
	assert.NoError(t, err)

	// Re-responding to a terminal invitation is a conflict, and the roster
	// keeps exactly one entry for the responder.
	_, err = m.RespondToInvitation(context.Background(), invitation.ID, bob, true)
	var conflictErr *ConflictError
	assert.ErrorAs(t, err, &conflictErr)

	updated, _ := m.GetGroup(context.Background(), group.ID)
	count := 0
	for _, member := range updated.Members {
		if member.ID == bob.ID {
			count++
		}
	}
	assert.Equal(t, 1, count, "accepting twice must not duplicate the member")
}

func TestRespondToInvitationDecline(t *testing.T) {
	m, _ := newTestManager()
	group, _ := m.CreateGroup(context.Background(), alice, "Smiths")

	invitation, _ := m.InviteMember(context.Background(), group.ID, alice, bob.Email)
	result, err := m.RespondToInvitation(context.Background(), invitation.ID, bob, false)
	assert.NoError(t, err)
	assert.Nil(t, result)

	updated, _ := m.GetGroup(context.Background(), group.ID)
	assert.Len(t, updated.Members, 1, "declining should not touch the roster")

	_, err = m.RespondToInvitation(context.Background(), invitation.ID, bob, true)
	var conflictErr *ConflictError
	assert.ErrorAs(t, err, &conflictErr, "declined invitations are terminal")
}

func TestGroupForUser(t *testing.T) {
	m, _ := newTestManager()
	group, _ := m.CreateGroup(context.Background(), alice, "Smiths")
	joinGroup(t, m, group.ID, alice, bob)

	found, err := m.GroupForUser(context.Background(), bob.ID)
	assert.NoError(t, err)
	assert.Equal(t, group.ID, found.ID)

	_, err = m.GroupForUser(context.Background(), carol.ID)
	var notFoundErr *NotFoundError
	assert.ErrorAs(t, err, &notFoundErr)
}

func TestRemoveMember(t *testing.T) {
	m, _ := newTestManager()
	group, _ := m.CreateGroup(context.Background(), alice, "Smiths")
	joinGroup(t, m, group.ID, alice, bob)

	updated, err := m.RemoveMember(context.Background(), group.ID, alice.ID, bob.ID)
	assert.NoError(t, err)
	assert.Len(t, updated.Members, 1)
	assert.Equal(t, []string{alice.ID}, updated.MemberIDs)
}

func TestRemoveMemberRequiresDeletePermission(t *testing.T) {
	m, _ := newTestManager()
	group, _ := m.CreateGroup(context.Background(), alice, "Smiths")
	joinGroup(t, m, group.ID, alice, bob)

	_, err := m.RemoveMember(context.Background(), group.ID, bob.ID, alice.ID)
	var permErr *PermissionError
	assert.ErrorAs(t, err, &permErr)
}

func TestRemoveMemberLastAdmin(t *testing.T) {
	m, _ := newTestManager()
	group, _ := m.CreateGroup(context.Background(), alice, "Smiths")
	joinGroup(t, m, group.ID, alice, bob)

	_, err := m.RemoveMember(context.Background(), group.ID, alice.ID, alice.ID)
	var invariantErr *InvariantViolation
	assert.ErrorAs(t, err, &invariantErr)

	// Group unchanged after the rejected removal.
	unchanged, _ := m.GetGroup(context.Background(), group.ID)
	assert.Len(t, unchanged.Members, 2)
	assert.Equal(t, 1, unchanged.AdminCount())
}

func TestChangeRole(t *testing.T) {
	m, _ := newTestManager()
	group, _ := m.CreateGroup(context.Background(), alice, "Smiths")
	joinGroup(t, m, group.ID, alice, bob)

	updated, err := m.ChangeRole(context.Background(), group.ID, alice.ID, bob.ID, models.RoleAdmin)
	assert.NoError(t, err)
	member, _ := updated.MemberByID(bob.ID)
	assert.Equal(t, models.RoleAdmin, member.Role)
	assert.ElementsMatch(t, models.AdminPermissions(), member.Permissions,
		"admin role implies the full permission set")

	// Now alice can be demoted since bob is also an admin.
	updated, err = m.ChangeRole(context.Background(), group.ID, bob.ID, alice.ID, models.RoleMember)
	assert.NoError(t, err)
	member, _ = updated.MemberByID(alice.ID)
	assert.Equal(t, models.RoleMember, member.Role)
	assert.Equal(t, models.MemberPermissions(), member.Permissions)
}

func TestChangeRoleLastAdmin(t *testing.T) {
	m, _ := newTestManager()
	group, _ := m.CreateGroup(context.Background(), alice, "Smiths")
	joinGroup(t, m, group.ID, alice, bob)

	_, err := m.ChangeRole(context.Background(), group.ID, alice.ID, alice.ID, models.RoleMember)
	var invariantErr *InvariantViolation
	assert.ErrorAs(t, err, &invariantErr)
}

func TestChangeRoleRequiresAdmin(t *testing.T) {
	m, _ := newTestManager()
	group, _ := m.CreateGroup(context.Background(), alice, "Smiths")
	joinGroup(t, m, group.ID, alice, bob)

	_, err := m.ChangeRole(context.Background(), group.ID, bob.ID, bob.ID, models.RoleAdmin)
	var permErr *PermissionError
	assert.ErrorAs(t, err, &permErr)
}
