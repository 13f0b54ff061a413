package policy

import (
	"errors"
	"testing"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/errorutil"
)

func strPtr(s string) *string { return &s }

func ticketOwnedBy(creator string) *domain.Ticket {
	return &domain.Ticket{ID: "t1", CreatedBy: creator}
}

func ticketAssignedTo(creator, assignee string) *domain.Ticket {
	ticket := ticketOwnedBy(creator)
	ticket.AssignedTo = strPtr(assignee)
	return ticket
}

func TestForActorScope(t *testing.T) {
	userScope := ForActor(domain.Actor{ID: "u1", Role: domain.RoleUser}).Scope()
	if userScope.CreatedBy == nil || *userScope.CreatedBy != "u1" {
		t.Errorf("user scope = %+v, want createdBy=u1", userScope)
	}
	if userScope.AssignedToOrUnassigned != nil {
		t.Errorf("user scope must not carry an assignment predicate")
	}

	supportScope := ForActor(domain.Actor{ID: "agent1", Role: domain.RoleSupport}).Scope()
	if supportScope.AssignedToOrUnassigned == nil || *supportScope.AssignedToOrUnassigned != "agent1" {
		t.Errorf("support scope = %+v, want assignedToOrUnassigned=agent1", supportScope)
	}

	adminScope := ForActor(domain.Actor{ID: "a1", Role: domain.RoleAdmin}).Scope()
	if adminScope.CreatedBy != nil || adminScope.AssignedToOrUnassigned != nil {
		t.Errorf("admin scope must be unrestricted, got %+v", adminScope)
	}
}

func TestUnknownRoleFallsBackToOwnerScope(t *testing.T) {
	pol := ForActor(domain.Actor{ID: "x", Role: domain.Role("superuser")})
	if err := pol.CanView(ticketOwnedBy("someone-else")); !apperrors.IsForbidden(err) {
		t.Fatalf("unknown role must get the most restrictive policy, got %v", err)
	}
	if err := pol.CanDelete(); !apperrors.IsForbidden(err) {
		t.Fatalf("unknown role must not delete, got %v", err)
	}
}

func TestCanViewMatrix(t *testing.T) {
	user := domain.Actor{ID: "u1", Role: domain.RoleUser}
	support := domain.Actor{ID: "agent1", Role: domain.RoleSupport}
	admin := domain.Actor{ID: "a1", Role: domain.RoleAdmin}

	cases := []struct {
		name   string
		actor  domain.Actor
		ticket *domain.Ticket
		allow  bool
	}{
		{"user own ticket", user, ticketOwnedBy("u1"), true},
		{"user foreign ticket", user, ticketOwnedBy("u2"), false},
		{"user own but assigned elsewhere", user, ticketAssignedTo("u1", "agent1"), true},
		{"support unassigned", support, ticketOwnedBy("u2"), true},
		{"support own queue", support, ticketAssignedTo("u2", "agent1"), true},
		{"support foreign queue", support, ticketAssignedTo("u2", "agent2"), false},
		{"support own authored foreign queue", support, ticketAssignedTo("agent1", "agent2"), false},
		{"admin anything", admin, ticketAssignedTo("u2", "agent2"), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ForActor(tc.actor).CanView(tc.ticket)
			if tc.allow && err != nil {
				t.Fatalf("want allowed, got %v", err)
			}
			if !tc.allow && !apperrors.IsForbidden(err) {
				t.Fatalf("want forbidden, got %v", err)
			}
		})
	}
}

func TestCanMutateAssignment(t *testing.T) {
	own := ticketOwnedBy("u1")
	touching := Change{TouchesAssignment: true}

	err := ForActor(domain.Actor{ID: "u1", Role: domain.RoleUser}).CanMutate(own, touching)
	if !apperrors.IsForbidden(err) {
		t.Fatalf("user assignment: want forbidden, got %v", err)
	}
	var derr *apperrors.DomainError
	if !errors.As(err, &derr) || derr.Message != "only admins and support agents can assign tickets" {
		t.Fatalf("unexpected message: %v", err)
	}

	// plain field edits on own tickets stay allowed
	if err := ForActor(domain.Actor{ID: "u1", Role: domain.RoleUser}).CanMutate(own, Change{}); err != nil {
		t.Fatalf("user edit of own ticket: %v", err)
	}

	if err := ForActor(domain.Actor{ID: "agent1", Role: domain.RoleSupport}).CanMutate(own, touching); err != nil {
		t.Fatalf("support assignment of unassigned ticket: %v", err)
	}
	if err := ForActor(domain.Actor{ID: "a1", Role: domain.RoleAdmin}).CanMutate(own, touching); err != nil {
		t.Fatalf("admin assignment: %v", err)
	}
}

func TestSupportWritesFollowReads(t *testing.T) {
	pol := ForActor(domain.Actor{ID: "agent1", Role: domain.RoleSupport})
	foreign := ticketAssignedTo("u1", "agent2")

	if err := pol.CanMutate(foreign, Change{}); !apperrors.IsForbidden(err) {
		t.Fatalf("want forbidden write outside scope, got %v", err)
	}
	if err := pol.CanMutate(ticketAssignedTo("u1", "agent1"), Change{TouchesAssignment: true}); err != nil {
		t.Fatalf("reassignment of own queue ticket: %v", err)
	}
}

func TestCanDelete(t *testing.T) {
	if err := ForActor(domain.Actor{ID: "a1", Role: domain.RoleAdmin}).CanDelete(); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
	for _, role := range []domain.Role{domain.RoleUser, domain.RoleSupport} {
		err := ForActor(domain.Actor{ID: "x", Role: role}).CanDelete()
		if !apperrors.IsForbidden(err) {
			t.Fatalf("%s delete: want forbidden, got %v", role, err)
		}
		var derr *apperrors.DomainError
		if !errors.As(err, &derr) || derr.Message != "only admins can delete tickets" {
			t.Fatalf("unexpected message: %v", err)
		}
	}
}
