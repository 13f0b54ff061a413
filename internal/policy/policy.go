// Package policy maps an actor's role to its ticket capabilities: the
// visibility scope and the mutation rights. Every operation consults one
// of these capability sets instead of branching on the role inline.
package policy

import (
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/errorutil"
)

// Change describes the parts of a proposed mutation the policy cares
// about. TouchesAssignment is true when the request carries assignedTo,
// whether it sets or clears it.
type Change struct {
	TouchesAssignment bool
}

// Policy is one role's capability set.
type Policy interface {
	// Scope returns the visibility predicate applied to lists, counts
	// and single-ticket reads.
	Scope() repository.TicketScope
	// CanView gates single-ticket reads and comment appends.
	CanView(ticket *domain.Ticket) error
	// CanMutate gates updates. The same visibility predicate governs
	// reads and writes for support and admin.
	CanMutate(ticket *domain.Ticket, change Change) error
	// CanDelete gates hard deletes.
	CanDelete() error
}

// ForActor selects the capability set for the actor's role. Unknown
// roles get the most restrictive set.
func ForActor(actor domain.Actor) Policy {
	switch actor.Role {
	case domain.RoleAdmin:
		return adminPolicy{}
	case domain.RoleSupport:
		return supportPolicy{actorID: actor.ID}
	default:
		return userPolicy{actorID: actor.ID}
	}
}

type userPolicy struct {
	actorID string
}

func (p userPolicy) Scope() repository.TicketScope {
	id := p.actorID
	return repository.TicketScope{CreatedBy: &id}
}

func (p userPolicy) CanView(ticket *domain.Ticket) error {
	if !p.Scope().Matches(ticket) {
		return apperrors.NewForbidden("access denied")
	}
	return nil
}

func (p userPolicy) CanMutate(ticket *domain.Ticket, change Change) error {
	if err := p.CanView(ticket); err != nil {
		return err
	}
	if change.TouchesAssignment {
		return apperrors.NewForbidden("only admins and support agents can assign tickets")
	}
	return nil
}

func (p userPolicy) CanDelete() error {
	return apperrors.NewForbidden("only admins can delete tickets")
}

type supportPolicy struct {
	actorID string
}

func (p supportPolicy) Scope() repository.TicketScope {
	// Own queue plus the unassigned pool.
	id := p.actorID
	return repository.TicketScope{AssignedToOrUnassigned: &id}
}

func (p supportPolicy) CanView(ticket *domain.Ticket) error {
	if !p.Scope().Matches(ticket) {
		return apperrors.NewForbidden("access denied")
	}
	return nil
}

func (p supportPolicy) CanMutate(ticket *domain.Ticket, change Change) error {
	return p.CanView(ticket)
}

func (p supportPolicy) CanDelete() error {
	return apperrors.NewForbidden("only admins can delete tickets")
}

type adminPolicy struct{}

func (adminPolicy) Scope() repository.TicketScope {
	return repository.TicketScope{}
}

func (adminPolicy) CanView(*domain.Ticket) error {
	return nil
}

func (adminPolicy) CanMutate(*domain.Ticket, Change) error {
	return nil
}

func (adminPolicy) CanDelete() error {
	return nil
}
