package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/cache"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/policy"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/errorutil"
)

const (
	maxTitleLen       = 200
	maxDescriptionLen = 2000
	maxCommentLen     = 1000
	defaultPageLimit  = 10
	maxPageLimit      = 100
)

// Clock abstracts "now" so resolution stamps and updatedAt are
// deterministic under test.
type Clock func() time.Time

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets    repository.TicketRepository
	users      repository.UserRepository
	stats      *cache.StatsCache
	dispatcher events.Dispatcher
	clock      Clock
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	UserRepo   repository.UserRepository
	StatsCache *cache.StatsCache
	Dispatcher events.Dispatcher
	Clock      Clock
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		users:      deps.UserRepo,
		stats:      deps.StatsCache,
		dispatcher: deps.Dispatcher,
		clock:      clock,
	}
}

// TicketCreateInput describes the ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Priority    domain.TicketPriority
	Category    domain.TicketCategory
	Tags        []string
}

// TicketUpdateInput describes a partial update. Nil fields are left
// untouched. AssignedToSet distinguishes "assignedTo absent" from
// "assignedTo: null", which clears the assignment.
type TicketUpdateInput struct {
	Title         *string
	Description   *string
	Priority      *domain.TicketPriority
	Status        *domain.TicketStatus
	Category      *domain.TicketCategory
	Tags          *[]string
	AssignedTo    *string
	AssignedToSet bool
}

// TicketListQuery captures list filters and the pagination window.
// Enum fields hold the raw request values and are validated here.
type TicketListQuery struct {
	Status   string
	Priority string
	Category string
	Page     int
	Limit    int
}

// Pagination is the list metadata returned alongside a page.
type Pagination struct {
	Page  int
	Limit int
	Total int
	Pages int
}

// UserRefs resolves user ids referenced by tickets for read-time
// population of creator/assignee/assigner and comment authors.
type UserRefs map[string]domain.User

// DashboardStats aggregates ticket counts under the actor's scope.
type DashboardStats struct {
	Total             int                        `json:"total"`
	Open              int                        `json:"open"`
	InProgress        int                        `json:"in_progress"`
	StatusBreakdown   []repository.StatusCount   `json:"status_breakdown"`
	PriorityBreakdown []repository.PriorityCount `json:"priority_breakdown"`
}

// CreateTicket validates input and creates a ticket owned by the actor.
func (s *TicketService) CreateTicket(ctx context.Context, actor domain.Actor, input TicketCreateInput) (*domain.Ticket, UserRefs, error) {
	details := map[string]any{}

	title := strings.TrimSpace(input.Title)
	if n := utf8.RuneCountInString(title); n < 1 || n > maxTitleLen {
		details["title"] = "title is required and must be at most 200 characters"
	}
	description := strings.TrimSpace(input.Description)
	if n := utf8.RuneCountInString(description); n < 1 || n > maxDescriptionLen {
		details["description"] = "description is required and must be at most 2000 characters"
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	} else if !priority.Valid() {
		details["priority"] = "invalid priority"
	}
	category := input.Category
	if category == "" {
		category = domain.TicketCategoryGeneral
	} else if !category.Valid() {
		details["category"] = "invalid category"
	}
	if len(details) > 0 {
		return nil, nil, apperrors.NewValidationError("validation error", details)
	}

	now := s.clock()
	ticket := &domain.Ticket{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		Priority:    priority,
		Status:      domain.TicketStatusOpen,
		Category:    category,
		CreatedBy:   actor.ID,
		Tags:        trimTags(input.Tags),
		Comments:    []domain.Comment{},
		Attachments: []domain.Attachment{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	s.invalidateStats(ctx)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    actor,
		Payload: events.TicketCreatedPayload{
			Title:    ticket.Title,
			Priority: ticket.Priority,
			Category: ticket.Category,
		},
	})

	refs, err := s.resolveUsers(ctx, ticket)
	if err != nil {
		return nil, nil, err
	}
	return ticket, refs, nil
}

// ListTickets returns the actor-visible page matching the query.
func (s *TicketService) ListTickets(ctx context.Context, actor domain.Actor, query TicketListQuery) ([]domain.Ticket, UserRefs, Pagination, error) {
	filter, page, limit, err := s.buildListFilter(actor, query)
	if err != nil {
		return nil, nil, Pagination{}, err
	}

	total, err := s.tickets.Count(ctx, filter)
	if err != nil {
		return nil, nil, Pagination{}, apperrors.MapError(err)
	}

	filter.Limit = limit
	filter.Offset = (page - 1) * limit
	tickets, err := s.tickets.List(ctx, filter)
	if err != nil {
		return nil, nil, Pagination{}, apperrors.MapError(err)
	}

	meta := Pagination{
		Page:  page,
		Limit: limit,
		Total: total,
		Pages: (total + limit - 1) / limit,
	}

	refs, err := s.resolveUsers(ctx, ticketPtrs(tickets)...)
	if err != nil {
		return nil, nil, Pagination{}, err
	}
	return tickets, refs, meta, nil
}

// GetTicket fetches a single ticket the actor is allowed to see.
// Existence is checked before authorization, so a missing ticket is
// NotFound even for actors who could never see it.
func (s *TicketService) GetTicket(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, UserRefs, error) {
	ticket, err := s.fetch(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}
	if err := policy.ForActor(actor).CanView(ticket); err != nil {
		return nil, nil, err
	}
	refs, err := s.resolveUsers(ctx, ticket)
	if err != nil {
		return nil, nil, err
	}
	return ticket, refs, nil
}

// UpdateTicket applies a partial update. Title, description, priority,
// category and tags go through the generic path; status transitions
// stamp actualResolutionTime on entering resolved/closed; assignment
// maintains assignedBy and is restricted to support and admin actors.
func (s *TicketService) UpdateTicket(ctx context.Context, actor domain.Actor, ticketID string, input TicketUpdateInput) (*domain.Ticket, UserRefs, error) {
	if err := validateUpdateInput(input); err != nil {
		return nil, nil, err
	}

	ticket, err := s.fetch(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}

	pol := policy.ForActor(actor)
	change := policy.Change{TouchesAssignment: input.AssignedToSet}
	if err := pol.CanMutate(ticket, change); err != nil {
		return nil, nil, err
	}

	var changedFields []string
	if input.Title != nil {
		ticket.Title = strings.TrimSpace(*input.Title)
		changedFields = append(changedFields, "title")
	}
	if input.Description != nil {
		ticket.Description = strings.TrimSpace(*input.Description)
		changedFields = append(changedFields, "description")
	}
	if input.Priority != nil {
		ticket.Priority = *input.Priority
		changedFields = append(changedFields, "priority")
	}
	if input.Category != nil {
		ticket.Category = *input.Category
		changedFields = append(changedFields, "category")
	}
	if input.Tags != nil {
		ticket.Tags = trimTags(*input.Tags)
		changedFields = append(changedFields, "tags")
	}

	now := s.clock()

	var statusChange *events.TicketStatusChangedPayload
	if input.Status != nil && *input.Status != ticket.Status {
		statusChange = &events.TicketStatusChangedPayload{
			OldStatus: ticket.Status,
			NewStatus: *input.Status,
		}
		ticket.Status = *input.Status
		if ticket.Status == domain.TicketStatusResolved || ticket.Status == domain.TicketStatusClosed {
			stamp := now
			ticket.ActualResolutionTime = &stamp
		}
		changedFields = append(changedFields, "status")
	}

	var assignChange *events.TicketAssignedPayload
	if input.AssignedToSet {
		if input.AssignedTo != nil {
			assignee := *input.AssignedTo
			assigner := actor.ID
			ticket.AssignedTo = &assignee
			ticket.AssignedBy = &assigner
		} else {
			ticket.AssignedTo = nil
			ticket.AssignedBy = nil
		}
		assignChange = &events.TicketAssignedPayload{
			AssignedTo: ticket.AssignedTo,
			AssignedBy: ticket.AssignedBy,
		}
		changedFields = append(changedFields, "assigned_to")
	}

	ticket.UpdatedAt = now
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, nil, s.mapTicketErr(err, ticketID)
	}
	s.invalidateStats(ctx)

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketUpdated,
		TicketID: ticket.ID,
		Actor:    actor,
		Payload:  events.TicketUpdatedPayload{Fields: changedFields},
	})
	if statusChange != nil {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketStatusChanged,
			TicketID: ticket.ID,
			Actor:    actor,
			Payload:  *statusChange,
		})
	}
	if assignChange != nil {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketAssigned,
			TicketID: ticket.ID,
			Actor:    actor,
			Payload:  *assignChange,
		})
	}

	refs, err := s.resolveUsers(ctx, ticket)
	if err != nil {
		return nil, nil, err
	}
	return ticket, refs, nil
}

// AddComment appends a comment to a ticket the actor can see.
func (s *TicketService) AddComment(ctx context.Context, actor domain.Actor, ticketID, content string) (*domain.Ticket, UserRefs, error) {
	content = strings.TrimSpace(content)
	if n := utf8.RuneCountInString(content); n < 1 || n > maxCommentLen {
		return nil, nil, apperrors.NewValidationError("validation error", map[string]any{
			"content": "comment content is required and must be at most 1000 characters",
		})
	}

	ticket, err := s.fetch(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}
	if err := policy.ForActor(actor).CanView(ticket); err != nil {
		return nil, nil, err
	}

	now := s.clock()
	comment := domain.Comment{
		ID:        uuid.NewString(),
		AuthorID:  actor.ID,
		Content:   content,
		CreatedAt: now,
	}
	ticket.Comments = append(ticket.Comments, comment)
	ticket.UpdatedAt = now

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, nil, s.mapTicketErr(err, ticketID)
	}
	s.invalidateStats(ctx)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCommentAdded,
		TicketID: ticket.ID,
		Actor:    actor,
		Payload: events.TicketCommentAddedPayload{
			CommentID:   comment.ID,
			AuthorID:    comment.AuthorID,
			BodyPreview: preview(comment.Content, 120),
		},
	})

	refs, err := s.resolveUsers(ctx, ticket)
	if err != nil {
		return nil, nil, err
	}
	return ticket, refs, nil
}

// DeleteTicket hard-deletes a ticket. Admin only; the aggregate's
// embedded comments and attachments go with it.
func (s *TicketService) DeleteTicket(ctx context.Context, actor domain.Actor, ticketID string) error {
	ticket, err := s.fetch(ctx, ticketID)
	if err != nil {
		return err
	}
	if err := policy.ForActor(actor).CanDelete(); err != nil {
		return err
	}
	if err := s.tickets.Delete(ctx, ticketID); err != nil {
		return s.mapTicketErr(err, ticketID)
	}
	s.invalidateStats(ctx)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketDeleted,
		TicketID: ticket.ID,
		Actor:    actor,
	})
	return nil
}

// DashboardStats aggregates counts under the actor's visibility scope.
// Breakdown slices list only values actually present.
func (s *TicketService) DashboardStats(ctx context.Context, actor domain.Actor) (*DashboardStats, error) {
	scope := policy.ForActor(actor).Scope()
	scopeKey := statsScopeKey(scope)

	var cached DashboardStats
	if s.stats.Get(ctx, scopeKey, &cached) {
		return &cached, nil
	}

	total, err := s.tickets.Count(ctx, repository.TicketFilter{Scope: scope})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	open := domain.TicketStatusOpen
	openCount, err := s.tickets.Count(ctx, repository.TicketFilter{Scope: scope, Status: &open})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	inProgress := domain.TicketStatusInProgress
	inProgressCount, err := s.tickets.Count(ctx, repository.TicketFilter{Scope: scope, Status: &inProgress})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	statusBreakdown, err := s.tickets.CountByStatus(ctx, scope)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	priorityBreakdown, err := s.tickets.CountByPriority(ctx, scope)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	stats := &DashboardStats{
		Total:             total,
		Open:              openCount,
		InProgress:        inProgressCount,
		StatusBreakdown:   statusBreakdown,
		PriorityBreakdown: priorityBreakdown,
	}
	_ = s.stats.Set(ctx, scopeKey, stats)
	return stats, nil
}

func (s *TicketService) buildListFilter(actor domain.Actor, query TicketListQuery) (repository.TicketFilter, int, int, error) {
	details := map[string]any{}

	filter := repository.TicketFilter{Scope: policy.ForActor(actor).Scope()}
	if query.Status != "" {
		status := domain.TicketStatus(query.Status)
		if !status.Valid() {
			details["status"] = "invalid status"
		}
		filter.Status = &status
	}
	if query.Priority != "" {
		priority := domain.TicketPriority(query.Priority)
		if !priority.Valid() {
			details["priority"] = "invalid priority"
		}
		filter.Priority = &priority
	}
	if query.Category != "" {
		category := domain.TicketCategory(query.Category)
		if !category.Valid() {
			details["category"] = "invalid category"
		}
		filter.Category = &category
	}

	page := query.Page
	if page == 0 {
		page = 1
	}
	if page < 1 {
		details["page"] = "page must be at least 1"
	}
	limit := query.Limit
	if limit == 0 {
		limit = defaultPageLimit
	}
	if limit < 1 || limit > maxPageLimit {
		details["limit"] = "limit must be between 1 and 100"
	}

	if len(details) > 0 {
		return repository.TicketFilter{}, 0, 0, apperrors.NewValidationError("validation error", details)
	}
	return filter, page, limit, nil
}

func validateUpdateInput(input TicketUpdateInput) error {
	details := map[string]any{}

	if input.Title != nil {
		if n := utf8.RuneCountInString(strings.TrimSpace(*input.Title)); n < 1 || n > maxTitleLen {
			details["title"] = "title must be between 1 and 200 characters"
		}
	}
	if input.Description != nil {
		if n := utf8.RuneCountInString(strings.TrimSpace(*input.Description)); n < 1 || n > maxDescriptionLen {
			details["description"] = "description must be between 1 and 2000 characters"
		}
	}
	if input.Priority != nil && !input.Priority.Valid() {
		details["priority"] = "invalid priority"
	}
	if input.Status != nil && !input.Status.Valid() {
		details["status"] = "invalid status"
	}
	if input.Category != nil && !input.Category.Valid() {
		details["category"] = "invalid category"
	}

	if len(details) > 0 {
		return apperrors.NewValidationError("validation error", details)
	}
	return nil
}

func (s *TicketService) fetch(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, s.mapTicketErr(err, ticketID)
	}
	return ticket, nil
}

func (s *TicketService) mapTicketErr(err error, ticketID string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	return apperrors.MapError(err)
}

// resolveUsers performs the read-time join of every user reference on
// the given tickets. Denormalized identity is never persisted.
func (s *TicketService) resolveUsers(ctx context.Context, tickets ...*domain.Ticket) (UserRefs, error) {
	seen := map[string]struct{}{}
	var ids []string
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	for _, ticket := range tickets {
		add(ticket.CreatedBy)
		if ticket.AssignedTo != nil {
			add(*ticket.AssignedTo)
		}
		if ticket.AssignedBy != nil {
			add(*ticket.AssignedBy)
		}
		for _, comment := range ticket.Comments {
			add(comment.AuthorID)
		}
	}

	users, err := s.users.ListByIDs(ctx, ids)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	refs := make(UserRefs, len(users))
	for _, user := range users {
		refs[user.ID] = user
	}
	return refs, nil
}

func (s *TicketService) invalidateStats(ctx context.Context) {
	_ = s.stats.Invalidate(ctx)
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.clock()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func statsScopeKey(scope repository.TicketScope) string {
	switch {
	case scope.CreatedBy != nil:
		return "user:" + *scope.CreatedBy
	case scope.AssignedToOrUnassigned != nil:
		return "support:" + *scope.AssignedToOrUnassigned
	default:
		return "all"
	}
}

func trimTags(tags []string) []string {
	cleaned := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag != "" {
			cleaned = append(cleaned, tag)
		}
	}
	return cleaned
}

func ticketPtrs(tickets []domain.Ticket) []*domain.Ticket {
	ptrs := make([]*domain.Ticket, len(tickets))
	for i := range tickets {
		ptrs[i] = &tickets[i]
	}
	return ptrs
}

func preview(body string, max int) string {
	if utf8.RuneCountInString(body) <= max {
		return body
	}
	runes := []rune(body)
	return string(runes[:max-3]) + "..."
}
