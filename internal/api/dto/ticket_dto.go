package dto

import (
	"encoding/json"
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

// OptionalString distinguishes an absent JSON field from an explicit
// null. Needed for assignedTo, where null clears the assignment.
type OptionalString struct {
	Set   bool
	Value *string
}

// UnmarshalJSON marks the field present and records the value, leaving
// Value nil for an explicit null.
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    string   `json:"priority"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
}

// UpdateTicketRequest payload. Nil fields are untouched.
type UpdateTicketRequest struct {
	Title       *string        `json:"title"`
	Description *string        `json:"description"`
	Priority    *string        `json:"priority"`
	Status      *string        `json:"status"`
	Category    *string        `json:"category"`
	Tags        *[]string      `json:"tags"`
	AssignedTo  OptionalString `json:"assigned_to"`
}

// AddCommentRequest payload.
type AddCommentRequest struct {
	Content string `json:"content"`
}

// UserRef is the denormalized identity attached to ticket references at
// read time.
type UserRef struct {
	ID    string      `json:"id"`
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

// CommentResponse is one thread entry with its author populated.
type CommentResponse struct {
	ID        string    `json:"id"`
	Author    *UserRef  `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// AttachmentResponse metadata.
type AttachmentResponse struct {
	Filename   string    `json:"filename"`
	URL        string    `json:"url"`
	UploadedBy *UserRef  `json:"uploaded_by"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// TicketResponse is the full ticket with user references populated.
type TicketResponse struct {
	ID                   string                `json:"id"`
	Title                string                `json:"title"`
	Description          string                `json:"description"`
	Priority             domain.TicketPriority `json:"priority"`
	Status               domain.TicketStatus   `json:"status"`
	Category             domain.TicketCategory `json:"category"`
	CreatedBy            *UserRef              `json:"created_by"`
	AssignedTo           *UserRef              `json:"assigned_to"`
	AssignedBy           *UserRef              `json:"assigned_by"`
	Tags                 []string              `json:"tags"`
	Comments             []CommentResponse     `json:"comments"`
	Attachments          []AttachmentResponse  `json:"attachments"`
	ActualResolutionTime *time.Time            `json:"actual_resolution_time"`
	CreatedAt            time.Time             `json:"created_at"`
	UpdatedAt            time.Time             `json:"updated_at"`
}

// PaginationMeta describes the returned page.
type PaginationMeta struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// StatusCountResponse is one dashboard breakdown entry.
type StatusCountResponse struct {
	Status domain.TicketStatus `json:"status"`
	Count  int                 `json:"count"`
}

// PriorityCountResponse is one dashboard breakdown entry.
type PriorityCountResponse struct {
	Priority domain.TicketPriority `json:"priority"`
	Count    int                   `json:"count"`
}

// DashboardStatsResponse carries the role-scoped counters.
type DashboardStatsResponse struct {
	Total             int                     `json:"total"`
	Open              int                     `json:"open"`
	InProgress        int                     `json:"in_progress"`
	StatusBreakdown   []StatusCountResponse   `json:"status_breakdown"`
	PriorityBreakdown []PriorityCountResponse `json:"priority_breakdown"`
}

// NewTicketResponse builds a populated ticket response from the domain
// aggregate and the resolved user references.
func NewTicketResponse(ticket *domain.Ticket, refs service.UserRefs) TicketResponse {
	comments := make([]CommentResponse, 0, len(ticket.Comments))
	for _, comment := range ticket.Comments {
		comments = append(comments, CommentResponse{
			ID:        comment.ID,
			Author:    userRef(refs, comment.AuthorID),
			Content:   comment.Content,
			CreatedAt: comment.CreatedAt,
		})
	}
	attachments := make([]AttachmentResponse, 0, len(ticket.Attachments))
	for _, att := range ticket.Attachments {
		attachments = append(attachments, AttachmentResponse{
			Filename:   att.Filename,
			URL:        att.URL,
			UploadedBy: userRef(refs, att.UploaderID),
			UploadedAt: att.UploadedAt,
		})
	}

	resp := TicketResponse{
		ID:                   ticket.ID,
		Title:                ticket.Title,
		Description:          ticket.Description,
		Priority:             ticket.Priority,
		Status:               ticket.Status,
		Category:             ticket.Category,
		CreatedBy:            userRef(refs, ticket.CreatedBy),
		Tags:                 ticket.Tags,
		Comments:             comments,
		Attachments:          attachments,
		ActualResolutionTime: ticket.ActualResolutionTime,
		CreatedAt:            ticket.CreatedAt,
		UpdatedAt:            ticket.UpdatedAt,
	}
	if ticket.AssignedTo != nil {
		resp.AssignedTo = userRef(refs, *ticket.AssignedTo)
	}
	if ticket.AssignedBy != nil {
		resp.AssignedBy = userRef(refs, *ticket.AssignedBy)
	}
	return resp
}

// NewDashboardStatsResponse converts service aggregates.
func NewDashboardStatsResponse(stats *service.DashboardStats) DashboardStatsResponse {
	statusBreakdown := make([]StatusCountResponse, 0, len(stats.StatusBreakdown))
	for _, entry := range stats.StatusBreakdown {
		statusBreakdown = append(statusBreakdown, StatusCountResponse{Status: entry.Status, Count: entry.Count})
	}
	priorityBreakdown := make([]PriorityCountResponse, 0, len(stats.PriorityBreakdown))
	for _, entry := range stats.PriorityBreakdown {
		priorityBreakdown = append(priorityBreakdown, PriorityCountResponse{Priority: entry.Priority, Count: entry.Count})
	}
	return DashboardStatsResponse{
		Total:             stats.Total,
		Open:              stats.Open,
		InProgress:        stats.InProgress,
		StatusBreakdown:   statusBreakdown,
		PriorityBreakdown: priorityBreakdown,
	}
}

func userRef(refs service.UserRefs, id string) *UserRef {
	if id == "" {
		return nil
	}
	user, ok := refs[id]
	if !ok {
		// referenced user no longer resolvable; keep the id
		return &UserRef{ID: id}
	}
	return &UserRef{ID: user.ID, Email: user.Email, Role: user.Role}
}
