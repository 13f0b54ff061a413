package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in-progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// Valid reports whether the status is a known enum value.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// Valid reports whether the priority is a known enum value.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// TicketCategory enumerates request categories.
type TicketCategory string

const (
	TicketCategoryTechnical      TicketCategory = "technical"
	TicketCategoryBilling        TicketCategory = "billing"
	TicketCategoryGeneral        TicketCategory = "general"
	TicketCategoryBug            TicketCategory = "bug"
	TicketCategoryFeatureRequest TicketCategory = "feature-request"
)

// Valid reports whether the category is a known enum value.
func (c TicketCategory) Valid() bool {
	switch c {
	case TicketCategoryTechnical, TicketCategoryBilling, TicketCategoryGeneral,
		TicketCategoryBug, TicketCategoryFeatureRequest:
		return true
	}
	return false
}

// Comment is a thread entry embedded in a ticket. Comments live and die
// with their parent ticket.
type Comment struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Attachment stores file metadata embedded in a ticket.
type Attachment struct {
	Filename   string    `json:"filename"`
	URL        string    `json:"url"`
	UploaderID string    `json:"uploader_id"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Ticket is the aggregate for support requests. Comments and attachments
// are embedded sub-records stored with the ticket row.
type Ticket struct {
	ID                   string
	Title                string
	Description          string
	Priority             TicketPriority
	Status               TicketStatus
	Category             TicketCategory
	CreatedBy            string
	AssignedTo           *string
	AssignedBy           *string
	Tags                 []string
	Comments             []Comment
	Attachments          []Attachment
	ActualResolutionTime *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Clone returns a deep copy so a rejected mutation leaves no trace on the
// fetched aggregate.
func (t *Ticket) Clone() *Ticket {
	dup := *t
	dup.Tags = append([]string(nil), t.Tags...)
	dup.Comments = append([]Comment(nil), t.Comments...)
	dup.Attachments = append([]Attachment(nil), t.Attachments...)
	if t.AssignedTo != nil {
		v := *t.AssignedTo
		dup.AssignedTo = &v
	}
	if t.AssignedBy != nil {
		v := *t.AssignedBy
		dup.AssignedBy = &v
	}
	if t.ActualResolutionTime != nil {
		v := *t.ActualResolutionTime
		dup.ActualResolutionTime = &v
	}
	return &dup
}
