package domain

import (
	"testing"
	"time"
)

func TestEnumValidation(t *testing.T) {
	for _, status := range []TicketStatus{TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed} {
		if !status.Valid() {
			t.Errorf("status %q should be valid", status)
		}
	}
	for _, status := range []TicketStatus{"", "pending", "OPEN", "in_progress"} {
		if status.Valid() {
			t.Errorf("status %q should be invalid", status)
		}
	}

	for _, priority := range []TicketPriority{TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent} {
		if !priority.Valid() {
			t.Errorf("priority %q should be valid", priority)
		}
	}
	for _, priority := range []TicketPriority{"", "critical", "High"} {
		if priority.Valid() {
			t.Errorf("priority %q should be invalid", priority)
		}
	}

	for _, category := range []TicketCategory{TicketCategoryTechnical, TicketCategoryBilling, TicketCategoryGeneral, TicketCategoryBug, TicketCategoryFeatureRequest} {
		if !category.Valid() {
			t.Errorf("category %q should be valid", category)
		}
	}
	for _, category := range []TicketCategory{"", "misc", "feature_request"} {
		if category.Valid() {
			t.Errorf("category %q should be invalid", category)
		}
	}
}

func TestRoleValidation(t *testing.T) {
	for _, role := range []Role{RoleUser, RoleSupport, RoleAdmin} {
		if !role.Valid() {
			t.Errorf("role %q should be valid", role)
		}
	}
	for _, role := range []Role{"", "superuser", "Admin"} {
		if role.Valid() {
			t.Errorf("role %q should be invalid", role)
		}
	}
}

func TestTicketClone(t *testing.T) {
	assignee := "agent1"
	stamp := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	original := &Ticket{
		ID:                   "t1",
		Title:                "Broken login",
		AssignedTo:           &assignee,
		Tags:                 []string{"auth"},
		Comments:             []Comment{{ID: "c1", AuthorID: "u1", Content: "hi"}},
		Attachments:          []Attachment{{Filename: "log.txt"}},
		ActualResolutionTime: &stamp,
	}

	clone := original.Clone()
	clone.Title = "changed"
	*clone.AssignedTo = "agent2"
	clone.Tags[0] = "billing"
	clone.Comments[0].Content = "edited"
	clone.Attachments[0].Filename = "other.txt"
	*clone.ActualResolutionTime = stamp.Add(time.Hour)

	if original.Title != "Broken login" {
		t.Errorf("title shared with clone")
	}
	if *original.AssignedTo != "agent1" {
		t.Errorf("assignedTo shared with clone")
	}
	if original.Tags[0] != "auth" {
		t.Errorf("tags share backing array with clone")
	}
	if original.Comments[0].Content != "hi" {
		t.Errorf("comments share backing array with clone")
	}
	if original.Attachments[0].Filename != "log.txt" {
		t.Errorf("attachments share backing array with clone")
	}
	if !original.ActualResolutionTime.Equal(stamp) {
		t.Errorf("resolution stamp shared with clone")
	}
}
