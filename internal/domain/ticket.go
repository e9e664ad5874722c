package domain

import (
	"fmt"
	"time"
)

// MaxTitleLength bounds ticket titles.
const MaxTitleLength = 200

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

var ticketStatuses = map[TicketStatus]struct{}{
	TicketStatusOpen:       {},
	TicketStatusInProgress: {},
	TicketStatusResolved:   {},
	TicketStatusClosed:     {},
}

// IsValid reports whether s is one of the known statuses.
func (s TicketStatus) IsValid() bool {
	_, ok := ticketStatuses[s]
	return ok
}

// ParseTicketStatus validates raw input.
func ParseTicketStatus(raw string) (TicketStatus, error) {
	s := TicketStatus(raw)
	if !s.IsValid() {
		return "", fmt.Errorf("invalid status %q", raw)
	}
	return s, nil
}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "low"
	TicketPriorityMedium   TicketPriority = "medium"
	TicketPriorityHigh     TicketPriority = "high"
	TicketPriorityCritical TicketPriority = "critical"
)

func (p TicketPriority) IsValid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityCritical:
		return true
	}
	return false
}

// ParseTicketPriority validates raw input.
func ParseTicketPriority(raw string) (TicketPriority, error) {
	p := TicketPriority(raw)
	if !p.IsValid() {
		return "", fmt.Errorf("invalid priority %q", raw)
	}
	return p, nil
}

// TicketCategory classifies the request.
type TicketCategory string

const (
	TicketCategoryHardware TicketCategory = "hardware"
	TicketCategorySoftware TicketCategory = "software"
	TicketCategoryNetwork  TicketCategory = "network"
	TicketCategoryAccess   TicketCategory = "access"
	TicketCategoryOther    TicketCategory = "other"
)

func (c TicketCategory) IsValid() bool {
	switch c {
	case TicketCategoryHardware, TicketCategorySoftware, TicketCategoryNetwork, TicketCategoryAccess, TicketCategoryOther:
		return true
	}
	return false
}

// ParseTicketCategory validates raw input.
func ParseTicketCategory(raw string) (TicketCategory, error) {
	c := TicketCategory(raw)
	if !c.IsValid() {
		return "", fmt.Errorf("invalid category %q", raw)
	}
	return c, nil
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID          int64
	Number      string
	CreatorID   int64
	AssigneeID  *int64
	Title       string
	Description string
	Category    TicketCategory
	Priority    TicketPriority
	Status      TicketStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ClosedAt    *time.Time
}

// IsOwnedBy reports whether accountID created the ticket. Assignment does not confer ownership.
func (t *Ticket) IsOwnedBy(accountID int64) bool {
	return t != nil && t.CreatorID == accountID
}
