package domain

import "time"

// Visibility partitions the thread.
type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityInternal Visibility = "internal"
)

func (v Visibility) IsValid() bool {
	return v == VisibilityPublic || v == VisibilityInternal
}

// TicketMessage captures one entry in a ticket thread. Messages are append-only.
type TicketMessage struct {
	ID         int64
	TicketID   int64
	AuthorID   int64
	AuthorRole Role
	Body       string
	IsInternal bool
	CreatedAt  time.Time
}

// Visibility returns the persisted visibility of the message.
func (m *TicketMessage) Visibility() Visibility {
	if m.IsInternal {
		return VisibilityInternal
	}
	return VisibilityPublic
}

// ResolveVisibility decides the stored visibility. Only administrators may post internal messages;
// every other combination is public.
func ResolveVisibility(authorRole Role, requested Visibility) Visibility {
	if authorRole == RoleAdministrator && requested == VisibilityInternal {
		return VisibilityInternal
	}
	return VisibilityPublic
}
