package content

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of an Object.
type Status string

const (
	StatusDraft         Status = "draft"
	StatusSubmitted     Status = "submitted"
	StatusUnderReview   Status = "under_review"
	StatusNeedsRevision Status = "needs_revision"
	StatusApproved      Status = "approved"
	StatusRejected      Status = "rejected"
	StatusPublished     Status = "published"
	StatusArchived      Status = "archived"
	StatusDeleted       Status = "deleted"
)

var allStatuses = []Status{
	StatusDraft, StatusSubmitted, StatusUnderReview, StatusNeedsRevision,
	StatusApproved, StatusRejected, StatusPublished, StatusArchived, StatusDeleted,
}

// transitions lists the allowed edges. Deleted is reachable from every state
// and handled in CanTransition.
var transitions = map[Status][]Status{
	StatusDraft:         {StatusSubmitted, StatusPublished},
	StatusSubmitted:     {StatusUnderReview, StatusApproved, StatusRejected, StatusNeedsRevision},
	StatusUnderReview:   {StatusApproved, StatusRejected, StatusNeedsRevision},
	StatusNeedsRevision: {StatusSubmitted, StatusDraft},
	StatusApproved:      {StatusPublished},
	StatusPublished:     {StatusArchived},
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	for _, x := range allStatuses {
		if s == x {
			return true
		}
	}
	return false
}

// ParseStatus validates a raw status string.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidStatus, raw)
	}
	return s, nil
}

// CanTransition checks whether from -> to is an allowed lifecycle edge.
func CanTransition(from, to Status) error {
	if !to.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidStatus, to)
	}
	if from == StatusDeleted {
		return fmt.Errorf("%w: content is deleted (status: %s)", ErrInvalidTransition, from)
	}
	if to == StatusDeleted {
		return nil
	}
	for _, next := range transitions[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// ApplyStatus moves o to status to, stamping PublishedAt the first time the
// object reaches published. PublishedAt is never cleared afterwards.
func ApplyStatus(o *Object, to Status, now time.Time) error {
	if err := CanTransition(o.Status, to); err != nil {
		return err
	}
	o.Status = to
	o.UpdatedAt = now
	if to == StatusPublished && o.PublishedAt == nil {
		p := now
		o.PublishedAt = &p
	}
	return nil
}
