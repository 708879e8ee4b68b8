package domain

import (
	"time"
)

// Response status constants.
const (
	ResponseStatusDraft     = "draft"
	ResponseStatusPublished = "published"
	ResponseStatusRejected  = "rejected"
)

// ReviewResponse is a drafted or published reply to a review.
type ReviewResponse struct {
	ID          string     `json:"id"`
	ReviewID    string     `json:"review_id"`
	TemplateID  *string    `json:"template_id,omitempty"`
	Content     string     `json:"content"`
	Status      string     `json:"status"`
	Author      string     `json:"author"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// ValidResponseStatuses returns the set of valid response statuses.
func ValidResponseStatuses() []string {
	return []string{ResponseStatusDraft, ResponseStatusPublished, ResponseStatusRejected}
}

// IsValidResponseStatus checks whether s is a known response status.
func IsValidResponseStatus(s string) bool {
	for _, v := range ValidResponseStatuses() {
		if v == s {
			return true
		}
	}
	return false
}

// CanTransition reports whether a response may move from one status to
// another. Only drafts move, and only to published or rejected.
func CanTransition(from, to string) bool {
	return from == ResponseStatusDraft && (to == ResponseStatusPublished || to == ResponseStatusRejected)
}
