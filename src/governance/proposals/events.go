package proposals

import "fmt"

// EventType names a post-commit notification.
type EventType string

const (
	EventReviewRequested EventType = "PROPOSAL_REVIEW_REQUESTED"
	EventReviewApproved  EventType = "PROPOSAL_REVIEW_APPROVED"
	EventReviewRejected  EventType = "PROPOSAL_REVIEW_REJECTED"
	EventVotingOpen      EventType = "PROPOSAL_VOTING_OPEN"
	EventVotesReset      EventType = "PROPOSAL_VOTES_RESET"
	EventApproved        EventType = "PROPOSAL_APPROVED"
	EventRejected        EventType = "PROPOSAL_REJECTED"
	EventClosed          EventType = "PROPOSAL_CLOSED"
	EventExecutionFailed EventType = "PROPOSAL_EXECUTION_FAILED"
)

// Priority of a notification.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// Event is a notification to deliver after the decision is committed.
// The engine only returns events; delivery belongs to the notify package.
type Event struct {
	BandID     uint64    `json:"bandId"`
	ProposalID uint64    `json:"proposalId"`
	UserID     uint64    `json:"userId"`
	Type       EventType `json:"type"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	ActionURL  string    `json:"actionUrl"`
	Priority   Priority  `json:"priority"`
}

func actionURL(bandID, proposalID uint64) string {
	return fmt.Sprintf("/bands/%d/proposals/%d", bandID, proposalID)
}

// fanout copies tmpl once per recipient, skipping duplicates.
func fanout(tmpl Event, userIDs ...uint64) []Event {
	seen := make(map[uint64]struct{}, len(userIDs))
	out := make([]Event, 0, len(userIDs))
	for _, id := range userIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ev := tmpl
		ev.UserID = id
		out = append(out, ev)
	}
	return out
}
