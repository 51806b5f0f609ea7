package invitations

import "github.com/ascenthq/ascent/pkg/models"

// TrackEvent is a status-tracking event received from the assessment UI.
type TrackEvent string

const (
	EventOpened  TrackEvent = "opened"
	EventStarted TrackEvent = "started"
)

// transitions is the forward-only edge table for invitation status. Edges
// absent from the table no-op: a stale or replayed event never moves a
// status backward.
var transitions = map[models.InvitationStatus]map[models.InvitationStatus]bool{
	models.StatusPending: {
		models.StatusSent:      true,
		models.StatusOpened:    true,
		models.StatusStarted:   true,
		models.StatusCompleted: true,
	},
	models.StatusSent: {
		models.StatusOpened:    true,
		models.StatusStarted:   true,
		models.StatusCompleted: true,
	},
	models.StatusOpened: {
		models.StatusStarted:   true,
		models.StatusCompleted: true,
	},
	models.StatusStarted: {
		models.StatusCompleted: true,
	},
	models.StatusCompleted: {},
}

// CanAdvance reports whether status may move from one state to another.
func CanAdvance(from, to models.InvitationStatus) bool {
	return transitions[from][to]
}

// ValidStatus reports whether s is one of the five lifecycle states.
func ValidStatus(s models.InvitationStatus) bool {
	_, ok := transitions[s]
	return ok
}

// statusForEvent maps a tracking event to its target status.
func statusForEvent(e TrackEvent) (models.InvitationStatus, bool) {
	switch e {
	case EventOpened:
		return models.StatusOpened, true
	case EventStarted:
		return models.StatusStarted, true
	default:
		return "", false
	}
}
