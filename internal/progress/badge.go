package progress

import "github.com/noah-isme/gema-tasks-api/internal/models"

// BadgeKind identifies the status chip shown next to a submission.
type BadgeKind string

const (
	BadgeNotStarted   BadgeKind = "not-started"
	BadgeInProgress   BadgeKind = "in-progress"
	BadgeCompleted    BadgeKind = "completed"
	BadgeNeedsHelp    BadgeKind = "needs-help"
	BadgeHelpAnswered BadgeKind = "help-answered"
)

// Badge is the display state derived from a submission's status and help flags.
type Badge struct {
	Kind  BadgeKind `json:"kind"`
	Label string    `json:"label"`
	Tone  string    `json:"tone"`
}

var badges = map[BadgeKind]Badge{
	BadgeNotStarted:   {Kind: BadgeNotStarted, Label: "Not started", Tone: "neutral"},
	BadgeInProgress:   {Kind: BadgeInProgress, Label: "In progress", Tone: "info"},
	BadgeCompleted:    {Kind: BadgeCompleted, Label: "Completed", Tone: "success"},
	BadgeNeedsHelp:    {Kind: BadgeNeedsHelp, Label: "Needs help", Tone: "danger"},
	BadgeHelpAnswered: {Kind: BadgeHelpAnswered, Label: "Teacher responded", Tone: "warning"},
}

// TeacherResponded reports whether any message in the log was written by a teacher.
func TeacherResponded(messages []models.HelpMessage) bool {
	for _, message := range messages {
		if !message.IsFromStudent {
			return true
		}
	}
	return false
}

// UnreadCount counts teacher messages the student has not read yet.
func UnreadCount(messages []models.HelpMessage) int {
	count := 0
	for _, message := range messages {
		if message.IsUnreadByStudent() {
			count++
		}
	}
	return count
}

// StatusBadge derives the badge for a submission. A completed submission never shows a help badge,
// even when needsHelp is still set because the teacher never resolved the request.
func StatusBadge(status models.SubmissionStatus, needsHelp bool, messages []models.HelpMessage) Badge {
	switch {
	case status == models.SubmissionStatusCompleted:
		return badges[BadgeCompleted]
	case needsHelp && TeacherResponded(messages):
		return badges[BadgeHelpAnswered]
	case needsHelp:
		return badges[BadgeNeedsHelp]
	case status == models.SubmissionStatusInProgress:
		return badges[BadgeInProgress]
	default:
		return badges[BadgeNotStarted]
	}
}
