package notify

import (
	"fmt"
	"html"
	"strings"

	"github.com/Freeeeeet/training_scheduler/internal/assigner"
	"github.com/Freeeeeet/training_scheduler/internal/model"
)

// maxListedSkips caps the skip lines of one message.
const maxListedSkips = 10

// PluralizeSessions returns "session" or "sessions" for count.
func PluralizeSessions(count int) string {
	if count == 1 {
		return "session"
	}
	return "sessions"
}

// ReasonDisplay is how a skip reason is shown in chat.
type ReasonDisplay struct {
	Emoji string
	Text  string
}

// GetReasonDisplay returns the emoji and label for a skip reason.
func GetReasonDisplay(reason assigner.SkipReasonCode) ReasonDisplay {
	displays := map[assigner.SkipReasonCode]ReasonDisplay{
		assigner.SkipReasonNoLecturer: {"👤", "no lecturer"},
		assigner.SkipReasonNoLocation: {"🏫", "no location"},
		assigner.SkipReasonBoth:       {"⛔️", "no lecturer and location"},
	}
	if display, ok := displays[reason]; ok {
		return display
	}
	return ReasonDisplay{"❓", string(reason)}
}

// FormatReport renders an assignment run as Telegram HTML.
func FormatReport(course model.Course, report *assigner.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "<b>%s</b>: assignment run <code>%s</code>\n",
		html.EscapeString(course.Name), report.RunID.String()[:8])
	fmt.Fprintf(&b, "✅ %d %s resourced\n", report.Processed, PluralizeSessions(report.Processed))
	if report.AlreadyResourced > 0 {
		fmt.Fprintf(&b, "☑️ %d already resourced\n", report.AlreadyResourced)
	}
	if report.Partial > 0 {
		fmt.Fprintf(&b, "◐ %d partially resourced, left as is\n", report.Partial)
	}

	if len(report.Skipped) == 0 {
		return strings.TrimRight(b.String(), "\n")
	}

	fmt.Fprintf(&b, "⚠️ %d %s skipped", len(report.Skipped), PluralizeSessions(len(report.Skipped)))
	counts := report.SkipsByReason()
	var parts []string
	for _, reason := range []assigner.SkipReasonCode{
		assigner.SkipReasonNoLecturer, assigner.SkipReasonNoLocation, assigner.SkipReasonBoth,
	} {
		if n := counts[reason]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", GetReasonDisplay(reason).Text, n))
		}
	}
	fmt.Fprintf(&b, " (%s)\n", strings.Join(parts, ", "))

	for i, s := range report.Skipped {
		if i == maxListedSkips {
			fmt.Fprintf(&b, "… and %d more\n", len(report.Skipped)-maxListedSkips)
			break
		}
		fmt.Fprintf(&b, "%s %s\n", GetReasonDisplay(s.Reason).Emoji, html.EscapeString(s.Message()))
	}
	return strings.TrimRight(b.String(), "\n")
}
