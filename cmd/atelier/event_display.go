package main

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/atelierhq/atelier/internal/events"
)

// displayEvent prints one run event as a single timestamped line
func displayEvent(event *events.Event) {
	emoji := eventEmoji(event)
	severityColor := eventSeverityColor(event.Severity)
	timestamp := event.Timestamp.Format("15:04:05")

	typeColor := color.New(color.FgMagenta)

	fmt.Printf("%s [%s] %s: %s\n",
		emoji,
		timestamp,
		typeColor.Sprint(event.Type),
		severityColor.Sprint(event.Message),
	)
}

func eventEmoji(event *events.Event) string {
	switch event.Type {
	case events.EventTypeRunStarted, events.EventTypeExplorationStarted:
		return "🚀"
	case events.EventTypeIterationStarted:
		return "🔁"
	case events.EventTypePromptGenerated:
		return "📝"
	case events.EventTypeImageGenerated:
		return "🖼️"
	case events.EventTypeCritiqueCompleted:
		return "🔍"
	case events.EventTypeIterationAccepted, events.EventTypeHypothesisSelected:
		return "✅"
	case events.EventTypeIterationRejected:
		return "🚫"
	case events.EventTypeRunCompleted, events.EventTypeExplorationCompleted:
		return "🏁"
	case events.EventTypeRunFailed:
		return "💥"
	case events.EventTypeStopRequested:
		return "🛑"
	case events.EventTypeHypothesisExtracted:
		return "💡"
	case events.EventTypeHypothesisTestStarted, events.EventTypeHypothesisTested:
		return "🧪"
	}

	switch event.Severity {
	case events.SeverityError:
		return "❌"
	case events.SeverityWarning:
		return "⚠️"
	default:
		return "ℹ️"
	}
}

func eventSeverityColor(severity events.Severity) *color.Color {
	switch severity {
	case events.SeverityError:
		return color.New(color.FgRed)
	case events.SeverityWarning:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgWhite)
	}
}
