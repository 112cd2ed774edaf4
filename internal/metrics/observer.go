package metrics

import "github.com/defidojo/dojo-backend/internal/hub"

// Notifier matches the event sink the domain services publish through.
type Notifier interface {
	SendToUser(userID string, event hub.Event)
}

type instrumentedNotifier struct {
	next Notifier
	m    *Metrics
}

// InstrumentNotifier wraps next so domain events are counted on their way to
// the hub. Unknown event types pass through untouched.
func (m *Metrics) InstrumentNotifier(next Notifier) Notifier {
	return &instrumentedNotifier{next: next, m: m}
}

func (n *instrumentedNotifier) SendToUser(userID string, event hub.Event) {
	switch event.Type() {
	case "quest_state_changed":
		if state, ok := event["state"].(string); ok {
			n.m.RecordQuestTransition(state)
		}
	case "hint_ready":
		if status, ok := event["status"].(string); ok {
			n.m.RecordHintJob(status)
		}
	case "reward_status_changed":
		if status, ok := event["status"].(string); ok {
			n.m.RecordRewardTransition(status)
		}
	}
	n.next.SendToUser(userID, event)
}
