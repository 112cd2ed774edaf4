package hub

import "time"

// Event is a client-visible notification payload. Events always carry a
// "type" field; the remaining keys depend on the type.
type Event map[string]interface{}

// Type returns the event's type tag.
func (e Event) Type() string {
	t, _ := e["type"].(string)
	return t
}

// QuestStateChanged notifies a quest instance transition.
func QuestStateChanged(instanceID, state string, score float64) Event {
	return Event{
		"type":              "quest_state_changed",
		"quest_instance_id": instanceID,
		"state":             state,
		"score":             score,
	}
}

// HintReady notifies a resolved hint job. Result fields are omitted for
// failed jobs; the poll endpoint carries the fallback text.
func HintReady(jobID, status, hint, risk, param string) Event {
	ev := Event{
		"type":   "hint_ready",
		"job_id": jobID,
		"status": status,
	}
	if hint != "" {
		ev["hint"] = hint
	}
	if risk != "" {
		ev["risk"] = risk
	}
	if param != "" {
		ev["param"] = param
	}
	return ev
}

// RewardStatusChanged notifies a reward transaction transition.
func RewardStatusChanged(txid, status string) Event {
	return Event{
		"type":   "reward_status_changed",
		"txid":   txid,
		"status": status,
	}
}

// Connected acknowledges a fresh subscription.
func Connected() Event {
	return Event{
		"type":    "connected",
		"message": "Connected to DeFi Dojo real-time updates",
	}
}

// Pong answers a client heartbeat, echoing the client timestamp when present.
func Pong(timestamp interface{}) Event {
	ev := Event{
		"type":        "pong",
		"server_time": time.Now().UTC().Format(time.RFC3339),
	}
	if timestamp != nil {
		ev["timestamp"] = timestamp
	}
	return ev
}
