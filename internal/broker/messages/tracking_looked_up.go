package messages

import "time"

// TrackingLookedUp is published after every successful /api/track answer.
type TrackingLookedUp struct {
	LookupID    string    `json:"lookup_id"`
	AWB         string    `json:"awb"`
	Carrier     string    `json:"carrier"`
	Status      string    `json:"status"`
	Progress    float64   `json:"progress"`
	EventsCount int       `json:"events_count"`
	LookedUpAt  time.Time `json:"looked_up_at"`
}
