package fake

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"time"

	"github.com/BearBump/TrackIN/internal/integrations/carrier"
)

var journey = []struct {
	status string
	city   string
}{
	{"Picked up", "Gurugram"},
	{"In Transit", "Delhi"},
	{"Arrived at destination facility", "Mumbai"},
	{"Out for Delivery", "Mumbai"},
	{"Delivered", "Mumbai"},
}

// FakeClient stands in for the pull API on machines without carrier access.
// The stage of the journey is derived from the waybill hash, so the same AWB
// always tracks the same way.
type FakeClient struct {
	now func() time.Time
}

func New() *FakeClient { return &FakeClient{now: func() time.Time { return time.Now().UTC() }} }

func (f *FakeClient) GetTracking(ctx context.Context, waybill string) (carrier.Payload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(waybill))
	stage := int(h.Sum32() % uint32(len(journey)))

	day := f.now().Truncate(24 * time.Hour)
	events := make([]any, 0, stage+1)
	for i := stage; i >= 0; i-- {
		events = append(events, map[string]any{
			"time":     day.Add(time.Duration(i) * 6 * time.Hour).Format(time.RFC3339),
			"status":   journey[i].status,
			"location": journey[i].city,
		})
	}

	return map[string]any{
		"Shipment": map[string]any{
			"Status":      journey[stage].status,
			"origin":      journey[0].city,
			"destination": journey[len(journey)-1].city,
			"pieces":      json.Number("1"),
			"weight":      json.Number("0.5"),
			"eta":         day.Add(48 * time.Hour).Format("2006-01-02"),
			"Events":      events,
		},
	}, nil
}
