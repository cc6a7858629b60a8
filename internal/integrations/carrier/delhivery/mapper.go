package delhivery

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/BearBump/TrackIN/internal/integrations/carrier"
	"github.com/BearBump/TrackIN/internal/models"
	"github.com/pkg/errors"
)

// ErrMalformedPayload marks a body that is not a single JSON value or whose
// events container is not a list.
var ErrMalformedPayload = errors.New("malformed carrier payload")

// Candidate source keys, highest priority first. The Delhivery pull payload was
// never confirmed against a real sample; revise these lists once one is seen.
var (
	packageKeys = []string{"Shipment", "Package", "Data"}
	eventsKeys  = []string{"Events", "Scans", "History"}

	eventTimeKeys  = []string{"time", "ts", "scan_time", "date", "created_at"}
	eventTitleKeys = []string{"status", "scan", "event", "code"}
	eventNoteKeys  = []string{"location", "city", "remark", "notes"}

	statusKeys      = []string{"Status", "status"}
	originKeys      = []string{"origin", "source", "src"}
	destinationKeys = []string{"destination", "dest"}
	serviceKeys     = []string{"service"}
	piecesKeys      = []string{"pieces", "pcs"}
	weightKeys      = []string{"weight"}
	promisedKeys    = []string{"promised", "eta"}
)

const (
	defaultEventTitle = "Event"
	defaultStatus     = "In Transit"
	defaultService    = "Surface Express"
	defaultPieces     = 1

	fallbackProgress  = 0.6
	deliveredProgress = 1.0
)

var progressByStatus = map[string]float64{
	"Picked up":                       0.25,
	"In Transit":                      0.5,
	"Arrived at destination facility": 0.7,
	"Out for Delivery":                0.9,
	"Delivered":                       1,
}

type record map[string]any

// firstPresent returns the value of the first key that is set to something
// other than null or "".
func (r record) firstPresent(keys ...string) (any, bool) {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		if isBlank(v) {
			continue
		}
		return v, true
	}
	return nil, false
}

// isBlank reports the carrier's "no value" forms: "", false and numeric zero.
func isBlank(v any) bool {
	switch t := v.(type) {
	case string:
		return t == ""
	case bool:
		return !t
	case json.Number:
		f, err := t.Float64()
		return err == nil && f == 0
	}
	return false
}

func (r record) text(def string, keys ...string) string {
	v, ok := r.firstPresent(keys...)
	if !ok {
		return def
	}
	return stringify(v)
}

func asRecord(v any) record {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return record{}
}

// MapTracking converts a decoded pull API body into the UI schema. It has no
// side effects: the same payload always yields the same response.
func MapTracking(awb string, payload carrier.Payload) (models.TrackingResponse, error) {
	body := asRecord(payload)
	pkg := body
	if v, ok := body.firstPresent(packageKeys...); ok {
		pkg = asRecord(v)
	}

	events, err := mapEvents(pkg)
	if err != nil {
		return models.TrackingResponse{}, err
	}

	status := pkg.text("", statusKeys...)
	if status == "" && len(events) > 0 {
		status = events[0].Title
	}
	if status == "" {
		status = defaultStatus
	}

	weight := ""
	if v, ok := pkg.firstPresent(weightKeys...); ok {
		weight = stringify(v) + " kg"
	}

	return models.TrackingResponse{
		Carrier:     models.CarrierDelhivery,
		AWB:         awb,
		Status:      status,
		Progress:    Progress(status),
		Origin:      pkg.text("", originKeys...),
		Destination: pkg.text("", destinationKeys...),
		Service:     pkg.text(defaultService, serviceKeys...),
		Pieces:      pieces(pkg),
		Weight:      weight,
		Promised:    pkg.text("", promisedKeys...),
		Events:      events,
	}, nil
}

func mapEvents(pkg record) ([]models.TrackingEvent, error) {
	out := make([]models.TrackingEvent, 0)
	v, ok := pkg.firstPresent(eventsKeys...)
	if !ok {
		return out, nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, errors.Wrapf(ErrMalformedPayload, "events is %T", v)
	}
	for _, item := range raw {
		e := asRecord(item)
		out = append(out, models.TrackingEvent{
			Timestamp: e.text("", eventTimeKeys...),
			Title:     e.text(defaultEventTitle, eventTitleKeys...),
			Note:      e.text("", eventNoteKeys...),
		})
	}
	return out, nil
}

// Progress looks the status up exactly first; unknown statuses mentioning
// "deliver" count as delivered, anything else as 0.6.
func Progress(status string) float64 {
	if p, ok := progressByStatus[status]; ok {
		return p
	}
	if strings.Contains(strings.ToLower(status), "deliver") {
		return deliveredProgress
	}
	return fallbackProgress
}

func pieces(pkg record) int {
	v, ok := pkg.firstPresent(piecesKeys...)
	if !ok {
		return defaultPieces
	}
	n, ok := toInt(v)
	if !ok || n < 1 {
		return defaultPieces
	}
	return n
}

func toInt(v any) (int, bool) {
	var s string
	switch t := v.(type) {
	case json.Number:
		s = t.String()
	case string:
		s = strings.TrimSpace(t)
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
