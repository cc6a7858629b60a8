package models

const CarrierDelhivery = "Delhivery"

// Field order is the order validation errors are reported in.
type TrackingRequest struct {
	AWB     string `validate:"awb"`
	Pincode string `validate:"omitempty,pincode"`
	Phone   string `validate:"omitempty,mobile"`
}

type TrackingEvent struct {
	Timestamp string `json:"ts,omitempty"`
	Title     string `json:"title"`
	Note      string `json:"note"`
}

// TrackingResponse is the schema the tracking UI renders.
type TrackingResponse struct {
	Carrier     string          `json:"carrier"`
	AWB         string          `json:"awb"`
	Status      string          `json:"status"`
	Progress    float64         `json:"progress"`
	Origin      string          `json:"origin"`
	Destination string          `json:"destination"`
	Service     string          `json:"service"`
	Pieces      int             `json:"pieces"`
	Weight      string          `json:"weight"`
	Promised    string          `json:"promised"`
	Events      []TrackingEvent `json:"events"`
}
