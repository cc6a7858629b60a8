package track_api

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"

	"github.com/BearBump/TrackIN/config"
	"github.com/BearBump/TrackIN/internal/integrations/carrier"
	"github.com/BearBump/TrackIN/internal/models"
	"github.com/BearBump/TrackIN/internal/services/tracking"
	"github.com/BearBump/TrackIN/internal/validation"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/hlog"
)

const (
	TrackPath = "/api/track"

	cacheControl = "public, max-age=60, s-maxage=60"

	msgServerNotConfigured = "Server not configured"
	msgCarrierUpstream     = "Carrier upstream error"
	msgServerError         = "Server error"
	msgTooManyRequests     = "Too many requests"
	msgMethodNotAllowed    = "Method not allowed"
	msgNotFound            = "Not found"
)

type Tracker interface {
	Track(ctx context.Context, clientKey string, req models.TrackingRequest) (models.TrackingResponse, error)
}

type TrackAPI struct {
	svc Tracker
}

func New(svc Tracker) *TrackAPI {
	return &TrackAPI{svc: svc}
}

type errorBody struct {
	Error  string `json:"error"`
	Status int    `json:"status,omitempty"`
}

func (a *TrackAPI) Register(r chi.Router) {
	r.Get(TrackPath, a.GetTracking)
}

func (a *TrackAPI) GetTracking(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := models.TrackingRequest{
		AWB:     q.Get("awb"),
		Pincode: q.Get("pincode"),
		Phone:   q.Get("phone"),
	}

	res, err := a.svc.Track(r.Context(), clientKey(r), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", cacheControl)
	writeJSON(w, http.StatusOK, res)
}

func (a *TrackAPI) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *validation.Error
	var ue *carrier.UpstreamError
	switch {
	case errors.As(err, &ve):
		hlog.FromRequest(r).Info().Str("field", ve.Field).Msg("invalid track request")
		writeJSON(w, http.StatusBadRequest, errorBody{Error: ve.Message})
	case errors.Is(err, tracking.ErrRateLimited):
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: msgTooManyRequests})
	case errors.Is(err, config.ErrNotConfigured):
		hlog.FromRequest(r).Error().Err(err).Msg("carrier credentials missing")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: msgServerNotConfigured})
	case errors.As(err, &ue):
		hlog.FromRequest(r).Warn().Int("upstream_status", ue.StatusCode).Msg("carrier upstream error")
		writeJSON(w, http.StatusBadGateway, errorBody{Error: msgCarrierUpstream, Status: ue.StatusCode})
	default:
		hlog.FromRequest(r).Error().Err(err).Msg("track request failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: msgServerError})
	}
}

// Recoverer answers a panic with the generic 500 body.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				hlog.FromRequest(r).Error().Interface("panic", rec).Msg("handler panic")
				writeJSON(w, http.StatusInternalServerError, errorBody{Error: msgServerError})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: msgMethodNotAllowed})
}

func NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, errorBody{Error: msgNotFound})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		status = http.StatusInternalServerError
		buf.Reset()
		buf.WriteString(`{"error":"` + msgServerError + `"}`)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
