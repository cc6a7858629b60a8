package tracking

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/BearBump/TrackIN/config"
	"github.com/BearBump/TrackIN/internal/broker/messages"
	"github.com/BearBump/TrackIN/internal/integrations/carrier"
	"github.com/BearBump/TrackIN/internal/integrations/carrier/delhivery"
	"github.com/BearBump/TrackIN/internal/models"
	"github.com/BearBump/TrackIN/internal/validation"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var ErrRateLimited = errors.New("rate limited")

// ConfigSource resolves the carrier config for one request.
type ConfigSource func() (config.CarrierConfig, error)

type ClientFactory func(cfg config.CarrierConfig) carrier.Client

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type Service struct {
	loadConfig ConfigSource
	newClient  ClientFactory

	rl                 RateLimiter
	rateLimitPerMinute int64

	producer Producer
	topic    string

	now   func() time.Time
	newID func() string

	startedAt          time.Time
	totalRequests      atomic.Int64
	totalOK            atomic.Int64
	totalInvalid       atomic.Int64
	totalRateLimited   atomic.Int64
	totalNotConfigured atomic.Int64
	totalUpstreamErr   atomic.Int64
	totalFailed        atomic.Int64
}

func New(loadConfig ConfigSource, newClient ClientFactory) *Service {
	return &Service{
		loadConfig: loadConfig,
		newClient:  newClient,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
		startedAt:  time.Now().UTC(),
	}
}

// DelhiveryClient is the production ClientFactory.
func DelhiveryClient(cfg config.CarrierConfig) carrier.Client {
	return delhivery.NewFromConfig(cfg)
}

func (s *Service) WithRateLimit(rl RateLimiter, perMinute int64) *Service {
	if rl != nil && perMinute > 0 {
		s.rl = rl
		s.rateLimitPerMinute = perMinute
	}
	return s
}

func (s *Service) WithProducer(p Producer, topic string) *Service {
	if p != nil && topic != "" {
		s.producer = p
		s.topic = topic
	}
	return s
}

// Track runs one lookup. clientKey identifies the caller for rate limiting and
// may be empty. Errors are *validation.Error, ErrRateLimited,
// config.ErrNotConfigured, *carrier.UpstreamError, or anything else for an
// internal failure.
func (s *Service) Track(ctx context.Context, clientKey string, req models.TrackingRequest) (models.TrackingResponse, error) {
	s.totalRequests.Add(1)
	res, err := s.track(ctx, clientKey, req)
	s.count(err)
	return res, err
}

func (s *Service) track(ctx context.Context, clientKey string, req models.TrackingRequest) (models.TrackingResponse, error) {
	log := zerolog.Ctx(ctx)

	if err := s.allow(ctx, clientKey); err != nil {
		return models.TrackingResponse{}, err
	}

	if err := validation.ValidateTrackingRequest(req); err != nil {
		return models.TrackingResponse{}, err
	}

	cfg, err := s.loadConfig()
	if err != nil {
		return models.TrackingResponse{}, err
	}

	payload, err := s.newClient(cfg).GetTracking(ctx, req.AWB)
	if err != nil {
		return models.TrackingResponse{}, errors.Wrap(err, "carrier get tracking")
	}

	res, err := delhivery.MapTracking(req.AWB, payload)
	if err != nil {
		return models.TrackingResponse{}, errors.Wrap(err, "map carrier payload")
	}

	s.publish(ctx, res)
	log.Debug().Str("awb", res.AWB).Str("status", res.Status).Int("events", len(res.Events)).Msg("tracking mapped")
	return res, nil
}

func (s *Service) allow(ctx context.Context, clientKey string) error {
	if s.rl == nil || clientKey == "" {
		return nil
	}
	ok, n, err := s.rl.Allow(ctx, "rl:track:"+clientKey, s.rateLimitPerMinute, time.Minute)
	if err != nil {
		// fail open
		zerolog.Ctx(ctx).Warn().Err(err).Msg("rate limiter unavailable")
		return nil
	}
	if !ok {
		zerolog.Ctx(ctx).Warn().Str("client", clientKey).Int64("count", n).Msg("rate limit exceeded")
		return ErrRateLimited
	}
	return nil
}

func (s *Service) publish(ctx context.Context, res models.TrackingResponse) {
	if s.producer == nil {
		return
	}
	msg := messages.TrackingLookedUp{
		LookupID:    s.newID(),
		AWB:         res.AWB,
		Carrier:     res.Carrier,
		Status:      res.Status,
		Progress:    res.Progress,
		EventsCount: len(res.Events),
		LookedUpAt:  s.now(),
	}
	b, err := json.Marshal(msg)
	if err == nil {
		err = s.producer.Publish(ctx, s.topic, []byte(res.AWB), b)
	}
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("topic", s.topic).Msg("publish tracking looked up")
	}
}

func (s *Service) count(err error) {
	var ve *validation.Error
	var ue *carrier.UpstreamError
	switch {
	case err == nil:
		s.totalOK.Add(1)
	case errors.As(err, &ve):
		s.totalInvalid.Add(1)
	case errors.Is(err, ErrRateLimited):
		s.totalRateLimited.Add(1)
	case errors.Is(err, config.ErrNotConfigured):
		s.totalNotConfigured.Add(1)
	case errors.As(err, &ue):
		s.totalUpstreamErr.Add(1)
	default:
		s.totalFailed.Add(1)
	}
}

type Stats struct {
	StartedAt      time.Time `json:"startedAt"`
	TotalRequests  int64     `json:"totalRequests"`
	OK             int64     `json:"ok"`
	Invalid        int64     `json:"invalid"`
	RateLimited    int64     `json:"rateLimited"`
	NotConfigured  int64     `json:"notConfigured"`
	UpstreamErrors int64     `json:"upstreamErrors"`
	Failed         int64     `json:"failed"`
}

func (s *Service) Stats() Stats {
	return Stats{
		StartedAt:      s.startedAt,
		TotalRequests:  s.totalRequests.Load(),
		OK:             s.totalOK.Load(),
		Invalid:        s.totalInvalid.Load(),
		RateLimited:    s.totalRateLimited.Load(),
		NotConfigured:  s.totalNotConfigured.Load(),
		UpstreamErrors: s.totalUpstreamErr.Load(),
		Failed:         s.totalFailed.Load(),
	}
}
