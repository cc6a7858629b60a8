package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/TrackIN/config"
	"github.com/BearBump/TrackIN/internal/broker/kafka"
	"github.com/BearBump/TrackIN/internal/integrations/carrier"
	"github.com/BearBump/TrackIN/internal/integrations/carrier/fake"
	"github.com/BearBump/TrackIN/internal/logger"
	"github.com/BearBump/TrackIN/internal/ratelimit/redislimiter"
	"github.com/BearBump/TrackIN/internal/services/tracking"
	"github.com/rs/zerolog"
)

const (
	defaultHTTPAddr = ":8080"
	defaultTopic    = "tracking.looked_up"

	carrierModeDelhivery = "delhivery"
	carrierModeFake      = "fake"
)

type trackAPIApp struct {
	ctx     context.Context
	cancel  context.CancelFunc
	opts    trackAPIOpts
	svc     *tracking.Service
	log     zerolog.Logger
	closers []func() error
}

type trackAPIFactories struct {
	newClientFactory func(cfg *config.Config) tracking.ClientFactory
	newRateLimiter   func(cfg *config.Config, log zerolog.Logger) (rl tracking.RateLimiter, closeFn func() error)
	newProducer      func(cfg *config.Config, log zerolog.Logger) (p tracking.Producer, closeFn func() error)
}

func defaultTrackAPIFactories() trackAPIFactories {
	return trackAPIFactories{
		newClientFactory: func(cfg *config.Config) tracking.ClientFactory {
			switch cfg.TrackAPI.CarrierMode {
			case carrierModeFake:
				fc := fake.New()
				return func(config.CarrierConfig) carrier.Client { return fc }
			default:
				return tracking.DelhiveryClient
			}
		},
		newRateLimiter: func(cfg *config.Config, log zerolog.Logger) (tracking.RateLimiter, func() error) {
			if cfg.Redis.Host == "" || cfg.TrackAPI.RateLimitPerMinute <= 0 {
				return nil, nil
			}
			rl := redislimiter.New(fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port))
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := rl.Ping(ctx); err != nil {
				log.Warn().Err(err).Msg("redis unreachable, rate limiter will fail open")
			}
			return rl, rl.Close
		},
		newProducer: func(cfg *config.Config, log zerolog.Logger) (tracking.Producer, func() error) {
			if cfg.Kafka.Host == "" {
				return nil, nil
			}
			p := kafka.NewProducer([]string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}, log)
			return p, p.Close
		},
	}
}

func loadServiceConfig(path string) (*config.Config, error) {
	if path == "" {
		return &config.Config{}, nil
	}
	return config.LoadConfig(path)
}

func applyDefaults(cfg *config.Config) {
	if cfg.TrackAPI.HTTPAddr == "" {
		cfg.TrackAPI.HTTPAddr = defaultHTTPAddr
	}
	if cfg.TrackAPI.CarrierMode == "" {
		cfg.TrackAPI.CarrierMode = carrierModeDelhivery
	}
	if cfg.Kafka.TrackingLookedUpTopicName == "" {
		cfg.Kafka.TrackingLookedUpTopicName = defaultTopic
	}
	if cfg.Kafka.Host != "" && cfg.Kafka.Port == 0 {
		cfg.Kafka.Port = 9092
	}
	if cfg.Redis.Host != "" && cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if sp := os.Getenv("swaggerPath"); sp != "" {
		cfg.TrackAPI.SwaggerPath = sp
	}
}

func buildTrackAPI(cfg *config.Config, log zerolog.Logger, f trackAPIFactories) (*tracking.Service, []func() error) {
	var closers []func() error

	svc := tracking.New(config.LoadCarrierConfig, f.newClientFactory(cfg))

	if rl, closeFn := f.newRateLimiter(cfg, log); rl != nil {
		svc.WithRateLimit(rl, int64(cfg.TrackAPI.RateLimitPerMinute))
		if closeFn != nil {
			closers = append(closers, closeFn)
		}
	}
	if p, closeFn := f.newProducer(cfg, log); p != nil {
		svc.WithProducer(p, cfg.Kafka.TrackingLookedUpTopicName)
		if closeFn != nil {
			closers = append(closers, closeFn)
		}
	}
	return svc, closers
}

func mustBootstrapTrackAPI() *trackAPIApp {
	cfg, err := loadServiceConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("config parse error, %v", err))
	}
	applyDefaults(cfg)

	log := logger.New(cfg.Log)
	svc, closers := buildTrackAPI(cfg, log, defaultTrackAPIFactories())

	log.Info().
		Str("carrier_mode", cfg.TrackAPI.CarrierMode).
		Bool("rate_limit", cfg.Redis.Host != "" && cfg.TrackAPI.RateLimitPerMinute > 0).
		Bool("kafka", cfg.Kafka.Host != "").
		Msg("track-api configured")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &trackAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: trackAPIOpts{
			httpAddr:    cfg.TrackAPI.HTTPAddr,
			swaggerPath: cfg.TrackAPI.SwaggerPath,
		},
		svc:     svc,
		log:     log,
		closers: closers,
	}
}

func (a *trackAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.log.Warn().Err(err).Msg("close")
		}
	}
}

func (a *trackAPIApp) Run() error {
	return runTrackAPI(a.ctx, a.opts, a.svc, a.log)
}
