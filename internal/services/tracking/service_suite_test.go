package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/BearBump/TrackIN/config"
	"github.com/BearBump/TrackIN/internal/broker/messages"
	"github.com/BearBump/TrackIN/internal/integrations/carrier"
	"github.com/BearBump/TrackIN/internal/models"
	"github.com/BearBump/TrackIN/internal/validation"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type carrierMock struct {
	mock.Mock
}

func (m *carrierMock) GetTracking(ctx context.Context, waybill string) (carrier.Payload, error) {
	args := m.Called(ctx, waybill)
	return args.Get(0), args.Error(1)
}

type limiterMock struct {
	mock.Mock
}

func (m *limiterMock) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Get(1).(int64), args.Error(2)
}

type producerMock struct {
	mock.Mock
}

func (m *producerMock) Publish(ctx context.Context, topic string, key, value []byte) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

type ServiceSuite struct {
	suite.Suite

	carrier   *carrierMock
	cfgErr    error
	gotConfig config.CarrierConfig
	svc       *Service
}

func (s *ServiceSuite) SetupTest() {
	s.carrier = &carrierMock{}
	s.cfgErr = nil
	s.gotConfig = config.CarrierConfig{}
	s.svc = New(
		func() (config.CarrierConfig, error) {
			if s.cfgErr != nil {
				return config.CarrierConfig{}, s.cfgErr
			}
			return config.CarrierConfig{BaseURL: "http://carrier", Token: "tok"}, nil
		},
		func(cfg config.CarrierConfig) carrier.Client {
			s.gotConfig = cfg
			return s.carrier
		},
	)
}

func outForDelivery() any {
	return map[string]any{
		"Shipment": map[string]any{
			"Status": "Out for Delivery",
			"Events": []any{
				map[string]any{"time": "2024-01-01", "status": "Out for Delivery", "location": "Mumbai"},
			},
		},
	}
}

func (s *ServiceSuite) TestTrack_OK() {
	s.carrier.On("GetTracking", mock.Anything, "1234567890").Return(outForDelivery(), nil).Once()

	res, err := s.svc.Track(context.Background(), "", models.TrackingRequest{AWB: "1234567890", Pincode: "110001", Phone: "9876543210"})
	s.Require().NoError(err)
	s.Require().Equal("Out for Delivery", res.Status)
	s.Require().Equal(0.9, res.Progress)
	s.Require().Equal([]models.TrackingEvent{{Timestamp: "2024-01-01", Title: "Out for Delivery", Note: "Mumbai"}}, res.Events)
	s.Require().Equal("tok", s.gotConfig.Token)
	s.carrier.AssertExpectations(s.T())

	st := s.svc.Stats()
	s.Require().Equal(int64(1), st.TotalRequests)
	s.Require().Equal(int64(1), st.OK)
}

func (s *ServiceSuite) TestTrack_InvalidInput_NoCarrierCall() {
	_, err := s.svc.Track(context.Background(), "", models.TrackingRequest{AWB: "123"})
	var ve *validation.Error
	s.Require().True(errors.As(err, &ve))
	s.Require().Equal(validation.MsgInvalidAWB, ve.Message)

	_, err = s.svc.Track(context.Background(), "", models.TrackingRequest{AWB: "1234567890", Phone: "5876543210"})
	s.Require().True(errors.As(err, &ve))
	s.Require().Equal(validation.MsgInvalidMobile, ve.Message)

	s.carrier.AssertNotCalled(s.T(), "GetTracking", mock.Anything, mock.Anything)
	s.Require().Equal(int64(2), s.svc.Stats().Invalid)
}

func (s *ServiceSuite) TestTrack_ValidationBeforeConfig() {
	s.cfgErr = config.ErrNotConfigured
	_, err := s.svc.Track(context.Background(), "", models.TrackingRequest{AWB: ""})
	var ve *validation.Error
	s.Require().True(errors.As(err, &ve))
}

func (s *ServiceSuite) TestTrack_NotConfigured_NoCarrierCall() {
	s.cfgErr = config.ErrNotConfigured

	_, err := s.svc.Track(context.Background(), "", models.TrackingRequest{AWB: "1234567890"})
	s.Require().ErrorIs(err, config.ErrNotConfigured)
	s.Require().Empty(s.gotConfig.Token)
	s.carrier.AssertNotCalled(s.T(), "GetTracking", mock.Anything, mock.Anything)
	s.Require().Equal(int64(1), s.svc.Stats().NotConfigured)
}

func (s *ServiceSuite) TestTrack_Upstream() {
	s.carrier.On("GetTracking", mock.Anything, "1234567890").
		Return(nil, &carrier.UpstreamError{StatusCode: 404}).
		Once()

	_, err := s.svc.Track(context.Background(), "", models.TrackingRequest{AWB: "1234567890"})
	var ue *carrier.UpstreamError
	s.Require().True(errors.As(err, &ue))
	s.Require().Equal(404, ue.StatusCode)
	s.Require().Equal(int64(1), s.svc.Stats().UpstreamErrors)
}

func (s *ServiceSuite) TestTrack_MalformedPayload() {
	s.carrier.On("GetTracking", mock.Anything, "1234567890").
		Return(map[string]any{"Events": "nope"}, nil).
		Once()

	_, err := s.svc.Track(context.Background(), "", models.TrackingRequest{AWB: "1234567890"})
	s.Require().Error(err)
	s.Require().Equal(int64(1), s.svc.Stats().Failed)
}

func (s *ServiceSuite) TestTrack_RateLimited() {
	rl := &limiterMock{}
	rl.On("Allow", mock.Anything, "rl:track:10.0.0.1", int64(2), time.Minute).Return(false, int64(3), nil).Once()
	s.svc.WithRateLimit(rl, 2)

	_, err := s.svc.Track(context.Background(), "10.0.0.1", models.TrackingRequest{AWB: "1234567890"})
	s.Require().ErrorIs(err, ErrRateLimited)
	s.carrier.AssertNotCalled(s.T(), "GetTracking", mock.Anything, mock.Anything)
	rl.AssertExpectations(s.T())
	s.Require().Equal(int64(1), s.svc.Stats().RateLimited)
}

func (s *ServiceSuite) TestTrack_RateLimiterDown_FailsOpen() {
	rl := &limiterMock{}
	rl.On("Allow", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(false, int64(0), errors.New("dial tcp")).Once()
	s.svc.WithRateLimit(rl, 2)
	s.carrier.On("GetTracking", mock.Anything, "1234567890").Return(outForDelivery(), nil).Once()

	_, err := s.svc.Track(context.Background(), "10.0.0.1", models.TrackingRequest{AWB: "1234567890"})
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestTrack_NoClientKey_SkipsLimiter() {
	rl := &limiterMock{}
	s.svc.WithRateLimit(rl, 2)
	s.carrier.On("GetTracking", mock.Anything, "1234567890").Return(outForDelivery(), nil).Once()

	_, err := s.svc.Track(context.Background(), "", models.TrackingRequest{AWB: "1234567890"})
	s.Require().NoError(err)
	rl.AssertNotCalled(s.T(), "Allow", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestTrack_PublishesLookup() {
	p := &producerMock{}
	s.svc.WithProducer(p, "tracking.looked_up")
	s.svc.newID = func() string { return "lookup-1" }
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.svc.now = func() time.Time { return at }

	p.On("Publish", mock.Anything, "tracking.looked_up", []byte("1234567890"), mock.MatchedBy(func(b []byte) bool {
		var m messages.TrackingLookedUp
		if json.Unmarshal(b, &m) != nil {
			return false
		}
		return m.LookupID == "lookup-1" && m.Status == "Out for Delivery" && m.EventsCount == 1 && m.LookedUpAt.Equal(at)
	})).Return(nil).Once()
	s.carrier.On("GetTracking", mock.Anything, "1234567890").Return(outForDelivery(), nil).Once()

	_, err := s.svc.Track(context.Background(), "", models.TrackingRequest{AWB: "1234567890"})
	s.Require().NoError(err)
	p.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestTrack_PublishErrorIgnored() {
	p := &producerMock{}
	s.svc.WithProducer(p, "t")
	p.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("boom")).Once()
	s.carrier.On("GetTracking", mock.Anything, "1234567890").Return(outForDelivery(), nil).Once()

	res, err := s.svc.Track(context.Background(), "", models.TrackingRequest{AWB: "1234567890"})
	s.Require().NoError(err)
	s.Require().Equal("Out for Delivery", res.Status)
}

func (s *ServiceSuite) TestTrack_NoPublishOnFailure() {
	p := &producerMock{}
	s.svc.WithProducer(p, "t")
	s.carrier.On("GetTracking", mock.Anything, "1234567890").
		Return(nil, &carrier.UpstreamError{StatusCode: 500}).
		Once()

	_, err := s.svc.Track(context.Background(), "", models.TrackingRequest{AWB: "1234567890"})
	s.Require().Error(err)
	p.AssertNotCalled(s.T(), "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}
