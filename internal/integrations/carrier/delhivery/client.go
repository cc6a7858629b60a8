package delhivery

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/BearBump/TrackIN/config"
	"github.com/BearBump/TrackIN/internal/integrations/carrier"
	"github.com/pkg/errors"
)

const packagesPath = "/api/v1/packages/json/"

type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

// New builds a pull API client. No client timeout is set: the call is bounded
// by the request context and the platform defaults only.
func New(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = config.DefaultCarrierBaseURL
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpc:   &http.Client{},
	}
}

func NewFromConfig(cfg config.CarrierConfig) *Client {
	return New(cfg.BaseURL, cfg.Token)
}

func (c *Client) GetTracking(ctx context.Context, waybill string) (carrier.Payload, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	u.Path = strings.TrimRight(u.Path, "/") + packagesPath

	q := u.Query()
	q.Set("token", c.token)
	q.Set("waybill", waybill)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		// url.Error carries the full URL, token included.
		var ue *url.Error
		if errors.As(err, &ue) {
			return nil, errors.Wrap(ue.Err, "do request")
		}
		return nil, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, &carrier.UpstreamError{StatusCode: resp.StatusCode}
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var payload carrier.Payload
	if err := dec.Decode(&payload); err != nil {
		return nil, errors.Wrap(err, "decode")
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, errors.Wrap(ErrMalformedPayload, "trailing data after JSON body")
	}
	return payload, nil
}
