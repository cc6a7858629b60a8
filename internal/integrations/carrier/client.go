package carrier

import (
	"context"
	"fmt"
)

// Payload is the decoded carrier body. Numbers are json.Number.
type Payload = any

type Client interface {
	GetTracking(ctx context.Context, waybill string) (Payload, error)
}

// UpstreamError reports a non-2xx answer from the carrier. The body is not read.
type UpstreamError struct {
	StatusCode int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("carrier upstream http %d", e.StatusCode)
}
