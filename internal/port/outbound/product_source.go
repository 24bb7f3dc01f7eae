package outbound

import (
	"catalogboost/internal/application/dto"
	"context"
)

// ProductSource resolves product ids back to full content payloads. The
// retry-failed endpoint re-submits payloads rather than bare ids because
// the original per-product request context may have been superseded; the
// same source feeds the preview request.
//
// Payloads come from a local product cache that may have drifted from
// what was actually approved server-side; retry results can therefore
// differ from the original preview.
type ProductSource interface {
	// ResolvePayloads returns payloads for the given product ids, in the
	// given order. Unknown ids are an error.
	ResolvePayloads(ctx context.Context, productIDs []int64) ([]dto.ProductPayload, error)
}
