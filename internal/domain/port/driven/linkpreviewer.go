package driven

import (
	"context"

	"github.com/ericfisherdev/leadinbox/internal/domain/model"
)

// LinkPreviewer fetches page metadata for a shared URL. Implementations never
// fail on upstream errors; they return a domain-only fallback preview instead.
type LinkPreviewer interface {
	Preview(ctx context.Context, rawURL string) (model.LinkPreview, error)
}
