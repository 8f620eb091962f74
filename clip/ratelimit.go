package clip

import (
	"context"
	"fmt"
	"golang.org/x/time/rate"
)

// limited is a MediaExtractor that waits on a rate limiter before each
// extraction
type limited struct {
	next    MediaExtractor
	limiter *rate.Limiter
}

// RateLimit wraps an extractor so calls are spaced by the limiter.  A nil
// limiter returns next unchanged
func RateLimit(next MediaExtractor, limiter *rate.Limiter) MediaExtractor {
	if limiter == nil {
		return next
	}
	return &limited{next: next, limiter: limiter}
}

// Extract waits for the limiter then calls the wrapped extractor
func (l *limited) Extract(ctx context.Context, req ClipRequest) (ClipRef, ThumbnailRef, error) {

	if err := l.limiter.Wait(ctx); err != nil {
		return ClipRef{}, ThumbnailRef{}, fmt.Errorf("extract rate limit: %w", err)
	}

	return l.next.Extract(ctx, req)
}
