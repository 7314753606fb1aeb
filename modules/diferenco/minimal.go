package diferenco

import (
	"context"
)

// MinimalDiff computes a minimal (not necessarily fastest) edit script
// between L1 and L2 by delegating to the Myers O(ND) algorithm already
// implemented in this package (myers.go); kept as a distinct entry point
// for callers that want the "minimal" framing without depending on the
// Myers name directly.
func MinimalDiff[E comparable](ctx context.Context, L1 []E, L2 []E) ([]Change, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return MyersDiff(L1, L2), nil
}
