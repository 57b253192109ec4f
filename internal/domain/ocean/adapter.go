package ocean

import "context"

// SourceAdapter wraps one external provider for one domain.
//
// Fetch must honour ctx and return a *FetchError with kind FetchTimeout
// when the deadline passes, or FetchUnavailable for any other failure. On
// success the dataset passes Validate. Fallback returns the static sample
// the orchestrator substitutes when Fetch fails; Fetch never substitutes it
// itself.
type SourceAdapter interface {
	Domain() Domain
	Label() string
	Fetch(ctx context.Context, req DataRequest) (Dataset, error)
	Fallback(req DataRequest) Dataset
}
