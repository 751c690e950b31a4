package resilience

import (
	"context"

	"github.com/krjackso/gw2-data-repo/pkg/provider/llm"
)

// ExtractionFallback implements [llm.Provider] with automatic failover
// across multiple model backends. Each backend has its own circuit breaker;
// when the primary fails or its breaker is open, the next healthy fallback
// is tried. The extractor sees one provider regardless of how many backends
// are configured behind it.
type ExtractionFallback struct {
	group *FallbackGroup[llm.Provider]
}

var _ llm.Provider = (*ExtractionFallback)(nil)

// NewExtractionFallback creates an [ExtractionFallback] with primary as the
// preferred backend.
func NewExtractionFallback(primary llm.Provider, primaryName string, cfg FallbackConfig) *ExtractionFallback {
	return &ExtractionFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional backend. Fallbacks are tried in the
// order they are added, after the primary.
func (f *ExtractionFallback) AddFallback(name string, provider llm.Provider) {
	f.group.AddFallback(name, provider)
}

// Complete sends the request to the first healthy backend and returns its
// response.
func (f *ExtractionFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return ExecuteWithResult(f.group, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// Capabilities returns the primary backend's capabilities. This does not
// participate in failover: capabilities are static metadata.
func (f *ExtractionFallback) Capabilities() llm.ModelCapabilities {
	if len(f.group.entries) > 0 {
		return f.group.entries[0].value.Capabilities()
	}
	return llm.ModelCapabilities{}
}
