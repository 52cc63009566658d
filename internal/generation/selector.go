package generation

// ModelSelector chooses the generation-backend variant for a request.
// The current policy is a pure two-way branch on the performance flag;
// it is kept behind a small type as the seam for future load- or
// cost-based selection.
type ModelSelector struct {
	defaultModel         string
	highPerformanceModel string
}

// NewModelSelector creates a ModelSelector over the two configured variants.
func NewModelSelector(defaultModel, highPerformanceModel string) *ModelSelector {
	return &ModelSelector{
		defaultModel:         defaultModel,
		highPerformanceModel: highPerformanceModel,
	}
}

// Select returns the higher-capability variant when high performance is
// required, else the economical default.
func (s *ModelSelector) Select(requireHighPerformance bool) string {
	if requireHighPerformance {
		return s.highPerformanceModel
	}
	return s.defaultModel
}
