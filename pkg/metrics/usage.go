package metrics

// TokenUsage is the token accounting a language model reports for one
// answer.
type TokenUsage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens,omitempty"`
	TotalTokens      int `json:"totalTokens"`
}

// IsZero reports whether usage data is absent.
func (u TokenUsage) IsZero() bool {
	return u.PromptTokens == 0 && u.CompletionTokens == 0 && u.TotalTokens == 0
}

// Completion returns the completion tokens, derived from the total when a
// provider omits the field.
func (u TokenUsage) Completion() int {
	if u.CompletionTokens > 0 || u.TotalTokens <= u.PromptTokens {
		return u.CompletionTokens
	}
	return u.TotalTokens - u.PromptTokens
}
