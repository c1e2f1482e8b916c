package sigma

import "context"

// Response is a detection engine reply as received on the wire
type Response struct {
	StatusCode int
	Body       []byte
}

// RuleAPIClient talks to the detection engine rules endpoint
// A non-nil error means no response was received, failing statuses are returned as Response
type RuleAPIClient interface {
	// CreateRule sends a create request with encoded rule body
	CreateRule(ctx context.Context, body []byte) (*Response, error)
	// UpdateRule replaces the rule addressed by ruleID
	UpdateRule(ctx context.Context, ruleID string, body []byte) (*Response, error)
}

// Target selects the query language and field schema for sigma translation
type Target struct {
	Language string
	Schema   string
}

// Translator converts a raw sigma rule into a query string of Target language
// Implementations must return ErrTranslationFailed for unusable output
type Translator interface {
	Translate(ctx context.Context, raw []byte, target Target) (string, error)
}
