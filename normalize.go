package sigma

import (
	"strings"

	"github.com/google/uuid"
)

const (
	// DefaultTitle is used when source omits rule title
	DefaultTitle = "Unnamed Sigma Rule"
	// DefaultDescription attributes rules without description to this pipeline
	DefaultDescription = "Deployed by the Sigma detection pipeline; no description provided"
	// DefaultPipelineTag prefixes display names and is attached to every deployed rule
	DefaultPipelineTag = "Sigma"
)

// placeholderNamespace scopes generated rule ids
var placeholderNamespace = uuid.MustParse("6f3c0a52-4e8b-5d43-9a57-2f1d0c7b8e61")

// Policy holds fixed detection engine settings injected into every rule
// They are not derived from the source rule
type Policy struct {
	Severity  string
	RiskScore int
	// Interval is the rule schedule, From is the lookback
	// Lookback is kept one minute longer than interval so scheduler jitter leaves no gap
	Interval string
	From     string
	Index    []string
	// PipelineTag is prepended to display name and added to tags
	PipelineTag string
}

// DefaultPolicy returns the policy used by the deployment pipeline
func DefaultPolicy() Policy {
	return Policy{
		Severity:    "high",
		RiskScore:   73,
		Interval:    "5m",
		From:        "now-6m",
		Index:       []string{"logs-*"},
		PipelineTag: DefaultPipelineTag,
	}
}

func (p Policy) namePrefix() string {
	if p.PipelineTag == "" {
		return ""
	}
	return p.PipelineTag + " - "
}

// CanonicalRule is the normalized rule handed to detection engine
type CanonicalRule struct {
	ID          string
	Title       string
	Name        string
	Description string
	Query       string

	Severity  string
	RiskScore int
	Interval  string
	From      string
	Index     []string
	Tags      []string
}

// RuleBody is the detection engine create and update request body
type RuleBody struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Enabled     bool     `json:"enabled"`
	Query       string   `json:"query"`
	Severity    string   `json:"severity"`
	RiskScore   int      `json:"risk_score"`
	Interval    string   `json:"interval"`
	From        string   `json:"from"`
	RuleID      string   `json:"rule_id"`
	Index       []string `json:"index"`
	Tags        []string `json:"tags"`
}

// Normalize maps extracted metadata and query to a CanonicalRule
// Empty query is rejected, this is the last check before any network I/O
func Normalize(meta Extraction, query string, policy Policy) (CanonicalRule, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return CanonicalRule{}, ErrEmptyQuery{
			Kind:   meta.Kind,
			Record: meta.Record,
			ID:     meta.ID,
			Title:  meta.Title,
		}
	}
	title := meta.Title
	if title == "" {
		title = DefaultTitle
	}
	description := meta.Description
	if description == "" {
		description = DefaultDescription
	}
	id := meta.ID
	if id == "" {
		id = PlaceholderID(title, query)
	}
	return CanonicalRule{
		ID:          id,
		Title:       title,
		Name:        policy.namePrefix() + title,
		Description: description,
		Query:       query,
		Severity:    policy.Severity,
		RiskScore:   policy.RiskScore,
		Interval:    policy.Interval,
		From:        policy.From,
		Index:       append([]string{}, policy.Index...),
		Tags:        ruleTags(policy.PipelineTag, meta.Tags),
	}, nil
}

// PlaceholderID derives a stable rule id for sources that do not carry one
// Same title and query always map to the same id, so reruns update instead of duplicating
func PlaceholderID(title, query string) string {
	return uuid.NewSHA1(placeholderNamespace, []byte(title+"\x00"+query)).String()
}

func ruleTags(pipeline string, source []string) []string {
	tags := make([]string, 0, len(source)+1)
	seen := make(map[string]bool)
	for _, t := range append([]string{pipeline}, source...) {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tags = append(tags, t)
	}
	return tags
}

// RuleBody returns the request body representation of rule
func (r CanonicalRule) RuleBody() RuleBody {
	return RuleBody{
		Name:        r.Name,
		Type:        "query",
		Description: r.Description,
		Enabled:     true,
		Query:       r.Query,
		Severity:    r.Severity,
		RiskScore:   r.RiskScore,
		Interval:    r.Interval,
		From:        r.From,
		RuleID:      r.ID,
		Index:       r.Index,
		Tags:        r.Tags,
	}
}

// Body encodes rule as a detection engine request body
func (r CanonicalRule) Body() ([]byte, error) {
	return json.Marshal(r.RuleBody())
}

// DecodeRuleBody decodes a request body back to a CanonicalRule
// Display name prefix of policy is stripped to recover the title
func DecodeRuleBody(data []byte, policy Policy) (CanonicalRule, error) {
	var b RuleBody
	if err := json.Unmarshal(data, &b); err != nil {
		return CanonicalRule{}, err
	}
	return CanonicalRule{
		ID:          b.RuleID,
		Title:       strings.TrimPrefix(b.Name, policy.namePrefix()),
		Name:        b.Name,
		Description: b.Description,
		Query:       b.Query,
		Severity:    b.Severity,
		RiskScore:   b.RiskScore,
		Interval:    b.Interval,
		From:        b.From,
		Index:       b.Index,
		Tags:        b.Tags,
	}, nil
}
