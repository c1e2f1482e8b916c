package sigma

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"
)

// OutcomeKind classifies the terminal state of a single rule deployment
type OutcomeKind int

const (
	Created OutcomeKind = iota
	Updated
	// ConflictThenFailed means rule existed and the follow-up update failed
	ConflictThenFailed
	// RemoteRejected means create got a failing status other than conflict
	RemoteRejected
	// RejectedBeforeSend covers extraction, translation and normalization failures
	RejectedBeforeSend
	// TransportFailed means a request got no response at all
	TransportFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case Created:
		return "created"
	case Updated:
		return "updated"
	case ConflictThenFailed:
		return "conflict_then_failed"
	case RemoteRejected:
		return "remote_rejected"
	case RejectedBeforeSend:
		return "rejected_before_send"
	case TransportFailed:
		return "transport_failed"
	}
	return "unknown"
}

// Outcome is the result of deploying one rule
// StatusCode and Body are from the last response received, if any
type Outcome struct {
	Kind       OutcomeKind
	RuleID     string
	Title      string
	StatusCode int
	Body       string
	Err        error
}

// Ok reports whether rule is live in detection engine
func (o Outcome) Ok() bool {
	return o.Kind == Created || o.Kind == Updated
}

// Rejected builds the outcome for a rule that never reached the network
func Rejected(meta Extraction, err error) Outcome {
	return Outcome{Kind: RejectedBeforeSend, RuleID: meta.ID, Title: meta.Title, Err: err}
}

func successful(status int) bool {
	return status >= 200 && status < 300
}

// Upsert creates rule, or updates it in place when detection engine reports a conflict
// Detection engine has no upsert verb, so 409 on create is the expected signal for existing rules
// There are no retries, the next scheduled run is the retry
func Upsert(ctx context.Context, rule CanonicalRule, client RuleAPIClient) Outcome {
	out := Outcome{RuleID: rule.ID, Title: rule.Title}
	contextLogger := logrus.WithFields(logrus.Fields{
		"rule_id": rule.ID,
		"name":    rule.Name,
	})
	body, err := rule.Body()
	if err != nil {
		out.Kind = RejectedBeforeSend
		out.Err = err
		return out
	}

	contextLogger.Debug("creating rule")
	resp, err := client.CreateRule(ctx, body)
	if err != nil {
		out.Kind = TransportFailed
		out.Err = ErrTransportFailure{Op: "create", RuleID: rule.ID, Err: err}
		return out
	}
	out.StatusCode, out.Body = resp.StatusCode, string(resp.Body)

	switch {
	case successful(resp.StatusCode):
		out.Kind = Created
		return out
	case resp.StatusCode != http.StatusConflict:
		out.Kind = RemoteRejected
		out.Err = ErrRemoteRejected{Op: "create", RuleID: rule.ID, StatusCode: resp.StatusCode, Body: out.Body}
		return out
	}

	contextLogger.Info("rule exists, updating")
	resp, err = client.UpdateRule(ctx, rule.ID, body)
	if err != nil {
		out.Kind = TransportFailed
		out.Err = ErrTransportFailure{Op: "update", RuleID: rule.ID, Err: err}
		return out
	}
	out.StatusCode, out.Body = resp.StatusCode, string(resp.Body)
	if successful(resp.StatusCode) {
		out.Kind = Updated
		return out
	}
	out.Kind = ConflictThenFailed
	out.Err = ErrRemoteRejected{Op: "update", RuleID: rule.ID, StatusCode: resp.StatusCode, Body: out.Body}
	return out
}
