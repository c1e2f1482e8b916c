package sigma

import "fmt"

// ErrSourceNotFound indicates that the rule source document does not exist on disk
type ErrSourceNotFound struct {
	Path string
}

func (e ErrSourceNotFound) Error() string {
	return fmt.Sprintf("rule source %s does not exist", e.Path)
}

// ErrMalformed indicates a structured input that could not be decoded
// Record is the zero-based position of the failing record, -1 for document level failures
type ErrMalformed struct {
	Kind   SourceKind
	Record int
	Msg    string
	Err    error
}

func (e ErrMalformed) Error() string {
	msg := e.Msg
	if e.Err != nil {
		if msg != "" {
			msg += ": "
		}
		msg += e.Err.Error()
	}
	if e.Record < 0 {
		return fmt.Sprintf("malformed %s document: %s", e.Kind, msg)
	}
	return fmt.Sprintf("malformed %s record %d: %s", e.Kind, e.Record, msg)
}

func (e ErrMalformed) Unwrap() error { return e.Err }

// ErrEmptyQuery is the alert storm guard
// A rule without query would match every event in the target indices, so it is never sent
type ErrEmptyQuery struct {
	Kind   SourceKind
	Record int
	ID     string
	Title  string
}

func (e ErrEmptyQuery) Error() string {
	return fmt.Sprintf("empty query in %s record %d (id: %q, title: %q), refusing to deploy",
		e.Kind, e.Record, e.ID, e.Title)
}

// ErrTranslationFailed indicates that the sigma converter did not produce a usable query
type ErrTranslationFailed struct {
	Reason string
	Output string
	Err    error
}

func (e ErrTranslationFailed) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sigma translation failed: %s: %s", e.Reason, e.Err)
	}
	return fmt.Sprintf("sigma translation failed: %s", e.Reason)
}

func (e ErrTranslationFailed) Unwrap() error { return e.Err }

// ErrRemoteRejected is returned when detection engine responded with a failing status
type ErrRemoteRejected struct {
	Op         string
	RuleID     string
	StatusCode int
	Body       string
}

func (e ErrRemoteRejected) Error() string {
	return fmt.Sprintf("%s of rule %s rejected with status %d: %s",
		e.Op, e.RuleID, e.StatusCode, e.Body)
}

// ErrTransportFailure is returned when no response was received at all
type ErrTransportFailure struct {
	Op     string
	RuleID string
	Err    error
}

func (e ErrTransportFailure) Error() string {
	return fmt.Sprintf("%s of rule %s failed in transport: %s", e.Op, e.RuleID, e.Err)
}

func (e ErrTransportFailure) Unwrap() error { return e.Err }

// ErrMissingConfig indicates a required configuration value that was not provided
type ErrMissingConfig struct {
	Key string
}

func (e ErrMissingConfig) Error() string {
	return fmt.Sprintf("missing required configuration %s", e.Key)
}
