package sigma

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

type engineCall struct {
	Op, RuleID string
}

// mockEngine mimics detection engine rule storage
// Statuses override the stateful behavior when set
type mockEngine struct {
	rules map[string]RuleBody
	calls []engineCall

	createStatus, updateStatus int
	createErr, updateErr       error
}

func newMockEngine() *mockEngine {
	return &mockEngine{rules: make(map[string]RuleBody)}
}

func (m *mockEngine) CreateRule(ctx context.Context, body []byte) (*Response, error) {
	var b RuleBody
	if err := json.Unmarshal(body, &b); err != nil {
		return &Response{StatusCode: http.StatusBadRequest, Body: []byte(err.Error())}, nil
	}
	m.calls = append(m.calls, engineCall{Op: "create", RuleID: b.RuleID})
	if m.createErr != nil {
		return nil, m.createErr
	}
	if m.createStatus != 0 {
		return &Response{StatusCode: m.createStatus, Body: []byte(`{"message":"create override"}`)}, nil
	}
	if _, ok := m.rules[b.RuleID]; ok {
		return &Response{
			StatusCode: http.StatusConflict,
			Body:       []byte(`{"message":"rule_id: \"` + b.RuleID + `\" already exists","status_code":409}`),
		}, nil
	}
	m.rules[b.RuleID] = b
	return &Response{StatusCode: http.StatusOK, Body: body}, nil
}

func (m *mockEngine) UpdateRule(ctx context.Context, ruleID string, body []byte) (*Response, error) {
	m.calls = append(m.calls, engineCall{Op: "update", RuleID: ruleID})
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	if m.updateStatus != 0 {
		return &Response{StatusCode: m.updateStatus, Body: []byte(`{"message":"update override"}`)}, nil
	}
	if _, ok := m.rules[ruleID]; !ok {
		return &Response{StatusCode: http.StatusNotFound, Body: []byte(`{"message":"not found"}`)}, nil
	}
	var b RuleBody
	if err := json.Unmarshal(body, &b); err != nil {
		return &Response{StatusCode: http.StatusBadRequest}, nil
	}
	m.rules[ruleID] = b
	return &Response{StatusCode: http.StatusOK, Body: body}, nil
}

func testRule(t *testing.T) CanonicalRule {
	t.Helper()
	r, err := Normalize(Extraction{ID: "r-1", Title: "Encoded PowerShell"}, "process.name:powershell.exe", DefaultPolicy())
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestUpsertCreated(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusCreated} {
		m := newMockEngine()
		m.createStatus = status
		out := Upsert(context.Background(), testRule(t), m)
		if out.Kind != Created || !out.Ok() {
			t.Fatalf("status %d: expected created, got %s", status, out.Kind)
		}
		if out.StatusCode != status || out.Err != nil {
			t.Fatalf("status %d: unexpected outcome %+v", status, out)
		}
		if len(m.calls) != 1 {
			t.Fatalf("status %d: expected a single create call, got %v", status, m.calls)
		}
	}
}

func TestUpsertUpdated(t *testing.T) {
	m := newMockEngine()
	m.createStatus = http.StatusConflict
	m.updateStatus = http.StatusOK
	out := Upsert(context.Background(), testRule(t), m)
	if out.Kind != Updated || !out.Ok() {
		t.Fatalf("expected updated, got %s: %v", out.Kind, out.Err)
	}
	expected := []engineCall{{Op: "create", RuleID: "r-1"}, {Op: "update", RuleID: "r-1"}}
	if len(m.calls) != 2 || m.calls[0] != expected[0] || m.calls[1] != expected[1] {
		t.Fatalf("expected %v, got %v", expected, m.calls)
	}
}

func TestUpsertConflictThenFailed(t *testing.T) {
	m := newMockEngine()
	m.createStatus = http.StatusConflict
	m.updateStatus = http.StatusBadRequest
	out := Upsert(context.Background(), testRule(t), m)
	if out.Kind != ConflictThenFailed || out.Ok() {
		t.Fatalf("expected conflict_then_failed, got %s", out.Kind)
	}
	if out.StatusCode != http.StatusBadRequest || out.Body != `{"message":"update override"}` {
		t.Fatalf("outcome must carry update response, got %d %s", out.StatusCode, out.Body)
	}
	var rej ErrRemoteRejected
	if !errors.As(out.Err, &rej) || rej.Op != "update" {
		t.Fatalf("expected update rejection, got %v", out.Err)
	}
	if ExitCode([]Outcome{out}) == 0 {
		t.Fatal("conflict then failed must produce non-zero exit code")
	}
}

func TestUpsertRemoteRejected(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusInternalServerError} {
		m := newMockEngine()
		m.createStatus = status
		out := Upsert(context.Background(), testRule(t), m)
		if out.Kind != RemoteRejected {
			t.Fatalf("status %d: expected remote_rejected, got %s", status, out.Kind)
		}
		if len(m.calls) != 1 {
			t.Fatalf("status %d: no update or retry expected, got %v", status, m.calls)
		}
		var rej ErrRemoteRejected
		if !errors.As(out.Err, &rej) || rej.StatusCode != status || rej.Op != "create" {
			t.Fatalf("status %d: unexpected error %v", status, out.Err)
		}
	}
}

func TestUpsertTransportFailed(t *testing.T) {
	boom := errors.New("connection refused")

	m := newMockEngine()
	m.createErr = boom
	out := Upsert(context.Background(), testRule(t), m)
	if out.Kind != TransportFailed || !errors.Is(out.Err, boom) {
		t.Fatalf("expected transport failure on create, got %s: %v", out.Kind, out.Err)
	}
	if out.StatusCode != 0 {
		t.Fatalf("no status expected without response, got %d", out.StatusCode)
	}

	m = newMockEngine()
	m.createStatus = http.StatusConflict
	m.updateErr = boom
	out = Upsert(context.Background(), testRule(t), m)
	var tf ErrTransportFailure
	if out.Kind != TransportFailed || !errors.As(out.Err, &tf) || tf.Op != "update" {
		t.Fatalf("expected transport failure on update, got %s: %v", out.Kind, out.Err)
	}
}

func TestUpsertIdempotent(t *testing.T) {
	m := newMockEngine()
	rule := testRule(t)
	first := Upsert(context.Background(), rule, m)
	second := Upsert(context.Background(), rule, m)
	if first.Kind != Created || second.Kind != Updated {
		t.Fatalf("expected created then updated, got %s then %s", first.Kind, second.Kind)
	}
	if len(m.rules) != 1 {
		t.Fatalf("expected a single stored rule, got %d", len(m.rules))
	}
	if m.rules["r-1"].Query != rule.Query {
		t.Fatalf("stored rule has query %q", m.rules["r-1"].Query)
	}
}

func TestExitCode(t *testing.T) {
	cases := []struct {
		kinds []OutcomeKind
		code  int
	}{
		{kinds: nil, code: 1},
		{kinds: []OutcomeKind{Created}, code: 0},
		{kinds: []OutcomeKind{Updated}, code: 0},
		{kinds: []OutcomeKind{Created, Updated}, code: 0},
		{kinds: []OutcomeKind{Created, RemoteRejected}, code: 1},
		{kinds: []OutcomeKind{RejectedBeforeSend}, code: 1},
		{kinds: []OutcomeKind{TransportFailed}, code: 1},
		{kinds: []OutcomeKind{ConflictThenFailed}, code: 1},
	}
	for i, c := range cases {
		outcomes := make([]Outcome, 0, len(c.kinds))
		for _, k := range c.kinds {
			outcomes = append(outcomes, Outcome{Kind: k})
		}
		if code := ExitCode(outcomes); code != c.code {
			t.Fatalf("case %d: expected exit code %d, got %d", i+1, c.code, code)
		}
	}
}
