package sigma

import (
	"testing"

	"github.com/pkg/errors"
)

func TestParseRule(t *testing.T) {
	r, err := ParseRule([]byte(sigmaRule))
	if err != nil {
		t.Fatal(err)
	}
	if r.Title != "Encoded PowerShell" || r.Level != "high" {
		t.Fatalf("unexpected metadata %+v", r)
	}
	if r.Logsource.Product != "windows" || r.Logsource.Category != "process_creation" {
		t.Fatalf("unexpected logsource %+v", r.Logsource)
	}
	cond, ok := r.Detection.Condition()
	if !ok || cond != "selection" {
		t.Fatalf("expected condition selection, got %q", cond)
	}
	attack := r.Tags.Attack()
	if len(attack) != 2 || attack[0] != "attack.execution" {
		t.Fatalf("unexpected attack tags %v", attack)
	}
}

func TestParseRuleMalformed(t *testing.T) {
	for i, data := range []string{
		"title: a\ndetection:\n  condition: x\n---\ntitle: b\n",
		"title: [unterminated",
		"---\ntitle: First\nid: a\ndetection:\n  condition: x\n---\ntitle: Second\nid: b\n",
		"# comment only\n",
	} {
		_, err := ParseRule([]byte(data))
		var m ErrMalformed
		if !errors.As(err, &m) {
			t.Fatalf("case %d: expected ErrMalformed, got %v", i+1, err)
		}
	}
}

func TestTagsAttack(t *testing.T) {
	tags := Tags{"attack.t1059", "cve.2021-44228", "attack.execution"}
	if got := tags.Attack(); len(got) != 2 || got[1] != "attack.execution" {
		t.Fatalf("unexpected attack tags %v", got)
	}
	if got := (Tags{}).Attack(); len(got) != 0 {
		t.Fatalf("expected no tags, got %v", got)
	}
}

func TestParseRuleLeadingSeparator(t *testing.T) {
	r, err := ParseRule([]byte("---\n" + sigmaRule))
	if err != nil {
		t.Fatal(err)
	}
	if r.Title != "Encoded PowerShell" {
		t.Fatalf("unexpected title %q", r.Title)
	}
}
