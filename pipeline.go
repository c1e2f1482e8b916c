package sigma

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Observer receives every outcome produced by a Pipeline
type Observer interface {
	Observe(Outcome)
}

// Pipeline runs extraction, translation, normalization and upsert for source records
// Records are handled one at a time, in order
type Pipeline struct {
	Client RuleAPIClient
	// Translator is only required for sigma yaml sources
	Translator Translator
	Target     Target
	Policy     Policy

	// BatchSize limits the number of records consumed from a document, 0 means all
	BatchSize int

	Observer Observer
}

// NewPipeline returns a pipeline with default policy and a batch size of one
func NewPipeline(client RuleAPIClient, translator Translator, target Target) *Pipeline {
	return &Pipeline{
		Client:     client,
		Translator: translator,
		Target:     target,
		Policy:     DefaultPolicy(),
		BatchSize:  1,
	}
}

// Records returns the records of doc that fall within batch size
func (p Pipeline) Records(doc SourceDocument) [][]byte {
	if p.BatchSize > 0 && p.BatchSize < doc.Len() {
		return doc.Records[:p.BatchSize]
	}
	return doc.Records
}

// Prepare turns record idx of document into a CanonicalRule without touching the network
func (p Pipeline) Prepare(ctx context.Context, kind SourceKind, idx int, rec []byte) (Extraction, CanonicalRule, error) {
	meta, err := ExtractRecord(kind, idx, rec)
	if err != nil {
		return meta, CanonicalRule{}, err
	}
	query := meta.Query
	if meta.Deferred {
		if p.Translator == nil {
			return meta, CanonicalRule{}, ErrTranslationFailed{Reason: "no translator configured for sigma rule source"}
		}
		if query, err = p.Translator.Translate(ctx, meta.Raw, p.Target); err != nil {
			return meta, CanonicalRule{}, err
		}
	}
	rule, err := Normalize(meta, query, p.Policy)
	return meta, rule, err
}

// Run deploys records of doc and returns one outcome per processed record
// Processing stops at the first failed outcome
func (p Pipeline) Run(ctx context.Context, doc SourceDocument) []Outcome {
	records := p.Records(doc)
	if len(records) < doc.Len() {
		logrus.Debugf("consuming %d of %d records from %s", len(records), doc.Len(), doc.Path)
	}
	outcomes := make([]Outcome, 0, len(records))
	for i, rec := range records {
		var out Outcome
		meta, rule, err := p.Prepare(ctx, doc.Kind, i, rec)
		if err != nil {
			out = Rejected(meta, err)
		} else {
			out = Upsert(ctx, rule, p.Client)
		}
		if p.Observer != nil {
			p.Observer.Observe(out)
		}
		outcomes = append(outcomes, out)
		if !out.Ok() {
			break
		}
	}
	return outcomes
}

// ExitCode maps outcomes to process exit status
// Zero only when at least one rule was deployed and nothing failed
func ExitCode(outcomes []Outcome) int {
	if len(outcomes) == 0 {
		return 1
	}
	for _, o := range outcomes {
		if !o.Ok() {
			return 1
		}
	}
	return 0
}
