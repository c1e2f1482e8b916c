package sigma

import (
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/markuskont/go-sigma-rule-deploy/utils"
)

// Extraction is the metadata and query pulled out of a single source record
type Extraction struct {
	Kind   SourceKind
	Record int

	ID, Title, Description string
	Query                  string
	Tags                   []string

	// Deferred is set for raw sigma rules, query must be produced by a Translator from Raw
	Deferred bool
	Raw      []byte
}

// translatedRule is a single element of sigma converter JSON output
type translatedRule struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Query       string `json:"query"`
}

// SavedObject is the Kibana saved object envelope found in NDJSON exports
type SavedObject struct {
	ID         string                `json:"id"`
	Type       string                `json:"type"`
	Attributes SavedObjectAttributes `json:"attributes"`
}

// SavedObjectAttributes holds the rule payload of a saved object
// Query is either a plain string or an object with a nested query key
type SavedObjectAttributes struct {
	Title                 string              `json:"title"`
	Description           string              `json:"description"`
	Query                 jsoniter.RawMessage `json:"query"`
	KibanaSavedObjectMeta struct {
		SearchSourceJSON string `json:"searchSourceJSON"`
	} `json:"kibanaSavedObjectMeta"`
}

// SearchSource is the decoded form of the searchSourceJSON string
// It is the intermediate type of the second decode pass
type SearchSource struct {
	Query    jsoniter.RawMessage      `json:"query"`
	Filter   []map[string]interface{} `json:"filter"`
	IndexRef string                   `json:"indexRefName"`
}

// DecodeSearchSource runs the second decode pass on a string encoded search source
func DecodeSearchSource(encoded string) (*SearchSource, error) {
	var s SearchSource
	if err := json.Unmarshal([]byte(encoded), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// QueryString returns the query.query value of search source
func (s SearchSource) QueryString() (string, error) {
	return rawQueryString(s.Query)
}

// Extract consumes the first record of document
// Use ExtractRecord to walk all records
func Extract(doc SourceDocument) (Extraction, error) {
	if doc.Len() == 0 {
		return Extraction{}, ErrMalformed{Kind: doc.Kind, Record: -1, Msg: "document contains no rule records"}
	}
	return ExtractRecord(doc.Kind, 0, doc.Records[0])
}

// ExtractRecord pulls query and metadata from a single record
// Any non-deferred extraction is guaranteed to carry a non-empty query
func ExtractRecord(kind SourceKind, idx int, rec []byte) (Extraction, error) {
	switch kind {
	case SourceJSON:
		return extractTranslated(idx, rec)
	case SourceNDJSON:
		return extractSavedObject(idx, rec)
	case SourceYAML:
		return extractSigma(idx, rec)
	}
	return Extraction{}, ErrMalformed{Kind: kind, Record: idx, Msg: "unsupported source kind"}
}

func extractTranslated(idx int, rec []byte) (Extraction, error) {
	var r translatedRule
	if err := json.Unmarshal(rec, &r); err != nil {
		return Extraction{}, ErrMalformed{Kind: SourceJSON, Record: idx, Err: err}
	}
	e := Extraction{
		Kind:        SourceJSON,
		Record:      idx,
		ID:          strings.TrimSpace(r.ID),
		Title:       strings.TrimSpace(r.Title),
		Description: strings.TrimSpace(r.Description),
		Query:       strings.TrimSpace(r.Query),
	}
	if e.Query == "" {
		return e, ErrEmptyQuery{Kind: SourceJSON, Record: idx, ID: e.ID, Title: e.Title}
	}
	return e, nil
}

func extractSavedObject(idx int, rec []byte) (Extraction, error) {
	var obj SavedObject
	if err := json.Unmarshal(rec, &obj); err != nil {
		return Extraction{}, ErrMalformed{Kind: SourceNDJSON, Record: idx, Err: err}
	}
	e := Extraction{
		Kind:        SourceNDJSON,
		Record:      idx,
		ID:          strings.TrimSpace(obj.ID),
		Title:       strings.TrimSpace(obj.Attributes.Title),
		Description: strings.TrimSpace(obj.Attributes.Description),
	}
	q, err := rawQueryString(obj.Attributes.Query)
	if err != nil {
		return e, ErrMalformed{Kind: SourceNDJSON, Record: idx, Msg: "attributes.query", Err: err}
	}
	if q == "" {
		if encoded := obj.Attributes.KibanaSavedObjectMeta.SearchSourceJSON; encoded != "" {
			src, err := DecodeSearchSource(encoded)
			if err != nil {
				return e, ErrMalformed{Kind: SourceNDJSON, Record: idx,
					Msg: "attributes.kibanaSavedObjectMeta.searchSourceJSON", Err: err}
			}
			if q, err = src.QueryString(); err != nil {
				return e, ErrMalformed{Kind: SourceNDJSON, Record: idx,
					Msg: "searchSourceJSON query.query", Err: err}
			}
		}
	}
	if e.Query = q; q == "" {
		return e, ErrEmptyQuery{Kind: SourceNDJSON, Record: idx, ID: e.ID, Title: e.Title}
	}
	return e, nil
}

func extractSigma(idx int, rec []byte) (Extraction, error) {
	r, err := ParseRule(rec)
	if err != nil {
		if m, ok := err.(ErrMalformed); ok {
			m.Record = idx
			return Extraction{}, m
		}
		return Extraction{}, err
	}
	return Extraction{
		Kind:        SourceYAML,
		Record:      idx,
		ID:          strings.TrimSpace(r.ID),
		Title:       strings.TrimSpace(r.Title),
		Description: strings.TrimSpace(r.Description),
		Tags:        r.Tags,
		Deferred:    true,
		Raw:         rec,
	}, nil
}

// rawQueryString resolves a query that is either a string or an object holding a query key
func rawQueryString(raw jsoniter.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	return queryValue(v)
}

func queryValue(v interface{}) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(val), nil
	case map[string]interface{}:
		inner, ok := utils.GetField("query", val)
		if !ok {
			return "", nil
		}
		return queryValue(inner)
	default:
		return "", errors.Errorf("query has unexpected type %T", v)
	}
}
