package sigma

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// SourceKind identifies one of the supported upstream rule encodings
type SourceKind int

const (
	SourceAuto SourceKind = iota
	// SourceJSON is a JSON array of already translated rules, direct sigma converter output
	SourceJSON
	// SourceNDJSON is a Kibana saved object export, one object per line
	SourceNDJSON
	// SourceYAML is a raw sigma rule that still needs translation
	SourceYAML
)

func (k SourceKind) String() string {
	switch k {
	case SourceJSON:
		return "json"
	case SourceNDJSON:
		return "ndjson"
	case SourceYAML:
		return "yaml"
	default:
		return "auto"
	}
}

// NewSourceKind parses a user supplied format name
func NewSourceKind(raw string) (SourceKind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "auto":
		return SourceAuto, nil
	case "json":
		return SourceJSON, nil
	case "ndjson":
		return SourceNDJSON, nil
	case "yaml", "yml", "sigma":
		return SourceYAML, nil
	}
	return SourceAuto, errors.Errorf("unknown source format %q", raw)
}

// DetectSourceKind resolves the source kind from file suffix
func DetectSourceKind(path string) (SourceKind, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return SourceJSON, nil
	case ".ndjson":
		return SourceNDJSON, nil
	case ".yml", ".yaml":
		return SourceYAML, nil
	}
	return SourceAuto, errors.Errorf("cannot detect source format of %s, set it explicitly", path)
}

// SourceDocument is an ingested rule source, split into raw records
// It is not modified after ReadSource returns
type SourceDocument struct {
	Kind    SourceKind
	Path    string
	Records [][]byte
}

// Len returns the number of records in document
func (d SourceDocument) Len() int { return len(d.Records) }

// ReadSource loads a rule source document from disk
// SourceAuto is resolved by file suffix
// A directory is read as a tree of sigma yaml rules
func ReadSource(path string, kind SourceKind) (*SourceDocument, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, ErrSourceNotFound{Path: path}
	}
	if err == nil && info.IsDir() {
		if kind != SourceAuto && kind != SourceYAML {
			return nil, errors.Errorf("%s is a directory, only %s rules can be read from it", path, SourceYAML)
		}
		return ReadRuleDirectory(path)
	}
	if kind == SourceAuto {
		if kind, err = DetectSourceKind(path); err != nil {
			return nil, err
		}
	}
	data, err := ioutil.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSourceNotFound{Path: path}
		}
		return nil, errors.Wrapf(err, "read rule source %s", path)
	}
	doc, err := NewSourceDocument(kind, data)
	if err != nil {
		return nil, err
	}
	doc.Path = path
	return doc, nil
}

// NewSourceDocument splits raw data into records according to kind
func NewSourceDocument(kind SourceKind, data []byte) (*SourceDocument, error) {
	var (
		records [][]byte
		err     error
	)
	switch kind {
	case SourceJSON:
		records, err = splitJSONList(data)
	case SourceNDJSON:
		records = splitSavedObjects(data)
	case SourceYAML:
		if len(bytes.TrimSpace(data)) > 0 {
			records = [][]byte{data}
		}
	default:
		return nil, errors.Errorf("source kind %s cannot be decoded without a path", kind)
	}
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrMalformed{Kind: kind, Record: -1, Msg: "document contains no rule records"}
	}
	return &SourceDocument{Kind: kind, Records: records}, nil
}

// splitJSONList accepts a JSON array of rules, or a single rule object
func splitJSONList(data []byte) ([][]byte, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	if data[0] == '{' {
		return [][]byte{data}, nil
	}
	var list []jsoniter.RawMessage
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, ErrMalformed{Kind: SourceJSON, Record: -1, Err: err}
	}
	out := make([][]byte, 0, len(list))
	for _, item := range list {
		out = append(out, []byte(item))
	}
	return out, nil
}

// splitSavedObjects returns one record per non-blank line
// The trailing export summary line Kibana appends to saved object exports is dropped
func splitSavedObjects(data []byte) [][]byte {
	out := make([][]byte, 0)
	for _, line := range bytes.Split(data, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 || isExportSummary(line) {
			continue
		}
		out = append(out, line)
	}
	return out
}

func isExportSummary(line []byte) bool {
	return bytes.Contains(line, []byte(`"exportedCount"`)) &&
		!bytes.Contains(line, []byte(`"attributes"`))
}
