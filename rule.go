package sigma

import (
	"bytes"
	"io"
	"strings"

	"gopkg.in/yaml.v2"
)

// Rule defines raw rule conforming to sigma rule specification
// https://github.com/SigmaHQ/sigma-specification
// Only metadata is consumed here, detection logic is handed to the converter untouched
type Rule struct {
	Author         string   `yaml:"author" json:"author"`
	Description    string   `yaml:"description" json:"description"`
	Falsepositives []string `yaml:"falsepositives" json:"falsepositives"`
	ID             string   `yaml:"id" json:"id"`
	Level          string   `yaml:"level" json:"level"`
	Title          string   `yaml:"title" json:"title"`
	Status         string   `yaml:"status" json:"status"`
	References     []string `yaml:"references" json:"references"`

	Logsource `yaml:"logsource" json:"logsource"`
	Detection `yaml:"detection" json:"detection"`
	Tags      `yaml:"tags" json:"tags"`
}

// Logsource represents the logsource field in sigma rule
type Logsource struct {
	Product    string `yaml:"product" json:"product"`
	Category   string `yaml:"category" json:"category"`
	Service    string `yaml:"service" json:"service"`
	Definition string `yaml:"definition" json:"definition"`
}

// Detection represents the detection field in sigma rule
type Detection map[string]interface{}

// Condition returns the condition expression, if present
func (d Detection) Condition() (string, bool) {
	c, ok := d["condition"].(string)
	return c, ok
}

// Tags contains a metadata list for tying rules together with other threat intel sources
// For example, for attaching MITRE ATT&CK tactics or techniques to the deployed rule
type Tags []string

// Attack returns only the MITRE ATT&CK tags
func (t Tags) Attack() Tags {
	out := make(Tags, 0, len(t))
	for _, tag := range t {
		if strings.HasPrefix(tag, "attack.") {
			out = append(out, tag)
		}
	}
	return out
}

// ParseRule decodes a single sigma rule yaml document
func ParseRule(data []byte) (*Rule, error) {
	docs, err := countDocuments(data)
	if err != nil {
		return nil, ErrMalformed{Kind: SourceYAML, Record: 0, Err: err}
	}
	switch {
	case docs == 0:
		return nil, ErrMalformed{Kind: SourceYAML, Record: 0, Msg: "sigma rule file contains no yaml document"}
	case docs > 1:
		// multipart rules carry colliding keys and cannot map to a single detection rule
		return nil, ErrMalformed{Kind: SourceYAML, Record: 0, Msg: "multipart sigma rules are not supported"}
	}
	var r Rule
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, ErrMalformed{Kind: SourceYAML, Record: 0, Err: err}
	}
	return &r, nil
}

// countDocuments returns the number of non-empty yaml documents in data
func countDocuments(data []byte) (int, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var n int
	for {
		var doc interface{}
		if err := dec.Decode(&doc); err != nil {
			if err == io.EOF {
				return n, nil
			}
			return n, err
		}
		if doc != nil {
			n++
		}
	}
}
