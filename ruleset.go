package sigma

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// RuleFileList finds all sigma yaml files from defined root directories
// Subtree is scanned recursively, result is sorted for stable record order
// No file validation, other than suffix matching
func RuleFileList(dirs ...string) ([]string, error) {
	out := make([]string, 0)
	for _, dir := range dirs {
		if err := filepath.Walk(dir, func(
			path string,
			info os.FileInfo,
			err error,
		) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				return nil
			}
			switch strings.ToLower(filepath.Ext(path)) {
			case ".yml", ".yaml":
				out = append(out, path)
			}
			return nil
		}); err != nil {
			if os.IsNotExist(err) {
				return nil, ErrSourceNotFound{Path: dir}
			}
			return nil, errors.Wrapf(err, "scan rule directory %s", dir)
		}
	}
	sort.Strings(out)
	return out, nil
}

// ReadRuleDirectory loads every sigma rule file under dirs as one yaml SourceDocument
// Each file becomes one record, empty files are skipped
func ReadRuleDirectory(dirs ...string) (*SourceDocument, error) {
	if len(dirs) == 0 {
		return nil, errors.New("missing root directory for sigma rules")
	}
	files, err := RuleFileList(dirs...)
	if err != nil {
		return nil, err
	}
	records := make([][]byte, 0, len(files))
	for _, path := range files {
		data, err := ioutil.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read rule file %s", path)
		}
		if len(strings.TrimSpace(string(data))) == 0 {
			logrus.Debugf("skipping empty rule file %s", path)
			continue
		}
		records = append(records, data)
	}
	if len(records) == 0 {
		return nil, ErrMalformed{Kind: SourceYAML, Record: -1, Msg: "rule directory contains no sigma rules"}
	}
	return &SourceDocument{
		Kind:    SourceYAML,
		Path:    strings.Join(dirs, ","),
		Records: records,
	}, nil
}
