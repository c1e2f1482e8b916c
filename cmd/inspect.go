/*
Copyright © 2020 Markus Kont alias013@gmail.com

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type counts struct {
	ok, fail int
}

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print detection engine request bodies without deploying",
	Long: `Inspect runs extraction, translation and normalization on the rule source and prints
the resulting request bodies. Nothing is sent to Kibana, so no credentials are needed.`,
	RunE: inspect,
}

func writeBody(w io.Writer, body []byte, format string) error {
	switch format {
	case "yaml":
		var obj map[string]interface{}
		if err := json.Unmarshal(body, &obj); err != nil {
			return err
		}
		out, err := yaml.Marshal(obj)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "---\n%s", out)
		return err
	case "json":
		var obj interface{}
		if err := json.Unmarshal(body, &obj); err != nil {
			return err
		}
		out, err := json.MarshalIndent(obj, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(out))
		return err
	}
	return errors.Errorf("unsupported output format %q", format)
}

func inspect(cmd *cobra.Command, args []string) error {
	doc, err := sourceDocument()
	if err != nil {
		return err
	}
	p := newPipeline(nil)
	records := p.Records(*doc)
	format := viper.GetString("inspect.output")
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	c := &counts{}
	for i, rec := range records {
		meta, rule, err := p.Prepare(ctx, doc.Kind, i, rec)
		if err != nil {
			c.fail++
			logrus.WithFields(logrus.Fields{
				"record": i,
				"title":  meta.Title,
			}).Error(err)
			continue
		}
		body, err := rule.Body()
		if err != nil {
			return err
		}
		if err := writeBody(os.Stdout, body, format); err != nil {
			return err
		}
		c.ok++
	}
	logrus.Infof("OK: %d; FAIL: %d", c.ok, c.fail)
	if c.fail > 0 {
		return errors.Errorf("%d of %d records would be rejected", c.fail, len(records))
	}
	return nil
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.PersistentFlags().String("output", "json",
		`Output format for request bodies. Supported values are:
		json - indented JSON
		yaml - YAML documents`)
	viper.BindPFlag("inspect.output",
		inspectCmd.PersistentFlags().Lookup("output"))
}
