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
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	sigma "github.com/markuskont/go-sigma-rule-deploy"
	"github.com/markuskont/go-sigma-rule-deploy/pkg/kibana"
	"github.com/markuskont/go-sigma-rule-deploy/pkg/metrics"
)

// deployCmd represents the deploy command
var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Create or update detection engine rules from a rule source",
	Long: `Deploy reads the rule source, extracts and normalizes rules and upserts them into
	the Kibana Detection Engine. Exit status is non-zero unless every processed rule was
	created or updated. For example:

	ELASTIC_URL=https://kibana:5601 ELASTIC_API_KEY=... sigma-deploy deploy --source kibana_alerts.json
	`,
	RunE: deploy,
}

func report(o sigma.Outcome) {
	contextLogger := logrus.WithFields(logrus.Fields{
		"rule_id": o.RuleID,
		"title":   o.Title,
		"outcome": o.Kind.String(),
	})
	switch o.Kind {
	case sigma.Created:
		contextLogger.Info("Successfully deployed to Detection Engine")
	case sigma.Updated:
		contextLogger.Info("Rule already existed, updated in Detection Engine")
	case sigma.RejectedBeforeSend:
		contextLogger.Errorf("Rule not sent: %s", o.Err)
	case sigma.TransportFailed:
		contextLogger.Errorf("No response from Detection Engine: %s", o.Err)
	default:
		contextLogger.WithFields(logrus.Fields{
			"status": o.StatusCode,
			"body":   o.Body,
		}).Errorf("Failed! %s", o.Err)
	}
}

func pushMetrics(recorder *metrics.Recorder) {
	url := viper.GetString("metrics.pushgateway")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := recorder.Push(ctx, url, viper.GetString("metrics.job")); err != nil {
		logrus.Warnf("Unable to push metrics to %s: %s", url, err)
	}
}

func deploy(cmd *cobra.Command, args []string) error {
	doc, err := sourceDocument()
	if err != nil {
		return err
	}
	client, err := kibana.NewClient(kibanaConfig())
	if err != nil {
		return err
	}
	p := newPipeline(client)

	var recorder *metrics.Recorder
	if viper.GetString("metrics.pushgateway") != "" {
		recorder = metrics.NewRecorder()
		p.Observer = recorder
	}

	logrus.WithFields(logrus.Fields{
		"source":  doc.Path,
		"format":  doc.Kind.String(),
		"records": doc.Len(),
	}).Info("Deploying rules")

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	outcomes := p.Run(ctx, *doc)
	for _, o := range outcomes {
		report(o)
	}
	if recorder != nil {
		pushMetrics(recorder)
	}
	if sigma.ExitCode(outcomes) != 0 {
		return errors.Errorf("deployment failed, %d of %d processed rules ok", countOk(outcomes), len(outcomes))
	}
	return nil
}

func countOk(outcomes []sigma.Outcome) int {
	var n int
	for _, o := range outcomes {
		if o.Ok() {
			n++
		}
	}
	return n
}

func init() {
	rootCmd.AddCommand(deployCmd)

	deployCmd.PersistentFlags().Duration("kibana-timeout", kibana.DefaultTimeout,
		`Timeout for a single detection engine request.`)
	viper.BindPFlag("kibana.timeout",
		deployCmd.PersistentFlags().Lookup("kibana-timeout"))

	deployCmd.PersistentFlags().Bool("kibana-insecure", false,
		`Skip TLS certificate verification.`)
	viper.BindPFlag("kibana.insecure",
		deployCmd.PersistentFlags().Lookup("kibana-insecure"))

	deployCmd.PersistentFlags().String("pushgateway", "",
		`Prometheus Pushgateway URL. Outcome metrics are pushed after the run when set.`)
	viper.BindPFlag("metrics.pushgateway",
		deployCmd.PersistentFlags().Lookup("pushgateway"))

	deployCmd.PersistentFlags().String("pushgateway-job", metrics.DefaultJob,
		`Pushgateway job name.`)
	viper.BindPFlag("metrics.job",
		deployCmd.PersistentFlags().Lookup("pushgateway-job"))
}
