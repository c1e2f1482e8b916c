package cmd

import (
	"github.com/spf13/viper"

	sigma "github.com/markuskont/go-sigma-rule-deploy"
	"github.com/markuskont/go-sigma-rule-deploy/pkg/kibana"
	"github.com/markuskont/go-sigma-rule-deploy/pkg/translate"
)

// Everything read from viper is resolved here, once, and handed down as plain values

func sourceDocument() (*sigma.SourceDocument, error) {
	kind, err := sigma.NewSourceKind(viper.GetString("source.format"))
	if err != nil {
		return nil, err
	}
	return sigma.ReadSource(viper.GetString("source.path"), kind)
}

func kibanaConfig() kibana.Config {
	return kibana.Config{
		URL:      viper.GetString("kibana.url"),
		APIKey:   viper.GetString("kibana.api_key"),
		Timeout:  viper.GetDuration("kibana.timeout"),
		Insecure: viper.GetBool("kibana.insecure"),
	}
}

func translatorConfig() translate.Config {
	c := translate.Config{
		Command: viper.GetString("translator.command"),
		Args:    viper.GetStringSlice("translator.args"),
		Timeout: viper.GetDuration("translator.timeout"),
	}
	if markers := viper.GetStringSlice("translator.markers"); len(markers) > 0 {
		c.Markers = markers
	}
	return c
}

func target() sigma.Target {
	return sigma.Target{
		Language: viper.GetString("translator.target"),
		Schema:   viper.GetString("translator.pipeline"),
	}
}

func policy() sigma.Policy {
	p := sigma.DefaultPolicy()
	p.PipelineTag = viper.GetString("policy.pipeline_tag")
	if index := viper.GetStringSlice("policy.index"); len(index) > 0 {
		p.Index = index
	}
	return p
}

func newPipeline(client sigma.RuleAPIClient) *sigma.Pipeline {
	p := sigma.NewPipeline(client, translate.NewCLI(translatorConfig()), target())
	p.Policy = policy()
	p.BatchSize = viper.GetInt("source.batch_size")
	return p
}
