package cmd

import (
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	quiet   bool
	debug   bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sigma-deploy",
	Short: "Synchronize sigma rules into the Kibana Detection Engine",
	Long: `Reads a single rule deployment unit, normalizes it into a Detection Engine query rule
and creates it, or updates it in place if the rule already exists.

Supported sources are sigma converter JSON output, Kibana saved object NDJSON exports
and raw sigma rule YAML, which is translated with sigma-cli before deployment.

Kibana URL and API key are read from ELASTIC_URL and ELASTIC_API_KEY environment variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initLogging)
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.sigma-deploy.yaml)")

	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Quiet output. Suppress warnings and other stuff. Cannot be used together with --debug and --quiet will take precedence.")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Debug mode. Enable trace logging. Cannot be used together with --quiet.")

	rootCmd.PersistentFlags().String("source", "kibana_alerts.json",
		`Rule source file.`)
	viper.BindPFlag("source.path", rootCmd.PersistentFlags().Lookup("source"))

	rootCmd.PersistentFlags().String("format", "auto",
		`Rule source format. Supported values are:
		auto - detect from file suffix
		json - sigma converter output, JSON list of {title, description, id, query}
		ndjson - Kibana saved object export
		yaml - raw sigma rule, translated with sigma-cli`)
	viper.BindPFlag("source.format", rootCmd.PersistentFlags().Lookup("format"))

	rootCmd.PersistentFlags().Int("batch-size", 1,
		`Number of records consumed from source. 0 consumes all records.`)
	viper.BindPFlag("source.batch_size", rootCmd.PersistentFlags().Lookup("batch-size"))

	rootCmd.PersistentFlags().String("translator-command", "sigma",
		`Sigma converter executable.`)
	viper.BindPFlag("translator.command", rootCmd.PersistentFlags().Lookup("translator-command"))

	rootCmd.PersistentFlags().StringSlice("translator-args", []string{},
		`Extra arguments passed to converter after generated convert arguments.`)
	viper.BindPFlag("translator.args", rootCmd.PersistentFlags().Lookup("translator-args"))

	rootCmd.PersistentFlags().String("translator-target", "lucene",
		`Query language produced by converter.`)
	viper.BindPFlag("translator.target", rootCmd.PersistentFlags().Lookup("translator-target"))

	rootCmd.PersistentFlags().String("translator-pipeline", "ecs_windows",
		`Converter processing pipeline, selects target field schema. Empty disables pipelines.`)
	viper.BindPFlag("translator.pipeline", rootCmd.PersistentFlags().Lookup("translator-pipeline"))

	rootCmd.PersistentFlags().Duration("translator-timeout", 60*time.Second,
		`Timeout for a single converter run.`)
	viper.BindPFlag("translator.timeout", rootCmd.PersistentFlags().Lookup("translator-timeout"))

	rootCmd.PersistentFlags().String("pipeline-tag", "Sigma",
		`Display name prefix and tag attached to every deployed rule.`)
	viper.BindPFlag("policy.pipeline_tag", rootCmd.PersistentFlags().Lookup("pipeline-tag"))

	rootCmd.PersistentFlags().StringSlice("index", []string{"logs-*"},
		`Index patterns queried by deployed rules.`)
	viper.BindPFlag("policy.index", rootCmd.PersistentFlags().Lookup("index"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory with name ".sigma-deploy" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigName(".sigma-deploy")
	}

	viper.BindEnv("kibana.url", "ELASTIC_URL")
	viper.BindEnv("kibana.api_key", "ELASTIC_API_KEY")
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		log.Debugf("Using config file: %s", viper.ConfigFileUsed())
	}
}

func initLogging() {
	log.SetFormatter(&log.TextFormatter{
		DisableColors: false,
		FullTimestamp: true,
	})
	if quiet {
		log.SetLevel(log.ErrorLevel)
	} else if debug {
		log.SetLevel(log.TraceLevel)
	}
}
