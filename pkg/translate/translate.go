// Package translate runs the external sigma converter for raw sigma rule sources
package translate

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/ryanuber/go-glob"
	"github.com/sirupsen/logrus"

	sigma "github.com/markuskont/go-sigma-rule-deploy"
)

// DefaultMarkers match converter output that is an error report rather than a query
var DefaultMarkers = []string{
	"*Traceback (most recent call last)*",
	"*sigma.exceptions.*",
	"*SigmaError*",
	"Error:*",
	"Error *",
}

// WaitDelay bounds how long output is awaited after the converter is killed on timeout
var WaitDelay = 500 * time.Millisecond

// Config is used as argument to creating a new CLI translator
type Config struct {
	// converter executable, sigma-cli by default
	Command string
	// extra arguments placed after the generated convert arguments
	Args []string
	// bound for a single converter run
	Timeout time.Duration
	// glob patterns, any match on converter output rejects the translation
	Markers []string
}

// DefaultConfig returns config for sigma-cli on PATH
func DefaultConfig() Config {
	return Config{
		Command: "sigma",
		Timeout: 60 * time.Second,
		Markers: DefaultMarkers,
	}
}

// CLI implements sigma.Translator by invoking sigma-cli as a subprocess
type CLI struct {
	Config
}

var _ sigma.Translator = (*CLI)(nil)

// NewCLI instanciates a CLI translator, unset fields are taken from DefaultConfig
func NewCLI(c Config) *CLI {
	def := DefaultConfig()
	if c.Command == "" {
		c.Command = def.Command
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.Markers == nil {
		c.Markers = def.Markers
	}
	return &CLI{Config: c}
}

func (c CLI) args(target sigma.Target) []string {
	args := []string{"convert", "--target", target.Language}
	if target.Schema != "" {
		args = append(args, "--pipeline", target.Schema)
	} else {
		args = append(args, "--without-pipeline")
	}
	args = append(args, c.Args...)
	return append(args, "-")
}

// Translate implements sigma.Translator
// Raw rule is fed through stdin, stdout is the candidate query
func (c CLI) Translate(ctx context.Context, raw []byte, target sigma.Target) (string, error) {
	if target.Language == "" {
		return "", sigma.ErrTranslationFailed{Reason: "missing target query language"}
	}
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	args := c.args(target)
	logrus.WithFields(logrus.Fields{
		"command": c.Command,
		"args":    strings.Join(args, " "),
	}).Debug("running sigma converter")

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.Command, args...)
	cmd.Stdin = bytes.NewReader(raw)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// children of the converter may hold output pipes open after it is killed
	cmd.WaitDelay = WaitDelay

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", sigma.ErrTranslationFailed{Reason: "converter timed out after " + c.Timeout.String(), Err: err}
		}
		return "", sigma.ErrTranslationFailed{
			Reason: strings.TrimSpace(stderr.String()),
			Output: stdout.String(),
			Err:    err,
		}
	}
	if stderr.Len() > 0 {
		logrus.Debugf("sigma converter stderr: %s", strings.TrimSpace(stderr.String()))
	}
	return Validate(stdout.String(), c.Markers)
}

// Validate accepts converter output as query unless it is empty or matches an error marker
func Validate(output string, markers []string) (string, error) {
	query := strings.TrimSpace(output)
	if query == "" {
		return "", sigma.ErrTranslationFailed{Reason: "converter produced empty output"}
	}
	for _, m := range markers {
		if glob.Glob(m, query) {
			return "", sigma.ErrTranslationFailed{
				Reason: "converter output matches error marker " + m,
				Output: query,
			}
		}
	}
	return query, nil
}
