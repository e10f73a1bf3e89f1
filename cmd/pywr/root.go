// Package pywr implements the pywr command-line interface: run, validate,
// convert, and export-schema subcommands over internal/schema and
// internal/simulate.
package pywr

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	_ "github.com/pywr-go/pywr/internal/solver/ipm"
	_ "github.com/pywr-go/pywr/internal/solver/simplex"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "pywr",
	Short: "Water-resource allocation network simulator",
}

// cliError carries an explicit process exit code, distinguishing usage
// errors, model errors, and infeasible/failed runs instead of collapsing
// everything to exit code 1.
type cliError struct {
	Code int
	Err  error
}

func (e *cliError) Error() string { return e.Err.Error() }

const (
	exitOK           = 0
	exitUsage        = 1
	exitModelInvalid = 2
	exitRunFailed    = 3
)

func fail(code int, format string, args ...any) error {
	return &cliError{Code: code, Err: fmt.Errorf(format, args...)}
}

// Execute runs the CLI root command and exits the process with the
// subcommand's chosen exit code on failure.
func Execute() {
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	if err := rootCmd.Execute(); err != nil {
		var ce *cliError
		code := exitUsage
		if as, ok := err.(*cliError); ok {
			ce = as
			code = ce.Code
		}
		logrus.Error(err)
		os.Exit(code)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", envOr("PYWR_LOG", "info"), "Log level (trace, debug, info, warn, error)")
	cobra.OnInitialize(func() {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Warnf("unknown log level %q, defaulting to info", logLevel)
			level = logrus.InfoLevel
		}
		logrus.SetLevel(level)
	})

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(exportSchemaCmd)
	rootCmd.AddCommand(serveMetricsCmd)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
