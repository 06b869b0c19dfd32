package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/stevemurr/docsource/codec"
	"github.com/stevemurr/docsource/config"
	"github.com/stevemurr/docsource/datasource"
	"github.com/stevemurr/docsource/logger"
)

var rootCmd = &cobra.Command{
	Use:   "docctl",
	Short: "Work with records in a CouchDB-compatible document store",
	Long: `docctl drives the datasource adapter against a CouchDB-compatible store.

Connection settings come from the YAML config file, then DOCSOURCE_*
environment variables, then command-line flags.`,
	SilenceUsage: true,
}

var (
	configPath string
	connFlags  config.Connection
	logLevel   string
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", os.Getenv("DOCSOURCE_CONFIG"), "Path to YAML config file")
	pf.StringVar(&connFlags.Scheme, "scheme", "", "Store URI scheme (http or https)")
	pf.StringVar(&connFlags.Host, "host", "", "Store host")
	pf.StringVar(&connFlags.Port, "port", "", "Store port")
	pf.StringVar(&connFlags.User, "user", "", "Basic auth user")
	pf.StringVar(&connFlags.Pass, "pass", "", "Basic auth password")
	pf.StringVar(&connFlags.Prefix, "prefix", "", "Collection name prefix")
	pf.DurationVar(&connFlags.Timeout, "timeout", 0, "Request timeout")
	pf.StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
}

// loadConnection resolves the effective connection settings.
func loadConnection() (config.Connection, error) {
	f, err := config.Load(configPath)
	if err != nil {
		return config.Connection{}, err
	}
	return f.Connection.Merge(connFlags), nil
}

// openSource builds a connected datasource.
func openSource(cmd *cobra.Command) (*datasource.Source, error) {
	cfg, err := loadConnection()
	if err != nil {
		return nil, err
	}
	log := logger.New(logger.Config{Level: logLevel, Service: "docctl", Output: cmd.ErrOrStderr()})
	src := datasource.New(cfg, datasource.WithLogger(log))
	if !src.Connect(cmd.Context(), config.Connection{}) {
		base := cfg.BaseURL()
		base.User = nil
		return nil, fmt.Errorf("cannot connect to %s", base)
	}
	return src, nil
}

// printValue writes v as indented JSON.
func printValue(cmd *cobra.Command, v codec.Value) error {
	raw, err := codec.Encode(v)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return err
	}
	cmd.Println(buf.String())
	return nil
}

// printResult prints the store reply and turns a store error document into
// a command error.
func printResult(cmd *cobra.Command, res *datasource.Result) error {
	if err := printValue(cmd, res.Body); err != nil {
		return err
	}
	if f := res.Failure(); f != nil {
		return f
	}
	return nil
}

// parseRecord reads a JSON object argument.
func parseRecord(arg string) (datasource.Record, error) {
	v, err := codec.DecodeStrict([]byte(arg))
	if err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	m, ok := codec.Native(v).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("record must be a JSON object, got %s", v.Kind())
	}
	return datasource.Record(m), nil
}
