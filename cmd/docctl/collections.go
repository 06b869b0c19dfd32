package main

import (
	"github.com/spf13/cobra"

	"github.com/stevemurr/docsource/codec"
	"github.com/stevemurr/docsource/datasource"
	"github.com/stevemurr/docsource/transport"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the store is reachable",
	Args:  cobra.NoArgs,
	RunE:  runPing,
}

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List collections",
	Args:  cobra.NoArgs,
	RunE:  runLs,
}

var describeCmd = &cobra.Command{
	Use:   "describe [collection]",
	Short: "Show collection metadata",
	Args:  cobra.ExactArgs(1),
	RunE:  runDescribe,
}

var mkdbCmd = &cobra.Command{
	Use:   "mkdb [collection]",
	Short: "Create a collection",
	Args:  cobra.ExactArgs(1),
	RunE:  runMkdb,
}

var rmdbCmd = &cobra.Command{
	Use:   "rmdb [collection]",
	Short: "Drop a collection and all of its records",
	Args:  cobra.ExactArgs(1),
	RunE:  runRmdb,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(describeCmd)
	rootCmd.AddCommand(mkdbCmd)
	rootCmd.AddCommand(rmdbCmd)
}

func runPing(cmd *cobra.Command, args []string) error {
	src, err := openSource(cmd)
	if err != nil {
		return err
	}
	defer src.Close()

	cfg := src.Config()
	cmd.Printf("connected to %s:%s\n", cfg.Host, cfg.Port)
	return nil
}

func runLs(cmd *cobra.Command, args []string) error {
	src, err := openSource(cmd)
	if err != nil {
		return err
	}
	defer src.Close()

	names, err := src.ListCollections(cmd.Context())
	if err != nil {
		return err
	}
	for _, name := range names {
		cmd.Println(name)
	}
	return nil
}

func runDescribe(cmd *cobra.Command, args []string) error {
	src, err := openSource(cmd)
	if err != nil {
		return err
	}
	defer src.Close()

	desc, err := src.Describe(cmd.Context(), datasource.Name(args[0]))
	if err != nil {
		return err
	}
	return printValue(cmd, desc)
}

// Collection lifecycle is outside the adapter, so these two talk to the
// transport directly.

func runMkdb(cmd *cobra.Command, args []string) error {
	return collectionRequest(cmd, args[0], true)
}

func runRmdb(cmd *cobra.Command, args []string) error {
	return collectionRequest(cmd, args[0], false)
}

func collectionRequest(cmd *cobra.Command, name string, create bool) error {
	cfg, err := loadConnection()
	if err != nil {
		return err
	}
	t, err := transport.NewHTTP(cfg)
	if err != nil {
		return err
	}
	path := datasource.Resolver{Prefix: cfg.Prefix}.URI(datasource.Name(name))

	var resp *transport.Response
	if create {
		resp, err = t.Put(cmd.Context(), path, nil)
	} else {
		resp, err = t.Delete(cmd.Context(), path)
	}
	if err != nil {
		return err
	}
	return printResult(cmd, &datasource.Result{Status: resp.Status, Body: codec.Decode(resp.Body)})
}
