package main

import (
	"github.com/spf13/cobra"

	"github.com/stevemurr/docsource/datasource"
)

var getCmd = &cobra.Command{
	Use:   "get [collection] [id]",
	Short: "Read a record",
	Long:  `Reads a record by id. Use _all_docs as the id to list the collection.`,
	Args:  cobra.ExactArgs(2),
	RunE:  runGet,
}

var createCmd = &cobra.Command{
	Use:   "create [collection] [json]",
	Short: "Create a record",
	Long:  `Inserts a record. A record carrying an "id" field is written to that id instead.`,
	Args:  cobra.ExactArgs(2),
	RunE:  runCreate,
}

var updateCmd = &cobra.Command{
	Use:   "update [collection] [id] [json]",
	Short: "Replace a record using its live revision",
	Args:  cobra.ExactArgs(3),
	RunE:  runUpdate,
}

var deleteCmd = &cobra.Command{
	Use:   "delete [collection] [id]",
	Short: "Delete a record",
	Args:  cobra.ExactArgs(2),
	RunE:  runDelete,
}

func init() {
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(deleteCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	src, err := openSource(cmd)
	if err != nil {
		return err
	}
	defer src.Close()

	res, err := src.Read(cmd.Context(), datasource.Name(args[0]), args[1])
	if err != nil {
		return err
	}
	return printResult(cmd, res)
}

func runCreate(cmd *cobra.Command, args []string) error {
	rec, err := parseRecord(args[1])
	if err != nil {
		return err
	}
	src, err := openSource(cmd)
	if err != nil {
		return err
	}
	defer src.Close()

	res, err := src.Create(cmd.Context(), datasource.Name(args[0]), rec)
	if err != nil {
		return err
	}
	return printResult(cmd, res)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	rec, err := parseRecord(args[2])
	if err != nil {
		return err
	}
	rec[datasource.IDField] = args[1]
	src, err := openSource(cmd)
	if err != nil {
		return err
	}
	defer src.Close()

	res, err := src.Update(cmd.Context(), datasource.Name(args[0]), rec)
	if err != nil {
		return err
	}
	return printResult(cmd, res)
}

func runDelete(cmd *cobra.Command, args []string) error {
	src, err := openSource(cmd)
	if err != nil {
		return err
	}
	defer src.Close()

	res, err := src.Delete(cmd.Context(), datasource.Name(args[0]), args[1])
	if err != nil {
		return err
	}
	return printResult(cmd, res)
}
