package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/joacominatel/pgstream/internal/database"
)

type cmdQuery struct {
	common *CmdControl
}

func (c *cmdQuery) command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <sql>",
		Short: "Run a statement and print its whole result",
		RunE:  c.run,
	}

	return cmd
}

func (c *cmdQuery) run(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return cmd.Help()
	}
	c.common.setupLogging(os.Stderr)

	cfg, err := c.common.loadConfig()
	if err != nil {
		return err
	}

	service, err := c.common.connect(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer service.Disconnect()

	result, err := service.ExecuteQuery(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	printResult(cmd, result)
	return nil
}

func printResult(cmd *cobra.Command, r *database.QueryResult) {
	out := cmd.OutOrStdout()

	if r.NumFields() == 0 {
		fmt.Fprintf(out, "%d row(s) affected\n", r.AffectedRows())
		return
	}

	data := make([][]string, r.NumRows())
	for i := range data {
		values, _ := r.Row(i)
		data[i] = textRow(values)
	}

	renderTable(out, database.ColumnNames(r.Columns()), data)
	fmt.Fprintf(out, "(%d row(s), %s)\n", r.NumRows(), r.Duration().Round(time.Microsecond))
}
