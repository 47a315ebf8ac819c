package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/joacominatel/pgstream/internal/database"
)

type cmdExport struct {
	common *CmdControl

	flagOutput string
}

func (c *cmdExport) command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <sql>",
		Short: "Stream a query's result into a CSV file",
		RunE:  c.run,
	}

	cmd.Flags().StringVarP(&c.flagOutput, "output", "o", "", "CSV file to write (- for stdout)")

	return cmd
}

func (c *cmdExport) run(cmd *cobra.Command, args []string) error {
	if len(args) != 1 || c.flagOutput == "" {
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

	session, err := service.Session()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var f *os.File
	if c.flagOutput != "-" {
		f, err = os.Create(c.flagOutput)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}

	n, err := exportCSV(cmd.Context(), out, session, args[0], c.common.batchSize(cfg))
	if err != nil {
		return err
	}

	if f != nil {
		err = f.Close()
		if err != nil {
			return fmt.Errorf("close output: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d row(s) to %s\n", n, c.flagOutput)
	}

	return nil
}

// exportCSV writes the header and every row of query to w, one batch in
// memory at a time. NULL becomes an empty field.
func exportCSV(ctx context.Context, w io.Writer, s database.Session, query string, batchSize int) (int64, error) {
	log := logrus.WithField("component", "export")
	cw := csv.NewWriter(w)

	var total int64
	err := database.WithCursor(ctx, s, query, batchSize, func(c *database.Cursor) error {
		err := cw.Write(c.ColumnNames())
		if err != nil {
			return err
		}

		record := make([]string, c.NumColumns())
		err = c.Each(ctx, func(batch []database.Row, start int64) error {
			for i := range batch {
				values, _ := c.BatchRow(i)
				for j, v := range values {
					record[j] = ""
					if v.Valid {
						record[j] = v.String
					}
				}
				err := cw.Write(record)
				if err != nil {
					return err
				}
			}
			cw.Flush()

			log.WithFields(logrus.Fields{
				"cursor": c.Name(),
				"rows":   start + int64(len(batch)),
			}).Debug("Batch written")
			return cw.Error()
		})
		if err != nil {
			return err
		}

		if c.Disconnected() {
			return database.ErrNotConnected
		}

		total = c.TotalRows()
		return nil
	}, database.WithLogger(log))
	if err != nil {
		return 0, err
	}

	cw.Flush()
	return total, cw.Error()
}
