package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/joacominatel/pgstream/internal/database"
)

// errStop ends a stream early without reporting an error.
var errStop = errors.New("stop")

type cmdStream struct {
	common *CmdControl

	flagMaxBatches int
}

func (c *cmdStream) command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stream <sql>",
		Short: "Print a query's result one batch at a time",
		Long: `Print a query's result one batch at a time.

Rows are read through a server-side cursor, so memory use is bounded by the
batch size however large the result is.`,
		RunE: c.run,
	}

	cmd.Flags().IntVar(&c.flagMaxBatches, "max-batches", 0, "Stop after this many batches (0 for all)")

	return cmd
}

func (c *cmdStream) run(cmd *cobra.Command, args []string) error {
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

	session, err := service.Session()
	if err != nil {
		return err
	}

	return streamBatches(cmd.Context(), cmd.OutOrStdout(), session, args[0], c.common.batchSize(cfg), c.flagMaxBatches)
}

// streamBatches prints each batch of query as its own table. maxBatches
// of zero prints them all.
func streamBatches(ctx context.Context, out io.Writer, s database.Session, query string, batchSize, maxBatches int) error {
	log := logrus.WithField("component", "stream")

	return database.WithCursor(ctx, s, query, batchSize, func(c *database.Cursor) error {
		batches := 0
		err := c.Each(ctx, func(batch []database.Row, start int64) error {
			data := make([][]string, len(batch))
			for i := range batch {
				values, _ := c.BatchRow(i)
				data[i] = textRow(values)
			}

			fmt.Fprintf(out, "-- rows %d-%d\n", start+1, start+int64(len(batch)))
			renderTable(out, c.ColumnNames(), data)

			batches++
			if maxBatches > 0 && batches >= maxBatches {
				return errStop
			}
			return nil
		})
		if errors.Is(err, errStop) {
			fmt.Fprintf(out, "(stopped after %d batch(es))\n", batches)
			return nil
		}
		if err != nil {
			return err
		}

		if c.Disconnected() {
			return database.ErrNotConnected
		}

		log.WithFields(logrus.Fields{"cursor": c.Name(), "rows": c.TotalRows()}).Info("Stream finished")
		fmt.Fprintf(out, "(%d row(s))\n", c.TotalRows())
		return nil
	}, database.WithLogger(log))
}
