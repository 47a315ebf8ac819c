package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/joacominatel/pgstream/internal/app"
	"github.com/joacominatel/pgstream/internal/config"
	"github.com/joacominatel/pgstream/internal/database/postgres"
	"github.com/joacominatel/pgstream/internal/tui"
)

type cmdTUI struct {
	common *CmdControl
}

func (c *cmdTUI) command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive result pager",
		RunE:  c.run,
	}

	return cmd
}

func (c *cmdTUI) run(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		return cmd.Help()
	}

	cfg, err := c.common.loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		cfg = &config.Config{}
	}

	logFile, err := c.openLog(cfg)
	if err != nil {
		return err
	}
	defer logFile.Close()
	c.common.setupLogging(logFile)

	dsn := c.common.FlagDSN
	if dsn == "" && c.common.FlagConnection != "" {
		dsn, err = app.ResolveDSN(cfg, "", c.common.FlagConnection)
		if err != nil {
			return err
		}
	}

	service := app.NewService(postgres.New())
	model := tui.NewModel(service, cfg, dsn, c.common.batchSize(cfg))

	p := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	_, err = p.Run()

	// A command still in flight may hold the session. Disconnect cancels it
	// and waits for it before closing the stream and the connection.
	_ = service.Disconnect()

	if err != nil {
		return fmt.Errorf("run TUI: %w", err)
	}
	return nil
}

// openLog opens the log file so log lines never land on the TUI screen.
func (c *cmdTUI) openLog(cfg *config.Config) (io.WriteCloser, error) {
	path := cfg.Preferences.LogFile
	if path == "" {
		dir, err := config.Dir()
		if err != nil {
			return nopCloser{io.Discard}, nil
		}
		path = filepath.Join(dir, "pgstream.log")
	}

	err := os.MkdirAll(filepath.Dir(path), 0o700)
	if err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	return f, nil
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
