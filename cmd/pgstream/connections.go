package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/joacominatel/pgstream/internal/config"
)

type cmdConnections struct {
	common *CmdControl
}

func (c *cmdConnections) command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connections",
		Short: "Manage saved connections",
		RunE:  c.run,
	}

	var cmdList = cmdConnectionsList{common: c.common}
	cmd.AddCommand(cmdList.command())

	var cmdAdd = cmdConnectionsAdd{common: c.common}
	cmd.AddCommand(cmdAdd.command())

	var cmdRemove = cmdConnectionsRemove{common: c.common}
	cmd.AddCommand(cmdRemove.command())

	return cmd
}

// With no subcommand, list.
func (c *cmdConnections) run(cmd *cobra.Command, args []string) error {
	list := cmdConnectionsList{common: c.common}
	return list.run(cmd, args)
}

type cmdConnectionsList struct {
	common *CmdControl
}

func (c *cmdConnectionsList) command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved connections",
		RunE:  c.run,
	}

	return cmd
}

func (c *cmdConnectionsList) run(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		return cmd.Help()
	}

	cfg, err := c.common.loadConfig()
	if err != nil {
		return err
	}

	header, data := connectionRows(cfg)
	renderTable(cmd.OutOrStdout(), header, data)
	return nil
}

// connectionRows lists the saved connections sorted by name. Passwords are
// never shown.
func connectionRows(cfg *config.Config) ([]string, [][]string) {
	def, _ := cfg.DefaultConnection()

	data := make([][]string, 0, len(cfg.Connections))
	for _, conn := range cfg.Connections {
		isDefault := ""
		if def != nil && def.Name == conn.Name {
			isDefault = "*"
		}
		data = append(data, []string{
			conn.Name,
			conn.Host + ":" + strconv.Itoa(conn.Port),
			conn.Database,
			conn.Username,
			isDefault,
		})
	}
	sort.Slice(data, func(i, j int) bool { return data[i][0] < data[j][0] })

	return []string{"NAME", "ADDRESS", "DATABASE", "USER", "DEFAULT"}, data
}

type cmdConnectionsAdd struct {
	common *CmdControl

	flagName    string
	flagDefault bool
}

func (c *cmdConnectionsAdd) command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <dsn>",
		Short: "Save a connection; its password goes to the OS keyring",
		RunE:  c.run,
	}

	cmd.Flags().StringVar(&c.flagName, "name", "", "Connection name (default host-port-database)")
	cmd.Flags().BoolVar(&c.flagDefault, "default", false, "Make this the default connection")

	return cmd
}

func (c *cmdConnectionsAdd) run(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return cmd.Help()
	}

	cfg, err := c.common.loadConfig()
	if err != nil {
		return err
	}

	conn, err := config.ParseDSN(args[0])
	if err != nil {
		return err
	}
	if c.flagName != "" {
		conn.Name = c.flagName
	}

	cfg.AddConnection(conn)
	if c.flagDefault {
		cfg.Preferences.DefaultConnection = conn.Name
	}

	err = c.common.saveConfig(cfg)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Saved connection %q\n", conn.Name)
	return nil
}

type cmdConnectionsRemove struct {
	common *CmdControl
}

func (c *cmdConnectionsRemove) command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <name>",
		Short: "Forget a saved connection and its stored password",
		RunE:  c.run,
	}

	return cmd
}

func (c *cmdConnectionsRemove) run(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return cmd.Help()
	}

	cfg, err := c.common.loadConfig()
	if err != nil {
		return err
	}

	if !cfg.RemoveConnection(args[0]) {
		return fmt.Errorf("no saved connection named %q", args[0])
	}

	err = config.DeletePassword(args[0])
	if err != nil {
		return fmt.Errorf("delete password: %w", err)
	}

	return c.common.saveConfig(cfg)
}
