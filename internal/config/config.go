package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// DefaultBatchSize is the number of rows a stream fetches per round trip
// when nothing else is configured.
const DefaultBatchSize = 500

// Config represents the application configuration.
type Config struct {
	Connections []Connection `mapstructure:"connections" yaml:"connections"`
	Preferences Preferences  `mapstructure:"preferences" yaml:"preferences"`
}

// Connection represents a saved database connection profile. Passwords are
// kept in the OS keyring, not in the file.
type Connection struct {
	Name     string `mapstructure:"name" yaml:"name"`
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Database string `mapstructure:"database" yaml:"database"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"-" yaml:"-"`
	SSLMode  string `mapstructure:"sslmode" yaml:"sslmode"`
}

// Preferences holds user preferences.
type Preferences struct {
	Theme             string `mapstructure:"theme" yaml:"theme"`
	DefaultConnection string `mapstructure:"default_connection" yaml:"default_connection"`
	BatchSize         int    `mapstructure:"batch_size" yaml:"batch_size"`
	LogFile           string `mapstructure:"log_file" yaml:"log_file"`
}

// DSN builds a PostgreSQL connection URL from the profile.
func (c Connection) DSN() string {
	u := url.URL{
		Scheme: "postgresql",
		Host:   c.Host,
		Path:   "/" + c.Database,
	}
	if c.Port > 0 {
		u.Host += ":" + strconv.Itoa(c.Port)
	}
	if c.Username != "" {
		if c.Password != "" {
			u.User = url.UserPassword(c.Username, c.Password)
		} else {
			u.User = url.User(c.Username)
		}
	}
	if c.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {c.SSLMode}}.Encode()
	}
	return u.String()
}

// DisplayString returns a human-readable summary without the password.
func (c Connection) DisplayString() string {
	s := c.Host
	if c.Port > 0 {
		s += ":" + strconv.Itoa(c.Port)
	}
	s += "/" + c.Database
	if c.Username != "" {
		s = c.Username + "@" + s
	}
	return s
}

// ParseDSN parses a PostgreSQL connection URL into a Connection.
func ParseDSN(dsn string) (Connection, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return Connection{}, fmt.Errorf("invalid DSN: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return Connection{}, fmt.Errorf("invalid DSN: unsupported scheme %q", u.Scheme)
	}

	conn := Connection{
		Host:     u.Hostname(),
		Database: strings.TrimPrefix(u.Path, "/"),
		SSLMode:  u.Query().Get("sslmode"),
	}

	if u.User != nil {
		conn.Username = u.User.Username()
		if p, ok := u.User.Password(); ok {
			conn.Password = p
		}
	}

	if portStr := u.Port(); portStr != "" {
		conn.Port, err = strconv.Atoi(portStr)
		if err != nil {
			return Connection{}, fmt.Errorf("invalid DSN port: %w", err)
		}
	}
	if conn.Port == 0 {
		conn.Port = 5432
	}

	conn.Name = fmt.Sprintf("%s-%d-%s", conn.Host, conn.Port, conn.Database)

	return conn, nil
}

// Find returns the saved connection called name.
func (cfg *Config) Find(name string) (*Connection, bool) {
	for i := range cfg.Connections {
		if cfg.Connections[i].Name == name {
			return &cfg.Connections[i], true
		}
	}
	return nil, false
}

// AddConnection appends conn, or replaces the saved connection with the
// same name.
func (cfg *Config) AddConnection(conn Connection) {
	if existing, ok := cfg.Find(conn.Name); ok {
		*existing = conn
		return
	}
	cfg.Connections = append(cfg.Connections, conn)
}

// RemoveConnection drops the saved connection called name and reports
// whether it existed.
func (cfg *Config) RemoveConnection(name string) bool {
	for i := range cfg.Connections {
		if cfg.Connections[i].Name == name {
			cfg.Connections = append(cfg.Connections[:i], cfg.Connections[i+1:]...)
			if cfg.Preferences.DefaultConnection == name {
				cfg.Preferences.DefaultConnection = ""
			}
			return true
		}
	}
	return false
}

// DefaultConnection returns the preferred saved connection, or the first one.
func (cfg *Config) DefaultConnection() (*Connection, bool) {
	if len(cfg.Connections) == 0 {
		return nil, false
	}
	if name := cfg.Preferences.DefaultConnection; name != "" {
		if c, ok := cfg.Find(name); ok {
			return c, true
		}
	}
	return &cfg.Connections[0], true
}

// BatchSize returns the configured batch size, or DefaultBatchSize.
func (cfg *Config) BatchSize() int {
	if cfg.Preferences.BatchSize > 0 {
		return cfg.Preferences.BatchSize
	}
	return DefaultBatchSize
}
