// Package config holds connection and server settings.
//
// Settings come from an optional YAML file and are then overridden by
// environment variables, so a deployment can run from env alone.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Connection parameters for a document store.
type Connection struct {
	Scheme string `yaml:"scheme"`
	Host   string `yaml:"host"`
	Port   string `yaml:"port"`
	User   string `yaml:"user"`
	Pass   string `yaml:"pass"`
	// Prefix is prepended to bare collection names.
	Prefix string `yaml:"prefix"`

	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"rate_limit"` // requests per second, 0 = unlimited
}

// DefaultConnection matches a stock local CouchDB install.
func DefaultConnection() Connection {
	return Connection{
		Scheme:  "http",
		Host:    "localhost",
		Port:    "5984",
		Timeout: 30 * time.Second,
	}
}

// Merge returns c with every non-empty field of o applied over it.
func (c Connection) Merge(o Connection) Connection {
	if o.Scheme != "" {
		c.Scheme = o.Scheme
	}
	if o.Host != "" {
		c.Host = o.Host
	}
	if o.Port != "" {
		c.Port = o.Port
	}
	if o.User != "" {
		c.User = o.User
	}
	if o.Pass != "" {
		c.Pass = o.Pass
	}
	if o.Prefix != "" {
		c.Prefix = o.Prefix
	}
	if o.Timeout != 0 {
		c.Timeout = o.Timeout
	}
	if o.RateLimit != 0 {
		c.RateLimit = o.RateLimit
	}
	return c
}

// BaseURL builds the absolute base URI, credentials included.
func (c Connection) BaseURL() *url.URL {
	u := &url.URL{
		Scheme: c.Scheme,
		Host:   net.JoinHostPort(c.Host, c.Port),
		Path:   "/",
	}
	if c.Port == "" {
		u.Host = c.Host
	}
	if c.User != "" {
		u.User = url.UserPassword(c.User, c.Pass)
	}
	return u
}

// Server settings for the couchsim emulator.
type Server struct {
	Host     string   `yaml:"host"`
	Port     string   `yaml:"port"`
	DataDir  string   `yaml:"data_dir"`
	Backend  string   `yaml:"backend"`
	Origins  string   `yaml:"allowed_origins"`
	Admin    string   `yaml:"admin_user"`
	Password string   `yaml:"admin_password"`
	LogLevel string   `yaml:"log_level"`
	DBs      []string `yaml:"databases"` // created at startup when missing
	// Schemas maps a database name to a JSON Schema file validating its writes.
	Schemas map[string]string `yaml:"schemas"`
}

// DefaultServer mirrors a local CouchDB listener.
func DefaultServer() Server {
	return Server{
		Host:     "0.0.0.0",
		Port:     "5984",
		DataDir:  "./data",
		Backend:  "json",
		Origins:  "*",
		LogLevel: "info",
	}
}

// File is the on-disk layout; either section may be omitted.
type File struct {
	Connection Connection `yaml:"connection"`
	Server     Server     `yaml:"server"`
}

// Load reads path (when non-empty and present) over the defaults, then
// applies environment overrides.
func Load(path string) (File, error) {
	f := File{Connection: DefaultConnection(), Server: DefaultServer()}
	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return f, fmt.Errorf("read config %s: %w", path, err)
		default:
			var onDisk File
			if err := yaml.Unmarshal(raw, &onDisk); err != nil {
				return f, fmt.Errorf("parse config %s: %w", path, err)
			}
			f.Connection = f.Connection.Merge(onDisk.Connection)
			f.Server = mergeServer(f.Server, onDisk.Server)
		}
	}
	if err := applyEnv(&f); err != nil {
		return f, err
	}
	return f, nil
}

func mergeServer(s, o Server) Server {
	if o.Host != "" {
		s.Host = o.Host
	}
	if o.Port != "" {
		s.Port = o.Port
	}
	if o.DataDir != "" {
		s.DataDir = o.DataDir
	}
	if o.Backend != "" {
		s.Backend = o.Backend
	}
	if o.Origins != "" {
		s.Origins = o.Origins
	}
	if o.Admin != "" {
		s.Admin = o.Admin
	}
	if o.Password != "" {
		s.Password = o.Password
	}
	if o.LogLevel != "" {
		s.LogLevel = o.LogLevel
	}
	if len(o.DBs) > 0 {
		s.DBs = o.DBs
	}
	if len(o.Schemas) > 0 {
		s.Schemas = o.Schemas
	}
	return s
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func applyEnv(f *File) error {
	c := &f.Connection
	c.Scheme = env("DOCSOURCE_SCHEME", c.Scheme)
	c.Host = env("DOCSOURCE_HOST", c.Host)
	c.Port = env("DOCSOURCE_PORT", c.Port)
	c.User = env("DOCSOURCE_USER", c.User)
	c.Pass = env("DOCSOURCE_PASS", c.Pass)
	c.Prefix = env("DOCSOURCE_PREFIX", c.Prefix)
	if v := os.Getenv("DOCSOURCE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("DOCSOURCE_TIMEOUT: %w", err)
		}
		c.Timeout = d
	}
	if v := os.Getenv("DOCSOURCE_RATE_LIMIT"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("DOCSOURCE_RATE_LIMIT: %w", err)
		}
		c.RateLimit = r
	}

	s := &f.Server
	s.Host = env("HOST", s.Host)
	s.Port = env("PORT", s.Port)
	s.DataDir = env("DATA_DIR", s.DataDir)
	s.Backend = env("STORE_BACKEND", s.Backend)
	s.Origins = env("ALLOWED_ORIGINS", s.Origins)
	s.Admin = env("COUCHSIM_ADMIN", s.Admin)
	s.Password = env("COUCHSIM_PASSWORD", s.Password)
	s.LogLevel = env("LOG_LEVEL", s.LogLevel)
	return nil
}
