// Package config loads quickauth server settings. Sources are layered in
// this order, later ones winning: flag defaults, an optional YAML file,
// QUICKAUTH_* environment variables, and flags set on the command line.
//
// Environment names map to keys by dropping the prefix, lower-casing, and
// turning "__" into a section separator and "_" into "-":
//
//	QUICKAUTH_SESSION__SECRET   -> session.secret
//	QUICKAUTH_FACEBOOK__APP_ID  -> facebook.app-id
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	qa "github.com/panyam/quickauth"
)

const EnvPrefix = "QUICKAUTH_"

// Store drivers.
const (
	DriverFS        = "fs"
	DriverMySQL     = "mysql"
	DriverPostgres  = "postgres"
	DriverMongo     = "mongo"
	DriverDatastore = "datastore"
)

var Drivers = []string{DriverFS, DriverMySQL, DriverPostgres, DriverMongo, DriverDatastore}

type HTTP struct {
	Addr            string        `koanf:"addr"`
	Prefix          string        `koanf:"prefix"`
	ShutdownTimeout time.Duration `koanf:"shutdown-timeout"`
	// 400 or 409 for duplicate usernames
	ConflictStatus int `koanf:"conflict-status"`
	// Keep the signed in account in a cookie session as well as the token
	Sessions bool `koanf:"sessions"`
}

type Log struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

type Session struct {
	Secret    string        `koanf:"secret"`
	Issuer    string        `koanf:"issuer"`
	Expiry    time.Duration `koanf:"expiry"`
	Algorithm string        `koanf:"algorithm"`
}

type Auth struct {
	PasswordCost         int           `koanf:"password-cost"`
	HideAccountExistence bool          `koanf:"hide-account-existence"`
	EmailTimeout         time.Duration `koanf:"email-timeout"`
}

type Store struct {
	Driver string `koanf:"driver"`
	// Directory for the fs driver
	Path string `koanf:"path"`
	// Connection string for mysql, postgres and mongo
	DSN string `koanf:"dsn"`
	// Mongo database name
	Database   string `koanf:"database"`
	Collection string `koanf:"collection"`
	// Datastore project and namespace
	Project   string `koanf:"project"`
	Namespace string `koanf:"namespace"`
	// Apply migrations or indexes when the server starts
	AutoMigrate bool `koanf:"auto-migrate"`
}

type Mail struct {
	// console or smtp
	Driver     string `koanf:"driver"`
	Host       string `koanf:"host"`
	Port       int    `koanf:"port"`
	Username   string `koanf:"username"`
	Password   string `koanf:"password"`
	From       string `koanf:"from"`
	LinkPrefix string `koanf:"link-prefix"`
}

type Facebook struct {
	GraphURL  string `koanf:"graph-url"`
	AppID     string `koanf:"app-id"`
	AppSecret string `koanf:"app-secret"`
}

type Google struct {
	ClientID string `koanf:"client-id"`
}

type Providers struct {
	Timeout time.Duration `koanf:"timeout"`
}

type Metrics struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// Config is the full server configuration.
type Config struct {
	HTTP      HTTP      `koanf:"http"`
	Log       Log       `koanf:"log"`
	Session   Session   `koanf:"session"`
	Auth      Auth      `koanf:"auth"`
	Store     Store     `koanf:"store"`
	Mail      Mail      `koanf:"mail"`
	Facebook  Facebook  `koanf:"facebook"`
	Google    Google    `koanf:"google"`
	Providers Providers `koanf:"providers"`
	Metrics   Metrics   `koanf:"metrics"`
}

// RegisterFlags defines one flag per key, carrying the defaults.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a YAML config file")

	fs.String("http.addr", ":8080", "listen address")
	fs.String("http.prefix", "/auth", "path prefix for the auth routes")
	fs.Duration("http.shutdown-timeout", 15*time.Second, "graceful shutdown limit")
	fs.Int("http.conflict-status", 400, "status for duplicate usernames (400 or 409)")
	fs.Bool("http.sessions", false, "also keep the signed in account in a cookie session")

	fs.String("log.format", "json", "log format (json or text)")
	fs.String("log.level", "info", "log level (debug, info, warn, error)")

	fs.String("session.secret", "", "HMAC secret for session tokens")
	fs.String("session.issuer", qa.DefaultSessionIssuer, "session token issuer")
	fs.Duration("session.expiry", qa.DefaultSessionExpiry, "session token lifetime")
	fs.String("session.algorithm", "HS256", "HS256, HS384 or HS512")

	fs.Int("auth.password-cost", qa.DefaultPasswordCost, "bcrypt cost")
	fs.Bool("auth.hide-account-existence", false, "do not reveal whether a username or email exists")
	fs.Duration("auth.email-timeout", qa.DefaultEmailTimeout, "limit on sending a reset email")

	fs.String("store.driver", DriverFS, "account store: "+strings.Join(Drivers, ", "))
	fs.String("store.path", "./data", "directory for the fs store")
	fs.String("store.dsn", "", "connection string for mysql, postgres or mongo")
	fs.String("store.database", "quickauth", "mongo database")
	fs.String("store.collection", "accounts", "mongo collection")
	fs.String("store.project", "", "datastore project id")
	fs.String("store.namespace", "", "datastore namespace")
	fs.Bool("store.auto-migrate", true, "migrate the store schema on startup")

	fs.String("mail.driver", "console", "console or smtp")
	fs.String("mail.host", "", "SMTP host")
	fs.Int("mail.port", 587, "SMTP port")
	fs.String("mail.username", "", "SMTP username")
	fs.String("mail.password", "", "SMTP password")
	fs.String("mail.from", "", "sender address")
	fs.String("mail.link-prefix", "", "reset link prefix; the token is appended")

	fs.String("facebook.graph-url", "", "Graph API base URL")
	fs.String("facebook.app-id", "", "app id for debug_token checks")
	fs.String("facebook.app-secret", "", "app secret for debug_token checks")
	fs.String("google.client-id", "", "expected audience of Google ID tokens")
	fs.Duration("providers.timeout", 10*time.Second, "limit on provider calls")

	fs.Bool("metrics.enabled", true, "serve Prometheus metrics")
	fs.String("metrics.path", "/metrics", "metrics path")
}

// Load builds a Config from fs (which must have been set up by
// RegisterFlags and parsed), the file named by --config and the
// environment.
func Load(fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path, _ := fs.GetString("config"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("path", path).Wrapf(err, "reading config file")
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrapf(err, "reading environment")
	}

	// Changed flags override everything; defaults only fill missing keys.
	if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrapf(err, "reading flags")
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrapf(err, "decoding config")
	}
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	s = strings.ReplaceAll(s, "__", ".")
	return strings.ReplaceAll(s, "_", "-")
}

// Validate reports every problem that would stop the server from starting.
// A missing session secret is reported as qa.ErrMissingSigningSecret.
func (c *Config) Validate() error {
	var errs []error
	if c.Session.Secret == "" {
		errs = append(errs, qa.ErrMissingSigningSecret)
	}
	if !slices.Contains(Drivers, c.Store.Driver) {
		errs = append(errs, fmt.Errorf("store.driver must be one of %s, got %q", strings.Join(Drivers, ", "), c.Store.Driver))
	}
	switch c.Store.Driver {
	case DriverFS:
		if c.Store.Path == "" {
			errs = append(errs, errors.New("store.path is required for the fs store"))
		}
	case DriverMySQL, DriverPostgres, DriverMongo:
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("store.dsn is required for the %s store", c.Store.Driver))
		}
	case DriverDatastore:
		if c.Store.Project == "" {
			errs = append(errs, errors.New("store.project is required for the datastore store"))
		}
	}
	switch c.Mail.Driver {
	case "console":
	case "smtp":
		if c.Mail.Host == "" || c.Mail.From == "" {
			errs = append(errs, errors.New("mail.host and mail.from are required for smtp"))
		}
	default:
		errs = append(errs, fmt.Errorf("mail.driver must be console or smtp, got %q", c.Mail.Driver))
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		errs = append(errs, fmt.Errorf("log.format must be 'json' or 'text', got %q", c.Log.Format))
	}
	if c.HTTP.ConflictStatus != 400 && c.HTTP.ConflictStatus != 409 {
		errs = append(errs, fmt.Errorf("http.conflict-status must be 400 or 409, got %d", c.HTTP.ConflictStatus))
	}
	if err := errors.Join(errs...); err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}
	return nil
}
