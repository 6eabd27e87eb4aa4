// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, userservice) via
    constructors.
  - Zero Hidden State: No global variables are used to store config.
  - Nested by concern: each userservice collaborator's settings live
    under their own prefix (SECURITY_, LOCAL_, MAILER_, ...) and are
    parsed in one env.Parse call via nested envPrefix tags.
  - Dynamic sections — the per-provider OAuth config, the per-logical-DB
    userDBs.model entries, and userModel's static/whitelist shape — have
    no fixed key set, so they are not environment variables at all; they
    load from an optional JSON file (DynamicConfigPath) the way the
    out-of-scope CLI/config loader in spec.md §1 would supply them.

This ensures the application is Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/caarlos0/env/v11"
)

// # Configuration Schema

// Config holds all runtime configuration for the Yomira auth core and its
// optional HTTP adapter.
type Config struct {
	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational database backing the document store and DB-auth store.
	DatabaseURL   string `env:"DATABASE_URL,required"`
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// DynamicConfigPath points at a JSON file supplying Providers,
	// UserDBs.Model, and UserModel.Static/Whitelist — see the package
	// doc comment. Empty means "no dynamic sections configured".
	DynamicConfigPath string `env:"DYNAMIC_CONFIG_PATH"`

	Security  SecurityConfig  `envPrefix:"SECURITY_"`
	Local     LocalConfig     `envPrefix:"LOCAL_"`
	Mailer    MailerConfig    `envPrefix:"MAILER_"`
	Emails    EmailsConfig    `envPrefix:"EMAILS_"`
	DBServer  DBServerConfig  `envPrefix:"DBSERVER_"`
	Session   SessionConfig   `envPrefix:"SESSION_"`
	UserDBs   UserDBsConfig   `envPrefix:"USERDBS_"`
	UserModel UserModelConfig `envPrefix:"USERMODEL_"`
	TestMode  TestModeConfig  `envPrefix:"TESTMODE_"`

	// HTTPAPI configures the optional HTTP adapter (internal/httpapi)
	// only; the core never reads this section.
	HTTPAPI HTTPAPIConfig `envPrefix:"HTTPAPI_"`

	// Providers is keyed by provider name (e.g. "google", "github");
	// consumed only by the out-of-scope OAuth handshake layer (spec.md
	// §1). Populated from DynamicConfigPath, never from the environment.
	Providers map[string]ProviderConfig `json:"providers"`

	// flat is a key-path index over every field above, built once by
	// Load via reflection, backing [Config.KeyPath].
	flat map[string]any
}

// ProviderConfig is one providers.<name> entry (spec.md §6); opaque to
// the core, forwarded to the out-of-scope OAuth layer verbatim.
type ProviderConfig struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	CallbackURL  string `json:"callbackUrl"`
}

// SecurityConfig is spec.md §6 security.*.
type SecurityConfig struct {
	DefaultRoles           []string `env:"DEFAULT_ROLES" envDefault:"member" envSeparator:","`
	UserActivityLogSize    int      `env:"USER_ACTIVITY_LOG_SIZE" envDefault:"20"`
	InviteOnlyRegistration bool     `env:"INVITE_ONLY_REGISTRATION" envDefault:"false"`
	MaxFailedLogins        int      `env:"MAX_FAILED_LOGINS" envDefault:"0"`
	LockoutTime            int      `env:"LOCKOUT_TIME" envDefault:"300"`
	SoftLock               bool     `env:"SOFT_LOCK" envDefault:"false"`
	TokenLife              int      `env:"TOKEN_LIFE" envDefault:"86400"`
	SessionLife            int      `env:"SESSION_LIFE" envDefault:"86400"`
}

// LocalConfig is spec.md §6 local.*.
type LocalConfig struct {
	EmailUsername       bool     `env:"EMAIL_USERNAME" envDefault:"false"`
	UsernameKeys        []string `env:"USERNAME_KEYS" envDefault:"username" envSeparator:","`
	UsernameField       string   `env:"USERNAME_FIELD" envDefault:"username"`
	PasswordField       string   `env:"PASSWORD_FIELD" envDefault:"password"`
	SendConfirmEmail    bool     `env:"SEND_CONFIRM_EMAIL" envDefault:"false"`
	RequireEmailConfirm bool     `env:"REQUIRE_EMAIL_CONFIRM" envDefault:"false"`
	UUIDAsID            bool     `env:"UUID_AS_ID" envDefault:"true"`
	PhoneRegexp         string   `env:"PHONE_REGEXP" envDefault:""`
}

// MailerConfig is spec.md §6 mailer.*.
type MailerConfig struct {
	FromEmail string `env:"FROM_EMAIL" envDefault:"no-reply@example.com"`
}

// EmailTemplate is one emails.<key> entry.
type EmailTemplate struct {
	Subject  string `env:"SUBJECT"`
	Template string `env:"TEMPLATE"`
	Format   string `env:"FORMAT" envDefault:"html"`
}

// EmailsConfig is spec.md §6 emails.<key>, fixed to the two templates
// userservice actually sends (spec.md §4.5 create, forgotPassword).
type EmailsConfig struct {
	ConfirmEmail   EmailTemplate `envPrefix:"CONFIRMEMAIL_"`
	ForgotPassword EmailTemplate `envPrefix:"FORGOTPASSWORD_"`
}

// DBServerConfig is spec.md §6 dbServer.*.
type DBServerConfig struct {
	Protocol  string `env:"PROTOCOL" envDefault:"postgres"`
	Host      string `env:"HOST,required"`
	User      string `env:"USER,required"`
	Password  string `env:"PASSWORD,required"`
	PublicURL string `env:"PUBLIC_URL"`
	TypeField string `env:"TYPE_FIELD" envDefault:"type"`
	Cloudant  bool   `env:"CLOUDANT" envDefault:"false"`
}

// SessionConfig is spec.md §6 session.*.
type SessionConfig struct {
	Adapter          string `env:"ADAPTER" envDefault:"memory"`
	FileSessionsRoot string `env:"FILE_SESSIONS_ROOT" envDefault:"./data/sessions"`
	RedisAddr        string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword    string `env:"REDIS_PASSWORD"`
	RedisDB          int    `env:"REDIS_DB" envDefault:"0"`

	// ProfileMapping maps a synthesized profile field to the ordered
	// list of providers consulted for it (spec.md §4.5, §9: first
	// provider carrying the field wins). Entries are separated by ';'
	// and each key from its value by ':', e.g. "avatar:google,github".
	ProfileMapping map[string][]string `env:"PROFILE_MAPPING" envKeyValSeparator:":" envSeparator:";" envDefault:""`
}

// UserDBsConfig is spec.md §6 userDBs.*.
type UserDBsConfig struct {
	DefaultSecurityRoles struct {
		Admins  []string `env:"ADMINS" envSeparator:","`
		Members []string `env:"MEMBERS" envSeparator:","`
	} `envPrefix:"DEFAULT_SECURITY_ROLES_"`
	DefaultDBsPrivate []string `env:"DEFAULT_DBS_PRIVATE" envSeparator:","`
	DefaultDBsShared  []string `env:"DEFAULT_DBS_SHARED" envSeparator:","`
	PrivatePrefix     string   `env:"PRIVATE_PREFIX" envDefault:"userdb"`
	DesignDocDir      string   `env:"DESIGN_DOC_DIR" envDefault:"./data/designdocs"`

	// Model is spec.md §4.3's per-logical-name DB config, keyed
	// "_default" plus one entry per named personal DB. Populated from
	// DynamicConfigPath.
	Model map[string]ModelEntry `json:"model"`
}

// ModelEntry is one userDBs.model.<name> entry (spec.md §4.3).
type ModelEntry struct {
	Permissions []string `json:"permissions"`
	AdminRoles  []string `json:"adminRoles"`
	MemberRoles []string `json:"memberRoles"`
	DesignDocs  []string `json:"designDocs"`
}

// UserModelConfig is spec.md §6 userModel.*, merged with the built-in
// user document shape at validation time (spec.md §4.5 create step 2).
// Populated from DynamicConfigPath.
type UserModelConfig struct {
	Whitelist []string       `json:"whitelist"`
	Static    map[string]any `json:"static"`
}

// TestModeConfig is spec.md §6 testMode.*.
type TestModeConfig struct {
	NoEmail bool `env:"NO_EMAIL" envDefault:"false"`
}

// HTTPAPIConfig configures internal/httpapi's bearer-JWT convenience
// wrapper. It has no spec.md section of its own: the wire format it
// controls exists only at the optional HTTP adapter's boundary.
type HTTPAPIConfig struct {
	JWTSecret string `env:"JWT_SECRET,required"`
}

// dynamicConfig mirrors the JSON-file-only fields of [Config] for
// unmarshaling DynamicConfigPath.
type dynamicConfig struct {
	Providers map[string]ProviderConfig `json:"providers"`
	UserDBs   struct {
		Model map[string]ModelEntry `json:"model"`
	} `json:"userDBs"`
	UserModel UserModelConfig `json:"userModel"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct, then merges
// in the dynamic JSON sections if DynamicConfigPath is set.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if cfg.DynamicConfigPath != "" {
		if err := cfg.loadDynamic(cfg.DynamicConfigPath); err != nil {
			return nil, err
		}
	}

	cfg.flat = flatten("", reflect.ValueOf(cfg).Elem())
	return cfg, nil
}

func (c *Config) loadDynamic(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: failed to read dynamic config %s: %w", path, err)
	}

	var dyn dynamicConfig
	if err := json.Unmarshal(raw, &dyn); err != nil {
		return fmt.Errorf("config: failed to parse dynamic config %s: %w", path, err)
	}

	c.Providers = dyn.Providers
	c.UserDBs.Model = dyn.UserDBs.Model
	c.UserModel = dyn.UserModel
	return nil
}

// KeyPath reads a dotted key path (e.g. "security.sessionLife") the way
// the out-of-scope CLI/config loader described in spec.md §1 would,
// against the flattened view built at Load time.
func (c *Config) KeyPath(key string) (any, bool) {
	v, ok := c.flat[key]
	return v, ok
}

// flatten walks v's exported struct fields, building a lowercase-first
// dotted key for every leaf (matching spec.md §6's "security.sessionLife"
// style keys rather than Go's exported "Security.SessionLife"). Map and
// slice leaves (the dynamic sections) are indexed as single values, not
// expanded further.
func flatten(prefix string, v reflect.Value) map[string]any {
	out := make(map[string]any)
	if v.Kind() != reflect.Struct {
		return out
	}

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name := lowerFirst(field.Name)
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}

		fv := v.Field(i)
		if fv.Kind() == reflect.Struct {
			for k, sub := range flatten(path, fv) {
				out[k] = sub
			}
			continue
		}
		out[path] = fv.Interface()
	}
	return out
}

func lowerFirst(s string) string {
	// Lower the leading capital run, keeping the capital that starts the
	// next word: "Security" -> "security", "DBServer" -> "dbServer".
	n := 0
	for n < len(s) && s[n] >= 'A' && s[n] <= 'Z' {
		n++
	}
	if n > 1 && n < len(s) {
		n--
	}
	return strings.ToLower(s[:n]) + s[n:]
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
