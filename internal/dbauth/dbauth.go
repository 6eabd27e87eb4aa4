// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package dbauth provisions per-user databases and manages the credentials
the backing document store's own auth database recognises for a session.

Architecture:

  - Provisioner owns physical database lifecycle: creating/dropping a
    database and writing its security document and design docs.
  - AuthStore owns the DB auth store: per-session credentials and their
    per-database membership grants.
  - DBAuth composes the two behind the operations UserService calls; it
    holds no document-store state of its own (personalDBs lives on the
    user document, owned by UserService).

Credential passwords are bcrypt-hashed before Provisioner/AuthStore ever
see them at rest — distinct from the PBKDF2 derivation [internal/util]
uses for account passwords, since this is a stored-and-compared secret
rather than a user-chosen one.
*/
package dbauth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// DBType is the provisioning mode of a personal database.
type DBType string

const (
	// Private databases get one physical database per user.
	Private DBType = "private"
	// Shared databases are a single physical database across all users.
	Shared DBType = "shared"
)

// DBConfig is the resolved provisioning configuration for a logical
// database name, after merging userDBs.model._default with
// userDBs.model[logicalName].
type DBConfig struct {
	Name        string
	Type        DBType
	Permissions any
	AdminRoles  []string
	MemberRoles []string
	DesignDocs  []string
}

// PersonalDB is the record UserService embeds in a user document's
// personalDBs map, keyed by the physical database name (spec.md I7).
type PersonalDB struct {
	Name        string   `json:"name"`
	Type        DBType   `json:"type"`
	Permissions any      `json:"permissions,omitempty"`
	AdminRoles  []string `json:"adminRoles,omitempty"`
	MemberRoles []string `json:"memberRoles,omitempty"`
}

// ModelConfig is one entry of userDBs.model — either the "_default" entry
// or a named override for a specific logical database.
type ModelConfig struct {
	Type        DBType
	Permissions any
	AdminRoles  []string
	MemberRoles []string
	DesignDocs  []string
}

// Config is the userDBs.* configuration section.
type Config struct {
	DefaultSecurityRoles struct {
		Admins  []string
		Members []string
	}
	Model            map[string]ModelConfig
	DefaultPrivateDBs []string
	DefaultSharedDBs  []string
	PrivatePrefix     string
	DesignDocDir      string
}

// Provisioner owns physical database lifecycle.
type Provisioner interface {
	// EnsureDatabase creates physicalName if absent. Creating an
	// already-existing database is a no-op, not an error.
	EnsureDatabase(ctx context.Context, physicalName string) error

	// SetSecurity writes/overwrites physicalName's security document.
	SetSecurity(ctx context.Context, physicalName string, adminRoles, memberRoles []string) error

	// SeedDesignDocs loads designDocDir/{name}.js for each entry in
	// designDocs and seeds it into physicalName.
	SeedDesignDocs(ctx context.Context, physicalName string, designDocDir string, designDocs []string) error

	// DropDatabase destroys physicalName.
	DropDatabase(ctx context.Context, physicalName string) error
}

// AuthStore owns the backing database's own credential store: the
// per-session API keys it recognises as valid, and their per-database
// membership grants.
type AuthStore interface {
	// PutCredential writes a credential entry for key, recognised by the
	// backing store as valid until expires.
	PutCredential(ctx context.Context, key, userID, hashedPassword string, roles []string, expires time.Time) error

	// GrantMembership authorizes key for physicalName with roles.
	GrantMembership(ctx context.Context, physicalName, key string, roles []string) error

	// RevokeMembership removes key's authorization for physicalName.
	RevokeMembership(ctx context.Context, physicalName, key string) error

	// RevokeAllMemberships removes every membership grant for key, across
	// every physical database.
	RevokeAllMemberships(ctx context.Context, key string) error

	// DeleteCredentials removes credential entries for the given keys.
	DeleteCredentials(ctx context.Context, keys ...string) error

	// ExpiredCredentialKeys returns every credential key whose expiry is
	// strictly before now.
	ExpiredCredentialKeys(ctx context.Context, now time.Time) ([]string, error)
}

// DBAuth is component C3: it provisions personal databases and manages
// the credentials/memberships the backing store's auth database tracks.
type DBAuth struct {
	cfg         Config
	provisioner Provisioner
	authStore   AuthStore
	log         *slog.Logger
}

// New constructs a [DBAuth].
func New(cfg Config, provisioner Provisioner, authStore AuthStore, log *slog.Logger) *DBAuth {
	return &DBAuth{cfg: cfg, provisioner: provisioner, authStore: authStore, log: log}
}

// GetDBConfig merges userDBs.model._default with userDBs.model[logicalName]
// (named entry wins field-by-field) and falls back to typeDefault when
// neither entry specifies a Type.
func (d *DBAuth) GetDBConfig(logicalName string, typeDefault DBType) DBConfig {
	resolved := DBConfig{Name: logicalName, Type: typeDefault}

	if def, ok := d.cfg.Model["_default"]; ok {
		applyModel(&resolved, def)
	}
	if named, ok := d.cfg.Model[logicalName]; ok {
		applyModel(&resolved, named)
	}
	if resolved.Type == "" {
		resolved.Type = typeDefault
	}
	return resolved
}

func applyModel(resolved *DBConfig, model ModelConfig) {
	if model.Type != "" {
		resolved.Type = model.Type
	}
	if model.Permissions != nil {
		resolved.Permissions = model.Permissions
	}
	if len(model.AdminRoles) > 0 {
		resolved.AdminRoles = model.AdminRoles
	}
	if len(model.MemberRoles) > 0 {
		resolved.MemberRoles = model.MemberRoles
	}
	if len(model.DesignDocs) > 0 {
		resolved.DesignDocs = model.DesignDocs
	}
}

// PhysicalName computes the physical database name for a logical name and
// type (spec.md §4.3): private databases are namespaced per user, shared
// databases use the logical name directly.
func (d *DBAuth) PhysicalName(userID, logicalName string, dbType DBType) string {
	if dbType == Shared {
		return logicalName
	}
	return fmt.Sprintf("%s_%s$%s", d.cfg.PrivatePrefix, logicalName, userID)
}

// AddUserDB provisions logicalName for userID and returns the physical
// database name to record on the user document.
func (d *DBAuth) AddUserDB(ctx context.Context, userID, logicalName string, designDocs []string, dbType DBType, permissions any, adminRoles, memberRoles []string) (string, error) {
	physicalName := d.PhysicalName(userID, logicalName, dbType)

	if err := d.provisioner.EnsureDatabase(ctx, physicalName); err != nil {
		return "", fmt.Errorf("dbauth: ensure database %s: %w", physicalName, err)
	}

	mergedAdmins := mergeRoles(adminRoles, d.cfg.DefaultSecurityRoles.Admins)
	mergedMembers := mergeRoles(memberRoles, d.cfg.DefaultSecurityRoles.Members)

	if err := d.provisioner.SetSecurity(ctx, physicalName, mergedAdmins, mergedMembers); err != nil {
		return "", fmt.Errorf("dbauth: set security %s: %w", physicalName, err)
	}

	if len(designDocs) > 0 {
		if err := d.provisioner.SeedDesignDocs(ctx, physicalName, d.cfg.DesignDocDir, designDocs); err != nil {
			return "", fmt.Errorf("dbauth: seed design docs %s: %w", physicalName, err)
		}
	}

	d.log.Info("user_db_provisioned", slog.String("logical_name", logicalName), slog.String("type", string(dbType)))
	return physicalName, nil
}

// RemoveUserDB destroys a previously provisioned physical database.
func (d *DBAuth) RemoveUserDB(ctx context.Context, physicalName string) error {
	return d.RemoveDB(ctx, physicalName)
}

// StoreKey writes a session credential entry to the DB auth store. The
// password is bcrypt-hashed before it reaches the [AuthStore].
func (d *DBAuth) StoreKey(ctx context.Context, userID, tokenKey, password string, expires time.Time, roles []string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("dbauth: hash credential: %w", err)
	}
	if err := d.authStore.PutCredential(ctx, tokenKey, userID, string(hashed), roles, expires); err != nil {
		return fmt.Errorf("dbauth: store credential: %w", err)
	}
	return nil
}

// AuthorizeUserSessions grants tokenKey membership in every database
// listed in personalDBs.
func (d *DBAuth) AuthorizeUserSessions(ctx context.Context, personalDBs map[string]PersonalDB, tokenKey string, roles []string) error {
	for physicalName := range personalDBs {
		if err := d.authStore.GrantMembership(ctx, physicalName, tokenKey, roles); err != nil {
			return fmt.Errorf("dbauth: grant membership %s: %w", physicalName, err)
		}
	}
	return nil
}

// DeauthorizeUser revokes a set of session keys' membership across every
// database in personalDBs.
func (d *DBAuth) DeauthorizeUser(ctx context.Context, personalDBs map[string]PersonalDB, keys ...string) error {
	for physicalName := range personalDBs {
		for _, key := range keys {
			if err := d.authStore.RevokeMembership(ctx, physicalName, key); err != nil {
				return fmt.Errorf("dbauth: revoke membership %s: %w", physicalName, err)
			}
		}
	}
	return nil
}

// RemoveKeys deletes credential entries from the DB auth store.
func (d *DBAuth) RemoveKeys(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := d.authStore.DeleteCredentials(ctx, keys...); err != nil {
		return fmt.Errorf("dbauth: delete credentials: %w", err)
	}
	for _, key := range keys {
		if err := d.authStore.RevokeAllMemberships(ctx, key); err != nil {
			return fmt.Errorf("dbauth: revoke all memberships: %w", err)
		}
	}
	return nil
}

// RemoveDB destroys a physical database.
func (d *DBAuth) RemoveDB(ctx context.Context, physicalName string) error {
	if err := d.provisioner.DropDatabase(ctx, physicalName); err != nil {
		return fmt.Errorf("dbauth: drop database %s: %w", physicalName, err)
	}
	return nil
}

// RemoveExpiredKeys scans the DB auth store for credentials past their
// expiry and removes them. It is exposed for an external scheduler to
// call; the core never starts its own ticker (spec.md §5).
func (d *DBAuth) RemoveExpiredKeys(ctx context.Context) (int, error) {
	expired, err := d.authStore.ExpiredCredentialKeys(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("dbauth: list expired credentials: %w", err)
	}
	if len(expired) == 0 {
		return 0, nil
	}
	if err := d.RemoveKeys(ctx, expired...); err != nil {
		return 0, err
	}
	return len(expired), nil
}

func mergeRoles(explicit, defaults []string) []string {
	seen := make(map[string]struct{}, len(explicit)+len(defaults))
	var merged []string
	for _, r := range append(append([]string{}, explicit...), defaults...) {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		merged = append(merged, r)
	}
	return merged
}
