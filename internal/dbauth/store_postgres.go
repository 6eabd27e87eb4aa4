// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package dbauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/yomira/internal/platform/database/schema"
	"github.com/taibuivan/yomira/pkg/uuidv7"
)

// PostgresProvisioner implements [Provisioner] against a registry table.
// A real document-store backend would issue CREATE/DROP DATABASE and
// write a native security document; here that lifecycle is modeled as
// rows in dbauth.database, which is the same boundary a CouchDB/Cloudant
// driver would sit behind — swapping this adapter out is the intended
// extension point, not a gap in this package.
type PostgresProvisioner struct {
	pool *pgxpool.Pool
}

// NewPostgresProvisioner wraps an already-connected pool.
func NewPostgresProvisioner(pool *pgxpool.Pool) *PostgresProvisioner {
	return &PostgresProvisioner{pool: pool}
}

func (p *PostgresProvisioner) EnsureDatabase(ctx context.Context, physicalName string) error {
	t := schema.DBAuthDatabase
	query := fmt.Sprintf(
		`INSERT INTO %s (%s, %s, %s) VALUES ($1, $2, $3) ON CONFLICT (%s) DO NOTHING`,
		t.Table, t.PhysicalName, t.DBType, t.CreatedAt, t.PhysicalName,
	)
	_, err := p.pool.Exec(ctx, query, physicalName, string(Private), time.Now())
	return err
}

func (p *PostgresProvisioner) SetSecurity(ctx context.Context, physicalName string, adminRoles, memberRoles []string) error {
	t := schema.DBAuthDatabase
	query := fmt.Sprintf(
		`UPDATE %s SET %s = $2, %s = $3 WHERE %s = $1`,
		t.Table, t.AdminRoles, t.MemberRoles, t.PhysicalName,
	)
	_, err := p.pool.Exec(ctx, query, physicalName, strings.Join(adminRoles, ","), strings.Join(memberRoles, ","))
	return err
}

func (p *PostgresProvisioner) SeedDesignDocs(ctx context.Context, physicalName string, _ string, designDocs []string) error {
	t := schema.DBAuthDatabase
	query := fmt.Sprintf(`UPDATE %s SET %s = $2 WHERE %s = $1`, t.Table, t.DesignDocs, t.PhysicalName)
	_, err := p.pool.Exec(ctx, query, physicalName, strings.Join(designDocs, ","))
	return err
}

func (p *PostgresProvisioner) DropDatabase(ctx context.Context, physicalName string) error {
	t := schema.DBAuthDatabase
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, t.Table, t.PhysicalName)
	_, err := p.pool.Exec(ctx, query, physicalName)
	return err
}

var _ Provisioner = (*PostgresProvisioner)(nil)

// PostgresAuthStore implements [AuthStore] against dbauth.credential and
// dbauth.membership.
type PostgresAuthStore struct {
	pool *pgxpool.Pool
}

// NewPostgresAuthStore wraps an already-connected pool.
func NewPostgresAuthStore(pool *pgxpool.Pool) *PostgresAuthStore {
	return &PostgresAuthStore{pool: pool}
}

func (a *PostgresAuthStore) PutCredential(ctx context.Context, key, userID, hashedPassword string, roles []string, expires time.Time) error {
	t := schema.DBAuthCredential
	query := fmt.Sprintf(
		`INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s) VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (%s) DO UPDATE SET %s = $4, %s = $5, %s = $6`,
		t.Table, t.ID, t.Key, t.UserID, t.PasswordHash, t.Roles, t.ExpiresAt, t.CreatedAt,
		t.Key, t.PasswordHash, t.Roles, t.ExpiresAt,
	)
	_, err := a.pool.Exec(ctx, query, uuidv7.New(), key, userID, hashedPassword, strings.Join(roles, ","), expires, time.Now())
	return err
}

func (a *PostgresAuthStore) GrantMembership(ctx context.Context, physicalName, key string, roles []string) error {
	t := schema.DBAuthMembership
	query := fmt.Sprintf(
		`INSERT INTO %s (%s, %s, %s, %s) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (%s, %s) DO UPDATE SET %s = $3`,
		t.Table, t.PhysicalName, t.Key, t.Roles, t.GrantedAt,
		t.PhysicalName, t.Key, t.Roles,
	)
	_, err := a.pool.Exec(ctx, query, physicalName, key, strings.Join(roles, ","), time.Now())
	return err
}

func (a *PostgresAuthStore) RevokeMembership(ctx context.Context, physicalName, key string) error {
	t := schema.DBAuthMembership
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 AND %s = $2`, t.Table, t.PhysicalName, t.Key)
	_, err := a.pool.Exec(ctx, query, physicalName, key)
	return err
}

func (a *PostgresAuthStore) RevokeAllMemberships(ctx context.Context, key string) error {
	t := schema.DBAuthMembership
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, t.Table, t.Key)
	_, err := a.pool.Exec(ctx, query, key)
	return err
}

func (a *PostgresAuthStore) DeleteCredentials(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	t := schema.DBAuthCredential
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = ANY($1)`, t.Table, t.Key)
	_, err := a.pool.Exec(ctx, query, keys)
	return err
}

func (a *PostgresAuthStore) ExpiredCredentialKeys(ctx context.Context, now time.Time) ([]string, error) {
	t := schema.DBAuthCredential
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s < $1`, t.Key, t.Table, t.ExpiresAt)

	rows, err := a.pool.Query(ctx, query, now)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

var _ AuthStore = (*PostgresAuthStore)(nil)
