// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/yomira/internal/platform/apperr"
	"github.com/taibuivan/yomira/internal/platform/database/schema"
	"github.com/taibuivan/yomira/pkg/uuidv7"
)

// PostgresStore implements [Store] against a single JSONB-bodied table.
// Views are not materialized columns: since the view set is small and
// changes rarely (spec.md §6's fixed auth/* list), Query scans the table
// once per call and evaluates [ExtractViewKey] in Go, the same logic the
// in-memory adapter uses. A high-traffic deployment would trade this for
// a materialized view per named lookup; that tradeoff is future work, not
// a correctness gap.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an already-connected pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Doc, error) {
	t := schema.DocstoreDocument
	query := fmt.Sprintf(`SELECT %s, %s, %s FROM %s WHERE %s = $1`, t.ID, t.Rev, t.Data, t.Table, t.ID)

	var doc Doc
	err := s.pool.QueryRow(ctx, query, id).Scan(&doc.ID, &doc.Rev, &doc.Data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Doc{}, apperr.NotFound("document not found")
		}
		return Doc{}, err
	}
	return doc, nil
}

func (s *PostgresStore) Put(ctx context.Context, doc Doc) (string, error) {
	t := schema.DocstoreDocument
	newRev := uuidv7.New()

	if doc.Rev == "" {
		query := fmt.Sprintf(
			`INSERT INTO %s (%s, %s, %s, %s) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (%s) DO NOTHING`,
			t.Table, t.ID, t.Rev, t.Data, t.UpdatedAt, t.ID,
		)
		tag, err := s.pool.Exec(ctx, query, doc.ID, newRev, []byte(doc.Data), time.Now())
		if err != nil {
			return "", err
		}
		if tag.RowsAffected() == 0 {
			return "", apperr.Conflict("document already exists")
		}
		return newRev, nil
	}

	query := fmt.Sprintf(
		`UPDATE %s SET %s = $1, %s = $2, %s = $3 WHERE %s = $4 AND %s = $5`,
		t.Table, t.Rev, t.Data, t.UpdatedAt, t.ID, t.Rev,
	)
	tag, err := s.pool.Exec(ctx, query, newRev, []byte(doc.Data), time.Now(), doc.ID, doc.Rev)
	if err != nil {
		return "", err
	}
	if tag.RowsAffected() == 0 {
		return "", apperr.Conflict("document revision conflict")
	}
	return newRev, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id, rev string) error {
	t := schema.DocstoreDocument
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 AND %s = $2`, t.Table, t.ID, t.Rev)
	tag, err := s.pool.Exec(ctx, query, id, rev)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("document revision conflict")
	}
	return nil
}

func (s *PostgresStore) Query(ctx context.Context, view, key string) ([]Doc, error) {
	t := schema.DocstoreDocument
	query := fmt.Sprintf(`SELECT %s, %s, %s FROM %s`, t.ID, t.Rev, t.Data, t.Table)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []Doc
	for rows.Next() {
		var doc Doc
		if err := rows.Scan(&doc.ID, &doc.Rev, &doc.Data); err != nil {
			return nil, err
		}
		if view == sessionView {
			if HasSessionKey(doc.Data, key) {
				matches = append(matches, doc)
			}
			continue
		}
		if value, ok := ExtractViewKey(view, doc.Data); ok && value == key {
			matches = append(matches, doc)
		}
	}
	return matches, rows.Err()
}

const sessionView = "auth/session"

var _ Store = (*PostgresStore)(nil)
