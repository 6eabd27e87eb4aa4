// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package docstore is the document-store external collaborator: the thing
UserService reads and writes user documents through, and queries via the
named views spec.md §6 lists (auth/username, auth/email, auth/<provider>,
...).

Architecture:

  - Store is the single contract; a Postgres/JSONB adapter and an
    in-memory adapter both satisfy it and are exercised by the same
    contract test suite.
  - Optimistic concurrency lives here: Put requires the caller's Rev to
    match the stored document's current revision, returning a Conflict
    [*apperr.AppError] otherwise. UserService is responsible for the
    read-modify-write retry loop (spec.md §5); this package never retries
    on its own.
  - Views are a named-field lookup, not a general query language — this
    mirrors a CouchDB/Cloudant design document, where adding a new lookup
    means adding a new named view, not an ad hoc query.
*/
package docstore

import (
	"context"
	"encoding/json"
)

// Doc is an opaque document as stored: a business-key ID, an optimistic
// concurrency revision tag, and its JSON body.
type Doc struct {
	ID   string
	Rev  string
	Data json.RawMessage
}

// Store is the document-store contract.
type Store interface {
	// Get returns the document for id, or NotFound.
	Get(ctx context.Context, id string) (Doc, error)

	// Put creates or updates a document. For an update, doc.Rev must
	// match the currently stored revision or a Conflict
	// [*apperr.AppError] is returned (optimistic concurrency). For a
	// create (no existing document), doc.Rev must be empty; a non-empty
	// Rev is likewise a Conflict. Put returns the new revision tag.
	Put(ctx context.Context, doc Doc) (string, error)

	// Delete removes the document for id if rev matches the current
	// revision.
	Delete(ctx context.Context, id, rev string) error

	// Query returns every document whose named view maps to key, per the
	// view semantics in [ExtractViewKey].
	Query(ctx context.Context, view, key string) ([]Doc, error)
}
