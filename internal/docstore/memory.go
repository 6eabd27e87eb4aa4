// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package docstore

import (
	"context"
	"sync"

	"github.com/taibuivan/yomira/internal/platform/apperr"
	"github.com/taibuivan/yomira/pkg/uuidv7"
)

// MemoryStore is an in-process [Store], used by userservice's tests and
// by any deployment too small to justify a Postgres-backed document
// store.
type MemoryStore struct {
	mu   sync.Mutex
	docs map[string]Doc
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]Doc)}
}

func (s *MemoryStore) Get(_ context.Context, id string) (Doc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return Doc{}, apperr.NotFound("document not found")
	}
	return cloneDoc(doc), nil
}

func (s *MemoryStore) Put(_ context.Context, doc Doc) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.docs[doc.ID]
	if !exists && doc.Rev != "" {
		return "", apperr.Conflict("document revision conflict")
	}
	if exists && doc.Rev != existing.Rev {
		return "", apperr.Conflict("document revision conflict")
	}

	newRev := uuidv7.New()
	s.docs[doc.ID] = Doc{ID: doc.ID, Rev: newRev, Data: doc.Data}
	return newRev, nil
}

func (s *MemoryStore) Delete(_ context.Context, id, rev string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.docs[id]
	if !ok || existing.Rev != rev {
		return apperr.Conflict("document revision conflict")
	}
	delete(s.docs, id)
	return nil
}

func (s *MemoryStore) Query(_ context.Context, view, key string) ([]Doc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matches []Doc
	for _, doc := range s.docs {
		if view == sessionView {
			if HasSessionKey(doc.Data, key) {
				matches = append(matches, cloneDoc(doc))
			}
			continue
		}
		if value, ok := ExtractViewKey(view, doc.Data); ok && value == key {
			matches = append(matches, cloneDoc(doc))
		}
	}
	return matches, nil
}

func cloneDoc(doc Doc) Doc {
	data := make([]byte, len(doc.Data))
	copy(data, doc.Data)
	return Doc{ID: doc.ID, Rev: doc.Rev, Data: data}
}

var _ Store = (*MemoryStore)(nil)
