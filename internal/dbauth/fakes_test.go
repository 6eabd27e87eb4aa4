// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package dbauth_test

import (
	"context"
	"sync"
	"time"

	"github.com/taibuivan/yomira/internal/dbauth"
)

type fakeProvisioner struct {
	mu        sync.Mutex
	databases map[string]bool
	security  map[string][2][]string
	designs   map[string][]string
	dropped   map[string]bool
}

func newFakeProvisioner() *fakeProvisioner {
	return &fakeProvisioner{
		databases: make(map[string]bool),
		security:  make(map[string][2][]string),
		designs:   make(map[string][]string),
		dropped:   make(map[string]bool),
	}
}

func (f *fakeProvisioner) EnsureDatabase(_ context.Context, physicalName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.databases[physicalName] = true
	return nil
}

func (f *fakeProvisioner) SetSecurity(_ context.Context, physicalName string, adminRoles, memberRoles []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.security[physicalName] = [2][]string{adminRoles, memberRoles}
	return nil
}

func (f *fakeProvisioner) SeedDesignDocs(_ context.Context, physicalName string, _ string, designDocs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.designs[physicalName] = designDocs
	return nil
}

func (f *fakeProvisioner) DropDatabase(_ context.Context, physicalName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.databases, physicalName)
	f.dropped[physicalName] = true
	return nil
}

var _ dbauth.Provisioner = (*fakeProvisioner)(nil)

type fakeAuthStore struct {
	mu          sync.Mutex
	credentials map[string]credentialRecord
	memberships map[string]map[string][]string // physicalName -> key -> roles
}

type credentialRecord struct {
	userID   string
	password string
	roles    []string
	expires  time.Time
}

func newFakeAuthStore() *fakeAuthStore {
	return &fakeAuthStore{
		credentials: make(map[string]credentialRecord),
		memberships: make(map[string]map[string][]string),
	}
}

func (f *fakeAuthStore) PutCredential(_ context.Context, key, userID, hashedPassword string, roles []string, expires time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.credentials[key] = credentialRecord{userID: userID, password: hashedPassword, roles: roles, expires: expires}
	return nil
}

func (f *fakeAuthStore) GrantMembership(_ context.Context, physicalName, key string, roles []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.memberships[physicalName] == nil {
		f.memberships[physicalName] = make(map[string][]string)
	}
	f.memberships[physicalName][key] = roles
	return nil
}

func (f *fakeAuthStore) RevokeMembership(_ context.Context, physicalName, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.memberships[physicalName], key)
	return nil
}

func (f *fakeAuthStore) RevokeAllMemberships(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for physicalName := range f.memberships {
		delete(f.memberships[physicalName], key)
	}
	return nil
}

func (f *fakeAuthStore) DeleteCredentials(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.credentials, k)
	}
	return nil
}

func (f *fakeAuthStore) ExpiredCredentialKeys(_ context.Context, now time.Time) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var expired []string
	for key, record := range f.credentials {
		if record.expires.Before(now) {
			expired = append(expired, key)
		}
	}
	return expired, nil
}

var _ dbauth.AuthStore = (*fakeAuthStore)(nil)
