// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package userservice

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/taibuivan/yomira/internal/dbauth"
	"github.com/taibuivan/yomira/internal/docstore"
	"github.com/taibuivan/yomira/internal/util"
)

// UnverifiedEmail marks an in-progress email-confirm flow (spec.md §3).
type UnverifiedEmail struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

// ProviderAuth is the {auth, profile} pair stored under a federated
// provider's own top-level key on the user document.
type ProviderAuth struct {
	Auth    map[string]any `json:"auth"`
	Profile map[string]any `json:"profile"`
}

// LocalCredential is the user document's local field: the password
// derivation plus lockout bookkeeping.
type LocalCredential struct {
	util.Credential
	FailedLoginAttempts int        `json:"failedLoginAttempts,omitempty"`
	LockedUntil         *time.Time `json:"lockedUntil,omitempty"`
}

// SignUpRecord is the immutable record of how an account came to exist.
type SignUpRecord struct {
	Provider  string    `json:"provider"`
	Timestamp time.Time `json:"timestamp"`
	IP        string    `json:"ip"`
}

// ActivityEntry is one audit-log row (spec.md §3, §4.5 logActivity).
type ActivityEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Provider  string    `json:"provider"`
	IP        string    `json:"ip"`
}

// ForgotPasswordRecord holds the hashed reset token (spec.md I6).
type ForgotPasswordRecord struct {
	Token   string    `json:"token"`
	Issued  time.Time `json:"issued"`
	Expires time.Time `json:"expires"`
}

// User is the in-memory shape of a user document (spec.md §3). The
// document's discriminator field uses a configurable key name
// (dbServer.typeField), so it is not a struct field here — [toDoc] and
// [userFromDoc] thread the configured name through at the JSON boundary
// instead of fixing it at compile time.
type User struct {
	ID   string
	Rev  string

	Email    string
	Phone    string
	Username string

	UnverifiedEmail *UnverifiedEmail

	// Providers is the ordered-unique list of linked provider names
	// (spec.md I1). ProviderData holds the federated {auth, profile}
	// blocks, keyed by provider name.
	Providers    []string
	ProviderData map[string]ProviderAuth

	Local *LocalCredential

	Roles []string

	SignUp SignUpRecord

	Session map[string]util.SessionRecord

	PersonalDBs map[string]dbauth.PersonalDB

	Activity []ActivityEntry

	ForgotPassword *ForgotPasswordRecord

	Profile map[string]any
}

var reservedFields = map[string]bool{
	"_id": true, "_rev": true,
	"email": true, "phone": true, "username": true,
	"unverifiedEmail": true, "providers": true, "local": true,
	"roles": true, "signUp": true, "session": true,
	"personalDBs": true, "activity": true, "forgotPassword": true,
	"profile": true,
}

// toDoc renders u as a [docstore.Doc], writing the type discriminator
// under typeField.
func (u *User) toDoc(typeField string) (docstore.Doc, error) {
	m := make(map[string]any, 16+len(u.ProviderData))
	m[typeField] = "user"

	if u.Email != "" {
		m["email"] = u.Email
	}
	if u.Phone != "" {
		m["phone"] = u.Phone
	}
	if u.Username != "" {
		m["username"] = u.Username
	}
	if u.UnverifiedEmail != nil {
		m["unverifiedEmail"] = u.UnverifiedEmail
	}
	if len(u.Providers) > 0 {
		m["providers"] = u.Providers
	}
	if u.Local != nil {
		m["local"] = u.Local
	}
	if len(u.Roles) > 0 {
		m["roles"] = u.Roles
	}
	m["signUp"] = u.SignUp
	if len(u.Session) > 0 {
		m["session"] = u.Session
	}
	if len(u.PersonalDBs) > 0 {
		m["personalDBs"] = u.PersonalDBs
	}
	if len(u.Activity) > 0 {
		m["activity"] = u.Activity
	}
	if u.ForgotPassword != nil {
		m["forgotPassword"] = u.ForgotPassword
	}
	if len(u.Profile) > 0 {
		m["profile"] = u.Profile
	}
	for provider, data := range u.ProviderData {
		m[provider] = data
	}

	data, err := json.Marshal(m)
	if err != nil {
		return docstore.Doc{}, err
	}
	return docstore.Doc{ID: u.ID, Rev: u.Rev, Data: data}, nil
}

// userFromDoc parses doc into a [User], treating every key not in
// [reservedFields] and not equal to typeField as a federated provider
// block.
func userFromDoc(typeField string, doc docstore.Doc) (*User, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(doc.Data, &raw); err != nil {
		return nil, err
	}

	u := &User{ID: doc.ID, Rev: doc.Rev}

	if v, ok := raw["email"]; ok {
		_ = json.Unmarshal(v, &u.Email)
	}
	if v, ok := raw["phone"]; ok {
		_ = json.Unmarshal(v, &u.Phone)
	}
	if v, ok := raw["username"]; ok {
		_ = json.Unmarshal(v, &u.Username)
	}
	if v, ok := raw["unverifiedEmail"]; ok {
		_ = json.Unmarshal(v, &u.UnverifiedEmail)
	}
	if v, ok := raw["providers"]; ok {
		_ = json.Unmarshal(v, &u.Providers)
	}
	if v, ok := raw["local"]; ok {
		_ = json.Unmarshal(v, &u.Local)
	}
	if v, ok := raw["roles"]; ok {
		_ = json.Unmarshal(v, &u.Roles)
	}
	if v, ok := raw["signUp"]; ok {
		_ = json.Unmarshal(v, &u.SignUp)
	}
	if v, ok := raw["session"]; ok {
		_ = json.Unmarshal(v, &u.Session)
	}
	if v, ok := raw["personalDBs"]; ok {
		_ = json.Unmarshal(v, &u.PersonalDBs)
	}
	if v, ok := raw["activity"]; ok {
		_ = json.Unmarshal(v, &u.Activity)
	}
	if v, ok := raw["forgotPassword"]; ok {
		_ = json.Unmarshal(v, &u.ForgotPassword)
	}
	if v, ok := raw["profile"]; ok {
		_ = json.Unmarshal(v, &u.Profile)
	}

	for key, v := range raw {
		if key == typeField || reservedFields[key] {
			continue
		}
		var pa ProviderAuth
		if err := json.Unmarshal(v, &pa); err != nil {
			continue
		}
		if u.ProviderData == nil {
			u.ProviderData = make(map[string]ProviderAuth)
		}
		u.ProviderData[key] = pa
	}

	return u, nil
}

// HasProvider reports whether name is in u.Providers.
func (u *User) HasProvider(name string) bool {
	for _, p := range u.Providers {
		if p == name {
			return true
		}
	}
	return false
}

// AddProvider appends name to u.Providers if not already present
// (spec.md I1: ordered-unique).
func (u *User) AddProvider(name string) {
	if u.HasProvider(name) {
		return
	}
	u.Providers = append(u.Providers, name)
}

// RemoveProvider drops name from u.Providers.
func (u *User) RemoveProvider(name string) {
	out := u.Providers[:0]
	for _, p := range u.Providers {
		if p != name {
			out = append(out, p)
		}
	}
	u.Providers = out
}

// PrependActivity records entry newest-first and trims to maxLen
// (spec.md I5).
func (u *User) PrependActivity(entry ActivityEntry, maxLen int) {
	u.Activity = append([]ActivityEntry{entry}, u.Activity...)
	if maxLen > 0 && len(u.Activity) > maxLen {
		u.Activity = u.Activity[:maxLen]
	}
}

// sessionKeys returns every key of u.Session, sorted for deterministic
// iteration.
func (u *User) sessionKeys() []string {
	keys := make([]string, 0, len(u.Session))
	for k := range u.Session {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// expiredSessionKeys returns the session keys whose expiry is strictly
// before now.
func (u *User) expiredSessionKeys(now time.Time) []string {
	var expired []string
	for _, k := range u.sessionKeys() {
		if u.Session[k].Expires.Before(now) {
			expired = append(expired, k)
		}
	}
	return expired
}
