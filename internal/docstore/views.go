// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package docstore

import (
	"encoding/json"
	"strings"
)

// ExtractViewKey evaluates one of the named views spec.md §6 lists
// against a decoded document, returning the value that view maps the
// document to (and whether the document participates in the view at
// all). This is shared by every [Store] adapter so "what does auth/X
// mean" has exactly one definition in the codebase.
//
// Supported views:
//
//	auth/username, auth/email, auth/phone, auth/emailUsername — the
//	    identically-named top-level field.
//	auth/<provider>                                           — <provider>.profile.id
//	auth/passwordReset                                        — forgotPassword.token
//	auth/verifyEmail                                          — unverifiedEmail.token
//	auth/session                                               — special-cased by
//	    [HasSessionKey]; ExtractViewKey does not handle it since a
//	    document maps to *every* one of its session keys, not one value.
func ExtractViewKey(view string, data json.RawMessage) (string, bool) {
	field, ok := strings.CutPrefix(view, "auth/")
	if !ok {
		return "", false
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", false
	}

	switch field {
	case "username", "email", "phone", "emailUsername":
		return stringField(doc, field)
	case "passwordReset":
		return nestedStringField(doc, "forgotPassword", "token")
	case "verifyEmail":
		return nestedStringField(doc, "unverifiedEmail", "token")
	default:
		// auth/<provider>
		return nestedStringField(doc, field, "profile", "id")
	}
}

// HasSessionKey reports whether data's session map contains key — the
// auth/session view's membership semantics.
func HasSessionKey(data json.RawMessage, key string) bool {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return false
	}
	sessions, ok := doc["session"].(map[string]any)
	if !ok {
		return false
	}
	_, present := sessions[key]
	return present
}

func stringField(doc map[string]any, field string) (string, bool) {
	v, ok := doc[field]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

func nestedStringField(doc map[string]any, path ...string) (string, bool) {
	var current any = doc
	for _, segment := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return "", false
		}
		current, ok = m[segment]
		if !ok {
			return "", false
		}
	}
	s, ok := current.(string)
	return s, ok && s != ""
}
