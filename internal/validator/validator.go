// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package validator is an async declarative validator: a [Spec] describes
a document's shape once (whitelist, sanitizers, field rules, cross-field
checks, async uniqueness checks, a rename table, and static injections),
and [Spec.Validate] applies it to an arbitrary input map, the way
internal/platform/validate.Validator does for synchronous, fluent
per-request checks — but declared data-first instead of built
imperatively, since userservice needs the same shape reused across
create/changeEmail/changePhone/etc rather than rebuilt per call site.
*/
package validator

import (
	"context"
	"sort"
	"strings"
)

// SanitizeFunc transforms a raw string value before validation.
type SanitizeFunc func(string) string

// Trim and ToLowerCase are the two sanitizers spec.md §4.4 names.
func Trim(s string) string        { return strings.TrimSpace(s) }
func ToLowerCase(s string) string { return strings.ToLower(s) }

// LengthRule enforces a minimum length with a custom message.
type LengthRule struct {
	Minimum int
	Message string
}

// FieldSpec is one field's validation rules.
type FieldSpec struct {
	Presence bool
	Length   *LengthRule
	// Validate returns a failure message, or "" if the value passes.
	Validate func(value string) string
}

// CustomValidator is an async, format-and-uniqueness field check
// (validateEmail/validatePhone/validateUsername in spec.md §4.4).
// It returns a failure message, or "" if the value passes.
type CustomValidator func(ctx context.Context, value string) (string, error)

// Spec is a declarative validation pass over a map[string]any document.
type Spec struct {
	// Whitelist: fields outside it are dropped silently before anything
	// else runs. A nil/empty Whitelist means no filtering.
	Whitelist []string

	// Sanitize runs per-field, before Fields/Matches/CustomValidators.
	Sanitize map[string]SanitizeFunc

	Fields map[string]FieldSpec

	// Matches enforces value equality: Matches["confirmPassword"] =
	// "password" means confirmPassword must equal password.
	Matches map[string]string

	CustomValidators map[string]CustomValidator

	// Rename moves a field to a new key after all validation passes
	// (e.g. "username" -> "_id").
	Rename map[string]string

	// Static is merged into the result after validation and renaming,
	// unconditionally overwriting any existing value at that key.
	Static map[string]any
}

// Validate applies s to input, returning either the validated (and
// sanitized/renamed/static-injected) document, or a field->messages map
// of everything that failed. Exactly one of the two returns is non-nil.
func (s Spec) Validate(ctx context.Context, input map[string]any) (map[string]any, map[string][]string) {
	doc := s.applyWhitelist(input)
	s.applySanitizers(doc)

	errs := make(map[string][]string)
	s.checkFields(doc, errs)
	s.checkMatches(doc, errs)
	s.checkCustomValidators(ctx, doc, errs)

	if len(errs) > 0 {
		return nil, errs
	}

	s.applyRename(doc)
	for k, v := range s.Static {
		doc[k] = v
	}
	return doc, nil
}

func (s Spec) applyWhitelist(input map[string]any) map[string]any {
	if len(s.Whitelist) == 0 {
		doc := make(map[string]any, len(input))
		for k, v := range input {
			doc[k] = v
		}
		return doc
	}
	doc := make(map[string]any, len(s.Whitelist))
	for _, field := range s.Whitelist {
		if v, ok := input[field]; ok {
			doc[field] = v
		}
	}
	return doc
}

func (s Spec) applySanitizers(doc map[string]any) {
	for field, fn := range s.Sanitize {
		if v, ok := doc[field].(string); ok {
			doc[field] = fn(v)
		}
	}
}

func (s Spec) checkFields(doc map[string]any, errs map[string][]string) {
	// Iterate in sorted order so validation-error ordering is
	// deterministic across runs (map iteration is not).
	fields := make([]string, 0, len(s.Fields))
	for field := range s.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		rule := s.Fields[field]
		value, _ := doc[field].(string)
		present := strings.TrimSpace(value) != ""

		if rule.Presence && !present {
			errs[field] = append(errs[field], "is required")
			continue
		}
		if !present {
			continue
		}
		if rule.Length != nil && len(value) < rule.Length.Minimum {
			msg := rule.Length.Message
			if msg == "" {
				msg = "is too short"
			}
			errs[field] = append(errs[field], msg)
		}
		if rule.Validate != nil {
			if msg := rule.Validate(value); msg != "" {
				errs[field] = append(errs[field], msg)
			}
		}
	}
}

func (s Spec) checkMatches(doc map[string]any, errs map[string][]string) {
	fields := make([]string, 0, len(s.Matches))
	for field := range s.Matches {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		other := s.Matches[field]
		a, _ := doc[field].(string)
		b, _ := doc[other].(string)
		if a != b {
			errs[field] = append(errs[field], "does not match "+other)
		}
	}
}

func (s Spec) checkCustomValidators(ctx context.Context, doc map[string]any, errs map[string][]string) {
	fields := make([]string, 0, len(s.CustomValidators))
	for field := range s.CustomValidators {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		value, ok := doc[field].(string)
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		msg, err := s.CustomValidators[field](ctx, value)
		if err != nil {
			errs[field] = append(errs[field], err.Error())
			continue
		}
		if msg != "" {
			errs[field] = append(errs[field], msg)
		}
	}
}

func (s Spec) applyRename(doc map[string]any) {
	for from, to := range s.Rename {
		if v, ok := doc[from]; ok {
			doc[to] = v
			delete(doc, from)
		}
	}
}
