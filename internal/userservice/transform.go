// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package userservice

import "context"

// Transformation is a registered onCreate/onLink step: it receives the
// user document produced by the previous step (or the original, for the
// first step) and returns the document to carry forward.
//
// The source model this is adapted from chains these with a forEach that
// never awaits its own callback, so a transformation returning a promise
// is silently raced against the next one instead of being composed
// sequentially (spec.md §9). runTransformations fixes that: it folds over
// the list, awaiting each step before starting the next.
type Transformation func(ctx context.Context, user *User) (*User, error)

// runTransformations folds transformations over user in order, each
// taking the previous step's result. An error from any step aborts the
// pipeline and propagates unchanged.
func runTransformations(ctx context.Context, user *User, transformations []Transformation) (*User, error) {
	current := user
	for _, transform := range transformations {
		next, err := transform(ctx, current)
		if err != nil {
			return nil, err
		}
		current = next
	}
	return current, nil
}
