// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package userservice

import "context"

// Remove deletes a user document (spec.md §4.5). Every outstanding
// session is revoked first; destroyDBs additionally drops every physical
// database recorded under personalDBs rather than leaving them orphaned.
func (s *Service) Remove(ctx context.Context, userID string, destroyDBs bool) error {
	user, err := s.getByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.logoutUserSessions(ctx, user, user.sessionKeys()); err != nil {
		return err
	}

	if destroyDBs {
		for physicalName := range user.PersonalDBs {
			if err := s.dbAuth.RemoveDB(ctx, physicalName); err != nil {
				return err
			}
		}
	}

	return s.store.Delete(ctx, user.ID, user.Rev)
}
