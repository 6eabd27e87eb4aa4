// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package userservice

import (
	"context"
	"fmt"
	"time"

	"github.com/taibuivan/yomira/internal/dbauth"
	"github.com/taibuivan/yomira/internal/events"
)

// provisionDefaultDBs provisions userDBs.defaultDBs.{private,shared} for a
// newly created user (spec.md §4.3, §4.5 create step 5), recording each
// physical name under user.PersonalDBs.
func (s *Service) provisionDefaultDBs(ctx context.Context, user *User) error {
	for _, logicalName := range s.cfg.UserDBs.DefaultDBsPrivate {
		if err := s.addUserDB(ctx, user, logicalName, dbauth.Private); err != nil {
			return err
		}
	}
	for _, logicalName := range s.cfg.UserDBs.DefaultDBsShared {
		if err := s.addUserDB(ctx, user, logicalName, dbauth.Shared); err != nil {
			return err
		}
	}
	return nil
}

// addUserDB provisions one logical database for user and records it,
// shared by [Service.provisionDefaultDBs] and the public [Service.AddUserDB].
func (s *Service) addUserDB(ctx context.Context, user *User, logicalName string, dbType dbauth.DBType) error {
	resolved := s.dbAuth.GetDBConfig(logicalName, dbType)

	physicalName, err := s.dbAuth.AddUserDB(ctx, user.ID, logicalName, resolved.DesignDocs, resolved.Type, resolved.Permissions, resolved.AdminRoles, resolved.MemberRoles)
	if err != nil {
		return fmt.Errorf("userservice: provision db %s: %w", logicalName, err)
	}

	if user.PersonalDBs == nil {
		user.PersonalDBs = make(map[string]dbauth.PersonalDB)
	}
	// keyed by physical name; .Name carries the logical name (I7) so
	// authstrategies.userDBURLs can key the session response by it.
	user.PersonalDBs[physicalName] = dbauth.PersonalDB{
		Name:        resolved.Name,
		Type:        resolved.Type,
		Permissions: resolved.Permissions,
		AdminRoles:  resolved.AdminRoles,
		MemberRoles: resolved.MemberRoles,
	}
	return nil
}

// AddUserDB is the public add-one-database operation (spec.md §4.3): it
// provisions logicalName for userID, persists the updated personalDBs
// map, and emits [events.UserDBAdded].
func (s *Service) AddUserDB(ctx context.Context, userID, logicalName string, dbType dbauth.DBType) (*User, error) {
	user, err := s.retryMutate(ctx, userID, func(u *User) (bool, error) {
		if err := s.addUserDB(ctx, u, logicalName, dbType); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.emit.Emit(events.Event{Name: events.UserDBAdded, UserID: userID, Timestamp: time.Now(), Data: map[string]any{"name": logicalName, "type": string(dbType)}})
	return user, nil
}

// RemoveUserDB drops the personalDBs entry keyed by physicalName (spec.md
// §4.5); an unknown physicalName is a no-op and emits no event. The
// physical database itself is destroyed only when the caller asks for
// it and the database's type matches: deletePrivate gates private
// databases, deleteShared gates shared ones — a shared database other
// users still reference is never torn down as a side effect of one
// user's removal.
func (s *Service) RemoveUserDB(ctx context.Context, userID, physicalName string, deletePrivate, deleteShared bool) (*User, error) {
	var removedType dbauth.DBType
	var found bool
	user, err := s.retryMutate(ctx, userID, func(u *User) (bool, error) {
		db, ok := u.PersonalDBs[physicalName]
		if !ok {
			return false, nil
		}
		found = true
		removedType = db.Type

		destroy := (db.Type == dbauth.Private && deletePrivate) || (db.Type == dbauth.Shared && deleteShared)
		if destroy {
			if err := s.dbAuth.RemoveDB(ctx, physicalName); err != nil {
				return false, err
			}
		}
		delete(u.PersonalDBs, physicalName)
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if found {
		s.emit.Emit(events.Event{Name: events.UserDBRemoved, UserID: userID, Timestamp: time.Now(), Data: map[string]any{"name": physicalName, "type": string(removedType)}})
	}
	return user, nil
}
