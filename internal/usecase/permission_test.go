package usecase

import (
	"errors"
	"testing"

	"github.com/valcriss/sovrane/internal/core/domain"
)

func grantFor(key string, scopeID *string) domain.PermissionGrant {
	return domain.PermissionGrant{
		Permission: domain.Permission{ID: key, Key: key},
		ScopeID:    scopeID,
	}
}

func TestPermissionEngineCheck(t *testing.T) {
	scopeA := "site-a"
	scopeB := "site-b"

	tests := []struct {
		name    string
		user    *domain.User
		key     string
		scope   *string
		wantErr error
	}{
		{
			name:    "nil user denied",
			user:    nil,
			key:     PermissionManageMFA,
			wantErr: ErrPermissionDenied,
		},
		{
			name:    "no grants denied",
			user:    &domain.User{ID: "u1"},
			key:     PermissionManageMFA,
			wantErr: ErrPermissionDenied,
		},
		{
			name: "role grant matches key",
			user: &domain.User{
				ID: "u1",
				Roles: []domain.Role{{
					ID:     "r1",
					Grants: []domain.PermissionGrant{grantFor(PermissionManageMFA, nil)},
				}},
			},
			key: PermissionManageMFA,
		},
		{
			name: "direct grant matches key",
			user: &domain.User{
				ID:          "u1",
				Permissions: []domain.PermissionGrant{grantFor(PermissionRemoveUser, nil)},
			},
			key: PermissionRemoveUser,
		},
		{
			name: "root grant short-circuits",
			user: &domain.User{
				ID:          "u1",
				Permissions: []domain.PermissionGrant{grantFor(domain.PermissionRootKey, nil)},
			},
			key:   PermissionRemoveUser,
			scope: &scopeA,
		},
		{
			name: "unscoped grant allows any scope",
			user: &domain.User{
				ID:          "u1",
				Permissions: []domain.PermissionGrant{grantFor(PermissionManageMFA, nil)},
			},
			key:   PermissionManageMFA,
			scope: &scopeA,
		},
		{
			name: "scoped grant allows matching scope",
			user: &domain.User{
				ID:          "u1",
				Permissions: []domain.PermissionGrant{grantFor(PermissionManageMFA, &scopeA)},
			},
			key:   PermissionManageMFA,
			scope: &scopeA,
		},
		{
			name: "scoped grant denies other scope",
			user: &domain.User{
				ID:          "u1",
				Permissions: []domain.PermissionGrant{grantFor(PermissionManageMFA, &scopeA)},
			},
			key:     PermissionManageMFA,
			scope:   &scopeB,
			wantErr: ErrPermissionDenied,
		},
		{
			name: "different key denied",
			user: &domain.User{
				ID:          "u1",
				Permissions: []domain.PermissionGrant{grantFor(PermissionManageMFA, nil)},
			},
			key:     PermissionRemoveUser,
			wantErr: ErrPermissionDenied,
		},
		{
			name: "scoped grant denies unscoped request",
			user: &domain.User{
				ID:          "u1",
				Permissions: []domain.PermissionGrant{grantFor(PermissionManageMFA, &scopeA)},
			},
			key:     PermissionManageMFA,
			wantErr: ErrPermissionDenied,
		},
	}

	engine := NewPermissionEngine(nil)

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := engine.Check(tc.user, tc.key, tc.scope)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Check() = %v, want %v", err, tc.wantErr)
			}
		})
	}
}
