package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/valcriss/sovrane/internal/core/domain"
	"github.com/valcriss/sovrane/internal/core/port"
	"github.com/valcriss/sovrane/internal/repository"
)

// UserRepository implements port.UserRepository using PostgreSQL. Loading a
// user hydrates its roles and direct permission grants so the permission
// engine can evaluate without further round trips.
type UserRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewUserRepository constructs a repository backed by any executor that
// satisfies pgExecutor.
func NewUserRepository(exec pgExecutor) *UserRepository {
	return &UserRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var userColumns = []string{
	"id",
	"email",
	"first_name",
	"last_name",
	"password_hash",
	"password_algo",
	"status",
	"mfa_enabled",
	"mfa_type",
	"mfa_secret",
	"mfa_recovery_codes",
	"password_changed_at",
	"last_login",
	"last_activity",
	"created_at",
}

// FindByID retrieves a user by identifier, including RBAC grants.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, squirrel.Eq{"id": id})
}

// FindByEmail retrieves a user by email, including RBAC grants.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, squirrel.Eq{"email": email})
}

func (r *UserRepository) findOne(ctx context.Context, predicate squirrel.Eq) (*domain.User, error) {
	stmt, args, err := r.builder.Select(userColumns...).
		From("sovrane.users").
		Where(predicate).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	var (
		user              domain.User
		mfaType           sql.NullString
		mfaSecret         sql.NullString
		recoveryCodes     []string
		passwordChangedAt sql.NullTime
		lastLogin         sql.NullTime
		lastActivity      sql.NullTime
	)

	row := r.exec.QueryRow(ctx, stmt, args...)
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.PasswordHash,
		&user.PasswordAlgo,
		&user.Status,
		&user.MFAEnabled,
		&mfaType,
		&mfaSecret,
		&recoveryCodes,
		&passwordChangedAt,
		&lastLogin,
		&lastActivity,
		&user.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	if mfaType.Valid {
		kind := domain.MFAType(mfaType.String)
		user.MFAType = &kind
	}
	if mfaSecret.Valid {
		value := mfaSecret.String
		user.MFASecret = &value
	}
	user.MFARecoveryCodes = recoveryCodes
	if passwordChangedAt.Valid {
		t := passwordChangedAt.Time
		user.PasswordChangedAt = &t
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLogin = &t
	}
	if lastActivity.Valid {
		t := lastActivity.Time
		user.LastActivity = &t
	}

	roles, err := r.loadRoles(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.Roles = roles

	grants, err := r.loadDirectGrants(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.Permissions = grants

	return &user, nil
}

// Update persists mutations made by use cases: status, MFA state, and
// activity timestamps.
func (r *UserRepository) Update(ctx context.Context, user domain.User) error {
	var mfaType any
	if user.MFAType != nil {
		mfaType = string(*user.MFAType)
	}

	var mfaSecret any
	if user.MFASecret != nil {
		mfaSecret = *user.MFASecret
	}

	stmt, args, err := r.builder.Update("sovrane.users").
		Set("password_hash", user.PasswordHash).
		Set("password_algo", user.PasswordAlgo).
		Set("status", user.Status).
		Set("mfa_enabled", user.MFAEnabled).
		Set("mfa_type", mfaType).
		Set("mfa_secret", mfaSecret).
		Set("mfa_recovery_codes", user.MFARecoveryCodes).
		Set("password_changed_at", user.PasswordChangedAt).
		Set("last_login", user.LastLogin).
		Set("last_activity", user.LastActivity).
		Where(squirrel.Eq{"id": user.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update user sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Delete removes the user row. Role assignments and grants cascade in the
// schema.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Delete("sovrane.users").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete user sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *UserRepository) loadRoles(ctx context.Context, userID string) ([]domain.Role, error) {
	stmt, args, err := r.builder.Select(
		"r.id",
		"r.label",
		"p.id",
		"p.key",
		"p.description",
		"rp.scope_id",
	).
		From("sovrane.roles r").
		Join("sovrane.user_roles ur ON ur.role_id = r.id").
		LeftJoin("sovrane.role_permissions rp ON rp.role_id = r.id").
		LeftJoin("sovrane.permissions p ON p.id = rp.permission_id").
		Where(squirrel.Eq{"ur.user_id": userID}).
		OrderBy("r.label").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select roles sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("select roles: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*domain.Role)
	var order []string

	for rows.Next() {
		var (
			roleID       string
			roleLabel    string
			permID       sql.NullString
			permKey      sql.NullString
			permDesc     sql.NullString
			grantScopeID sql.NullString
		)

		if err := rows.Scan(&roleID, &roleLabel, &permID, &permKey, &permDesc, &grantScopeID); err != nil {
			return nil, fmt.Errorf("scan role row: %w", err)
		}

		role, ok := byID[roleID]
		if !ok {
			role = &domain.Role{ID: roleID, Label: roleLabel}
			byID[roleID] = role
			order = append(order, roleID)
		}

		if permID.Valid {
			grant := domain.PermissionGrant{
				Permission: domain.Permission{ID: permID.String, Key: permKey.String},
			}
			if permDesc.Valid {
				desc := permDesc.String
				grant.Permission.Description = &desc
			}
			if grantScopeID.Valid {
				scope := grantScopeID.String
				grant.ScopeID = &scope
			}
			role.Grants = append(role.Grants, grant)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate role rows: %w", err)
	}

	roles := make([]domain.Role, 0, len(order))
	for _, id := range order {
		roles = append(roles, *byID[id])
	}

	return roles, nil
}

func (r *UserRepository) loadDirectGrants(ctx context.Context, userID string) ([]domain.PermissionGrant, error) {
	stmt, args, err := r.builder.Select(
		"p.id",
		"p.key",
		"p.description",
		"up.scope_id",
	).
		From("sovrane.user_permissions up").
		Join("sovrane.permissions p ON p.id = up.permission_id").
		Where(squirrel.Eq{"up.user_id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select direct grants sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("select direct grants: %w", err)
	}
	defer rows.Close()

	var grants []domain.PermissionGrant
	for rows.Next() {
		var (
			grant   domain.PermissionGrant
			desc    sql.NullString
			scopeID sql.NullString
		)

		if err := rows.Scan(&grant.Permission.ID, &grant.Permission.Key, &desc, &scopeID); err != nil {
			return nil, fmt.Errorf("scan direct grant: %w", err)
		}

		if desc.Valid {
			value := desc.String
			grant.Permission.Description = &value
		}
		if scopeID.Valid {
			value := scopeID.String
			grant.ScopeID = &value
		}

		grants = append(grants, grant)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate direct grants: %w", err)
	}

	return grants, nil
}

var _ port.UserRepository = (*UserRepository)(nil)
