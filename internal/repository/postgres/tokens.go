package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/valcriss/sovrane/internal/core/domain"
	"github.com/valcriss/sovrane/internal/core/port"
	"github.com/valcriss/sovrane/internal/repository"
)

// RefreshTokenRepository implements port.RefreshTokenRepository using
// PostgreSQL. MarkUsed is a conditional update so a token transitions from
// active to used exactly once, even under concurrent rotation attempts.
type RefreshTokenRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewRefreshTokenRepository constructs a repository backed by any executor
// that satisfies pgExecutor.
func NewRefreshTokenRepository(exec pgExecutor) *RefreshTokenRepository {
	return &RefreshTokenRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var refreshTokenColumns = []string{
	"id",
	"user_id",
	"token_hash",
	"ip",
	"user_agent",
	"created_at",
	"expires_at",
	"used_at",
	"revoked_at",
	"replaced_by",
}

// Save inserts a new refresh token record.
func (r *RefreshTokenRepository) Save(ctx context.Context, token domain.RefreshToken) error {
	stmt, args, err := r.builder.Insert("sovrane.refresh_tokens").
		Columns(refreshTokenColumns...).
		Values(
			token.ID,
			token.UserID,
			token.TokenHash,
			token.IP,
			token.UserAgent,
			token.CreatedAt,
			token.ExpiresAt,
			token.UsedAt,
			token.RevokedAt,
			token.ReplacedBy,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert refresh token sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}

	return nil
}

// FindActive returns every record that is neither used, revoked, nor
// expired at the supplied moment.
func (r *RefreshTokenRepository) FindActive(ctx context.Context, at time.Time) ([]domain.RefreshToken, error) {
	return r.findActive(ctx, at, squirrel.And{})
}

// FindActiveByUser returns the active records owned by the user.
func (r *RefreshTokenRepository) FindActiveByUser(ctx context.Context, userID string, at time.Time) ([]domain.RefreshToken, error) {
	return r.findActive(ctx, at, squirrel.And{squirrel.Eq{"user_id": userID}})
}

func (r *RefreshTokenRepository) findActive(ctx context.Context, at time.Time, extra squirrel.And) ([]domain.RefreshToken, error) {
	query := r.builder.Select(refreshTokenColumns...).
		From("sovrane.refresh_tokens").
		Where("used_at IS NULL").
		Where("revoked_at IS NULL").
		Where(squirrel.Gt{"expires_at": at.UTC()}).
		OrderBy("created_at DESC")
	if len(extra) > 0 {
		query = query.Where(extra)
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select refresh tokens sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("select refresh tokens: %w", err)
	}
	defer rows.Close()

	var tokens []domain.RefreshToken
	for rows.Next() {
		token, err := scanRefreshToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, *token)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate refresh tokens: %w", err)
	}

	return tokens, nil
}

// FindTerminated returns used or revoked records still within their
// validity window at the supplied moment.
func (r *RefreshTokenRepository) FindTerminated(ctx context.Context, at time.Time) ([]domain.RefreshToken, error) {
	stmt, args, err := r.builder.Select(refreshTokenColumns...).
		From("sovrane.refresh_tokens").
		Where(squirrel.Or{
			squirrel.Expr("used_at IS NOT NULL"),
			squirrel.Expr("revoked_at IS NOT NULL"),
		}).
		Where(squirrel.Gt{"expires_at": at.UTC()}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select terminated refresh tokens sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("select terminated refresh tokens: %w", err)
	}
	defer rows.Close()

	var tokens []domain.RefreshToken
	for rows.Next() {
		token, err := scanRefreshToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, *token)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate terminated refresh tokens: %w", err)
	}

	return tokens, nil
}

// MarkUsed transitions the record from active to used, recording the
// successor identifier. The WHERE clause only matches while the record is
// still active; zero rows affected means a concurrent rotation or
// revocation won, reported as repository.ErrConflict.
func (r *RefreshTokenRepository) MarkUsed(ctx context.Context, tokenID string, usedAt time.Time, replacedBy string) error {
	update := r.builder.Update("sovrane.refresh_tokens").
		Set("used_at", usedAt.UTC()).
		Where(squirrel.Eq{"id": tokenID}).
		Where("used_at IS NULL").
		Where("revoked_at IS NULL")
	if replacedBy != "" {
		update = update.Set("replaced_by", replacedBy)
	}

	stmt, args, err := update.ToSql()
	if err != nil {
		return fmt.Errorf("build mark refresh token used sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("mark refresh token used: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrConflict
	}

	return nil
}

// Revoke marks the record as revoked. Terminal; already revoked records
// are left untouched.
func (r *RefreshTokenRepository) Revoke(ctx context.Context, tokenID string, revokedAt time.Time, reason string) error {
	stmt, args, err := r.builder.Update("sovrane.refresh_tokens").
		Set("revoked_at", revokedAt.UTC()).
		Set("revoke_reason", nullableString(reason)).
		Where(squirrel.Eq{"id": tokenID}).
		Where("revoked_at IS NULL").
		ToSql()
	if err != nil {
		return fmt.Errorf("build revoke refresh token sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// RevokeAllForUser revokes every non-revoked record owned by the user and
// returns how many records changed state.
func (r *RefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID string, revokedAt time.Time, reason string) (int, error) {
	stmt, args, err := r.builder.Update("sovrane.refresh_tokens").
		Set("revoked_at", revokedAt.UTC()).
		Set("revoke_reason", nullableString(reason)).
		Where(squirrel.Eq{"user_id": userID}).
		Where("revoked_at IS NULL").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build revoke refresh tokens sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("revoke refresh tokens for user: %w", err)
	}

	return int(ct.RowsAffected()), nil
}

func scanRefreshToken(row pgx.Row) (*domain.RefreshToken, error) {
	var (
		token      domain.RefreshToken
		ip         sql.NullString
		userAgent  sql.NullString
		usedAt     sql.NullTime
		revokedAt  sql.NullTime
		replacedBy sql.NullString
	)

	if err := row.Scan(
		&token.ID,
		&token.UserID,
		&token.TokenHash,
		&ip,
		&userAgent,
		&token.CreatedAt,
		&token.ExpiresAt,
		&usedAt,
		&revokedAt,
		&replacedBy,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan refresh token: %w", err)
	}

	if ip.Valid {
		value := ip.String
		token.IP = &value
	}
	if userAgent.Valid {
		value := userAgent.String
		token.UserAgent = &value
	}
	if usedAt.Valid {
		t := usedAt.Time
		token.UsedAt = &t
	}
	if revokedAt.Valid {
		t := revokedAt.Time
		token.RevokedAt = &t
	}
	if replacedBy.Valid {
		value := replacedBy.String
		token.ReplacedBy = &value
	}

	return &token, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

var _ port.RefreshTokenRepository = (*RefreshTokenRepository)(nil)

// ResetTokenRepository implements port.ResetTokenRepository using
// PostgreSQL.
type ResetTokenRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewResetTokenRepository constructs a reset token repository.
func NewResetTokenRepository(exec pgExecutor) *ResetTokenRepository {
	return &ResetTokenRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Save inserts a new password reset token record.
func (r *ResetTokenRepository) Save(ctx context.Context, token domain.PasswordResetToken) error {
	stmt, args, err := r.builder.Insert("sovrane.password_reset_tokens").
		Columns("id", "user_id", "token_hash", "created_at", "expires_at", "used_at").
		Values(token.ID, token.UserID, token.TokenHash, token.CreatedAt, token.ExpiresAt, token.UsedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert reset token sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert reset token: %w", err)
	}

	return nil
}

// FindByHash retrieves a reset token by its hashed value.
func (r *ResetTokenRepository) FindByHash(ctx context.Context, hash string) (*domain.PasswordResetToken, error) {
	stmt, args, err := r.builder.Select("id", "user_id", "token_hash", "created_at", "expires_at", "used_at").
		From("sovrane.password_reset_tokens").
		Where(squirrel.Eq{"token_hash": hash}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select reset token sql: %w", err)
	}

	var (
		token  domain.PasswordResetToken
		usedAt sql.NullTime
	)

	row := r.exec.QueryRow(ctx, stmt, args...)
	if err := row.Scan(&token.ID, &token.UserID, &token.TokenHash, &token.CreatedAt, &token.ExpiresAt, &usedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan reset token: %w", err)
	}

	if usedAt.Valid {
		t := usedAt.Time
		token.UsedAt = &t
	}

	return &token, nil
}

// Consume marks the reset token as used, enforcing single use.
func (r *ResetTokenRepository) Consume(ctx context.Context, tokenID string, usedAt time.Time) error {
	stmt, args, err := r.builder.Update("sovrane.password_reset_tokens").
		Set("used_at", usedAt.UTC()).
		Where(squirrel.Eq{"id": tokenID}).
		Where("used_at IS NULL").
		ToSql()
	if err != nil {
		return fmt.Errorf("build consume reset token sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrConflict
	}

	return nil
}

var _ port.ResetTokenRepository = (*ResetTokenRepository)(nil)
