package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/integration-dashboard/internal/apperror"
	"github.com/sakif/integration-dashboard/internal/model"
	"github.com/sakif/integration-dashboard/internal/repository"
)

var _ repository.ExternalAccountRepository = (*AccountStore)(nil)

// AccountStore reads and writes the external_accounts table.
type AccountStore struct {
	conn *sql.DB
}

const accountColumns = `id, user_id, provider, provider_user_id, login, access_token, scopes, created_at, updated_at`

// Link creates or refreshes the (user, provider) link.
//
// Re-linking after a disconnect creates a new row with a new ID; re-linking an
// already linked account keeps the row and replaces the token.
func (s *AccountStore) Link(ctx context.Context, account *model.ExternalAccount) error {
	now := time.Now()
	newID := xid.New().String()

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO external_accounts (`+accountColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, provider) DO UPDATE SET
			provider_user_id = excluded.provider_user_id,
			login            = excluded.login,
			access_token     = excluded.access_token,
			scopes           = excluded.scopes,
			updated_at       = excluded.updated_at`,
		newID,
		account.UserID,
		account.Provider,
		account.ProviderUserID,
		account.Login,
		account.AccessToken,
		account.Scopes,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: linking %s account for user %s: %w", account.Provider, account.UserID, err)
	}

	stored, err := s.Get(ctx, account.UserID, account.Provider)
	if err != nil {
		return fmt.Errorf("sqlite: reading back %s link for user %s: %w", account.Provider, account.UserID, err)
	}
	*account = *stored

	return nil
}

// ListByUser returns every linked account of the user, oldest first.
func (s *AccountStore) ListByUser(ctx context.Context, userID string) ([]model.ExternalAccount, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM external_accounts
		 WHERE user_id = ?
		 ORDER BY created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing accounts for user %s: %w", userID, err)
	}
	defer rows.Close()

	accounts := []model.ExternalAccount{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning account row: %w", err)
		}
		accounts = append(accounts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating accounts: %w", err)
	}

	return accounts, nil
}

// Get returns the user's link for provider, or apperror.ErrNotFound.
func (s *AccountStore) Get(ctx context.Context, userID, provider string) (*model.ExternalAccount, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM external_accounts
		 WHERE user_id = ? AND provider = ?`,
		userID, provider,
	)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("external account", provider)
		}
		return nil, fmt.Errorf("sqlite: getting %s account for user %s: %w", provider, userID, err)
	}
	return a, nil
}

// Unlink deletes the user's link for provider, or returns apperror.ErrNotFound.
func (s *AccountStore) Unlink(ctx context.Context, userID, provider string) error {
	result, err := s.conn.ExecContext(ctx,
		`DELETE FROM external_accounts WHERE user_id = ? AND provider = ?`,
		userID, provider,
	)
	if err != nil {
		return fmt.Errorf("sqlite: unlinking %s account for user %s: %w", provider, userID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("external account", provider)
	}
	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(r rowScanner) (*model.ExternalAccount, error) {
	var a model.ExternalAccount
	err := r.Scan(
		&a.ID,
		&a.UserID,
		&a.Provider,
		&a.ProviderUserID,
		&a.Login,
		&a.AccessToken,
		&a.Scopes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
