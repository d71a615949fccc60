package repository

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront/internal/models"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrEmailTaken      = errors.New("email already registered")
)

type AccountRepository interface {
	Create(ctx context.Context, account models.Account) error
	FindByEmail(ctx context.Context, email string) (models.Account, error)
	FindByGoogleID(ctx context.Context, googleID string) (models.Account, error)
	GetByID(ctx context.Context, id string) (models.Account, error)
	LinkGoogle(ctx context.Context, id, googleID string, pictureURL *string) error
	List(ctx context.Context, limit, offset int) ([]models.Account, error)
}

type PostgresAccountRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresAccountRepository(pool *pgxpool.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{pool: pool}
}

const accountColumns = `id, email, password_hash, name, role, status, google_id, picture_url, created_at, updated_at`

func (r *PostgresAccountRepository) Create(ctx context.Context, account models.Account) error {
	const query = `
		INSERT INTO accounts (
			id, email, password_hash, name, role, status, google_id, picture_url, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW()
		)
	`

	_, err := r.pool.Exec(ctx, query,
		account.ID,
		account.Email,
		account.PasswordHash,
		account.Name,
		account.Role,
		account.Status,
		account.GoogleID,
		account.PictureURL,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrEmailTaken
	}
	return err
}

func (r *PostgresAccountRepository) FindByEmail(ctx context.Context, email string) (models.Account, error) {
	return r.findOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
}

func (r *PostgresAccountRepository) FindByGoogleID(ctx context.Context, googleID string) (models.Account, error) {
	return r.findOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE google_id = $1`, googleID)
}

func (r *PostgresAccountRepository) GetByID(ctx context.Context, id string) (models.Account, error) {
	return r.findOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
}

func (r *PostgresAccountRepository) LinkGoogle(ctx context.Context, id, googleID string, pictureURL *string) error {
	const query = `
		UPDATE accounts SET google_id = $2, picture_url = COALESCE($3, picture_url), updated_at = NOW() WHERE id = $1
	`
	cmd, err := r.pool.Exec(ctx, query, id, googleID, pictureURL)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *PostgresAccountRepository) List(ctx context.Context, limit, offset int) ([]models.Account, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

func (r *PostgresAccountRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PostgresAccountRepository) findOne(ctx context.Context, query string, arg any) (models.Account, error) {
	account, err := scanAccount(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Account{}, ErrAccountNotFound
		}
		return models.Account{}, err
	}
	return account, nil
}

func scanAccount(row pgx.Row) (models.Account, error) {
	var account models.Account
	err := row.Scan(
		&account.ID,
		&account.Email,
		&account.PasswordHash,
		&account.Name,
		&account.Role,
		&account.Status,
		&account.GoogleID,
		&account.PictureURL,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	return account, err
}

// MemoryAccountRepository backs the dev server when no database is
// configured. Contents are lost on exit.
type MemoryAccountRepository struct {
	mu       sync.RWMutex
	accounts []models.Account
}

func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{}
}

func (r *MemoryAccountRepository) Create(_ context.Context, account models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.accounts {
		if strings.EqualFold(existing.Email, account.Email) {
			return ErrEmailTaken
		}
	}
	r.accounts = append(r.accounts, account)
	return nil
}

func (r *MemoryAccountRepository) FindByEmail(_ context.Context, email string) (models.Account, error) {
	return r.find(func(a models.Account) bool { return strings.EqualFold(a.Email, email) })
}

func (r *MemoryAccountRepository) FindByGoogleID(_ context.Context, googleID string) (models.Account, error) {
	return r.find(func(a models.Account) bool { return a.GoogleID != nil && *a.GoogleID == googleID })
}

func (r *MemoryAccountRepository) GetByID(_ context.Context, id string) (models.Account, error) {
	return r.find(func(a models.Account) bool { return a.ID == id })
}

func (r *MemoryAccountRepository) LinkGoogle(_ context.Context, id, googleID string, pictureURL *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.accounts {
		if r.accounts[i].ID == id {
			r.accounts[i].GoogleID = &googleID
			if pictureURL != nil {
				r.accounts[i].PictureURL = pictureURL
			}
			return nil
		}
	}
	return ErrAccountNotFound
}

// List returns newest accounts first.
func (r *MemoryAccountRepository) List(_ context.Context, limit, offset int) ([]models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Account
	for i := len(r.accounts) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.accounts[i])
	}
	return out, nil
}

func (r *MemoryAccountRepository) find(match func(models.Account) bool) (models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.accounts {
		if match(a) {
			return a, nil
		}
	}
	return models.Account{}, ErrAccountNotFound
}
