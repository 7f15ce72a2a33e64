package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/saeid-a/ToolConnectBack/internal/models"
)

type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (email, password_hash, account_type)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`
	return r.db.QueryRow(ctx, query, user.Email, user.PasswordHash, user.AccountType).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, email, password_hash, account_type, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	var user models.User
	err := r.db.QueryRow(ctx, query, email).
		Scan(&user.ID, &user.Email, &user.PasswordHash, &user.AccountType, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `
		SELECT id, email, password_hash, account_type, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	var user models.User
	err := r.db.QueryRow(ctx, query, id).
		Scan(&user.ID, &user.Email, &user.PasswordHash, &user.AccountType, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetAccountProfiles resolves which profiles an account holds. Missing profiles come back as zero ids.
func (r *UserRepository) GetAccountProfiles(ctx context.Context, userID int64) (models.AccountProfiles, error) {
	query := `
		SELECT u.id, COALESCE(cp.id, 0), COALESCE(pp.id, 0)
		FROM users u
		LEFT JOIN client_profiles cp ON cp.user_id = u.id
		LEFT JOIN provider_profiles pp ON pp.user_id = u.id
		WHERE u.id = $1
	`
	var profiles models.AccountProfiles
	err := r.db.QueryRow(ctx, query, userID).
		Scan(&profiles.UserID, &profiles.ClientProfileID, &profiles.ProviderProfileID)
	if err != nil {
		return models.AccountProfiles{}, err
	}
	return profiles, nil
}
