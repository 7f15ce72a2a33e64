package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/ToolConnectBack/internal/models"
)

const clientProfileColumns = `
	id, user_id, name, surname, avatar_url, show_contact, preferred_category,
	onboarding_complete, created_at, updated_at
`

type ClientProfileRepository struct {
	db DBTX
}

func NewClientProfileRepository(db DBTX) *ClientProfileRepository {
	return &ClientProfileRepository{db: db}
}

func (r *ClientProfileRepository) CreateEmpty(ctx context.Context, userID int64) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO client_profiles (user_id) VALUES ($1) RETURNING id`, userID).Scan(&id)
	return id, err
}

func (r *ClientProfileRepository) GetByUserID(ctx context.Context, userID int64) (*models.ClientProfile, error) {
	return scanClientProfile(r.db.QueryRow(ctx,
		`SELECT `+clientProfileColumns+` FROM client_profiles WHERE user_id = $1`, userID))
}

func (r *ClientProfileRepository) GetByID(ctx context.Context, profileID int64) (*models.ClientProfile, error) {
	return scanClientProfile(r.db.QueryRow(ctx,
		`SELECT `+clientProfileColumns+` FROM client_profiles WHERE id = $1`, profileID))
}

func (r *ClientProfileRepository) CompleteOnboarding(ctx context.Context, userID int64, req ClientOnboardingInput) (*models.ClientProfile, error) {
	query := `
		INSERT INTO client_profiles (user_id, name, surname, show_contact, preferred_category, onboarding_complete)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		ON CONFLICT (user_id) DO UPDATE
		SET name = EXCLUDED.name,
			surname = EXCLUDED.surname,
			show_contact = EXCLUDED.show_contact,
			preferred_category = EXCLUDED.preferred_category,
			onboarding_complete = TRUE,
			updated_at = NOW()
		RETURNING ` + clientProfileColumns
	return scanClientProfile(r.db.QueryRow(ctx, query,
		userID,
		req.Name,
		req.Surname,
		req.ShowContact,
		req.PreferredCategory,
	))
}

func (r *ClientProfileRepository) UpdatePartial(ctx context.Context, userID int64, req UpdateClientProfileInput) (*models.ClientProfile, error) {
	query := `
		UPDATE client_profiles
		SET name = COALESCE($1, name),
			surname = COALESCE($2, surname),
			avatar_url = COALESCE($3, avatar_url),
			show_contact = COALESCE($4, show_contact),
			preferred_category = COALESCE($5, preferred_category),
			updated_at = NOW()
		WHERE user_id = $6
		RETURNING ` + clientProfileColumns
	return scanClientProfile(r.db.QueryRow(ctx, query,
		req.Name,
		req.Surname,
		req.AvatarURL,
		req.ShowContact,
		req.PreferredCategory,
		userID,
	))
}

func scanClientProfile(row pgx.Row) (*models.ClientProfile, error) {
	var profile models.ClientProfile
	err := row.Scan(
		&profile.ID,
		&profile.UserID,
		&profile.Name,
		&profile.Surname,
		&profile.AvatarURL,
		&profile.ShowContact,
		&profile.PreferredCategory,
		&profile.OnboardingComplete,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

type ClientOnboardingInput struct {
	Name              string
	Surname           string
	ShowContact       bool
	PreferredCategory string
}

type UpdateClientProfileInput struct {
	Name              *string
	Surname           *string
	AvatarURL         *string
	ShowContact       *bool
	PreferredCategory *string
}
