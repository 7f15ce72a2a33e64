package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/ToolConnectBack/internal/models"
)

const providerProfileColumns = `
	id, user_id, name, surname, avatar_url, show_contact, category, services, bio,
	onboarding_complete, created_at, updated_at
`

type ProviderProfileRepository struct {
	db DBTX
}

type ProviderListFilter struct {
	Category string
	Offset   int
	Limit    int
}

func NewProviderProfileRepository(db DBTX) *ProviderProfileRepository {
	return &ProviderProfileRepository{db: db}
}

func (r *ProviderProfileRepository) CreateEmpty(ctx context.Context, userID int64) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO provider_profiles (user_id) VALUES ($1) RETURNING id`, userID).Scan(&id)
	return id, err
}

func (r *ProviderProfileRepository) GetByUserID(ctx context.Context, userID int64) (*models.ProviderProfile, error) {
	return scanProviderProfile(r.db.QueryRow(ctx,
		`SELECT `+providerProfileColumns+` FROM provider_profiles WHERE user_id = $1`, userID))
}

func (r *ProviderProfileRepository) GetByID(ctx context.Context, profileID int64) (*models.ProviderProfile, error) {
	return scanProviderProfile(r.db.QueryRow(ctx,
		`SELECT `+providerProfileColumns+` FROM provider_profiles WHERE id = $1`, profileID))
}

// List returns onboarded providers, newest first. There is no relevance ordering.
func (r *ProviderProfileRepository) List(ctx context.Context, filter ProviderListFilter) ([]models.ProviderProfile, int, error) {
	conditions := []string{"onboarding_complete = TRUE"}
	args := make([]any, 0, 3)
	if category := strings.TrimSpace(filter.Category); category != "" {
		args = append(args, category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	where := strings.Join(conditions, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM provider_profiles WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`
		SELECT %s
		FROM provider_profiles
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, providerProfileColumns, where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	profiles := make([]models.ProviderProfile, 0)
	for rows.Next() {
		profile, err := scanProviderProfile(rows)
		if err != nil {
			return nil, 0, err
		}
		profiles = append(profiles, *profile)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return profiles, total, nil
}

func (r *ProviderProfileRepository) CompleteOnboarding(ctx context.Context, userID int64, req ProviderOnboardingInput) (*models.ProviderProfile, error) {
	query := `
		INSERT INTO provider_profiles (user_id, name, surname, show_contact, category, services, bio, onboarding_complete)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
		ON CONFLICT (user_id) DO UPDATE
		SET name = EXCLUDED.name,
			surname = EXCLUDED.surname,
			show_contact = EXCLUDED.show_contact,
			category = EXCLUDED.category,
			services = EXCLUDED.services,
			bio = EXCLUDED.bio,
			onboarding_complete = TRUE,
			updated_at = NOW()
		RETURNING ` + providerProfileColumns
	return scanProviderProfile(r.db.QueryRow(ctx, query,
		userID,
		req.Name,
		req.Surname,
		req.ShowContact,
		req.Category,
		req.Services,
		req.Bio,
	))
}

func (r *ProviderProfileRepository) UpdatePartial(ctx context.Context, userID int64, req UpdateProviderProfileInput) (*models.ProviderProfile, error) {
	query := `
		UPDATE provider_profiles
		SET name = COALESCE($1, name),
			surname = COALESCE($2, surname),
			avatar_url = COALESCE($3, avatar_url),
			show_contact = COALESCE($4, show_contact),
			category = COALESCE($5, category),
			services = COALESCE($6, services),
			bio = COALESCE($7, bio),
			updated_at = NOW()
		WHERE user_id = $8
		RETURNING ` + providerProfileColumns
	return scanProviderProfile(r.db.QueryRow(ctx, query,
		req.Name,
		req.Surname,
		req.AvatarURL,
		req.ShowContact,
		req.Category,
		req.Services,
		req.Bio,
		userID,
	))
}

func scanProviderProfile(row pgx.Row) (*models.ProviderProfile, error) {
	var profile models.ProviderProfile
	err := row.Scan(
		&profile.ID,
		&profile.UserID,
		&profile.Name,
		&profile.Surname,
		&profile.AvatarURL,
		&profile.ShowContact,
		&profile.Category,
		&profile.Services,
		&profile.Bio,
		&profile.OnboardingComplete,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

type ProviderOnboardingInput struct {
	Name        string
	Surname     string
	ShowContact bool
	Category    string
	Services    []string
	Bio         string
}

type UpdateProviderProfileInput struct {
	Name        *string
	Surname     *string
	AvatarURL   *string
	ShowContact *bool
	Category    *string
	Services    *[]string
	Bio         *string
}
