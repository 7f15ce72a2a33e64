package services

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/ToolConnectBack/internal/models"
	"github.com/saeid-a/ToolConnectBack/internal/repository"
)

type ClientProfileStore interface {
	GetByUserID(ctx context.Context, userID int64) (*models.ClientProfile, error)
	GetByID(ctx context.Context, profileID int64) (*models.ClientProfile, error)
	CompleteOnboarding(ctx context.Context, userID int64, req repository.ClientOnboardingInput) (*models.ClientProfile, error)
	UpdatePartial(ctx context.Context, userID int64, req repository.UpdateClientProfileInput) (*models.ClientProfile, error)
}

type ProviderProfileStore interface {
	GetByUserID(ctx context.Context, userID int64) (*models.ProviderProfile, error)
	GetByID(ctx context.Context, profileID int64) (*models.ProviderProfile, error)
	List(ctx context.Context, filter repository.ProviderListFilter) ([]models.ProviderProfile, int, error)
	CompleteOnboarding(ctx context.Context, userID int64, req repository.ProviderOnboardingInput) (*models.ProviderProfile, error)
	UpdatePartial(ctx context.Context, userID int64, req repository.UpdateProviderProfileInput) (*models.ProviderProfile, error)
}

type accountReader interface {
	GetAccountProfiles(ctx context.Context, userID int64) (models.AccountProfiles, error)
}

type ProfileService struct {
	accounts     accountReader
	clientRepo   ClientProfileStore
	providerRepo ProviderProfileStore
}

func NewProfileService(accounts accountReader, clientRepo ClientProfileStore, providerRepo ProviderProfileStore) *ProfileService {
	return &ProfileService{
		accounts:     accounts,
		clientRepo:   clientRepo,
		providerRepo: providerRepo,
	}
}

// Account reports which profiles the account holds.
func (s *ProfileService) Account(ctx context.Context, userID int64) (models.AccountProfiles, error) {
	if userID <= 0 {
		return models.AccountProfiles{}, ErrInvalidInput
	}
	account, err := s.accounts.GetAccountProfiles(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.AccountProfiles{}, ErrProfileNotFound
		}
		return models.AccountProfiles{}, err
	}
	return account, nil
}

// Card loads the public identity of a profile on the given side.
func (s *ProfileService) Card(ctx context.Context, role models.Role, profileID int64) (*models.ParticipantCard, error) {
	if profileID <= 0 {
		return nil, ErrInvalidInput
	}

	var card models.ParticipantCard
	switch role {
	case models.RoleClient:
		profile, err := s.clientRepo.GetByID(ctx, profileID)
		if err != nil {
			return nil, notFoundAs(err, ErrProfileNotFound)
		}
		card = profile.Card()
	case models.RoleProvider:
		profile, err := s.providerRepo.GetByID(ctx, profileID)
		if err != nil {
			return nil, notFoundAs(err, ErrProfileNotFound)
		}
		card = profile.Card()
	default:
		return nil, ErrInvalidInput
	}
	return &card, nil
}

func (s *ProfileService) ClientProfile(ctx context.Context, profileID int64) (*models.ClientProfile, error) {
	profile, err := s.clientRepo.GetByID(ctx, profileID)
	if err != nil {
		return nil, notFoundAs(err, ErrProfileNotFound)
	}
	return profile, nil
}

func (s *ProfileService) ProviderProfile(ctx context.Context, profileID int64) (*models.ProviderProfile, error) {
	profile, err := s.providerRepo.GetByID(ctx, profileID)
	if err != nil {
		return nil, notFoundAs(err, ErrProfileNotFound)
	}
	return profile, nil
}

// OwnProfiles returns the account's profiles; a profile the account does not hold comes back nil.
func (s *ProfileService) OwnProfiles(ctx context.Context, userID int64) (*models.ClientProfile, *models.ProviderProfile, error) {
	client, err := s.clientRepo.GetByUserID(ctx, userID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, err
	}
	provider, err := s.providerRepo.GetByUserID(ctx, userID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, err
	}
	return client, provider, nil
}

func (s *ProfileService) CompleteClientOnboarding(ctx context.Context, userID int64, req repository.ClientOnboardingInput) (*models.ClientProfile, error) {
	return s.clientRepo.CompleteOnboarding(ctx, userID, req)
}

func (s *ProfileService) CompleteProviderOnboarding(ctx context.Context, userID int64, req repository.ProviderOnboardingInput) (*models.ProviderProfile, error) {
	return s.providerRepo.CompleteOnboarding(ctx, userID, req)
}

func (s *ProfileService) UpdateClientProfile(ctx context.Context, userID int64, req repository.UpdateClientProfileInput) (*models.ClientProfile, error) {
	profile, err := s.clientRepo.UpdatePartial(ctx, userID, req)
	if err != nil {
		return nil, notFoundAs(err, ErrRoleUnavailable)
	}
	return profile, nil
}

func (s *ProfileService) UpdateProviderProfile(ctx context.Context, userID int64, req repository.UpdateProviderProfileInput) (*models.ProviderProfile, error) {
	profile, err := s.providerRepo.UpdatePartial(ctx, userID, req)
	if err != nil {
		return nil, notFoundAs(err, ErrRoleUnavailable)
	}
	return profile, nil
}

func (s *ProfileService) ListProviders(ctx context.Context, category string, page, limit int) ([]models.ProviderProfile, int, error) {
	if page <= 0 || limit <= 0 {
		return nil, 0, ErrInvalidInput
	}
	return s.providerRepo.List(ctx, repository.ProviderListFilter{
		Category: category,
		Offset:   (page - 1) * limit,
		Limit:    limit,
	})
}

func notFoundAs(err error, target error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return target
	}
	return err
}
