package models

import "time"

type ClientProfile struct {
	ID                 int64     `json:"id"`
	UserID             int64     `json:"user_id"`
	Name               *string   `json:"name"`
	Surname            *string   `json:"surname"`
	AvatarURL          *string   `json:"avatar_url"`
	ShowContact        bool      `json:"show_contact"`
	PreferredCategory  *string   `json:"preferred_category"`
	OnboardingComplete bool      `json:"onboarding_complete"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type ProviderProfile struct {
	ID                 int64     `json:"id"`
	UserID             int64     `json:"user_id"`
	Name               *string   `json:"name"`
	Surname            *string   `json:"surname"`
	AvatarURL          *string   `json:"avatar_url"`
	ShowContact        bool      `json:"show_contact"`
	Category           *string   `json:"category"`
	Services           *[]string `json:"services"`
	Bio                *string   `json:"bio"`
	OnboardingComplete bool      `json:"onboarding_complete"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// ParticipantCard is the identity shown for the other party of a conversation.
type ParticipantCard struct {
	ProfileID int64   `json:"profile_id"`
	UserID    int64   `json:"user_id"`
	Role      Role    `json:"role"`
	Name      string  `json:"name"`
	Surname   string  `json:"surname"`
	AvatarURL *string `json:"avatar_url,omitempty"`
	Category  *string `json:"category,omitempty"`
}

func (p *ClientProfile) Card() ParticipantCard {
	return ParticipantCard{
		ProfileID: p.ID,
		UserID:    p.UserID,
		Role:      RoleClient,
		Name:      deref(p.Name),
		Surname:   deref(p.Surname),
		AvatarURL: p.AvatarURL,
		Category:  p.PreferredCategory,
	}
}

func (p *ProviderProfile) Card() ParticipantCard {
	return ParticipantCard{
		ProfileID: p.ID,
		UserID:    p.UserID,
		Role:      RoleProvider,
		Name:      deref(p.Name),
		Surname:   deref(p.Surname),
		AvatarURL: p.AvatarURL,
		Category:  p.Category,
	}
}

// AccountProfiles lists the profile ids an account holds; zero means absent.
type AccountProfiles struct {
	UserID            int64 `json:"user_id"`
	ClientProfileID   int64 `json:"client_profile_id,omitempty"`
	ProviderProfileID int64 `json:"provider_profile_id,omitempty"`
}

func (a AccountProfiles) ProfileFor(role Role) (int64, bool) {
	switch role {
	case RoleClient:
		return a.ClientProfileID, a.ClientProfileID > 0
	case RoleProvider:
		return a.ProviderProfileID, a.ProviderProfileID > 0
	default:
		return 0, false
	}
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
