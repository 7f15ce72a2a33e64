package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/ToolConnectBack/internal/models"
	"github.com/saeid-a/ToolConnectBack/internal/onboarding"
	"github.com/saeid-a/ToolConnectBack/internal/repository"
	"github.com/saeid-a/ToolConnectBack/internal/services"
)

type onboardingProfiles interface {
	Account(ctx context.Context, userID int64) (models.AccountProfiles, error)
	CompleteClientOnboarding(ctx context.Context, userID int64, req repository.ClientOnboardingInput) (*models.ClientProfile, error)
	CompleteProviderOnboarding(ctx context.Context, userID int64, req repository.ProviderOnboardingInput) (*models.ProviderProfile, error)
}

// OnboardingHandler completes an account's first profile or adds its second one.
type OnboardingHandler struct {
	profiles onboardingProfiles
}

func NewOnboardingHandler(profiles onboardingProfiles) *OnboardingHandler {
	return &OnboardingHandler{profiles: profiles}
}

type clientOnboardingRequest struct {
	Name              string `json:"name"`
	Surname           string `json:"surname"`
	ShowContact       bool   `json:"show_contact"`
	PreferredCategory string `json:"preferred_category"`
}

type providerOnboardingRequest struct {
	Name        string   `json:"name"`
	Surname     string   `json:"surname"`
	ShowContact bool     `json:"show_contact"`
	Category    string   `json:"category"`
	Services    []string `json:"services"`
	Bio         string   `json:"bio"`
}

func (h *OnboardingHandler) Plan(c *fiber.Ctx) error {
	userID, err := parseUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	role, ok := models.ParseRole(c.Query("type"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "type must be client or provider"})
	}

	account, err := h.profiles.Account(c.UserContext(), userID)
	if err != nil {
		if errors.Is(err, services.ErrProfileNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch profiles"})
	}

	if _, held := account.ProfileFor(role); held {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Profile already exists"})
	}
	_, hasOther := account.ProfileFor(role.Counterpart())

	plan, err := onboarding.PlanFor(role, hasOther)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"plan": plan})
}

func (h *OnboardingHandler) ClientOnboarding(c *fiber.Ctx) error {
	userID, err := parseUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req clientOnboardingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if validationErr := validateClientOnboardingRequest(req); validationErr != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": validationErr})
	}

	profile, err := h.profiles.CompleteClientOnboarding(c.UserContext(), userID, repository.ClientOnboardingInput{
		Name:              strings.TrimSpace(req.Name),
		Surname:           strings.TrimSpace(req.Surname),
		ShowContact:       req.ShowContact,
		PreferredCategory: strings.TrimSpace(req.PreferredCategory),
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update profile"})
	}

	return c.JSON(fiber.Map{
		"profile":             profile,
		"onboarding_complete": profile.OnboardingComplete,
	})
}

func (h *OnboardingHandler) ProviderOnboarding(c *fiber.Ctx) error {
	userID, err := parseUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req providerOnboardingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if validationErr := validateProviderOnboardingRequest(req); validationErr != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": validationErr})
	}

	profile, err := h.profiles.CompleteProviderOnboarding(c.UserContext(), userID, repository.ProviderOnboardingInput{
		Name:        strings.TrimSpace(req.Name),
		Surname:     strings.TrimSpace(req.Surname),
		ShowContact: req.ShowContact,
		Category:    strings.TrimSpace(req.Category),
		Services:    req.Services,
		Bio:         strings.TrimSpace(req.Bio),
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update profile"})
	}

	return c.JSON(fiber.Map{
		"profile":             profile,
		"onboarding_complete": profile.OnboardingComplete,
	})
}
