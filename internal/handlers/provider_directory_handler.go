package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/ToolConnectBack/internal/models"
	"github.com/saeid-a/ToolConnectBack/internal/services"
)

type profileDirectory interface {
	ListProviders(ctx context.Context, category string, page, limit int) ([]models.ProviderProfile, int, error)
	ProviderProfile(ctx context.Context, profileID int64) (*models.ProviderProfile, error)
	ClientProfile(ctx context.Context, profileID int64) (*models.ClientProfile, error)
}

// DirectoryHandler serves the public provider listing and profile pages that messaging links to.
type DirectoryHandler struct {
	profiles profileDirectory
}

func NewDirectoryHandler(profiles profileDirectory) *DirectoryHandler {
	return &DirectoryHandler{profiles: profiles}
}

type providerListItem struct {
	ProfileID int64    `json:"profile_id"`
	Name      string   `json:"name"`
	Surname   string   `json:"surname"`
	AvatarURL *string  `json:"avatar_url,omitempty"`
	Category  string   `json:"category"`
	Services  []string `json:"services"`
}

func (h *DirectoryHandler) ListProviders(c *fiber.Ctx) error {
	page, limit := parsePage(c)

	providers, total, err := h.profiles.ListProviders(c.UserContext(), strings.TrimSpace(c.Query("category")), page, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch providers"})
	}

	items := make([]providerListItem, 0, len(providers))
	for _, provider := range providers {
		items = append(items, buildProviderListItem(provider))
	}

	return c.JSON(fiber.Map{
		"providers":  items,
		"pagination": buildPaginationMeta(page, limit, total),
	})
}

func (h *DirectoryHandler) GetProvider(c *fiber.Ctx) error {
	profileID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid provider id"})
	}

	provider, err := h.profiles.ProviderProfile(c.UserContext(), profileID)
	if err != nil {
		if errors.Is(err, services.ErrProfileNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Provider not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch provider"})
	}

	return c.JSON(fiber.Map{
		"provider": buildProviderListItem(*provider),
		"bio":      stringValue(provider.Bio),
		"card":     provider.Card(),
	})
}

func (h *DirectoryHandler) GetClient(c *fiber.Ctx) error {
	profileID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid client id"})
	}

	client, err := h.profiles.ClientProfile(c.UserContext(), profileID)
	if err != nil {
		if errors.Is(err, services.ErrProfileNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Client not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch client"})
	}

	return c.JSON(fiber.Map{"card": client.Card()})
}

func buildProviderListItem(provider models.ProviderProfile) providerListItem {
	services := []string{}
	if provider.Services != nil {
		services = *provider.Services
	}
	return providerListItem{
		ProfileID: provider.ID,
		Name:      stringValue(provider.Name),
		Surname:   stringValue(provider.Surname),
		AvatarURL: provider.AvatarURL,
		Category:  stringValue(provider.Category),
		Services:  services,
	}
}

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
