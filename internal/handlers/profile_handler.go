package handlers

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/ToolConnectBack/internal/models"
	"github.com/saeid-a/ToolConnectBack/internal/observability"
	"github.com/saeid-a/ToolConnectBack/internal/repository"
	"github.com/saeid-a/ToolConnectBack/internal/services"
)

const maxAvatarSizeBytes = 5 * 1024 * 1024

type profileEditor interface {
	OwnProfiles(ctx context.Context, userID int64) (*models.ClientProfile, *models.ProviderProfile, error)
	UpdateClientProfile(ctx context.Context, userID int64, req repository.UpdateClientProfileInput) (*models.ClientProfile, error)
	UpdateProviderProfile(ctx context.Context, userID int64, req repository.UpdateProviderProfileInput) (*models.ProviderProfile, error)
}

type ProfileHandler struct {
	profiles profileEditor
	storage  services.ObjectStore
}

func NewProfileHandler(profiles profileEditor, storage services.ObjectStore) *ProfileHandler {
	return &ProfileHandler{
		profiles: profiles,
		storage:  storage,
	}
}

type updateClientProfileRequest struct {
	Name              *string `json:"name"`
	Surname           *string `json:"surname"`
	ShowContact       *bool   `json:"show_contact"`
	PreferredCategory *string `json:"preferred_category"`
}

type updateProviderProfileRequest struct {
	Name        *string   `json:"name"`
	Surname     *string   `json:"surname"`
	ShowContact *bool     `json:"show_contact"`
	Category    *string   `json:"category"`
	Services    *[]string `json:"services"`
	Bio         *string   `json:"bio"`
}

// GetOwnProfiles returns both of the account's profiles; the one it does not hold is null.
func (h *ProfileHandler) GetOwnProfiles(c *fiber.Ctx) error {
	userID, err := parseUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	client, provider, err := h.profiles.OwnProfiles(c.UserContext(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch profiles"})
	}

	return c.JSON(fiber.Map{
		"client":   client,
		"provider": provider,
	})
}

func (h *ProfileHandler) UpdateClientProfile(c *fiber.Ctx) error {
	userID, err := parseUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req updateClientProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if validationErr := validateClientProfileUpdateRequest(req); validationErr != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": validationErr})
	}

	profile, err := h.profiles.UpdateClientProfile(c.UserContext(), userID, repository.UpdateClientProfileInput{
		Name:              req.Name,
		Surname:           req.Surname,
		ShowContact:       req.ShowContact,
		PreferredCategory: req.PreferredCategory,
	})
	if err != nil {
		return respondProfileError(c, err)
	}

	return c.JSON(fiber.Map{"profile": profile})
}

func (h *ProfileHandler) UpdateProviderProfile(c *fiber.Ctx) error {
	userID, err := parseUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req updateProviderProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if validationErr := validateProviderProfileUpdateRequest(req); validationErr != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": validationErr})
	}

	profile, err := h.profiles.UpdateProviderProfile(c.UserContext(), userID, repository.UpdateProviderProfileInput{
		Name:        req.Name,
		Surname:     req.Surname,
		ShowContact: req.ShowContact,
		Category:    req.Category,
		Services:    req.Services,
		Bio:         req.Bio,
	})
	if err != nil {
		return respondProfileError(c, err)
	}

	return c.JSON(fiber.Map{"profile": profile})
}

func (h *ProfileHandler) UploadAvatar(c *fiber.Ctx) error {
	role, ok := models.ParseRole(c.Params("role"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "role must be client or provider"})
	}
	if h.storage == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Storage service is not configured"})
	}

	userID, err := parseUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	client, provider, err := h.profiles.OwnProfiles(c.UserContext(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch profile"})
	}
	var currentAvatar *string
	switch {
	case role == models.RoleClient && client != nil:
		currentAvatar = client.AvatarURL
	case role == models.RoleProvider && provider != nil:
		currentAvatar = provider.AvatarURL
	default:
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Profile not found"})
	}

	fileHeader, err := c.FormFile("avatar")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "avatar file is required"})
	}
	if fileHeader.Size <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "avatar file is empty"})
	}
	if fileHeader.Size > maxAvatarSizeBytes {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "avatar file exceeds 5MB limit"})
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp":
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "avatar must be a jpg, jpeg, png, or webp file"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to open avatar file"})
	}
	defer file.Close()

	avatarURL, err := h.storage.Upload(c.UserContext(), services.UploadObject{
		Folder:      string(role) + "s/avatars",
		Name:        fmt.Sprintf("%d-%d%s", userID, time.Now().UnixNano(), ext),
		ContentType: fileHeader.Header.Get(fiber.HeaderContentType),
		Body:        file,
		Size:        fileHeader.Size,
	})
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Failed to upload avatar"})
	}

	var profile any
	if role == models.RoleClient {
		profile, err = h.profiles.UpdateClientProfile(c.UserContext(), userID, repository.UpdateClientProfileInput{AvatarURL: &avatarURL})
	} else {
		profile, err = h.profiles.UpdateProviderProfile(c.UserContext(), userID, repository.UpdateProviderProfileInput{AvatarURL: &avatarURL})
	}
	if err != nil {
		_ = h.storage.Delete(c.UserContext(), avatarURL)
		return respondProfileError(c, err)
	}

	if currentAvatar != nil && *currentAvatar != "" && *currentAvatar != avatarURL {
		if err := h.storage.Delete(c.UserContext(), *currentAvatar); err != nil {
			observability.Logger.WarnContext(c.UserContext(), "failed to delete replaced avatar", "error", err)
		}
	}

	return c.JSON(fiber.Map{
		"avatar_url": avatarURL,
		"profile":    profile,
	})
}

func respondProfileError(c *fiber.Ctx, err error) error {
	if errors.Is(err, services.ErrRoleUnavailable) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Profile not found"})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update profile"})
}
