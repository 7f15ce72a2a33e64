package handlers

import (
	"strings"
)

var allowedCategories = map[string]struct{}{
	"power_tools":  {},
	"hand_tools":   {},
	"garden":       {},
	"construction": {},
	"cleaning":     {},
	"vehicles":     {},
	"events":       {},
	"other":        {},
}

func validateClientOnboardingRequest(req clientOnboardingRequest) string {
	if err := validateIdentity(req.Name, req.Surname); err != "" {
		return err
	}
	if req.PreferredCategory != "" {
		if err := validateCategory(req.PreferredCategory); err != "" {
			return err
		}
	}
	return ""
}

func validateProviderOnboardingRequest(req providerOnboardingRequest) string {
	if err := validateIdentity(req.Name, req.Surname); err != "" {
		return err
	}
	if err := validateCategory(req.Category); err != "" {
		return err
	}
	if len(req.Services) == 0 {
		return "services must contain at least one item"
	}
	if err := validateServices(req.Services); err != "" {
		return err
	}
	if len(req.Bio) > 2000 {
		return "bio must be at most 2000 characters"
	}
	return ""
}

func validateClientProfileUpdateRequest(req updateClientProfileRequest) string {
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return "name must not be empty"
	}
	if req.Surname != nil && strings.TrimSpace(*req.Surname) == "" {
		return "surname must not be empty"
	}
	if req.PreferredCategory != nil {
		if err := validateCategory(*req.PreferredCategory); err != "" {
			return err
		}
	}
	return ""
}

func validateProviderProfileUpdateRequest(req updateProviderProfileRequest) string {
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return "name must not be empty"
	}
	if req.Surname != nil && strings.TrimSpace(*req.Surname) == "" {
		return "surname must not be empty"
	}
	if req.Category != nil {
		if err := validateCategory(*req.Category); err != "" {
			return err
		}
	}
	if req.Services != nil {
		if err := validateServices(*req.Services); err != "" {
			return err
		}
	}
	if req.Bio != nil && len(*req.Bio) > 2000 {
		return "bio must be at most 2000 characters"
	}
	return ""
}

func validateIdentity(name, surname string) string {
	if strings.TrimSpace(name) == "" {
		return "name is required"
	}
	if strings.TrimSpace(surname) == "" {
		return "surname is required"
	}
	return ""
}

func validateCategory(category string) string {
	if _, ok := allowedCategories[strings.TrimSpace(category)]; !ok {
		return "category must be one of: power_tools, hand_tools, garden, construction, cleaning, vehicles, events, other"
	}
	return ""
}

func validateServices(services []string) string {
	for _, service := range services {
		if strings.TrimSpace(service) == "" {
			return "services must not contain empty values"
		}
	}
	return ""
}
