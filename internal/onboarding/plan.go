// Package onboarding describes the ordered steps a new profile walks through.
package onboarding

import (
	"errors"
	"slices"

	"github.com/saeid-a/ToolConnectBack/internal/models"
)

type Step string

const (
	StepAccount           Step = "account"
	StepIdentity          Step = "identity"
	StepPreferences       Step = "preferences"
	StepCategory          Step = "category"
	StepServices          Step = "services"
	StepBio               Step = "bio"
	StepContactVisibility Step = "contact_visibility"
	StepDone              Step = "done"
)

var (
	ErrUnknownStep = errors.New("onboarding: step is not part of the plan")
	ErrUnknownType = errors.New("onboarding: unknown account type")
)

type Plan struct {
	Role            models.Role `json:"role"`
	SecondProfile   bool        `json:"second_profile"`
	PrefillIdentity bool        `json:"prefill_identity"`
	Steps           []Step      `json:"steps"`
}

// PlanFor returns the steps for creating a profile of the given role. An account adding its
// second profile skips the account step and reuses its identity.
func PlanFor(role models.Role, hasOtherProfile bool) (Plan, error) {
	var steps []Step
	switch role {
	case models.RoleClient:
		steps = []Step{StepAccount, StepIdentity, StepPreferences, StepContactVisibility, StepDone}
	case models.RoleProvider:
		steps = []Step{StepAccount, StepIdentity, StepCategory, StepServices, StepBio, StepContactVisibility, StepDone}
	default:
		return Plan{}, ErrUnknownType
	}

	if hasOtherProfile {
		steps = steps[1:]
	}

	return Plan{
		Role:            role,
		SecondProfile:   hasOtherProfile,
		PrefillIdentity: hasOtherProfile,
		Steps:           steps,
	}, nil
}

// Next returns the step after current. The last step has no successor and returns itself.
func Next(plan Plan, current Step) (Step, error) {
	i := slices.Index(plan.Steps, current)
	if i < 0 {
		return "", ErrUnknownStep
	}
	if i == len(plan.Steps)-1 {
		return current, nil
	}
	return plan.Steps[i+1], nil
}
