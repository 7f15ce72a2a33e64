package onboarding

import (
	"errors"
	"slices"
	"testing"

	"github.com/saeid-a/ToolConnectBack/internal/models"
)

func TestPlanForFirstProfile(t *testing.T) {
	client, err := PlanFor(models.RoleClient, false)
	if err != nil {
		t.Fatalf("PlanFor client: %v", err)
	}
	wantClient := []Step{StepAccount, StepIdentity, StepPreferences, StepContactVisibility, StepDone}
	if !slices.Equal(client.Steps, wantClient) {
		t.Fatalf("client steps = %v, want %v", client.Steps, wantClient)
	}

	provider, err := PlanFor(models.RoleProvider, false)
	if err != nil {
		t.Fatalf("PlanFor provider: %v", err)
	}
	wantProvider := []Step{StepAccount, StepIdentity, StepCategory, StepServices, StepBio, StepContactVisibility, StepDone}
	if !slices.Equal(provider.Steps, wantProvider) {
		t.Fatalf("provider steps = %v, want %v", provider.Steps, wantProvider)
	}
}

func TestPlanForSecondProfileSkipsAccount(t *testing.T) {
	plan, err := PlanFor(models.RoleProvider, true)
	if err != nil {
		t.Fatalf("PlanFor: %v", err)
	}
	if plan.Steps[0] != StepIdentity {
		t.Fatalf("expected identity first, got %v", plan.Steps)
	}
	if !plan.PrefillIdentity || !plan.SecondProfile {
		t.Fatalf("expected a prefilled second profile plan, got %+v", plan)
	}
}

func TestPlanForUnknownRole(t *testing.T) {
	if _, err := PlanFor(models.Role("admin"), false); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
}

func TestNext(t *testing.T) {
	plan, _ := PlanFor(models.RoleClient, false)

	step, err := Next(plan, StepIdentity)
	if err != nil || step != StepPreferences {
		t.Fatalf("Next(identity) = %q, %v", step, err)
	}
	step, err = Next(plan, StepDone)
	if err != nil || step != StepDone {
		t.Fatalf("Next(done) = %q, %v", step, err)
	}
	if _, err := Next(plan, StepBio); !errors.Is(err, ErrUnknownStep) {
		t.Fatalf("expected ErrUnknownStep for a provider step, got %v", err)
	}
}
