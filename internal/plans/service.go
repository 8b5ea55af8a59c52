package plans

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/carebridgehealth/carebridge-backend/pkg/db/models"
	"github.com/carebridgehealth/carebridge-backend/pkg/enums"
	pkgerrors "github.com/carebridgehealth/carebridge-backend/pkg/errors"
)

// Service manages the care plan catalog.
type Service interface {
	Create(ctx context.Context, input CreatePlanInput) (*models.Plan, error)
	Update(ctx context.Context, id uuid.UUID, input UpdatePlanInput) (*models.Plan, error)
	List(ctx context.Context, query ListPlansQuery) ([]models.Plan, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Plan, error)
}

// CreatePlanInput captures the fields required to publish a new plan.
type CreatePlanInput struct {
	Name          string
	PriceYen      int
	CommissionYen int
	CompanyCutYen int
	StripePriceID string
	Features      []string
}

// UpdatePlanInput mutates an existing plan. Nil fields are left unchanged.
// Economics fields travel together; a partial economics update is rejected.
type UpdatePlanInput struct {
	Name          *string
	PriceYen      *int
	CommissionYen *int
	CompanyCutYen *int
	Features      []string
	Status        *enums.PlanStatus
}

type service struct {
	repo Repository
}

// NewService wires a plan catalog service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("plans repository required")
	}
	return &service{repo: repo}, nil
}

func validateEconomics(priceYen, commissionYen, companyCutYen int) error {
	if priceYen < 0 || commissionYen < 0 || companyCutYen < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "plan amounts must be non-negative")
	}
	if commissionYen+companyCutYen != priceYen {
		return pkgerrors.New(pkgerrors.CodeValidation, "commission and company cut must sum to price").
			WithDetails(map[string]int{
				"price_yen":       priceYen,
				"commission_yen":  commissionYen,
				"company_cut_yen": companyCutYen,
			})
	}
	return nil
}

func (s *service) Create(ctx context.Context, input CreatePlanInput) (*models.Plan, error) {
	if input.Name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan name is required")
	}
	if input.StripePriceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stripe price id is required")
	}
	if err := validateEconomics(input.PriceYen, input.CommissionYen, input.CompanyCutYen); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByStripePriceID(ctx, input.StripePriceID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup plan by stripe price id")
	}
	if existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "a plan with this stripe price id already exists")
	}

	plan := &models.Plan{
		Name:          input.Name,
		PriceYen:      input.PriceYen,
		CommissionYen: input.CommissionYen,
		CompanyCutYen: input.CompanyCutYen,
		StripePriceID: input.StripePriceID,
		Features:      input.Features,
		Status:        enums.PlanStatusActive,
	}
	if err := s.repo.Create(ctx, plan); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create plan")
	}
	return plan, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdatePlanInput) (*models.Plan, error) {
	plan, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup plan")
	}
	if plan == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
	}

	if input.Name != nil {
		if *input.Name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan name cannot be empty")
		}
		plan.Name = *input.Name
	}

	economicsTouched := input.PriceYen != nil || input.CommissionYen != nil || input.CompanyCutYen != nil
	if economicsTouched {
		if input.PriceYen == nil || input.CommissionYen == nil || input.CompanyCutYen == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price, commission and company cut must be updated together")
		}
		if err := validateEconomics(*input.PriceYen, *input.CommissionYen, *input.CompanyCutYen); err != nil {
			return nil, err
		}
		plan.PriceYen = *input.PriceYen
		plan.CommissionYen = *input.CommissionYen
		plan.CompanyCutYen = *input.CompanyCutYen
	}

	if input.Features != nil {
		plan.Features = input.Features
	}
	if input.Status != nil {
		if !input.Status.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid plan status")
		}
		plan.Status = *input.Status
	}

	if err := s.repo.Update(ctx, plan); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update plan")
	}
	return plan, nil
}

func (s *service) List(ctx context.Context, query ListPlansQuery) ([]models.Plan, error) {
	plans, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list plans")
	}
	return plans, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	plan, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup plan")
	}
	if plan == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
	}
	return plan, nil
}
