package repo

import (
	"errors"
	"fmt"

	"planwise/internal/domain"
)

// Shape validation at the write boundary. Invalid records are rejected
// before any store mutation.

func validateProject(p domain.Project) error {
	if p.Name == "" {
		return errors.New("project name required")
	}
	if p.RiskScore < 0 || p.RiskScore > 100 {
		return fmt.Errorf("project risk score %v out of range", p.RiskScore)
	}
	if p.BusinessValue != nil && (*p.BusinessValue < 0 || *p.BusinessValue > 100) {
		return fmt.Errorf("project business value %v out of range", *p.BusinessValue)
	}
	if p.StrategicAlignment != nil && (*p.StrategicAlignment < 0 || *p.StrategicAlignment > 100) {
		return fmt.Errorf("project strategic alignment %v out of range", *p.StrategicAlignment)
	}
	if p.ContractValue < 0 || p.BudgetAmount < 0 || p.HourlyRate < 0 {
		return errors.New("project monetary fields must not be negative")
	}
	return nil
}

func validateCustomer(c domain.Customer) error {
	if c.Name == "" {
		return errors.New("customer name required")
	}
	return nil
}

func validatePerson(p domain.Person) error {
	if p.Name == "" {
		return errors.New("person name required")
	}
	if p.WeeklyHours < 0 {
		return errors.New("person weekly hours must not be negative")
	}
	return nil
}

func validateTask(t domain.Task) error {
	if t.Title == "" {
		return errors.New("task title required")
	}
	if t.EstimatedHours < 0 || t.ActualHours < 0 {
		return errors.New("task hours must not be negative")
	}
	if t.PredictedDelayProbability < 0 || t.PredictedDelayProbability > 1 {
		return fmt.Errorf("task delay probability %v out of range", t.PredictedDelayProbability)
	}
	return nil
}

func validateAssignment(a domain.Assignment) error {
	if a.PersonID == "" {
		return errors.New("assignment needs person_id")
	}
	if a.AllocationPercent <= 0 {
		return errors.New("assignment allocation must be positive")
	}
	if a.PlannedHours < 0 {
		return errors.New("assignment planned hours must not be negative")
	}
	if !a.StartDate.IsZero() && !a.EndDate.IsZero() && a.EndDate.Before(a.StartDate) {
		return errors.New("assignment ends before it starts")
	}
	return nil
}

func validateRequirement(req domain.SkillRequirement) error {
	if req.MinimumProficiency < 1 || req.MinimumProficiency > 4 {
		return fmt.Errorf("minimum proficiency %d out of range", req.MinimumProficiency)
	}
	if req.PreferredProficiency != 0 && (req.PreferredProficiency < req.MinimumProficiency || req.PreferredProficiency > 4) {
		return fmt.Errorf("preferred proficiency %d out of range", req.PreferredProficiency)
	}
	return nil
}

func validatePersonSkill(ps domain.PersonSkill) error {
	if ps.ProficiencyLevel < 1 || ps.ProficiencyLevel > 4 {
		return fmt.Errorf("proficiency level %d out of range", ps.ProficiencyLevel)
	}
	if ps.YearsExperience < 0 {
		return errors.New("years of experience must not be negative")
	}
	return nil
}
