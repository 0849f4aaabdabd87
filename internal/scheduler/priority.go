package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"planwise/internal/domain"
	"planwise/internal/repo"
)

// PriorityBreakdown is a calculated score with its weighted components.
type PriorityBreakdown struct {
	ProjectID  string             `json:"project_id"`
	Score      float64            `json:"score"`
	Components map[string]float64 `json:"components"`
}

type PriorityError struct {
	ProjectID string `json:"project_id"`
	Err       string `json:"error"`
}

// PriorityStats summarizes a batch recalculation.
type PriorityStats struct {
	Processed int             `json:"processed"`
	Updated   int             `json:"updated"`
	Errors    []PriorityError `json:"errors,omitempty"`
	MinScore  float64         `json:"min_score"`
	MaxScore  float64         `json:"max_score"`
	AvgScore  float64         `json:"avg_score"`
}

// ProjectPriority calculates and persists the priority of one project.
func (e Engine) ProjectPriority(ctx context.Context, projectID string) (PriorityBreakdown, error) {
	p, err := e.Repo.Project(ctx, projectID)
	if err != nil {
		return PriorityBreakdown{}, err
	}
	all, err := e.Repo.Projects(ctx, "")
	if err != nil {
		return PriorityBreakdown{}, err
	}
	bd, err := e.priorityFor(ctx, p, all)
	if err != nil {
		return PriorityBreakdown{}, err
	}
	if err := e.Repo.SetProjectPriority(ctx, p, bd.Score, bd.Components, e.now()); err != nil {
		return PriorityBreakdown{}, fmt.Errorf("persist priority of %s: %w", p.ID, err)
	}
	return bd, nil
}

// PriorityComponents calculates the breakdown without persisting it.
func (e Engine) PriorityComponents(ctx context.Context, projectID string) (PriorityBreakdown, error) {
	p, err := e.Repo.Project(ctx, projectID)
	if err != nil {
		return PriorityBreakdown{}, err
	}
	all, err := e.Repo.Projects(ctx, "")
	if err != nil {
		return PriorityBreakdown{}, err
	}
	return e.priorityFor(ctx, p, all)
}

// RecalculatePriorities scores active projects, or every project when
// includeInactive is set. Each write is individually durable; failures
// are recorded per project and the batch continues.
func (e Engine) RecalculatePriorities(ctx context.Context, includeInactive bool) (PriorityStats, error) {
	status := "active"
	if includeInactive {
		status = ""
	}
	projects, err := e.Repo.Projects(ctx, status)
	if err != nil {
		return PriorityStats{}, err
	}
	all := projects
	if !includeInactive {
		if all, err = e.Repo.Projects(ctx, ""); err != nil {
			return PriorityStats{}, err
		}
	}

	stats := PriorityStats{Processed: len(projects)}
	var sum float64
	for i, p := range projects {
		bd, err := e.priorityFor(ctx, p, all)
		if err == nil {
			err = e.Repo.SetProjectPriority(ctx, p, bd.Score, bd.Components, e.now())
		}
		if err != nil {
			stats.Errors = append(stats.Errors, PriorityError{ProjectID: p.ID, Err: err.Error()})
			continue
		}
		if stats.Updated == 0 || bd.Score < stats.MinScore {
			stats.MinScore = bd.Score
		}
		if stats.Updated == 0 || bd.Score > stats.MaxScore {
			stats.MaxScore = bd.Score
		}
		sum += bd.Score
		stats.Updated++
		if (i+1)%e.Config.Priority.CommitEvery == 0 {
			e.Log.Debug("priority batch progress", "processed", i+1, "total", len(projects))
		}
	}
	if stats.Updated > 0 {
		stats.AvgScore = round1(sum / float64(stats.Updated))
	}
	return stats, nil
}

func (e Engine) priorityFor(ctx context.Context, p domain.Project, all []domain.Project) (PriorityBreakdown, error) {
	cfg := e.Config.Priority

	tier, err := e.tierScore(ctx, p)
	if err != nil {
		return PriorityBreakdown{}, err
	}
	deadline := e.deadlineScore(p.Deadline)
	business := defaultScore(p.BusinessValue)
	strategic := defaultScore(p.StrategicAlignment)
	contract := contractScore(p, all)

	dependents, err := e.Repo.ProjectDependents(ctx, p.ID)
	if err != nil {
		return PriorityBreakdown{}, fmt.Errorf("dependents of %s: %w", p.ID, err)
	}
	depBoost := clamp(float64(dependents)*20, 0, 100)

	score := tier*cfg.TierWeight +
		deadline*cfg.DeadlineWeight +
		business*cfg.BusinessWeight +
		contract*cfg.ContractWeight +
		strategic*cfg.StrategicWeight +
		depBoost*cfg.DependencyWeight
	penalty := p.RiskScore * cfg.RiskDampening
	score = round1(clamp(score-penalty, 0, 100))

	return PriorityBreakdown{
		ProjectID: p.ID,
		Score:     score,
		Components: map[string]float64{
			"customer_tier":       tier,
			"deadline_urgency":    deadline,
			"business_value":      business,
			"contract_value":      contract,
			"strategic_alignment": strategic,
			"dependency_boost":    depBoost,
			"risk_penalty":        round1(penalty),
		},
	}, nil
}

func (e Engine) tierScore(ctx context.Context, p domain.Project) (float64, error) {
	if p.CustomerID == "" {
		return 50, nil
	}
	c, err := e.Repo.Customer(ctx, p.CustomerID)
	if errors.Is(err, repo.ErrNotFound) {
		return 50, nil
	}
	if err != nil {
		return 0, fmt.Errorf("customer of %s: %w", p.ID, err)
	}
	switch c.Tier {
	case "tier_1":
		return 100, nil
	case "tier_2":
		return 75, nil
	case "tier_3":
		return 50, nil
	default:
		return 75, nil
	}
}

// deadlineScore maps days-to-deadline onto urgency: at most a week out
// is maximal, then two linear ramps down to the 90-day floor.
func (e Engine) deadlineScore(deadline time.Time) float64 {
	if deadline.IsZero() {
		return 50
	}
	days := float64(daysBetween(e.now(), deadline))
	switch {
	case days <= 7:
		return 100
	case days <= 30:
		return 100 - (days-7)/23*30
	case days <= 90:
		return 70 - (days-30)/60*30
	default:
		return 40
	}
}

// contractScore normalizes the project's contract value (budget as
// fallback) against the portfolio. Without a value, or without spread
// to compare against, the score is neutral.
func contractScore(p domain.Project, all []domain.Project) float64 {
	value := p.ContractValue
	if value == 0 {
		value = p.BudgetAmount
	}
	if value == 0 {
		return 50
	}
	var min, max float64
	var seen bool
	for _, other := range all {
		v := other.ContractValue
		if v == 0 {
			v = other.BudgetAmount
		}
		if v == 0 {
			continue
		}
		if !seen || v < min {
			min = v
		}
		if !seen || v > max {
			max = v
		}
		seen = true
	}
	if !seen || max == min {
		return 50
	}
	return (value - min) / (max - min) * 100
}

func defaultScore(v *float64) float64 {
	if v == nil {
		return 50
	}
	return *v
}
