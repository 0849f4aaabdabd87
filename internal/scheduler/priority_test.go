package scheduler

import (
	"testing"

	"planwise/internal/domain"
)

func TestProjectPriorityWorkedExample(t *testing.T) {
	env := newTestEnv(t)
	cust := env.customer(domain.Customer{Name: "Northwind", Tier: "tier_1"})
	p := env.project(domain.Project{
		Name:          "Atlas",
		CustomerID:    cust.ID,
		Deadline:      day(5),
		BusinessValue: ptr(80),
		RiskScore:     15,
	})

	bd, err := env.eng.ProjectPriority(env.ctx, p.ID)
	if err != nil {
		t.Fatalf("priority: %v", err)
	}
	if bd.Score != 74.0 {
		t.Fatalf("expected score 74.0, got %v", bd.Score)
	}
	if bd.Components["customer_tier"] != 100 {
		t.Fatalf("expected tier component 100, got %v", bd.Components["customer_tier"])
	}
	if bd.Components["deadline_urgency"] != 100 {
		t.Fatalf("expected deadline component 100, got %v", bd.Components["deadline_urgency"])
	}
	if bd.Components["risk_penalty"] != 4.5 {
		t.Fatalf("expected risk penalty 4.5, got %v", bd.Components["risk_penalty"])
	}

	// The score and breakdown must be persisted on the project.
	got, err := env.repo.Project(env.ctx, p.ID)
	if err != nil {
		t.Fatalf("reload project: %v", err)
	}
	if got.PriorityScore == nil || *got.PriorityScore != 74.0 {
		t.Fatalf("expected persisted score 74.0, got %v", got.PriorityScore)
	}
	if got.PriorityCalculatedAt.IsZero() {
		t.Fatal("expected priority_calculated_at to be set")
	}
}

func TestPriorityStaysWithinBounds(t *testing.T) {
	env := newTestEnv(t)
	cust := env.customer(domain.Customer{Name: "Globex", Tier: "tier_1"})

	worst := env.project(domain.Project{Name: "Doomed", RiskScore: 100})
	best := env.project(domain.Project{
		Name:               "Golden",
		CustomerID:         cust.ID,
		Deadline:           day(2),
		BusinessValue:      ptr(100),
		StrategicAlignment: ptr(100),
	})
	for i := 0; i < 6; i++ {
		dep := env.project(domain.Project{Name: "Dependent"})
		if err := env.repo.AddProjectDependency(env.ctx, dep.ID, best.ID); err != nil {
			t.Fatalf("add dependency: %v", err)
		}
	}

	for _, id := range []string{worst.ID, best.ID} {
		bd, err := env.eng.PriorityComponents(env.ctx, id)
		if err != nil {
			t.Fatalf("priority of %s: %v", id, err)
		}
		if bd.Score < 0 || bd.Score > 100 {
			t.Fatalf("score %v out of bounds for %s", bd.Score, id)
		}
	}

	bd, err := env.eng.PriorityComponents(env.ctx, best.ID)
	if err != nil {
		t.Fatalf("priority: %v", err)
	}
	if bd.Components["dependency_boost"] != 100 {
		t.Fatalf("expected dependency boost capped at 100, got %v", bd.Components["dependency_boost"])
	}
}

func TestDeadlineScoreRamps(t *testing.T) {
	env := newTestEnv(t)
	cases := []struct {
		days int
		want float64
	}{
		{3, 100},
		{7, 100},
		{30, 70},
		{90, 40},
		{180, 40},
	}
	for _, c := range cases {
		got := env.eng.deadlineScore(day(c.days))
		if got != c.want {
			t.Errorf("deadline %d days out: expected %v, got %v", c.days, c.want, got)
		}
	}
	if got := env.eng.deadlineScore(day(18)); got <= 70 || got >= 100 {
		t.Errorf("expected mid-ramp score between 70 and 100, got %v", got)
	}
}

func TestUnknownCustomerScoresNeutral(t *testing.T) {
	env := newTestEnv(t)
	p := env.project(domain.Project{Name: "Orphan", CustomerID: "gone"})

	bd, err := env.eng.PriorityComponents(env.ctx, p.ID)
	if err != nil {
		t.Fatalf("priority: %v", err)
	}
	if bd.Components["customer_tier"] != 50 {
		t.Fatalf("expected neutral tier 50, got %v", bd.Components["customer_tier"])
	}
}

func TestContractScoreNormalizesAcrossPortfolio(t *testing.T) {
	env := newTestEnv(t)
	low := env.project(domain.Project{Name: "Small", ContractValue: 10000})
	high := env.project(domain.Project{Name: "Big", ContractValue: 110000})
	mid := env.project(domain.Project{Name: "Mid", BudgetAmount: 60000})

	for _, c := range []struct {
		id   string
		want float64
	}{
		{low.ID, 0},
		{high.ID, 100},
		{mid.ID, 50},
	} {
		bd, err := env.eng.PriorityComponents(env.ctx, c.id)
		if err != nil {
			t.Fatalf("priority: %v", err)
		}
		if bd.Components["contract_value"] != c.want {
			t.Fatalf("expected contract component %v, got %v", c.want, bd.Components["contract_value"])
		}
	}
}

func TestRecalculatePrioritiesBatch(t *testing.T) {
	env := newTestEnv(t)
	env.project(domain.Project{Name: "One", RiskScore: 80})
	env.project(domain.Project{Name: "Two", BusinessValue: ptr(90), Deadline: day(4)})
	inactive := env.project(domain.Project{Name: "Paused", Status: "on_hold"})

	stats, err := env.eng.RecalculatePriorities(env.ctx, false)
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if stats.Processed != 2 || stats.Updated != 2 {
		t.Fatalf("expected 2 processed and updated, got %+v", stats)
	}
	if stats.MinScore > stats.MaxScore {
		t.Fatalf("min %v exceeds max %v", stats.MinScore, stats.MaxScore)
	}
	if len(stats.Errors) != 0 {
		t.Fatalf("unexpected errors: %+v", stats.Errors)
	}

	got, err := env.repo.Project(env.ctx, inactive.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.PriorityScore != nil {
		t.Fatal("inactive project should not be scored without includeInactive")
	}

	stats, err = env.eng.RecalculatePriorities(env.ctx, true)
	if err != nil {
		t.Fatalf("recalculate all: %v", err)
	}
	if stats.Processed != 3 {
		t.Fatalf("expected 3 processed with includeInactive, got %d", stats.Processed)
	}
}
