package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"planwise/internal/domain"
	"planwise/internal/store"
)

var testNow = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

func newTestRepo(t *testing.T) (context.Context, Repo) {
	t.Helper()
	db, err := store.Open(store.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := store.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	s := store.NewSQLite(db)
	s.Now = func() time.Time { return testNow }
	return context.Background(), Repo{Store: s}
}

func TestProjectRoundTripAndKindCheck(t *testing.T) {
	ctx, r := newTestRepo(t)
	bv := 80.0
	created, err := r.CreateProject(ctx, domain.Project{
		Name: "atlas", ProjectType: "platform", BusinessValue: &bv,
		RiskScore: 20, ContractValue: 50000,
	})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	got, err := r.Project(ctx, created.ID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if got.Name != "atlas" || got.ProjectType != "platform" || got.ContractValue != 50000 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.BusinessValue == nil || *got.BusinessValue != 80 {
		t.Fatalf("business value lost: %+v", got.BusinessValue)
	}
	if got.Status != "active" {
		t.Fatalf("default status = %q, want active", got.Status)
	}

	cust, err := r.CreateCustomer(ctx, domain.Customer{Name: "acme", Tier: "tier_1"})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	if _, err := r.Project(ctx, cust.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("project lookup on a customer id: got %v, want ErrNotFound", err)
	}
	if _, err := r.Project(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing id: got %v, want ErrNotFound", err)
	}
}

func TestWriteValidationRejectsBadRecords(t *testing.T) {
	ctx, r := newTestRepo(t)

	if _, err := r.CreateProject(ctx, domain.Project{Name: "x", RiskScore: 120}); err == nil {
		t.Fatal("risk score 120 accepted")
	}
	if _, err := r.CreatePerson(ctx, domain.Person{}); err == nil {
		t.Fatal("unnamed person accepted")
	}
	if _, err := r.CreateTask(ctx, domain.Task{Title: "t", PredictedDelayProbability: 1.5}); err == nil {
		t.Fatal("delay probability 1.5 accepted")
	}
	if _, err := r.CreateAssignment(ctx, domain.Assignment{PersonID: "p", AllocationPercent: 0}); err == nil {
		t.Fatal("zero allocation accepted")
	}
	if err := r.AddRequirement(ctx, "t", "s", domain.SkillRequirement{MinimumProficiency: 0}); err == nil {
		t.Fatal("proficiency 0 accepted")
	}
	if err := r.AddRequirement(ctx, "t", "s", domain.SkillRequirement{MinimumProficiency: 5}); err == nil {
		t.Fatal("proficiency above the 1..4 scale accepted")
	}
	if err := r.AddPersonSkill(ctx, "p", "s", domain.PersonSkill{ProficiencyLevel: 5}); err == nil {
		t.Fatal("skill level above the 1..4 scale accepted")
	}
}

func TestTaskBlockersResolveBacklinks(t *testing.T) {
	ctx, r := newTestRepo(t)
	blocker, err := r.CreateTask(ctx, domain.Task{Title: "schema", Status: "in_progress"})
	if err != nil {
		t.Fatalf("create blocker: %v", err)
	}
	blocked, err := r.CreateTask(ctx, domain.Task{Title: "dashboards", Status: "todo"})
	if err != nil {
		t.Fatalf("create blocked: %v", err)
	}
	if err := r.AddBlocker(ctx, blocker.ID, blocked.ID, ""); err != nil {
		t.Fatalf("add blocker: %v", err)
	}

	got, err := r.TaskBlockers(ctx, blocked.ID)
	if err != nil {
		t.Fatalf("task blockers: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("blockers = %d, want 1", len(got))
	}
	if got[0].TaskID != blocker.ID || got[0].TaskStatus != "in_progress" {
		t.Fatalf("blocker mismatch: %+v", got[0])
	}
	if got[0].DependencyType != "hard" {
		t.Fatalf("dependency type = %q, want hard default", got[0].DependencyType)
	}

	none, err := r.TaskBlockers(ctx, blocker.ID)
	if err != nil {
		t.Fatalf("task blockers: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("blocker has %d blockers, want 0", len(none))
	}
}

func TestSetProjectPriorityPersistsBreakdown(t *testing.T) {
	ctx, r := newTestRepo(t)
	p, err := r.CreateProject(ctx, domain.Project{Name: "atlas"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	components := map[string]float64{"customer_tier": 25, "risk_penalty": 4.5}
	if err := r.SetProjectPriority(ctx, p, 74, components, testNow); err != nil {
		t.Fatalf("set priority: %v", err)
	}

	got, err := r.Project(ctx, p.ID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if got.PriorityScore == nil || *got.PriorityScore != 74 {
		t.Fatalf("priority score = %v, want 74", got.PriorityScore)
	}
	if got.PriorityComponents["risk_penalty"] != 4.5 {
		t.Fatalf("components lost: %+v", got.PriorityComponents)
	}
	if !got.PriorityCalculatedAt.Equal(testNow) {
		t.Fatalf("calculated at = %v, want %v", got.PriorityCalculatedAt, testNow)
	}

	// The patch bumped the version; the stale struct must not win again.
	if err := r.SetProjectPriority(ctx, p, 80, components, testNow); !errors.Is(err, store.ErrVersionMismatch) {
		t.Fatalf("stale update: got %v, want ErrVersionMismatch", err)
	}
}

func TestSetTaskStatusLifecycle(t *testing.T) {
	ctx, r := newTestRepo(t)
	task, err := r.CreateTask(ctx, domain.Task{Title: "ingest"})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.Status != "backlog" {
		t.Fatalf("default status = %q, want backlog", task.Status)
	}
	moved, err := r.SetTaskStatus(ctx, task, "in_progress")
	if err != nil {
		t.Fatalf("set status: %v", err)
	}
	if moved.Status != "in_progress" || moved.Version <= task.Version {
		t.Fatalf("status move: %+v", moved)
	}
}

func TestNudgeActionsAndRecencyWindow(t *testing.T) {
	ctx, r := newTestRepo(t)
	n, err := r.CreateNudge(ctx, domain.Nudge{
		RecipientID: "pm", Type: "risk", Severity: "critical", Title: "delay likely",
	})
	if err != nil {
		t.Fatalf("create nudge: %v", err)
	}
	for _, at := range []string{"extend_deadline", "reassign_task"} {
		if _, err := r.CreateNudgeAction(ctx, domain.NudgeAction{NudgeID: n.ID, ActionType: at, Label: at}); err != nil {
			t.Fatalf("create action %s: %v", at, err)
		}
	}

	actions, err := r.NudgeActions(ctx, n.ID)
	if err != nil {
		t.Fatalf("nudge actions: %v", err)
	}
	if len(actions) != 2 {
		t.Fatalf("actions = %d, want 2", len(actions))
	}

	recent, err := r.RecentNudges(ctx, testNow.Add(-time.Hour))
	if err != nil {
		t.Fatalf("recent nudges: %v", err)
	}
	if len(recent) != 1 || recent[0].RecipientID != "pm" {
		t.Fatalf("recent window: %+v", recent)
	}
	stale, err := r.RecentNudges(ctx, testNow.Add(time.Hour))
	if err != nil {
		t.Fatalf("recent nudges: %v", err)
	}
	if len(stale) != 0 {
		t.Fatalf("future cutoff returned %d nudges", len(stale))
	}
}
