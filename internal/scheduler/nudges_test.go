package scheduler

import (
	"testing"

	"planwise/internal/domain"
)

func TestGenerateNudgesDelayRisk(t *testing.T) {
	env := newTestEnv(t)
	pm := env.person(domain.Person{Name: "PM"})
	project := env.project(domain.Project{Name: "Atlas", PMID: pm.ID})
	env.task(domain.Task{Title: "slipping", ProjectID: project.ID, Status: "in_progress", PredictedDelayProbability: 0.92})
	env.task(domain.Task{Title: "on track", ProjectID: project.ID, Status: "in_progress", PredictedDelayProbability: 0.3})

	summary, err := env.eng.GenerateNudges(env.ctx, GenerateOptions{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if summary.Created != 1 {
		t.Fatalf("expected one nudge, got %+v", summary)
	}
	if summary.ByType[NudgeRisk] != 1 || summary.BySeverity["critical"] != 1 {
		t.Fatalf("expected a critical risk nudge, got %+v", summary)
	}

	nudges, err := env.repo.RecentNudges(env.ctx, day(-1))
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(nudges) != 1 || nudges[0].RecipientID != pm.ID {
		t.Fatalf("expected the nudge routed to the project manager, got %+v", nudges)
	}
}

func TestGenerateNudgesSecondRunCreatesNothing(t *testing.T) {
	env := newTestEnv(t)
	pm := env.person(domain.Person{Name: "PM"})
	project := env.project(domain.Project{Name: "Atlas", PMID: pm.ID})
	env.task(domain.Task{Title: "slipping", ProjectID: project.ID, Status: "in_progress", PredictedDelayProbability: 0.85})
	worker := env.person(domain.Person{Name: "Worker"})
	env.assignment(domain.Assignment{PersonID: worker.ID, AllocationPercent: 90, StartDate: day(0), EndDate: day(30)})
	env.assignment(domain.Assignment{PersonID: worker.ID, AllocationPercent: 50, StartDate: day(0), EndDate: day(30)})

	first, err := env.eng.GenerateNudges(env.ctx, GenerateOptions{})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Created == 0 {
		t.Fatal("expected nudges on the first run")
	}

	second, err := env.eng.GenerateNudges(env.ctx, GenerateOptions{})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Created != 0 {
		t.Fatalf("second run over unchanged data must create nothing, got %+v", second)
	}
	if second.SkippedDuplicates != first.Created {
		t.Fatalf("expected %d duplicates skipped, got %d", first.Created, second.SkippedDuplicates)
	}
}

func TestGenerateNudgesSeverityFloor(t *testing.T) {
	env := newTestEnv(t)
	pm := env.person(domain.Person{Name: "PM"})
	project := env.project(domain.Project{Name: "Atlas", PMID: pm.ID})
	// info-grade delay risk only
	env.task(domain.Task{Title: "mild", ProjectID: project.ID, Status: "in_progress", PredictedDelayProbability: 0.72})

	summary, err := env.eng.GenerateNudges(env.ctx, GenerateOptions{MinSeverity: "warning"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if summary.CandidatesFound != 1 || summary.Created != 0 {
		t.Fatalf("expected the info candidate filtered out, got %+v", summary)
	}
}

func TestGenerateNudgesBurnoutRoutesToManager(t *testing.T) {
	env := newTestEnv(t)
	manager := env.person(domain.Person{Name: "Mgr"})
	worker := env.person(domain.Person{Name: "Tired", ManagerID: manager.ID})
	env.assignment(domain.Assignment{PersonID: worker.ID, AllocationPercent: 100, StartDate: day(0), EndDate: day(60)})

	summary, err := env.eng.GenerateNudges(env.ctx, GenerateOptions{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if summary.BySeverity["critical"] == 0 {
		t.Fatalf("a sustained 100%% load should raise a critical nudge, got %+v", summary)
	}
	nudges, err := env.repo.RecentNudges(env.ctx, day(-1))
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	found := false
	for _, n := range nudges {
		if n.RelatedPersonID == worker.ID && n.RecipientID == manager.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a nudge about the worker routed to the manager, got %+v", nudges)
	}
}

func TestGenerateNudgesSkillGap(t *testing.T) {
	env := newTestEnv(t)
	pm := env.person(domain.Person{Name: "PM"})
	project := env.project(domain.Project{Name: "Atlas", PMID: pm.ID})
	rust := env.skill("rust")
	task := env.task(domain.Task{Title: "rust rewrite", ProjectID: project.ID, Status: "todo"})
	env.requirement(task.ID, rust.ID, 4, 0, true)

	summary, err := env.eng.GenerateNudges(env.ctx, GenerateOptions{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if summary.ByType[NudgeSuggestion] != 1 {
		t.Fatalf("expected a skill-gap suggestion, got %+v", summary)
	}
}

func TestGenerateNudgesOpportunity(t *testing.T) {
	env := newTestEnv(t)
	idle := env.person(domain.Person{Name: "Idle"})
	project := env.project(domain.Project{Name: "Hot", PriorityScore: ptr(85)})
	env.task(domain.Task{Title: "urgent work", ProjectID: project.ID, Status: "todo"})

	summary, err := env.eng.GenerateNudges(env.ctx, GenerateOptions{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if summary.ByType[NudgeOpportunity] != 1 {
		t.Fatalf("expected one opportunity nudge, got %+v", summary)
	}
	nudges, err := env.repo.RecentNudges(env.ctx, day(-1))
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(nudges) != 1 || nudges[0].RecipientID != idle.ID {
		t.Fatalf("expected the idle person nudged, got %+v", nudges)
	}
	if _, ok := nudges[0].Context["suggested_task_ids"]; !ok {
		t.Fatalf("expected suggested tasks in the context, got %+v", nudges[0].Context)
	}
}

func TestGenerateNudgesBottleneck(t *testing.T) {
	env := newTestEnv(t)
	pm := env.person(domain.Person{Name: "PM"})
	project := env.project(domain.Project{Name: "Atlas", PMID: pm.ID})
	blocker := env.task(domain.Task{Title: "keystone", ProjectID: project.ID, Status: "in_progress"})
	for i := 0; i < 3; i++ {
		blocked := env.task(domain.Task{Title: "waiting", ProjectID: project.ID, Status: "todo"})
		env.blocker(blocker.ID, blocked.ID)
	}

	summary, err := env.eng.GenerateNudges(env.ctx, GenerateOptions{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if summary.ByType[NudgeConflict] == 0 {
		t.Fatalf("expected a bottleneck nudge, got %+v", summary)
	}
	nudges, err := env.repo.RecentNudges(env.ctx, day(-1))
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	found := false
	for _, n := range nudges {
		if n.RelatedTaskID == blocker.ID {
			found = true
			if n.Severity != "warning" {
				t.Fatalf("three blocked tasks should be warning, got %s", n.Severity)
			}
		}
	}
	if !found {
		t.Fatalf("expected the keystone task flagged, got %+v", nudges)
	}
}

func TestGenerateNudgesPersistsActions(t *testing.T) {
	env := newTestEnv(t)
	pm := env.person(domain.Person{Name: "PM"})
	project := env.project(domain.Project{Name: "Atlas", PMID: pm.ID})
	env.task(domain.Task{Title: "slipping", ProjectID: project.ID, Status: "in_progress", PredictedDelayProbability: 0.95})

	summary, err := env.eng.GenerateNudges(env.ctx, GenerateOptions{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if summary.Created != 1 {
		t.Fatalf("expected one nudge, got %+v", summary)
	}
	nudges, err := env.repo.RecentNudges(env.ctx, day(-1))
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	actions, err := env.repo.NudgeActions(env.ctx, nudges[0].ID)
	if err != nil {
		t.Fatalf("actions: %v", err)
	}
	if len(actions) != 2 {
		t.Fatalf("expected two suggested actions, got %+v", actions)
	}
	for _, a := range actions {
		if !a.IsAutomatable {
			t.Fatalf("deadline and reassignment actions are automatable, got %+v", a)
		}
	}
}

func TestGenerateNudgesCapsBatch(t *testing.T) {
	env := newTestEnv(t)
	pm := env.person(domain.Person{Name: "PM"})
	project := env.project(domain.Project{Name: "Atlas", PMID: pm.ID})
	for i := 0; i < 6; i++ {
		env.task(domain.Task{Title: "slipping", ProjectID: project.ID, Status: "in_progress", PredictedDelayProbability: 0.9})
	}

	summary, err := env.eng.GenerateNudges(env.ctx, GenerateOptions{MaxNudges: 3})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if summary.AfterDeduplication > 3 || summary.Created > 3 {
		t.Fatalf("expected the cap honored, got %+v", summary)
	}
}
