package scheduler

import (
	"testing"

	"planwise/internal/domain"
)

func TestFullyQualifiedPersonScoresHundred(t *testing.T) {
	env := newTestEnv(t)
	p := env.person(domain.Person{Name: "Mira"})
	goLang := env.skill("go")
	sqlSkill := env.skill("sql")
	task := env.task(domain.Task{Title: "build ingest", Status: "todo"})
	env.requirement(task.ID, goLang.ID, 3, 0, true)
	env.requirement(task.ID, sqlSkill.ID, 2, 0, false)
	env.personSkill(p.ID, goLang.ID, 4)
	env.personSkill(p.ID, sqlSkill.ID, 2)

	report, err := env.eng.MatchPersonToTask(env.ctx, task.ID, p.ID)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if report.Score != 100 {
		t.Fatalf("expected score 100, got %v", report.Score)
	}
	if report.Recommendation != "excellent" {
		t.Fatalf("expected excellent, got %s", report.Recommendation)
	}
	if len(report.Missing) != 0 || len(report.BelowRequired) != 0 {
		t.Fatalf("expected no issues, got missing=%d below=%d", len(report.Missing), len(report.BelowRequired))
	}
	if report.Availability != 100 {
		t.Fatalf("expected full availability, got %v", report.Availability)
	}
}

func TestMandatoryGapOutweighsOptional(t *testing.T) {
	env := newTestEnv(t)
	goLang := env.skill("go")
	k8s := env.skill("kubernetes")
	task := env.task(domain.Task{Title: "deploy", Status: "todo"})
	env.requirement(task.ID, goLang.ID, 3, 0, true)
	env.requirement(task.ID, k8s.ID, 3, 0, false)

	missingMandatory := env.person(domain.Person{Name: "A"})
	env.personSkill(missingMandatory.ID, k8s.ID, 4)
	missingOptional := env.person(domain.Person{Name: "B"})
	env.personSkill(missingOptional.ID, goLang.ID, 4)

	a, err := env.eng.MatchPersonToTask(env.ctx, task.ID, missingMandatory.ID)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	b, err := env.eng.MatchPersonToTask(env.ctx, task.ID, missingOptional.ID)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if a.Score >= b.Score {
		t.Fatalf("missing a mandatory skill (%v) should score below missing an optional one (%v)", a.Score, b.Score)
	}
	if len(a.Missing) != 1 {
		t.Fatalf("expected the mandatory gap reported as missing, got %+v", a.Missing)
	}
}

func TestBelowRequiredEarnsPartialCredit(t *testing.T) {
	env := newTestEnv(t)
	goLang := env.skill("go")
	task := env.task(domain.Task{Title: "refactor", Status: "todo"})
	env.requirement(task.ID, goLang.ID, 4, 0, true)

	p := env.person(domain.Person{Name: "Junior"})
	env.personSkill(p.ID, goLang.ID, 2)

	report, err := env.eng.MatchPersonToTask(env.ctx, task.ID, p.ID)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	// half credit scaled by 2/4 of the bar
	if report.Score != 25 {
		t.Fatalf("expected 25, got %v", report.Score)
	}
	if len(report.BelowRequired) != 1 {
		t.Fatalf("expected one below-required entry, got %+v", report.BelowRequired)
	}
}

func TestNoRequirementsMatchesEveryone(t *testing.T) {
	env := newTestEnv(t)
	p := env.person(domain.Person{Name: "Anyone"})
	task := env.task(domain.Task{Title: "triage", Status: "todo"})

	report, err := env.eng.MatchPersonToTask(env.ctx, task.ID, p.ID)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if report.Score != 100 {
		t.Fatalf("expected 100 for a task with no requirements, got %v", report.Score)
	}
}

func TestAvailabilityReflectsActiveAssignments(t *testing.T) {
	env := newTestEnv(t)
	p := env.person(domain.Person{Name: "Busy"})
	task := env.task(domain.Task{Title: "anything", Status: "todo"})
	env.assignment(domain.Assignment{PersonID: p.ID, AllocationPercent: 60, StartDate: day(0), EndDate: day(30)})
	env.assignment(domain.Assignment{PersonID: p.ID, AllocationPercent: 70, StartDate: day(0), EndDate: day(30)})

	report, err := env.eng.MatchPersonToTask(env.ctx, task.ID, p.ID)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if report.Availability != 0 {
		t.Fatalf("expected availability clamped to 0, got %v", report.Availability)
	}
}

func TestBestMatchesRanksByScoreThenAvailability(t *testing.T) {
	env := newTestEnv(t)
	goLang := env.skill("go")
	task := env.task(domain.Task{Title: "service", Status: "todo"})
	env.requirement(task.ID, goLang.ID, 3, 0, true)

	strong := env.person(domain.Person{Name: "Strong"})
	env.personSkill(strong.ID, goLang.ID, 4)
	strongBusy := env.person(domain.Person{Name: "StrongBusy"})
	env.personSkill(strongBusy.ID, goLang.ID, 4)
	env.assignment(domain.Assignment{PersonID: strongBusy.ID, AllocationPercent: 80, StartDate: day(0), EndDate: day(30)})
	weak := env.person(domain.Person{Name: "Weak"})
	env.personSkill(weak.ID, goLang.ID, 1)

	matches, err := env.eng.BestMatches(env.ctx, task.ID, 10, 0)
	if err != nil {
		t.Fatalf("best matches: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(matches))
	}
	if matches[0].PersonID != strong.ID || matches[1].PersonID != strongBusy.ID {
		t.Fatalf("expected score then availability ordering, got %s, %s", matches[0].PersonName, matches[1].PersonName)
	}

	filtered, err := env.eng.BestMatches(env.ctx, task.ID, 10, 50)
	if err != nil {
		t.Fatalf("best matches: %v", err)
	}
	for _, m := range filtered {
		if m.Score < 50 {
			t.Fatalf("minScore filter leaked %v", m.Score)
		}
	}
}

func TestSkillGapsSeverity(t *testing.T) {
	env := newTestEnv(t)
	rust := env.skill("rust")
	python := env.skill("python")

	for i := 0; i < 6; i++ {
		task := env.task(domain.Task{Title: "rust work", Status: "todo"})
		env.requirement(task.ID, rust.ID, 4, 0, true)
	}
	covered := env.task(domain.Task{Title: "python work", Status: "todo"})
	env.requirement(covered.ID, python.ID, 2, 0, true)
	doneTask := env.task(domain.Task{Title: "shipped", Status: "done"})
	env.requirement(doneTask.ID, rust.ID, 4, 0, true)

	p := env.person(domain.Person{Name: "Pythonista"})
	env.personSkill(p.ID, python.ID, 3)

	gaps, err := env.eng.SkillGaps(env.ctx)
	if err != nil {
		t.Fatalf("gaps: %v", err)
	}
	if len(gaps) != 2 {
		t.Fatalf("expected 2 gaps, got %d", len(gaps))
	}
	if gaps[0].SkillID != rust.ID || gaps[0].Severity != "critical" {
		t.Fatalf("expected rust critical first, got %+v", gaps[0])
	}
	if gaps[0].TaskCount != 6 {
		t.Fatalf("finished tasks must not count, got %d", gaps[0].TaskCount)
	}
	if gaps[1].SkillID != python.ID || gaps[1].Severity != "low" {
		t.Fatalf("expected python low, got %+v", gaps[1])
	}
}
