package scheduler

import (
	"context"
	"testing"
	"time"

	"planwise/internal/domain"
	"planwise/internal/repo"
	"planwise/internal/store"
)

// testNow is a Monday morning; every test date is relative to it.
var testNow = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	t    *testing.T
	ctx  context.Context
	repo repo.Repo
	eng  Engine
}

func newTestEnv(t *testing.T) *testEnv {
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
	r := repo.Repo{Store: s}
	eng := New(r, nil, nil)
	eng.Now = func() time.Time { return testNow }
	return &testEnv{t: t, ctx: context.Background(), repo: r, eng: eng}
}

func day(offset int) time.Time {
	return time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

func ptr(v float64) *float64 { return &v }

func (env *testEnv) project(p domain.Project) domain.Project {
	env.t.Helper()
	created, err := env.repo.CreateProject(env.ctx, p)
	if err != nil {
		env.t.Fatalf("create project: %v", err)
	}
	return created
}

func (env *testEnv) customer(c domain.Customer) domain.Customer {
	env.t.Helper()
	created, err := env.repo.CreateCustomer(env.ctx, c)
	if err != nil {
		env.t.Fatalf("create customer: %v", err)
	}
	return created
}

func (env *testEnv) person(p domain.Person) domain.Person {
	env.t.Helper()
	created, err := env.repo.CreatePerson(env.ctx, p)
	if err != nil {
		env.t.Fatalf("create person: %v", err)
	}
	return created
}

func (env *testEnv) skill(name string) domain.Skill {
	env.t.Helper()
	created, err := env.repo.CreateSkill(env.ctx, domain.Skill{Name: name})
	if err != nil {
		env.t.Fatalf("create skill: %v", err)
	}
	return created
}

func (env *testEnv) task(t domain.Task) domain.Task {
	env.t.Helper()
	created, err := env.repo.CreateTask(env.ctx, t)
	if err != nil {
		env.t.Fatalf("create task: %v", err)
	}
	return created
}

func (env *testEnv) assignment(a domain.Assignment) domain.Assignment {
	env.t.Helper()
	created, err := env.repo.CreateAssignment(env.ctx, a)
	if err != nil {
		env.t.Fatalf("create assignment: %v", err)
	}
	return created
}

func (env *testEnv) sprint(s domain.Sprint) domain.Sprint {
	env.t.Helper()
	created, err := env.repo.CreateSprint(env.ctx, s)
	if err != nil {
		env.t.Fatalf("create sprint: %v", err)
	}
	return created
}

func (env *testEnv) requirement(taskID, skillID string, min, preferred int, mandatory bool) {
	env.t.Helper()
	err := env.repo.AddRequirement(env.ctx, taskID, skillID, domain.SkillRequirement{
		MinimumProficiency:   min,
		PreferredProficiency: preferred,
		IsMandatory:          mandatory,
	})
	if err != nil {
		env.t.Fatalf("add requirement: %v", err)
	}
}

func (env *testEnv) personSkill(personID, skillID string, level int) {
	env.t.Helper()
	err := env.repo.AddPersonSkill(env.ctx, personID, skillID, domain.PersonSkill{ProficiencyLevel: level})
	if err != nil {
		env.t.Fatalf("add person skill: %v", err)
	}
}

func (env *testEnv) participant(sprintID, personID string, capacity float64) {
	env.t.Helper()
	if err := env.repo.AddParticipant(env.ctx, sprintID, personID, capacity); err != nil {
		env.t.Fatalf("add participant: %v", err)
	}
}

func (env *testEnv) sprintProject(sprintID, projectID string) {
	env.t.Helper()
	if err := env.repo.AddSprintProject(env.ctx, sprintID, projectID); err != nil {
		env.t.Fatalf("add sprint project: %v", err)
	}
}

func (env *testEnv) blocker(blockerID, blockedID string) {
	env.t.Helper()
	if err := env.repo.AddBlocker(env.ctx, blockerID, blockedID, "hard"); err != nil {
		env.t.Fatalf("add blocker: %v", err)
	}
}
