// Package repo is the typed facade over the entity store. It decodes
// envelopes into domain records, validates shape at the boundary, and
// exposes the accessors the schedulers consume.
package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"planwise/internal/domain"
	"planwise/internal/store"
)

type Repo struct {
	Store store.Store
}

var ErrNotFound = store.ErrNotFound

func decodeProject(e store.Entity) (domain.Project, error) {
	var p domain.Project
	if err := json.Unmarshal(e.Data, &p); err != nil {
		return p, fmt.Errorf("decode project %s: %w", e.ID, err)
	}
	p.ID, p.Status, p.Version = e.ID, e.Status, e.Version
	return p, nil
}

func decodeCustomer(e store.Entity) (domain.Customer, error) {
	var c domain.Customer
	if err := json.Unmarshal(e.Data, &c); err != nil {
		return c, fmt.Errorf("decode customer %s: %w", e.ID, err)
	}
	c.ID, c.Status, c.Version = e.ID, e.Status, e.Version
	return c, nil
}

func decodePerson(e store.Entity) (domain.Person, error) {
	var p domain.Person
	if err := json.Unmarshal(e.Data, &p); err != nil {
		return p, fmt.Errorf("decode person %s: %w", e.ID, err)
	}
	p.ID, p.Status, p.Version = e.ID, e.Status, e.Version
	return p, nil
}

func decodeSkill(e store.Entity) (domain.Skill, error) {
	var s domain.Skill
	if err := json.Unmarshal(e.Data, &s); err != nil {
		return s, fmt.Errorf("decode skill %s: %w", e.ID, err)
	}
	s.ID, s.Status, s.Version = e.ID, e.Status, e.Version
	return s, nil
}

func decodeTask(e store.Entity) (domain.Task, error) {
	var t domain.Task
	if err := json.Unmarshal(e.Data, &t); err != nil {
		return t, fmt.Errorf("decode task %s: %w", e.ID, err)
	}
	t.ID, t.Status, t.Version = e.ID, e.Status, e.Version
	return t, nil
}

func decodeAssignment(e store.Entity) (domain.Assignment, error) {
	var a domain.Assignment
	if err := json.Unmarshal(e.Data, &a); err != nil {
		return a, fmt.Errorf("decode assignment %s: %w", e.ID, err)
	}
	a.ID, a.Status, a.Version = e.ID, e.Status, e.Version
	if a.AllocationPercent < 0 {
		return a, fmt.Errorf("assignment %s: negative allocation", e.ID)
	}
	return a, nil
}

func decodeSprint(e store.Entity) (domain.Sprint, error) {
	var s domain.Sprint
	if err := json.Unmarshal(e.Data, &s); err != nil {
		return s, fmt.Errorf("decode sprint %s: %w", e.ID, err)
	}
	s.ID, s.Status, s.Version = e.ID, e.Status, e.Version
	return s, nil
}

func decodeSprintTask(e store.Entity) (domain.SprintTask, error) {
	var s domain.SprintTask
	if err := json.Unmarshal(e.Data, &s); err != nil {
		return s, fmt.Errorf("decode sprint task %s: %w", e.ID, err)
	}
	s.ID, s.Status, s.Version = e.ID, e.Status, e.Version
	return s, nil
}

func decodeProfile(e store.Entity) (domain.ProductivityProfile, error) {
	var p domain.ProductivityProfile
	if err := json.Unmarshal(e.Data, &p); err != nil {
		return p, fmt.Errorf("decode productivity profile %s: %w", e.ID, err)
	}
	p.ID, p.Status, p.Version = e.ID, e.Status, e.Version
	return p, nil
}

func decodeNudge(e store.Entity) (domain.Nudge, error) {
	var n domain.Nudge
	if err := json.Unmarshal(e.Data, &n); err != nil {
		return n, fmt.Errorf("decode nudge %s: %w", e.ID, err)
	}
	n.ID, n.Status, n.Version = e.ID, e.Status, e.Version
	n.CreatedAt = e.CreatedAt
	return n, nil
}

func (r Repo) Projects(ctx context.Context, status string) ([]domain.Project, error) {
	entities, err := r.Store.EntitiesByKind(ctx, domain.KindProject, status)
	if err != nil {
		return nil, err
	}
	res := make([]domain.Project, 0, len(entities))
	for _, e := range entities {
		p, err := decodeProject(e)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, nil
}

func (r Repo) Project(ctx context.Context, id string) (domain.Project, error) {
	e, err := r.Store.Entity(ctx, id)
	if err != nil {
		return domain.Project{}, err
	}
	if e.Kind != domain.KindProject {
		return domain.Project{}, fmt.Errorf("entity %s is a %s, not a project: %w", id, e.Kind, ErrNotFound)
	}
	return decodeProject(e)
}

func (r Repo) Customer(ctx context.Context, id string) (domain.Customer, error) {
	e, err := r.Store.Entity(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}
	if e.Kind != domain.KindCustomer {
		return domain.Customer{}, fmt.Errorf("entity %s is a %s, not a customer: %w", id, e.Kind, ErrNotFound)
	}
	return decodeCustomer(e)
}

func (r Repo) People(ctx context.Context, status string) ([]domain.Person, error) {
	entities, err := r.Store.EntitiesByKind(ctx, domain.KindPerson, status)
	if err != nil {
		return nil, err
	}
	res := make([]domain.Person, 0, len(entities))
	for _, e := range entities {
		p, err := decodePerson(e)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, nil
}

func (r Repo) Person(ctx context.Context, id string) (domain.Person, error) {
	e, err := r.Store.Entity(ctx, id)
	if err != nil {
		return domain.Person{}, err
	}
	if e.Kind != domain.KindPerson {
		return domain.Person{}, fmt.Errorf("entity %s is a %s, not a person: %w", id, e.Kind, ErrNotFound)
	}
	return decodePerson(e)
}

func (r Repo) Task(ctx context.Context, id string) (domain.Task, error) {
	e, err := r.Store.Entity(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}
	if e.Kind != domain.KindTask {
		return domain.Task{}, fmt.Errorf("entity %s is a %s, not a task: %w", id, e.Kind, ErrNotFound)
	}
	return decodeTask(e)
}

func (r Repo) Tasks(ctx context.Context, status string) ([]domain.Task, error) {
	entities, err := r.Store.EntitiesByKind(ctx, domain.KindTask, status)
	if err != nil {
		return nil, err
	}
	res := make([]domain.Task, 0, len(entities))
	for _, e := range entities {
		t, err := decodeTask(e)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, nil
}

// ProjectTasks resolves a project's tasks through project_has_task links.
func (r Repo) ProjectTasks(ctx context.Context, projectID string) ([]domain.Task, error) {
	linked, err := r.Store.Linked(ctx, projectID, domain.LinkHasTask)
	if err != nil {
		return nil, err
	}
	res := make([]domain.Task, 0, len(linked))
	for _, l := range linked {
		t, err := decodeTask(l.Entity)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, nil
}

// TaskRequirements resolves a task's skill requirements with link payloads.
func (r Repo) TaskRequirements(ctx context.Context, taskID string) ([]domain.SkillRequirement, error) {
	linked, err := r.Store.Linked(ctx, taskID, domain.LinkRequiresSkill)
	if err != nil {
		return nil, err
	}
	res := make([]domain.SkillRequirement, 0, len(linked))
	for _, l := range linked {
		var req domain.SkillRequirement
		if err := json.Unmarshal(l.LinkData, &req); err != nil {
			return nil, fmt.Errorf("decode requirement on task %s: %w", taskID, err)
		}
		skill, err := decodeSkill(l.Entity)
		if err != nil {
			return nil, err
		}
		req.SkillID = skill.ID
		req.SkillName = skill.Name
		if req.MinimumProficiency < 1 || req.MinimumProficiency > 5 {
			return nil, fmt.Errorf("requirement on task %s: proficiency %d out of range", taskID, req.MinimumProficiency)
		}
		res = append(res, req)
	}
	return res, nil
}

// PersonSkills returns a person's skills keyed by skill ID.
func (r Repo) PersonSkills(ctx context.Context, personID string) (map[string]domain.PersonSkill, error) {
	linked, err := r.Store.Linked(ctx, personID, domain.LinkHasSkill)
	if err != nil {
		return nil, err
	}
	res := make(map[string]domain.PersonSkill, len(linked))
	for _, l := range linked {
		var ps domain.PersonSkill
		if err := json.Unmarshal(l.LinkData, &ps); err != nil {
			return nil, fmt.Errorf("decode skill of person %s: %w", personID, err)
		}
		skill, err := decodeSkill(l.Entity)
		if err != nil {
			return nil, err
		}
		ps.SkillID = skill.ID
		ps.SkillName = skill.Name
		res[skill.ID] = ps
	}
	return res, nil
}

func (r Repo) Assignments(ctx context.Context, status string) ([]domain.Assignment, error) {
	entities, err := r.Store.EntitiesByKind(ctx, domain.KindAssignment, status)
	if err != nil {
		return nil, err
	}
	res := make([]domain.Assignment, 0, len(entities))
	for _, e := range entities {
		a, err := decodeAssignment(e)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, nil
}

func (r Repo) Assignment(ctx context.Context, id string) (domain.Assignment, error) {
	e, err := r.Store.Entity(ctx, id)
	if err != nil {
		return domain.Assignment{}, err
	}
	if e.Kind != domain.KindAssignment {
		return domain.Assignment{}, fmt.Errorf("entity %s is a %s, not an assignment: %w", id, e.Kind, ErrNotFound)
	}
	return decodeAssignment(e)
}

// PersonAssignments filters assignments by person and status.
func (r Repo) PersonAssignments(ctx context.Context, personID, status string) ([]domain.Assignment, error) {
	all, err := r.Assignments(ctx, status)
	if err != nil {
		return nil, err
	}
	var res []domain.Assignment
	for _, a := range all {
		if a.PersonID == personID {
			res = append(res, a)
		}
	}
	return res, nil
}

func (r Repo) Sprint(ctx context.Context, id string) (domain.Sprint, error) {
	e, err := r.Store.Entity(ctx, id)
	if err != nil {
		return domain.Sprint{}, err
	}
	if e.Kind != domain.KindSprint {
		return domain.Sprint{}, fmt.Errorf("entity %s is a %s, not a sprint: %w", id, e.Kind, ErrNotFound)
	}
	return decodeSprint(e)
}

func (r Repo) Sprints(ctx context.Context, status string) ([]domain.Sprint, error) {
	entities, err := r.Store.EntitiesByKind(ctx, domain.KindSprint, status)
	if err != nil {
		return nil, err
	}
	res := make([]domain.Sprint, 0, len(entities))
	for _, e := range entities {
		s, err := decodeSprint(e)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, nil
}

// SprintParticipants resolves sprint participants with their planned
// capacity from the link payload.
func (r Repo) SprintParticipants(ctx context.Context, sprintID string) ([]domain.Participant, error) {
	linked, err := r.Store.Linked(ctx, sprintID, domain.LinkHasParticipant)
	if err != nil {
		return nil, err
	}
	res := make([]domain.Participant, 0, len(linked))
	for _, l := range linked {
		var part domain.Participant
		if err := json.Unmarshal(l.LinkData, &part); err != nil {
			return nil, fmt.Errorf("decode participant of sprint %s: %w", sprintID, err)
		}
		person, err := decodePerson(l.Entity)
		if err != nil {
			return nil, err
		}
		part.PersonID = person.ID
		part.Name = person.Name
		res = append(res, part)
	}
	return res, nil
}

func (r Repo) SprintProjects(ctx context.Context, sprintID string) ([]domain.Project, error) {
	linked, err := r.Store.Linked(ctx, sprintID, domain.LinkIncludesProject)
	if err != nil {
		return nil, err
	}
	res := make([]domain.Project, 0, len(linked))
	for _, l := range linked {
		p, err := decodeProject(l.Entity)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, nil
}

func (r Repo) SprintTasks(ctx context.Context, sprintID string) ([]domain.SprintTask, error) {
	entities, err := r.Store.EntitiesByKind(ctx, domain.KindSprintTask, "")
	if err != nil {
		return nil, err
	}
	var res []domain.SprintTask
	for _, e := range entities {
		st, err := decodeSprintTask(e)
		if err != nil {
			return nil, err
		}
		if st.SprintID == sprintID {
			res = append(res, st)
		}
	}
	return res, nil
}

// TaskBlockers returns the unfinished-or-not tasks blocking the given
// task, with the dependency type from the link payload.
func (r Repo) TaskBlockers(ctx context.Context, taskID string) ([]domain.Blocker, error) {
	linked, err := r.Store.Backlinks(ctx, taskID, domain.LinkBlocks)
	if err != nil {
		return nil, err
	}
	res := make([]domain.Blocker, 0, len(linked))
	for _, l := range linked {
		var b domain.Blocker
		if err := json.Unmarshal(l.LinkData, &b); err != nil {
			return nil, fmt.Errorf("decode blocker of task %s: %w", taskID, err)
		}
		b.TaskID = l.Entity.ID
		b.TaskStatus = l.Entity.Status
		res = append(res, b)
	}
	return res, nil
}

// ProjectDependents counts projects that depend on the given project.
func (r Repo) ProjectDependents(ctx context.Context, projectID string) (int, error) {
	linked, err := r.Store.Backlinks(ctx, projectID, domain.LinkDependsOn)
	if err != nil {
		return 0, err
	}
	return len(linked), nil
}

func (r Repo) Profiles(ctx context.Context) ([]domain.ProductivityProfile, error) {
	entities, err := r.Store.EntitiesByKind(ctx, domain.KindProductivityProfile, "")
	if err != nil {
		return nil, err
	}
	res := make([]domain.ProductivityProfile, 0, len(entities))
	for _, e := range entities {
		p, err := decodeProfile(e)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, nil
}

// ProfileFor finds the profile for a person and project type.
func (r Repo) ProfileFor(ctx context.Context, personID, projectType string) (domain.ProductivityProfile, error) {
	profiles, err := r.Profiles(ctx)
	if err != nil {
		return domain.ProductivityProfile{}, err
	}
	for _, p := range profiles {
		if p.PersonID == personID && p.ProjectType == projectType {
			return p, nil
		}
	}
	return domain.ProductivityProfile{}, ErrNotFound
}

func decodeNudgeAction(e store.Entity) (domain.NudgeAction, error) {
	var a domain.NudgeAction
	if err := json.Unmarshal(e.Data, &a); err != nil {
		return a, fmt.Errorf("decode nudge action %s: %w", e.ID, err)
	}
	a.ID, a.Status, a.Version = e.ID, e.Status, e.Version
	return a, nil
}

// NudgeActions resolves the suggested actions linked to a nudge.
func (r Repo) NudgeActions(ctx context.Context, nudgeID string) ([]domain.NudgeAction, error) {
	linked, err := r.Store.Linked(ctx, nudgeID, domain.LinkHasAction)
	if err != nil {
		return nil, err
	}
	res := make([]domain.NudgeAction, 0, len(linked))
	for _, l := range linked {
		a, err := decodeNudgeAction(l.Entity)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, nil
}

// RecentNudges returns nudges created at or after the cutoff.
func (r Repo) RecentNudges(ctx context.Context, since time.Time) ([]domain.Nudge, error) {
	entities, err := r.Store.EntitiesByKind(ctx, domain.KindNudge, "")
	if err != nil {
		return nil, err
	}
	var res []domain.Nudge
	for _, e := range entities {
		if e.CreatedAt.Before(since) {
			continue
		}
		n, err := decodeNudge(e)
		if err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	return res, nil
}
