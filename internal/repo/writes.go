package repo

import (
	"context"
	"errors"
	"time"

	"planwise/internal/domain"
)

func statusOr(status, fallback string) string {
	if status == "" {
		return fallback
	}
	return status
}

func (r Repo) CreateProject(ctx context.Context, p domain.Project) (domain.Project, error) {
	if err := validateProject(p); err != nil {
		return domain.Project{}, err
	}
	e, err := r.Store.CreateEntity(ctx, domain.KindProject, statusOr(p.Status, "active"), p)
	if err != nil {
		return domain.Project{}, err
	}
	return decodeProject(e)
}

func (r Repo) CreateCustomer(ctx context.Context, c domain.Customer) (domain.Customer, error) {
	if err := validateCustomer(c); err != nil {
		return domain.Customer{}, err
	}
	e, err := r.Store.CreateEntity(ctx, domain.KindCustomer, statusOr(c.Status, "active"), c)
	if err != nil {
		return domain.Customer{}, err
	}
	return decodeCustomer(e)
}

func (r Repo) CreatePerson(ctx context.Context, p domain.Person) (domain.Person, error) {
	if err := validatePerson(p); err != nil {
		return domain.Person{}, err
	}
	e, err := r.Store.CreateEntity(ctx, domain.KindPerson, statusOr(p.Status, "active"), p)
	if err != nil {
		return domain.Person{}, err
	}
	return decodePerson(e)
}

func (r Repo) CreateSkill(ctx context.Context, s domain.Skill) (domain.Skill, error) {
	if s.Name == "" {
		return domain.Skill{}, errors.New("skill name required")
	}
	e, err := r.Store.CreateEntity(ctx, domain.KindSkill, statusOr(s.Status, "active"), s)
	if err != nil {
		return domain.Skill{}, err
	}
	return decodeSkill(e)
}

// CreateTask stores the task and links it to its project when set.
func (r Repo) CreateTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	if err := validateTask(t); err != nil {
		return domain.Task{}, err
	}
	e, err := r.Store.CreateEntity(ctx, domain.KindTask, statusOr(t.Status, "backlog"), t)
	if err != nil {
		return domain.Task{}, err
	}
	created, err := decodeTask(e)
	if err != nil {
		return domain.Task{}, err
	}
	if t.ProjectID != "" {
		if err := r.Store.CreateLink(ctx, t.ProjectID, created.ID, domain.LinkHasTask, nil); err != nil {
			return domain.Task{}, err
		}
	}
	return created, nil
}

func (r Repo) CreateAssignment(ctx context.Context, a domain.Assignment) (domain.Assignment, error) {
	if err := validateAssignment(a); err != nil {
		return domain.Assignment{}, err
	}
	e, err := r.Store.CreateEntity(ctx, domain.KindAssignment, statusOr(a.Status, "active"), a)
	if err != nil {
		return domain.Assignment{}, err
	}
	return decodeAssignment(e)
}

func (r Repo) CreateSprint(ctx context.Context, s domain.Sprint) (domain.Sprint, error) {
	if s.Name == "" {
		return domain.Sprint{}, errors.New("sprint name required")
	}
	e, err := r.Store.CreateEntity(ctx, domain.KindSprint, statusOr(s.Status, "planning"), s)
	if err != nil {
		return domain.Sprint{}, err
	}
	return decodeSprint(e)
}

func (r Repo) CreateSprintTask(ctx context.Context, st domain.SprintTask) (domain.SprintTask, error) {
	if st.SprintID == "" || st.TaskID == "" {
		return domain.SprintTask{}, errors.New("sprint task needs sprint_id and task_id")
	}
	e, err := r.Store.CreateEntity(ctx, domain.KindSprintTask, statusOr(st.Status, "planned"), st)
	if err != nil {
		return domain.SprintTask{}, err
	}
	return decodeSprintTask(e)
}

func (r Repo) AddRequirement(ctx context.Context, taskID, skillID string, req domain.SkillRequirement) error {
	if err := validateRequirement(req); err != nil {
		return err
	}
	return r.Store.CreateLink(ctx, taskID, skillID, domain.LinkRequiresSkill, req)
}

func (r Repo) AddPersonSkill(ctx context.Context, personID, skillID string, ps domain.PersonSkill) error {
	if err := validatePersonSkill(ps); err != nil {
		return err
	}
	return r.Store.CreateLink(ctx, personID, skillID, domain.LinkHasSkill, ps)
}

func (r Repo) AddParticipant(ctx context.Context, sprintID, personID string, capacityHours float64) error {
	if capacityHours < 0 {
		return errors.New("participant capacity must not be negative")
	}
	return r.Store.CreateLink(ctx, sprintID, personID, domain.LinkHasParticipant,
		domain.Participant{PlannedCapacityHours: capacityHours})
}

func (r Repo) AddSprintProject(ctx context.Context, sprintID, projectID string) error {
	return r.Store.CreateLink(ctx, sprintID, projectID, domain.LinkIncludesProject, nil)
}

// AddBlocker records that blockerID must finish before blockedID.
func (r Repo) AddBlocker(ctx context.Context, blockerID, blockedID, dependencyType string) error {
	if dependencyType == "" {
		dependencyType = "hard"
	}
	return r.Store.CreateLink(ctx, blockerID, blockedID, domain.LinkBlocks,
		domain.Blocker{DependencyType: dependencyType})
}

// AddProjectDependency records that fromID depends on toID.
func (r Repo) AddProjectDependency(ctx context.Context, fromID, toID string) error {
	return r.Store.CreateLink(ctx, fromID, toID, domain.LinkDependsOn, nil)
}

// SetProjectPriority persists a calculated priority with its breakdown.
func (r Repo) SetProjectPriority(ctx context.Context, p domain.Project, score float64, components map[string]float64, at time.Time) error {
	_, err := r.Store.UpdateEntity(ctx, p.ID, p.Version, map[string]any{
		"priority_score":         score,
		"priority_components":    components,
		"priority_calculated_at": at.UTC().Format(time.RFC3339),
	})
	return err
}

// SaveProfile creates the profile on first observation, otherwise
// patches the existing one.
func (r Repo) SaveProfile(ctx context.Context, p domain.ProductivityProfile) (domain.ProductivityProfile, error) {
	if p.PersonID == "" || p.ProjectType == "" {
		return domain.ProductivityProfile{}, errors.New("profile needs person_id and project_type")
	}
	if p.ID == "" {
		e, err := r.Store.CreateEntity(ctx, domain.KindProductivityProfile, "active", p)
		if err != nil {
			return domain.ProductivityProfile{}, err
		}
		return decodeProfile(e)
	}
	e, err := r.Store.UpdateEntity(ctx, p.ID, p.Version, map[string]any{
		"velocity_factor":           p.VelocityFactor,
		"estimation_accuracy":       p.EstimationAccuracy,
		"tasks_completed_count":     p.TasksCompletedCount,
		"avg_task_completion_hours": p.AvgTaskCompletionHrs,
		"last_updated":              p.LastUpdated.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return domain.ProductivityProfile{}, err
	}
	return decodeProfile(e)
}

func (r Repo) CreateNudge(ctx context.Context, n domain.Nudge) (domain.Nudge, error) {
	if n.RecipientID == "" || n.Type == "" {
		return domain.Nudge{}, errors.New("nudge needs recipient_id and type")
	}
	e, err := r.Store.CreateEntity(ctx, domain.KindNudge, statusOr(n.Status, "new"), n)
	if err != nil {
		return domain.Nudge{}, err
	}
	return decodeNudge(e)
}

// CreateNudgeAction stores a suggested action and links it to its nudge.
func (r Repo) CreateNudgeAction(ctx context.Context, a domain.NudgeAction) (domain.NudgeAction, error) {
	if a.NudgeID == "" || a.ActionType == "" {
		return domain.NudgeAction{}, errors.New("nudge action needs nudge_id and action_type")
	}
	e, err := r.Store.CreateEntity(ctx, domain.KindNudgeAction, "pending", a)
	if err != nil {
		return domain.NudgeAction{}, err
	}
	if err := r.Store.CreateLink(ctx, a.NudgeID, e.ID, domain.LinkHasAction, nil); err != nil {
		return domain.NudgeAction{}, err
	}
	act := a
	act.ID = e.ID
	act.Status = e.Status
	act.Version = e.Version
	return act, nil
}

// SetTaskStatus moves a task through its lifecycle.
func (r Repo) SetTaskStatus(ctx context.Context, t domain.Task, status string) (domain.Task, error) {
	e, err := r.Store.UpdateStatus(ctx, t.ID, t.Version, status)
	if err != nil {
		return domain.Task{}, err
	}
	return decodeTask(e)
}
