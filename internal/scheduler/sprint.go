package scheduler

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"planwise/internal/domain"
)

// PlannedTask is a scored candidate for a sprint.
type PlannedTask struct {
	TaskID         string  `json:"task_id"`
	Title          string  `json:"title"`
	ProjectID      string  `json:"project_id,omitempty"`
	AssigneeID     string  `json:"assignee_id,omitempty"`
	AssigneeName   string  `json:"assignee_name,omitempty"`
	EstimatedHours float64 `json:"estimated_hours"`
	Value          float64 `json:"value"`
	Risk           float64 `json:"risk"`
	SkillMatch     float64 `json:"skill_match"`
	Fit            float64 `json:"fit"`

	reqs []domain.SkillRequirement
}

type SprintRiskAssessment struct {
	Score   float64  `json:"score"`
	Factors []string `json:"factors,omitempty"`
}

type SprintRecommendation struct {
	SprintID      string               `json:"sprint_id"`
	CapacityHours float64              `json:"capacity_hours"`
	TargetHours   float64              `json:"target_hours"`
	PlannedHours  float64              `json:"planned_hours"`
	Selected      []PlannedTask        `json:"selected"`
	Alternatives  []PlannedTask        `json:"alternatives,omitempty"`
	LoadByPerson  map[string]float64   `json:"load_by_person,omitempty"`
	Risk          SprintRiskAssessment `json:"risk"`
	Reasoning     string               `json:"reasoning"`
}

type SprintHealth struct {
	SprintID                string             `json:"sprint_id"`
	Status                  string             `json:"status"`
	Score                   float64            `json:"score"`
	CompletionPercent       float64            `json:"completion_percent"`
	TasksTotal              int                `json:"tasks_total"`
	TasksCompleted          int                `json:"tasks_completed"`
	BlockedTasks            int                `json:"blocked_tasks"`
	AtRiskTasks             int                `json:"at_risk_tasks"`
	HoursCommitted          float64            `json:"hours_committed"`
	HoursCompleted          float64            `json:"hours_completed"`
	Utilization             map[string]float64 `json:"utilization,omitempty"`
	OverallocatedCount      int                `json:"overallocated_count"`
	PredictedCompletionRate float64            `json:"predicted_completion_rate"`
	PredictedEndDate        time.Time          `json:"predicted_end_date,omitempty"`
	Issues                  []string           `json:"issues,omitempty"`
}

// PlanSprint scores the backlog of the sprint's projects and greedily
// fills the target capacity with the best-fitting tasks. The plan is
// returned, not persisted; ApplySprintPlan commits it.
func (e Engine) PlanSprint(ctx context.Context, sprintID string) (SprintRecommendation, error) {
	sprint, err := e.Repo.Sprint(ctx, sprintID)
	if err != nil {
		return SprintRecommendation{}, err
	}
	participants, err := e.Repo.SprintParticipants(ctx, sprintID)
	if err != nil {
		return SprintRecommendation{}, err
	}
	cfg := e.Config.Sprint

	capacityByPerson := map[string]float64{}
	var capacity float64
	for _, p := range participants {
		c := p.PlannedCapacityHours
		if c == 0 {
			c = cfg.DefaultCapacity
		}
		capacityByPerson[p.PersonID] = c
		capacity += c
	}

	skillsByPerson := map[string]map[string]domain.PersonSkill{}
	for _, p := range participants {
		skills, err := e.Repo.PersonSkills(ctx, p.PersonID)
		if err != nil {
			return SprintRecommendation{}, err
		}
		skillsByPerson[p.PersonID] = skills
	}

	candidates, err := e.scoreCandidates(ctx, sprint, participants, skillsByPerson)
	if err != nil {
		return SprintRecommendation{}, err
	}

	rec := SprintRecommendation{
		SprintID:      sprintID,
		CapacityHours: capacity,
		TargetHours:   round1(capacity * cfg.TargetUtilization),
		LoadByPerson:  map[string]float64{},
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Fit > candidates[j].Fit })
	remaining := rec.TargetHours
	nameByPerson := map[string]string{}
	for _, p := range participants {
		nameByPerson[p.PersonID] = p.Name
	}
	for _, c := range candidates {
		if remaining <= 0 {
			rec.Alternatives = append(rec.Alternatives, c)
			continue
		}
		if c.Risk > cfg.MaxRisk || c.Value < cfg.MinValue {
			continue
		}
		if c.EstimatedHours > remaining*cfg.EffortTolerance {
			rec.Alternatives = append(rec.Alternatives, c)
			continue
		}
		assignee := e.placeTask(c, participants, skillsByPerson, capacityByPerson, rec.LoadByPerson)
		if assignee == "" {
			rec.Alternatives = append(rec.Alternatives, c)
			continue
		}
		c.AssigneeID = assignee
		c.AssigneeName = nameByPerson[assignee]
		rec.LoadByPerson[assignee] += c.EstimatedHours
		rec.PlannedHours += c.EstimatedHours
		remaining -= c.EstimatedHours
		rec.Selected = append(rec.Selected, c)
	}

	rec.Risk = e.assessPlanRisk(rec, capacityByPerson)
	rec.Reasoning = planReasoning(rec, len(candidates))
	return rec, nil
}

// scoreCandidates evaluates every schedulable task of the sprint's
// projects.
func (e Engine) scoreCandidates(ctx context.Context, sprint domain.Sprint, participants []domain.Participant, skillsByPerson map[string]map[string]domain.PersonSkill) ([]PlannedTask, error) {
	cfg := e.Config.Sprint
	projects, err := e.Repo.SprintProjects(ctx, sprint.ID)
	if err != nil {
		return nil, err
	}

	var res []PlannedTask
	for _, project := range projects {
		tasks, err := e.Repo.ProjectTasks(ctx, project.ID)
		if err != nil {
			return nil, err
		}
		priority := 50.0
		if project.PriorityScore != nil {
			priority = *project.PriorityScore
		}
		business := defaultScore(project.BusinessValue)

		for _, t := range tasks {
			if !domain.Schedulable(t.Status) {
				continue
			}
			effort := t.EstimatedHours
			if effort == 0 {
				effort = cfg.DefaultTaskHours
			}

			value := (priority + business) / 2
			if !t.DueDate.IsZero() {
				days := daysBetween(e.now(), t.DueDate)
				switch {
				case days <= 14:
					value += 30
				case days <= 30:
					value += 15
				}
			}
			value = clamp(value, 0, 100)

			risk, err := e.taskRisk(ctx, t)
			if err != nil {
				return nil, err
			}
			penalty := math.Abs(effort-cfg.IdealTaskHours) / cfg.IdealTaskHours * 10

			reqs, err := e.Repo.TaskRequirements(ctx, t.ID)
			if err != nil {
				return nil, err
			}
			skill := e.bestParticipantScore(reqs, participants, skillsByPerson)

			fit := 0.35*value + 0.25*(100-penalty) + 0.20*(100-risk) + 0.20*skill
			res = append(res, PlannedTask{
				TaskID:         t.ID,
				Title:          t.Title,
				ProjectID:      project.ID,
				EstimatedHours: effort,
				Value:          round1(value),
				Risk:           round1(risk),
				SkillMatch:     round1(skill),
				Fit:            round1(fit),
				reqs:           reqs,
			})
		}
	}
	return res, nil
}

// taskRisk combines predicted delay with unfinished hard blockers.
func (e Engine) taskRisk(ctx context.Context, t domain.Task) (float64, error) {
	risk := t.PredictedDelayProbability * 100
	blockers, err := e.Repo.TaskBlockers(ctx, t.ID)
	if err != nil {
		return 0, err
	}
	open := 0
	for _, b := range blockers {
		if b.DependencyType == "hard" && !domain.Done(b.TaskStatus) {
			open++
		}
	}
	depRisk := clamp(float64(open)*20, 0, 100)
	return math.Max(risk, depRisk), nil
}

// bestParticipantScore picks the strongest participant for the
// requirements. With none to check, the first participant serves at a
// workable default.
func (e Engine) bestParticipantScore(reqs []domain.SkillRequirement, participants []domain.Participant, skillsByPerson map[string]map[string]domain.PersonSkill) float64 {
	if len(participants) == 0 {
		return 0
	}
	if len(reqs) == 0 {
		return 70
	}
	best := 0.0
	for _, p := range participants {
		if s := replacementScore(reqs, skillsByPerson[p.PersonID]); s > best {
			best = s
		}
	}
	return best
}

// placeTask finds a participant with room under the per-person cap,
// preferring the best skill fit. Empty result means nobody has room.
func (e Engine) placeTask(c PlannedTask, participants []domain.Participant, skillsByPerson map[string]map[string]domain.PersonSkill, capacity, load map[string]float64) string {
	loadCap := e.Config.Sprint.PersonLoadCap
	ordered := make([]domain.Participant, len(participants))
	copy(ordered, participants)
	if len(c.reqs) > 0 {
		sort.SliceStable(ordered, func(i, j int) bool {
			return replacementScore(c.reqs, skillsByPerson[ordered[i].PersonID]) >
				replacementScore(c.reqs, skillsByPerson[ordered[j].PersonID])
		})
	}
	for _, p := range ordered {
		if load[p.PersonID]+c.EstimatedHours <= capacity[p.PersonID]*loadCap {
			return p.PersonID
		}
	}
	return ""
}

func (e Engine) assessPlanRisk(rec SprintRecommendation, capacity map[string]float64) SprintRiskAssessment {
	var assessment SprintRiskAssessment
	if len(rec.Selected) == 0 {
		return assessment
	}

	var riskSum float64
	unassigned := 0
	for _, t := range rec.Selected {
		riskSum += t.Risk
		if t.AssigneeID == "" {
			unassigned++
		}
	}
	avgRisk := riskSum / float64(len(rec.Selected))
	if avgRisk > 40 {
		assessment.Factors = append(assessment.Factors, fmt.Sprintf("average task risk is %.0f", avgRisk))
	}

	var minLoad, maxLoad float64
	first := true
	for person := range capacity {
		l := rec.LoadByPerson[person]
		if first || l < minLoad {
			minLoad = l
		}
		if first || l > maxLoad {
			maxLoad = l
		}
		first = false
	}
	imbalance := math.Min(30, (maxLoad-minLoad)/5)
	if imbalance >= 15 {
		assessment.Factors = append(assessment.Factors, fmt.Sprintf("load spread of %.0fh between members", maxLoad-minLoad))
	}
	if unassigned > 0 {
		assessment.Factors = append(assessment.Factors, fmt.Sprintf("%d selected tasks lack an assignee", unassigned))
	}

	assessment.Score = round1(clamp(avgRisk+imbalance+float64(unassigned)*10, 0, 100))
	return assessment
}

func planReasoning(rec SprintRecommendation, candidates int) string {
	return fmt.Sprintf("selected %d of %d candidate tasks filling %.0fh of the %.0fh target (%.0fh capacity), plan risk %.0f",
		len(rec.Selected), candidates, rec.PlannedHours, rec.TargetHours, rec.CapacityHours, rec.Risk.Score)
}

// ApplySprintPlan persists a recommendation as sprint tasks.
func (e Engine) ApplySprintPlan(ctx context.Context, rec SprintRecommendation) error {
	for _, t := range rec.Selected {
		_, err := e.Repo.CreateSprintTask(ctx, domain.SprintTask{
			SprintID:     rec.SprintID,
			TaskID:       t.TaskID,
			AssigneeID:   t.AssigneeID,
			PlannedHours: t.EstimatedHours,
		})
		if err != nil {
			return fmt.Errorf("apply plan for sprint %s: %w", rec.SprintID, err)
		}
	}
	return nil
}

// SprintHealthReport scores a running sprint on completion, blockage
// and allocation.
func (e Engine) SprintHealthReport(ctx context.Context, sprintID string) (SprintHealth, error) {
	sprint, err := e.Repo.Sprint(ctx, sprintID)
	if err != nil {
		return SprintHealth{}, err
	}
	sprintTasks, err := e.Repo.SprintTasks(ctx, sprintID)
	if err != nil {
		return SprintHealth{}, err
	}

	health := SprintHealth{SprintID: sprintID, Utilization: map[string]float64{}}
	if len(sprintTasks) == 0 {
		health.Status = "warning"
		health.Issues = append(health.Issues, "sprint has no tasks")
		return health, nil
	}

	loadByPerson := map[string]float64{}
	for _, st := range sprintTasks {
		t, err := e.Repo.Task(ctx, st.TaskID)
		if err != nil {
			return SprintHealth{}, err
		}
		hours := st.PlannedHours
		if hours == 0 {
			hours = t.EstimatedHours
		}
		health.TasksTotal++
		health.HoursCommitted += hours
		if st.AssigneeID != "" {
			loadByPerson[st.AssigneeID] += hours
		}

		if domain.Done(t.Status) {
			health.TasksCompleted++
			health.HoursCompleted += hours
			continue
		}
		blocked, err := e.hasOpenBlocker(ctx, t.ID)
		if err != nil {
			return SprintHealth{}, err
		}
		if blocked {
			health.BlockedTasks++
		}
		if t.PredictedDelayProbability > 0.7 {
			health.AtRiskTasks++
		}
	}
	health.CompletionPercent = round1(float64(health.TasksCompleted) / float64(health.TasksTotal) * 100)

	participants, err := e.Repo.SprintParticipants(ctx, sprintID)
	if err != nil {
		return SprintHealth{}, err
	}
	for _, p := range participants {
		capacity := p.PlannedCapacityHours
		if capacity == 0 {
			capacity = e.Config.Sprint.DefaultCapacity
		}
		utilization := round1(loadByPerson[p.PersonID] / capacity * 100)
		health.Utilization[p.PersonID] = utilization
		if utilization > 100 {
			health.OverallocatedCount++
		}
	}

	health.PredictedCompletionRate = 100
	elapsedDays := 0
	if !sprint.StartDate.IsZero() && !sprint.EndDate.IsZero() {
		totalDays := daysBetween(sprint.StartDate, sprint.EndDate)
		elapsedDays = daysBetween(sprint.StartDate, e.now())
		if totalDays > 0 && elapsedDays > 0 {
			timeProgress := float64(elapsedDays) / float64(totalDays) * 100
			rate := clamp(health.CompletionPercent/timeProgress*100, 0, 100)
			health.PredictedCompletionRate = round1(rate)
			if rate > 0 && rate < 100 {
				predictedDays := int(math.Ceil(float64(totalDays) * 100 / rate))
				health.PredictedEndDate = dateOnly(sprint.StartDate).AddDate(0, 0, predictedDays)
			}
		}
	}

	if health.BlockedTasks > 0 {
		health.Issues = append(health.Issues, fmt.Sprintf("%d tasks blocked by unfinished dependencies", health.BlockedTasks))
	}
	if health.AtRiskTasks > 0 {
		health.Issues = append(health.Issues, fmt.Sprintf("%d tasks predicted to slip", health.AtRiskTasks))
	}
	if health.OverallocatedCount > 0 {
		health.Issues = append(health.Issues, fmt.Sprintf("%d participants over capacity", health.OverallocatedCount))
	}
	if health.CompletionPercent < 20 && elapsedDays > 5 {
		health.Issues = append(health.Issues, "progress is behind schedule")
	}

	score := health.CompletionPercent -
		5*float64(health.BlockedTasks) -
		3*float64(health.AtRiskTasks) -
		10*float64(health.OverallocatedCount)
	health.Score = round1(clamp(score, 0, 100))
	switch {
	case health.Score >= 90:
		health.Status = "excellent"
	case health.Score >= 75:
		health.Status = "good"
	case health.Score >= 60:
		health.Status = "warning"
	case health.Score >= 40:
		health.Status = "at_risk"
	default:
		health.Status = "critical"
	}
	return health, nil
}

func (e Engine) hasOpenBlocker(ctx context.Context, taskID string) (bool, error) {
	blockers, err := e.Repo.TaskBlockers(ctx, taskID)
	if err != nil {
		return false, err
	}
	for _, b := range blockers {
		if b.DependencyType == "hard" && !domain.Done(b.TaskStatus) {
			return true, nil
		}
	}
	return false, nil
}
