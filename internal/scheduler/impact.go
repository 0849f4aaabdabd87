package scheduler

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"planwise/internal/domain"
	"planwise/internal/store"
)

// Scenario is the closed set of what-if simulations.
type Scenario interface{ isScenario() }

type LeaveScenario struct {
	PersonID  string
	Start     time.Time
	End       time.Time
	LeaveType string
}

type ScopeChangeScenario struct {
	ProjectID    string
	AddedHours   float64
	RemovedHours float64
}

type ResourceConflictScenario struct {
	PersonID string
}

func (LeaveScenario) isScenario()            {}
func (ScopeChangeScenario) isScenario()      {}
func (ResourceConflictScenario) isScenario() {}

type AffectedTask struct {
	TaskID         string  `json:"task_id"`
	Title          string  `json:"title"`
	PlannedHours   float64 `json:"planned_hours"`
	DelayDays      int     `json:"delay_days"`
	OnCriticalPath bool    `json:"on_critical_path,omitempty"`
}

type Alternative struct {
	PersonID     string  `json:"person_id"`
	Name         string  `json:"name"`
	MatchScore   float64 `json:"match_score"`
	Availability float64 `json:"availability"`
}

// ImpactReport is the outcome of a simulation. Fields not meaningful
// for the scenario stay zero.
type ImpactReport struct {
	ScenarioType     string                   `json:"scenario_type"`
	Level            string                   `json:"level"`
	AffectedTasks    []AffectedTask           `json:"affected_tasks,omitempty"`
	TotalDelayDays   int                      `json:"total_delay_days,omitempty"`
	AffectedHours    float64                  `json:"affected_hours,omitempty"`
	CostImpact       float64                  `json:"cost_impact,omitempty"`
	NetHours         float64                  `json:"net_hours,omitempty"`
	NewEndDate       time.Time                `json:"new_end_date,omitempty"`
	CapacityConflict bool                     `json:"capacity_conflict,omitempty"`
	ConflictCount    int                      `json:"conflict_count,omitempty"`
	Alternatives     map[string][]Alternative `json:"alternatives,omitempty"`
	Recommendations  []string                 `json:"recommendations,omitempty"`
}

// AnalyzeImpact simulates a scenario without mutating any state.
func (e Engine) AnalyzeImpact(ctx context.Context, s Scenario) (ImpactReport, error) {
	switch sc := s.(type) {
	case LeaveScenario:
		return e.analyzeLeave(ctx, sc)
	case ScopeChangeScenario:
		return e.analyzeScopeChange(ctx, sc)
	case ResourceConflictScenario:
		return e.analyzeResourceConflict(ctx, sc)
	default:
		return ImpactReport{}, fmt.Errorf("unsupported scenario %T", s)
	}
}

func (e Engine) analyzeLeave(ctx context.Context, sc LeaveScenario) (ImpactReport, error) {
	if sc.Start.IsZero() || sc.End.IsZero() || sc.End.Before(sc.Start) {
		return ImpactReport{}, fmt.Errorf("leave scenario needs a valid window")
	}
	person, err := e.Repo.Person(ctx, sc.PersonID)
	if err != nil {
		return ImpactReport{}, err
	}
	cfg := e.Config.Impact
	leaveDays := daysBetween(sc.Start, sc.End) + 1

	assignments, err := e.Repo.PersonAssignments(ctx, sc.PersonID, "active")
	if err != nil {
		return ImpactReport{}, err
	}

	report := ImpactReport{ScenarioType: "leave"}
	ref := e.now()
	criticalPath := false
	for _, a := range assignments {
		aStart, aEnd := span(a.StartDate, a.EndDate, ref)
		if !overlaps(aStart, aEnd, dateOnly(sc.Start), dateOnly(sc.End)) {
			continue
		}
		affected := AffectedTask{TaskID: a.TaskID, PlannedHours: a.PlannedHours}
		if a.TaskID != "" {
			t, err := e.Repo.Task(ctx, a.TaskID)
			if err != nil {
				return ImpactReport{}, err
			}
			affected.Title = t.Title
			if affected.PlannedHours == 0 {
				affected.PlannedHours = t.EstimatedHours
			}
			affected.OnCriticalPath = e.onCriticalPath(ctx, a.TaskID)
		}
		delay := int(affected.PlannedHours / cfg.HoursPerDay)
		if delay > leaveDays {
			delay = leaveDays
		}
		affected.DelayDays = delay
		criticalPath = criticalPath || affected.OnCriticalPath
		report.TotalDelayDays += delay
		report.AffectedHours += affected.PlannedHours
		report.AffectedTasks = append(report.AffectedTasks, affected)
	}

	switch {
	case len(report.AffectedTasks) > 10 || report.TotalDelayDays > 20 || criticalPath:
		report.Level = "critical"
	case len(report.AffectedTasks) > 5 || report.TotalDelayDays > 10:
		report.Level = "high"
	case len(report.AffectedTasks) > 2 || report.TotalDelayDays >= 5:
		report.Level = "medium"
	default:
		report.Level = "low"
	}
	report.CostImpact = round2(report.AffectedHours * cfg.DefaultHourlyRate * cfg.DisruptionFactor)

	if alts, err := e.leaveAlternatives(ctx, sc.PersonID, report.AffectedTasks); err != nil {
		return ImpactReport{}, err
	} else if len(alts) > 0 {
		report.Alternatives = alts
	}

	report.Recommendations = append(report.Recommendations,
		fmt.Sprintf("plan handover for %d tasks before %s leaves on %s", len(report.AffectedTasks), person.Name, dateOnly(sc.Start).Format("2006-01-02")))
	if sc.LeaveType == "sick" {
		report.Recommendations = append([]string{"unplanned absence: reassign critical work immediately"}, report.Recommendations...)
	}
	if criticalPath {
		report.Recommendations = append(report.Recommendations, "critical-path work is affected, escalate to project leads")
	}
	return report, nil
}

// onCriticalPath asks the graph for live dependents. Graph failures
// degrade to false so a leave report never hard-fails on them.
func (e Engine) onCriticalPath(ctx context.Context, taskID string) bool {
	rows, err := e.Repo.Store.GraphQuery(ctx, store.GraphQuery{
		Pattern:  store.PatternDependentCount,
		EntityID: taskID,
		LinkType: domain.LinkBlocks,
	})
	if err != nil {
		e.Log.Warn("graph query failed, critical path unknown", "task", taskID, "err", err)
		return false
	}
	return len(rows) > 0 && rows[0].Count > e.Config.Impact.CriticalPathDependents
}

// leaveAlternatives ranks replacement candidates for the most affected
// tasks: people under the allocation cap, scored per requirement.
func (e Engine) leaveAlternatives(ctx context.Context, leavePersonID string, affected []AffectedTask) (map[string][]Alternative, error) {
	cfg := e.Config.Impact
	tasks := make([]AffectedTask, len(affected))
	copy(tasks, affected)
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].PlannedHours > tasks[j].PlannedHours })
	if len(tasks) > cfg.TasksWithAlternatives {
		tasks = tasks[:cfg.TasksWithAlternatives]
	}

	people, err := e.Repo.People(ctx, "active")
	if err != nil {
		return nil, err
	}

	res := map[string][]Alternative{}
	for _, task := range tasks {
		if task.TaskID == "" {
			continue
		}
		reqs, err := e.Repo.TaskRequirements(ctx, task.TaskID)
		if err != nil {
			return nil, err
		}
		var candidates []Alternative
		for _, person := range people {
			if person.ID == leavePersonID {
				continue
			}
			availability, err := e.availability(ctx, person.ID)
			if err != nil {
				return nil, err
			}
			if 100-availability >= cfg.AlternativeAllocCap {
				continue
			}
			skills, err := e.Repo.PersonSkills(ctx, person.ID)
			if err != nil {
				return nil, err
			}
			candidates = append(candidates, Alternative{
				PersonID:     person.ID,
				Name:         person.Name,
				MatchScore:   replacementScore(reqs, skills),
				Availability: availability,
			})
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			if candidates[i].MatchScore != candidates[j].MatchScore {
				return candidates[i].MatchScore > candidates[j].MatchScore
			}
			return candidates[i].Availability > candidates[j].Availability
		})
		if len(candidates) > cfg.AlternativesPerTask {
			candidates = candidates[:cfg.AlternativesPerTask]
		}
		if len(candidates) > 0 {
			res[task.TaskID] = candidates
		}
	}
	return res, nil
}

// replacementScore averages per-requirement fit: full credit at or
// above the bar, proportional half credit below it.
func replacementScore(reqs []domain.SkillRequirement, skills map[string]domain.PersonSkill) float64 {
	if len(reqs) == 0 {
		return 100
	}
	var sum float64
	for _, req := range reqs {
		ps, ok := skills[req.SkillID]
		if !ok {
			continue
		}
		if ps.ProficiencyLevel >= req.MinimumProficiency {
			sum += 100
		} else {
			sum += float64(ps.ProficiencyLevel) / float64(req.MinimumProficiency) * 50
		}
	}
	return round1(sum / float64(len(reqs)))
}

func (e Engine) analyzeScopeChange(ctx context.Context, sc ScopeChangeScenario) (ImpactReport, error) {
	if sc.AddedHours < 0 || sc.RemovedHours < 0 {
		return ImpactReport{}, fmt.Errorf("scope hours must not be negative")
	}
	project, err := e.Repo.Project(ctx, sc.ProjectID)
	if err != nil {
		return ImpactReport{}, err
	}
	cfg := e.Config.Impact

	report := ImpactReport{ScenarioType: "scope_change"}
	report.NetHours = sc.AddedHours - sc.RemovedHours

	// net effort spreads over working days, stretched to calendar days
	if report.NetHours != 0 {
		base := project.EndDate
		if base.IsZero() {
			base = e.now()
		}
		calendarDays := int(math.Ceil(report.NetHours / cfg.HoursPerDay * 7 / 5))
		report.NewEndDate = dateOnly(base).AddDate(0, 0, calendarDays)
	}

	tasks, err := e.Repo.ProjectTasks(ctx, sc.ProjectID)
	if err != nil {
		return ImpactReport{}, err
	}
	var currentHours float64
	for _, t := range tasks {
		currentHours += t.EstimatedHours
	}
	if currentHours+report.NetHours > cfg.CapacityLimitHours {
		report.CapacityConflict = true
		report.ConflictCount = 1
	}

	switch {
	case report.NetHours > 200 || report.ConflictCount > 3:
		report.Level = "critical"
	case report.NetHours > 100 || report.ConflictCount > 1:
		report.Level = "high"
	case report.NetHours > 40 || report.CapacityConflict:
		report.Level = "medium"
	default:
		report.Level = "low"
	}

	rate := project.HourlyRate
	if rate == 0 {
		rate = cfg.DefaultHourlyRate
	}
	if report.NetHours > 0 {
		report.CostImpact = round2(report.NetHours * rate)
	}

	if report.NetHours > 0 {
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("scope grows by %.0fh, expect the end date to slip to %s", report.NetHours, report.NewEndDate.Format("2006-01-02")))
	} else if report.NetHours < 0 {
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("scope shrinks by %.0fh, capacity frees up", -report.NetHours))
	}
	if report.CapacityConflict {
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("project would exceed the %.0fh capacity envelope, split or defer work", cfg.CapacityLimitHours))
	}
	return report, nil
}

func (e Engine) analyzeResourceConflict(ctx context.Context, sc ResourceConflictScenario) (ImpactReport, error) {
	if _, err := e.Repo.Person(ctx, sc.PersonID); err != nil {
		return ImpactReport{}, err
	}
	assignments, err := e.Repo.PersonAssignments(ctx, sc.PersonID, "active")
	if err != nil {
		return ImpactReport{}, err
	}

	report := ImpactReport{ScenarioType: "resource_conflict"}
	ref := e.now()
	for i := 0; i < len(assignments); i++ {
		for j := i + 1; j < len(assignments); j++ {
			a, b := assignments[i], assignments[j]
			aStart, aEnd := span(a.StartDate, a.EndDate, ref)
			bStart, bEnd := span(b.StartDate, b.EndDate, ref)
			if overlaps(aStart, aEnd, bStart, bEnd) && a.AllocationPercent+b.AllocationPercent > 100 {
				report.ConflictCount++
			}
		}
	}

	switch {
	case report.ConflictCount > 5:
		report.Level = "critical"
	case report.ConflictCount > 2:
		report.Level = "high"
	case report.ConflictCount > 0:
		report.Level = "medium"
	default:
		report.Level = "low"
	}
	if report.ConflictCount > 0 {
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("%d overlapping assignment pairs exceed full allocation, stagger or reassign", report.ConflictCount))
	}
	return report, nil
}
