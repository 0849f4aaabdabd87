package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"planwise/internal/domain"
)

// Conflict types.
const (
	ConflictOverallocation       = "overallocation"
	ConflictDoubleBooking        = "double_booking"
	ConflictSkillMismatch        = "skill_mismatch"
	ConflictSprintOvercommitment = "sprint_overcommitment"
	ConflictScheduling           = "scheduling"
)

type Conflict struct {
	Type          string    `json:"type"`
	Severity      string    `json:"severity"`
	Description   string    `json:"description"`
	PersonID      string    `json:"person_id,omitempty"`
	TaskID        string    `json:"task_id,omitempty"`
	SprintID      string    `json:"sprint_id,omitempty"`
	AssignmentIDs []string  `json:"assignment_ids,omitempty"`
	PeakDate      time.Time `json:"peak_date,omitempty"`
	Allocation    float64   `json:"allocation,omitempty"`
}

// ConflictReport is the full detection pass bucketed for triage.
type ConflictReport struct {
	Conflicts      []Conflict     `json:"conflicts"`
	ByType         map[string]int `json:"by_type"`
	BySeverity     map[string]int `json:"by_severity"`
	CriticalIssues []string       `json:"critical_issues,omitempty"`
	GeneratedAt    time.Time      `json:"generated_at"`
}

// PersonLoad is one participant's share of a sprint commitment.
type PersonLoad struct {
	PersonID       string  `json:"person_id"`
	Name           string  `json:"name"`
	CapacityHours  float64 `json:"capacity_hours"`
	CommittedHours float64 `json:"committed_hours"`
	Utilization    float64 `json:"utilization"`
	Overallocated  bool    `json:"overallocated"`
}

type SprintCapacityReport struct {
	SprintID            string       `json:"sprint_id"`
	TotalCapacityHours  float64      `json:"total_capacity_hours"`
	TotalCommittedHours float64      `json:"total_committed_hours"`
	CommitmentRatio     float64      `json:"commitment_ratio"`
	Loads               []PersonLoad `json:"loads"`
	Recommendations     []string     `json:"recommendations,omitempty"`
}

// DetectConflicts runs every detector and buckets the findings.
func (e Engine) DetectConflicts(ctx context.Context) (ConflictReport, error) {
	report := ConflictReport{
		ByType:      map[string]int{},
		BySeverity:  map[string]int{},
		GeneratedAt: e.now(),
	}

	detectors := []func(context.Context) ([]Conflict, error){
		e.detectOverallocation,
		e.detectDoubleBooking,
		e.detectSkillMismatch,
		e.detectSprintOvercommitment,
		e.detectScheduling,
	}
	for _, detect := range detectors {
		found, err := detect(ctx)
		if err != nil {
			return ConflictReport{}, err
		}
		report.Conflicts = append(report.Conflicts, found...)
	}

	for _, c := range report.Conflicts {
		report.ByType[c.Type]++
		report.BySeverity[c.Severity]++
		if c.Severity == "critical" {
			report.CriticalIssues = append(report.CriticalIssues, c.Description)
		}
	}
	sort.SliceStable(report.Conflicts, func(i, j int) bool {
		return severityRank[report.Conflicts[i].Severity] > severityRank[report.Conflicts[j].Severity]
	})
	return report, nil
}

// dailyLoad sums allocation per calendar day across assignments.
func (e Engine) dailyLoad(assignments []domain.Assignment) map[time.Time]float64 {
	ref := e.now()
	load := map[time.Time]float64{}
	for _, a := range assignments {
		start, end := span(a.StartDate, a.EndDate, ref)
		for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
			load[day] += a.AllocationPercent
		}
	}
	return load
}

func (e Engine) overallocSeverity(peak float64) string {
	cfg := e.Config.Conflicts
	switch {
	case peak > cfg.OverallocCritical:
		return "critical"
	case peak > cfg.OverallocHigh:
		return "high"
	case peak > cfg.OverallocMedium:
		return "medium"
	default:
		return "low"
	}
}

func (e Engine) detectOverallocation(ctx context.Context) ([]Conflict, error) {
	people, err := e.Repo.People(ctx, "active")
	if err != nil {
		return nil, err
	}
	cfg := e.Config.Conflicts

	var res []Conflict
	for _, person := range people {
		assignments, err := e.Repo.PersonAssignments(ctx, person.ID, "active")
		if err != nil {
			return nil, err
		}
		if len(assignments) == 0 {
			continue
		}
		load := e.dailyLoad(assignments)

		var peak float64
		var peakDay time.Time
		overDays, warnDays := 0, 0
		for day, total := range load {
			if total > peak || (total == peak && day.Before(peakDay)) {
				peak, peakDay = total, day
			}
			switch {
			case total > cfg.OverallocLow:
				overDays++
			case total >= cfg.ApproachingCapacity:
				warnDays++
			}
		}
		if overDays > 0 {
			res = append(res, Conflict{
				Type:        ConflictOverallocation,
				Severity:    e.overallocSeverity(peak),
				PersonID:    person.ID,
				PeakDate:    peakDay,
				Allocation:  round1(peak),
				Description: fmt.Sprintf("%s is allocated %.0f%% at peak across %d days", person.Name, peak, overDays),
			})
		} else if warnDays > 0 {
			res = append(res, Conflict{
				Type:        ConflictOverallocation,
				Severity:    "low",
				PersonID:    person.ID,
				PeakDate:    peakDay,
				Allocation:  round1(peak),
				Description: fmt.Sprintf("%s is approaching capacity at %.0f%% on %d days", person.Name, peak, warnDays),
			})
		}
	}
	return res, nil
}

func (e Engine) detectDoubleBooking(ctx context.Context) ([]Conflict, error) {
	people, err := e.Repo.People(ctx, "active")
	if err != nil {
		return nil, err
	}
	ref := e.now()

	var res []Conflict
	for _, person := range people {
		assignments, err := e.Repo.PersonAssignments(ctx, person.ID, "active")
		if err != nil {
			return nil, err
		}
		for i := 0; i < len(assignments); i++ {
			for j := i + 1; j < len(assignments); j++ {
				a, b := assignments[i], assignments[j]
				aStart, aEnd := span(a.StartDate, a.EndDate, ref)
				bStart, bEnd := span(b.StartDate, b.EndDate, ref)
				if !overlaps(aStart, aEnd, bStart, bEnd) {
					continue
				}
				combined := a.AllocationPercent + b.AllocationPercent
				if combined <= 100 {
					continue
				}
				from, to := maxTime(aStart, bStart), minTime(aEnd, bEnd)
				res = append(res, Conflict{
					Type:          ConflictDoubleBooking,
					Severity:      "high",
					PersonID:      person.ID,
					AssignmentIDs: []string{a.ID, b.ID},
					Allocation:    round1(combined),
					PeakDate:      from,
					Description: fmt.Sprintf("%s is booked %.0f%% between %s and %s",
						person.Name, combined, from.Format("2006-01-02"), to.Format("2006-01-02")),
				})
			}
		}
	}
	return res, nil
}

func (e Engine) detectSkillMismatch(ctx context.Context) ([]Conflict, error) {
	assignments, err := e.Repo.Assignments(ctx, "active")
	if err != nil {
		return nil, err
	}

	var res []Conflict
	for _, a := range assignments {
		if a.TaskID == "" {
			continue
		}
		reqs, err := e.Repo.TaskRequirements(ctx, a.TaskID)
		if err != nil {
			return nil, err
		}
		if len(reqs) == 0 {
			continue
		}
		skills, err := e.Repo.PersonSkills(ctx, a.PersonID)
		if err != nil {
			return nil, err
		}
		for _, req := range reqs {
			ps, ok := skills[req.SkillID]
			if req.IsMandatory && (!ok || ps.ProficiencyLevel < req.MinimumProficiency) {
				res = append(res, Conflict{
					Type:          ConflictSkillMismatch,
					Severity:      "high",
					PersonID:      a.PersonID,
					TaskID:        a.TaskID,
					AssignmentIDs: []string{a.ID},
					Description:   fmt.Sprintf("assignee lacks mandatory %s at level %d", req.SkillName, req.MinimumProficiency),
				})
				continue
			}
			if !req.IsMandatory && ok && ps.ProficiencyLevel < req.MinimumProficiency {
				res = append(res, Conflict{
					Type:          ConflictSkillMismatch,
					Severity:      "low",
					PersonID:      a.PersonID,
					TaskID:        a.TaskID,
					AssignmentIDs: []string{a.ID},
					Description:   fmt.Sprintf("assignee below preferred %s level %d, monitor progress", req.SkillName, req.MinimumProficiency),
				})
			}
		}
	}
	return res, nil
}

func (e Engine) detectSprintOvercommitment(ctx context.Context) ([]Conflict, error) {
	cfg := e.Config.Conflicts
	var res []Conflict
	for _, status := range []string{"planning", "active"} {
		sprints, err := e.Repo.Sprints(ctx, status)
		if err != nil {
			return nil, err
		}
		for _, sprint := range sprints {
			committed, capacity, err := e.sprintCommitment(ctx, sprint.ID)
			if err != nil {
				return nil, err
			}
			if capacity == 0 {
				continue
			}
			ratio := committed / capacity * 100
			if ratio <= cfg.CommitmentFlag {
				continue
			}
			severity := "low"
			switch {
			case ratio > cfg.CommitmentCritical:
				severity = "critical"
			case ratio > cfg.CommitmentHigh:
				severity = "high"
			case ratio > cfg.CommitmentMedium:
				severity = "medium"
			}
			res = append(res, Conflict{
				Type:        ConflictSprintOvercommitment,
				Severity:    severity,
				SprintID:    sprint.ID,
				Allocation:  round1(ratio),
				Description: fmt.Sprintf("sprint %s is committed to %.0f%% of capacity (%.0fh of %.0fh)", sprint.Name, ratio, committed, capacity),
			})
		}
	}
	return res, nil
}

func (e Engine) sprintCommitment(ctx context.Context, sprintID string) (committed, capacity float64, err error) {
	sprintTasks, err := e.Repo.SprintTasks(ctx, sprintID)
	if err != nil {
		return 0, 0, err
	}
	for _, st := range sprintTasks {
		hours := st.PlannedHours
		if hours == 0 {
			t, err := e.Repo.Task(ctx, st.TaskID)
			if err != nil {
				return 0, 0, err
			}
			hours = t.EstimatedHours
		}
		committed += hours
	}
	participants, err := e.Repo.SprintParticipants(ctx, sprintID)
	if err != nil {
		return 0, 0, err
	}
	for _, p := range participants {
		c := p.PlannedCapacityHours
		if c == 0 {
			c = e.Config.Conflicts.DefaultCapacity
		}
		capacity += c
	}
	return committed, capacity, nil
}

func (e Engine) detectScheduling(ctx context.Context) ([]Conflict, error) {
	tasks, err := e.Repo.Tasks(ctx, "")
	if err != nil {
		return nil, err
	}
	cfg := e.Config.Conflicts
	now := e.now()

	var res []Conflict
	for _, t := range tasks {
		if !domain.InFlight(t.Status) || t.DueDate.IsZero() || t.EstimatedHours <= 0 {
			continue
		}
		start := now
		if !t.EarliestStart.IsZero() && t.EarliestStart.After(start) {
			start = t.EarliestStart
		}
		availableDays := float64(daysBetween(start, t.DueDate))
		estimatedDays := t.EstimatedHours / e.Config.Impact.HoursPerDay
		if availableDays < cfg.ScheduleBuffer*estimatedDays {
			res = append(res, Conflict{
				Type:        ConflictScheduling,
				Severity:    "high",
				TaskID:      t.ID,
				Description: fmt.Sprintf("task %q has %.0f days for %.1f days of work", t.Title, availableDays, estimatedDays),
			})
		}
	}
	return res, nil
}

// CheckAssignment inspects one assignment for overallocation and
// skill fit before it is committed to.
func (e Engine) CheckAssignment(ctx context.Context, assignmentID string) ([]Conflict, error) {
	a, err := e.Repo.Assignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	assignments, err := e.Repo.PersonAssignments(ctx, a.PersonID, "active")
	if err != nil {
		return nil, err
	}

	var res []Conflict
	load := e.dailyLoad(assignments)
	ref := e.now()
	start, end := span(a.StartDate, a.EndDate, ref)
	var peak float64
	overDays := 0
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		total := load[day]
		if total > e.Config.Conflicts.OverallocLow {
			overDays++
			if total > peak {
				peak = total
			}
		}
	}
	if overDays > 0 {
		res = append(res, Conflict{
			Type:          ConflictOverallocation,
			Severity:      e.overallocSeverity(peak),
			PersonID:      a.PersonID,
			AssignmentIDs: []string{a.ID},
			Allocation:    round1(peak),
			Description:   fmt.Sprintf("assignment pushes allocation to %.0f%% on %d days", peak, overDays),
		})
	}

	if a.TaskID != "" {
		reqs, err := e.Repo.TaskRequirements(ctx, a.TaskID)
		if err != nil {
			return nil, err
		}
		skills, err := e.Repo.PersonSkills(ctx, a.PersonID)
		if err != nil {
			return nil, err
		}
		for _, req := range reqs {
			ps, ok := skills[req.SkillID]
			if req.IsMandatory && (!ok || ps.ProficiencyLevel < req.MinimumProficiency) {
				res = append(res, Conflict{
					Type:          ConflictSkillMismatch,
					Severity:      "medium",
					PersonID:      a.PersonID,
					TaskID:        a.TaskID,
					AssignmentIDs: []string{a.ID},
					Description:   fmt.Sprintf("assignee lacks mandatory %s at level %d", req.SkillName, req.MinimumProficiency),
				})
			}
		}
	}
	return res, nil
}

// ValidateSprintCapacity breaks a sprint's commitment down per person.
func (e Engine) ValidateSprintCapacity(ctx context.Context, sprintID string) (SprintCapacityReport, error) {
	if _, err := e.Repo.Sprint(ctx, sprintID); err != nil {
		return SprintCapacityReport{}, err
	}
	participants, err := e.Repo.SprintParticipants(ctx, sprintID)
	if err != nil {
		return SprintCapacityReport{}, err
	}
	sprintTasks, err := e.Repo.SprintTasks(ctx, sprintID)
	if err != nil {
		return SprintCapacityReport{}, err
	}

	committed := map[string]float64{}
	var unassignedHours float64
	for _, st := range sprintTasks {
		hours := st.PlannedHours
		if hours == 0 {
			t, err := e.Repo.Task(ctx, st.TaskID)
			if err != nil {
				return SprintCapacityReport{}, err
			}
			hours = t.EstimatedHours
		}
		if st.AssigneeID == "" {
			unassignedHours += hours
			continue
		}
		committed[st.AssigneeID] += hours
	}

	report := SprintCapacityReport{SprintID: sprintID}
	var overallocated []string
	for _, p := range participants {
		capacity := p.PlannedCapacityHours
		if capacity == 0 {
			capacity = e.Config.Conflicts.DefaultCapacity
		}
		load := PersonLoad{
			PersonID:       p.PersonID,
			Name:           p.Name,
			CapacityHours:  capacity,
			CommittedHours: committed[p.PersonID],
		}
		load.Utilization = round1(load.CommittedHours / capacity * 100)
		load.Overallocated = load.Utilization > 100
		if load.Overallocated {
			overallocated = append(overallocated, p.Name)
		}
		report.TotalCapacityHours += capacity
		report.TotalCommittedHours += load.CommittedHours
		report.Loads = append(report.Loads, load)
	}
	report.TotalCommittedHours += unassignedHours
	if report.TotalCapacityHours > 0 {
		report.CommitmentRatio = round1(report.TotalCommittedHours / report.TotalCapacityHours * 100)
	}

	switch {
	case report.CommitmentRatio > 100:
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("sprint is overcommitted at %.0f%%, move %.0fh out", report.CommitmentRatio, report.TotalCommittedHours-report.TotalCapacityHours))
	case report.CommitmentRatio > e.Config.Conflicts.CommitmentFlag:
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("commitment at %.0f%% leaves little slack, monitor closely", report.CommitmentRatio))
	case report.CommitmentRatio < 60 && report.TotalCapacityHours > 0:
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("commitment at %.0f%% leaves capacity unused, consider pulling tasks in", report.CommitmentRatio))
	}
	for _, name := range overallocated {
		report.Recommendations = append(report.Recommendations, fmt.Sprintf("rebalance tasks away from %s", name))
	}
	return report, nil
}
