package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"planwise/internal/domain"
	"planwise/internal/repo"
)

// VelocityReport describes one person's observed throughput for a
// project type.
type VelocityReport struct {
	PersonID           string  `json:"person_id"`
	ProjectType        string  `json:"project_type"`
	SampleSize         int     `json:"sample_size"`
	VelocityFactor     float64 `json:"velocity_factor"`
	EstimationAccuracy float64 `json:"estimation_accuracy"`
	AvgCompletionDays  float64 `json:"avg_completion_days,omitempty"`
	OnTimeRate         float64 `json:"on_time_rate"`
	Confidence         string  `json:"confidence"`
	InsufficientData   bool    `json:"insufficient_data,omitempty"`
}

type VelocityError struct {
	PersonID string `json:"person_id"`
	Err      string `json:"error"`
}

// VelocityBatchStats summarizes a profile refresh run.
type VelocityBatchStats struct {
	PeopleProcessed int             `json:"people_processed"`
	ProfilesCreated int             `json:"profiles_created"`
	ProfilesUpdated int             `json:"profiles_updated"`
	Skipped         int             `json:"skipped"`
	Errors          []VelocityError `json:"errors,omitempty"`
}

type TrendPoint struct {
	WeekStart      time.Time `json:"week_start"`
	TaskCount      int       `json:"task_count"`
	VelocityFactor float64   `json:"velocity_factor"`
}

type VelocityTrend struct {
	PersonID    string       `json:"person_id"`
	ProjectType string       `json:"project_type"`
	Points      []TrendPoint `json:"points"`
	Trend       string       `json:"trend"`
}

// observation is a completed task usable for calibration.
type observation struct {
	task        domain.Task
	projectType string
}

func (e Engine) observationsFor(ctx context.Context, personID string) ([]observation, error) {
	tasks, err := e.Repo.Tasks(ctx, "")
	if err != nil {
		return nil, err
	}
	projects, err := e.Repo.Projects(ctx, "")
	if err != nil {
		return nil, err
	}
	typeByProject := make(map[string]string, len(projects))
	for _, p := range projects {
		typeByProject[p.ID] = p.ProjectType
	}

	var res []observation
	for _, t := range tasks {
		if !domain.Done(t.Status) || t.EstimatedHours <= 0 || t.ActualHours <= 0 {
			continue
		}
		assigned := false
		for _, id := range t.AssigneeIDs {
			if id == personID {
				assigned = true
				break
			}
		}
		if !assigned {
			continue
		}
		projectType := typeByProject[t.ProjectID]
		if projectType == "" {
			projectType = "general"
		}
		res = append(res, observation{task: t, projectType: projectType})
	}
	return res, nil
}

// dropOutliers removes observations whose actual/estimated ratio sits
// beyond the configured sigma band. Small samples are kept whole, and
// filtering that would shrink the sample below the band is reverted.
func (e Engine) dropOutliers(obs []observation) []observation {
	if len(obs) < 5 {
		return obs
	}
	ratios := make([]float64, len(obs))
	var sum float64
	for i, o := range obs {
		ratios[i] = o.task.ActualHours / o.task.EstimatedHours
		sum += ratios[i]
	}
	mean := sum / float64(len(ratios))
	var variance float64
	for _, r := range ratios {
		variance += (r - mean) * (r - mean)
	}
	sigma := math.Sqrt(variance / float64(len(ratios)))

	var kept []observation
	for i, o := range obs {
		if math.Abs(ratios[i]-mean) <= e.Config.Velocity.OutlierStdDevs*sigma {
			kept = append(kept, o)
		}
	}
	if len(kept) < 5 {
		return obs
	}
	return kept
}

func (e Engine) velocityReport(personID, projectType string, obs []observation) VelocityReport {
	cfg := e.Config.Velocity
	report := VelocityReport{
		PersonID:           personID,
		ProjectType:        projectType,
		VelocityFactor:     1.0,
		EstimationAccuracy: 1.0,
		Confidence:         "low",
	}
	if len(obs) == 0 {
		report.InsufficientData = true
		return report
	}

	obs = e.dropOutliers(obs)
	report.SampleSize = len(obs)
	report.InsufficientData = len(obs) < cfg.MinSampleSize

	var estSum, actSum float64
	var onTime int
	var completionDays float64
	var completionSamples int
	for _, o := range obs {
		estSum += o.task.EstimatedHours
		actSum += o.task.ActualHours
		if o.task.ActualHours <= cfg.OnTimeTolerance*o.task.EstimatedHours {
			onTime++
		}
		if !o.task.StartedAt.IsZero() && !o.task.CompletedAt.IsZero() {
			if days := daysBetween(o.task.StartedAt, o.task.CompletedAt); days > 0 {
				completionDays += float64(days)
				completionSamples++
			}
		}
	}
	if actSum > 0 {
		report.VelocityFactor = round2(estSum / actSum)
	}
	if estSum > 0 {
		report.EstimationAccuracy = round2(actSum / estSum)
	}
	report.OnTimeRate = round1(float64(onTime) / float64(len(obs)) * 100)
	if completionSamples > 0 {
		report.AvgCompletionDays = round1(completionDays / float64(completionSamples))
	}
	switch {
	case len(obs) >= cfg.HighConfidence:
		report.Confidence = "high"
	case len(obs) >= cfg.MediumConfidence:
		report.Confidence = "medium"
	}
	return report
}

// PersonVelocity reports observed velocity for a person. With an empty
// project type the person's most common one is used.
func (e Engine) PersonVelocity(ctx context.Context, personID, projectType string) (VelocityReport, error) {
	if _, err := e.Repo.Person(ctx, personID); err != nil {
		return VelocityReport{}, err
	}
	obs, err := e.observationsFor(ctx, personID)
	if err != nil {
		return VelocityReport{}, err
	}
	if projectType == "" {
		counts := map[string]int{}
		for _, o := range obs {
			counts[o.projectType]++
		}
		best := "general"
		for pt, n := range counts {
			if n > counts[best] || (n == counts[best] && pt < best) {
				best = pt
			}
		}
		projectType = best
	}
	var filtered []observation
	for _, o := range obs {
		if o.projectType == projectType {
			filtered = append(filtered, o)
		}
	}
	return e.velocityReport(personID, projectType, filtered), nil
}

// UpdateProfiles recalibrates productivity profiles for every active
// person, smoothing fresh observations into existing factors. People
// below the sample floor are skipped.
func (e Engine) UpdateProfiles(ctx context.Context, minSample int) (VelocityBatchStats, error) {
	if minSample <= 0 {
		minSample = e.Config.Velocity.MinSampleSize
	}
	people, err := e.Repo.People(ctx, "active")
	if err != nil {
		return VelocityBatchStats{}, err
	}

	stats := VelocityBatchStats{PeopleProcessed: len(people)}
	for _, person := range people {
		obs, err := e.observationsFor(ctx, person.ID)
		if err != nil {
			stats.Errors = append(stats.Errors, VelocityError{PersonID: person.ID, Err: err.Error()})
			continue
		}
		byType := map[string][]observation{}
		for _, o := range obs {
			byType[o.projectType] = append(byType[o.projectType], o)
		}
		updatedAny := false
		for projectType, group := range byType {
			if len(group) < minSample {
				continue
			}
			report := e.velocityReport(person.ID, projectType, group)
			created, err := e.applyProfile(ctx, person.ID, projectType, report)
			if err != nil {
				stats.Errors = append(stats.Errors, VelocityError{PersonID: person.ID, Err: err.Error()})
				continue
			}
			if created {
				stats.ProfilesCreated++
			} else {
				stats.ProfilesUpdated++
			}
			updatedAny = true
		}
		if !updatedAny {
			stats.Skipped++
		}
	}
	return stats, nil
}

// applyProfile smooths a fresh report into the stored profile,
// creating it on first observation.
func (e Engine) applyProfile(ctx context.Context, personID, projectType string, report VelocityReport) (created bool, err error) {
	alpha := e.Config.Velocity.SmoothingAlpha
	now := e.now()

	profile, err := e.Repo.ProfileFor(ctx, personID, projectType)
	if errors.Is(err, repo.ErrNotFound) {
		_, err := e.Repo.SaveProfile(ctx, domain.ProductivityProfile{
			PersonID:             personID,
			ProjectType:          projectType,
			VelocityFactor:       report.VelocityFactor,
			EstimationAccuracy:   report.EstimationAccuracy,
			TasksCompletedCount:  report.SampleSize,
			AvgTaskCompletionHrs: report.AvgCompletionDays * e.Config.Impact.HoursPerDay,
			LastUpdated:          now,
		})
		if err != nil {
			return false, fmt.Errorf("create profile %s/%s: %w", personID, projectType, err)
		}
		return true, nil
	}
	if err != nil {
		return false, err
	}

	profile.VelocityFactor = round2(alpha*report.VelocityFactor + (1-alpha)*profile.VelocityFactor)
	profile.EstimationAccuracy = round2(alpha*report.EstimationAccuracy + (1-alpha)*profile.EstimationAccuracy)
	profile.TasksCompletedCount = report.SampleSize
	profile.AvgTaskCompletionHrs = report.AvgCompletionDays * e.Config.Impact.HoursPerDay
	profile.LastUpdated = now
	if _, err := e.Repo.SaveProfile(ctx, profile); err != nil {
		return false, fmt.Errorf("update profile %s/%s: %w", personID, projectType, err)
	}
	return false, nil
}

// RecordTaskCompletion folds one just-finished task into the profiles
// of everyone assigned to it.
func (e Engine) RecordTaskCompletion(ctx context.Context, taskID string) error {
	t, err := e.Repo.Task(ctx, taskID)
	if err != nil {
		return err
	}
	if !domain.Done(t.Status) {
		return fmt.Errorf("task %s is not completed", taskID)
	}
	if t.EstimatedHours <= 0 || t.ActualHours <= 0 {
		return fmt.Errorf("task %s has no usable effort figures", taskID)
	}
	projectType := "general"
	if t.ProjectID != "" {
		p, err := e.Repo.Project(ctx, t.ProjectID)
		if err == nil && p.ProjectType != "" {
			projectType = p.ProjectType
		} else if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return err
		}
	}

	report := e.velocityReport("", projectType, []observation{{task: t, projectType: projectType}})
	for _, personID := range t.AssigneeIDs {
		report.PersonID = personID
		if _, err := e.applyProfile(ctx, personID, projectType, report); err != nil {
			return err
		}
	}
	return nil
}

// VelocityTrendFor buckets recent completions per week and classifies
// the direction of travel.
func (e Engine) VelocityTrendFor(ctx context.Context, personID, projectType string, weeks int) (VelocityTrend, error) {
	if weeks <= 0 {
		weeks = 12
	}
	if _, err := e.Repo.Person(ctx, personID); err != nil {
		return VelocityTrend{}, err
	}
	obs, err := e.observationsFor(ctx, personID)
	if err != nil {
		return VelocityTrend{}, err
	}

	cutoff := dateOnly(e.now()).AddDate(0, 0, -7*weeks)
	buckets := map[time.Time][]observation{}
	for _, o := range obs {
		if projectType != "" && o.projectType != projectType {
			continue
		}
		done := o.task.CompletedAt
		if done.IsZero() || dateOnly(done).Before(cutoff) {
			continue
		}
		day := dateOnly(done)
		weekStart := day.AddDate(0, 0, -int(day.Weekday()))
		buckets[weekStart] = append(buckets[weekStart], o)
	}

	trend := VelocityTrend{PersonID: personID, ProjectType: projectType, Trend: "stable"}
	var weeksSorted []time.Time
	for w := range buckets {
		weeksSorted = append(weeksSorted, w)
	}
	sort.Slice(weeksSorted, func(i, j int) bool { return weeksSorted[i].Before(weeksSorted[j]) })
	for _, w := range weeksSorted {
		group := buckets[w]
		var est, act float64
		for _, o := range group {
			est += o.task.EstimatedHours
			act += o.task.ActualHours
		}
		factor := 1.0
		if act > 0 {
			factor = round2(est / act)
		}
		trend.Points = append(trend.Points, TrendPoint{WeekStart: w, TaskCount: len(group), VelocityFactor: factor})
	}

	if len(trend.Points) >= 2 {
		head := trend.Points
		if len(head) > 3 {
			head = head[:3]
		}
		tail := trend.Points
		if len(tail) > 3 {
			tail = tail[len(tail)-3:]
		}
		oldMean := meanVelocity(head)
		newMean := meanVelocity(tail)
		switch {
		case newMean > oldMean*1.1:
			trend.Trend = "improving"
		case newMean < oldMean*0.9:
			trend.Trend = "declining"
		}
	}
	return trend, nil
}

func meanVelocity(points []TrendPoint) float64 {
	if len(points) == 0 {
		return 1.0
	}
	var sum float64
	for _, p := range points {
		sum += p.VelocityFactor
	}
	return sum / float64(len(points))
}
