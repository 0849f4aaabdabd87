// Package config holds every tunable threshold of the schedulers,
// grouped per component. Thresholds are loaded from planwise.yml and
// fall back to defaults matching the documented scoring model.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models planwise.yml.
type Config struct {
	Priority  PriorityConfig `yaml:"priority"`
	Skills    SkillsConfig   `yaml:"skills"`
	Velocity  VelocityConfig `yaml:"velocity"`
	Conflicts ConflictConfig `yaml:"conflicts"`
	Impact    ImpactConfig   `yaml:"impact"`
	Sprint    SprintConfig   `yaml:"sprint"`
	Nudges    NudgeConfig    `yaml:"nudges"`
}

type PriorityConfig struct {
	TierWeight       float64 `yaml:"tier_weight"`
	DeadlineWeight   float64 `yaml:"deadline_weight"`
	BusinessWeight   float64 `yaml:"business_weight"`
	ContractWeight   float64 `yaml:"contract_weight"`
	StrategicWeight  float64 `yaml:"strategic_weight"`
	DependencyWeight float64 `yaml:"dependency_weight"`
	RiskDampening    float64 `yaml:"risk_dampening"`
	CommitEvery      int     `yaml:"commit_every"`
}

type SkillsConfig struct {
	MandatoryWeight     float64 `yaml:"mandatory_weight"`
	OptionalWeight      float64 `yaml:"optional_weight"`
	PartialCredit       float64 `yaml:"partial_credit"`
	ExcellentThreshold  float64 `yaml:"excellent_threshold"`
	GoodThreshold       float64 `yaml:"good_threshold"`
	AcceptableThreshold float64 `yaml:"acceptable_threshold"`
}

type VelocityConfig struct {
	MinSampleSize    int     `yaml:"min_sample_size"`
	OutlierStdDevs   float64 `yaml:"outlier_std_devs"`
	SmoothingAlpha   float64 `yaml:"smoothing_alpha"`
	OnTimeTolerance  float64 `yaml:"on_time_tolerance"`
	HighConfidence   int     `yaml:"high_confidence"`
	MediumConfidence int     `yaml:"medium_confidence"`
}

type ConflictConfig struct {
	OverallocCritical   float64 `yaml:"overalloc_critical"`
	OverallocHigh       float64 `yaml:"overalloc_high"`
	OverallocMedium     float64 `yaml:"overalloc_medium"`
	OverallocLow        float64 `yaml:"overalloc_low"`
	ApproachingCapacity float64 `yaml:"approaching_capacity"`
	CommitmentFlag      float64 `yaml:"commitment_flag"`
	CommitmentCritical  float64 `yaml:"commitment_critical"`
	CommitmentHigh      float64 `yaml:"commitment_high"`
	CommitmentMedium    float64 `yaml:"commitment_medium"`
	ScheduleBuffer      float64 `yaml:"schedule_buffer"`
	DefaultCapacity     float64 `yaml:"default_capacity_hours"`
}

type ImpactConfig struct {
	HoursPerDay            float64 `yaml:"hours_per_day"`
	CapacityLimitHours     float64 `yaml:"capacity_limit_hours"`
	DefaultHourlyRate      float64 `yaml:"default_hourly_rate"`
	DisruptionFactor       float64 `yaml:"disruption_factor"`
	AlternativeAllocCap    float64 `yaml:"alternative_alloc_cap"`
	AlternativesPerTask    int     `yaml:"alternatives_per_task"`
	TasksWithAlternatives  int     `yaml:"tasks_with_alternatives"`
	CriticalPathDependents int     `yaml:"critical_path_dependents"`
}

type SprintConfig struct {
	TargetUtilization float64 `yaml:"target_utilization"`
	EffortTolerance   float64 `yaml:"effort_tolerance"`
	PersonLoadCap     float64 `yaml:"person_load_cap"`
	MaxRisk           float64 `yaml:"max_risk"`
	MinValue          float64 `yaml:"min_value"`
	IdealTaskHours    float64 `yaml:"ideal_task_hours"`
	DefaultTaskHours  float64 `yaml:"default_task_hours"`
	DefaultCapacity   float64 `yaml:"default_capacity_hours"`
}

type NudgeConfig struct {
	MaxNudges             int           `yaml:"max_nudges"`
	MinSeverity           string        `yaml:"min_severity"`
	DedupWindow           time.Duration `yaml:"dedup_window"`
	DelayThreshold        float64       `yaml:"delay_threshold"`
	BurnoutThreshold      float64       `yaml:"burnout_threshold"`
	OpportunityAllocation float64       `yaml:"opportunity_allocation"`
	HighPriorityScore     float64       `yaml:"high_priority_score"`
	BottleneckMin         int           `yaml:"bottleneck_min"`
}

// Default returns the documented scoring model thresholds.
func Default() *Config {
	return &Config{
		Priority: PriorityConfig{
			TierWeight:       0.25,
			DeadlineWeight:   0.25,
			BusinessWeight:   0.20,
			ContractWeight:   0.15,
			StrategicWeight:  0.10,
			DependencyWeight: 0.05,
			RiskDampening:    0.3,
			CommitEvery:      10,
		},
		Skills: SkillsConfig{
			MandatoryWeight:     2.0,
			OptionalWeight:      1.0,
			PartialCredit:       0.5,
			ExcellentThreshold:  90,
			GoodThreshold:       70,
			AcceptableThreshold: 50,
		},
		Velocity: VelocityConfig{
			MinSampleSize:    5,
			OutlierStdDevs:   2.5,
			SmoothingAlpha:   0.3,
			OnTimeTolerance:  1.1,
			HighConfidence:   10,
			MediumConfidence: 5,
		},
		Conflicts: ConflictConfig{
			OverallocCritical:   120,
			OverallocHigh:       110,
			OverallocMedium:     105,
			OverallocLow:        100,
			ApproachingCapacity: 90,
			CommitmentFlag:      85,
			CommitmentCritical:  100,
			CommitmentHigh:      95,
			CommitmentMedium:    90,
			ScheduleBuffer:      0.5,
			DefaultCapacity:     80,
		},
		Impact: ImpactConfig{
			HoursPerDay:            8,
			CapacityLimitHours:     1000,
			DefaultHourlyRate:      100,
			DisruptionFactor:       0.1,
			AlternativeAllocCap:    80,
			AlternativesPerTask:    3,
			TasksWithAlternatives:  5,
			CriticalPathDependents: 2,
		},
		Sprint: SprintConfig{
			TargetUtilization: 0.85,
			EffortTolerance:   1.1,
			PersonLoadCap:     0.6,
			MaxRisk:           70,
			MinValue:          20,
			IdealTaskHours:    16,
			DefaultTaskHours:  8,
			DefaultCapacity:   80,
		},
		Nudges: NudgeConfig{
			MaxNudges:             50,
			MinSeverity:           "info",
			DedupWindow:           24 * time.Hour,
			DelayThreshold:        0.7,
			BurnoutThreshold:      90,
			OpportunityAllocation: 50,
			HighPriorityScore:     70,
			BottleneckMin:         3,
		},
	}
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "planwise.yml")
}

// Load reads config from workspace, falling back to defaults when the
// file does not exist. Present keys override defaults; absent keys keep
// them.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses config on top of defaults and validates it.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures thresholds stay in their documented ranges.
func (c *Config) Validate() error {
	p := c.Priority
	sum := p.TierWeight + p.DeadlineWeight + p.BusinessWeight + p.ContractWeight + p.StrategicWeight + p.DependencyWeight
	if sum < 0.99 || sum > 1.01 {
		return fmt.Errorf("priority weights must sum to 1.0, got %.2f", sum)
	}
	if p.RiskDampening < 0 || p.RiskDampening > 1 {
		return fmt.Errorf("priority.risk_dampening must be in [0,1]")
	}
	if p.CommitEvery <= 0 {
		return fmt.Errorf("priority.commit_every must be positive")
	}
	if c.Skills.MandatoryWeight <= 0 || c.Skills.OptionalWeight <= 0 {
		return fmt.Errorf("skills weights must be positive")
	}
	if c.Skills.AcceptableThreshold > c.Skills.GoodThreshold || c.Skills.GoodThreshold > c.Skills.ExcellentThreshold {
		return fmt.Errorf("skills thresholds must be ordered acceptable <= good <= excellent")
	}
	if c.Velocity.MinSampleSize < 1 {
		return fmt.Errorf("velocity.min_sample_size must be at least 1")
	}
	if c.Velocity.SmoothingAlpha < 0 || c.Velocity.SmoothingAlpha > 1 {
		return fmt.Errorf("velocity.smoothing_alpha must be in [0,1]")
	}
	if c.Velocity.OnTimeTolerance < 1 {
		return fmt.Errorf("velocity.on_time_tolerance must be at least 1")
	}
	cf := c.Conflicts
	if !(cf.OverallocLow < cf.OverallocMedium && cf.OverallocMedium < cf.OverallocHigh && cf.OverallocHigh < cf.OverallocCritical) {
		return fmt.Errorf("overallocation thresholds must be strictly increasing")
	}
	if cf.ApproachingCapacity >= cf.OverallocLow {
		return fmt.Errorf("conflicts.approaching_capacity must be below the overallocation floor")
	}
	if cf.ScheduleBuffer <= 0 || cf.ScheduleBuffer > 1 {
		return fmt.Errorf("conflicts.schedule_buffer must be in (0,1]")
	}
	if c.Impact.HoursPerDay <= 0 {
		return fmt.Errorf("impact.hours_per_day must be positive")
	}
	sp := c.Sprint
	if sp.TargetUtilization <= 0 || sp.TargetUtilization > 1 {
		return fmt.Errorf("sprint.target_utilization must be in (0,1]")
	}
	if sp.PersonLoadCap <= 0 || sp.PersonLoadCap > 1 {
		return fmt.Errorf("sprint.person_load_cap must be in (0,1]")
	}
	if sp.EffortTolerance < 1 {
		return fmt.Errorf("sprint.effort_tolerance must be at least 1")
	}
	n := c.Nudges
	if n.MaxNudges <= 0 {
		return fmt.Errorf("nudges.max_nudges must be positive")
	}
	switch n.MinSeverity {
	case "info", "warning", "critical":
	default:
		return fmt.Errorf("nudges.min_severity must be info, warning or critical")
	}
	if n.DelayThreshold < 0 || n.DelayThreshold > 1 {
		return fmt.Errorf("nudges.delay_threshold must be in [0,1]")
	}
	if n.DedupWindow <= 0 {
		return fmt.Errorf("nudges.dedup_window must be positive")
	}
	return nil
}
