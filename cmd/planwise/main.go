package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"planwise/internal/app"
	"planwise/internal/config"
	"planwise/internal/domain"
	"planwise/internal/events"
	"planwise/internal/scheduler"
	"planwise/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "planwise",
	Short: "Planwise CLI",
	Long: `Planwise optimizes resource and task scheduling across a project
portfolio stored in the workspace database.
- Workspace: your .planwise directory holding the database; planwise.yml
  tunes every threshold.
- Priorities: projects are scored 0-100 from customer tier, deadlines,
  business and contract value, strategy and dependencies.
- Matching: people are scored against task skill requirements.
- Velocity: completed tasks calibrate per-person productivity profiles.
- Conflicts: overallocation, double booking, skill mismatches and
  overcommitted sprints are detected across the portfolio.
- Impact: leave, scope changes and resource conflicts are simulated
  before they happen.
- Sprints: plans fill capacity with the best-fitting tasks and health
  reports track running sprints.
- Nudges: detectors turn all of the above into ranked, deduplicated
  suggestions for the right recipient.
- Event log: a diary of every run, view with 'planwise log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_, err := store.EnsureWorkspace(viper.GetString("workspace"))
		return err
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("PLANWISE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func registerCommands() {
	rootCmd.AddCommand(priorityCmd())
	rootCmd.AddCommand(matchCmd())
	rootCmd.AddCommand(skillsCmd())
	rootCmd.AddCommand(velocityCmd())
	rootCmd.AddCommand(conflictsCmd())
	rootCmd.AddCommand(sprintCmd())
	rootCmd.AddCommand(impactCmd())
	rootCmd.AddCommand(nudgesCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(seedCmd())
}

func priorityCmd() *cobra.Command {
	prio := &cobra.Command{
		Use:   "priority",
		Short: "Project priority scoring",
		Long:  "Priorities rank the portfolio 0-100. Recalculate after deadlines, contracts or dependencies change.",
	}
	prio.AddCommand(priorityRecalcCmd())
	prio.AddCommand(priorityShowCmd())
	return prio
}

func priorityRecalcCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "recalc",
		Short: "Recalculate priorities for active projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				stats, err := a.Engine.RecalculatePriorities(ctx, all)
				if err != nil {
					return err
				}
				_ = a.Events.Append(ctx, "priority.recalculated", "", "", events.Payload{
					"processed": stats.Processed, "updated": stats.Updated, "errors": len(stats.Errors),
				})
				return printJSONOrTable(stats)
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include inactive projects")
	return cmd
}

func priorityShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show the priority breakdown of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				bd, err := a.Engine.PriorityComponents(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(bd)
				}
				fmt.Printf("Project %s: %.1f\n", bd.ProjectID, bd.Score)
				tw := newTable()
				tw.AppendHeader(table.Row{"Component", "Score"})
				for _, key := range []string{"customer_tier", "deadline_urgency", "business_value", "contract_value", "strategic_alignment", "dependency_boost", "risk_penalty"} {
					tw.AppendRow(table.Row{key, fmt.Sprintf("%.1f", bd.Components[key])})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func matchCmd() *cobra.Command {
	var limit int
	var minScore float64
	var personID string
	cmd := &cobra.Command{
		Use:   "match <task-id>",
		Short: "Rank people against a task's skill requirements",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if personID != "" {
					report, err := a.Engine.MatchPersonToTask(ctx, args[0], personID)
					if err != nil {
						return err
					}
					return printJSONOrTable(report)
				}
				matches, err := a.Engine.BestMatches(ctx, args[0], limit, minScore)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(matches)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"Person", "Score", "Availability", "Recommendation"})
				for _, m := range matches {
					tw.AppendRow(table.Row{m.PersonName, fmt.Sprintf("%.1f", m.Score), fmt.Sprintf("%.0f%%", m.Availability), m.Recommendation})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 5, "number of candidates")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "minimum match score")
	cmd.Flags().StringVar(&personID, "person", "", "score one specific person instead")
	return cmd
}

func skillsCmd() *cobra.Command {
	skills := &cobra.Command{Use: "skills", Short: "Organization-wide skill analysis"}
	skills.AddCommand(skillsGapsCmd())
	return skills
}

func skillsGapsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gaps",
		Short: "Report skills no one can serve at the required level",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				gaps, err := a.Engine.SkillGaps(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(gaps)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"Skill", "Level", "Tasks", "Qualified", "Severity"})
				for _, g := range gaps {
					tw.AppendRow(table.Row{g.SkillName, g.RequiredLevel, g.TaskCount, g.QualifiedPeople, g.Severity})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func velocityCmd() *cobra.Command {
	vel := &cobra.Command{
		Use:   "velocity",
		Short: "Productivity calibration",
		Long:  "Completed tasks with estimates and actuals calibrate per-person velocity, smoothed across runs.",
	}
	vel.AddCommand(velocityUpdateCmd())
	vel.AddCommand(velocityShowCmd())
	vel.AddCommand(velocityTrendCmd())
	return vel
}

func velocityUpdateCmd() *cobra.Command {
	var minSample int
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Recalibrate productivity profiles from completed tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				stats, err := a.Engine.UpdateProfiles(ctx, minSample)
				if err != nil {
					return err
				}
				_ = a.Events.Append(ctx, "velocity.profiles_updated", "", "", events.Payload{
					"created": stats.ProfilesCreated, "updated": stats.ProfilesUpdated, "skipped": stats.Skipped,
				})
				return printJSONOrTable(stats)
			})
		},
	}
	cmd.Flags().IntVar(&minSample, "min-sample", 0, "sample floor (0 uses config)")
	return cmd
}

func velocityShowCmd() *cobra.Command {
	var projectType string
	cmd := &cobra.Command{
		Use:   "show <person-id>",
		Short: "Show observed velocity for a person",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				report, err := a.Engine.PersonVelocity(ctx, args[0], projectType)
				if err != nil {
					return err
				}
				return printJSONOrTable(report)
			})
		},
	}
	cmd.Flags().StringVar(&projectType, "project-type", "", "project type (defaults to the most common)")
	return cmd
}

func velocityTrendCmd() *cobra.Command {
	var projectType string
	var weeks int
	cmd := &cobra.Command{
		Use:   "trend <person-id>",
		Short: "Show weekly velocity buckets and direction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				trend, err := a.Engine.VelocityTrendFor(ctx, args[0], projectType, weeks)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(trend)
				}
				fmt.Printf("Trend: %s\n", trend.Trend)
				tw := newTable()
				tw.AppendHeader(table.Row{"Week", "Tasks", "Velocity"})
				for _, p := range trend.Points {
					tw.AppendRow(table.Row{p.WeekStart.Format("2006-01-02"), p.TaskCount, fmt.Sprintf("%.2f", p.VelocityFactor)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&projectType, "project-type", "", "project type filter")
	cmd.Flags().IntVar(&weeks, "weeks", 12, "weeks of history")
	return cmd
}

func conflictsCmd() *cobra.Command {
	conf := &cobra.Command{Use: "conflicts", Short: "Scheduling conflict detection"}
	conf.AddCommand(conflictsDetectCmd())
	conf.AddCommand(conflictsCheckCmd())
	return conf
}

func conflictsDetectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Run every conflict detector across the portfolio",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				report, err := a.Engine.DetectConflicts(ctx)
				if err != nil {
					return err
				}
				_ = a.Events.Append(ctx, "conflicts.detected", "", "", events.Payload{"count": len(report.Conflicts)})
				if viper.GetBool("json") {
					return printJSON(report)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"Type", "Severity", "Description"})
				for _, c := range report.Conflicts {
					tw.AppendRow(table.Row{c.Type, c.Severity, c.Description})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func conflictsCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <assignment-id>",
		Short: "Check one assignment for overallocation and skill fit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				conflicts, err := a.Engine.CheckAssignment(ctx, args[0])
				if err != nil {
					return err
				}
				if len(conflicts) == 0 && !viper.GetBool("json") {
					fmt.Println("no conflicts")
					return nil
				}
				return printJSONOrTable(conflicts)
			})
		},
	}
	return cmd
}

func sprintCmd() *cobra.Command {
	spr := &cobra.Command{
		Use:   "sprint",
		Short: "Sprint planning and health",
		Long:  "Plans fill the capacity target with the best-fitting backlog tasks; health scores a running sprint on completion, blockage and allocation.",
	}
	spr.AddCommand(sprintPlanCmd())
	spr.AddCommand(sprintHealthCmd())
	spr.AddCommand(sprintValidateCmd())
	return spr
}

func sprintPlanCmd() *cobra.Command {
	var apply bool
	cmd := &cobra.Command{
		Use:   "plan <sprint-id>",
		Short: "Recommend a sprint plan, optionally persisting it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				rec, err := a.Engine.PlanSprint(ctx, args[0])
				if err != nil {
					return err
				}
				if apply {
					if err := a.Engine.ApplySprintPlan(ctx, rec); err != nil {
						return err
					}
					_ = a.Events.Append(ctx, "sprint.plan_applied", domain.KindSprint, rec.SprintID, events.Payload{
						"selected": len(rec.Selected), "planned_hours": rec.PlannedHours,
					})
				}
				if viper.GetBool("json") {
					return printJSON(rec)
				}
				fmt.Println(rec.Reasoning)
				tw := newTable()
				tw.AppendHeader(table.Row{"Task", "Assignee", "Hours", "Fit"})
				for _, t := range rec.Selected {
					tw.AppendRow(table.Row{t.Title, t.AssigneeName, fmt.Sprintf("%.0f", t.EstimatedHours), fmt.Sprintf("%.1f", t.Fit)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "persist the recommended plan")
	return cmd
}

func sprintHealthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health <sprint-id>",
		Short: "Score a sprint's health",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				health, err := a.Engine.SprintHealthReport(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(health)
				}
				fmt.Printf("Sprint %s: %s (score %.0f, %.0f%% complete)\n", health.SprintID, health.Status, health.Score, health.CompletionPercent)
				for _, issue := range health.Issues {
					fmt.Printf("  - %s\n", issue)
				}
				return nil
			})
		},
	}
	return cmd
}

func sprintValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <sprint-id>",
		Short: "Break a sprint's commitment down per person",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				report, err := a.Engine.ValidateSprintCapacity(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(report)
				}
				fmt.Printf("Commitment: %.0fh of %.0fh (%.1f%%)\n", report.TotalCommittedHours, report.TotalCapacityHours, report.CommitmentRatio)
				tw := newTable()
				tw.AppendHeader(table.Row{"Person", "Committed", "Capacity", "Utilization"})
				for _, l := range report.Loads {
					tw.AppendRow(table.Row{l.Name, fmt.Sprintf("%.0fh", l.CommittedHours), fmt.Sprintf("%.0fh", l.CapacityHours), fmt.Sprintf("%.0f%%", l.Utilization)})
				}
				tw.Render()
				for _, r := range report.Recommendations {
					fmt.Printf("  - %s\n", r)
				}
				return nil
			})
		},
	}
	return cmd
}

func impactCmd() *cobra.Command {
	imp := &cobra.Command{
		Use:   "impact",
		Short: "What-if impact analysis",
		Long:  "Simulates leave, scope changes and resource conflicts without touching any data.",
	}
	imp.AddCommand(impactLeaveCmd())
	imp.AddCommand(impactScopeCmd())
	imp.AddCommand(impactResourceCmd())
	return imp
}

func impactLeaveCmd() *cobra.Command {
	var start, end, leaveType string
	cmd := &cobra.Command{
		Use:   "leave <person-id>",
		Short: "Simulate a leave window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseDate(start)
			if err != nil {
				return fmt.Errorf("--start: %w", err)
			}
			to, err := parseDate(end)
			if err != nil {
				return fmt.Errorf("--end: %w", err)
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				report, err := a.Engine.AnalyzeImpact(ctx, scheduler.LeaveScenario{
					PersonID: args[0], Start: from, End: to, LeaveType: leaveType,
				})
				if err != nil {
					return err
				}
				return printImpact(report)
			})
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "first day of leave (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "last day of leave (YYYY-MM-DD)")
	cmd.Flags().StringVar(&leaveType, "type", "vacation", "leave type (vacation, sick, training)")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func impactScopeCmd() *cobra.Command {
	var added, removed float64
	cmd := &cobra.Command{
		Use:   "scope <project-id>",
		Short: "Simulate a scope change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				report, err := a.Engine.AnalyzeImpact(ctx, scheduler.ScopeChangeScenario{
					ProjectID: args[0], AddedHours: added, RemovedHours: removed,
				})
				if err != nil {
					return err
				}
				return printImpact(report)
			})
		},
	}
	cmd.Flags().Float64Var(&added, "add", 0, "hours added")
	cmd.Flags().Float64Var(&removed, "remove", 0, "hours removed")
	return cmd
}

func impactResourceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resource <person-id>",
		Short: "Count conflicting assignment overlaps for a person",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				report, err := a.Engine.AnalyzeImpact(ctx, scheduler.ResourceConflictScenario{PersonID: args[0]})
				if err != nil {
					return err
				}
				return printImpact(report)
			})
		},
	}
	return cmd
}

func printImpact(report scheduler.ImpactReport) error {
	if viper.GetBool("json") {
		return printJSON(report)
	}
	fmt.Printf("Impact: %s (%s)\n", report.Level, report.ScenarioType)
	if len(report.AffectedTasks) > 0 {
		tw := newTable()
		tw.AppendHeader(table.Row{"Task", "Hours", "Delay (days)"})
		for _, t := range report.AffectedTasks {
			tw.AppendRow(table.Row{t.Title, fmt.Sprintf("%.0f", t.PlannedHours), t.DelayDays})
		}
		tw.Render()
	}
	if report.CostImpact != 0 {
		fmt.Printf("Cost impact: %.2f\n", report.CostImpact)
	}
	for _, r := range report.Recommendations {
		fmt.Printf("  - %s\n", r)
	}
	return nil
}

func nudgesCmd() *cobra.Command {
	n := &cobra.Command{
		Use:   "nudges",
		Short: "Proactive suggestion generation",
		Long:  "Detectors turn delays, conflicts, gaps, burnout, idle capacity and bottlenecks into ranked nudges, deduplicated against the last day.",
	}
	n.AddCommand(nudgesGenerateCmd())
	n.AddCommand(nudgesListCmd())
	return n
}

func nudgesGenerateCmd() *cobra.Command {
	var max int
	var minSeverity string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run every detector and persist new nudges",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				summary, err := a.Engine.GenerateNudges(ctx, scheduler.GenerateOptions{MaxNudges: max, MinSeverity: minSeverity})
				if err != nil {
					return err
				}
				_ = a.Events.Append(ctx, "nudges.generated", "", "", events.Payload{
					"created": summary.Created, "skipped_duplicates": summary.SkippedDuplicates,
				})
				return printJSONOrTable(summary)
			})
		},
	}
	cmd.Flags().IntVar(&max, "max", 0, "cap per run (0 uses config)")
	cmd.Flags().StringVar(&minSeverity, "min-severity", "", "severity floor (info, warning, critical)")
	return cmd
}

func nudgesListCmd() *cobra.Command {
	var sinceHours int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recently created nudges",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				nudges, err := a.Repo.RecentNudges(ctx, time.Now().UTC().Add(-time.Duration(sinceHours)*time.Hour))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(nudges)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"Type", "Severity", "Recipient", "Title"})
				for _, n := range nudges {
					tw.AppendRow(table.Row{n.Type, n.Severity, n.RecipientID, n.Title})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&sinceHours, "since-hours", 24, "lookback window in hours")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect workspace config",
		Long:  "Config is the rulebook: planwise.yml overrides the documented default thresholds per component.",
	}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(cfg)
		},
	}
	return cmd
}

func configValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate workspace config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err == nil {
				err = cfg.Validate()
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "The diary of every recalculation, plan and generation run.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Events.Latest(ctx, n, evtType)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	return cmd
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the workspace with a demo portfolio",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := seedDemo(ctx, a); err != nil {
					return err
				}
				_ = a.Events.Append(ctx, "workspace.seeded", "", "", events.Payload{})
				fmt.Println("demo portfolio seeded")
				return nil
			})
		},
	}
	return cmd
}

func seedDemo(ctx context.Context, a *app.App) error {
	now := time.Now().UTC()
	priority := func(v float64) *float64 { return &v }

	acme, err := a.Repo.CreateCustomer(ctx, domain.Customer{Name: "Acme Corp", Tier: "tier_1"})
	if err != nil {
		return err
	}
	globex, err := a.Repo.CreateCustomer(ctx, domain.Customer{Name: "Globex", Tier: "tier_2"})
	if err != nil {
		return err
	}

	lead, err := a.Repo.CreatePerson(ctx, domain.Person{Name: "Dana Lead", Role: "engineering manager"})
	if err != nil {
		return err
	}
	people := make([]domain.Person, 0, 3)
	for _, name := range []string{"Alex Rivera", "Sam Chen", "Noa Fischer"} {
		p, err := a.Repo.CreatePerson(ctx, domain.Person{Name: name, Role: "engineer", ManagerID: lead.ID, WeeklyHours: 40})
		if err != nil {
			return err
		}
		people = append(people, p)
	}

	skills := map[string]domain.Skill{}
	for _, name := range []string{"go", "sql", "kubernetes"} {
		s, err := a.Repo.CreateSkill(ctx, domain.Skill{Name: name, Category: "engineering"})
		if err != nil {
			return err
		}
		skills[name] = s
	}
	if err := a.Repo.AddPersonSkill(ctx, people[0].ID, skills["go"].ID, domain.PersonSkill{ProficiencyLevel: 4, YearsExperience: 6}); err != nil {
		return err
	}
	if err := a.Repo.AddPersonSkill(ctx, people[0].ID, skills["sql"].ID, domain.PersonSkill{ProficiencyLevel: 3}); err != nil {
		return err
	}
	if err := a.Repo.AddPersonSkill(ctx, people[1].ID, skills["sql"].ID, domain.PersonSkill{ProficiencyLevel: 4, YearsExperience: 4}); err != nil {
		return err
	}
	if err := a.Repo.AddPersonSkill(ctx, people[2].ID, skills["kubernetes"].ID, domain.PersonSkill{ProficiencyLevel: 2}); err != nil {
		return err
	}

	atlas, err := a.Repo.CreateProject(ctx, domain.Project{
		Name: "Atlas Platform", ProjectType: "platform", CustomerID: acme.ID, PMID: lead.ID,
		Deadline: now.AddDate(0, 1, 0), StartDate: now.AddDate(0, -2, 0),
		BusinessValue: priority(85), StrategicAlignment: priority(70),
		RiskScore: 25, ContractValue: 250000, HourlyRate: 140,
	})
	if err != nil {
		return err
	}
	beacon, err := a.Repo.CreateProject(ctx, domain.Project{
		Name: "Beacon Reporting", ProjectType: "analytics", CustomerID: globex.ID, PMID: lead.ID,
		Deadline: now.AddDate(0, 3, 0), BusinessValue: priority(60),
		RiskScore: 40, BudgetAmount: 90000, HourlyRate: 110,
	})
	if err != nil {
		return err
	}

	ingest, err := a.Repo.CreateTask(ctx, domain.Task{
		Title: "build ingest pipeline", ProjectID: atlas.ID, Status: "in_progress",
		AssigneeIDs: []string{people[0].ID}, EstimatedHours: 40,
		DueDate: now.AddDate(0, 0, 14), PredictedDelayProbability: 0.75, Priority: "high",
	})
	if err != nil {
		return err
	}
	if err := a.Repo.AddRequirement(ctx, ingest.ID, skills["go"].ID, domain.SkillRequirement{MinimumProficiency: 3, PreferredProficiency: 4, IsMandatory: true}); err != nil {
		return err
	}
	schema, err := a.Repo.CreateTask(ctx, domain.Task{
		Title: "design reporting schema", ProjectID: beacon.ID, Status: "todo",
		EstimatedHours: 16, DueDate: now.AddDate(0, 0, 21),
	})
	if err != nil {
		return err
	}
	if err := a.Repo.AddRequirement(ctx, schema.ID, skills["sql"].ID, domain.SkillRequirement{MinimumProficiency: 3, IsMandatory: true}); err != nil {
		return err
	}
	dashboards, err := a.Repo.CreateTask(ctx, domain.Task{
		Title: "ship dashboards", ProjectID: beacon.ID, Status: "todo", EstimatedHours: 24,
	})
	if err != nil {
		return err
	}
	if err := a.Repo.AddBlocker(ctx, schema.ID, dashboards.ID, "hard"); err != nil {
		return err
	}
	if _, err := a.Repo.CreateTask(ctx, domain.Task{
		Title: "workspace bootstrap", ProjectID: atlas.ID, Status: "done",
		AssigneeIDs: []string{people[0].ID}, EstimatedHours: 10, ActualHours: 8,
		StartedAt: now.AddDate(0, 0, -10), CompletedAt: now.AddDate(0, 0, -6),
	}); err != nil {
		return err
	}

	if _, err := a.Repo.CreateAssignment(ctx, domain.Assignment{
		PersonID: people[0].ID, ProjectID: atlas.ID, TaskID: ingest.ID,
		AllocationPercent: 80, PlannedHours: 40,
		StartDate: now, EndDate: now.AddDate(0, 0, 14),
	}); err != nil {
		return err
	}
	if _, err := a.Repo.CreateAssignment(ctx, domain.Assignment{
		PersonID: people[1].ID, ProjectID: beacon.ID,
		AllocationPercent: 50, StartDate: now, EndDate: now.AddDate(0, 1, 0),
	}); err != nil {
		return err
	}

	sprint, err := a.Repo.CreateSprint(ctx, domain.Sprint{
		Name: "Sprint 1", Status: "planning", StartDate: now, EndDate: now.AddDate(0, 0, 13),
	})
	if err != nil {
		return err
	}
	for _, p := range people {
		if err := a.Repo.AddParticipant(ctx, sprint.ID, p.ID, 48); err != nil {
			return err
		}
	}
	if err := a.Repo.AddSprintProject(ctx, sprint.ID, atlas.ID); err != nil {
		return err
	}
	if err := a.Repo.AddSprintProject(ctx, sprint.ID, beacon.ID); err != nil {
		return err
	}
	return nil
}

// --- helpers ---

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	a, err := app.Open(viper.GetString("workspace"), viper.GetString("log-level"))
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	return tw
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("date required (YYYY-MM-DD)")
	}
	return time.Parse("2006-01-02", s)
}
