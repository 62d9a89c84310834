package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/c360studio/taskorchestrator/processor/decision"
	"github.com/c360studio/taskorchestrator/processor/eventbus"
	"github.com/c360studio/taskorchestrator/processor/personapipeline"
	"github.com/c360studio/taskorchestrator/processor/personapolicy"
	"github.com/c360studio/taskorchestrator/processor/statestore"
	"github.com/c360studio/taskorchestrator/processor/teammate"
	"github.com/c360studio/taskorchestrator/task"
)

// executionSubjectMode selects whether the round loop claims execution work
// for configured teammates or for execution-enabled personas.
type executionSubjectMode string

const (
	subjectTeammate executionSubjectMode = "teammate"
	subjectPersona  executionSubjectMode = "persona"
)

// PersonaMetrics summarizes one run's persona-pipeline activity.
type PersonaMetrics struct {
	SeverityCounts            map[string]int `json:"severity_counts"`
	PersonaBlockerTriggered   []string       `json:"persona_blocker_triggered"`
	WarnRecheckQueueRemaining int            `json:"warn_recheck_queue_remaining"`
}

// Result is the round loop's terminal outcome.
type Result struct {
	StopReason     string         `json:"stop_reason"`
	ElapsedSeconds float64        `json:"elapsed_seconds"`
	Rounds         int            `json:"rounds"`
	Summary        map[string]int `json:"summary"`
	TasksTotal     int            `json:"tasks_total"`
	ProviderCalls  int            `json:"provider_calls"`
	Provider       string         `json:"provider"`
	HumanApproval  bool           `json:"human_approval"`
	PersonaMetrics PersonaMetrics `json:"persona_metrics"`
}

// Scheduler drives the cooperative round loop described by spec §4: one
// claim-and-advance pass per teammate (or execution-enabled persona) per
// round, collision detection, persona evaluation, and a decision-provider
// call, until a stop condition fires.
type Scheduler struct {
	store    *statestore.StateStore
	config   Config
	policy   *personapolicy.Engine
	pipeline *personapipeline.Pipeline
	provider decision.Provider
	adapter  teammate.Adapter
	logger   *slog.Logger
	metrics  *Metrics
	bus      eventbus.Publisher

	subjectMode executionSubjectMode
	subjects    []string

	collisionSeen    map[string]struct{}
	escalatedTasks   map[string]struct{}
	blockerTriggered map[string]struct{}
	warnQueue        []personapipeline.Event
	severityCounts   map[string]int
	decisionHistory  []decision.Decision
}

// New builds a Scheduler. provider and adapter must not be nil; logger may
// be nil (defaults to slog.Default()); metrics may be nil (all observations
// become no-ops).
func New(store *statestore.StateStore, cfg Config, provider decision.Provider, adapter teammate.Adapter, logger *slog.Logger, metrics *Metrics) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	policy := personapolicy.New(cfg.PersonaDefaults, cfg.Personas)
	pipeline := personapipeline.New(cfg.Personas, 2)

	subjects := cfg.ResolvedExecutionPersonas()
	mode := subjectTeammate
	subjectIDs := cfg.ResolvedTeammates()
	if len(subjects) > 0 {
		mode = subjectPersona
		subjectIDs = subjects
	}

	return &Scheduler{
		store:            store,
		config:           cfg,
		policy:           policy,
		pipeline:         pipeline,
		provider:         provider,
		adapter:          adapter,
		logger:           logger,
		metrics:          metrics,
		bus:              eventbus.NewNoop(),
		subjectMode:      mode,
		subjects:         subjectIDs,
		collisionSeen:    make(map[string]struct{}),
		escalatedTasks:   make(map[string]struct{}),
		blockerTriggered: make(map[string]struct{}),
		severityCounts:   make(map[string]int),
	}
}

// SetEventBus replaces the scheduler's event publisher, which otherwise
// defaults to a no-op. Publishing failures are logged and swallowed; the
// round loop never blocks on bus availability.
func (s *Scheduler) SetEventBus(bus eventbus.Publisher) {
	if bus == nil {
		bus = eventbus.NewNoop()
	}
	s.bus = bus
}

func (s *Scheduler) publish(ctx context.Context, eventType string, payload any) {
	if err := s.bus.Publish(ctx, eventType, payload); err != nil {
		s.logger.Warn("event bus publish failed", "event_type", eventType, "error", err)
	}
}

func shortText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// appendTaskProgressLog writes one progress line, logging and swallowing
// the error on failure — a progress-log write is advisory, never fatal to
// the round loop.
func (s *Scheduler) appendTaskProgressLog(taskID string, source task.ProgressSource, text string) {
	if err := s.store.AppendTaskProgressLog(taskID, source, text, s.config.TaskProgressLogLimit); err != nil {
		s.logger.Warn("append task progress log failed", "task_id", taskID, "error", err)
	}
}

// Run executes the round loop until a stop condition fires or ctx is
// canceled.
func (s *Scheduler) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	round := 0
	providerCalls := 0
	stopReason := ""
	humanApprovalHeld := false

	pendingEvents := []personapipeline.Event{kickoffEvent(len(s.subjects))}

	idleRounds := 0

	for {
		if ctx.Err() != nil {
			stopReason = "context_canceled"
			break
		}
		if round >= s.config.MaxRounds {
			stopReason = "max_rounds"
			break
		}

		completed, err := s.store.AllTasksCompleted()
		if err != nil {
			return Result{}, fmt.Errorf("scheduler: check completion: %w", err)
		}
		if completed {
			stopReason = "all_tasks_completed"
			break
		}

		counterBefore, _, err := s.store.ProgressMarker()
		if err != nil {
			return Result{}, fmt.Errorf("scheduler: read progress marker: %w", err)
		}

		for _, subject := range s.subjects {
			pendingEvents = append(pendingEvents, s.teammateProcessPlan(ctx, subject)...)
			pendingEvents = append(pendingEvents, s.teammateProcessExecution(ctx, subject)...)
		}

		pendingEvents = append(pendingEvents, s.collectCollisionEvents()...)

		completedMidRound, err := s.store.AllTasksCompleted()
		if err != nil {
			return Result{}, fmt.Errorf("scheduler: check completion: %w", err)
		}
		if completedMidRound {
			stopReason = "all_tasks_completed"
			break
		}

		counterAfter, lastProgressAt, err := s.store.ProgressMarker()
		if err != nil {
			return Result{}, fmt.Errorf("scheduler: read progress marker: %w", err)
		}
		if counterAfter == counterBefore {
			idleRounds++
		} else {
			idleRounds = 0
		}

		if idleRounds > 0 && s.config.NoProgressEventInterval > 0 && idleRounds%s.config.NoProgressEventInterval == 0 {
			pendingEvents = append(pendingEvents, noProgressEvent(idleRounds))
		}

		// spec §4.2 step 8: persona evaluation and the decision-provider
		// call both run only when this round produced events.
		hadEvents := len(pendingEvents) > 0

		var comments []personapipeline.Comment
		actionStop := ""
		if hadEvents {
			comments, actionStop = s.evaluatePersonaComments(pendingEvents)
		}
		pendingEvents = nil
		if len(s.warnQueue) > 0 {
			pendingEvents = append(pendingEvents, s.warnQueue...)
			s.warnQueue = nil
		}
		for _, c := range comments {
			s.severityCounts[string(c.Severity)]++
			if s.metrics != nil {
				s.metrics.observePersonaComment(string(c.Severity))
			}
		}
		if actionStop != "" {
			stopReason = actionStop
			break
		}

		if s.config.ResolvedHumanApproval() {
			pending, err := s.store.HasPendingApprovals()
			if err != nil {
				return Result{}, fmt.Errorf("scheduler: check pending approvals: %w", err)
			}
			if pending {
				humanApprovalHeld = true
				stopReason = "human_approval_required"
				break
			}
		}

		if hadEvents {
			snapshot, err := s.buildSnapshot(round, idleRounds, comments)
			if err != nil {
				return Result{}, fmt.Errorf("scheduler: build snapshot: %w", err)
			}

			dec, err := s.invokeProvider(ctx, snapshot)
			if err != nil {
				s.logger.Error("decision provider failed", "error", err)
				stopReason = "provider_error"
				break
			}
			providerCalls++
			s.decisionHistory = append(s.decisionHistory, dec)

			applied, err := s.applyDecision(dec)
			if err != nil {
				return Result{}, fmt.Errorf("scheduler: apply decision: %w", err)
			}

			if !applied {
				if err := s.autoReleaseNonplanApprovals(); err != nil {
					return Result{}, fmt.Errorf("scheduler: auto release approvals: %w", err)
				}
			}

			if dec.Stop.ShouldStop {
				stopReason = "provider_stop:" + orDefaultReason(dec.Stop.ReasonShort)
				break
			}
		}

		if s.config.MaxIdleRounds > 0 && idleRounds >= s.config.MaxIdleRounds {
			stopReason = "idle_rounds_limit"
			break
		}
		if s.config.MaxIdleSeconds > 0 && idleRounds > 0 {
			if time.Since(start).Seconds() >= float64(s.config.MaxIdleSeconds) && lastProgressAt > 0 {
				stopReason = "idle_seconds_limit"
				break
			}
		}

		round++
		if s.metrics != nil {
			s.metrics.observeRound()
			s.metrics.setIdleRounds(idleRounds)
		}
		s.publish(ctx, "round_completed", map[string]any{"round": round, "idle_rounds": idleRounds})
		if s.config.TickInterval > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(s.config.TickInterval):
			}
		}
	}

	summary, err := s.store.StatusSummary()
	if err != nil {
		return Result{}, fmt.Errorf("scheduler: status summary: %w", err)
	}
	tasks, err := s.store.ListTasks()
	if err != nil {
		return Result{}, fmt.Errorf("scheduler: list tasks: %w", err)
	}

	summaryByString := make(map[string]int, len(summary))
	for status, n := range summary {
		summaryByString[string(status)] = n
	}

	blockerIDs := make([]string, 0, len(s.blockerTriggered))
	for id := range s.blockerTriggered {
		blockerIDs = append(blockerIDs, id)
	}
	sort.Strings(blockerIDs)

	s.publish(ctx, "run_stopped", map[string]any{"stop_reason": stopReason, "rounds": round})

	return Result{
		StopReason:     stopReason,
		ElapsedSeconds: time.Since(start).Seconds(),
		Rounds:         round,
		Summary:        summaryByString,
		TasksTotal:     len(tasks),
		ProviderCalls:  providerCalls,
		Provider:       s.provider.Name(),
		HumanApproval:  humanApprovalHeld,
		PersonaMetrics: PersonaMetrics{
			SeverityCounts:            s.severityCounts,
			PersonaBlockerTriggered:   blockerIDs,
			WarnRecheckQueueRemaining: len(s.warnQueue),
		},
	}, nil
}

func orDefaultReason(reason string) string {
	if reason == "" {
		return "unspecified"
	}
	return reason
}
