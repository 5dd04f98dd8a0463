// Package risk runs the assessment pipelines: analyzers, aggregation,
// classification, alert-fatigue suppression, recommendations and
// persistence.
package risk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wisefido-risk/internal/analyzer"
	"wisefido-risk/internal/lock"
	"wisefido-risk/internal/metrics"
	"wisefido-risk/internal/models"
	"wisefido-risk/internal/notify"
	"wisefido-risk/internal/profile"
	"wisefido-risk/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Settings tuning knobs, normally from config.Risk.
type Settings struct {
	AlertCoolDown       time.Duration
	EmergencyWindowDays int
	AdherenceWindowDays int
	DefaultPeriodDays   int
	MaxPeriodDays       int
	SweepWorkers        int
	RepositoryTimeout   time.Duration
	Location            *time.Location
}

// DefaultSettings matches the service defaults.
func DefaultSettings() Settings {
	return Settings{
		AlertCoolDown:       7 * 24 * time.Hour,
		EmergencyWindowDays: 7,
		AdherenceWindowDays: 30,
		DefaultPeriodDays:   14,
		MaxPeriodDays:       90,
		SweepWorkers:        8,
		RepositoryTimeout:   10 * time.Second,
		Location:            time.UTC,
	}
}

// Deps collaborators of the engine. Suppressor defaults to a cool-down
// suppressor over Alerts; Publisher defaults to notify.Nop.
type Deps struct {
	Signals     repository.SignalRepository
	Alerts      repository.AlertRepository
	Assessments repository.AssessmentRepository
	Locker      lock.SubjectLocker
	Names       profile.NameResolver
	Publisher   notify.Publisher
	Suppressor  Suppressor
	Metrics     *metrics.Metrics
	Registry    *analyzer.Registry
}

type Engine struct {
	signals     repository.SignalRepository
	assessments repository.AssessmentRepository
	locker      lock.SubjectLocker
	suppressor  Suppressor
	emitter     *Emitter
	registry    *analyzer.Registry
	metrics     *metrics.Metrics
	settings    Settings
	logger      *zap.Logger
	now         func() time.Time
}

func NewEngine(deps Deps, settings Settings, logger *zap.Logger) (*Engine, error) {
	if deps.Signals == nil {
		return nil, fmt.Errorf("signal repository is required")
	}
	if deps.Alerts == nil {
		return nil, fmt.Errorf("alert repository is required")
	}
	if deps.Assessments == nil {
		return nil, fmt.Errorf("assessment repository is required")
	}
	if deps.Locker == nil {
		return nil, fmt.Errorf("subject locker is required")
	}
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	if settings.SweepWorkers < 1 {
		settings.SweepWorkers = 1
	}
	if settings.MaxPeriodDays < 1 {
		settings.MaxPeriodDays = 90
	}

	registry := deps.Registry
	if registry == nil {
		registry = analyzer.NewDefaultRegistry()
	}
	for _, p := range []Pipeline{EmergencyPatternPipeline(), CaregiverBurnoutPipeline(), MedicationAdherencePipeline()} {
		if _, err := registry.Select(p.Analyzers...); err != nil {
			return nil, fmt.Errorf("pipeline %s: %w", p.Name, err)
		}
		if err := p.Breakpoints.Validate(); err != nil {
			return nil, fmt.Errorf("pipeline %s: %w", p.Name, err)
		}
	}

	suppressor := deps.Suppressor
	if suppressor == nil {
		suppressor = NewCoolDownSuppressor(deps.Alerts, settings.AlertCoolDown, logger)
	}

	return &Engine{
		signals:     deps.Signals,
		assessments: deps.Assessments,
		locker:      deps.Locker,
		suppressor:  suppressor,
		emitter:     NewEmitter(deps.Assessments, deps.Alerts, deps.Names, deps.Publisher, deps.Metrics, logger),
		registry:    registry,
		metrics:     deps.Metrics,
		settings:    settings,
		logger:      logger,
		now:         time.Now,
	}, nil
}

// SetClock replaces time.Now; tests only.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// subject identifies what a run assesses and whose name titles the alert.
type subject struct {
	id     string
	nameID string
}

// RunEmergencyPatternAssessment compares the elder's last EmergencyWindowDays
// against the window before it.
func (e *Engine) RunEmergencyPatternAssessment(ctx context.Context, elderID string, sensitivity analyzer.Sensitivity) (*models.RiskAssessment, error) {
	p := EmergencyPatternPipeline()
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	if err := e.requireSubject(ctx, models.SubjectElder, elderID); err != nil {
		return nil, err
	}
	window := models.NewTrailingWindow(e.now(), e.settings.EmergencyWindowDays)
	span := window.Union(window.Previous())

	doses, err := e.signals.FetchDoseEvents(ctx, elderID, "", span)
	if err != nil {
		return nil, unavailable("fetch dose events", err)
	}
	intakes, err := e.signals.FetchIntakeEvents(ctx, elderID, span)
	if err != nil {
		return nil, unavailable("fetch intake events", err)
	}

	in := analyzer.Input{
		Window:   window,
		Baseline: window.Previous(),
		Doses:    doses,
		Intakes:  intakes,
		Location: e.settings.Location,
	}
	return e.run(ctx, &p, subject{id: elderID, nameID: elderID}, in, analyzer.ProfileFor(sensitivity))
}

// RunCaregiverBurnoutAssessment looks at the last periodDays of shifts;
// periodDays <= 0 uses the default period.
func (e *Engine) RunCaregiverBurnoutAssessment(ctx context.Context, caregiverID string, periodDays int) (*models.RiskAssessment, error) {
	periodDays, err := e.period(periodDays)
	if err != nil {
		return nil, err
	}
	p := CaregiverBurnoutPipeline()
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	if err := e.requireSubject(ctx, models.SubjectCaregiver, caregiverID); err != nil {
		return nil, err
	}
	window := models.NewTrailingWindow(e.now(), periodDays)
	shifts, err := e.signals.FetchShifts(ctx, caregiverID, window)
	if err != nil {
		return nil, unavailable("fetch shifts", err)
	}

	in := analyzer.Input{
		Window:   window,
		Baseline: window.Previous(),
		Shifts:   shifts,
		Location: e.settings.Location,
	}
	return e.run(ctx, &p, subject{id: caregiverID, nameID: caregiverID}, in, analyzer.ProfileFor(analyzer.SensitivityMedium))
}

// RunAdherencePrediction scores one medication of one elder over the last
// AdherenceWindowDays. The assessment subject is the medication.
func (e *Engine) RunAdherencePrediction(ctx context.Context, medicationID, elderID string) (*models.RiskAssessment, error) {
	p := MedicationAdherencePipeline()
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	if err := e.requireSubject(ctx, models.SubjectElder, elderID); err != nil {
		return nil, err
	}
	if err := e.requireSubject(ctx, models.SubjectMedication, medicationID); err != nil {
		return nil, err
	}
	owned, err := e.signals.MedicationBelongsTo(ctx, medicationID, elderID)
	if err != nil {
		return nil, unavailable("check medication owner", err)
	}
	if !owned {
		return nil, fmt.Errorf("%w: medication %s is not prescribed to elder %s", ErrInvalidSubject, medicationID, elderID)
	}
	window := models.NewTrailingWindow(e.now(), e.settings.AdherenceWindowDays)
	doses, err := e.signals.FetchDoseEvents(ctx, elderID, medicationID, window)
	if err != nil {
		return nil, unavailable("fetch dose events", err)
	}

	in := analyzer.Input{
		Window:   window,
		Baseline: window.Previous(),
		Doses:    doses,
		Location: e.settings.Location,
	}
	return e.run(ctx, &p, subject{id: medicationID, nameID: elderID}, in, adherenceProfile())
}

// RetryAlert resumes the alert write of a partially persisted run.
func (e *Engine) RetryAlert(ctx context.Context, partial *PartialPersistenceError) (*models.RiskAssessment, error) {
	if partial == nil || partial.Assessment == nil || partial.Alert == nil {
		return nil, fmt.Errorf("%w: partial persistence details are required", ErrInvalidArgument)
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	release, err := e.locker.Lock(ctx, partial.Assessment.SubjectID)
	if err != nil {
		return nil, unavailable("lock subject", err)
	}
	defer release()

	if err := e.emitter.writeAlert(ctx, partial.Pipeline, partial.Assessment, partial.Alert, partial.Stage); err != nil {
		return nil, err
	}
	return partial.Assessment, nil
}

// GetAssessment by id.
func (e *Engine) GetAssessment(ctx context.Context, assessmentID string) (*models.RiskAssessment, error) {
	a, err := e.assessments.GetAssessment(ctx, assessmentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, unavailable("get assessment", err)
	}
	return a, nil
}

// ListAssessments newest first.
func (e *Engine) ListAssessments(ctx context.Context, subjectID string, page, size int) ([]*models.RiskAssessment, int, error) {
	if subjectID == "" {
		return nil, 0, fmt.Errorf("%w: subject id is required", ErrInvalidSubject)
	}
	list, total, err := e.assessments.ListAssessments(ctx, subjectID, page, size)
	if err != nil {
		return nil, 0, unavailable("list assessments", err)
	}
	return list, total, nil
}

// RecordReview stores the human review of an assessment (write once).
func (e *Engine) RecordReview(ctx context.Context, assessmentID, reviewer, action string) (*models.RiskAssessment, error) {
	if assessmentID == "" {
		return nil, fmt.Errorf("%w: assessment id is required", ErrInvalidArgument)
	}
	if reviewer == "" {
		return nil, fmt.Errorf("%w: reviewer is required", ErrInvalidArgument)
	}
	err := e.assessments.RecordReview(ctx, assessmentID, reviewer, action, e.now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrAlreadyReviewed) {
			return nil, err
		}
		return nil, unavailable("record review", err)
	}
	return e.GetAssessment(ctx, assessmentID)
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.settings.RepositoryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.settings.RepositoryTimeout)
}

func (e *Engine) period(days int) (int, error) {
	if days <= 0 {
		return e.settings.DefaultPeriodDays, nil
	}
	if days > e.settings.MaxPeriodDays {
		return 0, fmt.Errorf("%w: period_days must be between 1 and %d", ErrInvalidArgument, e.settings.MaxPeriodDays)
	}
	return days, nil
}

func (e *Engine) requireSubject(ctx context.Context, kind models.SubjectKind, id string) error {
	if id == "" {
		return fmt.Errorf("%w: %s id is required", ErrInvalidSubject, kind)
	}
	ok, err := e.signals.SubjectExists(ctx, kind, id)
	if err != nil {
		return unavailable("check subject", err)
	}
	if !ok {
		return fmt.Errorf("%w: unknown %s %s", ErrInvalidSubject, kind, id)
	}
	return nil
}

// analyze runs the pipeline's analyzers concurrently; factors keep pipeline
// order.
func (e *Engine) analyze(ctx context.Context, p *Pipeline, subjectID string, in analyzer.Input, prof analyzer.Profile) ([]models.RiskFactor, error) {
	analyzers, err := e.registry.Select(p.Analyzers...)
	if err != nil {
		return nil, err
	}
	results := make([]*models.RiskFactor, len(analyzers))
	g, _ := errgroup.WithContext(ctx)
	for i, a := range analyzers {
		if n := a.Records(in); n < a.MinRecords() {
			e.logger.Debug("Insufficient data",
				zap.String("pipeline", p.Name),
				zap.String("subject_id", subjectID),
				zap.String("analyzer", a.Name()),
				zap.Int("records", n),
				zap.Int("min_records", a.MinRecords()),
			)
			continue
		}
		i, a := i, a
		g.Go(func() error {
			results[i] = a.Analyze(in, prof)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	factors := make([]models.RiskFactor, 0, len(results))
	for i, f := range results {
		if f == nil {
			e.logger.Debug("No factor",
				zap.String("pipeline", p.Name),
				zap.String("subject_id", subjectID),
				zap.String("analyzer", analyzers[i].Name()),
			)
			continue
		}
		factors = append(factors, *f)
	}
	return factors, nil
}

func (e *Engine) run(ctx context.Context, p *Pipeline, s subject, in analyzer.Input, prof analyzer.Profile) (*models.RiskAssessment, error) {
	started := time.Now()

	factors, err := e.analyze(ctx, p, s.id, in, prof)
	if err != nil {
		return nil, err
	}
	agg := AggregateFactors(factors, p.Breakpoints, p.Gate)

	a := &models.RiskAssessment{
		ID:              uuid.NewString(),
		Pipeline:        p.Name,
		SubjectID:       s.id,
		SubjectKind:     p.SubjectKind,
		WindowStart:     in.Window.Start,
		WindowEnd:       in.Window.End,
		TotalScore:      agg.TotalScore,
		SeverityTier:    agg.Tier,
		Factors:         factors,
		Recommendations: Recommend(factors, p.Closing, p.NoConcerns),
		CreatedAt:       e.now(),
	}

	if !agg.Eligible {
		if err := e.emitter.Emit(ctx, p, a, s.nameID, Decision{}, false); err != nil {
			return nil, err
		}
		e.finish(p, a, started)
		return a, nil
	}

	// Check-and-emit must not interleave with another run for this subject.
	release, err := e.locker.Lock(ctx, s.id)
	if err != nil {
		return nil, unavailable("lock subject", err)
	}
	defer release()

	decision, err := e.suppressor.ShouldSuppress(ctx, s.id, p.AlertType, agg.Tier, a.CreatedAt)
	if err != nil {
		return nil, err
	}
	if decision.Suppress {
		e.metrics.AlertSuppressed(p.Name, decision.Reason)
	}

	if err := e.emitter.Emit(ctx, p, a, s.nameID, decision, !decision.Suppress); err != nil {
		var partial *PartialPersistenceError
		if errors.As(err, &partial) {
			e.finish(p, a, started)
			return a, err
		}
		return nil, err
	}
	e.finish(p, a, started)
	return a, nil
}

func (e *Engine) finish(p *Pipeline, a *models.RiskAssessment, started time.Time) {
	e.metrics.ObserveAssessment(p.Name, a.SeverityTier, time.Since(started))
	e.logger.Info("Assessment completed",
		zap.String("pipeline", p.Name),
		zap.String("assessment_id", a.ID),
		zap.String("subject_id", a.SubjectID),
		zap.Int("total_score", a.TotalScore),
		zap.String("tier", string(a.SeverityTier)),
		zap.Int("factors", len(a.Factors)),
		zap.Bool("alert_generated", a.AlertGenerated),
	)
}
