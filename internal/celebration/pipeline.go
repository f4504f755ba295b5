package celebration

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"birthdaybot/internal/types"
)

// Sentinel failures of the pipeline. They are reported through
// PipelineResult.Error rather than returned.
var (
	ErrNoPeople   = types.NewAppError(types.ErrCodeValidationNoPeople, "no birthday people to celebrate", nil)
	ErrAllInvalid = types.NewAppError(types.ErrCodeValidationAllInvalid, "all birthday people became invalid before posting", nil)
)

// markTimeout bounds the fail-safe marking done after the run's own context
// has been cancelled or has expired.
const markTimeout = 10 * time.Second

// Options describe one pipeline invocation.
type Options struct {
	ChannelID string
	Mode      types.Mode
	// Reference is the moment the run is evaluated at. Zero means now.
	Reference  time.Time
	Generation types.GenerationOptions
}

// PipelineDeps wires a Pipeline. Threads, Events, Race and Metrics are optional.
type PipelineDeps struct {
	Generator  Generator
	Validator  *Validator
	Reconciler *Reconciler
	Poster     *Poster
	Tracker    *Tracker
	Race       *RaceReporter
	Threads    ThreadRecorder
	Events     EventPublisher
	Metrics    Metrics
	Clock      types.Clock
	Logger     types.Logger
}

// Pipeline sequences generate, validate, reconcile, post and mark for one
// batch of birthday people.
type Pipeline struct {
	generator  Generator
	validator  *Validator
	reconciler *Reconciler
	poster     *Poster
	tracker    *Tracker
	race       *RaceReporter
	threads    ThreadRecorder
	events     EventPublisher
	metrics    Metrics
	clock      types.Clock
	tracer     trace.Tracer
	logger     types.Logger
	newRunID   func() string
}

// NewPipeline creates a Pipeline from deps.
func NewPipeline(deps PipelineDeps) *Pipeline {
	p := &Pipeline{
		generator:  deps.Generator,
		validator:  deps.Validator,
		reconciler: deps.Reconciler,
		poster:     deps.Poster,
		tracker:    deps.Tracker,
		race:       deps.Race,
		threads:    deps.Threads,
		events:     deps.Events,
		metrics:    deps.Metrics,
		clock:      deps.Clock,
		logger:     deps.Logger,
		tracer:     otel.Tracer("birthdaybot/celebration"),
		newRunID:   uuid.NewString,
	}
	if p.metrics == nil {
		p.metrics = NopMetrics{}
	}
	if p.clock == nil {
		p.clock = types.RealClock{}
	}
	if p.logger == nil {
		p.logger = types.NopLogger{}
	}
	if p.reconciler == nil {
		p.reconciler = NewReconciler(DefaultRegenerateThreshold)
	}
	if p.race == nil {
		p.race = NewRaceReporter(p.metrics, nil, DefaultRaceAlertThreshold, p.clock, p.logger)
	}
	return p
}

// Celebrate runs the pipeline for candidates.
//
// An empty batch fails without marking anyone. Once generation has been
// attempted, every failure still marks people as celebrated so that an outage
// does not make the next scheduled run post them again: the valid people when
// validation finished, otherwise all candidates. When nobody is valid the
// original candidates are marked. A failed send leaves MessageSent false. A
// panic in a collaborator is recovered and handled like any other failure.
func (p *Pipeline) Celebrate(ctx context.Context, candidates []types.BirthdayPerson, opts Options) (res types.PipelineResult) {
	runID := p.newRunID()
	ctx = types.WithRunID(ctx, runID)
	logger := p.logger.With("run_id", runID, "mode", string(opts.Mode), "channel", opts.ChannelID)
	ctx = types.WithLogger(ctx, logger)

	ref := opts.Reference
	if ref.IsZero() {
		ref = p.clock.Now()
	}
	genOpts := opts.Generation
	genOpts.Mode = opts.Mode

	ctx, span := p.tracer.Start(ctx, "celebration.pipeline", trace.WithAttributes(
		attribute.String("celebration.run_id", runID),
		attribute.String("celebration.mode", string(opts.Mode)),
		attribute.Int("celebration.candidates", len(candidates)),
	))
	defer span.End()

	result := types.PipelineResult{
		CelebratedPeople: []types.BirthdayPerson{},
		FilteredPeople:   []types.InvalidPerson{},
	}

	stage, known, marked := "generate", candidates, false
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		err := fmt.Errorf("panic: %v", r)
		if marked {
			logger.Error("celebration pipeline panicked after marking", "stage", stage, "error", err.Error())
			span.RecordError(err)
			res = result
			return
		}
		res = p.failForward(ctx, span, logger, stage, err, known, opts.Mode, ref, result)
	}()

	if len(candidates) == 0 {
		logger.Warn("celebration pipeline called with no people")
		result.Error = ErrNoPeople.Error()
		p.finish(ctx, span, opts.Mode, &result)
		return result
	}

	logger.Info("celebration pipeline started", "candidates", len(candidates))

	// GENERATE
	started := p.clock.Now()
	draft, err := p.generate(ctx, candidates, genOpts)
	genDuration := p.clock.Now().Sub(started)
	p.metrics.RecordGenerationDuration(ctx, opts.Mode, genDuration)
	if err != nil {
		return p.failForward(ctx, span, logger, "generate", err, candidates, opts.Mode, ref, result)
	}
	result.PersonalityUsed = draft.PersonalityUsed

	// VALIDATE
	stage = "validate"
	outcome := p.validate(ctx, candidates, ref, opts)
	result.FilteredPeople = outcome.Invalid
	p.race.Detected(ctx, opts.Mode, outcome, genDuration)

	if len(outcome.Valid) == 0 {
		p.race.ActionTaken(ctx, opts.Mode, outcome, types.ActionSkipped)
		result.Action = types.ActionSkipped
		logger.Warn("all birthday people invalid, skipping celebration", "candidates", len(candidates))
		p.markSafely(ctx, logger, candidates, opts.Mode, ref)
		marked = true
		result.Error = ErrAllInvalid.Error()
		p.finish(ctx, span, opts.Mode, &result)
		return result
	}

	// RECONCILE
	stage, known = "reconcile", outcome.Valid
	content, action, err := p.reconciler.Reconcile(ctx, draft, outcome, func(ctx context.Context, valid []types.BirthdayPerson) (types.GeneratedContent, error) {
		return p.generate(ctx, valid, genOpts)
	})
	if err != nil {
		return p.failForward(ctx, span, logger, "reconcile", err, outcome.Valid, opts.Mode, ref, result)
	}
	result.Action = action
	result.PersonalityUsed = content.PersonalityUsed
	p.race.ActionTaken(ctx, opts.Mode, outcome, action)

	// POST
	stage = "post"
	posted, err := p.post(ctx, opts.ChannelID, content, outcome.Valid, ref)
	if err != nil {
		return p.failForward(ctx, span, logger, "post", err, outcome.Valid, opts.Mode, ref, result)
	}
	result.MessageSent = posted.MessageSent
	result.ImagesSent = posted.ImagesSent
	result.MessageTS = posted.MessageTS

	// MARK
	p.markSafely(ctx, logger, outcome.Valid, opts.Mode, ref)
	marked = true
	result.CelebratedPeople = outcome.Valid
	result.Success = true

	p.afterPost(ctx, logger, opts, content, outcome.Valid, posted)
	p.finish(ctx, span, opts.Mode, &result)

	logger.Info("celebration pipeline completed",
		"celebrated", len(result.CelebratedPeople),
		"filtered", len(result.FilteredPeople),
		"images", result.ImagesSent,
		"action", string(result.Action),
		"personality", result.PersonalityUsed,
	)
	return result
}

func (p *Pipeline) generate(ctx context.Context, people []types.BirthdayPerson, opts types.GenerationOptions) (types.GeneratedContent, error) {
	ctx, span := p.tracer.Start(ctx, "celebration.generate", trace.WithAttributes(
		attribute.Int("celebration.people", len(people)),
	))
	defer span.End()

	content, err := p.generator.Generate(ctx, people, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return content, err
}

func (p *Pipeline) validate(ctx context.Context, people []types.BirthdayPerson, ref time.Time, opts Options) types.ValidationOutcome {
	ctx, span := p.tracer.Start(ctx, "celebration.validate")
	defer span.End()

	outcome := p.validator.Validate(ctx, people, ref, opts.ChannelID, opts.Mode)
	span.SetAttributes(
		attribute.Int("celebration.valid", outcome.Summary.Valid),
		attribute.Int("celebration.invalid", outcome.Summary.Invalid),
	)
	return outcome
}

func (p *Pipeline) post(ctx context.Context, channel string, content types.GeneratedContent, people []types.BirthdayPerson, ref time.Time) (PostResult, error) {
	ctx, span := p.tracer.Start(ctx, "celebration.post", trace.WithAttributes(
		attribute.Int("celebration.images", len(content.Images)),
	))
	defer span.End()

	res, err := p.poster.Post(ctx, channel, content, people, ref)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

// failForward marks people despite the failure and returns a failed result.
func (p *Pipeline) failForward(ctx context.Context, span trace.Span, logger types.Logger, stage string, err error, people []types.BirthdayPerson, mode types.Mode, ref time.Time, result types.PipelineResult) types.PipelineResult {
	logger.Error("celebration pipeline failed, marking people to prevent reposting",
		"stage", stage,
		"people", len(people),
		"error", err.Error(),
	)
	span.RecordError(err)
	p.markSafely(ctx, logger, people, mode, ref)

	result.Success = false
	result.MessageSent = false
	result.Error = err.Error()
	p.finish(ctx, span, mode, &result)
	return result
}

// markSafely marks people even when ctx has already been cancelled, and logs
// rather than returns a marking failure.
func (p *Pipeline) markSafely(ctx context.Context, logger types.Logger, people []types.BirthdayPerson, mode types.Mode, ref time.Time) {
	markCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), markTimeout)
	defer cancel()
	if err := p.tracker.Mark(markCtx, people, mode, ref); err != nil {
		logger.Error("failed to mark people as celebrated", "people", len(people), "error", err.Error())
	}
}

// afterPost records the thread and publishes the posted event. Both are
// best-effort.
func (p *Pipeline) afterPost(ctx context.Context, logger types.Logger, opts Options, content types.GeneratedContent, people []types.BirthdayPerson, posted PostResult) {
	if opts.Mode == types.ModeTest || posted.MessageTS == "" {
		return
	}
	ids := make([]string, len(people))
	for i, person := range people {
		ids[i] = person.UserID
	}
	now := p.clock.Now()
	runID := types.GetRunID(ctx)

	if p.threads != nil {
		err := p.threads.Record(ctx, types.CelebrationThread{
			ChannelID:   opts.ChannelID,
			MessageTS:   posted.MessageTS,
			UserIDs:     ids,
			Personality: content.PersonalityUsed,
			RunID:       runID,
			PostedAt:    now,
		})
		if err != nil {
			logger.Warn("failed to record celebration thread", "ts", posted.MessageTS, "error", err.Error())
		}
	}

	if p.events != nil {
		err := p.events.PublishPosted(ctx, PostedEvent{
			RunID:       runID,
			Mode:        opts.Mode,
			ChannelID:   opts.ChannelID,
			MessageTS:   posted.MessageTS,
			UserIDs:     ids,
			Personality: content.PersonalityUsed,
			ImagesSent:  posted.ImagesSent,
			PostedAt:    now,
		})
		if err != nil {
			logger.Warn("failed to publish celebration event", "ts", posted.MessageTS, "error", err.Error())
		}
	}
}

func (p *Pipeline) finish(ctx context.Context, span trace.Span, mode types.Mode, result *types.PipelineResult) {
	span.SetAttributes(
		attribute.Bool("celebration.success", result.Success),
		attribute.Int("celebration.celebrated", len(result.CelebratedPeople)),
	)
	if !result.Success {
		span.SetStatus(codes.Error, result.Error)
	}
	p.metrics.RecordRun(ctx, mode, result.Success)
	p.metrics.RecordPeople(ctx, mode, len(result.CelebratedPeople), len(result.FilteredPeople))
	if result.MessageSent {
		p.metrics.RecordImagesSent(ctx, mode, result.ImagesSent)
	}
}
