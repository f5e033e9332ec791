package extractions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/ratesheet/internal/assistant"
	"github.com/JaimeStill/ratesheet/internal/assistants"
	"github.com/JaimeStill/ratesheet/internal/contracts"
	"github.com/JaimeStill/ratesheet/internal/prompts"
	"github.com/JaimeStill/ratesheet/internal/schema"
	"github.com/JaimeStill/ratesheet/pkg/lifecycle"
	"github.com/JaimeStill/ratesheet/pkg/pagination"
	"github.com/JaimeStill/ratesheet/pkg/storage"
)

// failTimeout bounds the writes that record a job failure after its own
// context is gone.
const failTimeout = 30 * time.Second

// errStopped ends processing quietly when the job was cancelled or left the
// active states elsewhere.
var errStopped = errors.New("extraction job stopped")

// Querier sends one section prompt to a tenant's assistant. It never fails;
// every outcome is carried by the returned result.
type Querier interface {
	Query(ctx context.Context, ref, prompt, section string, timeout time.Duration) assistant.Result
}

// Dependencies are the collaborators an Orchestrator drives.
type Dependencies struct {
	Store      Store
	Contracts  contracts.System
	Assistants assistants.System
	Assistant  Querier
	Storage    storage.System
	Schema     *schema.Registry
}

// Options tune job processing.
type Options struct {
	ArtifactPrefix string
	// SectionTimeout applies to sections without their own timeout.
	SectionTimeout time.Duration
	// SectionTimeouts override the timeout of individual sections by name.
	SectionTimeouts map[string]time.Duration
	Delay           time.Duration
	// HeavyDelay replaces Delay once a job's tokens exceed TokenThreshold.
	HeavyDelay     time.Duration
	TokenThreshold int
	Pagination     pagination.Config
	Now            func() time.Time
}

// Orchestrator starts, tracks, and cancels extraction jobs. Each job runs in
// its own goroutine and walks the schema sections sequentially.
type Orchestrator struct {
	store      Store
	contracts  contracts.System
	assistants assistants.System
	assistant  Querier
	artifacts  *Artifacts
	schema     *schema.Registry
	registry   *Registry
	opts       Options
	logger     *slog.Logger

	mu       sync.Mutex
	stopping bool
	wg       sync.WaitGroup
}

// New creates an Orchestrator. Zero-valued options fall back to the
// assistant client's default timeout and the "extractions" prefix.
func New(deps Dependencies, opts Options, logger *slog.Logger) *Orchestrator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ArtifactPrefix == "" {
		opts.ArtifactPrefix = "extractions"
	}
	if opts.SectionTimeout <= 0 {
		opts.SectionTimeout = assistant.DefaultTimeout
	}
	if opts.Pagination.DefaultPageSize <= 0 || opts.Pagination.MaxPageSize <= 0 {
		opts.Pagination = pagination.Config{DefaultPageSize: 20, MaxPageSize: 100}
	}

	logger = logger.With("system", "extractions")

	return &Orchestrator{
		store:      deps.Store,
		contracts:  deps.Contracts,
		assistants: deps.Assistants,
		assistant:  deps.Assistant,
		artifacts:  NewArtifacts(deps.Storage, logger),
		schema:     deps.Schema,
		registry:   NewRegistry(),
		opts:       opts,
		logger:     logger,
	}
}

func (o *Orchestrator) Handler() *Handler {
	return NewHandler(o, o.logger, o.opts.Pagination)
}

func (o *Orchestrator) Schema() *schema.Registry {
	return o.schema
}

func (o *Orchestrator) Start(ctx context.Context, cmd StartCommand) (*Job, error) {
	contract, err := o.contracts.Find(ctx, cmd.TenantID, cmd.ContractID)
	if err != nil {
		if errors.Is(err, contracts.ErrNotFound) {
			return nil, ErrContractNotFound
		}
		return nil, fmt.Errorf("find contract: %w", err)
	}

	if err := o.ensureIdle(ctx, contract.ID); err != nil {
		return nil, err
	}

	if o.isStopping() {
		return nil, ErrShuttingDown
	}

	sections := o.schema.Sections()
	statuses := make(SectionsStatus, len(sections))
	for _, s := range sections {
		statuses[s.Name] = SectionPending
	}

	job, err := o.store.CreateJob(ctx, CreateJobCommand{
		ID:         uuid.New(),
		TenantID:   cmd.TenantID,
		ContractID: contract.ID,
		UserID:     cmd.UserID,
		OutputDirectory: OutputDirectory(
			o.opts.ArtifactPrefix,
			cmd.TenantID.String(),
			contract.ID.String(),
			o.opts.Now(),
		),
		TotalSections:  len(sections),
		SectionsStatus: statuses,
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyActive) {
			if idleErr := o.ensureIdle(ctx, contract.ID); idleErr != nil {
				return nil, idleErr
			}
		}
		return nil, fmt.Errorf("create extraction job: %w", err)
	}

	if err := o.contracts.SetExtractionStarted(ctx, contract.ID, job.ID); err != nil {
		o.fail(job, err)
		return nil, fmt.Errorf("mark contract extraction started: %w", err)
	}

	jobCtx, cancel := context.WithCancel(context.Background())

	o.mu.Lock()
	if o.stopping {
		o.mu.Unlock()
		cancel()
		if err := o.cancelForShutdown(context.WithoutCancel(ctx), job.ID, contract.ID); err != nil {
			o.logger.Error("cancel job started during shutdown", "id", job.ID, "error", err)
		}
		return nil, ErrShuttingDown
	}
	o.registry.Register(job.ID, contract.ID, cancel)
	o.wg.Add(1)
	o.mu.Unlock()

	go o.run(jobCtx, cancel, job, *contract, sections)

	o.logger.Info(
		"extraction job started",
		"id", job.ID,
		"contract_id", contract.ID,
		"sections", len(sections),
	)
	return job, nil
}

func (o *Orchestrator) Cancel(ctx context.Context, tenantID, id uuid.UUID) (*Job, error) {
	job, err := o.Find(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if !job.Active() {
		return nil, &NotCancellableError{Status: job.Status}
	}

	if err := o.store.SetStatus(ctx, id, StatusCancelled, nil); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			latest, ferr := o.store.GetJob(ctx, id)
			if ferr != nil {
				return nil, ferr
			}
			return nil, &NotCancellableError{Status: latest.Status}
		}
		return nil, fmt.Errorf("cancel extraction job: %w", err)
	}

	o.registry.Cancel(id)

	if err := o.contracts.SetExtractionStatus(ctx, job.ContractID, contracts.StatusCancelled, nil); err != nil {
		o.logger.Error("contract status update failed", "id", id, "contract_id", job.ContractID, "error", err)
	}

	o.logger.Info("extraction job cancelled", "id", id)
	return o.store.GetJob(ctx, id)
}

func (o *Orchestrator) Find(ctx context.Context, tenantID, id uuid.UUID) (*Job, error) {
	job, err := o.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.TenantID != tenantID {
		return nil, ErrNotFound
	}
	return job, nil
}

func (o *Orchestrator) ListForContract(ctx context.Context, tenantID, contractID uuid.UUID) ([]Job, error) {
	if _, err := o.contracts.Find(ctx, tenantID, contractID); err != nil {
		if errors.Is(err, contracts.ErrNotFound) {
			return nil, ErrContractNotFound
		}
		return nil, fmt.Errorf("find contract: %w", err)
	}
	return o.store.ListJobsForContract(ctx, contractID)
}

func (o *Orchestrator) List(
	ctx context.Context,
	tenantID uuid.UUID,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Job], error) {
	page.Normalize(o.opts.Pagination)
	filters.TenantID = &tenantID
	return o.store.ListJobs(ctx, page, filters)
}

func (o *Orchestrator) ListArtifacts(ctx context.Context, tenantID, id uuid.UUID, pattern string) (*ArtifactListing, error) {
	job, err := o.completedJob(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	files, err := o.artifacts.List(ctx, job.OutputDirectory, pattern)
	if err != nil {
		return nil, err
	}

	return &ArtifactListing{
		JobID:           job.ID.String(),
		OutputDirectory: job.OutputDirectory,
		Files:           files,
	}, nil
}

func (o *Orchestrator) OpenArtifact(ctx context.Context, tenantID, id uuid.UUID, name string) (*storage.BlobResult, error) {
	job, err := o.completedJob(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if name == "" {
		name = ConsolidatedArtifact
	}
	return o.artifacts.Open(ctx, job.OutputDirectory, name)
}

func (o *Orchestrator) Register(lc *lifecycle.Coordinator) {
	lc.OnDrain(func(ctx context.Context) {
		if err := o.Shutdown(ctx); err != nil {
			o.logger.Error("extraction shutdown incomplete", "error", err)
		}
	})
}

func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.stopping = true
	o.mu.Unlock()

	jobs := o.registry.Drain()
	if len(jobs) > 0 {
		o.logger.Info("cancelling active extraction jobs", "count", len(jobs))
	}

	var g errgroup.Group
	for id, job := range jobs {
		g.Go(func() error {
			defer job.Cancel()
			return o.cancelForShutdown(ctx, id, job.ContractID)
		})
	}
	err := g.Wait()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		err = errors.Join(err, fmt.Errorf("wait for extraction jobs: %w", ctx.Err()))
	}
	return err
}

// Wait blocks until every started job goroutine has returned.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) cancelForShutdown(ctx context.Context, id, contractID uuid.UUID) error {
	msg := ShutdownMessage
	if err := o.store.SetStatus(ctx, id, StatusCancelled, &msg); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			return nil
		}
		return fmt.Errorf("cancel extraction job %s: %w", id, err)
	}

	if err := o.contracts.SetExtractionStatus(ctx, contractID, contracts.StatusCancelled, nil); err != nil {
		return fmt.Errorf("update contract %s: %w", contractID, err)
	}
	return nil
}

func (o *Orchestrator) ensureIdle(ctx context.Context, contractID uuid.UUID) error {
	active, err := o.store.FindActiveJobForContract(ctx, contractID)
	if err == nil {
		return &ActiveJobError{JobID: active.ID, Status: active.Status}
	}
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return fmt.Errorf("find active extraction job: %w", err)
}

func (o *Orchestrator) isStopping() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stopping
}

func (o *Orchestrator) completedJob(ctx context.Context, tenantID, id uuid.UUID) (*Job, error) {
	job, err := o.Find(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if job.Status != StatusCompleted {
		return nil, ErrNotCompleted
	}
	return job, nil
}

// fail records an orchestration fault on the job and its contract. A job
// that already reached a terminal state is left as it is.
func (o *Orchestrator) fail(job *Job, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), failTimeout)
	defer cancel()

	o.logger.Error("extraction job failed", "id", job.ID, "error", cause)

	msg := cause.Error()
	if err := o.store.SetStatus(ctx, job.ID, StatusFailed, &msg); err != nil {
		if !errors.Is(err, ErrInvalidTransition) {
			o.logger.Error("record job failure", "id", job.ID, "error", err)
		}
		return
	}

	if err := o.contracts.SetExtractionStatus(ctx, job.ContractID, contracts.StatusFailed, nil); err != nil {
		o.logger.Error("contract status update failed", "id", job.ID, "contract_id", job.ContractID, "error", err)
	}
}

func (o *Orchestrator) run(
	ctx context.Context,
	cancel context.CancelFunc,
	job *Job,
	contract contracts.Contract,
	sections []schema.Section,
) {
	defer o.wg.Done()
	defer o.registry.Unregister(job.ID)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			o.fail(job, fmt.Errorf("extraction panic: %v", r))
		}
	}()

	err := o.process(ctx, job, contract, sections)
	switch {
	case err == nil:
	case errors.Is(err, errStopped):
		o.logger.Info("extraction job stopped", "id", job.ID)
	default:
		o.fail(job, err)
	}
}

func (o *Orchestrator) process(
	ctx context.Context,
	job *Job,
	contract contracts.Contract,
	sections []schema.Section,
) error {
	if err := o.store.MarkProcessing(ctx, job.ID); err != nil {
		return stopped(ctx, err)
	}

	ref, err := o.assistantRef(ctx, job.TenantID)
	if err != nil {
		return stopped(ctx, err)
	}

	contractCtx := prompts.ContractContext{
		CarrierName:    contract.CarrierName,
		ContractNumber: contract.ContractNumber,
		FileName:       contract.FileName,
	}

	statuses := job.SectionsStatus.Clone()
	consolidated := make(orderedSections, 0, len(sections))
	completed, tokens := 0, 0

	for i, section := range sections {
		if err := o.ensureActive(ctx, job.ID); err != nil {
			return err
		}

		name := section.Name
		if err := o.store.UpdateProgress(ctx, job.ID, ProgressUpdate{CurrentSection: &name}); err != nil {
			return stopped(ctx, err)
		}

		prompt := prompts.Build(section, contractCtx)
		res := o.assistant.Query(ctx, ref, prompt, name, o.sectionTimeout(section))
		if ctx.Err() != nil {
			return errStopped
		}
		if !res.OK() {
			o.logger.Warn(
				"section extraction degraded",
				"id", job.ID,
				"section", name,
				"kind", res.Kind,
				"message", res.Message(),
			)
		}

		extracted := ParseResponse(res.Payload(), section, o.opts.Now())
		tokens += res.TokensUsed

		if err := o.artifacts.WriteJSON(ctx, job.OutputDirectory, name+".json", extracted); err != nil {
			if ctx.Err() != nil {
				return errStopped
			}
			o.logger.Error("section artifact write failed", "id", job.ID, "section", name, "error", err)
			statuses[name] = SectionFailed
			consolidated = append(consolidated, sectionEntry{
				name:  name,
				value: sectionFailure{Error: err.Error(), Status: SectionFailed},
			})
		} else {
			completed++
			statuses[name] = SectionCompleted
			consolidated = append(consolidated, sectionEntry{name: name, value: extracted})
		}

		update := ProgressUpdate{
			CompletedSections: &completed,
			TokensUsed:        &tokens,
			SectionsStatus:    statuses.Clone(),
		}
		if err := o.store.UpdateProgress(ctx, job.ID, update); err != nil {
			return stopped(ctx, err)
		}

		o.logger.Info(
			"section extracted",
			"id", job.ID,
			"section", name,
			"completed", completed,
			"total", len(sections),
			"tokens", tokens,
		)

		if i < len(sections)-1 {
			if err := o.pause(ctx, tokens); err != nil {
				return err
			}
		}
	}

	if err := o.finish(ctx, job, contract, finalState{
		sections:     sections,
		statuses:     statuses,
		consolidated: consolidated,
		completed:    completed,
		tokens:       tokens,
	}); err != nil {
		return stopped(ctx, err)
	}

	if err := o.contracts.SetExtractionStatus(ctx, contract.ID, contracts.StatusCompleted, &job.OutputDirectory); err != nil {
		o.logger.Error("contract status update failed", "id", job.ID, "contract_id", contract.ID, "error", err)
	}

	o.logger.Info("extraction job completed", "id", job.ID, "completed", completed, "tokens", tokens)
	return nil
}

type finalState struct {
	sections     []schema.Section
	statuses     SectionsStatus
	consolidated orderedSections
	completed    int
	tokens       int
}

// finish writes the consolidated and summary artifacts and completes the job.
func (o *Orchestrator) finish(ctx context.Context, job *Job, contract contracts.Contract, state finalState) error {
	if err := o.ensureActive(ctx, job.ID); err != nil {
		return err
	}

	now := o.opts.Now().UTC()

	artifact := consolidatedArtifact{
		Metadata: extractionMetadata{
			ExtractionJobID: job.ID,
			ContractID:      contract.ID,
			ContractNumber:  contract.ContractNumber,
			CarrierName:     contract.CarrierName,
			FileName:        contract.FileName,
			ExtractionDate:  now,
			SchemaVersion:   o.schema.Version(),
		},
		Sections: state.consolidated,
	}
	if err := o.artifacts.WriteJSON(ctx, job.OutputDirectory, ConsolidatedArtifact, artifact); err != nil {
		return err
	}

	files, err := o.artifacts.Names(ctx, job.OutputDirectory)
	if err != nil {
		return err
	}

	order := make([]string, len(state.sections))
	for i, s := range state.sections {
		order[i] = s.Name
	}

	summary := extractionSummary{
		JobID:             job.ID,
		ContractID:        contract.ID,
		ContractNumber:    contract.ContractNumber,
		TotalSections:     len(state.sections),
		CompletedSections: state.completed,
		FailedSections:    state.statuses.Failed(order),
		TotalTokensUsed:   state.tokens,
		OutputFiles:       files,
		CompletedAt:       now,
	}
	if err := o.artifacts.WriteJSON(ctx, job.OutputDirectory, SummaryArtifact, summary); err != nil {
		return err
	}

	return o.store.Complete(ctx, job.ID, ProgressUpdate{
		CompletedSections: &state.completed,
		TokensUsed:        &state.tokens,
		SectionsStatus:    state.statuses,
	})
}

// ensureActive reloads the job and stops processing once it is no longer
// pending or processing, which is how a cancellation made by another
// process is observed.
func (o *Orchestrator) ensureActive(ctx context.Context, id uuid.UUID) error {
	if ctx.Err() != nil {
		return errStopped
	}

	job, err := o.store.GetJob(ctx, id)
	if err != nil {
		return stopped(ctx, err)
	}
	if !job.Active() {
		return errStopped
	}
	return nil
}

func (o *Orchestrator) assistantRef(ctx context.Context, tenantID uuid.UUID) (string, error) {
	a, err := o.assistants.FindActive(ctx, tenantID)
	if err != nil {
		if errors.Is(err, assistants.ErrNotFound) {
			o.logger.Warn("no active assistant for tenant", "tenant_id", tenantID)
			return "", nil
		}
		return "", fmt.Errorf("find tenant assistant: %w", err)
	}
	return a.AssistantRef, nil
}

// sectionTimeout prefers a configured override, then the schema value,
// then the default.
func (o *Orchestrator) sectionTimeout(section schema.Section) time.Duration {
	if d, ok := o.opts.SectionTimeouts[section.Name]; ok && d > 0 {
		return d
	}
	if d := section.TimeoutDuration(); d > 0 {
		return d
	}
	return o.opts.SectionTimeout
}

func (o *Orchestrator) pause(ctx context.Context, tokens int) error {
	delay := o.opts.Delay
	if o.opts.TokenThreshold > 0 && tokens > o.opts.TokenThreshold {
		delay = o.opts.HeavyDelay
	}
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return errStopped
	case <-timer.C:
		return nil
	}
}

// stopped converts errors caused by cancellation or a lost status race into
// errStopped so they are not recorded as job failures.
func stopped(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, ErrInvalidTransition) {
		return errStopped
	}
	return err
}
