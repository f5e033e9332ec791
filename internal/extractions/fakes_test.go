package extractions_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/ratesheet/internal/assistant"
	"github.com/JaimeStill/ratesheet/internal/assistants"
	"github.com/JaimeStill/ratesheet/internal/contracts"
	"github.com/JaimeStill/ratesheet/internal/extractions"
	"github.com/JaimeStill/ratesheet/internal/schema"
	"github.com/JaimeStill/ratesheet/pkg/pagination"
	"github.com/JaimeStill/ratesheet/pkg/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memoryStore is an in-memory Store that enforces the same status guards as
// the PostgreSQL implementation.
type memoryStore struct {
	mu        sync.Mutex
	jobs      map[uuid.UUID]*extractions.Job
	order     []uuid.UUID
	contracts *memoryContracts
	snapshots []extractions.Job
}

func newMemoryStore(c *memoryContracts) *memoryStore {
	return &memoryStore{
		jobs:      make(map[uuid.UUID]*extractions.Job),
		contracts: c,
	}
}

func (s *memoryStore) CreateJob(_ context.Context, cmd extractions.CreateJobCommand) (*extractions.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, j := range s.jobs {
		if j.ContractID == cmd.ContractID && j.Active() {
			return nil, extractions.ErrAlreadyActive
		}
	}

	job := &extractions.Job{
		ID:              cmd.ID,
		TenantID:        cmd.TenantID,
		ContractID:      cmd.ContractID,
		UserID:          cmd.UserID,
		Status:          extractions.StatusPending,
		OutputDirectory: cmd.OutputDirectory,
		TotalSections:   cmd.TotalSections,
		SectionsStatus:  cmd.SectionsStatus.Clone(),
		CreatedAt:       time.Now().Add(time.Duration(len(s.order)) * time.Millisecond),
	}
	if c, ok := s.contracts.get(cmd.ContractID); ok {
		job.CarrierName = c.CarrierName
		job.ContractNumber = c.ContractNumber
		job.FileName = c.FileName
	}

	s.jobs[job.ID] = job
	s.order = append(s.order, job.ID)
	return copyJob(job), nil
}

func (s *memoryStore) UpdateProgress(_ context.Context, id uuid.UUID, update extractions.ProgressUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.active(id)
	if err != nil {
		return err
	}

	apply(job, update)
	s.snapshots = append(s.snapshots, *copyJob(job))
	return nil
}

func (s *memoryStore) SetStatus(_ context.Context, id uuid.UUID, status string, errorMessage *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !extractions.IsTerminal(status) {
		return extractions.ErrInvalidTransition
	}

	job, err := s.active(id)
	if err != nil {
		return err
	}

	now := time.Now()
	job.Status = status
	job.ErrorMessage = errorMessage
	job.CompletedAt = &now
	return nil
}

func (s *memoryStore) MarkProcessing(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return extractions.ErrNotFound
	}
	if job.Status != extractions.StatusPending {
		return extractions.ErrInvalidTransition
	}

	now := time.Now()
	job.Status = extractions.StatusProcessing
	job.StartedAt = &now
	return nil
}

func (s *memoryStore) Complete(_ context.Context, id uuid.UUID, update extractions.ProgressUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return extractions.ErrNotFound
	}
	if job.Status != extractions.StatusProcessing {
		return extractions.ErrInvalidTransition
	}

	apply(job, update)
	now := time.Now()
	job.Status = extractions.StatusCompleted
	job.CompletedAt = &now
	s.snapshots = append(s.snapshots, *copyJob(job))
	return nil
}

func (s *memoryStore) GetJob(_ context.Context, id uuid.UUID) (*extractions.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, extractions.ErrNotFound
	}
	return copyJob(job), nil
}

func (s *memoryStore) ListJobsForContract(_ context.Context, contractID uuid.UUID) ([]extractions.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make([]extractions.Job, 0)
	for i := len(s.order) - 1; i >= 0; i-- {
		if j := s.jobs[s.order[i]]; j.ContractID == contractID {
			jobs = append(jobs, *copyJob(j))
		}
	}
	return jobs, nil
}

func (s *memoryStore) ListJobs(_ context.Context, page pagination.PageRequest, filters extractions.Filters) (*pagination.PageResult[extractions.Job], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]extractions.Job, 0)
	for i := len(s.order) - 1; i >= 0; i-- {
		j := s.jobs[s.order[i]]
		if filters.TenantID != nil && j.TenantID != *filters.TenantID {
			continue
		}
		if filters.ContractID != nil && j.ContractID != *filters.ContractID {
			continue
		}
		if filters.Status != nil && j.Status != *filters.Status {
			continue
		}
		matched = append(matched, *copyJob(j))
	}

	start := min(page.Offset(), len(matched))
	end := min(start+page.PageSize, len(matched))

	result := pagination.NewPageResult(matched[start:end], len(matched), page.Page, page.PageSize)
	return &result, nil
}

func (s *memoryStore) FindActiveJobForContract(_ context.Context, contractID uuid.UUID) (*extractions.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, j := range s.jobs {
		if j.ContractID == contractID && j.Active() {
			return copyJob(j), nil
		}
	}
	return nil, extractions.ErrNotFound
}

func (s *memoryStore) active(id uuid.UUID) (*extractions.Job, error) {
	job, ok := s.jobs[id]
	if !ok {
		return nil, extractions.ErrNotFound
	}
	if !job.Active() {
		return nil, extractions.ErrInvalidTransition
	}
	return job, nil
}

func (s *memoryStore) history() []extractions.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]extractions.Job(nil), s.snapshots...)
}

func (s *memoryStore) put(job extractions.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = copyJob(&job)
	s.order = append(s.order, job.ID)
}

func apply(job *extractions.Job, update extractions.ProgressUpdate) {
	if update.CurrentSection != nil {
		name := *update.CurrentSection
		job.CurrentSection = &name
	}
	if update.CompletedSections != nil && *update.CompletedSections > job.CompletedSections {
		job.CompletedSections = *update.CompletedSections
	}
	if update.TokensUsed != nil {
		job.TokensUsed = *update.TokensUsed
	}
	if update.SectionsStatus != nil {
		job.SectionsStatus = update.SectionsStatus.Clone()
	}
}

func copyJob(j *extractions.Job) *extractions.Job {
	out := *j
	out.SectionsStatus = j.SectionsStatus.Clone()
	if j.CurrentSection != nil {
		name := *j.CurrentSection
		out.CurrentSection = &name
	}
	return &out
}

type contractUpdate struct {
	Status     string
	OutputPath *string
}

type memoryContracts struct {
	mu        sync.Mutex
	contracts map[uuid.UUID]contracts.Contract
	updates   map[uuid.UUID][]contractUpdate
	started   map[uuid.UUID]uuid.UUID
}

func newMemoryContracts(list ...contracts.Contract) *memoryContracts {
	m := &memoryContracts{
		contracts: make(map[uuid.UUID]contracts.Contract),
		updates:   make(map[uuid.UUID][]contractUpdate),
		started:   make(map[uuid.UUID]uuid.UUID),
	}
	for _, c := range list {
		m.contracts[c.ID] = c
	}
	return m
}

func (m *memoryContracts) get(id uuid.UUID) (contracts.Contract, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contracts[id]
	return c, ok
}

func (m *memoryContracts) Find(_ context.Context, tenantID, id uuid.UUID) (*contracts.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.contracts[id]
	if !ok || c.TenantID != tenantID {
		return nil, contracts.ErrNotFound
	}
	return &c, nil
}

func (m *memoryContracts) SetExtractionStarted(_ context.Context, id, jobID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.started[id] = jobID
	m.updates[id] = append(m.updates[id], contractUpdate{Status: contracts.StatusProcessing})
	return nil
}

func (m *memoryContracts) SetExtractionStatus(_ context.Context, id uuid.UUID, status string, outputPath *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.updates[id] = append(m.updates[id], contractUpdate{Status: status, OutputPath: outputPath})
	return nil
}

func (m *memoryContracts) lastUpdate(id uuid.UUID) contractUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()

	u := m.updates[id]
	if len(u) == 0 {
		return contractUpdate{}
	}
	return u[len(u)-1]
}

type memoryAssistants map[uuid.UUID]string

func (m memoryAssistants) FindActive(_ context.Context, tenantID uuid.UUID) (*assistants.Assistant, error) {
	ref, ok := m[tenantID]
	if !ok {
		return nil, assistants.ErrNotFound
	}
	return &assistants.Assistant{TenantID: tenantID, AssistantRef: ref, IsActive: true}, nil
}

// scriptedAssistant answers every section with a well-formed reply unless a
// section has a scripted result. A block function, when set, runs before
// each answer.
type scriptedAssistant struct {
	mu      sync.Mutex
	schema  *schema.Registry
	results map[string]assistant.Result
	calls    []string
	refs     []string
	timeouts map[string]time.Duration
	block    func(ctx context.Context, section string)
}

func newScriptedAssistant(reg *schema.Registry) *scriptedAssistant {
	return &scriptedAssistant{
		schema:   reg,
		results:  make(map[string]assistant.Result),
		timeouts: make(map[string]time.Duration),
	}
}

func (a *scriptedAssistant) script(section string, res assistant.Result) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.results[section] = res
}

func (a *scriptedAssistant) Query(ctx context.Context, ref, _, section string, timeout time.Duration) assistant.Result {
	a.mu.Lock()
	a.calls = append(a.calls, section)
	a.refs = append(a.refs, ref)
	a.timeouts[section] = timeout
	res, scripted := a.results[section]
	block := a.block
	a.mu.Unlock()

	if block != nil {
		block(ctx, section)
		if err := ctx.Err(); err != nil {
			return assistant.Result{Kind: assistant.KindTransport, Section: section, Err: err}
		}
	}

	if scripted {
		if res.Section == "" {
			res.Section = section
		}
		if res.Kind == assistant.KindTimeout && res.Timeout == 0 {
			res.Timeout = timeout
		}
		return res
	}

	s, _ := a.schema.Section(section)
	return assistant.Result{
		Kind:       assistant.KindOK,
		Section:    section,
		Content:    wellFormedReply(s),
		TokensUsed: 100,
	}
}

func (a *scriptedAssistant) setBlock(fn func(ctx context.Context, section string)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.block = fn
}

func (a *scriptedAssistant) called() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.calls...)
}

func wellFormedReply(s schema.Section) string {
	fields := make([]string, 0)
	for _, name := range s.RequiredFields() {
		fields = append(fields, fmt.Sprintf("%q: %q", name, "value"))
	}
	obj := "{" + strings.Join(fields, ", ") + "}"
	if s.IsRows() {
		obj = `{"rows": [` + obj + `]}`
	}
	return "Here is the data:\n```json\n" + obj + "\n```"
}

// failingStorage rejects uploads whose key ends with one of the suffixes.
type failingStorage struct {
	storage.System
	suffixes []string
}

var errUploadRejected = errors.New("upload rejected")

func (f failingStorage) Upload(ctx context.Context, key string, r io.Reader, contentType string) error {
	for _, s := range f.suffixes {
		if strings.HasSuffix(key, s) {
			return errUploadRejected
		}
	}
	return f.System.Upload(ctx, key, r, contentType)
}

type fixture struct {
	tenantID  uuid.UUID
	contract  contracts.Contract
	schema    *schema.Registry
	store     *memoryStore
	contracts *memoryContracts
	assistant *scriptedAssistant
	storage   storage.System
	orch      *extractions.Orchestrator
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	wrapStorage func(storage.System) storage.System
	noAssistant bool
	opts        extractions.Options
}

func withStorage(wrap func(storage.System) storage.System) fixtureOption {
	return func(c *fixtureConfig) { c.wrapStorage = wrap }
}

func withOptions(opts extractions.Options) fixtureOption {
	return func(c *fixtureConfig) { c.opts = opts }
}

func withoutAssistant() fixtureOption {
	return func(c *fixtureConfig) { c.noAssistant = true }
}

func newFixture(t *testing.T, options ...fixtureOption) *fixture {
	t.Helper()

	cfg := fixtureConfig{}
	for _, opt := range options {
		opt(&cfg)
	}

	reg, err := schema.Default()
	if err != nil {
		t.Fatalf("schema.Default() error = %v", err)
	}

	tenantID := uuid.New()
	contract := contracts.Contract{
		ID:             uuid.New(),
		TenantID:       tenantID,
		CarrierName:    "Maersk",
		ContractNumber: "C-2025-001",
		FileName:       "contract.pdf",
	}

	store, err := storage.NewLocal(t.TempDir(), discardLogger())
	if err != nil {
		t.Fatalf("storage.NewLocal() error = %v", err)
	}
	if cfg.wrapStorage != nil {
		store = cfg.wrapStorage(store)
	}

	cs := newMemoryContracts(contract)
	js := newMemoryStore(cs)
	qa := newScriptedAssistant(reg)

	as := memoryAssistants{tenantID: "asst-maersk"}
	if cfg.noAssistant {
		as = memoryAssistants{}
	}

	orch := extractions.New(extractions.Dependencies{
		Store:      js,
		Contracts:  cs,
		Assistants: as,
		Assistant:  qa,
		Storage:    store,
		Schema:     reg,
	}, cfg.opts, discardLogger())

	return &fixture{
		tenantID:  tenantID,
		contract:  contract,
		schema:    reg,
		store:     js,
		contracts: cs,
		assistant: qa,
		storage:   store,
		orch:      orch,
	}
}

func (f *fixture) start(t *testing.T) *extractions.Job {
	t.Helper()

	job, err := f.orch.Start(context.Background(), extractions.StartCommand{
		TenantID:   f.tenantID,
		ContractID: f.contract.ID,
		UserID:     "user-1",
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return job
}

func (f *fixture) job(t *testing.T, id uuid.UUID) *extractions.Job {
	t.Helper()

	job, err := f.store.GetJob(context.Background(), id)
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	return job
}
