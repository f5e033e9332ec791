package extractions_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/ratesheet/internal/assistant"
	"github.com/JaimeStill/ratesheet/internal/contracts"
	"github.com/JaimeStill/ratesheet/internal/extractions"
	"github.com/JaimeStill/ratesheet/pkg/pagination"
	"github.com/JaimeStill/ratesheet/pkg/storage"
)

func readArtifact(t *testing.T, f *fixture, id uuid.UUID, name string) []byte {
	t.Helper()

	blob, err := f.orch.OpenArtifact(context.Background(), f.tenantID, id, name)
	if err != nil {
		t.Fatalf("OpenArtifact(%s) error = %v", name, err)
	}
	defer blob.Body.Close()

	data, err := io.ReadAll(blob.Body)
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return data
}

func decodeArtifact[T any](t *testing.T, f *fixture, id uuid.UUID, name string) T {
	t.Helper()

	var out T
	if err := json.Unmarshal(readArtifact(t, f, id, name), &out); err != nil {
		t.Fatalf("decode %s: %v", name, err)
	}
	return out
}

// objectKeys returns the keys of a JSON object in document order.
func objectKeys(t *testing.T, raw json.RawMessage) []string {
	t.Helper()

	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil {
		t.Fatalf("read object start: %v", err)
	}

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			t.Fatalf("read key: %v", err)
		}
		keys = append(keys, tok.(string))

		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			t.Fatalf("read value: %v", err)
		}
	}
	return keys
}

type summaryArtifact struct {
	JobID             string   `json:"jobId"`
	ContractID        string   `json:"contractId"`
	ContractNumber    string   `json:"contractNumber"`
	TotalSections     int      `json:"totalSections"`
	CompletedSections int      `json:"completedSections"`
	FailedSections    []string `json:"failedSections"`
	TotalTokensUsed   int      `json:"totalTokensUsed"`
	OutputFiles       []string `json:"outputFiles"`
	CompletedAt       string   `json:"completedAt"`
}

type consolidatedArtifact struct {
	Metadata map[string]any  `json:"metadata"`
	Sections json.RawMessage `json:"sections"`
}

func TestExtractionScenario(t *testing.T) {
	f := newFixture(t)
	f.assistant.script("BaseRates", assistant.Result{Kind: assistant.KindTimeout})

	job := f.start(t)
	if job.Status != extractions.StatusPending {
		t.Errorf("started status = %q, want %q", job.Status, extractions.StatusPending)
	}
	if job.TotalSections != 9 {
		t.Errorf("TotalSections = %d, want 9", job.TotalSections)
	}

	f.orch.Wait()

	history := f.store.history()
	if len(history) == 0 {
		t.Fatal("no progress recorded")
	}

	first := history[0]
	if first.Status != extractions.StatusProcessing {
		t.Errorf("first poll status = %q, want %q", first.Status, extractions.StatusProcessing)
	}
	if first.CurrentSection == nil || *first.CurrentSection != "ContractHeader" {
		t.Errorf("first poll current section = %v, want ContractHeader", first.CurrentSection)
	}
	if first.Progress() != 0 {
		t.Errorf("first poll progress = %d, want 0", first.Progress())
	}

	var afterFirst, afterSecond *extractions.Job
	for i := range history {
		if afterFirst == nil && history[i].CompletedSections == 1 {
			afterFirst = &history[i]
		}
		if afterSecond == nil && history[i].CompletedSections == 2 {
			afterSecond = &history[i]
		}
	}
	if afterFirst == nil || afterFirst.Progress() != 11 {
		t.Fatalf("progress after first section = %v, want 11", afterFirst)
	}
	if afterSecond == nil || afterSecond.SectionsStatus["BaseRates"] != extractions.SectionCompleted {
		t.Fatalf("BaseRates status after second section = %v, want completed", afterSecond)
	}

	final := f.job(t, job.ID)
	if final.Status != extractions.StatusCompleted {
		t.Fatalf("final status = %q, want %q", final.Status, extractions.StatusCompleted)
	}
	if final.Progress() != 100 {
		t.Errorf("final progress = %d, want 100", final.Progress())
	}
	if final.TokensUsed != 800 {
		t.Errorf("TokensUsed = %d, want 800", final.TokensUsed)
	}

	baseRates := decodeArtifact[map[string]any](t, f, job.ID, "BaseRates.json")
	data, _ := baseRates["data"].(map[string]any)
	if data["error"] != "Request timeout" {
		t.Errorf("BaseRates payload error = %v, want %q", data["error"], "Request timeout")
	}

	summary := decodeArtifact[summaryArtifact](t, f, job.ID, extractions.SummaryArtifact)
	want := []string{extractions.ConsolidatedArtifact}
	for _, s := range f.schema.Sections() {
		want = append(want, s.Name+".json")
	}
	slices.Sort(want)
	got := slices.Clone(summary.OutputFiles)
	slices.Sort(got)
	if !slices.Equal(got, want) {
		t.Errorf("summary outputFiles = %v, want %v", got, want)
	}
	if summary.CompletedSections != 9 || len(summary.FailedSections) != 0 {
		t.Errorf("summary completed = %d failed = %v", summary.CompletedSections, summary.FailedSections)
	}

	_, err := f.orch.Cancel(context.Background(), f.tenantID, job.ID)
	if err == nil {
		t.Fatal("Cancel() on completed job succeeded")
	}
	if err.Error() != "cannot cancel a completed job" {
		t.Errorf("Cancel() error = %q", err.Error())
	}
	if status := extractions.MapHTTPStatus(err); status != http.StatusBadRequest {
		t.Errorf("MapHTTPStatus = %d, want 400", status)
	}

	update := f.contracts.lastUpdate(f.contract.ID)
	if update.Status != contracts.StatusCompleted {
		t.Errorf("contract status = %q, want %q", update.Status, contracts.StatusCompleted)
	}
	if update.OutputPath == nil || *update.OutputPath != job.OutputDirectory {
		t.Errorf("contract output path = %v, want %q", update.OutputPath, job.OutputDirectory)
	}
}

func TestStartRejectsSecondActiveJob(t *testing.T) {
	f := newFixture(t)

	reached := make(chan struct{})
	release := make(chan struct{})
	f.assistant.setBlock(func(ctx context.Context, section string) {
		if section != "ContractHeader" {
			return
		}
		close(reached)
		select {
		case <-release:
		case <-ctx.Done():
		}
	})

	first := f.start(t)
	<-reached

	_, err := f.orch.Start(context.Background(), extractions.StartCommand{
		TenantID:   f.tenantID,
		ContractID: f.contract.ID,
		UserID:     "user-2",
	})

	var active *extractions.ActiveJobError
	if !errors.As(err, &active) {
		t.Fatalf("second Start() error = %v, want ActiveJobError", err)
	}
	if active.JobID != first.ID {
		t.Errorf("active job id = %s, want %s", active.JobID, first.ID)
	}
	if !extractions.IsActive(active.Status) {
		t.Errorf("active job status = %q", active.Status)
	}
	if !errors.Is(err, extractions.ErrAlreadyActive) {
		t.Error("error does not match ErrAlreadyActive")
	}

	close(release)
	f.orch.Wait()

	jobs, err := f.orch.ListForContract(context.Background(), f.tenantID, f.contract.ID)
	if err != nil {
		t.Fatalf("ListForContract() error = %v", err)
	}
	if len(jobs) != 1 {
		t.Errorf("jobs = %d, want 1", len(jobs))
	}

	again := f.start(t)
	if again.ID == first.ID {
		t.Error("new job reused the previous id")
	}
	f.orch.Wait()
}

func TestProgressIsMonotonic(t *testing.T) {
	f := newFixture(t)
	job := f.start(t)
	f.orch.Wait()

	prev := 0
	for i, snap := range f.store.history() {
		if snap.CompletedSections < prev {
			t.Fatalf("snapshot %d: completed %d after %d", i, snap.CompletedSections, prev)
		}
		if snap.CompletedSections > snap.TotalSections {
			t.Fatalf("snapshot %d: completed %d exceeds total %d", i, snap.CompletedSections, snap.TotalSections)
		}
		prev = snap.CompletedSections
	}

	if final := f.job(t, job.ID); final.CompletedSections != final.TotalSections {
		t.Errorf("final completed = %d, want %d", final.CompletedSections, final.TotalSections)
	}
}

func TestSectionFailuresAreIsolated(t *testing.T) {
	f := newFixture(t)
	f.assistant.script("OriginArb", assistant.Result{
		Kind:       assistant.KindOK,
		Content:    "I could not find any arbitrary rates in this document.",
		TokensUsed: 40,
	})
	f.assistant.script("Surcharges", assistant.Result{
		Kind:       assistant.KindHTTPError,
		StatusCode: http.StatusBadGateway,
		Body:       "upstream unavailable",
	})

	job := f.start(t)
	f.orch.Wait()

	final := f.job(t, job.ID)
	if final.Status != extractions.StatusCompleted {
		t.Fatalf("status = %q, want completed", final.Status)
	}
	for _, s := range f.schema.Sections() {
		if got := final.SectionsStatus[s.Name]; got != extractions.SectionCompleted {
			t.Errorf("section %s status = %q, want completed", s.Name, got)
		}
	}

	origin := decodeArtifact[map[string]any](t, f, job.ID, "OriginArb.json")
	if origin["error"] != "No valid JSON found in response" {
		t.Errorf("OriginArb error = %v", origin["error"])
	}
	if raw, _ := origin["raw_response"].(string); !strings.Contains(raw, "arbitrary rates") {
		t.Errorf("OriginArb raw_response = %q", raw)
	}

	surcharges := decodeArtifact[map[string]any](t, f, job.ID, "Surcharges.json")
	data, _ := surcharges["data"].(map[string]any)
	if data["error"] != "Failed to extract Surcharges" {
		t.Errorf("Surcharges payload error = %v", data["error"])
	}

	header := decodeArtifact[map[string]any](t, f, job.ID, "ContractHeader.json")
	if _, ok := header["error"]; ok {
		t.Errorf("ContractHeader unexpectedly failed: %v", header["error"])
	}
}

func TestSectionArtifactFailureMarksSectionFailed(t *testing.T) {
	f := newFixture(t, withStorage(func(s storage.System) storage.System {
		return failingStorage{System: s, suffixes: []string{"/OriginArb.json"}}
	}))

	job := f.start(t)
	f.orch.Wait()

	final := f.job(t, job.ID)
	if final.Status != extractions.StatusCompleted {
		t.Fatalf("status = %q, want completed", final.Status)
	}
	if final.SectionsStatus["OriginArb"] != extractions.SectionFailed {
		t.Errorf("OriginArb status = %q, want failed", final.SectionsStatus["OriginArb"])
	}
	if final.CompletedSections != 8 {
		t.Errorf("CompletedSections = %d, want 8", final.CompletedSections)
	}

	summary := decodeArtifact[summaryArtifact](t, f, job.ID, extractions.SummaryArtifact)
	if !slices.Equal(summary.FailedSections, []string{"OriginArb"}) {
		t.Errorf("failedSections = %v, want [OriginArb]", summary.FailedSections)
	}
	if slices.Contains(summary.OutputFiles, "OriginArb.json") {
		t.Error("outputFiles lists the unwritten section")
	}

	consolidated := decodeArtifact[consolidatedArtifact](t, f, job.ID, extractions.ConsolidatedArtifact)
	var sections map[string]map[string]any
	if err := json.Unmarshal(consolidated.Sections, &sections); err != nil {
		t.Fatalf("decode sections: %v", err)
	}
	if sections["OriginArb"]["status"] != extractions.SectionFailed {
		t.Errorf("consolidated OriginArb = %v", sections["OriginArb"])
	}
}

func TestConsolidatedArtifactFailureFailsJob(t *testing.T) {
	f := newFixture(t, withStorage(func(s storage.System) storage.System {
		return failingStorage{System: s, suffixes: []string{"/" + extractions.ConsolidatedArtifact}}
	}))

	job := f.start(t)
	f.orch.Wait()

	final := f.job(t, job.ID)
	if final.Status != extractions.StatusFailed {
		t.Fatalf("status = %q, want failed", final.Status)
	}
	if final.ErrorMessage == nil || !strings.Contains(*final.ErrorMessage, errUploadRejected.Error()) {
		t.Errorf("ErrorMessage = %v", final.ErrorMessage)
	}
	if final.CompletedAt == nil {
		t.Error("CompletedAt not stamped")
	}

	if update := f.contracts.lastUpdate(f.contract.ID); update.Status != contracts.StatusFailed {
		t.Errorf("contract status = %q, want failed", update.Status)
	}
}

func TestConsolidatedArtifactKeepsSchemaOrder(t *testing.T) {
	f := newFixture(t)
	job := f.start(t)
	f.orch.Wait()

	consolidated := decodeArtifact[consolidatedArtifact](t, f, job.ID, extractions.ConsolidatedArtifact)

	var want []string
	for _, s := range f.schema.Sections() {
		want = append(want, s.Name)
	}
	if got := objectKeys(t, consolidated.Sections); !slices.Equal(got, want) {
		t.Errorf("section order = %v, want %v", got, want)
	}

	meta := consolidated.Metadata
	if meta["extractionJobId"] != job.ID.String() {
		t.Errorf("metadata extractionJobId = %v", meta["extractionJobId"])
	}
	if meta["carrierName"] != "Maersk" || meta["contractNumber"] != "C-2025-001" {
		t.Errorf("metadata contract fields = %v", meta)
	}
	if meta["schemaVersion"] != f.schema.Version() {
		t.Errorf("metadata schemaVersion = %v", meta["schemaVersion"])
	}
}

func TestTerminalStatusIsFinal(t *testing.T) {
	f := newFixture(t)
	job := f.start(t)
	f.orch.Wait()

	for _, status := range []string{extractions.StatusFailed, extractions.StatusCancelled} {
		err := f.store.SetStatus(context.Background(), job.ID, status, nil)
		if !errors.Is(err, extractions.ErrInvalidTransition) {
			t.Errorf("SetStatus(%s) error = %v, want ErrInvalidTransition", status, err)
		}
	}

	failed := extractions.Job{
		ID:         uuid.New(),
		TenantID:   f.tenantID,
		ContractID: f.contract.ID,
		Status:     extractions.StatusFailed,
	}
	f.store.put(failed)

	_, err := f.orch.Cancel(context.Background(), f.tenantID, failed.ID)
	if err == nil || err.Error() != "cannot cancel a failed job" {
		t.Errorf("Cancel(failed) error = %v", err)
	}
	if got := f.job(t, failed.ID).Status; got != extractions.StatusFailed {
		t.Errorf("status after cancel = %q, want failed", got)
	}
}

func TestCancelStopsProcessing(t *testing.T) {
	f := newFixture(t)

	reached := make(chan struct{})
	f.assistant.setBlock(func(ctx context.Context, section string) {
		if section != "BaseRates" {
			return
		}
		close(reached)
		<-ctx.Done()
	})

	job := f.start(t)
	<-reached

	cancelled, err := f.orch.Cancel(context.Background(), f.tenantID, job.ID)
	if err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if cancelled.Status != extractions.StatusCancelled {
		t.Errorf("Cancel() status = %q, want cancelled", cancelled.Status)
	}
	if cancelled.CompletedAt == nil {
		t.Error("CompletedAt not stamped")
	}

	f.orch.Wait()

	final := f.job(t, job.ID)
	if final.Status != extractions.StatusCancelled {
		t.Errorf("final status = %q, want cancelled", final.Status)
	}

	if calls := f.assistant.called(); slices.Contains(calls, "OriginArb") {
		t.Errorf("sections after cancellation were queried: %v", calls)
	}

	exists, err := f.storage.Exists(context.Background(), path.Join(job.OutputDirectory, extractions.ConsolidatedArtifact))
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if exists {
		t.Error("consolidated artifact written for a cancelled job")
	}

	if update := f.contracts.lastUpdate(f.contract.ID); update.Status != contracts.StatusCancelled {
		t.Errorf("contract status = %q, want cancelled", update.Status)
	}

	if _, err := f.orch.Cancel(context.Background(), f.tenantID, job.ID); !errors.Is(err, extractions.ErrNotCancellable) {
		t.Errorf("second Cancel() error = %v, want ErrNotCancellable", err)
	}
}

func TestShutdownCancelsActiveJobs(t *testing.T) {
	f := newFixture(t)

	reached := make(chan struct{})
	f.assistant.setBlock(func(ctx context.Context, section string) {
		if section != "ContractHeader" {
			return
		}
		close(reached)
		<-ctx.Done()
	})

	job := f.start(t)
	<-reached

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := f.orch.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	final := f.job(t, job.ID)
	if final.Status != extractions.StatusCancelled {
		t.Errorf("status = %q, want cancelled", final.Status)
	}
	if final.ErrorMessage == nil || *final.ErrorMessage != extractions.ShutdownMessage {
		t.Errorf("ErrorMessage = %v, want %q", final.ErrorMessage, extractions.ShutdownMessage)
	}
	if update := f.contracts.lastUpdate(f.contract.ID); update.Status != contracts.StatusCancelled {
		t.Errorf("contract status = %q, want cancelled", update.Status)
	}

	_, err := f.orch.Start(context.Background(), extractions.StartCommand{
		TenantID:   f.tenantID,
		ContractID: f.contract.ID,
	})
	if !errors.Is(err, extractions.ErrShuttingDown) {
		t.Errorf("Start() after shutdown error = %v, want ErrShuttingDown", err)
	}
}

func TestStartValidatesContract(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		cmd  extractions.StartCommand
	}{
		{
			name: "unknown contract",
			cmd:  extractions.StartCommand{TenantID: f.tenantID, ContractID: uuid.New()},
		},
		{
			name: "foreign tenant",
			cmd:  extractions.StartCommand{TenantID: uuid.New(), ContractID: f.contract.ID},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.orch.Start(context.Background(), tt.cmd)
			if !errors.Is(err, extractions.ErrContractNotFound) {
				t.Errorf("Start() error = %v, want ErrContractNotFound", err)
			}
		})
	}

	if jobs, _ := f.store.ListJobsForContract(context.Background(), f.contract.ID); len(jobs) != 0 {
		t.Errorf("jobs created = %d, want 0", len(jobs))
	}
}

func TestFindScopesToTenant(t *testing.T) {
	f := newFixture(t)
	job := f.start(t)
	f.orch.Wait()

	if _, err := f.orch.Find(context.Background(), uuid.New(), job.ID); !errors.Is(err, extractions.ErrNotFound) {
		t.Errorf("Find(foreign tenant) error = %v, want ErrNotFound", err)
	}
	if _, err := f.orch.Find(context.Background(), f.tenantID, uuid.New()); !errors.Is(err, extractions.ErrNotFound) {
		t.Errorf("Find(unknown) error = %v, want ErrNotFound", err)
	}

	got, err := f.orch.Find(context.Background(), f.tenantID, job.ID)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if got.CarrierName != "Maersk" {
		t.Errorf("CarrierName = %q", got.CarrierName)
	}
}

func TestArtifactAccess(t *testing.T) {
	f := newFixture(t)
	job := f.start(t)
	f.orch.Wait()

	ctx := context.Background()

	listing, err := f.orch.ListArtifacts(ctx, f.tenantID, job.ID, "*Arb.json")
	if err != nil {
		t.Fatalf("ListArtifacts() error = %v", err)
	}
	var names []string
	for _, file := range listing.Files {
		names = append(names, file.Name)
		if file.Size <= 0 {
			t.Errorf("%s size = %d", file.Name, file.Size)
		}
	}
	if !slices.Equal(names, []string{"DestinationArb.json", "OriginArb.json"}) {
		t.Errorf("filtered files = %v", names)
	}
	if listing.JobID != job.ID.String() || listing.OutputDirectory != job.OutputDirectory {
		t.Errorf("listing = %+v", listing)
	}

	all, err := f.orch.ListArtifacts(ctx, f.tenantID, job.ID, "")
	if err != nil {
		t.Fatalf("ListArtifacts() error = %v", err)
	}
	if len(all.Files) != 11 {
		t.Errorf("files = %d, want 11", len(all.Files))
	}

	consolidated := readArtifact(t, f, job.ID, "")
	if !bytes.Contains(consolidated, []byte(`"metadata"`)) {
		t.Error("default download is not the consolidated artifact")
	}

	errTests := []struct {
		name string
		call func() error
		want error
	}{
		{
			name: "invalid pattern",
			call: func() error {
				_, err := f.orch.ListArtifacts(ctx, f.tenantID, job.ID, "[")
				return err
			},
			want: extractions.ErrInvalidPattern,
		},
		{
			name: "path traversal",
			call: func() error {
				_, err := f.orch.OpenArtifact(ctx, f.tenantID, job.ID, "../secrets.json")
				return err
			},
			want: extractions.ErrInvalidArtifact,
		},
		{
			name: "missing artifact",
			call: func() error {
				_, err := f.orch.OpenArtifact(ctx, f.tenantID, job.ID, "Missing.json")
				return err
			},
			want: extractions.ErrArtifactNotFound,
		},
	}

	for _, tt := range errTests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestArtifactsRequireCompletedJob(t *testing.T) {
	f := newFixture(t)

	running := extractions.Job{
		ID:         uuid.New(),
		TenantID:   f.tenantID,
		ContractID: f.contract.ID,
		Status:     extractions.StatusProcessing,
	}
	f.store.put(running)

	if _, err := f.orch.ListArtifacts(context.Background(), f.tenantID, running.ID, ""); !errors.Is(err, extractions.ErrNotCompleted) {
		t.Errorf("ListArtifacts() error = %v, want ErrNotCompleted", err)
	}
	if _, err := f.orch.OpenArtifact(context.Background(), f.tenantID, running.ID, ""); !errors.Is(err, extractions.ErrNotCompleted) {
		t.Errorf("OpenArtifact() error = %v, want ErrNotCompleted", err)
	}
}

func TestSectionTimeoutPrecedence(t *testing.T) {
	f := newFixture(t, withOptions(extractions.Options{
		SectionTimeout:  4 * time.Minute,
		SectionTimeouts: map[string]time.Duration{"BaseRates": 2 * time.Minute},
	}))

	f.start(t)
	f.orch.Wait()

	f.assistant.mu.Lock()
	defer f.assistant.mu.Unlock()

	if got := f.assistant.timeouts["BaseRates"]; got != 2*time.Minute {
		t.Errorf("BaseRates timeout = %v, want 2m", got)
	}
	if got := f.assistant.timeouts["ContractHeader"]; got != 4*time.Minute {
		t.Errorf("ContractHeader timeout = %v, want 4m", got)
	}
}

func TestMissingAssistantStillCompletes(t *testing.T) {
	f := newFixture(t, withoutAssistant())
	job := f.start(t)
	f.orch.Wait()

	if final := f.job(t, job.ID); final.Status != extractions.StatusCompleted {
		t.Errorf("status = %q, want completed", final.Status)
	}

	f.assistant.mu.Lock()
	defer f.assistant.mu.Unlock()
	for _, ref := range f.assistant.refs {
		if ref != "" {
			t.Errorf("assistant ref = %q, want empty", ref)
		}
	}
}

func TestSectionsQueriedInSchemaOrder(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	f.orch.Wait()

	var want []string
	for _, s := range f.schema.Sections() {
		want = append(want, s.Name)
	}
	if got := f.assistant.called(); !slices.Equal(got, want) {
		t.Errorf("query order = %v, want %v", got, want)
	}
}

func TestListPagesTenantJobs(t *testing.T) {
	f := newFixture(t)

	for range 3 {
		f.start(t)
		f.orch.Wait()
	}

	f.store.put(extractions.Job{
		ID:         uuid.New(),
		TenantID:   uuid.New(),
		ContractID: uuid.New(),
		Status:     extractions.StatusCompleted,
	})

	page, err := f.orch.List(context.Background(), f.tenantID, pagination.PageRequest{Page: 1, PageSize: 2}, extractions.Filters{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if page.Total != 3 || len(page.Data) != 2 || page.TotalPages != 2 {
		t.Errorf("page = total %d len %d pages %d", page.Total, len(page.Data), page.TotalPages)
	}

	failed := extractions.StatusFailed
	page, err = f.orch.List(context.Background(), f.tenantID, pagination.PageRequest{}, extractions.Filters{Status: &failed})
	if err != nil {
		t.Fatalf("List(failed) error = %v", err)
	}
	if page.Total != 0 || page.Page != 1 || page.PageSize != 20 {
		t.Errorf("filtered page = %+v", page)
	}
}
