// Package pipeline wires the assay stages together. Each stage persists its
// artifact in the work directory before the next one starts, so Train and
// PredictOnly can resume from a previous run's files.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dyluth/assay/internal/assemble"
	"github.com/dyluth/assay/internal/features"
	"github.com/dyluth/assay/internal/ingest"
	"github.com/dyluth/assay/internal/predict"
	"github.com/dyluth/assay/internal/training"
	"github.com/dyluth/assay/pkg/bioactivity"
	"github.com/dyluth/assay/pkg/ledger"
	"github.com/google/uuid"
)

// Recorder receives stage artefacts and model records. *ledger.Client satisfies it.
type Recorder interface {
	RecordArtefact(ctx context.Context, a *ledger.StageArtefact) error
	PutModel(ctx context.Context, m *ledger.ModelRecord) error
	GetModel(ctx context.Context, name string) (*ledger.ModelRecord, error)
}

// Options configures a Runner.
type Options struct {
	RunID        string // generated when empty
	Project      string
	WorkDir      string
	Query        ingest.TargetQuery
	ModelName    string
	TargetColumn string
	PredictLimit int // 0 = all rows
}

// Runner executes the pipeline stages for one run.
type Runner struct {
	opts         Options
	runID        string
	source       ingest.Source
	extractor    *features.Extractor
	service      training.Service
	orchestrator *training.Orchestrator
	recorder     Recorder
}

// NewRunner creates a runner for one run, generating the run ID unless
// opts.RunID is set. source and extractor may be
// nil for runners that only train or predict; recorder may be nil.
func NewRunner(opts Options, source ingest.Source, extractor *features.Extractor, svc training.Service, orch *training.Orchestrator, recorder Recorder) (*Runner, error) {
	if opts.Project == "" {
		return nil, fmt.Errorf("%w: project cannot be empty", bioactivity.ErrConfiguration)
	}
	if opts.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", bioactivity.ErrConfiguration)
	}
	if svc == nil {
		return nil, fmt.Errorf("%w: training service is required", bioactivity.ErrConfiguration)
	}
	if opts.WorkDir == "" {
		opts.WorkDir = "."
	}
	if opts.TargetColumn == "" {
		opts.TargetColumn = assemble.DefaultTargetColumn
	}
	if orch == nil {
		orch = training.NewOrchestrator(svc, training.Options{})
	}
	if opts.RunID == "" {
		opts.RunID = uuid.New().String()
	} else if _, err := uuid.Parse(opts.RunID); err != nil {
		return nil, fmt.Errorf("%w: run ID must be a UUID: %v", bioactivity.ErrConfiguration, err)
	}

	return &Runner{
		opts:         opts,
		runID:        opts.RunID,
		source:       source,
		extractor:    extractor,
		service:      svc,
		orchestrator: orch,
		recorder:     recorder,
	}, nil
}

// RunID returns the UUID shared by every artefact of this run.
func (r *Runner) RunID() string {
	return r.runID
}

// Summary reports what a run produced.
type Summary struct {
	RunID       string
	Clean       ingest.CleanStats
	Descriptors int // descriptor rows
	Features    int // feature columns
	DatasetRows int
	Scaler      bioactivity.Scaler
	Outcome     training.Outcome
	Predictions int
	Results     bioactivity.PredictionResult
	Artifacts   map[ledger.Stage]string
}

func (r *Runner) path(name string) string {
	return filepath.Join(r.opts.WorkDir, name)
}

// datasetName is the name the assembled dataset is uploaded under.
func datasetName() string {
	return strings.TrimSuffix(assemble.ModelDatasetFile, filepath.Ext(assemble.ModelDatasetFile))
}

// Run executes every stage in order. A training outcome other than Complete
// stops the run before prediction and is returned as the outcome's error;
// the summary is still populated up to that point.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	if r.source == nil || r.extractor == nil {
		return nil, fmt.Errorf("%w: full run requires a data source and a feature extractor", bioactivity.ErrConfiguration)
	}

	summary := &Summary{RunID: r.runID, Artifacts: make(map[ledger.Stage]string)}
	start := time.Now()
	r.logEvent("run_started", map[string]interface{}{
		"target_query": r.opts.Query.Keyword,
		"model_name":   r.opts.ModelName,
	})

	clean, err := r.ingest(ctx, summary)
	if err != nil {
		return summary, r.fail(ledger.StageClean, err)
	}

	table, err := r.extract(ctx, clean, summary)
	if err != nil {
		return summary, r.fail(ledger.StageFeatures, err)
	}

	dataset, scaler, err := r.assemble(ctx, table, clean, summary)
	if err != nil {
		return summary, r.fail(ledger.StageAssemble, err)
	}

	outcome, err := r.train(ctx, scaler, summary)
	if err != nil {
		return summary, r.fail(ledger.StageTrain, err)
	}
	if !outcome.Ready() {
		return summary, r.fail(ledger.StageTrain, outcome.Err())
	}

	if err := r.predict(ctx, dataset, outcome, &scaler, summary); err != nil {
		return summary, r.fail(ledger.StagePredict, err)
	}

	r.logEvent("run_completed", map[string]interface{}{
		"duration_ms": time.Since(start).Milliseconds(),
		"predictions": summary.Predictions,
	})
	return summary, nil
}

// Train runs the orchestrator against the persisted assembled dataset.
func (r *Runner) Train(ctx context.Context) (*Summary, error) {
	summary := &Summary{RunID: r.runID, Artifacts: make(map[ledger.Stage]string)}

	dataset, err := assemble.LoadModelDataset(r.path(assemble.ModelDatasetFile), r.opts.TargetColumn)
	if err != nil {
		return summary, r.fail(ledger.StageTrain, err)
	}
	summary.DatasetRows = dataset.Len()
	summary.Features = len(dataset.FeatureNames)

	scaler, err := r.loadScaler(ctx)
	if err != nil {
		return summary, r.fail(ledger.StageTrain, err)
	}
	summary.Scaler = scaler

	outcome, err := r.train(ctx, scaler, summary)
	if err != nil {
		return summary, r.fail(ledger.StageTrain, err)
	}
	if !outcome.Ready() {
		return summary, r.fail(ledger.StageTrain, outcome.Err())
	}
	return summary, nil
}

// PredictOnly re-checks the model's status once and, if complete, predicts
// from the persisted assembled dataset.
func (r *Runner) PredictOnly(ctx context.Context) (*Summary, error) {
	summary := &Summary{RunID: r.runID, Artifacts: make(map[ledger.Stage]string)}

	dataset, err := assemble.LoadModelDataset(r.path(assemble.ModelDatasetFile), r.opts.TargetColumn)
	if err != nil {
		return summary, r.fail(ledger.StagePredict, err)
	}
	summary.DatasetRows = dataset.Len()

	// Molecule IDs are not part of the dataset file; the clean dataset shares its row order.
	if clean, err := ingest.LoadCleanDataset(r.path(ingest.CleanDatasetFile)); err == nil && len(clean) == dataset.Len() {
		dataset.MoleculeIDs = clean.IDs()
	}

	outcome, err := training.Inspect(ctx, r.service, r.opts.ModelName)
	if err != nil {
		return summary, r.fail(ledger.StagePredict, err)
	}
	summary.Outcome = outcome

	var scaler *bioactivity.Scaler
	if s, err := r.loadScaler(ctx); err == nil {
		scaler = &s
		summary.Scaler = s
	} else {
		log.Printf("[Pipeline] No target scaler available, predictions stay normalized: %v", err)
	}

	if err := r.predict(ctx, dataset, outcome, scaler, summary); err != nil {
		return summary, r.fail(ledger.StagePredict, err)
	}
	return summary, nil
}

func (r *Runner) ingest(ctx context.Context, summary *Summary) (bioactivity.CleanDataset, error) {
	raw, err := r.source.Fetch(ctx, r.opts.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bioactivity records: %w", err)
	}

	clean, stats, err := ingest.CleanWithStats(raw)
	if err != nil {
		return nil, err
	}
	summary.Clean = stats

	path := r.path(ingest.CleanDatasetFile)
	if err := ingest.SaveCleanDataset(path, clean); err != nil {
		return nil, err
	}
	summary.Artifacts[ledger.StageClean] = path

	r.logEvent("stage_completed", map[string]interface{}{
		"stage":          ledger.StageClean,
		"input":          stats.Input,
		"null_value":     stats.NullValue,
		"null_structure": stats.NullStructure,
		"duplicates":     stats.Duplicates,
		"output":         stats.Output,
		"artifact":       path,
	})
	r.record(ctx, ledger.StageClean, path, len(clean),
		fmt.Sprintf("query=%q dropped=%d", r.opts.Query.Keyword, stats.Input-stats.Output))
	return clean, nil
}

func (r *Runner) extract(ctx context.Context, clean bioactivity.CleanDataset, summary *Summary) (bioactivity.DescriptorTable, error) {
	table, err := r.extractor.Extract(ctx, clean)
	if err != nil {
		return bioactivity.DescriptorTable{}, err
	}
	summary.Descriptors = table.Len()
	summary.Features = len(table.Columns)

	path := r.path(features.DescriptorFile)
	summary.Artifacts[ledger.StageFeatures] = path

	r.logEvent("stage_completed", map[string]interface{}{
		"stage":    ledger.StageFeatures,
		"rows":     table.Len(),
		"columns":  len(table.Columns),
		"artifact": path,
	})
	r.record(ctx, ledger.StageFeatures, path, table.Len(), fmt.Sprintf("columns=%d", len(table.Columns)))
	return table, nil
}

func (r *Runner) assemble(ctx context.Context, table bioactivity.DescriptorTable, clean bioactivity.CleanDataset, summary *Summary) (bioactivity.ModelDataset, bioactivity.Scaler, error) {
	dataset, scaler, err := assemble.AssembleByKey(table, clean, r.opts.TargetColumn)
	if err != nil {
		return bioactivity.ModelDataset{}, bioactivity.Scaler{}, err
	}

	path := r.path(assemble.ModelDatasetFile)
	if err := assemble.SaveModelDataset(path, dataset); err != nil {
		return bioactivity.ModelDataset{}, bioactivity.Scaler{}, err
	}
	if err := assemble.SaveScaler(r.path(assemble.ScalerFile), scaler); err != nil {
		return bioactivity.ModelDataset{}, bioactivity.Scaler{}, err
	}
	summary.DatasetRows = dataset.Len()
	summary.Scaler = scaler
	summary.Artifacts[ledger.StageAssemble] = path

	r.logEvent("stage_completed", map[string]interface{}{
		"stage":      ledger.StageAssemble,
		"rows":       dataset.Len(),
		"scaler_min": scaler.Min,
		"scaler_max": scaler.Max,
		"artifact":   path,
	})
	r.record(ctx, ledger.StageAssemble, path, dataset.Len(), fmt.Sprintf("min=%g max=%g", scaler.Min, scaler.Max))
	return dataset, scaler, nil
}

// train uploads the persisted dataset and drives the orchestrator. The
// outcome is recorded whatever its kind.
func (r *Runner) train(ctx context.Context, scaler bioactivity.Scaler, summary *Summary) (training.Outcome, error) {
	f, err := os.Open(r.path(assemble.ModelDatasetFile))
	if err != nil {
		return training.Outcome{}, fmt.Errorf("failed to open model dataset: %w", err)
	}
	defer f.Close()

	ref, err := r.service.UploadDataset(ctx, datasetName(), f)
	if err != nil {
		return training.Outcome{}, err
	}

	outcome, err := r.orchestrator.EnsureTrained(ctx, r.opts.ModelName, ref, r.opts.TargetColumn)
	if err != nil {
		return training.Outcome{}, err
	}
	summary.Outcome = outcome

	r.logEvent("training_outcome", map[string]interface{}{
		"model_name": r.opts.ModelName,
		"outcome":    outcome.Kind.String(),
		"status":     string(outcome.Model.Status),
		"polls":      outcome.Polls,
		"created":    outcome.Created,
		"detail":     outcome.Detail,
	})

	if r.recorder != nil {
		rec := &ledger.ModelRecord{
			Name:         r.opts.ModelName,
			Status:       string(outcome.Model.Status),
			Dataset:      ref.Name,
			TargetColumn: r.opts.TargetColumn,
			ScalerMin:    scaler.Min,
			ScalerMax:    scaler.Max,
			Detail:       outcome.Detail,
		}
		if err := r.recorder.PutModel(ctx, rec); err != nil {
			log.Printf("[Pipeline] WARNING: failed to record model %s: %v", r.opts.ModelName, err)
		}
	}
	r.record(ctx, ledger.StageTrain, "", 0, fmt.Sprintf("model=%s outcome=%s polls=%d", r.opts.ModelName, outcome.Kind, outcome.Polls))
	return outcome, nil
}

func (r *Runner) predict(ctx context.Context, dataset bioactivity.ModelDataset, outcome training.Outcome, scaler *bioactivity.Scaler, summary *Summary) error {
	rows := predict.SelectRows(dataset, r.opts.PredictLimit)
	result, err := predict.Predict(ctx, r.service, outcome, r.opts.TargetColumn, rows, scaler)
	if err != nil {
		return err
	}

	path := r.path(predict.ResultsFile)
	if err := predict.SaveResults(path, result); err != nil {
		return err
	}
	summary.Predictions = len(result)
	summary.Results = result
	summary.Artifacts[ledger.StagePredict] = path

	r.logEvent("stage_completed", map[string]interface{}{
		"stage":    ledger.StagePredict,
		"rows":     len(result),
		"artifact": path,
	})
	r.record(ctx, ledger.StagePredict, path, len(result), "model="+outcome.Model.Name)
	return nil
}

// loadScaler reads the sidecar, falling back to the ledger's model record.
func (r *Runner) loadScaler(ctx context.Context) (bioactivity.Scaler, error) {
	s, err := assemble.LoadScaler(r.path(assemble.ScalerFile))
	if err == nil {
		return s, nil
	}
	if r.recorder == nil {
		return bioactivity.Scaler{}, err
	}

	rec, recErr := r.recorder.GetModel(ctx, r.opts.ModelName)
	if recErr != nil {
		return bioactivity.Scaler{}, err
	}
	s = bioactivity.Scaler{Min: rec.ScalerMin, Max: rec.ScalerMax}
	if !s.Valid() {
		return bioactivity.Scaler{}, err
	}
	return s, nil
}

// record appends a stage artefact to the ledger. Ledger failures are logged,
// not propagated.
func (r *Runner) record(ctx context.Context, stage ledger.Stage, path string, rows int, detail string) {
	if r.recorder == nil {
		return
	}

	a := &ledger.StageArtefact{
		ID:     uuid.New().String(),
		RunID:  r.runID,
		Stage:  stage,
		Path:   path,
		Rows:   rows,
		Detail: detail,
	}
	if err := r.recorder.RecordArtefact(ctx, a); err != nil {
		log.Printf("[Pipeline] WARNING: failed to record %s artefact: %v", stage, err)
	}
}

// fail logs a stage failure and returns err unchanged.
func (r *Runner) fail(stage ledger.Stage, err error) error {
	r.logEvent("stage_failed", map[string]interface{}{
		"stage": stage,
		"error": err.Error(),
	})
	return err
}

// logEvent emits a structured JSON log line.
func (r *Runner) logEvent(eventType string, data map[string]interface{}) {
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	data["level"] = "info"
	data["component"] = "pipeline"
	data["event_type"] = eventType
	data["project"] = r.opts.Project
	data["run_id"] = r.runID

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Pipeline] Failed to marshal log event: %v", err)
		return
	}

	log.Println(string(jsonData))
}
