package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dyluth/assay/internal/config"
	dockerpkg "github.com/dyluth/assay/internal/docker"
	"github.com/dyluth/assay/internal/features"
	"github.com/dyluth/assay/internal/ingest"
	"github.com/dyluth/assay/internal/pipeline"
	"github.com/dyluth/assay/internal/printer"
	"github.com/dyluth/assay/internal/training"
	"github.com/dyluth/assay/pkg/ledger"
	"github.com/redis/go-redis/v9"
)

// loadConfig reads the file named by --config.
func loadConfig() (*config.AssayConfig, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, printer.Error(
				fmt.Sprintf("%s not found", configPath),
				"No assay configuration was found.",
				[]string{
					"Create one in the current directory:\n  assay init",
					"Point at an existing file:\n  assay --config path/to/assay.yml <command>",
				},
			)
		}
		return nil, printer.Error(
			"invalid configuration",
			err.Error(),
			[]string{fmt.Sprintf("Fix the reported field in %s", configPath)},
		)
	}
	return cfg, nil
}

// openLedger connects to the configured Redis ledger. It returns (nil, nil)
// when no ledger is configured.
func openLedger(ctx context.Context, cfg *config.AssayConfig) (*ledger.Client, error) {
	if !cfg.LedgerEnabled() {
		return nil, nil
	}

	redisOpts, err := redis.ParseURL(cfg.Ledger.RedisURL)
	if err != nil {
		return nil, printer.Error(
			"invalid ledger URL",
			fmt.Sprintf("Could not parse ledger.redis_url: %v", err),
			[]string{fmt.Sprintf("Use the form redis://host:6379/0 in %s or %s", configPath, config.EnvRedisURL)},
		)
	}

	lc, err := ledger.NewClient(redisOpts, cfg.Project)
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger client: %w", err)
	}

	if err := lc.Ping(ctx); err != nil {
		lc.Close()
		return nil, printer.ErrorWithContext(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to the ledger: %v", err),
			map[string]string{"Address": redisOpts.Addr, "Project": cfg.Project},
			[]string{
				"Start Redis:\n  docker run -d -p 6379:6379 redis:7-alpine",
				fmt.Sprintf("Or remove the ledger section from %s", configPath),
			},
		)
	}

	return lc, nil
}

// requireLedger is openLedger for commands that have nothing to do without one.
func requireLedger(ctx context.Context, cfg *config.AssayConfig) (*ledger.Client, error) {
	if !cfg.LedgerEnabled() {
		return nil, printer.Error(
			"no ledger configured",
			"This command reads the run ledger, which is disabled.",
			[]string{fmt.Sprintf("Set ledger.redis_url in %s or export %s", configPath, config.EnvRedisURL)},
		)
	}
	return openLedger(ctx, cfg)
}

// runnerMode selects which collaborators buildRunner wires.
type runnerMode int

const (
	modeFull      runnerMode = iota // every stage
	modeTrainOnly                   // no source, no extractor
)

// environment holds the collaborators of one command invocation.
type environment struct {
	cfg    *config.AssayConfig
	runner *pipeline.Runner
	ledger *ledger.Client
	close  []func()
}

func (e *environment) Close() {
	for i := len(e.close) - 1; i >= 0; i-- {
		e.close[i]()
	}
}

// buildEnvironment wires the pipeline runner from configuration.
func buildEnvironment(ctx context.Context, cfg *config.AssayConfig, mode runnerMode) (*environment, error) {
	env := &environment{cfg: cfg}
	runID := dockerpkg.GenerateRunID()

	svc, err := training.NewHTTPClient(cfg.Training.BaseURL, cfg.Training.Project, cfg.Training.Token, nil)
	if err != nil {
		return nil, printer.Error("invalid training service settings", err.Error(), []string{
			fmt.Sprintf("Check training.base_url and training.project in %s", configPath),
		})
	}
	orch := training.NewOrchestrator(svc, training.Options{
		PollInterval:  cfg.Training.PollInterval,
		MaxPolls:      cfg.Training.MaxPolls,
		RetrainFailed: cfg.Training.RetrainFailed,
	})

	var source ingest.Source
	var extractor *features.Extractor
	if mode == modeFull {
		source, err = buildSource(cfg)
		if err != nil {
			return nil, err
		}

		extractor, err = buildExtractor(ctx, cfg, runID, env)
		if err != nil {
			env.Close()
			return nil, err
		}
	}

	lc, err := openLedger(ctx, cfg)
	if err != nil {
		env.Close()
		return nil, err
	}

	// A nil *ledger.Client must not become a non-nil Recorder.
	var recorder pipeline.Recorder
	if lc != nil {
		env.ledger = lc
		env.close = append(env.close, func() { lc.Close() })
		recorder = lc
	}

	runner, err := pipeline.NewRunner(pipeline.Options{
		RunID:   runID,
		Project: cfg.Project,
		WorkDir: cfg.WorkDir,
		Query: ingest.TargetQuery{
			Keyword:      cfg.Target.Query,
			Index:        cfg.Target.Index,
			ActivityType: cfg.Target.ActivityType,
		},
		ModelName:    cfg.Training.ModelName,
		TargetColumn: cfg.Training.TargetColumn,
		PredictLimit: cfg.Predict.Limit,
	}, source, extractor, svc, orch, recorder)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.runner = runner

	return env, nil
}

func buildSource(cfg *config.AssayConfig) (ingest.Source, error) {
	if cfg.Source.File != "" {
		return ingest.FileSource{Path: cfg.Source.File}, nil
	}

	client, err := ingest.NewChEMBLClient(cfg.Source.BaseURL, cfg.Source.PageSize, nil)
	if err != nil {
		return nil, printer.Error("invalid source settings", err.Error(), []string{
			fmt.Sprintf("Check source.base_url in %s", configPath),
		})
	}
	return client, nil
}

func buildExtractor(ctx context.Context, cfg *config.AssayConfig, runID string, env *environment) (*features.Extractor, error) {
	fp := cfg.Fingerprint

	var runner features.Runner
	switch fp.Mode {
	case "docker":
		cli, err := dockerpkg.NewClient(ctx)
		if err != nil {
			return nil, printer.Error("Docker unavailable", err.Error(), []string{
				"Start the Docker daemon",
				fmt.Sprintf("Or set fingerprint.mode to \"exec\" in %s", configPath),
			})
		}
		env.close = append(env.close, func() { cli.Close() })
		runner = &features.DockerRunner{
			Client:  cli,
			Image:   fp.Image,
			Project: cfg.Project,
			RunID:   runID,
			Timeout: fp.Timeout,
		}
	default:
		runner = &features.ExecRunner{Command: fp.Command, Timeout: fp.Timeout}
	}

	return &features.Extractor{
		Runner:         runner,
		WorkDir:        cfg.WorkDir,
		SpecPattern:    fp.SpecPattern,
		DescriptorSpec: fp.DescriptorSpec,
		Options:        features.DefaultOptions(fp.Threads),
	}, nil
}
