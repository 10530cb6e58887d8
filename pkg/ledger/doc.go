// Package ledger provides a Redis-backed record of assay pipeline runs.
//
// # Overview
//
// Every pipeline stage persists its artifact to the working directory and then
// records a StageArtefact on the ledger: which run produced it, where it lives,
// how many rows it holds. The ledger is the cross-run memory of the pipeline:
// it also stores one ModelRecord per remote model name, so the name used to
// look a model up on the training service, and the target transform needed to
// read its predictions back, survive between runs.
//
// The ledger replaces process-wide connection state: callers construct a
// Client explicitly and hand it to the pipeline.
//
// # Usage Example
//
//	client, err := ledger.NewClient(&redis.Options{Addr: "localhost:6379"}, "ache-ki")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	artefact := &ledger.StageArtefact{
//		ID:     uuid.New().String(),
//		RunID:  runID,
//		Stage:  ledger.StageClean,
//		Path:   "bioactivity_data.csv",
//		Rows:   118,
//	}
//	if err := client.RecordArtefact(ctx, artefact); err != nil {
//		log.Fatal(err)
//	}
//
// # Redis Schema
//
// All keys follow the pattern assay:{project}:{entity}:{id}
//
// Artefacts: assay:{project}:artefact:{artefact_id} (hash)
// Artefact timeline: assay:{project}:artefacts (zset, score = created_at_ms)
// Run index: assay:{project}:run:{run_id}:artefacts (list, stage order)
// Models: assay:{project}:model:{model_name} (hash)
//
// Pub/Sub channel: assay:{project}:artefact_events
package ledger
