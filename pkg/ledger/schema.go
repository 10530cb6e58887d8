package ledger

import "fmt"

// Redis key pattern helpers.
//
// Key pattern: assay:{project}:{entity}:{id}
// Channel pattern: assay:{project}:{event_type}_events

// ArtefactKey returns the Redis key for a stage artefact.
// Pattern: assay:{project}:artefact:{artefact_id}
func ArtefactKey(project, artefactID string) string {
	return fmt.Sprintf("assay:%s:artefact:%s", project, artefactID)
}

// TimelineKey returns the Redis key for the time-ordered artefact index.
// Pattern: assay:{project}:artefacts
func TimelineKey(project string) string {
	return fmt.Sprintf("assay:%s:artefacts", project)
}

// RunArtefactsKey returns the Redis key for the list of a run's artefacts.
// Pattern: assay:{project}:run:{run_id}:artefacts
func RunArtefactsKey(project, runID string) string {
	return fmt.Sprintf("assay:%s:run:%s:artefacts", project, runID)
}

// ModelKey returns the Redis key for a model record.
// Pattern: assay:{project}:model:{model_name}
func ModelKey(project, modelName string) string {
	return fmt.Sprintf("assay:%s:model:%s", project, modelName)
}

// ArtefactEventsChannel returns the Pub/Sub channel for artefact events.
// Pattern: assay:{project}:artefact_events
func ArtefactEventsChannel(project string) string {
	return fmt.Sprintf("assay:%s:artefact_events", project)
}
