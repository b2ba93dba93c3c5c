package coordgroup

import "github.com/shuttle-mr/shuttle/pkg/log"

// LoggingRuntime is a stage.ClusterRuntime that provisions nothing: a
// shuttle worker is a long-running process an operator starts
// independently, which finds the coordinator and registers itself via
// Heartbeat, so there is no cluster scheduler backend for a Stage
// Controller to call into. It only logs the capacity/priority signals a
// real one would act on, so an operator watching coordinator logs can size
// the worker pool by hand.
type LoggingRuntime struct {
	jobID string
}

// NewLoggingRuntime builds a ClusterRuntime that logs requests for jobID
// instead of acting on them.
func NewLoggingRuntime(jobID string) *LoggingRuntime {
	return &LoggingRuntime{jobID: jobID}
}

func (r *LoggingRuntime) RequestWorkers(stageIndex, capacity int) error {
	log.Logger.Info().Str("component", "coordgroup").Str("job_id", r.jobID).
		Int("stage", stageIndex).Int("capacity", capacity).Msg("stage requests worker capacity")
	return nil
}

func (r *LoggingRuntime) SetCapacity(stageIndex, capacity int) error {
	log.Logger.Info().Str("component", "coordgroup").Str("job_id", r.jobID).
		Int("stage", stageIndex).Int("capacity", capacity).Msg("stage capacity changed")
	return nil
}

func (r *LoggingRuntime) SetPriority(stageIndex int, priority string) error {
	log.Logger.Info().Str("component", "coordgroup").Str("job_id", r.jobID).
		Int("stage", stageIndex).Str("priority", priority).Msg("stage priority changed")
	return nil
}

func (r *LoggingRuntime) KillWorkers(stageIndex int) error {
	log.Logger.Info().Str("component", "coordgroup").Str("job_id", r.jobID).
		Int("stage", stageIndex).Msg("stage kill requested")
	return nil
}
