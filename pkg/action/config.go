package action

// Config holds the execution-wide options recognized by spec.md §6. It is
// produced by internal/config from a manifest and passed by value into the
// controller, scheduler, and resolver at execution start.
type Config struct {
	MaxIterations           int   `yaml:"max_iterations" json:"max_iterations"`
	MaxExecutionTimeMS      int   `yaml:"max_execution_time_ms" json:"max_execution_time_ms"`
	MaxParallel             int   `yaml:"max_parallel" json:"max_parallel"`
	DefaultActionTimeoutMS  int   `yaml:"default_action_timeout_ms" json:"default_action_timeout_ms"`
	DefaultRetry            Retry `yaml:"default_retry" json:"default_retry"`
	StreamChunkFlushChars   int   `yaml:"stream_chunk_flush_chars" json:"stream_chunk_flush_chars"`
	TerminateOnNoProgress   bool  `yaml:"terminate_on_no_progress" json:"terminate_on_no_progress"`
	TerminateOnGoalAchieved bool  `yaml:"terminate_on_goal_achieved" json:"terminate_on_goal_achieved"`
	EventBufferCapacity     int   `yaml:"event_buffer_capacity" json:"event_buffer_capacity"`
	// MaxPendingActions bounds the graph size accepted in one iteration
	// (spec §5 "a pending action queue is bounded; overflow →
	// ValidationError(graph_too_large) rather than silent drop"). Not named
	// in spec §6's Configuration enumeration, so it carries a generous
	// default rather than one taken from the spec text.
	MaxPendingActions int `yaml:"max_pending_actions" json:"max_pending_actions"`
}

// DefaultConfig returns the Configuration defaults enumerated in spec.md §6.
func DefaultConfig() Config {
	return Config{
		MaxIterations:           10,
		MaxExecutionTimeMS:      3_600_000,
		MaxParallel:             5,
		DefaultActionTimeoutMS:  30_000,
		DefaultRetry:            DefaultRetry(),
		StreamChunkFlushChars:   10,
		TerminateOnNoProgress:   true,
		TerminateOnGoalAchieved: true,
		EventBufferCapacity:     1024,
		MaxPendingActions:       10_000,
	}
}

// WithDefaults fills zero-valued fields of c with DefaultConfig's values, so
// a partially specified manifest config behaves as if every field had been
// spelled out.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.MaxIterations == 0 {
		c.MaxIterations = d.MaxIterations
	}
	if c.MaxExecutionTimeMS == 0 {
		c.MaxExecutionTimeMS = d.MaxExecutionTimeMS
	}
	if c.MaxParallel == 0 {
		c.MaxParallel = d.MaxParallel
	}
	if c.DefaultActionTimeoutMS == 0 {
		c.DefaultActionTimeoutMS = d.DefaultActionTimeoutMS
	}
	if c.DefaultRetry.MaxAttempts == 0 {
		c.DefaultRetry = d.DefaultRetry
	}
	if c.StreamChunkFlushChars == 0 {
		c.StreamChunkFlushChars = d.StreamChunkFlushChars
	}
	if c.EventBufferCapacity == 0 {
		c.EventBufferCapacity = d.EventBufferCapacity
	}
	if c.MaxPendingActions == 0 {
		c.MaxPendingActions = d.MaxPendingActions
	}
	return c
}
