package pipeline

// State is where a track is in a run.
//
//	Uncached -> Fetching -> AutoMatched -> Cached
//	                     -> NeedsManualResolution -> Cached | Skipped
//
// Skipped lasts for one run only unless skip markers are remembered.
type State int

const (
	Uncached State = iota
	Fetching
	AutoMatched
	NeedsManualResolution
	Cached
	Skipped
)

func (s State) String() string {
	switch s {
	case Uncached:
		return "uncached"
	case Fetching:
		return "fetching"
	case AutoMatched:
		return "auto_matched"
	case NeedsManualResolution:
		return "needs_manual_resolution"
	case Cached:
		return "cached"
	case Skipped:
		return "skipped"
	}
	return "unknown"
}

// Stage names the part of a run a fatal error came from.
type Stage string

const (
	StageLoad    Stage = "load"
	StageFetch   Stage = "fetch"
	StageResolve Stage = "resolve"
	StagePersist Stage = "persist"
)

type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return string(e.Stage) + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error { return e.Err }
