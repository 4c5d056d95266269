package tasks

import "fmt"

// Phase identifies which stage of the sync pipeline an update belongs to.
type Phase int

const (
	PhaseFetch Phase = iota
	PhaseSkip
	PhaseDryRun
	PhaseCreate
	PhaseDelete
	PhaseError
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseFetch:
		return "fetch"
	case PhaseSkip:
		return "skip"
	case PhaseDryRun:
		return "dry-run"
	case PhaseCreate:
		return "create"
	case PhaseDelete:
		return "delete"
	case PhaseError:
		return "error"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// ProgressUpdate is one event sent to the progress channel during a run.
// Step counts processed bookmarks; Total is 0 while unknown (the bookmarks
// feed is streamed, not counted up front).
type ProgressUpdate struct {
	Phase   Phase
	Step    int
	Total   int
	Message string
}

func update(phase Phase, step int, format string, args ...any) ProgressUpdate {
	return ProgressUpdate{Phase: phase, Step: step, Message: fmt.Sprintf(format, args...)}
}

// emit sends an update without blocking the engine when no consumer is attached.
func emit(ch chan<- ProgressUpdate, u ProgressUpdate) {
	if ch == nil {
		return
	}
	select {
	case ch <- u:
	default:
	}
}
