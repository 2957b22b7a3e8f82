package observability

import (
	"sync"
	"time"
)

// Phase is the control-loop state the process is currently in.
type Phase string

const (
	PhaseIdle    Phase = "IDLE"
	PhasePlan    Phase = "PLAN"
	PhaseExecute Phase = "EXECUTE"
	PhaseRevise  Phase = "REVISE"
	PhaseReport  Phase = "REPORT"
)

type SystemStatus struct {
	mu            sync.RWMutex
	Phase         Phase
	ActiveTask    string
	ActiveRuns    int
	LastHeartbeat time.Time
}

var globalStatus = &SystemStatus{
	Phase:         PhaseIdle,
	LastHeartbeat: time.Now(),
}

// SetStatus records the phase and task of the most recently active run.
func SetStatus(phase Phase, task string) {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.Phase = phase
	globalStatus.ActiveTask = task
}

// RunStarted and RunFinished track how many runs are in flight.
func RunStarted() {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.ActiveRuns++
}

func RunFinished() {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	if globalStatus.ActiveRuns > 0 {
		globalStatus.ActiveRuns--
	}
	if globalStatus.ActiveRuns == 0 {
		globalStatus.Phase = PhaseIdle
		globalStatus.ActiveTask = ""
	}
}

// Snapshot is a copy of the global status.
type Snapshot struct {
	Phase         Phase
	ActiveTask    string
	ActiveRuns    int
	LastHeartbeat time.Time
}

// GetStatus retrieves a copy of the global system status.
func GetStatus() Snapshot {
	globalStatus.mu.RLock()
	defer globalStatus.mu.RUnlock()
	return Snapshot{
		Phase:         globalStatus.Phase,
		ActiveTask:    globalStatus.ActiveTask,
		ActiveRuns:    globalStatus.ActiveRuns,
		LastHeartbeat: globalStatus.LastHeartbeat,
	}
}

// Heartbeat updates the last heartbeat time.
func Heartbeat() {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.LastHeartbeat = time.Now()
}
