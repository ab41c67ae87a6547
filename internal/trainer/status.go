package trainer

import (
	"sync"
	"time"

	"gridvolt/internal/casebuilder"
	"gridvolt/internal/powerflow"
)

// Phase names the stage a run is in.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseLoading    Phase = "loading"
	PhaseTraining   Phase = "training"
	PhaseEvaluating Phase = "evaluating"
	PhaseDone       Phase = "done"
	PhaseFailed     Phase = "failed"
)

// Status tracks run progress for readers on other goroutines.
type Status struct {
	mu       sync.RWMutex
	phase    Phase
	info     casebuilder.CaseInfo
	size     int
	step     int
	total    int
	loss     float64
	mismatch *powerflow.Mismatch
	err      string
	updated  time.Time
}

// StatusSnapshot is a point-in-time copy of Status.
type StatusSnapshot struct {
	Phase      Phase                `json:"phase"`
	Case       casebuilder.CaseInfo `json:"case"`
	Size       int                  `json:"size"`
	Step       int                  `json:"step"`
	TotalSteps int                  `json:"total_steps"`
	Loss       float64              `json:"loss"`
	Mismatch   *powerflow.Mismatch  `json:"mismatch,omitempty"`
	Error      string               `json:"error,omitempty"`
	Updated    time.Time            `json:"updated"`
}

// Snapshot copies the current state.
func (s *Status) Snapshot() StatusSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	phase := s.phase
	if phase == "" {
		phase = PhaseIdle
	}
	return StatusSnapshot{
		Phase:      phase,
		Case:       s.info,
		Size:       s.size,
		Step:       s.step,
		TotalSteps: s.total,
		Loss:       s.loss,
		Mismatch:   s.mismatch,
		Error:      s.err,
		Updated:    s.updated,
	}
}

func (s *Status) setPhase(p Phase) {
	s.mu.Lock()
	s.phase = p
	s.updated = time.Now()
	s.mu.Unlock()
}

func (s *Status) setCase(info casebuilder.CaseInfo, size, total int) {
	s.mu.Lock()
	s.info, s.size, s.total = info, size, total
	s.updated = time.Now()
	s.mu.Unlock()
}

func (s *Status) setStep(step int, loss float64) {
	s.mu.Lock()
	s.step, s.loss = step, loss
	s.updated = time.Now()
	s.mu.Unlock()
}

func (s *Status) finish(m powerflow.Mismatch) {
	s.mu.Lock()
	s.phase = PhaseDone
	s.mismatch = &m
	s.updated = time.Now()
	s.mu.Unlock()
}

func (s *Status) fail(err error) {
	s.mu.Lock()
	s.phase = PhaseFailed
	s.err = err.Error()
	s.updated = time.Now()
	s.mu.Unlock()
}
