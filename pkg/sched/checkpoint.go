package sched

import (
	"encoding/gob"
	"os"
)

// Snapshot is a point-in-time summary of the scheduler's queues, gob-
// encoded the same way the teacher checkpoints search progress
// (pkg/result/checkpoint.go's Checkpoint/SaveCheckpoint/LoadCheckpoint).
// It does not capture VM register state — cooperative tasks have no
// portable suspend point outside a fresh Resume call — so it is a
// progress report for the bench command's stress runs, not a resumable
// process image.
type Snapshot struct {
	Tick      uint32
	Ready     int
	Waiting   int
	Suspended int
	Dormant   int
}

// Snapshot reports the current size of every queue plus the tick
// counter, for the bench command's --checkpoint progress trail.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Tick:      s.tick,
		Ready:     len(s.ready),
		Waiting:   len(s.waiting),
		Suspended: len(s.suspended),
		Dormant:   len(s.dormant),
	}
}

// SaveCheckpoint writes snap to path, mirroring result.SaveCheckpoint.
func SaveCheckpoint(path string, snap Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewEncoder(f).Encode(snap)
}

// LoadCheckpoint reads a Snapshot back from path, mirroring
// result.LoadCheckpoint.
func LoadCheckpoint(path string) (Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return Snapshot{}, err
	}
	defer f.Close()
	var snap Snapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}
