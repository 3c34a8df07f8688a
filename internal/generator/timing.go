package generator

import (
	"encoding/json"
	"os"
	"time"
)

// StageTiming is one timed pipeline stage or written file.
type StageTiming struct {
	Phase      string  `json:"phase"`
	Kind       string  `json:"kind"`
	File       string  `json:"file,omitempty"`
	Status     string  `json:"status"`
	StartMS    float64 `json:"start_ms"`
	DurationMS float64 `json:"duration_ms"`
}

// stageClock times one run. Every entry is kept for the Result; with a path
// set each entry is also streamed as a JSONL line.
type stageClock struct {
	start   time.Time
	entries []StageTiming
	out     *os.File
	enc     *json.Encoder
}

func newStageClock(start time.Time, path string) (*stageClock, error) {
	sc := &stageClock{start: start}
	if path == "" {
		return sc, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return sc, err
	}
	sc.out = f
	sc.enc = json.NewEncoder(f)
	return sc, nil
}

func (sc *stageClock) Close() {
	if sc.out != nil {
		_ = sc.out.Close()
	}
}

func (sc *stageClock) add(phase, kind, file string, start time.Time, err error) {
	entry := StageTiming{
		Phase:      phase,
		Kind:       kind,
		File:       file,
		Status:     status(err),
		StartMS:    millis(start.Sub(sc.start)),
		DurationMS: millis(time.Since(start)),
	}
	sc.entries = append(sc.entries, entry)
	if sc.enc != nil {
		_ = sc.enc.Encode(entry)
	}
}

// stage times fn and records it under phase.
func (sc *stageClock) stage(phase string, fn func() error) error {
	start := time.Now()
	err := fn()
	sc.add(phase, "stage", "", start, err)
	return err
}

// wrote records one output write that began at start.
func (sc *stageClock) wrote(path string, start time.Time, err error) {
	sc.add("write", "file", path, start, err)
}

// timings returns a copy of everything recorded so far.
func (sc *stageClock) timings() []StageTiming {
	return append([]StageTiming(nil), sc.entries...)
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func millis(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1_000_000.0
}

func (g *Generator) resolveTimingPath() string {
	if envPath := os.Getenv("BITPACK_TIMING_JSONL"); envPath != "" {
		return envPath
	}
	return g.TimingPath
}
