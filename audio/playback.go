package audio

// Clip is one remote audio payload placed on the playback timeline.
type Clip struct {
	Start    float64 // seconds on the output clock
	Duration float64
}

// Scheduler tracks the playback timeline on a monotonically advancing
// cursor: each clip is placed at max(cursor, currentOutputTime) and pushes
// the cursor to its end. Ordering itself is enforced by the player, which
// drains queued payloads strictly first-in first-out; the scheduler is the
// bookkeeping side, telling teardown how much scheduled audio is still
// unplayed. Not safe for concurrent use; the session mutates it from its
// control loop only.
type Scheduler struct {
	now    func() float64
	cursor float64
	clips  []Clip
}

// NewScheduler builds a scheduler around the given output clock, typically
// wall time in seconds. Tests inject a fake clock.
func NewScheduler(now func() float64) *Scheduler {
	return &Scheduler{now: now}
}

// Schedule places a clip of the given duration and returns its slot.
func (s *Scheduler) Schedule(duration float64) Clip {
	start := s.now()
	if s.cursor > start {
		start = s.cursor
	}
	s.cursor = start + duration
	c := Clip{Start: start, Duration: duration}
	s.clips = append(s.clips, c)
	return c
}

// Clips returns every placement made since the last Reset.
func (s *Scheduler) Clips() []Clip {
	out := make([]Clip, len(s.clips))
	copy(out, s.clips)
	return out
}

// Remaining reports how many seconds of scheduled audio have not yet
// played, zero once the clock has passed the cursor.
func (s *Scheduler) Remaining() float64 {
	if r := s.cursor - s.now(); r > 0 {
		return r
	}
	return 0
}

// Reset drops the placement registry and rewinds the cursor. Called after
// StopAll during teardown.
func (s *Scheduler) Reset() {
	s.clips = nil
	s.cursor = 0
}
