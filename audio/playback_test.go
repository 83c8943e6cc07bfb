package audio

import "testing"

func TestSchedulerNeverOverlaps(t *testing.T) {
	now := 10.0
	s := NewScheduler(func() float64 { return now })

	c1 := s.Schedule(2.0)
	if c1.Start != 10.0 {
		t.Errorf("clip 1 start = %v, want 10.0", c1.Start)
	}

	// second clip arrives while the first is still playing
	now = 10.5
	c2 := s.Schedule(1.0)
	if c2.Start != 12.0 {
		t.Errorf("clip 2 start = %v, want end of clip 1 (12.0)", c2.Start)
	}
	if c2.Start < c1.Start+c1.Duration {
		t.Errorf("clip 2 (%v) overlaps clip 1 ending at %v", c2.Start, c1.Start+c1.Duration)
	}
}

func TestSchedulerCatchesUpToClock(t *testing.T) {
	now := 0.0
	s := NewScheduler(func() float64 { return now })

	s.Schedule(1.0) // ends at 1.0

	// long silence: the clock has moved past the cursor
	now = 5.0
	c := s.Schedule(1.0)
	if c.Start != 5.0 {
		t.Errorf("start = %v, want current time 5.0", c.Start)
	}
}

func TestSchedulerTracksClips(t *testing.T) {
	s := NewScheduler(func() float64 { return 0 })
	s.Schedule(1.0)
	s.Schedule(0.5)
	if n := len(s.Clips()); n != 2 {
		t.Fatalf("tracked %d clips, want 2", n)
	}
	s.Reset()
	if n := len(s.Clips()); n != 0 {
		t.Errorf("tracked %d clips after reset, want 0", n)
	}
	if c := s.Schedule(1.0); c.Start != 0 {
		t.Errorf("start after reset = %v, want 0", c.Start)
	}
}

func TestSchedulerRemaining(t *testing.T) {
	now := 0.0
	s := NewScheduler(func() float64 { return now })

	s.Schedule(2.0)
	s.Schedule(1.0) // cursor at 3.0

	now = 1.0
	if r := s.Remaining(); r != 2.0 {
		t.Errorf("remaining = %v, want 2.0", r)
	}

	now = 5.0
	if r := s.Remaining(); r != 0 {
		t.Errorf("remaining after playback finished = %v, want 0", r)
	}
}

func TestFakePlayerOrdering(t *testing.T) {
	p := &FakePlayer{}
	p.Play([]byte{1})
	p.Play([]byte{2})
	played := p.Played()
	if len(played) != 2 || played[0][0] != 1 || played[1][0] != 2 {
		t.Errorf("playback order wrong: %v", played)
	}
	p.StopAll()
	if len(p.Played()) != 0 {
		t.Error("StopAll should discard queued clips")
	}
}
