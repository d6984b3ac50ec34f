package host

import "testing"

func TestFocusPauser(t *testing.T) {
	type step struct {
		focused, sessionPaused bool
		pause, resume          bool
	}
	tests := []struct {
		name  string
		steps []step
	}{
		{"blur pauses and focus resumes", []step{
			{false, false, true, false},
			{true, true, false, true},
		}},
		{"user pause survives blur", []step{
			{false, true, false, false},
			{true, true, false, false},
		}},
		{"unchanged focus does nothing", []step{
			{true, false, false, false},
			{true, true, false, false},
		}},
		{"resumed while away is left alone", []step{
			{false, false, true, false},
			{true, false, false, false},
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := focusPauser{focused: true}
			for i, s := range tc.steps {
				pause, resume := f.update(s.focused, s.sessionPaused)
				if pause != s.pause || resume != s.resume {
					t.Errorf("step %d: pause, resume = %v, %v; want %v, %v", i, pause, resume, s.pause, s.resume)
				}
			}
		})
	}
}

func TestPollLaunchChoiceWaits(t *testing.T) {
	r := &runner{launchChoice: make(chan bool, 1)}
	if !r.pollLaunchChoice() {
		t.Fatal("nothing pending should not block")
	}
	r.awaiting = true
	if r.pollLaunchChoice() {
		t.Fatal("ran before the answer arrived")
	}
}
