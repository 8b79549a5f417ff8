package device

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seqRand returns the queued values in order, then repeats the last one.
type seqRand struct {
	vals []int
	i    int
}

func (r *seqRand) Intn(n int) int {
	v := r.vals[r.i]
	if r.i < len(r.vals)-1 {
		r.i++
	}
	if v >= n {
		v = n - 1
	}
	return v
}

func TestNewStateDefaults(t *testing.T) {
	s := NewState("", "")
	assert.Equal(t, StatusOffline, s.Status)
	assert.Equal(t, DefaultIPAddress, s.IPAddress)
	assert.Equal(t, DefaultMACAddress, s.MACAddress)
	assert.Equal(t, LastSeenNever, s.LastSeen)
	assert.Equal(t, 0, s.CPULoad)
	assert.Equal(t, 20, s.Temp)

	s = NewState("10.0.0.2", "00:11:22:33:44:55")
	assert.Equal(t, "10.0.0.2", s.IPAddress)
	assert.Equal(t, "00:11:22:33:44:55", s.MACAddress)
}

func TestTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		ev      Event
		locked  bool
		want    Status
		wantErr error
	}{
		{"power on from offline", StatusOffline, EventPowerOn, true, StatusBooting, nil},
		{"power on while booting", StatusBooting, EventPowerOn, false, StatusBooting, ErrNotOffline},
		{"power on while online", StatusOnline, EventPowerOn, false, StatusOnline, ErrNotOffline},
		{"power on while shutting down", StatusShuttingDown, EventPowerOn, false, StatusShuttingDown, ErrNotOffline},
		{"booted", StatusBooting, EventBooted, false, StatusOnline, nil},
		{"booted from offline", StatusOffline, EventBooted, false, StatusOffline, ErrBadEvent},
		{"power off unlocked", StatusOnline, EventPowerOff, false, StatusShuttingDown, nil},
		{"power off locked", StatusOnline, EventPowerOff, true, StatusOnline, ErrLocked},
		{"power off from offline", StatusOffline, EventPowerOff, false, StatusOffline, ErrNotOnline},
		{"power off while booting", StatusBooting, EventPowerOff, false, StatusBooting, ErrNotOnline},
		{"halted", StatusShuttingDown, EventHalted, false, StatusOffline, nil},
		{"halted from online", StatusOnline, EventHalted, false, StatusOnline, ErrBadEvent},
		{"unknown event", StatusOnline, Event("reboot"), false, StatusOnline, ErrBadEvent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TransitionLocked(tt.from, tt.ev, tt.locked)
			assert.Equal(t, tt.want, got)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)

			var ge *GuardError
			require.True(t, errors.As(err, &ge))
			assert.Equal(t, tt.from, ge.From)
			assert.Equal(t, tt.ev, ge.Event)
		})
	}
}

func TestTransitionNeverSkipsIntermediateStates(t *testing.T) {
	events := []Event{EventPowerOn, EventBooted, EventPowerOff, EventHalted}
	allowed := map[Status]Status{
		StatusOffline:      StatusBooting,
		StatusBooting:      StatusOnline,
		StatusOnline:       StatusShuttingDown,
		StatusShuttingDown: StatusOffline,
	}

	for _, from := range []Status{StatusOffline, StatusBooting, StatusOnline, StatusShuttingDown} {
		for _, ev := range events {
			got, err := Transition(from, ev)
			if err != nil {
				assert.Equal(t, from, got)
				continue
			}
			assert.Equal(t, allowed[from], got, "%s --%s-->", from, ev)
		}
	}
}

func TestJitterTelemetryStaysInBounds(t *testing.T) {
	s := State{Status: StatusOnline, CPULoad: 1, Temp: 30}
	s = JitterTelemetry(s, &seqRand{vals: []int{0, 0}})
	assert.Equal(t, 0, s.CPULoad)
	assert.Equal(t, 30, s.Temp)

	s = State{Status: StatusOnline, CPULoad: 99, Temp: 95}
	s = JitterTelemetry(s, &seqRand{vals: []int{4, 2}})
	assert.Equal(t, 100, s.CPULoad)
	assert.Equal(t, 95, s.Temp)

	s = State{Status: StatusOnline, CPULoad: 50, Temp: 50}
	s = JitterTelemetry(s, &seqRand{vals: []int{3, 1}})
	assert.Equal(t, 51, s.CPULoad)
	assert.Equal(t, 50, s.Temp)
}

func TestSeedOnlineAndIdle(t *testing.T) {
	s := SeedOnline(NewState("", ""), &seqRand{vals: []int{0, 0}})
	assert.Equal(t, 10, s.CPULoad)
	assert.Equal(t, 45, s.Temp)

	s = SeedOnline(s, &seqRand{vals: []int{29, 9}})
	assert.Equal(t, 39, s.CPULoad)
	assert.Equal(t, 54, s.Temp)

	s = Idle(s)
	assert.Equal(t, IdleCPULoad, s.CPULoad)
	assert.Equal(t, IdleTemp, s.Temp)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0, Clamp(-3, 0, 100))
	assert.Equal(t, 100, Clamp(130, 0, 100))
	assert.Equal(t, 42, Clamp(42, 0, 100))
}
