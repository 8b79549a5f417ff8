package metrics

import (
	"testing"
	"time"

	"github.com/edgecli/neurolink/internal/device"
)

func TestAddSampleTrimsToMax(t *testing.T) {
	s := NewStore()
	defer s.Stop()

	for i := 0; i < MaxHistoryPoints+30; i++ {
		s.AddSample(Sample{Timestamp: int64(i + 1), Status: device.StatusOnline, CPULoad: i % 100, Temp: 40})
	}

	all := s.History(0)
	if len(all) != MaxHistoryPoints {
		t.Fatalf("expected %d samples, got %d", MaxHistoryPoints, len(all))
	}
	if all[0].Timestamp != 31 {
		t.Errorf("expected oldest timestamp 31, got %d", all[0].Timestamp)
	}
}

func TestHistorySince(t *testing.T) {
	s := NewStore()
	defer s.Stop()

	for i := 1; i <= 5; i++ {
		s.AddSample(Sample{Timestamp: int64(i * 1000)})
	}

	got := s.History(3000)
	if len(got) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(got))
	}
	if got[0].Timestamp != 4000 {
		t.Errorf("expected 4000, got %d", got[0].Timestamp)
	}
}

func TestRecordAndLatest(t *testing.T) {
	s := NewStore()
	defer s.Stop()

	if s.Latest() != nil {
		t.Fatal("expected no latest sample")
	}

	state := device.NewState("", "")
	state.Status = device.StatusOnline
	state.CPULoad = 33
	state.Temp = 51
	s.Record(state)

	latest := s.Latest()
	if latest == nil {
		t.Fatal("expected a sample")
	}
	if latest.CPULoad != 33 || latest.Temp != 51 || latest.Status != device.StatusOnline {
		t.Errorf("unexpected sample: %+v", latest)
	}
	if latest.Timestamp == 0 {
		t.Error("expected timestamp to be set")
	}
}

func TestCleanupDropsStaleSamples(t *testing.T) {
	now := time.Now()
	s := NewStore()
	defer s.Stop()
	s.now = func() time.Time { return now }

	s.AddSample(Sample{Timestamp: now.Add(-20 * time.Minute).UnixMilli()})
	s.AddSample(Sample{Timestamp: now.Add(-time.Minute).UnixMilli()})
	s.cleanup()

	if got := len(s.History(0)); got != 1 {
		t.Fatalf("expected 1 sample after cleanup, got %d", got)
	}
}

func TestSummary(t *testing.T) {
	s := NewStore()
	defer s.Stop()

	if sum := s.Summary(); sum.SampleCount != 0 || sum.Latest != nil {
		t.Fatalf("unexpected empty summary: %+v", sum)
	}

	s.AddSample(Sample{Timestamp: 1, Status: device.StatusOnline, CPULoad: 20, Temp: 50})
	s.AddSample(Sample{Timestamp: 2, Status: device.StatusOnline, CPULoad: 40, Temp: 55})
	s.AddSample(Sample{Timestamp: 3, Status: device.StatusOffline, CPULoad: 0, Temp: 20})

	sum := s.Summary()
	if sum.SampleCount != 3 {
		t.Errorf("expected 3 samples, got %d", sum.SampleCount)
	}
	if sum.AvgCPULoad != 30 {
		t.Errorf("expected avg 30, got %v", sum.AvgCPULoad)
	}
	if sum.MaxTemp != 55 {
		t.Errorf("expected max temp 55, got %d", sum.MaxTemp)
	}
	if sum.OldestSample != 1 || sum.NewestSample != 3 {
		t.Errorf("unexpected range %d..%d", sum.OldestSample, sum.NewestSample)
	}
}
