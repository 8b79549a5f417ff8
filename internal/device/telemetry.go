package device

// Rand is the subset of *math/rand.Rand used for telemetry. Tests pass a
// fixed sequence.
type Rand interface {
	Intn(n int) int
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Jitter adds delta to v and clamps the result.
func Jitter(v, delta, lo, hi int) int {
	return Clamp(v+delta, lo, hi)
}

// JitterTelemetry applies one tick of random drift: up to ±2 on the CPU load
// and ±1 on the temperature, kept inside the online band.
func JitterTelemetry(s State, r Rand) State {
	s.CPULoad = Jitter(s.CPULoad, r.Intn(5)-2, MinCPULoad, MaxCPULoad)
	s.Temp = Jitter(s.Temp, r.Intn(3)-1, OnlineMinTemp, OnlineMaxTemp)
	return s
}

// SeedOnline sets nominal telemetry for a freshly booted device.
func SeedOnline(s State, r Rand) State {
	s.CPULoad = 10 + r.Intn(30)
	s.Temp = 45 + r.Intn(10)
	return s
}

// Idle resets telemetry to the powered-down values.
func Idle(s State) State {
	s.CPULoad = IdleCPULoad
	s.Temp = IdleTemp
	return s
}
