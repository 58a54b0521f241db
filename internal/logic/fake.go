package logic

import "context"

// FakeSleeper is a test double that records sleep control calls.
// It is not safe for concurrent use.
type FakeSleeper struct {
	// Calls records each call by name.
	Calls []string

	// Enabled mirrors SE.
	Enabled bool

	// PowerDown is true once ArmPowerDown has been called.
	PowerDown bool

	// OnSleep, if set, runs for each SleepCPU call made while enabled. It
	// stands in for the interrupt that ends the sleep.
	OnSleep func()

	// SleepError, if set, is returned by SleepCPU.
	SleepError error

	// Slept counts SleepCPU calls made while enabled.
	Slept int
}

// SleepEnable records the call and sets Enabled.
func (f *FakeSleeper) SleepEnable() {
	f.Calls = append(f.Calls, "enable")
	f.Enabled = true
}

// SleepDisable records the call and clears Enabled.
func (f *FakeSleeper) SleepDisable() {
	f.Calls = append(f.Calls, "disable")
	f.Enabled = false
}

// ArmPowerDown records the call.
func (f *FakeSleeper) ArmPowerDown() {
	f.Calls = append(f.Calls, "power-down")
	f.PowerDown = true
}

// SleepCPU records the call and runs OnSleep when enabled.
func (f *FakeSleeper) SleepCPU(ctx context.Context) error {
	f.Calls = append(f.Calls, "sleep")
	if f.SleepError != nil {
		return f.SleepError
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if !f.Enabled {
		return nil
	}
	f.Slept++
	if f.OnSleep != nil {
		f.OnSleep()
	}
	return nil
}

// Reset clears recorded calls.
func (f *FakeSleeper) Reset() {
	f.Calls = nil
	f.Slept = 0
}

// FakeOutput records every level written to it.
type FakeOutput struct {
	Values []bool
}

// Set records high.
func (f *FakeOutput) Set(high bool) {
	f.Values = append(f.Values, high)
}
