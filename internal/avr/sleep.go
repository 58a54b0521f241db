package avr

import "context"

// SleepControl drives SMCR the way avr-libc's sleep.h macros do and hands
// the actual sleep instruction to a CPU.
type SleepControl struct {
	bus Bus
	cpu CPU
}

// NewSleepControl returns a SleepControl over the given bus and core.
func NewSleepControl(bus Bus, cpu CPU) *SleepControl {
	return &SleepControl{bus: bus, cpu: cpu}
}

// SetMode selects the sleep mode entered by the next sleep instruction.
func (s *SleepControl) SetMode(mode uint8) {
	s.bus.Store(SMCR, s.bus.Load(SMCR)&^SleepModeMask|mode&SleepModeMask)
}

// ArmPowerDown selects power-down, the lowest-power mode.
func (s *SleepControl) ArmPowerDown() {
	s.SetMode(SleepModePowerDown)
}

// SleepEnable sets SE. Without it the sleep instruction is a no-op.
func (s *SleepControl) SleepEnable() {
	s.bus.Store(SMCR, s.bus.Load(SMCR)|SE)
}

// SleepDisable clears SE.
func (s *SleepControl) SleepDisable() {
	s.bus.Store(SMCR, s.bus.Load(SMCR)&^SE)
}

// SleepCPU executes the sleep instruction.
func (s *SleepControl) SleepCPU(ctx context.Context) error {
	return s.cpu.Sleep(ctx)
}
