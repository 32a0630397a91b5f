// Package fees computes the platform/processor fee split for destination
// charges. All amounts are integer minor currency units (öre); rates are
// basis points so the arithmetic stays exact.
package fees

// Schedule holds the percentage-plus-fixed formula for each fee component.
type Schedule struct {
	ProcessorBps   int64 // processor percentage in basis points
	ProcessorFixed int64 // processor fixed fee in minor units
	PlatformBps    int64 // platform percentage in basis points
	PlatformFixed  int64 // platform fixed fee in minor units
}

// Default mirrors the production pricing: processor 1.5% + 180 öre,
// platform 5% + 50 öre.
var Default = Schedule{
	ProcessorBps:   150,
	ProcessorFixed: 180,
	PlatformBps:    500,
	PlatformFixed:  50,
}

// ProcessorFee is the processor's cut of amountMinor.
func (s Schedule) ProcessorFee(amountMinor int64) int64 {
	return roundBps(amountMinor, s.ProcessorBps) + s.ProcessorFixed
}

// PlatformFee is the platform's cut of amountMinor.
func (s Schedule) PlatformFee(amountMinor int64) int64 {
	return roundBps(amountMinor, s.PlatformBps) + s.PlatformFixed
}

// ApplicationFee is the amount withheld from the destination payout so the
// platform does not absorb processor costs.
func (s Schedule) ApplicationFee(amountMinor int64) int64 {
	return s.ProcessorFee(amountMinor) + s.PlatformFee(amountMinor)
}

// roundBps computes amount*bps/10000 rounded to the nearest minor unit.
func roundBps(amount, bps int64) int64 {
	return (amount*bps + 5000) / 10000
}
