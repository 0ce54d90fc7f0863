package services

// Splits is the revenue division between platform and organizer for a single
// completed transaction (§4.5).
type Splits struct {
	OrganizerAmount int64
	PlatformAmount  int64
}

// SplitsCalculator computes deterministic revenue splits given a total and the
// organizer's configured share percentage. The only rounding residue goes to the
// platform, never the organizer.
type SplitsCalculator struct{}

// NewSplitsCalculator constructs a SplitsCalculator. It holds no state; the type exists
// so callers can depend on an interface-shaped collaborator per the teacher's
// constructor-injection convention.
func NewSplitsCalculator() *SplitsCalculator {
	return &SplitsCalculator{}
}

// Compute returns {organizerAmount, platformAmount} for total at organizerPercentage
// (e.g. 90 meaning the organizer keeps 90% and the platform keeps the remainder).
func (SplitsCalculator) Compute(total int64, organizerPercentage int) Splits {
	if organizerPercentage < 0 {
		organizerPercentage = 0
	}
	if organizerPercentage > 100 {
		organizerPercentage = 100
	}
	organizerAmount := (total * int64(organizerPercentage)) / 100
	return Splits{
		OrganizerAmount: organizerAmount,
		PlatformAmount:  total - organizerAmount,
	}
}
