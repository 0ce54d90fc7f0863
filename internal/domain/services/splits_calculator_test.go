package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitsCalculator_Compute(t *testing.T) {
	calc := NewSplitsCalculator()

	cases := []struct {
		name                string
		total               int64
		organizerPercentage int
		wantOrganizer       int64
		wantPlatform        int64
	}{
		{"even split at default 90%", 10000, 90, 9000, 1000},
		{"residue goes to platform", 10001, 90, 9000, 1001},
		{"0% organizer share", 5000, 0, 0, 5000},
		{"100% organizer share", 5000, 100, 5000, 0},
		{"negative percentage clamps to 0", 5000, -10, 0, 5000},
		{"over-100 percentage clamps to 100", 5000, 150, 5000, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			splits := calc.Compute(tc.total, tc.organizerPercentage)
			assert.Equal(t, tc.wantOrganizer, splits.OrganizerAmount)
			assert.Equal(t, tc.wantPlatform, splits.PlatformAmount)
			assert.Equal(t, tc.total, splits.OrganizerAmount+splits.PlatformAmount, "no value is created or lost in the split")
		})
	}
}
