package kernel

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oxidecomputer/gokernel/abi"
)

func TestCheckAccessZeroLengthAlwaysLegal(t *testing.T) {
	require.True(t, CheckAccess(nil, 0xFFFFFFFF, 0, AccessRead), "a zero-length access must always be legal, regardless of address or regions")
}

func TestCheckAccessStrictNonStraddling(t *testing.T) {
	regions := []abi.RegionDesc{
		memRegion(0x1000, 0x1000, abi.AttrRead|abi.AttrWrite),
		memRegion(0x2000, 0x1000, abi.AttrRead),
	}
	// Entirely within the first region: legal.
	require.True(t, CheckAccess(regions, 0x1000, 0x10, AccessRead), "expected access within a single region to be legal")
	// Straddling both regions: illegal, even though both individually grant
	// read access.
	require.False(t, CheckAccess(regions, 0x1FF0, 0x20, AccessRead), "expected a straddling access to be rejected")
	// Write to a read-only region: illegal.
	require.False(t, CheckAccess(regions, 0x2000, 0x10, AccessWrite), "expected a write to a read-only region to be rejected")
}

func TestCheckAccessWraparoundRejected(t *testing.T) {
	regions := []abi.RegionDesc{memRegion(0xFFFFFF00, 0x100, abi.AttrRead)}
	require.False(t, CheckAccess(regions, 0xFFFFFFF0, 0x20, AccessRead), "an access that would need to wrap the address space must be rejected")
}

func TestSimMPULoad(t *testing.T) {
	m := newSimMPU()
	regions := []abi.RegionDesc{memRegion(0, 0x100, abi.AttrRead)}
	require.NoError(t, m.Load(regions))
	require.Equal(t, 1, m.Loads())
	require.NoError(t, m.Load(regions))
	require.Equal(t, 2, m.Loads())
}
