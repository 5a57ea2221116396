package kernel

import "github.com/oxidecomputer/gokernel/abi"

// AccessMode is the kind of access a memory-checker call is validating.
type AccessMode uint8

const (
	AccessRead AccessMode = iota
	AccessWrite
)

// CheckAccess implements spec.md §4.2's memory checker: the strict,
// non-straddling check. A slice is legal iff it lies entirely within a
// single region that grants the requested permission. Empty slices are
// always legal, regardless of address. Addresses near the top of the
// address space that would require wraparound to span are rejected.
func CheckAccess(regions []abi.RegionDesc, base, length uint32, mode AccessMode) bool {
	if length == 0 {
		return true
	}
	end := uint64(base) + uint64(length)
	if end > 1<<32 {
		// Would need to wrap the 32-bit address space to span this slice.
		return false
	}
	for _, r := range regions {
		if r.Size == 0 {
			continue
		}
		rEnd := uint64(r.Base) + uint64(r.Size)
		if uint64(base) < uint64(r.Base) || end > rEnd {
			continue
		}
		switch mode {
		case AccessRead:
			if r.Attributes.Has(abi.AttrRead) {
				return true
			}
		case AccessWrite:
			if r.Attributes.Has(abi.AttrWrite) {
				return true
			}
		}
	}
	return false
}

// MPUDriver translates a task's resolved region table into hardware MPU
// region registers, once per context switch, per spec.md §4.3. The real
// implementation is architecture-specific (ARMv7-M vs ARMv8-M register
// layout) and explicitly out of scope per spec.md §1 ("external
// collaborators"); simMPU below is the in-memory stand-in used by
// cmd/kernsim and every test in this module, since no physical MPU exists
// under `go test`.
type MPUDriver interface {
	// Load reprograms the MPU to enforce exactly these regions. Returns an
	// error only if regions exceeds the hardware's region-register count —
	// spec.md §4.3 requires that to be caught at image-build time instead,
	// so a real driver would never see it at runtime.
	Load(regions []abi.RegionDesc) error
}

// simMPU is a trivial MPUDriver that just remembers the last-loaded table,
// for tests and the simulator to assert context-switch/MPU-reload
// correspondence (spec.md §8).
type simMPU struct {
	loads   int
	current []abi.RegionDesc
}

func newSimMPU() *simMPU { return &simMPU{} }

func (m *simMPU) Load(regions []abi.RegionDesc) error {
	m.loads++
	m.current = append(m.current[:0], regions...)
	return nil
}

// Loads reports how many times Load has been called, for the "context
// switches and MPU reconfigurations are in 1-to-1 correspondence" property
// in spec.md §8.
func (m *simMPU) Loads() int { return m.loads }
