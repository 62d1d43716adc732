package release

import (
	"slices"
	"strings"
)

// Architectures, operating systems and ABIs that may appear in a triple.
const (
	ArchX86_64  = "x86_64"
	ArchAarch64 = "aarch64"

	OSLinux   = "unknown-linux"
	OSApple   = "apple"
	OSWindows = "pc-windows"

	ABIGNU    = "gnu"
	ABIMusl   = "musl"
	ABIDarwin = "darwin"
)

// Triple identifies one build configuration.
type Triple struct {
	Arch string
	OS   string
	ABI  string
}

//nolint:gochecknoglobals // Fixed allow-list.
var supported = []Triple{
	{ArchAarch64, OSApple, ABIDarwin},
	{ArchAarch64, OSLinux, ABIGNU},
	{ArchAarch64, OSLinux, ABIMusl},
	{ArchX86_64, OSApple, ABIDarwin},
	{ArchX86_64, OSWindows, ABIGNU},
	{ArchX86_64, OSLinux, ABIGNU},
	{ArchX86_64, OSLinux, ABIMusl},
}

// SupportedTriples returns the allow-list sorted by name.
func SupportedTriples() []Triple {
	out := slices.Clone(supported)
	slices.SortFunc(out, func(a, b Triple) int {
		return strings.Compare(a.String(), b.String())
	})

	return out
}

// Arches lists accepted architecture components.
func Arches() []string { return []string{ArchAarch64, ArchX86_64} }

// OSes lists accepted operating-system components.
func OSes() []string { return []string{OSApple, OSWindows, OSLinux} }

// ABIs lists accepted ABI/compiler components.
func ABIs() []string { return []string{ABIDarwin, ABIGNU, ABIMusl} }

// LookupTriple returns the supported triple named s.
func LookupTriple(s string) (Triple, bool) {
	for _, t := range supported {
		if t.String() == s {
			return t, true
		}
	}

	return Triple{}, false
}

// String renders the triple as arch-os-abi.
func (t Triple) String() string {
	return t.Arch + "-" + t.OS + "-" + t.ABI
}

// Supported reports whether t is on the allow-list.
func (t Triple) Supported() bool {
	return slices.Contains(supported, t)
}

// IsLinux reports whether t targets Linux.
func (t Triple) IsLinux() bool {
	return t.OS == OSLinux
}

// IsWindows reports whether t targets Windows.
func (t Triple) IsWindows() bool {
	return t.OS == OSWindows
}

// ExecutableSuffix is ".exe" for Windows targets and "" elsewhere.
func (t Triple) ExecutableSuffix() string {
	if t.IsWindows() {
		return ".exe"
	}

	return ""
}
