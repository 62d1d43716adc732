package target

import (
	"errors"
	"fmt"
	"runtime"
	"slices"
	"strings"

	"github.com/oshokin/releaser/internal/domain/release"
	"github.com/oshokin/releaser/internal/failure"
)

// Host describes the platform the releaser runs on.
type Host struct {
	// OS is a GOOS value.
	OS string
	// Arch is a GOARCH value.
	Arch string
	// HasAPK is true on Alpine-like hosts, where musl is the native ABI.
	HasAPK bool
}

// Request carries the user's target selection. Either Triple or any subset of
// Arch, OS and ABI may be set; missing components default from the host.
type Request struct {
	Arch   string
	OS     string
	ABI    string
	Triple string
}

// PathFinder is the part of exec.CommandRunner used by DetectHost.
type PathFinder interface {
	LookPath(file string) (string, error)
}

var errConflictingSelection = errors.New("an explicit triple cannot be combined with --arch, --os or --abi")

// DetectHost probes the running platform once.
func DetectHost(finder PathFinder) Host {
	_, err := finder.LookPath("apk")

	return Host{
		OS:     runtime.GOOS,
		Arch:   runtime.GOARCH,
		HasAPK: err == nil,
	}
}

// Resolve turns a request into a supported triple. It touches neither the
// network nor the filesystem.
func Resolve(req Request, host Host) (release.Triple, error) {
	if req.Triple != "" {
		if req.Arch != "" || req.OS != "" || req.ABI != "" {
			return release.Triple{}, failure.Wrap(failure.EConfig, "target selection", errConflictingSelection)
		}

		t, ok := release.LookupTriple(strings.TrimSpace(req.Triple))
		if !ok {
			return release.Triple{}, unsupported(req.Triple)
		}

		return t, nil
	}

	if err := checkComponents(req); err != nil {
		return release.Triple{}, err
	}

	defOS, defABI := hostDefaults(host)

	t := release.Triple{
		Arch: pick(req.Arch, hostArch(host.Arch)),
		OS:   pick(req.OS, defOS),
		ABI:  pick(req.ABI, defABI),
	}

	var missing []string

	if t.Arch == "" {
		missing = append(missing, "arch")
	}

	if t.OS == "" {
		missing = append(missing, "os")
	}

	if t.ABI == "" {
		missing = append(missing, "abi")
	}

	if len(missing) > 0 {
		return release.Triple{}, failure.WithDetails(
			failure.Newf(failure.EConfig, "host %s/%s has no default for %s; pass it explicitly",
				host.OS, host.Arch, strings.Join(missing, ", ")),
			map[string]string{"missing": strings.Join(missing, ",")},
		)
	}

	if !t.Supported() {
		return release.Triple{}, unsupported(t.String())
	}

	return t, nil
}

// ResolveAll resolves every request in order, stopping at the first failure.
func ResolveAll(reqs []Request, host Host) ([]release.Triple, error) {
	out := make([]release.Triple, 0, len(reqs))

	for _, req := range reqs {
		t, err := Resolve(req, host)
		if err != nil {
			return nil, err
		}

		out = append(out, t)
	}

	return out, nil
}

// All returns every supported triple.
func All() []release.Triple {
	return release.SupportedTriples()
}

func unsupported(name string) error {
	return failure.WithDetails(
		failure.Newf(failure.EUnsupportedTarget, "unsupported target %s", name),
		map[string]string{"triple": name},
	)
}

// checkComponents rejects a given component that no supported triple uses.
func checkComponents(req Request) error {
	components := []struct {
		name    string
		value   string
		allowed []string
	}{
		{name: "arch", value: req.Arch, allowed: release.Arches()},
		{name: "os", value: req.OS, allowed: release.OSes()},
		{name: "abi", value: req.ABI, allowed: release.ABIs()},
	}

	for _, c := range components {
		value := strings.TrimSpace(c.value)
		if value == "" || slices.Contains(c.allowed, value) {
			continue
		}

		return failure.WithDetails(
			failure.Newf(failure.EUnsupportedTarget, "unsupported %s %q, expected one of %s",
				c.name, value, strings.Join(c.allowed, ", ")),
			map[string]string{"component": c.name, "value": value},
		)
	}

	return nil
}

// hostDefaults maps GOOS onto the OS and ABI components.
func hostDefaults(host Host) (string, string) {
	switch host.OS {
	case "linux":
		if host.HasAPK {
			return release.OSLinux, release.ABIMusl
		}

		return release.OSLinux, release.ABIGNU
	case "darwin":
		return release.OSApple, release.ABIDarwin
	case "windows":
		return release.OSWindows, release.ABIGNU
	default:
		return "", ""
	}
}

func hostArch(goarch string) string {
	switch goarch {
	case "amd64":
		return release.ArchX86_64
	case "arm64":
		return release.ArchAarch64
	default:
		return ""
	}
}

func pick(value, fallback string) string {
	if value = strings.TrimSpace(value); value != "" {
		return value
	}

	return fallback
}

// String renders a request for log lines.
func (r Request) String() string {
	if r.Triple != "" {
		return r.Triple
	}

	return fmt.Sprintf("arch=%q os=%q abi=%q", r.Arch, r.OS, r.ABI)
}
