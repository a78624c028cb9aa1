// Package version decides whether a published build identifier is newer
// than the last one observed for a model.
//
// Build identifiers end in a fixed four character window, for example
// G991BXXU5CVLL: the bootloader revision, a year and month pair, and an
// incremental build letter. Both policies read only that window.
package version

// windowLen is the number of trailing characters both policies read.
const windowLen = 4

// FirmwareVersion is the firmware ordering key: the sum of the codes of
// the three characters before the last one, and the code of the last one.
type FirmwareVersion struct {
	Magnitude int
	Minor     int
}

// Less reports whether v orders before w.
func (v FirmwareVersion) Less(w FirmwareVersion) bool {
	if v.Magnitude != w.Magnitude {
		return v.Magnitude < w.Magnitude
	}
	return v.Minor < w.Minor
}

// KernelVersion is the kernel ordering key, the four window characters
// read positionally.
type KernelVersion struct {
	Major int
	Date1 int
	Date2 int
	Minor int
}

// Less reports whether v orders before w, most significant field first.
func (v KernelVersion) Less(w KernelVersion) bool {
	switch {
	case v.Major != w.Major:
		return v.Major < w.Major
	case v.Date1 != w.Date1:
		return v.Date1 < w.Date1
	case v.Date2 != w.Date2:
		return v.Date2 < w.Date2
	default:
		return v.Minor < w.Minor
	}
}

// DecodeFirmware decodes v. ok is false when v is shorter than the window.
//
// Different windows can sum to the same magnitude; such builds compare by
// the last character only.
func DecodeFirmware(v string) (FirmwareVersion, bool) {
	if len(v) < windowLen {
		return FirmwareVersion{}, false
	}
	n := len(v)
	return FirmwareVersion{
		Magnitude: int(v[n-4]) + int(v[n-3]) + int(v[n-2]),
		Minor:     int(v[n-1]),
	}, true
}

// DecodeKernel decodes v. ok is false when v is shorter than the window.
func DecodeKernel(v string) (KernelVersion, bool) {
	if len(v) < windowLen {
		return KernelVersion{}, false
	}
	n := len(v)
	return KernelVersion{
		Major: int(v[n-4]),
		Date1: int(v[n-3]),
		Date2: int(v[n-2]),
		Minor: int(v[n-1]),
	}, true
}

// IsNewerFirmware reports whether candidate should replace marker.
// An empty or malformed marker accepts any candidate; a malformed
// candidate never replaces a valid marker.
func IsNewerFirmware(candidate, marker string) bool {
	old, ok := DecodeFirmware(marker)
	if !ok {
		return true
	}
	cur, ok := DecodeFirmware(candidate)
	if !ok {
		return false
	}
	return old.Less(cur)
}

// IsNewerKernel is IsNewerFirmware for the kernel policy.
func IsNewerKernel(candidate, marker string) bool {
	old, ok := DecodeKernel(marker)
	if !ok {
		return true
	}
	cur, ok := DecodeKernel(candidate)
	if !ok {
		return false
	}
	return old.Less(cur)
}
