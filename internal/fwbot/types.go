package fwbot

import (
	"errors"
	"fmt"
	"strings"
)

// Model identifies a tracked device. Firmware and kernel sources are
// published under the same identifier for most devices; a few vendors
// use a different identifier for the kernel, written "fw:kernel".
type Model struct {
	Firmware string
	Kernel   string
}

// ParseModel parses "SM-G991B" or "SM-G991B:SM-G991N".
func ParseModel(s string) (Model, error) {
	s = strings.TrimSpace(s)
	fw, kernel, paired := strings.Cut(s, ":")
	fw = strings.TrimSpace(fw)
	kernel = strings.TrimSpace(kernel)
	if fw == "" {
		return Model{}, fmt.Errorf("empty model identifier in %q", s)
	}
	if paired && kernel == "" {
		return Model{}, fmt.Errorf("empty kernel model identifier in %q", s)
	}
	return Model{Firmware: fw, Kernel: kernel}, nil
}

// KernelModel returns the identifier used for kernel lookups and mirror branches.
func (m Model) KernelModel() string {
	if m.Kernel != "" {
		return m.Kernel
	}
	return m.Firmware
}

func (m Model) String() string {
	if m.Kernel == "" || m.Kernel == m.Firmware {
		return m.Firmware
	}
	return m.Firmware + ":" + m.Kernel
}

// FirmwareRecord describes the latest firmware for a model in one region.
// Only BuildVersion is persisted.
type FirmwareRecord struct {
	Model             string `json:"model"`
	Region            string `json:"region"`
	DeviceName        string `json:"device_name"`
	OSVersion         string `json:"os_version"`
	BuildVersion      string `json:"build_version"`
	BuildDate         string `json:"build_date"`
	SecurityPatchDate string `json:"security_patch_date"`
	Changelog         string `json:"changelog"`
	DownloadURL       string `json:"download_url"`
}

// KernelRecord describes the latest kernel source release for a model.
// PatchBaseVersion is empty for full source drops.
type KernelRecord struct {
	Model            string `json:"model"`
	BuildVersion     string `json:"build_version"`
	UploadID         string `json:"upload_id"`
	PatchBaseVersion string `json:"patch_base_version,omitempty"`
}

// IsPatch reports whether the release only contains the kernel subtree
// layered over an earlier release.
func (r KernelRecord) IsPatch() bool { return r.PatchBaseVersion != "" }

// Action is a single link button attached to a notification.
type Action struct {
	Label string
	URL   string
}

// Message is one outbound notification.
type Message struct {
	Channel string
	Text    string
	Action  *Action
}

// ErrNoArtifact is returned when a fetcher completes without producing a file.
var ErrNoArtifact = errors.New("download produced no artifact")
