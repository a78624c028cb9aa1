package fwbot

import (
	"fmt"
	"strings"
)

// MaxChangelogLength is the longest changelog included verbatim.
const MaxChangelogLength = 1024

const changelogTooLarge = "The changelog is too large to display here."

func firmwareMessage(channel string, rec *FirmwareRecord) Message {
	changelog := rec.Changelog
	if len(changelog) > MaxChangelogLength {
		changelog = changelogTooLarge
	}

	var b strings.Builder
	b.WriteString("New firmware update available\n\n")
	fmt.Fprintf(&b, "Device: %s\n", rec.DeviceName)
	fmt.Fprintf(&b, "Model: %s\n", rec.Model)
	fmt.Fprintf(&b, "Region: %s\n", rec.Region)
	fmt.Fprintf(&b, "OS Version: %s\n", rec.OSVersion)
	fmt.Fprintf(&b, "PDA Version: %s\n", rec.BuildVersion)
	fmt.Fprintf(&b, "Release Date: %s\n", rec.BuildDate)
	fmt.Fprintf(&b, "Security Patch Level: %s\n", rec.SecurityPatchDate)
	fmt.Fprintf(&b, "\nChangelog:\n%s\n", changelog)

	msg := Message{Channel: channel, Text: b.String()}
	if rec.DownloadURL != "" {
		msg.Action = &Action{Label: "Download", URL: rec.DownloadURL}
	}
	return msg
}

func kernelMessage(channel, webURL, model string, rec KernelRecord, tag string) Message {
	var b strings.Builder
	b.WriteString("New kernel sources available!\n")
	fmt.Fprintf(&b, "Model: %s\n", model)
	fmt.Fprintf(&b, "PDA Version: %s\n", rec.BuildVersion)
	if rec.IsPatch() {
		fmt.Fprintf(&b, "This is a patch over %s\n", rec.PatchBaseVersion)
	}

	msg := Message{Channel: channel, Text: b.String()}
	if webURL != "" && tag != "" {
		msg.Action = &Action{Label: "Source", URL: strings.TrimSuffix(webURL, "/") + "/tree/" + tag}
	}
	return msg
}
