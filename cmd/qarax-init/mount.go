package main

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// mountEssentials mounts proc/sysfs/devtmpfs, per §4.4 step 1. Each is
// best-effort: EBUSY (already mounted, e.g. by an outer initrd) is
// ignored, other failures are logged and boot continues.
func mountEssentials(log *logger) {
	essentials := []struct{ source, target, fstype string }{
		{"proc", "/proc", "proc"},
		{"sysfs", "/sys", "sysfs"},
		{"devtmpfs", "/dev", "devtmpfs"},
	}
	for _, m := range essentials {
		if err := os.MkdirAll(m.target, 0755); err != nil {
			log.warn("mount", "mkdir "+m.target+" failed", err)
			continue
		}
		err := unix.Mount(m.source, m.target, m.fstype, 0, "")
		if err != nil && !errors.Is(err, unix.EBUSY) {
			log.warn("mount", "mount "+m.target+" failed", err)
		}
	}
}
