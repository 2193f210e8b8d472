package main

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// bringUpLoopback sets IFF_UP on lo via raw ioctls on a datagram socket,
// per §4.4 step 2: read the interface's current flags, OR in IFF_UP,
// write them back. No shell tools or netlink socket required, so the
// static binary works inside scratch images.
func bringUpLoopback() error {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return fmt.Errorf("open control socket: %w", err)
	}
	defer unix.Close(fd)

	req, err := unix.NewIfreq("lo")
	if err != nil {
		return fmt.Errorf("build ifreq: %w", err)
	}
	if err := unix.IoctlIfreq(fd, unix.SIOCGIFFLAGS, req); err != nil {
		return fmt.Errorf("get flags: %w", err)
	}

	flags := req.Uint16()
	flags |= unix.IFF_UP
	req.SetUint16(flags)

	if err := unix.IoctlIfreq(fd, unix.SIOCSIFFLAGS, req); err != nil {
		return fmt.Errorf("set flags: %w", err)
	}
	return nil
}
