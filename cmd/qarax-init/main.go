// Command qarax-init is the static binary installed at /.qarax-init
// inside every OCI-booted guest. It runs as PID 1: it brings up the
// minimum the workload needs (pseudo-filesystems, loopback), then
// forks and execs the workload, reaping every child as a proper init
// must, and propagating the workload's exit status to the hypervisor
// via its own exit code. Per §4.4, every step before the fork is
// best-effort — a guest that can't mount /sys still deserves a chance
// to run its workload.
package main

import (
	"os"
	"os/exec"

	"golang.org/x/sys/unix"
)

const configPath = "/.qarax-config.json"

func main() {
	log := newLogger()
	log.info("boot", "qarax-init starting")

	mountEssentials(log)

	if err := bringUpLoopback(); err != nil {
		log.warn("network", "bring up loopback failed", err)
	}

	cfg, err := readWorkloadConfig(configPath)
	if err != nil {
		log.warn("config", "failed to read "+configPath+", defaulting to /bin/sh", err)
		cfg = &workloadConfig{}
	}

	argv := cfg.argv()
	log.info("exec", "launching workload")

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = cfg.environ()

	if err := cmd.Start(); err != nil {
		log.warn("exec", "failed to start workload", err)
		os.Exit(1)
	}
	childPID := cmd.Process.Pid

	reapLoop(log, childPID)
}

// reapLoop is PID 1's defining responsibility: wait for any child
// (reaping every zombie, not just the tracked workload, since nothing
// else in the guest is positioned to do it), and once the tracked
// child exits, propagate its status and stop.
func reapLoop(log *logger, childPID int) {
	for {
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-1, &ws, 0, nil)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			if err == unix.ECHILD {
				log.info("reap", "no more children, exiting")
				os.Exit(0)
			}
			log.warn("reap", "wait4 failed", err)
			os.Exit(1)
		}
		if pid != childPID {
			continue
		}
		switch {
		case ws.Exited():
			log.info("reap", "workload exited")
			os.Exit(ws.ExitStatus())
		case ws.Signaled():
			log.info("reap", "workload killed by signal")
			os.Exit(128 + int(ws.Signal()))
		default:
			os.Exit(1)
		}
	}
}
