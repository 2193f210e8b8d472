package main

import (
	"fmt"
	"os"
	"time"
)

// logger writes timestamped lines to the serial console, so boot
// failures are visible in the VM's serial log (scenario 6 expects the
// init process's exit line to appear there).
type logger struct {
	console *os.File
}

func newLogger() *logger {
	l := &logger{console: os.Stdout}
	if f, err := os.OpenFile("/dev/ttyS0", os.O_WRONLY, 0); err == nil {
		l.console = f
	} else if f, err := os.OpenFile("/dev/ttyAMA0", os.O_WRONLY, 0); err == nil {
		l.console = f
	}
	return l
}

func (l *logger) info(phase, msg string) {
	l.write(fmt.Sprintf("%s [INFO] [%s] %s\n", time.Now().UTC().Format(time.RFC3339), phase, msg))
}

func (l *logger) warn(phase, msg string, err error) {
	if err != nil {
		l.write(fmt.Sprintf("%s [WARN] [%s] %s: %v\n", time.Now().UTC().Format(time.RFC3339), phase, msg, err))
		return
	}
	l.write(fmt.Sprintf("%s [WARN] [%s] %s\n", time.Now().UTC().Format(time.RFC3339), phase, msg))
}

func (l *logger) write(line string) {
	if l.console != nil {
		l.console.WriteString(line)
	}
}
