package imagestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// fsDaemon tracks a running shared-fs daemon's child process and socket,
// satisfying §4.2's "live child handle and existing socket file" invariant.
type fsDaemon struct {
	cmd        *exec.Cmd
	socketPath string
	mergedDir  string
}

// StartVirtiofsd implements §4.2's start-virtiofsd. It satisfies
// vmmanager.FsDaemonStarter. vmID/index identify the fs device
// (index 0 is the VM's single/primary fs device); fsID is only the
// daemon's own bookkeeping key (overlay dirs, daemon map), kept
// distinct from the socket path so the latter follows §6's
// "{vm-id}-fs.sock" / "{vm-id}-fs{n}.sock" layout exactly instead of
// doubling the "-fs" suffix.
func (s *Store) StartVirtiofsd(ctx context.Context, vmID string, index int, rootfsPath string) (string, error) {
	fsID := fmt.Sprintf("%s-fs%d", vmID, index)
	upper := filepath.Join(s.paths.RuntimeDir(), fsID, "upper")
	work := filepath.Join(s.paths.RuntimeDir(), fsID, "work")
	merged := filepath.Join(s.paths.RuntimeDir(), fsID, "merged")
	for _, dir := range []string{upper, work, merged} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("imagestore: mkdir %s: %w", dir, err)
		}
	}

	_ = exec.CommandContext(ctx, "/bin/umount", merged).Run()

	opts := fmt.Sprintf("lowerdir=%s,upperdir=%s,workdir=%s", rootfsPath, upper, work)
	mountCmd := exec.CommandContext(ctx, "/bin/mount", "-t", "overlay", "-o", opts, "overlay", merged)
	if out, err := mountCmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("%w: %s: %s", ErrMountFailed, err, out)
	}

	if err := s.injectConfigAndInit(rootfsPath, upper); err != nil {
		return "", fmt.Errorf("imagestore: inject config/init: %w", err)
	}

	socketPath := s.paths.VirtiofsdSocket(vmID, index)
	os.Remove(socketPath)

	cmd := exec.CommandContext(ctx, s.virtiofsdBinary,
		"--socket-path", socketPath,
		"--shared-dir", merged,
		"--cache=auto",
	)
	if err := cmd.Start(); err != nil {
		_ = exec.Command("/bin/umount", merged).Run()
		return "", fmt.Errorf("imagestore: spawn virtiofsd: %w", err)
	}

	if err := waitForSocket(socketPath, 5*time.Second); err != nil {
		_ = cmd.Process.Kill()
		_ = exec.Command("/bin/umount", merged).Run()
		return "", err
	}

	s.mu.Lock()
	s.daemons[fsID] = &fsDaemon{cmd: cmd, socketPath: socketPath, mergedDir: merged}
	s.mu.Unlock()

	return socketPath, nil
}

// injectConfigAndInit writes .qarax-config.json and copies the init
// binary into the overlay's upper directory, per §4.2 step 3, only when
// a cached config.json exists alongside the rootfs.
func (s *Store) injectConfigAndInit(rootfsPath, upper string) error {
	configJSON := filepath.Join(filepath.Dir(rootfsPath), "config.json")
	data, err := os.ReadFile(configJSON)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var sc storedConfig
	if err := json.Unmarshal(data, &sc); err != nil {
		return fmt.Errorf("decode cached config: %w", err)
	}

	guestConfig := struct {
		Entrypoint []string          `json:"entrypoint"`
		Cmd        []string          `json:"cmd"`
		Env        map[string]string `json:"env"`
	}{Entrypoint: sc.Entrypoint, Cmd: sc.Cmd, Env: sc.Env}

	if err := writeJSON(filepath.Join(upper, ".qarax-config.json"), guestConfig); err != nil {
		return fmt.Errorf("write .qarax-config.json: %w", err)
	}

	if s.initBinary == "" {
		return nil
	}
	initData, err := os.ReadFile(s.initBinary)
	if err != nil {
		return fmt.Errorf("read init binary: %w", err)
	}
	if err := os.WriteFile(filepath.Join(upper, ".qarax-init"), initData, 0o755); err != nil {
		return fmt.Errorf("write .qarax-init: %w", err)
	}

	return nil
}

// StopVirtiofsd implements stop-virtiofsd: drop the child handle (killing
// the process) and remove the socket file.
func (s *Store) StopVirtiofsd(fsID string) {
	s.mu.Lock()
	d, ok := s.daemons[fsID]
	delete(s.daemons, fsID)
	s.mu.Unlock()
	if !ok {
		return
	}

	if d.cmd.Process != nil {
		_ = d.cmd.Process.Kill()
		_ = d.cmd.Wait()
	}
	os.Remove(d.socketPath)
}

// CleanupVM implements cleanup-vm. It satisfies vmmanager.FsDaemonStarter.
func (s *Store) CleanupVM(ctx context.Context, vmID string, index int) {
	fsID := fmt.Sprintf("%s-fs%d", vmID, index)
	s.StopVirtiofsd(fsID)

	merged := filepath.Join(s.paths.RuntimeDir(), fsID, "merged")
	_ = exec.CommandContext(ctx, "/bin/umount", merged).Run()

	_ = os.RemoveAll(filepath.Join(s.paths.RuntimeDir(), fsID))
}

func waitForSocket(path string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return ErrSocketTimeout
}
