package vmmanager

import (
	"encoding/json"
	"os"
)

// persistConfig writes a VM's config to its recovery file. The stored
// format is JSON, not the hypervisor's own wire encoding and not a true
// protobuf byte stream (see DESIGN.md for why): it round-trips through
// loadConfig on recover-vms.
func persistConfig(path string, config VMConfig) error {
	b, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func loadConfig(path string) (VMConfig, error) {
	var config VMConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return config, err
	}
	if err := json.Unmarshal(b, &config); err != nil {
		return config, err
	}
	return config, nil
}
