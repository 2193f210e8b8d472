package main

import (
	"encoding/json"
	"os"
)

// workloadConfig mirrors the overlay's /.qarax-config.json, written by
// the node agent's image unpack step (§6's guest-visible contract).
type workloadConfig struct {
	Entrypoint []string          `json:"entrypoint"`
	Cmd        []string          `json:"cmd"`
	Env        map[string]string `json:"env"`
}

func readWorkloadConfig(path string) (*workloadConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg workloadConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// argv builds entrypoint++cmd, defaulting to /bin/sh when both are empty.
func (c *workloadConfig) argv() []string {
	argv := append(append([]string{}, c.Entrypoint...), c.Cmd...)
	if len(argv) == 0 {
		return []string{"/bin/sh"}
	}
	return argv
}

// environ builds the process environment from the config's env map.
func (c *workloadConfig) environ() []string {
	env := make([]string, 0, len(c.Env))
	for k, v := range c.Env {
		env = append(env, k+"="+v)
	}
	return env
}
