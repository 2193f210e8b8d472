// Package imagestore pulls OCI images into a content-addressed cache,
// unpacks them to a root filesystem, and manages the virtiofsd daemons
// that expose those root filesystems to running VMs.
package imagestore

// Record is the result of a successful pull-and-unpack, and what
// get-image-status returns for a cached image.
type Record struct {
	ImageRef   string            `json:"image_ref"`
	Digest     string            `json:"digest"`
	RootPath   string            `json:"root_path"`
	Env        map[string]string `json:"env,omitempty"`
	Entrypoint []string          `json:"entrypoint,omitempty"`
	Cmd        []string          `json:"cmd,omitempty"`
}

// storedConfig is the shape persisted at {cache}/{key}/config.json: the
// subset of the OCI image config the guest init binary and the manager
// need, extracted once at pull time.
type storedConfig struct {
	Env        map[string]string `json:"env,omitempty"`
	Entrypoint []string          `json:"entrypoint,omitempty"`
	Cmd        []string          `json:"cmd,omitempty"`
}
