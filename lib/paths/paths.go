// Package paths provides centralized path construction for the node agent's
// runtime directory and OCI image cache.
//
// Runtime directory layout (per §6):
//
//	{runtimeDir}/
//	  {vm-id}.sock          control socket
//	  {vm-id}.log           hypervisor stdout+stderr
//	  {vm-id}.json          persisted VM config (recovery)
//	  {vm-id}.console.log   serial console output (file-mode serial only)
//	  {vm-id}-fs.sock       shared-fs daemon socket (single fs device)
//	  {vm-id}-fs{n}.sock    shared-fs daemon socket (fs device index n)
//	  {vm-id}-fs{n}/
//	    upper/ work/ merged/  overlay directories of fs device n (lib/imagestore)
//
// Image cache layout:
//
//	{cacheDir}/{key}/rootfs/
//	{cacheDir}/{key}/config.json
//	{cacheDir}/{key}/digest.txt
package paths

import (
	"path/filepath"
	"regexp"
	"strconv"
)

// Paths provides typed path construction for the node agent.
type Paths struct {
	runtimeDir string
	cacheDir   string
}

// New creates a Paths for the given runtime directory and image cache directory.
func New(runtimeDir, cacheDir string) *Paths {
	return &Paths{runtimeDir: runtimeDir, cacheDir: cacheDir}
}

// RuntimeDir returns the node agent's runtime directory.
func (p *Paths) RuntimeDir() string { return p.runtimeDir }

// CacheDir returns the image cache directory.
func (p *Paths) CacheDir() string { return p.cacheDir }

// VMSocket returns the hypervisor control-socket path for a VM.
func (p *Paths) VMSocket(vmID string) string {
	return filepath.Join(p.runtimeDir, vmID+".sock")
}

// VMLog returns the hypervisor stdout+stderr log path for a VM.
func (p *Paths) VMLog(vmID string) string {
	return filepath.Join(p.runtimeDir, vmID+".log")
}

// VMConfig returns the persisted config path for a VM.
func (p *Paths) VMConfig(vmID string) string {
	return filepath.Join(p.runtimeDir, vmID+".json")
}

// VMConsoleLog returns the file-mode serial console output path for a VM.
func (p *Paths) VMConsoleLog(vmID string) string {
	return filepath.Join(p.runtimeDir, vmID+".console.log")
}

// VirtiofsdSocket returns the shared-fs daemon socket path for a VM's fs device.
// index 0 maps to "{vm-id}-fs.sock"; any other index to "{vm-id}-fs{index}.sock".
func (p *Paths) VirtiofsdSocket(vmID string, index int) string {
	if index == 0 {
		return filepath.Join(p.runtimeDir, vmID+"-fs.sock")
	}
	return filepath.Join(p.runtimeDir, vmID+"-fs"+strconv.Itoa(index)+".sock")
}

// VMDir returns {runtimeDir}/{vm-id}. lib/imagestore does not use VMDir or
// the Overlay* helpers below: its overlay directories are
// {runtimeDir}/{vm-id}-fs{n}/{upper,work,merged}, one set per fs device.
func (p *Paths) VMDir(vmID string) string {
	return filepath.Join(p.runtimeDir, vmID)
}

// OverlayUpper returns the overlay upper directory for a VM.
func (p *Paths) OverlayUpper(vmID string) string {
	return filepath.Join(p.VMDir(vmID), "upper")
}

// OverlayWork returns the overlay work directory for a VM.
func (p *Paths) OverlayWork(vmID string) string {
	return filepath.Join(p.VMDir(vmID), "work")
}

// OverlayMerged returns the overlay merged (mount target) directory for a VM.
func (p *Paths) OverlayMerged(vmID string) string {
	return filepath.Join(p.VMDir(vmID), "merged")
}

var unsafeCacheKeyChars = regexp.MustCompile(`[/:@]`)

// CacheKey computes the path-safe cache key for an image reference by
// replacing '/', ':', '@' with '_'.
func CacheKey(imageRef string) string {
	return unsafeCacheKeyChars.ReplaceAllString(imageRef, "_")
}

// CacheEntryDir returns the cache directory for an image reference.
func (p *Paths) CacheEntryDir(imageRef string) string {
	return filepath.Join(p.cacheDir, CacheKey(imageRef))
}

// CacheRootfs returns the unpacked rootfs directory for an image reference.
func (p *Paths) CacheRootfs(imageRef string) string {
	return filepath.Join(p.CacheEntryDir(imageRef), "rootfs")
}

// CacheConfigJSON returns the cached OCI image config path.
func (p *Paths) CacheConfigJSON(imageRef string) string {
	return filepath.Join(p.CacheEntryDir(imageRef), "config.json")
}

// CacheDigestTxt returns the cached digest marker file path.
func (p *Paths) CacheDigestTxt(imageRef string) string {
	return filepath.Join(p.CacheEntryDir(imageRef), "digest.txt")
}
