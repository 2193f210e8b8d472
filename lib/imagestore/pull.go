package imagestore

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/types"
)

// PullAndUnpack implements §4.2's pull-and-unpack: resolve, pull and
// unpack an OCI image into the content-addressed cache, short-circuiting
// on a cache hit.
func (s *Store) PullAndUnpack(ctx context.Context, imageRef string) (*Record, error) {
	rootfs := s.paths.CacheRootfs(imageRef)

	if rec, err := s.cachedRecord(imageRef); err == nil {
		s.log.Debug("image cache hit", "image_ref", imageRef)
		return rec, nil
	}

	if err := os.MkdirAll(rootfs, 0o755); err != nil {
		return nil, fmt.Errorf("imagestore: create rootfs dir: %w", err)
	}

	ref, err := name.ParseReference(imageRef)
	if err != nil {
		return nil, fmt.Errorf("imagestore: parse image ref %q: %w", imageRef, err)
	}

	img, err := remote.Image(ref, remote.WithContext(ctx), remote.WithAuth(authn.Anonymous))
	if err != nil {
		return nil, fmt.Errorf("imagestore: resolve manifest for %q: %w", imageRef, err)
	}

	digest, err := img.Digest()
	if err != nil {
		return nil, fmt.Errorf("imagestore: read digest: %w", err)
	}

	cfgFile, err := img.ConfigFile()
	if err != nil {
		return nil, fmt.Errorf("imagestore: read config: %w", err)
	}
	sc := storedConfig{
		Env:        splitEnv(cfgFile.Config.Env),
		Entrypoint: cfgFile.Config.Entrypoint,
		Cmd:        cfgFile.Config.Cmd,
	}
	if err := writeJSON(s.paths.CacheConfigJSON(imageRef), sc); err != nil {
		return nil, fmt.Errorf("imagestore: persist config.json: %w", err)
	}

	layers, err := img.Layers()
	if err != nil {
		return nil, fmt.Errorf("imagestore: list layers: %w", err)
	}
	for i, layer := range layers {
		mt, err := layer.MediaType()
		if err != nil {
			return nil, fmt.Errorf("imagestore: layer %d media type: %w", i, err)
		}
		if err := unpackLayer(s.log, layer, mt, rootfs); err != nil {
			return nil, fmt.Errorf("imagestore: unpack layer %d: %w", i, err)
		}
	}

	if err := os.WriteFile(s.paths.CacheDigestTxt(imageRef), []byte(digest.String()), 0o644); err != nil {
		return nil, fmt.Errorf("imagestore: persist digest.txt: %w", err)
	}

	s.log.Info("pulled and unpacked image", "image_ref", imageRef, "digest", digest.String())

	return &Record{
		ImageRef:   imageRef,
		Digest:     digest.String(),
		RootPath:   rootfs,
		Env:        sc.Env,
		Entrypoint: sc.Entrypoint,
		Cmd:        sc.Cmd,
	}, nil
}

// unpackLayer dispatches on media type per §4.2 step 6: gzip-then-untar,
// untar directly, or skip with a warning.
func unpackLayer(log *slog.Logger, layer remoteLayer, mt types.MediaType, destDir string) error {
	rc, err := layer.Compressed()
	if err != nil {
		return fmt.Errorf("open layer: %w", err)
	}
	defer rc.Close()

	var r io.Reader
	switch mt {
	case types.OCILayer, types.DockerLayer:
		gzr, err := gzip.NewReader(rc)
		if err != nil {
			return fmt.Errorf("gzip reader: %w", err)
		}
		defer gzr.Close()
		r = gzr
	case types.OCIUncompressedLayer:
		r = rc
	default:
		log.Warn("skipping layer with unrecognized media type", "media_type", string(mt))
		return nil
	}

	return untar(r, destDir)
}

func untar(r io.Reader, destDir string) error {
	tr := tar.NewReader(r)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar header: %w", err)
		}

		cleaned := filepath.Clean(header.Name)
		if filepath.IsAbs(header.Name) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
			return fmt.Errorf("%w: %q", ErrUnsafeArchivePath, header.Name)
		}

		target, err := securejoin.SecureJoin(destDir, header.Name)
		if err != nil {
			return fmt.Errorf("resolve path %q: %w", header.Name, err)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(header.Mode)); err != nil {
				return fmt.Errorf("mkdir %s: %w", header.Name, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("mkdir parent of %s: %w", header.Name, err)
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(header.Mode))
			if err != nil {
				return fmt.Errorf("create %s: %w", header.Name, err)
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return fmt.Errorf("write %s: %w", header.Name, err)
			}
			f.Close()
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("mkdir parent of symlink %s: %w", header.Name, err)
			}
			_ = os.Remove(target)
			if err := os.Symlink(header.Linkname, target); err != nil {
				return fmt.Errorf("symlink %s: %w", header.Name, err)
			}
		default:
			// Devices, fifos, hard links and other special entries are
			// skipped. OCI whiteouts (.wh.*) are regular entries and were
			// already extracted as literal files above; see §9.
			continue
		}
	}
}

// cachedRecord returns a Record from an existing, non-empty cache entry,
// or an error if the entry is absent or incomplete.
func (s *Store) cachedRecord(imageRef string) (*Record, error) {
	entries, err := os.ReadDir(s.paths.CacheRootfs(imageRef))
	if err != nil || len(entries) == 0 {
		return nil, ErrNotCached
	}

	digestBytes, err := os.ReadFile(s.paths.CacheDigestTxt(imageRef))
	if err != nil {
		return nil, ErrNotCached
	}

	var sc storedConfig
	if data, err := os.ReadFile(s.paths.CacheConfigJSON(imageRef)); err == nil {
		_ = json.Unmarshal(data, &sc)
	}

	return &Record{
		ImageRef:   imageRef,
		Digest:     strings.TrimSpace(string(digestBytes)),
		RootPath:   s.paths.CacheRootfs(imageRef),
		Env:        sc.Env,
		Entrypoint: sc.Entrypoint,
		Cmd:        sc.Cmd,
	}, nil
}

// GetImageStatus implements get-image-status: a synchronous cache probe,
// no network I/O.
func (s *Store) GetImageStatus(imageRef string) (*Record, error) {
	return s.cachedRecord(imageRef)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// splitEnv converts the OCI config's "KEY=VALUE" env slice into a map,
// the shape persisted in config.json and consumed by the guest init binary.
func splitEnv(env []string) map[string]string {
	if len(env) == 0 {
		return nil
	}
	out := make(map[string]string, len(env))
	for _, kv := range env {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		out[k] = v
	}
	return out
}

// remoteLayer is the subset of v1.Layer that unpackLayer needs; declared
// locally so the function signature doesn't leak the v1 package import
// into callers that only care about the Store API.
type remoteLayer interface {
	MediaType() (types.MediaType, error)
	Compressed() (io.ReadCloser, error)
}
