package imagestore

import (
	"log/slog"
	"sync"

	"github.com/qarax-project/qarax/lib/paths"
)

// Store is the image store and root-filesystem injector described in
// §4.2: it owns the content-addressed image cache and the process map
// of running shared-fs daemons. A *Store satisfies
// vmmanager.FsDaemonStarter.
type Store struct {
	paths           *paths.Paths
	virtiofsdBinary string
	initBinary      string

	mu      sync.Mutex
	daemons map[string]*fsDaemon

	log *slog.Logger
}

// New creates a Store. initBinary may be empty, in which case
// start-virtiofsd injects .qarax-config.json but skips copying
// .qarax-init (used for non-OCI-booted VMs that supply their own kernel).
func New(p *paths.Paths, virtiofsdBinary, initBinary string, log *slog.Logger) *Store {
	return &Store{
		paths:           p,
		virtiofsdBinary: virtiofsdBinary,
		initBinary:      initBinary,
		daemons:         make(map[string]*fsDaemon),
		log:             log,
	}
}
