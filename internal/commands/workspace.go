package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"racksum/internal/catalog"
	"racksum/internal/models"
	"racksum/internal/rack"
	"racksum/internal/remote"
	"racksum/internal/storage"
	"racksum/internal/syncer"
)

// workspace is one open local configuration with its syncer
type workspace struct {
	db     *storage.LevelDB
	store  *rack.Store
	sync   *syncer.Syncer
	remote *remote.Client // nil without --remote
}

func (a *app) openWorkspace() (*workspace, error) {
	db, err := storage.OpenLevelDB(a.cfg.Workspace.Path)
	if err != nil {
		return nil, err
	}

	ws := &workspace{db: db, store: rack.New()}
	opts := []syncer.Option{
		syncer.WithDebounce(a.cfg.Sync.Debounce),
		syncer.WithTimeout(a.cfg.Remote.Timeout),
	}
	if a.cfg.Remote.URL != "" {
		ws.remote = remote.New(a.cfg.Remote.URL, a.cfg.Remote.Timeout)
		opts = append(opts, syncer.WithRemote(ws.remote))
	}
	ws.sync = syncer.New(ws.store, db, opts...)
	ws.sync.Restore()
	ws.sync.Start()
	return ws, nil
}

// close sends a pending remote write before releasing local storage
func (ws *workspace) close(ctx context.Context) error {
	if err := ws.sync.Flush(ctx); err != nil {
		log.Warn().Err(err).Msg("remote save failed, local copy is current")
	}
	ws.sync.Close()
	return ws.db.Close()
}

// withWorkspace runs fn against the workspace and always closes it
func (a *app) withWorkspace(cmd *cobra.Command, fn func(ws *workspace) error) (err error) {
	ws, err := a.openWorkspace()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := ws.close(cmd.Context()); err == nil {
			err = cerr
		}
	}()
	return fn(ws)
}

// requireRemote fails unless a racksum server is configured
func (ws *workspace) requireRemote() (*remote.Client, error) {
	if ws.remote == nil {
		return nil, fmt.Errorf("no racksum server configured, set --remote or RACKSUM_REMOTE_URL")
	}
	return ws.remote, nil
}

// catalog returns the device catalog with locally authored categories merged in.
// Without a catalog file the server's catalog is used when one is configured.
func (a *app) catalog(ctx context.Context, ws *workspace) (*catalog.Catalog, error) {
	base, err := catalog.Load(a.cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}
	if a.cfg.Catalog.Path == "" && ws.remote != nil {
		served, err := ws.remote.Catalog(ctx)
		if err != nil {
			log.Warn().Err(err).Str("remote", ws.remote.BaseURL()).Msg("server catalog unavailable")
		} else {
			base = served
		}
	}
	return catalog.Merge(base, ws.sync.CustomCategories()), nil
}

// resolveRack finds a rack by id, name or 1-based index
func resolveRack(store *rack.Store, ref string) (models.Rack, error) {
	racks := store.Racks()
	for _, r := range racks {
		if r.ID == ref {
			return r, nil
		}
	}
	for _, r := range racks {
		if strings.EqualFold(r.Name, ref) {
			return r, nil
		}
	}
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(racks) {
		return racks[n-1], nil
	}
	return models.Rack{}, fmt.Errorf("%w: %s", rack.ErrRackNotFound, ref)
}
