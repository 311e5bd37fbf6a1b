// Package server wires one service binary together: key material, stores,
// snapshot persistence, the gRPC transport, metrics and graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/dmitrijs2005/gophgroups/internal/common"
	"github.com/dmitrijs2005/gophgroups/internal/cryptox"
	"github.com/dmitrijs2005/gophgroups/internal/filex"
	"github.com/dmitrijs2005/gophgroups/internal/logging"
	"github.com/dmitrijs2005/gophgroups/internal/server/auth"
	"github.com/dmitrijs2005/gophgroups/internal/server/channels"
	"github.com/dmitrijs2005/gophgroups/internal/server/config"
	"github.com/dmitrijs2005/gophgroups/internal/server/directory"
	"github.com/dmitrijs2005/gophgroups/internal/server/instrument"
	"github.com/dmitrijs2005/gophgroups/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophgroups/internal/server/services"

	gs "github.com/dmitrijs2005/gophgroups/internal/server/grpc"
)

// ErrBlobBackend reports an unknown message body backend.
var ErrBlobBackend = errors.New("unknown blob backend")

type App struct {
	service config.Service
	config  *config.Config
	logger  logging.Logger
	metrics *instrument.Metrics
	backend *repomanager.Backend
	handler services.Handler

	// saveSnapshot writes the service's store through the backend.
	saveSnapshot func(ctx context.Context) error
	storeName    string
}

// NewApp loads key material and restores the service's store. Any failure
// here is fatal to the binary.
func NewApp(ctx context.Context, s config.Service, c *config.Config) (*App, error) {

	logger := logging.NewJSON(os.Stdout, slog.LevelInfo).With("service", string(s))

	return newApp(ctx, s, c, logger)
}

func newApp(ctx context.Context, s config.Service, c *config.Config, logger logging.Logger) (*App, error) {
	km, created, err := cryptox.LoadOrCreateKeyMaterial(c.KeyDir)
	if err != nil {
		return nil, err
	}
	if created {
		logger.Info(ctx, "Generated key material", "dir", c.KeyDir)
	}

	sealer, err := auth.NewSealer(km.Master)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrKeyMaterial, err)
	}

	backend, err := repomanager.NewBackend(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	app := &App{
		service: s,
		config:  c,
		logger:  logger,
		metrics: instrument.New(),
		backend: backend,
	}

	switch s {
	case config.AuthService:
		err = app.initAuth(ctx, km, sealer)
	case config.MessageService:
		err = app.initMessage(ctx, km, sealer)
	default:
		err = fmt.Errorf("unknown service %q", s)
	}
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	return app, nil
}

// AdminPasswordFile is written to the key directory when the first admin
// password is generated rather than configured.
const AdminPasswordFile = "admin.password"

func (app *App) initAuth(ctx context.Context, km *cryptox.KeyMaterial, sealer *auth.Sealer) error {
	dir := directory.NewStore()

	snap, err := app.backend.LoadDirectory(ctx)
	if err != nil {
		return fmt.Errorf("load directory: %w", err)
	}
	if err := dir.Load(snap); err != nil {
		return fmt.Errorf("load directory: %w", err)
	}

	password := app.config.AdminPassword
	if password == "" && len(snap.Users) == 0 {
		password, err = common.MakeRandHexString(12)
		if err != nil {
			return err
		}
		path := filepath.Join(app.config.KeyDir, AdminPasswordFile)
		if err := filex.WriteFileAtomic(path, []byte(password+"\n"), 0o600); err != nil {
			return fmt.Errorf("write admin password: %w", err)
		}
		app.logger.Warn(ctx, "Generated admin password", "user", app.config.AdminUser, "file", path)
	}
	if password != "" {
		created, err := dir.Bootstrap(app.config.AdminUser, []byte(password))
		if err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
		if created {
			app.logger.Info(ctx, "Bootstrapped admin", "user", app.config.AdminUser, "group", common.AdminGroup)
		}
	}

	if err := cryptox.WritePublicKeyFile(app.config.AuthPublicKeyFile, km.Public()); err != nil {
		return fmt.Errorf("%w: %v", common.ErrKeyMaterial, err)
	}

	app.handler = services.NewAuthService(dir, sealer, km.Private, app.logger, app.metrics)
	app.storeName = "directory"
	app.saveSnapshot = func(ctx context.Context) error {
		return app.backend.SaveDirectory(ctx, dir.Snapshot())
	}
	return nil
}

func (app *App) initMessage(ctx context.Context, km *cryptox.KeyMaterial, sealer *auth.Sealer) error {
	authPub, err := cryptox.ReadPublicKeyFile(app.config.AuthPublicKeyFile)
	if err != nil {
		return fmt.Errorf("%w: auth public key: %v", common.ErrKeyMaterial, err)
	}

	blobs, err := newBlobStore(ctx, app.config)
	if err != nil {
		return err
	}

	store := channels.NewStore(blobs, app.config.MaxMessageBytes)
	snap, err := app.backend.LoadChannels(ctx)
	if err != nil {
		return fmt.Errorf("load channels: %w", err)
	}
	if err := store.Load(snap); err != nil {
		return fmt.Errorf("load channels: %w", err)
	}

	fp, err := cryptox.Fingerprint(km.Public())
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrKeyMaterial, err)
	}
	app.logger.Info(ctx, "Host fingerprint", "fingerprint", fp)

	opts := services.MessageOptions{
		PowBits:           app.config.PowBits,
		StrictHostBinding: app.config.StrictHostBinding,
	}
	app.handler = services.NewMessageService(store, sealer, km.Private, authPub, opts, app.logger, app.metrics)
	app.storeName = "channels"
	app.saveSnapshot = func(ctx context.Context) error {
		return app.backend.SaveChannels(ctx, store.Snapshot())
	}
	return nil
}

func newBlobStore(ctx context.Context, c *config.Config) (channels.BlobStore, error) {
	switch c.BlobBackend {
	case config.BlobMemory:
		return channels.NewMemoryBlobStore(), nil
	case config.BlobFile, "":
		return channels.NewFileBlobStore(c.BlobDir)
	case config.BlobS3:
		return channels.NewS3BlobStore(ctx, channels.S3Options{
			Region:       c.S3Region,
			RootUser:     c.S3RootUser,
			RootPassword: c.S3RootPassword,
			BaseEndpoint: c.S3BaseEndpoint,
			Bucket:       c.S3Bucket,
		})
	default:
		return nil, fmt.Errorf("%w: %q", ErrBlobBackend, c.BlobBackend)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := gs.NewGRPCServer(app.config.EndpointAddr, app.handler, app.logger, app.metrics,
		rate.Limit(app.config.SessionRate), app.config.SessionBurst)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startMetricsServer(ctx context.Context) {
	if err := app.metrics.Serve(ctx, app.config.MetricsAddr, app.logger); err != nil {
		app.logger.Error(ctx, "metrics server failed", "error", err)
	}
}

// autosave writes a snapshot every interval until ctx is done.
func (app *App) autosave(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = app.save(ctx)
		}
	}
}

func (app *App) save(ctx context.Context) error {
	err := app.saveSnapshot(ctx)
	app.metrics.Snapshot(app.storeName, err)
	if err != nil {
		app.logger.Error(ctx, "snapshot failed", "store", app.storeName, "error", err)
		return err
	}
	app.logger.Info(ctx, "snapshot saved", "store", app.storeName, "persistent", app.backend.Persistent())
	return nil
}

// Run serves until ctx is cancelled or a signal arrives, then writes a final
// snapshot and closes the database.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	if app.config.MetricsAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startMetricsServer(ctx)
		}()
	}

	if app.config.AutosaveInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.autosave(ctx, app.config.AutosaveInterval)
		}()
	}

	wg.Wait()

	app.shutdown()
}

func (app *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_ = app.save(ctx)
	if err := app.backend.Close(); err != nil {
		app.logger.Error(ctx, "close database", "error", err)
	}
	app.logger.Info(ctx, "Stopped")
}
