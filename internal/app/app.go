package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"

	"golang.org/x/sync/errgroup"

	"fwbot-go/internal/archive"
	"fwbot-go/internal/config"
	"fwbot-go/internal/database"
	"fwbot-go/internal/fwbot"
	"fwbot-go/internal/markers"
	"fwbot-go/internal/mirror"
	"fwbot-go/internal/notify"
	"fwbot-go/internal/provider"
	"fwbot-go/internal/secrets"
	"fwbot-go/internal/staging"
	"fwbot-go/internal/vault"
)

// Options tunes how the app is wired. Zero values use the process
// environment and stderr.
type Options struct {
	Verbose   bool
	Stderr    io.Writer
	LookupEnv func(string) (string, bool)
	Clock     fwbot.Clock
}

// FWBotApp is the application layer between the CLI and the orchestrator.
// It constructs all dependencies from config, exposes the catalog, marker
// and history operations of the CLI, and manages the DB lifecycle on Close.
type FWBotApp struct {
	cfg     *config.Config
	db      *database.SQLiteDatabase
	markers *markers.Stores
	vault   vault.Vault
	creds   *secrets.Credentials
	logger  fwbot.Logger
	clock   fwbot.Clock
	session *Session
	logFile *os.File
}

// CatalogEntry is a tracked model with its firmware regions.
type CatalogEntry struct {
	Model   fwbot.Model
	Regions []string
}

// NewFWBotApp creates the app for one CLI command. Components that talk to
// remote services are only built by Run. The caller must call Close when done.
func NewFWBotApp(ctx context.Context, cfg *config.Config, command string, opts Options) (*FWBotApp, error) {
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.LookupEnv == nil {
		opts.LookupEnv = os.LookupEnv
	}
	if opts.Clock == nil {
		opts.Clock = fwbot.RealClock{}
	}

	session := NewSession(command, opts.Clock.Now())
	logger, logFile, err := newLogger(cfg.LogDir, session.ID, opts.Stderr, opts.Verbose)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	a := &FWBotApp{
		cfg:     cfg,
		logger:  &slogAdapter{l: logger.With("command", command)},
		clock:   opts.Clock,
		session: session,
		logFile: logFile,
	}
	if err := a.open(ctx, opts.LookupEnv); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *FWBotApp) open(ctx context.Context, lookupEnv func(string) (string, bool)) error {
	creds, err := secrets.Resolve(a.cfg.Secrets, lookupEnv)
	if err != nil {
		return fmt.Errorf("resolving secrets: %w", err)
	}
	a.creds = creds

	db, err := database.NewDatabaseFromConfig(a.cfg.Database)
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	a.db = db
	if err := db.CheckMigrations(); err != nil {
		return fmt.Errorf("database schema out of date: %w", err)
	}

	stores, err := markers.NewStoresFromConfig(a.cfg.Markers, db, creds.RedisPassword)
	if err != nil {
		return fmt.Errorf("creating marker stores: %w", err)
	}
	a.markers = stores

	v, err := vault.NewVaultFromConfig(ctx, a.cfg.Vault, creds.S3AccessKey, creds.S3SecretKey)
	if err != nil {
		return fmt.Errorf("creating vault: %w", err)
	}
	a.vault = v
	return nil
}

// Run wires the remote-facing components and runs the orchestrator next to
// the notification dispatcher until ctx is canceled, or for one cycle when
// oneshot is set.
func (a *FWBotApp) Run(ctx context.Context, oneshot bool) error {
	a.session.MarkMutated()

	if a.vault != nil {
		if err := a.vault.ValidateSetup(ctx); err != nil {
			return fmt.Errorf("validating vault: %w", err)
		}
	}

	client, err := provider.NewClient(a.cfg.Provider.BaseURL, a.cfg.Provider.UserAgent)
	if err != nil {
		return fmt.Errorf("creating provider client: %w", err)
	}

	publisher, err := mirror.NewPublisher(mirror.Options{
		RemoteURL:   a.cfg.Mirror.RemoteURL,
		Account:     a.cfg.Mirror.Account,
		Token:       a.creds.GitToken,
		AuthorName:  a.cfg.Mirror.AuthorName,
		AuthorEmail: a.cfg.Mirror.AuthorEmail,
		KernelDir:   a.cfg.Mirror.KernelDir,
	}, a.logger, a.clock)
	if err != nil {
		return fmt.Errorf("creating mirror publisher: %w", err)
	}

	workspace, err := staging.NewWorkspace(a.cfg.WorkDir, a.cfg.Mirror.Prefix)
	if err != nil {
		return fmt.Errorf("creating staging workspace: %w", err)
	}

	sink, err := a.newSink()
	if err != nil {
		return err
	}
	dispatcher := notify.NewDispatcher(sink, notify.Options{
		MaxAttempts:  a.cfg.Notify.MaxAttempts,
		RetryDelay:   a.cfg.Notify.RetryDelay.Duration,
		IdleDelay:    a.cfg.Notify.IdleDelay.Duration,
		SendInterval: a.cfg.Notify.SendInterval.Duration,
	}, a.logger)

	deps := fwbot.Deps{
		Catalog:         a.db,
		Firmware:        client,
		Kernel:          client,
		Fetcher:         client,
		Extractor:       archive.NewExtractor(a.logger),
		Publisher:       publisher,
		Workspace:       workspace,
		FirmwareMarkers: a.markers.Firmware,
		KernelMarkers:   a.markers.Kernel,
		Notifier:        dispatcher,
		Throttle:        fwbot.NewRateThrottle(a.cfg.Poll.RequestSpacing.Duration),
		History:         a.db,
		Logger:          a.logger,
		Clock:           a.clock,
	}
	if d, ok := sink.(fwbot.DescriptionSetter); ok {
		deps.Describer = d
	}
	if a.vault != nil {
		deps.Vault = a.vault
	}

	orch, err := fwbot.NewOrchestrator(fwbot.Options{
		Interval:        a.cfg.Poll.Interval.Duration,
		FirmwareWorkers: a.cfg.Poll.FirmwareWorkers,
		KernelWorkers:   a.cfg.Poll.KernelWorkers,
		DownloadWorkers: a.cfg.Poll.DownloadWorkers,
		RequestTimeout:  a.cfg.Poll.RequestTimeout.Duration,
		DownloadTimeout: a.cfg.Poll.DownloadTimeout.Duration,
		FirmwareChannel: a.cfg.Notify.FirmwareChannel,
		KernelChannel:   a.cfg.Notify.KernelChannel,
		MirrorWebURL:    a.cfg.Mirror.WebURL,
	}, deps)
	if err != nil {
		return fmt.Errorf("creating orchestrator: %w", err)
	}

	a.logger.Info("starting", "oneshot", oneshot, "notify", a.cfg.Notify.Type, "markers", a.cfg.Markers.Type)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error { return orch.Run(gctx, oneshot) })

	err = g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		a.logger.Info("stopped", "pending_notifications", dispatcher.Pending())
		return nil
	}
	return err
}

func (a *FWBotApp) newSink() (fwbot.Sink, error) {
	switch a.cfg.Notify.Type {
	case "", "log":
		return notify.NewLogSink(a.logger), nil
	case "telegram":
		s, err := notify.NewTelegramSink(a.creds.TelegramToken, a.cfg.Notify.APIEndpoint)
		if err != nil {
			return nil, fmt.Errorf("creating telegram sink: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown notify type: %s", a.cfg.Notify.Type)
	}
}

// AddModel parses spec ("fw" or "fw:kernel") and tracks it in regions.
func (a *FWBotApp) AddModel(ctx context.Context, spec string, regions []string) (fwbot.Model, error) {
	m, err := fwbot.ParseModel(spec)
	if err != nil {
		return fwbot.Model{}, err
	}
	if len(regions) == 0 {
		return fwbot.Model{}, fmt.Errorf("at least one region is required for %s", m.Firmware)
	}
	a.session.MarkMutated()
	if err := a.db.AddModel(ctx, m, regions); err != nil {
		return fwbot.Model{}, err
	}
	a.logger.Info("model added", "model", m.String(), "regions", regions)
	return m, nil
}

// RemoveModel stops tracking model. It reports whether the model existed.
func (a *FWBotApp) RemoveModel(ctx context.Context, model string) (bool, error) {
	a.session.MarkMutated()
	removed, err := a.db.RemoveModel(ctx, model)
	if err != nil {
		return false, err
	}
	if removed {
		a.logger.Info("model removed", "model", model)
	}
	return removed, nil
}

// Catalog returns every tracked model with its regions.
func (a *FWBotApp) Catalog(ctx context.Context) ([]CatalogEntry, error) {
	models, err := a.db.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]CatalogEntry, 0, len(models))
	for _, m := range models {
		regions, err := a.db.RegionsFor(ctx, m.Firmware)
		if err != nil {
			return nil, err
		}
		entries = append(entries, CatalogEntry{Model: m, Regions: regions})
	}
	return entries, nil
}

func (a *FWBotApp) markerStore(kind string) (markers.Store, error) {
	switch kind {
	case fwbot.MarkerFirmware:
		return a.markers.Firmware, nil
	case fwbot.MarkerKernel:
		return a.markers.Kernel, nil
	default:
		return nil, fmt.Errorf("unknown marker kind %q (want %s or %s)", kind, fwbot.MarkerFirmware, fwbot.MarkerKernel)
	}
}

// Markers returns every stored marker of kind.
func (a *FWBotApp) Markers(ctx context.Context, kind string) (map[string]string, error) {
	store, err := a.markerStore(kind)
	if err != nil {
		return nil, err
	}
	return store.All(ctx)
}

// SetMarker overwrites a marker. An empty version makes the next cycle
// treat any published release as new.
func (a *FWBotApp) SetMarker(ctx context.Context, kind, model, version string) error {
	store, err := a.markerStore(kind)
	if err != nil {
		return err
	}
	a.session.MarkMutated()
	if err := store.Set(ctx, model, version); err != nil {
		return err
	}
	a.logger.Info("marker set", "kind", kind, "model", model, "version", version)
	return nil
}

// History returns the most recent cycles, newest first.
func (a *FWBotApp) History(ctx context.Context, limit int) ([]*fwbot.Cycle, error) {
	return a.db.ListCycles(ctx, limit)
}

// Releases returns the most recent kernel imports of model, newest first.
func (a *FWBotApp) Releases(ctx context.Context, model string, limit int) ([]*fwbot.Release, error) {
	return a.db.ListReleases(ctx, model, limit)
}

// StateKey is the vault key of the database snapshot taken after session.
func StateKey(instanceID, sessionID string) string {
	if instanceID == "" {
		instanceID = "default"
	}
	return path.Join("state", instanceID, sessionID+".db")
}

// Close releases every resource. For sessions that changed the database a
// snapshot is uploaded to the vault first, when one is configured.
func (a *FWBotApp) Close() error {
	var errs []error

	if a.db != nil && a.vault != nil && a.session.Mutated() {
		if err := a.uploadSnapshot(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.markers != nil {
		if err := a.markers.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing marker stores: %w", err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing database: %w", err))
		}
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return errors.Join(errs...)
}

// uploadSnapshot copies the database to a temp file and archives it.
func (a *FWBotApp) uploadSnapshot() error {
	tmpFile, err := os.CreateTemp("", "fwbot-db-snapshot-*.db")
	if err != nil {
		return fmt.Errorf("creating temp file for db snapshot: %w", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	// VACUUM INTO refuses to overwrite an existing file.
	os.Remove(tmpPath)
	defer os.Remove(tmpPath)

	if err := a.db.BackupTo(tmpPath); err != nil {
		return err
	}

	f, err := os.Open(tmpPath)
	if err != nil {
		return fmt.Errorf("opening db snapshot for upload: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat db snapshot: %w", err)
	}

	key := StateKey(a.cfg.InstanceID, a.session.ID)
	if err := a.vault.PutArtifact(context.Background(), key, f, info.Size()); err != nil {
		return fmt.Errorf("uploading db snapshot to vault: %w", err)
	}
	a.logger.Debug("database snapshot archived", "key", key, "size", info.Size())
	return nil
}
