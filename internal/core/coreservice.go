package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jo-hoe/designcase/internal/backend/cache"
	"github.com/jo-hoe/designcase/internal/backend/database"
	"github.com/jo-hoe/designcase/internal/backend/metrics"
	"github.com/jo-hoe/designcase/internal/backend/optimizer"
	"github.com/jo-hoe/designcase/internal/backend/storage"
	"github.com/jo-hoe/designcase/internal/backend/telemetry"
	"github.com/jo-hoe/designcase/internal/backend/thumbnail"
	"github.com/jo-hoe/designcase/internal/backend/validation"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/singleflight"
)

// FilesRoutePrefix is where the API serves filesystem storage objects
const FilesRoutePrefix = "/files"

// ImageOptimizer never fails; problems are reported on Result.Degraded
type ImageOptimizer interface {
	Optimize(data []byte, ext string) optimizer.Result
}

// ThumbnailGenerator never fails; problems are reported on Result.Degraded
type ThumbnailGenerator interface {
	Generate(data []byte, raster bool, hasMetadata bool) thumbnail.Result
}

// Dependencies are the long-lived collaborators of the service. Zero-valued optional
// fields get harmless defaults.
type Dependencies struct {
	Database   database.DatabaseService
	Storage    storage.Storage
	Cache      cache.Cache
	Validator  *validation.Validator
	Optimizer  ImageOptimizer
	Thumbnails ThumbnailGenerator
	Observer   metrics.Observer
	Tracer     trace.Tracer
	Now        func() time.Time
	NewID      func() string
}

type CoreService struct {
	config          *ServiceConfig
	databaseService database.DatabaseService
	storage         storage.Storage
	cache           cache.Cache
	validator       *validation.Validator
	optimizer       ImageOptimizer
	thumbnails      ThumbnailGenerator
	observer        metrics.Observer
	tracer          trace.Tracer
	now             func() time.Time
	newID           func() string
	signGroup       singleflight.Group
	closers         []func(context.Context) error
}

func NewCoreService(config *ServiceConfig, deps Dependencies) *CoreService {
	s := &CoreService{
		config:          config,
		databaseService: deps.Database,
		storage:         deps.Storage,
		cache:           deps.Cache,
		validator:       deps.Validator,
		optimizer:       deps.Optimizer,
		thumbnails:      deps.Thumbnails,
		observer:        deps.Observer,
		tracer:          deps.Tracer,
		now:             deps.Now,
		newID:           deps.NewID,
	}
	if s.cache == nil {
		s.cache = cache.NoopCache{}
	}
	if s.validator == nil {
		s.validator = validation.NewValidator(config.MaxUploadBytes)
	}
	if s.optimizer == nil {
		s.optimizer = optimizer.NewOptimizer(optimizer.DefaultSettings())
	}
	if s.thumbnails == nil {
		if generator, err := thumbnail.NewGenerator(nil); err == nil {
			s.thumbnails = generator
		}
	}
	if s.observer == nil {
		s.observer = metrics.NopObserver{}
	}
	if s.tracer == nil {
		s.tracer = noop.NewTracerProvider().Tracer("designcase")
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// NewCoreServiceFromConfig builds every collaborator named in config
func NewCoreServiceFromConfig(ctx context.Context, config *ServiceConfig, registerer prometheus.Registerer) (*CoreService, error) {
	var closers []func(context.Context) error
	fail := func(err error) (*CoreService, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i](ctx)
		}
		return nil, err
	}

	databaseService, err := database.NewDatabase(ctx, config.Database.Type, config.Database.ConnectionString)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize database: %w", err))
	}
	closers = append(closers, func(context.Context) error { return databaseService.Close() })
	slog.Info("database initialized successfully", "type", config.Database.Type)

	store, err := storage.NewStorage(ctx, storage.Options{
		Type:          config.Storage.Type,
		Bucket:        config.Storage.Bucket,
		Endpoint:      config.Storage.Endpoint,
		Region:        config.Storage.Region,
		AccessKey:     config.Storage.AccessKey,
		SecretKey:     config.Storage.SecretKey,
		UseSSL:        config.Storage.UseSSL,
		UsePathStyle:  config.Storage.UsePathStyle,
		PublicBaseURL: config.Storage.PublicBaseURL,
		BaseDir:       config.Storage.BaseDir,
		SigningKey:    config.Storage.SigningKey,
	})
	if err != nil {
		return fail(fmt.Errorf("failed to initialize storage: %w", err))
	}
	slog.Info("storage initialized successfully", "type", config.Storage.Type)

	signedURLCache, err := cache.NewCache(cache.Options{
		Type:     config.Cache.Type,
		Address:  config.Cache.Address,
		Password: config.Cache.Password,
		DB:       config.Cache.DB,
		Size:     config.Cache.Size,
	})
	if err != nil {
		return fail(fmt.Errorf("failed to initialize cache: %w", err))
	}
	closers = append(closers, func(context.Context) error { return signedURLCache.Close() })

	pngCompression, err := optimizer.ParsePNGCompression(config.Optimizer.PNGCompression)
	if err != nil {
		return fail(err)
	}
	imageOptimizer := optimizer.NewOptimizer(optimizer.Settings{
		PNGCompression: pngCompression,
		JPEGQuality:    config.Optimizer.JPEGQuality,
		WebPQuality:    config.Optimizer.WebPQuality,
		MaxPixels:      config.Optimizer.MaxPixels,
	})

	thumbnails, err := thumbnail.NewGenerator(config.Thumbnail.Commands)
	if err != nil {
		return fail(err)
	}
	thumbnails.WithMaxPixels(config.Optimizer.MaxPixels)
	slog.Info("thumbnail commands configured", "commands", thumbnails.Commands())

	var observer metrics.Observer = metrics.NopObserver{}
	if registerer != nil {
		promObserver, err := metrics.NewPrometheusObserver("designcase", registerer)
		if err != nil {
			return fail(err)
		}
		observer = promObserver
	}

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		OTLPEndpoint: config.Telemetry.OTLPEndpoint,
		ServiceName:  config.Telemetry.ServiceName,
		Insecure:     config.Telemetry.Insecure,
		SampleRate:   config.Telemetry.SampleRate,
	})
	if err != nil {
		return fail(fmt.Errorf("failed to initialize tracing: %w", err))
	}
	closers = append(closers, tracerProvider.Shutdown)

	service := NewCoreService(config, Dependencies{
		Database:   databaseService,
		Storage:    store,
		Cache:      signedURLCache,
		Validator:  validation.NewValidator(config.MaxUploadBytes),
		Optimizer:  imageOptimizer,
		Thumbnails: thumbnails,
		Observer:   observer,
		Tracer:     tracerProvider.Tracer(),
	})
	service.closers = closers
	return service, nil
}

func (service *CoreService) Config() *ServiceConfig {
	return service.config
}

func (service *CoreService) Storage() storage.Storage {
	return service.storage
}

// Ping checks the database
func (service *CoreService) Ping(ctx context.Context) error {
	return service.databaseService.Ping(ctx)
}

// Close releases collaborators in reverse construction order
func (service *CoreService) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	for i := len(service.closers) - 1; i >= 0; i-- {
		if err := service.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	service.closers = nil
	return errors.Join(errs...)
}
