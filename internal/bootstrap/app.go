package bootstrap

import (
	"context"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"lumina-research/internal/ai"
	"lumina-research/internal/app"
	"lumina-research/internal/autosave"
	"lumina-research/internal/cache"
	"lumina-research/internal/config"
	"lumina-research/internal/enrich"
	"lumina-research/internal/library"
	"lumina-research/internal/model"
	mysqlClient "lumina-research/internal/platform/mysql"
	rabbitmqClient "lumina-research/internal/platform/rabbitmq"
	redisClient "lumina-research/internal/platform/redis"
	"lumina-research/internal/repository"
	"lumina-research/internal/schedule"
	"lumina-research/internal/synthesis"
	"lumina-research/internal/worker"
)

type App struct {
	Config        *config.Config
	MySQL         *gorm.DB
	Redis         *redis.Client
	MQConn        *amqp.Connection
	PersistWorker *worker.LibraryPersistWorker

	Store     *library.Store
	Generator ai.Generator
	Tasks     *schedule.Tasks
	Trigger   *synthesis.Trigger
	Workspace *app.WorkspaceService
	Research  *app.ResearchService
	Auth      *app.AuthService

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	a := &App{Config: cfg, StartedAt: time.Now()}
	if err := a.init(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config

	seeds := make([]model.Folder, 0, len(cfg.Library.Folders))
	for _, f := range cfg.Library.Folders {
		seeds = append(seeds, model.Folder{ID: f.ID, Name: f.Name})
	}
	a.Store = library.NewStore(seeds)

	if cfg.Library.Persist {
		if err := a.initPersistence(ctx); err != nil {
			return err
		}
	}

	var blobs cache.BlobStore = cache.NewMemoryBlobStore()
	if cfg.Redis.Enabled {
		redisCli, err := redisClient.New(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		a.Redis = redisCli
		blobs = cache.NewRedisBlobStore(redisCli, 0)
	}

	a.Generator = newGenerator(cfg)
	a.Tasks = schedule.NewTasks(nil)
	a.Trigger = synthesis.NewTrigger(a.Store, enrich.NewSynthesizer(a.Generator), a.Tasks, synthesis.Config{
		Debounce:  cfg.SynthesisDebounce(),
		Threshold: cfg.Library.SynthesisThreshold,
		Timeout:   cfg.SynthesisTimeout(),
	})
	notes := autosave.NewController(a.Store, a.Tasks, cfg.AutosavePeriod())
	a.Workspace = app.NewWorkspaceService(a.Store, enrich.NewEnricher(a.Generator), a.Trigger, notes, cfg.LLMTimeout())
	a.Research = app.NewResearchService(a.Generator, a.Workspace.Registry())
	a.Auth = app.NewAuthService(blobs, cfg.Auth.JWTSecret, time.Duration(cfg.Auth.JWTExpireMinute)*time.Minute)
	return nil
}

// initPersistence restores the library from mysql and journals every later
// mutation through rabbitmq to the persist worker.
func (a *App) initPersistence(ctx context.Context) error {
	cfg := a.Config

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQL)
	if err != nil {
		return err
	}
	a.MySQL = mysqlDB
	if err := repository.AutoMigrate(mysqlDB); err != nil {
		return err
	}

	mirror := repository.NewLibraryMirror(
		repository.NewDocumentRepository(mysqlDB),
		repository.NewFolderRepository(mysqlDB),
	)

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ)
	if err != nil {
		return err
	}
	a.MQConn = mqConn
	a.PersistWorker = worker.NewLibraryPersistWorker(mqConn, mirror, cfg.RabbitMQ.LibraryEventsQueue)

	// Events journaled by a previous run reach mysql before the restore reads it.
	drained, err := a.PersistWorker.Drain(ctx)
	if err != nil {
		return fmt.Errorf("drain library journal failed: %w", err)
	}
	if drained > 0 {
		log.Printf("library journal drained: %d events", drained)
	}

	folders, docs, err := mirror.Load()
	if err != nil {
		return fmt.Errorf("load library failed: %w", err)
	}
	a.Store.Restore(folders, docs)
	for _, f := range a.Store.Folders() {
		folder := f
		if err := mirror.SaveFolder(&folder); err != nil {
			return err
		}
	}
	log.Printf("library restored: %d folders, %d documents", len(a.Store.Folders()), len(a.Store.Documents()))

	if err := a.PersistWorker.Start(ctx); err != nil {
		return fmt.Errorf("start persist worker failed: %w", err)
	}

	publisher := rabbitmqClient.NewLibraryEventPublisher(mqConn, cfg.RabbitMQ.LibraryEventsQueue)
	a.Store.Subscribe(publisher.Listener())
	return nil
}

func newGenerator(cfg *config.Config) ai.Generator {
	if cfg.RemoteGeneration() {
		log.Printf("generation: remote %s", cfg.Generation.RemoteURL)
		return ai.NewRemoteGenerator(cfg.Generation.RemoteURL, cfg.LLMTimeout())
	}

	chat := ai.ChatConfig{BaseURL: cfg.LLM.BaseURL, APIKey: cfg.LLM.APIKey, Model: cfg.LLM.Model}
	if !chat.Valid() {
		log.Printf("generation: llm config incomplete, analysis will fall back and synthesis will fail")
	}
	var limiter *rate.Limiter
	if cfg.Generation.RequestsPerSecond > 0 {
		burst := cfg.Generation.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.Generation.RequestsPerSecond), burst)
	}
	return ai.NewGenerationService(ai.NewOpenAICompatibleClient(cfg.LLMTimeout()), chat, limiter)
}

func (a *App) Close() error {
	var closeErr error
	if a.Workspace != nil {
		a.Workspace.Close()
	}
	if a.Tasks != nil {
		a.Tasks.CancelAll()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.PersistWorker != nil {
		a.PersistWorker.Close()
		// Pick up what the consumer left behind, including the notes flushed above.
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if _, err := a.PersistWorker.Drain(ctx); err != nil {
			log.Printf("drain library journal on shutdown failed: %v", err)
		}
		cancel()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
