package container

import (
	"database/sql"
	"fmt"

	"github.com/garyjia/icsr-workflow/internal/application/dispatcher"
	"github.com/garyjia/icsr-workflow/internal/application/port"
	"github.com/garyjia/icsr-workflow/internal/application/service"
	"github.com/garyjia/icsr-workflow/internal/application/validation"
	"github.com/garyjia/icsr-workflow/internal/application/workflow"
	"github.com/garyjia/icsr-workflow/internal/domain/expression"
	domainwf "github.com/garyjia/icsr-workflow/internal/domain/workflow"
	"github.com/garyjia/icsr-workflow/internal/infrastructure/auth"
	infraLark "github.com/garyjia/icsr-workflow/internal/infrastructure/external/lark"
	"github.com/garyjia/icsr-workflow/internal/infrastructure/persistence/repository"
	"github.com/garyjia/icsr-workflow/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/icsr-workflow/internal/infrastructure/report"
	"github.com/garyjia/icsr-workflow/internal/infrastructure/worker"
	"github.com/garyjia/icsr-workflow/internal/metrics"
	"github.com/garyjia/icsr-workflow/pkg/database"
	"go.uber.org/zap"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
	SchemaVersion  int
	Capabilities   domainwf.Capabilities
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Case         *repository.CaseRepository
	Assignment   *repository.AssignmentRepository
	Comment      *repository.CommentRepository
	Note         *repository.NoteRepository
	Audit        *repository.AuditRepository
	Signature    *repository.SignatureRepository
	Rule         *repository.RuleRepository
	Result       *repository.ResultRepository
	Notification *repository.NotificationRepository
	User         *repository.UserRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Workflow     workflow.WorkflowEngine
	Validation   validation.Engine
	Rules        validation.RuleService
	Assignment   service.AssignmentService
	Comment      service.CommentService
	Note         service.NoteService
	Notification service.NotificationService
	Reminder     service.ReminderService
	Reports      *report.ValidationReporter
}

// ServiceDeps holds dependencies for creating services.
type ServiceDeps struct {
	Repos        *RepositoryBundle
	TxManager    port.TransactionManager
	Capabilities domainwf.Capabilities
	Messenger    port.MessageSender
	Dispatcher   dispatcher.Dispatcher
	Metrics      *metrics.Collector
	Workflow     *WorkflowConfig
	Validation   *ValidationConfig
	Logger       *zap.Logger
}

// WorkerDeps holds dependencies for creating workers.
type WorkerDeps struct {
	Reminder  service.ReminderService
	WorkerCfg *WorkerConfig
	Logger    *zap.Logger
}

// ProvideDatabase opens the case store, applies pending migrations when configured
// and derives the workflow capabilities from the resulting schema version.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	migrator := database.NewMigrator(db, logger)
	if cfg.AutoMigrate {
		if err := migrator.Up(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	version, err := migrator.CurrentVersion()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read schema version: %w", err)
	}

	caps := domainwf.CapabilitiesForSchema(version)
	logger.Info("Database ready",
		zap.String("path", cfg.Path),
		zap.Int("schema_version", version),
		zap.Bool("signature_records", caps.SignatureRecords),
		zap.Bool("rejection_tracking", caps.RejectionTracking),
		zap.Bool("assignment_tracking", caps.AssignmentTracking))

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
		SchemaVersion:  version,
		Capabilities:   caps,
	}, nil
}

// ProvideRepositories creates all repository instances.
func ProvideRepositories(db *sql.DB, caps domainwf.Capabilities, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Case:         repository.NewCaseRepository(db, caps, logger),
		Assignment:   repository.NewAssignmentRepository(db, logger),
		Comment:      repository.NewCommentRepository(db, logger),
		Note:         repository.NewNoteRepository(db, logger),
		Audit:        repository.NewAuditRepository(db, logger),
		Signature:    repository.NewSignatureRepository(db, logger),
		Rule:         repository.NewRuleRepository(db, logger),
		Result:       repository.NewResultRepository(db, logger),
		Notification: repository.NewNotificationRepository(db, logger),
		User:         repository.NewUserRepository(db, logger),
	}, nil
}

// ProvideLarkMessenger creates the Lark IM sender. It returns nil when Lark is disabled.
func ProvideLarkMessenger(cfg *LarkConfig, logger *zap.Logger) (port.MessageSender, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	if cfg.AppID == "" || cfg.AppSecret == "" {
		return nil, fmt.Errorf("lark app ID and secret are required")
	}

	client := infraLark.NewSDKClient(infraLark.Config{
		AppID:          cfg.AppID,
		AppSecret:      cfg.AppSecret,
		RequestTimeout: cfg.RequestTimeout,
	}, logger.Named("lark"))
	return infraLark.NewMessenger(client, logger), nil
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(&zapLoggerAdapter{logger: logger.Named("dispatcher")}),
	), nil
}

// ProvideServices creates the engines and collaborator services.
// Notification handlers are subscribed to the dispatcher when enabled.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	serviceLogger := &zapLoggerAdapter{logger: deps.Logger}
	repos := deps.Repos

	var evaluatorOpts []expression.Option
	if deps.Validation != nil && deps.Validation.ProgramCacheTTL > 0 {
		evaluatorOpts = append(evaluatorOpts, expression.WithCacheTTL(deps.Validation.ProgramCacheTTL))
	}
	evaluator := expression.NewEvaluator(evaluatorOpts...)

	workflowOpts := []workflow.EngineOption{
		workflow.WithDispatcher(deps.Dispatcher),
		workflow.WithCapabilities(deps.Capabilities),
		workflow.WithLogger(&zapLoggerAdapter{logger: deps.Logger.Named("workflow")}),
	}
	validationOpts := []validation.EngineOption{
		validation.WithDispatcher(deps.Dispatcher),
		validation.WithLogger(&zapLoggerAdapter{logger: deps.Logger.Named("validation")}),
	}
	if deps.Metrics != nil {
		workflowOpts = append(workflowOpts, workflow.WithMetrics(deps.Metrics))
		validationOpts = append(validationOpts, validation.WithMetrics(deps.Metrics))
	}
	if deps.Workflow != nil && deps.Workflow.SignatureMeaning != "" {
		workflowOpts = append(workflowOpts, workflow.WithSignatureMeaning(deps.Workflow.SignatureMeaning))
	}

	engine := workflow.NewEngine(
		workflow.Stores{
			Cases:       repos.Case,
			Assignments: repos.Assignment,
			Comments:    repos.Comment,
			Signatures:  repos.Signature,
			Audit:       repos.Audit,
		},
		deps.TxManager,
		auth.NewPasswordVerifier(repos.User, deps.Logger),
		workflowOpts...,
	)

	validationEngine := validation.NewEngine(
		repos.Case,
		repos.Rule,
		repos.Result,
		repos.Audit,
		deps.TxManager,
		evaluator,
		validationOpts...,
	)

	notifications := service.NewNotificationService(repos.Notification, repos.User, deps.Messenger, serviceLogger)
	if deps.Workflow == nil || deps.Workflow.NotificationsEnabled {
		notifications.RegisterHandlers(deps.Dispatcher)
	}

	return &ServiceBundle{
		Workflow:     engine,
		Validation:   validationEngine,
		Rules:        validation.NewRuleService(repos.Rule, repos.Audit, deps.TxManager, evaluator, serviceLogger),
		Assignment:   service.NewAssignmentService(repos.Case, repos.Assignment, repos.Audit, deps.TxManager, deps.Dispatcher, serviceLogger),
		Comment:      service.NewCommentService(repos.Case, repos.Comment, deps.Dispatcher, serviceLogger),
		Note:         service.NewNoteService(repos.Case, repos.Note, serviceLogger),
		Notification: notifications,
		Reminder:     service.NewReminderService(repos.Assignment, repos.Notification, deps.Dispatcher, serviceLogger),
		Reports:      report.NewValidationReporter(validationEngine, deps.Logger.Named("report")),
	}, nil
}

// ProvideWorkers creates and configures all background workers.
func ProvideWorkers(deps *WorkerDeps) (*worker.WorkerManager, error) {
	if deps == nil {
		return nil, fmt.Errorf("worker dependencies are required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	manager := worker.NewWorkerManager(deps.Logger)

	if deps.WorkerCfg != nil && deps.WorkerCfg.ReminderEnabled {
		if deps.Reminder == nil {
			return nil, fmt.Errorf("reminder service is required")
		}
		schedule := deps.WorkerCfg.ReminderSchedule
		if schedule == "" {
			schedule = worker.DefaultReminderSchedule
		}
		manager.Register(worker.NewReminderWorker(schedule, deps.Reminder, deps.Logger.Named("reminder")))
	}

	return manager, nil
}
