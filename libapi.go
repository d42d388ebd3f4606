package sockwire

import (
	enginepkg "github.com/sockwire/sockwire/internal/engine"
	configpkg "github.com/sockwire/sockwire/internal/engine/config"
	errspkg "github.com/sockwire/sockwire/internal/engine/errors"
	idspkg "github.com/sockwire/sockwire/internal/engine/ids"
	"github.com/sockwire/sockwire/internal/engine/inject"
	"github.com/sockwire/sockwire/internal/engine/jsoncodec"
	loggingpkg "github.com/sockwire/sockwire/internal/engine/logging"
	typespkg "github.com/sockwire/sockwire/internal/engine/types"
	validatepkg "github.com/sockwire/sockwire/internal/engine/validate"
	managerpkg "github.com/sockwire/sockwire/manager"
)

type (
	Config       = configpkg.Config
	Mode         = configpkg.Mode
	Engine       = enginepkg.Engine
	Dependencies = enginepkg.Dependencies
	Request      = enginepkg.Request

	PayloadValidator = enginepkg.PayloadValidator

	// Dependency declarations
	Declaration = inject.Declaration
	DependsOpt  = inject.Option
	Registry    = inject.Registry

	// Injected built-in types
	SocketID = typespkg.SocketID
	Event    = typespkg.Event
	Reason   = typespkg.Reason
	Environ  = typespkg.Environ
	Auth     = typespkg.Auth
	Data     = typespkg.Data
	Server   = typespkg.Server

	// Handler registration
	HandlerOption        = enginepkg.HandlerOption
	Handler              = enginepkg.Handler
	HandlerStatsSnapshot = enginepkg.HandlerStatsSnapshot
	Router               = enginepkg.Router

	// Middleware
	Middleware      = enginepkg.Unit
	MiddlewareChain = enginepkg.Chain
	Next            = enginepkg.Next

	// Invocation lifecycle hooks
	InvocationContext = enginepkg.InvocationContext
	InvocationHooks   = enginepkg.InvocationHooks

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	// Error types
	CyclicDependencyError     = errspkg.CyclicDependencyError
	UnresolvedDependencyError = errspkg.UnresolvedDependencyError
	SyncAsyncMismatchError    = errspkg.SyncAsyncMismatchError
	AuthNotAvailableError     = errspkg.AuthNotAvailableError
	ReasonNotAvailableError   = errspkg.ReasonNotAvailableError
	ValidationError           = errspkg.ValidationError
	Abort                     = errspkg.Abort

	// Cross-instance manager
	Manager        = managerpkg.Manager
	ManagerConfig  = managerpkg.Config
	ManagerBus     = managerpkg.Bus
	ManagerBuilder = managerpkg.Builder
	Envelope       = managerpkg.Envelope
)

var (
	New            = enginepkg.New
	TryNew         = enginepkg.TryNew
	ValidateConfig = configpkg.ValidateConfig

	// Dependency declarations
	Depends  = inject.Depends
	Named    = inject.Named
	NoCache  = inject.NoCache
	WithArgs = inject.WithArgs

	NewRegistry = inject.NewRegistry

	// Handler registration options
	WithDeps  = enginepkg.WithDeps
	WithName  = enginepkg.WithName
	NewRouter = enginepkg.NewRouter

	// Middleware
	DefaultMiddlewares  = enginepkg.DefaultMiddlewares
	RecovererMiddleware = enginepkg.RecovererMiddleware
	LoggingMiddleware   = enginepkg.LoggingMiddleware
	AuthMiddleware      = enginepkg.AuthMiddleware
	RateLimitMiddleware = enginepkg.RateLimitMiddleware

	// Invocation lifecycle hooks
	LoggingHooks  = enginepkg.LoggingHooks
	AlertingHooks = enginepkg.AlertingHooks

	NewSchemaValidator = validatepkg.New

	Marshal   = jsoncodec.Marshal
	Unmarshal = jsoncodec.Unmarshal
	Encode    = jsoncodec.Encode
	Decode    = jsoncodec.Decode

	ErrEngineRequired       = errspkg.ErrEngineRequired
	ErrHandlerRequired      = errspkg.ErrHandlerRequired
	ErrEventNameRequired    = errspkg.ErrEventNameRequired
	ErrHandlerNotFunc       = errspkg.ErrHandlerNotFunc
	ErrProviderNotFunc      = errspkg.ErrProviderNotFunc
	ErrDuplicateProvider    = errspkg.ErrDuplicateProvider
	ErrRegistrySealed       = errspkg.ErrRegistrySealed
	ErrDuplicateHandler     = errspkg.ErrDuplicateHandler
	ErrTooManyModelParams   = errspkg.ErrTooManyModelParams
	ErrMiddlewareNoHooks    = errspkg.ErrMiddlewareNoHooks
	ErrInvocationCancelled  = errspkg.ErrInvocationCancelled
	ErrMultiArgumentPayload = errspkg.ErrMultiArgumentPayload

	IsAbort            = errspkg.IsAbort
	IsCyclicDependency = errspkg.IsCyclicDependency
	IsValidation       = errspkg.IsValidation

	NewSlogServiceLogger = loggingpkg.NewSlogServiceLogger
	NopLogger            = loggingpkg.Nop

	NewInvocationID = idspkg.NewInvocationID
	NewConnectionID = idspkg.NewConnectionID

	// Cross-instance manager.
	// Import individual backends via: _ "github.com/sockwire/sockwire/manager/channel"
	NewManager             = managerpkg.New
	NewManagerWithBus      = managerpkg.NewWithBus
	RegisterManagerBackend = managerpkg.Register
)

// Execution modes.
const (
	ModeCooperative = configpkg.ModeCooperative
	ModeParallel    = configpkg.ModeParallel
)

// Reserved event names and the default namespace.
const (
	EventConnect    = typespkg.EventConnect
	EventDisconnect = typespkg.EventDisconnect
	RootNamespace   = typespkg.RootNamespace
)
