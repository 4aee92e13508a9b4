package companion

import (
	runtimepkg "github.com/supportcompanion/companion/internal/runtime"
	configpkg "github.com/supportcompanion/companion/internal/runtime/config"
	endpointpkg "github.com/supportcompanion/companion/internal/runtime/endpoint"
	errspkg "github.com/supportcompanion/companion/internal/runtime/errors"
	eventspkg "github.com/supportcompanion/companion/internal/runtime/events"
	idspkg "github.com/supportcompanion/companion/internal/runtime/ids"
	jsoncodec "github.com/supportcompanion/companion/internal/runtime/jsoncodec"
	loggingpkg "github.com/supportcompanion/companion/internal/runtime/logging"
	messagepkg "github.com/supportcompanion/companion/internal/runtime/message"
	servicespkg "github.com/supportcompanion/companion/internal/runtime/services"
	wirepkg "github.com/supportcompanion/companion/internal/runtime/wire"
	transportpkg "github.com/supportcompanion/companion/transport"
)

type (
	// Message model
	Request      = messagepkg.Request
	Response     = messagepkg.Response
	Code         = messagepkg.Code
	RouteError   = messagepkg.RouteError
	FailureError = messagepkg.FailureError

	// Routing
	Endpoint   = endpointpkg.Endpoint
	Call       = endpointpkg.Call
	Handler    = endpointpkg.Handler
	Middleware = endpointpkg.Middleware
	Pipe       = endpointpkg.Pipe
	Requester  = endpointpkg.Requester
	Poster     = endpointpkg.Poster

	// Bridge assembly
	Bridge                 = runtimepkg.Bridge
	BridgeDependencies     = runtimepkg.BridgeDependencies
	MiddlewareBuilder      = runtimepkg.MiddlewareBuilder
	MiddlewareRegistration = runtimepkg.Registration

	// Request lifecycle hooks
	RequestContext = runtimepkg.RequestContext
	RequestHooks   = runtimepkg.RequestHooks

	// Options
	Options        = configpkg.Options
	PrinterOptions = configpkg.PrinterOptions
	POSOptions     = configpkg.POSOptions
	OptionsStore   = configpkg.Store

	// Services
	Downloader      = servicespkg.Downloader
	DownloadSpec    = servicespkg.DownloadSpec
	DownloadEvent   = servicespkg.DownloadEvent
	DownloadResult  = servicespkg.DownloadResult
	DownloadManager = servicespkg.DownloadManager
	HTTPDownloader  = servicespkg.HTTPDownloader
	PrintJob        = servicespkg.PrintJob
	PrintResult     = servicespkg.PrintResult
	PrintManager    = servicespkg.PrintManager
	POSManager      = servicespkg.POSManager

	// Event bus and wire
	Bus  = eventspkg.Bus
	Conn = wirepkg.Conn

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger
	ConsoleGate   = loggingpkg.ConsoleGate

	// Channel introspection
	TransportCapabilities = transportpkg.Capabilities
	TransportRegistry     = transportpkg.Registry
)

var (
	NewBridge = runtimepkg.NewBridge
	NewStore  = configpkg.NewStore
	NewBus    = eventspkg.NewBus

	NewRequest  = messagepkg.NewRequest
	Success     = messagepkg.Success
	SuccessFor  = messagepkg.SuccessFor
	Failure     = messagepkg.Failure
	Unknown     = messagepkg.Unknown
	ScriptError = messagepkg.ScriptError
	Failuref    = messagepkg.Failuref

	NewEndpoint = endpointpkg.New
	ExactPipe   = endpointpkg.Exact
	MatchPipe   = endpointpkg.Match

	DefaultMiddlewares      = runtimepkg.DefaultMiddlewares
	CorrelationIDMiddleware = runtimepkg.CorrelationIDMiddleware
	LogRequestsMiddleware   = runtimepkg.LogRequestsMiddleware
	TracerMiddleware        = runtimepkg.TracerMiddleware
	MetricsMiddleware       = runtimepkg.MetricsMiddleware
	HooksMiddleware         = runtimepkg.HooksMiddleware
	LoggingHooks            = runtimepkg.LoggingHooks

	DefaultOptions  = configpkg.Default
	ValidateOptions = configpkg.Validate

	NewDownloadManager = servicespkg.NewDownloadManager
	NewHTTPDownloader  = servicespkg.NewHTTPDownloader
	NewPrintManager    = servicespkg.NewPrintManager
	NewPOSManager      = servicespkg.NewPOSManager

	NewStreamConn = wirepkg.NewStreamConn
	WirePipe      = wirepkg.Pipe

	Marshal       = jsoncodec.Marshal
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal
	Encode        = jsoncodec.Encode
	Decode        = jsoncodec.Decode

	NewSlogServiceLogger      = loggingpkg.NewSlogServiceLogger
	NewWatermillServiceLogger = loggingpkg.NewWatermillServiceLogger
	NewConsoleGate            = loggingpkg.NewConsoleGate
	NopLogger                 = loggingpkg.Nop

	CreateULID = idspkg.CreateULID

	// Channel introspection. Adapter packages register themselves in init;
	// import them for their side effects:
	//   _ "github.com/supportcompanion/companion/transport/native"
	DefaultTransportRegistry = transportpkg.DefaultRegistry
	RegisterTransport        = transportpkg.Register
	GetTransportCapabilities = transportpkg.Get

	ErrInvalidHandler     = errspkg.ErrInvalidHandler
	ErrRouteNameRequired  = errspkg.ErrRouteNameRequired
	ErrEndpointRequired   = errspkg.ErrEndpointRequired
	ErrNotConnected       = errspkg.ErrNotConnected
	ErrConnClosed         = errspkg.ErrConnClosed
	ErrFrameTooLarge      = errspkg.ErrFrameTooLarge
	ErrDownloaderRequired = errspkg.ErrDownloaderRequired
	ErrRequesterRequired  = errspkg.ErrRequesterRequired
	ErrOptionsRequired    = errspkg.ErrOptionsRequired
)

// Identity and route name constants re-exported from the runtime.
const (
	ProductName = runtimepkg.ProductName
	Version     = runtimepkg.Version

	DefaultID = messagepkg.DefaultID

	CodeSuccess     = messagepkg.CodeSuccess
	CodeFailure     = messagepkg.CodeFailure
	CodeUnknown     = messagepkg.CodeUnknown
	CodeScriptError = messagepkg.CodeScriptError

	RoutePing             = runtimepkg.RoutePing
	RouteVersion          = runtimepkg.RouteVersion
	RouteEcho             = runtimepkg.RouteEcho
	RouteCapabilities     = runtimepkg.RouteCapabilities
	RouteIsConnected      = runtimepkg.RouteIsConnected
	RouteConnect          = runtimepkg.RouteConnect
	RouteDisconnect       = runtimepkg.RouteDisconnect
	RouteDocumentDownload = runtimepkg.RouteDocumentDownload
	RouteDocumentPrint    = runtimepkg.RouteDocumentPrint
	RouteOpenDownloadDir  = runtimepkg.RouteOpenDownloadDir
	RoutePOSPing          = runtimepkg.RoutePOSPing
	RoutePOSProcess       = runtimepkg.RoutePOSProcess

	TopicDownloadResponse = servicespkg.TopicDownloadResponse
	TopicPrintResponse    = servicespkg.TopicPrintResponse

	MaxFrameSize = wirepkg.MaxFrameSize
)
