package matref

import "time"

// Reference syntax constants - @[label](materialId)
const (
	RefOpen      = "@["
	RefSeparator = "]("
	RefClose     = ")"
	RefLabelEnd  = "]"
)

// Material type names as used by the material store
const (
	MaterialTypeNameText      = "text"
	MaterialTypeNameImage     = "image"
	MaterialTypeNameMixed     = "mixed"
	MaterialTypeNameReference = "reference"
)

// Rendering placeholders for materials without inline text
const (
	FmtImagePlaceholder     = "[image material: %s]"
	FmtReferencePlaceholder = "[reference: %s]"
)

// Store-side enhanced prompt fragments
const (
	FmtMentionReplacement  = "[material: %s]"
	FmtEnhancedTextSection = "\n\n[reference info: %s]\n%s"
	FmtEnhancedRefSection  = "\n\n[reference: %s] type: %s"
	FmtEnhancedRefContent  = "\n%s"
	FmtEnhancedRefAccount  = "\naccount: %s"
)

// Material ID generation
const (
	MaterialIDPrefix    = "mat_"
	MaterialIDHexLength = 12
)

// Storage driver names
const (
	StorageDriverNameMemory     = "memory"
	StorageDriverNameFilesystem = "filesystem"
	StorageDriverNamePostgres   = "postgres"
)

// Filesystem storage constants
const (
	FilesystemDirPermissions  = 0755
	FilesystemFilePermissions = 0644
	FilesystemFileSuffix      = ".json"
	FilesystemLoadConcurrency = 8
)

// PostgreSQL storage defaults
const (
	PostgresTablePrefix            = "matref_"
	PostgresDefaultMaxOpenConns    = 25
	PostgresDefaultMaxIdleConns    = 5
	PostgresDefaultConnMaxLifetime = 5 * time.Minute
	PostgresDefaultConnMaxIdleTime = 5 * time.Minute
	PostgresDefaultQueryTimeout    = 30 * time.Second
)

// Pagination defaults
const (
	DefaultPage       = 1
	DefaultPageSize   = 20
	MaxPageSize       = 100
	SearchResultsPage = 1
)

// HTTP client defaults
const (
	DefaultClientTimeout = 60 * time.Second
	DefaultBaseURL       = "http://localhost:5030/api"
	HeaderAPIKey         = "X-API-Key"
	HeaderContentType    = "Content-Type"
	ContentTypeJSON      = "application/json"
)

// HTTP server routes (relative to the configured prefix)
const (
	DefaultPathPrefix       = "/api"
	DefaultServerAddr       = ":5030"
	RouteMaterials          = "/materials"
	RouteMaterial           = "/materials/{id}"
	RouteMaterialsBatch     = "/materials/batch"
	RouteMaterialsTags      = "/materials/tags"
	RouteProcessReferences  = "/materials/process-references"
	RouteHealth             = "/health"
	RouteVarID              = "id"
	QueryParamType          = "type"
	QueryParamTags          = "tags"
	QueryParamPage          = "page"
	QueryParamPageSize      = "page_size"
	QueryParamKeyword       = "keyword"
	QueryTagsSeparator      = ","
	ServerReadHeaderTimeout = 10 * time.Second
	ServerShutdownTimeout   = 15 * time.Second
	DefaultMaxBodyBytes     = 1 << 20
)

// Server response messages
const (
	MsgMaterialCreated = "material created"
	MsgMaterialUpdated = "material updated"
	MsgMaterialDeleted = "material deleted"
	MsgHealthy         = "ok"
)

// Environment variable names for configuration overrides
const (
	EnvAPIURL        = "MATREF_API_URL"
	EnvAPIKey        = "MATREF_API_KEY"
	EnvTimeout       = "MATREF_TIMEOUT"
	EnvServerAddr    = "MATREF_ADDR"
	EnvPathPrefix    = "MATREF_PATH_PREFIX"
	EnvServerAPIKey  = "MATREF_SERVER_API_KEY"
	EnvStorageDriver = "MATREF_STORAGE_DRIVER"
	EnvStorageDSN    = "MATREF_STORAGE_DSN"
)

// Log messages
const (
	LogMsgResolveStart      = "resolving material references"
	LogMsgResolveSkipped    = "no material references found, skipping store call"
	LogMsgResolveComplete   = "material references resolved"
	LogMsgResolveFailed     = "material reference resolution failed"
	LogMsgRenderComplete    = "prompts rendered"
	LogMsgFallback          = "resolution failed, returning prompts unchanged"
	LogMsgDuplicateMaterial = "store returned duplicate material, keeping first"
	LogMsgStoreRequest      = "material store request"
	LogMsgStoreResponse     = "material store response"
	LogMsgServerRequest     = "request handled"
	LogMsgServerError       = "request failed"
	LogMsgServerListening   = "material store listening"
	LogMsgServerStopped     = "material store stopped"
	LogMsgMaterialSaved     = "material saved"
	LogMsgMaterialDeleted   = "material deleted"
	LogMsgReferencesBuilt   = "store-side references processed"
)

// Log field names
const (
	LogFieldPrompts     = "prompt_count"
	LogFieldMaterialIDs = "material_id_count"
	LogFieldResolved    = "resolved_count"
	LogFieldUnresolved  = "unresolved_count"
	LogFieldImages      = "reference_image_count"
	LogFieldMaterialID  = "material_id"
	LogFieldMethod      = "method"
	LogFieldPath        = "path"
	LogFieldStatus      = "status"
	LogFieldURL         = "url"
	LogFieldAddr        = "addr"
	LogFieldDuration    = "duration"
	LogFieldErrorKind   = "error_kind"
)
