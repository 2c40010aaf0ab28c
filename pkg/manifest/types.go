// Package manifest holds the immutable client-submitted data model: Surface,
// Location, Query, and Manifest (spec §3). These types are validated at the
// boundary and then treated as immutable input by the rest of the core.
package manifest

// AuthRequirement describes how a surface authenticates outbound requests.
type AuthRequirement string

const (
	AuthNone            AuthRequirement = "none"
	AuthAPIKey          AuthRequirement = "api-key"
	AuthCapturedSession AuthRequirement = "captured-session"
)

// SurfaceCategory groups surfaces by protocol family.
type SurfaceCategory string

const (
	CategoryLLMAPI       SurfaceCategory = "llm-api"
	CategoryWebChatbot   SurfaceCategory = "web-chatbot"
	CategorySearchEngine SurfaceCategory = "search-engine"
	CategoryECommerce    SurfaceCategory = "e-commerce"
)

// ProxyType describes the request-origin network character of a Location.
type ProxyType string

const (
	ProxyDatacenter  ProxyType = "datacenter"
	ProxyResidential ProxyType = "residential"
	ProxyMobile      ProxyType = "mobile"
	ProxyISP         ProxyType = "isp"
)

// EvidenceLevel controls how much of a job's result is archived.
type EvidenceLevel string

const (
	EvidenceNone     EvidenceLevel = "none"
	EvidenceMetadata EvidenceLevel = "metadata"
	EvidenceFull     EvidenceLevel = "full"
)

// SessionIsolation controls whether web-chatbot jobs share a browser session.
type SessionIsolation string

const (
	SessionShared            SessionIsolation = "shared"
	SessionDedicatedPerStudy SessionIsolation = "dedicated-per-study"
)

// Capabilities describes what a surface supports.
type Capabilities struct {
	Streaming           bool
	ConversationHistory bool
	SystemPrompt        bool
	MaxInputTokens      int
	MaxOutputTokens     int
}

// CostCoefficients prices a surface's usage, expressed per 1,000 tokens.
type CostCoefficients struct {
	InputPerThousandUsd  float64
	OutputPerThousandUsd float64
}

// Surface is a named external service (spec §3). Immutable.
type Surface struct {
	ID              string `validate:"required"`
	Category        SurfaceCategory
	AuthRequirement AuthRequirement
	Capabilities    Capabilities
	RateLimitPerMin int
	Cost            CostCoefficients
}

// Location is a named request-origin context (spec §3). Immutable.
type Location struct {
	ID        string
	Country   string
	Region    string
	City      string
	ProxyType ProxyType
}

// Query is request text plus an optional category tag (spec §3). Immutable.
type Query struct {
	Text     string `validate:"required"`
	Category string
}

// QualityGates configures per-job quality checks (spec §3, §4.5).
type QualityGates struct {
	MinResponseLength    int `validate:"gte=0"`
	RequireActualContent bool
	ForbiddenPatterns    []string
	RequiredPatterns     []string
}

// RequiredSurfaces names the surfaces a study must cover and the coverage
// fraction each must meet (spec §3, §4.5).
type RequiredSurfaces struct {
	SurfaceIDs        []string
	CoverageThreshold float64 `validate:"gte=0,lte=1"`
}

// CompletionCriteria configures study-level completion evaluation (spec §3).
type CompletionCriteria struct {
	RequiredSurfaces  RequiredSurfaces
	OptionalSurfaces  []string
	MaxRetriesPerCell int `validate:"gte=0"`
}

// Manifest is the unit of client submission (spec §3). Validated immutable
// input: the core never mutates a Manifest after CreateStudy accepts it.
type Manifest struct {
	Queries            []Query   `validate:"dive"`
	Surfaces           []Surface `validate:"dive"`
	Locations          []Location
	QualityGates       QualityGates
	CompletionCriteria CompletionCriteria
	EvidenceLevel      EvidenceLevel
	LegalHold          bool
	Deadline           *int64 // unix millis, optional
	SessionIsolation   SessionIsolation
}

// CellCount returns |queries| × |surfaces| × |locations|, the invariant job
// count for a study created from this manifest (spec §8 invariant 1).
func (m Manifest) CellCount() int {
	return len(m.Queries) * len(m.Surfaces) * len(m.Locations)
}
