package manifest

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"
)

var structValidate = validator.New()

// boundarySchema is the structural shape the HTTP gateway collaborator is
// expected to validate a raw submission against before handing the core a
// Manifest value. The core re-checks it at CreateStudy so the invariant in
// spec §3 ("validated immutable input") holds even if a collaborator skips
// its own check.
const boundarySchema = `{
  "type": "object",
  "properties": {
    "queries": {"type": "array", "minItems": 0},
    "surfaces": {"type": "array", "minItems": 0},
    "locations": {"type": "array", "minItems": 0},
    "completionCriteria": {
      "type": "object",
      "properties": {
        "requiredSurfaces": {
          "type": "object",
          "properties": {
            "coverageThreshold": {"type": "number", "minimum": 0, "maximum": 1}
          }
        },
        "maxRetriesPerCell": {"type": "integer", "minimum": 0}
      }
    }
  }
}`

// ValidateBoundary runs the JSON-Schema structural check a collaborator's
// gateway would run against the raw submission payload.
func ValidateBoundary(raw map[string]interface{}) error {
	schemaLoader := gojsonschema.NewStringLoader(boundarySchema)
	docLoader := gojsonschema.NewGoLoader(raw)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		msg := "manifest failed boundary validation:"
		for _, e := range result.Errors() {
			msg += " " + e.String() + ";"
		}
		return fmt.Errorf("%s", msg)
	}
	return nil
}

// Validate runs semantic checks on an already-typed Manifest: coverage
// threshold bounds, non-negative retry budgets, and surface-id references
// used by completionCriteria actually appearing in manifest.Surfaces.
func Validate(m Manifest) error {
	if err := structValidate.Struct(m); err != nil {
		return fmt.Errorf("manifest failed field validation: %w", err)
	}

	threshold := m.CompletionCriteria.RequiredSurfaces.CoverageThreshold
	if threshold < 0 || threshold > 1 {
		return fmt.Errorf("completionCriteria.requiredSurfaces.coverageThreshold must be in [0,1], got %v", threshold)
	}
	if m.CompletionCriteria.MaxRetriesPerCell < 0 {
		return fmt.Errorf("completionCriteria.maxRetriesPerCell must be >= 0")
	}

	known := make(map[string]bool, len(m.Surfaces))
	for _, s := range m.Surfaces {
		if s.ID == "" {
			return fmt.Errorf("surface with empty id")
		}
		known[s.ID] = true
	}
	for _, id := range m.CompletionCriteria.RequiredSurfaces.SurfaceIDs {
		if !known[id] {
			return fmt.Errorf("completionCriteria references unknown required surface %q", id)
		}
	}
	for _, id := range m.CompletionCriteria.OptionalSurfaces {
		if !known[id] {
			return fmt.Errorf("completionCriteria references unknown optional surface %q", id)
		}
	}

	switch m.QualityGates.MinResponseLength {
	case 0:
	default:
		if m.QualityGates.MinResponseLength < 0 {
			return fmt.Errorf("qualityGates.minResponseLength must be >= 0")
		}
	}

	switch m.EvidenceLevel {
	case EvidenceNone, EvidenceMetadata, EvidenceFull, "":
	default:
		return fmt.Errorf("unknown evidenceLevel %q", m.EvidenceLevel)
	}

	switch m.SessionIsolation {
	case SessionShared, SessionDedicatedPerStudy, "":
	default:
		return fmt.Errorf("unknown sessionIsolation %q", m.SessionIsolation)
	}

	return nil
}
