package model

// Capability describes the schema restrictions of a provider. Adapters export
// their profile; ValidateToolSpecs checks declared tool specs against it
// before any call is attempted.
type Capability struct {
	Provider string

	// DisallowedTypes lists JSON Schema type names the provider rejects.
	DisallowedTypes []string

	// RequireDescription demands a non-empty description on the tool itself
	// and on every declared property.
	RequireDescription bool

	// RequireDefaults demands a default value on every optional property
	// (declared but not listed in required).
	RequireDefaults bool
}

// ValidateToolSpecs checks every tool spec against the capability profile and
// fails fast with a SchemaIncompatibleError naming the offending field.
func ValidateToolSpecs(specs []ToolSpec, cap Capability) error {
	for _, spec := range specs {
		if cap.RequireDescription && spec.Description == "" {
			return &SchemaIncompatibleError{
				Provider: cap.Provider,
				Tool:     spec.Name,
				Field:    "description",
				Reason:   "tool description is required",
			}
		}
		if err := validateParameters(spec, cap); err != nil {
			return err
		}
	}
	return nil
}

func validateParameters(spec ToolSpec, cap Capability) error {
	if spec.Parameters == nil {
		return nil
	}

	properties, _ := spec.Parameters["properties"].(map[string]any)
	required := requiredSet(spec.Parameters)

	for name, raw := range properties {
		prop, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		propType, _ := prop["type"].(string)
		for _, disallowed := range cap.DisallowedTypes {
			if propType == disallowed {
				return &SchemaIncompatibleError{
					Provider: cap.Provider,
					Tool:     spec.Name,
					Field:    name,
					Reason:   "type " + propType + " is not supported",
				}
			}
		}

		if cap.RequireDescription {
			if desc, _ := prop["description"].(string); desc == "" {
				return &SchemaIncompatibleError{
					Provider: cap.Provider,
					Tool:     spec.Name,
					Field:    name,
					Reason:   "property description is required",
				}
			}
		}

		if cap.RequireDefaults && !required[name] {
			if _, hasDefault := prop["default"]; !hasDefault {
				return &SchemaIncompatibleError{
					Provider: cap.Provider,
					Tool:     spec.Name,
					Field:    name,
					Reason:   "optional property needs a default",
				}
			}
		}
	}

	return nil
}

func requiredSet(schema map[string]any) map[string]bool {
	set := map[string]bool{}
	switch req := schema["required"].(type) {
	case []string:
		for _, name := range req {
			set[name] = true
		}
	case []any:
		for _, raw := range req {
			if name, ok := raw.(string); ok {
				set[name] = true
			}
		}
	}
	return set
}
