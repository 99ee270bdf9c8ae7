package tool

// ParameterType enumerates the value types a parameter accepts.
type ParameterType string

const (
	TypeString  ParameterType = "string"
	TypeNumber  ParameterType = "number"
	TypeInteger ParameterType = "integer"
	TypeBoolean ParameterType = "boolean"
	TypeArray   ParameterType = "array"
	TypeObject  ParameterType = "object"
)

// Parameter declares one argument of a tool: its name, type, and the
// constraints the validator enforces. Constraint fields that do not apply to
// the declared type are ignored.
type Parameter struct {
	// Name is the argument key in the args map.
	Name string `json:"name" yaml:"name"`

	// Description explains the argument for human readers.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Type is the expected value type.
	Type ParameterType `json:"type" yaml:"type"`

	// Required rejects calls that omit this argument.
	Required bool `json:"required,omitempty" yaml:"required,omitempty"`

	// Enum restricts string values to a fixed set.
	Enum []string `json:"enum,omitempty" yaml:"enum,omitempty"`

	// Pattern is a regular expression string values must fully match.
	Pattern string `json:"pattern,omitempty" yaml:"pattern,omitempty"`

	// MinLength and MaxLength bound string length. Nil means unbounded.
	MinLength *int `json:"min_length,omitempty" yaml:"min_length,omitempty"`
	MaxLength *int `json:"max_length,omitempty" yaml:"max_length,omitempty"`

	// Min and Max bound numeric values. Nil means unbounded.
	Min *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max *float64 `json:"max,omitempty" yaml:"max,omitempty"`

	// MinItems and MaxItems bound array length. Nil means unbounded.
	MinItems *int `json:"min_items,omitempty" yaml:"min_items,omitempty"`
	MaxItems *int `json:"max_items,omitempty" yaml:"max_items,omitempty"`
}
