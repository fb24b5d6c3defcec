package schema

// Kind is the primitive type of an addressable field.
type Kind int

const (
	KindString Kind = iota + 1
	KindInt
	KindFloat
	KindBool
	KindChar
	KindEnum
	KindTimestamp
)

var kindNames = map[Kind]string{
	KindString:    "string",
	KindInt:       "int",
	KindFloat:     "float",
	KindBool:      "bool",
	KindChar:      "char",
	KindEnum:      "enum",
	KindTimestamp: "timestamp",
}

// String returns the declaration name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Numeric reports whether SUM, AVG, MIN and MAX may be applied to the kind.
func (k Kind) Numeric() bool {
	return k == KindInt || k == KindFloat
}

// ParseKind maps a declaration name to its Kind.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}
