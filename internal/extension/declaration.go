package extension

import (
	"fmt"
	"strings"

	"github.com/roach88/relbridge/internal/types"
)

// ParamKind is the kind of a parameter pattern.
type ParamKind int

const (
	// ParamExact matches one kind. Nonzero length or precision on the
	// pattern type must match as well.
	ParamExact ParamKind = iota

	// ParamFamily matches any kind of a type family.
	ParamFamily

	// ParamAny matches any type. Parameters sharing an AnyID must bind to
	// the same type.
	ParamAny
)

// Family is a named group of kinds.
type Family string

const (
	FamilyInteger  Family = "any_integer"
	FamilyNumeric  Family = "any_numeric"
	FamilyString   Family = "any_string"
	FamilyTemporal Family = "any_temporal"
)

var familyTokens = map[Family]string{
	FamilyInteger:  "anyint",
	FamilyNumeric:  "anynum",
	FamilyString:   "anystr",
	FamilyTemporal: "anytemp",
}

// Contains reports whether k belongs to the family.
func (f Family) Contains(k types.Kind) bool {
	switch f {
	case FamilyInteger:
		return k.IsInteger()
	case FamilyNumeric:
		return k.IsNumeric()
	case FamilyString:
		return k.IsString()
	case FamilyTemporal:
		return k.IsTemporal()
	}
	return false
}

// Match scores, per argument.
const (
	scoreExact  = 3
	scoreFamily = 2
	scoreAny    = 1
)

// Param is a parameter pattern.
type Param struct {
	Name   string     `json:"name,omitempty"`
	Kind   ParamKind  `json:"kind"`
	Type   types.Type `json:"type,omitempty"`
	Family Family     `json:"family,omitempty"`
	AnyID  string     `json:"any_id,omitempty"`
}

// ParseParam parses a parameter pattern such as "i64", "varchar<L1>",
// "any_numeric" or "any1".
func ParseParam(value string) (Param, error) {
	v := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(value)), "?")
	if _, ok := familyTokens[Family(v)]; ok {
		return Param{Kind: ParamFamily, Family: Family(v)}, nil
	}
	if isAnyID(v) {
		return Param{Kind: ParamAny, AnyID: v}, nil
	}
	t, err := types.Parse(value)
	if err != nil {
		return Param{}, err
	}
	return Param{Kind: ParamExact, Type: t.WithNullable(false)}, nil
}

// isAnyID reports whether s is "any" or "any" followed by digits.
func isAnyID(s string) bool {
	if !strings.HasPrefix(s, "any") {
		return false
	}
	for _, r := range s[3:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Token returns the signature suffix token of the pattern.
func (p Param) Token() string {
	switch p.Kind {
	case ParamFamily:
		return familyTokens[p.Family]
	case ParamAny:
		return "any"
	default:
		return p.Type.ShortName()
	}
}

// String renders the pattern as written in a catalog.
func (p Param) String() string {
	switch p.Kind {
	case ParamFamily:
		return string(p.Family)
	case ParamAny:
		return p.AnyID
	default:
		return p.Type.String()
	}
}

// score returns the match score of arg against p. bindings records the
// types bound to polymorphic ids so far.
func (p Param) score(arg types.Type, bindings map[string]types.Type) (int, bool) {
	switch p.Kind {
	case ParamExact:
		if arg.Kind != p.Type.Kind {
			return 0, false
		}
		if p.Type.Length != 0 && arg.Length != p.Type.Length {
			return 0, false
		}
		if p.Type.Precision != 0 && (arg.Precision != p.Type.Precision || arg.Scale != p.Type.Scale) {
			return 0, false
		}
		return scoreExact, true
	case ParamFamily:
		if !p.Family.Contains(arg.Kind) {
			return 0, false
		}
		return scoreFamily, true
	case ParamAny:
		bare := arg.WithNullable(false)
		if bound, ok := bindings[p.AnyID]; ok && bound != bare {
			return 0, false
		}
		bindings[p.AnyID] = bare
		return scoreAny, true
	}
	return 0, false
}

// Variadic marks the last parameter as repeatable at least Min times.
type Variadic struct {
	Min int `json:"min"`
}

// Nullability is the rule deriving output nullability from arguments.
type Nullability string

const (
	// NullabilityMirror makes the output nullable iff any argument is.
	NullabilityMirror Nullability = "MIRROR"

	// NullabilityDeclared uses the declared return type as is.
	NullabilityDeclared Nullability = "DECLARED_OUTPUT"

	// NullabilityDiscrete behaves like NullabilityDeclared for return
	// derivation.
	NullabilityDiscrete Nullability = "DISCRETE"
)

// ReturnRule derives a declaration's return type.
//
// Exactly one of Fixed, AnyID or Derive drives derivation. Expr keeps a
// multi-line derivation program as written; it is displayed but not
// evaluated.
type ReturnRule struct {
	Fixed  *types.Type                             `json:"fixed,omitempty"`
	AnyID  string                                  `json:"any_id,omitempty"`
	Expr   string                                  `json:"expr,omitempty"`
	Derive func([]types.Type) (types.Type, error) `json:"-"`

	// AnyNullable marks the type bound to AnyID as nullable ("any1?").
	AnyNullable bool `json:"any_nullable,omitempty"`
}

// Fixed returns a rule that always yields t.
func Fixed(t types.Type) ReturnRule {
	return ReturnRule{Fixed: &t}
}

// String renders the rule.
func (r ReturnRule) String() string {
	switch {
	case r.Fixed != nil:
		return r.Fixed.String()
	case r.AnyID != "":
		if r.AnyNullable {
			return r.AnyID + "?"
		}
		return r.AnyID
	case r.Expr != "":
		return r.Expr
	case r.Derive != nil:
		return "<derived>"
	}
	return "<none>"
}

// Declaration describes one overload of a catalog function.
//
// Declarations are immutable once added to a Collection.
type Declaration struct {
	Namespace   string      `json:"namespace"`
	Name        string      `json:"name"`
	Class       Class       `json:"class"`
	Description string      `json:"description,omitempty"`
	Params      []Param     `json:"params,omitempty"`
	Variadic    *Variadic   `json:"variadic,omitempty"`
	Return      ReturnRule  `json:"return"`
	Nullability Nullability `json:"nullability,omitempty"`
}

// Signature returns the signature suffix: parameter tokens joined by "_".
func (d *Declaration) Signature() string {
	tokens := make([]string, len(d.Params))
	for i, p := range d.Params {
		tokens[i] = p.Token()
	}
	return strings.Join(tokens, "_")
}

// Key returns the declaration's full key.
func (d *Declaration) Key() Key {
	return Key{Namespace: d.Namespace, Name: d.Name, Signature: d.Signature()}
}

// Match reports whether args fit the parameter patterns, and the match
// score when they do. Nullability never affects matching.
func (d *Declaration) Match(args []types.Type) (int, bool) {
	n := len(d.Params)
	if d.Variadic == nil {
		if len(args) != n {
			return 0, false
		}
	} else {
		if n == 0 || len(args) < n-1+d.Variadic.Min {
			return 0, false
		}
	}

	bindings := make(map[string]types.Type)
	total := 0
	for i, arg := range args {
		p := d.Params[min(i, n-1)]
		s, ok := p.score(arg, bindings)
		if !ok {
			return 0, false
		}
		total += s
	}
	return total, true
}

// ReturnType derives the output type for args, which must match d.
func (d *Declaration) ReturnType(args []types.Type) (types.Type, error) {
	var out types.Type
	switch {
	case d.Return.Derive != nil:
		t, err := d.Return.Derive(args)
		if err != nil {
			return types.Type{}, err
		}
		out = t
	case d.Return.Fixed != nil:
		out = *d.Return.Fixed
	case d.Return.AnyID != "":
		bindings := make(map[string]types.Type)
		for i, arg := range args {
			if len(d.Params) == 0 {
				break
			}
			d.Params[min(i, len(d.Params)-1)].score(arg, bindings)
		}
		bound, ok := bindings[d.Return.AnyID]
		if !ok {
			return types.Type{}, fmt.Errorf("%s: return type %s is not bound by any argument", d.Key(), d.Return.AnyID)
		}
		out = bound.WithNullable(d.Return.AnyNullable)
	default:
		return types.Type{}, fmt.Errorf("%s: return type %q cannot be derived", d.Key(), d.Return.String())
	}

	switch d.Nullability {
	case NullabilityDeclared, NullabilityDiscrete:
		return out, nil
	}
	nullable := out.Nullable
	for _, arg := range args {
		nullable = nullable || arg.Nullable
	}
	return out.WithNullable(nullable), nil
}

// String renders the declaration as "name(params) -> return".
func (d *Declaration) String() string {
	params := make([]string, len(d.Params))
	for i, p := range d.Params {
		params[i] = p.String()
	}
	s := d.Name + "(" + strings.Join(params, ", ")
	if d.Variadic != nil {
		s += "..."
	}
	return s + ") -> " + d.Return.String()
}
