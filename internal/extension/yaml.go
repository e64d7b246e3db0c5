package extension

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/relbridge/internal/types"
)

// catalogFile is the on-disk layout of a simple extension catalog.
type catalogFile struct {
	ScalarFunctions    []functionEntry `yaml:"scalar_functions"`
	AggregateFunctions []functionEntry `yaml:"aggregate_functions"`
	WindowFunctions    []functionEntry `yaml:"window_functions"`
}

type functionEntry struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Impls       []implEntry `yaml:"impls"`
}

type implEntry struct {
	Args        []argEntry     `yaml:"args"`
	Variadic    *variadicEntry `yaml:"variadic"`
	Nullability string         `yaml:"nullability"`
	Return      string         `yaml:"return"`
}

type argEntry struct {
	Name    string   `yaml:"name"`
	Value   string   `yaml:"value"`
	Options []string `yaml:"options"`
}

type variadicEntry struct {
	Min int `yaml:"min"`
}

// LoadError reports a malformed catalog entry.
type LoadError struct {
	Namespace string
	Function  string
	Message   string
}

func (e *LoadError) Error() string {
	if e.Function != "" {
		return fmt.Sprintf("%s: function %q: %s", e.Namespace, e.Function, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Namespace, e.Message)
}

// Load parses a simple extension catalog and declares its functions under
// namespace.
func Load(namespace string, r io.Reader) (*Collection, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", namespace, err)
	}

	var file catalogFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&file); err != nil && err != io.EOF {
		return nil, &LoadError{Namespace: namespace, Message: fmt.Sprintf("invalid YAML: %v", err)}
	}

	var decls []Declaration
	sections := []struct {
		class   Class
		entries []functionEntry
	}{
		{ClassScalar, file.ScalarFunctions},
		{ClassAggregate, file.AggregateFunctions},
		{ClassWindow, file.WindowFunctions},
	}
	for _, s := range sections {
		for _, fn := range s.entries {
			ds, err := declarationsOf(namespace, s.class, fn)
			if err != nil {
				return nil, err
			}
			decls = append(decls, ds...)
		}
	}

	c, err := NewCollection(decls...)
	if err != nil {
		return nil, &LoadError{Namespace: namespace, Message: err.Error()}
	}
	return c, nil
}

// LoadFile loads a catalog file. An empty namespace defaults to the path.
func LoadFile(namespace, path string) (*Collection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	if namespace == "" {
		namespace = path
	}
	return Load(namespace, f)
}

func declarationsOf(namespace string, class Class, fn functionEntry) ([]Declaration, error) {
	if fn.Name == "" {
		return nil, &LoadError{Namespace: namespace, Message: "function without a name"}
	}
	if len(fn.Impls) == 0 {
		return nil, &LoadError{Namespace: namespace, Function: fn.Name, Message: "no impls"}
	}

	decls := make([]Declaration, 0, len(fn.Impls))
	for i, impl := range fn.Impls {
		d := Declaration{
			Namespace:   namespace,
			Name:        fn.Name,
			Class:       class,
			Description: fn.Description,
			Nullability: NullabilityMirror,
		}
		if impl.Nullability != "" {
			d.Nullability = Nullability(strings.ToUpper(impl.Nullability))
		}

		for j, arg := range impl.Args {
			if arg.Value == "" {
				return nil, &LoadError{
					Namespace: namespace,
					Function:  fn.Name,
					Message:   fmt.Sprintf("impl %d arg %d: enumeration arguments are not supported", i, j),
				}
			}
			p, err := ParseParam(arg.Value)
			if err != nil {
				return nil, &LoadError{
					Namespace: namespace,
					Function:  fn.Name,
					Message:   fmt.Sprintf("impl %d arg %d: %v", i, j, err),
				}
			}
			p.Name = arg.Name
			d.Params = append(d.Params, p)
		}

		if impl.Variadic != nil {
			d.Variadic = &Variadic{Min: impl.Variadic.Min}
		}

		rule, err := ParseReturn(impl.Return)
		if err != nil {
			return nil, &LoadError{
				Namespace: namespace,
				Function:  fn.Name,
				Message:   fmt.Sprintf("impl %d return: %v", i, err),
			}
		}
		d.Return = rule
		decls = append(decls, d)
	}
	return decls, nil
}

// ParseReturn reads a return clause. Multi-line clauses are derivation
// programs whose last line is the result type; the program is kept as Expr.
func ParseReturn(s string) (ReturnRule, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ReturnRule{}, fmt.Errorf("missing return type")
	}

	var rule ReturnRule
	last := s
	if strings.Contains(s, "\n") {
		rule.Expr = s
		lines := strings.Split(s, "\n")
		last = strings.TrimSpace(lines[len(lines)-1])
	}

	lower := strings.TrimSuffix(strings.ToLower(last), "?")
	if isAnyID(lower) {
		rule.AnyID = lower
		rule.AnyNullable = strings.HasSuffix(last, "?")
		return rule, nil
	}
	t, err := types.Parse(last)
	if err != nil {
		if rule.Expr != "" {
			return rule, nil
		}
		return ReturnRule{}, err
	}
	rule.Fixed = &t
	return rule, nil
}
