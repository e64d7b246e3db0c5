package extension

import (
	"bytes"
	_ "embed"
	"sync"
)

// BuiltinNamespace is the namespace of the embedded default catalog.
const BuiltinNamespace = "/functions_builtin.yaml"

//go:embed functions_builtin.yaml
var builtinYAML []byte

var (
	builtinOnce sync.Once
	builtin     *Collection
)

// Builtin returns the default catalog: arithmetic, comparison, boolean and
// string scalars, the common aggregates and the ranking window functions.
// The embedded catalog is static, so a load failure is a programming error.
func Builtin() *Collection {
	builtinOnce.Do(func() {
		c, err := Load(BuiltinNamespace, bytes.NewReader(builtinYAML))
		if err != nil {
			panic("extension: builtin catalog: " + err.Error())
		}
		builtin = c
	})
	return builtin
}
