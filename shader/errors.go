package shader

import "errors"

// ErrShaderContract is returned when a user vertex or fragment kernel is
// bound without one of the argument names the fixed-function stages
// require.
var ErrShaderContract = errors.New("shader: missing required argument")
