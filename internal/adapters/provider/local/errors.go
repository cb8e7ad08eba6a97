package local

import (
	"fmt"

	"github.com/okian/pitwall/internal/adapters/provider"
)

// ErrNoDataRoot is returned when the provider has no session directory.
var ErrNoDataRoot = fmt.Errorf("%w: local data root not set", provider.ErrMisconfigured)
