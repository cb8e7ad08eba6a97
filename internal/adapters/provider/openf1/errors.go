package openf1

import (
	"errors"
	"fmt"

	"github.com/okian/pitwall/internal/adapters/provider"
)

// Sentinel kinds for REST client errors.
var (
	ErrRateLimited = fmt.Errorf("%w: rate limited", provider.ErrUnavailable)
	ErrServer      = fmt.Errorf("%w: server error", provider.ErrUnavailable)
	ErrRejected    = fmt.Errorf("%w: request rejected", provider.ErrUnavailable)
	ErrNoClient    = errors.New("openf1 client is nil")

	// errNoResults is the API's 404 for a query that matched nothing. It is
	// never cached and GetJSON turns it into an empty array.
	errNoResults = errors.New("no results")
)
