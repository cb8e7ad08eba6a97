package api

// Default and maximum page sizes for GET /predictions.
const (
	DefaultListLimit = 20
	DefaultMaxLimit  = 100
	defaultMaxBody   = 1 << 20
)

// Option configures the predictions handler.
type Option func(*PredictionsHandler)

// WithMaxLimit caps the limit accepted by GET /predictions.
func WithMaxLimit(n int) Option {
	return func(h *PredictionsHandler) {
		if n > 0 {
			h.maxLimit = n
		}
	}
}

// WithMaxBodyBytes caps the size of a POST /predictions body.
func WithMaxBodyBytes(n int64) Option {
	return func(h *PredictionsHandler) {
		if n > 0 {
			h.maxBody = n
		}
	}
}
