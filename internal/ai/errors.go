package ai

import "errors"

var (
	ErrNoProviders         = errors.New("no ai providers configured")
	ErrProviderUnavailable = errors.New("ai provider unavailable")
	ErrInferenceTimeout    = errors.New("ai inference timeout")
	ErrInvalidResponse     = errors.New("ai provider returned invalid response")
)
