package errors

import sterrors "errors"

var (
	ErrInvalidHandler     = sterrors.New("companion: handler must not be nil")
	ErrRouteNameRequired  = sterrors.New("companion: route name is required")
	ErrEndpointRequired   = sterrors.New("companion: endpoint is required")
	ErrNotConnected       = sterrors.New("companion: native host is not connected")
	ErrConnClosed         = sterrors.New("companion: connection closed")
	ErrFrameTooLarge      = sterrors.New("companion: frame exceeds maximum size")
	ErrDownloaderRequired = sterrors.New("companion: downloader is required")
	ErrRequesterRequired  = sterrors.New("companion: native requester is required")
	ErrOptionsRequired    = sterrors.New("companion: options are required")
)
