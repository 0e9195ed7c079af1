// Package domain defines domain-specific errors.
// These errors represent business logic failures and are independent of infrastructure.
package domain

import (
	"errors"
	"fmt"
)

// Resolution failure kinds. Match them with errors.Is against a *ResolveError.
var (
	// ErrNetwork is a transport or connectivity failure while talking to the catalog.
	ErrNetwork = errors.New("network error")

	// ErrUnknown is any other resolution failure.
	ErrUnknown = errors.New("unknown error")

	// ErrArtistNotFound is returned when no artist matches a query or the artist has no playable songs.
	ErrArtistNotFound = errors.New("artist not found")

	// ErrAlbumNotFound is returned when no album matches a query or the album has no playable songs.
	ErrAlbumNotFound = errors.New("album not found")

	// ErrPlaylistNotFound is returned when no playlist matches a query or it has no playable songs.
	ErrPlaylistNotFound = errors.New("playlist not found")
)

// Controller, engine and store errors.
var (
	// ErrNotInitialized is returned when an operation is attempted on an uninitialized component.
	ErrNotInitialized = errors.New("component not initialized")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("component already started")

	// ErrNoMediaLoaded is returned when transport commands reach an engine with nothing loaded.
	ErrNoMediaLoaded = errors.New("no media loaded")

	// ErrUnsupportedFormat is returned when a stream container cannot be decoded.
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrInvalidMediaURI is returned when a media item has no usable URI.
	ErrInvalidMediaURI = errors.New("invalid media uri")

	// ErrInvalidVolume is returned when the volume is out of valid range (0.0-1.0).
	ErrInvalidVolume = errors.New("invalid volume: must be between 0.0 and 1.0")

	// ErrInvalidPosition is returned when seeking to an invalid position.
	ErrInvalidPosition = errors.New("invalid playback position")

	// ErrPlaybackFailed is returned when playback cannot be started.
	ErrPlaybackFailed = errors.New("playback failed")

	// ErrSeekUnsupported is returned when a bridge asks a controller that cannot seek.
	ErrSeekUnsupported = errors.New("seeking not supported")

	// ErrBridgeUnavailable is returned when a session bridge cannot be reached.
	ErrBridgeUnavailable = errors.New("session bridge unavailable")
)

// ResolveError is the only error type the song resolver returns.
// Kind is one of the resolution sentinels above.
type ResolveError struct {
	Op   string // Resolver operation (e.g., "resolve", "resolve_artist")
	Kind error  // ErrNetwork, ErrUnknown, ErrArtistNotFound, ...
	Err  error  // Underlying error (may be nil for not-found kinds)
}

// Error implements the error interface.
func (e *ResolveError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Kind)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *ResolveError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewResolveError creates a new ResolveError.
func NewResolveError(op string, kind error, err error) *ResolveError {
	return &ResolveError{Op: op, Kind: kind, Err: err}
}

// CatalogError represents a failed call against the remote catalog.
type CatalogError struct {
	Op         string // Operation that failed (e.g., "search_songs")
	Endpoint   string // Request path
	StatusCode int    // HTTP status (0 for transport failures)
	Err        error  // Underlying error
}

// Error implements the error interface.
func (e *CatalogError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("catalog %s %s: status %d", e.Op, e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("catalog %s %s: %v", e.Op, e.Endpoint, e.Err)
}

// Unwrap returns the underlying error.
func (e *CatalogError) Unwrap() error {
	return e.Err
}

// NewCatalogError creates a new CatalogError.
func NewCatalogError(op, endpoint string, status int, err error) *CatalogError {
	return &CatalogError{Op: op, Endpoint: endpoint, StatusCode: status, Err: err}
}

// AudioEngineError represents an error from the audio engine.
// This wraps low-level audio library errors with additional context.
type AudioEngineError struct {
	Op      string // Operation that failed (e.g., "load", "play", "stop")
	URI     string // Media URI (if applicable)
	Message string // Error message
	Err     error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *AudioEngineError) Error() string {
	if e.URI != "" {
		return fmt.Sprintf("audio engine %s failed for '%s': %s", e.Op, e.URI, e.Message)
	}
	return fmt.Sprintf("audio engine %s failed: %s", e.Op, e.Message)
}

// Unwrap returns the underlying error.
func (e *AudioEngineError) Unwrap() error {
	return e.Err
}

// NewAudioEngineError creates a new AudioEngineError.
func NewAudioEngineError(op, uri, message string, err error) *AudioEngineError {
	return &AudioEngineError{
		Op:      op,
		URI:     uri,
		Message: message,
		Err:     err,
	}
}

// RepositoryError represents an error from a queue store.
// This wraps persistence layer errors with additional context.
type RepositoryError struct {
	Op      string // Operation that failed (e.g., "save", "load", "clear")
	Type    string // Store type (e.g., "preferences", "file", "gcs")
	Message string // Error message
	Err     error  // Underlying error
}

// Error implements the error interface.
func (e *RepositoryError) Error() string {
	return fmt.Sprintf("repository %s.%s failed: %s", e.Type, e.Op, e.Message)
}

// Unwrap returns the underlying error.
func (e *RepositoryError) Unwrap() error {
	return e.Err
}

// NewRepositoryError creates a new RepositoryError.
func NewRepositoryError(op, repoType, message string, err error) *RepositoryError {
	return &RepositoryError{
		Op:      op,
		Type:    repoType,
		Message: message,
		Err:     err,
	}
}

// ServiceError represents an error from a service layer operation.
type ServiceError struct {
	Service string // Service name (e.g., "Controller", "Resolver")
	Op      string // Operation that failed
	Message string // Error message
	Err     error  // Underlying error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	return fmt.Sprintf("service %s.%s failed: %s", e.Service, e.Op, e.Message)
}

// Unwrap returns the underlying error.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a new ServiceError.
func NewServiceError(service, op, message string, err error) *ServiceError {
	return &ServiceError{
		Service: service,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// UserMessage turns any error into a short message fit for end users.
// Transport details never leak through.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNetwork):
		return "Network error. Please check your connection and try again."
	case errors.Is(err, ErrArtistNotFound):
		return "Artist not found."
	case errors.Is(err, ErrAlbumNotFound):
		return "Album not found."
	case errors.Is(err, ErrPlaylistNotFound):
		return "Playlist not found."
	case errors.Is(err, ErrBridgeUnavailable):
		return "No running player found."
	}

	var re *ResolveError
	if errors.As(err, &re) && re.Err != nil {
		return re.Err.Error()
	}
	return err.Error()
}
