package repository

import (
	"errors"
	"fmt"
)

var (
	ErrUnknown                   = errors.New("REPO_UNKNOWN: unknown error")
	ErrAlreadyFetchingIndex      = errors.New("REPO_BUSY: already fetching index")
	ErrAlreadyDownloadingUpdates = errors.New("REPO_BUSY: already downloading updates")
	ErrNoIndex                   = errors.New("REPO_NO_INDEX: no index available")
	ErrNoUpdates                 = errors.New("REPO_NO_UPDATES: no updates available")
)

// RepositoryNotConfigured is returned for a name or URL that no configured
// repository matches.
type RepositoryNotConfigured struct {
	URL string
}

func (e *RepositoryNotConfigured) Error() string {
	return fmt.Sprintf("REPO_NOT_CONFIGURED: no repository was configured for %q", e.URL)
}

// StatusCode reports a response other than 200 OK.
type StatusCode struct {
	Code int
	URL  string
}

func (e *StatusCode) Error() string {
	return fmt.Sprintf("REPO_STATUS: unexpected HTTP status code %d for %s", e.Code, e.URL)
}
