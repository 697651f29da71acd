// Package provider supplies role-aware task data retrieval for the gateway.
//
// The gateway only consumes the Provider contract; the backing store is a
// deployment choice. Two implementations exist: an embedded SQLite store and
// a MySQL store that can reach the database through an SSH tunnel.
package provider

import (
	"context"
	"errors"
	"strings"

	"github.com/vku/taskchat/internal/models"
)

// ErrDataUnavailable signals that the store could not be reached or queried.
// Callers degrade to an explicit "no data" reply rather than surfacing it.
var ErrDataUnavailable = errors.New("task data unavailable")

// Provider is the data retrieval contract the gateway consumes. Role and
// task data is fetched fresh per request; nothing is cached across requests
// so admin/user distinctions are never stale.
type Provider interface {
	// Roles returns the role names assigned to a user.
	Roles(ctx context.Context, userID int64) ([]string, error)
	// Tasks returns task records: all of them when isAdmin is set,
	// otherwise only those assigned to userID.
	Tasks(ctx context.Context, userID int64, isAdmin bool) ([]models.Task, error)
}

// IsAdmin reports whether a role set grants admin-wide task visibility.
// Matching is case-insensitive.
func IsAdmin(roles []string) bool {
	for _, role := range roles {
		switch strings.ToUpper(role) {
		case "ADMIN", "ADMINISTRATORS":
			return true
		}
	}
	return false
}
