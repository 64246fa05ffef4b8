// ABOUTME: Data types and error taxonomy for chatvault persistence
// ABOUTME: Defines User, Profile, Message, Stat structs and the sentinel errors callers match on

package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist.
// It is a lookup miss, not a failure, and is never logged as an error.
var ErrNotFound = errors.New("not found")

// ErrForeignKey is returned when an operation references an entity id
// that does not exist (e.g. creating a profile for an unknown user).
var ErrForeignKey = errors.New("foreign key violation")

// ErrBusy is returned when a write still cannot acquire the database
// lock after the internal bounded retries. Callers may retry.
var ErrBusy = errors.New("storage busy")

// ErrUnavailable is returned for filesystem or I/O failures. It is fatal
// to the current operation and is not retried.
var ErrUnavailable = errors.New("storage unavailable")

// User is an account record with an opaque attribute document.
// Users are upserted by caller-supplied id and never deleted.
type User struct {
	ID         string
	Attributes map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Profile is a per-user configuration document. A user may own any
// number of profiles; every profile references an existing user.
type Profile struct {
	ID        string
	UserID    string
	Config    map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Role constants for message senders.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one transcript entry for a profile. Messages are
// append-only; Seq is assigned by the database and is globally
// monotonic across all profiles.
type Message struct {
	Seq       int64
	ProfileID string
	Role      string
	Content   string
	CreatedAt time.Time
}

// Stat is an append-only usage record. Stats are not scoped to a
// profile; Detail is an opaque document.
type Stat struct {
	Seq       int64
	Category  string
	Detail    map[string]any
	CreatedAt time.Time
}

// StatFilter narrows ListStats to a time range. Zero fields mean
// unbounded on that side.
type StatFilter struct {
	Since time.Time
	Until time.Time
}

// StatCount is one row of the per-day aggregation returned by
// AggregateStats.
type StatCount struct {
	Date     string
	Category string
	Count    int64
}

// Progress status constants.
const (
	ProgressPending    = "pending"
	ProgressInProgress = "in_progress"
	ProgressCompleted  = "completed"
)

// Progress tracks one advisory work item for a profile, keyed by
// (profile, category, item).
type Progress struct {
	ID         int64
	ProfileID  string
	Category   string
	Item       string
	Status     string
	Completion int
	Notes      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Summary is a stored conversation summary for a profile.
type Summary struct {
	ID        int64
	ProfileID string
	Period    string
	Content   string
	KeyTopics []string
	CreatedAt time.Time
}

// Health reports the outcome of the trivial read-only probe used by the
// /health collaborator.
type Health struct {
	Users    int64
	Profiles int64
	Messages int64
	Stats    int64
}
