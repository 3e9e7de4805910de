package app

import (
	"fmt"

	"github.com/stevemurr/dashstate/schema"
	"github.com/stevemurr/dashstate/shadow"
)

// Collection keys. These are also the primary slot names.
const (
	KeyUpdates       = "updates"
	KeyActivityLogs  = "activityLogs"
	KeyUsers         = "users"
	KeyForumThreads  = "forumThreads"
	KeyAnnouncements = "announcements"
	KeyPreferences   = "userPreferences"
)

// Shadowed counters.
const (
	CounterUserID   = "nextUserId"
	CounterThreadID = "nextThreadId"
)

// SessionSlot is a bare slot marking a logged-in session. It does not have
// a backup.
const SessionSlot = "adminToken"

// MaxActivityEntries caps the activity log; older entries fall off the end.
const MaxActivityEntries = 100

type Update struct {
	ID          string `json:"id"`
	Version     string `json:"version"`
	Summary     string `json:"summary"`
	PublishedAt string `json:"publishedAt,omitempty"`
}

type ActivityEntry struct {
	ID        string `json:"id"`
	Activity  string `json:"activity"`
	User      string `json:"user"`
	Timestamp string `json:"timestamp"`
}

type User struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	Status    Status `json:"status"`
	LastLogin string `json:"lastLogin,omitempty"`
}

type Thread struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Author       string `json:"author"`
	Replies      int    `json:"replies"`
	LastActivity string `json:"lastActivity,omitempty"`
}

type Announcement struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Author  string `json:"author"`
	Date    string `json:"date"`
}

type Preference struct {
	Theme    string `json:"theme"`
	Language string `json:"language"`
}

var (
	updatesCollection = shadow.Collection[[]Update]{
		Key: KeyUpdates,
		Schema: schema.Records(
			schema.Req("id", schema.String),
			schema.Req("version", schema.String),
			schema.Req("summary", schema.String),
			schema.Opt("publishedAt", schema.String),
		),
		Default: func() []Update { return []Update{} },
	}

	activityCollection = shadow.Collection[[]ActivityEntry]{
		Key: KeyActivityLogs,
		Schema: schema.Records(
			schema.Req("id", schema.String),
			schema.Req("activity", schema.String),
			schema.Req("user", schema.String),
			schema.Req("timestamp", schema.String),
		),
		Default: func() []ActivityEntry { return []ActivityEntry{} },
	}

	usersCollection = shadow.Collection[[]User]{
		Key: KeyUsers,
		Schema: schema.Records(
			schema.Req("id", schema.Integer),
			schema.Req("name", schema.String),
			schema.Req("email", schema.String),
			schema.Req("role", schema.String),
			schema.Req("status", schema.String),
			schema.Opt("lastLogin", schema.String),
		),
		Default: func() []User { return []User{} },
	}

	threadsCollection = shadow.Collection[[]Thread]{
		Key: KeyForumThreads,
		Schema: schema.Records(
			schema.Req("id", schema.Integer),
			schema.Req("title", schema.String),
			schema.Req("author", schema.String),
			schema.Opt("replies", schema.Integer),
			schema.Opt("lastActivity", schema.String),
		),
		Default: func() []Thread { return []Thread{} },
	}

	announcementsCollection = shadow.Collection[[]Announcement]{
		Key: KeyAnnouncements,
		Schema: schema.Records(
			schema.Req("id", schema.String),
			schema.Req("title", schema.String),
			schema.Req("content", schema.String),
			schema.Req("author", schema.String),
			schema.Req("date", schema.String),
		),
		Default: func() []Announcement { return []Announcement{} },
	}

	preferencesCollection = shadow.Collection[map[string]Preference]{
		Key: KeyPreferences,
		Schema: schema.Entries(
			schema.Req("theme", schema.String),
			schema.Req("language", schema.String),
		),
		Default: func() map[string]Preference { return map[string]Preference{} },
	}
)

var schemas = map[string]shadow.Validator{
	KeyUpdates:       updatesCollection.Schema,
	KeyActivityLogs:  activityCollection.Schema,
	KeyUsers:         usersCollection.Schema,
	KeyForumThreads:  threadsCollection.Schema,
	KeyAnnouncements: announcementsCollection.Schema,
	KeyPreferences:   preferencesCollection.Schema,
}

// Schema returns the validator for a collection key. It needs no State,
// so callers can inspect slots without loading (and repairing) them.
func Schema(name string) (shadow.Validator, error) {
	v, ok := schemas[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCollection, name)
	}
	return v, nil
}
