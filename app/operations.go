package app

import (
	"fmt"
	"net/mail"
	"slices"
	"strings"
)

// SystemUser attributes activity that no person triggered.
const SystemUser = "system"

// LogActivity records an entry at the head of the activity log.
func (st *State) LogActivity(activity, user string) (ActivityEntry, error) {
	if strings.TrimSpace(activity) == "" {
		return ActivityEntry{}, fmt.Errorf("%w: activity is required", ErrInvalid)
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.logActivityLocked(activity, user), nil
}

func (st *State) logActivityLocked(activity, user string) ActivityEntry {
	if user == "" {
		user = SystemUser
	}
	entry := ActivityEntry{
		ID:        st.newULID(),
		Activity:  activity,
		User:      user,
		Timestamp: st.timestamp(),
	}
	entries := make([]ActivityEntry, 0, len(st.activity)+1)
	entries = append(entries, entry)
	entries = append(entries, st.activity...)
	if len(entries) > MaxActivityEntries {
		entries = entries[:MaxActivityEntries]
	}
	st.activity = entries
	st.save(KeyActivityLogs)
	return entry
}

// save persists one collection from its in-memory copy.
func (st *State) save(name string) {
	if b, ok := st.collections[name]; ok {
		b.persist()
	}
}

func required(fields map[string]string) error {
	var missing []string
	for name, value := range fields {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("%w: missing %s", ErrInvalid, strings.Join(missing, ", "))
	}
	return nil
}

// PublishUpdate appends a release note.
func (st *State) PublishUpdate(version, summary, by string) (Update, error) {
	if err := required(map[string]string{"version": version, "summary": summary}); err != nil {
		return Update{}, err
	}
	id, err := newID("upd_")
	if err != nil {
		return Update{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	u := Update{ID: id, Version: version, Summary: summary, PublishedAt: st.timestamp()}
	st.updates = append(st.updates, u)
	st.save(KeyUpdates)
	st.logActivityLocked("Update published: "+version, by)
	return u, nil
}

// PostAnnouncement appends an announcement.
func (st *State) PostAnnouncement(title, content, author string) (Announcement, error) {
	if err := required(map[string]string{"title": title, "content": content, "author": author}); err != nil {
		return Announcement{}, err
	}
	id, err := newID("ann_")
	if err != nil {
		return Announcement{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	a := Announcement{ID: id, Title: title, Content: content, Author: author, Date: st.timestamp()}
	st.announcements = append(st.announcements, a)
	st.save(KeyAnnouncements)
	st.logActivityLocked("New announcement posted: "+title, author)
	return a, nil
}

// AddUser registers a user under the next user id.
func (st *State) AddUser(name, email string, role Role, status Status, by string) (User, error) {
	if err := required(map[string]string{"name": name, "email": email}); err != nil {
		return User{}, err
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return User{}, fmt.Errorf("%w: email %q: %v", ErrInvalid, email, err)
	}
	if role == "" {
		role = RoleMember
	}
	if status == "" {
		status = StatusActive
	}
	if err := role.valid(); err != nil {
		return User{}, err
	}
	if err := status.valid(); err != nil {
		return User{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	u := User{
		ID:     st.store.Next(CounterUserID, 1),
		Name:   name,
		Email:  email,
		Role:   role,
		Status: status,
	}
	st.users = append(st.users, u)
	st.save(KeyUsers)
	st.logActivityLocked(fmt.Sprintf("User added: %s (%d)", name, u.ID), by)
	return u, nil
}

// RemoveUser deletes a user by id.
func (st *State) RemoveUser(id int64, by string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	i := slices.IndexFunc(st.users, func(u User) bool { return u.ID == id })
	if i < 0 {
		return fmt.Errorf("%w: user %d", ErrNotFound, id)
	}
	name := st.users[i].Name
	st.users = slices.Delete(slices.Clone(st.users), i, i+1)
	st.save(KeyUsers)
	st.logActivityLocked(fmt.Sprintf("User removed: %s (%d)", name, id), by)
	return nil
}

// OpenThread starts a forum thread under the next thread id.
func (st *State) OpenThread(title, author string) (Thread, error) {
	if err := required(map[string]string{"title": title, "author": author}); err != nil {
		return Thread{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	t := Thread{
		ID:           st.store.Next(CounterThreadID, 1),
		Title:        title,
		Author:       author,
		LastActivity: st.timestamp(),
	}
	st.threads = append(st.threads, t)
	st.save(KeyForumThreads)
	st.logActivityLocked("Thread opened: "+title, author)
	return t, nil
}

// SetPreference stores a user's display preferences.
func (st *State) SetPreference(user string, p Preference) error {
	if err := required(map[string]string{"user": user, "theme": p.Theme, "language": p.Language}); err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	next := make(map[string]Preference, len(st.preferences)+1)
	for k, v := range st.preferences {
		next[k] = v
	}
	next[user] = p
	st.preferences = next
	st.save(KeyPreferences)
	return nil
}

// Activity returns the activity log, newest first.
func (st *State) Activity() []ActivityEntry {
	st.mu.Lock()
	defer st.mu.Unlock()
	return slices.Clone(st.activity)
}

// Users returns the registered users.
func (st *State) Users() []User {
	st.mu.Lock()
	defer st.mu.Unlock()
	return slices.Clone(st.users)
}
