package contacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdxmph/contacts/internal/storage"
	"github.com/pdxmph/contacts/internal/validation"
)

// DefaultKey is the storage key holding the state snapshot
const DefaultKey = "state"

var (
	// ErrNotFound is returned when no contact has the given id
	ErrNotFound = errors.New("contact not found")
	// ErrDuplicateEmail is returned when another contact already uses the email
	ErrDuplicateEmail = errors.New("email already in use")

	errUnchanged = errors.New("unchanged")
)

// Store owns the application state and mirrors every change to storage
type Store struct {
	mu      sync.RWMutex
	state   State
	backend storage.Backend
	key     string
	schema  *validation.Schema
	log     *zap.SugaredLogger
	newID   func() string
	now     func() time.Time
}

// Option configures a Store
type Option func(*Store)

// WithKey stores the snapshot under key instead of DefaultKey
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// WithLogger sets the store's logger
func WithLogger(log *zap.SugaredLogger) Option {
	return func(s *Store) { s.log = log.Named("store") }
}

// WithIDGenerator replaces the uuid generator
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// WithClock replaces time.Now
func WithClock(fn func() time.Time) Option {
	return func(s *Store) { s.now = fn }
}

// NewStore creates a store over backend. Call Load before use.
func NewStore(backend storage.Backend, opts ...Option) *Store {
	s := &Store{
		state:   InitialState(),
		backend: backend,
		key:     DefaultKey,
		schema:  validation.Contact,
		log:     zap.NewNop().Sugar(),
		newID:   uuid.NewString,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open creates a store and loads its state
func Open(ctx context.Context, backend storage.Backend, opts ...Option) (*Store, error) {
	s := NewStore(backend, opts...)
	if err := s.Load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Backend returns the underlying storage backend
func (s *Store) Backend() storage.Backend {
	return s.backend
}

// Key returns the storage key of the snapshot
func (s *Store) Key() string {
	return s.key
}

// Load reads the snapshot from storage. When storage holds nothing yet it
// is initialized with the empty state. Tooltip and editing flags never
// survive a load.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, found, err := s.read(ctx)
	if err != nil {
		return err
	}
	if !found {
		s.log.Infow("no stored state, initializing", "backend", s.backend.Name(), "key", s.key)
		if err := s.write(ctx, st); err != nil {
			return err
		}
	}

	st.IsTooltipActive = false
	st.IsEditing = false
	s.state = st
	return nil
}

// Reload picks up a snapshot written by another process. Contacts,
// favorites and the selection come from storage; this session's UI flags
// are kept.
func (s *Store) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, _, err := s.read(ctx)
	if err != nil {
		return err
	}
	s.state = s.keepLocalFlags(st)
	s.log.Debugw("state reloaded", "contacts", len(st.Contacts))
	return nil
}

// keepLocalFlags copies this session's UI flags onto a stored snapshot
func (s *Store) keepLocalFlags(st State) State {
	st.IsEditing = s.state.IsEditing
	st.IsSelecting = s.state.IsSelecting
	st.IsTooltipActive = s.state.IsTooltipActive
	return st
}

// latest returns the stored snapshot with this session's UI flags. When
// storage holds nothing the in-memory state is used.
func (s *Store) latest(ctx context.Context) (State, error) {
	st, found, err := s.read(ctx)
	if err != nil {
		return State{}, err
	}
	if !found {
		return s.state.Clone(), nil
	}
	return s.keepLocalFlags(st), nil
}

// read decodes the stored snapshot over the initial state
func (s *Store) read(ctx context.Context) (State, bool, error) {
	st := InitialState()

	data, err := s.backend.Get(ctx, s.key)
	if errors.Is(err, storage.ErrNotFound) {
		return st, false, nil
	}
	if err != nil {
		return st, false, fmt.Errorf("reading state: %w", err)
	}

	if err := json.Unmarshal(data, &st); err != nil {
		return st, false, fmt.Errorf("decoding state: %w", err)
	}
	if st.Contacts == nil {
		st.Contacts = []Contact{}
	}
	if st.Favorites == nil {
		st.Favorites = IDSet{}
	}
	if st.Selected == nil {
		st.Selected = IDSet{}
	}
	st.prune()
	return st, true, nil
}

func (s *Store) write(ctx context.Context, st State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	if err := s.backend.Set(ctx, s.key, data); err != nil {
		return fmt.Errorf("saving state: %w", err)
	}
	return nil
}

// mutate applies fn to the latest stored snapshot, persists the result and
// only then makes it current. Starting from storage rather than memory
// keeps writes made by other processes since the last load.
func (s *Store) mutate(ctx context.Context, fn func(st *State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	base, err := s.latest(ctx)
	if err != nil {
		return err
	}
	next := base.Clone()
	if err := fn(&next); err != nil {
		if errors.Is(err, errUnchanged) {
			s.state = base
			return nil
		}
		return err
	}
	if err := s.write(ctx, next); err != nil {
		return err
	}
	s.state = next
	return nil
}

func (s *Store) nextID(st *State) string {
	for {
		id := s.newID()
		if st.indexOf(id) < 0 {
			return id
		}
	}
}

// Add validates in and appends a new contact
func (s *Store) Add(ctx context.Context, in Input) (Contact, error) {
	in = in.trimmed()
	if errs := s.schema.Validate(in.Values()); len(errs) > 0 {
		return Contact{}, errs
	}

	var created Contact
	err := s.mutate(ctx, func(st *State) error {
		if st.emailTaken(in.Email, "") {
			return fmt.Errorf("%w: %s", ErrDuplicateEmail, in.Email)
		}
		now := s.now()
		created = Contact{
			ID:          s.nextID(st),
			Name:        in.Name,
			Surname:     in.Surname,
			Email:       in.Email,
			PhoneNumber: in.PhoneNumber,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		st.Contacts = append(st.Contacts, created)
		return nil
	})
	if err != nil {
		return Contact{}, err
	}

	s.log.Infow("contact added", "id", created.ID)
	return created, nil
}

// Update replaces the fields of contact id. The id never changes, so an
// edited email keeps the contact's identity.
func (s *Store) Update(ctx context.Context, id string, in Input) (Contact, error) {
	in = in.trimmed()
	if errs := s.schema.Validate(in.Values()); len(errs) > 0 {
		return Contact{}, errs
	}

	var updated Contact
	err := s.mutate(ctx, func(st *State) error {
		i := st.indexOf(id)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if st.emailTaken(in.Email, id) {
			return fmt.Errorf("%w: %s", ErrDuplicateEmail, in.Email)
		}
		c := &st.Contacts[i]
		c.Name = in.Name
		c.Surname = in.Surname
		c.Email = in.Email
		c.PhoneNumber = in.PhoneNumber
		c.UpdatedAt = s.now()
		updated = *c
		return nil
	})
	if err != nil {
		return Contact{}, err
	}

	s.log.Infow("contact updated", "id", id)
	return updated, nil
}

// Delete removes contact id along with its favorite and selection marks
func (s *Store) Delete(ctx context.Context, id string) error {
	err := s.mutate(ctx, func(st *State) error {
		i := st.indexOf(id)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		st.Contacts = append(st.Contacts[:i], st.Contacts[i+1:]...)
		delete(st.Favorites, id)
		delete(st.Selected, id)
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Infow("contact deleted", "id", id)
	return nil
}

// ToggleFavorite flips the favorite mark and returns the new value
func (s *Store) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	var on bool
	err := s.mutate(ctx, func(st *State) error {
		if st.indexOf(id) < 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		on = !st.Favorites.Has(id)
		if on {
			st.Favorites[id] = struct{}{}
		} else {
			delete(st.Favorites, id)
		}
		return nil
	})
	return on, err
}

// ToggleSelected flips the selection mark of id and returns the new value.
// Selecting a contact turns on select mode.
func (s *Store) ToggleSelected(ctx context.Context, id string) (bool, error) {
	var on bool
	err := s.mutate(ctx, func(st *State) error {
		if st.indexOf(id) < 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		on = !st.Selected.Has(id)
		if on {
			st.Selected[id] = struct{}{}
			st.IsSelecting = true
		} else {
			delete(st.Selected, id)
		}
		return nil
	})
	return on, err
}

// SetSelecting turns select mode on or off. Leaving select mode clears
// the selection.
func (s *Store) SetSelecting(ctx context.Context, on bool) error {
	return s.mutate(ctx, func(st *State) error {
		if st.IsSelecting == on && (on || len(st.Selected) == 0) {
			return errUnchanged
		}
		st.IsSelecting = on
		if !on {
			st.Selected = IDSet{}
		}
		return nil
	})
}

// DeleteSelected removes every selected contact, leaves select mode and
// returns how many contacts were removed
func (s *Store) DeleteSelected(ctx context.Context) (int, error) {
	var removed []string
	err := s.mutate(ctx, func(st *State) error {
		removed = st.removeAll(st.Selected)
		st.Selected = IDSet{}
		st.IsSelecting = false
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.log.Infow("bulk delete", "count", len(removed), "ids", removed)
	return len(removed), nil
}

// DeleteIDs removes exactly the contacts in ids, whatever the current
// selection holds, then clears the selection and leaves select mode. Ids
// that no longer exist are skipped. It returns how many contacts were
// removed.
func (s *Store) DeleteIDs(ctx context.Context, ids []string) (int, error) {
	targets := make(IDSet, len(ids))
	for _, id := range ids {
		targets[id] = struct{}{}
	}

	var removed []string
	err := s.mutate(ctx, func(st *State) error {
		removed = st.removeAll(targets)
		st.Selected = IDSet{}
		st.IsSelecting = false
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.log.Infow("bulk delete", "count", len(removed), "ids", removed)
	return len(removed), nil
}

// SetEditing records whether a contact form is open
func (s *Store) SetEditing(ctx context.Context, on bool) error {
	return s.mutate(ctx, func(st *State) error {
		if st.IsEditing == on {
			return errUnchanged
		}
		st.IsEditing = on
		return nil
	})
}

// SetTooltipActive records whether a row's action menu is showing
func (s *Store) SetTooltipActive(ctx context.Context, on bool) error {
	return s.mutate(ctx, func(st *State) error {
		if st.IsTooltipActive == on {
			return errUnchanged
		}
		st.IsTooltipActive = on
		return nil
	})
}

// Import adds every valid entry with an unused email in a single write.
// Rejected entries are reported by position.
func (s *Store) Import(ctx context.Context, entries []Input) ([]Contact, []error) {
	var (
		added   []Contact
		skipped []error
	)

	err := s.mutate(ctx, func(st *State) error {
		for i, in := range entries {
			in = in.trimmed()
			if errs := s.schema.Validate(in.Values()); len(errs) > 0 {
				skipped = append(skipped, fmt.Errorf("entry %d: %w", i+1, errs))
				continue
			}
			if st.emailTaken(in.Email, "") {
				skipped = append(skipped, fmt.Errorf("entry %d: %w: %s", i+1, ErrDuplicateEmail, in.Email))
				continue
			}
			now := s.now()
			c := Contact{
				ID:          s.nextID(st),
				Name:        in.Name,
				Surname:     in.Surname,
				Email:       in.Email,
				PhoneNumber: in.PhoneNumber,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			st.Contacts = append(st.Contacts, c)
			added = append(added, c)
		}
		if len(added) == 0 {
			return errUnchanged
		}
		return nil
	})
	if err != nil {
		return nil, append(skipped, err)
	}

	s.log.Infow("contacts imported", "added", len(added), "skipped", len(skipped))
	return added, skipped
}

// Contacts returns the contacts in insertion order
func (s *Store) Contacts() []Contact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Contact{}, s.state.Contacts...)
}

// Favorites returns the favorite contacts in insertion order
func (s *Store) Favorites() []Contact {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var favs []Contact
	for _, c := range s.state.Contacts {
		if s.state.Favorites.Has(c.ID) {
			favs = append(favs, c)
		}
	}
	return favs
}

// Get returns the contact with the given id
func (s *Store) Get(id string) (Contact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.state.indexOf(id); i >= 0 {
		return s.state.Contacts[i], true
	}
	return Contact{}, false
}

// FindByEmail looks a contact up by email, ignoring case
func (s *Store) FindByEmail(email string) (Contact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email = strings.TrimSpace(email)
	for _, c := range s.state.Contacts {
		if strings.EqualFold(c.Email, email) {
			return c, true
		}
	}
	return Contact{}, false
}

// Resolve finds a contact by id or, failing that, by email
func (s *Store) Resolve(ref string) (Contact, error) {
	if c, ok := s.Get(ref); ok {
		return c, nil
	}
	if c, ok := s.FindByEmail(ref); ok {
		return c, nil
	}
	return Contact{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
}

// IsFavorite reports whether id is marked as favorite
func (s *Store) IsFavorite(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Favorites.Has(id)
}

// IsSelected reports whether id is selected
func (s *Store) IsSelected(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Selected.Has(id)
}

// Snapshot returns a deep copy of the current state
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}
