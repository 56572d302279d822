package actor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"golang.org/x/sync/singleflight"
	"gopkg.in/tomb.v2"

	"github.com/iliyamo/flight-seat-service/internal/database"
)

// ErrRegistryStopped is returned when addressing a flight after the
// registry was killed.
const ErrRegistryStopped = errors.ConstError("registry stopped")

// ID is the stable identity of a flight's actor. It is a deterministic
// function of the flight name and safe to use as a file name.
type ID string

// IDFromName derives the actor identity for a flight name.
func IDFromName(name string) ID {
	sum := sha256.Sum256([]byte(name))
	return ID(hex.EncodeToString(sum[:16]))
}

// StoreOpener opens the durable record store belonging to an actor.
type StoreOpener func(id ID) (database.RecordStore, error)

// FileStoreOpener keeps each actor's store in <dir>/<id>.db, so a flight's
// seats survive passivation and process restarts.
func FileStoreOpener(dir string) StoreOpener {
	return func(id ID) (database.RecordStore, error) {
		return database.Open(filepath.Join(dir, string(id)+".db"))
	}
}

// MemoryStoreOpener gives each new actor a fresh in-memory store. State is
// lost when the actor is passivated.
func MemoryStoreOpener() StoreOpener {
	return func(ID) (database.RecordStore, error) {
		return database.Open(database.MemoryPath)
	}
}

// RegistryConfig holds the dependencies of a Registry.
type RegistryConfig struct {
	OpenStore StoreOpener
	Clock     clock.Clock

	// IdleTimeout is how long an actor may go without calls before it is
	// stopped and its store closed. Zero keeps actors alive until the
	// registry stops.
	IdleTimeout time.Duration

	// ReapInterval is how often idle actors are looked for. Defaults to
	// IdleTimeout.
	ReapInterval time.Duration

	SelfAssign SelfAssignMode
}

// Validate checks the config.
func (c RegistryConfig) Validate() error {
	if c.OpenStore == nil {
		return errors.NotValidf("nil OpenStore")
	}
	if c.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	if c.IdleTimeout < 0 {
		return errors.NotValidf("negative IdleTimeout")
	}
	if c.ReapInterval < 0 {
		return errors.NotValidf("negative ReapInterval")
	}
	return nil
}

// Registry resolves flight names to live actors, creating an actor the
// first time a flight is addressed. At most one actor per identity is live
// at any time.
type Registry struct {
	tomb tomb.Tomb
	cfg  RegistryConfig

	creating singleflight.Group

	mu       sync.Mutex
	actors   map[ID]*Actor
	retiring map[ID]*Actor
}

// NewRegistry starts a registry.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if cfg.ReapInterval == 0 {
		cfg.ReapInterval = cfg.IdleTimeout
	}
	r := &Registry{
		cfg:      cfg,
		actors:   make(map[ID]*Actor),
		retiring: make(map[ID]*Actor),
	}
	r.tomb.Go(r.loop)
	return r, nil
}

// Kill stops the registry and every actor it owns.
func (r *Registry) Kill() { r.tomb.Kill(nil) }

// Wait blocks until the registry and all of its actors have stopped.
func (r *Registry) Wait() error { return r.tomb.Wait() }

// Len returns the number of live actors.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.actors)
}

// Actor returns the live actor for name, creating it if absent.
func (r *Registry) Actor(name string) (*Actor, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.NotValidf("empty flight name")
	}
	id := IDFromName(name)
	if a, err := r.lookup(id); a != nil || err != nil {
		return a, err
	}
	v, err, _ := r.creating.Do(string(id), func() (any, error) {
		if a, err := r.lookup(id); a != nil || err != nil {
			return a, err
		}
		return r.create(id, name)
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return v.(*Actor), nil
}

// Do runs fn against the actor for name. If the actor was passivated
// between lookup and call, fn is retried once on a fresh actor.
func (r *Registry) Do(ctx context.Context, name string, fn func(context.Context, *Actor) error) error {
	for attempt := 0; ; attempt++ {
		a, err := r.Actor(name)
		if err != nil {
			return errors.Trace(err)
		}
		err = fn(ctx, a)
		if attempt == 0 && errors.Is(err, ErrActorStopped) {
			logger.Debugf("flight %q: actor stopped under call, retrying", name)
			continue
		}
		return err
	}
}

func (r *Registry) lookup(id ID) (*Actor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	select {
	case <-r.tomb.Dying():
		return nil, ErrRegistryStopped
	default:
	}
	return r.actors[id], nil
}

func (r *Registry) create(id ID, name string) (*Actor, error) {
	// A passivated predecessor must have closed its store before the file
	// is opened again.
	r.mu.Lock()
	old := r.retiring[id]
	r.mu.Unlock()
	if old != nil {
		_ = old.Wait()
	}

	store, err := r.cfg.OpenStore(id)
	if err != nil {
		return nil, errors.Annotatef(err, "opening store for flight %q", name)
	}
	a, err := NewActor(Config{
		ID:         id,
		Name:       name,
		Store:      store,
		Clock:      r.cfg.Clock,
		SelfAssign: r.cfg.SelfAssign,
	})
	if err != nil {
		_ = store.Close()
		return nil, errors.Trace(err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	select {
	case <-r.tomb.Dying():
		a.Kill()
		_ = a.Wait()
		return nil, ErrRegistryStopped
	default:
	}
	r.actors[id] = a
	logger.Debugf("flight %q addressed, actor %s started", name, id)
	return a, nil
}

func (r *Registry) loop() error {
	defer r.stopAll()
	if r.cfg.IdleTimeout == 0 {
		<-r.tomb.Dying()
		return tomb.ErrDying
	}
	for {
		select {
		case <-r.tomb.Dying():
			return tomb.ErrDying
		case <-r.cfg.Clock.After(r.cfg.ReapInterval):
			r.reap()
		}
	}
}

// reap stops actors idle for at least IdleTimeout.
func (r *Registry) reap() {
	now := r.cfg.Clock.Now()
	var stopped []*Actor

	r.mu.Lock()
	for id, a := range r.actors {
		if a.IdleFor(now) < r.cfg.IdleTimeout {
			continue
		}
		delete(r.actors, id)
		r.retiring[id] = a
		a.Kill()
		stopped = append(stopped, a)
	}
	r.mu.Unlock()

	for _, a := range stopped {
		if err := a.Wait(); err != nil {
			logger.Warningf("flight %q: actor stopped with error: %v", a.Name(), err)
		}
		logger.Debugf("flight %q passivated", a.Name())
		r.mu.Lock()
		if r.retiring[a.ID()] == a {
			delete(r.retiring, a.ID())
		}
		r.mu.Unlock()
	}
}

func (r *Registry) stopAll() {
	r.mu.Lock()
	all := make([]*Actor, 0, len(r.actors)+len(r.retiring))
	for _, a := range r.actors {
		all = append(all, a)
	}
	for _, a := range r.retiring {
		all = append(all, a)
	}
	r.actors = make(map[ID]*Actor)
	r.mu.Unlock()

	for _, a := range all {
		a.Kill()
	}
	for _, a := range all {
		_ = a.Wait()
	}
}
