package realtime

import (
	"log/slog"
	"sync"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

// Client is one live connection as the registry sees it.
type Client interface {
	ID() string
	// Send queues a frame without blocking and reports false when the
	// client cannot keep up.
	Send(frame []byte) bool
	Close()
}

// Identity is what a connection authenticated as.
type Identity struct {
	UserID     string
	Role       string
	Department string
}

func userRoom(id string) string { return "user:" + id }
func roleRoom(r string) string  { return "role:" + r }
func deptRoom(d string) string  { return "dept:" + d }

type member struct {
	client Client
	id     Identity
	rooms  []string
}

// Registry maps users to their live connections and groups connections in
// rooms keyed by user, role and department. A user entry exists while at
// least one of its connections is joined.
type Registry struct {
	mu      sync.RWMutex
	members map[string]*member           // by client id
	rooms   map[string]map[string]Client // room -> client id -> client
	closed  bool
	log     *slog.Logger
	onCount func(connections int)
	dropWG  sync.WaitGroup
}

type RegistryOption func(*Registry)

func WithRegistryLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// WithConnectionObserver is called with the connection count after every
// join and leave.
func WithConnectionObserver(fn func(connections int)) RegistryOption {
	return func(r *Registry) { r.onCount = fn }
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		members: make(map[string]*member),
		rooms:   make(map[string]map[string]Client),
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Join adds c to the rooms of id. Joining the same client twice is a no-op.
func (r *Registry) Join(c Client, id Identity) error {
	rooms := []string{userRoom(id.UserID)}
	if id.Role != "" {
		rooms = append(rooms, roleRoom(id.Role))
	}
	if id.Department != "" {
		rooms = append(rooms, deptRoom(id.Department))
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRegistryClosed
	}
	if _, ok := r.members[c.ID()]; ok {
		r.mu.Unlock()
		return nil
	}
	r.members[c.ID()] = &member{client: c, id: id, rooms: rooms}
	for _, room := range rooms {
		set, ok := r.rooms[room]
		if !ok {
			set = make(map[string]Client)
			r.rooms[room] = set
		}
		set[c.ID()] = c
	}
	n := len(r.members)
	r.mu.Unlock()

	r.observe(n)
	return nil
}

// Leave removes c and reports whether it was the user's last connection.
// Unknown clients report false.
func (r *Registry) Leave(c Client) bool {
	r.mu.Lock()
	m, ok := r.members[c.ID()]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.members, c.ID())
	for _, room := range m.rooms {
		set := r.rooms[room]
		delete(set, c.ID())
		if len(set) == 0 {
			delete(r.rooms, room)
		}
	}
	_, stillOnline := r.rooms[userRoom(m.id.UserID)]
	n := len(r.members)
	r.mu.Unlock()

	r.observe(n)
	return !stillOnline
}

// PublishUser sends frame to every connection of userID and returns how many
// accepted it.
func (r *Registry) PublishUser(userID string, frame []byte) int {
	return r.publish(userRoom(userID), frame)
}

func (r *Registry) PublishRole(role string, frame []byte) int {
	return r.publish(roleRoom(role), frame)
}

func (r *Registry) PublishDepartment(dept string, frame []byte) int {
	return r.publish(deptRoom(dept), frame)
}

// PublishAll sends frame to every connection.
func (r *Registry) PublishAll(frame []byte) int {
	r.mu.RLock()
	targets := make([]Client, 0, len(r.members))
	for _, m := range r.members {
		targets = append(targets, m.client)
	}
	r.mu.RUnlock()
	return r.deliver(targets, frame)
}

// EmitUser encodes an event and publishes it to the user's room.
func (r *Registry) EmitUser(userID, event string, data any) (int, error) {
	frame, err := Encode(event, data)
	if err != nil {
		return 0, err
	}
	return r.PublishUser(userID, frame), nil
}

// Online returns the number of live connections of userID.
func (r *Registry) Online(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[userRoom(userID)])
}

// Connections returns the total number of live connections.
func (r *Registry) Connections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Users returns the number of distinct users online.
func (r *Registry) Users() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{}, len(r.members))
	for _, m := range r.members {
		seen[m.id.UserID] = struct{}{}
	}
	return len(seen)
}

// CloseAll closes every connection and rejects further joins.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	clients := make([]Client, 0, len(r.members))
	for _, m := range r.members {
		clients = append(clients, m.client)
	}
	clear(r.members)
	clear(r.rooms)
	r.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
	r.dropWG.Wait()
	r.observe(0)
}

func (r *Registry) publish(room string, frame []byte) int {
	r.mu.RLock()
	set := r.rooms[room]
	targets := make([]Client, 0, len(set))
	for _, c := range set {
		targets = append(targets, c)
	}
	r.mu.RUnlock()
	return r.deliver(targets, frame)
}

// deliver runs outside the lock on a snapshot. Clients whose buffer is full
// are dropped.
func (r *Registry) deliver(targets []Client, frame []byte) int {
	reached := 0
	for _, c := range targets {
		if c.Send(frame) {
			reached++
			continue
		}
		r.dropWG.Add(1)
		go func(c Client) {
			defer r.dropWG.Done()
			r.log.Warn("dropping slow realtime client",
				logger.Component("realtime"),
				logger.ConnectionID(c.ID()),
			)
			r.Leave(c)
			c.Close()
		}(c)
	}
	return reached
}

func (r *Registry) observe(n int) {
	if r.onCount != nil {
		r.onCount(n)
	}
}
