// Package registry holds the server's shared state: the connected set, the
// name index, the group table, the pair-chat map, and per-connection info and
// rate-limit queues. All of it lives behind one mutex, and every operation
// follows the same discipline: mutate the indexes and build the outbound
// lines under the lock, then hand the lines back to the caller as a Result so
// the actual socket writes happen outside the lock. A slow peer therefore
// never blocks the registry, and writer references stay valid because a
// connection leaves the indexes only through Remove.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/talkline/chat-app/internal/audit"
	"github.com/talkline/chat-app/internal/metrics"
	"github.com/talkline/chat-app/internal/ratelimit"
)

// LineWriter is the outbound half of a connection as the registry sees it.
// WriteString must be safe for concurrent use; lines already carry their
// terminator.
type LineWriter interface {
	WriteString(s string) error
	Close() error
}

// Client is the registry's record of one connected socket. The exported
// fields are immutable after Add; everything else is guarded by the
// registry's mutex.
type Client struct {
	ID          string // connection id (UUID), the key of every index
	RemoteAddr  string
	ConnectedAt time.Time

	w LineWriter

	name     string
	partner  string // partner's connection id, "" when unpaired
	groups   map[string]struct{}
	sent     int
	received int
	limiter  *ratelimit.Limiter
}

// WriteString writes one outbound line to the client's socket.
func (c *Client) WriteString(s string) error {
	return c.w.WriteString(s)
}

// CloseWriter closes the underlying socket, unblocking the owning handler's
// read loop.
func (c *Client) CloseWriter() error {
	return c.w.Close()
}

// Delivery is one outbound line scheduled for a peer other than the
// initiator. Writes are performed by the caller, outside the registry lock.
type Delivery struct {
	To   *Client
	Line string
}

// Result carries the outcome of a registry operation: replies for the
// initiating client, deliveries for affected peers, and flags the handler
// uses for accounting.
type Result struct {
	Replies    []string
	Deliveries []Delivery
	Err        bool // Replies carry an ERROR line
	Forwarded  bool // Deliveries[0] is a pair-chat forward
}

func errResult(line string) Result {
	return Result{Replies: []string{line}, Err: true}
}

// Options configures a Registry.
type Options struct {
	MaxNameLength int
	RateLimit     ratelimit.Rule
	Audit         *audit.Log
	Now           func() time.Time // defaults to time.Now
}

// Registry is the consolidated shared state. Tests create fresh instances;
// the process owns exactly one.
type Registry struct {
	mu      sync.Mutex
	clients map[string]*Client // connected set: connection id -> client
	byName  map[string]*Client
	groups  map[string]map[string]*Client // group name -> connection id -> client

	audit         *audit.Log
	rule          ratelimit.Rule
	maxNameLength int
	now           func() time.Time
}

// New creates an empty Registry.
func New(opts Options) *Registry {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Audit == nil {
		opts.Audit = audit.NewLog()
	}
	return &Registry{
		clients:       make(map[string]*Client),
		byName:        make(map[string]*Client),
		groups:        make(map[string]map[string]*Client),
		audit:         opts.Audit,
		rule:          opts.RateLimit,
		maxNameLength: opts.MaxNameLength,
		now:           opts.Now,
	}
}

// Audit returns the audit log backing this registry.
func (r *Registry) Audit() *audit.Log {
	return r.audit
}

// Add places a new connection in the connected set and creates its info and
// rate-limit entries. The returned Client is owned by the calling handler.
func (r *Registry) Add(id, remoteAddr string, w LineWriter) *Client {
	c := &Client{
		ID:          id,
		RemoteAddr:  remoteAddr,
		ConnectedAt: r.now(),
		w:           w,
		groups:      make(map[string]struct{}),
		limiter:     ratelimit.New(r.rule),
	}
	r.mu.Lock()
	r.clients[id] = c
	r.mu.Unlock()
	metrics.ConnectionsActive.Inc()
	return c
}

// AllowFrame runs the rate limiter for one inbound frame. Admitted frames
// count toward the client's received total; refused frames mutate nothing.
func (r *Registry) AllowFrame(c *Client, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !c.limiter.Allow(now) {
		return false
	}
	c.received++
	metrics.FramesReceived.Inc()
	return true
}

// RecordReceived appends an audit record for an inbound frame. The caller
// skips administrative queries.
func (r *Registry) RecordReceived(c *Client, line string, now time.Time) {
	r.mu.Lock()
	name := c.name
	r.mu.Unlock()
	r.audit.Append(audit.Record{
		Timestamp:  audit.Timestamp(now),
		ClientID:   c.ID,
		ClientName: name,
		Direction:  audit.DirectionReceived,
		Message:    line,
	})
}

// Register validates and claims a name for c. On failure the Result carries
// the ERROR reply and ok is false; the connection stays unregistered and the
// handler terminates it. On success the Result carries the acknowledgment for
// c and a USER_CONNECTED notification for every other connected client.
func (r *Registry) Register(c *Client, name string) (Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		return errResult("ERROR: Name validation failed - Name cannot be empty. Please provide a valid name.\n"), false
	}
	if len(name) > r.maxNameLength {
		return errResult(fmt.Sprintf(
			"ERROR: Name validation failed - Name too long. Maximum length is %d characters (received %d).\n",
			r.maxNameLength, len(name))), false
	}
	if containsCRLF(name) {
		return errResult("ERROR: Name validation failed - Name contains invalid characters (newline/carriage return). Please use only printable characters.\n"), false
	}
	if _, taken := r.byName[name]; taken {
		return errResult(fmt.Sprintf(
			"ERROR: Name registration failed - The name '%s' is already in use by another client. Please choose a different name.\n",
			name)), false
	}

	c.name = name
	r.byName[name] = c
	metrics.ClientsRegistered.Inc()

	res := Result{
		Replies: []string{fmt.Sprintf(
			"Name registered: %s\nCommands: CONNECT:name, DISCONNECT_CHAT, CREATE_GROUP:name, JOIN_GROUP:name, LEAVE_GROUP:name, LIST_GROUPS, LIST_USERS, GROUP:group_name:message\n",
			name)},
	}
	notification := fmt.Sprintf("USER_CONNECTED:%s\n", name)
	for _, other := range r.othersLocked(c) {
		res.Deliveries = append(res.Deliveries, Delivery{To: other, Line: notification})
	}
	return res, true
}

// ListUsers returns the registered-names reply.
func (r *Registry) ListUsers() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("Connected users (%d): %s\n", len(names), strings.Join(names, ", "))
}

// ListGroups returns the group listing reply with member names.
func (r *Registry) ListGroups() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.groups) == 0 {
		return "No groups available\n"
	}
	names := make([]string, 0, len(r.groups))
	for g := range r.groups {
		names = append(names, g)
	}
	sort.Strings(names)

	out := fmt.Sprintf("Available groups (%d):\n", len(names))
	for _, g := range names {
		members := r.memberNamesLocked(g)
		out += fmt.Sprintf("%s (%d members: %s)\n", g, len(r.groups[g]), strings.Join(members, ", "))
	}
	return out
}

// Remove executes the terminating sequence for c: notify and unlink the pair
// partner, remove c from every group (deleting groups left empty), release
// the name, and drop c from the connected set along with its info and
// rate-limit entries. It is idempotent; the returned deliveries are written
// by the handler before the socket is closed.
func (r *Registry) Remove(c *Client) []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, connected := r.clients[c.ID]; !connected {
		return nil
	}

	var deliveries []Delivery

	// Partner notification first: it needs c's name, which must still be
	// present in the info entry.
	if ex := r.breakPairLocked(c); ex != nil {
		deliveries = append(deliveries, Delivery{
			To: ex,
			Line: fmt.Sprintf(
				"[System] %s has disconnected. You can no longer send messages to them.\n", c.name),
		})
	}

	for g := range c.groups {
		members, ok := r.groups[g]
		if !ok {
			continue
		}
		delete(members, c.ID)
		if len(members) == 0 {
			delete(r.groups, g)
			metrics.GroupsActive.Dec()
		}
	}
	c.groups = make(map[string]struct{})

	if c.name != "" {
		delete(r.byName, c.name)
		metrics.ClientsRegistered.Dec()
	}
	delete(r.clients, c.ID)
	c.limiter = nil
	metrics.ConnectionsActive.Dec()

	return deliveries
}

// Clients returns a snapshot of every connected client.
func (r *Registry) Clients() []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out
}

// othersLocked returns every connected client except the given ones.
// Callers hold r.mu; the returned slice is a stable snapshot for fan-out.
func (r *Registry) othersLocked(exclude ...*Client) []*Client {
	out := make([]*Client, 0, len(r.clients))
next:
	for _, c := range r.clients {
		for _, e := range exclude {
			if c == e {
				continue next
			}
		}
		out = append(out, c)
	}
	return out
}

// memberNamesLocked returns the sorted member names of group g.
func (r *Registry) memberNamesLocked(g string) []string {
	members := r.groups[g]
	names := make([]string, 0, len(members))
	for _, m := range members {
		name := m.name
		if name == "" {
			name = "Unknown"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// breakPairLocked clears the pair relation on both sides and returns the
// ex-partner, or nil when c was unpaired. Callers hold r.mu.
func (r *Registry) breakPairLocked(c *Client) *Client {
	if c.partner == "" {
		return nil
	}
	ex := r.clients[c.partner]
	c.partner = ""
	if ex != nil && ex.partner == c.ID {
		ex.partner = ""
	}
	metrics.PairChatsActive.Dec()
	return ex
}

func containsCRLF(s string) bool {
	return strings.ContainsAny(s, "\r\n")
}
