package realtime

import (
	"sort"
	"sync"
	"time"

	"CampusLink/tools/ids"
	"CampusLink/tools/safe"

	"github.com/gorilla/websocket"
)

// WsConn is one live transport session belonging to exactly one user and one
// device. Owned by the Registry for its lifetime; destroyed on disconnect.
type WsConn struct {
	ID     string
	UserID string
	Device string

	Conn *websocket.Conn
	Send chan []byte // per-connection outbound queue

	ConnectedAt time.Time
	heartbeat   time.Time // guarded by the registry mutex

	doneOnce sync.Once
	done     chan struct{}
}

// Enqueue pushes a payload onto the connection's send queue without
// blocking. A full queue means a slow client; the payload is dropped and
// recovered by the client's catch-up fetch.
func (w *WsConn) Enqueue(payload []byte) bool {
	select {
	case <-w.done:
		return false
	default:
	}
	select {
	case w.Send <- payload:
		return true
	default:
		return false
	}
}

func (w *WsConn) Done() <-chan struct{} { return w.done }

func (w *WsConn) shutdown() {
	w.doneOnce.Do(func() { close(w.done) })
}

type RegistryConf struct {
	ProbeInterval time.Duration    // liveness probe period
	SendQueue     int              // per-connection outbound queue depth
	Clock         func() time.Time // injectable clock for tests
}

func (c *RegistryConf) norm() {
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = 25 * time.Second
	}
	if c.SendQueue <= 0 {
		c.SendQueue = 256
	}
}

// Registry maps user identities to their live connection handles. Registry
// mutations are the sole trigger for presence transitions: the first/last
// results of Register/Unregister feed the presence tracker and nothing else
// may set presence.
type Registry struct {
	mu     sync.RWMutex
	byConn map[string]*WsConn
	byUser map[string]map[string]*WsConn
	bySock map[*websocket.Conn]*WsConn

	conf     RegistryConf
	onEvict  func(*WsConn)
	onIdle   func(userID string)
	onActive func(userID string)

	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewRegistry(conf RegistryConf) *Registry {
	conf.norm()
	r := &Registry{
		byConn: make(map[string]*WsConn),
		byUser: make(map[string]map[string]*WsConn),
		bySock: make(map[*websocket.Conn]*WsConn),
		conf:   conf,
		stopCh: make(chan struct{}),
	}
	safe.Go(r.sweeper)
	return r
}

// SetCallbacks wires teardown and idle/active transitions; call once before
// serving connections.
func (r *Registry) SetCallbacks(onEvict func(*WsConn), onIdle, onActive func(userID string)) {
	r.onEvict = onEvict
	r.onIdle = onIdle
	r.onActive = onActive
}

// Register is idempotent per physical connection: re-registering the same
// socket returns the existing handle. first is true when this is the user's
// zero-to-one transition.
func (r *Registry) Register(sock *websocket.Conn, userID, device string) (w *WsConn, first bool) {
	now := r.conf.Clock()
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.bySock[sock]; ok && sock != nil {
		return existing, false
	}

	w = &WsConn{
		ID:          ids.GenerateString(),
		UserID:      userID,
		Device:      device,
		Conn:        sock,
		Send:        make(chan []byte, r.conf.SendQueue),
		ConnectedAt: now,
		heartbeat:   now,
		done:        make(chan struct{}),
	}
	r.byConn[w.ID] = w
	if sock != nil {
		r.bySock[sock] = w
	}
	mm := r.byUser[userID]
	if mm == nil {
		mm = make(map[string]*WsConn)
		r.byUser[userID] = mm
	}
	mm[w.ID] = w
	return w, len(mm) == 1
}

// Unregister removes the handle; last is true when the user's handle count
// reached zero. Unregistering an unknown id is a no-op (nil, false).
func (r *Registry) Unregister(connID string) (w *WsConn, last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.byConn[connID]
	if !ok {
		return nil, false
	}
	delete(r.byConn, connID)
	if w.Conn != nil {
		delete(r.bySock, w.Conn)
	}
	if mm := r.byUser[w.UserID]; mm != nil {
		delete(mm, connID)
		if len(mm) == 0 {
			delete(r.byUser, w.UserID)
			last = true
		}
	}
	w.shutdown()
	return w, last
}

func (r *Registry) HandlesFor(userID string) []*WsConn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mm := r.byUser[userID]
	if len(mm) == 0 {
		return nil
	}
	out := make([]*WsConn, 0, len(mm))
	for _, w := range mm {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) DeviceCount(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID])
}

func (r *Registry) Heartbeat(connID string) {
	now := r.conf.Clock()
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.byConn[connID]; ok {
		w.heartbeat = now
	}
}

// AttachPongHandler renews the liveness heartbeat from transport pongs.
func (r *Registry) AttachPongHandler(sock *websocket.Conn, connID string) {
	if sock == nil || connID == "" {
		return
	}
	sock.SetPongHandler(func(string) error {
		r.Heartbeat(connID) // the conn may already be swept; harmless
		return nil
	})
}

func (r *Registry) Close() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.byConn {
		w.shutdown()
	}
	r.byConn = map[string]*WsConn{}
	r.byUser = map[string]map[string]*WsConn{}
	r.bySock = map[*websocket.Conn]*WsConn{}
}

func (r *Registry) sweeper() {
	t := time.NewTicker(r.conf.ProbeInterval)
	defer t.Stop()
	for {
		select {
		case <-r.stopCh:
			return
		case now := <-t.C:
			r.sweepOnce(now)
		}
	}
}

// sweepOnce force-disconnects connections that missed two probe intervals
// and reports users whose every connection went stale for one interval
// (idle) versus users with at least one fresh connection (active).
func (r *Registry) sweepOnce(now time.Time) {
	evictAfter := 2 * r.conf.ProbeInterval
	idleAfter := r.conf.ProbeInterval

	var evicted []*WsConn
	var idleUsers, activeUsers []string

	r.mu.RLock()
	for _, w := range r.byConn {
		if now.Sub(w.heartbeat) >= evictAfter {
			evicted = append(evicted, w)
		}
	}
	for userID, mm := range r.byUser {
		fresh := false
		for _, w := range mm {
			if now.Sub(w.heartbeat) < idleAfter {
				fresh = true
				break
			}
		}
		if fresh {
			activeUsers = append(activeUsers, userID)
		} else {
			idleUsers = append(idleUsers, userID)
		}
	}
	r.mu.RUnlock()

	for _, w := range evicted {
		if r.onEvict != nil {
			r.onEvict(w)
		}
	}
	for _, u := range idleUsers {
		if r.onIdle != nil {
			r.onIdle(u)
		}
	}
	for _, u := range activeUsers {
		if r.onActive != nil {
			r.onActive(u)
		}
	}
}
