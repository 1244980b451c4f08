package vm

import (
	"sync"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
)

// Connection is the host's network endpoint for one client. The I/O
// opcodes forward through it; the runtime never blocks on delivery.
type Connection interface {
	Browse(html, options string)
	BrowseResource(resource *Resource, filename string)
	OutputControl(message, control string)
}

// ConnectionRegistry maps client objects to their connections. The host
// integration registers and removes connections; the interpreter only
// reads. Writers must serialize through the registry's lock.
type ConnectionRegistry struct {
	mu       sync.RWMutex
	conns    map[*ObjectInstance]Connection
	sessions map[*ObjectInstance]string
	log      commonlog.Logger
}

// NewConnectionRegistry creates an empty registry.
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		conns:    make(map[*ObjectInstance]Connection),
		sessions: make(map[*ObjectInstance]string),
		log:      commonlog.GetLogger("vm.connections"),
	}
}

// Register attaches a connection to a client object and returns the
// session id minted for it.
func (r *ConnectionRegistry) Register(client *ObjectInstance, conn Connection) string {
	session := uuid.New().String()
	r.mu.Lock()
	r.conns[client] = conn
	r.sessions[client] = session
	r.mu.Unlock()
	r.log.Infof("client %s connected, session %s", client.Def.Path, session)
	return session
}

// Unregister detaches a client's connection.
func (r *ConnectionRegistry) Unregister(client *ObjectInstance) {
	r.mu.Lock()
	session := r.sessions[client]
	delete(r.conns, client)
	delete(r.sessions, client)
	r.mu.Unlock()
	if session != "" {
		r.log.Infof("session %s disconnected", session)
	}
}

// ForClient returns the connection registered for a client object.
func (r *ConnectionRegistry) ForClient(client *ObjectInstance) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[client]
	return c, ok
}

// Session returns the session id for a connected client.
func (r *ConnectionRegistry) Session(client *ObjectInstance) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[client]
	return s, ok
}
