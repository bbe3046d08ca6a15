// Package registry tracks live peer connections, their session keys and
// the public key each remote identity proved during its handshake.
package registry

import (
	"errors"
	"sort"
	"sync"

	"github.com/Alfaashh/P2PChat/pkg/crypto"
)

var (
	// ErrNotRegistered indicates the connection is no longer the one
	// registered under its identity.
	ErrNotRegistered = errors.New("connection not registered")

	// ErrDuplicate indicates the public key is already bound to another
	// live identity.
	ErrDuplicate = errors.New("public key bound to another connection")

	// ErrAlreadySecured indicates the identity already has a session key.
	ErrAlreadySecured = errors.New("session already established")
)

// Conn is the minimum a registered connection exposes. ID must be unique
// per accepted or dialed socket.
type Conn interface {
	ID() string
}

// Entry is one row of a registry snapshot.
type Entry[C Conn] struct {
	Identity   string
	Conn       C
	SessionKey crypto.SessionKey // nil until the handshake completes
	PublicKey  crypto.PublicKey  // zero until the handshake completes
}

// Secured reports whether the entry had a session key when it was captured.
func (e Entry[C]) Secured() bool {
	return e.SessionKey != nil
}

// Registry maps identities to connections, identities to session keys and
// public keys to identities. Every mutation takes the same mutex so the
// maps change together.
//
// Session keys handed out by lookups are copies; the registry zeroes its
// own copy when the entry is removed.
type Registry[C Conn] struct {
	mu sync.Mutex

	conns      map[string]C
	keys       map[string]crypto.SessionKey
	byPubKey   map[crypto.PublicKey]string
	pubKeyByID map[string]crypto.PublicKey
}

// New creates an empty registry.
func New[C Conn]() *Registry[C] {
	return &Registry[C]{
		conns:      make(map[string]C),
		keys:       make(map[string]crypto.SessionKey),
		byPubKey:   make(map[crypto.PublicKey]string),
		pubKeyByID: make(map[string]crypto.PublicKey),
	}
}

// RegisterConnection stores c under identity. If another connection was
// registered under the same identity it is evicted together with its
// session key and public key binding, and returned so the caller can close it.
func (r *Registry[C]) RegisterConnection(identity string, c C) (evicted C, replaced bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.conns[identity]; ok {
		evicted, replaced = old, true
		r.removeLocked(identity)
	}
	r.conns[identity] = c
	return evicted, replaced
}

// SetSessionKey stores a copy of key for identity. The identity must be
// registered and not yet secured.
func (r *Registry[C]) SetSessionKey(identity string, key crypto.SessionKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[identity]; !ok {
		return ErrNotRegistered
	}
	if _, ok := r.keys[identity]; ok {
		return ErrAlreadySecured
	}
	r.keys[identity] = clone(key)
	return nil
}

// Resolver decides a duplicate: it reports whether incoming should
// replace existing as the connection bound to a public key.
type Resolver[C Conn] func(existing, incoming C) bool

// BindSession commits a completed handshake for the connection connID
// registered under identity:
//
//   - ErrNotRegistered if that connection is no longer registered,
//   - ErrAlreadySecured if the identity already holds a session key,
//   - ErrDuplicate, with the identity that owns pub, if pub is bound to a
//     different live identity and resolve is nil or keeps the existing one.
//
// When resolve prefers the incoming connection, the existing identity is
// removed from every map and its connection returned as evicted; the
// caller closes it. Otherwise pub is bound to identity and a copy of key
// stored, in the same critical section. Nothing is modified on error.
func (r *Registry[C]) BindSession(identity, connID string, pub crypto.PublicKey, key crypto.SessionKey, resolve Resolver[C]) (owner string, evicted C, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[identity]
	if !ok || c.ID() != connID {
		return "", evicted, ErrNotRegistered
	}
	if _, ok := r.keys[identity]; ok {
		return "", evicted, ErrAlreadySecured
	}
	if existing, ok := r.byPubKey[pub]; ok && existing != identity {
		other := r.conns[existing]
		if resolve == nil || !resolve(other, c) {
			return existing, evicted, ErrDuplicate
		}
		evicted = other
		r.removeLocked(existing)
	}

	r.byPubKey[pub] = identity
	r.pubKeyByID[identity] = pub
	r.keys[identity] = clone(key)
	return identity, evicted, nil
}

// RemoveConnection deletes identity from all maps, but only if the
// registered connection has ID connID. An empty connID removes whatever
// is registered. It returns the removed connection.
func (r *Registry[C]) RemoveConnection(identity, connID string) (C, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[identity]
	if !ok || (connID != "" && c.ID() != connID) {
		var zero C
		return zero, false
	}
	r.removeLocked(identity)
	return c, true
}

// RemoveAll empties the registry and returns every connection it held.
func (r *Registry[C]) RemoveAll() []C {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]C, 0, len(r.conns))
	for identity, c := range r.conns {
		out = append(out, c)
		r.removeLocked(identity)
	}
	return out
}

// removeLocked must be called with r.mu held.
func (r *Registry[C]) removeLocked(identity string) {
	delete(r.conns, identity)
	if key, ok := r.keys[identity]; ok {
		key.Zero()
		delete(r.keys, identity)
	}
	if pub, ok := r.pubKeyByID[identity]; ok {
		delete(r.pubKeyByID, identity)
		if r.byPubKey[pub] == identity {
			delete(r.byPubKey, pub)
		}
	}
}

// LookupConnection returns the connection registered under identity.
func (r *Registry[C]) LookupConnection(identity string) (C, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[identity]
	return c, ok
}

// LookupSessionKey returns a copy of identity's session key.
func (r *Registry[C]) LookupSessionKey(identity string) (crypto.SessionKey, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key, ok := r.keys[identity]
	if !ok {
		return nil, false
	}
	return clone(key), true
}

// Lookup returns the connection and, if secured, a copy of the session key.
func (r *Registry[C]) Lookup(identity string) (c C, key crypto.SessionKey, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok = r.conns[identity]
	if !ok {
		return c, nil, false
	}
	if k, secured := r.keys[identity]; secured {
		key = clone(k)
	}
	return c, key, true
}

// LookupIdentityByPublicKey returns the identity bound to pub.
func (r *Registry[C]) LookupIdentityByPublicKey(pub crypto.PublicKey) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.byPubKey[pub]
	return identity, ok
}

// PublicKeyOf returns the public key identity proved, if any.
func (r *Registry[C]) PublicKeyOf(identity string) (crypto.PublicKey, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pub, ok := r.pubKeyByID[identity]
	return pub, ok
}

// ListConnections returns a consistent snapshot of every registered
// connection, sorted by identity. Session keys in the snapshot are copies.
func (r *Registry[C]) ListConnections() []Entry[C] {
	r.mu.Lock()
	out := make([]Entry[C], 0, len(r.conns))
	for identity, c := range r.conns {
		e := Entry[C]{Identity: identity, Conn: c}
		if key, ok := r.keys[identity]; ok {
			e.SessionKey = clone(key)
			e.PublicKey = r.pubKeyByID[identity]
		}
		out = append(out, e)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Identity < out[j].Identity })
	return out
}

// Len returns the number of registered connections.
func (r *Registry[C]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// Secured returns the number of connections with a session key.
func (r *Registry[C]) Secured() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.keys)
}

func clone(key crypto.SessionKey) crypto.SessionKey {
	out := make(crypto.SessionKey, len(key))
	copy(out, key)
	return out
}
