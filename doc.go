/*
Package p2pchat provides an end-to-end encrypted peer-to-peer chat node.

Every node listens on a TCP port, dials peers by host and port, exchanges
X25519 public keys in a one-line handshake and then sends JSON messages
sealed with a per-connection session key. There is no server: every node
is both client and listener.

# Features

  - X25519 key agreement, HKDF-SHA256 session keys
  - AES-256-GCM (default) or ChaCha20-Poly1305 authenticated encryption
  - Newline-delimited JSON wire format, one frame per line
  - At most one connection per peer key, with deterministic resolution
    of simultaneous dials
  - Independent per-peer broadcast: one bad peer never blocks the rest
  - Optional handshake timeout, inbound frame rate limit and replay filter
  - Non-blocking connection state event notifications
  - Thread-safe concurrent operations

# Quick Start

Create and start a node:

	cfg := p2pchat.NewConfig("0.0.0.0", 8888)

	node, err := p2pchat.New(cfg)
	if err != nil {
		// Handle error
	}
	if err := node.Start(ctx); err != nil {
		// The port could not be bound
	}
	defer node.Stop()

	fmt.Println("public key:", node.PublicKey())

Receive messages:

	node.OnMessage(func(identity string, payload p2pchat.Payload) {
		fmt.Printf("%s (%s): %s\n", payload.DisplayName(), identity, payload.Message())
	})

Connect to a peer and talk:

	identity, err := node.Connect(ctx, "192.168.1.20", 8888)
	if err != nil {
		// errors.Is(err, p2pchat.ErrConnection)
	}

	// Wait for the session; Send fails with ErrNoSession until then.
	for event := range node.Events() {
		if event.Identity == identity && event.State == p2pchat.StateSecured {
			break
		}
	}

	node.Send(ctx, identity, map[string]any{"message": "hi", "display_name": "alice"})

	// Or everyone at once:
	result, _ := node.SendMessage(ctx, "hello all", "alice")
	for id, err := range result.Failed {
		log.Printf("%s dropped: %v", id, err)
	}

# Connection Flow

 1. A socket is accepted or dialed and registered under its identity,
    the remote "host:port"; the state is StateUnauthenticated
 2. Both sides immediately write {"type":"handshake","public_key":...}
 3. On the first valid handshake each side derives the session key and
    binds the peer's public key to the identity; the state becomes StateSecured
 4. If the key is already bound to another live connection the newer one
    is closed, except on a simultaneous dial, where both sides keep the
    socket opened by the peer with the lower public key
 5. Data frames {"type":"data","nonce":...,"ciphertext":...} flow both ways
 6. EOF, a socket error, Disconnect or Stop removes the identity and
    closes the socket; the state becomes StateClosed

# Security

  - Key pairs are generated per process unless an Ed25519 identity key is
    configured
  - Nonces are 96 random bits, fresh for every frame
  - Frames that fail authentication are dropped without closing the
    connection
  - Session keys are zeroed when their connection is removed

Private keys and session keys are never logged, never persisted and never
exposed through DumpState.

There is no authentication of peer identity beyond possession of the
announced key: anyone who can reach the port can open a session.

# Thread Safety

All public Node methods are thread-safe and can be called concurrently.
The message handler is called from a single goroutine.
*/
package p2pchat
