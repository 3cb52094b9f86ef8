// Package transport implements one authenticated session to one peer: the
// handshake, the AEAD-sealed frame wire format, the client reconnect
// supervisor, and the server accept loop (spec.md §4.2).
package transport

import (
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/openportal-go/openportal/crypto"
	"github.com/openportal-go/openportal/errs"
	"github.com/openportal-go/openportal/internal/logger"
)

// ConnectedHandler is invoked once, on its own goroutine, when a Connected
// control message arrives from the peer. It is expected to run the
// register/sync_board/send_queued sequence (spec.md §4.5) and then call
// conn.MarkReady() to open the gate on buffered data frames. If it panics
// or never calls MarkReady, the connection remains gated forever; callers
// own that responsibility deliberately, to keep Connection itself ignorant
// of board/exchange semantics.
type ConnectedHandler func(conn *Connection, agent, zone string)

// DisconnectedHandler is invoked when the peer sends a Disconnected control
// message, or the connection terminates for any other reason.
type DisconnectedHandler func(agent, zone string)

// FrameHandler processes one inbound data Frame.
type FrameHandler func(Frame)

// Connection is exactly one authenticated session to one peer (spec.md
// §4.2). Use Initiate for the client role and Accept for the server role;
// both block until the session ends.
type Connection struct {
	ws         *websocket.Conn
	selfName   string
	peerName   string
	sessionKey crypto.Key
	innerKey   crypto.Key
	log        logger.Logger

	writeMu sync.Mutex

	mu       sync.Mutex
	ready    bool
	buffered []Frame
	handler  FrameHandler

	onConnected    ConnectedHandler
	onDisconnected DisconnectedHandler

	closeOnce sync.Once
	done      chan struct{}
}

func newConnection(ws *websocket.Conn, selfName, peerName string, session, inner crypto.Key, log logger.Logger) *Connection {
	return &Connection{
		ws:         ws,
		selfName:   selfName,
		peerName:   peerName,
		sessionKey: session,
		innerKey:   inner,
		log:        log.WithFields(logger.String("peer", peerName)),
		done:       make(chan struct{}),
	}
}

// PeerName returns the name the remote end authenticated as.
func (c *Connection) PeerName() string { return c.peerName }

// SetHandler installs the callback invoked for every data Frame that has
// passed the ready gate (see MarkReady).
func (c *Connection) SetHandler(h FrameHandler) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

// SetConnectedHandler installs the callback invoked on an inbound Connected
// control message.
func (c *Connection) SetConnectedHandler(h ConnectedHandler) {
	c.onConnected = h
}

// SetDisconnectedHandler installs the callback invoked on an inbound
// Disconnected control message or connection termination.
func (c *Connection) SetDisconnectedHandler(h DisconnectedHandler) {
	c.onDisconnected = h
}

// MarkReady flushes any data frames buffered while the connection was not
// yet ready, then opens the gate so subsequent frames dispatch directly.
// Called once register/sync_board/send_queued have completed for this
// connection, per spec.md's atomic resync window.
func (c *Connection) MarkReady() {
	c.mu.Lock()
	buffered := c.buffered
	c.buffered = nil
	c.ready = true
	h := c.handler
	c.mu.Unlock()

	if h == nil {
		return
	}
	for _, f := range buffered {
		h(f)
	}
}

func (c *Connection) dispatch(f Frame) {
	c.mu.Lock()
	if !c.ready {
		c.buffered = append(c.buffered, f)
		c.mu.Unlock()
		return
	}
	h := c.handler
	c.mu.Unlock()

	if h != nil {
		h(f)
	}
}

// OpenData opens the inner-key-sealed payload carried by a data Frame
// delivered to a FrameHandler. Frame.Data is nil for control frames, which
// never reach a FrameHandler in the first place.
func (c *Connection) OpenData(f Frame) (DataPayload, error) {
	return openData(c.innerKey, *f.Data)
}

// SendData seals payload under the connection's inner_key and sends it as a
// data frame addressed to recipient.
func (c *Connection) SendData(recipient string, payload DataPayload) error {
	f, err := dataFrame(c.innerKey, c.selfName, recipient, payload)
	if err != nil {
		return err
	}
	return c.writeFrame(f)
}

// SendControl sends a control message to the peer.
func (c *Connection) SendControl(ctrl Control) error {
	return c.writeFrame(controlFrame(c.selfName, c.peerName, ctrl))
}

func (c *Connection) writeFrame(f Frame) error {
	sealed, err := crypto.Encrypt(c.sessionKey, f)
	if err != nil {
		return fmt.Errorf("%w: seal frame: %v", errs.ErrCrypto, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteJSON(sealed); err != nil {
		return fmt.Errorf("%w: write frame: %v", errs.ErrTransport, err)
	}
	return nil
}

func (c *Connection) readFrame() (Frame, error) {
	var sealed crypto.Sealed
	if err := c.ws.ReadJSON(&sealed); err != nil {
		return Frame{}, fmt.Errorf("%w: read frame: %v", errs.ErrTransport, err)
	}
	f, err := crypto.Decrypt[Frame](c.sessionKey, sealed)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: open frame: %v", errs.ErrCrypto, err)
	}
	return f, nil
}

// run announces our own Connected control message, then loops reading
// frames until the connection fails or Close is called. It never returns
// until the session ends, matching spec.md §4.2's "both methods block
// until the session ends".
func (c *Connection) run() error {
	if err := c.SendControl(Connected(c.selfName, "")); err != nil {
		return err
	}

	for {
		f, err := c.readFrame()
		if err != nil {
			c.terminate()
			return err
		}

		if f.Control != nil {
			c.handleControl(*f.Control)
			continue
		}
		c.dispatch(f)
	}
}

func (c *Connection) handleControl(ctrl Control) {
	switch ctrl.Kind {
	case ControlConnected:
		if c.onConnected != nil {
			go c.onConnected(c, ctrl.Agent, ctrl.Zone)
		} else {
			c.MarkReady()
		}
	case ControlDisconnected:
		if c.onDisconnected != nil {
			c.onDisconnected(ctrl.Agent, ctrl.Zone)
		}
	case ControlError:
		c.log.Warn("peer reported error", logger.String("text", ctrl.Text))
	}
}

func (c *Connection) terminate() {
	if c.onDisconnected != nil {
		c.onDisconnected(c.peerName, "")
	}
	c.closeOnce.Do(func() {
		close(c.done)
		c.sessionKey.Zero()
		c.innerKey.Zero()
	})
}

// Close terminates the connection's websocket, releasing its read loop.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.sessionKey.Zero()
		c.innerKey.Zero()
	})
	_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.ws.Close()
}

// Done is closed once the connection's session has ended.
func (c *Connection) Done() <-chan struct{} { return c.done }
