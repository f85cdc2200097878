// Package hub implements the WebSocket-based routing server: it accepts
// connections, classifies them into App/Service/Hub roles by handshake
// header, maintains an address table owned by a single goroutine, and
// forwards frames either directly (Service/Hub) or by rewriting and
// tunneling them upward (App, via a Bridge).
package hub

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	ws "github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/streamhub/platform/pkg/envelope"
)

// Config is the subset of the hub's YAML configuration the server itself
// consumes; everything else is passed through to callers untouched.
type Config struct {
	Host  string
	Port  int
	Extra map[string]string
}

// Hub is a single routing server instance.
type Hub struct {
	cfg     Config
	log     *logrus.Entry
	control chan controlMessage
	bridge  *Bridge
}

// New builds a Hub. Call AttachBridge before ListenAndServe if App traffic
// should be tunneled upstream.
func New(cfg Config, log *logrus.Logger) *Hub {
	if log == nil {
		log = logrus.New()
	}
	return &Hub{
		cfg:     cfg,
		log:     log.WithField("component", "hub"),
		control: make(chan controlMessage, 256),
	}
}

// AttachBridge configures the upstream bridge App traffic tunnels through.
func (h *Hub) AttachBridge(b *Bridge) {
	h.bridge = b
}

// ListenAndServe runs the accept loop and the clients goroutine until ctx
// is canceled.
func (h *Hub) ListenAndServe(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", h.handleUpgrade)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", h.cfg.Host, h.cfg.Port),
		Handler: mux,
	}

	go h.runClients(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (h *Hub) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.Accept(w, r, &ws.AcceptOptions{
		InsecureSkipVerify: true,
		CompressionMode:    ws.CompressionDisabled,
	})
	if err != nil {
		h.log.WithError(err).Warn("websocket accept failed")
		return
	}

	addr, role := classify(r, func() string { return uuid.NewString() })
	connLog := h.log.WithFields(logrus.Fields{"addr": addr, "role": role.String()})

	if role == RoleUnauthorized {
		connLog.Debug("connection admitted but unauthorized: no recognized handshake header")
	}

	handle := newConnHandle(addr, role)
	ctx := r.Context()

	if role != RoleUnauthorized {
		h.control <- addClientMsg{addr: addr, handle: handle}
		defer func() { h.control <- removeClientMsg{addr: addr} }()
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop(ctx, conn, handle, connLog)
	}()

	h.readLoop(ctx, conn, addr, role, connLog)

	conn.Close(ws.StatusNormalClosure, "")
	<-writerDone
}

func (h *Hub) writeLoop(ctx context.Context, conn *ws.Conn, handle *connHandle, log *logrus.Entry) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-handle.outbound:
			if !ok {
				return
			}
			if err := conn.Write(ctx, ws.MessageBinary, frame); err != nil {
				log.WithError(err).Debug("write failed, closing connection")
				return
			}
		}
	}
}

func (h *Hub) readLoop(ctx context.Context, conn *ws.Conn, addr string, role Role, log *logrus.Entry) {
	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			log.WithError(err).Debug("read loop terminated")
			return
		}
		if msgType != ws.MessageBinary {
			continue
		}
		h.handleFrame(data, addr, role, log)
	}
}

func (h *Hub) handleFrame(data []byte, addr string, role Role, log *logrus.Entry) {
	if role == RoleUnauthorized {
		log.Debug("dropping frame from unauthorized connection")
		return
	}

	meta, err := envelope.PeekMeta(data)
	if err != nil {
		log.WithError(err).Warn("dropping frame: meta decode failed")
		return
	}

	switch role {
	case RoleService, RoleHub:
		h.forwardDirect(meta, data, log)
	case RoleApp:
		h.forwardApp(meta, data, addr, log)
	}
}

// forwardDirect implements §4.3's Service/Hub inbound rule: the
// destination is the first of route.points, looked up in the address
// table; a lookup miss discards the frame silently.
func (h *Hub) forwardDirect(meta *envelope.MsgMeta, data []byte, log *logrus.Entry) {
	if len(meta.Route.Points) == 0 {
		log.Debug("dropping frame: route has no points, unknown destination")
		return
	}
	dest := meta.Route.Points[0].Addr
	h.control <- sendMsgMsg{addr: dest, frame: data}
}

// forwardApp implements §4.3's App inbound rule: without a bridge the
// frame is dropped; with a bridge the meta is rewritten (tx becomes the
// symbolic hub name, the Component source's client_addr becomes this
// connection's address) and the frame is re-spliced and tunneled up.
func (h *Hub) forwardApp(meta *envelope.MsgMeta, data []byte, addr string, log *logrus.Entry) {
	if h.bridge == nil {
		log.Warn("dropping App frame: no bridge configured")
		return
	}

	rewritten, err := rewriteForBridge(meta, data, addr)
	if err != nil {
		log.WithError(err).Warn("dropping App frame: meta rewrite failed")
		return
	}

	h.bridge.Send(rewritten)
}

// appHubTxName is the symbolic sender name the hub stamps on App traffic
// it tunnels upstream.
const appHubTxName = "AppHub"

// rewriteForBridge re-serializes meta with tx set to appHubTxName and, for
// a Component source, client_addr set to addr; it then splices the new
// meta back in front of the original payload+attachments bytes, which are
// preserved byte-for-byte.
func rewriteForBridge(meta *envelope.MsgMeta, data []byte, addr string) ([]byte, error) {
	if len(data) < 4 {
		return nil, envelope.ErrInvalidLength
	}
	metaLen := binary.BigEndian.Uint32(data[:4])
	if uint64(metaLen)+4 > uint64(len(data)) {
		return nil, envelope.ErrInvalidLength
	}
	tail := data[4+metaLen:]

	meta.Tx = appHubTxName
	if meta.Route.Source.Kind == envelope.ParticipatorComponent {
		clientAddr := addr
		meta.Route.Source.ClientAddr = &clientAddr
	}

	newMetaBytes, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("hub: marshal rewritten meta: %w", err)
	}

	buf := make([]byte, 0, 4+len(newMetaBytes)+len(tail))
	var lp [4]byte
	binary.BigEndian.PutUint32(lp[:], uint32(len(newMetaBytes)))
	buf = append(buf, lp[:]...)
	buf = append(buf, newMetaBytes...)
	buf = append(buf, tail...)
	return buf, nil
}

// runClients is the sole goroutine that owns the address table. All
// mutation and all forwarding lookups happen here, serialized through the
// control channel; no other goroutine ever reads or writes the map.
func (h *Hub) runClients(ctx context.Context) {
	clients := make(map[string]*connHandle)

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-h.control:
			switch m := msg.(type) {
			case addClientMsg:
				h.log.WithField("addr", m.addr).Debug("adding client")
				clients[m.addr] = m.handle
			case removeClientMsg:
				h.log.WithField("addr", m.addr).Debug("removing client")
				delete(clients, m.addr)
			case sendMsgMsg:
				c, ok := clients[m.addr]
				if !ok {
					h.log.WithField("addr", m.addr).Debug("client not found, dropping frame")
					continue
				}
				select {
				case c.outbound <- m.frame:
				default:
					h.log.WithField("addr", m.addr).Warn("outbound queue full, dropping frame")
				}
			}
		}
	}
}
