package network

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
)

const msgpackCodecName = "axondfo-msgpack"

// msgpackCodec lets gRPC carry our MsgPack-encoded payloads directly
// instead of requiring generated protobuf messages — the wire format is
// already specified (§6.4), so there is no value in re-encoding it into
// protobuf just to satisfy the transport.
type msgpackCodec struct{}

func (msgpackCodec) Marshal(v any) ([]byte, error)      { return msgpack.Marshal(v) }
func (msgpackCodec) Unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }
func (msgpackCodec) Name() string                       { return msgpackCodecName }

func init() {
	encoding.RegisterCodec(msgpackCodec{})
}

type deliverRequest struct {
	Name    string `msgpack:"name"`
	Payload []byte `msgpack:"payload"`
}

type deliverResponse struct{}

type networkServiceServer interface {
	Deliver(ctx context.Context, req *deliverRequest) (*deliverResponse, error)
}

func deliverHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(deliverRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(networkServiceServer).Deliver(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/axondfo.NetworkService/Deliver"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(networkServiceServer).Deliver(ctx, req.(*deliverRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var networkServiceDesc = grpc.ServiceDesc{
	ServiceName: "axondfo.NetworkService",
	HandlerType: (*networkServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Deliver", Handler: deliverHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "network.proto",
}

// GrpcManager is a Manager backed by gRPC unary calls. Each connection
// name is resolved to a dial address registered with AddPeer (the
// orchestrator does this once per configured worker, the same way the
// teacher's RegisterWorker dials a *grpc.ClientConn per worker address).
// Inbound traffic — completion tokens — arrives at the server this type
// itself runs and registers with a *grpc.Server via Register.
type GrpcManager struct {
	connMu sync.RWMutex
	addrs  map[string]string
	conns  map[string]*grpc.ClientConn

	cbMu      sync.RWMutex
	listening map[string]bool
	callbacks map[string]func([]byte)
}

// NewGrpcManager creates an empty manager.
func NewGrpcManager() *GrpcManager {
	return &GrpcManager{
		addrs:     make(map[string]string),
		conns:     make(map[string]*grpc.ClientConn),
		listening: make(map[string]bool),
		callbacks: make(map[string]func([]byte)),
	}
}

// AddPeer registers the dial address for a connection name.
func (m *GrpcManager) AddPeer(name, address string) {
	m.connMu.Lock()
	defer m.connMu.Unlock()
	m.addrs[name] = address
}

// Register attaches this manager's Deliver handler to a *grpc.Server so
// it can receive inbound messages (e.g. completion tokens) over the same
// service descriptor used for outbound SendTo calls.
func (m *GrpcManager) Register(server *grpc.Server) {
	server.RegisterService(&networkServiceDesc, m)
}

// Deliver implements networkServiceServer: it is invoked by gRPC when a
// remote peer calls SendTo addressed at one of our listening names.
func (m *GrpcManager) Deliver(ctx context.Context, req *deliverRequest) (*deliverResponse, error) {
	m.cbMu.RLock()
	listening := m.listening[req.Name]
	cb := m.callbacks[req.Name]
	m.cbMu.RUnlock()

	if !listening || cb == nil {
		return nil, fmt.Errorf("network: no listener on %q", req.Name)
	}

	go cb(req.Payload)
	return &deliverResponse{}, nil
}

func (m *GrpcManager) dial(name string) (*grpc.ClientConn, error) {
	m.connMu.RLock()
	if conn, ok := m.conns[name]; ok {
		m.connMu.RUnlock()
		return conn, nil
	}
	addr, ok := m.addrs[name]
	m.connMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("network: no peer address registered for %q", name)
	}

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("network: dial %q: %w", name, err)
	}

	m.connMu.Lock()
	m.conns[name] = conn
	m.connMu.Unlock()
	return conn, nil
}

// SendTo dials (lazily, once) the peer registered for name and invokes
// Deliver with payload, bounded by timeout.
func (m *GrpcManager) SendTo(ctx context.Context, name string, payload []byte, timeout time.Duration) error {
	conn, err := m.dial(name)
	if err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := &deliverRequest{Name: name, Payload: payload}
	resp := new(deliverResponse)
	if err := conn.Invoke(callCtx, "/axondfo.NetworkService/Deliver", req, resp, grpc.CallContentSubtype(msgpackCodecName)); err != nil {
		return fmt.Errorf("network: send to %q: %w", name, err)
	}
	return nil
}

// StartListening marks name as accepting inbound Deliver calls.
func (m *GrpcManager) StartListening(name string) error {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.listening[name] = true
	return nil
}

// StopListening marks name as no longer accepting inbound Deliver calls.
func (m *GrpcManager) StopListening(name string) error {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	delete(m.listening, name)
	return nil
}

// RegisterCallback installs fn for name.
func (m *GrpcManager) RegisterCallback(name string, fn func([]byte)) error {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.callbacks[name] = fn
	return nil
}

// ClearCallback removes the callback for name.
func (m *GrpcManager) ClearCallback(name string) error {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	delete(m.callbacks, name)
	return nil
}

// Close tears down every outbound connection.
func (m *GrpcManager) Close() error {
	m.connMu.Lock()
	defer m.connMu.Unlock()
	for name, conn := range m.conns {
		if err := conn.Close(); err != nil {
			return fmt.Errorf("network: close %q: %w", name, err)
		}
	}
	return nil
}
