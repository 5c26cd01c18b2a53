package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hashicorp/go-plugin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

const (
	PluginMapKey        = "importer"
	serviceName         = "worktally.importer.v1.Importer"
	jsonCodecName       = "json"
	methodGetMetadata   = "/" + serviceName + "/GetMetadata"
	methodFetchActivity = "/" + serviceName + "/FetchActivity"
)

var HandshakeConfig = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "WORKTALLY_IMPORTER",
	MagicCookieValue: "worktally",
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return jsonCodecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type Empty struct{}

type Metadata struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Source  string `json:"source"`
}

type FetchActivityRequest struct {
	FromMs  int64             `json:"from_ms"`
	ToMs    int64             `json:"to_ms"`
	Options map[string]string `json:"options"`
}

type ActivityRecord struct {
	Timestamp  int64  `json:"timestamp"`
	Project    string `json:"project"`
	Category   string `json:"category"`
	DurationMs int64  `json:"duration_ms"`
}

type FetchActivityResponse struct {
	Records []ActivityRecord `json:"records"`
}

type ImporterServer interface {
	GetMetadata(ctx context.Context, in *Empty) (*Metadata, error)
	FetchActivity(ctx context.Context, in *FetchActivityRequest) (*FetchActivityResponse, error)
}

type ImporterClient interface {
	GetMetadata(ctx context.Context) (*Metadata, error)
	FetchActivity(ctx context.Context, in *FetchActivityRequest) (*FetchActivityResponse, error)
}

type importerClient struct {
	conn *grpc.ClientConn
}

func NewImporterClient(conn *grpc.ClientConn) ImporterClient {
	return &importerClient{conn: conn}
}

func (c *importerClient) GetMetadata(ctx context.Context) (*Metadata, error) {
	out := &Metadata{}
	if err := c.conn.Invoke(ctx, methodGetMetadata, &Empty{}, out, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *importerClient) FetchActivity(ctx context.Context, in *FetchActivityRequest) (*FetchActivityResponse, error) {
	out := &FetchActivityResponse{}
	if err := c.conn.Invoke(ctx, methodFetchActivity, in, out, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func RegisterImporterServer(server grpc.ServiceRegistrar, impl ImporterServer) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*ImporterServer)(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "GetMetadata",
				Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
					in := &Empty{}
					if err := dec(in); err != nil {
						return nil, err
					}
					if interceptor == nil {
						return impl.GetMetadata(ctx, in)
					}
					info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetMetadata}
					handler := func(ctx context.Context, req any) (any, error) {
						empty, ok := req.(*Empty)
						if !ok {
							return nil, fmt.Errorf("invalid request type")
						}
						return impl.GetMetadata(ctx, empty)
					}
					return interceptor(ctx, in, info, handler)
				},
			},
			{
				MethodName: "FetchActivity",
				Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
					in := &FetchActivityRequest{}
					if err := dec(in); err != nil {
						return nil, err
					}
					if interceptor == nil {
						return impl.FetchActivity(ctx, in)
					}
					info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodFetchActivity}
					handler := func(ctx context.Context, req any) (any, error) {
						fetch, ok := req.(*FetchActivityRequest)
						if !ok {
							return nil, fmt.Errorf("invalid request type")
						}
						return impl.FetchActivity(ctx, fetch)
					}
					return interceptor(ctx, in, info, handler)
				},
			},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "importer-rpc-v1",
	}, impl)
}

type GRPCPlugin struct {
	plugin.NetRPCUnsupportedPlugin
	Impl ImporterServer
}

func (p *GRPCPlugin) GRPCServer(_ *plugin.GRPCBroker, server *grpc.Server) error {
	RegisterImporterServer(server, p.Impl)
	return nil
}

func (p *GRPCPlugin) GRPCClient(_ context.Context, _ *plugin.GRPCBroker, conn *grpc.ClientConn) (any, error) {
	return NewImporterClient(conn), nil
}

func PluginMap(impl ImporterServer) map[string]plugin.Plugin {
	return map[string]plugin.Plugin{
		PluginMapKey: &GRPCPlugin{Impl: impl},
	}
}
