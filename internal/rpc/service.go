// ABOUTME: Scan RPC wire types and a hand-registered grpc.ServiceDesc
// ABOUTME: No protoc codegen — see DESIGN.md for why this repo registers the service by hand

package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "artindex.Index"

// ScanRequest is the wire request for one bounded index range scan. A
// non-empty CursorID resumes a server-held iterator instead of starting
// a new one at LowerBound.
type ScanRequest struct {
	IndexName  string
	LowerBound []byte
	LowerEqual bool
	UpperBound []byte
	UpperEqual bool
	MaxCount   int32
	CursorID   string
}

// ScanResponse is the wire response: the row ids a scan produced, and a
// CursorID to pass back to resume the scan if Done is false.
type ScanResponse struct {
	RowIDs   []int64
	Done     bool
	CursorID string
}

// ScanServer is implemented by internal/server.Server.
type ScanServer interface {
	Scan(ctx context.Context, req *ScanRequest) (*ScanResponse, error)
}

// ScanClient is the client-side stub for ScanServer.
type ScanClient interface {
	Scan(ctx context.Context, in *ScanRequest, opts ...grpc.CallOption) (*ScanResponse, error)
}

type scanClient struct {
	cc grpc.ClientConnInterface
}

// NewScanClient wraps a client connection for calling Scan.
func NewScanClient(cc grpc.ClientConnInterface) ScanClient {
	return &scanClient{cc: cc}
}

func (c *scanClient) Scan(ctx context.Context, in *ScanRequest, opts ...grpc.CallOption) (*ScanResponse, error) {
	out := new(ScanResponse)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/Scan", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func scanHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ScanRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ScanServer).Scan(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Scan"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ScanServer).Scan(ctx, req.(*ScanRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc is the hand-registered description of the Index service,
// taking the place of a protoc-generated _grpc.pb.go file.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ScanServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Scan",
			Handler:    scanHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "internal/rpc/service.go",
}

// RegisterScanServer registers srv as the Index service implementation on s.
func RegisterScanServer(s grpc.ServiceRegistrar, srv ScanServer) {
	s.RegisterService(&ServiceDesc, srv)
}
