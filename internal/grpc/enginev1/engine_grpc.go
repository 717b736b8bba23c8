// Package enginev1 carries the benchguard.v1.RegressionEngine gRPC contract.
// Requests and responses are google.protobuf.Struct documents whose fields
// follow the JSON shapes in internal/api; see api/proto/benchguard/v1/engine.proto.
package enginev1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "benchguard.v1.RegressionEngine"

const (
	RegressionEngine_Evaluate_FullMethodName     = "/benchguard.v1.RegressionEngine/Evaluate"
	RegressionEngine_SubmitReport_FullMethodName = "/benchguard.v1.RegressionEngine/SubmitReport"
	RegressionEngine_PutThreshold_FullMethodName = "/benchguard.v1.RegressionEngine/PutThreshold"
	RegressionEngine_GetThreshold_FullMethodName = "/benchguard.v1.RegressionEngine/GetThreshold"
	RegressionEngine_ListAlerts_FullMethodName   = "/benchguard.v1.RegressionEngine/ListAlerts"
	RegressionEngine_HealthCheck_FullMethodName  = "/benchguard.v1.RegressionEngine/HealthCheck"
)

// RegressionEngineServer is the server API for the RegressionEngine service.
type RegressionEngineServer interface {
	Evaluate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SubmitReport(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PutThreshold(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetThreshold(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListAlerts(context.Context, *structpb.Struct) (*structpb.Struct, error)
	HealthCheck(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedRegressionEngineServer can be embedded to satisfy the
// interface for servers that only implement some methods.
type UnimplementedRegressionEngineServer struct{}

func (UnimplementedRegressionEngineServer) Evaluate(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Evaluate not implemented")
}

func (UnimplementedRegressionEngineServer) SubmitReport(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method SubmitReport not implemented")
}

func (UnimplementedRegressionEngineServer) PutThreshold(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method PutThreshold not implemented")
}

func (UnimplementedRegressionEngineServer) GetThreshold(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetThreshold not implemented")
}

func (UnimplementedRegressionEngineServer) ListAlerts(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method ListAlerts not implemented")
}

func (UnimplementedRegressionEngineServer) HealthCheck(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method HealthCheck not implemented")
}

// RegisterRegressionEngineServer attaches srv to the registrar.
func RegisterRegressionEngineServer(s grpc.ServiceRegistrar, srv RegressionEngineServer) {
	s.RegisterService(&RegressionEngine_ServiceDesc, srv)
}

type unaryCall func(RegressionEngineServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryCall) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(RegressionEngineServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(RegressionEngineServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// RegressionEngine_ServiceDesc is the grpc.ServiceDesc for the RegressionEngine service.
var RegressionEngine_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RegressionEngineServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Evaluate",
			Handler: unaryHandler(RegressionEngine_Evaluate_FullMethodName,
				func(s RegressionEngineServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
					return s.Evaluate(ctx, in)
				}),
		},
		{
			MethodName: "SubmitReport",
			Handler: unaryHandler(RegressionEngine_SubmitReport_FullMethodName,
				func(s RegressionEngineServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
					return s.SubmitReport(ctx, in)
				}),
		},
		{
			MethodName: "PutThreshold",
			Handler: unaryHandler(RegressionEngine_PutThreshold_FullMethodName,
				func(s RegressionEngineServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
					return s.PutThreshold(ctx, in)
				}),
		},
		{
			MethodName: "GetThreshold",
			Handler: unaryHandler(RegressionEngine_GetThreshold_FullMethodName,
				func(s RegressionEngineServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
					return s.GetThreshold(ctx, in)
				}),
		},
		{
			MethodName: "ListAlerts",
			Handler: unaryHandler(RegressionEngine_ListAlerts_FullMethodName,
				func(s RegressionEngineServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
					return s.ListAlerts(ctx, in)
				}),
		},
		{
			MethodName: "HealthCheck",
			Handler: unaryHandler(RegressionEngine_HealthCheck_FullMethodName,
				func(s RegressionEngineServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
					return s.HealthCheck(ctx, in)
				}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "benchguard/v1/engine.proto",
}

// RegressionEngineClient is the client API for the RegressionEngine service.
type RegressionEngineClient interface {
	Evaluate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	SubmitReport(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	PutThreshold(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetThreshold(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ListAlerts(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	HealthCheck(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type regressionEngineClient struct {
	cc grpc.ClientConnInterface
}

// NewRegressionEngineClient wraps a client connection.
func NewRegressionEngineClient(cc grpc.ClientConnInterface) RegressionEngineClient {
	return &regressionEngineClient{cc: cc}
}

func (c *regressionEngineClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *regressionEngineClient) Evaluate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, RegressionEngine_Evaluate_FullMethodName, in, opts...)
}

func (c *regressionEngineClient) SubmitReport(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, RegressionEngine_SubmitReport_FullMethodName, in, opts...)
}

func (c *regressionEngineClient) PutThreshold(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, RegressionEngine_PutThreshold_FullMethodName, in, opts...)
}

func (c *regressionEngineClient) GetThreshold(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, RegressionEngine_GetThreshold_FullMethodName, in, opts...)
}

func (c *regressionEngineClient) ListAlerts(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, RegressionEngine_ListAlerts_FullMethodName, in, opts...)
}

func (c *regressionEngineClient) HealthCheck(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, RegressionEngine_HealthCheck_FullMethodName, in, opts...)
}
