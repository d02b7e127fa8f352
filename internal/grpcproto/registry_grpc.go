// Package grpcproto describes the jobstash.JobRegistry gRPC service. The
// messages are protobuf well-known types, so no generated code is needed.
package grpcproto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "jobstash.JobRegistry"

// JobRegistryServer is the server API for the JobRegistry service.
type JobRegistryServer interface {
	Create(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Get(context.Context, *wrapperspb.UInt64Value) (*structpb.Struct, error)
	Update(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Delete(context.Context, *wrapperspb.UInt64Value) (*structpb.Struct, error)
	List(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedJobRegistryServer answers every method with codes.Unimplemented.
type UnimplementedJobRegistryServer struct{}

func (UnimplementedJobRegistryServer) Create(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Create not implemented")
}
func (UnimplementedJobRegistryServer) Get(context.Context, *wrapperspb.UInt64Value) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Get not implemented")
}
func (UnimplementedJobRegistryServer) Update(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Update not implemented")
}
func (UnimplementedJobRegistryServer) Delete(context.Context, *wrapperspb.UInt64Value) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Delete not implemented")
}
func (UnimplementedJobRegistryServer) List(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method List not implemented")
}

func RegisterJobRegistryServer(s grpc.ServiceRegistrar, srv JobRegistryServer) {
	s.RegisterService(&JobRegistry_ServiceDesc, srv)
}

func newStruct() *structpb.Struct             { return new(structpb.Struct) }
func newUInt64Value() *wrapperspb.UInt64Value { return new(wrapperspb.UInt64Value) }

func unaryMethod[Req proto.Message](name string, newReq func() Req,
	call func(JobRegistryServer, context.Context, Req) (*structpb.Struct, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := newReq()
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(JobRegistryServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + ServiceName + "/" + name,
			}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(JobRegistryServer), ctx, req.(Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// JobRegistry_ServiceDesc is the grpc.ServiceDesc for the JobRegistry service.
var JobRegistry_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*JobRegistryServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("Create", newStruct, JobRegistryServer.Create),
		unaryMethod("Get", newUInt64Value, JobRegistryServer.Get),
		unaryMethod("Update", newStruct, JobRegistryServer.Update),
		unaryMethod("Delete", newUInt64Value, JobRegistryServer.Delete),
		unaryMethod("List", newStruct, JobRegistryServer.List),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "jobstash/registry",
}

// JobRegistryClient is the client API for the JobRegistry service.
type JobRegistryClient interface {
	Create(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Get(ctx context.Context, in *wrapperspb.UInt64Value, opts ...grpc.CallOption) (*structpb.Struct, error)
	Update(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Delete(ctx context.Context, in *wrapperspb.UInt64Value, opts ...grpc.CallOption) (*structpb.Struct, error)
	List(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type jobRegistryClient struct {
	cc grpc.ClientConnInterface
}

func NewJobRegistryClient(cc grpc.ClientConnInterface) JobRegistryClient {
	return &jobRegistryClient{cc}
}

func (c *jobRegistryClient) invoke(ctx context.Context, method string, in proto.Message, opts []grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *jobRegistryClient) Create(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Create", in, opts)
}

func (c *jobRegistryClient) Get(ctx context.Context, in *wrapperspb.UInt64Value, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Get", in, opts)
}

func (c *jobRegistryClient) Update(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Update", in, opts)
}

func (c *jobRegistryClient) Delete(ctx context.Context, in *wrapperspb.UInt64Value, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Delete", in, opts)
}

func (c *jobRegistryClient) List(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "List", in, opts)
}
