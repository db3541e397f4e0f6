package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "drivesync.RecordStore"

// Full method names.
const (
	MethodPing         = "/" + ServiceName + "/Ping"
	MethodGet          = "/" + ServiceName + "/Get"
	MethodInsert       = "/" + ServiceName + "/Insert"
	MethodUpdateFields = "/" + ServiceName + "/UpdateFields"
	MethodDelete       = "/" + ServiceName + "/Delete"
	MethodLiveQuery    = "/" + ServiceName + "/LiveQuery"
)

// RecordStoreServer is the server API of the RecordStore service.
type RecordStoreServer interface {
	Ping(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
	Get(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Insert(context.Context, *structpb.Struct) (*wrapperspb.StringValue, error)
	UpdateFields(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	Delete(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	LiveQuery(*structpb.Struct, grpc.ServerStream) error
}

func unaryHandler[Req, Resp proto.Message](
	fullMethod string,
	newReq func() Req,
	call func(RecordStoreServer, context.Context, Req) (Resp, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := newReq()
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(RecordStoreServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(RecordStoreServer), ctx, req.(Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func liveQueryHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(RecordStoreServer).LiveQuery(in, stream)
}

func newEmpty() *emptypb.Empty       { return new(emptypb.Empty) }
func newStructMsg() *structpb.Struct { return new(structpb.Struct) }

// ServiceDesc describes the RecordStore service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RecordStoreServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Ping", Handler: unaryHandler(MethodPing, newEmpty, RecordStoreServer.Ping)},
		{MethodName: "Get", Handler: unaryHandler(MethodGet, newStructMsg, RecordStoreServer.Get)},
		{MethodName: "Insert", Handler: unaryHandler(MethodInsert, newStructMsg, RecordStoreServer.Insert)},
		{MethodName: "UpdateFields", Handler: unaryHandler(MethodUpdateFields, newStructMsg, RecordStoreServer.UpdateFields)},
		{MethodName: "Delete", Handler: unaryHandler(MethodDelete, newStructMsg, RecordStoreServer.Delete)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "LiveQuery", Handler: liveQueryHandler, ServerStreams: true},
	},
}

// LiveQueryStreamDesc is the client-side descriptor of LiveQuery.
var LiveQueryStreamDesc = &grpc.StreamDesc{StreamName: "LiveQuery", ServerStreams: true}
