package pbdd

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "pbd.v1.InteractionService"

// Full method names, used for routing and rate limits.
const (
	MethodSendCommand    = "/" + ServiceName + "/SendCommand"
	MethodGetStatus      = "/" + ServiceName + "/GetStatus"
	MethodSwitchAction   = "/" + ServiceName + "/SwitchAction"
	MethodListEvents     = "/" + ServiceName + "/ListEvents"
	MethodPing           = "/" + ServiceName + "/Ping"
	MethodStreamOutcomes = "/" + ServiceName + "/StreamOutcomes"
)

// InteractionServiceServer is the server API of the interaction service.
// Messages are well-known protobuf types so no generated code is needed.
type InteractionServiceServer interface {
	SendCommand(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	GetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	SwitchAction(context.Context, *wrapperspb.Int32Value) (*structpb.Struct, error)
	ListEvents(context.Context, *wrapperspb.Int32Value) (*structpb.ListValue, error)
	Ping(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	StreamOutcomes(*emptypb.Empty, grpc.ServerStream) error
}

// RegisterInteractionServiceServer registers srv with s.
func RegisterInteractionServiceServer(s grpc.ServiceRegistrar, srv InteractionServiceServer) {
	s.RegisterService(&InteractionServiceDesc, srv)
}

// InteractionServiceDesc describes the interaction service for grpc.Server.
var InteractionServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*InteractionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "SendCommand",
			Handler: unaryHandler(MethodSendCommand, func(srv InteractionServiceServer, ctx context.Context, in *wrapperspb.StringValue) (any, error) {
				return srv.SendCommand(ctx, in)
			}),
		},
		{
			MethodName: "GetStatus",
			Handler: unaryHandler(MethodGetStatus, func(srv InteractionServiceServer, ctx context.Context, in *emptypb.Empty) (any, error) {
				return srv.GetStatus(ctx, in)
			}),
		},
		{
			MethodName: "SwitchAction",
			Handler: unaryHandler(MethodSwitchAction, func(srv InteractionServiceServer, ctx context.Context, in *wrapperspb.Int32Value) (any, error) {
				return srv.SwitchAction(ctx, in)
			}),
		},
		{
			MethodName: "ListEvents",
			Handler: unaryHandler(MethodListEvents, func(srv InteractionServiceServer, ctx context.Context, in *wrapperspb.Int32Value) (any, error) {
				return srv.ListEvents(ctx, in)
			}),
		},
		{
			MethodName: "Ping",
			Handler: unaryHandler(MethodPing, func(srv InteractionServiceServer, ctx context.Context, in *emptypb.Empty) (any, error) {
				return srv.Ping(ctx, in)
			}),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamOutcomes",
			ServerStreams: true,
			Handler: func(srv any, stream grpc.ServerStream) error {
				in := new(emptypb.Empty)
				if err := stream.RecvMsg(in); err != nil {
					return err
				}
				return srv.(InteractionServiceServer).StreamOutcomes(in, stream)
			},
		},
	},
	Metadata: "pbd/v1/interaction.proto",
}

// unaryHandler adapts a typed method to grpc.MethodHandler.
func unaryHandler[Req any, PReq interface {
	*Req
}](method string, call func(InteractionServiceServer, context.Context, PReq) (any, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := PReq(new(Req))
		if err := dec(in); err != nil {
			return nil, err
		}
		typed := srv.(InteractionServiceServer)
		if interceptor == nil {
			return call(typed, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(typed, ctx, req.(PReq))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// toStruct converts a JSON-tagged value into a protobuf Struct.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %T: %w", v, err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode %T: %w", v, err)
	}
	return structpb.NewStruct(fields)
}

// fromStruct decodes a protobuf Struct into a JSON-tagged value.
func fromStruct(s *structpb.Struct, v any) error {
	if s == nil {
		return fmt.Errorf("empty response")
	}
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
