package generatorserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "pathgan.generator.v1.GeneratorService"

const generateMethod = "/" + ServiceName + "/Generate"

// GeneratorServiceServer is the server API for GeneratorService. Requests and
// responses are google.protobuf.Struct messages:
//
//	request:  {"start": [x, y], "end": [x, y], "seed": n}
//	response: {"moves": [[x, y], ...], "path_length": n}
type GeneratorServiceServer interface {
	Generate(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes GeneratorService for grpc.ServiceRegistrar
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*GeneratorServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Generate",
			Handler:    generateHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pathgan/generator/v1/generator.proto",
}

// Register attaches srv to a gRPC server
func Register(s grpc.ServiceRegistrar, srv GeneratorServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func generateHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(GeneratorServiceServer).Generate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: generateMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(GeneratorServiceServer).Generate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}
