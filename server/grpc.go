package server

import (
	"context"
	"errors"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	. "hstin/gdd/helper"
	"hstin/gdd/metrics"
)

// GDDServiceServer takes {"lat": .., "lng": ..} and answers with the fields
// of PointResponse.
type GDDServiceServer interface {
	GetPoint(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

const getPointMethod = "/gdd.GDDService/GetPoint"

var gddServiceDesc = grpc.ServiceDesc{
	ServiceName: "gdd.GDDService",
	HandlerType: (*GDDServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetPoint",
			Handler:    getPointHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gdd.proto",
}

func getPointHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(GDDServiceServer).GetPoint(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: getPointMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(GDDServiceServer).GetPoint(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

type server struct {
	store   *Store
	metrics *metrics.Metrics
}

func (s *server) GetPoint(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	lat, okLat := in.GetFields()["lat"].GetKind().(*structpb.Value_NumberValue)
	lng, okLng := in.GetFields()["lng"].GetKind().(*structpb.Value_NumberValue)
	if !okLat || !okLng {
		s.metrics.PointQueries.WithLabelValues("grpc", "invalid").Inc()
		return nil, status.Error(codes.InvalidArgument, "lat and lng are required numbers")
	}

	resp, err := s.store.Point(lat.NumberValue, lng.NumberValue)
	switch {
	case errors.Is(err, ErrOutsideGrid):
		s.metrics.PointQueries.WithLabelValues("grpc", "outside").Inc()
		return nil, status.Error(codes.NotFound, err.Error())
	case err != nil:
		s.metrics.PointQueries.WithLabelValues("grpc", "invalid").Inc()
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	times := make([]interface{}, len(resp.Times))
	for i, t := range resp.Times {
		times[i] = float64(t)
	}
	gdd := make([]interface{}, len(resp.GDD))
	for i, v := range resp.GDD {
		gdd[i] = float64(v)
	}

	out, err := structpb.NewStruct(map[string]interface{}{
		"calculation_time": float64(resp.CalculationTime),
		"latitude":         resp.Latitude,
		"longitude":        resp.Longitude,
		"grid_latitude":    resp.GridLatitude,
		"grid_longitude":   resp.GridLongitude,
		"distance_km":      resp.DistanceKm,
		"y":                float64(resp.Y),
		"x":                float64(resp.X),
		"utc_offset":       float64(resp.UTCOffset),
		"timezone":         resp.Timezone,
		"units":            resp.Units,
		"fill_value":       float64(resp.FillValue),
		"times":            times,
		"gdd":              gdd,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	s.metrics.PointQueries.WithLabelValues("grpc", "ok").Inc()
	return out, nil
}

func NewGRPCServer(store *Store, m *metrics.Metrics) *grpc.Server {
	s := grpc.NewServer()
	s.RegisterService(&gddServiceDesc, &server{store: store, metrics: m})
	reflection.Register(s)
	return s
}

func StartGRPCServer(s *grpc.Server, port string) {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		Log.Fatal().Err(err).Msg("failed to start listener")
	}

	Log.Info().Msgf("gRPC server listening at :%s", port)
	if err := s.Serve(lis); err != nil {
		Log.Fatal().Err(err).Msg("failed to start gRPC server")
	}
}
