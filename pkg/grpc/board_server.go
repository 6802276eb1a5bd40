package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/example/roomservice/pkg/auth"
	"github.com/example/roomservice/pkg/config"
	"github.com/example/roomservice/pkg/orders"
	"github.com/example/roomservice/pkg/status"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/reflection"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	BoardServiceName = "roomservice.v1.BoardService"
	getBoardMethod   = "/" + BoardServiceName + "/GetBoard"
)

// BoardService serves department dashboards to kiosk clients. Requests and
// responses are google.protobuf.Struct values:
//
//	request:  {hotel_id, department}
//	response: {department, total, orders: [...]}
//
// Callers authenticate with "authorization: Bearer <jwt>" metadata.
type BoardService interface {
	GetBoard(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var boardServiceDesc = grpc.ServiceDesc{
	ServiceName: BoardServiceName,
	HandlerType: (*BoardService)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetBoard",
			Handler:    getBoardHandler,
		},
	},
	Streams: []grpc.StreamDesc{},
}

func getBoardHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BoardService).GetBoard(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: getBoardMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(BoardService).GetBoard(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// RegisterBoardService attaches impl to s.
func RegisterBoardService(s grpc.ServiceRegistrar, impl BoardService) {
	s.RegisterService(&boardServiceDesc, impl)
}

type BoardServer struct {
	service *orders.Service
	logger  *zap.Logger
	config  *config.GRPCConfig
	secret  string
	server  *grpc.Server
	health  *health.Server
}

func NewBoardServer(cfg *config.GRPCConfig, secret string, service *orders.Service, logger *zap.Logger) *BoardServer {
	s := &BoardServer{
		service: service,
		logger:  logger.Named("grpc"),
		config:  cfg,
		secret:  secret,
		health:  health.NewServer(),
	}
	s.server = grpc.NewServer(grpc.ChainUnaryInterceptor(s.logInterceptor, s.authInterceptor))
	RegisterBoardService(s.server, s)
	healthpb.RegisterHealthServer(s.server, s.health)
	reflection.Register(s.server)
	return s
}

// Serve blocks serving on lis.
func (s *BoardServer) Serve(lis net.Listener) error {
	s.health.SetServingStatus(BoardServiceName, healthpb.HealthCheckResponse_SERVING)
	s.logger.Info("Board service started", zap.String("address", lis.Addr().String()))
	return s.server.Serve(lis)
}

func (s *BoardServer) Start() error {
	addr := s.config.Addr()
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(lis)
}

func (s *BoardServer) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}

func (s *BoardServer) GetBoard(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	dept, ok := status.DepartmentByName(fields["department"].GetStringValue())
	if !ok {
		return nil, grpcstatus.Error(codes.InvalidArgument, "department must be kitchen or bar")
	}
	hotelID := fields["hotel_id"].GetStringValue()
	if hotelID == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "hotel_id is required")
	}

	entries, err := s.service.Board(ctx, auth.CallerFrom(ctx), hotelID, dept)
	if err != nil {
		return nil, toStatus(err)
	}

	list, err := toList(entries)
	if err != nil {
		s.logger.Error("Failed to encode board", zap.Error(err))
		return nil, grpcstatus.Error(codes.Internal, "failed to encode board")
	}
	return structpb.NewStruct(map[string]interface{}{
		"department": string(dept),
		"total":      len(entries),
		"orders":     list,
	})
}

func (s *BoardServer) logInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	resp, err := handler(ctx, req)
	if err != nil {
		s.logger.Warn("gRPC call failed", zap.String("method", info.FullMethod), zap.Error(err))
	}
	return resp, err
}

// authInterceptor verifies the bearer token on board calls and puts the
// caller id into the context. Health and reflection stay open.
func (s *BoardServer) authInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	if !strings.HasPrefix(info.FullMethod, "/"+BoardServiceName+"/") {
		return handler(ctx, req)
	}
	var header string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get("authorization"); len(vals) > 0 {
			header = vals[0]
		}
	}
	tokenStr, err := auth.ParseBearer(header)
	if err != nil {
		return nil, grpcstatus.Error(codes.Unauthenticated, err.Error())
	}
	claims, err := auth.Verify(s.secret, tokenStr)
	if err != nil {
		return nil, grpcstatus.Error(codes.Unauthenticated, err.Error())
	}
	return handler(auth.WithCaller(ctx, claims.CallerID), req)
}

// toList converts board entries to plain JSON values so they fit a Struct.
func toList(entries []orders.BoardEntry) ([]interface{}, error) {
	raw, err := json.Marshal(entries)
	if err != nil {
		return nil, err
	}
	var out []interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []interface{}{}
	}
	return out, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, orders.ErrUnauthenticated):
		return grpcstatus.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, orders.ErrForbidden):
		return grpcstatus.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, orders.ErrOrderNotFound):
		return grpcstatus.Error(codes.NotFound, err.Error())
	default:
		return grpcstatus.Error(codes.Internal, err.Error())
	}
}
