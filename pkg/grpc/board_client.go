package grpc

import (
	"context"
	"fmt"
	"time"

	"github.com/example/roomservice/pkg/discovery"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
)

// BoardClient calls a BoardService, locating it through etcd when a
// discovery client is given.
type BoardClient struct {
	conn   *grpc.ClientConn
	logger *zap.Logger
}

// DialBoard connects to target, or to the first registered instance of
// serviceName when disc is set and has one.
func DialBoard(disc *discovery.ServiceDiscovery, serviceName, target string, logger *zap.Logger, opts ...grpc.DialOption) (*BoardClient, error) {
	if disc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		instances, err := disc.Discover(ctx, serviceName)
		if err == nil && len(instances) > 0 {
			target = instances[0].Address()
			logger.Info("Discovered board service", zap.String("address", target))
		} else {
			logger.Info("Using default address for board service", zap.String("address", target))
		}
	}

	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to board service: %w", err)
	}
	return &BoardClient{conn: conn, logger: logger}, nil
}

// GetBoard fetches a department board, sending token as bearer metadata.
func (c *BoardClient) GetBoard(ctx context.Context, token, hotelID, department string) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(map[string]interface{}{
		"hotel_id":   hotelID,
		"department": department,
	})
	if err != nil {
		return nil, err
	}
	if token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, getBoardMethod, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BoardClient) Close() error {
	return c.conn.Close()
}
