package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/example/roomservice/pkg/auth"
	"github.com/example/roomservice/pkg/config"
	"github.com/example/roomservice/pkg/discovery"
	"github.com/example/roomservice/pkg/grpc"
	"go.uber.org/zap"
	"google.golang.org/protobuf/encoding/protojson"
)

// board queries a running board service and prints the result as JSON.
func board(cfg *config.Config, logger *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("board", flag.ContinueOnError)
	hotel := fs.String("hotel", demoHotel, "hotel id")
	dept := fs.String("department", "kitchen", "kitchen or bar")
	caller := fs.String("caller", demoStaff, "staff user id, used to sign a token when -token is empty")
	token := fs.String("token", "", "bearer token")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *token == "" {
		signed, err := auth.Sign(cfg.Auth.JWTSecret, *caller, time.Minute)
		if err != nil {
			return fmt.Errorf("failed to sign token: %w", err)
		}
		*token = signed
	}

	var disc *discovery.ServiceDiscovery
	if cfg.Etcd.Enabled {
		sd, err := discovery.NewServiceDiscovery(&cfg.Etcd, logger)
		if err != nil {
			logger.Warn("Failed to connect to etcd, using configured address", zap.Error(err))
		} else {
			defer sd.Close()
			disc = sd
		}
	}

	client, err := grpc.DialBoard(disc, cfg.Server.Name+"-grpc", cfg.GRPC.Addr(), logger)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := client.GetBoard(ctx, *token, *hotel, *dept)
	if err != nil {
		return err
	}
	out, err := protojson.MarshalOptions{Multiline: true}.Marshal(resp)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, string(out))
	return nil
}
