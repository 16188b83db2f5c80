// artindexd serves bounded ART index range scans over gRPC.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/nainya/artindex/internal/logger"
	"github.com/nainya/artindex/internal/metrics"
	"github.com/nainya/artindex/internal/rpc"
	"github.com/nainya/artindex/internal/server"
)

var (
	port     = flag.Int("port", 50051, "The gRPC server port")
	httpPort = flag.Int("http-port", 9090, "The observability HTTP port (metrics, health, pprof)")
	dbPath   = flag.String("db", "artindex.db", "Page store file path")
	logLevel = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	pretty   = flag.Bool("log-pretty", false, "Pretty-print logs for local development")
)

func main() {
	flag.Parse()

	log := logger.NewLogger(logger.Config{Level: *logLevel, Pretty: *pretty})
	logger.InitGlobalLogger(logger.Config{Level: *logLevel, Pretty: *pretty})

	log.LogServerStart(*port, *dbPath)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", *port))
	if err != nil {
		log.Fatal("failed to listen").Err(err).Send()
	}

	indexServer, err := server.NewServer(*dbPath)
	if err != nil {
		log.Fatal("failed to create server").Err(err).Send()
	}
	defer indexServer.Close()

	m := metrics.NewMetrics()

	grpcServer := grpc.NewServer(
		grpc.ForceServerCodec(rpc.GobCodec{}),
		grpc.MaxRecvMsgSize(100*1024*1024),
		grpc.MaxSendMsgSize(100*1024*1024),
		grpc.ChainUnaryInterceptor(server.GrpcMetricsInterceptor(m, log)),
	)

	rpc.RegisterScanServer(grpcServer, indexServer)
	reflection.Register(grpcServer)

	obsServer := server.NewObservabilityServer(*httpPort, log)
	go func() {
		if err := obsServer.Start(); err != nil {
			log.Error("observability server exited").Err(err).Send()
		}
	}()

	go updatePagerStatsLoop(indexServer, m)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.LogServerShutdown()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		obsServer.Shutdown(ctx)

		grpcServer.GracefulStop()
	}()

	log.LogServerReady(*port)
	if err := grpcServer.Serve(lis); err != nil {
		log.Fatal("failed to serve").Err(err).Send()
	}
}

// updatePagerStatsLoop polls the page store's on-disk size and free
// list occupancy and republishes them as gauges, the same way
// Metrics.updateUptime republishes server uptime.
func updatePagerStatsLoop(s *server.Server, m *metrics.Metrics) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		dbSizeBytes, _, freePages := s.Stats()
		m.UpdatePagerStats(dbSizeBytes, freePages)
	}
}
