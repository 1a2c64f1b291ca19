// Command dfo is the orchestrator host process: it loads configuration,
// wires the gRPC network manager, the WorkerTable/Dispatcher/TokenHandler
// trio inside pkg/scheduler's Orchestrator, and exposes the REST
// control/status API and HTML+SSE dashboard. When etcd_endpoints is
// configured it campaigns for leadership before starting its dispatcher,
// so multiple replicas can run in HA standby mode.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/athulya-anil/axon-dfo/pkg/api"
	"github.com/athulya-anil/axon-dfo/pkg/config"
	"github.com/athulya-anil/axon-dfo/pkg/dashboard"
	"github.com/athulya-anil/axon-dfo/pkg/leader"
	"github.com/athulya-anil/axon-dfo/pkg/network"
	"github.com/athulya-anil/axon-dfo/pkg/scheduler"
	"github.com/gin-gonic/gin"
	grpclib "google.golang.org/grpc"
)

func main() {
	configPath := flag.String("config", "dfo.yaml", "path to orchestrator configuration")
	runNumber := flag.Uint64("run-number", 1, "run number to start with")
	grpcPort := flag.String("grpc-port", "50060", "port the token-connection gRPC server listens on")
	flag.Parse()

	nodeID, _ := os.Hostname()
	if nodeID == "" {
		nodeID = "dfo-0"
	}

	log.Printf("[DFO] 🚀 starting on node %s...", nodeID)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[DFO] ❌ load config: %v", err)
	}

	netMgr := network.NewGrpcManager()
	for _, app := range cfg.DataflowApplications {
		netMgr.AddPeer(app.ConnectionName, app.Address)
	}

	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", *grpcPort))
	if err != nil {
		log.Fatalf("[DFO] ❌ listen on port %s: %v", *grpcPort, err)
	}
	grpcServer := grpclib.NewServer()
	netMgr.Register(grpcServer)
	go func() {
		log.Printf("[DFO] 🎧 token gRPC server listening on :%s", *grpcPort)
		if err := grpcServer.Serve(lis); err != nil {
			log.Printf("[DFO] ⚠️ grpc serve: %v", err)
		}
	}()
	defer grpcServer.GracefulStop()

	orchestrator := scheduler.New()
	if err := orchestrator.Configure(cfg, netMgr); err != nil {
		log.Fatalf("[DFO] ❌ configure: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The REST/dashboard router starts immediately, win or lose: a
	// standby replica still answers /status, /workers, and /health in
	// whatever state the orchestrator is actually in (CONFIGURED until
	// it wins a campaign, RUNNING once it does), rather than going dark
	// for as long as it takes to win an election.
	router := gin.Default()
	api.NewAPI(orchestrator).SetupRoutes(router)
	if dash, err := dashboard.NewDashboard(orchestrator); err != nil {
		log.Printf("[DFO] ⚠️ dashboard unavailable: %v", err)
	} else {
		dash.SetupRoutes(router)
	}

	go func() {
		log.Printf("[DFO] ✅ listening on %s", cfg.ListenAddr)
		if err := router.Run(cfg.ListenAddr); err != nil {
			log.Printf("[DFO] ⚠️ http server: %v", err)
		}
	}()

	if len(cfg.EtcdEndpoints) > 0 {
		go runHA(ctx, nodeID, cfg, orchestrator, *runNumber)
	} else {
		if err := orchestrator.Start(ctx, *runNumber); err != nil {
			log.Fatalf("[DFO] ❌ start: %v", err)
		}
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Printf("[DFO] 🛑 shutting down...")
	if err := orchestrator.Stop(); err != nil {
		log.Printf("[DFO] ⚠️ stop: %v", err)
	}
	if err := orchestrator.Scrap(); err != nil {
		log.Printf("[DFO] ⚠️ scrap: %v", err)
	}
	log.Println("[DFO] 👋 stopped")
}

// runHA repeatedly campaigns for leadership: each iteration opens a fresh
// session (a session doesn't survive losing its election), campaigns
// until it wins, runs the dispatch loop for as long as it holds
// leadership, then loops back to campaign again once it's lost. This
// keeps a standby that regains leadership able to take back over rather
// than sitting out permanently after its first loss.
func runHA(ctx context.Context, nodeID string, cfg *config.Config, o *scheduler.Orchestrator, runNumber uint64) {
	for {
		if ctx.Err() != nil {
			return
		}

		campaigner, err := leader.NewCampaigner(nodeID, cfg.EtcdEndpoints)
		if err != nil {
			log.Printf("[DFO] ⚠️ leader campaigner: %v", err)
			if !sleepOrDone(ctx, electionRetryBackoff) {
				return
			}
			continue
		}

		lost, err := campaigner.Campaign(ctx)
		if err != nil {
			log.Printf("[DFO] ⚠️ campaign: %v", err)
			campaigner.Close()
			if !sleepOrDone(ctx, electionRetryBackoff) {
				return
			}
			continue
		}

		if err := o.Start(ctx, runNumber); err != nil {
			log.Printf("[DFO] ⚠️ start after winning campaign: %v", err)
			campaigner.Close()
			if !sleepOrDone(ctx, electionRetryBackoff) {
				return
			}
			continue
		}

		select {
		case <-lost:
			log.Printf("[DFO] ⚠️ lost leadership, stopping dispatcher")
		case <-ctx.Done():
			campaigner.Close()
			return
		}

		if err := o.Stop(); err != nil {
			log.Printf("[DFO] ⚠️ stop after losing leadership: %v", err)
		}
		campaigner.Close()
	}
}

// electionRetryBackoff bounds how fast runHA retries after a failed
// campaign attempt, so a down etcd cluster doesn't spin the loop.
const electionRetryBackoff = 2 * time.Second

// sleepOrDone waits for d, returning false early if ctx is done.
func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
