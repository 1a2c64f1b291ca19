// Command trb runs a reference Trigger Record Builder: it accepts
// trigger decisions over gRPC, simulates record-building work, and
// reports completion tokens back to the orchestrator's token
// connection. It exists to exercise a real Data Flow Orchestrator
// deployment end to end in integration tests and demos.
package main

import (
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/athulya-anil/axon-dfo/pkg/network"
	"github.com/athulya-anil/axon-dfo/pkg/worker"
	"google.golang.org/grpc"
)

func main() {
	connectionName := os.Getenv("TRB_CONNECTION_NAME")
	if connectionName == "" {
		hostname, _ := os.Hostname()
		connectionName = "trb-" + hostname
	}

	port := os.Getenv("TRB_PORT")
	if port == "" {
		port = "50061"
	}

	tokenConnection := os.Getenv("TOKEN_CONNECTION")
	if tokenConnection == "" {
		tokenConnection = "tokens"
	}
	orchestratorAddr := os.Getenv("ORCHESTRATOR_ADDR")
	if orchestratorAddr == "" {
		orchestratorAddr = "localhost:50060"
	}

	capacity := 5

	log.Printf("[TRB] 🚀 starting %s on port %s...", connectionName, port)
	log.Printf("[TRB] 📡 orchestrator token connection %q at %s", tokenConnection, orchestratorAddr)

	netMgr := network.NewGrpcManager()
	netMgr.AddPeer(tokenConnection, orchestratorAddr)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", port))
	if err != nil {
		log.Fatalf("[TRB] ❌ listen: %v", err)
	}
	grpcServer := grpc.NewServer()
	netMgr.Register(grpcServer)
	go func() {
		log.Printf("[TRB] 🎧 %s gRPC server listening on :%s", connectionName, port)
		if err := grpcServer.Serve(lis); err != nil {
			log.Printf("[TRB] ⚠️ serve: %v", err)
		}
	}()
	defer grpcServer.GracefulStop()

	trb := worker.NewReferenceTRB(connectionName, tokenConnection, capacity, netMgr)
	if err := trb.Start(); err != nil {
		log.Fatalf("[TRB] ❌ start: %v", err)
	}

	log.Printf("[TRB] ✅ %s ready (capacity: %d)", connectionName, capacity)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Printf("[TRB] 🛑 shutting down %s...", connectionName)
	trb.Stop()
	log.Println("[TRB] 👋 stopped")
}
