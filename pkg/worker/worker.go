// Package worker implements a reference Trigger Record Builder: the
// downstream process cmd/trb runs to exercise a real Data Flow
// Orchestrator deployment in integration tests and demos. It is not
// part of the orchestrator core — the core only ever sees TRBs as named
// connections — but a faithful stand-in is needed to drive the dispatch
// loop and token handler over a real network.Manager.
package worker

import (
	"context"
	"log"
	"sync"

	"time"

	"github.com/athulya-anil/axon-dfo/pkg/codec"
	"github.com/athulya-anil/axon-dfo/pkg/models"
	"github.com/athulya-anil/axon-dfo/pkg/network"
)

// reportTimeout bounds the completion-token send, mirroring the
// orchestrator side's queue_timeout-bounded sends.
const reportTimeout = 5 * time.Second

// ReferenceTRB accepts trigger decisions addressed to connectionName,
// simulates record-building work, and reports a completion token back
// to tokenConnection.
type ReferenceTRB struct {
	connectionName string
	tokenConnection string
	capacity       int
	net            network.Manager

	mu         sync.Mutex
	activeJobs int
}

// NewReferenceTRB creates a TRB identified by connectionName with the
// given simulated capacity, reporting completions to tokenConnection
// over net.
func NewReferenceTRB(connectionName, tokenConnection string, capacity int, net network.Manager) *ReferenceTRB {
	return &ReferenceTRB{
		connectionName:  connectionName,
		tokenConnection: tokenConnection,
		capacity:        capacity,
		net:             net,
	}
}

// Start registers this TRB's callback and begins accepting decisions.
func (w *ReferenceTRB) Start() error {
	if err := w.net.RegisterCallback(w.connectionName, w.handleDecision); err != nil {
		return err
	}
	if err := w.net.StartListening(w.connectionName); err != nil {
		return err
	}
	log.Printf("[TRB] %s ready (capacity: %d)", w.connectionName, w.capacity)
	return nil
}

// Stop deregisters the callback and stops listening.
func (w *ReferenceTRB) Stop() {
	if err := w.net.ClearCallback(w.connectionName); err != nil {
		log.Printf("[TRB] ⚠️ clear callback: %v", err)
	}
	if err := w.net.StopListening(w.connectionName); err != nil {
		log.Printf("[TRB] ⚠️ stop listening: %v", err)
	}
	log.Printf("[TRB] %s stopped", w.connectionName)
}

// handleDecision is invoked by the network layer for every inbound
// trigger decision. It runs the build asynchronously so a slow build
// never blocks the network thread delivering the next decision.
func (w *ReferenceTRB) handleDecision(payload []byte) {
	decision, err := codec.DecodeDecision(payload)
	if err != nil {
		log.Printf("[TRB] ❌ %s decode decision: %v", w.connectionName, err)
		return
	}

	w.mu.Lock()
	w.activeJobs++
	active := w.activeJobs
	w.mu.Unlock()

	log.Printf("[TRB] %s received trigger=%d (active: %d/%d)", w.connectionName, decision.TriggerNumber, active, w.capacity)

	go w.build(decision)
}

// ActiveJobs returns the number of builds currently in flight.
func (w *ReferenceTRB) ActiveJobs() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.activeJobs
}

// reportCompletion encodes and sends a completion token for decision.
func (w *ReferenceTRB) reportCompletion(decision models.TriggerDecision) {
	w.mu.Lock()
	w.activeJobs--
	w.mu.Unlock()

	token := models.CompletionToken{
		TriggerNumber:       decision.TriggerNumber,
		RunNumber:           decision.RunNumber,
		DecisionDestination: w.connectionName,
	}

	payload, err := codec.EncodeToken(token)
	if err != nil {
		log.Printf("[TRB] ❌ %s encode token for trigger=%d: %v", w.connectionName, decision.TriggerNumber, err)
		return
	}

	if err := w.net.SendTo(context.Background(), w.tokenConnection, payload, reportTimeout); err != nil {
		log.Printf("[TRB] ❌ %s report completion for trigger=%d: %v", w.connectionName, decision.TriggerNumber, err)
	}
}
