package worker

import (
	"log"
	"math/rand"
	"time"

	"github.com/athulya-anil/axon-dfo/pkg/models"
)

// build simulates the time a real TRB spends assembling a trigger
// record, then reports completion. Build time is randomized within a
// fixed range so demo runs show varied outstanding/latency numbers on
// the dashboard rather than a flat line.
func (w *ReferenceTRB) build(decision models.TriggerDecision) {
	buildTime := time.Duration(50+rand.Intn(200)) * time.Millisecond
	time.Sleep(buildTime)

	log.Printf("[TRB] %s built trigger=%d in %v", w.connectionName, decision.TriggerNumber, buildTime)
	w.reportCompletion(decision)
}
