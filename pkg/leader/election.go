// Package leader implements HA standby mode: when multiple cmd/dfo
// processes are configured with the same etcd_endpoints, only the
// campaign winner runs a Dispatcher against the shared worker topology;
// the rest stay CONFIGURED, serving the same REST API and dashboard,
// until the winner's session expires and a new campaign completes.
package leader

import (
	"context"
	"fmt"
	"log"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"
)

const electionKey = "/axon-dfo/leader-election"

// Campaigner wraps an etcd session and election so a cmd/dfo process can
// campaign for the right to run the dispatch loop.
type Campaigner struct {
	id       string
	cli      *clientv3.Client
	session  *concurrency.Session
	election *concurrency.Election
}

// NewCampaigner connects to etcd and opens a session with a 10s TTL. The
// session — not an explicit lease — is what ties this process's
// candidacy to its liveness; if the process dies or loses connectivity,
// the session's keepalive lapses and the election key expires.
func NewCampaigner(id string, endpoints []string) (*Campaigner, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("leader: connect to etcd: %w", err)
	}

	session, err := concurrency.NewSession(cli, concurrency.WithTTL(10))
	if err != nil {
		cli.Close()
		return nil, fmt.Errorf("leader: create session: %w", err)
	}

	return &Campaigner{
		id:       id,
		cli:      cli,
		session:  session,
		election: concurrency.NewElection(session, electionKey),
	}, nil
}

// Campaign blocks until this process wins the election, then returns a
// channel that closes when leadership is lost (session expiry or a
// call to Resign). The caller should start its Dispatcher only after
// Campaign returns, and stop it when the returned channel closes.
func (c *Campaigner) Campaign(ctx context.Context) (<-chan struct{}, error) {
	if err := c.election.Campaign(ctx, c.id); err != nil {
		return nil, fmt.Errorf("leader: campaign: %w", err)
	}
	log.Printf("[LEADER] 🏆 %s elected leader", c.id)
	return c.session.Done(), nil
}

// Resign voluntarily steps down, letting a standby win the next
// campaign without waiting for the session TTL to lapse.
func (c *Campaigner) Resign(ctx context.Context) error {
	if err := c.election.Resign(ctx); err != nil {
		return fmt.Errorf("leader: resign: %w", err)
	}
	log.Printf("[LEADER] %s resigned", c.id)
	return nil
}

// Leader returns the current leader's campaign value, or an error if no
// one currently holds the election.
func (c *Campaigner) Leader(ctx context.Context) (string, error) {
	resp, err := c.election.Leader(ctx)
	if err != nil {
		return "", fmt.Errorf("leader: query: %w", err)
	}
	if len(resp.Kvs) == 0 {
		return "", fmt.Errorf("leader: no leader elected")
	}
	return string(resp.Kvs[0].Value), nil
}

// Close releases the session and etcd client. Safe to call after
// Resign or after the session-expiry channel has closed.
func (c *Campaigner) Close() error {
	if err := c.session.Close(); err != nil {
		log.Printf("[LEADER] ⚠️ close session: %v", err)
	}
	return c.cli.Close()
}
