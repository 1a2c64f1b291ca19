package leader

import (
	"context"
	"fmt"
	"log"

	clientv3 "go.etcd.io/etcd/client/v3"
)

const announceKeyPrefix = "/axon-dfo/leader-addr/"

// Announcer publishes the current leader's API address under a TTL'd
// etcd key so standby dashboards can discover where to redirect
// operators, independent of the election key's own campaign value.
type Announcer struct {
	client     *clientv3.Client
	key        string
	leaseID    clientv3.LeaseID
	cancelKeep context.CancelFunc
}

// NewAnnouncer creates an Announcer for the given campaigner's client.
func NewAnnouncer(c *Campaigner, id string) *Announcer {
	return &Announcer{client: c.cli, key: announceKeyPrefix + id}
}

// Announce grants a lease with the given ttl seconds, publishes addr
// under it, and keeps the lease alive until Revoke is called.
func (a *Announcer) Announce(ctx context.Context, addr string, ttl int64) error {
	resp, err := a.client.Grant(ctx, ttl)
	if err != nil {
		return fmt.Errorf("leader: grant lease: %w", err)
	}
	a.leaseID = resp.ID

	if _, err := a.client.Put(ctx, a.key, addr, clientv3.WithLease(a.leaseID)); err != nil {
		return fmt.Errorf("leader: announce address: %w", err)
	}

	keepCtx, cancel := context.WithCancel(ctx)
	a.cancelKeep = cancel

	ch, err := a.client.KeepAlive(keepCtx, a.leaseID)
	if err != nil {
		cancel()
		return fmt.Errorf("leader: keepalive: %w", err)
	}

	go func() {
		for {
			select {
			case _, ok := <-ch:
				if !ok {
					log.Printf("[LEADER] address announcement lease lapsed for %s", a.key)
					return
				}
			case <-keepCtx.Done():
				return
			}
		}
	}()

	return nil
}

// Revoke stops the keepalive and releases the lease, removing the
// announced address.
func (a *Announcer) Revoke() {
	if a.cancelKeep != nil {
		a.cancelKeep()
	}
	if _, err := a.client.Revoke(context.Background(), a.leaseID); err != nil {
		log.Printf("[LEADER] ⚠️ revoke address lease: %v", err)
	}
}
