package leafnode

import (
	"context"
	"os"
	"time"

	"github.com/n0rdlicht/gnutellafs/internal/transport"
	"github.com/n0rdlicht/gnutellafs/internal/wire"
)

// runConsistencyChecker is the pull-model poller. Every tick it probes
// the origin of each non-origin registry entry whose last_checked is
// absent or older than the model's TTR, and applies the verdict.
func (n *Node) runConsistencyChecker(ctx context.Context) {
	ticker := time.NewTicker(ConsistencyPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.checkConsistencyOnce()
		}
	}
}

func (n *Node) checkConsistencyOnce() {
	ttr := n.Model.TTR()
	now := time.Now()

	for _, name := range n.Registry.Names() {
		fi, ok := n.Registry.Get(name)
		if !ok || n.Registry.IsOrigin(name, n.Addr) {
			continue
		}

		last, checked := n.Registry.LastChecked(name)
		if checked && now.Sub(last) < ttr {
			continue
		}

		n.probeOrigin(name, fi)
	}
}

func (n *Node) probeOrigin(name string, fi wire.FileInfo) {
	reply, err := transport.DialAndSend(fi.Origin, n.Addr, wire.FormatStatusRequest(fi))
	if err != nil {
		n.Log.Warnf("status probe for %s: %v", name, err)
		return
	}

	switch reply {
	case wire.StatusDeleted:
		n.Deregister(name)
		if err := os.Remove(n.downloadPath(name)); err != nil && !os.IsNotExist(err) {
			n.Log.Warnf("delete stale replica %s: %v", name, err)
		}
	case wire.StatusOutdated:
		// Deregister only; the stale file stays on disk so the user
		// keeps access to it until they run refresh to redownload.
		n.Deregister(name)
	case wire.StatusUpToDate:
		n.Registry.SetLastChecked(name, time.Now())
	default:
		n.Log.Warnf("status probe for %s: unrecognized reply %q", name, reply)
	}
}
