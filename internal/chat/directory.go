package chat

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/saeid-a/CoachAppRealtime/internal/models"
)

type peerLister interface {
	ListPeers(ctx context.Context, viewer models.Role) ([]models.Peer, error)
}

// PeerDirectory holds the conversation partners available to the viewer.
type PeerDirectory struct {
	lister peerLister
	viewer models.Role
	log    zerolog.Logger

	mu    sync.RWMutex
	peers []models.Peer
}

func NewPeerDirectory(lister peerLister, viewer models.Role, log zerolog.Logger) *PeerDirectory {
	return &PeerDirectory{
		lister: lister,
		viewer: viewer,
		log:    log.With().Str("component", "peer_directory").Logger(),
	}
}

// Load fetches the peer list. On failure the last good list is kept and returned
// alongside the error.
func (d *PeerDirectory) Load(ctx context.Context) ([]models.Peer, error) {
	peers, err := d.lister.ListPeers(ctx, d.viewer)
	if err != nil {
		d.log.Warn().Err(err).Msg("peer list unavailable")
		return d.Peers(), err
	}

	d.mu.Lock()
	d.peers = append([]models.Peer(nil), peers...)
	d.mu.Unlock()

	d.log.Debug().Int("count", len(peers)).Msg("peer list loaded")
	return d.Peers(), nil
}

func (d *PeerDirectory) Peers() []models.Peer {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]models.Peer{}, d.peers...)
}

func (d *PeerDirectory) Find(id string) (models.Peer, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, peer := range d.peers {
		if peer.ID == id {
			return peer, true
		}
	}
	return models.Peer{}, false
}
