package jobs

import (
	"github.com/rs/zerolog"

	chatws "github.com/servimarket/api/websocket"
)

// SweepPresence returns a cron-callable that pings every live session
// and evicts the ones whose peer went away without a close frame.
// Durable delivery never depends on this; it only keeps the registry
// from accumulating dead connections.
func SweepPresence(hub *chatws.Hub, log zerolog.Logger) func() {
	return func() {
		evicted := hub.Sweep()
		log.Info().
			Int("evicted", evicted).
			Int("live_sessions", hub.Count()).
			Msg("presence sweep")
	}
}
