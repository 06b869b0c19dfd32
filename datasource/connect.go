package datasource

import (
	"context"

	"github.com/stevemurr/docsource/codec"
	"github.com/stevemurr/docsource/config"
)

// Connect probes the store and reports whether the source is connected. It
// is a no-op when already connected. Non-empty fields of override are merged
// into the configuration first. An unreachable or unrecognised server leaves
// the source disconnected; that outcome is not an error.
func (s *Source) Connect(ctx context.Context, override config.Connection) bool {
	if s.state == Connected {
		return true
	}
	s.cfg = s.cfg.Merge(override)
	s.state = Connecting

	log := s.log.With().Str("host", s.cfg.Host).Str("port", s.cfg.Port).Logger()

	t, err := s.factory(s.cfg)
	if err != nil {
		log.Warn().Err(err).Msg("cannot build transport")
		s.release()
		return false
	}
	resp, err := t.Get(ctx, "/")
	if err != nil {
		log.Warn().Err(err).Msg("store unreachable")
		s.release()
		return false
	}
	welcome, _ := codec.AsObject(codec.Decode(resp.Body))
	if marker, _ := welcome.Str("couchdb"); marker != ServiceMarker {
		log.Warn().Int("status", resp.Status).Msg("unrecognised service identity")
		s.release()
		return false
	}

	s.transport = t
	s.state = Connected
	s.metrics.SetConnected(true)
	version, _ := welcome.Str("version")
	log.Info().Str("version", version).Msg("connected")
	return true
}

// Disconnect releases the transport. It always succeeds.
func (s *Source) Disconnect() bool {
	s.release()
	return true
}

// Close is an alias for Disconnect.
func (s *Source) Close() bool {
	return s.Disconnect()
}

func (s *Source) release() {
	s.state = Disconnected
	s.transport = nil
	s.metrics.SetConnected(false)
}
