package lsp

import (
	"encoding/json"
	"time"

	"memeful/internal/dialect"
)

func (s *Server) handleDidChangeConfiguration(msg *rpcMessage) error {
	if len(msg.Params) == 0 {
		return nil
	}
	var params didChangeConfigurationParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return nil
	}
	if s.applySettings(params.Settings) {
		s.refreshAll()
	}
	return nil
}

// applySettings merges client settings and reports whether open documents
// need a fresh pass.
func (s *Server) applySettings(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var settings lspSettings
	if err := json.Unmarshal(raw, &settings); err != nil {
		return false
	}
	cfg := settings.Memeful
	refresh := false

	if cfg.Enabled != nil && *cfg.Enabled != s.sw.Enabled() {
		s.sw.Set(*cfg.Enabled)
		refresh = true
	}

	s.mu.Lock()
	if cfg.Trace != nil {
		s.traceLSP = *cfg.Trace
	}
	var debounce time.Duration
	if cfg.Debounce != nil {
		if d, err := time.ParseDuration(*cfg.Debounce); err == nil && d > 0 {
			s.debounce = d
			debounce = d
		} else {
			s.logf("ignoring invalid debounce %q", *cfg.Debounce)
		}
	}
	for id, name := range cfg.Languages {
		k, err := dialect.Parse(name)
		if err != nil {
			s.logf("ignoring language override %s: %v", id, err)
			continue
		}
		s.languages[id] = k
	}
	s.mu.Unlock()

	if debounce > 0 {
		for _, doc := range s.documents() {
			doc.session.SetDebounce(debounce)
		}
	}
	return refresh
}
