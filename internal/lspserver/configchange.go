package lspserver

import (
	"encoding/json"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/metalls/metalls/internal/config"
)

// onDidChangeConfiguration decodes workspace/didChangeConfiguration's
// payload by hand rather than through a protocol.DidChangeConfigurationParams
// struct: Settings is arbitrary client-defined JSON keyed by section name,
// and the only section this server understands is "metalls".
func (s *Server) onDidChangeConfiguration(req *jsonrpc2.Request) error {
	var payload struct {
		Settings struct {
			Metalls json.RawMessage `json:"metalls"`
		} `json:"settings"`
	}
	if err := json.Unmarshal(*req.Params, &payload); err != nil {
		return err
	}
	if len(payload.Settings.Metalls) == 0 {
		return nil
	}

	cfg, err := config.Parse(payload.Settings.Metalls)
	if err != nil {
		s.log.Warn().Err(err).Msg("rejected configuration update")
		return nil
	}

	sess := s.session()
	if sess == nil {
		return nil
	}
	if restart := sess.UpdateConfig(cfg); restart {
		s.log.Warn().Msg("threadPool configuration changed; restart metalls to apply it")
	}
	return nil
}
