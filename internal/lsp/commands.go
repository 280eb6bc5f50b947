package lsp

import (
	"encoding/json"

	"memeful/internal/trace"
)

// window/showMessage type for informational messages.
const messageInfo = 3

func (s *Server) handleExecuteCommand(msg *rpcMessage) error {
	var params executeCommandParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, -32602, "invalid params")
	}
	switch params.Command {
	case commandToggle:
		enabled := s.sw.Toggle()
		trace.Point(trace.FromContext(s.baseCtx), trace.ScopeSession, "toggle", toggleMessage(enabled))
		s.refreshAll()
		if err := s.sendNotification("window/showMessage", showMessageParams{
			Type:    messageInfo,
			Message: toggleMessage(enabled),
		}); err != nil {
			return err
		}
		return s.sendResponse(msg.ID, enabled)
	case commandRetryFailed:
		retried := 0
		for _, doc := range s.documents() {
			retried += doc.session.RetryFailed()
		}
		return s.sendResponse(msg.ID, retried)
	default:
		return s.sendError(msg.ID, -32601, "unknown command "+params.Command)
	}
}

func toggleMessage(enabled bool) string {
	if enabled {
		return "Memeful comments enabled."
	}
	return "Memeful comments disabled."
}
