package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"memeful/internal/batch"
	"memeful/internal/dialect"
	"memeful/internal/linestate"
	"memeful/internal/overlay"
	"memeful/internal/trace"
)

var (
	// ErrExit signals a graceful shutdown after receiving "exit".
	ErrExit = errors.New("lsp exit")
	// ErrExitWithoutShutdown signals an "exit" without a preceding "shutdown".
	ErrExitWithoutShutdown = errors.New("lsp exit without shutdown")
)

const (
	commandToggle      = "memeful.toggle"
	commandRetryFailed = "memeful.retryFailed"

	methodLineOutcome = "memeful/lineOutcome"
	methodSetLanguage = "memeful/setLanguage"

	diagnosticSource = "memeful"
)

// ServerOptions configures LSP server behavior.
type ServerOptions struct {
	Debounce time.Duration
	// Fetcher resolves remote images; nil disables remote loading.
	Fetcher linestate.Fetcher
	// Switch is the shared enable toggle; nil starts enabled.
	Switch *overlay.Switch
	// Languages overrides the dialect picked for an editor language id.
	Languages map[string]dialect.Kind
	Version   string
}

// Server handles stdio JSON-RPC for the memeful language server.
type Server struct {
	in     *bufio.Reader
	out    *bufio.Writer
	sendMu sync.Mutex
	mu     sync.Mutex
	docs   map[string]*document

	workspaceRoot     string
	shutdownRequested bool
	debounce          time.Duration
	fetcher           linestate.Fetcher
	sw                *overlay.Switch
	dispatcher        *overlay.Dispatcher
	languages         map[string]dialect.Kind
	version           string
	baseCtx           context.Context
	traceLSP          bool
}

// NewServer constructs a new LSP server.
func NewServer(in io.Reader, out io.Writer, opts ServerOptions) *Server {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = batch.DefaultDelay
	}
	sw := opts.Switch
	if sw == nil {
		sw = overlay.NewSwitch(true)
	}
	languages := make(map[string]dialect.Kind, len(opts.Languages))
	for id, k := range opts.Languages {
		languages[id] = k
	}
	return &Server{
		in:         bufio.NewReader(in),
		out:        bufio.NewWriter(out),
		docs:       make(map[string]*document),
		debounce:   debounce,
		fetcher:    opts.Fetcher,
		sw:         sw,
		dispatcher: overlay.NewDispatcher(),
		languages:  languages,
		version:    opts.Version,
		baseCtx:    context.Background(),
	}
}

// Run serves LSP requests until shutdown.
func (s *Server) Run(ctx context.Context) error {
	s.baseCtx = ctx
	defer s.dispatcher.Close()
	defer s.closeAll()
	for {
		payload, err := readMessage(s.in)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		var msg rpcMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.logf("failed to parse message: %v", err)
			continue
		}
		if msg.Method == "" {
			continue
		}
		if err := s.handleMessage(&msg); err != nil {
			return err
		}
	}
}

func (s *Server) handleMessage(msg *rpcMessage) error {
	switch msg.Method {
	case "initialize":
		return s.handleInitialize(msg)
	case "initialized":
		return nil
	case "shutdown":
		return s.handleShutdown(msg)
	case "exit":
		if s.shutdownRequested {
			return ErrExit
		}
		return ErrExitWithoutShutdown
	case "workspace/didChangeConfiguration":
		return s.handleDidChangeConfiguration(msg)
	case "workspace/executeCommand":
		return s.handleExecuteCommand(msg)
	case "textDocument/didOpen":
		return s.handleDidOpen(msg)
	case "textDocument/didChange":
		return s.handleDidChange(msg)
	case "textDocument/didSave":
		return s.handleDidSave(msg)
	case "textDocument/didClose":
		return s.handleDidClose(msg)
	case "textDocument/hover":
		return s.handleHover(msg)
	case methodSetLanguage:
		return s.handleSetLanguage(msg)
	default:
		if len(msg.ID) > 0 {
			return s.sendError(msg.ID, -32601, "method not found")
		}
		return nil
	}
}

func (s *Server) handleInitialize(msg *rpcMessage) error {
	var params initializeParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return s.sendError(msg.ID, -32602, "invalid params")
		}
	}
	root := ""
	if params.RootURI != "" {
		root = uriToPath(params.RootURI)
	}
	if root == "" && params.RootPath != "" {
		root = params.RootPath
	}
	if root == "" && len(params.WorkspaceFolders) > 0 {
		root = uriToPath(params.WorkspaceFolders[0].URI)
	}
	if root != "" {
		if abs, err := filepath.Abs(root); err == nil {
			root = abs
		}
	}
	s.mu.Lock()
	s.workspaceRoot = root
	s.mu.Unlock()
	s.applySettings(params.InitializationOptions)

	result := initializeResult{
		Capabilities: serverCapabilities{
			TextDocumentSync: textDocumentSyncOptions{
				OpenClose: true,
				Change:    2,
				Save: saveOptions{
					IncludeText: true,
				},
			},
			HoverProvider: true,
			ExecuteCommandProvider: &executeCommandOptions{
				Commands: []string{commandToggle, commandRetryFailed},
			},
		},
		ServerInfo: &serverInfo{Name: "memeful", Version: s.version},
	}
	return s.sendResponse(msg.ID, result)
}

func (s *Server) handleShutdown(msg *rpcMessage) error {
	s.mu.Lock()
	s.shutdownRequested = true
	s.mu.Unlock()
	s.closeAll()
	return s.sendResponse(msg.ID, nil)
}

func (s *Server) handleDidOpen(msg *rpcMessage) error {
	var params didOpenTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	uri := canonicalURI(params.TextDocument.URI)
	if uri == "" {
		return nil
	}
	path := uriToPath(uri)
	doc := newDocument(uri, path, params.TextDocument.LanguageID, params.TextDocument.Version, params.TextDocument.Text)

	baseDir := ""
	if path != "" {
		baseDir = filepath.Dir(path)
	} else {
		s.mu.Lock()
		baseDir = s.workspaceRoot
		s.mu.Unlock()
	}
	doc.session = overlay.NewSession(trace.WithDocument(s.baseCtx, uri), overlay.Options{
		Dialect:    s.dialectFor(params.TextDocument.LanguageID, path),
		BaseDir:    baseDir,
		Debounce:   s.currentDebounce(),
		Switch:     s.sw,
		Dispatcher: s.dispatcher,
		Fetcher:    s.fetcher,
		Text:       doc,
		Sink:       overlay.SinkFunc(func(line int, o linestate.Outcome) { s.publishOutcome(doc, line, o) }),
	})

	s.mu.Lock()
	if prev := s.docs[uri]; prev != nil {
		prev.close()
	}
	s.docs[uri] = doc
	s.mu.Unlock()

	trace.Point(trace.FromContext(s.baseCtx), trace.ScopeSession, "open", uri)
	doc.session.NotifyRange(0, doc.lineCount())
	return nil
}

func (s *Server) handleDidChange(msg *rpcMessage) error {
	var params didChangeTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	uri := canonicalURI(params.TextDocument.URI)
	doc := s.document(uri)
	if doc == nil {
		return nil
	}
	text := applyChanges(doc.text(), params.ContentChanges)
	oldCount, newCount := doc.replace(text, params.TextDocument.Version)
	from, to := changedLines(params.ContentChanges, oldCount, newCount)
	if s.currentTrace() {
		s.logf("didChange: uri=%s version=%d lines=%d->%d notify=[%d,%d)", uri, params.TextDocument.Version, oldCount, newCount, from, to)
	}
	doc.session.NotifyRange(from, to)
	return nil
}

func (s *Server) handleDidSave(msg *rpcMessage) error {
	var params didSaveTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	doc := s.document(canonicalURI(params.TextDocument.URI))
	if doc == nil || params.Text == nil {
		return nil
	}
	if *params.Text == doc.text() {
		return nil
	}
	oldCount, newCount := doc.replace(*params.Text, 0)
	doc.session.NotifyRange(0, max(oldCount, newCount))
	return nil
}

func (s *Server) handleDidClose(msg *rpcMessage) error {
	var params didCloseTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	uri := canonicalURI(params.TextDocument.URI)
	s.mu.Lock()
	doc := s.docs[uri]
	delete(s.docs, uri)
	s.mu.Unlock()
	if doc == nil {
		return nil
	}
	doc.close()
	trace.Point(trace.FromContext(s.baseCtx), trace.ScopeSession, "close", uri)
	// queued behind any outcome the session already posted
	s.dispatcher.Post(func() {
		if err := s.sendPublish(uri, nil); err != nil {
			s.logf("failed to clear diagnostics: %v", err)
		}
	})
	return nil
}

func (s *Server) handleSetLanguage(msg *rpcMessage) error {
	var params setLanguageParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return nil
	}
	doc := s.document(canonicalURI(params.TextDocument.URI))
	if doc == nil {
		return nil
	}
	kind := s.dialectFor(params.LanguageID, doc.path)
	if params.Dialect != "" {
		parsed, err := dialect.Parse(params.Dialect)
		if err != nil {
			s.logf("setLanguage: %v", err)
			return nil
		}
		kind = parsed
	}
	doc.session.NotifyContentTypeChanged(kind)
	doc.session.NotifyRange(0, doc.lineCount())
	return nil
}

// dialectFor picks the comment syntax for a language id, falling back to the
// file extension.
func (s *Server) dialectFor(languageID, path string) dialect.Kind {
	s.mu.Lock()
	override, ok := s.languages[languageID]
	s.mu.Unlock()
	if ok {
		return override
	}
	if k, ok := dialect.ForLanguage(languageID); ok {
		return k
	}
	k, _ := dialect.ForPath(path)
	return k
}

func (s *Server) document(uri string) *document {
	if uri == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[uri]
}

// documents returns open documents ordered by URI.
func (s *Server) documents() []*document {
	s.mu.Lock()
	defer s.mu.Unlock()
	uris := make([]string, 0, len(s.docs))
	for uri := range s.docs {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	out := make([]*document, 0, len(uris))
	for _, uri := range uris {
		out = append(out, s.docs[uri])
	}
	return out
}

// refreshAll schedules every line of every open document.
func (s *Server) refreshAll() {
	for _, doc := range s.documents() {
		doc.session.NotifyRange(0, doc.lineCount())
	}
}

func (s *Server) closeAll() {
	s.mu.Lock()
	docs := s.docs
	s.docs = make(map[string]*document)
	s.mu.Unlock()
	for _, doc := range docs {
		doc.close()
	}
}

func (s *Server) currentDebounce() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.debounce
}

func (s *Server) currentTrace() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.traceLSP
}

func (s *Server) sendResponse(id json.RawMessage, result any) error {
	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      json.RawMessage(id),
		"result":  result,
	}
	return s.send(msg)
}

func (s *Server) sendError(id json.RawMessage, code int, message string) error {
	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      json.RawMessage(id),
		"error": rpcError{
			Code:    code,
			Message: message,
		},
	}
	return s.send(msg)
}

func (s *Server) sendNotification(method string, params any) error {
	msg := map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
	}
	return s.send(msg)
}

func (s *Server) send(msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if err := writeMessage(s.out, payload); err != nil {
		return err
	}
	return s.out.Flush()
}

func (s *Server) logf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "lsp: "+format+"\n", args...)
}
