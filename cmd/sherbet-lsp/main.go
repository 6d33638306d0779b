package main

import (
	"flag"
	"strings"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	"sherbet/internal/lsp"

	_ "github.com/tliron/commonlog/simple"
)

const (
	lsName  = "sherbet-lsp"
	version = "0.1"
)

var (
	store   = lsp.NewStore()
	handler protocol.Handler
	log     = commonlog.GetLogger("sherbet.lsp")
)

func main() {
	verbose := flag.Int("v", 0, "log verbosity (0-2)")
	logFile := flag.String("log", "", "log file (default stderr)")
	flag.Parse()

	var path *string
	if *logFile != "" {
		path = logFile
	}
	commonlog.Configure(1+*verbose, path)

	handler = protocol.Handler{
		Initialize:                 initialize,
		Initialized:                initialized,
		Shutdown:                   shutdown,
		SetTrace:                   setTrace,
		TextDocumentDidOpen:        textDocumentDidOpen,
		TextDocumentDidChange:      textDocumentDidChange,
		TextDocumentDidSave:        textDocumentDidSave,
		TextDocumentDidClose:       textDocumentDidClose,
		TextDocumentDefinition:     textDocumentDefinition,
		TextDocumentReferences:     textDocumentReferences,
		TextDocumentHover:          textDocumentHover,
		TextDocumentDocumentSymbol: textDocumentDocumentSymbol,
		TextDocumentCompletion:     textDocumentCompletion,
	}

	srv := server.NewServer(&handler, lsName, false)
	if err := srv.RunStdio(); err != nil {
		log.Errorf("server stopped: %s", err)
	}
}

func initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Info("initializing")

	caps := handler.CreateServerCapabilities()
	full := protocol.TextDocumentSyncKindFull
	caps.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: &protocol.True,
		Change:    &full,
		Save:      protocol.SaveOptions{IncludeText: &protocol.False},
	}
	caps.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{"#"},
	}

	v := version
	return protocol.InitializeResult{
		Capabilities: caps,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lsName,
			Version: &v,
		},
	}, nil
}

func initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func shutdown(ctx *glsp.Context) error {
	protocol.SetTraceValue(protocol.TraceValueOff)
	return nil
}

func setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

func textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := string(params.TextDocument.URI)
	return update(ctx, uri, params.TextDocument.Text)
}

func textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	if len(params.ContentChanges) == 0 {
		return nil
	}
	text, ok := extractFullText(params.ContentChanges[len(params.ContentChanges)-1])
	if !ok {
		return nil
	}
	return update(ctx, string(params.TextDocument.URI), text)
}

func textDocumentDidSave(ctx *glsp.Context, params *protocol.DidSaveTextDocumentParams) error {
	uri := string(params.TextDocument.URI)
	if an, ok := store.Analysis(uri); ok {
		publish(ctx, uri, an)
	}
	return nil
}

func textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := string(params.TextDocument.URI)
	store.Delete(uri)
	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
		URI:         protocol.DocumentUri(uri),
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

func textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	an, ok := store.Analysis(string(params.TextDocument.URI))
	if !ok {
		return nil, nil
	}
	loc, ok := lsp.DefinitionAt(an, string(params.TextDocument.URI), params.Position)
	if !ok {
		return nil, nil
	}
	return []protocol.Location{*loc}, nil
}

func textDocumentReferences(ctx *glsp.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	an, ok := store.Analysis(string(params.TextDocument.URI))
	if !ok {
		return nil, nil
	}
	return lsp.ReferencesAt(an, string(params.TextDocument.URI), params.Position, params.Context.IncludeDeclaration), nil
}

func textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	an, ok := store.Analysis(string(params.TextDocument.URI))
	if !ok {
		return nil, nil
	}
	return lsp.HoverAt(an, params.Position), nil
}

func textDocumentDocumentSymbol(ctx *glsp.Context, params *protocol.DocumentSymbolParams) (any, error) {
	an, ok := store.Analysis(string(params.TextDocument.URI))
	if !ok {
		return []protocol.DocumentSymbol{}, nil
	}
	return lsp.DocumentSymbols(an), nil
}

func textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	an, ok := store.Analysis(string(params.TextDocument.URI))
	if !ok {
		return nil, nil
	}
	return lsp.CompletionItems(an, params.Position), nil
}

func update(ctx *glsp.Context, uri, text string) error {
	if !isSherbet(uri) {
		return nil
	}
	publish(ctx, uri, store.Set(uri, text))
	return nil
}

func publish(ctx *glsp.Context, uri string, an *lsp.Analysis) {
	log.Debugf("%s: %d diagnostics", uri, len(an.Diagnostics))
	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
		URI:         protocol.DocumentUri(uri),
		Diagnostics: lsp.ToLspDiagnostics(an.Text, an.Diagnostics),
	})
}

func isSherbet(uri string) bool {
	return strings.HasSuffix(strings.ToLower(uri), ".sb")
}

func extractFullText(change any) (string, bool) {
	switch typed := change.(type) {
	case protocol.TextDocumentContentChangeEventWhole:
		return typed.Text, true
	case protocol.TextDocumentContentChangeEvent:
		return typed.Text, true
	default:
		return "", false
	}
}
