package lsp

import (
	"fmt"
	"sort"
	"strings"

	"sherbet/internal/ast"
	"sherbet/internal/native"
	"sherbet/internal/token"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

func (a *Analysis) identRange(id *ast.Identifier) protocol.Range {
	return rangeAt(a.Text, id.Token.Line, id.Token.Col, len(id.Value))
}

func (a *Analysis) occurrence(pos protocol.Position) *Reference {
	p, ok := positionToByte(a.Text, pos)
	if !ok {
		return nil
	}
	return a.OccurrenceAt(p)
}

// DefinitionAt locates the declaration of the name under pos.
func DefinitionAt(an *Analysis, uri string, pos protocol.Position) (*protocol.Location, bool) {
	ref := an.occurrence(pos)
	if ref == nil || ref.Binding == nil || ref.Binding.Decl == nil {
		return nil, false
	}
	return &protocol.Location{
		URI:   protocol.DocumentUri(uri),
		Range: an.identRange(ref.Binding.Decl),
	}, true
}

// ReferencesAt lists every occurrence of the name under pos.
func ReferencesAt(an *Analysis, uri string, pos protocol.Position, includeDecl bool) []protocol.Location {
	ref := an.occurrence(pos)
	if ref == nil || ref.Binding == nil {
		return nil
	}
	var locs []protocol.Location
	for _, r := range an.ReferencesTo(ref.Binding) {
		if !includeDecl && r.Ident == ref.Binding.Decl {
			continue
		}
		locs = append(locs, protocol.Location{URI: protocol.DocumentUri(uri), Range: an.identRange(r.Ident)})
	}
	return locs
}

func HoverAt(an *Analysis, pos protocol.Position) *protocol.Hover {
	ref := an.occurrence(pos)
	if ref == nil || ref.Binding == nil {
		return nil
	}
	b := ref.Binding
	rng := an.identRange(ref.Ident)
	return &protocol.Hover{
		Contents: protocol.MarkupContent{Kind: protocol.MarkupKindMarkdown, Value: describe(b)},
		Range:    &rng,
	}
}

func describe(b *Binding) string {
	var sig string
	switch b.Kind {
	case SymFunc:
		sig = fmt.Sprintf("func %s(%s)", b.Name, strings.Join(b.Params, ", "))
	case SymNative:
		if b.Arity == native.Variadic {
			sig = fmt.Sprintf("#%s(...)", b.Name)
		} else {
			sig = fmt.Sprintf("#%s/%d", b.Name, b.Arity)
		}
	default:
		sig = b.Name
	}
	scope := "local"
	if b.Global {
		scope = "global"
	}
	return fmt.Sprintf("%s %s\n```sherbet\n%s\n```", scope, b.Kind, sig)
}

// DocumentSymbols outlines functions and variables, nesting the
// declarations made inside function bodies.
func DocumentSymbols(an *Analysis) []protocol.DocumentSymbol {
	if an.Program == nil {
		return nil
	}
	return an.symbols(an.Program.Statements)
}

func (a *Analysis) symbols(stmts []ast.Statement) []protocol.DocumentSymbol {
	out := []protocol.DocumentSymbol{}
	for _, st := range stmts {
		switch n := st.(type) {
		case *ast.LetStatement:
			if n.Name == nil {
				continue
			}
			rng := a.identRange(n.Name)
			out = append(out, protocol.DocumentSymbol{
				Name:           n.Name.Value,
				Kind:           protocol.SymbolKindVariable,
				Range:          rng,
				SelectionRange: rng,
			})
		case *ast.FuncStatement:
			if n.Name == nil {
				continue
			}
			rng := a.identRange(n.Name)
			detail := "(" + strings.Join(paramNames(n.Parameters), ", ") + ")"
			sym := protocol.DocumentSymbol{
				Name:           n.Name.Value,
				Detail:         &detail,
				Kind:           protocol.SymbolKindFunction,
				Range:          rng,
				SelectionRange: rng,
			}
			if n.Body != nil {
				sym.Children = a.symbols(n.Body.Statements)
			}
			out = append(out, sym)
		case *ast.BlockStatement:
			out = append(out, a.symbols(n.Statements)...)
		}
	}
	return out
}

// CompletionItems offers keywords, natives after '#', and every name
// declared in the document.
func CompletionItems(an *Analysis, pos protocol.Position) []protocol.CompletionItem {
	items := []protocol.CompletionItem{}
	if afterHash(an.Text, pos) {
		for i := 0; i < native.Count; i++ {
			spec := native.Table[i]
			detail := describe(&Binding{Name: spec.Name, Kind: SymNative, Arity: spec.Arity, Global: true})
			items = append(items, protocol.CompletionItem{
				Label:  spec.Name,
				Kind:   kindPtr(protocol.CompletionItemKindFunction),
				Detail: &detail,
			})
		}
		return items
	}

	seen := map[string]bool{}
	for _, b := range an.Defs {
		if seen[b.Name] {
			continue
		}
		seen[b.Name] = true
		kind := protocol.CompletionItemKindVariable
		if b.Kind == SymFunc {
			kind = protocol.CompletionItemKindFunction
		}
		items = append(items, protocol.CompletionItem{Label: b.Name, Kind: kindPtr(kind)})
	}
	for _, kw := range token.Keywords() {
		items = append(items, protocol.CompletionItem{Label: kw, Kind: kindPtr(protocol.CompletionItemKindKeyword)})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Label < items[j].Label })
	return items
}

func afterHash(text string, pos protocol.Position) bool {
	p, ok := positionToByte(text, pos)
	if !ok {
		return false
	}
	line := splitLines(text)[p.Line-1]
	i := p.Col - 2
	if i >= len(line) {
		i = len(line) - 1
	}
	for i >= 0 && isIdentByte(line[i]) {
		i--
	}
	return i >= 0 && line[i] == '#'
}

func isIdentByte(b byte) bool {
	return b == '_' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

func kindPtr(k protocol.CompletionItemKind) *protocol.CompletionItemKind { return &k }
