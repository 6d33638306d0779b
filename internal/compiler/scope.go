package compiler

import (
	"fmt"

	"sherbet/internal/code"
	"sherbet/internal/object"
	"sherbet/internal/token"
)

const (
	maxLocals   = 255
	maxUpvalues = 255
)

// Local is a variable living in a stack slot of the function being
// compiled. Depth -1 marks a local whose initializer is still compiling.
type Local struct {
	Name       string
	Depth      int
	IsCaptured bool
}

// Upvalue records where a closure finds a captured variable: a local slot
// of the enclosing function, or one of the enclosing function's upvalues.
type Upvalue struct {
	Index   int
	IsLocal bool
}

// funcState is the compile state of one function body. Nested function
// declarations get their own state linked to the parent through
// enclosing, which is only followed while the child is being compiled.
type funcState struct {
	enclosing  *funcState
	fn         *object.Function
	locals     []Local
	upvalues   []Upvalue
	scopeDepth int
	names      map[string]int
}

func newFuncState(enclosing *funcState, name string, arity int) *funcState {
	return &funcState{
		enclosing: enclosing,
		fn:        &object.Function{Name: name, Arity: arity},
		names:     map[string]int{},
	}
}

func (c *Compiler) beginScope() {
	c.fs.scopeDepth++
}

// endScope drops every local declared in the closing scope, newest first,
// closing the ones a nested closure captured.
func (c *Compiler) endScope() {
	fs := c.fs
	fs.scopeDepth--
	for len(fs.locals) > 0 && fs.locals[len(fs.locals)-1].Depth > fs.scopeDepth {
		if fs.locals[len(fs.locals)-1].IsCaptured {
			c.emit(code.OpCloseUpValue)
		} else {
			c.emit(code.OpPop)
		}
		fs.locals = fs.locals[:len(fs.locals)-1]
	}
}

// addLocal declares name in the current scope. The local starts
// uninitialized; markInitialized makes it readable. Errors are reported but
// the local is still added so later references resolve.
func (c *Compiler) addLocal(name string, at token.Token) {
	fs := c.fs
	for i := len(fs.locals) - 1; i >= 0; i-- {
		l := fs.locals[i]
		if l.Depth != -1 && l.Depth < fs.scopeDepth {
			break
		}
		if l.Name == name {
			c.errorAt(at, fmt.Sprintf("a variable named '%s' is already declared in this scope", name))
			break
		}
	}
	if len(fs.locals) == maxLocals {
		c.errorAt(at, "too many local variables in function")
	}
	fs.locals = append(fs.locals, Local{Name: name, Depth: -1})
}

func (c *Compiler) markInitialized() {
	fs := c.fs
	if len(fs.locals) == 0 {
		return
	}
	fs.locals[len(fs.locals)-1].Depth = fs.scopeDepth
}

// resolveLocal searches newest first so inner declarations shadow outer
// ones. uninit is set when the match is still being initialized.
func resolveLocal(fs *funcState, name string) (idx int, ok bool, uninit bool) {
	for i := len(fs.locals) - 1; i >= 0; i-- {
		if fs.locals[i].Name == name {
			return i, true, fs.locals[i].Depth == -1
		}
	}
	return 0, false, false
}

// resolveUpvalue finds name in an enclosing function and threads it down
// through every intermediate function's upvalue table.
func (c *Compiler) resolveUpvalue(fs *funcState, name string, at token.Token) (int, bool) {
	if fs.enclosing == nil {
		return 0, false
	}

	if idx, ok, _ := resolveLocal(fs.enclosing, name); ok {
		fs.enclosing.locals[idx].IsCaptured = true
		return c.addUpvalue(fs, idx, true, at), true
	}

	if idx, ok := c.resolveUpvalue(fs.enclosing, name, at); ok {
		return c.addUpvalue(fs, idx, false, at), true
	}

	return 0, false
}

// addUpvalue returns the existing slot for (index, isLocal) when the
// function already captures it.
func (c *Compiler) addUpvalue(fs *funcState, index int, isLocal bool, at token.Token) int {
	for i, uv := range fs.upvalues {
		if uv.Index == index && uv.IsLocal == isLocal {
			return i
		}
	}
	if len(fs.upvalues) == maxUpvalues {
		c.errorAt(at, "too many upvalues in function")
	}
	fs.upvalues = append(fs.upvalues, Upvalue{Index: index, IsLocal: isLocal})
	fs.fn.UpvalueCount = len(fs.upvalues)
	return len(fs.upvalues) - 1
}
