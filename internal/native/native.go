// Package native declares the host functions reachable with #name(args).
// The compiler resolves names to indices here; the vm binds an
// implementation to every index.
package native

const (
	DebugStack = iota
	AssertStack
	ToStr
	Len
	Push
	Get
	Clock

	Count
)

// Variadic marks a native that accepts any number of arguments.
const Variadic = -1

type Spec struct {
	Name  string
	Arity int
	// Returns is false for natives that push nothing; the compiler then
	// supplies a void result.
	Returns bool
}

var Table = [Count]Spec{
	DebugStack:  {Name: "debug_stack", Arity: 0},
	AssertStack: {Name: "assert_stack", Arity: Variadic},
	ToStr:       {Name: "to_str", Arity: 1, Returns: true},
	Len:         {Name: "len", Arity: 1, Returns: true},
	Push:        {Name: "push", Arity: 2, Returns: true},
	Get:         {Name: "get", Arity: 2, Returns: true},
	Clock:       {Name: "clock", Arity: 0, Returns: true},
}

var byName = func() map[string]int {
	m := make(map[string]int, Count)
	for i, s := range Table {
		m[s.Name] = i
	}
	return m
}()

func Lookup(name string) (int, Spec, bool) {
	idx, ok := byName[name]
	if !ok {
		return 0, Spec{}, false
	}
	return idx, Table[idx], true
}

// Name returns the name of the native at idx, or "" if idx is out of range.
func Name(idx int) string {
	if idx < 0 || idx >= Count {
		return ""
	}
	return Table[idx].Name
}
