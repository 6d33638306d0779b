package object

import (
	"testing"

	"sherbet/internal/code"
	"sherbet/internal/intern"
)

func TestEqual(t *testing.T) {
	strs := intern.New()
	fn := &Function{Name: "f"}
	cl := &Closure{Fn: fn}

	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"numbers", Number(1.5), Number(1.5), true},
		{"different numbers", Number(1), Number(2), false},
		{"booleans", Boolean(true), Boolean(true), true},
		{"number vs boolean", Number(1), Boolean(true), false},
		{"interned strings", String{strs.Intern("a")}, String{strs.Intern("a")}, true},
		{"different strings", String{strs.Intern("a")}, String{strs.Intern("b")}, false},
		{"void", Void{}, Void{}, true},
		{"none", None{}, nil, true},
		{"void vs none", Void{}, None{}, false},
		{"same function", fn, fn, false},
		{"same closure", cl, cl, false},
	}

	for _, tt := range tests {
		if got := Equal(tt.a, tt.b); got != tt.want {
			t.Fatalf("%s: Equal = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestInspect(t *testing.T) {
	strs := intern.New()
	arr := &Array{Elements: []Value{Number(1), String{strs.Intern("x")}, Boolean(false)}}

	tests := []struct {
		v    Value
		want string
	}{
		{Number(3), "3"},
		{Number(2.5), "2.5"},
		{Number(-0.125), "-0.125"},
		{Boolean(true), "true"},
		{String{strs.Intern("hi")}, "hi"},
		{arr, "[1, x, false]"},
		{&Closure{Fn: &Function{Name: "inc"}}, "<closure inc>"},
	}

	for _, tt := range tests {
		if got := Inspect(tt.v, strs); got != tt.want {
			t.Fatalf("Inspect(%#v) = %q, want %q", tt.v, got, tt.want)
		}
	}
}

func TestUpvalueClose(t *testing.T) {
	stack := []Value{Number(1)}
	uv := &Upvalue{Location: &stack[0]}

	uv.Set(Number(2))
	if stack[0] != Number(2) {
		t.Fatalf("open upvalue should write through to the slot, got %v", stack[0])
	}

	uv.Close()
	if uv.IsOpen() {
		t.Fatal("upvalue still open after Close")
	}
	stack[0] = Number(99)
	if got := uv.Get(); got != Number(2) {
		t.Fatalf("closed upvalue changed with the stack: %v", got)
	}
}

func TestPosAt(t *testing.T) {
	c := Chunk{Pos: []code.SourcePos{{Offset: 0, Line: 1}, {Offset: 4, Line: 2}, {Offset: 9, Line: 3}}}
	p, ok := c.PosAt(6)
	if !ok || p.Line != 2 {
		t.Fatalf("PosAt(6) = %+v, %v", p, ok)
	}
}
