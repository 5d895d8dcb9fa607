package interp

import (
	"fmt"
	"sort"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// Fault is an error raised while a statement ran. Faults are data: they are
// recorded and shown to the model, never returned to the caller.
type Fault struct {
	Message string `json:"message"`
}

func (f *Fault) Error() string {
	return f.Message
}

// Record is the observable result of executing one statement, or of one
// plan that failed to parse.
type Record struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Parsed bool   `json:"parsed"`

	// Value is the live result of an expression statement. Repr is its
	// rendering, captured when the statement finished so later mutation
	// of the value does not rewrite history.
	Value lua.LValue `json:"-"`
	Repr  string     `json:"value,omitempty"`

	Fault  *Fault `json:"fault,omitempty"`
	Stdout string `json:"stdout,omitempty"`
	Stderr string `json:"stderr,omitempty"`

	Duration  time.Duration `json:"duration_ns"`
	Timestamp time.Time     `json:"timestamp"`
}

// NewParseFailure builds the record appended when a plan cannot be parsed.
// The raw plan text stands in for the statement and the failure
// description is shown as its output.
func NewParseFailure(id, raw, description string) *Record {
	return &Record{
		ID:        id,
		Source:    raw,
		Parsed:    false,
		Stdout:    description,
		Timestamp: time.Now(),
	}
}

// HasValue reports whether the statement produced a value.
func (r *Record) HasValue() bool {
	return r.Value != nil && r.Value != lua.LNil
}

// Failed reports whether the statement raised a fault.
func (r *Record) Failed() bool {
	return r.Fault != nil
}

// Observation is the single piece of output shown for the record: the
// fault if any, otherwise captured stdout, otherwise the value. It is empty
// when the statement produced none of these.
func (r *Record) Observation() string {
	switch {
	case r.Fault != nil:
		return r.Fault.Message
	case r.Stdout != "":
		return r.Stdout
	case r.HasValue():
		return r.Repr
	}
	return ""
}

const maxReprDepth = 4

// Repr renders a value the way a REPL echoes it. Top-level strings are
// shown raw; strings nested inside tables are quoted. Table keys are
// sorted so the rendering is stable.
func Repr(L *lua.LState, v lua.LValue) string {
	if s, ok := v.(lua.LString); ok {
		return string(s)
	}
	var b strings.Builder
	writeRepr(L, &b, v, 0, map[*lua.LTable]bool{})
	return b.String()
}

func writeRepr(L *lua.LState, b *strings.Builder, v lua.LValue, depth int, seen map[*lua.LTable]bool) {
	switch val := v.(type) {
	case lua.LString:
		fmt.Fprintf(b, "%q", string(val))
	case *lua.LTable:
		if L != nil && L.GetMetaField(val, "__tostring") != lua.LNil {
			b.WriteString(L.ToStringMeta(val).String())
			return
		}
		if seen[val] || depth >= maxReprDepth {
			b.WriteString("{...}")
			return
		}
		seen[val] = true
		defer delete(seen, val)
		writeTable(L, b, val, depth, seen)
	default:
		b.WriteString(v.String())
	}
}

func writeTable(L *lua.LState, b *strings.Builder, t *lua.LTable, depth int, seen map[*lua.LTable]bool) {
	n := t.MaxN()
	type entry struct {
		key   string
		value lua.LValue
	}
	var named []entry
	t.ForEach(func(k, v lua.LValue) {
		if num, ok := k.(lua.LNumber); ok {
			if i := int(num); lua.LNumber(i) == num && i >= 1 && i <= n {
				return
			}
		}
		var key string
		if s, ok := k.(lua.LString); ok && isIdentifier(string(s)) {
			key = string(s)
		} else {
			var kb strings.Builder
			writeRepr(L, &kb, k, depth+1, seen)
			key = "[" + kb.String() + "]"
		}
		named = append(named, entry{key: key, value: v})
	})
	sort.Slice(named, func(i, j int) bool { return named[i].key < named[j].key })

	b.WriteByte('{')
	first := true
	sep := func() {
		if !first {
			b.WriteString(", ")
		}
		first = false
	}
	for i := 1; i <= n; i++ {
		sep()
		writeRepr(L, b, t.RawGetInt(i), depth+1, seen)
	}
	for _, e := range named {
		sep()
		b.WriteString(e.key)
		b.WriteString(" = ")
		writeRepr(L, b, e.value, depth+1, seen)
	}
	b.WriteByte('}')
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
