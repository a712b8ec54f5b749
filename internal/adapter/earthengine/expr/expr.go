// Package expr builds and serialises Earth Engine computation graphs.
//
// A graph is a tree of *Node values: constants, arrays, dictionaries and
// function invocations. Nodes are immutable once built and may be shared
// between parents; Marshal hoists every shared invocation into the
// expression's value table so the server evaluates it once.
package expr

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strconv"
)

type kind int

const (
	kindConstant kind = iota
	kindArray
	kindDict
	kindInvocation
)

// Args are named function arguments.
type Args map[string]*Node

// Node is one vertex of a computation graph.
type Node struct {
	kind     kind
	constant any
	function string
	args     Args
	items    []*Node
}

// Constant wraps a JSON-encodable literal.
func Constant(v any) *Node {
	return &Node{kind: kindConstant, constant: v}
}

// Array builds a list whose elements may themselves be computed.
func Array(items ...*Node) *Node {
	return &Node{kind: kindArray, items: items}
}

// Dict builds a dictionary whose values may themselves be computed.
func Dict(entries Args) *Node {
	return &Node{kind: kindDict, args: entries}
}

// Invoke calls a server-side algorithm by name. Nil arguments are dropped.
func Invoke(function string, args Args) *Node {
	clean := make(Args, len(args))
	for k, v := range args {
		if v != nil {
			clean[k] = v
		}
	}
	return &Node{kind: kindInvocation, function: function, args: clean}
}

// Function returns the algorithm name of an invocation, or "".
func (n *Node) Function() string {
	if n == nil || n.kind != kindInvocation {
		return ""
	}
	return n.function
}

// Arg returns a named argument of an invocation or dictionary, or nil.
func (n *Node) Arg(name string) *Node {
	if n == nil {
		return nil
	}
	return n.args[name]
}

// Value returns the literal held by a constant node.
func (n *Node) Value() any {
	if n == nil || n.kind != kindConstant {
		return nil
	}
	return n.constant
}

// Items returns the elements of an array node.
func (n *Node) Items() []*Node {
	if n == nil {
		return nil
	}
	return n.items
}

// Expression is the wire form of a graph: a table of values and the key
// of the result.
type Expression struct {
	Result string               `json:"result"`
	Values map[string]ValueNode `json:"values"`
}

// ValueNode is one encoded value. Exactly one key is set, e.g.
// "constantValue", "functionInvocationValue" or "valueReference".
type ValueNode map[string]any

// Marshal encodes a graph rooted at n.
func Marshal(n *Node) Expression {
	e := &encoder{
		refs:   make(map[*Node]int),
		ids:    make(map[*Node]string),
		values: make(map[string]ValueNode),
	}
	e.count(n)
	root := e.encode(n)
	if ref, ok := root["valueReference"].(string); ok {
		return Expression{Result: ref, Values: e.values}
	}
	id := strconv.Itoa(len(e.values))
	e.values[id] = root
	return Expression{Result: id, Values: e.values}
}

// Hash returns a stable digest of the encoded graph.
func Hash(n *Node) string {
	data, err := json.Marshal(Marshal(n))
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

type encoder struct {
	refs   map[*Node]int
	ids    map[*Node]string
	values map[string]ValueNode
}

func (e *encoder) count(n *Node) {
	if n == nil {
		return
	}
	e.refs[n]++
	if e.refs[n] > 1 {
		return
	}
	for _, k := range sortedKeys(n.args) {
		e.count(n.args[k])
	}
	for _, item := range n.items {
		e.count(item)
	}
}

func (e *encoder) encode(n *Node) ValueNode {
	if n == nil {
		return ValueNode{"constantValue": nil}
	}
	if id, ok := e.ids[n]; ok {
		return ValueNode{"valueReference": id}
	}

	var v ValueNode
	switch n.kind {
	case kindConstant:
		return ValueNode{"constantValue": n.constant}
	case kindArray:
		values := make([]ValueNode, len(n.items))
		for i, item := range n.items {
			values[i] = e.encode(item)
		}
		v = ValueNode{"arrayValue": map[string]any{"values": values}}
	case kindDict:
		v = ValueNode{"dictionaryValue": map[string]any{"values": e.encodeArgs(n.args)}}
	case kindInvocation:
		v = ValueNode{"functionInvocationValue": map[string]any{
			"functionName": n.function,
			"arguments":    e.encodeArgs(n.args),
		}}
	}

	if e.refs[n] > 1 {
		id := strconv.Itoa(len(e.values))
		e.values[id] = v
		e.ids[n] = id
		return ValueNode{"valueReference": id}
	}
	return v
}

func (e *encoder) encodeArgs(args Args) map[string]ValueNode {
	out := make(map[string]ValueNode, len(args))
	for _, k := range sortedKeys(args) {
		out[k] = e.encode(args[k])
	}
	return out
}

// sortedKeys keeps value ids stable across runs so Hash is deterministic.
func sortedKeys(args Args) []string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
