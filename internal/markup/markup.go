// Package markup decodes export payloads into a generic attributed tree.
//
// The source application's serializer writes the same logical field either as
// a bare leaf (<name>Launch</name>) or as an element carrying attributes or
// children next to its text. Field returns whichever shape is present and
// ExtractText reads both, so downstream code never inspects shapes itself.
package markup

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	plannrerrors "github.com/randalmurphal/plannr/internal/errors"
)

// Attr is a single attribute of a Node. Order follows the document.
type Attr struct {
	Name  string
	Value string
}

// Node is one element of the decoded document.
type Node struct {
	Name     string
	Attrs    []Attr
	Text     string
	Children []*Node

	raw string // untrimmed character data, kept for rich text runs
}

// Attr returns the value of the named attribute.
func (n *Node) Attr(name string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Child returns the first child element with the given name, or nil.
func (n *Node) Child(name string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ChildrenNamed returns all child elements with the given name, in order.
func (n *Node) ChildrenNamed(name string) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	for _, c := range n.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// Has reports whether a child element with the given name exists.
func (n *Node) Has(name string) bool {
	return n.Child(name) != nil
}

// IsLeaf reports whether the node carries neither attributes nor children.
func (n *Node) IsLeaf() bool {
	return n != nil && len(n.Attrs) == 0 && len(n.Children) == 0
}

// Field returns the named child slot in its normalized shape:
//   - nil when absent
//   - string for a single leaf element
//   - *Node for a single element with attributes or children (text in Text)
//   - []any for a repeated slot, each element shaped as above
func (n *Node) Field(name string) any {
	matches := n.ChildrenNamed(name)
	switch len(matches) {
	case 0:
		return nil
	case 1:
		return shape(matches[0])
	default:
		out := make([]any, len(matches))
		for i, m := range matches {
			out[i] = shape(m)
		}
		return out
	}
}

// FieldText returns ExtractText of the named field.
func (n *Node) FieldText(name string) (string, bool) {
	return ExtractText(n.Field(name))
}

func shape(n *Node) any {
	if n.IsLeaf() {
		return n.Text
	}
	return n
}

// ExtractText reads a field value of any shape. It returns the bare string,
// the text slot of an element, or the first text of a repeated slot.
// Empty or whitespace-only text and unrelated values are reported absent.
func ExtractText(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		return s, s != ""
	case *Node:
		if val == nil {
			return "", false
		}
		s := strings.TrimSpace(val.Text)
		return s, s != ""
	case []any:
		for _, item := range val {
			if s, ok := ExtractText(item); ok {
				return s, true
			}
		}
		return "", false
	default:
		return "", false
	}
}

// RichText flattens a rich-text body (paragraphs of runs of literals) into
// plain text, one line per paragraph. Plain values behave like ExtractText.
func RichText(v any) (string, bool) {
	n, ok := v.(*Node)
	if !ok || n == nil || len(n.Children) == 0 {
		return ExtractText(v)
	}

	var paragraphs []string
	stack := []*Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur.Name == "p" {
			if line := strings.TrimSpace(collectText(cur)); line != "" {
				paragraphs = append(paragraphs, line)
			}
			continue
		}
		for i := len(cur.Children) - 1; i >= 0; i-- {
			stack = append(stack, cur.Children[i])
		}
	}

	if len(paragraphs) == 0 {
		s := strings.TrimSpace(collectText(n))
		return s, s != ""
	}
	return strings.Join(paragraphs, "\n"), true
}

// collectText concatenates the character data of n and its descendants in
// document order.
func collectText(n *Node) string {
	var b strings.Builder
	stack := []*Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur.raw != "" {
			b.WriteString(cur.raw)
		} else {
			b.WriteString(cur.Text)
		}
		for i := len(cur.Children) - 1; i >= 0; i-- {
			stack = append(stack, cur.Children[i])
		}
	}
	return b.String()
}

// DefaultMaxNesting caps element nesting in a parsed document.
const DefaultMaxNesting = 1024

// ParseOption configures Parse.
type ParseOption func(*parseConfig)

type parseConfig struct {
	maxNesting int
}

// WithMaxNesting overrides DefaultMaxNesting. Non-positive values are ignored.
func WithMaxNesting(n int) ParseOption {
	return func(c *parseConfig) {
		if n > 0 {
			c.maxNesting = n
		}
	}
}

// ParseBytes decodes a payload held in memory.
func ParseBytes(data []byte, opts ...ParseOption) (*Node, error) {
	return Parse(bytes.NewReader(data), opts...)
}

// Parse decodes a markup document into its root Node. Any decoding failure,
// including an empty document, is reported as MarkupCorrupt. Elements nested
// deeper than the nesting limit are reported as HierarchyTooDeep.
func Parse(r io.Reader, opts ...ParseOption) (*Node, error) {
	cfg := parseConfig{maxNesting: DefaultMaxNesting}
	for _, opt := range opts {
		opt(&cfg)
	}

	dec := xml.NewDecoder(r)
	dec.Strict = true
	// Exports declare UTF-8; anything else is passed through unchanged.
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}

	var (
		root  *Node
		stack []*Node
		texts []*strings.Builder
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, plannrerrors.ErrMarkupCorrupt(err.Error()).WithCause(err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if root != nil && len(stack) == 0 {
				return nil, plannrerrors.ErrMarkupCorrupt("multiple root elements")
			}
			if len(stack) >= cfg.maxNesting {
				return nil, plannrerrors.ErrHierarchyTooDeep(cfg.maxNesting)
			}
			n := &Node{Name: t.Name.Local}
			for _, a := range t.Attr {
				if a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns") {
					continue
				}
				n.Attrs = append(n.Attrs, Attr{Name: a.Name.Local, Value: a.Value})
			}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			} else {
				root = n
			}
			stack = append(stack, n)
			texts = append(texts, &strings.Builder{})
		case xml.EndElement:
			n := stack[len(stack)-1]
			n.raw = texts[len(texts)-1].String()
			n.Text = strings.TrimSpace(n.raw)
			stack = stack[:len(stack)-1]
			texts = texts[:len(texts)-1]
		case xml.CharData:
			if len(texts) > 0 {
				texts[len(texts)-1].Write(t)
			}
		}
	}

	if root == nil {
		return nil, plannrerrors.ErrMarkupCorrupt("document has no root element")
	}
	if len(stack) != 0 {
		return nil, plannrerrors.ErrMarkupCorrupt(fmt.Sprintf("unclosed element <%s>", stack[len(stack)-1].Name))
	}
	return root, nil
}
