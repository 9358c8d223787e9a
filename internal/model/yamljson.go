package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	"github.com/goccy/go-yaml/ast"
	"github.com/goccy/go-yaml/parser"
)

var jsonNumber = regexp.MustCompile(`^-?(0|[1-9][0-9]*)(\.[0-9]+)?([eE][+-]?[0-9]+)?$`)

// yamlToJSON converts the first YAML document to JSON. Numbers keep their
// literal text so amounts never pass through float64.
func yamlToJSON(data []byte) ([]byte, error) {
	f, err := parser.ParseBytes(data, 0)
	if err != nil {
		return nil, err
	}
	if len(f.Docs) == 0 || f.Docs[0] == nil || f.Docs[0].Body == nil {
		return []byte("null"), nil
	}

	c := yamlConverter{anchors: make(map[string]ast.Node)}
	var buf bytes.Buffer
	if err := c.write(&buf, f.Docs[0].Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type yamlConverter struct {
	anchors map[string]ast.Node
}

func (c *yamlConverter) write(buf *bytes.Buffer, node ast.Node) error {
	switch n := node.(type) {
	case nil, *ast.NullNode, *ast.CommentGroupNode:
		buf.WriteString("null")
	case *ast.DocumentNode:
		return c.write(buf, n.Body)
	case *ast.BoolNode:
		buf.WriteString(strconv.FormatBool(n.Value))
	case *ast.IntegerNode:
		return writeNumber(buf, n.GetToken().Value, n.Value)
	case *ast.FloatNode:
		return writeNumber(buf, n.GetToken().Value, n.Value)
	case *ast.StringNode:
		return writeJSON(buf, n.Value)
	case *ast.LiteralNode:
		if n.Value == nil {
			return writeJSON(buf, "")
		}
		return writeJSON(buf, n.Value.Value)
	case *ast.TagNode:
		return c.write(buf, n.Value)
	case *ast.AnchorNode:
		c.anchors[n.Name.GetToken().Value] = n.Value
		return c.write(buf, n.Value)
	case *ast.AliasNode:
		name := n.Value.GetToken().Value
		target, ok := c.anchors[name]
		if !ok {
			return fmt.Errorf("unknown alias %q", name)
		}
		return c.write(buf, target)
	case *ast.SequenceNode:
		buf.WriteByte('[')
		for i, v := range n.Values {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := c.write(buf, v); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case *ast.MappingNode:
		return c.writeMapping(buf, n.Values)
	case *ast.MappingValueNode:
		return c.writeMapping(buf, []*ast.MappingValueNode{n})
	default:
		return fmt.Errorf("unsupported YAML value %q", node.String())
	}
	return nil
}

func (c *yamlConverter) writeMapping(buf *bytes.Buffer, pairs []*ast.MappingValueNode) error {
	buf.WriteByte('{')
	for i, mv := range pairs {
		if i > 0 {
			buf.WriteByte(',')
		}
		var key ast.Node = mv.Key
		if err := writeJSON(buf, keyText(key)); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := c.write(buf, mv.Value); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func keyText(key ast.Node) string {
	if s, ok := key.(*ast.StringNode); ok {
		return s.Value
	}
	if tok := key.GetToken(); tok != nil {
		return tok.Value
	}
	return key.String()
}

// writeNumber emits the literal when it is already valid JSON and the
// parsed value otherwise (hex, underscores, leading plus).
func writeNumber(buf *bytes.Buffer, literal string, parsed any) error {
	if jsonNumber.MatchString(literal) {
		buf.WriteString(literal)
		return nil
	}
	return writeJSON(buf, parsed)
}

func writeJSON(buf *bytes.Buffer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}
