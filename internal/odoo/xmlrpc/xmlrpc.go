// Package xmlrpc encodes and decodes XML-RPC calls and responses.
//
// Values map to Go as follows: string, int, float64, bool, nil,
// []any for arrays and map[string]any for structs. base64 and
// dateTime.iso8601 values decode to their text.
package xmlrpc

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// FaultError is a fault returned by the remote side
type FaultError struct {
	Code    int
	Message string
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("xmlrpc fault %d: %s", e.Code, e.Message)
}

// EncodeCall renders a methodCall document
func EncodeCall(method string, params ...any) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0"`)
	call := doc.CreateElement("methodCall")
	call.CreateElement("methodName").SetText(method)
	ps := call.CreateElement("params")
	for i, p := range params {
		if err := encodeValue(ps.CreateElement("param").CreateElement("value"), p); err != nil {
			return nil, fmt.Errorf("param %d: %w", i, err)
		}
	}
	return doc.WriteToBytes()
}

// DecodeCall parses a methodCall document
func DecodeCall(data []byte) (string, []any, error) {
	root, err := parse(data, "methodCall")
	if err != nil {
		return "", nil, err
	}
	name := root.SelectElement("methodName")
	if name == nil {
		return "", nil, fmt.Errorf("xmlrpc: methodName missing")
	}
	var params []any
	if ps := root.SelectElement("params"); ps != nil {
		for i, p := range ps.SelectElements("param") {
			v, err := decodeParam(p)
			if err != nil {
				return "", nil, fmt.Errorf("param %d: %w", i, err)
			}
			params = append(params, v)
		}
	}
	return strings.TrimSpace(name.Text()), params, nil
}

// EncodeResponse renders a methodResponse carrying v
func EncodeResponse(v any) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0"`)
	resp := doc.CreateElement("methodResponse")
	if err := encodeValue(resp.CreateElement("params").CreateElement("param").CreateElement("value"), v); err != nil {
		return nil, err
	}
	return doc.WriteToBytes()
}

// EncodeFault renders a methodResponse carrying a fault
func EncodeFault(code int, message string) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0"`)
	resp := doc.CreateElement("methodResponse")
	err := encodeValue(resp.CreateElement("fault").CreateElement("value"), map[string]any{
		"faultCode":   code,
		"faultString": message,
	})
	if err != nil {
		return nil, err
	}
	return doc.WriteToBytes()
}

// DecodeResponse parses a methodResponse. A fault is returned as *FaultError.
func DecodeResponse(data []byte) (any, error) {
	root, err := parse(data, "methodResponse")
	if err != nil {
		return nil, err
	}
	if f := root.SelectElement("fault"); f != nil {
		return nil, decodeFault(f)
	}
	ps := root.SelectElement("params")
	if ps == nil {
		return nil, fmt.Errorf("xmlrpc: params missing")
	}
	p := ps.SelectElement("param")
	if p == nil {
		return nil, fmt.Errorf("xmlrpc: param missing")
	}
	return decodeParam(p)
}

func parse(data []byte, rootTag string) (*etree.Element, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("xmlrpc: %w", err)
	}
	root := doc.Root()
	if root == nil || root.Tag != rootTag {
		return nil, fmt.Errorf("xmlrpc: expected %s", rootTag)
	}
	return root, nil
}

func decodeParam(p *etree.Element) (any, error) {
	v := p.SelectElement("value")
	if v == nil {
		return nil, fmt.Errorf("xmlrpc: value missing")
	}
	return decodeValue(v)
}

func decodeFault(f *etree.Element) error {
	v := f.SelectElement("value")
	if v == nil {
		return &FaultError{Message: "malformed fault"}
	}
	raw, err := decodeValue(v)
	if err != nil {
		return err
	}
	st, _ := raw.(map[string]any)
	fe := &FaultError{}
	if code, ok := st["faultCode"].(int); ok {
		fe.Code = code
	}
	if msg, ok := st["faultString"].(string); ok {
		fe.Message = msg
	}
	return fe
}

func encodeValue(v *etree.Element, x any) error {
	switch t := x.(type) {
	case nil:
		v.CreateElement("nil")
	case string:
		v.CreateElement("string").SetText(t)
	case int:
		v.CreateElement("int").SetText(strconv.Itoa(t))
	case int64:
		v.CreateElement("int").SetText(strconv.FormatInt(t, 10))
	case float64:
		v.CreateElement("double").SetText(strconv.FormatFloat(t, 'f', -1, 64))
	case bool:
		b := "0"
		if t {
			b = "1"
		}
		v.CreateElement("boolean").SetText(b)
	case []any:
		data := v.CreateElement("array").CreateElement("data")
		for i, item := range t {
			if err := encodeValue(data.CreateElement("value"), item); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
	case []int:
		data := v.CreateElement("array").CreateElement("data")
		for _, item := range t {
			data.CreateElement("value").CreateElement("int").SetText(strconv.Itoa(item))
		}
	case []string:
		data := v.CreateElement("array").CreateElement("data")
		for _, item := range t {
			data.CreateElement("value").CreateElement("string").SetText(item)
		}
	case map[string]any:
		st := v.CreateElement("struct")
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			m := st.CreateElement("member")
			m.CreateElement("name").SetText(k)
			if err := encodeValue(m.CreateElement("value"), t[k]); err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
		}
	default:
		return fmt.Errorf("xmlrpc: unsupported type %T", x)
	}
	return nil
}

func decodeValue(v *etree.Element) (any, error) {
	children := v.ChildElements()
	if len(children) == 0 {
		// untyped value is a string
		return v.Text(), nil
	}
	el := children[0]
	text := strings.TrimSpace(el.Text())

	switch el.Tag {
	case "string", "base64", "dateTime.iso8601":
		return el.Text(), nil
	case "int", "i4", "i8":
		n, err := strconv.Atoi(text)
		if err != nil {
			return nil, fmt.Errorf("xmlrpc: bad %s %q", el.Tag, text)
		}
		return n, nil
	case "double":
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("xmlrpc: bad double %q", text)
		}
		return f, nil
	case "boolean":
		switch text {
		case "1", "true":
			return true, nil
		case "0", "false":
			return false, nil
		}
		return nil, fmt.Errorf("xmlrpc: bad boolean %q", text)
	case "nil":
		return nil, nil
	case "array":
		out := []any{}
		data := el.SelectElement("data")
		if data == nil {
			return out, nil
		}
		for _, item := range data.SelectElements("value") {
			x, err := decodeValue(item)
			if err != nil {
				return nil, err
			}
			out = append(out, x)
		}
		return out, nil
	case "struct":
		out := map[string]any{}
		for _, m := range el.SelectElements("member") {
			name := m.SelectElement("name")
			val := m.SelectElement("value")
			if name == nil || val == nil {
				return nil, fmt.Errorf("xmlrpc: malformed struct member")
			}
			x, err := decodeValue(val)
			if err != nil {
				return nil, err
			}
			out[name.Text()] = x
		}
		return out, nil
	}
	return nil, fmt.Errorf("xmlrpc: unsupported type <%s>", el.Tag)
}
