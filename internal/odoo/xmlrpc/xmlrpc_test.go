package xmlrpc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/finvoice-bridge/internal/odoo/xmlrpc"
)

func TestCall_RoundTrip(t *testing.T) {
	data, err := xmlrpc.EncodeCall("execute_kw",
		"db", 2, "key", "account.move", "search_read",
		[]any{[]any{[]any{"move_type", "=", "out_invoice"}}},
		map[string]any{"fields": []string{"id", "name"}, "limit": 0},
	)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<methodName>execute_kw</methodName>")

	method, params, err := xmlrpc.DecodeCall(data)
	require.NoError(t, err)
	assert.Equal(t, "execute_kw", method)
	require.Len(t, params, 7)
	assert.Equal(t, "db", params[0])
	assert.Equal(t, 2, params[1])
	assert.Equal(t, []any{[]any{[]any{"move_type", "=", "out_invoice"}}}, params[5])
	assert.Equal(t, map[string]any{"fields": []any{"id", "name"}, "limit": 0}, params[6])
}

func TestResponse_Values(t *testing.T) {
	value := []any{
		map[string]any{
			"id":         7,
			"name":       "INV/2025/0001",
			"amount":     125.5,
			"active":     true,
			"partner_id": []any{3, "Ostaja Oy"},
			"bank":       false,
			"note":       nil,
		},
	}
	data, err := xmlrpc.EncodeResponse(value)
	require.NoError(t, err)

	got, err := xmlrpc.DecodeResponse(data)
	require.NoError(t, err)
	assert.Equal(t, value, got)
}

func TestDecodeResponse_Types(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected any
	}{
		{"untyped string", `<value>plain</value>`, "plain"},
		{"i4", `<value><i4>42</i4></value>`, 42},
		{"i8", `<value><i8>-1</i8></value>`, -1},
		{"double", `<value><double>25.5</double></value>`, 25.5},
		{"boolean true", `<value><boolean>1</boolean></value>`, true},
		{"base64", `<value><base64>YWJj</base64></value>`, "YWJj"},
		{"empty array", `<value><array><data/></array></value>`, []any{}},
		{"nil", `<value><nil/></value>`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := `<?xml version="1.0"?><methodResponse><params><param>` + tt.value + `</param></params></methodResponse>`
			got, err := xmlrpc.DecodeResponse([]byte(data))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestDecodeResponse_Fault(t *testing.T) {
	data, err := xmlrpc.EncodeFault(2, "Access Denied")
	require.NoError(t, err)

	_, err = xmlrpc.DecodeResponse(data)
	var fault *xmlrpc.FaultError
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, 2, fault.Code)
	assert.Equal(t, "Access Denied", fault.Message)
	assert.Contains(t, err.Error(), "Access Denied")
}

func TestDecodeResponse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not xml", "<<<"},
		{"wrong root", `<methodCall/>`},
		{"no params", `<methodResponse/>`},
		{"bad int", `<methodResponse><params><param><value><int>x</int></value></param></params></methodResponse>`},
		{"unknown type", `<methodResponse><params><param><value><date>1</date></value></param></params></methodResponse>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := xmlrpc.DecodeResponse([]byte(tt.data))
			require.Error(t, err)
		})
	}
}

func TestEncodeCall_Unsupported(t *testing.T) {
	_, err := xmlrpc.EncodeCall("m", struct{}{})
	require.Error(t, err)
}
