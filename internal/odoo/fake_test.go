package odoo_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rezonia/finvoice-bridge/internal/odoo"
	"github.com/rezonia/finvoice-bridge/internal/odoo/xmlrpc"
)

const (
	testDB      = "acme"
	testUser    = "bridge@example.com"
	testKey     = "secret"
	testUID     = 7
	testCompany = 1
)

// call is one execute_kw request received by the fake
type call struct {
	Model  string
	Method string
	Args   []any
	Kwargs map[string]any
}

type handlerFunc func(c call) any

// fakeOdoo serves the XML-RPC endpoints of an Odoo database
type fakeOdoo struct {
	t        *testing.T
	mu       sync.Mutex
	handlers map[string]handlerFunc
	calls    []call
	server   *httptest.Server
}

func newFakeOdoo(t *testing.T) *fakeOdoo {
	f := &fakeOdoo{t: t, handlers: map[string]handlerFunc{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/xmlrpc/2/common", f.common)
	mux.HandleFunc("/xmlrpc/2/object", f.object)
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

// on registers a handler for model.method
func (f *fakeOdoo) on(model, method string, h handlerFunc) {
	f.handlers[model+"."+method] = h
}

// records answers a search_read with fixed rows
func records(rows ...map[string]any) handlerFunc {
	return func(call) any {
		out := make([]any, len(rows))
		for i, r := range rows {
			out[i] = r
		}
		return out
	}
}

func created(id int) handlerFunc {
	return func(call) any { return id }
}

func (f *fakeOdoo) callsTo(model, method string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.Model == model && c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeOdoo) client(t *testing.T) *odoo.Client {
	c := odoo.NewClient(f.server.URL, testDB, testUser, testKey)
	_, err := c.Authenticate(context.Background())
	require.NoError(t, err)
	return c
}

func (f *fakeOdoo) common(w http.ResponseWriter, r *http.Request) {
	method, params := f.decode(r)
	if method != "authenticate" || len(params) < 3 {
		f.fault(w, 1, "unknown method")
		return
	}
	if params[0] != testDB || params[1] != testUser || params[2] != testKey {
		f.reply(w, false)
		return
	}
	f.reply(w, testUID)
}

func (f *fakeOdoo) object(w http.ResponseWriter, r *http.Request) {
	method, params := f.decode(r)
	if method != "execute_kw" || len(params) < 6 {
		f.fault(w, 1, "unknown method")
		return
	}
	if params[1] != testUID || params[2] != testKey {
		f.fault(w, 3, "Access Denied")
		return
	}

	c := call{Model: params[3].(string), Method: params[4].(string)}
	c.Args, _ = params[5].([]any)
	if len(params) > 6 {
		c.Kwargs, _ = params[6].(map[string]any)
	}
	f.mu.Lock()
	f.calls = append(f.calls, c)
	h, ok := f.handlers[c.Model+"."+c.Method]
	f.mu.Unlock()

	switch {
	case ok:
		f.reply(w, h(c))
	case c.Method == "search_read":
		f.reply(w, []any{})
	case c.Method == "write":
		f.reply(w, true)
	default:
		f.fault(w, 2, "no handler for "+c.Model+"."+c.Method)
	}
}

func (f *fakeOdoo) decode(r *http.Request) (string, []any) {
	body, err := io.ReadAll(r.Body)
	require.NoError(f.t, err)
	method, params, err := xmlrpc.DecodeCall(body)
	require.NoError(f.t, err)
	return method, params
}

func (f *fakeOdoo) reply(w http.ResponseWriter, v any) {
	data, err := xmlrpc.EncodeResponse(v)
	require.NoError(f.t, err)
	w.Header().Set("Content-Type", "text/xml")
	_, _ = w.Write(data)
}

func (f *fakeOdoo) fault(w http.ResponseWriter, code int, msg string) {
	data, err := xmlrpc.EncodeFault(code, msg)
	require.NoError(f.t, err)
	_, _ = w.Write(data)
}

// condition returns the value of the first domain condition on field
func condition(c call, field string) any {
	if len(c.Args) == 0 {
		return nil
	}
	domain, _ := c.Args[0].([]any)
	for _, d := range domain {
		cond, ok := d.([]any)
		if ok && len(cond) == 3 && cond[0] == field {
			return cond[2]
		}
	}
	return nil
}
