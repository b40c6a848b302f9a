package mid_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/marabu/node/business/web/mid"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func serve(origins []string, method string, headers map[string]string) (*httptest.ResponseRecorder, bool, error) {
	var called bool
	next := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		called = true
		w.WriteHeader(http.StatusOK)
		return nil
	}

	r := httptest.NewRequest(method, "/v1/node/status", nil)
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	w := httptest.NewRecorder()

	err := mid.Cors(origins...)(next)(context.Background(), w, r)
	return w, called, err
}

func Test_Cors(t *testing.T) {
	type table struct {
		name    string
		origins []string
		method  string
		headers map[string]string
		origin  string
		methods string
		called  bool
		status  int
	}

	preflight := map[string]string{
		"Origin":                        "https://explorer.example",
		"Access-Control-Request-Method": "POST",
	}

	tt := []table{
		{
			name:    "wildcard",
			origins: []string{"*"},
			method:  http.MethodGet,
			headers: map[string]string{"Origin": "https://explorer.example"},
			origin:  "*",
			called:  true,
			status:  http.StatusOK,
		},
		{
			name:    "listed",
			origins: []string{"https://wallet.example", "https://explorer.example/"},
			method:  http.MethodGet,
			headers: map[string]string{"Origin": "https://explorer.example"},
			origin:  "https://explorer.example",
			called:  true,
			status:  http.StatusOK,
		},
		{
			name:    "unlisted",
			origins: []string{"https://wallet.example"},
			method:  http.MethodGet,
			headers: map[string]string{"Origin": "https://explorer.example"},
			called:  true,
			status:  http.StatusOK,
		},
		{
			name:    "noorigin",
			origins: []string{"*"},
			method:  http.MethodGet,
			called:  true,
			status:  http.StatusOK,
		},
		{
			name:    "preflight",
			origins: []string{"https://explorer.example"},
			method:  http.MethodOptions,
			headers: preflight,
			origin:  "https://explorer.example",
			methods: "GET, POST, OPTIONS",
			status:  http.StatusNoContent,
		},
		{
			name:    "preflightunlisted",
			origins: []string{"https://wallet.example"},
			method:  http.MethodOptions,
			headers: preflight,
			called:  true,
			status:  http.StatusOK,
		},
	}

	t.Log("Given the need to answer cross origin requests.")
	{
		for testID, tst := range tt {
			tf := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen handling a %s request for %q.", testID, tst.method, tst.headers["Origin"])
				{
					w, called, err := serve(tst.origins, tst.method, tst.headers)
					if err != nil {
						t.Fatalf("\t%s\tShould be able to serve the request: %s", failed, err)
					}

					if got := w.Header().Get("Access-Control-Allow-Origin"); got != tst.origin {
						t.Logf("\t\tgot: %q", got)
						t.Logf("\t\texp: %q", tst.origin)
						t.Fatalf("\t%s\tShould set the allowed origin.", failed)
					}
					t.Logf("\t%s\tShould set the allowed origin.", success)

					if got := w.Header().Get("Access-Control-Allow-Methods"); got != tst.methods {
						t.Fatalf("\t%s\tShould announce the methods only on preflight: %q", failed, got)
					}
					t.Logf("\t%s\tShould announce the methods only on preflight.", success)

					if w.Header().Get("Vary") != "Origin" {
						t.Fatalf("\t%s\tShould vary the response on the origin.", failed)
					}
					t.Logf("\t%s\tShould vary the response on the origin.", success)

					if called != tst.called || w.Code != tst.status {
						t.Fatalf("\t%s\tShould reach the handler only for non preflight requests: called[%t] status[%d]", failed, called, w.Code)
					}
					t.Logf("\t%s\tShould reach the handler only for non preflight requests.", success)
				}
			}

			t.Run(tst.name, tf)
		}
	}
}
