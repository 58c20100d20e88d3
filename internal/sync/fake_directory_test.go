package sync_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	"github.com/stitchflow-website/dirsync/internal/provider"
)

// fakeDirectory serves the subset of the directory API the pipeline uses
type fakeDirectory struct {
	users  []string
	grants map[string][]string

	// failures maps a collection to the status code every request for it gets
	failures map[provider.Collection]int
	body     string

	calls        atomic.Int32
	unknownUsers atomic.Int32
}

// knows reports whether the directory lists a user with id key
func (f *fakeDirectory) knows(key string) bool {
	for _, raw := range f.users {
		if gjson.Get(raw, "id").String() == key {
			return true
		}
	}
	return false
}

func notFound(w http.ResponseWriter, what string) {
	w.WriteHeader(http.StatusNotFound)
	_, _ = fmt.Fprintf(w, `{"error":{"code":404,"message":"Resource Not Found: %s"}}`, what)
}

func (f *fakeDirectory) fail(w http.ResponseWriter, c provider.Collection) bool {
	code, ok := f.failures[c]
	if !ok {
		return false
	}
	w.WriteHeader(code)
	_, _ = w.Write([]byte(f.body))
	return true
}

func (f *fakeDirectory) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /admin/directory/v1/users", func(w http.ResponseWriter, _ *http.Request) {
		f.calls.Add(1)
		if f.fail(w, provider.CollectionUsers) {
			return
		}
		_, _ = fmt.Fprintf(w, `{"users":[%s]}`, strings.Join(f.users, ","))
	})
	mux.HandleFunc("GET /admin/directory/v1/users/{user}/tokens", func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		if f.fail(w, provider.CollectionGrants) {
			return
		}
		if !f.knows(r.PathValue("user")) {
			f.unknownUsers.Add(1)
			notFound(w, "userKey")
			return
		}
		_, _ = fmt.Fprintf(w, `{"items":[%s]}`, strings.Join(f.grants[r.PathValue("user")], ","))
	})
	mux.HandleFunc("GET /admin/directory/v1/users/{user}/tokens/{client}", func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		if f.fail(w, provider.CollectionScopes) {
			return
		}
		for _, raw := range f.grants[r.PathValue("user")] {
			if gjson.Get(raw, "clientId").String() == r.PathValue("client") {
				_, _ = w.Write([]byte(raw))
				return
			}
		}
		notFound(w, "clientId")
	})
	return mux
}

func (f *fakeDirectory) start(t *testing.T) provider.Fetcher {
	t.Helper()
	server := httptest.NewServer(f.handler())
	server.Config.SetKeepAlivesEnabled(false)
	t.Cleanup(server.Close)

	return provider.NewFetcher(provider.Options{
		BaseURL:     server.URL,
		TokenURL:    server.URL + "/token",
		Concurrency: 4,
		Timeout:     5 * time.Second,
	})
}

func sampleDirectory() *fakeDirectory {
	return &fakeDirectory{
		users: []string{
			`{"id":"u1","primaryEmail":"ada@example.com","name":{"fullName":"Ada Lovelace"},"isAdmin":true,` +
				`"orgUnitPath":"/eng","lastLoginTime":"2026-02-27T10:00:00.000Z","creationTime":"2020-01-01T00:00:00.000Z"}`,
			`{"id":"u2","primaryEmail":"bob@example.com","name":{"fullName":"Bob Babbage"},` +
				`"lastLoginTime":"1970-01-01T00:00:00.000Z"}`,
		},
		grants: map[string][]string{
			"u1": {
				`{"clientId":"slack","displayText":"Slack","scopes":["openid","email","https://www.googleapis.com/auth/drive"]}`,
				`{"clientId":"zoom","displayText":"Zoom","nativeApp":true,"scopes":["https://www.googleapis.com/auth/calendar"]}`,
			},
			"u2": {
				`{"clientId":"slack","displayText":"Slack","scopes":["openid"]}`,
			},
		},
	}
}
