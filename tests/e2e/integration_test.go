// Package e2e runs the full application stack behind a real HTTP server
// and drives it with a cookie-jar client, the way a browser would.
package e2e

import (
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/quietpieces/ya-note/internal/auth"
	"github.com/quietpieces/ya-note/internal/db"
	"github.com/quietpieces/ya-note/internal/notes"
	"github.com/quietpieces/ya-note/internal/obs"
	"github.com/quietpieces/ya-note/internal/web"
)

func findTemplatesDir() string {
	candidates := []string{
		"../../web/templates",
		"../web/templates",
		"./web/templates",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	panic("unable to locate templates directory from test working directory")
}

// startServer wires the real handlers the same way cmd/server/main.go does.
func startServer(tb testing.TB) *httptest.Server {
	sqlDB, err := db.OpenInMemory()
	if err != nil {
		tb.Fatalf("open in-memory db failed: %v", err)
	}

	renderer, err := web.NewRenderer(findTemplatesDir())
	if err != nil {
		tb.Fatalf("renderer init failed: %v", err)
	}

	userService := auth.NewUserService(sqlDB)
	sessionService := auth.NewSessionService(sqlDB, 0)
	notesService := notes.NewService(sqlDB)

	handler := web.NewWebHandler(renderer, notesService, userService, sessionService, false)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, auth.NewMiddleware(sessionService))

	server := httptest.NewServer(obs.RequestContextMiddleware(obs.AccessLogMiddleware("e2e", mux)))
	tb.Cleanup(func() {
		server.Close()
		sqlDB.Close()
	})
	return server
}

// newBrowser returns a redirect-following client with a cookie jar.
func newBrowser(tb testing.TB) *http.Client {
	jar, err := cookiejar.New(nil)
	if err != nil {
		tb.Fatalf("cookie jar init failed: %v", err)
	}
	return &http.Client{Jar: jar}
}

// noRedirect stops the client at the first response so tests can inspect
// status codes and Location headers.
func noRedirect(client *http.Client) *http.Client {
	c := *client
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &c
}

func readBody(tb testing.TB, resp *http.Response) string {
	tb.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		tb.Fatalf("read body failed: %v", err)
	}
	return string(body)
}

func signupAndLogin(t *testing.T, server *httptest.Server, client *http.Client, username, password string) {
	t.Helper()

	resp, err := client.PostForm(server.URL+"/users/signup/", url.Values{
		"username": {username},
		"password": {password},
	})
	require.NoError(t, err)
	body := readBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode, "signup should land on the login page: %s", body)

	resp, err = client.PostForm(server.URL+"/users/login/", url.Values{
		"username": {username},
		"password": {password},
	})
	require.NoError(t, err)
	readBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestFullNoteLifecycle(t *testing.T) {
	server := startServer(t)
	client := newBrowser(t)

	signupAndLogin(t, server, client, "alice", "a long password")

	// Create without an explicit slug. The redirect chain ends on /done/.
	resp, err := client.PostForm(server.URL+"/add/", url.Values{
		"title": {"Grocery Run"},
		"text":  {"- milk\n- eggs"},
	})
	require.NoError(t, err)
	body := readBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "All set!")

	// The derived slug addresses the note.
	resp, err = client.Get(server.URL + "/note/grocery-run/")
	require.NoError(t, err)
	body = readBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "Grocery Run")
	require.Contains(t, body, "<li>milk</li>", "note text should render as markdown")

	// Edit keeps the slug.
	resp, err = client.PostForm(server.URL+"/edit/grocery-run/", url.Values{
		"title": {"Grocery Run v2"},
		"text":  {"- milk\n- eggs\n- bread"},
	})
	require.NoError(t, err)
	readBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.Get(server.URL + "/note/grocery-run/")
	require.NoError(t, err)
	body = readBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "Grocery Run v2")

	// Delete, then the slug answers 404.
	resp, err = client.PostForm(server.URL+"/delete/grocery-run/", nil)
	require.NoError(t, err)
	readBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.Get(server.URL + "/note/grocery-run/")
	require.NoError(t, err)
	readBody(t, resp)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAnonymousVisitorIsWalkedThroughLogin(t *testing.T) {
	server := startServer(t)
	client := noRedirect(newBrowser(t))

	resp, err := client.Get(server.URL + "/add/")
	require.NoError(t, err)
	readBody(t, resp)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "/users/login/?next=/add/", resp.Header.Get("Location"))

	// Following the redirect shows the login page, not an error.
	resp, err = newBrowser(t).Get(server.URL + "/add/")
	require.NoError(t, err)
	body := readBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "Sign In")
}

func TestSlugCollisionAcrossUsers(t *testing.T) {
	server := startServer(t)

	alice := newBrowser(t)
	signupAndLogin(t, server, alice, "alice", "a long password")
	bob := newBrowser(t)
	signupAndLogin(t, server, bob, "bob", "a long password")

	resp, err := alice.PostForm(server.URL+"/add/", url.Values{
		"title": {"First"},
		"text":  {"text"},
		"slug":  {"shared"},
	})
	require.NoError(t, err)
	readBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Bob cannot reuse the slug even though he cannot see the note.
	resp, err = bob.Get(server.URL + "/note/shared/")
	require.NoError(t, err)
	readBody(t, resp)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = bob.PostForm(server.URL+"/add/", url.Values{
		"title": {"Second"},
		"text":  {"text"},
		"slug":  {"shared"},
	})
	require.NoError(t, err)
	body := readBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "shared"+notes.SlugTakenWarning)
}

func TestLogoutRequiresPost(t *testing.T) {
	server := startServer(t)
	client := newBrowser(t)
	signupAndLogin(t, server, client, "alice", "a long password")

	resp, err := client.Get(server.URL + "/users/logout/")
	require.NoError(t, err)
	readBody(t, resp)
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = noRedirect(client).PostForm(server.URL+"/users/logout/", nil)
	require.NoError(t, err)
	readBody(t, resp)
	require.Equal(t, http.StatusFound, resp.StatusCode)

	resp, err = noRedirect(client).Get(server.URL + "/notes/")
	require.NoError(t, err)
	readBody(t, resp)
	require.Equal(t, http.StatusFound, resp.StatusCode, "session should be gone after logout")
}

func TestCreatedTitlesAreReachableByDerivedSlug_Rapid(t *testing.T) {
	server := startServer(t)
	client := newBrowser(t)
	signupAndLogin(t, server, client, "alice", "a long password")

	seen := map[string]bool{}
	rapid.Check(t, func(rt *rapid.T) {
		title := rapid.StringMatching(`[A-Za-z][A-Za-z0-9 ]{0,40}[A-Za-z0-9]`).Draw(rt, "title")
		slug := notes.Slugify(title)
		if slug == "" || seen[slug] {
			rt.Skip()
		}
		seen[slug] = true

		resp, err := client.PostForm(server.URL+"/add/", url.Values{
			"title": {title},
			"text":  {"generated"},
		})
		if err != nil {
			rt.Fatalf("create failed: %v", err)
		}
		readBody(t, resp)
		if resp.StatusCode != http.StatusOK {
			rt.Fatalf("create %q: status %d", title, resp.StatusCode)
		}

		resp, err = client.Get(server.URL + "/note/" + slug + "/")
		if err != nil {
			rt.Fatalf("fetch failed: %v", err)
		}
		body := readBody(t, resp)
		if resp.StatusCode != http.StatusOK {
			rt.Fatalf("note %q not reachable at /note/%s/: status %d", title, slug, resp.StatusCode)
		}
		if !strings.Contains(body, slug) {
			rt.Fatalf("detail page for %q missing slug %q", title, slug)
		}
	})
}
