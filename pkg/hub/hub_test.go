package hub

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRepoID(t *testing.T) {
	tests := []struct {
		in      string
		want    RepoID
		wantErr bool
	}{
		{"user/cartpole-appo", RepoID{"user", "cartpole-appo"}, false},
		{"org/model.v2", RepoID{"org", "model.v2"}, false},
		{"nouser", RepoID{}, true},
		{"a/b/c", RepoID{}, true},
		{"/model", RepoID{}, true},
		{"user/", RepoID{}, true},
		{"user/..", RepoID{}, true},
		{"us er/model", RepoID{}, true},
	}

	for _, tt := range tests {
		got, err := ParseRepoID(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.in, got.String())
	}
}

func TestPull(t *testing.T) {
	files := map[string]string{
		"config.json":          `{"algo":"APPO"}`,
		"checkpoint/model.bin": "weights",
		"replay.mp4":           "video-bytes",
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer hftoken", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/api/models/user/cartpole-appo":
			w.Write([]byte(`{"siblings":[
				{"rfilename":"config.json"},
				{"rfilename":"checkpoint/model.bin"},
				{"rfilename":"replay.mp4"}]}`))
		case "/user/cartpole-appo/resolve/main/config.json":
			io.WriteString(w, files["config.json"])
		case "/user/cartpole-appo/resolve/main/checkpoint/model.bin":
			io.WriteString(w, files["checkpoint/model.bin"])
		case "/user/cartpole-appo/resolve/main/replay.mp4":
			io.WriteString(w, files["replay.mp4"])
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	dest := t.TempDir()
	c := NewClient(WithBaseURL(srv.URL), WithToken("hftoken"))
	repo, err := ParseRepoID("user/cartpole-appo")
	require.NoError(t, err)

	require.NoError(t, c.Pull(context.Background(), repo, dest))

	for name, content := range files {
		data, err := os.ReadFile(filepath.Join(dest, filepath.FromSlash(name)))
		require.NoError(t, err, "file %s", name)
		assert.Equal(t, content, string(data))
	}
}

func TestPullRejectsTraversal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"siblings":[{"rfilename":"../evil"}]}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	repo := RepoID{Owner: "user", Name: "model"}
	err := c.Pull(context.Background(), repo, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsafe file name")
}

func TestPullEmptyRepo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"siblings":[]}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	err := c.Pull(context.Background(), RepoID{Owner: "user", Name: "empty"}, t.TempDir())
	require.Error(t, err)
}

func TestPush(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "checkpoint"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "config.json"), []byte(`{}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "checkpoint", "model.bin"), []byte("weights"), 0o644))

	created := false
	uploaded := map[string]string{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/repos/create":
			created = true
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodPut:
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			uploaded[r.URL.Path] = string(body)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithToken("hftoken"))
	repo := RepoID{Owner: "user", Name: "cartpole-appo"}
	require.NoError(t, c.Push(context.Background(), repo, src))

	assert.True(t, created, "repo should be created before upload")
	assert.Equal(t, `{}`, uploaded["/api/models/user/cartpole-appo/upload/main/config.json"])
	assert.Equal(t, "weights", uploaded["/api/models/user/cartpole-appo/upload/main/checkpoint/model.bin"])
}

func TestPushExistingRepo(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "model.bin"), []byte("w"), 0o644))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/repos/create" {
			w.WriteHeader(http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	require.NoError(t, c.Push(context.Background(), RepoID{Owner: "u", Name: "m"}, src))
}

func TestPushNotADirectory(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(f, []byte("x"), 0o644))

	c := NewClient()
	err := c.Push(context.Background(), RepoID{Owner: "u", Name: "m"}, f)
	require.Error(t, err)
}
