package collector

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

type received struct {
	auth     string
	release  string
	fileName string
	content  string
}

func newCollector(t *testing.T, body string, got *received) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("failed to parse multipart body: %v", err)
			return
		}
		if got != nil {
			got.auth = r.Header.Get("Authorization")
			got.release = r.FormValue("release")
			f, hdr, err := r.FormFile("file")
			if err != nil {
				t.Errorf("missing file part: %v", err)
				return
			}
			defer f.Close()
			data, _ := io.ReadAll(f)
			got.fileName = hdr.Filename
			got.content = string(data)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestUploadSendsMultipartRequest(t *testing.T) {
	var got received
	server := newCollector(t, `{"error":false}`, &got)

	c := New(server.URL, "tok-123", 0)
	err := c.Upload(context.Background(), "1.0.0", "assets/app.js.map", []byte(`{"version":3}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.auth != "Bearer tok-123" {
		t.Errorf("unexpected Authorization header %q", got.auth)
	}
	if got.release != "1.0.0" {
		t.Errorf("unexpected release %q", got.release)
	}
	if got.fileName != "app.js.map" {
		t.Errorf("expected base name app.js.map, got %q", got.fileName)
	}
	if got.content != `{"version":3}` {
		t.Errorf("unexpected content %q", got.content)
	}
}

func TestUploadRejected(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"message wins", `{"error":true,"message":"bad file"}`, "bad file"},
		{"error string", `{"error":"quota exceeded"}`, "quota exceeded"},
		{"fallback", `{"error":1}`, "unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newCollector(t, tt.body, nil)

			err := New(server.URL, "tok", 0).Upload(context.Background(), "r", "a.js.map", []byte("{}"))

			var rejected *RejectedError
			if !errors.As(err, &rejected) {
				t.Fatalf("expected RejectedError, got %v", err)
			}
			if rejected.Message != tt.want {
				t.Fatalf("expected message %q, got %q", tt.want, rejected.Message)
			}
		})
	}
}

func TestUploadFalsyErrorIsSuccess(t *testing.T) {
	for _, body := range []string{`{}`, `{"error":false}`, `{"error":""}`, `{"error":0}`, `{"error":null}`} {
		server := newCollector(t, body, nil)
		if err := New(server.URL, "tok", 0).Upload(context.Background(), "r", "a.js.map", []byte("{}")); err != nil {
			t.Errorf("body %s: unexpected error %v", body, err)
		}
	}
}

func TestUploadNonObjectResponse(t *testing.T) {
	for _, body := range []string{"<html>502 Bad Gateway</html>", "null", "[]", `"ok"`, ""} {
		server := newCollector(t, body, nil)

		err := New(server.URL, "tok", 0).Upload(context.Background(), "r", "a.js.map", []byte("{}"))
		if !errors.Is(err, ErrInvalidResponse) {
			t.Errorf("body %q: expected ErrInvalidResponse, got %v", body, err)
		}
	}
}

func TestUploadNetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	err := New(url, "tok", 0).Upload(context.Background(), "r", "a.js.map", []byte("{}"))
	if err == nil {
		t.Fatal("expected error for closed server")
	}
}
