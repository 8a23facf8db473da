package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func geminiBody(text string) string {
	return fmt.Sprintf(`{"candidates":[{"content":{"parts":[{"text":%q}]}}]}`, text)
}

func newServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEnrich(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    *Result
		wantErr bool
	}{
		{
			name:   "complete response",
			status: 200,
			body:   geminiBody(`{"title_ar":"عنوان","summary_ar":"ملخص","category":"models"}`),
			want:   &Result{TitleAr: "عنوان", SummaryAr: "ملخص", Category: "models"},
		},
		{
			name:   "missing title falls back to original",
			status: 200,
			body:   geminiBody(`{"summary_ar":"ملخص","category":"research"}`),
			want:   &Result{TitleAr: "Original Title", SummaryAr: "ملخص", Category: "research"},
		},
		{
			name:   "missing category defaults to other",
			status: 200,
			body:   geminiBody(`{"title_ar":"عنوان"}`),
			want:   &Result{TitleAr: "عنوان", SummaryAr: "", Category: "other"},
		},
		{
			name:   "unrecognized category normalized to other",
			status: 200,
			body:   geminiBody(`{"title_ar":"عنوان","category":"blockchain"}`),
			want:   &Result{TitleAr: "عنوان", Category: "other"},
		},
		{
			name:   "fenced json accepted",
			status: 200,
			body:   geminiBody("```json\n{\"title_ar\":\"عنوان\",\"category\":\"tools\"}\n```"),
			want:   &Result{TitleAr: "عنوان", Category: "tools"},
		},
		{
			name:    "http error",
			status:  500,
			body:    "boom",
			wantErr: true,
		},
		{
			name:    "non-json model output",
			status:  200,
			body:    geminiBody("sorry, I cannot help with that"),
			wantErr: true,
		},
		{
			name:    "empty candidates",
			status:  200,
			body:    `{"candidates":[]}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, tt.status, tt.body)
			c := NewClient("test-key", WithBaseURL(srv.URL))

			got, err := c.Enrich(context.Background(), "Original Title", "Some content")
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("result mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEnrichSendsJSONMIMERequest(t *testing.T) {
	var gotPath string
	var gotBody geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := jsonDecode(r, &gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(geminiBody(`{"title_ar":"عنوان"}`)))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL), WithModel("gemini-test"))
	if _, err := c.Enrich(context.Background(), "Title", "Content"); err != nil {
		t.Fatalf("enrich: %v", err)
	}

	if diff := cmp.Diff("/v1beta/models/gemini-test:generateContent", gotPath); diff != "" {
		t.Errorf("path mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("application/json", gotBody.GenerationConfig.ResponseMIMEType); diff != "" {
		t.Errorf("response mime type mismatch (-want +got):\n%s", diff)
	}
	if len(gotBody.Contents) != 1 || len(gotBody.Contents[0].Parts) != 1 {
		t.Fatalf("unexpected request shape: %+v", gotBody)
	}
}

func jsonDecode(r *http.Request, v any) error {
	defer func() { _ = r.Body.Close() }()
	return json.NewDecoder(r.Body).Decode(v)
}
