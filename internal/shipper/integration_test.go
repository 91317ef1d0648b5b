package shipper

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"github.com/Nao-Mk2/cwlogs-to-es/internal/bulk"
	"github.com/Nao-Mk2/cwlogs-to-es/internal/client"
	"github.com/Nao-Mk2/cwlogs-to-es/internal/pattern"
)

func newSignedStore(t *testing.T, h http.HandlerFunc) *client.Store {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	tr, err := client.NewSignedTransport(srv.URL, aws.Config{
		Region:      "us-east-1",
		Credentials: credentials.NewStaticCredentialsProvider("AKID", "SECRET", "TOKEN"),
	})
	if err != nil {
		t.Fatalf("NewSignedTransport: %v", err)
	}
	return client.NewStore(tr)
}

func TestHandleEndToEnd(t *testing.T) {
	var gotBody, gotAuth, gotToken string
	store := newSignedStore(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotAuth = r.Header.Get("Authorization")
		gotToken = r.Header.Get("X-Amz-Security-Token")
		io.WriteString(w, `{"took":1,"errors":false,"items":[]}`)
	})
	s := New(store, bulk.New(pattern.MustCompile("'cwl-'yyyy.MM.dd"), "log"), "awslogs.data", quietLogger())

	got, err := s.Handle(context.Background(), rawEvent(t, dataBatch()))
	if err != nil || got != Success {
		t.Fatalf("Handle()=(%q, %v)", got, err)
	}
	if !strings.Contains(gotBody, `"_index":"cwl-2024.03.07"`) || !strings.Contains(gotBody, `"k":1`) || strings.Contains(gotBody, `"_k"`) {
		t.Fatalf("unexpected bulk body: %s", gotBody)
	}
	if !strings.HasPrefix(gotAuth, "AWS4-HMAC-SHA256") || gotToken != "TOKEN" {
		t.Fatalf("request not signed: auth=%q token=%q", gotAuth, gotToken)
	}
}

func TestHandleEndToEndNon2xx(t *testing.T) {
	store := newSignedStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		io.WriteString(w, "payload too large")
	})
	s := New(store, bulk.New(pattern.MustCompile("yyyy.MM.dd"), ""), "awslogs.data", quietLogger())

	got, err := s.Handle(context.Background(), rawEvent(t, dataBatch()))
	var we *client.WriteError
	if !errors.As(err, &we) || we.Body != "payload too large" || got != "" {
		t.Fatalf("Handle()=(%q, %v), want WriteError", got, err)
	}
}
