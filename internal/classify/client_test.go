package classify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/functions/document-types-identifier/invoke", r.URL.Path)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "URL", body["contentType"])
		require.Equal(t, "https://files.example/pay%20stub.pdf", body["data"])

		w.Write([]byte(`{"labelName":"pay-stub","confidence":0.93}`))
	}))
	defer server.Close()

	client := New("", WithURL(server.URL), WithToken("secret"))

	result, err := client.Classify(context.Background(), "https://files.example/pay stub.pdf")
	require.NoError(t, err)
	require.Equal(t, &Result{DocumentType: "pay-stub", Confidence: 0.93}, result)
}

func TestClassifyAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("quota exceeded"))
	}))
	defer server.Close()

	client := New("", WithURL(server.URL), WithToken("secret"))

	_, err := client.Classify(context.Background(), "https://files.example/doc.pdf")
	require.EqualError(t, err, "Nyckel API error: Forbidden. Details: quota exceeded")
}

func TestClassifyValidates(t *testing.T) {
	_, err := New("").Classify(context.Background(), "https://files.example/doc.pdf")
	require.ErrorIs(t, err, ErrMissingAPIKey)

	_, err = New("", WithToken("secret")).Classify(context.Background(), " ")
	require.ErrorIs(t, err, ErrMissingURL)
}

func TestEncodeURI(t *testing.T) {
	require.Equal(t, "https://a.example/x%20y?q=1&r=%C3%A4#top", encodeURI("https://a.example/x y?q=1&r=ä#top"))
}
