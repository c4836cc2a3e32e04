package secrets

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "ELASTIC_ENDPOINT", EnvKey("elastic-endpoint"))
	assert.Equal(t, "ELASTIC_API_KEY", EnvKey("elastic-api-key"))
}

func TestEnvStore(t *testing.T) {
	env := map[string]string{"ELASTIC_ENDPOINT": "http://localhost:9200", "EMPTY": ""}
	store := &EnvStore{lookup: func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}}
	ctx := context.Background()

	v, err := store.Secret(ctx, "elastic-endpoint")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9200", v)

	_, err = store.Secret(ctx, "elastic-api-key")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Secret(ctx, "empty")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEnvStore_ProcessEnvironment(t *testing.T) {
	t.Setenv("ELASTIC_API_KEY", "c2VjcmV0")

	v, err := NewEnvStore().Secret(context.Background(), "elastic-api-key")
	require.NoError(t, err)
	assert.Equal(t, "c2VjcmV0", v)
}

func newAWSTestStore(t *testing.T, handler http.HandlerFunc) *AWSStore {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	sess, err := session.NewSession(&aws.Config{
		Region:      aws.String("us-east-1"),
		Endpoint:    aws.String(srv.URL),
		Credentials: credentials.NewStaticCredentials("test", "test", ""),
		MaxRetries:  aws.Int(0),
	})
	require.NoError(t, err)
	return NewAWSStore(sess)
}

func TestAWSStore_Secret(t *testing.T) {
	var req map[string]string
	store := newAWSTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secretsmanager.GetSecretValue", r.Header.Get("X-Amz-Target"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &req)

		w.Header().Set("Content-Type", "application/x-amz-json-1.1")
		_, _ = io.WriteString(w, `{"Name":"elastic-endpoint","SecretString":"https://es.example:9243","VersionStages":["AWSCURRENT"]}`)
	})

	v, err := store.Secret(context.Background(), "elastic-endpoint")
	require.NoError(t, err)
	assert.Equal(t, "https://es.example:9243", v)
	assert.Equal(t, "elastic-endpoint", req["SecretId"])
	assert.Equal(t, "AWSCURRENT", req["VersionStage"])
}

func TestAWSStore_NotFound(t *testing.T) {
	store := newAWSTestStore(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/x-amz-json-1.1")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"__type":"ResourceNotFoundException","message":"Secrets Manager can't find the specified secret."}`)
	})

	_, err := store.Secret(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetching secret missing")
	assert.Contains(t, err.Error(), "ResourceNotFoundException")
}
