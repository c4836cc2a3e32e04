// Package secrets resolves named secrets from the environment or AWS Secrets
// Manager.
package secrets

import (
	"context"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/pkg/errors"
)

// ErrNotFound is returned when a secret has no value.
var ErrNotFound = errors.New("secret not found")

// EnvStore reads secrets from environment variables. The secret name is
// upper-cased with dashes replaced by underscores: "elastic-endpoint" is read
// from ELASTIC_ENDPOINT.
type EnvStore struct {
	lookup func(string) (string, bool)
}

// NewEnvStore returns an EnvStore over the process environment.
func NewEnvStore() *EnvStore {
	return &EnvStore{lookup: os.LookupEnv}
}

// EnvKey returns the variable name a secret is read from.
func EnvKey(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

// Secret returns the value of the named secret.
func (s *EnvStore) Secret(_ context.Context, name string) (string, error) {
	v, ok := s.lookup(EnvKey(name))
	if !ok || v == "" {
		return "", errors.Wrapf(ErrNotFound, "%s (env %s)", name, EnvKey(name))
	}
	return v, nil
}

// AWSStore reads the current version of secrets from AWS Secrets Manager.
type AWSStore struct {
	client *secretsmanager.SecretsManager
}

// NewAWSStore creates an AWSStore on sess.
func NewAWSStore(sess *session.Session) *AWSStore {
	return &AWSStore{client: secretsmanager.New(sess)}
}

// Secret returns the AWSCURRENT string value of the named secret.
func (s *AWSStore) Secret(ctx context.Context, name string) (string, error) {
	out, err := s.client.GetSecretValueWithContext(ctx, &secretsmanager.GetSecretValueInput{
		SecretId:     aws.String(name),
		VersionStage: aws.String("AWSCURRENT"),
	})
	if err != nil {
		return "", errors.Wrapf(err, "fetching secret %s", name)
	}
	if out.SecretString == nil || *out.SecretString == "" {
		return "", errors.Wrapf(ErrNotFound, "%s has no string value", name)
	}
	return *out.SecretString, nil
}
