package env

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveAWSFromEnv(t *testing.T) {
	t.Setenv(AWSRegion, "ap-southeast-2")
	t.Setenv(AWSAccessKeyID, "key")
	t.Setenv(AWSSecretAccessKey, "secret")
	t.Setenv(AWSSessionToken, "")

	values, err := NewResolver(WithAWS(AWSCredentials{})).Resolve()
	require.NoError(t, err)

	assert.Equal(t, AWSCredentials{
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		Region:          "ap-southeast-2",
	}, values.AWSCredentials)
}

func TestResolveFlagsWin(t *testing.T) {
	t.Setenv(AWSRegion, "ap-southeast-2")
	t.Setenv(AWSAccessKeyID, "env-key")
	t.Setenv(AWSSecretAccessKey, "")
	t.Setenv(DatabaseDSN, "root@tcp(10.0.0.1:3306)/env")

	values, err := NewResolver(
		WithAWS(AWSCredentials{AccessKeyID: "flag-key", SecretAccessKey: "flag-secret"}),
		WithDatabaseDSN("root@tcp(127.0.0.1:3306)/flag", true),
	).Resolve()

	require.NoError(t, err)
	assert.Equal(t, "flag-key", values.AWSCredentials.AccessKeyID)
	assert.Equal(t, "flag-secret", values.AWSCredentials.SecretAccessKey)
	assert.Equal(t, "ap-southeast-2", values.AWSCredentials.Region)
	assert.Equal(t, "root@tcp(127.0.0.1:3306)/flag", values.DatabaseDSN)
}

func TestResolveDatabaseDSNFallback(t *testing.T) {
	t.Setenv(DatabaseDSN, "root@tcp(127.0.0.1:3306)/app")

	values, err := NewResolver(WithDatabaseDSN("", true)).Resolve()
	require.NoError(t, err)
	assert.Equal(t, "root@tcp(127.0.0.1:3306)/app", values.DatabaseDSN)
}

func TestResolveMissing(t *testing.T) {
	t.Setenv(DatabaseDSN, "")
	t.Setenv(AWSRegion, "")
	t.Setenv(AWSAccessKeyID, "")
	t.Setenv(AWSSecretAccessKey, "")

	values, err := NewResolver(WithDatabaseDSN("", false)).Resolve()
	require.NoError(t, err)
	assert.Empty(t, values.DatabaseDSN)

	_, err = NewResolver(WithAWS(AWSCredentials{}), WithDatabaseDSN("", true)).Resolve()
	assert.ErrorIs(t, err, ErrMissingEnv)
	assert.ErrorContains(t, err, "missing required environment variable AWS_ACCESS_KEY_ID (or flag --s3-key)")
	assert.ErrorContains(t, err, "missing required environment variable DATABASE_DSN (or flag --dsn)")
	assert.NotContains(t, err.Error(), AWSRegion)

	var missing *MissingError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, AWSAccessKeyID, missing.Var)
}
