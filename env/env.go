// Package env resolves settings that can be given either as a command line
// flag or as an environment variable. Flag values win.
package env

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

const (
	AWSRegion          = "AWS_REGION"
	AWSAccessKeyID     = "AWS_ACCESS_KEY_ID"
	AWSSecretAccessKey = "AWS_SECRET_ACCESS_KEY"
	AWSSessionToken    = "AWS_SESSION_TOKEN"
	DatabaseDSN        = "DATABASE_DSN"
)

var ErrMissingEnv = errors.New("missing required setting")

// MissingError names an unset environment variable and the flag that can
// be used instead.
type MissingError struct {
	Var  string
	Flag string
}

func (e *MissingError) Error() string {
	if e.Flag == "" {
		return fmt.Sprintf("missing required environment variable %s", e.Var)
	}

	return fmt.Sprintf("missing required environment variable %s (or flag %s)", e.Var, e.Flag)
}

func (e *MissingError) Is(target error) bool {
	return target == ErrMissingEnv
}

type AWSCredentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Region          string
}

type Values struct {
	AWSCredentials AWSCredentials
	DatabaseDSN    string
}

type setting struct {
	env      string
	flag     string
	value    string
	required bool
	assign   func(values *Values, value string)
}

type Resolver struct {
	settings []setting
}

type Option func(resolver *Resolver)

func NewResolver(opts ...Option) *Resolver {
	resolver := &Resolver{}

	for _, opt := range opts {
		opt(resolver)
	}

	return resolver
}

// WithAWS resolves the AWS credentials. The key pair is required, the region
// and session token may also come from the shared AWS config.
func WithAWS(flags AWSCredentials) Option {
	return func(resolver *Resolver) {
		resolver.settings = append(resolver.settings,
			setting{env: AWSAccessKeyID, flag: "--s3-key", value: flags.AccessKeyID, required: true, assign: func(v *Values, s string) {
				v.AWSCredentials.AccessKeyID = s
			}},
			setting{env: AWSSecretAccessKey, flag: "--s3-secret", value: flags.SecretAccessKey, required: true, assign: func(v *Values, s string) {
				v.AWSCredentials.SecretAccessKey = s
			}},
			setting{env: AWSRegion, flag: "--s3-region", value: flags.Region, assign: func(v *Values, s string) {
				v.AWSCredentials.Region = s
			}},
			setting{env: AWSSessionToken, value: flags.SessionToken, assign: func(v *Values, s string) {
				v.AWSCredentials.SessionToken = s
			}},
		)
	}
}

// WithDatabaseDSN resolves the dsn from the --dsn flag value or DATABASE_DSN.
func WithDatabaseDSN(dsn string, required bool) Option {
	return func(resolver *Resolver) {
		resolver.settings = append(resolver.settings, setting{
			env:      DatabaseDSN,
			flag:     "--dsn",
			value:    dsn,
			required: required,
			assign: func(v *Values, s string) {
				v.DatabaseDSN = s
			},
		})
	}
}

// Resolve fills Values from the flag values, falling back to the environment.
// Every missing required setting is reported as a *MissingError.
func (resolver *Resolver) Resolve() (Values, error) {
	var (
		values Values
		errs   error
	)

	for _, s := range resolver.settings {
		value := strings.TrimSpace(s.value)
		if value == "" {
			value = strings.TrimSpace(os.Getenv(s.env))
		}

		if value == "" && s.required {
			errs = errors.Join(errs, &MissingError{Var: s.env, Flag: s.flag})
			continue
		}

		s.assign(&values, value)
	}

	return values, errs
}
