package service

import (
	"context"
	"encoding/base64"

	"gocloud.dev/secrets"

	apperrors "github.com/allisson/gatekeeper/internal/errors"

	// Register all KMS provider drivers
	_ "gocloud.dev/secrets/awskms"
	_ "gocloud.dev/secrets/azurekeyvault"
	_ "gocloud.dev/secrets/gcpkms"
	_ "gocloud.dev/secrets/hashivault"
	_ "gocloud.dev/secrets/localsecrets"
)

// staticSecretResolver returns a signing secret taken directly from configuration.
type staticSecretResolver struct {
	secret []byte
}

// NewStaticSecretResolver creates a SecretResolver for a plain configured secret.
func NewStaticSecretResolver(secret string) SecretResolver {
	return &staticSecretResolver{secret: []byte(secret)}
}

func (s *staticSecretResolver) Resolve(context.Context) ([]byte, error) {
	if len(s.secret) == 0 {
		return nil, apperrors.Wrap(apperrors.ErrConfiguration, "signing secret must not be empty")
	}
	return s.secret, nil
}

// kmsSecretResolver decrypts a KMS-wrapped signing secret at startup using a
// gocloud.dev/secrets keeper. Supports gcpkms://, awskms://, azurekeyvault://,
// hashivault://, and base64key:// key URIs.
type kmsSecretResolver struct {
	keyURI     string
	ciphertext string // base64-encoded encrypted signing secret
}

// NewKMSSecretResolver creates a SecretResolver that unwraps the base64
// ciphertext with the keeper identified by keyURI. Any failure is fatal to
// startup: a gateway with an unverifiable secret must not serve traffic.
func NewKMSSecretResolver(keyURI, ciphertext string) SecretResolver {
	return &kmsSecretResolver{keyURI: keyURI, ciphertext: ciphertext}
}

func (k *kmsSecretResolver) Resolve(ctx context.Context) ([]byte, error) {
	if k.ciphertext == "" {
		return nil, apperrors.Wrap(
			apperrors.ErrConfiguration,
			"encrypted signing secret must not be empty when a KMS key URI is set",
		)
	}

	encrypted, err := base64.StdEncoding.DecodeString(k.ciphertext)
	if err != nil {
		return nil, apperrors.Wrap(
			apperrors.ErrConfiguration,
			"encrypted signing secret is not valid base64",
		)
	}

	keeper, err := secrets.OpenKeeper(ctx, k.keyURI)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to open KMS keeper")
	}
	defer keeper.Close()

	secret, err := keeper.Decrypt(ctx, encrypted)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to decrypt signing secret")
	}
	if len(secret) == 0 {
		return nil, apperrors.Wrap(apperrors.ErrConfiguration, "decrypted signing secret is empty")
	}

	return secret, nil
}
