// Package crypto provides a JWT signing method backed by an AWS KMS HMAC key,
// so action tokens can be signed without the service ever holding key material.
package crypto

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/golang-jwt/jwt/v5"
)

// MACClient is the subset of *kms.Client methods used for HMAC signing.
type MACClient interface {
	GenerateMac(ctx context.Context, params *kms.GenerateMacInput, optFns ...func(*kms.Options)) (*kms.GenerateMacOutput, error)
	VerifyMac(ctx context.Context, params *kms.VerifyMacInput, optFns ...func(*kms.Options)) (*kms.VerifyMacOutput, error)
}

// KMSKey identifies the KMS HMAC key used as the JWT signing key.
// keyID can be a key ID, key ARN, or alias name (e.g., "alias/gophdocs-nonce").
type KMSKey struct {
	Client  MACClient
	KeyID   string
	Timeout time.Duration
}

func (k *KMSKey) context() (context.Context, context.CancelFunc) {
	timeout := k.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}

// SigningMethodKMSHS256 signs with HMAC_SHA_256 inside KMS. Its key must be a *KMSKey.
var SigningMethodKMSHS256 = &signingMethodKMS{alg: "KMS-HS256", spec: types.MacAlgorithmSpecHmacSha256}

func init() {
	jwt.RegisterSigningMethod(SigningMethodKMSHS256.Alg(), func() jwt.SigningMethod {
		return SigningMethodKMSHS256
	})
}

type signingMethodKMS struct {
	alg  string
	spec types.MacAlgorithmSpec
}

func (m *signingMethodKMS) Alg() string {
	return m.alg
}

// Sign asks KMS for the MAC of signingString.
func (m *signingMethodKMS) Sign(signingString string, key interface{}) ([]byte, error) {
	k, ok := key.(*KMSKey)
	if !ok {
		return nil, jwt.ErrInvalidKeyType
	}

	ctx, cancel := k.context()
	defer cancel()

	out, err := k.Client.GenerateMac(ctx, &kms.GenerateMacInput{
		KeyId:        aws.String(k.KeyID),
		Message:      []byte(signingString),
		MacAlgorithm: m.spec,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate mac: %w", err)
	}
	return out.Mac, nil
}

// Verify asks KMS whether sig is the MAC of signingString.
func (m *signingMethodKMS) Verify(signingString string, sig []byte, key interface{}) error {
	k, ok := key.(*KMSKey)
	if !ok {
		return jwt.ErrInvalidKeyType
	}

	ctx, cancel := k.context()
	defer cancel()

	out, err := k.Client.VerifyMac(ctx, &kms.VerifyMacInput{
		KeyId:        aws.String(k.KeyID),
		Message:      []byte(signingString),
		Mac:          sig,
		MacAlgorithm: m.spec,
	})
	if err != nil {
		var invalid *types.KMSInvalidMacException
		if errors.As(err, &invalid) {
			return jwt.ErrSignatureInvalid
		}
		return fmt.Errorf("failed to verify mac: %w", err)
	}
	if !out.MacValid {
		return jwt.ErrSignatureInvalid
	}
	return nil
}
