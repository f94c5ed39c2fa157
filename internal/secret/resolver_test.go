package secret

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

type fakeSSMClient struct {
	params map[string]string
	calls  int
}

func (f *fakeSSMClient) GetParameter(_ context.Context, input *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.calls++
	if !aws.ToBool(input.WithDecryption) {
		return nil, fmt.Errorf("expected WithDecryption for %s", *input.Name)
	}
	val, ok := f.params[*input.Name]
	if !ok {
		return nil, fmt.Errorf("parameter not found: %s", *input.Name)
	}
	return &ssm.GetParameterOutput{
		Parameter: &ssmtypes.Parameter{
			Name:  input.Name,
			Value: aws.String(val),
		},
	}, nil
}

func TestSSMResolver_GetSecret_Success(t *testing.T) {
	client := &fakeSSMClient{
		params: map[string]string{
			"/gophdocs/jwt-secret": "super-secret-value",
		},
	}
	resolver := NewSSMResolver(client)

	val, err := resolver.GetSecret(context.Background(), "/gophdocs/jwt-secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "super-secret-value" {
		t.Fatalf("expected %q, got %q", "super-secret-value", val)
	}
}

func TestSSMResolver_GetSecret_NotFound(t *testing.T) {
	client := &fakeSSMClient{
		params: map[string]string{},
	}
	resolver := NewSSMResolver(client)

	_, err := resolver.GetSecret(context.Background(), "/gophdocs/nonexistent")
	if err == nil {
		t.Fatal("expected error for missing parameter, got nil")
	}
}

func TestEnvResolver_GetSecret_Success(t *testing.T) {
	t.Setenv("JWT_SECRET", "env-secret-value")

	resolver := NewEnvResolver()

	val, err := resolver.GetSecret(context.Background(), "/gophdocs/jwt-secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "env-secret-value" {
		t.Fatalf("expected %q, got %q", "env-secret-value", val)
	}
}

func TestEnvResolver_GetSecret_NotSet(t *testing.T) {
	t.Setenv("NONEXISTENT_SECRET", "")
	resolver := NewEnvResolver()

	_, err := resolver.GetSecret(context.Background(), "/gophdocs/nonexistent-secret")
	if err == nil {
		t.Fatal("expected error for missing env var, got nil")
	}
}

func TestParamNameToEnvVar(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"/gophdocs/jwt-secret", "JWT_SECRET"},
		{"/gophdocs/nonce-secret", "NONCE_SECRET"},
		{"/gophdocs/workspace-credentials", "WORKSPACE_CREDENTIALS"},
		{"/gophdocs/api-gateway-secret", "API_GATEWAY_SECRET"},
	}

	for _, tc := range tests {
		got := paramNameToEnvVar(tc.input)
		if got != tc.expected {
			t.Errorf("paramNameToEnvVar(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}

func TestCachingResolver_MemoizesSuccess(t *testing.T) {
	client := &fakeSSMClient{
		params: map[string]string{
			"/gophdocs/nonce-secret": "nonce-value",
		},
	}
	resolver := NewCachingResolver(NewSSMResolver(client))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		val, err := resolver.GetSecret(ctx, "/gophdocs/nonce-secret")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if val != "nonce-value" {
			t.Fatalf("expected %q, got %q", "nonce-value", val)
		}
	}
	if client.calls != 1 {
		t.Errorf("expected 1 SSM call, got %d", client.calls)
	}
}

func TestCachingResolver_DoesNotCacheFailure(t *testing.T) {
	client := &fakeSSMClient{params: map[string]string{}}
	resolver := NewCachingResolver(NewSSMResolver(client))
	ctx := context.Background()

	if _, err := resolver.GetSecret(ctx, "/gophdocs/jwt-secret"); err == nil {
		t.Fatal("expected error for missing parameter")
	}

	client.params["/gophdocs/jwt-secret"] = "late-value"
	val, err := resolver.GetSecret(ctx, "/gophdocs/jwt-secret")
	if err != nil {
		t.Fatalf("unexpected error after parameter was created: %v", err)
	}
	if val != "late-value" {
		t.Fatalf("expected %q, got %q", "late-value", val)
	}
	if client.calls != 2 {
		t.Errorf("expected 2 SSM calls, got %d", client.calls)
	}
}
