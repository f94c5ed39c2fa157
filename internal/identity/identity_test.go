package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func TestStaticDirectory(t *testing.T) {
	d := NewStaticDirectory(map[string]string{"user-a": "Ann"})

	name, err := d.DisplayName(context.Background(), "user-a")
	if err != nil {
		t.Fatalf("DisplayName failed: %v", err)
	}
	if name != "Ann" {
		t.Errorf("expected Ann, got %q", name)
	}

	if _, err := d.DisplayName(context.Background(), "user-b"); !errors.Is(err, ErrUnknownActor) {
		t.Errorf("expected ErrUnknownActor, got %v", err)
	}

	d.Set("user-b", "Bob")
	if name, _ := d.DisplayName(context.Background(), "user-b"); name != "Bob" {
		t.Errorf("expected Bob after Set, got %q", name)
	}
}

type fakeUsersTable struct {
	items map[string]map[string]types.AttributeValue
	err   error
}

func (f *fakeUsersTable) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	key := in.Key["user_id"].(*types.AttributeValueMemberS).Value
	return &dynamodb.GetItemOutput{Item: f.items[key]}, nil
}

func TestDynamoDirectory(t *testing.T) {
	client := &fakeUsersTable{items: map[string]map[string]types.AttributeValue{
		"user-a": {
			"user_id":      &types.AttributeValueMemberS{Value: "user-a"},
			"display_name": &types.AttributeValueMemberS{Value: "Ann"},
		},
		"user-c": {
			"user_id": &types.AttributeValueMemberS{Value: "user-c"},
		},
	}}
	d := NewDynamoDirectory(client, "Users")
	ctx := context.Background()

	name, err := d.DisplayName(ctx, "user-a")
	if err != nil {
		t.Fatalf("DisplayName failed: %v", err)
	}
	if name != "Ann" {
		t.Errorf("expected Ann, got %q", name)
	}

	if _, err := d.DisplayName(ctx, "user-b"); !errors.Is(err, ErrUnknownActor) {
		t.Errorf("missing user: expected ErrUnknownActor, got %v", err)
	}
	if _, err := d.DisplayName(ctx, "user-c"); !errors.Is(err, ErrUnknownActor) {
		t.Errorf("nameless user: expected ErrUnknownActor, got %v", err)
	}

	client.err = errors.New("throttled")
	if _, err := d.DisplayName(ctx, "user-a"); err == nil || errors.Is(err, ErrUnknownActor) {
		t.Errorf("expected wrapped store error, got %v", err)
	}
}

func newDirectoryServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/users/user-a"):
			json.NewEncoder(w).Encode(map[string]any{
				"id":           "user-a",
				"primaryEmail": "ann@example.com",
				"name":         map[string]any{"fullName": "Ann Example"},
			})
		case strings.HasSuffix(r.URL.Path, "/users/user-e"):
			json.NewEncoder(w).Encode(map[string]any{
				"id":           "user-e",
				"primaryEmail": "eve@example.com",
			})
		case strings.HasSuffix(r.URL.Path, "/users/broken"):
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"error":{"code":403,"message":"Not Authorized to access this resource/api"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":{"code":404,"message":"Resource Not Found: userKey"}}`))
		}
	}))
}

func TestWorkspaceDirectory(t *testing.T) {
	srv := newDirectoryServer(t)
	defer srv.Close()

	ctx := context.Background()
	d, err := NewWorkspaceDirectoryWithClient(ctx, srv.Client(), srv.URL+"/")
	if err != nil {
		t.Fatalf("NewWorkspaceDirectoryWithClient failed: %v", err)
	}

	name, err := d.DisplayName(ctx, "user-a")
	if err != nil {
		t.Fatalf("DisplayName failed: %v", err)
	}
	if name != "Ann Example" {
		t.Errorf("expected full name, got %q", name)
	}

	name, err = d.DisplayName(ctx, "user-e")
	if err != nil {
		t.Fatalf("DisplayName failed: %v", err)
	}
	if name != "eve@example.com" {
		t.Errorf("expected email fallback, got %q", name)
	}

	if _, err := d.DisplayName(ctx, "nobody"); !errors.Is(err, ErrUnknownActor) {
		t.Errorf("expected ErrUnknownActor, got %v", err)
	}
	if _, err := d.DisplayName(ctx, "broken"); err == nil || errors.Is(err, ErrUnknownActor) {
		t.Errorf("expected server error, got %v", err)
	}
}

func TestNewWorkspaceDirectory_BadCredentials(t *testing.T) {
	if _, err := NewWorkspaceDirectory(context.Background(), []byte("not json"), "admin@example.com"); err == nil {
		t.Fatal("expected error for malformed credentials")
	}
}
