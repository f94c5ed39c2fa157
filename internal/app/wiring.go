package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/jun/gophdocs/backend/internal/config"
	"github.com/jun/gophdocs/backend/internal/crypto"
	"github.com/jun/gophdocs/backend/internal/document"
	"github.com/jun/gophdocs/backend/internal/editlock"
	"github.com/jun/gophdocs/backend/internal/identity"
	"github.com/jun/gophdocs/backend/internal/model"
	"github.com/jun/gophdocs/backend/internal/nonce"
	"github.com/jun/gophdocs/backend/internal/secret"
	"github.com/jun/gophdocs/backend/internal/storage"
)

// Deps are the collaborators an App is assembled from.
type Deps struct {
	Locks            editlock.Store
	Docs             document.Store
	Directory        identity.Directory
	Nonces           *nonce.Issuer
	JWTSecret        string
	APIGatewaySecret string
	Registry         *prometheus.Registry
	Closers          []func() error
}

// demo content for DEV_MODE
var (
	demoDocument = model.Document{ID: "welcome", Title: "Welcome to gophdocs", Slug: "welcome"}
	demoUsers    = map[string]string{
		"demo-user-1": "Demo User One",
		"demo-user-2": "Demo User Two",
	}
)

// buildDeps creates the stores, directory and token issuer selected by cfg.
func buildDeps(ctx context.Context, cfg config.Config, logger *slog.Logger) (Deps, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return Deps{}, fmt.Errorf("unable to load SDK config: %w", err)
	}
	dynamoClient := dynamodb.NewFromConfig(awsCfg)

	// ---------- Secret Resolver ----------
	var resolver secret.Resolver
	if cfg.DevMode {
		resolver = secret.NewCachingResolver(secret.NewEnvResolver())
		logger.Info("using EnvResolver", "dev_mode", true)
	} else {
		resolver = secret.NewCachingResolver(secret.NewSSMResolver(ssm.NewFromConfig(awsCfg)))
		logger.Info("using SSMResolver")
	}

	deps := Deps{Registry: prometheus.NewRegistry()}
	deps.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	deps.JWTSecret, err = resolver.GetSecret(ctx, cfg.JWTSecretParam)
	if err != nil {
		if !cfg.DevMode {
			return Deps{}, fmt.Errorf("resolve jwt secret: %w", err)
		}
		logger.Warn("failed to resolve JWT_SECRET, using dev default", "error", err)
		deps.JWTSecret = "default-dev-secret"
	}

	deps.APIGatewaySecret, err = resolver.GetSecret(ctx, cfg.APIGatewaySecretParam)
	if err != nil && !cfg.DevMode {
		return Deps{}, fmt.Errorf("resolve api gateway secret: %w", err)
	}

	// ---------- Action tokens ----------
	if cfg.DevMode {
		nonceSecret, err := resolver.GetSecret(ctx, cfg.NonceSecretParam)
		if err != nil {
			logger.Warn("failed to resolve NONCE_SECRET, signing with JWT secret", "error", err)
			nonceSecret = deps.JWTSecret
		}
		deps.Nonces = nonce.NewIssuer(jwt.SigningMethodHS256, []byte(nonceSecret), cfg.NonceTTL)
	} else {
		key := &crypto.KMSKey{
			Client:  kms.NewFromConfig(awsCfg),
			KeyID:   cfg.KMSMacKeyID,
			Timeout: 3 * time.Second,
		}
		deps.Nonces = nonce.NewIssuer(crypto.SigningMethodKMSHS256, key, cfg.NonceTTL)
	}

	// ---------- Documents ----------
	switch cfg.DocumentStore {
	case config.StoreMemory:
		deps.Docs = document.NewMemoryStore(demoDocument)
	default:
		deps.Docs = document.NewDynamoStore(dynamoClient, cfg.DocumentsTable)
	}

	// ---------- Directory ----------
	switch cfg.Directory {
	case config.DirectoryStatic:
		deps.Directory = identity.NewStaticDirectory(demoUsers)
	case config.DirectoryWorkspace:
		creds, err := resolver.GetSecret(ctx, cfg.WorkspaceCredentialsParam)
		if err != nil {
			return Deps{}, fmt.Errorf("resolve workspace credentials: %w", err)
		}
		deps.Directory, err = identity.NewWorkspaceDirectory(ctx, []byte(creds), cfg.WorkspaceAdminSubject)
		if err != nil {
			return Deps{}, err
		}
	default:
		deps.Directory = identity.NewDynamoDirectory(dynamoClient, cfg.UsersTable)
	}

	// ---------- Lock store ----------
	switch cfg.LockStore {
	case config.StoreMemory:
		deps.Locks = editlock.NewMemoryStore()
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return Deps{}, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		deps.Locks = editlock.NewRedisStore(client, cfg.RedisPrefix)
		deps.Closers = append(deps.Closers, client.Close)
	case config.StoreSQLite:
		db, err := storage.Open(ctx, storage.Config{
			Path:         cfg.SQLitePath,
			BusyTimeout:  5 * time.Second,
			MaxOpenConns: 20,
			MaxIdleConns: 20,
		})
		if err != nil {
			return Deps{}, fmt.Errorf("sqlite open: %w", err)
		}
		deps.Locks = editlock.NewSQLiteStore(db.DB)
		deps.Closers = append(deps.Closers, db.Close)
	default:
		deps.Locks = editlock.NewDynamoStore(dynamoClient, cfg.EditLocksTable)
	}

	logger.Info("edit lock backends",
		"lock_store", cfg.LockStore,
		"document_store", cfg.DocumentStore,
		"directory", cfg.Directory,
		"dev_mode", cfg.DevMode,
	)
	return deps, nil
}
