package adapters

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/photark-io/photark/internal/cookies"
	"github.com/photark-io/photark/internal/db"
	"github.com/photark-io/photark/internal/gphotos"
	"github.com/photark-io/photark/internal/repositories"
	"github.com/photark-io/photark/internal/rpc"
	"go.uber.org/zap"
)

// rpcExecuteOp is the raw passthrough operation: the caller supplies the
// rpcid and a pre-built request frame.
const rpcExecuteOp = "rpc_execute"

// NativeRPCAdapter executes native-rpc operations: catalog methods built
// from named params, plus the raw rpc_execute passthrough.
type NativeRPCAdapter struct {
	client      *rpc.Client
	credentials repositories.CredentialRepository
	logger      *zap.Logger
}

// NewNativeRPCAdapter wires the adapter to the RPC client and the
// credential store.
func NewNativeRPCAdapter(client *rpc.Client, credentials repositories.CredentialRepository, logger *zap.Logger) *NativeRPCAdapter {
	return &NativeRPCAdapter{
		client:      client,
		credentials: credentials,
		logger:      logger.Named("native-rpc"),
	}
}

func (a *NativeRPCAdapter) Provider() string { return "native-rpc" }

// Run executes one native-rpc job. Dry runs stop after request building and
// return a preview of the frame that would be sent.
func (a *NativeRPCAdapter) Run(ctx context.Context, job *db.Job, progress ProgressFunc) (map[string]any, error) {
	params := map[string]any(job.Params)
	short := strings.TrimPrefix(job.Operation, gphotos.ProviderPrefix)

	var (
		rpcID       string
		requestData any
		sourcePath  string
		err         error
	)
	if short == rpcExecuteOp {
		rpcID, _ = params["rpcid"].(string)
		requestData = params["requestData"]
		if rpcID == "" || requestData == nil {
			return nil, errors.New("rpc_execute requires params.rpcid and params.requestData")
		}
	} else {
		method, resolveErr := gphotos.Resolve(short)
		if resolveErr != nil {
			return nil, resolveErr
		}
		requestData, err = method.Build(params)
		if err != nil {
			return nil, fmt.Errorf("build %s request: %w", short, err)
		}
		rpcID = method.RPCID
		sourcePath = method.SourcePathHint
	}
	if s, _ := params["sourcePath"].(string); s != "" {
		sourcePath = s
	}

	if job.DryRun {
		return map[string]any{
			"operation":       job.Operation,
			"rpcid":           rpcID,
			"sourcePath":      sourcePath,
			"request_preview": requestData,
		}, nil
	}

	jar, err := a.cookieJar(ctx, job.AccountID)
	if err != nil {
		return nil, err
	}

	session, err := a.loadSession(ctx, job.AccountID)
	if err != nil {
		return nil, err
	}

	forceBootstrap, _ := params["forceBootstrap"].(bool)
	if forceBootstrap || !session.Valid() {
		if err := progress(0.2, "Bootstrapping session"); err != nil {
			return nil, err
		}
		fresh, err := a.client.Bootstrap(ctx, jar, sourcePath)
		if err != nil {
			return nil, err
		}
		session = fresh
	}

	if err := progress(0.55, fmt.Sprintf("Executing RPC %s", rpcID)); err != nil {
		return nil, err
	}
	data, raw, err := a.client.Execute(ctx, jar, &session, rpcID, requestData, sourcePath)
	if err != nil {
		return nil, err
	}

	if err := progress(1.0, "RPC completed"); err != nil {
		return nil, err
	}
	return map[string]any{
		"operation":     job.Operation,
		"rpcid":         rpcID,
		"data":          gphotos.Parse(rpcID, data),
		"raw_data":      raw,
		"session_state": session.ToMap(),
	}, nil
}

// Call executes one operation outside the job queue, persisting refreshed
// session state itself. Implements RPCCaller.
func (a *NativeRPCAdapter) Call(ctx context.Context, accountID uuid.UUID, operation string, params map[string]any) (map[string]any, error) {
	method, err := gphotos.Resolve(operation)
	if err != nil {
		return nil, err
	}
	requestData, err := method.Build(params)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method.Operation, err)
	}

	jar, err := a.cookieJar(ctx, accountID)
	if err != nil {
		return nil, err
	}
	session, err := a.loadSession(ctx, accountID)
	if err != nil {
		return nil, err
	}

	data, _, err := a.client.Execute(ctx, jar, &session, method.RPCID, requestData, method.SourcePathHint)
	if err != nil {
		return nil, err
	}
	if err := a.credentials.UpsertSession(ctx, accountID, db.JSONMap(session.ToMap())); err != nil {
		a.logger.Warn("failed to persist refreshed session", zap.Error(err))
	}
	return gphotos.Parse(method.RPCID, data), nil
}

// RefreshSession bootstraps a fresh session for an account and persists it.
// Backs the session refresh endpoint on the accounts API.
func (a *NativeRPCAdapter) RefreshSession(ctx context.Context, accountID uuid.UUID) (map[string]any, error) {
	jar, err := a.cookieJar(ctx, accountID)
	if err != nil {
		return nil, err
	}
	session, err := a.client.Bootstrap(ctx, jar, "")
	if err != nil {
		return nil, err
	}
	state := session.ToMap()
	if err := a.credentials.UpsertSession(ctx, accountID, db.JSONMap(state)); err != nil {
		return nil, err
	}
	return state, nil
}

func (a *NativeRPCAdapter) cookieJar(ctx context.Context, accountID uuid.UUID) ([]cookies.Cookie, error) {
	record, err := a.credentials.GetCookies(ctx, accountID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, errors.New("cookie jar is missing for this account")
	}
	if err != nil {
		return nil, err
	}
	var jar []cookies.Cookie
	if err := record.CookieJar.UnmarshalJSONValue(&jar); err != nil {
		return nil, fmt.Errorf("decode cookie jar: %w", err)
	}
	if len(jar) == 0 {
		return nil, errors.New("cookie jar is missing for this account")
	}
	return jar, nil
}

func (a *NativeRPCAdapter) loadSession(ctx context.Context, accountID uuid.UUID) (rpc.Session, error) {
	record, err := a.credentials.GetSession(ctx, accountID)
	if errors.Is(err, repositories.ErrNotFound) {
		return rpc.Session{}, nil
	}
	if err != nil {
		return rpc.Session{}, err
	}
	return rpc.SessionFromMap(record.State), nil
}
