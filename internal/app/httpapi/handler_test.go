package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tacc-cloud/abaco/internal/app/authz"
	"github.com/tacc-cloud/abaco/internal/app/channel"
	"github.com/tacc-cloud/abaco/internal/app/domain/actor"
	"github.com/tacc-cloud/abaco/internal/app/envelope"
	"github.com/tacc-cloud/abaco/internal/app/services/actors"
	"github.com/tacc-cloud/abaco/internal/app/storage"
)

const testToken = "test-token"

func newTestServer(t *testing.T) (*httptest.Server, *channel.MemoryFactory) {
	t.Helper()
	stores := storage.NewMemoryStores()
	chans := channel.NewMemoryFactory()
	az := authz.New(stores.Permissions)
	svc := actors.New(stores, chans, az, nil, envelope.CaseSnake)

	s := NewService(svc, Options{
		Addr:           "127.0.0.1:0",
		Tokens:         []string{testToken},
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
	}, nil)

	srv := httptest.NewServer(s.server.Handler)
	t.Cleanup(srv.Close)
	return srv, chans
}

func authedRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("X-Tenant", "T")
	req.Header.Set("X-User", "alice")
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeEnvelope(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestCreateActorReturnsLinks(t *testing.T) {
	srv, _ := newTestServer(t)

	req := authedRequest(t, http.MethodPost, srv.URL+"/actors/v2/actors/", map[string]interface{}{
		"name":  "f1",
		"image": "hello:1",
	})
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeEnvelope(t, resp)
	require.Equal(t, "success", body["status"])
	result, ok := body["result"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "f1", result["name"])
	links, ok := result["_links"].(map[string]interface{})
	require.True(t, ok)
	require.NotEmpty(t, links["self"])
}

func TestUnauthenticatedRequestIsRejected(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/actors/v2/actors/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPostMessageCreatesExecutionAndEnqueues(t *testing.T) {
	srv, chans := newTestServer(t)

	createReq := authedRequest(t, http.MethodPost, srv.URL+"/actors/v2/actors/", map[string]interface{}{
		"name":  "f2",
		"image": "hello:1",
	})
	createResp, err := http.DefaultClient.Do(createReq)
	require.NoError(t, err)
	created := decodeEnvelope(t, createResp)
	actorID := created["result"].(map[string]interface{})["id"].(string)
	dbID := actor.GetDBID("T", actorID)

	msgReq := authedRequest(t, http.MethodPost, srv.URL+"/actors/v2/actors/"+actorID+"/messages", map[string]interface{}{"hello": "world"})
	msgResp, err := http.DefaultClient.Do(msgReq)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, msgResp.StatusCode)
	msgBody := decodeEnvelope(t, msgResp)
	result := msgBody["result"].(map[string]interface{})
	require.NotEmpty(t, result["execution_id"])

	n, err := chans.ActorMsgChannel(dbID).ApproxLen(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestEnsureWorkersRejectsNonPositiveNum(t *testing.T) {
	srv, _ := newTestServer(t)

	createReq := authedRequest(t, http.MethodPost, srv.URL+"/actors/v2/actors/", map[string]interface{}{
		"name":  "f3",
		"image": "hello:1",
	})
	createResp, err := http.DefaultClient.Do(createReq)
	require.NoError(t, err)
	created := decodeEnvelope(t, createResp)
	actorID := created["result"].(map[string]interface{})["id"].(string)

	workersReq := authedRequest(t, http.MethodPost, srv.URL+"/actors/v2/actors/"+actorID+"/workers", map[string]interface{}{"num": 0})
	workersResp, err := http.DefaultClient.Do(workersReq)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, workersResp.StatusCode)
}

func TestListActorsRespectsLimitQueryParam(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, name := range []string{"f5", "f6", "f7"} {
		req := authedRequest(t, http.MethodPost, srv.URL+"/actors/v2/actors/", map[string]interface{}{
			"name":  name,
			"image": "hello:1",
		})
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
	}

	resp, err := http.DefaultClient.Do(authedRequest(t, http.MethodGet, srv.URL+"/actors/v2/actors/?limit=2", nil))
	require.NoError(t, err)
	body := decodeEnvelope(t, resp)
	result, ok := body["result"].([]interface{})
	require.True(t, ok)
	require.Len(t, result, 2)

	respAll, err := http.DefaultClient.Do(authedRequest(t, http.MethodGet, srv.URL+"/actors/v2/actors/", nil))
	require.NoError(t, err)
	bodyAll := decodeEnvelope(t, respAll)
	resultAll, ok := bodyAll["result"].([]interface{})
	require.True(t, ok)
	require.Len(t, resultAll, 3)
}

func TestGrantPermissionRejectsUnknownLevel(t *testing.T) {
	srv, _ := newTestServer(t)

	createReq := authedRequest(t, http.MethodPost, srv.URL+"/actors/v2/actors/", map[string]interface{}{
		"name":  "f4",
		"image": "hello:1",
	})
	createResp, err := http.DefaultClient.Do(createReq)
	require.NoError(t, err)
	created := decodeEnvelope(t, createResp)
	actorID := created["result"].(map[string]interface{})["id"].(string)

	permReq := authedRequest(t, http.MethodPost, srv.URL+"/actors/v2/actors/"+actorID+"/permissions", map[string]interface{}{
		"user":  "bob",
		"level": "NOT_A_LEVEL",
	})
	permResp, err := http.DefaultClient.Do(permReq)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, permResp.StatusCode)
}
