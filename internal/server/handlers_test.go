package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadwatch/internal/domain"
	"roadwatch/internal/infrastructure/storage"
	"roadwatch/internal/logging"
	"roadwatch/internal/stream"
	"roadwatch/internal/usecase"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	store, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.InitSchema(context.Background()))

	logger := logging.New("error")
	registry := stream.NewRegistry(logger, nil)
	ingestion := usecase.NewIngestion(usecase.IngestionDeps{
		Store:       store,
		Broadcaster: registry,
		Logger:      logger,
	})

	server := httptest.NewServer(NewHandler(ingestion, registry, nil, logger).Mux())
	t.Cleanup(server.Close)
	return server
}

func wireItem(z float64) domain.ProcessedAgentData {
	return domain.ProcessedAgentData{
		// deliberately wrong; the server must reclassify
		RoadState: domain.RoadStateGoodRoad,
		AgentData: domain.AgentData{
			UserID:        3,
			Accelerometer: domain.Accelerometer{X: 1, Y: 2, Z: z},
			Gps:           domain.Gps{Latitude: 49.84, Longitude: 24.03},
			Timestamp:     time.Date(2026, time.June, 1, 7, 0, 0, 0, time.UTC),
		},
	}
}

func postBatch(t *testing.T, server *httptest.Server, batch []domain.ProcessedAgentData) []domain.StoredAgentData {
	t.Helper()

	body, err := json.Marshal(batch)
	require.NoError(t, err)

	resp, err := http.Post(server.URL+"/processed_agent_data/", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stored []domain.StoredAgentData
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stored))
	return stored
}

func doRequest(t *testing.T, method, url string, body []byte) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestCreateBatchAssignsIDsAndClassifies(t *testing.T) {
	t.Parallel()
	server := newTestServer(t)

	stored := postBatch(t, server, []domain.ProcessedAgentData{wireItem(-2500), wireItem(1500)})

	require.Len(t, stored, 2)
	assert.Equal(t, int64(1), stored[0].ID)
	assert.Equal(t, int64(2), stored[1].ID)
	assert.Equal(t, domain.RoadStateDeepPits, stored[0].RoadState)
	assert.Equal(t, domain.RoadStateSmallBumps, stored[1].RoadState)
	assert.Equal(t, float64(-2500), stored[0].Z)
}

func TestCreateBatchRejectsMalformedJSON(t *testing.T) {
	t.Parallel()
	server := newTestServer(t)

	resp, err := http.Post(server.URL+"/processed_agent_data/", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateBatchRejectsInvalidSampleWithoutInserting(t *testing.T) {
	t.Parallel()
	server := newTestServer(t)

	bad := wireItem(100)
	bad.AgentData.Timestamp = time.Time{}
	resp := doRequest(t, http.MethodPost, server.URL+"/processed_agent_data/",
		mustJSON(t, []domain.ProcessedAgentData{wireItem(100), bad}))
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	listResp, err := http.Get(server.URL + "/processed_agent_data/")
	require.NoError(t, err)
	defer listResp.Body.Close()
	var records []domain.StoredAgentData
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&records))
	assert.Empty(t, records)
}

func TestGetAndList(t *testing.T) {
	t.Parallel()
	server := newTestServer(t)
	stored := postBatch(t, server, []domain.ProcessedAgentData{wireItem(0), wireItem(2500)})

	resp, err := http.Get(fmt.Sprintf("%s/processed_agent_data/%d", server.URL, stored[1].ID))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got domain.StoredAgentData
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, stored[1], got)

	listResp, err := http.Get(server.URL + "/processed_agent_data/")
	require.NoError(t, err)
	defer listResp.Body.Close()
	var records []domain.StoredAgentData
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&records))
	assert.Equal(t, stored, records)
}

func TestGetMissingRecord(t *testing.T) {
	t.Parallel()
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/processed_agent_data/42")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp2, err := http.Get(server.URL + "/processed_agent_data/abc")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}

func TestUpdateReclassifies(t *testing.T) {
	t.Parallel()
	server := newTestServer(t)
	stored := postBatch(t, server, []domain.ProcessedAgentData{wireItem(0)})

	replacement := wireItem(-2500)
	resp := doRequest(t, http.MethodPut,
		fmt.Sprintf("%s/processed_agent_data/%d", server.URL, stored[0].ID),
		mustJSON(t, replacement))
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var updated domain.StoredAgentData
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&updated))
	assert.Equal(t, stored[0].ID, updated.ID)
	assert.Equal(t, domain.RoadStateDeepPits, updated.RoadState)
	assert.Equal(t, float64(-2500), updated.Z)
}

func TestUpdateMissingRecord(t *testing.T) {
	t.Parallel()
	server := newTestServer(t)

	resp := doRequest(t, http.MethodPut, server.URL+"/processed_agent_data/99", mustJSON(t, wireItem(0)))
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteReturnsPriorRecord(t *testing.T) {
	t.Parallel()
	server := newTestServer(t)
	stored := postBatch(t, server, []domain.ProcessedAgentData{wireItem(600)})

	url := fmt.Sprintf("%s/processed_agent_data/%d", server.URL, stored[0].ID)
	resp := doRequest(t, http.MethodDelete, url, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var prior domain.StoredAgentData
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&prior))
	assert.Equal(t, stored[0], prior)

	again := doRequest(t, http.MethodDelete, url, nil)
	defer again.Body.Close()
	assert.Equal(t, http.StatusNotFound, again.StatusCode)
}

func TestHealth(t *testing.T) {
	t.Parallel()
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStreamReceivesStoredBatch(t *testing.T) {
	t.Parallel()
	server := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	stored := postBatch(t, server, []domain.ProcessedAgentData{wireItem(-1500), wireItem(700)})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var payload []domain.StoredAgentData
	require.NoError(t, conn.ReadJSON(&payload))
	assert.Equal(t, stored, payload)
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	return body
}
