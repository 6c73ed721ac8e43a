package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func createGame(t *testing.T, ts *httptest.Server, hostName string) (string, string) {
	t.Helper()
	resp := doRequest(t, ts, http.MethodPost, "/api/games", map[string]any{
		"playerName": hostName,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, resp.StatusCode)
	}
	body := decodeBody(t, resp)
	return body["roomId"].(string), body["playerId"].(string)
}

func joinPlayer(t *testing.T, ts *httptest.Server, roomID, name string) string {
	t.Helper()
	resp := doRequest(t, ts, http.MethodPost, "/api/games/"+roomID+"/join", map[string]any{
		"playerName": name,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	body := decodeBody(t, resp)
	return body["playerId"].(string)
}

func fetchSnapshot(t *testing.T, ts *httptest.Server, roomID string) map[string]any {
	t.Helper()
	resp := doRequest(t, ts, http.MethodGet, "/api/games/"+roomID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	return decodeBody(t, resp)
}

func doRequest(t *testing.T, ts *httptest.Server, method, path string, payload any) *http.Response {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, ts.URL+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() {
		_ = resp.Body.Close()
	})
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func expectStatus(t *testing.T, resp *http.Response, status int) map[string]any {
	t.Helper()
	if resp.StatusCode != status {
		t.Fatalf("expected status %d, got %d", status, resp.StatusCode)
	}
	return decodeBody(t, resp)
}

func players(t *testing.T, snapshot map[string]any) map[string]any {
	t.Helper()
	value, ok := snapshot["players"].(map[string]any)
	if !ok {
		t.Fatalf("expected players map, got %T", snapshot["players"])
	}
	return value
}
