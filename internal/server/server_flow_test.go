package server

import (
	"net/http"
	"testing"
	"time"

	"type-royale/internal/events"
)

func TestRaceEndToEnd(t *testing.T) {
	app := newTestApp(t)
	ts := newTestServer(t, app.srv.Handler())

	roomID, aliceID := createGame(t, ts, "Alice")
	bobID := joinPlayer(t, ts, roomID, "Bob")

	resp := doRequest(t, ts, http.MethodPost, "/api/games/"+roomID+"/start", map[string]any{"playerId": aliceID})
	started := expectStatus(t, resp, http.StatusOK)
	if started["state"] != "countdown" {
		t.Fatalf("expected countdown, got %v", started["state"])
	}
	if started["countdownEndsAt"] == nil {
		t.Fatal("expected countdown deadline in snapshot")
	}

	app.clock.Advance(4 * time.Second)
	snapshot := fetchSnapshot(t, ts, roomID)
	if snapshot["state"] != "playing" {
		t.Fatalf("expected playing after countdown, got %v", snapshot["state"])
	}

	resp = doRequest(t, ts, http.MethodPatch, "/api/games/"+roomID+"/update-player", map[string]any{
		"playerId": bobID,
		"updates":  map[string]any{"progress": 40, "wpm": 50, "accuracy": 90},
	})
	expectStatus(t, resp, http.StatusOK)

	app.clock.Advance(30 * time.Second)
	resp = doRequest(t, ts, http.MethodPatch, "/api/games/"+roomID+"/update-player", map[string]any{
		"playerId": aliceID,
		"updates":  map[string]any{"progress": 100, "wpm": 90, "accuracy": 98},
	})
	finished := expectStatus(t, resp, http.StatusOK)
	if finished["state"] != "finished" {
		t.Fatalf("expected finished, got %v", finished["state"])
	}
	if finished["winnerId"] != aliceID {
		t.Fatalf("expected Alice to win, got %v", finished["winnerId"])
	}
	alice := players(t, finished)[aliceID].(map[string]any)
	if alice["finishTime"] != float64(30) {
		t.Fatalf("expected finish time 30s, got %v", alice["finishTime"])
	}

	resp = doRequest(t, ts, http.MethodPatch, "/api/games/"+roomID+"/update-player", map[string]any{
		"playerId": bobID,
		"updates":  map[string]any{"progress": 100},
	})
	expectStatus(t, resp, http.StatusConflict)

	resp = doRequest(t, ts, http.MethodPost, "/api/games/"+roomID+"/rematch", map[string]any{"playerId": aliceID, "vote": true})
	voted := expectStatus(t, resp, http.StatusOK)
	if voted["state"] != "finished" {
		t.Fatalf("one vote must not reset, got %v", voted["state"])
	}
	resp = doRequest(t, ts, http.MethodPost, "/api/games/"+roomID+"/rematch", map[string]any{"playerId": bobID, "vote": true})
	reset := expectStatus(t, resp, http.StatusOK)
	if reset["state"] != "waiting" {
		t.Fatalf("expected reset to waiting, got %v", reset["state"])
	}
	if reset["winnerId"] != nil {
		t.Fatalf("expected winner cleared, got %v", reset["winnerId"])
	}
	for id, raw := range players(t, reset) {
		player := raw.(map[string]any)
		if player["progress"] != float64(0) || player["finishTime"] != nil || player["surrendered"] != false {
			t.Fatalf("player %s not reset: %#v", id, player)
		}
	}

	if got := app.events.count(events.RaceStarted); got != 1 {
		t.Fatalf("expected one race_started event, got %d", got)
	}
	if got := app.events.count(events.RaceFinished); got != 1 {
		t.Fatalf("expected one race_finished event, got %d", got)
	}
}

func TestEveryoneSurrenders(t *testing.T) {
	app := newTestApp(t)
	ts := newTestServer(t, app.srv.Handler())

	roomID, aliceID := createGame(t, ts, "Alice")
	bobID := joinPlayer(t, ts, roomID, "Bob")
	expectStatus(t, doRequest(t, ts, http.MethodPost, "/api/games/"+roomID+"/start", map[string]any{"playerId": aliceID}), http.StatusOK)
	app.clock.Advance(4 * time.Second)

	resp := doRequest(t, ts, http.MethodPost, "/api/games/"+roomID+"/surrender", map[string]any{"playerId": aliceID})
	body := expectStatus(t, resp, http.StatusOK)
	if body["state"] != "playing" {
		t.Fatalf("race should continue while Bob types, got %v", body["state"])
	}

	resp = doRequest(t, ts, http.MethodPatch, "/api/games/"+roomID+"/update-player", map[string]any{
		"playerId": bobID,
		"updates":  map[string]any{"surrendered": true},
	})
	body = expectStatus(t, resp, http.StatusOK)
	if body["state"] != "finished" {
		t.Fatalf("expected finished, got %v", body["state"])
	}
	if _, ok := body["winnerId"]; ok {
		t.Fatalf("expected no winner, got %v", body["winnerId"])
	}
}

func TestHostResetAbortsRace(t *testing.T) {
	app := newTestApp(t)
	ts := newTestServer(t, app.srv.Handler())

	roomID, aliceID := createGame(t, ts, "Alice")
	bobID := joinPlayer(t, ts, roomID, "Bob")
	expectStatus(t, doRequest(t, ts, http.MethodPost, "/api/games/"+roomID+"/start", map[string]any{"playerId": aliceID}), http.StatusOK)

	expectStatus(t, doRequest(t, ts, http.MethodPost, "/api/games/"+roomID+"/reset", map[string]any{"playerId": bobID}), http.StatusForbidden)
	body := expectStatus(t, doRequest(t, ts, http.MethodPost, "/api/games/"+roomID+"/reset", map[string]any{"playerId": aliceID}), http.StatusOK)
	if body["state"] != "waiting" {
		t.Fatalf("expected waiting, got %v", body["state"])
	}

	app.clock.Advance(10 * time.Second)
	snapshot := fetchSnapshot(t, ts, roomID)
	if snapshot["state"] != "waiting" {
		t.Fatalf("cancelled countdown must not start the race, got %v", snapshot["state"])
	}
}

func TestLeaveCompletesRematch(t *testing.T) {
	app := newTestApp(t)
	ts := newTestServer(t, app.srv.Handler())

	roomID, aliceID := createGame(t, ts, "Alice")
	bobID := joinPlayer(t, ts, roomID, "Bob")
	carolID := joinPlayer(t, ts, roomID, "Carol")
	expectStatus(t, doRequest(t, ts, http.MethodPost, "/api/games/"+roomID+"/start", map[string]any{"playerId": aliceID}), http.StatusOK)
	app.clock.Advance(4 * time.Second)

	expectStatus(t, doRequest(t, ts, http.MethodPost, "/api/games/"+roomID+"/leave", map[string]any{"playerId": carolID}), http.StatusConflict)

	resp := doRequest(t, ts, http.MethodPatch, "/api/games/"+roomID+"/update-player", map[string]any{
		"playerId": bobID,
		"updates":  map[string]any{"progress": 100, "wpm": 60, "accuracy": 100},
	})
	expectStatus(t, resp, http.StatusOK)

	expectStatus(t, doRequest(t, ts, http.MethodPost, "/api/games/"+roomID+"/leave", map[string]any{"playerId": aliceID}), http.StatusForbidden)
	expectStatus(t, doRequest(t, ts, http.MethodPost, "/api/games/"+roomID+"/rematch", map[string]any{"playerId": aliceID, "vote": true}), http.StatusOK)
	expectStatus(t, doRequest(t, ts, http.MethodPost, "/api/games/"+roomID+"/rematch", map[string]any{"playerId": bobID, "vote": true}), http.StatusOK)

	body := expectStatus(t, doRequest(t, ts, http.MethodPost, "/api/games/"+roomID+"/leave", map[string]any{"playerId": carolID}), http.StatusOK)
	if body["state"] != "waiting" {
		t.Fatalf("expected consensus reset after Carol left, got %v", body["state"])
	}
	if len(players(t, body)) != 2 {
		t.Fatalf("expected two players left, got %d", len(players(t, body)))
	}
}

func TestRematchValidation(t *testing.T) {
	app := newTestApp(t)
	ts := newTestServer(t, app.srv.Handler())

	roomID, aliceID := createGame(t, ts, "Alice")
	resp := doRequest(t, ts, http.MethodPost, "/api/games/"+roomID+"/rematch", map[string]any{"playerId": aliceID})
	body := expectStatus(t, resp, http.StatusBadRequest)
	if body["error"] != "vote is required" {
		t.Fatalf("unexpected error %v", body["error"])
	}

	resp = doRequest(t, ts, http.MethodPost, "/api/games/"+roomID+"/rematch", map[string]any{"playerId": aliceID, "vote": true})
	expectStatus(t, resp, http.StatusConflict)
}
