package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestListRoomsSendsBearerToken(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_ = json.NewEncoder(w).Encode([]Room{{ID: 1, Name: "sales", Type: RoomTypeGroup}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	c.SetToken("tok")
	rooms, err := c.ListRooms(context.Background())
	if err != nil {
		t.Fatalf("list rooms: %v", err)
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotPath != "/chat/rooms" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if len(rooms) != 1 || rooms[0].Name != "sales" {
		t.Fatalf("unexpected rooms: %+v", rooms)
	}
}

func TestCreateRoomPostsJSON(t *testing.T) {
	var got CreateRoomRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(Room{ID: 9, Name: got.Name, Type: got.Type})
	}))
	defer srv.Close()

	room, err := NewClient(srv.URL).CreateRoom(context.Background(), CreateRoomRequest{
		Name:           "deal-42",
		Type:           RoomTypeGroup,
		ParticipantIDs: []int64{3, 4},
	})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if room.ID != 9 || room.Name != "deal-42" {
		t.Fatalf("unexpected room: %+v", room)
	}
	if len(got.ParticipantIDs) != 2 {
		t.Fatalf("participants not sent: %+v", got)
	}
}

func TestGetMessagesQuery(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/rooms/7/messages" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		gotQuery = r.URL.RawQuery
		_ = json.NewEncoder(w).Encode(MessagesPage{
			Messages: []Message{{ID: 11, RoomID: 7, Content: "hi"}},
			HasMore:  true,
		})
	}))
	defer srv.Close()

	before := int64(12)
	page, err := NewClient(srv.URL).GetMessages(context.Background(), 7, 20, &before)
	if err != nil {
		t.Fatalf("get messages: %v", err)
	}
	if gotQuery != "before=12&limit=20" {
		t.Fatalf("unexpected query %q", gotQuery)
	}
	if !page.HasMore || len(page.Messages) != 1 || page.Messages[0].ID != 11 {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestListParticipants(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/rooms/7/participants" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode([]Participant{{UserID: 1, Username: "ana", IsOnline: true}})
	}))
	defer srv.Close()

	ps, err := NewClient(srv.URL).ListParticipants(context.Background(), 7)
	if err != nil {
		t.Fatalf("list participants: %v", err)
	}
	if len(ps) != 1 || ps[0].Username != "ana" || !ps[0].IsOnline {
		t.Fatalf("unexpected participants: %+v", ps)
	}
}

func TestAPIErrorDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"detail":"not a participant"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).ListParticipants(context.Background(), 7)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusForbidden || apiErr.Detail != "not a participant" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
}

func TestAPIErrorRawBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).ListRooms(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502 APIError, got %v", err)
	}
}
