package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/watchquest/watchquest/watchquest/quests"
)

func testOracle(handler http.HandlerFunc) (*Oracle, *httptest.Server) {
	srv := httptest.NewServer(handler)
	o := NewOracle("test-token", 2*time.Second)
	o.baseURL = srv.URL
	return o, srv
}

func TestCheckMembershipClassification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    quests.CheckResult
		wantErr bool
	}{
		{
			name:   "member",
			status: http.StatusOK,
			body:   `{"ok":true,"result":{"status":"member"}}`,
			want:   quests.CheckSubscribed,
		},
		{
			name:   "administrator",
			status: http.StatusOK,
			body:   `{"ok":true,"result":{"status":"administrator"}}`,
			want:   quests.CheckSubscribed,
		},
		{
			name:   "left",
			status: http.StatusOK,
			body:   `{"ok":true,"result":{"status":"left"}}`,
			want:   quests.CheckNotSubscribed,
		},
		{
			name:   "kicked",
			status: http.StatusOK,
			body:   `{"ok":true,"result":{"status":"kicked"}}`,
			want:   quests.CheckNotSubscribed,
		},
		{
			name:   "participant not found",
			status: http.StatusBadRequest,
			body:   `{"ok":false,"error_code":400,"description":"Bad Request: PARTICIPANT_ID_INVALID"}`,
			want:   quests.CheckNotSubscribed,
		},
		{
			name:   "user not found",
			status: http.StatusBadRequest,
			body:   `{"ok":false,"error_code":400,"description":"Bad Request: user not found"}`,
			want:   quests.CheckNotSubscribed,
		},
		{
			name:   "bad token is not a no",
			status: http.StatusUnauthorized,
			body:   `{"ok":false,"error_code":401,"description":"Unauthorized"}`,
			want:   quests.CheckUnverifiable,
		},
		{
			name:   "rate limited",
			status: http.StatusTooManyRequests,
			body:   `{"ok":false,"error_code":429,"description":"Too Many Requests"}`,
			want:   quests.CheckUnverifiable,
		},
		{
			name:   "server error",
			status: http.StatusBadGateway,
			body:   `oops`,
			want:   quests.CheckUnverifiable,
		},
		{
			name:   "malformed body",
			status: http.StatusOK,
			body:   `{not json`,
			want:   quests.CheckUnverifiable,
		},
		{
			name:   "unknown member status",
			status: http.StatusOK,
			body:   `{"ok":true,"result":{"status":"restricted"}}`,
			want:   quests.CheckUnverifiable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, srv := testOracle(func(w http.ResponseWriter, r *http.Request) {
				if got := r.URL.Query().Get("chat_id"); got != "@channel" {
					t.Errorf("chat_id = %q, want @channel", got)
				}
				if got := r.URL.Query().Get("user_id"); got != "42" {
					t.Errorf("user_id = %q, want 42", got)
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			defer srv.Close()

			got, err := o.CheckMembership(context.Background(), 42, "@channel")
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckMembership() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("CheckMembership() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCheckMembershipTimeout(t *testing.T) {
	o, srv := testOracle(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"ok":true,"result":{"status":"member"}}`))
	})
	defer srv.Close()
	o.timeout = 50 * time.Millisecond
	o.client.Timeout = 50 * time.Millisecond

	got, err := o.CheckMembership(context.Background(), 42, "@channel")
	if err == nil {
		t.Fatal("CheckMembership() expected transport error on timeout")
	}
	if got != quests.CheckUnverifiable {
		t.Errorf("CheckMembership() = %v, want unverifiable", got)
	}
}
