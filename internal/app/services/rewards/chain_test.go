package rewards

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/defidojo/dojo-backend/internal/app/domain/reward"
)

func TestChainClient_Check(t *testing.T) {
	cases := []struct {
		name    string
		code    int
		body    string
		want    reward.ChainStatus
		wantErr bool
	}{
		{"success", http.StatusOK, `{"tx_status": "success"}`, reward.ChainConfirmed, false},
		{"pending", http.StatusOK, `{"tx_status": "pending"}`, reward.ChainPending, false},
		{"missing status", http.StatusOK, `{}`, reward.ChainPending, false},
		{"abort", http.StatusOK, `{"tx_status": "abort_by_response"}`, reward.ChainFailed, false},
		{"not yet indexed", http.StatusNotFound, `{"error": "not found"}`, reward.ChainPending, false},
		{"server error", http.StatusBadGateway, ``, "", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var gotPath, gotKey string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				gotKey = r.Header.Get("X-API-Key")
				w.WriteHeader(tc.code)
				fmt.Fprint(w, tc.body)
			}))
			defer server.Close()

			client, err := NewChainClient(ChainClientConfig{APIURL: server.URL, APIKey: "key-1"}, nil)
			if err != nil {
				t.Fatalf("new client: %v", err)
			}

			status, err := client.Check(context.Background(), "0xabc")
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("check: %v", err)
			}
			if status != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, status)
			}
			if gotPath != "/extended/v1/tx/0xabc" {
				t.Fatalf("unexpected path: %s", gotPath)
			}
			if gotKey != "key-1" {
				t.Fatalf("api key not sent: %q", gotKey)
			}
		})
	}
}

func TestNewChainClient_RequiresURL(t *testing.T) {
	if _, err := NewChainClient(ChainClientConfig{}, nil); err == nil {
		t.Fatal("empty api url should be rejected")
	}
}
