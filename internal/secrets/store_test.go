// ABOUTME: Tests for account key construction and parsing
// ABOUTME: Covers round-trips and malformed keys that must yield empty components

package secrets

import "testing"

func TestAccountKey(t *testing.T) {
	tests := []struct {
		name      string
		serverURL string
		username  string
		deviceID  string
		want      string
	}{
		{
			name:      "typical account",
			serverURL: "https://media.example.com",
			username:  "alice",
			deviceID:  "Bloom-laptop-1234",
			want:      "https://media.example.com|alice|Bloom-laptop-1234",
		},
		{
			name: "all empty",
			want: "||",
		},
		{
			name:      "empty username",
			serverURL: "https://media.example.com",
			deviceID:  "Bloom-laptop-1234",
			want:      "https://media.example.com||Bloom-laptop-1234",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AccountKey(tt.serverURL, tt.username, tt.deviceID)
			if got != tt.want {
				t.Errorf("AccountKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseAccountKey(t *testing.T) {
	tests := []struct {
		name          string
		key           string
		wantServerURL string
		wantUsername  string
		wantDeviceID  string
	}{
		{
			name:          "typical key",
			key:           "https://media.example.com|alice|Bloom-laptop-1234",
			wantServerURL: "https://media.example.com",
			wantUsername:  "alice",
			wantDeviceID:  "Bloom-laptop-1234",
		},
		{
			name: "empty key",
			key:  "",
		},
		{
			name: "missing device component",
			key:  "https://media.example.com|alice",
		},
		{
			name: "no delimiters",
			key:  "garbage",
		},
		{
			name:          "empty components parse",
			key:           "||",
			wantServerURL: "",
			wantUsername:  "",
			wantDeviceID:  "",
		},
		{
			name:          "extra delimiter folds into device",
			key:           "https://media.example.com|alice|Bloom|extra",
			wantServerURL: "https://media.example.com",
			wantUsername:  "alice",
			wantDeviceID:  "Bloom|extra",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, username, deviceID := ParseAccountKey(tt.key)
			if server != tt.wantServerURL || username != tt.wantUsername || deviceID != tt.wantDeviceID {
				t.Errorf("ParseAccountKey(%q) = (%q, %q, %q), want (%q, %q, %q)",
					tt.key, server, username, deviceID, tt.wantServerURL, tt.wantUsername, tt.wantDeviceID)
			}
		})
	}
}

func TestAccountKeyRoundTrip(t *testing.T) {
	server := "https://media.example.com:8096"
	username := "bob"
	deviceID := "Bloom-desk-abcd-1234"

	gotServer, gotUsername, gotDeviceID := ParseAccountKey(AccountKey(server, username, deviceID))
	if gotServer != server || gotUsername != username || gotDeviceID != deviceID {
		t.Errorf("round trip = (%q, %q, %q), want (%q, %q, %q)",
			gotServer, gotUsername, gotDeviceID, server, username, deviceID)
	}
}
