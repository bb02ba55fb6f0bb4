package session

import "testing"

func TestOwnerKey(t *testing.T) {
	tests := []struct {
		name  string
		state State
		want  string
	}{
		{"user id wins", State{UserID: "u1", TelegramID: "42", UserName: "alice"}, "u1"},
		{"telegram id next", State{TelegramID: "42", UserName: "alice"}, "42"},
		{"user name last", State{UserName: "alice"}, "alice"},
		{"anonymous", State{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.OwnerKey(); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}
