package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseDelegateArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    string
		want    DelegateAction
		wantErr bool
	}{
		{"valid", `{"agent_name":"Writer","task":"draft"}`, DelegateAction{Agent: "Writer", Task: "draft"}, false},
		{"missing task", `{"agent_name":"Writer"}`, DelegateAction{}, true},
		{"empty", ``, DelegateAction{}, true},
		{"not an object", `"Writer"`, DelegateAction{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDelegateArgs(json.RawMessage(tt.args))
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidInput) {
					t.Fatalf("err = %v, want ErrInvalidInput", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("got %+v, %v", got, err)
			}
		})
	}
}
