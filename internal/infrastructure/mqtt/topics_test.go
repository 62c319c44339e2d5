package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestTopicsDefaultPrefix(t *testing.T) {
	topics := Topics{}
	cases := []struct {
		got  string
		want string
	}{
		{topics.EngineStatus(), "intuitherm/engine/status"},
		{topics.RegistrySnapshot(), "intuitherm/registry/snapshot"},
		{topics.MatchEvents(), "intuitherm/events/match"},
		{topics.CommunityPatterns(), "intuitherm/community/patterns"},
		{topics.CommunityUpdates(), "intuitherm/community/updates"},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Errorf("topic = %q, want %q", tc.got, tc.want)
		}
	}
}

func TestTopicsCustomPrefix(t *testing.T) {
	topics := Topics{Prefix: "site42/"}
	if got := topics.MatchEvents(); got != "site42/events/match" {
		t.Errorf("MatchEvents() = %q, want trailing slash trimmed", got)
	}
}

func TestValidateTopic(t *testing.T) {
	cases := []struct {
		topic   string
		wantErr bool
	}{
		{"intuitherm/events/match", false},
		{"", true},
		{"intuitherm/+/match", true},
		{"intuitherm/#", true},
	}
	for _, tc := range cases {
		err := ValidateTopic(tc.topic)
		if tc.wantErr && !errors.Is(err, ErrInvalidTopic) {
			t.Errorf("ValidateTopic(%q) = %v, want ErrInvalidTopic", tc.topic, err)
		}
		if !tc.wantErr && err != nil {
			t.Errorf("ValidateTopic(%q) = %v, want nil", tc.topic, err)
		}
	}
}

func TestStatusPayloads(t *testing.T) {
	cases := []struct {
		name       string
		payload    []byte
		wantStatus string
	}{
		{"online", buildOnlinePayload("client1"), "online"},
		{"offline", buildOfflinePayload("client1"), "offline"},
		{"lwt", buildLWTPayload("client1"), "offline_unexpected"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got statusPayload
			if err := json.Unmarshal(tc.payload, &got); err != nil {
				t.Fatalf("payload not valid JSON: %v", err)
			}
			if got.Status != tc.wantStatus {
				t.Errorf("Status = %q, want %q", got.Status, tc.wantStatus)
			}
			if got.ClientID != "client1" {
				t.Errorf("ClientID = %q, want client1", got.ClientID)
			}
			if got.Timestamp == "" {
				t.Error("Timestamp missing")
			}
		})
	}
}
