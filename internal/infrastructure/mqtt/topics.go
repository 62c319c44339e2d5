package mqtt

import "strings"

// defaultPrefix is the root of the engine's topic namespace.
const defaultPrefix = "intuitherm"

// Topics builds the engine's MQTT topic names.
//
// All topics live under a single prefix so a broker ACL can scope the
// engine to one subtree. The zero value uses the default "intuitherm"
// prefix.
//
// Topic layout:
//
//	intuitherm/engine/status        engine online/offline (retained, LWT)
//	intuitherm/registry/snapshot    inbound entity-registry snapshots
//	intuitherm/events/match         outbound match-run results
//	intuitherm/community/patterns   outbound signed pattern submissions
//	intuitherm/community/updates    inbound signed aggregated pattern batches
type Topics struct {
	// Prefix overrides the topic namespace root. Empty means "intuitherm".
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return defaultPrefix
	}
	return strings.TrimSuffix(t.Prefix, "/")
}

// EngineStatus returns the retained status topic used for LWT and
// graceful online/offline announcements.
func (t Topics) EngineStatus() string {
	return t.prefix() + "/engine/status"
}

// RegistrySnapshot returns the topic entity-registry snapshots arrive on.
func (t Topics) RegistrySnapshot() string {
	return t.prefix() + "/registry/snapshot"
}

// MatchEvents returns the topic match-run results are published to.
func (t Topics) MatchEvents() string {
	return t.prefix() + "/events/match"
}

// CommunityPatterns returns the topic signed pattern submissions are
// published to when community sharing is enabled.
func (t Topics) CommunityPatterns() string {
	return t.prefix() + "/community/patterns"
}

// CommunityUpdates returns the topic aggregated pattern batches arrive on
// when community sharing is enabled.
func (t Topics) CommunityUpdates() string {
	return t.prefix() + "/community/updates"
}

// ValidateTopic checks that a topic is non-empty and contains no MQTT
// wildcard characters (publishing to a wildcard is always a bug).
func ValidateTopic(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if strings.ContainsAny(topic, "+#") {
		return ErrInvalidTopic
	}
	return nil
}
