package redisstream

import (
	"github.com/google/uuid"
)

// GroupPrefix starts the per-instance consumer group names.
const GroupPrefix = "helpdesk-chat"

// Settings holds the transport configuration for session events.
// When Enabled is false events stay in-process.
type Settings struct {
	Enabled bool   `yaml:"redis_enabled"`
	Addr    string `yaml:"redis_addr"`
	// Group is the consumer group. Redis Streams hands each entry to a
	// single member of a group, so instances sharing a group split the
	// events between them. Leave it empty to get one group per process.
	Group    string `yaml:"group"`
	Consumer string `yaml:"consumer"`
}

func DefaultSettings() Settings {
	return Settings{
		Enabled: false,
		Addr:    "localhost:6379",
	}
}

// ForInstance fills an empty Group or Consumer with names unique to this
// process.
func (s Settings) ForInstance() Settings {
	if s.Group != "" && s.Consumer != "" {
		return s
	}
	suffix := uuid.NewString()[:8]
	if s.Group == "" {
		s.Group = GroupPrefix + "-" + suffix
	}
	if s.Consumer == "" {
		s.Consumer = "ui-" + suffix
	}
	return s
}
