package testevents

import (
	"time"

	"github.com/okian/blurber/internal/domain/model"
)

// Config holds configuration for the fake streaming server.
type Config struct {
	Addr       string           // Listen address
	Characters []model.EntityID // Characters that play the scripted match
	Interval   time.Duration    // Delay between generated events
	Heartbeat  time.Duration    // Delay between heartbeat frames
	WorldID    uint32           // World stamped on every event
	Seed       int64            // Seed for opponents and headshots
	Loop       bool             // Replay the script after the logout
}

// Stats counts the frames a server has sent.
type Stats struct {
	Frames     int
	Events     int
	Heartbeats int
}
