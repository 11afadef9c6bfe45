package model

import "time"

// HubStats is a point-in-time snapshot of the presence registry,
// served on /debug/stats and rendered by the monitor command.
type HubStats struct {
	OnlineUsers      int           `json:"online_users"`
	TotalConnections int           `json:"total_connections"`
	ActiveRooms      int           `json:"active_rooms"`
	Uptime           time.Duration `json:"uptime"`
}
