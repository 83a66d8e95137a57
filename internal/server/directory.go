package server

import "sync"

// BotDirectory tracks bot identities: the ones named in the configuration
// plus every connection that authenticated as a bot. It is read from the
// event loop and written from connection goroutines.
type BotDirectory struct {
	mu        sync.RWMutex
	static    map[string]bool
	connected map[string]int
}

// NewBotDirectory creates a directory seeded with configured bot names.
func NewBotDirectory(names ...string) *BotDirectory {
	d := &BotDirectory{
		static:    make(map[string]bool, len(names)),
		connected: make(map[string]int),
	}
	for _, name := range names {
		d.static[name] = true
	}
	return d
}

// IsBot implements registry.Directory.
func (d *BotDirectory) IsBot(participant string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.static[participant] || d.connected[participant] > 0
}

// Connect registers a bot connection. A bot may hold several connections.
func (d *BotDirectory) Connect(participant string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connected[participant]++
}

// Disconnect drops one bot connection.
func (d *BotDirectory) Disconnect(participant string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.connected[participant] <= 1 {
		delete(d.connected, participant)
		return
	}
	d.connected[participant]--
}
