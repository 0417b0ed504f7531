package frame

import "sync"

// Playlist is the list of bitmaps the display loop cycles through. The sync
// loop swaps it wholesale; readers see either the old or the new list.
type Playlist struct {
	mu    sync.Mutex
	paths []string
}

// NewPlaylist returns a playlist holding paths.
func NewPlaylist(paths ...string) *Playlist {
	p := &Playlist{}
	p.Replace(paths)
	return p
}

// Replace swaps in a copy of paths.
func (p *Playlist) Replace(paths []string) {
	next := append([]string(nil), paths...)
	p.mu.Lock()
	p.paths = next
	p.mu.Unlock()
}

// Len returns the number of entries.
func (p *Playlist) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.paths)
}

// Snapshot returns a copy of the current entries.
func (p *Playlist) Snapshot() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.paths...)
}

// Next returns the entry at cursor and the cursor for the following call.
// A cursor past the end restarts at 0. ok is false for an empty playlist,
// in which case the cursor is returned unchanged.
func (p *Playlist) Next(cursor int) (path string, next int, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.paths) == 0 {
		return "", cursor, false
	}
	if cursor < 0 || cursor >= len(p.paths) {
		cursor = 0
	}
	return p.paths[cursor], cursor + 1, true
}
