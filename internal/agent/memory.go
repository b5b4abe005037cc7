package agent

import "github.com/metalagman/droidagent/internal/adb"

// screenMemory keeps the last N screen snapshots, oldest evicted first.
type screenMemory struct {
	size    int
	screens []*adb.ScreenState
}

func newScreenMemory(size int) *screenMemory {
	if size < 1 {
		size = 1
	}
	return &screenMemory{size: size}
}

func (m *screenMemory) add(s *adb.ScreenState) {
	m.screens = append(m.screens, s)
	if len(m.screens) > m.size {
		m.screens = m.screens[len(m.screens)-m.size:]
	}
}

func (m *screenMemory) all() []*adb.ScreenState {
	out := make([]*adb.ScreenState, len(m.screens))
	copy(out, m.screens)
	return out
}
