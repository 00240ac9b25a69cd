package session

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/prplab/prpctl/internal/hierarchy"
)

// State is the in-memory representation of a loaded session: its
// metadata, the exact PRD bytes it was created from, the current
// hierarchy, and the last-processed item id (if any).
type State struct {
	Metadata      Metadata
	PRDSnapshot   []byte
	TaskRegistry  *hierarchy.Backlog
	CurrentItemID string
}

// DeltaState is returned by CreateDeltaSession: a delta session plus
// the two PRD snapshots it spans, for an external Delta Analyzer to
// compare.
type DeltaState struct {
	Session    State
	OldPRD     []byte
	NewPRD     []byte
	DiffSummary string
}

// Manager is a stateful facade owning exactly one current session.
// Status updates are buffered in memory and flushed to disk in a
// single atomic write via FlushUpdates.
type Manager struct {
	planDir string
	logger  *zap.Logger

	current *State
	dirty   bool

	// updatesSinceFlush counts UpdateItemStatus calls since the last
	// flush, so FlushUpdates can report how many writes were coalesced.
	updatesSinceFlush int
}

// NewManager constructs a Manager rooted at the given plan directory.
func NewManager(planDir string, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{planDir: planDir, logger: logger}
}

// Current returns the currently loaded session state, or nil if none
// has been loaded or created.
func (m *Manager) Current() *State {
	return m.current
}

// Initialize is the idempotent entry point: read and validate the PRD,
// compute its hash, then load the matching session or create a new one.
func (m *Manager) Initialize(prdPath string) (*State, error) {
	prdBytes, err := ReadAndValidatePRD(prdPath)
	if err != nil {
		return nil, err
	}

	hash := HashPRD(prdBytes)

	existing, err := findByHash(m.planDir, hash)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return m.LoadSession(existing.Path)
	}

	meta, err := CreateSessionDir(m.planDir, hash)
	if err != nil {
		return nil, err
	}
	if err := WritePRDSnapshot(meta.Path, prdBytes); err != nil {
		return nil, err
	}
	if err := WriteEmptyTasks(meta.Path); err != nil {
		return nil, err
	}

	state := &State{
		Metadata:     *meta,
		PRDSnapshot:  prdBytes,
		TaskRegistry: &hierarchy.Backlog{Items: []*hierarchy.Item{}},
	}
	m.current = state
	m.dirty = false

	m.logger.Info("session created",
		zap.String("session_id", meta.ID),
		zap.String("hash", meta.Hash),
	)

	return state, nil
}

func findByHash(planDir, hash string) (*Metadata, error) {
	sessions, err := ListSessions(planDir)
	if err != nil {
		return nil, err
	}
	for _, s := range sessions {
		if s.Hash == hash {
			found := s
			return &found, nil
		}
	}
	return nil, nil
}

// LoadSession explicitly loads a session directory: read and validate
// tasks.json, read prd_snapshot.md, read the optional parent session
// pointer, and reconstruct metadata from the directory name.
func (m *Manager) LoadSession(sessionPath string) (*State, error) {
	dirName := filepath.Base(sessionPath)
	seq, hash, ok := ParseSessionDirName(dirName)
	if !ok {
		return nil, &NotFoundError{SessionID: dirName}
	}

	backlog, err := ReadTasks(sessionPath)
	if err != nil {
		return nil, err
	}
	prdBytes, err := ReadPRDSnapshot(sessionPath)
	if err != nil {
		return nil, err
	}
	parent, err := ReadParentSession(sessionPath)
	if err != nil {
		return nil, err
	}

	state := &State{
		Metadata: Metadata{
			ID:            dirName,
			Hash:          hash,
			Path:          sessionPath,
			Seq:           seq,
			ParentSession: parent,
		},
		PRDSnapshot:  prdBytes,
		TaskRegistry: backlog,
	}
	m.current = state
	m.dirty = false

	m.logger.Info("session loaded",
		zap.String("session_id", dirName),
		zap.Int("item_count", len(hierarchy.Walk(backlog))),
	)

	return state, nil
}

// CreateDeltaSession requires a current session and creates a new
// session directory whose parent_session.txt points at it. The delta
// session is created unconditionally, even if the new PRD's hash equals
// the current one's.
func (m *Manager) CreateDeltaSession(newPRDPath string) (*DeltaState, error) {
	if m.current == nil {
		return nil, ErrNoCurrentSession
	}

	newPRDBytes, err := ReadAndValidatePRD(newPRDPath)
	if err != nil {
		return nil, err
	}

	hash := HashPRD(newPRDBytes)
	meta, err := CreateSessionDir(m.planDir, hash)
	if err != nil {
		return nil, err
	}
	meta.ParentSession = m.current.Metadata.ID

	if err := WriteParentSession(meta.Path, m.current.Metadata.ID); err != nil {
		return nil, err
	}
	if err := WritePRDSnapshot(meta.Path, newPRDBytes); err != nil {
		return nil, err
	}
	if err := WriteEmptyTasks(meta.Path); err != nil {
		return nil, err
	}

	oldPRD := m.current.PRDSnapshot

	delta := &DeltaState{
		Session: State{
			Metadata:     *meta,
			PRDSnapshot:  newPRDBytes,
			TaskRegistry: &hierarchy.Backlog{Items: []*hierarchy.Item{}},
		},
		OldPRD:      oldPRD,
		NewPRD:      newPRDBytes,
		DiffSummary: summarizeDiff(oldPRD, newPRDBytes),
	}

	m.logger.Info("delta session created",
		zap.String("session_id", meta.ID),
		zap.String("parent_session_id", meta.ParentSession),
	)

	return delta, nil
}

// summarizeDiff produces a human-readable summary of textual differences
// between two PRD byte streams: line counts added/removed.
func summarizeDiff(oldPRD, newPRD []byte) string {
	oldLines := splitLines(oldPRD)
	newLines := splitLines(newPRD)

	oldSet := make(map[string]bool, len(oldLines))
	for _, l := range oldLines {
		oldSet[l] = true
	}
	newSet := make(map[string]bool, len(newLines))
	for _, l := range newLines {
		newSet[l] = true
	}

	added, removed := 0, 0
	for _, l := range newLines {
		if !oldSet[l] {
			added++
		}
	}
	for _, l := range oldLines {
		if !newSet[l] {
			removed++
		}
	}

	return fmt.Sprintf("%d lines added, %d lines removed (of %d total old lines, %d total new lines)",
		added, removed, len(oldLines), len(newLines))
}

func splitLines(data []byte) []string {
	var lines []string
	start := 0
	for i, b := range data {
		if b == '\n' {
			lines = append(lines, string(data[start:i]))
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, string(data[start:]))
	}
	return lines
}

// UpdateItemStatus applies the immutable hierarchy update to the
// in-memory registry and marks the session dirty. The on-disk
// tasks.json does not change until FlushUpdates is called.
func (m *Manager) UpdateItemStatus(id string, status hierarchy.Status) error {
	if m.current == nil {
		return ErrNoCurrentSession
	}
	m.current.TaskRegistry = hierarchy.UpdateStatus(m.current.TaskRegistry, id, status)
	m.dirty = true
	m.updatesSinceFlush++
	return nil
}

// FlushUpdates performs one atomic write of the current registry and
// clears the dirty flag. Multiple updates between flushes are coalesced
// into a single write. If the current registry has no pending changes,
// FlushUpdates is a no-op.
func (m *Manager) FlushUpdates() error {
	if m.current == nil {
		return ErrNoCurrentSession
	}
	if !m.dirty {
		return nil
	}

	itemCount := len(hierarchy.Walk(m.current.TaskRegistry))
	if err := WriteTasks(m.current.Metadata.Path, m.current.TaskRegistry); err != nil {
		return err
	}
	writesSaved := m.updatesSinceFlush - 1
	if writesSaved < 0 {
		writesSaved = 0
	}

	m.dirty = false
	m.updatesSinceFlush = 0

	m.logger.Info("flushed session updates",
		zap.String("session_id", m.current.Metadata.ID),
		zap.Int("item_count", itemCount),
		zap.Int("writes_saved", writesSaved),
	)
	return nil
}

// SetCurrentItem records which item the orchestrator is currently
// processing, for diagnostic purposes. It does not affect persistence;
// tasks.json has no currentItemId field on disk per the session state
// model.
func (m *Manager) SetCurrentItem(id string) {
	if m.current != nil {
		m.current.CurrentItemID = id
	}
}
