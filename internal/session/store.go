// Package session owns the on-disk plan directory layout: PRD-hash-keyed
// session directories, atomic tasks.json writes, and session discovery.
package session

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/prplab/prpctl/internal/hierarchy"
)

// Directory and file names within a session directory.
const (
	PRDSnapshotFile   = "prd_snapshot.md"
	TasksFile         = "tasks.json"
	ParentSessionFile = "parent_session.txt"
	ArchitectureDir   = "architecture"
	PRPsDir           = "prps"
	ArtifactsDir      = "artifacts"
)

// minPRDBytes is the minimum content length a PRD must have to be valid.
const minPRDBytes = 100

// hashHexLen is the number of hex characters kept from the SHA-256 digest.
const hashHexLen = 12

var sessionIDPattern = regexp.MustCompile(`^(\d{3})_([0-9a-f]{12})$`)
var parentSessionIDPattern = regexp.MustCompile(`^\d{3}_[0-9a-f]{12}\s*$`)

// Metadata describes a session directory without requiring its contents
// to be loaded into memory.
type Metadata struct {
	ID            string
	Hash          string
	Path          string
	Seq           int
	ParentSession string // empty if none
}

// HashPRD computes the session hash for the given PRD bytes: the first
// hashHexLen hex characters of SHA-256(prdBytes).
func HashPRD(prdBytes []byte) string {
	sum := sha256.Sum256(prdBytes)
	return hex.EncodeToString(sum[:])[:hashHexLen]
}

// ValidatePRDBytes enforces the PRD validity rules: non-empty, at least
// minPRDBytes bytes of content.
func ValidatePRDBytes(prdBytes []byte) error {
	if len(prdBytes) < minPRDBytes {
		return &PRDError{Reason: fmt.Sprintf("must be at least %d bytes, got %d", minPRDBytes, len(prdBytes)), Err: ErrPRDInvalid}
	}
	return nil
}

// ReadAndValidatePRD reads the PRD file at path and validates it exists
// and meets the minimum size requirement.
func ReadAndValidatePRD(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &PRDError{Path: path, Reason: "does not exist", Err: ErrPRDNotFound}
		}
		return nil, &PRDError{Path: path, Reason: err.Error(), Err: ErrPRDInvalid}
	}
	if err := ValidatePRDBytes(data); err != nil {
		perr := err.(*PRDError)
		perr.Path = path
		return nil, perr
	}
	return data, nil
}

// sessionDirName formats the session directory name "<seq:03d>_<hash>".
func sessionDirName(seq int, hash string) string {
	return fmt.Sprintf("%03d_%s", seq, hash)
}

// ParseSessionDirName parses a directory name back into (seq, hash).
// Invariant 4: the session directory name is always parseable.
func ParseSessionDirName(name string) (seq int, hash string, ok bool) {
	m := sessionIDPattern.FindStringSubmatch(name)
	if m == nil {
		return 0, "", false
	}
	seq, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", false
	}
	return seq, m[2], true
}

// nextSequence scans existing session directories under planDir and
// returns max(existing seq) + 1, or 1 if none exist.
func nextSequence(planDir string) (int, error) {
	entries, err := os.ReadDir(planDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 1, nil
		}
		return 0, fmt.Errorf("reading plan dir: %w", err)
	}

	max := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if seq, _, ok := ParseSessionDirName(entry.Name()); ok {
			if seq > max {
				max = seq
			}
		}
	}
	return max + 1, nil
}

// CreateSessionDir creates a new session directory tree for the given
// PRD hash, assigning the next sequence number. Directories are created
// with 0o755.
func CreateSessionDir(planDir string, hash string) (*Metadata, error) {
	seq, err := nextSequence(planDir)
	if err != nil {
		return nil, err
	}

	id := sessionDirName(seq, hash)
	sessionPath := filepath.Join(planDir, id)

	dirs := []string{
		sessionPath,
		filepath.Join(sessionPath, ArchitectureDir),
		filepath.Join(sessionPath, PRPsDir),
		filepath.Join(sessionPath, ArtifactsDir),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating session directory %s: %w", dir, err)
		}
	}

	return &Metadata{ID: id, Hash: hash, Path: sessionPath, Seq: seq}, nil
}

// WritePRDSnapshot writes the exact PRD bytes used for this session's
// hash to prd_snapshot.md, mode 0o644.
func WritePRDSnapshot(sessionPath string, prdBytes []byte) error {
	return os.WriteFile(filepath.Join(sessionPath, PRDSnapshotFile), prdBytes, 0o644)
}

// ReadPRDSnapshot reads the prd_snapshot.md file from a session directory.
func ReadPRDSnapshot(sessionPath string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(sessionPath, PRDSnapshotFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &SessionFileError{Path: filepath.Join(sessionPath, PRDSnapshotFile), Reason: "missing"}
		}
		return nil, &SessionFileError{Path: filepath.Join(sessionPath, PRDSnapshotFile), Reason: err.Error()}
	}
	return data, nil
}

// WriteParentSession writes parent_session.txt containing the parent
// session's id, no trailing newline.
func WriteParentSession(sessionPath string, parentID string) error {
	return os.WriteFile(filepath.Join(sessionPath, ParentSessionFile), []byte(parentID), 0o644)
}

// ReadParentSession reads parent_session.txt if present. Returns empty
// string if the file does not exist.
func ReadParentSession(sessionPath string) (string, error) {
	data, err := os.ReadFile(filepath.Join(sessionPath, ParentSessionFile))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", &SessionFileError{Path: filepath.Join(sessionPath, ParentSessionFile), Reason: err.Error()}
	}
	trimmed := strings.TrimSpace(string(data))
	if trimmed != "" && !parentSessionIDPattern.MatchString(string(data)) {
		return "", &SessionFileError{Path: filepath.Join(sessionPath, ParentSessionFile), Reason: "malformed parent session id"}
	}
	return trimmed, nil
}

// emptyBacklogJSON is the canonical empty tasks.json body.
var emptyBacklogJSON = []byte(`{"backlog":[]}`)

// WriteEmptyTasks writes an empty backlog ({"backlog": []}) atomically.
func WriteEmptyTasks(sessionPath string) error {
	return atomicWriteTasksRaw(sessionPath, emptyBacklogJSON)
}

// WriteTasks serializes the backlog to tasks.json using the atomic
// write pattern: write to tasks.json.tmp, then rename over the target.
// After a successful write no .tmp files remain in the session
// directory, and a crash mid-write never yields a malformed tasks.json.
func WriteTasks(sessionPath string, backlog *hierarchy.Backlog) error {
	data, err := json.MarshalIndent(backlog, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling backlog: %w", err)
	}
	return atomicWriteTasksRaw(sessionPath, data)
}

func atomicWriteTasksRaw(sessionPath string, data []byte) error {
	target := filepath.Join(sessionPath, TasksFile)
	tmp := target + ".tmp"

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing temp tasks file: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("renaming temp tasks file: %w", err)
	}
	return nil
}

// ReadTasks reads and strictly decodes tasks.json: unknown fields in
// the input are rejected.
func ReadTasks(sessionPath string) (*hierarchy.Backlog, error) {
	path := filepath.Join(sessionPath, TasksFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &SessionFileError{Path: path, Reason: "missing"}
		}
		return nil, &SessionFileError{Path: path, Reason: err.Error()}
	}

	var backlog hierarchy.Backlog
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&backlog); err != nil {
		return nil, &SessionFileError{Path: path, Reason: fmt.Sprintf("invalid json: %v", err)}
	}
	if err := backlog.Validate(); err != nil {
		return nil, &SessionFileError{Path: path, Reason: fmt.Sprintf("schema validation: %v", err)}
	}
	return &backlog, nil
}

// ListSessions lists session directories under planDir matching the
// session id pattern, sorted by sequence ascending. A missing plan
// directory yields an empty list, not an error.
func ListSessions(planDir string) ([]Metadata, error) {
	entries, err := os.ReadDir(planDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading plan dir: %w", err)
	}

	var sessions []Metadata
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		seq, hash, ok := ParseSessionDirName(entry.Name())
		if !ok {
			continue
		}
		sessionPath := filepath.Join(planDir, entry.Name())
		parent, _ := ReadParentSession(sessionPath)
		sessions = append(sessions, Metadata{
			ID:            entry.Name(),
			Hash:          hash,
			Path:          sessionPath,
			Seq:           seq,
			ParentSession: parent,
		})
	}

	sort.Slice(sessions, func(i, j int) bool { return sessions[i].Seq < sessions[j].Seq })
	return sessions, nil
}

// FindLatestSession returns the metadata with the highest sequence, or
// nil if none exist.
func FindLatestSession(planDir string) (*Metadata, error) {
	sessions, err := ListSessions(planDir)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, nil
	}
	latest := sessions[len(sessions)-1]
	return &latest, nil
}

// FindSessionByPRD computes the PRD's hash and returns metadata whose
// hash matches, or nil if none match. A missing PRD file is a NotFound
// error.
func FindSessionByPRD(prdPath string, planDir string) (*Metadata, error) {
	prdBytes, err := os.ReadFile(prdPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &PRDError{Path: prdPath, Reason: "does not exist", Err: ErrPRDNotFound}
		}
		return nil, err
	}

	hash := HashPRD(prdBytes)
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
