package asynccli

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// FileInfo describes one file a run produced, surfaced to the owning agent
// or delivered directly to the conversation.
type FileInfo struct {
	Name      string
	Size      int64
	HumanSize string
	FullPath  string
}

// fileGeneratedPattern matches the explicit marker CLIs are expected to
// print when they know the path of a file worth surfacing.
var fileGeneratedPattern = regexp.MustCompile(`\[FILE_GENERATED:\s*([^\]]+)\]`)

// absolutePathPattern is a loose scan for bare absolute paths mentioned in
// stdout; trailing punctuation a sentence would attach is trimmed by the
// caller.
var absolutePathPattern = regexp.MustCompile(`/\S+`)

// snapshotWorkspace records every regular file under root at call time, for
// layer 3 of detectOutputFiles to diff against. Skipped directories mirror
// the excludes below.
func snapshotWorkspace(root string) map[string]bool {
	seen := make(map[string]bool)
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() && skipOutputDir(d.Name()) {
			return filepath.SkipDir
		}
		if !d.IsDir() {
			seen[path] = true
		}
		return nil
	})
	return seen
}

func skipOutputDir(name string) bool {
	return name == "node_modules" || name == ".git" || name == "media_input"
}

// detectOutputFiles unions three layers: explicit
// markers, bare absolute paths under workspacePath, and files new (or
// touched) since the run started that weren't in the pre-execution
// snapshot.
func detectOutputFiles(stdout, workspacePath string, preSnapshot map[string]bool, startedAt time.Time) []FileInfo {
	accepted := make(map[string]bool)
	var files []FileInfo

	accept := func(path string) {
		path = strings.TrimRight(path, ".,;:)\"']")
		if accepted[path] {
			return
		}
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			return
		}
		accepted[path] = true
		files = append(files, FileInfo{
			Name:      filepath.Base(path),
			Size:      info.Size(),
			HumanSize: humanize.Bytes(uint64(info.Size())),
			FullPath:  path,
		})
	}

	for _, m := range fileGeneratedPattern.FindAllStringSubmatch(stdout, -1) {
		accept(strings.TrimSpace(m[1]))
	}

	scanner := bufio.NewScanner(strings.NewReader(stdout))
	for scanner.Scan() {
		for _, m := range absolutePathPattern.FindAllString(scanner.Text(), -1) {
			trimmed := strings.TrimRight(m, ".,;:)\"']")
			if strings.HasPrefix(trimmed, workspacePath) {
				accept(trimmed)
			}
		}
	}

	_ = filepath.WalkDir(workspacePath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if skipOutputDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if preSnapshot[path] {
			if info, err := d.Info(); err == nil && info.ModTime().Before(startedAt) {
				return nil
			}
		}
		accept(path)
		return nil
	})

	return files
}
