package syncer

import (
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/zeebo/blake3"
)

// Entry describes one file on either side of the sync. Entries are
// recomputed on every pass; no persistent index is kept.
type Entry struct {
	RelPath string    `json:"rel_path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
	Hash    string    `json:"hash"` // blake3, hex
}

// Patterns filters sync candidates. A file is a candidate when it
// matches at least one include pattern (or includes are empty) and no
// exclude pattern. Patterns match against the slash-separated relative
// path and against the base name.
type Patterns struct {
	Include []string
	Exclude []string
}

// Match reports whether the relative path passes the filter.
func (p Patterns) Match(rel string) bool {
	rel = filepath.ToSlash(rel)
	base := path.Base(rel)

	for _, pat := range p.Exclude {
		if globMatch(pat, rel) || globMatch(pat, base) {
			return false
		}
	}
	if len(p.Include) == 0 {
		return true
	}
	for _, pat := range p.Include {
		if globMatch(pat, rel) || globMatch(pat, base) {
			return true
		}
	}
	return false
}

func globMatch(pattern, name string) bool {
	ok, err := path.Match(pattern, name)
	return err == nil && ok
}

// LocalEntries walks root and returns an Entry for every regular file
// passing the pattern filter, with content hashes computed fresh.
func LocalEntries(root string, pat Patterns) ([]Entry, error) {
	var entries []Entry
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !pat.Match(rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		hash, err := hashFile(p)
		if err != nil {
			return fmt.Errorf("hash %s: %w", rel, err)
		}
		entries = append(entries, Entry{
			RelPath: rel,
			Size:    info.Size(),
			ModTime: info.ModTime().UTC(),
			Hash:    hash,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return entries, nil
}

func hashFile(p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashBytes returns the blake3 hex digest of data, matching hashFile.
func HashBytes(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
