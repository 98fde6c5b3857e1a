// Package export writes finished creatives to a directory with a JSON
// manifest describing each file.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/menta2k/ad-creative/pkg/review"
	"github.com/menta2k/ad-creative/pkg/types"
)

// ManifestName is the manifest file inside an export directory.
const ManifestName = "manifest.json"

// Asset is one encoded creative to export.
type Asset struct {
	Format types.TargetFormat
	Data   []byte
	// Ext is the file extension without the dot.
	Ext string
	// Fill is the outpaint path that produced the background.
	Fill     string
	Quality  int
	Findings []review.Finding
}

// Entry describes an exported file.
type Entry struct {
	Format   string           `json:"format"`
	Platform types.Platform   `json:"platform,omitempty"`
	Width    int              `json:"width"`
	Height   int              `json:"height"`
	File     string           `json:"file"`
	Bytes    int              `json:"bytes"`
	Hash     string           `json:"xxhash"`
	Fill     string           `json:"fill,omitempty"`
	Quality  int              `json:"quality,omitempty"`
	Findings []review.Finding `json:"findings,omitempty"`
}

// Manifest lists the files of one export.
type Manifest struct {
	JobID     string    `json:"job_id"`
	CreatedAt time.Time `json:"created_at"`
	Source    string    `json:"source,omitempty"`
	Entries   []Entry   `json:"entries"`
}

// FileName is content addressed, so identical creatives share a name and
// re-exports do not duplicate files.
func FileName(a Asset) string {
	ext := strings.TrimPrefix(strings.ToLower(a.Ext), ".")
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("%s-%016x.%s", sanitize(a.Format.ID), xxhash.Sum64(a.Data), ext)
}

// Write stores assets in dir and writes the manifest last. An empty jobID
// gets a random one.
func Write(dir, jobID, source string, assets []Asset) (Manifest, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Manifest{}, fmt.Errorf("create export dir: %w", err)
	}
	if jobID == "" {
		jobID = uuid.NewString()
	}
	m := Manifest{JobID: jobID, CreatedAt: time.Now().UTC(), Source: source}
	for _, a := range assets {
		if len(a.Data) == 0 {
			return m, fmt.Errorf("asset %s is empty", a.Format.ID)
		}
		name := FileName(a)
		if err := writeAtomic(filepath.Join(dir, name), a.Data); err != nil {
			return m, fmt.Errorf("write %s: %w", name, err)
		}
		m.Entries = append(m.Entries, Entry{
			Format:   a.Format.ID,
			Platform: a.Format.Platform,
			Width:    a.Format.Dims.Width,
			Height:   a.Format.Dims.Height,
			File:     name,
			Bytes:    len(a.Data),
			Hash:     fmt.Sprintf("%016x", xxhash.Sum64(a.Data)),
			Fill:     a.Fill,
			Quality:  a.Quality,
			Findings: a.Findings,
		})
	}

	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return m, fmt.Errorf("encode manifest: %w", err)
	}
	if err := writeAtomic(filepath.Join(dir, ManifestName), raw); err != nil {
		return m, fmt.Errorf("write manifest: %w", err)
	}
	return m, nil
}

// ReadManifest loads the manifest of an export directory.
func ReadManifest(dir string) (Manifest, error) {
	raw, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return Manifest{}, err
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest: %w", err)
	}
	return m, nil
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func sanitize(id string) string {
	if id == "" {
		return "creative"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, id)
}
