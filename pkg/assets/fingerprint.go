package assets

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Fingerprint walks srcDir, copies every file into outDir under a name
// carrying a short content hash, and returns the manifest mapping each
// source path to its fingerprinted one. Manifest paths are rooted and
// slash-separated, matching how components reference assets.
func Fingerprint(srcDir, outDir string) (*Manifest, error) {
	if _, err := os.Stat(srcDir); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, err
	}

	m := NewManifest()
	err := filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}

		hash, err := hashFile(path)
		if err != nil {
			return err
		}

		ext := filepath.Ext(relPath)
		base := strings.TrimSuffix(relPath, ext)
		hashedRel := fmt.Sprintf("%s.%s%s", base, hash[:8], ext)

		destPath := filepath.Join(outDir, hashedRel)
		if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
			return err
		}
		if err := copyFile(path, destPath); err != nil {
			return err
		}

		m.Set("/"+filepath.ToSlash(relPath), "/"+filepath.ToSlash(hashedRel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Save writes the manifest as indented JSON, the format Load reads back.
func (m *Manifest) Save(path string) error {
	data, err := json.MarshalIndent(m.All(), "", "  ")
	if err != nil {
		return err
	}

	data = append(data, '\n')
	return os.WriteFile(path, data, 0644)
}

// hashFile returns the SHA256 hash of a file.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// copyFile copies a file.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
