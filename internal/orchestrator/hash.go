package orchestrator

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// hashFile is the book identity: SHA-256 of the content, independent of the
// file name.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("file not found: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// fixHash keys a fix job on both files plus the mode, so a translate job
// and a fix job over the same book never share a row.
func fixHash(originalPath, translationPath string) (string, error) {
	originalHash, err := hashFile(originalPath)
	if err != nil {
		return "", err
	}
	translationHash, err := hashFile(translationPath)
	if err != nil {
		return "", err
	}
	combined := fmt.Sprintf("fix|%s|%s", originalHash, translationHash)
	sum := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(sum[:]), nil
}

// fixStyleHash keys a fix-style job on the draft plus the target language.
func fixStyleHash(translationPath, targetLang string) (string, error) {
	translationHash, err := hashFile(translationPath)
	if err != nil {
		return "", err
	}
	combined := fmt.Sprintf("fix_style|%s|%s", strings.ToLower(targetLang), translationHash)
	sum := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(sum[:]), nil
}
