package scan

import (
	"bufio"
	"bytes"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// skipDirs are directory names never descended into.
var skipDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	"vendor":       true,
	"node_modules": true,
	"venv":         true,
	".venv":        true,
	"__pycache__":  true,
}

// Scanner walks a source tree and collects findings.
type Scanner struct {
	logger *slog.Logger
}

func NewScanner(logger *slog.Logger) *Scanner {
	return &Scanner{logger: logger}
}

// Scan walks root and returns all findings in walk order.
func (s *Scanner) Scan(root string) ([]Finding, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	if !info.IsDir() {
		return s.scanFile(root)
	}

	var findings []Finding
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.logger.Warn("skipping unreadable entry", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		fileFindings, err := s.scanFile(path)
		if err != nil {
			s.logger.Warn("skipping unreadable file", "path", path, "error", err)
			return nil
		}
		findings = append(findings, fileFindings...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	return findings, nil
}

// scanFile reads one file line by line. Binary files are detected by
// a NUL byte in the first block and skipped.
func (s *Scanner) scanFile(path string) ([]Finding, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := f.Read(head)
	if err != nil && n == 0 {
		return nil, nil
	}
	if bytes.IndexByte(head[:n], 0) >= 0 {
		return nil, nil
	}
	if _, err := f.Seek(0, 0); err != nil {
		return nil, err
	}

	var findings []Finding
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	num := 0
	for sc.Scan() {
		num++
		findings = append(findings, scanLine(path, num, sc.Text())...)
	}
	if err := sc.Err(); err != nil {
		return findings, err
	}
	return findings, nil
}
