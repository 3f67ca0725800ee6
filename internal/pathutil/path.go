// Package pathutil provides helpers for slash-separated archive entry paths.
package pathutil

import (
	"path"
	"strings"
)

const versionsDir = "META-INF/versions/"

// IsClass reports whether p names a class file.
func IsClass(p string) bool {
	return strings.HasSuffix(p, ".class") && !strings.HasSuffix(p, "/")
}

// SplitVersion splits a multi-release entry path into its
// META-INF/versions/N/ prefix and the remainder. Paths outside a
// versioned directory return an empty prefix.
func SplitVersion(p string) (prefix, rest string) {
	if !strings.HasPrefix(p, versionsDir) {
		return "", p
	}
	tail := p[len(versionsDir):]
	i := strings.IndexByte(tail, '/')
	if i <= 0 {
		return "", p
	}
	for _, r := range tail[:i] {
		if r < '0' || r > '9' {
			return "", p
		}
	}
	n := len(versionsDir) + i + 1
	return p[:n], p[n:]
}

// IsSignatureFile reports whether p is a jar signature file
// (META-INF/*.SF, *.RSA, *.DSA or *.EC).
func IsSignatureFile(p string) bool {
	dir, file := path.Split(p)
	if dir != "META-INF/" {
		return false
	}
	switch strings.ToUpper(path.Ext(file)) {
	case ".SF", ".RSA", ".DSA", ".EC":
		return true
	}
	return false
}

// Clean validates an archive entry path. It rejects absolute paths,
// backslashes and parent references.
func Clean(p string) (string, bool) {
	if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, "\\") {
		return "", false
	}
	for _, part := range strings.Split(strings.TrimSuffix(p, "/"), "/") {
		if part == ".." || part == "." {
			return "", false
		}
	}
	return p, true
}
