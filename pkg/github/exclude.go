package github

import (
	"path"
	"strings"
)

// excludedFiles are exact file names that never qualify for indexing.
var excludedFiles = map[string]bool{
	"package-lock.json": true,
	"yarn.lock":         true,
	"pnpm-lock.yaml":    true,
	"bun.lock":          true,
	"bun.lockb":         true,
	"go.sum":            true,
	"Cargo.lock":        true,
	"composer.lock":     true,
	"Gemfile.lock":      true,
	"poetry.lock":       true,
}

// excludedDirs are directory names excluded at any depth.
var excludedDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
	"dist":         true,
	"build":        true,
	"vendor":       true,
	"__pycache__":  true,
}

// excludedExtensions are content types that carry no summarizable text.
var excludedExtensions = map[string]bool{
	".png":   true,
	".jpg":   true,
	".jpeg":  true,
	".gif":   true,
	".ico":   true,
	".webp":  true,
	".svg":   true,
	".pdf":   true,
	".zip":   true,
	".gz":    true,
	".tar":   true,
	".woff":  true,
	".woff2": true,
	".ttf":   true,
	".eot":   true,
	".mp3":   true,
	".mp4":   true,
	".wasm":  true,
	".exe":   true,
	".so":    true,
	".dylib": true,
	".jar":   true,
	".class": true,
}

// IsExcludedPath reports whether a repository path is excluded from
// indexing: lockfiles, dependency directories, VCS metadata, build output,
// and binary asset types.
func IsExcludedPath(p string) bool {
	if excludedFiles[path.Base(p)] {
		return true
	}
	if excludedExtensions[strings.ToLower(path.Ext(p))] {
		return true
	}
	for _, segment := range strings.Split(p, "/") {
		if excludedDirs[segment] {
			return true
		}
	}
	return false
}
