package engine

import (
	"path"
	"strings"

	"github.com/redactyl/promptscan/internal/cache"
	"github.com/redactyl/promptscan/internal/ignore"
)

var defaultExcludeDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	".idea":        true,
	"node_modules": true,
	"target":       true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"out":          true,
	".venv":        true,
	"venv":         true,
	"__pycache__":  true,
	".mypy_cache":  true,
	"coverage":     true,
	"bin":          true,
	"obj":          true,
}

// suffixes treated as non-text or noisy artifacts when default excludes are on
var defaultExcludeFileSuffixes = []string{
	".min.js", ".map",
	".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg", ".ico",
	".pdf", ".zip", ".gz", ".tar", ".tgz", ".7z",
	".jar", ".class", ".exe", ".dll", ".so", ".dylib",
	".wasm", ".pyc",
	// model weights and tokenizer dumps
	".safetensors", ".bin", ".onnx", ".pt", ".ckpt",
}

// exact filenames skipped when default excludes are on
var defaultExcludeFileNames = map[string]bool{
	"yarn.lock":         true,
	"package-lock.json": true,
	"pnpm-lock.yaml":    true,
	"composer.lock":     true,
	"poetry.lock":       true,
	"go.sum":            true,
	".ds_store":         true,
	// our own state
	cache.FileName:  true,
	ignore.FileName: true,
}

func isDefaultDirExcluded(name string) bool {
	return defaultExcludeDirs[name] || strings.HasPrefix(name, ".git")
}

// isDefaultFileExcluded expects a slash-separated, lower-cased relative path.
func isDefaultFileExcluded(lowerRel string) bool {
	if strings.HasSuffix(lowerRel, ".lock") {
		return true
	}
	for _, s := range defaultExcludeFileSuffixes {
		if strings.HasSuffix(lowerRel, s) {
			return true
		}
	}
	return defaultExcludeFileNames[path.Base(lowerRel)]
}
