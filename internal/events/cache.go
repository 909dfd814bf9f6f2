package events

import (
	"bytes"
	"encoding/json"
	"os"

	"go.uber.org/zap"

	"github.com/ridgeline-research/accident-cli/internal/artifacts"
)

// Cache file names, written into the configured cache directory.
const (
	clusterCacheFile = "event_cluster_cache.json"
	mergeCacheFile   = "event_merge_cache.json"
	fusionCacheFile  = "event_fusion_cache.json"
)

// loadCache fills v from the JSON file at path. A missing or corrupt cache
// is treated as empty.
func loadCache(path string, v any) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	if err := json.Unmarshal(data, v); err != nil {
		zap.L().Warn("ignoring corrupt cache file", zap.String("path", path), zap.Error(err))
	}
}

// saveCache writes v to path. Cache writes are best effort.
func saveCache(path string, v any) {
	if err := artifacts.WriteJSON(path, v); err != nil {
		zap.L().Warn("cache write failed", zap.String("path", path), zap.Error(err))
	}
}

// canonicalJSON renders v with sorted keys and without HTML escaping, so
// cache keys derived from it are stable across runs.
func canonicalJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return ""
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}

// objectsSig keys a cache entry by the md5 of the canonical JSON of its
// inputs, concatenated in order.
func objectsSig(objs ...any) string {
	var buf bytes.Buffer
	for _, o := range objs {
		buf.WriteString(canonicalJSON(o))
	}
	return md5Hex(buf.String())
}
