// Package scanner finds survey request and IPM files under a directory.
package scanner

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// File kinds.
const (
	KindRequest = "request"
	KindIPM     = "ipm"
)

// File is one input discovered by Scan.
type File struct {
	Path string `json:"path"`
	Kind string `json:"kind"`
}

var requestExtensions = map[string]struct{}{
	".json": {},
	".yaml": {},
	".yml":  {},
}

// Scan walks root and returns request and IPM files sorted by path. A .ipm
// extension marks an IPM; a .txt file counts as one when its first non-blank
// line is a "#ShortName" header.
func Scan(root string) ([]File, error) {
	var results []File
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(d.Name()))
		switch {
		case ext == ".ipm":
			results = append(results, File{Path: path, Kind: KindIPM})
		case ext == ".txt" && looksLikeIPM(path):
			results = append(results, File{Path: path, Kind: KindIPM})
		default:
			if _, ok := requestExtensions[ext]; ok {
				results = append(results, File{Path: path, Kind: KindRequest})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Path < results[j].Path })
	return results, nil
}

func looksLikeIPM(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		return strings.HasPrefix(strings.ToLower(line), "#shortname")
	}
	return false
}

// Inputs expands paths into request files. Directories are scanned; plain
// files are kept as given.
func Inputs(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}
		files, err := Scan(p)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if f.Kind == KindRequest {
				out = append(out, f.Path)
			}
		}
	}
	return out, nil
}
