package format

import (
	"path"
	"strings"

	"github.com/tphakala/scopelog/internal/errors"
)

// FilenameMode selects how the {file} placeholder shows a path.
type FilenameMode string

const (
	FilenamePath    FilenameMode = "path"    // as captured
	FilenameBase    FilenameMode = "base"    // lex.go
	FilenameDir     FilenameMode = "dir"     // /src/app/parser
	FilenameDirBase FilenameMode = "dirbase" // parser/lex.go
	FilenameStem    FilenameMode = "stem"    // lex
	FilenameDirStem FilenameMode = "dirstem" // parser/lex
)

// ParseFilenameMode validates s.
func ParseFilenameMode(s string) (FilenameMode, error) {
	switch m := FilenameMode(strings.ToLower(s)); m {
	case FilenamePath, FilenameBase, FilenameDir, FilenameDirBase, FilenameStem, FilenameDirStem:
		return m, nil
	case "":
		return FilenamePath, nil
	}
	return "", errors.ConfigError(componentFormat, "format.filename", s,
		errors.NewStd("expected path, base, dir, dirbase, stem or dirstem"))
}

// Apply renders file according to the mode. file uses '/' separators.
func (m FilenameMode) Apply(file string) string {
	switch m {
	case FilenameBase:
		return path.Base(file)
	case FilenameDir:
		return path.Dir(file)
	case FilenameDirBase:
		return lastSegments(file, 2)
	case FilenameStem:
		return stem(path.Base(file))
	case FilenameDirStem:
		return stem(lastSegments(file, 2))
	}
	return file
}

func stem(p string) string {
	return strings.TrimSuffix(p, path.Ext(p))
}

// lastSegments keeps the trailing n '/'-separated segments of p.
func lastSegments(p string, n int) string {
	if n <= 0 {
		return p
	}
	i := len(p)
	for range n {
		j := strings.LastIndexByte(p[:i], '/')
		if j < 0 {
			return p
		}
		i = j
	}
	return p[i+1:]
}
