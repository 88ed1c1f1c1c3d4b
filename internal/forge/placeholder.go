package forge

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mcdex/installcore/internal/gav"
	"github.com/mcdex/installcore/internal/ziputil"
)

// placeholder grammar: tokens "{IDENT}" and "[GAV]", where GAV matches
// group:artifact:version(:classifier)?(@ext)?. "{IDENT}" resolves
// first against the hardcoded set (SIDE, MINECRAFT_JAR, INSTALLER, ROOT,
// LIBRARY_DIR), then against install_profile.data[IDENT].<side>; if that
// resolved value is itself a "[GAV]" token it is resolved again to an
// on-disk path. Unresolved placeholders are a fatal error, not left as-is.
var (
	identToken = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)
	gavToken   = regexp.MustCompile(`\[([^\[\]]+)\]`)
)

// placeholderResolver resolves processor argument placeholders against one
// install's environment, data section, and installer archive. Files the
// data section names by embedded installer path are extracted into tmpDir
// lazily and cached so a repeated reference doesn't re-extract.
type placeholderResolver struct {
	env       processorEnv
	data      map[string]dataEntry
	archive   *ziputil.Archive
	tmpDir    string
	extracted map[string]string
}

func (r *placeholderResolver) substitute(arg string) (string, error) {
	out, err := r.substituteIdents(arg)
	if err != nil {
		return "", err
	}
	return r.substituteGAVs(out)
}

func (r *placeholderResolver) substituteIdents(arg string) (string, error) {
	var firstErr error
	result := identToken.ReplaceAllStringFunc(arg, func(tok string) string {
		if firstErr != nil {
			return tok
		}
		ident := tok[1 : len(tok)-1]
		val, err := r.resolveIdent(ident)
		if err != nil {
			firstErr = err
			return tok
		}
		return val
	})
	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

func (r *placeholderResolver) substituteGAVs(arg string) (string, error) {
	var firstErr error
	result := gavToken.ReplaceAllStringFunc(arg, func(tok string) string {
		if firstErr != nil {
			return tok
		}
		path, err := r.resolveGAVPath(tok[1 : len(tok)-1])
		if err != nil {
			firstErr = err
			return tok
		}
		return path
	})
	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

func (r *placeholderResolver) resolveGAVPath(gavStr string) (string, error) {
	coord, err := gav.Parse(gavStr)
	if err != nil {
		return "", fmt.Errorf("unresolved placeholder [%s]: %w", gavStr, err)
	}
	return filepath.Join(r.env.libraryDir, filepath.FromSlash(coord.Path())), nil
}

func (r *placeholderResolver) resolveIdent(ident string) (string, error) {
	if val, ok := r.env.hardcoded()[ident]; ok {
		return val, nil
	}

	entry, ok := r.data[ident]
	if !ok {
		return "", fmt.Errorf("unresolved placeholder {%s}", ident)
	}
	raw := entry.Client
	if r.env.side == "server" {
		raw = entry.Server
	}
	return r.resolveDataValue(ident, raw)
}

// resolveDataValue interprets one install_profile.json "data" entry value:
// a "[GAV]" artifact reference, a '-quoted literal, or a path inside the
// installer archive that must be extracted to disk.
func (r *placeholderResolver) resolveDataValue(ident, raw string) (string, error) {
	switch {
	case strings.HasPrefix(raw, "[") && strings.HasSuffix(raw, "]"):
		return r.resolveGAVPath(raw[1 : len(raw)-1])
	case strings.HasPrefix(raw, "'") && strings.HasSuffix(raw, "'"):
		return strings.Trim(raw, "'"), nil
	case raw == "":
		return "", fmt.Errorf("unresolved placeholder {%s}: empty data entry", ident)
	default:
		return r.extractDataFile(ident, raw)
	}
}

func (r *placeholderResolver) extractDataFile(ident, entryName string) (string, error) {
	entryName = strings.TrimPrefix(entryName, "/")
	if path, ok := r.extracted[entryName]; ok {
		return path, nil
	}
	path, err := r.archive.WriteFileToDir(entryName, r.tmpDir)
	if err != nil {
		return "", fmt.Errorf("extract data entry {%s} (%s): %w", ident, entryName, err)
	}
	r.extracted[entryName] = path
	return path, nil
}
