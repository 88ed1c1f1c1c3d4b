package forge

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mcdex/installcore/internal/core"
	"github.com/mcdex/installcore/internal/gav"
	"github.com/mcdex/installcore/internal/hashfs"
	"github.com/mcdex/installcore/internal/progress"
	"github.com/mcdex/installcore/internal/ziputil"
)

// processorEnv carries the per-install values the hardcoded placeholder
// identifiers resolve to.
type processorEnv struct {
	side         string
	minecraftJar string
	installerJar string
	root         string
	libraryDir   string
}

func (e processorEnv) hardcoded() map[string]string {
	return map[string]string{
		"SIDE":          e.side,
		"MINECRAFT_JAR": e.minecraftJar,
		"INSTALLER":     e.installerJar,
		"ROOT":          e.root,
		"LIBRARY_DIR":   e.libraryDir,
	}
}

// runProcessors executes every Forge/NeoForge post-install processor in
// declared order. Each processor is a Java program:
// its classpath is built from its own jar plus its declared dependency
// jars, its Main-Class is read from its own manifest, and its argument list
// is resolved through the {IDENT}/[GAV] placeholder grammar before the
// process is spawned.
func runProcessors(ctx context.Context, reporter progress.Reporter, archive *ziputil.Archive, profile installProfile, env processorEnv, javaPath string) error {
	if len(profile.Processors) == 0 {
		return nil
	}

	tmpDir, err := os.MkdirTemp("", "installcore-forge-*")
	if err != nil {
		return fmt.Errorf("forge: create processor scratch dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	resolver := &placeholderResolver{
		env:       env,
		data:      profile.Data,
		archive:   archive,
		tmpDir:    tmpDir,
		extracted: map[string]string{},
	}

	for i, p := range profile.Processors {
		if !p.appliesToSide(env.side) {
			continue
		}
		if reporter.IsCancelled() {
			return core.ErrCancelled
		}
		reporter.SetSubstep(p.Jar, i+1, len(profile.Processors))

		if err := runOneProcessor(ctx, p, resolver, env.libraryDir, javaPath); err != nil {
			return err
		}
	}
	return nil
}

func runOneProcessor(ctx context.Context, p processorEntry, resolver *placeholderResolver, libraryDir, javaPath string) error {
	jarCoord, err := gav.Parse(p.Jar)
	if err != nil {
		return fmt.Errorf("forge: processor jar %q: %w", p.Jar, err)
	}
	jarPath := filepath.Join(libraryDir, filepath.FromSlash(jarCoord.Path()))

	mainClass, err := mainClassFromJar(jarPath)
	if err != nil {
		return fmt.Errorf("forge: processor %s: %w", p.Jar, err)
	}

	coords := make([]gav.Coordinate, 0, len(p.Classpath))
	for _, entry := range p.Classpath {
		coord, err := gav.Parse(entry)
		if err != nil {
			return fmt.Errorf("forge: processor classpath entry %q: %w", entry, err)
		}
		coords = append(coords, coord)
	}
	classpath := make([]string, 0, len(coords)+1)
	for _, coord := range gav.DedupOrdered(coords) {
		classpath = append(classpath, filepath.Join(libraryDir, filepath.FromSlash(coord.Path())))
	}
	classpath = append(classpath, jarPath)

	args := make([]string, 0, len(p.Args))
	for _, raw := range p.Args {
		resolved, err := resolver.substitute(raw)
		if err != nil {
			return &core.ProcessorError{Processor: p.Jar, Err: err}
		}
		args = append(args, resolved)
	}

	javaExe := javaPath
	if javaExe == "" {
		javaExe = "java"
	}

	cmdArgs := append([]string{"-cp", strings.Join(classpath, string(os.PathListSeparator)), mainClass}, args...)
	cmd := exec.CommandContext(ctx, javaExe, cmdArgs...)
	cmd.Env = strippedEnviron()

	out, runErr := cmd.CombinedOutput()
	if runErr != nil {
		return &core.ProcessorError{Processor: p.Jar, Stderr: string(out), Err: runErr}
	}

	for outKey, hashRef := range p.Outputs {
		outPath, err := resolver.substitute(outKey)
		if err != nil {
			return &core.ProcessorError{Processor: p.Jar, Err: fmt.Errorf("resolve output path %q: %w", outKey, err)}
		}
		expected, err := resolver.substitute(hashRef)
		if err != nil {
			return &core.ProcessorError{Processor: p.Jar, Err: fmt.Errorf("resolve output hash %q: %w", hashRef, err)}
		}
		actual, err := hashfs.Sha1Stream(outPath)
		if err != nil {
			return &core.ProcessorError{Processor: p.Jar, Err: fmt.Errorf("hash output %s: %w", outPath, err)}
		}
		if actual != expected {
			return &core.HashMismatchError{Path: outPath, Expected: expected, Actual: actual}
		}
	}

	return nil
}

// strippedEnviron copies the process environment but removes variables
// known to perturb a spawned JVM.
func strippedEnviron() []string {
	src := os.Environ()
	out := make([]string, 0, len(src))
	for _, kv := range src {
		if strings.HasPrefix(kv, "_JAVA_OPTIONS=") || strings.HasPrefix(kv, "JAVA_TOOL_OPTIONS=") {
			continue
		}
		out = append(out, kv)
	}
	return out
}

// mainClassFromJar reads Main-Class out of a JAR's META-INF/MANIFEST.MF.
func mainClassFromJar(jarPath string) (string, error) {
	archive, err := ziputil.Open(jarPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", jarPath, err)
	}

	r, err := archive.Open("META-INF/MANIFEST.MF")
	if err != nil {
		return "", fmt.Errorf("%s has no META-INF/MANIFEST.MF: %w", jarPath, err)
	}
	defer r.Close()

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "Main-Class:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "Main-Class:")), nil
		}
	}
	return "", fmt.Errorf("%s manifest has no Main-Class", jarPath)
}
