// Package installcore materializes a runnable Minecraft game instance on
// local disk from a declarative InstallSpec: it resolves version manifests,
// downloads and verifies every required artifact through a content-addressed
// cache, extracts natives, runs modloader post-processing, and commits the
// result atomically.
package installcore

import (
	"github.com/mcdex/installcore/internal/core"
	"github.com/mcdex/installcore/internal/progress"
)

// ProgressReporter is the capability surface every install reports through;
// see Install. Implementations must be safe for concurrent use.
type ProgressReporter = progress.Reporter

// NewConsoleReporter returns the default terminal reporter: a single
// redrawing progress line with cooperative cancel/pause controls.
func NewConsoleReporter() *progress.Console { return progress.NewConsole() }

// Modloader selects the installer variant dispatched by Install.
type Modloader = core.Modloader

const (
	Vanilla  = core.Vanilla
	Fabric   = core.Fabric
	Quilt    = core.Quilt
	Forge    = core.Forge
	NeoForge = core.NeoForge
)

// InstallSpec is the immutable description of one instance install.
type InstallSpec = core.InstallSpec

// DefaultConcurrency is used when InstallSpec.Concurrency is zero.
const DefaultConcurrency = core.DefaultConcurrency

// Result is returned by Install on success.
type Result = core.Result
