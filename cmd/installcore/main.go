// ***************************************************************************
//
//  Copyright 2017 David (Dizzy) Smith, dizzyd@dizzyd.com
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//       http://www.apache.org/licenses/LICENSE-2.0
//
//   Unless required by applicable law or agreed to in writing, software
//   distributed under the License is distributed on an "AS IS" BASIS,
//   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//   See the License for the specific language governing permissions and
//   limitations under the License.
// ***************************************************************************

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	installcore "github.com/mcdex/installcore"
	"github.com/mcdex/installcore/internal/cache"
	"github.com/mcdex/installcore/internal/history"
	"github.com/mcdex/installcore/internal/progress"
)

var version string

var ARG_DRY_RUN bool
var ARG_CONCURRENCY int
var ARG_GAME_DIR string
var ARG_JAVA string

// StrValue is a flag whose default is computed but which remembers whether
// the user actually set it.
type StrValue struct {
	isSet bool
	value string
}

func (s *StrValue) String() string { return s.value }

func (s *StrValue) Set(v string) error {
	s.isSet = true
	s.value = v
	return nil
}

type command struct {
	Fn        func() error
	Desc      string
	ArgsCount int
	Args      string
}

var gCommands = map[string]command{
	"install": {
		Fn:        cmdInstall,
		Desc:      "Install a Minecraft version, optionally with a modloader",
		ArgsCount: 1,
		Args:      "<minecraft version> [<vanilla|fabric|quilt|forge|neoforge> [<loader version>]]",
	},
	"history": {
		Fn:        cmdHistory,
		Desc:      "Show when an installed version was last installed",
		ArgsCount: 1,
		Args:      "<installed version id>",
	},
	"cache.prune": {
		Fn:        cmdCachePrune,
		Desc:      "Delete unreferenced blobs from the artifact cache",
		ArgsCount: 0,
	},
	"info": {
		Fn:        cmdInfo,
		Desc:      "Show runtime info",
		ArgsCount: 0,
	},
}

var dataDir StrValue

func cmdInstall() error {
	loader := flag.Arg(2)
	if loader == "" {
		loader = "vanilla"
	}

	spec := installcore.InstallSpec{
		VersionID:        flag.Arg(1),
		Modloader:        installcore.Modloader(loader),
		ModloaderVersion: flag.Arg(3),
		DataDir:          dataDir.String(),
		GameDir:          ARG_GAME_DIR,
		JavaPath:         ARG_JAVA,
		DryRun:           ARG_DRY_RUN,
		Concurrency:      ARG_CONCURRENCY,
	}

	reporter := progress.NewConsole()

	// Ctrl-C requests a cooperative cancel; the install rolls back and
	// returns rather than dying mid-write.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	go func() {
		<-sigs
		reporter.Cancel()
	}()
	defer signal.Stop(sigs)

	result, err := installcore.Install(context.Background(), spec, reporter)
	if err != nil {
		return err
	}

	console("installed %s (%d artifacts)\n", result.InstalledVersionID, result.Artifacts)
	return nil
}

func cmdHistory() error {
	h, err := history.Open(filepath.Join(dataDir.String(), "cache", "history.db"))
	if err != nil {
		return err
	}
	defer h.Close()

	entry, ok, err := h.Last(flag.Arg(1))
	if err != nil {
		return err
	}
	if !ok {
		console("%s has never been installed\n", flag.Arg(1))
		return nil
	}
	console("%s: last install %s (%s), outcome %s\n", entry.InstalledVersionID, entry.Ago(), entry.When.Format("2006-01-02 15:04"), entry.Outcome)
	return nil
}

func cmdCachePrune() error {
	c, err := cache.Open(filepath.Join(dataDir.String(), "cache"))
	if err != nil {
		return err
	}
	removed, err := c.PruneUnused()
	if err != nil {
		return err
	}
	if err := c.Save(); err != nil {
		return err
	}
	console("pruned %d blobs\n", removed)
	return nil
}

func cmdInfo() error {
	console("installcore %s\n", version)
	console("data dir: %s\n", dataDir.String())
	return nil
}

func console(f string, args ...interface{}) {
	fmt.Printf(f, args...)
}

func usage() {
	console("usage: installcore [<options>] <command> [<args>]\n")
	console("<options>\n")
	flag.PrintDefaults()
	console("\n<commands>\n")

	names := make([]string, 0, len(gCommands))
	for name := range gCommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		console("  - %s: %s\n", name, gCommands[name].Desc)
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".installcore"
	}
	return filepath.Join(home, ".installcore")
}

func main() {
	dataDir = StrValue{value: defaultDataDir()}

	flag.Var(&dataDir, "data", "Data directory holding versions, libraries, assets and the artifact cache")
	flag.StringVar(&ARG_GAME_DIR, "game", "", "Game directory for this instance (mods/, saves/); defaults to none")
	flag.StringVar(&ARG_JAVA, "java", "", "Path to the java executable used for Forge/NeoForge processors")
	flag.BoolVar(&ARG_DRY_RUN, "n", false, "Dry run; resolve and parse everything but don't write the instance")
	flag.IntVar(&ARG_CONCURRENCY, "c", 0, "Parallel downloads (default 8)")

	flag.Parse()
	if !flag.Parsed() || flag.NArg() < 1 {
		usage()
		os.Exit(-1)
	}

	commandName := flag.Arg(0)
	cmd, exists := gCommands[commandName]
	if !exists {
		console("ERROR: unknown command '%s'\n", commandName)
		usage()
		os.Exit(-1)
	}

	if flag.NArg() < cmd.ArgsCount+1 {
		console("ERROR: insufficient arguments for %s\n", commandName)
		console("usage: installcore %s %s\n", commandName, cmd.Args)
		os.Exit(-1)
	}

	if ARG_DRY_RUN {
		fmt.Printf("--- DRY RUN ---\n")
	}

	if err := cmd.Fn(); err != nil {
		log.Fatalf("%+v\n", err)
	}
}
