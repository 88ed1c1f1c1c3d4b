package forge

import (
	"fmt"

	"github.com/Jeffail/gabs"

	"github.com/mcdex/installcore/internal/core"
	"github.com/mcdex/installcore/internal/manifest"
	"github.com/mcdex/installcore/internal/ziputil"
)

// installProfile is the parsed install_profile.json, plus the embedded
// version.json it travels with. Legacy installers (MC <=1.12.2) carry no
// standalone version.json and instead nest the equivalent
// "versionInfo"/"install" sections inside install_profile.json.
type installProfile struct {
	Spec        int
	Libraries   []manifest.Library
	Processors  []processorEntry
	Data        map[string]dataEntry
	VersionJSON *manifest.Manifest
	IsLegacy    bool
}

type dataEntry struct {
	Client string
	Server string
}

type processorEntry struct {
	Jar       string
	Classpath []string
	Args      []string
	Sides     []string
	Outputs   map[string]string
}

func parseInstallProfile(archive *ziputil.Archive) (installProfile, error) {
	profileDoc, err := archive.ReadJSON("install_profile.json")
	if err != nil {
		return installProfile{}, &core.BadManifestError{Source: "install_profile.json", Err: err}
	}

	var versionDoc *gabs.Container
	var isLegacy bool
	if archive.Has("version.json") {
		versionDoc, err = archive.ReadJSON("version.json")
		if err != nil {
			return installProfile{}, &core.BadManifestError{Source: "version.json", Err: err}
		}
	} else if profileDoc.ExistsP("versionInfo") {
		isLegacy = true
		versionDoc = profileDoc.Path("versionInfo")
		if profileDoc.ExistsP("install") {
			profileDoc = profileDoc.Path("install")
		}
	} else {
		return installProfile{}, &core.BadManifestError{
			Source: "install_profile.json",
			Err:    fmt.Errorf("neither version.json nor legacy versionInfo section present"),
		}
	}

	profile := installProfile{
		Spec:        int(intAt(profileDoc, "spec")),
		VersionJSON: manifest.FromContainer(versionDoc),
		IsLegacy:    isLegacy,
	}

	profileManifest := manifest.FromContainer(profileDoc)
	profile.Libraries = profileManifest.Libraries()

	if procChildren, _ := profileDoc.Path("processors").Children(); !isLegacy {
		profile.Processors = make([]processorEntry, 0, len(procChildren))
		for _, p := range procChildren {
			profile.Processors = append(profile.Processors, parseProcessorEntry(p))
		}
	}

	if dataMap, _ := profileDoc.Path("data").ChildrenMap(); len(dataMap) > 0 {
		profile.Data = make(map[string]dataEntry, len(dataMap))
		for k, v := range dataMap {
			profile.Data[k] = dataEntry{
				Client: stringOr(v, "client"),
				Server: stringOr(v, "server"),
			}
		}
	}

	return profile, nil
}

func parseProcessorEntry(c *gabs.Container) processorEntry {
	p := processorEntry{Jar: stringOr(c, "jar")}

	if children, _ := c.Path("classpath").Children(); children != nil {
		for _, item := range children {
			if s, ok := item.Data().(string); ok {
				p.Classpath = append(p.Classpath, s)
			}
		}
	}
	if children, _ := c.Path("args").Children(); children != nil {
		for _, item := range children {
			if s, ok := item.Data().(string); ok {
				p.Args = append(p.Args, s)
			}
		}
	}
	if children, _ := c.Path("sides").Children(); children != nil {
		for _, item := range children {
			if s, ok := item.Data().(string); ok {
				p.Sides = append(p.Sides, s)
			}
		}
	}
	if outMap, _ := c.Path("outputs").ChildrenMap(); len(outMap) > 0 {
		p.Outputs = make(map[string]string, len(outMap))
		for k, v := range outMap {
			if s, ok := v.Data().(string); ok {
				p.Outputs[k] = s
			}
		}
	}
	return p
}

func stringOr(c *gabs.Container, path string) string {
	if c == nil || !c.ExistsP(path) {
		return ""
	}
	s, _ := c.Path(path).Data().(string)
	return s
}

func intAt(c *gabs.Container, path string) float64 {
	if c == nil || !c.ExistsP(path) {
		return 0
	}
	switch v := c.Path(path).Data().(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

// appliesToSide reports whether a processor with the given declared sides
// should run for side ("client" or "server"); an empty Sides list means
// every side.
func (p processorEntry) appliesToSide(side string) bool {
	if len(p.Sides) == 0 {
		return true
	}
	for _, s := range p.Sides {
		if s == side {
			return true
		}
	}
	return false
}
