package manifest

import (
	"regexp"
	"runtime"

	"github.com/Jeffail/gabs"
)

// Rule is one entry of a library/argument "rules" array: an allow/disallow
// action gated on OS name/version/arch and named feature flags.
type Rule struct {
	Allow   bool
	OSName  string
	OSArch  string
	OSVsn   string
	Feature map[string]bool
}

func parseRules(c *gabs.Container) []Rule {
	if !c.ExistsP("rules") {
		return nil
	}
	children, _ := c.Path("rules").Children()
	out := make([]Rule, 0, len(children))
	for _, rc := range children {
		r := Rule{Allow: stringAt(rc, "action") == "allow"}
		if rc.ExistsP("os.name") {
			r.OSName = stringAt(rc, "os.name")
		}
		if rc.ExistsP("os.arch") {
			r.OSArch = stringAt(rc, "os.arch")
		}
		if rc.ExistsP("os.version") {
			r.OSVsn = stringAt(rc, "os.version")
		}
		if rc.ExistsP("features") {
			m, _ := rc.Path("features").ChildrenMap()
			if len(m) > 0 {
				r.Feature = make(map[string]bool, len(m))
				for k, v := range m {
					b, _ := v.Data().(bool)
					r.Feature[k] = b
				}
			}
		}
		out = append(out, r)
	}
	return out
}

// CurrentOS returns the Mojang os.name token for the running platform:
// "windows", "osx", or "linux". Darwin is reported as "osx" but a rule
// naming "macos" is also honored (see matchOS) since some third-party
// manifests (Quilt, NeoForge) use the newer spelling.
func CurrentOS() string {
	switch runtime.GOOS {
	case "darwin":
		return "osx"
	case "windows":
		return "windows"
	default:
		return "linux"
	}
}

// CurrentArch returns the Mojang os.arch token for the running platform.
func CurrentArch() string {
	switch runtime.GOARCH {
	case "amd64":
		return "x86_64"
	case "386":
		return "x86"
	case "arm64":
		return "aarch64"
	default:
		return runtime.GOARCH
	}
}

// ActiveFeatures is the set of feature flags this installer ever sets for
// argument substitution. A rule referencing a feature key not listed here
// is ignored rather than treated as a deny.
var ActiveFeatures = map[string]bool{
	"has_custom_resolution":   false,
	"is_demo_user":            false,
	"has_quick_plays_support": false,
}

// EvaluateRules applies a rule list: no rules means include; otherwise the
// outcome is the action of the last matching rule, defaulting to exclude if
// no rule matches.
func EvaluateRules(rules []Rule) bool {
	if len(rules) == 0 {
		return true
	}
	include := false
	for _, r := range rules {
		if ruleMatches(r) {
			include = r.Allow
		}
	}
	return include
}

func ruleMatches(r Rule) bool {
	if r.OSName != "" && !matchOS(r.OSName, CurrentOS()) {
		return false
	}
	if r.OSArch != "" && r.OSArch != CurrentArch() {
		return false
	}
	if r.OSVsn != "" {
		re, err := regexp.Compile(r.OSVsn)
		if err == nil && !re.MatchString(osVersionString()) {
			return false
		}
	}
	for feature, want := range r.Feature {
		have, known := ActiveFeatures[feature]
		if !known {
			continue
		}
		if have != want {
			return false
		}
	}
	return true
}

// matchOS treats "osx" and "macos" as equivalent spellings of the same
// platform; Mojang manifests use the former, some third-party ones the
// latter.
func matchOS(ruleOS, current string) bool {
	if ruleOS == current {
		return true
	}
	if current == "osx" && (ruleOS == "macos" || ruleOS == "mac") {
		return true
	}
	return false
}

func osVersionString() string {
	return "" // os.version rules target Windows build numbers this installer does not probe; treated as non-matching.
}
