package brew

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	errs "github.com/blackwell-systems/brewdeps/internal/errors"
)

// brewInfoOutput represents the structure of `brew info --json=v2 --installed` output
type brewInfoOutput struct {
	Formulae []brewFormulaInfo `json:"formulae"`
	Casks    []brewCaskInfo    `json:"casks"`
}

// brewFormulaInfo represents detailed formula information
type brewFormulaInfo struct {
	Name                    string                 `json:"name"`
	FullName                string                 `json:"full_name"`
	Tap                     string                 `json:"tap"`
	Desc                    string                 `json:"desc"`
	Homepage                string                 `json:"homepage"`
	Versions                brewVersions           `json:"versions"`
	Dependencies            []string               `json:"dependencies"`
	BuildDependencies       []string               `json:"build_dependencies"`
	OptionalDependencies    []string               `json:"optional_dependencies"`
	RecommendedDependencies []string               `json:"recommended_dependencies"`
	Installed               []brewInstalledVersion `json:"installed"`
	LinkedKeg               *string                `json:"linked_keg"`
	Outdated                bool                   `json:"outdated"`
	Pinned                  bool                   `json:"pinned"`
}

type brewVersions struct {
	Stable string `json:"stable"`
}

// brewInstalledVersion represents one installed keg of a formula
type brewInstalledVersion struct {
	Version               string `json:"version"`
	Time                  int64  `json:"time"`
	InstalledOnRequest    bool   `json:"installed_on_request"`
	InstalledAsDependency bool   `json:"installed_as_dependency"`
}

// brewCaskInfo represents detailed cask information
type brewCaskInfo struct {
	Token         string            `json:"token"`
	FullToken     string            `json:"full_token"`
	Tap           string            `json:"tap"`
	Name          []string          `json:"name"`
	Desc          string            `json:"desc"`
	Homepage      string            `json:"homepage"`
	Version       string            `json:"version"`
	Installed     *string           `json:"installed"`
	InstalledTime *int64            `json:"installed_time"`
	Outdated      bool              `json:"outdated"`
	AutoUpdates   bool              `json:"auto_updates"`
	DependsOn     brewCaskDependsOn `json:"depends_on"`
	Artifacts     []json.RawMessage `json:"artifacts"`
}

// brewCaskDependsOn holds the package-valued parts of a cask's depends_on
// stanza. Other keys (macos, arch) are not packages and are ignored.
type brewCaskDependsOn struct {
	Formula []string `json:"formula"`
	Cask    []string `json:"cask"`
}

// runFunc executes a command and returns its stdout.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Client queries a local Homebrew installation.
type Client struct {
	bin string
	run runFunc
}

// NewClient returns a client that invokes the given brew executable.
// An empty bin means "brew" looked up on PATH.
func NewClient(bin string) *Client {
	if bin == "" {
		bin = "brew"
	}
	return &Client{bin: bin, run: execRun}
}

// Installed returns every installed formula and cask from a single
// `brew info --json=v2 --installed` invocation. All failures carry
// errs.ErrCodeDataUnavailable.
func (c *Client) Installed(ctx context.Context) (*Snapshot, error) {
	output, err := c.command(ctx, "info", "--json=v2", "--installed")
	if err != nil {
		return nil, err
	}

	snap, err := ParseInfo(output)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeDataUnavailable, err, "failed to parse brew info output")
	}
	return snap, nil
}

// Prefix returns the Homebrew installation prefix.
func (c *Client) Prefix(ctx context.Context) (string, error) {
	output, err := c.command(ctx, "--prefix")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(output)), nil
}

func (c *Client) command(ctx context.Context, args ...string) ([]byte, error) {
	output, err := c.run(ctx, c.bin, args...)
	if err == nil {
		return output, nil
	}

	cmdline := c.bin + " " + strings.Join(args, " ")
	if errors.Is(err, exec.ErrNotFound) {
		return nil, errs.Wrap(errs.ErrCodeDataUnavailable, err, "%s not found (is Homebrew installed and on PATH?)", c.bin)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		stderr := strings.TrimSpace(string(exitErr.Stderr))
		return nil, errs.Wrap(errs.ErrCodeDataUnavailable, err, "%s failed (stderr: %s)", cmdline, stderr)
	}
	return nil, errs.Wrap(errs.ErrCodeDataUnavailable, err, "%s failed", cmdline)
}

// ParseInfo converts `brew info --json=v2` output into a Snapshot.
func ParseInfo(data []byte) (*Snapshot, error) {
	var info brewInfoOutput
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Formulae: make([]Formula, 0, len(info.Formulae)),
		Casks:    make([]Cask, 0, len(info.Casks)),
	}

	for _, f := range info.Formulae {
		if f.Name == "" {
			return nil, fmt.Errorf("formula entry without a name")
		}
		snap.Formulae = append(snap.Formulae, convertFormula(f))
	}

	for _, c := range info.Casks {
		if c.Token == "" {
			return nil, fmt.Errorf("cask entry without a token")
		}
		snap.Casks = append(snap.Casks, convertCask(c))
	}

	return snap, nil
}

func convertFormula(f brewFormulaInfo) Formula {
	formula := Formula{
		Name:                    f.Name,
		FullName:                f.FullName,
		Tap:                     f.Tap,
		Version:                 f.Versions.Stable,
		Desc:                    f.Desc,
		Homepage:                f.Homepage,
		Dependencies:            nonNil(f.Dependencies),
		BuildDependencies:       nonNil(f.BuildDependencies),
		OptionalDependencies:    nonNil(f.OptionalDependencies),
		RecommendedDependencies: nonNil(f.RecommendedDependencies),
		Outdated:                f.Outdated,
		Pinned:                  f.Pinned,
	}
	if f.LinkedKeg != nil {
		formula.LinkedKeg = *f.LinkedKeg
	}

	// installed_on_request lives on each installed keg; one requested keg
	// is enough for the formula to count as requested.
	for _, keg := range f.Installed {
		formula.InstalledVersions = append(formula.InstalledVersions, keg.Version)
		if keg.InstalledOnRequest {
			formula.InstalledOnRequest = true
		}
		if keg.InstalledAsDependency {
			formula.InstalledAsDependency = true
		}
		if keg.Time > formula.InstalledTime {
			formula.InstalledTime = keg.Time
		}
	}

	return formula
}

func convertCask(c brewCaskInfo) Cask {
	cask := Cask{
		Name:             c.Token,
		FullName:         c.FullToken,
		Tap:              c.Tap,
		Version:          c.Version,
		Desc:             c.Desc,
		Homepage:         c.Homepage,
		Dependencies:     nonNil(c.DependsOn.Formula),
		CaskDependencies: nonNil(c.DependsOn.Cask),
		AutoUpdates:      c.AutoUpdates,
		Outdated:         c.Outdated,
		Apps:             caskApps(c.Artifacts),
	}
	if len(c.Name) > 0 {
		cask.DisplayName = c.Name[0]
	}
	if c.Installed != nil {
		cask.InstalledVersion = *c.Installed
	}
	if c.InstalledTime != nil {
		cask.InstalledTime = *c.InstalledTime
	}
	return cask
}

// caskApps extracts application bundle names from a cask's artifacts.
// Artifacts are a heterogeneous list; entries that are not objects, or
// whose "app" value is not a list of strings, are skipped.
func caskApps(artifacts []json.RawMessage) []string {
	var apps []string
	for _, raw := range artifacts {
		var artifact map[string]json.RawMessage
		if err := json.Unmarshal(raw, &artifact); err != nil {
			continue
		}
		appRaw, ok := artifact["app"]
		if !ok {
			continue
		}
		var entries []json.RawMessage
		if err := json.Unmarshal(appRaw, &entries); err != nil {
			continue
		}
		for _, entry := range entries {
			var name string
			if err := json.Unmarshal(entry, &name); err == nil {
				apps = append(apps, name)
			}
		}
	}
	return apps
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
