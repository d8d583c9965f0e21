package linker

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/cmrt/fclink/depgraph"
	"github.com/cmrt/fclink/platform"
)

type ManifestKernel struct {
	Name      string `yaml:"name"`
	PatchInfo string `yaml:"patch_info"`
	Code      string `yaml:"code"`
}

// Link job description.  e.g.,
//
//	policy: p1
//	platform: tgllp
//	output: linked.bin
//	kernels:
//	  - name: main
//	    patch_info: main.patch
//	    code: main.bin
//
// Relative paths are relative to the manifest's directory.
type Manifest struct {
	// Overrides the policy selected by LegacyOptions.
	Policy *depgraph.Policy `yaml:"policy"`

	// Colon delimited option string.  See ParseOptions.
	LegacyOptions string `yaml:"options"`

	Platform string `yaml:"platform"`

	Output string `yaml:"output"`

	Kernels []ManifestKernel `yaml:"kernels"`

	dir string
}

func LoadManifest(path string) (*Manifest, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read manifest")
	}

	return ParseManifest(content, filepath.Dir(path))
}

func ParseManifest(content []byte, dir string) (*Manifest, error) {
	manifest := &Manifest{}
	err := yaml.Unmarshal(content, manifest)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse manifest")
	}

	if len(manifest.Kernels) == 0 {
		return nil, errors.New("manifest has no kernels")
	}

	manifest.dir = dir
	return manifest, nil
}

func (manifest *Manifest) path(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(manifest.dir, name)
}

func (manifest *Manifest) OutputPath() string {
	return manifest.path(manifest.Output)
}

func (manifest *Manifest) LinkOptions() (Options, error) {
	options := ParseOptions(manifest.LegacyOptions)
	if manifest.Policy != nil {
		options.Policy = *manifest.Policy
	}

	if manifest.Platform != "" {
		id, err := platform.ParseID(manifest.Platform)
		if err != nil {
			return Options{}, err
		}
		options.Platform = id
	}

	return options, nil
}

func (manifest *Manifest) LoadKernels() ([]Kernel, error) {
	kernels := make([]Kernel, 0, len(manifest.Kernels))
	for idx, entry := range manifest.Kernels {
		patchInfo, err := os.ReadFile(manifest.path(entry.PatchInfo))
		if err != nil {
			return nil, errors.Wrapf(err, "kernel %d: failed to read patch info", idx)
		}

		code, err := os.ReadFile(manifest.path(entry.Code))
		if err != nil {
			return nil, errors.Wrapf(err, "kernel %d: failed to read code", idx)
		}

		kernels = append(
			kernels,
			Kernel{
				Name:      entry.Name,
				PatchInfo: patchInfo,
				Code:      code,
			})
	}
	return kernels, nil
}
