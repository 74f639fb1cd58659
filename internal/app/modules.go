package app

import (
	"github.com/spf13/afero"
	"github.com/vk/gridmake/internal/config"
	"github.com/vk/gridmake/internal/hcl_adapter"
	"github.com/vk/gridmake/internal/registry"
	"github.com/vk/gridmake/internal/yaml_adapter"
	"github.com/vk/gridmake/modules/fileops"
)

// coreModules is the definitive list of action modules compiled into the
// gridmake binary.
func coreModules(fs afero.Fs) []registry.Module {
	return []registry.Module{
		&fileops.Module{Fs: fs},
	}
}

// ruleLoaders maps rule file extensions to their loaders.
func ruleLoaders(fs afero.Fs) map[string]config.Loader {
	yml := yaml_adapter.NewLoader(fs)
	return map[string]config.Loader{
		".hcl":  hcl_adapter.NewLoader(fs),
		".yaml": yml,
		".yml":  yml,
	}
}
