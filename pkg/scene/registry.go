package scene

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownScene is returned when a scene name is not registered
var ErrUnknownScene = errors.New("unknown scene")

// DefaultSceneName is the scene rendered when none is named
const DefaultSceneName = "default"

// DefaultGridSize is the number of spheres along each side of the sphere grid
const DefaultGridSize = 20

type builtin struct {
	description string
	build       func(seed int64) *Scene
}

var builtins = map[string]builtin{
	"default": {
		description: "Diffuse, hollow glass and fuzzy gold spheres on a ground sphere",
		build:       func(int64) *Scene { return NewDefaultScene() },
	},
	"glass": {
		description: "The default lineup from a raised viewpoint with a narrow field of view",
		build:       func(int64) *Scene { return NewGlassScene() },
	},
	"defocus": {
		description: "The raised lineup with a wide aperture focused on the center sphere",
		build:       func(int64) *Scene { return NewDefocusScene() },
	},
	"cover": {
		description: "Hundreds of random small spheres around three large ones",
		build:       NewCoverScene,
	},
	"spheregrid": {
		description: "Grid of rainbow metal spheres",
		build:       func(int64) *Scene { return NewSphereGridScene(DefaultGridSize) },
	},
}

// Names returns the registered built-in scene names in sorted order
func Names() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Builtin creates a registered scene. The seed only affects randomized layouts.
func Builtin(name string, seed int64) (*Scene, error) {
	b, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScene, name)
	}
	return b.build(seed), nil
}

// Resolve creates a scene from a discovery ID: "file:<name>" loads
// <dir>/<name>.json, anything else is looked up as a built-in.
func Resolve(id, dir string, seed int64) (*Scene, error) {
	if name, ok := fileSceneName(id); ok {
		return LoadFile(sceneFilePath(dir, name))
	}
	return Builtin(id, seed)
}
