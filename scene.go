package lightbake

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl32"
)

// SceneDef defines the initial state of a bake scene.
type SceneDef struct {
	Surfaces []SurfaceDef `json:"surfaces"`
	Lights   []LightDef   `json:"lights"`
}

// SurfaceDef defines one piece of static bake geometry.
type SurfaceDef struct {
	Shape       string      `json:"shape"` // "plane", "box" or "sphere"
	Position    mgl32.Vec3  `json:"position"`
	Normal      mgl32.Vec3  `json:"normal,omitempty"` // plane only, defaults to +Y
	HalfExtents mgl32.Vec3  `json:"half_extents,omitempty"`
	Radius      float32     `json:"radius,omitempty"`
	Color       *mgl32.Vec3 `json:"color,omitempty"` // nil means no tinting
	Layer       LayerMask   `json:"layer,omitempty"`
}

// LightDef defines a source light. Direction is the beam axis; zero means
// straight down.
type LightDef struct {
	Position  mgl32.Vec3 `json:"position"`
	Direction mgl32.Vec3 `json:"direction,omitempty"`
	Color     mgl32.Vec3 `json:"color"`
	Intensity float32    `json:"intensity,omitempty"`
	Range     float32    `json:"range,omitempty"`
}

// LoadSceneFile reads a SceneDef from a JSON file.
func LoadSceneFile(path string) (*SceneDef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var scene SceneDef
	if err := json.Unmarshal(data, &scene); err != nil {
		return nil, fmt.Errorf("parsing scene %s: %w", path, err)
	}
	return &scene, nil
}

// LoadScene iterates through the SceneDef and spawns entities.
func LoadScene(cmd *Commands, scene *SceneDef) error {
	for i, surface := range scene.Surfaces {
		if err := spawnSurface(cmd, surface); err != nil {
			return fmt.Errorf("surface %d: %w", i, err)
		}
	}
	for _, light := range scene.Lights {
		spawnSceneLight(cmd, light)
	}
	return nil
}

func spawnSurface(cmd *Commands, def SurfaceDef) error {
	collider := ColliderComponent{Layer: def.Layer}
	rotation := mgl32.QuatIdent()

	switch def.Shape {
	case "plane":
		collider.Shape = ShapePlane
		normal := def.Normal
		if normal.Len() == 0 {
			normal = mgl32.Vec3{0, 1, 0}
		}
		rotation = mgl32.QuatBetweenVectors(mgl32.Vec3{0, 1, 0}, normal.Normalize())
	case "box":
		collider.Shape = ShapeBox
		collider.HalfExtents = def.HalfExtents
	case "sphere":
		collider.Shape = ShapeSphere
		collider.Radius = def.Radius
	default:
		return fmt.Errorf("unknown surface shape %q", def.Shape)
	}

	components := []any{
		&TransformComponent{
			Position: def.Position,
			Rotation: rotation,
			Scale:    mgl32.Vec3{1, 1, 1},
		},
		&collider,
	}
	if def.Color != nil {
		components = append(components, &MaterialComponent{BaseColor: *def.Color})
	}

	cmd.AddEntity(components...)
	return nil
}

func spawnSceneLight(cmd *Commands, def LightDef) {
	direction := def.Direction
	if direction.Len() == 0 {
		direction = mgl32.Vec3{0, -1, 0}
	}

	intensity := def.Intensity
	if intensity == 0 {
		intensity = 1
	}

	cmd.AddEntity(
		&TransformComponent{
			Position: def.Position,
			Rotation: mgl32.QuatBetweenVectors(mgl32.Vec3{0, 0, -1}, direction.Normalize()),
			Scale:    mgl32.Vec3{1, 1, 1},
		},
		&LightComponent{
			Type:      LightTypePoint,
			Color:     def.Color,
			Intensity: intensity,
			Range:     def.Range,
		},
	)
}
