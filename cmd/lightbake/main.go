package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/op/go-logging"
	"github.com/urfave/cli"

	"github.com/gekko3d/lightbake"
)

var logger = logging.MustGetLogger("lightbake")

var format = logging.MustStringFormatter(
	`%{color}[%{time:15:04:05.000}] [%{module}] [%{level}]%{color:reset} %{message}`,
)

func setupLogging(ctx *cli.Context) {
	backend := logging.NewBackendFormatter(logging.NewLogBackend(os.Stderr, "", 0), format)
	leveled := logging.AddModuleLevel(backend)
	if ctx.GlobalBool("v") {
		leveled.SetLevel(logging.DEBUG, "")
	} else {
		leveled.SetLevel(logging.INFO, "")
	}
	logging.SetBackend(leveled)
}

func main() {
	app := cli.NewApp()
	app.Name = "lightbake"
	app.Usage = "bake static bounce lighting into a scene"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "bake",
			Usage: "bake bounce lights for a scene definition",
			Description: `
Load a scene definition (lights plus static collider geometry) from a JSON
file, trace a batch of rays from every light through a fixed number of
bounces and spawn an approximating point light at every surface hit.`,
			ArgsUsage: "scene.json",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "rays",
					Value: 64,
					Usage: "ray slots traced per light",
				},
				cli.IntFlag{
					Name:  "bounces",
					Value: 2,
					Usage: "bounce iterations per light",
				},
				cli.Float64Flag{
					Name:  "radius",
					Value: 5.0,
					Usage: "seed spread and spawned light range",
				},
				cli.Float64Flag{
					Name:  "bleeding",
					Value: 0.2,
					Usage: "offset of spawned lights off the hit surface",
				},
				cli.Float64Flag{
					Name:  "max-distance",
					Value: 100.0,
					Usage: "upper bound on ray travel distance",
				},
				cli.Uint64Flag{
					Name:  "layer-mask",
					Value: uint64(lightbake.LayerAll),
					Usage: "collision layer filter applied to every ray",
				},
				cli.Int64Flag{
					Name:  "seed",
					Usage: "sampling seed; 0 picks a time-based one",
				},
				cli.IntFlag{
					Name:  "workers",
					Usage: "raycast worker count; 0 uses all CPUs",
				},
			},
			Action: bakeScene,
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}

func bakeScene(ctx *cli.Context) error {
	setupLogging(ctx)

	if ctx.NArg() != 1 {
		return errors.New("missing scene file argument")
	}

	scene, err := lightbake.LoadSceneFile(ctx.Args().First())
	if err != nil {
		return err
	}
	if len(scene.Lights) == 0 {
		return errors.New("scene defines no lights to bake from")
	}

	cfg := lightbake.BounceLightConfig{
		RaysPerLight:   ctx.Int("rays"),
		MaxBounces:     ctx.Int("bounces"),
		LightRadius:    float32(ctx.Float64("radius")),
		LightBleeding:  float32(ctx.Float64("bleeding")),
		LayerMask:      lightbake.LayerMask(ctx.Uint64("layer-mask")),
		MaxRayDistance: float32(ctx.Float64("max-distance")),
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger.Noticef("baking %s: %d surfaces, %d lights", ctx.Args().First(), len(scene.Surfaces), len(scene.Lights))

	app := lightbake.NewAppBuilder().
		UseModule(
			lightbake.LoggingModule{Prefix: "lightbake", Debug: ctx.GlobalBool("v")},
			lightbake.HierarchyModule{},
			lightbake.BounceLightModule{
				Config:  cfg,
				Seed:    ctx.Int64("seed"),
				Workers: ctx.Int("workers"),
			},
		).
		Build()

	if err := lightbake.LoadScene(app.Commands(), scene); err != nil {
		return err
	}
	app.FlushCommands()

	app.Run()

	displayBakeStats(lightbake.Resource[lightbake.BakeStats](app))
	return nil
}

func displayBakeStats(stats *lightbake.BakeStats) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Light", "Rays", "Hits", "Spawned", "Trace time"})
	for _, light := range stats.PerLight {
		table.Append([]string{
			fmt.Sprintf("%d", light.Entity),
			fmt.Sprintf("%d", light.RaysCast),
			fmt.Sprintf("%d", light.Hits),
			fmt.Sprintf("%d", light.LightsSpawned),
			light.Duration.String(),
		})
	}
	table.SetFooter([]string{"TOTAL", fmt.Sprintf("%d", stats.RaysCast), fmt.Sprintf("%d", stats.Hits), fmt.Sprintf("%d", stats.LightsSpawned), stats.Duration().String()})
	table.Render()

	logger.Noticef("bake %s complete", stats.RunId)
}
