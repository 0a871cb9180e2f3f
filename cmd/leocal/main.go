package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/CK6170/Leocal-go/lleo"
	"github.com/CK6170/Leocal-go/models"
	"github.com/CK6170/Leocal-go/modern"
	"github.com/CK6170/Leocal-go/ui"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		ui.Errorf("%v\n", err)
		code := 1
		var ec cli.ExitCoder
		if errors.As(err, &ec) {
			code = ec.ExitCode()
		}
		os.Exit(code)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "leocal",
		Usage:   "calibrate Little Leonardo accelerometer channels",
		Version: modern.ToolVersion(),
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "sample-f",
				Aliases: []string{"f"},
				Usage:   "keep every n-th sample when loading data",
				EnvVars: []string{"LEOCAL_SAMPLE_F"},
				Value:   modern.DefaultSampleF,
			},
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "debug logging",
				EnvVars: []string{"LEOCAL_DEBUG"},
			},
		},
		// main owns the exit code
		ExitErrHandler: func(*cli.Context, error) {},
		Before: func(c *cli.Context) error {
			level := slog.LevelInfo
			if c.Bool("debug") {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "calibrate",
				Usage: "walk every data directory below --data-root and fit the ready channels",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "data-root", Usage: "directory holding one sub-directory per experiment", Required: true},
					&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "fit without asking"},
				},
				Action: calibrateCmd,
			},
			{
				Name:      "set",
				Usage:     "store the sample-index bounds of a reference region",
				ArgsUsage: "DIR PARAMETER lower|upper START END",
				Action:    setCmd,
			},
			{
				Name:      "fit",
				Usage:     "fit one parameter, or every channel with both regions set",
				ArgsUsage: "DIR [PARAMETER]",
				Action:    fitCmd,
			},
			{
				Name:      "show",
				Usage:     "print the stored calibration",
				ArgsUsage: "DIR",
				Action:    showCmd,
			},
			{
				Name:      "check",
				Usage:     "evaluate stored fits against the reference regions",
				ArgsUsage: "DIR",
				Action:    checkCmd,
			},
			{
				Name:      "apply",
				Usage:     "write the data with calibrated <parameter>_g columns as CSV",
				ArgsUsage: "DIR [PARAMETER...]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output file (default DIR/<experiment>_calibrated.csv)"},
				},
				Action: applyCmd,
			},
			{
				Name:      "plot",
				Usage:     "render a channel with its reference regions to PNG",
				ArgsUsage: "DIR PARAMETER",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output file (default DIR/<parameter>.png)"},
					&cli.IntFlag{Name: "width", Aliases: []string{"W"}, Value: 960, Usage: "width in points"},
					&cli.IntFlag{Name: "height", Aliases: []string{"H"}, Value: 360, Usage: "height in points"},
				},
				Action: plotCmd,
			},
		},
	}
}

func openSession(c *cli.Context, dir string) (*modern.Session, error) {
	sess, err := modern.Open(c.Context, dir, modern.OpenOptions{SampleF: c.Int("sample-f")})
	if err != nil {
		return nil, err
	}
	if sess.Skewed() {
		ui.Warningf("cal.yml was written by tool version %s (running %s); refit to be safe\n",
			sess.Store.ToolVersion, sess.Version)
	}
	return sess, nil
}

func argDir(c *cli.Context) (string, error) {
	dir := c.Args().First()
	if dir == "" {
		return "", cli.Exit("missing data directory", 2)
	}
	return filepath.Clean(dir), nil
}

// setCmd only touches cal.yml; bounds are checked against the data when fitting.
func setCmd(c *cli.Context) error {
	if c.NArg() != 5 {
		return cli.Exit("usage: leocal set "+c.Command.ArgsUsage, 2)
	}
	dir, param, bound := c.Args().Get(0), c.Args().Get(1), c.Args().Get(2)
	start, err := strconv.ParseInt(c.Args().Get(3), 10, 64)
	if err != nil {
		return cli.Exit("START: "+err.Error(), 2)
	}
	end, err := strconv.ParseInt(c.Args().Get(4), 10, 64)
	if err != nil {
		return cli.Exit("END: "+err.Error(), 2)
	}

	path := modern.CalPath(dir)
	version := modern.ToolVersion()
	st, err := modern.LoadOrCreate(path, version)
	if err != nil {
		return err
	}
	if err := st.UpdateRegion(param, bound, start, end); err != nil {
		return err
	}
	st.ToolVersion = version
	if err := modern.Save(path, st); err != nil {
		return err
	}
	ch, _ := st.Channel(param)
	ui.Greenf("%s/%s = [%d, %d] (%s)\n", models.NormalizeParameter(param), strings.ToLower(bound), start, end, ch.State())
	return nil
}

func fitCmd(c *cli.Context) error {
	dir, err := argDir(c)
	if err != nil {
		return err
	}
	sess, err := openSession(c, dir)
	if err != nil {
		return err
	}
	if param := c.Args().Get(1); param != "" {
		poly, err := sess.Fit(param)
		if err != nil {
			return err
		}
		ui.Greenf("%s: slope=%.10g intercept=%.10g\n", models.NormalizeParameter(param), poly.Slope(), poly.Intercept())
		return nil
	}
	return fitAll(sess)
}

func fitAll(sess *modern.Session) error {
	results, err := sess.FitAll()
	if err != nil {
		return err
	}
	if len(results) == 0 {
		ui.Warningf("%s: no channel has both regions set\n", sess.Store.Experiment)
		return nil
	}
	failed := 0
	for _, name := range sess.Store.ChannelNames() {
		ferr, ran := results[name]
		switch {
		case !ran:
		case ferr != nil:
			failed++
			ui.Errorf("%s: %v\n", name, ferr)
		default:
			p := sess.Store.Channels[name].Poly
			ui.Greenf("%s: slope=%.10g intercept=%.10g\n", name, p.Slope(), p.Intercept())
		}
	}
	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d channel(s) could not be fitted", failed), 1)
	}
	return nil
}

func showCmd(c *cli.Context) error {
	dir, err := argDir(c)
	if err != nil {
		return err
	}
	st, err := modern.LoadOrCreate(modern.CalPath(dir), modern.ToolVersion())
	if err != nil {
		return err
	}
	fmt.Fprintf(ui.Out, "experiment:    %s\nmodified:      %s\ntool version:  %s\n\n", st.Experiment, st.DateModified, st.ToolVersion)
	fmt.Fprint(ui.Out, channelTable(st))
	return nil
}

func fmtRegion(r *models.Region) string {
	if r == nil {
		return "-"
	}
	f := func(v *int64) string {
		if v == nil {
			return "?"
		}
		return strconv.FormatInt(*v, 10)
	}
	return "[" + f(r.Start) + ", " + f(r.End) + "]"
}

func channelTable(st *models.Store) string {
	rows := make([][]string, 0, len(st.Channels))
	for _, name := range st.ChannelNames() {
		ch := st.Channels[name]
		slope, intercept := "-", "-"
		if ch.Poly != nil {
			slope = strconv.FormatFloat(ch.Poly.Slope(), 'g', 10, 64)
			intercept = strconv.FormatFloat(ch.Poly.Intercept(), 'g', 10, 64)
		}
		rows = append(rows, []string{name, string(ch.State()), fmtRegion(ch.Lower), fmtRegion(ch.Upper), slope, intercept})
	}
	return ui.Table([]string{"parameter", "state", "lower", "upper", "slope", "intercept"}, rows)
}

func checkCmd(c *cli.Context) error {
	dir, err := argDir(c)
	if err != nil {
		return err
	}
	sess, err := openSession(c, dir)
	if err != nil {
		return err
	}
	checks, err := modern.ComputeCheckSnapshot(sess.Table, sess.Store)
	if err != nil {
		return err
	}
	var rows [][]string
	for _, cc := range checks {
		for _, rc := range cc.Regions {
			g := "-"
			if rc.Calibrated != nil {
				g = fmt.Sprintf("%+.4f ± %.4f", rc.Calibrated.Mean, rc.Calibrated.StdDev)
			}
			rows = append(rows, []string{
				cc.Parameter, string(rc.Bound), strconv.Itoa(rc.Raw.Count),
				fmt.Sprintf("%.2f", rc.Raw.Mean), g, fmt.Sprintf("%+.0f", rc.Expected),
			})
		}
		if cc.Error != "" {
			ui.Warningf("%s: %s\n", cc.Parameter, cc.Error)
		}
		if cc.Poly != nil {
			slog.Debug("residual", "parameter", cc.Parameter, "rms", cc.ResidualRMS)
		}
	}
	fmt.Fprint(ui.Out, ui.Table([]string{"parameter", "bound", "n", "raw mean", "calibrated (g)", "expected"}, rows))
	return nil
}

func applyCmd(c *cli.Context) error {
	dir, err := argDir(c)
	if err != nil {
		return err
	}
	sess, err := openSession(c, dir)
	if err != nil {
		return err
	}
	out, err := modern.ApplyPoly(sess.Table, sess.Store, c.Args().Tail()...)
	if err != nil {
		return err
	}
	path := c.String("out")
	if path == "" {
		path = filepath.Join(dir, sess.Store.Experiment+"_calibrated.csv")
	}
	if err := modern.SaveCSV(path, out); err != nil {
		return err
	}
	ui.Greenf("wrote %s (%d rows)\n", path, out.Len())
	return nil
}

func plotCmd(c *cli.Context) error {
	dir, err := argDir(c)
	if err != nil {
		return err
	}
	param := c.Args().Get(1)
	if param == "" {
		return cli.Exit("missing parameter", 2)
	}
	sess, err := openSession(c, dir)
	if err != nil {
		return err
	}
	png, err := modern.RenderChannelPlot(sess.Table, sess.Store, param, c.Int("width"), c.Int("height"))
	if err != nil {
		return err
	}
	path := c.String("out")
	if path == "" {
		path = filepath.Join(dir, models.NormalizeParameter(param)+".png")
	}
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return err
	}
	ui.Greenf("wrote %s\n", path)
	return nil
}

// calibrateCmd visits each data directory in turn: f fits the ready
// channels, s skips the directory, Esc stops.
func calibrateCmd(c *cli.Context) error {
	dirs, err := lleo.ScanDataDirs(c.String("data-root"))
	if err != nil {
		return err
	}
	auto := c.Bool("yes") || !ui.Interactive()
	var keys chan rune
	if !auto {
		keys = ui.StartKeyEvents()
	}

	for i, dir := range dirs {
		ui.Greenf("\n[%d/%d] %s\n", i+1, len(dirs), filepath.Base(dir))
		sess, err := openSession(c, dir)
		if err != nil {
			var ce *models.ConfigCorruptError
			if errors.As(err, &ce) {
				ui.Errorf("%v\n", err)
				continue
			}
			ui.Warningf("skipping: %v\n", err)
			continue
		}
		fmt.Fprint(ui.Out, channelTable(sess.Store))

		if !auto {
			ui.DrainKeys()
			fmt.Fprint(ui.Out, "f = fit, s = skip, Esc = quit: ")
			r, ok := ui.WaitKey(keys, "fs")
			fmt.Fprintln(ui.Out)
			switch {
			case !ok || r == ui.KeyEsc:
				return nil
			case r == 's':
				continue
			}
		}
		if err := fitAll(sess); err != nil {
			var ec cli.ExitCoder
			if errors.As(err, &ec) {
				continue
			}
			return err
		}
	}
	return nil
}
