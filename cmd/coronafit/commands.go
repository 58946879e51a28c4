package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/coronafit/internal/config"
	"github.com/banshee-data/coronafit/internal/fit"
	"github.com/banshee-data/coronafit/internal/frames"
	"github.com/banshee-data/coronafit/internal/job"
	"github.com/banshee-data/coronafit/internal/kinematics"
	"github.com/banshee-data/coronafit/internal/monitoring"
	"github.com/banshee-data/coronafit/internal/report"
	"github.com/banshee-data/coronafit/internal/security"
	"github.com/banshee-data/coronafit/internal/sequence"
	"github.com/banshee-data/coronafit/internal/timeutil"
	"github.com/banshee-data/coronafit/internal/units"
	"github.com/banshee-data/coronafit/internal/version"
)

// errNoFits is returned when every timestamp of a job failed.
var errNoFits = errors.New("no timestamp could be fitted")

// app carries state shared by the subcommands.
type app struct {
	stdout io.Writer
	stderr io.Writer

	configPath string
	verbose    bool
	trace      bool

	cfg    *config.Config
	closer io.Closer
	clock  timeutil.Clock
}

func newRootCmd(stdout, stderr io.Writer, clock timeutil.Clock) *cobra.Command {
	return newApp(stdout, stderr, clock).rootCmd()
}

func newApp(stdout, stderr io.Writer, clock timeutil.Clock) *app {
	return &app{stdout: stdout, stderr: stderr, clock: clock}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "coronafit",
		Short: "Fit geometric CME models to coronagraph marks",
		Long: `coronafit reconstructs the 3-D shape of a coronal mass ejection from
operator marks on one or more coronagraph images, one timestamp at a time,
and derives the front's speed and acceleration from the fitted heights.`,
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  func(cmd *cobra.Command, args []string) error { return a.setup() },
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error { return a.teardown() },
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "JSON config file; built-in defaults when empty")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log diagnostics")
	root.PersistentFlags().BoolVar(&a.trace, "trace", false, "log per-iteration telemetry")

	root.AddCommand(a.newFitCmd())
	root.AddCommand(a.newKinematicsCmd())
	root.AddCommand(newVersionCmd())
	return root
}

// setup loads the configuration and routes every package's log streams.
func (a *app) setup() error {
	cfg := config.EmptyConfig()
	if a.configPath != "" {
		loaded, err := config.LoadConfig(a.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	a.cfg = cfg

	w, closer := monitoring.Open(monitoring.FileOptions{
		Filename:   cfg.GetLogFile(),
		MaxSizeMB:  cfg.GetLogMaxSizeMB(),
		MaxBackups: cfg.GetLogMaxBackups(),
		Console:    a.stderr,
	})
	a.closer = closer
	monitoring.UseWriter(w)

	var diag, trace io.Writer
	if a.verbose || a.trace {
		diag = w
	}
	if a.trace {
		trace = w
	}
	fit.SetLogWriters(w, diag, trace)
	frames.SetLogWriters(w, diag, trace)
	kinematics.SetLogWriters(w, diag, trace)
	return nil
}

// closing runs fn and then closes the log file. Cobra skips
// PersistentPostRunE when RunE fails.
func (a *app) closing(fn func(cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		defer func() {
			if cerr := a.teardown(); err == nil {
				err = cerr
			}
		}()
		return fn(cmd, args)
	}
}

func (a *app) teardown() error {
	if a.closer == nil {
		return nil
	}
	err := a.closer.Close()
	a.closer = nil
	return err
}

func (a *app) newFitCmd() *cobra.Command {
	var jobPath, outPath, outDir string

	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Fit the model at every timestamp of a job",
		Long: `Read a job file (observers, marks per timestamp, model and seed), fit
every timestamp on a worker pool and write the fitted sequence as an
interchange record.`,
		Args: cobra.NoArgs,
		RunE: a.closing(func(cmd *cobra.Command, args []string) error {
			j, err := job.Load(jobPath)
			if err != nil {
				return err
			}
			rec, err := a.runFit(cmd, j)
			if err != nil {
				return err
			}
			if outDir != "" && !cmd.Flags().Changed("out") {
				if outPath, err = security.ExportPath(outDir, rec.ModelID(), ".json"); err != nil {
					return err
				}
			}
			return a.writeRecord(outPath, rec)
		}),
	}
	cmd.Flags().StringVar(&jobPath, "job", "", "job file (.json)")
	cmd.Flags().StringVar(&outPath, "out", "-", "output record path, - for stdout")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "write the record as <model id>.json in this directory unless --out is set")
	_ = cmd.MarkFlagRequired("job")
	return cmd
}

func (a *app) runFit(cmd *cobra.Command, j *job.Job) (report.Record, error) {
	kind, err := j.Kind()
	if err != nil {
		return report.Record{}, err
	}
	src, err := j.Source(a.cfg)
	if err != nil {
		return report.Record{}, err
	}
	reqs, err := j.Requests(src)
	if err != nil {
		return report.Record{}, err
	}

	fcfg := fit.FitConfigFromConfig(a.cfg)
	start := a.clock.Now()
	outcomes := fit.FitAll(cmd.Context(), fcfg, reqs)

	seq, err := sequence.New(j.Event, kind)
	if err != nil {
		return report.Record{}, err
	}
	var failed int
	for i, o := range outcomes {
		at := reqs[i].Time.Format(time.RFC3339)
		if o.Err != nil {
			failed++
			monitoring.Logf("fit %s: %v", at, o.Err)
			continue
		}
		if !o.Result.Converged {
			monitoring.Logf("fit %s: not converged after %d iterations (rms %.2f px)", at, o.Result.Iterations, o.Result.RMS)
		}
		for _, v := range o.Result.Views {
			if !v.Active {
				monitoring.Logf("fit %s: view %s skipped: %v", at, v.Observer, v.Err)
			}
		}
		if err := seq.Insert(o.Result); err != nil {
			return report.Record{}, err
		}
	}
	if seq.Len() == 0 {
		return report.Record{}, fmt.Errorf("%w (%d failed)", errNoFits, failed)
	}
	if idx := seq.NonMonotonic(); len(idx) > 0 {
		monitoring.Logf("%s: height decreases at entries %v", seq.ModelID(), idx)
	}
	monitoring.Logf("%s: fitted %d of %d timestamps in %s", seq.ModelID(), seq.Len(), len(reqs), a.clock.Since(start).Round(time.Millisecond))
	return report.FromSequence(seq, a.clock.Now())
}

func (a *app) writeRecord(path string, rec report.Record) error {
	if path == "" || path == "-" {
		return report.Encode(a.stdout, rec)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.Encode(f, rec); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (a *app) newKinematicsCmd() *cobra.Command {
	var inPath, pngPath, speedPNGPath, htmlPath, outPath, outDir string

	cmd := &cobra.Command{
		Use:   "kinematics",
		Short: "Derive speed and acceleration from a fitted sequence",
		Long: `Read an interchange record, fit the leading-edge height-time series and
print the velocity profile. Optionally render height-time and speed-time
charts and write the full profile as JSON.`,
		Args: cobra.NoArgs,
		RunE: a.closing(func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(inPath)
			if err != nil {
				return err
			}
			rec, err := report.Decode(f)
			f.Close()
			if err != nil {
				return err
			}
			samples, err := rec.Samples()
			if err != nil {
				return err
			}
			prof, err := kinematics.Estimate(samples, kinematics.KinematicsConfigFromConfig(a.cfg))
			if err != nil {
				return err
			}
			if len(prof.NonMonotonic) > 0 {
				monitoring.Logf("%s: height decreases at samples %v", rec.ModelID(), prof.NonMonotonic)
			}
			a.printProfile(rec.EventSelected, prof)
			if outDir != "" {
				for _, o := range []struct {
					path   *string
					suffix string
				}{
					{&pngPath, "_ht.png"},
					{&speedPNGPath, "_st.png"},
					{&htmlPath, "_kinematics.html"},
					{&outPath, "_profile.json"},
				} {
					if *o.path != "" {
						continue
					}
					if *o.path, err = security.ExportPath(outDir, rec.ModelID(), o.suffix); err != nil {
						return err
					}
				}
			}
			return a.writeKinematics(rec.EventSelected, samples, prof, pngPath, speedPNGPath, htmlPath, outPath)
		}),
	}
	cmd.Flags().StringVar(&inPath, "in", "", "interchange record written by fit")
	cmd.Flags().StringVar(&pngPath, "png", "", "height-time chart (.png)")
	cmd.Flags().StringVar(&speedPNGPath, "speed-png", "", "speed-time chart (.png)")
	cmd.Flags().StringVar(&htmlPath, "html", "", "interactive kinematics page (.html)")
	cmd.Flags().StringVar(&outPath, "out", "", "profile JSON")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "write every output not given explicitly to this directory, named after the model id")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}

func (a *app) printProfile(event string, prof kinematics.Profile) {
	unit := a.cfg.GetSpeedUnit()
	first, last := prof.Samples[0], prof.Samples[len(prof.Samples)-1]
	fmt.Fprintf(a.stdout, "event %s: %d samples, %s fit, rms %.3f Rsun\n", event, len(prof.Samples), prof.Method, prof.RMS)
	fmt.Fprintf(a.stdout, "  %s  h=%.2f Rsun  v=%.0f±%.0f %s\n", first.Time.UTC().Format(time.RFC3339), first.Height, units.ConvertSpeed(first.Velocity, unit), units.ConvertSpeed(first.VelocitySigma, unit), unit)
	fmt.Fprintf(a.stdout, "  %s  h=%.2f Rsun  v=%.0f±%.0f %s\n", last.Time.UTC().Format(time.RFC3339), last.Height, units.ConvertSpeed(last.Velocity, unit), units.ConvertSpeed(last.VelocitySigma, unit), unit)
	if acc, sigma, err := prof.AccelerationAt(0); err == nil {
		fmt.Fprintf(a.stdout, "  a=%.1f±%.1f m/s²\n", acc, sigma)
	}
}

func (a *app) writeKinematics(event string, samples []sequence.Sample, prof kinematics.Profile, pngPath, speedPNGPath, htmlPath, outPath string) error {
	unit := a.cfg.GetSpeedUnit()
	if pngPath != "" {
		if err := report.HeightTimePNG(pngPath, event, samples, prof); err != nil {
			return err
		}
	}
	if speedPNGPath != "" {
		if err := report.SpeedTimePNG(speedPNGPath, event, prof, unit); err != nil {
			return err
		}
	}
	if htmlPath != "" {
		f, err := os.Create(htmlPath)
		if err != nil {
			return err
		}
		if err := report.KinematicsHTML(f, event, samples, prof, report.HTMLOptions{SpeedUnit: unit}); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	if outPath != "" {
		data, err := json.MarshalIndent(prof, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(outPath, data, 0o644); err != nil {
			return err
		}
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version.String())
		},
	}
}
