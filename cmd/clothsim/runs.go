package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/clothsim/internal/analysis"
	"github.com/san-kum/clothsim/internal/export"
	"github.com/san-kum/clothsim/internal/mesh"
	"github.com/san-kum/clothsim/internal/storage"
	"github.com/san-kum/clothsim/internal/viz"
)

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := storage.New(dataDir).List()
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("no runs found")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPRESET\tBACKEND\tTIME\tGRID\tITER\tFRAMES\tSAG")
			for _, run := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%.4f\n",
					run.ID,
					run.Preset,
					run.Backend,
					run.Timestamp.Format("2006-01-02 15:04:05"),
					run.GridSize,
					run.Iterations,
					run.Frames,
					run.Metrics["sag"],
				)
			}
			return w.Flush()
		},
	}
}

func plotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot the per-frame series of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := storage.New(dataDir)
			meta, err := st.Load(args[0])
			if err != nil {
				return err
			}
			series, err := st.LoadSeries(args[0])
			if err != nil {
				return err
			}
			if len(series.Rows) == 0 {
				return fmt.Errorf("no data to plot")
			}

			fmt.Printf("run: %s\n", meta.ID)
			fmt.Printf("backend: %s, grid %dx%d\n", meta.Backend, meta.GridSize, meta.GridSize)
			fmt.Printf("frames: %d\n\n", len(series.Rows))
			for _, name := range series.Names {
				col, _ := series.Column(name)
				fmt.Println(asciigraph.Plot(col,
					asciigraph.Height(10),
					asciigraph.Width(80),
					asciigraph.Caption(name),
				))
				fmt.Println()
			}
			return nil
		},
	}
}

func exportCSVCmd() *cobra.Command {
	var final bool
	cmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run data to CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := storage.New(dataDir)
			w := csv.NewWriter(os.Stdout)
			defer w.Flush()

			if final {
				positions, err := st.LoadFinal(args[0])
				if err != nil {
					return err
				}
				if err := w.Write([]string{"i", "x", "y", "z"}); err != nil {
					return err
				}
				for i, p := range positions {
					row := []string{strconv.Itoa(i), ftoa(float64(p.X)), ftoa(float64(p.Y)), ftoa(float64(p.Z))}
					if err := w.Write(row); err != nil {
						return err
					}
				}
				return nil
			}

			series, err := st.LoadSeries(args[0])
			if err != nil {
				return err
			}
			if err := w.Write(append([]string{"time"}, series.Names...)); err != nil {
				return err
			}
			for i, row := range series.Rows {
				rec := []string{ftoa(series.Times[i])}
				for _, v := range row {
					rec = append(rec, ftoa(v))
				}
				if err := w.Write(rec); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&final, "final", false, "export the final particle positions instead of the series")
	return cmd
}

func ftoa(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

func exportSVGCmd() *cobra.Command {
	var (
		out           string
		column        string
		width, height int
		yaw, pitch    float64
	)
	cmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "render the final cloth, or one series column, to SVG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := storage.New(dataDir)
			var svg string
			if column != "" {
				series, err := st.LoadSeries(args[0])
				if err != nil {
					return err
				}
				ys, ok := series.Column(column)
				if !ok {
					return fmt.Errorf("run %s has no column %q (have %v)", args[0], column, series.Names)
				}
				svg = export.SeriesToSVG(series.Times, ys, width, height, "#00ffcc")
			} else {
				meta, err := st.Load(args[0])
				if err != nil {
					return err
				}
				positions, err := st.LoadFinal(args[0])
				if err != nil {
					return err
				}
				grid, err := mesh.Build(meta.GridSize, meta.GridSize, meta.Side)
				if err != nil {
					return err
				}
				if len(positions) != grid.NumVertices() {
					return fmt.Errorf("run %s: %d positions for a %dx%d grid", args[0], len(positions), meta.GridSize, meta.GridSize)
				}
				cam := viz.NewCamera()
				cam.Yaw, cam.Pitch = yaw, pitch
				svg = export.MeshToSVG(export.Mesh{
					Positions: positions,
					Indices:   grid.Indices,
					Pins:      grid.Corners[:],
				}, cam, width, height)
			}
			if svg == "" {
				return fmt.Errorf("nothing to draw")
			}
			if out == "" {
				out = args[0] + ".svg"
			}
			if err := os.WriteFile(out, []byte(svg), 0o644); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (default <run_id>.svg)")
	cmd.Flags().StringVar(&column, "series", "", "plot this series column instead of the mesh")
	cmd.Flags().IntVar(&width, "width", 800, "image width")
	cmd.Flags().IntVar(&height, "height", 600, "image height")
	cmd.Flags().Float64Var(&yaw, "yaw", 0.6, "camera yaw")
	cmd.Flags().Float64Var(&pitch, "pitch", 0.5, "camera pitch")
	return cmd
}

func analyzeCmd() *cobra.Command {
	var column string
	cmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "frequency response of a series against the driver",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := storage.New(dataDir)
			meta, err := st.Load(args[0])
			if err != nil {
				return err
			}
			series, err := st.LoadSeries(args[0])
			if err != nil {
				return err
			}
			ys, ok := series.Column(column)
			if !ok {
				return fmt.Errorf("run %s has no column %q (have %v)", args[0], column, series.Names)
			}

			var driverFreq float64
			if meta.Driver.Enabled {
				driverFreq = float64(meta.Driver.Frequency)
			}
			resp, err := analysis.Response(ys, meta.Dt, driverFreq)
			if err != nil {
				return err
			}
			spec, err := analysis.ComputeSpectrum(ys, meta.Dt)
			if err != nil {
				return err
			}

			fmt.Printf("frequency analysis: %s\n", meta.ID)
			fmt.Printf("series: %s, %d samples, resolution %.3f hz\n\n", column, len(ys), resp.Resolution)
			plot := spec.Amplitude[:max(len(spec.Amplitude)/4, 2)]
			fmt.Println(asciigraph.Plot(plot,
				asciigraph.Height(15),
				asciigraph.Width(80),
				asciigraph.Caption("amplitude spectrum ("+column+")"),
			))
			fmt.Println()
			fmt.Printf("dominant frequency: %.3f hz (amplitude %.4f)\n", resp.Peak, resp.PeakAmp)
			if resp.Peak > 0 {
				fmt.Printf("period: %.3f s\n", 1/resp.Peak)
			}
			if driverFreq > 0 {
				fmt.Printf("driver: %.3f hz, amplitude at driver %.4f\n", driverFreq, resp.DriverAmp)
			}
			fmt.Printf("steady swing: %.4f\n", resp.Swing)
			return nil
		},
	}
	cmd.Flags().StringVar(&column, "series", "center_y", "series column to analyze")
	return cmd
}

func phaseCmd() *cobra.Command {
	var column string
	cmd := &cobra.Command{
		Use:   "phase [run_id]",
		Short: "phase plot of a series against its rate of change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := storage.New(dataDir)
			meta, err := st.Load(args[0])
			if err != nil {
				return err
			}
			series, err := st.LoadSeries(args[0])
			if err != nil {
				return err
			}
			ys, ok := series.Column(column)
			if !ok {
				return fmt.Errorf("run %s has no column %q (have %v)", args[0], column, series.Names)
			}
			p := analysis.NewPhasePortrait(ys, meta.Dt)
			if p == nil {
				return fmt.Errorf("no data to plot")
			}
			fmt.Printf("phase space plot: %s\n", meta.ID)
			fmt.Printf("x: %s, y: d%s/dt\n\n", column, column)
			fmt.Print(p.ASCII(70, 20))
			return nil
		},
	}
	cmd.Flags().StringVar(&column, "series", "center_y", "series column to plot")
	return cmd
}
