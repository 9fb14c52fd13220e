package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/san-kum/clothsim/internal/drive"
	"github.com/san-kum/clothsim/internal/pbd"
)

const (
	metadataFile = "metadata.json"
	seriesFile   = "series.csv"
	finalFile    = "final.csv"
)

type Store struct {
	baseDir string
	now     func() time.Time
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir, now: time.Now}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID          string             `json:"id"`
	Preset      string             `json:"preset,omitempty"`
	Backend     string             `json:"backend"`
	Timestamp   time.Time          `json:"timestamp"`
	GridSize    int                `json:"grid_size"`
	Side        float32            `json:"side"`
	Iterations  int                `json:"iterations"`
	Substeps    int                `json:"substeps"`
	Gravity     bool               `json:"gravity"`
	Driver      drive.Oscillator   `json:"driver"`
	Dt          float64            `json:"dt"`
	Duration    float64            `json:"duration"`
	Frames      int                `json:"frames"`
	Dropped     uint64             `json:"dropped"`
	WallSeconds float64            `json:"wall_seconds"`
	Metrics     map[string]float64 `json:"metrics"`
}

// Series is a per-frame table of named values.
type Series struct {
	Names []string
	Times []float64
	Rows  [][]float64
}

// Column returns the values of the named column.
func (s Series) Column(name string) ([]float64, bool) {
	k := slices.Index(s.Names, name)
	if k < 0 {
		return nil, false
	}
	out := make([]float64, 0, len(s.Rows))
	for _, row := range s.Rows {
		if k < len(row) {
			out = append(out, row[k])
		}
	}
	return out, true
}

// Save writes a run and returns its ID. meta.ID and meta.Timestamp are
// assigned here.
func (s *Store) Save(meta RunMetadata, series Series, final []pbd.Vec3) (string, error) {
	now := s.now()
	meta.ID = fmt.Sprintf("%s_%d_%d", meta.Backend, meta.GridSize, now.UnixNano())
	meta.Timestamp = now
	runDir := filepath.Join(s.baseDir, meta.ID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := writeSeries(filepath.Join(runDir, seriesFile), series); err != nil {
		return "", err
	}
	if err := writeFinal(filepath.Join(runDir, finalFile), final); err != nil {
		return "", err
	}
	return meta.ID, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeCSV(path string, header []string, rows func(w *csv.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := rows(w); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func writeSeries(path string, series Series) error {
	header := append([]string{"time"}, series.Names...)
	return writeCSV(path, header, func(w *csv.Writer) error {
		for i, row := range series.Rows {
			rec := make([]string, 0, len(row)+1)
			rec = append(rec, formatFloat(series.Times[i]))
			for _, v := range row {
				rec = append(rec, formatFloat(v))
			}
			if err := w.Write(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeFinal(path string, positions []pbd.Vec3) error {
	return writeCSV(path, []string{"x", "y", "z"}, func(w *csv.Writer) error {
		for _, p := range positions {
			rec := []string{
				strconv.FormatFloat(float64(p.X), 'g', -1, 32),
				strconv.FormatFloat(float64(p.Y), 'g', -1, 32),
				strconv.FormatFloat(float64(p.Z), 'g', -1, 32),
			}
			if err := w.Write(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// List returns every stored run, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	slices.SortFunc(runs, func(a, b RunMetadata) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode %s metadata: %w", runID, err)
	}
	return &meta, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	return r.ReadAll()
}

func (s *Store) LoadSeries(runID string) (Series, error) {
	records, err := readCSV(filepath.Join(s.baseDir, runID, seriesFile))
	if err != nil {
		return Series{}, err
	}
	if len(records) == 0 {
		return Series{}, nil
	}

	series := Series{Names: records[0][1:]}
	for i := 1; i < len(records); i++ {
		record := records[i]
		if len(record) == 0 {
			continue
		}
		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return Series{}, fmt.Errorf("%s line %d: %w", seriesFile, i+1, err)
		}
		row := make([]float64, 0, len(record)-1)
		for _, field := range record[1:] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return Series{}, fmt.Errorf("%s line %d: %w", seriesFile, i+1, err)
			}
			row = append(row, v)
		}
		series.Times = append(series.Times, t)
		series.Rows = append(series.Rows, row)
	}
	return series, nil
}

// LoadFinal returns the particle positions of the last frame of a run.
func (s *Store) LoadFinal(runID string) ([]pbd.Vec3, error) {
	records, err := readCSV(filepath.Join(s.baseDir, runID, finalFile))
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	out := make([]pbd.Vec3, 0, len(records)-1)
	for i, record := range records[1:] {
		if len(record) != 3 {
			return nil, fmt.Errorf("%s line %d: want 3 fields, got %d", finalFile, i+2, len(record))
		}
		var xyz [3]float32
		for k, field := range record {
			v, err := strconv.ParseFloat(field, 32)
			if err != nil {
				return nil, fmt.Errorf("%s line %d: %w", finalFile, i+2, err)
			}
			xyz[k] = float32(v)
		}
		out = append(out, pbd.V(xyz[0], xyz[1], xyz[2]))
	}
	return out, nil
}
