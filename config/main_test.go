package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

func writeConfig(t *testing.T, data string) string {
	path := filepath.Join(t.TempDir(), "senro.json")
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write: %s", err)
	}
	return path
}

func TestDefaultValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default: %s", err)
	}
}

func TestLoad(t *testing.T) {
	form := uuid.MustParse("a7453d82-d52f-43ec-84d2-54dcea72f8c1")
	path := writeConfig(t, `{
	"rail": {"min-delta": 0.3},
	"plan": {"max-length": 150, "min-delta": 0.3},
	"train": {
		"seed": 42,
		"spacing": 6,
		"calibration": [{"form": "a7453d82-d52f-43ec-84d2-54dcea72f8c1", "points": [[0, 0], [100, 20]]}]
	},
	"kujo": {"addr": ""}
}`)
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %s", err)
	}
	want := Default()
	want.Rail.MinDelta = 0.3
	want.Plan.MaxLength = 150
	want.Plan.MinDelta = 0.3
	want.Train.Seed = 42
	want.Train.Spacing = 6
	want.Train.Calibration = []Calibration{{Form: form, Points: [][2]float64{{0, 0}, {100, 20}}}}
	want.Kujo.Addr = ""
	if !cmp.Equal(got, want) {
		t.Fatalf("config: %s", cmp.Diff(want, got))
	}
}

func TestLoadErrors(t *testing.T) {
	cases := map[string]string{
		"syntax":        `{"plan": `,
		"max below min": `{"plan": {"min-length": 20, "max-length": 10}}`,
		"radius":        `{"rail": {"intersection-radius": 0}}`,
		"no form":       `{"train": {"calibration": [{"points": [[0, 0]]}]}}`,
		"min delta":     `{"rail": {"min-delta": 0.5}, "plan": {"min-delta": 0.3}}`,
		"spacing":       `{"train": {"spacing": -1}}`,
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, data)); err == nil {
				t.Fatal("no error")
			}
		})
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("missing file loaded")
	}
}
