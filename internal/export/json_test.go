package export

import (
	"testing"

	"github.com/goccy/go-json"

	"github.com/dylan7474/planetaryLogger/internal/kepler"
	"github.com/dylan7474/planetaryLogger/internal/propagation"
)

func TestJSONRowLongitudes(t *testing.T) {
	row := propagation.Row{Date: day, Positions: []kepler.Position{pos(0, 1, 0), kepler.NaNPosition()}}
	got := NewJSONRow(row, Longitude)

	if got.Date != "2024-01-01" || got.JD != 2460310.5 {
		t.Errorf("date = %q jd = %v, want 2024-01-01 2460310.5", got.Date, got.JD)
	}
	if got.Positions != nil {
		t.Errorf("positions set in longitude mode: %v", got.Positions)
	}
	if len(got.Longitudes) != 2 || got.Longitudes[0] == nil || *got.Longitudes[0] != 90 {
		t.Fatalf("longitudes = %v, want [90 null]", got.Longitudes)
	}
	if got.Longitudes[1] != nil {
		t.Errorf("invalid body longitude = %v, want nil", *got.Longitudes[1])
	}

	data, err := json.Marshal(got)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"date":"2024-01-01","jd":2460310.5,"longitudes":[90,null]}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}
}

func TestJSONRowVectors(t *testing.T) {
	row := propagation.Row{Date: day, Positions: []kepler.Position{kepler.NaNPosition(), pos(1, -0.5, 0.25)}}
	got := NewJSONRow(row, Vector)

	if got.Longitudes != nil {
		t.Errorf("longitudes set in vector mode: %v", got.Longitudes)
	}
	data, err := json.Marshal(got)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"date":"2024-01-01","jd":2460310.5,"positions":[null,{"x":1,"y":-0.5,"z":0.25}]}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}
}
