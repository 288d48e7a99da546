package gridfield

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wyfcoding/geonear/geo"
	"github.com/wyfcoding/geonear/nearest"
	"github.com/wyfcoding/geonear/storage"
	"github.com/wyfcoding/geonear/xerrors"
)

func TestNew_ValueCountMismatch(t *testing.T) {
	_, err := New("t2m", []float64{1, 2}, []float64{3, 4}, []float64{5})
	if !errors.Is(err, xerrors.ErrInvalidInput) {
		t.Errorf("New() error = %v, want ErrInvalidInput", err)
	}
}

func TestFromRegular(t *testing.T) {
	values := make([]float64, 12)
	for i := range values {
		values[i] = float64(100 + i)
	}
	f, err := FromRegular("grid", 0, 0, 1, 1, 3, 4, values)
	if err != nil {
		t.Fatal(err)
	}
	if f.Len() != 12 {
		t.Fatalf("Len() = %d, want 12", f.Len())
	}
	samples, err := f.Lookup(nearest.NewBruteForce(f.Coords), []geo.Point{{Lat: 1.2, Lon: 2.9}, {Lat: -5, Lon: -5}})
	if err != nil {
		t.Fatal(err)
	}
	if samples[0].Index != 7 || samples[0].Value != 107 {
		t.Errorf("sample 0 = %+v, want index 7 value 107", samples[0])
	}
	if samples[0].Point != (geo.Point{Lat: 1, Lon: 3}) {
		t.Errorf("sample 0 point = %+v, want (1, 3)", samples[0].Point)
	}
	if samples[1].Index != 0 {
		t.Errorf("sample 1 index = %d, want 0", samples[1].Index)
	}

	if _, err := FromRegular("grid", 0, 0, 1, 1, 0, 4, nil); !errors.Is(err, xerrors.ErrInvalidInput) {
		t.Errorf("FromRegular(0 rows) error = %v, want ErrInvalidInput", err)
	}
	if _, err := FromRegular("grid", 85, 0, 5, 1, 3, 1, make([]float64, 3)); !errors.Is(err, xerrors.ErrInvalidInput) {
		t.Errorf("FromRegular(lat beyond pole) error = %v, want ErrInvalidInput", err)
	}
}

func TestLookup_NaNReferencePoint(t *testing.T) {
	f, err := FromRegular("grid", 0, 0, 1, 1, 2, 2, []float64{1, 2, 3, 4})
	if err != nil {
		t.Fatal(err)
	}
	samples, err := f.Lookup(nearest.NewBruteForce(f.Coords), []geo.Point{{Lat: math.NaN(), Lon: 0}})
	if err != nil {
		t.Fatal(err)
	}
	if !math.IsNaN(samples[0].Distance) || !math.IsNaN(samples[0].Value) {
		t.Errorf("sample = %+v, want NaN distance and value", samples[0])
	}
}

func TestLookup_AfterRelease(t *testing.T) {
	f, err := FromRegular("grid", 0, 0, 1, 1, 2, 2, []float64{1, 2, 3, 4})
	if err != nil {
		t.Fatal(err)
	}
	idx, err := nearest.Build(f.Coords)
	if err != nil {
		t.Fatal(err)
	}
	f.Release()
	if _, err := f.Lookup(idx, []geo.Point{{Lat: 0, Lon: 0}}); !errors.Is(err, xerrors.ErrStaleIndex) {
		t.Errorf("Lookup() error = %v, want ErrStaleIndex", err)
	}
}

const stationsCSV = `# surface stations
value, lon, lat, name
281.5, -0.9781, 51.4543, reading
283.0, 0.0005, 51.4769, greenwich
279.25, -1.2577, 51.7520, oxford
`

func TestDecodeCSV(t *testing.T) {
	f, err := DecodeCSV(strings.NewReader(stationsCSV), "stations")
	if err != nil {
		t.Fatal(err)
	}
	if f.Name != "stations" || f.Len() != 3 {
		t.Fatalf("field = %s with %d points", f.Name, f.Len())
	}
	p, err := f.Coords.Point(1)
	if err != nil {
		t.Fatal(err)
	}
	if p.Lat != 51.4769 || p.Lon != 0.0005 || f.Values[1] != 283.0 {
		t.Errorf("row 1 = %+v value %v", p, f.Values[1])
	}
}

func TestDecodeCSV_Errors(t *testing.T) {
	tests := []struct {
		name, body, detail string
	}{
		{"empty", "", "missing header"},
		{"no value column", "lat,lon\n1,2\n", `no "value" column`},
		{"no rows", "lat,lon,value\n", "no data rows"},
		{"bad number", "lat,lon,value\n1,2,3\n1,x,3\n", `line 3: bad lon "x"`},
		{"short row", "a,lat,lon,value\n1,2,3\n", "has 3 columns"},
		{"latitude out of range", "lat,lon,value\n91,0,1\n", "outside [-90, 90]"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeCSV(strings.NewReader(tc.body), "ds")
			if !errors.Is(err, xerrors.ErrDatasetFormat) {
				t.Fatalf("error = %v, want ErrDatasetFormat", err)
			}
			if !strings.Contains(err.Error(), tc.detail) {
				t.Errorf("error = %q, want it to mention %q", err.Error(), tc.detail)
			}
		})
	}
}

func TestDecodeCSV_RangeErrorKeepsCause(t *testing.T) {
	_, err := DecodeCSV(strings.NewReader("lat,lon,value\n-91,0,1\n"), "ds")
	if !errors.Is(err, xerrors.ErrInvalidInput) {
		t.Errorf("error = %v, want it to wrap ErrInvalidInput", err)
	}
}

func TestLoad(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "stations.csv"), []byte(stationsCSV), 0o600); err != nil {
		t.Fatal(err)
	}
	src := storage.NewFileStorage(root)

	f, err := Load(context.Background(), src, "stations.csv", "stations")
	if err != nil {
		t.Fatal(err)
	}
	m, err := nearest.NearestPoint(nearest.NewBruteForce(f.Coords), geo.Point{Lat: 51.48, Lon: 0})
	if err != nil {
		t.Fatal(err)
	}
	if m.Index != 1 {
		t.Errorf("nearest station = %d, want greenwich (1)", m.Index)
	}

	if _, err := Load(context.Background(), src, "absent.csv", "x"); !errors.Is(err, xerrors.ErrObjectNotFound) {
		t.Errorf("Load(absent) error = %v, want ErrObjectNotFound", err)
	}
}

func TestSample_JSONNaN(t *testing.T) {
	in := Sample{Index: 0, Distance: math.NaN(), Value: math.NaN(), Point: geo.Point{Lat: 1, Lon: 2}}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"index":0,"distance":null,"value":null,"point":{"lat":1,"lon":2}}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}
	var out Sample
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if !math.IsNaN(out.Distance) || !math.IsNaN(out.Value) || out.Point != in.Point {
		t.Errorf("decoded = %+v", out)
	}

	data, _ = json.Marshal(Sample{Index: 3, Distance: 1500.5, Value: 287.2})
	if err := json.Unmarshal(data, &out); err != nil || out.Distance != 1500.5 || out.Value != 287.2 {
		t.Errorf("finite roundtrip = %+v, %v", out, err)
	}
}
