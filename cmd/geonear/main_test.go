package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const stations = `lat,lon,value
40.7128,-74.0060,11.5
51.5074,-0.1278,9.0
48.8566,2.3522,10.2
`

func writeStations(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stations.csv")
	if err := os.WriteFile(path, []byte(stations), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunQuery_Text(t *testing.T) {
	path := writeStations(t)
	for _, extra := range [][]string{nil, {"-brute"}, {"-leaf", "1"}} {
		var out bytes.Buffer
		args := append([]string{"-data", path}, extra...)
		args = append(args, "48.0", "2.0", "41", "-74")
		if err := runQuery(args, &out); err != nil {
			t.Fatalf("%v: %v", extra, err)
		}
		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		if len(lines) != 2 {
			t.Fatalf("%v: output = %q", extra, out.String())
		}
		if !strings.Contains(lines[0], "#2 ") || !strings.Contains(lines[0], "value 10.2000") {
			t.Errorf("%v: line 0 = %q", extra, lines[0])
		}
		if !strings.Contains(lines[1], "#0 ") {
			t.Errorf("%v: line 1 = %q", extra, lines[1])
		}
	}
}

func TestRunQuery_JSON(t *testing.T) {
	var out bytes.Buffer
	if err := runQuery([]string{"-data", writeStations(t), "-json", "51", "0"}, &out); err != nil {
		t.Fatal(err)
	}
	var res []queryOutput
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatalf("%v: %s", err, out.String())
	}
	if len(res) != 1 || res[0].Sample.Index != 1 || res[0].Sample.Value != 9.0 {
		t.Errorf("result = %+v", res)
	}
}

func TestRunQuery_Errors(t *testing.T) {
	path := writeStations(t)
	tests := [][]string{
		{"48", "2"},
		{"-data", path},
		{"-data", path, "48"},
		{"-data", path, "north", "2"},
		{"-data", path, "95", "2"},
		{"-data", filepath.Join(t.TempDir(), "missing.csv"), "48", "2"},
	}
	for _, args := range tests {
		if err := runQuery(args, &bytes.Buffer{}); err == nil {
			t.Errorf("runQuery(%v) succeeded", args)
		}
	}
}
