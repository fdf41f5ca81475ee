package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"

	"github.com/Danselem/dara-opsc/internal/passes"
)

const (
	issLine1 = "1 25544U 98067A   25045.18032407  .00016717  00000+0  30099-3 0  9996"
	issLine2 = "2 25544  51.6412 193.5765 0003457 126.2851 233.8519 15.49874301495057"
	t0       = 1739534400 // 2025-02-14 12:00:00 UTC
)

func record(tleFields map[string]any) map[string]any {
	rec := map[string]any{
		"timestamps":     []any{t0, t0 + 1, t0 + 2, t0 + 3},
		"projection_cfg": map[string]any{"image_width": 2048, "scan_angle": 20.0},
	}
	if tleFields != nil {
		rec["tle"] = tleFields
	}
	return rec
}

func issTLE() map[string]any {
	return map[string]any{"name": "ISS (ZARYA)", "line1": issLine1, "line2": issLine2}
}

func writeCBOR(t *testing.T, dir, name string, v any) string {
	t.Helper()
	data, err := cbor.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("OPSC_CONFIG", "")
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr, false)
	return stdout.String(), err
}

func TestPassCSVDefault(t *testing.T) {
	path := writeCBOR(t, t.TempDir(), "capture.cbor", record(issTLE()))

	out, err := runCmd(t, "pass", path)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("output is not CSV: %v\n%s", err, out)
	}
	if len(rows) != 5 {
		t.Fatalf("got %d rows, want header + 4", len(rows))
	}
	if strings.Join(rows[0], ",") != strings.Join(passes.Columns, ",") {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][0] != "2025-02-14 12:00:00" {
		t.Errorf("first timestamp = %q", rows[1][0])
	}
}

func TestPassObserverFlags(t *testing.T) {
	path := writeCBOR(t, t.TempDir(), "capture.cbor", record(issTLE()))

	decode := func(out string) []passes.Record {
		var recs []passes.Record
		if err := json.Unmarshal([]byte(out), &recs); err != nil {
			t.Fatalf("output is not JSON: %v", err)
		}
		return recs
	}

	base, err := runCmd(t, "pass", "-o", "json", path)
	if err != nil {
		t.Fatal(err)
	}
	moved, err := runCmd(t, "pass", "-o", "json", "-lat", "48.85", "-lon", "2.35", path)
	if err != nil {
		t.Fatal(err)
	}

	a, b := decode(base), decode(moved)
	if a[0].DistanceKm == b[0].DistanceKm {
		t.Error("observer flags did not change the range")
	}

	if _, err := runCmd(t, "pass", "-lat", "91", path); err == nil {
		t.Error("expected error for latitude 91")
	}
}

func TestFootprintJSON(t *testing.T) {
	path := writeCBOR(t, t.TempDir(), "capture.cbor", record(issTLE()))

	out, err := runCmd(t, "footprint", path)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(out), &m); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if m["image_height_px"] != float64(4) || m["fov_deg"] != 20.0 {
		t.Errorf("height = %v, fov = %v", m["image_height_px"], m["fov_deg"])
	}
}

func TestFootprintTable(t *testing.T) {
	path := writeCBOR(t, t.TempDir(), "capture.cbor", record(issTLE()))

	out, err := runCmd(t, "footprint", "-o", "table", path)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "along-track length") {
		t.Errorf("table output missing along-track row:\n%s", out)
	}
}

func TestDiscoverInWorkingDir(t *testing.T) {
	dir := t.TempDir()
	writeCBOR(t, dir, "b.cbor", record(nil))
	writeCBOR(t, dir, "a.cbor", record(issTLE()))
	t.Chdir(dir)

	out, err := runCmd(t, "pass", "-o", "json")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "2025-02-14 12:00:03") {
		t.Errorf("expected a.cbor to be used:\n%s", out)
	}
}

func TestConvert(t *testing.T) {
	dir := t.TempDir()
	path := writeCBOR(t, dir, "capture.cbor", record(issTLE()))

	out, err := runCmd(t, "convert", path)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	jsonPath := filepath.Join(dir, "capture.json")
	if !strings.Contains(out, jsonPath) {
		t.Errorf("stdout = %q, want path %s", out, jsonPath)
	}

	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatal(err)
	}
	var v map[string]any
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("converted file is not JSON: %v", err)
	}
	if tleMap, _ := v["tle"].(map[string]any); tleMap["line1"] != issLine1 {
		t.Errorf("tle.line1 = %v", tleMap["line1"])
	}

	// The JSON record feeds the engines just like the CBOR one.
	if _, err := runCmd(t, "footprint", jsonPath); err != nil {
		t.Errorf("footprint on converted JSON: %v", err)
	}
	if _, err := runCmd(t, "convert", jsonPath); err == nil {
		t.Error("expected error converting a JSON record")
	}
}

func TestTLEFromSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ISS (ZARYA)\n" + issLine1 + "\n" + issLine2 + "\n"))
	}))
	defer server.Close()
	t.Setenv("OPSC_TLE_CACHE_DIR", t.TempDir())

	// The record only names the satellite; the lines come from the source.
	path := writeCBOR(t, t.TempDir(), "capture.cbor", record(map[string]any{"name": "ISS (ZARYA)"}))

	if _, err := runCmd(t, "pass", path); err == nil {
		t.Fatal("expected missing TLE error without a source")
	}
	out, err := runCmd(t, "pass", "-tle-url", server.URL, "-o", "json", path)
	if err != nil {
		t.Fatalf("run with source: %v", err)
	}
	if !strings.Contains(out, "Azimuth (deg)") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestUsageErrors(t *testing.T) {
	tests := [][]string{
		{},
		{"orbit"},
		{"pass", "-o", "yaml", "x.cbor"},
		{"pass", "a.cbor", "b.cbor"},
	}
	for _, args := range tests {
		if _, err := runCmd(t, args...); err == nil {
			t.Errorf("run(%q) = nil, want error", args)
		}
	}

	if _, err := runCmd(t, "orbit"); !errors.Is(err, errUsage) {
		t.Errorf("unknown command error = %v, want errUsage", err)
	}
}
