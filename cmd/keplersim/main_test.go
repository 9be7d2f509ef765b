package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
)

const venusElements = `$$SOE
2460310.500000000 = A.D. 2024-Jan-01 00:00:00.0000 TDB
 EC= 6.755697267164094E-03 QR= 1.074818913082663E+08 IN= 3.394400505526381E+00
 OM= 7.661078226185003E+01 W = 5.493414628434416E+01 Tp=  2460341.413391137775
 N = 1.852061235299374E-05 MA= 3.105367451508867E+02 TA= 3.096393006085817E+02
 A = 1.082129239488224E+08 AD= 1.089439565893785E+08 PR= 1.943780468659624E+07
$$EOE
`

const moonVectors = `$$SOE
2460310.500000000 = A.D. 2024-Jan-01 00:00:00.0000 TDB
 X = 0.000000000000000E+00 Y = 3.800000000000000E+05 Z = 1.000000000000000E+04
$$EOE
`

func testLogger() (*slog.Logger, *slog.LevelVar) {
	level := new(slog.LevelVar)
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: level})), level
}

// horizonsStub answers ELEMENTS queries with one record and VECTORS queries
// with another; COMMAND='10' fails.
func horizonsStub(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		if q.Get("COMMAND") == "'10'" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "unavailable"})
			return
		}
		result := venusElements
		if q.Get("EPHEM_TYPE") == "'VECTORS'" {
			result = moonVectors
		}
		json.NewEncoder(w).Encode(map[string]string{"result": result})
	}))
}

func runCmd(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("KEPLERSIM_HORIZONS_RATE", "1000")
	logger, level := testLogger()
	root := newRootCmd(logger, level)
	var out bytes.Buffer
	root.SetArgs(args)
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(io.Discard)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return records
}

func TestSimulateWritesCSV(t *testing.T) {
	server := horizonsStub(t)
	defer server.Close()
	output := filepath.Join(t.TempDir(), "sim.csv")

	_, err := runCmd(t, "",
		"simulate",
		"--horizons-url", server.URL,
		"--start", "2024-01-01",
		"--end", "2024-01-10",
		"--output", output,
		"--mode", "vector",
	)
	if err != nil {
		t.Fatalf("simulate failed: %v", err)
	}

	records := readCSV(t, output)
	if len(records) != 11 {
		t.Fatalf("got %d lines, want header + 10 rows", len(records))
	}
	if got := len(records[0]); got != 1+3*9 {
		t.Errorf("header has %d columns, want %d", got, 1+3*9)
	}
	if records[0][1] != "Mercury_x" || records[10][0] != "2024-01-10" {
		t.Errorf("unexpected layout: %v ... %v", records[0][:2], records[10][:1])
	}
}

// TestSimulatePrompts runs the default command with no dates, answering the
// prompts on stdin.
func TestSimulatePrompts(t *testing.T) {
	server := horizonsStub(t)
	defer server.Close()
	output := filepath.Join(t.TempDir(), "prompted.csv")

	out, err := runCmd(t, "2024-03-01\n2024-03-02\n"+output+"\n", "--horizons-url", server.URL)
	if err != nil {
		t.Fatalf("simulate failed: %v", err)
	}
	if !strings.Contains(out, "Enter Start Date") || !strings.Contains(out, "Simulation complete") {
		t.Errorf("unexpected output:\n%s", out)
	}

	records := readCSV(t, output)
	if len(records) != 3 || records[0][1] != "Mercury" {
		t.Errorf("records = %v", records)
	}
}

func TestSimulateRejectsReversedRange(t *testing.T) {
	_, err := runCmd(t, "", "simulate", "--start", "2024-02-01", "--end", "2024-01-01", "--output", "x.csv")
	if err == nil {
		t.Fatal("expected error for reversed range")
	}
}

func TestLogWritesNaNForFailedBodies(t *testing.T) {
	server := horizonsStub(t)
	defer server.Close()
	output := filepath.Join(t.TempDir(), "log.csv")

	_, err := runCmd(t, "",
		"log",
		"--horizons-url", server.URL,
		"--start", "2024-01-01",
		"--days", "2",
		"--output", output,
	)
	if err != nil {
		t.Fatalf("log failed: %v", err)
	}

	records := readCSV(t, output)
	if len(records) != 3 {
		t.Fatalf("got %d lines, want 3", len(records))
	}
	if records[0][1] != "Sun" || records[0][2] != "Moon" {
		t.Errorf("header = %v", records[0])
	}
	if records[1][1] != "NaN" {
		t.Errorf("Sun cell = %q, want NaN", records[1][1])
	}
	if records[1][2] != "90.0000" {
		t.Errorf("Moon cell = %q, want 90.0000", records[1][2])
	}
}

func TestPrompterDate(t *testing.T) {
	var out bytes.Buffer
	p := newPrompter(strings.NewReader("bad\n"), &out)
	var d time.Time
	if err := p.date(&d, "? "); err == nil {
		t.Error("expected error for malformed date")
	}

	preset := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d = preset
	if err := newPrompter(strings.NewReader(""), &out).date(&d, "? "); err != nil || !d.Equal(preset) {
		t.Errorf("preset date was re-prompted: %v %v", d, err)
	}

	var s string
	if err := newPrompter(strings.NewReader(""), &out).text(&s, "? "); err == nil {
		t.Error("expected error on empty input")
	}
}

func TestLogPromptsForDays(t *testing.T) {
	server := horizonsStub(t)
	defer server.Close()
	output := filepath.Join(t.TempDir(), "log.csv")

	out, err := runCmd(t, "3\n",
		"log",
		"--horizons-url", server.URL,
		"--start", "2024-01-01",
		"--output", output,
	)
	if err != nil {
		t.Fatalf("log failed: %v", err)
	}
	if !strings.Contains(out, "Enter Number of Days to Log: ") {
		t.Errorf("days prompt missing from %q", out)
	}
	if records := readCSV(t, output); len(records) != 4 {
		t.Errorf("got %d lines, want header + 3 days", len(records))
	}
}

func TestPrompterCount(t *testing.T) {
	var out bytes.Buffer
	for _, in := range []string{"0\n", "-4\n", "ten\n", ""} {
		var n int
		if err := newPrompter(strings.NewReader(in), &out).count(&n, "? "); err == nil {
			t.Errorf("input %q: expected error, got %d", in, n)
		}
	}

	var n int
	if err := newPrompter(strings.NewReader(" 12 \n"), &out).count(&n, "? "); err != nil || n != 12 {
		t.Errorf("count = %d, %v; want 12", n, err)
	}

	n = 5
	if err := newPrompter(strings.NewReader(""), &out).count(&n, "? "); err != nil || n != 5 {
		t.Errorf("preset count was re-prompted: %d %v", n, err)
	}
}
