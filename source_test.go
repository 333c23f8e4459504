package main

import (
	"archive/zip"
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeGzip(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	w := gzip.NewWriter(f)
	if _, err := w.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeZip(t *testing.T, dir, name string, members map[string]string, order []string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	for _, member := range order {
		mw, err := w.Create(member)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := mw.Write([]byte(members[member])); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCollectFilePlain(t *testing.T) {
	path := writeTestFile(t, t.TempDir(), "country.csv", ipinfoSample)

	acc := NewAccumulator()
	if err := CollectFile(path, acc, defaultCollectOptions()); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(acc.Codes(), ","); got != "DE,US" {
		t.Errorf("codes = %s", got)
	}
}

func TestCollectFileGzip(t *testing.T) {
	path := writeGzip(t, t.TempDir(), "dbip-country-lite.csv.gz", "1.0.0.0,1.0.0.255,AU\n")

	acc := NewAccumulator()
	if err := CollectFile(path, acc, defaultCollectOptions()); err != nil {
		t.Fatal(err)
	}
	au, ok := acc.Lookup("AU")
	if !ok || len(au.PoolV4) != 1 {
		t.Errorf("AU pool = %+v", au)
	}
}

func TestCollectFileZip(t *testing.T) {
	members := map[string]string{
		"country/README.txt": "not,a,csv\n",
		"country/v4.csv":     ipinfoSample,
		"country/v6.csv":     "2001:db8::,2001:db8::ffff,US\n",
	}
	order := []string{"country/README.txt", "country/v4.csv", "country/v6.csv"}
	path := writeZip(t, t.TempDir(), "country.csv.zip", members, order)

	// v6.csv is headerless IPv6, so it falls back to the manual columns
	opts := CollectOptions{Columns: Columns{StartIP: 0, EndIP: 1, CountryCode: 2}}
	acc := NewAccumulator()
	if err := CollectFile(path, acc, opts); err != nil {
		t.Fatal(err)
	}

	us, ok := acc.Lookup("US")
	if !ok {
		t.Fatal("US pool missing")
	}
	if len(us.PoolV4) != 2 || len(us.PoolV6) != 1 {
		t.Errorf("US pool = %d v4, %d v6", len(us.PoolV4), len(us.PoolV6))
	}
	if acc.Len() != 2 {
		t.Errorf("codes = %v, want DE and US only", acc.Codes())
	}
}

func TestCollectFileMissing(t *testing.T) {
	err := CollectFile(filepath.Join(t.TempDir(), "nope.csv"), NewAccumulator(), defaultCollectOptions())
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestCollectFileNotGzip(t *testing.T) {
	path := writeTestFile(t, t.TempDir(), "broken.csv.gz", ipinfoSample)
	if err := CollectFile(path, NewAccumulator(), defaultCollectOptions()); err == nil {
		t.Error("expected error for invalid gzip stream")
	}
}

// dbipSampleXZ is "1.0.0.0,1.0.0.255,AU\n2001:db8::,2001:db8::ffff,AU\n"
// compressed with xz --check=crc32.
var dbipSampleXZ = []byte{
	0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00, 0x00, 0x01, 0x69, 0x22, 0xde, 0x36,
	0x04, 0xc0, 0x2c, 0x32, 0x21, 0x01, 0x16, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x7d, 0x84, 0xe8, 0x54, 0xe0, 0x00, 0x31, 0x00,
	0x24, 0x5d, 0x00, 0x18, 0x8b, 0x82, 0x74, 0x19, 0xe7, 0x48, 0x84, 0xca,
	0x01, 0x65, 0x9c, 0x1c, 0x55, 0x21, 0x98, 0x30, 0xb3, 0xbf, 0x4f, 0xe1,
	0x48, 0x89, 0x7d, 0x8f, 0xae, 0x0c, 0x50, 0x23, 0xa3, 0x09, 0x41, 0x3d,
	0x49, 0x40, 0x00, 0x00, 0x24, 0x4d, 0x33, 0x96, 0x00, 0x01, 0x44, 0x32,
	0xaa, 0x6e, 0x44, 0x7c, 0x90, 0x42, 0x99, 0x0d, 0x01, 0x00, 0x00, 0x00,
	0x00, 0x01, 0x59, 0x5a,
}

func TestCollectFileXZ(t *testing.T) {
	path := writeTestFile(t, t.TempDir(), "dbip-country-lite.csv.xz", string(dbipSampleXZ))

	acc := NewAccumulator()
	if err := CollectFile(path, acc, defaultCollectOptions()); err != nil {
		t.Fatal(err)
	}
	au, ok := acc.Lookup("AU")
	if !ok || len(au.PoolV4) != 1 || len(au.PoolV6) != 1 {
		t.Fatalf("AU pool = %+v", au)
	}
	if au.PoolV4[0] != (RangeV4{Start: 0x01000000, End: 0x010000FF}) {
		t.Errorf("AU v4 = %v", au.PoolV4[0])
	}
}
