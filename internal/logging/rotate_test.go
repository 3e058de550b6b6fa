package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRotatingFileKeepsBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	r, err := OpenRotatingFile(path, 10, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	for _, line := range []string{"aaaaaaaa\n", "bbbbbbbb\n", "cccccccc\n", "dddddddd\n"} {
		if _, err := r.Write([]byte(line)); err != nil {
			t.Fatal(err)
		}
	}

	read := func(p string) string {
		t.Helper()
		data, err := os.ReadFile(p)
		if err != nil {
			t.Fatal(err)
		}
		return string(data)
	}

	if got := read(path); got != "dddddddd\n" {
		t.Errorf("current = %q", got)
	}
	if got := read(path + ".1"); got != "cccccccc\n" {
		t.Errorf("backup 1 = %q", got)
	}
	if got := read(path + ".2"); got != "bbbbbbbb\n" {
		t.Errorf("backup 2 = %q", got)
	}
	if _, err := os.Stat(path + ".3"); !os.IsNotExist(err) {
		t.Errorf("backup 3 should not exist: %v", err)
	}
}

func TestRotatingFileAppendsToExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "app.log")
	r, err := OpenRotatingFile(path, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = r.Write([]byte("first\n"))
	_ = r.Close()

	r, err = OpenRotatingFile(path, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = r.Write([]byte("second\n"))
	_ = r.Close()

	data, _ := os.ReadFile(path)
	if !strings.HasPrefix(string(data), "first\n") || !strings.HasSuffix(string(data), "second\n") {
		t.Fatalf("content = %q", data)
	}
	if _, err := r.Write([]byte("x")); err == nil {
		t.Fatal("write after close should fail")
	}
}
