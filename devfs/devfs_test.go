// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package devfs

import (
	"io"
	"strings"
	"testing"
)

func reader(s string) io.ReaderAt {
	return strings.NewReader(s)
}

func TestExposeAndRelease(t *testing.T) {
	f := New(Options{})
	h0, err := f.Expose("temp0", reader("25.0000\n"))
	if err != nil {
		t.Fatal(err)
	}
	h1, err := f.Expose("temp1", reader("23.1250\n"))
	if err != nil {
		t.Fatal(err)
	}
	if got := f.Names(); len(got) != 2 || got[0] != "temp0" || got[1] != "temp1" {
		t.Fatalf("Names() = %v", got)
	}

	if err := h0.Release(); err != nil {
		t.Fatal(err)
	}
	// Release is idempotent.
	if err := h0.Release(); err != nil {
		t.Fatal(err)
	}
	if got := f.Names(); len(got) != 1 || got[0] != "temp1" {
		t.Fatalf("Names() after release = %v", got)
	}
	if err := h1.Release(); err != nil {
		t.Fatal(err)
	}
	if got := f.Names(); len(got) != 0 {
		t.Fatalf("Names() after full teardown = %v", got)
	}
}

func TestExposeDuplicate(t *testing.T) {
	f := New(Options{})
	if _, err := f.Expose("temp0", reader("")); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Expose("temp0", reader("")); err == nil {
		t.Fatal("duplicate name accepted")
	}
}

func TestExposeEmptyName(t *testing.T) {
	f := New(Options{})
	if _, err := f.Expose("", reader("")); err == nil {
		t.Fatal("empty name accepted")
	}
}

// Inode numbers come from a monotonic arena so a re-exposed name never
// reuses the identifier of a released endpoint.
func TestInodeArena(t *testing.T) {
	f := New(Options{})
	h, err := f.Expose("temp0", reader(""))
	if err != nil {
		t.Fatal(err)
	}
	first := f.files["temp0"].ino
	if err := h.Release(); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Expose("temp0", reader("")); err != nil {
		t.Fatal(err)
	}
	second := f.files["temp0"].ino
	if second <= first {
		t.Fatalf("inode %d reused or went backwards after %d", second, first)
	}
}

func TestMountRequiresMountpoint(t *testing.T) {
	f := New(Options{})
	if err := f.Mount(); err == nil {
		_ = f.Unmount()
		t.Fatal("mount without mountpoint accepted")
	}
}

func TestUnmountWithoutMount(t *testing.T) {
	f := New(Options{})
	if err := f.Unmount(); err != nil {
		t.Fatal(err)
	}
}
