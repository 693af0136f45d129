// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package devfs publishes sensor read endpoints as files on a read-only
// FUSE filesystem, one file per sensor: the user-space equivalent of the
// /dev node a kernel driver would create. Every read of a file performs
// a fresh measurement through the endpoint's io.ReaderAt; the page cache
// is bypassed so consumers never see a stale reading.
//
// FS implements the driver's Exposer interface. The registry works
// without a kernel mount, which keeps endpoint bookkeeping testable.
package devfs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"sync"
	"syscall"

	"github.com/GermanBionicSystems/mcp9808"
	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// Options configures the filesystem.
type Options struct {
	// Mountpoint is the directory the filesystem is mounted at. It is
	// created if missing. Required for Mount, not for the registry.
	Mountpoint string

	// FsName is the filesystem name shown in mount tables. Defaults to
	// "sensorfs".
	FsName string

	// AllowOther permits other users to read the mounted files. Requires
	// user_allow_other in /etc/fuse.conf.
	AllowOther bool

	// Logger receives diagnostic messages. nil discards them.
	Logger *slog.Logger
}

// endpoint is one exposed sensor file. Inode numbers come from a
// monotonic arena: they are never reused after release, so two
// generations of the same name cannot collide.
type endpoint struct {
	name string
	ino  uint64
	r    io.ReaderAt
}

// FS is the endpoint registry and, once mounted, the filesystem serving
// it. It implements mcp9808.Exposer.
type FS struct {
	opts   Options
	logger *slog.Logger
	server *fuse.Server

	mu      sync.Mutex
	files   map[string]*endpoint
	nextIno uint64
}

var _ mcp9808.Exposer = (*FS)(nil)

// New returns an unmounted filesystem. Expose and Release work without a
// mount; call Mount to make the files visible.
func New(opts Options) *FS {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(127)}))
	}
	if opts.FsName == "" {
		opts.FsName = "sensorfs"
	}
	return &FS{
		opts:    opts,
		logger:  logger,
		files:   make(map[string]*endpoint),
		nextIno: 2, // 1 is the root directory
	}
}

// Mount attaches the filesystem at the configured mountpoint, creating
// the directory if needed.
func (f *FS) Mount() error {
	if f.opts.Mountpoint == "" {
		return fmt.Errorf("devfs: a mountpoint is required")
	}
	if f.server != nil {
		return fmt.Errorf("devfs: already mounted at %s", f.opts.Mountpoint)
	}
	if err := os.MkdirAll(f.opts.Mountpoint, 0o755); err != nil {
		return fmt.Errorf("devfs: creating mountpoint %s: %w", f.opts.Mountpoint, err)
	}
	server, err := gofuse.Mount(f.opts.Mountpoint, &rootNode{fs: f}, &gofuse.Options{
		MountOptions: fuse.MountOptions{
			FsName:     f.opts.FsName,
			Name:       "devfs",
			AllowOther: f.opts.AllowOther,
		},
	})
	if err != nil {
		return fmt.Errorf("devfs: mounting at %s: %w", f.opts.Mountpoint, err)
	}
	f.server = server
	f.logger.Info("sensor filesystem mounted", "mountpoint", f.opts.Mountpoint)
	return nil
}

// Wait blocks until the filesystem is unmounted.
func (f *FS) Wait() {
	if f.server != nil {
		f.server.Wait()
	}
}

// Unmount detaches the filesystem. It is a no-op when not mounted.
func (f *FS) Unmount() error {
	if f.server == nil {
		return nil
	}
	if err := f.server.Unmount(); err != nil {
		return fmt.Errorf("devfs: unmounting %s: %w", f.opts.Mountpoint, err)
	}
	f.server = nil
	f.logger.Info("sensor filesystem unmounted", "mountpoint", f.opts.Mountpoint)
	return nil
}

// Expose implements mcp9808.Exposer: it registers r as a read-only file
// named name in the filesystem root. The returned handle removes the
// file again; releasing it more than once is harmless.
func (f *FS) Expose(name string, r io.ReaderAt) (mcp9808.ExposureHandle, error) {
	if name == "" {
		return nil, fmt.Errorf("devfs: an endpoint name is required")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.files[name]; ok {
		return nil, fmt.Errorf("devfs: endpoint %q already exposed", name)
	}
	e := &endpoint{name: name, ino: f.nextIno, r: r}
	f.nextIno++
	f.files[name] = e
	f.logger.Info("endpoint exposed", "name", name)
	return &handle{fs: f, name: name}, nil
}

// Names returns the currently exposed endpoint names, sorted. Useful as
// a resource audit after teardown.
func (f *FS) Names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.files))
	for name := range f.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (f *FS) lookup(name string) *endpoint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.files[name]
}

// handle is the released-exactly-once token for an exposed endpoint.
type handle struct {
	fs   *FS
	name string
	once sync.Once
}

func (h *handle) Release() error {
	h.once.Do(func() {
		h.fs.mu.Lock()
		delete(h.fs.files, h.name)
		h.fs.mu.Unlock()
		h.fs.logger.Info("endpoint removed", "name", h.name)
	})
	return nil
}

// rootNode is the filesystem root directory. Children are resolved
// against the registry on every lookup so endpoints can come and go
// while mounted.
type rootNode struct {
	gofuse.Inode
	fs *FS
}

var _ gofuse.InodeEmbedder = (*rootNode)(nil)
var _ gofuse.NodeLookuper = (*rootNode)(nil)
var _ gofuse.NodeReaddirer = (*rootNode)(nil)

func (r *rootNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	e := r.fs.lookup(name)
	if e == nil {
		return nil, syscall.ENOENT
	}
	child := r.NewInode(ctx, &fileNode{fs: r.fs, name: e.name, r: e.r},
		gofuse.StableAttr{Mode: syscall.S_IFREG, Ino: e.ino})
	out.Mode = syscall.S_IFREG | 0o444
	return child, 0
}

func (r *rootNode) Readdir(ctx context.Context) (gofuse.DirStream, syscall.Errno) {
	r.fs.mu.Lock()
	entries := make([]fuse.DirEntry, 0, len(r.fs.files))
	for _, e := range r.fs.files {
		entries = append(entries, fuse.DirEntry{Name: e.name, Mode: syscall.S_IFREG, Ino: e.ino})
	}
	r.fs.mu.Unlock()
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return gofuse.NewListDirStream(entries), 0
}

// fileNode serves one sensor endpoint.
type fileNode struct {
	gofuse.Inode
	fs   *FS
	name string
	r    io.ReaderAt
}

var _ gofuse.InodeEmbedder = (*fileNode)(nil)
var _ gofuse.NodeGetattrer = (*fileNode)(nil)
var _ gofuse.NodeOpener = (*fileNode)(nil)
var _ gofuse.NodeReader = (*fileNode)(nil)

func (n *fileNode) Getattr(ctx context.Context, fh gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = syscall.S_IFREG | 0o444
	// The size of a reading is not known before it is taken; direct IO
	// makes the kernel read until EOF regardless.
	out.Size = 0
	return 0
}

func (n *fileNode) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0 {
		return nil, 0, syscall.EROFS
	}
	// Bypass the page cache: each read must reach the sensor.
	return nil, fuse.FOPEN_DIRECT_IO, 0
}

func (n *fileNode) Read(ctx context.Context, fh gofuse.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	read, err := n.r.ReadAt(dest, off)
	if err != nil && err != io.EOF {
		n.fs.logger.Error("sensor read failed", "name", n.name, "offset", off, "err", err)
		return nil, syscall.EIO
	}
	return fuse.ReadResultData(dest[:read]), 0
}
