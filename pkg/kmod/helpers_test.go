// SPDX-License-Identifier: MPL-2.0

package kmod

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

type (
	// fakeKernel records module syscalls. Module images are the module name
	// as text, so InitModule knows which module it was handed.
	fakeKernel struct {
		mu       sync.Mutex
		release  string
		loaded   map[string]bool
		calls    []kernelCall
		initErrs map[string]error
		finitErr error
	}

	kernelCall struct {
		op     string
		name   string
		params string
		flags  int
	}

	// moduleTree describes a /lib/modules/<release> directory for tests.
	moduleTree struct {
		order   []string
		deps    map[string][]string
		aliases map[string]string
		builtin []string
	}
)

func newFakeKernel(release string) *fakeKernel {
	return &fakeKernel{
		release:  release,
		loaded:   make(map[string]bool),
		initErrs: make(map[string]error),
		// finit_module reports ENOSYS so InsertFile falls back to init_module
		// with the file contents, which keeps the fake platform independent.
		finitErr: syscall.ENOSYS,
	}
}

func (k *fakeKernel) InitModule(image []byte, params string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	name := strings.TrimSpace(string(image))
	k.calls = append(k.calls, kernelCall{op: "init", name: name, params: params})
	if err := k.initErrs[name]; err != nil {
		return err
	}
	if k.loaded[name] {
		return syscall.EEXIST
	}
	k.loaded[name] = true
	return nil
}

func (k *fakeKernel) FinitModule(fd int, params string, flags int) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.finitErr != nil {
		return k.finitErr
	}
	image, err := os.ReadFile(filepath.Join("/proc/self/fd", strconv.Itoa(fd)))
	if err != nil {
		return err
	}
	name := strings.TrimSpace(string(image))
	k.calls = append(k.calls, kernelCall{op: "finit", name: name, params: params, flags: flags})
	if k.loaded[name] {
		return syscall.EEXIST
	}
	k.loaded[name] = true
	return nil
}

func (k *fakeKernel) DeleteModule(name string, flags int) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.calls = append(k.calls, kernelCall{op: "delete", name: name, flags: flags})
	if !k.loaded[name] {
		return syscall.ENOENT
	}
	delete(k.loaded, name)
	return nil
}

func (k *fakeKernel) Release() (string, error) {
	return k.release, nil
}

// names returns the module names of the recorded calls with the given op.
func (k *fakeKernel) names(op string) []string {
	k.mu.Lock()
	defer k.mu.Unlock()

	var out []string
	for _, c := range k.calls {
		if c.op == op {
			out = append(out, c.name)
		}
	}
	return out
}

// writeTree materializes tree under root/release and returns the release dir.
// Every module file holds its own module name, compressed according to its suffix.
func writeTree(t *testing.T, root, release string, tree moduleTree) string {
	t.Helper()

	dir := filepath.Join(root, release)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	var order, dep, alias, builtin strings.Builder
	files := make(map[string]bool)
	for _, p := range tree.order {
		order.WriteString(p + "\n")
		files[p] = true
	}
	for p, deps := range tree.deps {
		dep.WriteString(p + ":")
		for _, d := range deps {
			dep.WriteString(" " + d)
			files[d] = true
		}
		dep.WriteString("\n")
		files[p] = true
	}
	for pattern, mod := range tree.aliases {
		alias.WriteString("alias " + pattern + " " + mod + "\n")
	}
	for _, p := range tree.builtin {
		builtin.WriteString(p + "\n")
	}

	writeFile(t, filepath.Join(dir, modulesOrderFile), []byte(order.String()))
	writeFile(t, filepath.Join(dir, modulesDepFile), []byte(dep.String()))
	writeFile(t, filepath.Join(dir, modulesAliasFile), []byte(alias.String()))
	writeFile(t, filepath.Join(dir, modulesBuiltinFile), []byte(builtin.String()))

	for p := range files {
		name := string(moduleNameFromPath(p))
		writeFile(t, filepath.Join(dir, p), compress(t, []byte(name+"\n"), compressionOf(p)))
	}
	return dir
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func compress(t *testing.T, data []byte, c compression) []byte {
	t.Helper()

	var buf bytes.Buffer
	var w io.WriteCloser
	var err error
	switch c {
	case compressionGzip:
		w = gzip.NewWriter(&buf)
	case compressionXZ:
		w, err = xz.NewWriter(&buf)
	case compressionZstd:
		w, err = zstd.NewWriter(&buf)
	default:
		return data
	}
	if err != nil {
		t.Fatalf("new %s writer: %v", c, err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatalf("write %s: %v", c, err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close %s: %v", c, err)
	}
	return buf.Bytes()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
