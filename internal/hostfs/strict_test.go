package hostfs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func Test_StrictFS_Does_Not_Panic_When_The_Error_Is_A_ChaosError(t *testing.T) {
	t.Parallel()

	tb := &fakeTB{}
	chaos := NewChaos(NewReal(), 0, ChaosConfig{OpenFailRate: 1.0})
	chaos.SetMode(ChaosModeActive)
	strict := NewStrictTestFS(tb, StrictTestFSOptions{FS: chaos})
	path := filepath.Join(t.TempDir(), "test.txt")

	_, err := strict.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err == nil {
		t.Fatalf("OpenFile(%q): want error, got nil", path)
	}
	if !IsChaosErr(err) {
		t.Errorf("IsChaosErr(err) for OpenFile(%q): want true, got false", path)
	}
	if tb.failed {
		t.Errorf("tb.failed after chaos OpenFile(%q): want false, got true", path)
	}
}

func Test_StrictFS_Does_Not_Panic_When_The_Error_Is_EOF(t *testing.T) {
	t.Parallel()

	tb := &fakeTB{}
	stub := stubFS{
		openFile: func(string, int, os.FileMode) (File, error) {
			return nil, io.EOF
		},
	}
	strict := NewStrictTestFS(tb, StrictTestFSOptions{FS: stub})

	_, err := strict.OpenFile("any", os.O_RDONLY, 0)
	if !errors.Is(err, io.EOF) {
		t.Fatalf("OpenFile(): want io.EOF, got %v", err)
	}
	if tb.failed {
		t.Fatalf("tb.failed after OpenFile() returned io.EOF: want false, got true")
	}
}

func Test_StrictFS_Does_Not_Panic_When_Lock_Would_Block(t *testing.T) {
	t.Parallel()

	tb := &fakeTB{}
	stub := stubFS{
		lock: func(string) (Locker, error) {
			return nil, ErrWouldBlock
		},
	}
	strict := NewStrictTestFS(tb, StrictTestFSOptions{FS: stub})

	_, err := strict.Lock("any")
	if !errors.Is(err, ErrWouldBlock) {
		t.Fatalf("Lock(): want ErrWouldBlock, got %v", err)
	}
	if tb.failed {
		t.Fatalf("tb.failed after Lock() returned ErrWouldBlock: want false, got true")
	}
}

func Test_StrictFS_Trace_Is_Empty_Before_Any_Ops(t *testing.T) {
	t.Parallel()

	tb := &fakeTB{}
	strict := NewStrictTestFS(tb, StrictTestFSOptions{FS: NewReal()})

	if got := strict.Trace(); got != "" {
		t.Fatalf("Trace(): want empty string, got %q", got)
	}
}

func Test_StrictFS_Trace_Is_Empty_When_TraceCapacity_Is_Zero(t *testing.T) {
	t.Parallel()

	tb := &fakeTB{}
	cap := 0
	strict := NewStrictTestFS(tb, StrictTestFSOptions{FS: NewReal(), TraceCapacity: &cap})

	path := filepath.Join(t.TempDir(), "file.txt")
	f, err := strict.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		t.Fatalf("OpenFile(%q): %v", path, err)
	}
	if _, err := f.Write([]byte("hello")); err != nil {
		t.Fatalf("Write(%q): %v", path, err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close(%q): %v", path, err)
	}

	if got := strict.Trace(); got != "" {
		t.Fatalf("Trace() with TraceCapacity=0: want empty string, got %q", got)
	}

	tb.failed = true
	if tb.cleanup == nil {
		t.Fatal("expected StrictFS to register Cleanup")
	}
	tb.cleanup()
	if tb.logMsg != "" {
		t.Fatalf("cleanup log with TraceCapacity=0: want empty, got %q", tb.logMsg)
	}
}

func Test_StrictFS_Trace_Is_Bounded_To_TraceCapacity(t *testing.T) {
	t.Parallel()

	t.Run("DefaultCapacityIs200", func(t *testing.T) {
		t.Parallel()

		tb := &fakeTB{}
		strict := NewStrictTestFS(tb, StrictTestFSOptions{FS: NewReal()})
		dir := t.TempDir()

		for i := range 205 {
			path := filepath.Join(dir, fmt.Sprintf("stat-%03d", i))
			if err := os.WriteFile(path, nil, 0o644); err != nil {
				t.Fatalf("setup WriteFile: %v", err)
			}
			_, _ = strict.Stat(path)
		}

		trace := strict.Trace()
		lines := splitTraceLines(trace)
		if want, got := 200, len(lines); want != got {
			t.Fatalf("Trace() line count: want %d, got %d\ntrace:\n%s", want, got, trace)
		}

		oldest := filepath.Join(dir, "stat-000")
		newest := filepath.Join(dir, "stat-204")
		if strings.Contains(trace, fmt.Sprintf("path=%q", oldest)) {
			t.Fatalf("Trace() should not include oldest entry %q\ntrace:\n%s", oldest, trace)
		}
		if !strings.Contains(trace, fmt.Sprintf("path=%q", newest)) {
			t.Fatalf("Trace() should include newest entry %q\ntrace:\n%s", newest, trace)
		}
	})

	t.Run("CustomCapacity", func(t *testing.T) {
		t.Parallel()

		tb := &fakeTB{}
		cap := 3
		strict := NewStrictTestFS(tb, StrictTestFSOptions{FS: NewReal(), TraceCapacity: &cap})
		dir := t.TempDir()

		paths := []string{
			filepath.Join(dir, "stat-1"),
			filepath.Join(dir, "stat-2"),
			filepath.Join(dir, "stat-3"),
			filepath.Join(dir, "stat-4"),
			filepath.Join(dir, "stat-5"),
		}

		for _, p := range paths {
			if err := os.WriteFile(p, nil, 0o644); err != nil {
				t.Fatalf("setup WriteFile: %v", err)
			}
			_, _ = strict.Stat(p)
		}

		trace := strict.Trace()
		lines := splitTraceLines(trace)
		if want, got := 3, len(lines); want != got {
			t.Fatalf("Trace() line count: want %d, got %d\ntrace:\n%s", want, got, trace)
		}

		for _, shouldNotContain := range paths[:2] {
			if strings.Contains(trace, fmt.Sprintf("path=%q", shouldNotContain)) {
				t.Fatalf("Trace() should not include %q\ntrace:\n%s", shouldNotContain, trace)
			}
		}
		for _, shouldContain := range paths[2:] {
			if !strings.Contains(trace, fmt.Sprintf("path=%q", shouldContain)) {
				t.Fatalf("Trace() should include %q\ntrace:\n%s", shouldContain, trace)
			}
		}
	})
}

func Test_StrictFS_Trace_Records_Ops_In_Order(t *testing.T) {
	t.Parallel()

	tb := &fakeTB{}
	strict := NewStrictTestFS(tb, StrictTestFSOptions{FS: NewReal()})
	dir := t.TempDir()

	subdir := filepath.Join(dir, "sub")
	a := filepath.Join(dir, "a.txt")

	var f File

	steps := []struct {
		op  string
		run func() error
	}{
		{op: "mkdirall", run: func() error { return strict.MkdirAll(subdir, 0o755) }},
		{
			op: "openfile",
			run: func() error {
				var err error
				f, err = strict.OpenFile(a, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o600)
				return err
			},
		},
		{
			op: "file.write",
			run: func() error {
				n, err := f.Write([]byte("hello"))
				if err != nil {
					return err
				}
				if n != 5 {
					return fmt.Errorf("write n=%d, want 5", n)
				}
				return nil
			},
		},
		{op: "file.sync", run: func() error { return f.Sync() }},
		{op: "file.stat", run: func() error { _, err := f.Stat(); return err }},
		{
			op: "file.seek",
			run: func() error {
				pos, err := f.Seek(0, io.SeekStart)
				if err != nil {
					return err
				}
				if pos != 0 {
					return fmt.Errorf("seek pos=%d, want 0", pos)
				}
				return nil
			},
		},
		{
			op: "file.read",
			run: func() error {
				buf := make([]byte, 5)
				n, err := f.Read(buf)
				if err != nil {
					return err
				}
				if n != 5 {
					return fmt.Errorf("read n=%d, want 5", n)
				}
				return nil
			},
		},
		{op: "file.close", run: func() error { return f.Close() }},
		{op: "stat", run: func() error { _, err := strict.Stat(a); return err }},
		{
			op: "lock",
			run: func() error {
				lock, err := strict.Lock(a + ".lock")
				if err != nil {
					return err
				}
				return lock.Close()
			},
		},
	}

	wantOps := make([]string, 0, len(steps))
	for _, s := range steps {
		wantOps = append(wantOps, s.op)
	}

	for _, s := range steps {
		if err := s.run(); err != nil {
			t.Fatalf("%s: %v", s.op, err)
		}
	}

	assertTraceOps(t, strict.Trace(), wantOps)
}

func Test_StrictFS_Panics_For_Each_Method_When_The_Underlying_FS_Errors(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")
	base := alwaysErrFS{err: errBoom}

	tests := []struct {
		name    string
		traceOp string
		call    func(*StrictTestFS)
	}{
		{"OpenFile", "openfile", func(s *StrictTestFS) { _, _ = s.OpenFile("x", os.O_RDONLY, 0o644) }},
		{"MkdirAll", "mkdirall", func(s *StrictTestFS) { _ = s.MkdirAll("x", 0o755) }},
		{"Stat", "stat", func(s *StrictTestFS) { _, _ = s.Stat("x") }},
		{"Lock", "lock", func(s *StrictTestFS) { _, _ = s.Lock("x") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tb := &fakeTB{}
			strict := NewStrictTestFS(tb, StrictTestFSOptions{FS: base})

			panicMsg := mustPanic(t, func() { tt.call(strict) })
			if !strings.Contains(panicMsg, errBoom.Error()) {
				t.Fatalf("panic message: want %q, got %q", errBoom.Error(), panicMsg)
			}
			if !strings.Contains(panicMsg, "#1 "+tt.traceOp) {
				t.Fatalf("panic message: want trace op %q, got %q", "#1 "+tt.traceOp, panicMsg)
			}
			if !tb.failed {
				t.Fatal("tb.failed after real error: want true, got false")
			}
		})
	}
}

// --- File operation tests ---

func Test_StrictFile_Does_Not_Panic_When_Read_Returns_EOF(t *testing.T) {
	t.Parallel()

	tb := &fakeTB{}
	strict := NewStrictTestFS(tb, StrictTestFSOptions{FS: NewReal()})
	path := filepath.Join(t.TempDir(), "test.txt")

	f, err := strict.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		t.Fatalf("OpenFile(%q): %v", path, err)
	}
	f.Close()

	f, err = strict.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		t.Fatalf("OpenFile(%q): %v", path, err)
	}
	defer f.Close()

	buf := make([]byte, 10)
	_, err = f.Read(buf)
	if !errors.Is(err, io.EOF) {
		t.Errorf("Read(%q): want io.EOF, got %v", path, err)
	}
	if tb.failed {
		t.Errorf("tb.failed after Read(%q) returned io.EOF: want false, got true", path)
	}
}

func Test_StrictFile_Fd_Returns_The_Underlying_Fd(t *testing.T) {
	t.Parallel()

	tb := &fakeTB{}
	stubFile := &testFile{fd: 123}
	strict := NewStrictTestFS(tb, StrictTestFSOptions{
		FS: stubFS{
			openFile: func(string, int, os.FileMode) (File, error) { return stubFile, nil },
		},
	})

	f, err := strict.OpenFile("ignored", os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		t.Fatalf("OpenFile(): %v", err)
	}

	if got, want := f.Fd(), uintptr(123); got != want {
		t.Fatalf("Fd(): want %d, got %d", want, got)
	}
}

func Test_StrictFile_Panics_For_Each_Method_When_The_Underlying_File_Errors(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")

	tests := []struct {
		name    string
		traceOp string
		file    *testFile
		call    func(File)
	}{
		{
			name:    "Read",
			traceOp: "file.read",
			file:    &testFile{readErr: errBoom},
			call:    func(f File) { _, _ = f.Read(make([]byte, 1)) },
		},
		{
			name:    "Write",
			traceOp: "file.write",
			file:    &testFile{writeErr: errBoom},
			call:    func(f File) { _, _ = f.Write([]byte("x")) },
		},
		{
			name:    "Close",
			traceOp: "file.close",
			file:    &testFile{closeErr: errBoom},
			call:    func(f File) { _ = f.Close() },
		},
		{
			name:    "Seek",
			traceOp: "file.seek",
			file:    &testFile{seekErr: errBoom},
			call:    func(f File) { _, _ = f.Seek(0, io.SeekStart) },
		},
		{
			name:    "Stat",
			traceOp: "file.stat",
			file:    &testFile{statErr: errBoom},
			call:    func(f File) { _, _ = f.Stat() },
		},
		{
			name:    "Sync",
			traceOp: "file.sync",
			file:    &testFile{syncErr: errBoom},
			call:    func(f File) { _ = f.Sync() },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tb := &fakeTB{}
			strict := NewStrictTestFS(tb, StrictTestFSOptions{
				FS: stubFS{
					openFile: func(string, int, os.FileMode) (File, error) { return tt.file, nil },
				},
			})

			f, err := strict.OpenFile("ignored", os.O_RDWR|os.O_CREATE, 0o644)
			if err != nil {
				t.Fatalf("OpenFile(): %v", err)
			}

			panicMsg := mustPanic(t, func() { tt.call(f) })
			if !strings.Contains(panicMsg, errBoom.Error()) {
				t.Fatalf("panic message: want %q, got %q", errBoom.Error(), panicMsg)
			}
			if !strings.Contains(panicMsg, "#2 "+tt.traceOp) {
				t.Fatalf("panic message: want trace op %q, got %q", "#2 "+tt.traceOp, panicMsg)
			}
			if !tb.failed {
				t.Fatal("tb.failed after real file error: want true, got false")
			}
		})
	}
}

func Test_StrictFile_Does_Not_Panic_For_Chaos_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  ChaosConfig
		call    func(File) error
		wantErr bool
	}{
		{
			name:    "Read",
			config:  ChaosConfig{ReadFailRate: 1.0},
			call:    func(f File) error { _, err := f.Read(make([]byte, 1)); return err },
			wantErr: true,
		},
		{
			name:    "Write",
			config:  ChaosConfig{WriteFailRate: 1.0},
			call:    func(f File) error { _, err := f.Write([]byte("x")); return err },
			wantErr: true,
		},
		{
			name:    "Seek",
			config:  ChaosConfig{SeekFailRate: 1.0},
			call:    func(f File) error { _, err := f.Seek(0, io.SeekStart); return err },
			wantErr: true,
		},
		{
			name:    "Stat",
			config:  ChaosConfig{FileStatFailRate: 1.0},
			call:    func(f File) error { _, err := f.Stat(); return err },
			wantErr: true,
		},
		{
			name:    "Sync",
			config:  ChaosConfig{SyncFailRate: 1.0},
			call:    func(f File) error { return f.Sync() },
			wantErr: true,
		},
		{
			name:    "Close",
			config:  ChaosConfig{CloseFailRate: 1.0},
			call:    func(f File) error { return f.Close() },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tb := &fakeTB{}
			chaos := NewChaos(NewReal(), 0, tt.config)
			chaos.SetMode(ChaosModeActive)
			strict := NewStrictTestFS(tb, StrictTestFSOptions{FS: chaos})
			path := filepath.Join(t.TempDir(), "test.txt")

			f, err := strict.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
			if err != nil {
				t.Fatalf("OpenFile(%q): %v", path, err)
			}

			if tt.name != "Close" {
				defer func() { _ = f.Close() }()
			}

			err = tt.call(f)
			if (err != nil) != tt.wantErr {
				t.Fatalf("%s(): err=%v, wantErr=%t", tt.name, err, tt.wantErr)
			}
			if err != nil && !IsChaosErr(err) {
				t.Fatalf("IsChaosErr(err) after %s(): want true, got false (err=%v)", tt.name, err)
			}
			if tb.failed {
				t.Fatalf("tb.failed after chaos %s(): want false, got true", tt.name)
			}
		})
	}
}

func Test_StrictFile_Does_Not_Panic_On_Chaos_Partial_Write(t *testing.T) {
	t.Parallel()

	tb := &fakeTB{}
	chaos := NewChaos(NewReal(), 0, ChaosConfig{PartialWriteRate: 1.0, ShortWriteRate: 0.0})
	chaos.SetMode(ChaosModeActive)
	strict := NewStrictTestFS(tb, StrictTestFSOptions{FS: chaos})
	path := filepath.Join(t.TempDir(), "test.txt")

	f, err := strict.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		t.Fatalf("OpenFile(%q): %v", path, err)
	}
	defer func() { _ = f.Close() }()

	payload := []byte("hello")
	n, err := f.Write(payload)
	if err == nil {
		t.Fatalf("Write(%q): want error, got nil", path)
	}
	if !IsChaosErr(err) {
		t.Fatalf("IsChaosErr(err) for partial Write(%q): want true, got false (err=%v)", path, err)
	}
	if n <= 0 || n >= len(payload) {
		t.Fatalf("Write(%q): n=%d, want 0 < n < %d", path, n, len(payload))
	}
	if tb.failed {
		t.Fatalf("tb.failed after chaos partial Write(%q): want false, got true", path)
	}
}

// --- Cleanup behavior ---

func Test_StrictFS_Cleanup_Logs_Trace_Only_When_The_Test_Fails(t *testing.T) {
	t.Parallel()

	tb := &fakeTB{}
	strict := NewStrictTestFS(tb, StrictTestFSOptions{FS: NewReal()})
	path := filepath.Join(t.TempDir(), "test.txt")

	f, _ := strict.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if f != nil {
		_, _ = f.Write([]byte("hello"))
		_ = f.Close()
	}

	if tb.cleanup == nil {
		t.Fatal("expected StrictFS to register Cleanup")
	}

	// No log when the test isn't failing.
	tb.cleanup()
	if tb.logMsg != "" {
		t.Fatalf("tb.logMsg after cleanup without failure: want empty string, got %q", tb.logMsg)
	}

	tb.failed = true // Simulate test failure
	tb.cleanup()

	if tb.logMsg == "" {
		t.Fatal("tb.logMsg after cleanup: want trace output, got empty string")
	}
	if !strings.Contains(tb.logMsg, "#1 openfile") {
		t.Errorf("tb.logMsg: want substring %q, got %q", "#1 openfile", tb.logMsg)
	}
}

// --- Test helper ---

type fakeTB struct {
	failed  bool
	logMsg  string
	cleanup func()
}

func (f *fakeTB) Helper() {}

func (f *fakeTB) Cleanup(fn func()) {
	f.cleanup = fn
}

func (f *fakeTB) Failed() bool {
	return f.failed
}

func (f *fakeTB) Logf(format string, args ...any) {
	f.logMsg = fmt.Sprintf(format, args...)
}

func (f *fakeTB) Fatalf(format string, args ...any) {
	f.failed = true
	panic(fmt.Sprintf(format, args...))
}

type alwaysErrFS struct {
	err error
}

func (e alwaysErrFS) OpenFile(string, int, os.FileMode) (File, error) { return nil, e.err }
func (e alwaysErrFS) MkdirAll(string, os.FileMode) error              { return e.err }
func (e alwaysErrFS) Stat(string) (os.FileInfo, error)                { return nil, e.err }
func (e alwaysErrFS) Lock(string) (Locker, error)                     { return nil, e.err }

type stubFS struct {
	openFile func(path string, flag int, perm os.FileMode) (File, error)
	mkdirAll func(path string, perm os.FileMode) error
	stat     func(path string) (os.FileInfo, error)
	lock     func(path string) (Locker, error)
}

func (s stubFS) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	if s.openFile == nil {
		panic("stubFS.OpenFile: not implemented")
	}
	return s.openFile(path, flag, perm)
}

func (s stubFS) MkdirAll(path string, perm os.FileMode) error {
	if s.mkdirAll == nil {
		panic("stubFS.MkdirAll: not implemented")
	}
	return s.mkdirAll(path, perm)
}

func (s stubFS) Stat(path string) (os.FileInfo, error) {
	if s.stat == nil {
		panic("stubFS.Stat: not implemented")
	}
	return s.stat(path)
}

func (s stubFS) Lock(path string) (Locker, error) {
	if s.lock == nil {
		panic("stubFS.Lock: not implemented")
	}
	return s.lock(path)
}

type testFile struct {
	fd uintptr

	readErr  error
	writeErr error
	closeErr error
	seekErr  error
	statErr  error
	syncErr  error
}

func (f *testFile) Read([]byte) (int, error)  { return 0, f.readErr }
func (f *testFile) Write([]byte) (int, error) { return 0, f.writeErr }
func (f *testFile) Close() error              { return f.closeErr }
func (f *testFile) Seek(int64, int) (int64, error) {
	return 0, f.seekErr
}
func (f *testFile) Fd() uintptr { return f.fd }
func (f *testFile) Stat() (os.FileInfo, error) {
	return nil, f.statErr
}
func (f *testFile) Sync() error { return f.syncErr }

func mustPanic(t *testing.T, fn func()) (msg string) {
	t.Helper()

	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected panic, got none")
		}
		msg = fmt.Sprint(r)
	}()

	fn()

	return ""
}

func splitTraceLines(trace string) []string {
	if trace == "" {
		return nil
	}
	return strings.Split(trace, "\n")
}

func assertTraceOps(t *testing.T, trace string, wantOps []string) {
	t.Helper()

	if trace == "" {
		t.Fatal("Trace(): want non-empty trace, got empty string")
	}

	lines := splitTraceLines(trace)
	if want, got := len(wantOps), len(lines); want != got {
		t.Fatalf("Trace() line count: want %d, got %d\ntrace:\n%s", want, got, trace)
	}

	for i, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			t.Fatalf("Trace()[%d]: invalid trace line %q\ntrace:\n%s", i, line, trace)
		}

		if !strings.Contains(line, "path=") {
			t.Fatalf("Trace()[%d]: missing path in line %q\ntrace:\n%s", i, line, trace)
		}

		if got, want := fields[1], wantOps[i]; got != want {
			t.Fatalf("Trace()[%d] op: want %q, got %q\nline: %q\ntrace:\n%s", i, want, got, line, trace)
		}
	}
}

var _ TestBuilder = (*fakeTB)(nil)
var _ FS = (*alwaysErrFS)(nil)
var _ FS = (*stubFS)(nil)
var _ File = (*testFile)(nil)
