// Package ptytest provides child programs for tests that drive a real
// pseudo-terminal. The test binary re-executes itself with EnvVar set and
// Main runs the requested mode instead of the tests.
//
//	func TestMain(m *testing.M) { ptytest.Main(m) }
//
//	path, env := ptytest.Command(t, "cat")
package ptytest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/creack/pty"
	"golang.org/x/term"
)

// EnvVar selects the helper mode in the re-executed test binary.
const EnvVar = "PTYSCRIPT_TEST_HELPER"

// Helper modes. Modes taking an argument are written "mode:arg".
const (
	// ModeCat copies input to output; the tty echoes typed keys.
	ModeCat = "cat"
	// ModeDelayed prints "late output" after the given duration.
	ModeDelayed = "delayed"
	// ModeHexEcho switches to raw mode, prints "ready", then prints each
	// input byte as two hex digits on its own line.
	ModeHexEcho = "hexecho"
	// ModeStubborn ignores SIGTERM and sleeps.
	ModeStubborn = "stubborn"
	// ModeExit prints "bye" and exits with the given code.
	ModeExit = "exit"
	// ModeEnv prints TERM, COLUMNS and LINES.
	ModeEnv = "env"
	// ModeScreen paints a styled screen and waits for input to end.
	ModeScreen = "screen"
	// ModeQuery asks the terminal for the cursor position and prints the
	// reply.
	ModeQuery = "query"
	// ModeSpawnChild starts a grandchild in the same process group,
	// prints its PID and sleeps.
	ModeSpawnChild = "spawnchild"
)

// Main runs a helper mode when EnvVar is set, otherwise the tests.
func Main(m *testing.M) {
	if mode := os.Getenv(EnvVar); mode != "" {
		os.Exit(run(mode))
	}
	os.Exit(m.Run())
}

// Command returns the executable and environment that run the test binary
// in the given helper mode.
func Command(t testing.TB, mode string) (path string, env []string) {
	t.Helper()
	exe, err := os.Executable()
	if err != nil {
		t.Fatalf("locate test binary: %v", err)
	}
	return exe, []string{EnvVar + "=" + mode}
}

// SkipIfNoPTY skips the test when the system cannot allocate a terminal.
func SkipIfNoPTY(t testing.TB) {
	t.Helper()
	ptm, pts, err := pty.Open()
	if err != nil {
		t.Skipf("pty unavailable: %v", err)
	}
	ptm.Close()
	pts.Close()
}

// OpenFDs returns the number of descriptors open in this process.
func OpenFDs(t testing.TB) int {
	t.Helper()
	entries, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Skipf("cannot list descriptors: %v", err)
	}
	return len(entries)
}

// Alive reports whether a process with pid exists and is not a zombie.
func Alive(pid int) bool {
	if err := syscall.Kill(pid, 0); errors.Is(err, syscall.ESRCH) {
		return false
	}
	data, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/stat")
	if err != nil {
		return false
	}
	// pid (comm) state ...
	stat := string(data)
	if i := strings.LastIndexByte(stat, ')'); i >= 0 && i+2 < len(stat) {
		return stat[i+2] != 'Z'
	}
	return true
}

func run(helper string) int {
	mode, arg, _ := strings.Cut(helper, ":")
	switch mode {
	case ModeCat:
		io.Copy(os.Stdout, os.Stdin)
	case ModeDelayed:
		d, err := time.ParseDuration(arg)
		if err != nil {
			d = 200 * time.Millisecond
		}
		time.Sleep(d)
		fmt.Print("late output\r\n")
		io.Copy(io.Discard, os.Stdin)
	case ModeHexEcho:
		return hexEcho()
	case ModeStubborn:
		signal.Ignore(syscall.SIGTERM)
		fmt.Print("ready\r\n")
		time.Sleep(time.Hour)
	case ModeExit:
		code, _ := strconv.Atoi(arg)
		fmt.Print("bye\r\n")
		return code
	case ModeEnv:
		fmt.Printf("TERM=%s\r\nCOLUMNS=%s\r\nLINES=%s\r\n",
			os.Getenv("TERM"), os.Getenv("COLUMNS"), os.Getenv("LINES"))
		io.Copy(io.Discard, os.Stdin)
	case ModeScreen:
		fmt.Print("\x1b[2J\x1b[H\x1b[1mtitle\x1b[0m\r\n\x1b[31mred\x1b[0m plain\r\n")
		io.Copy(io.Discard, os.Stdin)
	case ModeQuery:
		return query()
	case ModeSpawnChild:
		return spawnChild()
	default:
		fmt.Fprintf(os.Stderr, "unknown helper mode %q\n", helper)
		return 2
	}
	return 0
}

func hexEcho() int {
	fd := int(os.Stdin.Fd())
	state, err := term.MakeRaw(fd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "raw mode: %v\n", err)
		return 1
	}
	defer term.Restore(fd, state)

	fmt.Print("ready\r\n")
	buf := make([]byte, 64)
	for {
		n, err := os.Stdin.Read(buf)
		for _, b := range buf[:n] {
			fmt.Printf("%02x\r\n", b)
		}
		if err != nil {
			return 0
		}
	}
}

func query() int {
	fd := int(os.Stdin.Fd())
	state, err := term.MakeRaw(fd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "raw mode: %v\n", err)
		return 1
	}
	defer term.Restore(fd, state)

	fmt.Print("\x1b[3;5H\x1b[6n")
	r := bufio.NewReader(os.Stdin)
	reply, err := r.ReadString('R')
	if err != nil {
		return 1
	}
	fmt.Printf("\x1b[H\x1b[2Kreply:%q\r\n", reply)
	io.Copy(io.Discard, r)
	return 0
}

func spawnChild() int {
	exe, err := os.Executable()
	if err != nil {
		return 1
	}
	env := []string{EnvVar + "=" + ModeStubborn}
	for _, kv := range os.Environ() {
		if !strings.HasPrefix(kv, EnvVar+"=") {
			env = append(env, kv)
		}
	}
	attr := &os.ProcAttr{
		Env:   env,
		Files: []*os.File{os.Stdin, os.Stdout, os.Stderr},
	}
	p, err := os.StartProcess(exe, []string{exe}, attr)
	if err != nil {
		return 1
	}
	fmt.Printf("child:%d\n", p.Pid)
	time.Sleep(time.Hour)
	return 0
}
