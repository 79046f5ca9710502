package crash

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"time"

	"guild-warden/internal/logger"
)

// RecoverWithStack recovers a panic and logs it with its stack trace
func RecoverWithStack(moduleName string) {
	if r := recover(); r != nil {
		report(moduleName, "PANIC", r)
	}
}

// RecoverWithStackAndExit is used by main: logs the panic then exits non-zero
func RecoverWithStackAndExit(moduleName string) {
	if r := recover(); r != nil {
		report(moduleName, "FATAL PANIC", r)

		// give the log writers time to flush
		time.Sleep(1 * time.Second)
		os.Exit(1)
	}
}

// RecoverError turns a panic inside an event handler into an error
func RecoverError(moduleName string, err *error) {
	if r := recover(); r != nil {
		report(moduleName, "PANIC", r)
		if err != nil {
			*err = fmt.Errorf("panic in %s: %v", moduleName, r)
		}
	}
}

// SafeGoroutine starts a goroutine with panic recovery
func SafeGoroutine(name string, fn func()) {
	go func() {
		defer RecoverWithStack(fmt.Sprintf("goroutine-%s", name))
		fn()
	}()
}

func report(moduleName, label string, r interface{}) {
	stack := debug.Stack()

	logger.Errorf("%s in %s: %v", label, moduleName, r)
	logger.Errorf("Stack trace:\n%s", string(stack))

	// stderr as well so container logs always have it
	fmt.Fprintf(os.Stderr, "[%s] %s - %s: %v\n", label, time.Now().Format("2006-01-02 15:04:05"), moduleName, r)
	fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", string(stack))

	logRuntimeInfo()
}

// logRuntimeInfo logs runtime information to help debugging
func logRuntimeInfo() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	info := fmt.Sprintf(`
Runtime Information:
- Go version: %s
- Number of CPUs: %d
- Number of goroutines: %d
- Memory stats:
  - Heap allocated: %d KB
  - Heap in use: %d KB
  - Stack in use: %d KB
  - Next GC: %d KB
  - Num GC: %d
`,
		runtime.Version(),
		runtime.NumCPU(),
		runtime.NumGoroutine(),
		bToKb(m.HeapAlloc),
		bToKb(m.HeapInuse),
		bToKb(m.StackInuse),
		bToKb(m.NextGC),
		m.NumGC,
	)

	logger.Error(info)
}

func bToKb(b uint64) uint64 {
	return b / 1024
}
