package cont

// Process-wide base continuations. Built once at package initialization
// and never mutated, mirroring the Rust source's
// `thread_local! { static QUIT0/QUIT1/EXC_QUIT ... }`.
var (
	Quit0    Continuation = &Quit{ExitCode: 0}
	Quit1    Continuation = &Quit{ExitCode: 1}
	ExcQuit0 Continuation = &ExcQuit{}
)
