// Package aprconf probes a C toolchain for the features the Apache
// Portable Runtime depends on and generates its configuration headers.
//
// A configure run has three stages:
//   - probing: each [Probe] compiles, links or runs a small C program
//     through a [Toolchain] and yields a [Result]
//   - deriving: pure [Step] rules fold the results into an immutable
//     [Table] of typed [Value] bindings
//   - expanding: [Generate] replaces the @key@ placeholders of the header
//     templates with the table's values and writes the headers
//
// # Quick Start
//
// Configure the host toolchain and write the default headers:
//
//	cfg, err := aprconf.Configure(ctx, aprconf.NewCC("cc"),
//	    aprconf.WithRunnerOptions(aprconf.WithTranscript(os.Stdout)),
//	)
//	if err != nil {
//	    var ce *aprconf.CriticalError
//	    if errors.As(err, &ce) {
//	        log.Fatalf("toolchain not usable: %s: %s", ce.Probe, ce.Reason)
//	    }
//	    log.Fatal(err)
//	}
//	outputs, err := aprconf.Outputs("build", "", cfg.Platform.Family)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := aprconf.Generate(outputs, cfg.Table); err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg) // human-readable summary
//
// # Cross Builds
//
// Sizes are measured with compile-only assertions, so they are correct for
// any target the compiler supports. Probes that must run a program on the
// target, and the byte order when the compiler does not advertise it, can
// be supplied up front with [WithPreset]; those probes are then reported
// as "(preset)" and never executed.
//
// # Types
//
// [Result] is the outcome of one probe: a flag, an integer, a symbolic
// value, or a failure carrying its reason and the program's exit code.
//
// [Table] maps placeholder keys to [Value] bindings. Tables are never
// modified; every [Step] returns a new one.
//
// [CriticalError] aborts configuration when a probe marked critical fails,
// e.g. when the compiler cannot create executables. [MissingKeysError]
// lists the placeholders of a template the table does not bind.
package aprconf
