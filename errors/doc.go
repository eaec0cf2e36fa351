// Package errors implements a three-class error classification (transient,
// invalid, fatal) for the mixer hub's connection handling and event loop.
//
// Transient errors (ErrWouldBlock, a lost connection, a context deadline)
// mean the caller can try again later. Invalid errors (a bad greeting, a
// malformed DV header) mean the data itself is wrong and the connection
// should be dropped without complaint. Fatal errors (bad configuration,
// resource exhaustion) mean the component cannot continue at all.
//
// IsTransient, IsFatal and IsInvalid inspect a *ClassifiedError via
// errors.As first, then fall back to errors.Is against the standard error
// variables. IsTransient and IsFatal then also fall back to substring
// matching against the error text for errors that originate outside this
// package (syscall errors surfaced through golang.org/x/sys/unix, for
// instance); IsInvalid does no substring matching.
//
//	if err := conn.receive(); err != nil {
//	    if errors.IsTransient(err) {
//	        return nil // try again on the next poll cycle
//	    }
//	    return errors.WrapFatal(err, "server", "receive", "read from connection")
//	}
//
// Wrap, WrapTransient, WrapFatal and WrapInvalid all add
// "component.method: action failed: %w" context; the three Wrap* variants
// additionally attach a classification so a later errors.As can recover it
// without re-parsing the message.
package errors
