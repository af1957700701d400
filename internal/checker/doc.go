// Package checker is the check-checker: a static pass that reports
// unchecked input reaching state-changing operations.
//
// Parameters of public functions are tainted. A value built from a
// tainted value is tainted. A guard (asserts!, unwrap!, unwrap-err!,
// try!) trusts the symbols it mentions for the rest of its body; the
// condition of if and the matched value of match are trusted in the
// success branch only. A tainted value reaching a sink (token transfers,
// mints and burns, map and variable writes, dynamic contract calls,
// arguments to private functions) is reported as a warning that points
// at both the sink and the parameter declaration.
//
// Comments of the form ";; #[...]" on the line before an expression
// adjust the result:
//
//	#[allow(unchecked_data)]    silence the expression
//	#[allow(unchecked_params)]  on a private function: callers may pass
//	                            unchecked data, the body is checked instead
//	#[filter(a, b)]             the expression checks a and b; "*" checks all
//
// The pass reads only the syntax tree. It never evaluates code.
package checker
