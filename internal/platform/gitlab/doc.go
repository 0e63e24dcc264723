// Package gitlab drives the glab command-line client to create and update
// issues. Every interpolated value is shell-quoted before the command line
// is handed to sh.
//
// Issue creation has three outcomes. Created means glab succeeded and the
// issue number was read from its output. Failed means glab exited non-zero
// and nothing is assumed to exist. Ambiguous means glab exited zero but its
// output carried no issue number; the issue may exist and the caller must
// not blindly retry.
package gitlab
