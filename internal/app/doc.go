// Package app is the composition root of the fincert client.
//
// Responsibilities
//   - Bootstrap turns a validated configuration into an open FinCERT
//     session: it builds the logger (with a run_id), selects the client
//     certificate, resolves the account, prepares the server identity
//     policy and the download mirror, then logs in.
//   - Application runs the downloads the command line asks for (feeds,
//     bulletins, the bulletin list and the checklist kit) and logs out in
//     Close.
//   - ExitCode maps any error of a run to the process exit status.
//
// Files
//   - application.go: Application, Bootstrap, Close
//   - tasks.go: Run and the tasks it executes
//   - exitcode.go: ExitCode and the exit status constants
package app
