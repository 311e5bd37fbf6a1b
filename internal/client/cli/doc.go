// Package cli is the GophGroups command-line client.
//
// It loads the client key pair and the pinned host list, logs in to the auth
// service and then runs either a single command given on the command line or
// an interactive loop. The message service is dialed on the first command
// that needs it; an unknown host key is confirmed with the user before it is
// pinned.
package cli
