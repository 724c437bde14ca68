// Package cli implements skyhaul-admin, the operator console for refresh
// token families. It runs either one command taken from the process
// arguments or an interactive read-eval-print loop.
//
// Commands:
//
//	family <family-id>        list every token of a family with its status
//	revoke-family <family-id> revoke all active tokens of a family
//	revoke-user <user-id>     revoke every active token a user holds
//	sweep                     delete tokens past the retention windows
//	help                      show available commands
//	exit | quit               leave the console
package cli
